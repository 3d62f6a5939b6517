package academics

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

// ValueType tells how a subject is graded.
type ValueType string

const (
	ValueTypeNumeric ValueType = "NUMERIC"
	ValueTypeLiteral ValueType = "LITERAL"
)

const maxNumericDecimals = 3

type (
	Level struct {
		ID    string `json:"id" db:"id"`
		Label string `json:"label" db:"label"`
		Order int    `json:"order" db:"ord"`
	}

	CoursePeriod struct {
		ID       string    `json:"id" db:"id"`
		Label    string    `json:"label" db:"label"`
		StartsAt time.Time `json:"starts_at" db:"starts_at"`
		EndsAt   time.Time `json:"ends_at" db:"ends_at"`
		Order    int       `json:"order" db:"ord"`
	}

	AbsenceUnit struct {
		ID        string   `json:"id"`
		Label     string   `json:"label"`
		PeriodIDs []string `json:"period_ids"`
	}

	SubjectCategory struct {
		ID    string `json:"id" db:"id"`
		Label string `json:"label" db:"label"`
		Order int    `json:"order" db:"ord"`
	}

	// LiteralGrade is one step of a literal grading scale.
	LiteralGrade struct {
		Code  string `json:"code" validate:"required"`
		Label string `json:"label" validate:"required"`
	}

	Subject struct {
		ID              string           `json:"id"`
		Label           string           `json:"label"`
		Weight          float64          `json:"weight"`
		CategoryID      null.String      `json:"category_id"`
		ValueType       ValueType        `json:"value_type"`
		NumericMin      null.Float64     `json:"numeric_min"`
		NumericMax      null.Float64     `json:"numeric_max"`
		NumericDecimals null.Int         `json:"numeric_decimals"`
		LiteralScale    []LiteralGrade   `json:"literal_scale"`
		Category        *SubjectCategory `json:"category"`
	}

	// SchoolSettings is a single-row table.
	SchoolSettings struct {
		ID         string `json:"id" db:"id"`
		SchoolName string `json:"school_name" db:"school_name"`
	}

	// State is the combined configuration snapshot served to the admin UI.
	State struct {
		Settings          *SchoolSettings   `json:"settings"`
		Levels            []Level           `json:"levels"`
		CoursePeriods     []CoursePeriod    `json:"course_periods"`
		AbsenceUnits      []AbsenceUnit     `json:"absence_units"`
		SubjectCategories []SubjectCategory `json:"subject_categories"`
		Subjects          []Subject         `json:"subjects"`
	}
)

var (
	errNoFieldsToUpdate = errors.New("at least one field is required")
	errInvalidDateRange = errors.New("starts_at must be before or equal to ends_at")
	errScaleRequired    = errors.New("a literal scale is required for LITERAL subjects")
	errScaleForbidden   = errors.New("a literal scale is only allowed for LITERAL subjects")
	errInvalidBounds    = errors.New("numeric_min must not exceed numeric_max")
	errInvalidDecimals  = errors.Errorf("numeric_decimals must be between 0 and %d", maxNumericDecimals)
)

// Payloads

type NewLevel struct {
	Label string `json:"label" validate:"required"`
	Order int    `json:"order" validate:"gte=0"`
}

func (nl *NewLevel) Validate(validate *validator.Validate) error {
	nl.Label = core.CleanString(nl.Label)
	return validate.Struct(nl)
}

type UpdateLevel struct {
	Label *string `json:"label"`
	Order *int    `json:"order"`
}

func (ul *UpdateLevel) Validate(validate *validator.Validate) error {
	if ul.Label == nil && ul.Order == nil {
		return core.NewValidationError(errNoFieldsToUpdate)
	}
	if ul.Label != nil {
		label := core.CleanString(*ul.Label)
		if label == "" {
			return core.NewValidationError(errNoFieldsToUpdate,
				core.FieldError{Field: "label", Error: "this field is required"})
		}
		ul.Label = &label
	}
	return validate.Struct(ul)
}

type NewCoursePeriod struct {
	Label    string    `json:"label" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Order    int       `json:"order" validate:"gte=0"`
}

func (np *NewCoursePeriod) Validate(validate *validator.Validate) error {
	np.Label = core.CleanString(np.Label)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.StartsAt.After(np.EndsAt) {
		return core.NewValidationError(errInvalidDateRange,
			core.FieldError{Field: "starts_at", Error: errInvalidDateRange.Error()})
	}
	return nil
}

type UpdateCoursePeriod struct {
	Label    *string    `json:"label"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Order    *int       `json:"order"`
}

func (up *UpdateCoursePeriod) Validate(validate *validator.Validate) error {
	if up.Label == nil && up.StartsAt == nil && up.EndsAt == nil && up.Order == nil {
		return core.NewValidationError(errNoFieldsToUpdate)
	}
	if up.Label != nil {
		label := core.CleanString(*up.Label)
		up.Label = &label
	}
	if up.StartsAt != nil && up.EndsAt != nil && up.StartsAt.After(*up.EndsAt) {
		return core.NewValidationError(errInvalidDateRange,
			core.FieldError{Field: "starts_at", Error: errInvalidDateRange.Error()})
	}
	return validate.Struct(up)
}

type NewAbsenceUnit struct {
	Label     string   `json:"label" validate:"required"`
	PeriodIDs []string `json:"period_ids"`
}

func (na *NewAbsenceUnit) Validate(validate *validator.Validate) error {
	na.Label = core.CleanString(na.Label)
	return validate.Struct(na)
}

type UpdateAbsenceUnit struct {
	Label     *string  `json:"label"`
	PeriodIDs []string `json:"period_ids"`
}

func (ua *UpdateAbsenceUnit) Validate(validate *validator.Validate) error {
	if ua.Label == nil && ua.PeriodIDs == nil {
		return core.NewValidationError(errNoFieldsToUpdate)
	}
	if ua.Label != nil {
		label := core.CleanString(*ua.Label)
		ua.Label = &label
	}
	return validate.Struct(ua)
}

type NewSubjectCategory struct {
	Label string `json:"label" validate:"required"`
	Order int    `json:"order" validate:"gte=0"`
}

func (nc *NewSubjectCategory) Validate(validate *validator.Validate) error {
	nc.Label = core.CleanString(nc.Label)
	return validate.Struct(nc)
}

type UpdateSubjectCategory struct {
	Label *string `json:"label"`
	Order *int    `json:"order"`
}

func (uc *UpdateSubjectCategory) Validate(validate *validator.Validate) error {
	if uc.Label == nil && uc.Order == nil {
		return core.NewValidationError(errNoFieldsToUpdate)
	}
	if uc.Label != nil {
		label := core.CleanString(*uc.Label)
		uc.Label = &label
	}
	return validate.Struct(uc)
}

type NewSubject struct {
	Label           string         `json:"label" validate:"required"`
	Weight          float64        `json:"weight" validate:"gte=0"`
	CategoryID      *string        `json:"category_id"`
	ValueType       ValueType      `json:"value_type" validate:"required,oneof=NUMERIC LITERAL"`
	NumericMin      *float64       `json:"numeric_min"`
	NumericMax      *float64       `json:"numeric_max"`
	NumericDecimals *int           `json:"numeric_decimals"`
	LiteralScale    []LiteralGrade `json:"literal_scale" validate:"dive"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Label = core.CleanString(ns.Label)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return validateGrading(ns.ValueType, ns.NumericMin, ns.NumericMax, ns.NumericDecimals, ns.LiteralScale)
}

type UpdateSubject struct {
	Label           *string        `json:"label"`
	Weight          *float64       `json:"weight" validate:"omitempty,gte=0"`
	CategoryID      *string        `json:"category_id"`
	ValueType       *ValueType     `json:"value_type" validate:"omitempty,oneof=NUMERIC LITERAL"`
	NumericMin      *float64       `json:"numeric_min"`
	NumericMax      *float64       `json:"numeric_max"`
	NumericDecimals *int           `json:"numeric_decimals"`
	LiteralScale    []LiteralGrade `json:"literal_scale" validate:"dive"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	if us.Label != nil {
		label := core.CleanString(*us.Label)
		us.Label = &label
	}
	return validate.Struct(us)
}

// validateGrading enforces the value-type-dependent rules: a literal subject
// carries a non-empty scale and no numeric bounds semantics; a numeric
// subject must have coherent bounds and a decimals setting within range.
func validateGrading(valueType ValueType, min, max *float64, decimals *int, scale []LiteralGrade) error {
	switch valueType {
	case ValueTypeLiteral:
		if len(scale) == 0 {
			return core.NewValidationError(errScaleRequired,
				core.FieldError{Field: "literal_scale", Error: errScaleRequired.Error()})
		}
	case ValueTypeNumeric:
		if len(scale) > 0 {
			return core.NewValidationError(errScaleForbidden,
				core.FieldError{Field: "literal_scale", Error: errScaleForbidden.Error()})
		}
		if min != nil && max != nil && *min > *max {
			return core.NewValidationError(errInvalidBounds,
				core.FieldError{Field: "numeric_min", Error: errInvalidBounds.Error()})
		}
		if decimals != nil && (*decimals < 0 || *decimals > maxNumericDecimals) {
			return core.NewValidationError(errInvalidDecimals,
				core.FieldError{Field: "numeric_decimals", Error: errInvalidDecimals.Error()})
		}
	}
	return nil
}

type UpsertSchoolSettings struct {
	SchoolName string `json:"school_name" validate:"required"`
}

func (us *UpsertSchoolSettings) Validate(validate *validator.Validate) error {
	us.SchoolName = core.CleanString(us.SchoolName)
	return validate.Struct(us)
}
