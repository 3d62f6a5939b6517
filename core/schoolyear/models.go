package schoolyear

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// YearStatus is the derived lifecycle state of a SchoolYear. Never stored.
type YearStatus string

const (
	YearUpcoming YearStatus = "upcoming"
	YearActive   YearStatus = "active"
	YearArchived YearStatus = "archived"
)

// PeriodStatus is the derived lifecycle state of an EvaluationPeriod. Never stored.
type PeriodStatus string

const (
	PeriodPlanned  PeriodStatus = "planned"
	PeriodOpen     PeriodStatus = "open"
	PeriodLocked   PeriodStatus = "locked"
	PeriodArchived PeriodStatus = "archived"
)

type (
	// LevelRef is the minimal projection of a level associated with a year.
	LevelRef struct {
		Label string
		Order int
	}

	// LevelOption is a level available for association at creation time.
	LevelOption struct {
		ID    string
		Label string
	}

	EvaluationPeriod struct {
		ID           string
		SchoolYearID string
		Label        string
		StartsAt     time.Time
		EndsAt       time.Time
	}

	// SchoolYear is a year row with its relations, as fetched from the store.
	// Periods are ordered by ascending StartsAt.
	SchoolYear struct {
		ID            string
		Label         string
		StartsAt      time.Time
		EndsAt        time.Time
		Levels        []LevelRef
		Periods       []EvaluationPeriod
		ClassesCount  int
		GroupsCount   int
		StudentsCount int
		UpdatedAt     time.Time
	}
)

// View models served to the admin UI.
type (
	PeriodView struct {
		ID       string       `json:"id"`
		Label    string       `json:"label"`
		StartsAt time.Time    `json:"starts_at"`
		EndsAt   time.Time    `json:"ends_at"`
		Order    int          `json:"order"`
		Status   PeriodStatus `json:"status"`
	}

	YearView struct {
		ID            string       `json:"id"`
		Label         string       `json:"label"`
		StartsAt      time.Time    `json:"starts_at"`
		EndsAt        time.Time    `json:"ends_at"`
		Status        YearStatus   `json:"status"`
		Levels        []string     `json:"levels"`
		AbsenceUnits  []string     `json:"absence_units"`
		StudentsCount int          `json:"students_count"`
		ClassesCount  int          `json:"classes_count"`
		GroupsCount   int          `json:"groups_count"`
		Periods       []PeriodView `json:"evaluation_periods"`
		UpdatedAt     time.Time    `json:"updated_at"`
	}
)

// NewSchoolYear contains information needed to create a new SchoolYear.
// Levels may reference available levels by ID or by case-insensitive label;
// unknown references are ignored.
type NewSchoolYear struct {
	Label    string    `json:"label" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Levels   []string  `json:"levels"`
}

func (ny *NewSchoolYear) Validate(validate *validator.Validate) error {
	ny.Label = core.CleanString(ny.Label)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	if ny.StartsAt.After(ny.EndsAt) {
		return core.NewValidationError(errInvalidDateRange,
			core.FieldError{Field: "starts_at", Error: errInvalidDateRange.Error()})
	}
	return nil
}

// NewEvaluationPeriod contains information needed to add a period to a year.
type NewEvaluationPeriod struct {
	Label    string    `json:"label" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

func (np *NewEvaluationPeriod) Validate(validate *validator.Validate) error {
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
