package academics

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

var (
	ErrLevelNotFound        = errors.New("level not found")
	ErrCoursePeriodNotFound = errors.New("course period not found")
	ErrAbsenceUnitNotFound  = errors.New("absence unit not found")
	ErrCategoryNotFound     = errors.New("subject category not found")
	ErrSubjectNotFound      = errors.New("subject not found")

	// ErrLevelInUse is returned when deleting a level that school years or
	// classes still reference.
	ErrLevelInUse = errors.New("level is referenced and cannot be deleted")

	errUnknownCategory = errors.New("unknown subject category")
	errUnknownPeriod   = errors.New("unknown course period")
)

type (
	Repository interface {
		QueryLevels(ctx context.Context, exec ...core.DBExecutor) ([]Level, error)
		GetLevel(ctx context.Context, id string, exec ...core.DBExecutor) (Level, error)
		CreateLevel(ctx context.Context, level Level, exec ...core.DBExecutor) (Level, error)
		UpdateLevel(ctx context.Context, level Level, exec ...core.DBExecutor) (Level, error)
		// DeleteLevel fails with ErrLevelInUse when the level is referenced.
		DeleteLevel(ctx context.Context, id string, exec ...core.DBExecutor) error

		QueryCoursePeriods(ctx context.Context, exec ...core.DBExecutor) ([]CoursePeriod, error)
		GetCoursePeriod(ctx context.Context, id string, exec ...core.DBExecutor) (CoursePeriod, error)
		CreateCoursePeriod(ctx context.Context, period CoursePeriod, exec ...core.DBExecutor) (CoursePeriod, error)
		UpdateCoursePeriod(ctx context.Context, period CoursePeriod, exec ...core.DBExecutor) (CoursePeriod, error)
		DeleteCoursePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error

		QueryAbsenceUnits(ctx context.Context, exec ...core.DBExecutor) ([]AbsenceUnit, error)
		GetAbsenceUnit(ctx context.Context, id string, exec ...core.DBExecutor) (AbsenceUnit, error)
		// CreateAbsenceUnit and UpdateAbsenceUnit replace period links
		// atomically with the unit row itself.
		CreateAbsenceUnit(ctx context.Context, unit AbsenceUnit, exec ...core.DBExecutor) (AbsenceUnit, error)
		UpdateAbsenceUnit(ctx context.Context, unit AbsenceUnit, replaceLinks bool, exec ...core.DBExecutor) (AbsenceUnit, error)
		DeleteAbsenceUnit(ctx context.Context, id string, exec ...core.DBExecutor) error

		QuerySubjectCategories(ctx context.Context, exec ...core.DBExecutor) ([]SubjectCategory, error)
		GetSubjectCategory(ctx context.Context, id string, exec ...core.DBExecutor) (SubjectCategory, error)
		CreateSubjectCategory(ctx context.Context, category SubjectCategory, exec ...core.DBExecutor) (SubjectCategory, error)
		UpdateSubjectCategory(ctx context.Context, category SubjectCategory, exec ...core.DBExecutor) (SubjectCategory, error)
		DeleteSubjectCategory(ctx context.Context, id string, exec ...core.DBExecutor) error

		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		CreateSubject(ctx context.Context, subject Subject, exec ...core.DBExecutor) (Subject, error)
		UpdateSubject(ctx context.Context, subject Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error

		GetSchoolSettings(ctx context.Context, exec ...core.DBExecutor) (SchoolSettings, bool, error)
		UpsertSchoolSettings(ctx context.Context, settings SchoolSettings, exec ...core.DBExecutor) (SchoolSettings, error)
	}

	Service interface {
		State(ctx context.Context) (State, error)

		CreateLevel(ctx context.Context, nl NewLevel) (Level, error)
		UpdateLevel(ctx context.Context, id string, ul UpdateLevel) (Level, error)
		DeleteLevel(ctx context.Context, id string) error

		CreateCoursePeriod(ctx context.Context, np NewCoursePeriod) (CoursePeriod, error)
		UpdateCoursePeriod(ctx context.Context, id string, up UpdateCoursePeriod) (CoursePeriod, error)
		DeleteCoursePeriod(ctx context.Context, id string) error

		CreateAbsenceUnit(ctx context.Context, na NewAbsenceUnit) (AbsenceUnit, error)
		UpdateAbsenceUnit(ctx context.Context, id string, ua UpdateAbsenceUnit) (AbsenceUnit, error)
		DeleteAbsenceUnit(ctx context.Context, id string) error

		CreateSubjectCategory(ctx context.Context, nc NewSubjectCategory) (SubjectCategory, error)
		UpdateSubjectCategory(ctx context.Context, id string, uc UpdateSubjectCategory) (SubjectCategory, error)
		DeleteSubjectCategory(ctx context.Context, id string) error

		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		UpdateSubject(ctx context.Context, id string, us UpdateSubject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error

		SaveSettings(ctx context.Context, up UpsertSchoolSettings) (SchoolSettings, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) State(ctx context.Context) (State, error) {
	state := State{}

	settings, found, err := svc.repo.GetSchoolSettings(ctx)
	if err != nil {
		return State{}, errors.Wrap(err, "querying school settings")
	}
	if found {
		state.Settings = &settings
	}
	if state.Levels, err = svc.repo.QueryLevels(ctx); err != nil {
		return State{}, errors.Wrap(err, "querying levels")
	}
	if state.CoursePeriods, err = svc.repo.QueryCoursePeriods(ctx); err != nil {
		return State{}, errors.Wrap(err, "querying course periods")
	}
	if state.AbsenceUnits, err = svc.repo.QueryAbsenceUnits(ctx); err != nil {
		return State{}, errors.Wrap(err, "querying absence units")
	}
	if state.SubjectCategories, err = svc.repo.QuerySubjectCategories(ctx); err != nil {
		return State{}, errors.Wrap(err, "querying subject categories")
	}
	if state.Subjects, err = svc.repo.QuerySubjects(ctx); err != nil {
		return State{}, errors.Wrap(err, "querying subjects")
	}
	return state, nil
}

// Levels

func (svc *service) CreateLevel(ctx context.Context, nl NewLevel) (Level, error) {
	return svc.repo.CreateLevel(ctx, Level{Label: nl.Label, Order: nl.Order})
}

func (svc *service) UpdateLevel(ctx context.Context, id string, ul UpdateLevel) (Level, error) {
	level, err := svc.repo.GetLevel(ctx, id)
	if err != nil {
		return Level{}, err
	}
	if ul.Label != nil {
		level.Label = *ul.Label
	}
	if ul.Order != nil {
		level.Order = *ul.Order
	}
	return svc.repo.UpdateLevel(ctx, level)
}

func (svc *service) DeleteLevel(ctx context.Context, id string) error {
	if _, err := svc.repo.GetLevel(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteLevel(ctx, id)
}

// Course periods

func (svc *service) CreateCoursePeriod(ctx context.Context, np NewCoursePeriod) (CoursePeriod, error) {
	period := CoursePeriod{
		Label:    np.Label,
		StartsAt: np.StartsAt.UTC(),
		EndsAt:   np.EndsAt.UTC(),
		Order:    np.Order,
	}
	return svc.repo.CreateCoursePeriod(ctx, period)
}

func (svc *service) UpdateCoursePeriod(ctx context.Context, id string, up UpdateCoursePeriod) (CoursePeriod, error) {
	period, err := svc.repo.GetCoursePeriod(ctx, id)
	if err != nil {
		return CoursePeriod{}, err
	}
	if up.Label != nil {
		period.Label = *up.Label
	}
	if up.StartsAt != nil {
		period.StartsAt = up.StartsAt.UTC()
	}
	if up.EndsAt != nil {
		period.EndsAt = up.EndsAt.UTC()
	}
	if up.Order != nil {
		period.Order = *up.Order
	}
	if period.StartsAt.After(period.EndsAt) {
		return CoursePeriod{}, core.NewValidationError(errInvalidDateRange,
			core.FieldError{Field: "starts_at", Error: errInvalidDateRange.Error()})
	}
	return svc.repo.UpdateCoursePeriod(ctx, period)
}

func (svc *service) DeleteCoursePeriod(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCoursePeriod(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteCoursePeriod(ctx, id)
}

// Absence units

func (svc *service) CreateAbsenceUnit(ctx context.Context, na NewAbsenceUnit) (AbsenceUnit, error) {
	if err := svc.checkPeriodIDs(ctx, na.PeriodIDs); err != nil {
		return AbsenceUnit{}, err
	}
	return svc.repo.CreateAbsenceUnit(ctx, AbsenceUnit{Label: na.Label, PeriodIDs: na.PeriodIDs})
}

func (svc *service) UpdateAbsenceUnit(ctx context.Context, id string, ua UpdateAbsenceUnit) (AbsenceUnit, error) {
	unit, err := svc.repo.GetAbsenceUnit(ctx, id)
	if err != nil {
		return AbsenceUnit{}, err
	}
	if ua.Label != nil {
		unit.Label = *ua.Label
	}
	replaceLinks := ua.PeriodIDs != nil
	if replaceLinks {
		if err = svc.checkPeriodIDs(ctx, ua.PeriodIDs); err != nil {
			return AbsenceUnit{}, err
		}
		unit.PeriodIDs = ua.PeriodIDs
	}
	return svc.repo.UpdateAbsenceUnit(ctx, unit, replaceLinks)
}

func (svc *service) DeleteAbsenceUnit(ctx context.Context, id string) error {
	if _, err := svc.repo.GetAbsenceUnit(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteAbsenceUnit(ctx, id)
}

func (svc *service) checkPeriodIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	periods, err := svc.repo.QueryCoursePeriods(ctx)
	if err != nil {
		return errors.Wrap(err, "querying course periods")
	}
	known := make(map[string]bool, len(periods))
	for _, period := range periods {
		known[period.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return core.NewValidationError(errUnknownPeriod,
				core.FieldError{Field: "period_ids", Error: errUnknownPeriod.Error()})
		}
	}
	return nil
}

// Subject categories

func (svc *service) CreateSubjectCategory(ctx context.Context, nc NewSubjectCategory) (SubjectCategory, error) {
	return svc.repo.CreateSubjectCategory(ctx, SubjectCategory{Label: nc.Label, Order: nc.Order})
}

func (svc *service) UpdateSubjectCategory(ctx context.Context, id string, uc UpdateSubjectCategory) (SubjectCategory, error) {
	category, err := svc.repo.GetSubjectCategory(ctx, id)
	if err != nil {
		return SubjectCategory{}, err
	}
	if uc.Label != nil {
		category.Label = *uc.Label
	}
	if uc.Order != nil {
		category.Order = *uc.Order
	}
	return svc.repo.UpdateSubjectCategory(ctx, category)
}

func (svc *service) DeleteSubjectCategory(ctx context.Context, id string) error {
	if _, err := svc.repo.GetSubjectCategory(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteSubjectCategory(ctx, id)
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := svc.checkCategoryID(ctx, ns.CategoryID); err != nil {
		return Subject{}, err
	}
	subject := Subject{
		Label:           ns.Label,
		Weight:          ns.Weight,
		CategoryID:      null.StringFromPtr(ns.CategoryID),
		ValueType:       ns.ValueType,
		NumericMin:      null.Float64FromPtr(ns.NumericMin),
		NumericMax:      null.Float64FromPtr(ns.NumericMax),
		NumericDecimals: null.IntFromPtr(ns.NumericDecimals),
		LiteralScale:    ns.LiteralScale,
	}
	return svc.repo.CreateSubject(ctx, subject)
}

func (svc *service) UpdateSubject(ctx context.Context, id string, us UpdateSubject) (Subject, error) {
	subject, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}

	if us.Label != nil {
		subject.Label = *us.Label
	}
	if us.Weight != nil {
		subject.Weight = *us.Weight
	}
	if us.CategoryID != nil {
		if err = svc.checkCategoryID(ctx, us.CategoryID); err != nil {
			return Subject{}, err
		}
		subject.CategoryID = null.StringFrom(*us.CategoryID)
	}
	if us.ValueType != nil {
		subject.ValueType = *us.ValueType
	}
	if us.NumericMin != nil {
		subject.NumericMin = null.Float64From(*us.NumericMin)
	}
	if us.NumericMax != nil {
		subject.NumericMax = null.Float64From(*us.NumericMax)
	}
	if us.NumericDecimals != nil {
		subject.NumericDecimals = null.IntFrom(*us.NumericDecimals)
	}
	if us.LiteralScale != nil {
		subject.LiteralScale = us.LiteralScale
	}
	if subject.ValueType == ValueTypeNumeric {
		subject.LiteralScale = nil
	}

	// the merged subject must still satisfy the value-type rules
	if err = validateGrading(
		subject.ValueType,
		subject.NumericMin.Ptr(), subject.NumericMax.Ptr(),
		subject.NumericDecimals.Ptr(),
		subject.LiteralScale,
	); err != nil {
		return Subject{}, err
	}
	return svc.repo.UpdateSubject(ctx, subject)
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	if _, err := svc.repo.GetSubject(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *service) checkCategoryID(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	if _, err := svc.repo.GetSubjectCategory(ctx, *id); err != nil {
		if errors.Cause(err) == ErrCategoryNotFound {
			return core.NewValidationError(errUnknownCategory,
				core.FieldError{Field: "category_id", Error: errUnknownCategory.Error()})
		}
		return err
	}
	return nil
}

// Settings

func (svc *service) SaveSettings(ctx context.Context, up UpsertSchoolSettings) (SchoolSettings, error) {
	settings, _, err := svc.repo.GetSchoolSettings(ctx)
	if err != nil {
		return SchoolSettings{}, errors.Wrap(err, "querying school settings")
	}
	settings.SchoolName = up.SchoolName
	return svc.repo.UpsertSchoolSettings(ctx, settings)
}
