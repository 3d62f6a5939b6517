package schoolyear

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("school year not found")
	ErrPeriodNotFound = errors.New("evaluation period not found")

	errInvalidDateRange = errors.New("starts_at must be before or equal to ends_at")
)

type (
	Repository interface {
		// QuerySchoolYears returns all years with relations, ordered by
		// StartsAt descending; each year's periods ascend by StartsAt.
		QuerySchoolYears(ctx context.Context, exec ...core.DBExecutor) ([]SchoolYear, error)
		GetSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) (SchoolYear, error)
		// FindCurrentSchoolYear returns the year whose range contains the
		// reference instant, preferring the latest StartsAt.
		FindCurrentSchoolYear(ctx context.Context, reference time.Time, exec ...core.DBExecutor) (SchoolYear, error)
		CreateSchoolYear(ctx context.Context, year SchoolYear, levelIDs []string, exec ...core.DBExecutor) (SchoolYear, error)
		CreateEvaluationPeriod(ctx context.Context, period EvaluationPeriod, exec ...core.DBExecutor) (EvaluationPeriod, error)
		GetEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (EvaluationPeriod, error)
		DeleteEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) error

		QueryLevelOptions(ctx context.Context, exec ...core.DBExecutor) ([]LevelOption, error)
		// QueryAbsenceUnitLabels returns absence unit labels, ascending.
		QueryAbsenceUnitLabels(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
	}

	Service interface {
		List(ctx context.Context) ([]YearView, error)
		GetByID(ctx context.Context, id string) (YearView, error)
		// Current resolves the year containing the reference instant.
		Current(ctx context.Context, reference time.Time) (YearView, error)
		Create(ctx context.Context, ny NewSchoolYear) (YearView, error)
		AddPeriod(ctx context.Context, yearID string, np NewEvaluationPeriod) (YearView, error)
		RemovePeriod(ctx context.Context, yearID, periodID string) (YearView, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) List(ctx context.Context) ([]YearView, error) {
	years, err := svc.repo.QuerySchoolYears(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying school years")
	}
	units, err := svc.repo.QueryAbsenceUnitLabels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying absence units")
	}

	// one reference instant for the whole listing
	reference := time.Now().UTC()

	views := make([]YearView, 0, len(years))
	for _, year := range years {
		views = append(views, Serialize(year, units, reference))
	}
	return views, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (YearView, error) {
	return svc.getView(ctx, id, time.Now().UTC())
}

func (svc *service) Current(ctx context.Context, reference time.Time) (YearView, error) {
	year, err := svc.repo.FindCurrentSchoolYear(ctx, reference)
	if err != nil {
		return YearView{}, err
	}
	units, err := svc.repo.QueryAbsenceUnitLabels(ctx)
	if err != nil {
		return YearView{}, errors.Wrap(err, "querying absence units")
	}
	return Serialize(year, units, reference), nil
}

func (svc *service) Create(ctx context.Context, ny NewSchoolYear) (YearView, error) {
	options, err := svc.repo.QueryLevelOptions(ctx)
	if err != nil {
		return YearView{}, errors.Wrap(err, "querying levels")
	}

	year := SchoolYear{
		Label:    ny.Label,
		StartsAt: ny.StartsAt.UTC(),
		EndsAt:   ny.EndsAt.UTC(),
	}
	created, err := svc.repo.CreateSchoolYear(ctx, year, resolveLevelIDs(ny.Levels, options))
	if err != nil {
		return YearView{}, errors.Wrap(err, "creating school year")
	}
	return svc.getView(ctx, created.ID, time.Now().UTC())
}

func (svc *service) AddPeriod(ctx context.Context, yearID string, np NewEvaluationPeriod) (YearView, error) {
	if _, err := svc.repo.GetSchoolYear(ctx, yearID); err != nil {
		return YearView{}, err
	}

	period := EvaluationPeriod{
		SchoolYearID: yearID,
		Label:        np.Label,
		StartsAt:     np.StartsAt.UTC(),
		EndsAt:       np.EndsAt.UTC(),
	}
	if _, err := svc.repo.CreateEvaluationPeriod(ctx, period); err != nil {
		return YearView{}, errors.Wrap(err, "creating evaluation period")
	}
	return svc.getView(ctx, yearID, time.Now().UTC())
}

func (svc *service) RemovePeriod(ctx context.Context, yearID, periodID string) (YearView, error) {
	period, err := svc.repo.GetEvaluationPeriod(ctx, periodID)
	if err != nil {
		if errors.Cause(err) == ErrPeriodNotFound {
			return YearView{}, ErrPeriodNotFound
		}
		return YearView{}, err
	}
	// a period outside the referenced year is reported as missing
	if period.SchoolYearID != yearID {
		return YearView{}, ErrPeriodNotFound
	}

	if err = svc.repo.DeleteEvaluationPeriod(ctx, periodID); err != nil {
		return YearView{}, errors.Wrap(err, "deleting evaluation period")
	}
	return svc.getView(ctx, yearID, time.Now().UTC())
}

func (svc *service) getView(ctx context.Context, id string, reference time.Time) (YearView, error) {
	year, err := svc.repo.GetSchoolYear(ctx, id)
	if err != nil {
		return YearView{}, err
	}
	units, err := svc.repo.QueryAbsenceUnitLabels(ctx)
	if err != nil {
		return YearView{}, errors.Wrap(err, "querying absence units")
	}
	return Serialize(year, units, reference), nil
}

// resolveLevelIDs maps level references (IDs or case-insensitive labels) to
// level IDs, dropping blanks, duplicates and unknown references.
func resolveLevelIDs(refs []string, options []LevelOption) []string {
	byID := make(map[string]string, len(options))
	byLabel := make(map[string]string, len(options))
	for _, opt := range options {
		byID[opt.ID] = opt.ID
		byLabel[strings.ToLower(strings.TrimSpace(opt.Label))] = opt.ID
	}

	seen := make(map[string]bool, len(refs))
	ids := make([]string, 0, len(refs))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, ok := byID[ref]; ok {
			add(id)
			continue
		}
		if id, ok := byLabel[strings.ToLower(ref)]; ok {
			add(id)
		}
	}
	return ids
}
