package schoolyear

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	years   []SchoolYear
	periods []EvaluationPeriod
	levels  []LevelOption
	units   []string
}

var _ Repository = (*fakeRepo)(nil)

func (r *fakeRepo) QuerySchoolYears(ctx context.Context, exec ...core.DBExecutor) ([]SchoolYear, error) {
	years := make([]SchoolYear, len(r.years))
	for i, year := range r.years {
		years[i] = r.withRelations(year)
	}
	return years, nil
}

func (r *fakeRepo) GetSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) (SchoolYear, error) {
	for _, year := range r.years {
		if year.ID == id {
			return r.withRelations(year), nil
		}
	}
	return SchoolYear{}, ErrNotFound
}

func (r *fakeRepo) FindCurrentSchoolYear(ctx context.Context, reference time.Time, exec ...core.DBExecutor) (SchoolYear, error) {
	for _, year := range r.years {
		if !reference.Before(year.StartsAt) && !reference.After(year.EndsAt) {
			return r.withRelations(year), nil
		}
	}
	return SchoolYear{}, ErrNotFound
}

func (r *fakeRepo) CreateSchoolYear(ctx context.Context, year SchoolYear, levelIDs []string, exec ...core.DBExecutor) (SchoolYear, error) {
	year.ID = uuid.New().String()
	for _, id := range levelIDs {
		for _, opt := range r.levels {
			if opt.ID == id {
				year.Levels = append(year.Levels, LevelRef{Label: opt.Label})
			}
		}
	}
	r.years = append(r.years, year)
	return year, nil
}

func (r *fakeRepo) CreateEvaluationPeriod(ctx context.Context, period EvaluationPeriod, exec ...core.DBExecutor) (EvaluationPeriod, error) {
	period.ID = uuid.New().String()
	r.periods = append(r.periods, period)
	return period, nil
}

func (r *fakeRepo) GetEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (EvaluationPeriod, error) {
	for _, period := range r.periods {
		if period.ID == id {
			return period, nil
		}
	}
	return EvaluationPeriod{}, ErrPeriodNotFound
}

func (r *fakeRepo) DeleteEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	for i, period := range r.periods {
		if period.ID == id {
			r.periods = append(r.periods[:i], r.periods[i+1:]...)
			return nil
		}
	}
	return ErrPeriodNotFound
}

func (r *fakeRepo) QueryLevelOptions(ctx context.Context, exec ...core.DBExecutor) ([]LevelOption, error) {
	return r.levels, nil
}

func (r *fakeRepo) QueryAbsenceUnitLabels(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	return r.units, nil
}

func (r *fakeRepo) withRelations(year SchoolYear) SchoolYear {
	periods := make([]EvaluationPeriod, 0)
	for _, period := range r.periods {
		if period.SchoolYearID == year.ID {
			periods = append(periods, period)
		}
	}
	// ascending StartsAt, matching the store contract
	for i := 1; i < len(periods); i++ {
		for j := i; j > 0 && periods[j].StartsAt.Before(periods[j-1].StartsAt); j-- {
			periods[j], periods[j-1] = periods[j-1], periods[j]
		}
	}
	year.Periods = periods
	return year
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{
		levels: []LevelOption{
			{ID: "lvl-1", Label: "1ère année"},
			{ID: "lvl-2", Label: "2ème année"},
		},
		units: []string{"Heure"},
	}
	svc := NewService(repo)

	view, err := svc.Create(ctx, NewSchoolYear{
		Label:    "2026-2027",
		StartsAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
		// ID, label with spaces and different casing, and an unknown ref
		Levels: []string{"lvl-1", "  2ÈME ANNÉE ", "lvl-1", "nope"},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, YearUpcoming, view.Status)
	assert.Equal(t, []string{"1ère année", "2ème année"}, view.Levels)
	assert.Equal(t, []string{"Heure"}, view.AbsenceUnits)
	assert.Empty(t, view.Periods)
}

func TestServicePeriods(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{
		years: []SchoolYear{{
			ID:       "y1",
			Label:    "2025-2026",
			StartsAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC),
		}},
	}
	svc := NewService(repo)

	view, err := svc.AddPeriod(ctx, "y1", NewEvaluationPeriod{
		Label:    "Trimestre 2",
		StartsAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 3, 13, 23, 59, 59, 0, time.UTC),
	})
	assert.NoError(t, err)
	if assert.Len(t, view.Periods, 1) {
		assert.Equal(t, 1, view.Periods[0].Order)
	}

	// an earlier period takes order 1 and renumbers the first one
	view, err = svc.AddPeriod(ctx, "y1", NewEvaluationPeriod{
		Label:    "Trimestre 1",
		StartsAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 11, 28, 23, 59, 59, 0, time.UTC),
	})
	assert.NoError(t, err)
	if assert.Len(t, view.Periods, 2) {
		assert.Equal(t, "Trimestre 1", view.Periods[0].Label)
		assert.Equal(t, 1, view.Periods[0].Order)
		assert.Equal(t, "Trimestre 2", view.Periods[1].Label)
		assert.Equal(t, 2, view.Periods[1].Order)
	}

	_, err = svc.AddPeriod(ctx, "unknown", NewEvaluationPeriod{Label: "T"})
	assert.Equal(t, ErrNotFound, err)

	periodID := view.Periods[0].ID
	view, err = svc.RemovePeriod(ctx, "y1", periodID)
	assert.NoError(t, err)
	if assert.Len(t, view.Periods, 1) {
		assert.Equal(t, "Trimestre 2", view.Periods[0].Label)
		assert.Equal(t, 1, view.Periods[0].Order)
	}

	// a period belonging to another year is reported as missing
	repo.years = append(repo.years, SchoolYear{ID: "y2"})
	_, err = svc.RemovePeriod(ctx, "y2", view.Periods[0].ID)
	assert.Equal(t, ErrPeriodNotFound, err)

	_, err = svc.RemovePeriod(ctx, "y1", "unknown")
	assert.Equal(t, ErrPeriodNotFound, err)
}

func TestServiceCurrent(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{
		years: []SchoolYear{{
			ID:       "y1",
			Label:    "2025-2026",
			StartsAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC),
		}},
	}
	svc := NewService(repo)

	view, err := svc.Current(ctx, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, "y1", view.ID)
	assert.Equal(t, YearActive, view.Status)

	_, err = svc.Current(ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, ErrNotFound, err)
}

func TestNewSchoolYearValidate(t *testing.T) {
	validate := newTestValidator(t)

	ny := NewSchoolYear{
		Label:    "  2026-2027 ",
		StartsAt: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	err := ny.Validate(validate)
	if assert.Error(t, err) {
		vErr, ok := err.(*core.ValidationError)
		if assert.True(t, ok) {
			assert.Equal(t, "starts_at", vErr.Fields[0].Field)
		}
	}
	assert.Equal(t, "2026-2027", ny.Label)

	ny.StartsAt, ny.EndsAt = ny.EndsAt, ny.StartsAt
	assert.NoError(t, ny.Validate(validate))

	assert.Error(t, (&NewSchoolYear{StartsAt: ny.StartsAt, EndsAt: ny.EndsAt}).Validate(validate))
}
