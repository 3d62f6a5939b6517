package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/schoolyear"
)

type schoolYearRepository struct {
	db     *schoolYearTable
	config *academicsTables
}

var _ schoolyear.Repository = (*schoolYearRepository)(nil) // interface compliance check

func NewSchoolYearRepository(db *DB) *schoolYearRepository {
	return &schoolYearRepository{db: db.year, config: db.academics}
}

func (repo *schoolYearRepository) withRelations(year schoolyear.SchoolYear) schoolyear.SchoolYear {
	year.Levels = nil
	for _, levelID := range repo.db.yearLevels[year.ID] {
		if level, ok := repo.config.levels[levelID]; ok {
			year.Levels = append(year.Levels, schoolyear.LevelRef{Label: level.Label, Order: level.Order})
		}
	}

	year.Periods = nil
	for _, period := range repo.db.periods {
		if period.SchoolYearID == year.ID {
			year.Periods = append(year.Periods, *period)
		}
	}
	sort.Slice(year.Periods, func(i, j int) bool {
		return year.Periods[i].StartsAt.Before(year.Periods[j].StartsAt)
	})

	// archived classes and groups are excluded from the counts
	year.ClassesCount = 0
	year.GroupsCount = 0
	for _, class := range repo.db.classes {
		if class.SchoolYearID != year.ID {
			continue
		}
		if !class.Archived {
			year.ClassesCount++
		}
		for _, group := range repo.db.groups {
			if group.SchoolClassID == class.ID && !group.Archived {
				year.GroupsCount++
			}
		}
	}
	return year
}

// AddSchoolClass records a class row under the given year.
func (db *DB) AddSchoolClass(yearID string, archived bool) string {
	db.year.Lock()
	defer db.year.Unlock()

	class := &schoolClass{ID: uuid.New().String(), SchoolYearID: yearID, Archived: archived}
	db.year.classes[class.ID] = class
	return class.ID
}

// AddSchoolGroup records a group row under the given class.
func (db *DB) AddSchoolGroup(classID string, archived bool) string {
	db.year.Lock()
	defer db.year.Unlock()

	group := &schoolGroup{ID: uuid.New().String(), SchoolClassID: classID, Archived: archived}
	db.year.groups[group.ID] = group
	return group.ID
}

func (repo *schoolYearRepository) QuerySchoolYears(ctx context.Context, exec ...core.DBExecutor) ([]schoolyear.SchoolYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.config.RLock()
	defer repo.config.RUnlock()

	years := make([]schoolyear.SchoolYear, 0, len(repo.db.years))
	for _, year := range repo.db.years {
		years = append(years, repo.withRelations(*year))
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartsAt.After(years[j].StartsAt) })
	return years, nil
}

func (repo *schoolYearRepository) GetSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.config.RLock()
	defer repo.config.RUnlock()

	if year, ok := repo.db.years[id]; ok {
		return repo.withRelations(*year), nil
	}
	return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
}

func (repo *schoolYearRepository) FindCurrentSchoolYear(ctx context.Context, reference time.Time, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.config.RLock()
	defer repo.config.RUnlock()

	var current *schoolyear.SchoolYear
	for _, year := range repo.db.years {
		if reference.Before(year.StartsAt) || reference.After(year.EndsAt) {
			continue
		}
		if current == nil || year.StartsAt.After(current.StartsAt) {
			current = year
		}
	}
	if current == nil {
		return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
	}
	return repo.withRelations(*current), nil
}

func (repo *schoolYearRepository) CreateSchoolYear(ctx context.Context, year schoolyear.SchoolYear, levelIDs []string, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.config.Lock()
	defer repo.config.Unlock()

	year.ID = uuid.New().String()
	year.UpdatedAt = time.Now().UTC()
	repo.db.years[year.ID] = &year
	repo.db.yearLevels[year.ID] = levelIDs
	for _, levelID := range levelIDs {
		repo.config.levelRefs[levelID]++
	}
	return year, nil
}

func (repo *schoolYearRepository) CreateEvaluationPeriod(ctx context.Context, period schoolyear.EvaluationPeriod, exec ...core.DBExecutor) (schoolyear.EvaluationPeriod, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	period.ID = uuid.New().String()
	repo.db.periods[period.ID] = &period
	return period, nil
}

func (repo *schoolYearRepository) GetEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (schoolyear.EvaluationPeriod, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if period, ok := repo.db.periods[id]; ok {
		return *period, nil
	}
	return schoolyear.EvaluationPeriod{}, schoolyear.ErrPeriodNotFound
}

func (repo *schoolYearRepository) DeleteEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.periods[id]; !ok {
		return schoolyear.ErrPeriodNotFound
	}
	delete(repo.db.periods, id)
	return nil
}

func (repo *schoolYearRepository) QueryLevelOptions(ctx context.Context, exec ...core.DBExecutor) ([]schoolyear.LevelOption, error) {
	repo.config.RLock()
	defer repo.config.RUnlock()

	options := make([]schoolyear.LevelOption, 0, len(repo.config.levels))
	for _, level := range repo.config.levels {
		options = append(options, schoolyear.LevelOption{ID: level.ID, Label: level.Label})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Label < options[j].Label })
	return options, nil
}

func (repo *schoolYearRepository) QueryAbsenceUnitLabels(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	repo.config.RLock()
	defer repo.config.RUnlock()

	labels := make([]string, 0, len(repo.config.units))
	for _, unit := range repo.config.units {
		labels = append(labels, unit.Label)
	}
	sort.Strings(labels)
	return labels, nil
}
