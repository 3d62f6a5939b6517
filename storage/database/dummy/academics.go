package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/academics"
)

type academicsRepository struct {
	db *academicsTables
}

var _ academics.Repository = (*academicsRepository)(nil) // interface compliance check

func NewAcademicsRepository(db *DB) *academicsRepository {
	return &academicsRepository{db: db.academics}
}

// Levels

func (repo *academicsRepository) QueryLevels(ctx context.Context, exec ...core.DBExecutor) ([]academics.Level, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	levels := make([]academics.Level, 0, len(repo.db.levels))
	for _, level := range repo.db.levels {
		levels = append(levels, *level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Order < levels[j].Order })
	return levels, nil
}

func (repo *academicsRepository) GetLevel(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Level, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if level, ok := repo.db.levels[id]; ok {
		return *level, nil
	}
	return academics.Level{}, academics.ErrLevelNotFound
}

func (repo *academicsRepository) CreateLevel(ctx context.Context, level academics.Level, exec ...core.DBExecutor) (academics.Level, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	level.ID = uuid.New().String()
	repo.db.levels[level.ID] = &level
	return level, nil
}

func (repo *academicsRepository) UpdateLevel(ctx context.Context, level academics.Level, exec ...core.DBExecutor) (academics.Level, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.levels[level.ID]; !ok {
		return academics.Level{}, academics.ErrLevelNotFound
	}
	repo.db.levels[level.ID] = &level
	return level, nil
}

func (repo *academicsRepository) DeleteLevel(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.levels[id]; !ok {
		return academics.ErrLevelNotFound
	}
	if repo.db.levelRefs[id] > 0 {
		return academics.ErrLevelInUse
	}
	delete(repo.db.levels, id)
	return nil
}

// Course periods

func (repo *academicsRepository) QueryCoursePeriods(ctx context.Context, exec ...core.DBExecutor) ([]academics.CoursePeriod, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	periods := make([]academics.CoursePeriod, 0, len(repo.db.periods))
	for _, period := range repo.db.periods {
		periods = append(periods, *period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Order < periods[j].Order })
	return periods, nil
}

func (repo *academicsRepository) GetCoursePeriod(ctx context.Context, id string, exec ...core.DBExecutor) (academics.CoursePeriod, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if period, ok := repo.db.periods[id]; ok {
		return *period, nil
	}
	return academics.CoursePeriod{}, academics.ErrCoursePeriodNotFound
}

func (repo *academicsRepository) CreateCoursePeriod(ctx context.Context, period academics.CoursePeriod, exec ...core.DBExecutor) (academics.CoursePeriod, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	period.ID = uuid.New().String()
	repo.db.periods[period.ID] = &period
	return period, nil
}

func (repo *academicsRepository) UpdateCoursePeriod(ctx context.Context, period academics.CoursePeriod, exec ...core.DBExecutor) (academics.CoursePeriod, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.periods[period.ID]; !ok {
		return academics.CoursePeriod{}, academics.ErrCoursePeriodNotFound
	}
	repo.db.periods[period.ID] = &period
	return period, nil
}

func (repo *academicsRepository) DeleteCoursePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.periods[id]; !ok {
		return academics.ErrCoursePeriodNotFound
	}
	delete(repo.db.periods, id)
	for _, unit := range repo.db.units {
		unit.PeriodIDs = removeID(unit.PeriodIDs, id)
	}
	return nil
}

// Absence units

func (repo *academicsRepository) QueryAbsenceUnits(ctx context.Context, exec ...core.DBExecutor) ([]academics.AbsenceUnit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	units := make([]academics.AbsenceUnit, 0, len(repo.db.units))
	for _, unit := range repo.db.units {
		units = append(units, *unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Label < units[j].Label })
	return units, nil
}

func (repo *academicsRepository) GetAbsenceUnit(ctx context.Context, id string, exec ...core.DBExecutor) (academics.AbsenceUnit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if unit, ok := repo.db.units[id]; ok {
		return *unit, nil
	}
	return academics.AbsenceUnit{}, academics.ErrAbsenceUnitNotFound
}

func (repo *academicsRepository) CreateAbsenceUnit(ctx context.Context, unit academics.AbsenceUnit, exec ...core.DBExecutor) (academics.AbsenceUnit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	unit.ID = uuid.New().String()
	if unit.PeriodIDs == nil {
		unit.PeriodIDs = []string{}
	}
	repo.db.units[unit.ID] = &unit
	return unit, nil
}

func (repo *academicsRepository) UpdateAbsenceUnit(ctx context.Context, unit academics.AbsenceUnit, replaceLinks bool, exec ...core.DBExecutor) (academics.AbsenceUnit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.units[unit.ID]
	if !ok {
		return academics.AbsenceUnit{}, academics.ErrAbsenceUnitNotFound
	}
	if !replaceLinks {
		unit.PeriodIDs = existing.PeriodIDs
	}
	repo.db.units[unit.ID] = &unit
	return unit, nil
}

func (repo *academicsRepository) DeleteAbsenceUnit(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.units[id]; !ok {
		return academics.ErrAbsenceUnitNotFound
	}
	delete(repo.db.units, id)
	return nil
}

// Subject categories

func (repo *academicsRepository) QuerySubjectCategories(ctx context.Context, exec ...core.DBExecutor) ([]academics.SubjectCategory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	categories := make([]academics.SubjectCategory, 0, len(repo.db.categories))
	for _, category := range repo.db.categories {
		categories = append(categories, *category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Order < categories[j].Order })
	return categories, nil
}

func (repo *academicsRepository) GetSubjectCategory(ctx context.Context, id string, exec ...core.DBExecutor) (academics.SubjectCategory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if category, ok := repo.db.categories[id]; ok {
		return *category, nil
	}
	return academics.SubjectCategory{}, academics.ErrCategoryNotFound
}

func (repo *academicsRepository) CreateSubjectCategory(ctx context.Context, category academics.SubjectCategory, exec ...core.DBExecutor) (academics.SubjectCategory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	category.ID = uuid.New().String()
	repo.db.categories[category.ID] = &category
	return category, nil
}

func (repo *academicsRepository) UpdateSubjectCategory(ctx context.Context, category academics.SubjectCategory, exec ...core.DBExecutor) (academics.SubjectCategory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[category.ID]; !ok {
		return academics.SubjectCategory{}, academics.ErrCategoryNotFound
	}
	repo.db.categories[category.ID] = &category
	return category, nil
}

func (repo *academicsRepository) DeleteSubjectCategory(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return academics.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	for _, subject := range repo.db.subjects {
		if subject.CategoryID.String == id {
			subject.CategoryID.Valid = false
			subject.CategoryID.String = ""
			subject.Category = nil
		}
	}
	return nil
}

// Subjects

func (repo *academicsRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]academics.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]academics.Subject, 0, len(repo.db.subjects))
	for _, subject := range repo.db.subjects {
		subjects = append(subjects, repo.withCategory(*subject))
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Label < subjects[j].Label })
	return subjects, nil
}

func (repo *academicsRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if subject, ok := repo.db.subjects[id]; ok {
		return repo.withCategory(*subject), nil
	}
	return academics.Subject{}, academics.ErrSubjectNotFound
}

func (repo *academicsRepository) CreateSubject(ctx context.Context, subject academics.Subject, exec ...core.DBExecutor) (academics.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	subject.ID = uuid.New().String()
	repo.db.subjects[subject.ID] = &subject
	return repo.withCategory(subject), nil
}

func (repo *academicsRepository) UpdateSubject(ctx context.Context, subject academics.Subject, exec ...core.DBExecutor) (academics.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[subject.ID]; !ok {
		return academics.Subject{}, academics.ErrSubjectNotFound
	}
	repo.db.subjects[subject.ID] = &subject
	return repo.withCategory(subject), nil
}

func (repo *academicsRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return academics.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	return nil
}

func (repo *academicsRepository) withCategory(subject academics.Subject) academics.Subject {
	if subject.CategoryID.Valid {
		if category, ok := repo.db.categories[subject.CategoryID.String]; ok {
			cat := *category
			subject.Category = &cat
		}
	}
	return subject
}

// Settings

func (repo *academicsRepository) GetSchoolSettings(ctx context.Context, exec ...core.DBExecutor) (academics.SchoolSettings, bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.settings == nil {
		return academics.SchoolSettings{}, false, nil
	}
	return *repo.db.settings, true, nil
}

func (repo *academicsRepository) UpsertSchoolSettings(ctx context.Context, settings academics.SchoolSettings, exec ...core.DBExecutor) (academics.SchoolSettings, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}
	repo.db.settings = &settings
	return settings, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
