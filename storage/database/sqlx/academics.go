package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/academics"
)

type academicsRepository struct {
	db *sqlx.DB
}

var _ academics.Repository = (*academicsRepository)(nil) // interface compliance check

func NewAcademicsRepository(db *sqlx.DB) *academicsRepository {
	return &academicsRepository{db: db}
}

// Levels

func (repo *academicsRepository) QueryLevels(ctx context.Context, exec ...core.DBExecutor) ([]academics.Level, error) {
	var rows []struct {
		ID    string `db:"id"`
		Label string `db:"label"`
		Order int    `db:"ord"`
	}
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, `SELECT id, label, ord FROM level ORDER BY ord`)
	if err != nil {
		return nil, errors.Wrap(err, "querying levels")
	}
	levels := make([]academics.Level, 0, len(rows))
	for _, row := range rows {
		levels = append(levels, academics.Level(row))
	}
	return levels, nil
}

func (repo *academicsRepository) GetLevel(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Level, error) {
	var row struct {
		ID    string `db:"id"`
		Label string `db:"label"`
		Order int    `db:"ord"`
	}
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, `SELECT id, label, ord FROM level WHERE id = $1`, id)
	if err != nil {
		return academics.Level{}, trapNoRowsErr(err, academics.ErrLevelNotFound, "getting level")
	}
	return academics.Level(row), nil
}

func (repo *academicsRepository) CreateLevel(ctx context.Context, level academics.Level, exec ...core.DBExecutor) (academics.Level, error) {
	level.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO level (id, label, ord) VALUES ($1, $2, $3)`, level.ID, level.Label, level.Order)
	if err != nil {
		return academics.Level{}, errors.Wrap(err, "inserting level")
	}
	return level, nil
}

func (repo *academicsRepository) UpdateLevel(ctx context.Context, level academics.Level, exec ...core.DBExecutor) (academics.Level, error) {
	res, err := getExec(repo.db, exec).ExecContext(ctx,
		`UPDATE level SET label = $2, ord = $3 WHERE id = $1`, level.ID, level.Label, level.Order)
	if err != nil {
		return academics.Level{}, errors.Wrap(err, "updating level")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.Level{}, academics.ErrLevelNotFound
	}
	return level, nil
}

func (repo *academicsRepository) DeleteLevel(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := getExec(repo.db, exec)

	var referenced bool
	err := sqlx.GetContext(ctx, ex, &referenced, `
		SELECT EXISTS (SELECT 1 FROM school_year_level WHERE level_id = $1)
			OR EXISTS (SELECT 1 FROM school_class WHERE level_id = $1)`, id)
	if err != nil {
		return errors.Wrap(err, "checking level references")
	}
	if referenced {
		return academics.ErrLevelInUse
	}

	res, err := ex.ExecContext(ctx, `DELETE FROM level WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting level")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.ErrLevelNotFound
	}
	return nil
}

// Course periods

func (repo *academicsRepository) QueryCoursePeriods(ctx context.Context, exec ...core.DBExecutor) ([]academics.CoursePeriod, error) {
	var periods []academics.CoursePeriod
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &periods, `
		SELECT id, label, starts_at, ends_at, ord FROM course_period ORDER BY ord`)
	if err != nil {
		return nil, errors.Wrap(err, "querying course periods")
	}
	return periods, nil
}

func (repo *academicsRepository) GetCoursePeriod(ctx context.Context, id string, exec ...core.DBExecutor) (academics.CoursePeriod, error) {
	var period academics.CoursePeriod
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &period, `
		SELECT id, label, starts_at, ends_at, ord FROM course_period WHERE id = $1`, id)
	if err != nil {
		return academics.CoursePeriod{}, trapNoRowsErr(err, academics.ErrCoursePeriodNotFound, "getting course period")
	}
	return period, nil
}

func (repo *academicsRepository) CreateCoursePeriod(ctx context.Context, period academics.CoursePeriod, exec ...core.DBExecutor) (academics.CoursePeriod, error) {
	period.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx, `
		INSERT INTO course_period (id, label, starts_at, ends_at, ord) VALUES ($1, $2, $3, $4, $5)`,
		period.ID, period.Label, period.StartsAt.UTC(), period.EndsAt.UTC(), period.Order)
	if err != nil {
		return academics.CoursePeriod{}, errors.Wrap(err, "inserting course period")
	}
	return period, nil
}

func (repo *academicsRepository) UpdateCoursePeriod(ctx context.Context, period academics.CoursePeriod, exec ...core.DBExecutor) (academics.CoursePeriod, error) {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `
		UPDATE course_period SET label = $2, starts_at = $3, ends_at = $4, ord = $5 WHERE id = $1`,
		period.ID, period.Label, period.StartsAt.UTC(), period.EndsAt.UTC(), period.Order)
	if err != nil {
		return academics.CoursePeriod{}, errors.Wrap(err, "updating course period")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.CoursePeriod{}, academics.ErrCoursePeriodNotFound
	}
	return period, nil
}

func (repo *academicsRepository) DeleteCoursePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM course_period WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course period")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.ErrCoursePeriodNotFound
	}
	return nil
}

// Absence units

func (repo *academicsRepository) QueryAbsenceUnits(ctx context.Context, exec ...core.DBExecutor) ([]academics.AbsenceUnit, error) {
	ex := getExec(repo.db, exec)

	var rows []struct {
		ID    string `db:"id"`
		Label string `db:"label"`
	}
	if err := sqlx.SelectContext(ctx, ex, &rows, `SELECT id, label FROM absence_unit ORDER BY label`); err != nil {
		return nil, errors.Wrap(err, "querying absence units")
	}

	units := make([]academics.AbsenceUnit, 0, len(rows))
	index := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for i, row := range rows {
		units = append(units, academics.AbsenceUnit{ID: row.ID, Label: row.Label, PeriodIDs: []string{}})
		index[row.ID] = i
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return units, nil
	}

	var links []struct {
		UnitID   string `db:"absence_unit_id"`
		PeriodID string `db:"course_period_id"`
	}
	err := sqlx.SelectContext(ctx, ex, &links, `
		SELECT absence_unit_id, course_period_id FROM absence_unit_period
		WHERE absence_unit_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying absence unit links")
	}
	for _, link := range links {
		i := index[link.UnitID]
		units[i].PeriodIDs = append(units[i].PeriodIDs, link.PeriodID)
	}
	return units, nil
}

func (repo *academicsRepository) GetAbsenceUnit(ctx context.Context, id string, exec ...core.DBExecutor) (academics.AbsenceUnit, error) {
	ex := getExec(repo.db, exec)

	var row struct {
		ID    string `db:"id"`
		Label string `db:"label"`
	}
	if err := sqlx.GetContext(ctx, ex, &row, `SELECT id, label FROM absence_unit WHERE id = $1`, id); err != nil {
		return academics.AbsenceUnit{}, trapNoRowsErr(err, academics.ErrAbsenceUnitNotFound, "getting absence unit")
	}

	unit := academics.AbsenceUnit{ID: row.ID, Label: row.Label, PeriodIDs: []string{}}
	err := sqlx.SelectContext(ctx, ex, &unit.PeriodIDs, `
		SELECT course_period_id FROM absence_unit_period WHERE absence_unit_id = $1`, id)
	if err != nil {
		return academics.AbsenceUnit{}, errors.Wrap(err, "querying absence unit links")
	}
	return unit, nil
}

func (repo *academicsRepository) CreateAbsenceUnit(ctx context.Context, unit academics.AbsenceUnit, exec ...core.DBExecutor) (academics.AbsenceUnit, error) {
	unit.ID = uuid.New().String()
	err := repo.inTx(ctx, exec, func(ex sqlx.ExtContext) error {
		if _, err := ex.ExecContext(ctx, `INSERT INTO absence_unit (id, label) VALUES ($1, $2)`, unit.ID, unit.Label); err != nil {
			return errors.Wrap(err, "inserting absence unit")
		}
		return insertUnitLinks(ctx, ex, unit.ID, unit.PeriodIDs)
	})
	if err != nil {
		return academics.AbsenceUnit{}, err
	}
	return unit, nil
}

func (repo *academicsRepository) UpdateAbsenceUnit(ctx context.Context, unit academics.AbsenceUnit, replaceLinks bool, exec ...core.DBExecutor) (academics.AbsenceUnit, error) {
	err := repo.inTx(ctx, exec, func(ex sqlx.ExtContext) error {
		res, err := ex.ExecContext(ctx, `UPDATE absence_unit SET label = $2 WHERE id = $1`, unit.ID, unit.Label)
		if err != nil {
			return errors.Wrap(err, "updating absence unit")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return academics.ErrAbsenceUnitNotFound
		}
		if !replaceLinks {
			return nil
		}
		if _, err = ex.ExecContext(ctx, `DELETE FROM absence_unit_period WHERE absence_unit_id = $1`, unit.ID); err != nil {
			return errors.Wrap(err, "clearing absence unit links")
		}
		return insertUnitLinks(ctx, ex, unit.ID, unit.PeriodIDs)
	})
	if err != nil {
		return academics.AbsenceUnit{}, err
	}
	return unit, nil
}

func (repo *academicsRepository) DeleteAbsenceUnit(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM absence_unit WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting absence unit")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.ErrAbsenceUnitNotFound
	}
	return nil
}

func insertUnitLinks(ctx context.Context, ex sqlx.ExtContext, unitID string, periodIDs []string) error {
	for _, periodID := range periodIDs {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO absence_unit_period (absence_unit_id, course_period_id) VALUES ($1, $2)`,
			unitID, periodID)
		if err != nil {
			return errors.Wrap(err, "linking absence unit period")
		}
	}
	return nil
}

// Subject categories

func (repo *academicsRepository) QuerySubjectCategories(ctx context.Context, exec ...core.DBExecutor) ([]academics.SubjectCategory, error) {
	var categories []academics.SubjectCategory
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &categories, `
		SELECT id, label, ord FROM subject_category ORDER BY ord`)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject categories")
	}
	return categories, nil
}

func (repo *academicsRepository) GetSubjectCategory(ctx context.Context, id string, exec ...core.DBExecutor) (academics.SubjectCategory, error) {
	var category academics.SubjectCategory
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &category, `
		SELECT id, label, ord FROM subject_category WHERE id = $1`, id)
	if err != nil {
		return academics.SubjectCategory{}, trapNoRowsErr(err, academics.ErrCategoryNotFound, "getting subject category")
	}
	return category, nil
}

func (repo *academicsRepository) CreateSubjectCategory(ctx context.Context, category academics.SubjectCategory, exec ...core.DBExecutor) (academics.SubjectCategory, error) {
	category.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx,
		`INSERT INTO subject_category (id, label, ord) VALUES ($1, $2, $3)`,
		category.ID, category.Label, category.Order)
	if err != nil {
		return academics.SubjectCategory{}, errors.Wrap(err, "inserting subject category")
	}
	return category, nil
}

func (repo *academicsRepository) UpdateSubjectCategory(ctx context.Context, category academics.SubjectCategory, exec ...core.DBExecutor) (academics.SubjectCategory, error) {
	res, err := getExec(repo.db, exec).ExecContext(ctx,
		`UPDATE subject_category SET label = $2, ord = $3 WHERE id = $1`,
		category.ID, category.Label, category.Order)
	if err != nil {
		return academics.SubjectCategory{}, errors.Wrap(err, "updating subject category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.SubjectCategory{}, academics.ErrCategoryNotFound
	}
	return category, nil
}

func (repo *academicsRepository) DeleteSubjectCategory(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM subject_category WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting subject category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.ErrCategoryNotFound
	}
	return nil
}

// Subjects

type subjectRow struct {
	ID              string       `db:"id"`
	Label           string       `db:"label"`
	Weight          float64      `db:"weight"`
	CategoryID      null.String  `db:"category_id"`
	ValueType       string       `db:"value_type"`
	NumericMin      null.Float64 `db:"numeric_min"`
	NumericMax      null.Float64 `db:"numeric_max"`
	NumericDecimals null.Int     `db:"numeric_decimals"`
	LiteralScale    null.JSON    `db:"literal_scale"`

	CategoryLabel null.String `db:"category_label"`
	CategoryOrder null.Int    `db:"category_ord"`
}

func (r subjectRow) domain() (academics.Subject, error) {
	subject := academics.Subject{
		ID:              r.ID,
		Label:           r.Label,
		Weight:          r.Weight,
		CategoryID:      r.CategoryID,
		ValueType:       academics.ValueType(r.ValueType),
		NumericMin:      r.NumericMin,
		NumericMax:      r.NumericMax,
		NumericDecimals: r.NumericDecimals,
	}
	if r.LiteralScale.Valid {
		if err := json.Unmarshal(r.LiteralScale.JSON, &subject.LiteralScale); err != nil {
			return academics.Subject{}, errors.Wrap(err, "decoding literal scale")
		}
	}
	if r.CategoryID.Valid {
		subject.Category = &academics.SubjectCategory{
			ID:    r.CategoryID.String,
			Label: r.CategoryLabel.String,
			Order: r.CategoryOrder.Int,
		}
	}
	return subject, nil
}

const subjectQuery = `
	SELECT s.id, s.label, s.weight, s.category_id, s.value_type,
		s.numeric_min, s.numeric_max, s.numeric_decimals, s.literal_scale,
		c.label AS category_label, c.ord AS category_ord
	FROM subject s
	LEFT JOIN subject_category c ON c.id = s.category_id`

func (repo *academicsRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]academics.Subject, error) {
	var rows []subjectRow
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, subjectQuery+` ORDER BY s.label`)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]academics.Subject, 0, len(rows))
	for _, row := range rows {
		subject, err := row.domain()
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

func (repo *academicsRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academics.Subject, error) {
	var row subjectRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, subjectQuery+` WHERE s.id = $1`, id)
	if err != nil {
		return academics.Subject{}, trapNoRowsErr(err, academics.ErrSubjectNotFound, "getting subject")
	}
	return row.domain()
}

func (repo *academicsRepository) CreateSubject(ctx context.Context, subject academics.Subject, exec ...core.DBExecutor) (academics.Subject, error) {
	subject.ID = uuid.New().String()
	scale, err := marshalScale(subject.LiteralScale)
	if err != nil {
		return academics.Subject{}, err
	}
	_, err = getExec(repo.db, exec).ExecContext(ctx, `
		INSERT INTO subject (id, label, weight, category_id, value_type,
			numeric_min, numeric_max, numeric_decimals, literal_scale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		subject.ID, subject.Label, subject.Weight, subject.CategoryID, string(subject.ValueType),
		subject.NumericMin, subject.NumericMax, subject.NumericDecimals, scale)
	if err != nil {
		return academics.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return repo.GetSubject(ctx, subject.ID, exec...)
}

func (repo *academicsRepository) UpdateSubject(ctx context.Context, subject academics.Subject, exec ...core.DBExecutor) (academics.Subject, error) {
	scale, err := marshalScale(subject.LiteralScale)
	if err != nil {
		return academics.Subject{}, err
	}
	res, err := getExec(repo.db, exec).ExecContext(ctx, `
		UPDATE subject SET label = $2, weight = $3, category_id = $4, value_type = $5,
			numeric_min = $6, numeric_max = $7, numeric_decimals = $8, literal_scale = $9
		WHERE id = $1`,
		subject.ID, subject.Label, subject.Weight, subject.CategoryID, string(subject.ValueType),
		subject.NumericMin, subject.NumericMax, subject.NumericDecimals, scale)
	if err != nil {
		return academics.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.Subject{}, academics.ErrSubjectNotFound
	}
	return repo.GetSubject(ctx, subject.ID, exec...)
}

func (repo *academicsRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM subject WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academics.ErrSubjectNotFound
	}
	return nil
}

func marshalScale(scale []academics.LiteralGrade) (null.JSON, error) {
	if len(scale) == 0 {
		return null.JSON{}, nil
	}
	raw, err := json.Marshal(scale)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "encoding literal scale")
	}
	return null.JSONFrom(raw), nil
}

// Settings

func (repo *academicsRepository) GetSchoolSettings(ctx context.Context, exec ...core.DBExecutor) (academics.SchoolSettings, bool, error) {
	var settings academics.SchoolSettings
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &settings, `
		SELECT id, school_name FROM school_settings LIMIT 1`)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return academics.SchoolSettings{}, false, nil
		}
		return academics.SchoolSettings{}, false, errors.Wrap(err, "getting school settings")
	}
	return settings, true, nil
}

func (repo *academicsRepository) UpsertSchoolSettings(ctx context.Context, settings academics.SchoolSettings, exec ...core.DBExecutor) (academics.SchoolSettings, error) {
	ex := getExec(repo.db, exec)
	if settings.ID == "" {
		settings.ID = uuid.New().String()
		_, err := ex.ExecContext(ctx, `INSERT INTO school_settings (id, school_name) VALUES ($1, $2)`,
			settings.ID, settings.SchoolName)
		if err != nil {
			return academics.SchoolSettings{}, errors.Wrap(err, "inserting school settings")
		}
		return settings, nil
	}
	_, err := ex.ExecContext(ctx, `UPDATE school_settings SET school_name = $2 WHERE id = $1`,
		settings.ID, settings.SchoolName)
	if err != nil {
		return academics.SchoolSettings{}, errors.Wrap(err, "updating school settings")
	}
	return settings, nil
}

// inTx runs fn in the caller's transaction when one was provided, otherwise
// in a fresh one.
func (repo *academicsRepository) inTx(ctx context.Context, exec []core.DBExecutor, fn func(ex sqlx.ExtContext) error) error {
	if len(exec) > 0 {
		return fn(getExec(repo.db, exec))
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	return core.InTransaction(tx, func() error { return fn(tx) })
}
