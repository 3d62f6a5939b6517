package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/schoolyear"
)

type schoolYearRepository struct {
	db *sqlx.DB
}

var _ schoolyear.Repository = (*schoolYearRepository)(nil) // interface compliance check

func NewSchoolYearRepository(db *sqlx.DB) *schoolYearRepository {
	return &schoolYearRepository{db: db}
}

type schoolYearRow struct {
	ID            string    `db:"id"`
	Label         string    `db:"label"`
	StartsAt      time.Time `db:"starts_at"`
	EndsAt        time.Time `db:"ends_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	ClassesCount  int       `db:"classes_count"`
	GroupsCount   int       `db:"groups_count"`
	StudentsCount int       `db:"students_count"`
}

func (r schoolYearRow) domain() schoolyear.SchoolYear {
	return schoolyear.SchoolYear{
		ID:            r.ID,
		Label:         r.Label,
		StartsAt:      r.StartsAt,
		EndsAt:        r.EndsAt,
		UpdatedAt:     r.UpdatedAt,
		ClassesCount:  r.ClassesCount,
		GroupsCount:   r.GroupsCount,
		StudentsCount: r.StudentsCount,
	}
}

// yearQuery selects year rows with their association counts.
// Archived classes and groups are excluded from the counts.
const yearQuery = `
	SELECT y.id, y.label, y.starts_at, y.ends_at, y.updated_at,
		(SELECT count(*) FROM school_class c
			WHERE c.school_year_id = y.id AND NOT c.archived) AS classes_count,
		(SELECT count(*) FROM school_group g
			JOIN school_class c ON c.id = g.school_class_id
			WHERE c.school_year_id = y.id AND NOT g.archived) AS groups_count,
		(SELECT count(*) FROM student_year s WHERE s.school_year_id = y.id) AS students_count
	FROM school_year y`

func (repo *schoolYearRepository) QuerySchoolYears(ctx context.Context, exec ...core.DBExecutor) ([]schoolyear.SchoolYear, error) {
	ex := getExec(repo.db, exec)

	var rows []schoolYearRow
	if err := sqlx.SelectContext(ctx, ex, &rows, yearQuery+` ORDER BY y.starts_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying school years")
	}

	years := make([]schoolyear.SchoolYear, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		years = append(years, row.domain())
		ids = append(ids, row.ID)
	}
	if err := repo.loadRelations(ctx, ex, years, ids); err != nil {
		return nil, err
	}
	return years, nil
}

func (repo *schoolYearRepository) GetSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	return repo.getYear(ctx, getExec(repo.db, exec), yearQuery+` WHERE y.id = $1`, id)
}

func (repo *schoolYearRepository) FindCurrentSchoolYear(ctx context.Context, reference time.Time, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	query := yearQuery + ` WHERE y.starts_at <= $1 AND y.ends_at >= $1 ORDER BY y.starts_at DESC LIMIT 1`
	return repo.getYear(ctx, getExec(repo.db, exec), query, reference.UTC())
}

func (repo *schoolYearRepository) getYear(ctx context.Context, ex sqlx.ExtContext, query string, arg interface{}) (schoolyear.SchoolYear, error) {
	var row schoolYearRow
	if err := sqlx.GetContext(ctx, ex, &row, query, arg); err != nil {
		return schoolyear.SchoolYear{}, trapNoRowsErr(err, schoolyear.ErrNotFound, "getting school year")
	}

	years := []schoolyear.SchoolYear{row.domain()}
	if err := repo.loadRelations(ctx, ex, years, []string{row.ID}); err != nil {
		return schoolyear.SchoolYear{}, err
	}
	return years[0], nil
}

// loadRelations attaches level refs and ascending-start periods to the years.
func (repo *schoolYearRepository) loadRelations(ctx context.Context, ex sqlx.ExtContext, years []schoolyear.SchoolYear, ids []string) error {
	if len(years) == 0 {
		return nil
	}
	index := make(map[string]int, len(years))
	for i, year := range years {
		index[year.ID] = i
	}

	var levelRows []struct {
		YearID string `db:"school_year_id"`
		Label  string `db:"label"`
		Order  int    `db:"ord"`
	}
	err := sqlx.SelectContext(ctx, ex, &levelRows, `
		SELECT yl.school_year_id, l.label, l.ord
		FROM school_year_level yl
		JOIN level l ON l.id = yl.level_id
		WHERE yl.school_year_id = ANY($1)
		ORDER BY l.ord`, pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "querying school year levels")
	}
	for _, row := range levelRows {
		i := index[row.YearID]
		years[i].Levels = append(years[i].Levels, schoolyear.LevelRef{Label: row.Label, Order: row.Order})
	}

	var periodRows []struct {
		ID       string    `db:"id"`
		YearID   string    `db:"school_year_id"`
		Label    string    `db:"label"`
		StartsAt time.Time `db:"starts_at"`
		EndsAt   time.Time `db:"ends_at"`
	}
	err = sqlx.SelectContext(ctx, ex, &periodRows, `
		SELECT id, school_year_id, label, starts_at, ends_at
		FROM evaluation_period
		WHERE school_year_id = ANY($1)
		ORDER BY starts_at`, pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "querying evaluation periods")
	}
	for _, row := range periodRows {
		i := index[row.YearID]
		years[i].Periods = append(years[i].Periods, schoolyear.EvaluationPeriod{
			ID:           row.ID,
			SchoolYearID: row.YearID,
			Label:        row.Label,
			StartsAt:     row.StartsAt,
			EndsAt:       row.EndsAt,
		})
	}
	return nil
}

func (repo *schoolYearRepository) CreateSchoolYear(ctx context.Context, year schoolyear.SchoolYear, levelIDs []string, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	year.ID = uuid.New().String()
	year.UpdatedAt = time.Now().UTC()

	insert := func(ex sqlx.ExtContext) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO school_year (id, label, starts_at, ends_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			year.ID, year.Label, year.StartsAt.UTC(), year.EndsAt.UTC(), year.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "inserting school year")
		}
		for _, levelID := range levelIDs {
			_, err = ex.ExecContext(ctx, `
				INSERT INTO school_year_level (school_year_id, level_id) VALUES ($1, $2)`,
				year.ID, levelID)
			if err != nil {
				return errors.Wrap(err, "linking school year level")
			}
		}
		return nil
	}

	// run in the caller's transaction when one was given
	if len(exec) > 0 {
		if err := insert(getExec(repo.db, exec)); err != nil {
			return schoolyear.SchoolYear{}, err
		}
		return year, nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return schoolyear.SchoolYear{}, errors.Wrap(err, "beginning transaction")
	}
	if err = core.InTransaction(tx, func() error { return insert(tx) }); err != nil {
		return schoolyear.SchoolYear{}, err
	}
	return year, nil
}

func (repo *schoolYearRepository) CreateEvaluationPeriod(ctx context.Context, period schoolyear.EvaluationPeriod, exec ...core.DBExecutor) (schoolyear.EvaluationPeriod, error) {
	period.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx, `
		INSERT INTO evaluation_period (id, school_year_id, label, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)`,
		period.ID, period.SchoolYearID, period.Label, period.StartsAt.UTC(), period.EndsAt.UTC())
	if err != nil {
		return schoolyear.EvaluationPeriod{}, errors.Wrap(err, "inserting evaluation period")
	}
	return period, nil
}

func (repo *schoolYearRepository) GetEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (schoolyear.EvaluationPeriod, error) {
	var row struct {
		ID           string    `db:"id"`
		SchoolYearID string    `db:"school_year_id"`
		Label        string    `db:"label"`
		StartsAt     time.Time `db:"starts_at"`
		EndsAt       time.Time `db:"ends_at"`
	}
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, `
		SELECT id, school_year_id, label, starts_at, ends_at
		FROM evaluation_period WHERE id = $1`, id)
	if err != nil {
		return schoolyear.EvaluationPeriod{}, trapNoRowsErr(err, schoolyear.ErrPeriodNotFound, "getting evaluation period")
	}
	return schoolyear.EvaluationPeriod(row), nil
}

func (repo *schoolYearRepository) DeleteEvaluationPeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM evaluation_period WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting evaluation period")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schoolyear.ErrPeriodNotFound
	}
	return nil
}

func (repo *schoolYearRepository) QueryLevelOptions(ctx context.Context, exec ...core.DBExecutor) ([]schoolyear.LevelOption, error) {
	var rows []struct {
		ID    string `db:"id"`
		Label string `db:"label"`
	}
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, `SELECT id, label FROM level ORDER BY ord`)
	if err != nil {
		return nil, errors.Wrap(err, "querying levels")
	}
	options := make([]schoolyear.LevelOption, 0, len(rows))
	for _, row := range rows {
		options = append(options, schoolyear.LevelOption(row))
	}
	return options, nil
}

func (repo *schoolYearRepository) QueryAbsenceUnitLabels(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var labels []string
	err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &labels, `SELECT label FROM absence_unit ORDER BY label`)
	if err != nil {
		return nil, errors.Wrap(err, "querying absence units")
	}
	return labels, nil
}
