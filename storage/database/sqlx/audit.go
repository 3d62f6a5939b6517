package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
)

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

type logRow struct {
	ID        string      `db:"id"`
	Timestamp time.Time   `db:"timestamp"`
	Level     string      `db:"level"`
	Message   string      `db:"message"`
	UserID    null.String `db:"user_id"`
	Metadata  null.JSON   `db:"metadata"`

	UserEmail null.String `db:"user_email"`
	UserName  null.String `db:"user_name"`
}

func (r logRow) domain() audit.Entry {
	entry := audit.Entry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Level:     audit.Level(r.Level),
		Message:   r.Message,
		UserID:    r.UserID,
		Metadata:  r.Metadata.JSON,
	}
	if r.UserID.Valid {
		entry.User = &audit.UserRef{
			ID:    r.UserID.String,
			Email: r.UserEmail.String,
			Name:  r.UserName.String,
		}
	}
	return entry
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	entry.ID = uuid.New().String()
	_, err := getExec(repo.db, exec).ExecContext(ctx, `
		INSERT INTO log (id, timestamp, level, message, user_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Timestamp.UTC(), string(entry.Level), entry.Message,
		entry.UserID, null.JSONFrom(entry.Metadata))
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting log entry")
	}
	return entry, nil
}

// QueryPage runs the page fetch, the total count and, without a level filter,
// the per-level counts inside one repeatable-read transaction so every figure
// reflects the same snapshot.
func (repo *auditRepository) QueryPage(ctx context.Context, q audit.Query, exec ...core.DBExecutor) (audit.PageResult, error) {
	where, args := logPredicate(q)

	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return audit.PageResult{}, errors.Wrap(err, "beginning log query transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var rows []logRow
	pageQuery := fmt.Sprintf(`
		SELECT l.id, l.timestamp, l.level, l.message, l.user_id, l.metadata,
			u.email AS user_email, u.name AS user_name
		FROM log l
		LEFT JOIN "user" u ON u.id = l.user_id
		%s
		ORDER BY l.timestamp DESC
		LIMIT %d OFFSET %d`, where, q.PageSize, q.Offset())
	if err = tx.SelectContext(ctx, &rows, pageQuery, args...); err != nil {
		return audit.PageResult{}, errors.Wrap(err, "querying log page")
	}

	result := audit.PageResult{Entries: make([]audit.Entry, 0, len(rows))}
	for _, row := range rows {
		result.Entries = append(result.Entries, row.domain())
	}

	countQuery := fmt.Sprintf(`SELECT count(*) FROM log l %s`, where)
	if err = tx.GetContext(ctx, &result.TotalCount, countQuery, args...); err != nil {
		return audit.PageResult{}, errors.Wrap(err, "counting log entries")
	}

	if q.Level == nil {
		var counts []struct {
			Level string `db:"level"`
			Count int    `db:"count"`
		}
		histQuery := fmt.Sprintf(`SELECT l.level, count(*) AS count FROM log l %s GROUP BY l.level`, where)
		if err = tx.SelectContext(ctx, &counts, histQuery, args...); err != nil {
			return audit.PageResult{}, errors.Wrap(err, "counting log entries per level")
		}
		result.LevelCounts = make(map[audit.Level]int, len(counts))
		for _, count := range counts {
			result.LevelCounts[audit.Level(count.Level)] = count.Count
		}
	}

	if err = tx.Commit(); err != nil {
		return audit.PageResult{}, errors.Wrap(err, "committing log query transaction")
	}
	return result, nil
}

func (repo *auditRepository) DeleteEntriesBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error) {
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM log WHERE timestamp < $1`, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired log entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired log entries")
	}
	return n, nil
}

func logPredicate(q audit.Query) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Level != nil {
		conds = append(conds, "l.level = "+arg(string(*q.Level)))
	}
	if q.Start != nil {
		conds = append(conds, "l.timestamp >= "+arg(*q.Start))
	}
	if q.End != nil {
		conds = append(conds, "l.timestamp <= "+arg(*q.End))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
