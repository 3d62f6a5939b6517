package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	FirstName         string         `db:"first_name"`
	LastName          string         `db:"last_name"`
	PreferredLanguage string         `db:"preferred_language"`
	Email             string         `db:"email"`
	IsActive          null.Bool      `db:"is_active"`
	Roles             pq.StringArray `db:"roles"`
	PasswordHash      null.Bytes     `db:"password_hash"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	LastLogin         null.Time      `db:"last_login"`
}

func (r userRow) domain() user.User {
	return user.User{
		ID:                r.ID,
		Name:              r.Name,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		PreferredLanguage: r.PreferredLanguage,
		Email:             r.Email,
		IsActive:          r.IsActive.Ptr(),
		Roles:             r.Roles,
		PasswordHash:      r.PasswordHash.Bytes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		LastLogin:         r.LastLogin.Time,
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:                usr.ID,
		Name:              usr.Name,
		FirstName:         usr.FirstName,
		LastName:          usr.LastName,
		PreferredLanguage: usr.PreferredLanguage,
		Email:             usr.Email,
		IsActive:          null.BoolFromPtr(usr.IsActive),
		Roles:             usr.Roles,
		PasswordHash:      null.BytesFrom(usr.PasswordHash),
		CreatedAt:         usr.CreatedAt.UTC(),
		UpdatedAt:         usr.UpdatedAt.UTC(),
		LastLogin:         null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

const userColumns = `id, name, first_name, last_name, preferred_language, email,
	is_active, roles, password_hash, created_at, updated_at, last_login`

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	query := `SELECT EXISTS (SELECT 1 FROM "user" WHERE lower(email) = lower($1)`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		query += ` AND id != ALL($2)`
		args = append(args, pq.Array(ids))
	}
	query += `)`

	var exists bool
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &exists, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := newUserRow(usr)
	_, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :first_name, :last_name, :preferred_language, :email,
			:is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.domain(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
		}
		if len(filter.Roles) > 0 {
			conds = append(conds, fmt.Sprintf("roles && %s", arg(pq.Array(filter.Roles))))
		}
		if filter.IsActive != nil {
			conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom.UTC())))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo.UTC())))
		}
	}

	query := `SELECT ` + userColumns + ` FROM "user"`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderByClause(ordering, "created_at DESC")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.domain())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE `
	var arg interface{}
	switch {
	case filter.ID != "":
		query += "id = $1"
		arg = filter.ID
	case filter.Email != "":
		query += "lower(email) = lower($1)"
		arg = filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, query, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.domain(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := newUserRow(usr)
	res, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), `
		UPDATE "user" SET
			name = :name, first_name = :first_name, last_name = :last_name,
			preferred_language = :preferred_language, email = :email,
			is_active = :is_active, roles = :roles, password_hash = :password_hash,
			updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.domain(), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := newUserRow(usr)
	_, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :first_name, :last_name, :preferred_language, :email,
			:is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			preferred_language = EXCLUDED.preferred_language, is_active = EXCLUDED.is_active,
			roles = EXCLUDED.roles, password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at`,
		row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "upserting user")
	}
	return repo.GetUser(ctx, user.GetFilter{Email: usr.Email}, exec...)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}

// orderByClause renders an ORDER BY body, falling back to a default.
func orderByClause(ordering []core.DBOrdering, defaultOrder string) string {
	if len(ordering) == 0 {
		return defaultOrder
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return strings.Join(parts, ", ")
}
