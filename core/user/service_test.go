package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	users []User
}

var _ Repository = (*fakeRepo)(nil)

func (r *fakeRepo) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error {
	for _, usr := range r.users {
		if !strings.EqualFold(usr.Email, email) {
			continue
		}
		var excluded bool
		for _, excl := range excludedUsers {
			if excl.ID == usr.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return ErrEmailExists
		}
	}
	return nil
}

func (r *fakeRepo) CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error) {
	usr.ID = uuid.New().String()
	r.users = append(r.users, usr)
	return usr, nil
}

func (r *fakeRepo) QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error) {
	if filter == nil || filter.IsEmpty() {
		return r.users, nil
	}
	var matches []User
	for _, usr := range r.users {
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(usr.Email), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.IsActive != nil && usr.Active() != *filter.IsActive {
			continue
		}
		if len(filter.Roles) > 0 {
			var hasRole bool
			for _, role := range filter.Roles {
				if usr.HasRole(role) {
					hasRole = true
					break
				}
			}
			if !hasRole {
				continue
			}
		}
		matches = append(matches, usr)
	}
	return matches, nil
}

func (r *fakeRepo) GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error) {
	for _, usr := range r.users {
		if (filter.ID != "" && usr.ID == filter.ID) ||
			(filter.Email != "" && strings.EqualFold(usr.Email, filter.Email)) {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error) {
	for i, existing := range r.users {
		if existing.ID == usr.ID {
			if usr.Email != "" {
				existing.Email = usr.Email
			}
			if usr.Name != "" {
				existing.Name = usr.Name
			}
			if usr.IsActive != nil {
				existing.IsActive = usr.IsActive
			}
			if usr.Roles != nil {
				existing.Roles = usr.Roles
			}
			if usr.PasswordHash != nil {
				existing.PasswordHash = usr.PasswordHash
			}
			if !usr.LastLogin.IsZero() {
				existing.LastLogin = usr.LastLogin
			}
			if !usr.UpdatedAt.IsZero() {
				existing.UpdatedAt = usr.UpdatedAt
			}
			r.users[i] = existing
			return existing, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error) {
	if usr.ID != "" {
		return r.UpdateUser(ctx, usr)
	}
	return r.CreateUser(ctx, usr)
}

func (r *fakeRepo) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	var deleted int
	kept := r.users[:0]
	for _, usr := range r.users {
		var hit bool
		for _, id := range ids {
			if usr.ID == id {
				hit = true
				break
			}
		}
		if hit {
			deleted++
		} else {
			kept = append(kept, usr)
		}
	}
	r.users = kept
	return deleted, nil
}

// captureMail records sent messages synchronously.
type captureMail struct {
	messages []*core.EmailMessage
}

func (m *captureMail) SendMessages(messages ...*core.EmailMessage) {
	m.messages = append(m.messages, messages...)
}

func newTestService(t *testing.T) (Service, *fakeRepo, *captureMail) {
	t.Helper()

	repo := new(fakeRepo)
	mailSvc := new(captureMail)
	conf := &core.Config{
		AppName:                   "Darasa",
		SecretKey:                 "secret",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	return NewServiceMock(nil, repo, mailSvc, conf), repo, mailSvc
}

func TestServiceCreate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{
		Email:    "jane@test.cd",
		Name:     "Jane",
		Password: "LifeIsGood",
		Roles:    []string{RoleTeacher},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("LifeIsGood"))
	assert.Len(t, repo.users, 1)
}

func TestServiceCreateStudentRoleIsExclusive(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), NewUser{
		Email: "kid@test.cd",
		Name:  "Kid",
		Roles: []string{RoleStudent, RoleTeacher},
	})
	if assert.Error(t, err) {
		vErr, ok := err.(*core.ValidationError)
		if assert.True(t, ok) {
			assert.Equal(t, ErrStudentAlone, vErr.Err)
		}
	}
}

func TestServiceCheckUniqueness(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{Email: "jane@test.cd", Name: "Jane", Roles: []string{RoleAdmin}})
	assert.NoError(t, err)

	err = svc.CheckUniqueness("jane@test.cd")
	if assert.Error(t, err) {
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok)
	}

	// the owner is excluded
	assert.NoError(t, svc.CheckUniqueness("jane@test.cd", usr))
	assert.NoError(t, svc.CheckUniqueness("fresh@test.cd"))
}

func TestServiceQueryFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	jane, _ := svc.Create(ctx, NewUser{Email: "jane@test.cd", Name: "Jane Admin", Roles: []string{RoleAdmin}})
	john, _ := svc.Create(ctx, NewUser{Email: "john@test.cd", Name: "John Student", Roles: []string{RoleStudent}})

	users, err := svc.Query(ctx, &QueryFilter{Search: "jane"}, nil)
	assert.NoError(t, err)
	if assert.Len(t, users, 1) {
		assert.Equal(t, jane.ID, users[0].ID)
	}

	users, err = svc.Query(ctx, &QueryFilter{Roles: []string{RoleStudent}}, nil)
	assert.NoError(t, err)
	if assert.Len(t, users, 1) {
		assert.Equal(t, john.ID, users[0].ID)
	}
}

func TestServiceSetLastLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	usr, _ := svc.Create(ctx, NewUser{Email: "jane@test.cd", Name: "Jane", Roles: []string{RoleAdmin}})
	assert.True(t, usr.LastLogin.IsZero())

	usr, err := svc.SetLastLogin(ctx, usr)
	assert.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())
}

func TestServicePasswordResetFlow(t *testing.T) {
	svc, _, mailSvc := newTestService(t)
	ctx := context.Background()

	usr, _ := svc.Create(ctx, NewUser{
		Email:    "jane@test.cd",
		Name:     "Jane",
		Password: "OldPassword1",
		Roles:    []string{RoleAdmin},
	})

	assert.Equal(t, ErrNotFound, svc.RequestPasswordReset(ctx, "ghost@test.cd"))

	assert.NoError(t, svc.RequestPasswordReset(ctx, usr.Email))
	if assert.Len(t, mailSvc.messages, 1) {
		assert.Equal(t, usr.Email, mailSvc.messages[0].To[0].Address)
	}

	err := svc.ResetPassword(ctx, ResetUserPassword{
		UID:      EncodeUID(usr),
		Token:    makeToken(usr),
		Password: "NewPassword1",
	})
	assert.NoError(t, err)

	refreshed, err := svc.GetByID(ctx, usr.ID)
	assert.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("NewPassword1"))
	assert.Error(t, refreshed.CheckPassword("OldPassword1"))

	// a used token is invalidated by the password change
	err = svc.ResetPassword(ctx, ResetUserPassword{
		UID:      EncodeUID(usr),
		Token:    makeToken(usr),
		Password: "YetAnother1",
	})
	assert.Error(t, err)
}

func TestServiceDelete(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	usr, _ := svc.Create(ctx, NewUser{Email: "jane@test.cd", Name: "Jane", Roles: []string{RoleAdmin}})
	assert.NoError(t, svc.Delete(ctx, usr.ID))
	assert.Empty(t, repo.users)
}
