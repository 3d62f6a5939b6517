package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core/user"
)

func Test_userApi_login(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)
	app.createUser(t, "Sleepy", "sleepy@darasa.cd", "LifeIsGood", []string{user.RoleTeacher}, false)

	tests := []httpTest{
		{
			name:     "valid credentials",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email": "admin@darasa.cd", "password": "LifeIsGood"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email": "admin@darasa.cd", "password": "nope"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email": "ghost@darasa.cd", "password": "LifeIsGood"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "deactivated account",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email": "sleepy@darasa.cd", "password": "LifeIsGood"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Contains(t, rec.Body.String(), "token")
			}
		})
	}
}

func Test_userApi_queryRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)
	student := app.createUser(t, "John Student", "student@darasa.cd", "LifeIsGood", []string{user.RoleStudent}, true)

	tests := []httpTest{
		{
			name:     "anonymous is rejected",
			method:   http.MethodGet,
			path:     "/v1/users",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "student is rejected",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    app.getToken(t, student),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin can list",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    app.getToken(t, admin),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)
	student := app.createUser(t, "John Student", "student@darasa.cd", "LifeIsGood", []string{user.RoleStudent}, true)

	tests := []httpTest{
		{
			name:     "owner can retrieve self",
			method:   http.MethodGet,
			path:     "/v1/users/" + student.ID,
			token:    app.getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, student),
		},
		{
			name:     "admin can retrieve anyone",
			method:   http.MethodGet,
			path:     "/v1/users/" + student.ID,
			token:    app.getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, student),
		},
		{
			name:     "non-owner gets 404",
			method:   http.MethodGet,
			path:     "/v1/users/" + admin.ID,
			token:    app.getToken(t, student),
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_destroySelfForbidden(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)

	rec := app.do(t, httpTest{
		method: http.MethodDelete,
		path:   "/v1/users/" + admin.ID,
		token:  app.getToken(t, admin),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
