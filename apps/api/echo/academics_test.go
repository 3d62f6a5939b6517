package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core/academics"
	"github.com/darasahq/darasa/core/schoolyear"
	"github.com/darasahq/darasa/core/user"
)

func Test_configApi_levels(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)
	token := app.getToken(t, admin)

	rec := app.do(t, httpTest{
		method: http.MethodPost,
		path:   "/v1/admin/config/levels",
		token:  token,
		body:   []byte(`{"label": "7th Grade", "order": 1}`),
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var level academics.Level
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &level))
	assert.Equal(t, "7th Grade", level.Label)

	rec = app.do(t, httpTest{
		method: http.MethodPut,
		path:   "/v1/admin/config/levels/" + level.ID,
		token:  token,
		body:   []byte(`{"label": "Grade 7"}`),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Grade 7")

	rec = app.do(t, httpTest{
		method: http.MethodPut,
		path:   "/v1/admin/config/levels/unknown",
		token:  token,
		body:   []byte(`{"label": "Nope"}`),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_configApi_deleteLevelInUse(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)
	token := app.getToken(t, admin)

	level := seedLevel(t, app, "7th Grade", 1)

	now := time.Now().UTC()
	_, err := app.yearRepo.CreateSchoolYear(context.Background(), schoolyear.SchoolYear{
		Label:    "2025-2026",
		StartsAt: now.AddDate(0, -1, 0),
		EndsAt:   now.AddDate(0, 9, 0),
	}, []string{level.ID})
	if err != nil {
		t.Fatalf("creating school year failed: %v", err)
	}

	rec := app.do(t, httpTest{method: http.MethodDelete, path: "/v1/admin/config/levels/" + level.ID, token: token})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func Test_configApi_stateAndSettings(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Jane Admin", "admin@darasa.cd", "LifeIsGood", []string{user.RoleAdmin}, true)
	token := app.getToken(t, admin)

	rec := app.do(t, httpTest{
		method: http.MethodPut,
		path:   "/v1/admin/config/settings",
		token:  token,
		body:   []byte(`{"school_name": "Lycée Mwanga"}`),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lycée Mwanga")

	rec = app.do(t, httpTest{method: http.MethodGet, path: "/v1/admin/config/state", token: token})
	assert.Equal(t, http.StatusOK, rec.Code)

	var state academics.State
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	if assert.NotNil(t, state.Settings) {
		assert.Equal(t, "Lycée Mwanga", state.Settings.SchoolName)
	}
}
