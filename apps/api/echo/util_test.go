package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/academics"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/schoolyear"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...interface{}) {}
func (testLogger) Info(msg string, args ...interface{})  {}
func (testLogger) Warn(msg string, args ...interface{})  {}
func (testLogger) Error(msg string, args ...interface{}) {}
func (testLogger) Fatal(msg string, args ...interface{}) {}

type testApp struct {
	server    Server
	db        *dummydb.DB
	conf      *core.Config
	userRepo  user.Repository
	yearRepo  schoolyear.Repository
	acadRepo  academics.Repository
	auditRepo audit.Repository
}

func testConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Darasa",
		SecretKey:                 "secret",
		DefaultFromEmail:          "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Logs: core.LogsConfig{RetentionDays: 30, MinLevel: "INFO"},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("newTestApp() failed: %v", err)
	}

	conf := testConfig()
	logger := testLogger{}

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	userRepo := dummydb.NewUserRepository(db)
	yearRepo := dummydb.NewSchoolYearRepository(db)
	acadRepo := dummydb.NewAcademicsRepository(db)
	auditRepo := dummydb.NewAuditRepository(db)

	auditSvc := audit.NewService(auditRepo, nil, logger, conf.Logs)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Recorder:       audit.NewRecorder(auditSvc, logger, conf.Logs),
		UserSvc:        user.NewServiceMock(nil, userRepo, mailSvc, conf),
		YearSvc:        schoolyear.NewService(yearRepo),
		AcademicsSvc:   academics.NewService(acadRepo),
		AuditSvc:       auditSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testApp{
		server:    server,
		db:        db,
		conf:      conf,
		userRepo:  userRepo,
		yearRepo:  yearRepo,
		acadRepo:  acadRepo,
		auditRepo: auditRepo,
	}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app *testApp) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if tt.body != nil {
		body.Write(tt.body)
	}
	req := httptest.NewRequest(tt.method, tt.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if tt.token != "" {
		req.Header.Set("Authorization", "Bearer "+tt.token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) createUser(t *testing.T, name, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := app.userRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	assert.Equal(t, tt.wantCode, rec.Code)
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
