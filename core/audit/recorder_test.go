package audit

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
)

func newTestRecorder(repo *fakeRepo, minLevel string) (*Recorder, *captureLogger) {
	fallback := &captureLogger{}
	svc := NewService(repo, nil, fallback, core.LogsConfig{RetentionDays: 30, MinLevel: minLevel})
	return NewRecorder(svc, fallback, core.LogsConfig{MinLevel: minLevel}), fallback
}

func TestRecorderMinLevel(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	recorder, _ := newTestRecorder(repo, "WARN")

	recorder.Debug(ctx, "dropped", nil)
	recorder.Info(ctx, "dropped too", nil)
	assert.Empty(t, repo.created)

	recorder.Warn(ctx, "kept", nil)
	recorder.Error(ctx, "kept too", nil)
	assert.Len(t, repo.created, 2)
	assert.Equal(t, LevelWarn, repo.created[0].Level)
}

func TestRecorderContext(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	recorder, _ := newTestRecorder(repo, "DEBUG")

	derived := recorder.WithScope("api").WithRequestID("r1").WithUser("u1")
	derived.Info(ctx, "created user", map[string]interface{}{"email": "a@b.cd"})

	// the base recorder is untouched by derivation
	recorder.Info(ctx, "bare", nil)

	if assert.Len(t, repo.created, 2) {
		entry := repo.created[0]
		assert.Equal(t, "u1", entry.UserID.String)
		assert.True(t, entry.UserID.Valid)

		scope, requestID, remainder := extractMetadata(entry.Metadata)
		assert.Equal(t, "api", *scope)
		assert.Equal(t, "r1", *requestID)
		assert.JSONEq(t, `{"email":"a@b.cd"}`, string(remainder))

		bare := repo.created[1]
		assert.False(t, bare.UserID.Valid)
		assert.Nil(t, bare.Metadata)
	}
}

func TestRecorderFallbackOnFailure(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("store down")}
	recorder, fallback := newTestRecorder(repo, "DEBUG")

	recorder.Error(context.Background(), "boom", nil)
	assert.Len(t, fallback.errors, 1)
}

func TestRecorderUnknownMinLevelDefaultsToInfo(t *testing.T) {
	repo := &fakeRepo{}
	recorder, _ := newTestRecorder(repo, "bogus")

	recorder.Debug(context.Background(), "dropped", nil)
	recorder.Info(context.Background(), "kept", nil)
	assert.Len(t, repo.created, 1)
}

func TestRecorderDisabledWithoutMinLevel(t *testing.T) {
	repo := &fakeRepo{}
	recorder, _ := newTestRecorder(repo, "")

	recorder.Error(context.Background(), "dropped", nil)
	assert.Empty(t, repo.created)
}
