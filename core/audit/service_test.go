package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
)

type fakeRepo struct {
	result    PageResult
	queryErr  error
	created   []Entry
	createErr error

	deletedBefore *time.Time
	deleteCount   int64
	deleteErr     error
}

var _ Repository = (*fakeRepo)(nil)

func (r *fakeRepo) CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error) {
	if r.createErr != nil {
		return Entry{}, r.createErr
	}
	r.created = append(r.created, entry)
	return entry, nil
}

func (r *fakeRepo) QueryPage(ctx context.Context, q Query, exec ...core.DBExecutor) (PageResult, error) {
	return r.result, r.queryErr
}

func (r *fakeRepo) DeleteEntriesBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error) {
	r.deletedBefore = &cutoff
	return r.deleteCount, r.deleteErr
}

// syncTasks runs submitted tasks inline so tests see their effects.
type syncTasks struct {
	submitted []string
}

func (t *syncTasks) Submit(name string, fn func(context.Context) error) {
	t.submitted = append(t.submitted, name)
	_ = fn(context.Background())
}

type captureLogger struct {
	errors []string
	infos  []string
}

func (l *captureLogger) Debug(msg string, args ...interface{}) {}
func (l *captureLogger) Info(msg string, args ...interface{})  { l.infos = append(l.infos, msg) }
func (l *captureLogger) Warn(msg string, args ...interface{})  {}
func (l *captureLogger) Error(msg string, args ...interface{}) { l.errors = append(l.errors, msg) }
func (l *captureLogger) Fatal(msg string, args ...interface{}) {}

func newTestService(repo *fakeRepo, tasks core.TaskRunner, retentionDays int) (*service, *captureLogger) {
	logger := &captureLogger{}
	svc := NewService(repo, tasks, logger, core.LogsConfig{RetentionDays: retentionDays, MinLevel: "INFO"})
	return svc, logger
}

func TestServiceQueryEnvelope(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		result: PageResult{
			Entries: []Entry{
				{
					ID:        "l1",
					Timestamp: now,
					Level:     LevelError,
					Message:   "boom",
					Metadata:  json.RawMessage(`{"scope":"api","requestId":"r1","path":"/users"}`),
					User:      &UserRef{ID: "u1", Email: "admin@example.com", Name: "Admin"},
				},
				{ID: "l2", Timestamp: now.Add(-time.Minute), Level: LevelInfo, Message: "ok"},
			},
			TotalCount:  52,
			LevelCounts: map[Level]int{LevelDebug: 10, LevelInfo: 30, LevelWarn: 5, LevelError: 7},
		},
	}
	svc, _ := newTestService(repo, nil, 30)

	env, err := svc.Query(ctx, QueryParams{Page: "2", PageSize: "25"})
	assert.NoError(t, err)

	assert.Equal(t, Meta{
		Page:            2,
		PageSize:        25,
		TotalCount:      52,
		TotalPages:      3,
		HasNextPage:     true,
		HasPreviousPage: true,
	}, env.Meta)

	if assert.Len(t, env.Records, 2) {
		rec := env.Records[0]
		assert.Equal(t, "api", *rec.Scope)
		assert.Equal(t, "r1", *rec.RequestID)
		assert.JSONEq(t, `{"path":"/users"}`, string(rec.Metadata))
		assert.Equal(t, "u1", rec.User.ID)

		assert.Nil(t, env.Records[1].Scope)
		assert.Nil(t, env.Records[1].Metadata)
	}

	// the histogram sums to the total count when no level filter is active
	sum := 0
	for _, count := range env.Aggregates.ByLevel {
		sum += count
	}
	assert.Equal(t, env.Meta.TotalCount, sum)
	assert.Nil(t, env.Filters.Level)
}

func TestServiceQuerySynthesizedHistogram(t *testing.T) {
	repo := &fakeRepo{result: PageResult{TotalCount: 7}}
	svc, _ := newTestService(repo, nil, 30)

	env, err := svc.Query(context.Background(), QueryParams{Level: "ERROR"})
	assert.NoError(t, err)

	assert.Equal(t, map[Level]int{
		LevelDebug: 0,
		LevelInfo:  0,
		LevelWarn:  0,
		LevelError: 7,
	}, env.Aggregates.ByLevel)
	if assert.NotNil(t, env.Filters.Level) {
		assert.Equal(t, LevelError, *env.Filters.Level)
	}
}

func TestServiceQueryEmpty(t *testing.T) {
	svc, _ := newTestService(&fakeRepo{}, nil, 30)

	env, err := svc.Query(context.Background(), QueryParams{})
	assert.NoError(t, err)
	assert.Equal(t, 0, env.Meta.TotalPages)
	assert.False(t, env.Meta.HasNextPage)
	assert.False(t, env.Meta.HasPreviousPage)
	assert.NotNil(t, env.Records)
	assert.Empty(t, env.Records)
}

func TestServiceQueryValidationFailsBeforeStore(t *testing.T) {
	repo := &fakeRepo{queryErr: errors.New("store must not be reached")}
	svc, _ := newTestService(repo, nil, 30)

	_, err := svc.Query(context.Background(), QueryParams{PageSize: "101"})
	vErr, ok := err.(*core.ValidationError)
	if assert.True(t, ok) {
		assert.Equal(t, errPageSizeTooLarge, vErr.Err)
	}
}

func TestServiceQuerySchedulesPruning(t *testing.T) {
	defer func() { nowFunc = time.Now }()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }

	repo := &fakeRepo{deleteCount: 3}
	tasks := &syncTasks{}
	svc, logger := newTestService(repo, tasks, 30)

	_, err := svc.Query(context.Background(), QueryParams{})
	assert.NoError(t, err)

	assert.Equal(t, []string{pruneTaskName}, tasks.submitted)
	if assert.NotNil(t, repo.deletedBefore) {
		assert.Equal(t, now.AddDate(0, 0, -30), *repo.deletedBefore)
	}
	assert.Empty(t, logger.errors)
}

func TestServiceQueryPruningDisabled(t *testing.T) {
	repo := &fakeRepo{}
	tasks := &syncTasks{}
	svc, _ := newTestService(repo, tasks, 0)

	_, err := svc.Query(context.Background(), QueryParams{})
	assert.NoError(t, err)
	assert.Empty(t, tasks.submitted)
	assert.Nil(t, repo.deletedBefore)
}

func TestServiceQueryPruningFailureIsSwallowed(t *testing.T) {
	repo := &fakeRepo{deleteErr: errors.New("store down")}
	tasks := &syncTasks{}
	svc, logger := newTestService(repo, tasks, 30)

	env, err := svc.Query(context.Background(), QueryParams{})
	assert.NoError(t, err)
	assert.NotNil(t, env.Records)
	assert.Len(t, logger.errors, 1)
}

func TestServicePruneExpired(t *testing.T) {
	repo := &fakeRepo{deleteCount: 12}
	svc, _ := newTestService(repo, nil, -1)

	deleted, err := svc.PruneExpired(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Nil(t, repo.deletedBefore)

	svc, _ = newTestService(repo, nil, 7)
	deleted, err = svc.PruneExpired(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 12, deleted)
	assert.NotNil(t, repo.deletedBefore)
}

func TestServiceRecord(t *testing.T) {
	defer func() { nowFunc = time.Now }()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }

	repo := &fakeRepo{}
	svc, _ := newTestService(repo, nil, 30)

	err := svc.Record(context.Background(), Entry{Level: LevelInfo, Message: "hello"})
	assert.NoError(t, err)
	if assert.Len(t, repo.created, 1) {
		assert.Equal(t, now, repo.created[0].Timestamp)
	}
}
