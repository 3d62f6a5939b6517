package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

// mockable in tests
var nowFunc = time.Now

const pruneTaskName = "audit.prune-expired"

type (
	// PageResult is one snapshot-consistent read of the log store: the page,
	// the total matching count and, when no level filter narrowed the query,
	// the count per level. All figures reflect the same snapshot so the page
	// and the histogram cannot disagree under concurrent writes.
	PageResult struct {
		Entries     []Entry
		TotalCount  int
		LevelCounts map[Level]int
	}

	Repository interface {
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		QueryPage(ctx context.Context, q Query, exec ...core.DBExecutor) (PageResult, error)
		// DeleteEntriesBefore removes all entries with a timestamp strictly
		// before the cutoff and returns the number of rows removed.
		DeleteEntriesBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error)
	}

	Service interface {
		// Query turns raw parameters into the logs response envelope and
		// schedules best-effort retention pruning.
		Query(ctx context.Context, params QueryParams) (Envelope, error)
		Record(ctx context.Context, entry Entry) error
		PruneExpired(ctx context.Context) (int64, error)
	}

	service struct {
		repo          Repository
		tasks         core.TaskRunner
		logger        core.Logger
		retentionDays int
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tasks core.TaskRunner, logger core.Logger, conf core.LogsConfig) *service {
	return &service{
		repo:          repo,
		tasks:         tasks,
		logger:        logger,
		retentionDays: conf.RetentionDays,
	}
}

func (svc *service) Query(ctx context.Context, params QueryParams) (Envelope, error) {
	q, err := params.Parse()
	if err != nil {
		return Envelope{}, err
	}

	result, err := svc.repo.QueryPage(ctx, q)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "querying log page")
	}

	// pruning runs off the request path; its outcome never reaches the caller
	svc.schedulePrune()

	return assembleEnvelope(q, result), nil
}

func (svc *service) Record(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = nowFunc().UTC()
	}
	if _, err := svc.repo.CreateEntry(ctx, entry); err != nil {
		return errors.Wrap(err, "recording log entry")
	}
	return nil
}

// PruneExpired deletes entries older than the retention cutoff. A retention
// of zero or less disables pruning.
func (svc *service) PruneExpired(ctx context.Context) (int64, error) {
	if svc.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := nowFunc().UTC().AddDate(0, 0, -svc.retentionDays)
	deleted, err := svc.repo.DeleteEntriesBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "pruning expired log entries")
	}
	return deleted, nil
}

func (svc *service) schedulePrune() {
	if svc.tasks == nil || svc.retentionDays <= 0 {
		return
	}
	svc.tasks.Submit(pruneTaskName, func(ctx context.Context) error {
		deleted, err := svc.PruneExpired(ctx)
		if err != nil {
			svc.logger.Error("log retention pruning failed", err)
			return err
		}
		if deleted > 0 {
			svc.logger.Info("pruned expired log entries", deleted)
		}
		return nil
	})
}

func assembleEnvelope(q Query, result PageResult) Envelope {
	records := make([]RecordView, 0, len(result.Entries))
	for _, entry := range result.Entries {
		records = append(records, serializeEntry(entry))
	}

	totalPages := 0
	if result.TotalCount > 0 {
		totalPages = (result.TotalCount + q.PageSize - 1) / q.PageSize
	}

	return Envelope{
		Records: records,
		Meta: Meta{
			Page:            q.Page,
			PageSize:        q.PageSize,
			TotalCount:      result.TotalCount,
			TotalPages:      totalPages,
			HasNextPage:     q.Page*q.PageSize < result.TotalCount,
			HasPreviousPage: q.Page > 1,
		},
		Filters: Filters{
			Level: q.Level,
			Start: q.Start,
			End:   q.End,
		},
		Aggregates: Aggregates{ByLevel: buildHistogram(q.Level, result)},
	}
}

// buildHistogram zero-fills every level. With a level filter active the
// answer is already known from the total count, so no per-level counts were
// fetched; without one the store-provided counts are used.
func buildHistogram(level *Level, result PageResult) map[Level]int {
	byLevel := make(map[Level]int, len(AllLevels))
	for _, l := range AllLevels {
		byLevel[l] = 0
	}
	if level != nil {
		byLevel[*level] = result.TotalCount
		return byLevel
	}
	for l, count := range result.LevelCounts {
		byLevel[l] = count
	}
	return byLevel
}
