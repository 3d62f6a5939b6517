package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
)

type auditRepository struct {
	db    *auditTable
	users *userTable
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db.audit, users: db.user}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = uuid.New().String()
	repo.db.table[entry.ID] = &entry
	return entry, nil
}

func (repo *auditRepository) QueryPage(ctx context.Context, q audit.Query, exec ...core.DBExecutor) (audit.PageResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matched []audit.Entry
	for _, entry := range repo.db.table {
		if q.Level != nil && entry.Level != *q.Level {
			continue
		}
		if q.Start != nil && entry.Timestamp.Before(*q.Start) {
			continue
		}
		if q.End != nil && entry.Timestamp.After(*q.End) {
			continue
		}
		matched = append(matched, *entry)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	result := audit.PageResult{TotalCount: len(matched), Entries: []audit.Entry{}}
	if q.Level == nil {
		result.LevelCounts = make(map[audit.Level]int)
		for _, entry := range matched {
			result.LevelCounts[entry.Level]++
		}
	}

	start := q.Offset()
	if start < len(matched) {
		end := start + q.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		result.Entries = matched[start:end]
	}
	for i, entry := range result.Entries {
		result.Entries[i].User = repo.userRef(entry)
	}
	return result, nil
}

func (repo *auditRepository) userRef(entry audit.Entry) *audit.UserRef {
	if !entry.UserID.Valid {
		return nil
	}
	repo.users.RLock()
	defer repo.users.RUnlock()

	usr, ok := repo.users.table[entry.UserID.String]
	if !ok {
		return nil
	}
	return &audit.UserRef{ID: usr.ID, Email: usr.Email, Name: usr.Name}
}

func (repo *auditRepository) DeleteEntriesBefore(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var deleted int64
	for id, entry := range repo.db.table {
		if entry.Timestamp.Before(cutoff) {
			delete(repo.db.table, id)
			deleted++
		}
	}
	return deleted, nil
}
