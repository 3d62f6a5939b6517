package audit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// Level is the severity of a log entry, DEBUG lowest.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// AllLevels holds the known levels in ascending severity.
var AllLevels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

var levelSeverities = map[Level]int{
	LevelDebug: 10,
	LevelInfo:  20,
	LevelWarn:  30,
	LevelError: 40,
}

// ParseLevel matches a raw string against the known levels, case-insensitively.
func ParseLevel(s string) (Level, bool) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := levelSeverities[level]
	return level, ok
}

func (l Level) Severity() int { return levelSeverities[l] }

// AtLeast reports whether l is as severe as min.
func (l Level) AtLeast(min Level) bool { return l.Severity() >= min.Severity() }

type (
	// UserRef is the minimal projection of the user a log entry belongs to.
	UserRef struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	// Entry is a log row as stored. Metadata is the raw JSON blob written at
	// log time; entries are append-only and only ever deleted in bulk by age.
	Entry struct {
		ID        string
		Timestamp time.Time
		Level     Level
		Message   string
		UserID    null.String
		Metadata  json.RawMessage
		User      *UserRef
	}
)

// Response envelope served to the logs view.
type (
	RecordView struct {
		ID        string          `json:"id"`
		Timestamp time.Time       `json:"timestamp"`
		Level     Level           `json:"level"`
		Message   string          `json:"message"`
		Scope     *string         `json:"scope"`
		RequestID *string         `json:"request_id"`
		Metadata  json.RawMessage `json:"metadata"`
		User      *UserRef        `json:"user"`
	}

	Meta struct {
		Page            int  `json:"page"`
		PageSize        int  `json:"page_size"`
		TotalCount      int  `json:"total_count"`
		TotalPages      int  `json:"total_pages"`
		HasNextPage     bool `json:"has_next_page"`
		HasPreviousPage bool `json:"has_previous_page"`
	}

	// Filters echoes the normalized filter values back to the client.
	Filters struct {
		Level *Level     `json:"level"`
		Start *time.Time `json:"start"`
		End   *time.Time `json:"end"`
	}

	Aggregates struct {
		ByLevel map[Level]int `json:"by_level"`
	}

	Envelope struct {
		Records    []RecordView `json:"records"`
		Meta       Meta         `json:"meta"`
		Filters    Filters      `json:"filters"`
		Aggregates Aggregates   `json:"aggregates"`
	}
)

// serializeEntry builds the record view: the reserved metadata keys are
// lifted into dedicated fields and the remainder becomes the display metadata.
func serializeEntry(entry Entry) RecordView {
	scope, requestID, remainder := extractMetadata(entry.Metadata)
	return RecordView{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Level:     entry.Level,
		Message:   entry.Message,
		Scope:     scope,
		RequestID: requestID,
		Metadata:  remainder,
		User:      entry.User,
	}
}
