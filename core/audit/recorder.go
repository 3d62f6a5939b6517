package audit

import (
	"context"
	"encoding/json"

	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

// Recorder is the persisting application logger. Entries below the configured
// minimum level are dropped; a failed write falls back to the operational
// logger and is otherwise swallowed, logging must never break the caller.
type Recorder struct {
	svc      Service
	fallback core.Logger
	minLevel Level
	disabled bool

	scope     string
	requestID string
	userID    string
}

func NewRecorder(svc Service, fallback core.Logger, conf core.LogsConfig) *Recorder {
	if conf.MinLevel == "" {
		return &Recorder{svc: svc, fallback: fallback, disabled: true}
	}
	minLevel, ok := ParseLevel(conf.MinLevel)
	if !ok {
		minLevel = LevelInfo
	}
	return &Recorder{svc: svc, fallback: fallback, minLevel: minLevel}
}

// WithScope returns a derived recorder tagging entries with the given scope.
func (r *Recorder) WithScope(scope string) *Recorder {
	derived := *r
	derived.scope = scope
	return &derived
}

// WithRequestID returns a derived recorder tagging entries with a request id.
func (r *Recorder) WithRequestID(requestID string) *Recorder {
	derived := *r
	derived.requestID = requestID
	return &derived
}

// WithUser returns a derived recorder attributing entries to a user.
func (r *Recorder) WithUser(userID string) *Recorder {
	derived := *r
	derived.userID = userID
	return &derived
}

func (r *Recorder) Debug(ctx context.Context, msg string, metadata map[string]interface{}) {
	r.record(ctx, LevelDebug, msg, metadata)
}

func (r *Recorder) Info(ctx context.Context, msg string, metadata map[string]interface{}) {
	r.record(ctx, LevelInfo, msg, metadata)
}

func (r *Recorder) Warn(ctx context.Context, msg string, metadata map[string]interface{}) {
	r.record(ctx, LevelWarn, msg, metadata)
}

func (r *Recorder) Error(ctx context.Context, msg string, metadata map[string]interface{}) {
	r.record(ctx, LevelError, msg, metadata)
}

func (r *Recorder) record(ctx context.Context, level Level, msg string, metadata map[string]interface{}) {
	if r == nil || r.disabled || !level.AtLeast(r.minLevel) {
		return
	}

	entry := Entry{
		Level:    level,
		Message:  msg,
		UserID:   null.NewString(r.userID, r.userID != ""),
		Metadata: r.buildMetadata(metadata),
	}
	if err := r.svc.Record(ctx, entry); err != nil {
		r.fallback.Error("persisting log entry failed", err)
	}
}

func (r *Recorder) buildMetadata(metadata map[string]interface{}) json.RawMessage {
	fields := make(map[string]interface{}, len(metadata)+2)
	for key, val := range metadata {
		fields[key] = val
	}
	if r.scope != "" {
		fields[metaScopeKey] = r.scope
	}
	if r.requestID != "" {
		fields[metaRequestIDKey] = r.requestID
	}
	if len(fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		r.fallback.Error("marshaling log metadata failed", err)
		return nil
	}
	return raw
}
