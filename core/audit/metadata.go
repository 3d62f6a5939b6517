package audit

import (
	"bytes"
	"encoding/json"
)

// Reserved metadata keys, always removed from the blob; their values are
// surfaced only when string-typed.
const (
	metaScopeKey     = "scope"
	metaRequestIDKey = "requestId"
)

// extractMetadata splits a raw metadata blob into the reserved scope and
// requestId values plus the remaining metadata. A non-object blob is passed
// through untouched with no reserved values; an object left empty after
// extraction yields a nil remainder.
func extractMetadata(raw json.RawMessage) (scope, requestID *string, remainder json.RawMessage) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, raw
	}

	scope = liftString(fields, metaScopeKey)
	requestID = liftString(fields, metaRequestIDKey)

	if len(fields) == 0 {
		return scope, requestID, nil
	}
	remainder, err := json.Marshal(fields)
	if err != nil {
		return scope, requestID, raw
	}
	return scope, requestID, remainder
}

// liftString removes key from fields and returns its value when string-typed.
// The key is dropped from the remainder even when the value has another type.
func liftString(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
