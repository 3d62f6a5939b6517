package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
)

func TestQueryParamsParse(t *testing.T) {
	tests := []struct {
		name    string
		params  QueryParams
		want    Query
		wantErr error
	}{
		{
			name:   "defaults",
			params: QueryParams{},
			want:   Query{Page: 1, PageSize: 25},
		},
		{
			name:   "explicit page and size",
			params: QueryParams{Page: "3", PageSize: "50"},
			want:   Query{Page: 3, PageSize: 50},
		},
		{
			name:   "page size at ceiling",
			params: QueryParams{PageSize: "100"},
			want:   Query{Page: 1, PageSize: 100},
		},
		{
			name:    "page size over ceiling",
			params:  QueryParams{PageSize: "101"},
			wantErr: errPageSizeTooLarge,
		},
		{
			name:    "zero page",
			params:  QueryParams{Page: "0"},
			wantErr: errInvalidPage,
		},
		{
			name:    "negative page",
			params:  QueryParams{Page: "-2"},
			wantErr: errInvalidPage,
		},
		{
			name:    "non-numeric page",
			params:  QueryParams{Page: "abc"},
			wantErr: errInvalidPage,
		},
		{
			name:    "non-numeric page size",
			params:  QueryParams{PageSize: "lots"},
			wantErr: errInvalidPageSize,
		},
		{
			name:    "unrecognized level",
			params:  QueryParams{Level: "PURPLE"},
			wantErr: errInvalidLevel,
		},
		{
			name:    "unparsable start date",
			params:  QueryParams{Start: "02/01/2024"},
			wantErr: errInvalidStartDate,
		},
		{
			name:    "unparsable end date",
			params:  QueryParams{End: "soon"},
			wantErr: errInvalidEndDate,
		},
		{
			name:    "inverted range",
			params:  QueryParams{Start: "2024-02-01", End: "2024-01-01"},
			wantErr: errInvalidDateRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.params.Parse()
			if tt.wantErr != nil {
				vErr, ok := err.(*core.ValidationError)
				if assert.True(t, ok, "expected a validation error, got %v", err) {
					assert.Equal(t, tt.wantErr, vErr.Err)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQueryParamsParseLevel(t *testing.T) {
	q, err := QueryParams{Level: "error"}.Parse()
	assert.NoError(t, err)
	if assert.NotNil(t, q.Level) {
		assert.Equal(t, LevelError, *q.Level)
	}
}

func TestQueryParamsParseDates(t *testing.T) {
	q, err := QueryParams{Start: "2024-01-15", End: "2024-01-15"}.Parse()
	assert.NoError(t, err)
	if assert.NotNil(t, q.Start) && assert.NotNil(t, q.End) {
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *q.Start)
		assert.Equal(t, time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC), *q.End)
	}

	// time-of-day in the input does not affect the normalized bounds
	q, err = QueryParams{Start: "2024-01-15T18:30:00Z", End: "2024-01-16T04:00:00Z"}.Parse()
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *q.Start)
	assert.Equal(t, time.Date(2024, 1, 16, 23, 59, 59, int(999*time.Millisecond), time.UTC), *q.End)
}

func TestQueryOffset(t *testing.T) {
	assert.Equal(t, 0, Query{Page: 1, PageSize: 25}.Offset())
	assert.Equal(t, 50, Query{Page: 3, PageSize: 25}.Offset())
}
