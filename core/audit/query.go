package audit

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

const (
	defaultPage     = 1
	defaultPageSize = 25
	maxPageSize     = 100
)

var (
	errInvalidPage      = errors.New("page must be a positive integer")
	errInvalidPageSize  = errors.New("page size must be a positive integer")
	errPageSizeTooLarge = errors.Errorf("page size may not exceed %d", maxPageSize)
	errInvalidLevel     = errors.New("unrecognized log level")
	errInvalidStartDate = errors.New("invalid start date")
	errInvalidEndDate   = errors.New("invalid end date")
	errInvalidDateRange = errors.New("start date must not be later than end date")
)

// QueryParams holds the raw, untrusted query string values.
type QueryParams struct {
	Page     string `query:"page"`
	PageSize string `query:"page_size"`
	Level    string `query:"level"`
	Start    string `query:"start"`
	End      string `query:"end"`
}

// Query is the validated plan executed against the log store.
type Query struct {
	Page     int
	PageSize int
	Level    *Level
	Start    *time.Time
	End      *time.Time
}

func (q Query) Offset() int { return (q.Page - 1) * q.PageSize }

// Parse validates and normalizes the raw parameters, failing fast with a
// distinct reason per violation before any store access happens.
func (p QueryParams) Parse() (Query, error) {
	q := Query{Page: defaultPage, PageSize: defaultPageSize}

	var err error
	if q.Page, err = parsePositiveInt(p.Page, defaultPage); err != nil {
		return Query{}, core.NewValidationError(errInvalidPage,
			core.FieldError{Field: "page", Error: errInvalidPage.Error()})
	}
	if q.PageSize, err = parsePositiveInt(p.PageSize, defaultPageSize); err != nil {
		return Query{}, core.NewValidationError(errInvalidPageSize,
			core.FieldError{Field: "page_size", Error: errInvalidPageSize.Error()})
	}
	if q.PageSize > maxPageSize {
		return Query{}, core.NewValidationError(errPageSizeTooLarge,
			core.FieldError{Field: "page_size", Error: errPageSizeTooLarge.Error()})
	}

	if raw := strings.TrimSpace(p.Level); raw != "" {
		level, ok := ParseLevel(raw)
		if !ok {
			return Query{}, core.NewValidationError(errInvalidLevel,
				core.FieldError{Field: "level", Error: errInvalidLevel.Error()})
		}
		q.Level = &level
	}

	if raw := strings.TrimSpace(p.Start); raw != "" {
		day, err := parseDay(raw)
		if err != nil {
			return Query{}, core.NewValidationError(errInvalidStartDate,
				core.FieldError{Field: "start", Error: errInvalidStartDate.Error()})
		}
		start := startOfDay(day)
		q.Start = &start
	}
	if raw := strings.TrimSpace(p.End); raw != "" {
		day, err := parseDay(raw)
		if err != nil {
			return Query{}, core.NewValidationError(errInvalidEndDate,
				core.FieldError{Field: "end", Error: errInvalidEndDate.Error()})
		}
		end := endOfDay(day)
		q.End = &end
	}
	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		return Query{}, core.NewValidationError(errInvalidDateRange,
			core.FieldError{Field: "start", Error: errInvalidDateRange.Error()})
	}
	return q, nil
}

func parsePositiveInt(raw string, defaultVal int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return val, nil
}

var dayFormats = []string{"2006-01-02", time.RFC3339}

func parseDay(raw string) (time.Time, error) {
	for _, format := range dayFormats {
		if day, err := time.Parse(format, raw); err == nil {
			return day, nil
		}
	}
	return time.Time{}, errors.Errorf("unparsable date %q", raw)
}

// startOfDay normalizes to 00:00:00.000 UTC of the supplied calendar day.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// endOfDay normalizes to 23:59:59.999 UTC of the supplied calendar day,
// making the range inclusive of the whole boundary day.
func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
