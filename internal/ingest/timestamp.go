package ingest

import (
	"fmt"
	"time"
)

// Report timestamps come in two shapes: with a UTC offset
// ("2019-03-01T10:20:30.123-03:00") and without one
// ("2019-03-01T10:20:30.123"), the latter meaning UTC.
const (
	layoutOffset   = "2006-01-02T15:04:05Z07:00"
	layoutNoOffset = "2006-01-02T15:04:05"

	// noOffsetLen is the length of a millisecond timestamp with no offset.
	noOffsetLen = len("2006-01-02T15:04:05.000")

	// CanonicalTimeLayout is how reformatted timestamps are written back.
	CanonicalTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// TimestampError reports a timestamp that could not be parsed.
type TimestampError struct {
	Field string
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *TimestampError) Unwrap() error { return e.Err }

// parseTimestamp parses value with the layout its length selects.
func parseTimestamp(field, value string) (time.Time, error) {
	layout := layoutOffset
	if len(value) == noOffsetLen {
		layout = layoutNoOffset
	}
	t, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		return time.Time{}, &TimestampError{Field: field, Value: value, Err: err}
	}
	return t.UTC(), nil
}

// canonicalTimestamp rewrites value in the canonical UTC form.
func canonicalTimestamp(field, value string) (string, error) {
	t, err := parseTimestamp(field, value)
	if err != nil {
		return "", err
	}
	return t.Format(CanonicalTimeLayout), nil
}
