package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_Layouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2019-03-01T10:20:30.123-03:00", time.Date(2019, 3, 1, 13, 20, 30, 123e6, time.UTC)},
		{"2019-03-01T10:20:30.123+00:00", time.Date(2019, 3, 1, 10, 20, 30, 123e6, time.UTC)},
		{"2019-03-01T10:20:30.123Z", time.Date(2019, 3, 1, 10, 20, 30, 123e6, time.UTC)},
		{"2019-03-01T10:20:30.123", time.Date(2019, 3, 1, 10, 20, 30, 123e6, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTimestamp("f", tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestParseTimestamp_Errors(t *testing.T) {
	for _, in := range []string{"2019-03-01", "yesterday", "2019-03-01T10:20:30"} {
		_, err := parseTimestamp("CreationTime", in)
		var tsErr *TimestampError
		require.True(t, errors.As(err, &tsErr), in)
		assert.Equal(t, "CreationTime", tsErr.Field)
		assert.Equal(t, in, tsErr.Value)
		assert.NotNil(t, errors.Unwrap(err))
	}
}

func TestCanonicalTimestamp(t *testing.T) {
	got, err := canonicalTimestamp("TimeStamp", "2020-05-01T12:00:00.5+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2020-05-01T10:00:00.500Z", got)

	got, err = canonicalTimestamp("TimeStamp", "2020-05-01T12:00:00.000")
	require.NoError(t, err)
	assert.Equal(t, "2020-05-01T12:00:00.000Z", got)
}
