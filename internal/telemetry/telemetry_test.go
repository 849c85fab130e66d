package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)
	log.Debug("hello", "path", "a/b")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"path":"a/b"`)

	buf.Reset()
	log, err = NewLogger("warn", "", &buf)
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.True(t, strings.Contains(buf.String(), "msg=kept"))
}

func TestNewLogger_Rejects(t *testing.T) {
	_, err := NewLogger("loud", "text", nil)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("", reg)

	c.ItemEmitted("file")
	c.ItemEmitted("file")
	c.ItemEmitted("Contact")
	c.RecordMerged("PhoneNumber")
	c.Discovered(3, 4096)
	c.Discovered(0, 0)
	c.PreviewWritten("email")
	c.ContentUnresolved()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.itemsEmitted.WithLabelValues("file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.itemsEmitted.WithLabelValues("Contact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recordsMerged.WithLabelValues("PhoneNumber")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.discoveredItems))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.discoveredBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.previewsWritten.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.contentUnresolved))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "evidencegraph_ingest_items_emitted_total")
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.ItemEmitted("file")
	c.RecordMerged("Party")
	c.Discovered(1, 1)
	c.PreviewWritten("contact")
	c.ContentUnresolved()
}
