package api

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "blind_report: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.BlindReport)
	assert.False(t, cfg.ListOnly)
	assert.Equal(t, DefaultMaxNameLength, cfg.MaxNameLength)
	assert.Equal(t, "all", cfg.PhoneParsers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestLoadConfig_FullFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
output_dir: /tmp/out
list_only: true
max_name_length: 64
phone_parsers: internal
log:
  level: debug
  format: json
metrics:
  enabled: true
  namespace: forensics
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.True(t, cfg.ListOnly)
	assert.Equal(t, 64, cfg.MaxNameLength)
	assert.Equal(t, "internal", cfg.PhoneParsers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "forensics", cfg.Metrics.Namespace)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "list_only: [oops\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "phone_parsers: cloud\nmax_name_length: -1\nlog:\n  format: xml\n"))
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"max_name_length", "phone_parsers", "log.format"}, fields)
	assert.Contains(t, err.Error(), "3 errors")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EVIDENCEGRAPH_LIST_ONLY":       "true",
		"EVIDENCEGRAPH_MAX_NAME_LENGTH": "12",
		"EVIDENCEGRAPH_LOG_LEVEL":       "warn",
		"EVIDENCEGRAPH_BLIND_REPORT":    "not-a-bool",
	}
	cfg := DefaultConfig()
	cfg.BlindReport = true
	ApplyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.True(t, cfg.ListOnly)
	assert.Equal(t, 12, cfg.MaxNameLength)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.BlindReport, "unparseable values leave the field alone")
	require.NoError(t, Validate(cfg))
}
