// Package api holds the user-facing configuration of an ingestion run.
package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultMaxNameLength    = 4096
	DefaultPhoneParsers     = "all"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsNamespace = "evidencegraph"
)

// EnvPrefix starts every environment override, e.g. EVIDENCEGRAPH_LOG_LEVEL.
const EnvPrefix = "EVIDENCEGRAPH_"

// Config is the configuration of an ingestion run.
type Config struct {
	// OutputDir receives preview documents. Empty means the directory of the
	// output database.
	OutputDir string `yaml:"output_dir"`
	// ListOnly counts items and bytes without building anything.
	ListOnly bool `yaml:"list_only"`
	// BlindReport exports metadata as content for top-level records too.
	BlindReport   bool   `yaml:"blind_report"`
	MaxNameLength int    `yaml:"max_name_length"`
	PhoneParsers  string `yaml:"phone_parsers"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// FieldError is a validation failure of one field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found by Validate.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "invalid configuration"
	case 1:
		return "invalid configuration: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid configuration (%d errors): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML file, applies defaults and environment overrides,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.LookupEnv)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.MaxNameLength == 0 {
		cfg.MaxNameLength = DefaultMaxNameLength
	}
	if cfg.PhoneParsers == "" {
		cfg.PhoneParsers = DefaultPhoneParsers
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// ApplyEnv overrides fields from EVIDENCEGRAPH_* variables. Unparseable
// booleans and numbers are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("OUTPUT_DIR", &cfg.OutputDir)
	boolean("LIST_ONLY", &cfg.ListOnly)
	boolean("BLIND_REPORT", &cfg.BlindReport)
	if v, ok := lookup(EnvPrefix + "MAX_NAME_LENGTH"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNameLength = n
		}
	}
	str("PHONE_PARSERS", &cfg.PhoneParsers)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_NAMESPACE", &cfg.Metrics.Namespace)
}

// Validate checks every field and reports all failures at once.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.MaxNameLength < 1 {
		add("max_name_length", "must be positive, got %d", cfg.MaxNameLength)
	}
	switch cfg.PhoneParsers {
	case "internal", "external", "all":
	default:
		add("phone_parsers", "must be internal, external or all, got %q", cfg.PhoneParsers)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "unknown level %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		add("log.format", "must be json or text, got %q", cfg.Log.Format)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		add("metrics.namespace", "required when metrics are enabled")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
