package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultSettleDelay   = 300 * time.Millisecond
	DefaultModel         = "claude-sonnet-4-20250514"
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 150
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultClaudePath    = "claude"
	DefaultClaudeTimeout = 5 * time.Minute
)

// EnvPrefix prefixes environment overrides, e.g. PROMPTGRAPH_LOG_LEVEL.
const EnvPrefix = "PROMPTGRAPH_"

// ModelDefaults fill in model nodes that leave a field unset.
type ModelDefaults struct {
	Name        string
	Temperature float64
	MaxTokens   int
}

// Settings is the typed engine configuration.
type Settings struct {
	// SettleDelay is the pause after the start node succeeds.
	SettleDelay time.Duration

	// MaxConcurrency caps parallel node execution per tick. Zero is unlimited.
	MaxConcurrency int

	Model ModelDefaults

	LogLevel  string
	LogFormat string

	// CheckpointPath enables SQLite tick checkpoints when non-empty.
	CheckpointPath string

	Metrics bool
	Tracing bool

	ClaudePath    string
	ClaudeTimeout time.Duration
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		SettleDelay: DefaultSettleDelay,
		Model: ModelDefaults{
			Name:        DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		ClaudePath:    DefaultClaudePath,
		ClaudeTimeout: DefaultClaudeTimeout,
	}
}

// FromConfig overlays cfg on the defaults.
func FromConfig(cfg Config) Settings {
	s := Defaults()
	s.SettleDelay = cfg.Duration("settle_delay", s.SettleDelay)
	s.MaxConcurrency = cfg.Int("max_concurrency", s.MaxConcurrency)

	model := cfg.Sub("model")
	s.Model.Name = model.String("name", s.Model.Name)
	s.Model.Temperature = model.Float("temperature", s.Model.Temperature)
	s.Model.MaxTokens = model.Int("max_tokens", s.Model.MaxTokens)

	log := cfg.Sub("log")
	s.LogLevel = log.String("level", s.LogLevel)
	s.LogFormat = log.String("format", s.LogFormat)
	if cfg.Bool("debug", false) {
		s.LogLevel = "debug"
	}

	s.CheckpointPath = cfg.String("checkpoint_path", s.CheckpointPath)
	s.Metrics = cfg.Bool("metrics", s.Metrics)
	s.Tracing = cfg.Bool("tracing", s.Tracing)

	claude := cfg.Sub("claude")
	s.ClaudePath = claude.String("path", s.ClaudePath)
	s.ClaudeTimeout = claude.Duration("timeout", s.ClaudeTimeout)
	return s
}

// topLevelKeys are the sections a settings file may contain.
var topLevelKeys = []string{
	"settle_delay", "max_concurrency", "model", "log", "debug",
	"checkpoint_path", "metrics", "tracing", "claude",
}

// Parse decodes a YAML or JSON settings document into a Config. JSON input
// is accepted as YAML flow syntax. Unknown top-level keys are an error so
// that a misspelled section is not silently ignored.
func Parse(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse settings: %w", err)
	}
	var unknown []string
	for k := range m {
		if !slices.Contains(topLevelKeys, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return Config{}, fmt.Errorf("unknown settings: %s", strings.Join(unknown, ", "))
	}
	return New(m), nil
}

// Load reads the settings file at path (if non-empty), applies environment
// overrides and validates the result. The file must be .yaml, .yml or .json.
func Load(path string) (Settings, error) {
	cfg := New(nil)
	if path != "" {
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml", ".json":
		default:
			return Settings{}, fmt.Errorf("unsupported settings file extension: %q", ext)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	s := FromConfig(cfg)
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ApplyEnv overrides fields from PROMPTGRAPH_* variables found by lookup.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	parse := func(key string, apply func(string) error) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			if err := apply(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			}
		}
	}

	str("MODEL", &s.Model.Name)
	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FORMAT", &s.LogFormat)
	str("CHECKPOINT_PATH", &s.CheckpointPath)
	str("CLAUDE_PATH", &s.ClaudePath)
	parse("SETTLE_DELAY", func(v string) (err error) {
		s.SettleDelay, err = time.ParseDuration(v)
		return err
	})
	parse("MAX_CONCURRENCY", func(v string) (err error) {
		s.MaxConcurrency, err = strconv.Atoi(v)
		return err
	})
	parse("TEMPERATURE", func(v string) (err error) {
		s.Model.Temperature, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("MAX_TOKENS", func(v string) (err error) {
		s.Model.MaxTokens, err = strconv.Atoi(v)
		return err
	})
	parse("METRICS", func(v string) (err error) {
		s.Metrics, err = strconv.ParseBool(v)
		return err
	})
	parse("TRACING", func(v string) (err error) {
		s.Tracing, err = strconv.ParseBool(v)
		return err
	})
	parse("CLAUDE_TIMEOUT", func(v string) (err error) {
		s.ClaudeTimeout, err = time.ParseDuration(v)
		return err
	})
	return errors.Join(errs...)
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if s.SettleDelay < 0 {
		errs = append(errs, errors.New("settle_delay must not be negative"))
	}
	if s.MaxConcurrency < 0 {
		errs = append(errs, errors.New("max_concurrency must not be negative"))
	}
	if s.Model.Temperature < 0 || s.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature %v outside [0, 2]", s.Model.Temperature))
	}
	if s.Model.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("model.max_tokens %d must be positive", s.Model.MaxTokens))
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", s.LogLevel))
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", s.LogFormat))
	}
	if s.ClaudeTimeout <= 0 {
		errs = append(errs, errors.New("claude.timeout must be positive"))
	}
	return errors.Join(errs...)
}
