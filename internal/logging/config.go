package logging

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/specd/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below zapcore.DebugLevel. It carries
// per-attempt stage internals and wire payloads, and is filtered out
// almost everywhere outside local debugging.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name. "trace" maps to TraceLevel;
// everything else is delegated to zapcore, so "info", "WARN" and the
// rest of the standard names work as usual.
func LevelFromString(name string) (zapcore.Level, error) {
	if name == "trace" {
		return TraceLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, err
	}
	return lvl, nil
}

// Config describes the full logger stack: level, encoding, sinks,
// sampling, caller annotation, constant fields and redaction.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects the sinks. Stderr takes precedence over Stdout
// so stdio transports keep stdout free for their protocol. OTEL routes
// entries through the otelzap bridge when a provider is wired in.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig bounds log volume per tick. Error and above are never
// sampled regardless of the per-level budgets.
type SamplingConfig struct {
	Enabled bool                                  `koanf:"enabled"`
	Tick    config.Duration                       `koanf:"tick"`
	Levels  map[zapcore.Level]LevelSamplingConfig `koanf:"levels"`
}

// LevelSamplingConfig is one level's budget: the first Initial entries
// per tick pass, then one in every Thereafter.
type LevelSamplingConfig struct {
	Initial    int `koanf:"initial"`
	Thereafter int `koanf:"thereafter"`
}

// CallerConfig controls file:line annotation.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig sets the level at which stacktraces are captured.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// RedactionConfig lists field names and value patterns that must never
// reach a sink in the clear.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns the production defaults: JSON to stdout at
// info, sampling on, caller annotation on, redaction on.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels:  DefaultLevelSamplingConfig(),
		},
		Caller:     CallerConfig{Enabled: true, Skip: 1},
		Stacktrace: StacktraceConfig{Level: zapcore.ErrorLevel},
		Fields:     map[string]string{"service": "specd"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// DefaultLevelSamplingConfig returns the per-level budgets. Error and
// above are absent on purpose; the sampler never touches them.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 1, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 10, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
	}
}

// Validate rejects configurations the logger cannot honor.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		return errors.New("at least one output must be enabled (stdout, stderr, or otel)")
	}
	if err := c.Sampling.validate(); err != nil {
		return err
	}
	if err := c.Caller.validate(); err != nil {
		return err
	}
	if _, err := c.Redaction.compile(); err != nil {
		return err
	}
	return validateConstantFields(c.Fields)
}

func (s SamplingConfig) validate() error {
	if s.Enabled && s.Tick.Duration() <= 0 {
		return errors.New("sampling tick must be > 0 when sampling is enabled")
	}
	return nil
}

func (c CallerConfig) validate() error {
	if c.Enabled && c.Skip < 0 {
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Skip)
	}
	return nil
}

func validateConstantFields(fields map[string]string) error {
	for k, v := range fields {
		if k == "" {
			return errors.New("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}

// zapOptions translates the caller and stacktrace sections.
func (c *Config) zapOptions() []zap.Option {
	var opts []zap.Option
	if c.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(c.Caller.Skip))
	}
	if c.Stacktrace.Level != 0 {
		opts = append(opts, zap.AddStacktrace(c.Stacktrace.Level))
	}
	return opts
}

// constantFields renders Fields in sorted key order so every entry
// carries them in a stable position.
func (c *Config) constantFields() []zap.Field {
	if len(c.Fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, c.Fields[k]))
	}
	return fields
}
