package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete specd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Steering  SteeringConfig  `koanf:"steering"`
	Citations CitationsConfig `koanf:"citations"`
}

// ServerConfig holds HTTP and MCP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MCPRatePerSecond caps tool invocations across the MCP server.
	MCPRatePerSecond float64 `koanf:"mcp_rate_per_second"`

	// MCPRateBurst is the invocation limiter burst size.
	MCPRateBurst int `koanf:"mcp_rate_burst"`
}

// LoggingConfig holds the log settings surfaced through the main config
// file. The full logger configuration lives in internal/logging; these
// fields override its defaults.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // grpc or http
	Insecure    bool   `koanf:"insecure"`
	// SampleRatio is the parent-based trace sampling ratio. Zero means the
	// 1.0 default; disable tracing by disabling telemetry.
	SampleRatio float64 `koanf:"sample_ratio"`
	// AuthToken is sent as a bearer token to the OTLP collector when set.
	AuthToken Secret `koanf:"auth_token"`
}

// PipelineConfig holds pipeline retry and timeout configuration.
type PipelineConfig struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
	StageTimeout time.Duration `koanf:"stage_timeout"`
}

// SteeringConfig holds steering document store configuration.
type SteeringConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	Watch   bool   `koanf:"watch"`
}

// CitationsConfig holds citation registry configuration.
type CitationsConfig struct {
	// SourcesPath overrides the embedded source registry when set.
	SourcesPath string `koanf:"sources_path"`
}

// Validate reports the first invalid setting it finds:
//   - server port outside 1-65535
//   - non-positive shutdown timeout
//   - MCP rate limit settings out of range
//   - unknown log level or format
//   - telemetry enabled with an empty service name, unknown protocol,
//     or a sample ratio outside [0, 1]
//   - pipeline retry settings out of range
//   - steering enabled without a directory
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MCPRatePerSecond < 0 {
		return errors.New("mcp rate per second cannot be negative")
	}
	if c.Server.MCPRateBurst < 1 {
		return fmt.Errorf("mcp rate burst must be at least 1, got %d", c.Server.MCPRateBurst)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format: %q (must be json or console)", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("unknown telemetry protocol: %q (must be grpc or http)", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
			return fmt.Errorf("sample ratio %v out of range [0, 1]", c.Telemetry.SampleRatio)
		}
	}

	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline max attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.RetryDelay < 0 {
		return errors.New("pipeline retry delay cannot be negative")
	}
	if c.Pipeline.StageTimeout <= 0 {
		return errors.New("pipeline stage timeout must be positive")
	}

	if c.Steering.Enabled && c.Steering.Dir == "" {
		return errors.New("steering directory required when steering is enabled")
	}

	return nil
}

// applyDefaults fills whatever the file and environment left unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8823
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MCPRatePerSecond == 0 {
		cfg.Server.MCPRatePerSecond = 20
	}
	if cfg.Server.MCPRateBurst == 0 {
		cfg.Server.MCPRateBurst = 40
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "specd"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1.0
	}

	if cfg.Pipeline.MaxAttempts == 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.RetryDelay == 0 {
		cfg.Pipeline.RetryDelay = 250 * time.Millisecond
	}
	if cfg.Pipeline.StageTimeout == 0 {
		cfg.Pipeline.StageTimeout = 30 * time.Second
	}

	// Steering is opt-in; only the directory gets a default.
	if cfg.Steering.Enabled && cfg.Steering.Dir == "" {
		cfg.Steering.Dir = "~/.config/specd/steering"
	}
}
