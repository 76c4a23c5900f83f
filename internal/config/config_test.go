package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "localhost",
			Port:             8823,
			ShutdownTimeout:  10 * time.Second,
			MCPRatePerSecond: 20,
			MCPRateBurst:     40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "specd",
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			SampleRatio: 1.0,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:  3,
			RetryDelay:   250 * time.Millisecond,
			StageTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "valid with telemetry enabled",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
		},
		{
			name: "valid with steering enabled",
			mutate: func(c *Config) {
				c.Steering.Enabled = true
				c.Steering.Dir = "~/.config/specd/steering"
			},
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 99999 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "negative mcp rate",
			mutate:  func(c *Config) { c.Server.MCPRatePerSecond = -1 },
			wantErr: "mcp rate per second",
		},
		{
			name:    "zero mcp burst",
			mutate:  func(c *Config) { c.Server.MCPRateBurst = 0 },
			wantErr: "mcp rate burst",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "unknown log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "unknown log format",
		},
		{
			name: "telemetry enabled without service name",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.ServiceName = ""
			},
			wantErr: "service name required",
		},
		{
			name: "telemetry unknown protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			wantErr: "unknown telemetry protocol",
		},
		{
			name: "telemetry sample ratio above one",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRatio = 1.5
			},
			wantErr: "sample ratio",
		},
		{
			name: "telemetry disabled skips telemetry checks",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = false
				c.Telemetry.Protocol = "udp"
			},
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Pipeline.MaxAttempts = 0 },
			wantErr: "max attempts",
		},
		{
			name:    "negative retry delay",
			mutate:  func(c *Config) { c.Pipeline.RetryDelay = -time.Second },
			wantErr: "retry delay",
		},
		{
			name:    "zero stage timeout",
			mutate:  func(c *Config) { c.Pipeline.StageTimeout = 0 },
			wantErr: "stage timeout",
		},
		{
			name: "steering enabled without dir",
			mutate: func(c *Config) {
				c.Steering.Enabled = true
				c.Steering.Dir = ""
			},
			wantErr: "steering directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)

	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want localhost", cfg.Server.Host)
	}
	if cfg.Server.Port != 8823 {
		t.Errorf("Server.Port = %d, want 8823", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MCPRatePerSecond != 20 {
		t.Errorf("Server.MCPRatePerSecond = %v, want 20", cfg.Server.MCPRatePerSecond)
	}
	if cfg.Server.MCPRateBurst != 40 {
		t.Errorf("Server.MCPRateBurst = %d, want 40", cfg.Server.MCPRateBurst)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Telemetry.ServiceName != "specd" {
		t.Errorf("Telemetry.ServiceName = %q, want specd", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.Protocol != "grpc" {
		t.Errorf("Telemetry.Protocol = %q, want grpc", cfg.Telemetry.Protocol)
	}
	if cfg.Telemetry.SampleRatio != 1.0 {
		t.Errorf("Telemetry.SampleRatio = %v, want 1.0", cfg.Telemetry.SampleRatio)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("Pipeline.MaxAttempts = %d, want 3", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.RetryDelay != 250*time.Millisecond {
		t.Errorf("Pipeline.RetryDelay = %v, want 250ms", cfg.Pipeline.RetryDelay)
	}
	if cfg.Pipeline.StageTimeout != 30*time.Second {
		t.Errorf("Pipeline.StageTimeout = %v, want 30s", cfg.Pipeline.StageTimeout)
	}

	// The defaulted configuration validates.
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config failed validation: %v", err)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 7000, ShutdownTimeout: 5 * time.Second},
		Logging:  LoggingConfig{Level: "debug"},
		Pipeline: PipelineConfig{MaxAttempts: 1},
	}
	applyDefaults(&cfg)

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 (explicit)", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 5s (explicit)", cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (explicit)", cfg.Logging.Level)
	}
	if cfg.Pipeline.MaxAttempts != 1 {
		t.Errorf("Pipeline.MaxAttempts = %d, want 1 (explicit)", cfg.Pipeline.MaxAttempts)
	}
	// Unset fields still default.
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestApplyDefaults_SteeringDir(t *testing.T) {
	cfg := Config{Steering: SteeringConfig{Enabled: true}}
	applyDefaults(&cfg)

	if cfg.Steering.Dir != "~/.config/specd/steering" {
		t.Errorf("Steering.Dir = %q, want default steering dir", cfg.Steering.Dir)
	}

	// Disabled steering gets no directory default.
	var disabled Config
	applyDefaults(&disabled)
	if disabled.Steering.Dir != "" {
		t.Errorf("Steering.Dir = %q, want empty when disabled", disabled.Steering.Dir)
	}
}
