package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "specd", cfg.ServiceName)
	assert.Equal(t, "0.1.0", cfg.ServiceVersion)
	assert.Equal(t, protocolGRPC, cfg.Protocol)
	assert.True(t, cfg.Insecure)
	assert.False(t, cfg.AuthToken.IsSet())
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.True(t, cfg.Sampling.AlwaysOnErrors)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout.Duration())

	cfg.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestFromAppConfig(t *testing.T) {
	t.Run("overrides applied", func(t *testing.T) {
		app := config.TelemetryConfig{
			Enabled:     true,
			Endpoint:    "collector.internal:4318",
			ServiceName: "specd-ci",
			Protocol:    "http",
			SampleRatio: 0.25,
			AuthToken:   config.Secret("tok"),
		}

		cfg := FromAppConfig(app, "1.4.0")

		assert.True(t, cfg.Enabled)
		assert.Equal(t, "collector.internal:4318", cfg.Endpoint)
		assert.Equal(t, "specd-ci", cfg.ServiceName)
		assert.Equal(t, "1.4.0", cfg.ServiceVersion)
		assert.Equal(t, protocolHTTP, cfg.Protocol)
		assert.False(t, cfg.Insecure)
		assert.Equal(t, 0.25, cfg.Sampling.Rate)
		assert.Equal(t, "tok", cfg.AuthToken.Value())
	})

	t.Run("empty strings keep defaults", func(t *testing.T) {
		cfg := FromAppConfig(config.TelemetryConfig{Insecure: true}, "")

		assert.Equal(t, "localhost:4317", cfg.Endpoint)
		assert.Equal(t, "specd", cfg.ServiceName)
		assert.Equal(t, "0.1.0", cfg.ServiceVersion)
		assert.Equal(t, protocolGRPC, cfg.Protocol)
	})

	t.Run("zero ratio keeps full sampling", func(t *testing.T) {
		cfg := FromAppConfig(config.TelemetryConfig{SampleRatio: 0}, "")
		assert.Equal(t, 1.0, cfg.Sampling.Rate)
	})

	t.Run("insecure follows the app section", func(t *testing.T) {
		cfg := FromAppConfig(config.TelemetryConfig{Insecure: false}, "")
		assert.False(t, cfg.Insecure)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "enabled defaults"},
		{name: "disabled skips validation", mutate: func(c *Config) {
			c.Enabled = false
			c.Endpoint = ""
			c.Shutdown.Timeout = 0
		}},
		{name: "empty protocol falls back to grpc", mutate: func(c *Config) { c.Protocol = "" }},
		{name: "secure remote endpoint", mutate: func(c *Config) {
			c.Endpoint = "collector.prod:4317"
			c.Insecure = false
		}},
		{name: "export interval ignored when metrics off", mutate: func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.ExportInterval = 0
		}},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.ServiceName = "" },
			wantErr: "service_name is required",
		},
		{
			name:    "missing service version",
			mutate:  func(c *Config) { c.ServiceVersion = "" },
			wantErr: "service_version is required",
		},
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Protocol = "udp" },
			wantErr: `protocol must be "grpc" or "http"`,
		},
		{
			name:    "insecure remote endpoint",
			mutate:  func(c *Config) { c.Endpoint = "collector.prod:4317" },
			wantErr: "insecure connections to remote endpoints are not allowed",
		},
		{
			name:    "negative sampling rate",
			mutate:  func(c *Config) { c.Sampling.Rate = -0.1 },
			wantErr: "sampling.rate must be between 0 and 1",
		},
		{
			name:    "sampling rate above one",
			mutate:  func(c *Config) { c.Sampling.Rate = 1.1 },
			wantErr: "sampling.rate must be between 0 and 1",
		},
		{
			name:    "zero export interval",
			mutate:  func(c *Config) { c.Metrics.ExportInterval = 0 },
			wantErr: "metrics.export_interval must be positive",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Shutdown.Timeout = 0 },
			wantErr: "shutdown.timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSamplingBounds(t *testing.T) {
	for _, rate := range []float64{0, 0.001, 0.5, 0.999, 1} {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		cfg.Sampling.Rate = rate
		require.NoError(t, cfg.Validate(), "rate %v", rate)
	}
}

func TestIsLoopbackEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		loopback bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4317", true},
		{"127.0.0.1", true},
		{"127.0.1.1:4317", true},
		{"[::1]:4317", true},
		{"::1:4317", true},
		{"::1", true},
		{"collector.prod:4317", false},
		{"otel.example.com:4317", false},
		{"192.168.1.1:4317", false},
		{"10.0.0.1:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.loopback, cfg.isLoopbackEndpoint())
		})
	}
}
