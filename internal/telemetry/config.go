package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/specd/internal/config"
)

// Collector transports accepted by Config.Protocol. Empty means gRPC.
const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"
)

// Config describes how the daemon exports telemetry over OTLP.
type Config struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Protocol       string         `koanf:"protocol"`
	Insecure       bool           `koanf:"insecure"`
	TLSSkipVerify  bool           `koanf:"tls_skip_verify"`
	AuthToken      config.Secret  `koanf:"auth_token"`
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Shutdown       ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls what fraction of traces is exported.
type SamplingConfig struct {
	Rate           float64 `koanf:"rate"`
	AlwaysOnErrors bool    `koanf:"always_on_errors"`
}

// MetricsConfig controls the periodic metric export.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig bounds how long provider shutdown may block.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns the telemetry defaults: export disabled, a local
// plaintext gRPC collector, full sampling, 15s metric intervals. Installs
// without a collector run on these defaults untouched.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:4317",
		ServiceName:    "specd",
		ServiceVersion: "0.1.0",
		Protocol:       protocolGRPC,
		Insecure:       true,
		Sampling: SamplingConfig{
			Rate:           1.0,
			AlwaysOnErrors: true,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// FromAppConfig merges the daemon's telemetry section over the defaults.
// Empty strings keep the default, a zero sample ratio keeps full sampling,
// and the service version comes from the build rather than the config file.
func FromAppConfig(app config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = app.Enabled
	cfg.Insecure = app.Insecure
	cfg.AuthToken = app.AuthToken
	if app.Endpoint != "" {
		cfg.Endpoint = app.Endpoint
	}
	if app.ServiceName != "" {
		cfg.ServiceName = app.ServiceName
	}
	if app.Protocol != "" {
		cfg.Protocol = app.Protocol
	}
	if app.SampleRatio > 0 {
		cfg.Sampling.Rate = app.SampleRatio
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate reports the first configuration error. A disabled config is
// always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}
	if c.Protocol != "" && c.Protocol != protocolGRPC && c.Protocol != protocolHTTP {
		return fmt.Errorf("protocol must be %q or %q, got %q", protocolGRPC, protocolHTTP, c.Protocol)
	}
	if c.Insecure && !c.isLoopbackEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; enable TLS or point at a loopback collector")
	}
	if err := c.Sampling.validate(); err != nil {
		return err
	}
	if err := c.Metrics.validate(); err != nil {
		return err
	}
	return c.Shutdown.validate()
}

func (s SamplingConfig) validate() error {
	if s.Rate < 0 || s.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %v", s.Rate)
	}
	return nil
}

func (m MetricsConfig) validate() error {
	if m.Enabled && m.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics are enabled")
	}
	return nil
}

func (s ShutdownConfig) validate() error {
	if s.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	return nil
}

// isLoopbackEndpoint reports whether the endpoint points at this machine.
// Plaintext export is only permitted for such endpoints.
func (c *Config) isLoopbackEndpoint() bool {
	host := c.Endpoint
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	// Unbracketed IPv6 loopback with a port (::1:4317) defeats
	// SplitHostPort; fall back to a prefix check.
	return strings.HasPrefix(host, "::1")
}
