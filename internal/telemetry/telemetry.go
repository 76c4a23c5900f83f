package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Option adjusts how New assembles the SDK providers. Options exist so
// tests can substitute in-memory exporters for the OTLP ones.
type Option func(*options)

type options struct {
	spanExporter   sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
}

// WithTraceExporter replaces the OTLP span exporter. Injected exporters run
// synchronously, so spans are visible as soon as they end.
func WithTraceExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

// Telemetry owns the OpenTelemetry providers for the daemon.
//
// Export problems never take the daemon down. When a provider cannot be
// built the instance degrades to no-op behavior and Health carries the
// reason instead.
type Telemetry struct {
	config *Config

	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    log.LoggerProvider

	healthy        atomic.Bool
	degraded       atomic.Bool
	degradedReason atomic.Value
}

// New validates cfg and brings up the providers it describes, registering
// them as the process-wide OTEL defaults. A disabled config yields a
// functional no-op instance. Provider failures degrade the instance rather
// than failing startup.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{config: cfg}
	t.healthy.Store(true)
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res, o.spanExporter); err != nil {
		t.markDegraded("tracer provider: %v", err)
	} else {
		t.traces = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter); err != nil {
		t.markDegraded("meter provider: %v", err)
	} else if mp != nil {
		t.metrics = mp
		otel.SetMeterProvider(mp)
	}

	// W3C trace context plus baggage, so spans correlate across the HTTP
	// and MCP surfaces.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Tracer returns a tracer from the managed provider, or from the process
// default (no-op unless someone registered one) when telemetry is off or
// degraded.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.traces == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.traces.Tracer(name, opts...)
}

// Meter mirrors Tracer for metric instruments.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.metrics == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.metrics.Meter(name, opts...)
}

// LoggerProvider returns the provider backing the zap bridge core, nil when
// none has been attached.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logs
}

// SetLoggerProvider attaches the provider the logging package bridges into.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.logs = lp
	}
}

// provider is the lifecycle surface shared by the SDK trace and metric
// providers.
type provider interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

type namedProvider struct {
	name string
	provider
}

// active returns the providers that were actually constructed.
func (t *Telemetry) active() []namedProvider {
	var ps []namedProvider
	if t.traces != nil {
		ps = append(ps, namedProvider{"trace provider", t.traces})
	}
	if t.metrics != nil {
		ps = append(ps, namedProvider{"meter provider", t.metrics})
	}
	return ps
}

// Shutdown flushes and stops every provider. When the caller supplies no
// deadline the configured shutdown timeout applies. The instance reports
// unhealthy afterwards.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	var errs []error
	for _, p := range t.active() {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", p.name, err))
		}
	}
	t.healthy.Store(false)
	return errors.Join(errs...)
}

// ForceFlush pushes all buffered spans and metrics to the collector now.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, p := range t.active() {
		if err := p.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s flush: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// HealthStatus is the snapshot reported by Health.
type HealthStatus struct {
	Healthy  bool
	Degraded bool
	Reason   string
}

// Health reports whether the providers came up and are still running. A nil
// receiver reports degraded, same as a failed init.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	st := HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
	}
	if reason, ok := t.degradedReason.Load().(string); ok {
		st.Reason = reason
	}
	return st
}

// IsEnabled reports whether exports are configured and the instance has not
// been shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.healthy.Load()
}

func (t *Telemetry) markDegraded(format string, args ...any) {
	t.degraded.Store(true)
	t.degradedReason.Store(fmt.Sprintf(format, args...))
}
