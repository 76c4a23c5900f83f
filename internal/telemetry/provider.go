package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

// newResource describes the service to the collector. It is built standalone
// rather than merged with resource.Default, whose schema URL moves between
// semconv releases and makes the merge fail.
func newResource(cfg *Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

// newSampler maps the configured rate onto the SDK samplers. The result is
// parent-based so sampling decisions made upstream win.
func newSampler(s SamplingConfig) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case s.Rate >= 1:
		root = sdktrace.AlwaysSample()
	case s.Rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(s.Rate)
	}
	return sdktrace.ParentBased(root)
}

// authHeaders carries the collector bearer token, nil when none is set.
func authHeaders(cfg *Config) map[string]string {
	if !cfg.AuthToken.IsSet() {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + cfg.AuthToken.Value()}
}

// skipVerifyTLS is the client TLS config used when the operator opted into
// tls_skip_verify for collectors behind internal CAs.
func skipVerifyTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit operator opt-in
}

// newSpanExporter builds the OTLP span exporter for the configured protocol.
func newSpanExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	headers := authHeaders(cfg)

	if cfg.Protocol == protocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint))}
		if headers != nil {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		switch {
		case cfg.Insecure:
			opts = append(opts, otlptracehttp.WithInsecure())
		case cfg.TLSSkipVerify:
			opts = append(opts, otlptracehttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if headers != nil {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	}
	switch {
	case cfg.Insecure:
		opts = append(opts, otlptracegrpc.WithInsecure())
	case cfg.TLSSkipVerify:
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// newMetricExporter builds the OTLP metric exporter for the configured
// protocol. Temporality is forced to cumulative for Prometheus-style
// backends, overriding any temporality preference inherited from the
// environment.
func newMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	headers := authHeaders(cfg)

	if cfg.Protocol == protocolHTTP {
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		if headers != nil {
			opts = append(opts, otlpmetrichttp.WithHeaders(headers))
		}
		switch {
		case cfg.Insecure:
			opts = append(opts, otlpmetrichttp.WithInsecure())
		case cfg.TLSSkipVerify:
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithTemporalitySelector(cumulative),
	}
	if headers != nil {
		opts = append(opts, otlpmetricgrpc.WithHeaders(headers))
	}
	switch {
	case cfg.Insecure:
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	case cfg.TLSSkipVerify:
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

// cumulative is the temporality selector handed to both metric exporters.
func cumulative(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

// newTracerProvider assembles the tracer provider. A non-nil exp bypasses
// OTLP and exports synchronously; production leaves exp nil and gets a
// batching OTLP pipeline.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource, exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	var processor sdktrace.TracerProviderOption
	if exp != nil {
		processor = sdktrace.WithSyncer(exp)
	} else {
		otlp, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		processor = sdktrace.WithBatcher(otlp)
	}

	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.Sampling)),
	), nil
}

// newMeterProvider assembles the meter provider, nil when metrics are off.
// A non-nil exp bypasses OTLP; the periodic reader wraps it either way so
// the export interval applies.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource, exp sdkmetric.Exporter) (*sdkmetric.MeterProvider, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	if exp == nil {
		otlp, err := newMetricExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		exp = otlp
	}

	reader := sdkmetric.NewPeriodicReader(exp,
		sdkmetric.WithInterval(cfg.Metrics.ExportInterval.Duration()))

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

// stripScheme drops a leading http:// or https://. The OTLP HTTP exporters
// want bare host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
