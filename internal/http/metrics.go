package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/specd/internal/http"

// HTTPMetrics owns the request-level instruments for the REST surface.
// Instruments that fail to build stay nil and are skipped at record time,
// so a broken meter never gets in the way of serving requests.
type HTTPMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	requests metric.Int64Counter
	latency  metric.Float64Histogram
	respSize metric.Int64Histogram
	inflight metric.Int64UpDownCounter
}

// NewHTTPMetrics builds the HTTP instrument set against the global meter
// provider. A nil logger is replaced with a no-op one.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error

	m.requests, err = m.meter.Int64Counter(
		"specd.http.requests_total",
		metric.WithDescription("HTTP requests served, labeled by method, endpoint, and status"),
		metric.WithUnit("{request}"),
	)
	m.noteInstrument("specd.http.requests_total", err)

	m.latency, err = m.meter.Float64Histogram(
		"specd.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, endpoint, and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	m.noteInstrument("specd.http.request_duration_seconds", err)

	m.respSize, err = m.meter.Int64Histogram(
		"specd.http.response_size_bytes",
		metric.WithDescription("HTTP response body size by method, endpoint, and status"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000),
	)
	m.noteInstrument("specd.http.response_size_bytes", err)

	m.inflight, err = m.meter.Int64UpDownCounter(
		"specd.http.active_requests",
		metric.WithDescription("HTTP requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	m.noteInstrument("specd.http.active_requests", err)
}

func (m *HTTPMetrics) noteInstrument(name string, err error) {
	if err != nil {
		m.logger.Warn("failed to create http instrument",
			zap.String("instrument", name),
			zap.Error(err))
	}
}

// MetricsMiddleware records count, latency, and response size for every
// request passing through the router.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			start := time.Now()
			err := next(c)

			m.record(ctx,
				c.Request().Method,
				normalizePath(c.Path()),
				c.Response().Status,
				time.Since(start),
				c.Response().Size,
			)
			return err
		}
	}
}

func (m *HTTPMetrics) record(ctx context.Context, method, endpoint string, status int, elapsed time.Duration, size int64) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status),
	)

	if m.requests != nil {
		m.requests.Add(ctx, 1, labels)
	}
	if m.latency != nil {
		m.latency.Record(ctx, elapsed.Seconds(), labels)
	}
	if m.respSize != nil {
		m.respSize.Record(ctx, size, labels)
	}
}

// normalizePath keeps the endpoint label cardinality bounded. Every route
// the server registers today is static, so paths pass through unchanged;
// parameterized routes must fold their dynamic segments into placeholders
// here before the path becomes a label value.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
