package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/pipeline"
)

const instrumentationName = "github.com/fyrsmithlabs/specd/internal/mcp"

// Metrics owns the per-tool instruments. Instruments that fail to build
// stay nil and are skipped at record time.
type Metrics struct {
	meter  metric.Meter
	logger *zap.Logger

	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	errCount    metric.Int64Counter
	inflight    metric.Int64UpDownCounter
}

// NewMetrics builds the tool instrument set against the global meter
// provider. A nil logger is replaced with a no-op one.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.invocations, err = m.meter.Int64Counter(
		"specd.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool invocations, labeled by tool"),
		metric.WithUnit("{invocation}"),
	)
	m.noteInstrument("specd.mcp.tool.invocations_total", err)

	m.duration, err = m.meter.Float64Histogram(
		"specd.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool invocation latency, labeled by tool"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	m.noteInstrument("specd.mcp.tool.duration_seconds", err)

	m.errCount, err = m.meter.Int64Counter(
		"specd.mcp.tool.errors_total",
		metric.WithDescription("MCP tool failures, labeled by tool and reason"),
		metric.WithUnit("{error}"),
	)
	m.noteInstrument("specd.mcp.tool.errors_total", err)

	m.inflight, err = m.meter.Int64UpDownCounter(
		"specd.mcp.tool.active_requests",
		metric.WithDescription("MCP tool requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	m.noteInstrument("specd.mcp.tool.active_requests", err)
}

func (m *Metrics) noteInstrument(name string, err error) {
	if err != nil {
		m.logger.Warn("failed to create mcp instrument",
			zap.String("instrument", name),
			zap.Error(err))
	}
}

// RecordInvocation counts one completed invocation and its latency. A
// non-nil err additionally bumps the error counter with a reason label.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName string, duration time.Duration, err error) {
	tool := metric.WithAttributes(attribute.String("tool", toolName))

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, tool)
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), tool)
	}
	if err != nil && m.errCount != nil {
		m.errCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", toolName),
			attribute.String("reason", categorizeError(err)),
		))
	}
}

// IncrementActive marks a tool invocation as started.
func (m *Metrics) IncrementActive(ctx context.Context, toolName string) {
	m.adjustActive(ctx, toolName, 1)
}

// DecrementActive marks a tool invocation as finished.
func (m *Metrics) DecrementActive(ctx context.Context, toolName string) {
	m.adjustActive(ctx, toolName, -1)
}

func (m *Metrics) adjustActive(ctx context.Context, toolName string, delta int64) {
	if m.inflight != nil {
		m.inflight.Add(ctx, delta, metric.WithAttributes(
			attribute.String("tool", toolName),
		))
	}
}

// errorReasons maps message fragments onto stable reason labels, checked
// in order. Pipeline errors bypass this table and report their own kind.
var errorReasons = []struct {
	reason  string
	needles []string
}{
	{"rate_limited", []string{"rate limit"}},
	{"validation_error", []string{"validation", "invalid", "required"}},
	{"not_found", []string{"not found"}},
	{"timeout", []string{"timeout", "deadline"}},
	{"canceled", []string{"canceled"}},
}

func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	msg := strings.ToLower(err.Error())
	for _, r := range errorReasons {
		for _, needle := range r.needles {
			if strings.Contains(msg, needle) {
				return r.reason
			}
		}
	}
	return "internal_error"
}
