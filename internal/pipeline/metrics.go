package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/specd/internal/pipeline"

// Metrics holds all pipeline-related metrics.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	runs       metric.Int64Counter
	duration   metric.Float64Histogram
	failures   metric.Int64Counter
	degraded   metric.Int64Counter
	retries    metric.Int64Counter
	activeRuns metric.Int64UpDownCounter
}

// NewMetrics builds the run and stage instrument set.
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

	// Completed runs by outcome
	m.runs, err = m.meter.Int64Counter(
		"specd.pipeline.runs_total",
		metric.WithDescription("Total number of completed pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		m.logger.Warn("failed to create runs counter", zap.Error(err))
	}

	// End-to-end run duration histogram
	m.duration, err = m.meter.Float64Histogram(
		"specd.pipeline.duration_seconds",
		metric.WithDescription("Duration of pipeline runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	// Failed runs by taxonomy stage and kind
	m.failures, err = m.meter.Int64Counter(
		"specd.pipeline.failures_total",
		metric.WithDescription("Total number of failed pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		m.logger.Warn("failed to create failures counter", zap.Error(err))
	}

	// Fallback substitutions by taxonomy stage
	m.degraded, err = m.meter.Int64Counter(
		"specd.pipeline.degraded_total",
		metric.WithDescription("Total number of fallback substitutions"),
		metric.WithUnit("{substitution}"),
	)
	if err != nil {
		m.logger.Warn("failed to create degraded counter", zap.Error(err))
	}

	// Retried attempts by stage
	m.retries, err = m.meter.Int64Counter(
		"specd.pipeline.retries_total",
		metric.WithDescription("Total number of retried stage attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		m.logger.Warn("failed to create retries counter", zap.Error(err))
	}

	// Active concurrent runs gauge
	m.activeRuns, err = m.meter.Int64UpDownCounter(
		"specd.pipeline.active_runs",
		metric.WithDescription("Number of currently active pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active runs gauge", zap.Error(err))
	}
}

// RecordRun records a completed run.
func (m *Metrics) RecordRun(ctx context.Context, duration time.Duration, out *Outcome) {
	outcome := "success"
	if out == nil || !out.Success {
		outcome = "failure"
	}
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}

	if m.runs != nil {
		m.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	if out != nil && out.Err != nil && m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", out.Err.Stage),
			attribute.String("kind", out.Err.Kind),
		))
	}
}

// RecordDegraded records one fallback substitution.
func (m *Metrics) RecordDegraded(ctx context.Context, stage string) {
	if m.degraded != nil {
		m.degraded.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
		))
	}
}

// RecordRetry records one retried stage attempt.
func (m *Metrics) RecordRetry(ctx context.Context, stage Stage) {
	if m.retries != nil {
		m.retries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(stage)),
		))
	}
}

// IncrementActive increments the active runs counter.
func (m *Metrics) IncrementActive(ctx context.Context) {
	if m.activeRuns != nil {
		m.activeRuns.Add(ctx, 1)
	}
}

// DecrementActive decrements the active runs counter.
func (m *Metrics) DecrementActive(ctx context.Context) {
	if m.activeRuns != nil {
		m.activeRuns.Add(ctx, -1)
	}
}
