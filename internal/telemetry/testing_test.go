package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestTestTelemetryRecordsSpans(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := tt.Tracer("specd.test").Start(context.Background(), "analyze")
	span.SetAttributes(attribute.String("session", "sess_9f2c"))
	span.End()

	tt.AssertSpanExists(t, "analyze")
	tt.AssertSpanCount(t, 1)
	tt.AssertSpanAttribute(t, "analyze", "session", "sess_9f2c")
}

func TestTestTelemetrySpanByName(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, ok := tt.SpanByName("missing")
	assert.False(t, ok)

	_, span := tt.Tracer("specd.test").Start(context.Background(), "emit")
	span.End()

	got, ok := tt.SpanByName("emit")
	require.True(t, ok)
	assert.Equal(t, "emit", got.Name)
}

func TestTestTelemetryAttributeTypes(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := tt.Tracer("specd.test").Start(context.Background(), "typed")
	span.SetAttributes(
		attribute.String("stage", "forecast"),
		attribute.Int64("attempt", 2),
		attribute.Float64("confidence", 0.85),
		attribute.Bool("cached", true),
	)
	span.End()

	tt.AssertSpanAttribute(t, "typed", "stage", "forecast")
	tt.AssertSpanAttribute(t, "typed", "attempt", int64(2))
	tt.AssertSpanAttribute(t, "typed", "confidence", 0.85)
	tt.AssertSpanAttribute(t, "typed", "cached", true)
}

func TestTestTelemetryCollectMetrics(t *testing.T) {
	tt := NewTestTelemetry(t)

	counter, err := tt.Meter("specd.test").Int64Counter("specd.pipeline.runs")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	counter.Add(context.Background(), 2)

	snaps, err := tt.CollectMetrics(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, snaps)

	var total int64
	for _, rm := range snaps {
		for _, scope := range rm.ScopeMetrics {
			for _, m := range scope.Metrics {
				if m.Name != "specd.pipeline.runs" {
					continue
				}
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestTestTelemetryReset(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := tt.Tracer("specd.test").Start(context.Background(), "first")
	span.End()
	tt.AssertSpanCount(t, 1)

	tt.Reset()

	tt.AssertSpanCount(t, 0)
	assert.Empty(t, tt.sink.snapshots())
}

func TestTestTelemetryIsEnabled(t *testing.T) {
	tt := NewTestTelemetry(t)
	assert.True(t, tt.IsEnabled())
}

func TestTestTelemetryShutdown(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := tt.Tracer("specd.test").Start(context.Background(), "closing")
	span.End()

	require.NoError(t, tt.Shutdown(context.Background()))
	assert.False(t, tt.Health().Healthy)
}
