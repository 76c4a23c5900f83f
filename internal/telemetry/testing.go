package telemetry

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory so tests can assert on
// them without a collector.
type TestTelemetry struct {
	*Telemetry

	spans *tracetest.InMemoryExporter
	sink  *metricSink
}

// NewTestTelemetry builds an enabled Telemetry that exports into memory. It
// runs the real construction path, so resource and sampler wiring stay
// covered, and registers shutdown as test cleanup.
func NewTestTelemetry(tb testing.TB) *TestTelemetry {
	tb.Helper()

	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewInMemoryExporter()
	sink := newMetricSink()

	tel, err := New(context.Background(), cfg, WithTraceExporter(spans), WithMetricExporter(sink))
	if err != nil {
		tb.Fatalf("test telemetry: %v", err)
	}
	tb.Cleanup(func() {
		_ = tel.Shutdown(context.Background())
	})

	return &TestTelemetry{Telemetry: tel, spans: spans, sink: sink}
}

// Spans returns every span recorded so far.
func (t *TestTelemetry) Spans() tracetest.SpanStubs {
	return t.spans.GetSpans()
}

// SpanByName returns the first recorded span with the given name.
func (t *TestTelemetry) SpanByName(name string) (tracetest.SpanStub, bool) {
	for _, s := range t.Spans() {
		if s.Name == name {
			return s, true
		}
	}
	return tracetest.SpanStub{}, false
}

// AssertSpanExists fails the test when no span with the name was recorded.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if _, ok := t.SpanByName(name); !ok {
		tb.Errorf("span %q not recorded, have %v", name, t.spanNames())
	}
}

// AssertSpanCount fails the test unless exactly want spans were recorded.
func (t *TestTelemetry) AssertSpanCount(tb testing.TB, want int) {
	tb.Helper()
	if got := len(t.Spans()); got != want {
		tb.Errorf("recorded %d spans, want %d: %v", got, want, t.spanNames())
	}
}

// AssertSpanAttribute fails the test unless the named span carries the
// attribute with the wanted value.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, want any) {
	tb.Helper()
	span, ok := t.SpanByName(spanName)
	if !ok {
		tb.Fatalf("span %q not recorded", spanName)
	}
	for _, attr := range span.Attributes {
		if string(attr.Key) != key {
			continue
		}
		if got := attr.Value.AsInterface(); got != want {
			tb.Errorf("span %q attribute %q = %v, want %v", spanName, key, got, want)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", spanName, key)
}

// CollectMetrics flushes the meter provider and returns every snapshot
// exported so far, oldest first.
func (t *TestTelemetry) CollectMetrics(ctx context.Context) ([]metricdata.ResourceMetrics, error) {
	if err := t.Telemetry.ForceFlush(ctx); err != nil {
		return nil, err
	}
	return t.sink.snapshots(), nil
}

// Reset drops all recorded spans and metric snapshots.
func (t *TestTelemetry) Reset() {
	t.spans.Reset()
	t.sink.reset()
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name
	}
	return names
}

// metricSink is an in-memory metric exporter. Snapshots accumulate on every
// export until reset.
type metricSink struct {
	mu       sync.Mutex
	exported []metricdata.ResourceMetrics
}

func newMetricSink() *metricSink { return &metricSink{} }

func (s *metricSink) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (s *metricSink) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (s *metricSink) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = append(s.exported, *rm)
	return nil
}

func (s *metricSink) ForceFlush(context.Context) error { return nil }

func (s *metricSink) Shutdown(context.Context) error { return nil }

func (s *metricSink) snapshots() []metricdata.ResourceMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metricdata.ResourceMetrics(nil), s.exported...)
}

func (s *metricSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = nil
}
