// Package telemetry wires the daemon into OpenTelemetry.
//
// New builds tracer and meter providers that export over OTLP, gRPC by
// default or HTTP when configured, and registers them as the process
// defaults so instrumented packages reach them through otel.Tracer and
// otel.Meter. Trace sampling is parent-based with a configurable ratio and
// metric temporality is forced to cumulative for Prometheus-style backends.
//
//	telem, err := telemetry.New(ctx, telemetry.FromAppConfig(appCfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer telem.Shutdown(ctx)
//
//	tracer := telem.Tracer("specd.pipeline")
//	ctx, span := tracer.Start(ctx, "pipeline.optimize")
//	defer span.End()
//
// # Degradation
//
// Export problems never stop the daemon. Validation errors fail New, but a
// provider that cannot be built leaves a working instance behind whose
// Tracer and Meter fall back to no-op implementations; Health reports the
// reason so startup can log it.
//
// # Testing
//
// NewTestTelemetry runs the same construction path against in-memory
// exporters:
//
//	tt := telemetry.NewTestTelemetry(t)
//	_, span := tt.Tracer("test").Start(ctx, "parse")
//	span.End()
//	tt.AssertSpanExists(t, "parse")
package telemetry
