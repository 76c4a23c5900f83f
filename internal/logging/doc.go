// Package logging wraps zap with context correlation, secret redaction
// and level-aware sampling.
//
// Every level method takes a context.Context first. ContextFields pulls
// trace_id/span_id from the active OTel span plus the session and
// request IDs stamped by WithSessionID and WithRequestID, so one run is
// traceable across the HTTP layer, the MCP layer and the pipeline:
//
//	ctx := logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "run completed", zap.Duration("duration", d))
//
// # Outputs
//
// The console sink (stdout, or stderr when the process speaks a stdio
// protocol on stdout) and the otelzap bridge can run side by side; the
// bridge forwards entries to the OTLP collector configured in
// internal/telemetry. Output selection, format, sampling and redaction
// all come from Config, which the daemon populates from the logging
// section of its configuration file.
//
// # Redaction
//
// Workflow intents are free text and occasionally arrive with pasted
// credentials. The console encoder therefore redacts twice: field names
// on the Redaction.Fields list are replaced wholesale, and string
// values matching Redaction.Patterns are replaced with a pattern
// marker. config.Secret values and the Secret/RedactedString helpers
// render as length-only markers. Redaction happens in the encoder, so
// it covers fields attached via With as well as per-call fields.
//
// # Sampling
//
// Sampling keeps a hot loop from flooding the sink: entries below Error
// share a per-tick budget, while Error and above always pass. Disable
// cfg.Sampling when reproducing an issue locally.
//
// Logger and its With/Named children are safe for concurrent use.
package logging
