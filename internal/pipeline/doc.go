// Package pipeline provides the orchestration engine that turns a free-text
// workflow intent into a structured delivery artifact.
//
// # Overview
//
// A run drives six stages in a fixed order:
//
//	Parse → Analyze → Optimize → Forecast → Summarize → Emit
//
// Each stage invokes one collaborator through a bounded retry policy,
// validates the output against a per-stage semantic floor, and either
// continues, substitutes a deterministic fallback value, or aborts the run
// with a closed-taxonomy error.
//
// # Key Components
//
// ## Runner
//
// The Runner owns the stage sequence and the run-level error taxonomy. Run
// always returns an Outcome: success with an artifact and efficiency report,
// or failure with a single Error. It never panics across its boundary and
// never returns a partial artifact.
//
// ## Retry policy
//
// Collaborator faults marked Transient (including per-attempt timeouts) are
// retried up to a fixed attempt count with a fixed delay. Validation
// failures are deterministic and never retried.
//
// ## Fallback resolver
//
// Recoverable faults are absorbed by per-stage fallback factories that
// produce structurally valid substitutes. Substitution is idempotent and is
// surfaced only through telemetry, never as an error.
//
// ## Run context
//
// Every run owns a RunContext with a unique session id, one log entry per
// stage attempt, and the degraded-stage list. Records are mirrored to an
// injectable Sink; the pipeline never reads them back.
//
// # Concurrency
//
// Stages within a run execute strictly sequentially. Independent runs may
// execute concurrently; they share nothing but the process-wide Stats
// counters and OpenTelemetry instruments.
package pipeline
