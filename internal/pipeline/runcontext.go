package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// Attempt outcomes recorded in the per-run log.
const (
	// OutcomeOK marks a validated success.
	OutcomeOK = "ok"

	// OutcomeRetry marks a transient fault with attempts remaining.
	OutcomeRetry = "retry"

	// OutcomeInvalid marks a response that failed output validation.
	OutcomeInvalid = "invalid"

	// OutcomeError marks a terminal collaborator fault.
	OutcomeError = "error"
)

// LogEntry records one stage attempt. A run appends exactly one entry per
// attempt, so (Stage, Attempt) pairs are unique within a run.
type LogEntry struct {
	Stage      Stage     `json:"stage"`
	Attempt    int       `json:"attempt"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
}

// RunContext is the per-run trace: a unique session id, one log entry per
// stage attempt, and the taxonomy stages that were degraded by fallback
// substitution. It is owned by a single run and is not safe for
// concurrent mutation.
type RunContext struct {
	SessionID  string     `json:"session_id"`
	StartedAt  time.Time  `json:"started_at"`
	DurationMS int64      `json:"duration_ms"`
	Entries    []LogEntry `json:"entries"`
	Degraded   []string   `json:"degraded,omitempty"`
}

func (rc *RunContext) append(e LogEntry) {
	rc.Entries = append(rc.Entries, e)
}

// markDegraded records a fallback substitution for the given taxonomy
// stage.
func (rc *RunContext) markDegraded(stage string) {
	rc.Degraded = append(rc.Degraded, stage)
}

// Record is one telemetry event pushed to the Sink. The pipeline emits
// one record per stage attempt, one per fallback substitution, and one
// terminal record per run.
type Record struct {
	Level      string    `json:"level"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id"`
	Stage      string    `json:"stage,omitempty"`
	Message    string    `json:"message"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Err        *Error    `json:"error,omitempty"`
}

// Sink receives telemetry records. Implementations must be safe for
// concurrent use; the pipeline never reads records back.
type Sink interface {
	Record(rec Record)
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) Record(Record) {}

// ZapSink mirrors records to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger as a Sink. A nil logger defaults to a no-op
// logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Record(rec Record) {
	fields := []zap.Field{
		zap.String("session_id", rec.SessionID),
		zap.String("outcome", rec.Outcome),
	}
	if rec.Stage != "" {
		fields = append(fields, zap.String("stage", rec.Stage))
	}
	if rec.DurationMS > 0 {
		fields = append(fields, zap.Int64("duration_ms", rec.DurationMS))
	}
	if rec.Err != nil {
		fields = append(fields, zap.String("error_kind", rec.Err.Kind),
			zap.String("suggested_action", rec.Err.SuggestedAction))
	}
	switch rec.Level {
	case "error":
		s.logger.Error(rec.Message, fields...)
	case "warn":
		s.logger.Warn(rec.Message, fields...)
	default:
		s.logger.Info(rec.Message, fields...)
	}
}
