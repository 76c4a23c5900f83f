package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/optimization"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// Config tunes the retry policy shared by all stages.
type Config struct {
	// MaxAttempts is the total number of attempts per stage, including
	// the first. Values below 1 select the default.
	MaxAttempts int `json:"max_attempts"`

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration `json:"retry_delay"`

	// StageTimeout bounds each collaborator attempt. Zero selects the
	// default.
	StageTimeout time.Duration `json:"stage_timeout"`
}

// DefaultConfig returns the production retry policy: three attempts per
// stage with a fixed 250ms delay and a 30s per-attempt deadline.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		RetryDelay:   250 * time.Millisecond,
		StageTimeout: 30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = d.StageTimeout
	}
}

// Runner drives the six-stage pipeline. It is safe for concurrent use;
// concurrent runs share nothing but the Stats counters and metrics.
type Runner struct {
	cfg     Config
	collab  Collaborators
	logger  *zap.Logger
	sink    Sink
	metrics *Metrics
	stats   *Stats

	// Test seams. Production runs use the real clock and sleeper.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSink sets the telemetry sink.
func WithSink(sink Sink) Option {
	return func(r *Runner) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// NewRunner wires the six collaborators into a pipeline runner. All
// collaborators are required.
func NewRunner(cfg Config, collab Collaborators, opts ...Option) (*Runner, error) {
	if err := collab.validate(); err != nil {
		return nil, fmt.Errorf("invalid collaborators: %w", err)
	}
	cfg.applyDefaults()
	r := &Runner{
		cfg:    cfg,
		collab: collab,
		logger: zap.NewNop(),
		sink:   NopSink{},
		stats:  &Stats{},
		sleep:  sleepContext,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = NewMetrics(r.logger)
	return r, nil
}

// Stats returns a snapshot of the process-wide run counters.
func (r *Runner) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// Run executes the full pipeline for rawIntent. It always returns an
// Outcome: a complete artifact with an efficiency report, or a single
// taxonomy Error. Run never panics across this boundary and never
// returns a partial artifact.
func (r *Runner) Run(ctx context.Context, rawIntent string, opts *Options) (out *Outcome) {
	rc := &RunContext{SessionID: r.newID(), StartedAt: r.now()}

	defer func() {
		if rec := recover(); rec != nil {
			out = r.fail(rc, &Error{
				Stage:           ErrorStageIntent,
				Kind:            KindPipelineError,
				Message:         fmt.Sprintf("unexpected pipeline panic: %v", rec),
				SuggestedAction: "retry the request and report the failure if it recurs",
			})
		}
		d := r.now().Sub(rc.StartedAt)
		rc.DurationMS = d.Milliseconds()
		r.stats.record(d, out == nil || !out.Success, len(rc.Degraded) > 0)
		r.metrics.RecordRun(ctx, d, out)
		r.metrics.DecrementActive(ctx)
	}()
	r.metrics.IncrementActive(ctx)

	trimmed := strings.TrimSpace(rawIntent)
	if trimmed == "" {
		return r.fail(rc, validationError("provide a non-empty workflow intent"))
	}
	if err := opts.Validate(); err != nil {
		return r.fail(rc, validationError(err.Error()))
	}
	profile := opts.profile()

	r.logger.Info("pipeline run started",
		zap.String("session_id", rc.SessionID),
		zap.Int("intent_chars", len(trimmed)))

	parsed, perr := runStage(ctx, r, rc, stageSpec[*intent.ParsedIntent]{
		stage: StageParse,
		call: func(c context.Context) (*intent.ParsedIntent, error) {
			return guardNil(r.collab.Parser.Parse(c, rawIntent, profile))
		},
		validate: validateParsed,
		fallback: parseFallback(rawIntent, profile),
	})
	if perr != nil {
		return r.fail(rc, perr)
	}

	analysis, aerr := runStage(ctx, r, rc, stageSpec[*consulting.Analysis]{
		stage: StageAnalyze,
		call: func(c context.Context) (*consulting.Analysis, error) {
			return guardNil(r.collab.Analyzer.Analyze(c, parsed))
		},
		validate: validateAnalysis,
		fallback: analysisFallback,
	})
	if aerr != nil {
		return r.fail(rc, aerr)
	}

	wf, werr := runStage(ctx, r, rc, stageSpec[*optimization.Workflow]{
		stage: StageOptimize,
		call: func(c context.Context) (*optimization.Workflow, error) {
			return guardNil(r.collab.Optimizer.Optimize(c, parsed, analysis))
		},
		validate: validateWorkflow,
		fallback: workflowFallback(parsed),
	})
	if werr != nil {
		return r.fail(rc, werr)
	}

	roi, ferr := runStage(ctx, r, rc, stageSpec[*forecast.ROIAnalysis]{
		stage: StageForecast,
		call: func(c context.Context) (*forecast.ROIAnalysis, error) {
			return guardNil(r.collab.Forecaster.Forecast(c, wf, analysis))
		},
		validate: validateROI,
		fallback: forecastFallback,
	})
	if ferr != nil {
		return r.fail(rc, ferr)
	}

	summary, serr := runStage(ctx, r, rc, stageSpec[*consulting.Summary]{
		stage: StageSummarize,
		call: func(c context.Context) (*consulting.Summary, error) {
			return guardNil(r.collab.Summarizer.Summarize(c, analysis, analysis.TechniqueKeys()))
		},
		validate: validateSummary,
	})
	if serr != nil {
		return r.fail(rc, serr)
	}

	artifact, eerr := runStage(ctx, r, rc, stageSpec[*spec.Artifact]{
		stage: StageEmit,
		call: func(c context.Context) (*spec.Artifact, error) {
			return guardNil(r.collab.Emitter.Emit(c, wf, summary, roi, parsed.Objective))
		},
		validate:       validateArtifact,
		fallback:       artifactFallback,
		requirePartial: true,
	})
	if eerr != nil {
		return r.fail(rc, eerr)
	}

	elapsed := r.now().Sub(rc.StartedAt)
	r.sink.Record(Record{
		Level:      "info",
		Timestamp:  r.now(),
		SessionID:  rc.SessionID,
		Message:    "pipeline run completed",
		DurationMS: elapsed.Milliseconds(),
		Outcome:    "success",
	})
	r.logger.Info("pipeline run completed",
		zap.String("session_id", rc.SessionID),
		zap.Int("tasks", len(artifact.Tasks)),
		zap.Strings("degraded", rc.Degraded))

	return &Outcome{
		Success:          true,
		Artifact:         artifact,
		EfficiencyReport: buildEfficiencyReport(roi),
		Context:          rc,
	}
}

// stageSpec binds one stage's collaborator call to its validator and
// fallback routing.
type stageSpec[T any] struct {
	stage    Stage
	call     func(ctx context.Context) (T, error)
	validate func(T) error

	// fallback absorbs recoverable faults. Nil marks the stage
	// fatal-only.
	fallback fallbackFunc[T]

	// requirePartial restricts the fallback to patching invalid
	// outputs; terminal collaborator errors stay fatal.
	requirePartial bool
}

// runStage executes one stage under the shared retry policy and routes
// the normalized result. Free functions because methods cannot carry
// type parameters.
func runStage[T any](ctx context.Context, r *Runner, rc *RunContext, sp stageSpec[T]) (T, *Error) {
	var zero T
	res := classifyStage(ctx, r, rc, sp)
	switch res.State {
	case ResultOK:
		return res.Value, nil
	case ResultRecoverable:
		if sp.fallback != nil && (!sp.requirePartial || res.HasPartial) {
			v := sp.fallback(res.Partial, res.HasPartial, res.Err)
			r.recordDegraded(ctx, rc, sp.stage, res.Err)
			return v, nil
		}
	}
	return zero, stageError(sp.stage, res.Err)
}

// classifyStage drives the attempt loop for one stage and reduces it to
// a StageResult. Validation failures are deterministic and end the loop
// at once; transient faults burn the remaining attempts.
func classifyStage[T any](ctx context.Context, r *Runner, rc *RunContext, sp stageSpec[T]) StageResult[T] {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fatalResult[T](fmt.Errorf("%w before %s attempt %d: %v", errRunCanceled, sp.stage, attempt, err))
		}

		start := r.now()
		out, err := attemptCall(r, ctx, sp.call)
		elapsed := r.now().Sub(start)

		if err == nil {
			if verr := sp.validate(out); verr != nil {
				r.logAttempt(rc, sp.stage, attempt, start, elapsed, OutcomeInvalid, verr)
				return recoverableResult(fmt.Errorf("invalid %s output: %w", sp.stage, verr), out)
			}
			r.logAttempt(rc, sp.stage, attempt, start, elapsed, OutcomeOK, nil)
			return okResult(out)
		}

		lastErr = err
		if errors.Is(err, errCollaboratorPanic) || errors.Is(err, errNilResult) {
			r.logAttempt(rc, sp.stage, attempt, start, elapsed, OutcomeError, err)
			return fatalResult[T](fmt.Errorf("%s: %w", sp.stage, err))
		}
		if cerr := ctx.Err(); cerr != nil {
			r.logAttempt(rc, sp.stage, attempt, start, elapsed, OutcomeError, err)
			return fatalResult[T](fmt.Errorf("%w during %s attempt %d: %v", errRunCanceled, sp.stage, attempt, cerr))
		}
		if IsTransient(err) && attempt < r.cfg.MaxAttempts {
			r.logAttempt(rc, sp.stage, attempt, start, elapsed, OutcomeRetry, err)
			r.metrics.RecordRetry(ctx, sp.stage)
			if serr := r.sleep(ctx, r.cfg.RetryDelay); serr != nil {
				return fatalResult[T](fmt.Errorf("%w while backing off after %s attempt %d: %v", errRunCanceled, sp.stage, attempt, serr))
			}
			continue
		}
		r.logAttempt(rc, sp.stage, attempt, start, elapsed, OutcomeError, err)
		return recoverableErrResult[T](fmt.Errorf("%s failed: %w", sp.stage, err))
	}
	return recoverableErrResult[T](fmt.Errorf("%s failed: %w", sp.stage, lastErr))
}

// attemptCall invokes the collaborator under the per-attempt deadline
// and converts panics into errors.
func attemptCall[T any](r *Runner, ctx context.Context, call func(context.Context) (T, error)) (out T, err error) {
	actx := ctx
	if r.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.cfg.StageTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errCollaboratorPanic, rec)
		}
	}()
	return call(actx)
}

// guardNil converts a nil result with a nil error into a contract
// breach.
func guardNil[T any](out *T, err error) (*T, error) {
	if out == nil && err == nil {
		return nil, errNilResult
	}
	return out, err
}

func (r *Runner) logAttempt(rc *RunContext, stage Stage, attempt int, start time.Time, elapsed time.Duration, outcome string, cause error) {
	rc.append(LogEntry{
		Stage:      stage,
		Attempt:    attempt,
		StartedAt:  start,
		DurationMS: elapsed.Milliseconds(),
		Outcome:    outcome,
	})

	level := "info"
	msg := fmt.Sprintf("stage %s attempt %d %s", stage, attempt, outcome)
	switch outcome {
	case OutcomeRetry, OutcomeInvalid:
		level = "warn"
	case OutcomeError:
		level = "error"
	}
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	r.sink.Record(Record{
		Level:      level,
		Timestamp:  r.now(),
		SessionID:  rc.SessionID,
		Stage:      string(stage),
		Message:    msg,
		DurationMS: elapsed.Milliseconds(),
		Outcome:    outcome,
	})

	fields := []zap.Field{
		zap.String("session_id", rc.SessionID),
		zap.String("stage", string(stage)),
		zap.Int("attempt", attempt),
		zap.Duration("elapsed", elapsed),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	switch outcome {
	case OutcomeOK:
		r.logger.Debug("stage attempt succeeded", fields...)
	case OutcomeRetry:
		r.logger.Warn("stage attempt will be retried", fields...)
	case OutcomeInvalid:
		r.logger.Warn("stage output failed validation", fields...)
	default:
		r.logger.Error("stage attempt failed", fields...)
	}
}

// recordDegraded marks a fallback substitution on the run context and in
// telemetry.
func (r *Runner) recordDegraded(ctx context.Context, rc *RunContext, stage Stage, cause error) {
	tax := taxonomyStage(stage)
	rc.markDegraded(tax)
	r.metrics.RecordDegraded(ctx, tax)
	r.sink.Record(Record{
		Level:     "warn",
		Timestamp: r.now(),
		SessionID: rc.SessionID,
		Stage:     tax,
		Message:   fmt.Sprintf("substituted fallback output: %v", cause),
		Outcome:   degradedKind(stage),
	})
	r.logger.Warn("stage degraded to fallback output",
		zap.String("session_id", rc.SessionID),
		zap.String("stage", string(stage)),
		zap.String("kind", degradedKind(stage)),
		zap.Error(cause))
}

// fail emits the terminal failure record and builds the failure outcome.
func (r *Runner) fail(rc *RunContext, e *Error) *Outcome {
	r.sink.Record(Record{
		Level:     "error",
		Timestamp: r.now(),
		SessionID: rc.SessionID,
		Stage:     e.Stage,
		Message:   e.Message,
		Outcome:   e.Kind,
		Err:       e,
	})
	r.logger.Error("pipeline run failed",
		zap.String("session_id", rc.SessionID),
		zap.String("stage", e.Stage),
		zap.String("kind", e.Kind),
		zap.String("suggested_action", e.SuggestedAction))
	return &Outcome{Success: false, Err: e, Context: rc}
}

// buildEfficiencyReport projects headline numbers from the forecast. It
// is a pure function of the ROI analysis and never re-invokes
// collaborators.
func buildEfficiencyReport(roi *forecast.ROIAnalysis) *EfficiencyReport {
	rep := &EfficiencyReport{
		BaselineMonthlyCost:  roi.Baseline.MonthlyCost,
		ProjectedMonthlyCost: roi.Baseline.MonthlyCost,
	}
	if s, ok := roi.ByName(forecast.ScenarioBalanced); ok {
		rep.SavingsPercentage = s.SavingsPercent
		rep.ProjectedMonthlyCost = s.Forecast.MonthlyCost
	}
	for _, s := range roi.Scenarios {
		if s.SavingsPercent > rep.BestCasePercentage {
			rep.BestCasePercentage = s.SavingsPercent
		}
	}
	return rep
}
