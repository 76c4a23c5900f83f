package pipeline

import (
	"errors"
	"fmt"
)

// Taxonomy stage names carried on Error. These are coarser than the
// execution stages: analyze and summarize both report as "analysis".
const (
	ErrorStageIntent       = "intent"
	ErrorStageAnalysis     = "analysis"
	ErrorStageOptimization = "optimization"
	ErrorStageForecasting  = "forecasting"
	ErrorStageSpec         = "spec"
)

// Closed set of error kinds. Stage-scoped failure kinds are derived with
// failureKind; degraded substitutions surface only through telemetry and
// never as an Error.
const (
	KindValidationFailed = "validation_failed"
	KindPipelineError    = "pipeline_error"
)

// Error is the single failure shape a run can return. The taxonomy is
// closed; no other Stage or Kind values are produced.
type Error struct {
	// Stage is the taxonomy stage the failure is attributed to.
	Stage string `json:"stage"`

	// Kind classifies the failure within the closed taxonomy.
	Kind string `json:"kind"`

	// Message is a human-readable description of the fault.
	Message string `json:"message"`

	// SuggestedAction tells the caller what to try next. Always non-empty.
	SuggestedAction string `json:"suggested_action"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Stage, e.Kind, e.Message)
}

// taxonomyStage maps an execution stage to its taxonomy stage.
func taxonomyStage(s Stage) string {
	switch s {
	case StageParse:
		return ErrorStageIntent
	case StageAnalyze, StageSummarize:
		return ErrorStageAnalysis
	case StageOptimize:
		return ErrorStageOptimization
	case StageForecast:
		return ErrorStageForecasting
	case StageEmit:
		return ErrorStageSpec
	default:
		return ErrorStageIntent
	}
}

// failureKind derives the stage-scoped exhaustion kind, e.g.
// "forecasting_failed".
func failureKind(s Stage) string {
	return taxonomyStage(s) + "_failed"
}

// degradedKind derives the stage-scoped substitution marker used in
// telemetry, e.g. "analysis_degraded".
func degradedKind(s Stage) string {
	return taxonomyStage(s) + "_degraded"
}

// suggestedActionFor returns the remediation hint attached to a fatal
// stage failure.
func suggestedActionFor(s Stage) string {
	switch s {
	case StageSummarize:
		return "retry with fewer techniques"
	case StageEmit:
		return "simplify the workflow intent and retry"
	default:
		return "retry the request"
	}
}

// Sentinel faults that always abort the run regardless of stage.
var (
	errCollaboratorPanic = errors.New("collaborator panicked")
	errNilResult         = errors.New("collaborator returned no result and no error")
	errRunCanceled       = errors.New("run canceled")
)

// validationError builds the Error for an entry-precondition violation.
func validationError(msg string) *Error {
	return &Error{
		Stage:           ErrorStageIntent,
		Kind:            KindValidationFailed,
		Message:         msg,
		SuggestedAction: "correct the request and resubmit",
	}
}

// stageError converts a terminal stage fault into the public Error shape.
// Contract breaches and cancellation map to pipeline_error; ordinary
// exhaustion maps to the stage-scoped failure kind.
func stageError(s Stage, cause error) *Error {
	stage := taxonomyStage(s)
	switch {
	case errors.Is(cause, errRunCanceled):
		return &Error{
			Stage:           stage,
			Kind:            KindPipelineError,
			Message:         cause.Error(),
			SuggestedAction: "retry the request",
		}
	case errors.Is(cause, errCollaboratorPanic), errors.Is(cause, errNilResult):
		return &Error{
			Stage:           stage,
			Kind:            KindPipelineError,
			Message:         cause.Error(),
			SuggestedAction: "retry the request and report the failure if it recurs",
		}
	}
	e := &Error{
		Stage:           stage,
		Kind:            failureKind(s),
		Message:         cause.Error(),
		SuggestedAction: suggestedActionFor(s),
	}
	if e.SuggestedAction == "" {
		e.SuggestedAction = "retry the request"
	}
	return e
}
