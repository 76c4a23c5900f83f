package pipeline

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/optimization"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// Stage identifies one step of the pipeline sequence.
type Stage string

const (
	StageParse     Stage = "parse"
	StageAnalyze   Stage = "analyze"
	StageOptimize  Stage = "optimize"
	StageForecast  Stage = "forecast"
	StageSummarize Stage = "summarize"
	StageEmit      Stage = "emit"
)

// Stages returns all pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{
		StageParse,
		StageAnalyze,
		StageOptimize,
		StageForecast,
		StageSummarize,
		StageEmit,
	}
}

// Parser turns free-text intent into a structured ParsedIntent.
type Parser interface {
	Parse(ctx context.Context, text string, profile intent.Profile) (*intent.ParsedIntent, error)
}

// Analyzer scores consulting techniques against a parsed intent.
type Analyzer interface {
	Analyze(ctx context.Context, in *intent.ParsedIntent) (*consulting.Analysis, error)
}

// Optimizer plans workflow steps and applies optimization heuristics.
type Optimizer interface {
	Optimize(ctx context.Context, in *intent.ParsedIntent, analysis *consulting.Analysis) (*optimization.Workflow, error)
}

// Forecaster projects resource quotas and cost scenarios for a workflow.
type Forecaster interface {
	Forecast(ctx context.Context, wf *optimization.Workflow, analysis *consulting.Analysis) (*forecast.ROIAnalysis, error)
}

// Summarizer condenses an analysis into an executive summary with
// ranked recommendations.
type Summarizer interface {
	Summarize(ctx context.Context, analysis *consulting.Analysis, techniques []string) (*consulting.Summary, error)
}

// Emitter renders the final requirements, design, and task artifact.
type Emitter interface {
	Emit(ctx context.Context, wf *optimization.Workflow, summary *consulting.Summary, roi *forecast.ROIAnalysis, objective string) (*spec.Artifact, error)
}

// Collaborators bundles the six stage implementations a Runner drives.
// All fields are required.
type Collaborators struct {
	Parser     Parser
	Analyzer   Analyzer
	Optimizer  Optimizer
	Forecaster Forecaster
	Summarizer Summarizer
	Emitter    Emitter
}

func (c Collaborators) validate() error {
	switch {
	case c.Parser == nil:
		return fmt.Errorf("parser is required")
	case c.Analyzer == nil:
		return fmt.Errorf("analyzer is required")
	case c.Optimizer == nil:
		return fmt.Errorf("optimizer is required")
	case c.Forecaster == nil:
		return fmt.Errorf("forecaster is required")
	case c.Summarizer == nil:
		return fmt.Errorf("summarizer is required")
	case c.Emitter == nil:
		return fmt.Errorf("emitter is required")
	}
	return nil
}

// CostCeiling bounds the resource spend a forecast may plan against.
// Zero values mean unlimited.
type CostCeiling struct {
	// MaxComputeUnits caps monthly compute units.
	MaxComputeUnits float64 `json:"max_compute_units"`

	// MaxStorageUnits caps monthly storage units.
	MaxStorageUnits float64 `json:"max_storage_units"`

	// MaxMonthlyCost caps total projected monthly cost.
	MaxMonthlyCost float64 `json:"max_monthly_cost"`
}

// Options tunes a single pipeline run. A nil *Options is valid and means
// all defaults.
type Options struct {
	// ExpectedLoad is the projected monthly item volume. Zero selects the
	// forecaster's default load.
	ExpectedLoad float64 `json:"expected_load"`

	// CostCeiling bounds the forecast scenarios. Nil means unlimited.
	CostCeiling *CostCeiling `json:"cost_ceiling,omitempty"`

	// PerformanceSensitivity scales optimization gains. Empty means medium.
	PerformanceSensitivity intent.Sensitivity `json:"performance_sensitivity,omitempty"`
}

// Validate reports the first inconsistency in the options, if any.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	if o.ExpectedLoad < 0 {
		return fmt.Errorf("expected load must not be negative, got %v", o.ExpectedLoad)
	}
	if c := o.CostCeiling; c != nil {
		if c.MaxComputeUnits < 0 {
			return fmt.Errorf("compute ceiling must not be negative, got %v", c.MaxComputeUnits)
		}
		if c.MaxStorageUnits < 0 {
			return fmt.Errorf("storage ceiling must not be negative, got %v", c.MaxStorageUnits)
		}
		if c.MaxMonthlyCost < 0 {
			return fmt.Errorf("monthly cost ceiling must not be negative, got %v", c.MaxMonthlyCost)
		}
	}
	if !o.PerformanceSensitivity.Valid() {
		return fmt.Errorf("unknown performance sensitivity %q", o.PerformanceSensitivity)
	}
	return nil
}

// profile converts run options into the constraint profile the
// collaborators consume.
func (o *Options) profile() intent.Profile {
	if o == nil {
		return intent.Profile{}
	}
	p := intent.Profile{
		ExpectedLoad: o.ExpectedLoad,
		Sensitivity:  o.PerformanceSensitivity,
	}
	if c := o.CostCeiling; c != nil {
		p.MaxComputeUnits = c.MaxComputeUnits
		p.MaxStorageUnits = c.MaxStorageUnits
		p.MaxMonthlyCost = c.MaxMonthlyCost
	}
	return p
}

// EfficiencyReport is a pure projection of the forecast for callers that
// want headline numbers without walking the full artifact.
type EfficiencyReport struct {
	// SavingsPercentage is the balanced-scenario cost saving.
	SavingsPercentage float64 `json:"savings_percentage"`

	// BestCasePercentage is the highest saving across all scenarios.
	BestCasePercentage float64 `json:"best_case_percentage"`

	// BaselineMonthlyCost is the unoptimized monthly cost projection.
	BaselineMonthlyCost float64 `json:"baseline_monthly_cost"`

	// ProjectedMonthlyCost is the balanced-scenario monthly cost.
	ProjectedMonthlyCost float64 `json:"projected_monthly_cost"`
}

// Outcome is the total result of a pipeline run. Exactly one of Artifact
// or Err is set.
type Outcome struct {
	// Success reports whether the run produced an artifact.
	Success bool `json:"success"`

	// Artifact is the emitted specification. Nil on failure.
	Artifact *spec.Artifact `json:"artifact,omitempty"`

	// EfficiencyReport summarizes projected savings. Nil on failure.
	EfficiencyReport *EfficiencyReport `json:"efficiency_report,omitempty"`

	// Err describes why the run failed. Nil on success.
	Err *Error `json:"error,omitempty"`

	// Context carries the session id, per-attempt log, and degraded-stage
	// list for this run.
	Context *RunContext `json:"context"`
}
