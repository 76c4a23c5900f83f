package pipeline

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/optimization"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// fallbackFunc builds a structurally valid substitute for a failed stage.
// When the stage produced an invalid output it is passed as the partial so
// the fallback can patch it instead of rebuilding from scratch. Fallbacks
// are deterministic and idempotent: patching an already-valid value
// returns it unchanged.
type fallbackFunc[T any] func(partial T, hasPartial bool, cause error) T

const fallbackOperation = "analyze and process requirements"

// parseFallback substitutes a minimal intent derived from the raw text.
func parseFallback(raw string, profile intent.Profile) fallbackFunc[*intent.ParsedIntent] {
	return func(partial *intent.ParsedIntent, hasPartial bool, _ error) *intent.ParsedIntent {
		out := &intent.ParsedIntent{}
		if hasPartial && partial != nil {
			*out = *partial
		}
		if strings.TrimSpace(out.Objective) == "" {
			out.Objective = strings.TrimSpace(raw)
		}
		if len(out.Operations) == 0 {
			out.Operations = []string{fallbackOperation}
		}
		out.Profile = profile
		return out
	}
}

// analysisFallback substitutes a single generic technique so downstream
// stages always have at least one assessment to work from.
func analysisFallback(partial *consulting.Analysis, hasPartial bool, _ error) *consulting.Analysis {
	out := &consulting.Analysis{}
	if hasPartial && partial != nil {
		*out = *partial
	}
	if len(out.Techniques) == 0 {
		out.Techniques = []consulting.Assessment{{
			Technique: "process_mapping",
			Name:      "Process Mapping",
			Score:     1,
			Rationale: "substituted default: no catalog technique matched the intent",
		}}
		out.KeyFindings = append(out.KeyFindings,
			"analysis degraded to a generic process mapping pass")
	}
	if out.EstimatedSavingsPercent <= 0 {
		out.EstimatedSavingsPercent = 5
	}
	return out
}

// workflowFallback substitutes one step per parsed operation and a single
// caching optimization.
func workflowFallback(in *intent.ParsedIntent) fallbackFunc[*optimization.Workflow] {
	return func(partial *optimization.Workflow, hasPartial bool, _ error) *optimization.Workflow {
		out := &optimization.Workflow{}
		if hasPartial && partial != nil {
			*out = *partial
		}
		if len(out.Steps) == 0 {
			ops := in.Operations
			if len(ops) == 0 {
				ops = []string{fallbackOperation}
			}
			for i, op := range ops {
				out.Steps = append(out.Steps, optimization.Step{
					ID:        fmt.Sprintf("S-%02d", i+1),
					Name:      op,
					Operation: op,
				})
			}
		}
		if len(out.Optimizations) == 0 {
			out.Optimizations = []optimization.Optimization{{
				Kind:           optimization.KindCaching,
				Description:    "cache intermediate results between steps",
				SavingsPercent: 5,
			}}
			if out.EfficiencyGain < 5 {
				out.EfficiencyGain = 5
			}
		}
		if out.EfficiencyGain < 0 {
			out.EfficiencyGain = 0
		}
		out.Profile = in.Profile
		return out
	}
}

// forecastFallback substitutes a single balanced scenario that mirrors the
// baseline and claims no savings.
func forecastFallback(partial *forecast.ROIAnalysis, hasPartial bool, _ error) *forecast.ROIAnalysis {
	out := &forecast.ROIAnalysis{}
	if hasPartial && partial != nil {
		*out = *partial
	}
	if len(out.Scenarios) == 0 {
		out.Scenarios = []forecast.Scenario{{
			Name:           forecast.ScenarioBalanced,
			Forecast:       out.Baseline,
			SavingsPercent: 0,
			Effort:         "medium",
			Risk:           "medium",
			WithinBudget:   true,
		}}
		out.Notes = append(out.Notes, "forecast degraded to a baseline-only scenario")
	}
	return out
}

// artifactFallback patches an artifact whose task list came back empty.
// The emit stage only falls back on invalid output, so a partial is
// always available.
func artifactFallback(partial *spec.Artifact, hasPartial bool, _ error) *spec.Artifact {
	out := &spec.Artifact{}
	if hasPartial && partial != nil {
		*out = *partial
	}
	if len(out.Tasks) == 0 {
		out.Tasks = []spec.Task{{
			ID:          "T-01",
			Title:       "Implement the workflow",
			Description: "Implement the planned workflow steps and apply the identified optimizations.",
			Effort:      "medium",
		}}
	}
	return out
}
