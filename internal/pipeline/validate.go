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

// Per-stage output validators. Each enforces the semantic floor a
// downstream stage depends on; anything below it is treated as a
// degenerate output and routed to the stage fallback, never retried.

func validateParsed(in *intent.ParsedIntent) error {
	if strings.TrimSpace(in.Objective) == "" {
		return fmt.Errorf("parsed intent has an empty objective")
	}
	if len(in.Operations) == 0 {
		return fmt.Errorf("parsed intent has no operations")
	}
	return nil
}

func validateAnalysis(a *consulting.Analysis) error {
	if len(a.Techniques) == 0 {
		return fmt.Errorf("analysis selected no techniques")
	}
	if a.EstimatedSavingsPercent < 0 {
		return fmt.Errorf("analysis savings must not be negative, got %v", a.EstimatedSavingsPercent)
	}
	return nil
}

func validateWorkflow(wf *optimization.Workflow) error {
	if len(wf.Steps) == 0 {
		return fmt.Errorf("workflow has no steps")
	}
	if len(wf.Optimizations) == 0 {
		return fmt.Errorf("workflow has no optimizations")
	}
	if wf.EfficiencyGain < 0 {
		return fmt.Errorf("workflow efficiency gain must not be negative, got %v", wf.EfficiencyGain)
	}
	return nil
}

func validateROI(roi *forecast.ROIAnalysis) error {
	if len(roi.Scenarios) == 0 {
		return fmt.Errorf("forecast produced no scenarios")
	}
	return nil
}

func validateSummary(s *consulting.Summary) error {
	if strings.TrimSpace(s.ExecutiveSummary) == "" {
		return fmt.Errorf("summary has an empty executive section")
	}
	if len(s.Recommendations) == 0 {
		return fmt.Errorf("summary has no recommendations")
	}
	return nil
}

func validateArtifact(a *spec.Artifact) error {
	if len(a.Tasks) == 0 {
		return fmt.Errorf("artifact has no tasks")
	}
	return nil
}
