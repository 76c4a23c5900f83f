// Package spec renders the final pipeline artifact: requirements and design
// documents, an ordered task list, and three delivery options.
package spec

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	"github.com/fyrsmithlabs/specd/internal/optimization"
)

// Delivery option names, ordered from least to most ambitious.
const (
	OptionMinimal       = "minimal"
	OptionBalanced      = "balanced"
	OptionComprehensive = "comprehensive"
)

// Task is one unit of delivery work.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Effort      string   `json:"effort"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// OptionSummary describes one delivery option and the forecast scenario it
// corresponds to.
type OptionSummary struct {
	Name           string  `json:"name"`
	Scenario       string  `json:"scenario"`
	Description    string  `json:"description"`
	TaskCount      int     `json:"task_count"`
	SavingsPercent float64 `json:"savings_percent"`
}

// Metadata summarizes what went into the artifact. It carries no timestamps
// or session identifiers, so identical inputs yield identical artifacts.
type Metadata struct {
	Objective         string   `json:"objective"`
	Techniques        []string `json:"techniques,omitempty"`
	EfficiencyGain    float64  `json:"efficiency_gain"`
	StepCount         int      `json:"step_count"`
	OptimizationCount int      `json:"optimization_count"`
	Generator         string   `json:"generator"`
}

// Artifact is the final pipeline output.
type Artifact struct {
	Requirements string           `json:"requirements"`
	Design       string           `json:"design"`
	Tasks        []Task           `json:"tasks"`
	Metadata     Metadata         `json:"metadata"`
	Options      [3]OptionSummary `json:"options"`
}

// Emitter renders artifacts from the upstream stage outputs.
type Emitter struct {
	logger *zap.Logger
}

// NewEmitter creates an emitter. A nil logger defaults to a no-op logger.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{logger: logger}
}

// Emit renders the artifact for one pipeline run. A workflow without steps is
// a structural fault and fails outright.
func (e *Emitter) Emit(_ context.Context, wf *optimization.Workflow, summary *consulting.Summary, roi *forecast.ROIAnalysis, objective string) (*Artifact, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow has no steps")
	}
	if summary == nil {
		return nil, fmt.Errorf("summary is required")
	}
	if roi == nil {
		return nil, fmt.Errorf("roi analysis is required")
	}
	objective = strings.TrimSpace(objective)
	if objective == "" {
		return nil, fmt.Errorf("objective is required")
	}

	tasks := buildTasks(wf)

	requirements, err := render(requirementsTemplate, map[string]any{
		"Objective":     objective,
		"Steps":         wf.Steps,
		"Optimizations": wf.Optimizations,
		"TargetGain":    wf.EfficiencyGain,
	})
	if err != nil {
		return nil, fmt.Errorf("render requirements: %w", err)
	}

	design, err := render(designTemplate, map[string]any{
		"Objective":       objective,
		"Summary":         summary.ExecutiveSummary,
		"Steps":           wf.Steps,
		"Optimizations":   wf.Optimizations,
		"Scenarios":       roi.Scenarios,
		"Recommendations": summary.Recommendations,
	})
	if err != nil {
		return nil, fmt.Errorf("render design: %w", err)
	}

	techniques := make([]string, 0, len(summary.Recommendations))
	for _, r := range summary.Recommendations {
		techniques = append(techniques, r.Technique)
	}

	artifact := &Artifact{
		Requirements: requirements,
		Design:       design,
		Tasks:        tasks,
		Metadata: Metadata{
			Objective:         objective,
			Techniques:        techniques,
			EfficiencyGain:    wf.EfficiencyGain,
			StepCount:         len(wf.Steps),
			OptimizationCount: len(wf.Optimizations),
			Generator:         "specd",
		},
		Options: buildOptions(wf, roi, len(tasks)),
	}

	e.logger.Debug("artifact emitted",
		zap.Int("tasks", len(artifact.Tasks)),
		zap.Int("requirements_bytes", len(artifact.Requirements)),
		zap.Int("design_bytes", len(artifact.Design)))

	return artifact, nil
}

// buildTasks derives the delivery task list: one task per step, one per
// optimization, and a closing measurement task. Sequential steps depend on
// their predecessor; parallel steps depend on the first step only.
func buildTasks(wf *optimization.Workflow) []Task {
	tasks := make([]Task, 0, len(wf.Steps)+len(wf.Optimizations)+1)

	for i, step := range wf.Steps {
		t := Task{
			ID:          fmt.Sprintf("T-%02d", len(tasks)+1),
			Title:       step.Name,
			Description: fmt.Sprintf("Implement the %q step of the workflow.", step.Operation),
			Effort:      effortForOperation(step.Operation),
		}
		switch {
		case i == 0:
			// First step has no dependencies.
		case step.Parallel:
			t.DependsOn = []string{"T-01"}
		default:
			t.DependsOn = []string{fmt.Sprintf("T-%02d", len(tasks))}
		}
		tasks = append(tasks, t)
	}

	lastStep := fmt.Sprintf("T-%02d", len(wf.Steps))
	for _, opt := range wf.Optimizations {
		tasks = append(tasks, Task{
			ID:          fmt.Sprintf("T-%02d", len(tasks)+1),
			Title:       fmt.Sprintf("Apply %s optimization", opt.Kind),
			Description: capitalizeSentence(opt.Description),
			Effort:      "small",
			DependsOn:   []string{lastStep},
		})
	}

	tasks = append(tasks, Task{
		ID:          fmt.Sprintf("T-%02d", len(tasks)+1),
		Title:       "Measure outcomes against forecast",
		Description: "Compare realized resource consumption with the balanced scenario forecast and record the deltas.",
		Effort:      "small",
		DependsOn:   []string{fmt.Sprintf("T-%02d", len(tasks))},
	})

	return tasks
}

// buildOptions maps the three delivery options onto the forecast scenarios.
func buildOptions(wf *optimization.Workflow, roi *forecast.ROIAnalysis, taskCount int) [3]OptionSummary {
	var opts [3]OptionSummary

	entries := []struct {
		name        string
		scenario    string
		description string
		taskCount   int
	}{
		{
			name:        OptionMinimal,
			scenario:    forecast.ScenarioConservative,
			description: "Implement the workflow steps only and defer every optimization.",
			taskCount:   len(wf.Steps),
		},
		{
			name:        OptionBalanced,
			scenario:    forecast.ScenarioBalanced,
			description: "Implement the workflow steps together with the identified optimizations.",
			taskCount:   len(wf.Steps) + len(wf.Optimizations),
		},
		{
			name:        OptionComprehensive,
			scenario:    forecast.ScenarioBold,
			description: "Implement everything, including outcome measurement against the forecast.",
			taskCount:   taskCount,
		},
	}

	for i, entry := range entries {
		opt := OptionSummary{
			Name:        entry.name,
			Scenario:    entry.scenario,
			Description: entry.description,
			TaskCount:   entry.taskCount,
		}
		if s, ok := roi.ByName(entry.scenario); ok {
			opt.SavingsPercent = s.SavingsPercent
		}
		opts[i] = opt
	}

	return opts
}

func effortForOperation(op string) string {
	switch words := len(strings.Fields(op)); {
	case words >= 5:
		return "large"
	case words >= 3:
		return "medium"
	default:
		return "small"
	}
}

func capitalizeSentence(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	if !strings.HasSuffix(s, ".") {
		return string(r) + "."
	}
	return string(r)
}

func render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
