// Package optimization turns parsed intent into an executable workflow and
// applies deterministic efficiency heuristics to it.
//
// Each heuristic is triggered by signal tokens in the intent or by techniques
// the analysis selected. Identical inputs always produce the identical
// workflow, including the order of steps, optimizations, and notes.
package optimization

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/intent"
)

// Optimization kinds applied by the heuristic table.
const (
	KindCaching         = "caching"
	KindBatching        = "batching"
	KindParallelization = "parallelization"
	KindElimination     = "elimination"
	KindAutomation      = "automation"
)

// Step is one unit of work in the optimized workflow.
type Step struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Parallel  bool   `json:"parallel,omitempty"`
}

// Optimization is one applied efficiency heuristic.
type Optimization struct {
	Kind           string  `json:"kind"`
	Description    string  `json:"description"`
	SavingsPercent float64 `json:"savings_percent"`
}

// Workflow is the stage output: ordered steps, the optimizations applied to
// them, and the combined efficiency gain. Profile carries the caller's load
// and cost constraints forward for forecasting.
type Workflow struct {
	Steps          []Step         `json:"steps"`
	Optimizations  []Optimization `json:"optimizations"`
	EfficiencyGain float64        `json:"efficiency_gain"`
	Notes          []string       `json:"notes,omitempty"`
	Profile        intent.Profile `json:"profile"`
}

// heuristic is one optimization rule. It fires when the workflow has at least
// minSteps steps and either a trigger token appears in the intent or one of
// its reinforcing techniques was selected by the analysis.
type heuristic struct {
	kind        string
	description string
	triggers    []string
	techniques  []string
	minSteps    int
	baseSavings float64
}

var heuristics = []heuristic{
	{
		kind:        KindCaching,
		description: "cache repeated retrievals so later steps reuse earlier results",
		triggers:    []string{"fetch", "read", "query", "search", "load", "retrieve", "lookup", "report"},
		baseSavings: 8,
	},
	{
		kind:        KindBatching,
		description: "group bulk operations into batches to amortize per-item overhead",
		triggers:    []string{"import", "export", "migrate", "sync", "send", "upload", "download", "notify"},
		baseSavings: 6,
	},
	{
		kind:        KindParallelization,
		description: "run independent steps concurrently once the first completes",
		triggers:    []string{"parallel", "concurrent", "independent", "simultaneous"},
		techniques:  []string{"theory_of_constraints"},
		minSteps:    2,
		baseSavings: 10,
	},
	{
		kind:        KindElimination,
		description: "remove duplicated or no-value steps before tuning the rest",
		triggers:    []string{"duplicate", "redundant", "manual", "rework", "waste", "legacy", "obsolete", "eliminate"},
		techniques:  []string{"lean_waste_elimination", "value_stream_mapping"},
		baseSavings: 12,
	},
	{
		kind:        KindAutomation,
		description: "replace hand-driven execution with scheduled automated runs",
		triggers:    []string{"manual", "repetitive", "schedule", "recurring", "routine", "automate"},
		techniques:  []string{"process_reengineering", "kaizen_events"},
		baseSavings: 9,
	},
}

// reinforcementFactor boosts a heuristic matched by both a signal token and a
// selected technique.
const reinforcementFactor = 1.5

// gainCap bounds the combined efficiency gain; stacked optimizations overlap
// and never add linearly.
const gainCap = 60.0

// Optimizer builds optimized workflows from parsed intent.
type Optimizer struct {
	logger *zap.Logger
}

// NewOptimizer creates an optimizer. A nil logger defaults to a no-op logger.
func NewOptimizer(logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{logger: logger}
}

// Optimize builds one step per intent operation and applies every heuristic
// whose conditions hold. Zero fired heuristics yields a Workflow with an empty
// optimization list and no error; deciding what to do with that is the
// caller's concern.
func (o *Optimizer) Optimize(_ context.Context, in *intent.ParsedIntent, analysis *consulting.Analysis) (*Workflow, error) {
	if in == nil {
		return nil, fmt.Errorf("parsed intent is required")
	}
	if analysis == nil {
		return nil, fmt.Errorf("analysis is required")
	}
	if len(in.Operations) == 0 {
		return nil, fmt.Errorf("intent has no operations to plan")
	}

	wf := &Workflow{
		Steps:   make([]Step, 0, len(in.Operations)),
		Profile: in.Profile,
	}
	for i, op := range in.Operations {
		wf.Steps = append(wf.Steps, Step{
			ID:        fmt.Sprintf("S-%02d", i+1),
			Name:      capitalize(op),
			Operation: op,
		})
	}

	tokens := intentTokens(in)
	selected := make(map[string]struct{}, len(analysis.Techniques))
	for _, t := range analysis.Techniques {
		selected[t.Technique] = struct{}{}
	}

	var total float64
	for _, h := range heuristics {
		if len(wf.Steps) < h.minSteps {
			continue
		}
		matched := matchTokens(tokens, h.triggers)
		var reinforcing []string
		for _, key := range h.techniques {
			if _, ok := selected[key]; ok {
				reinforcing = append(reinforcing, key)
			}
		}
		if len(matched) == 0 && len(reinforcing) == 0 {
			continue
		}

		savings := h.baseSavings
		if len(matched) > 0 && len(reinforcing) > 0 {
			savings *= reinforcementFactor
		}

		desc := h.description
		if len(matched) > 0 {
			desc = fmt.Sprintf("%s (signals: %s)", desc, strings.Join(matched, ", "))
		}
		wf.Optimizations = append(wf.Optimizations, Optimization{
			Kind:           h.kind,
			Description:    desc,
			SavingsPercent: round1(savings),
		})
		total += savings

		if len(reinforcing) > 0 {
			wf.Notes = append(wf.Notes,
				fmt.Sprintf("%s reinforces %s", strings.Join(reinforcing, ", "), h.kind))
		}

		if h.kind == KindParallelization {
			for i := 1; i < len(wf.Steps); i++ {
				wf.Steps[i].Parallel = true
			}
		}
	}

	factor := sensitivityFactor(in.Profile.Sensitivity)
	if factor != 1.0 && total > 0 {
		wf.Notes = append(wf.Notes,
			fmt.Sprintf("%s performance sensitivity scales the projected gain by %.2f", sensitivityName(in.Profile.Sensitivity), factor))
	}

	gain := total * factor
	if gain > gainCap {
		gain = gainCap
	}
	if gain < 0 {
		gain = 0
	}
	wf.EfficiencyGain = round1(gain)

	o.logger.Debug("workflow optimized",
		zap.Int("steps", len(wf.Steps)),
		zap.Int("optimizations", len(wf.Optimizations)),
		zap.Float64("efficiency_gain", wf.EfficiencyGain))

	return wf, nil
}

// intentTokens collects the tokens heuristics are matched against: operation
// words, entities, and the objective itself.
func intentTokens(in *intent.ParsedIntent) []string {
	var tokens []string
	for _, op := range in.Operations {
		tokens = append(tokens, strings.Fields(strings.ToLower(op))...)
	}
	for _, e := range in.Entities {
		tokens = append(tokens, strings.ToLower(e))
	}
	tokens = append(tokens, strings.Fields(strings.ToLower(in.Objective))...)
	return tokens
}

// matchTokens reports the triggers that appear as a substring of any token.
func matchTokens(tokens []string, triggers []string) []string {
	var matched []string
	for _, trig := range triggers {
		for _, tok := range tokens {
			if strings.Contains(tok, trig) {
				matched = append(matched, trig)
				break
			}
		}
	}
	return matched
}

func sensitivityFactor(s intent.Sensitivity) float64 {
	switch s {
	case intent.SensitivityLow:
		return 0.8
	case intent.SensitivityHigh:
		return 1.15
	default:
		return 1.0
	}
}

func sensitivityName(s intent.Sensitivity) string {
	if s == "" {
		return string(intent.SensitivityMedium)
	}
	return string(s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
