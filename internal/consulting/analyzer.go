// Package consulting applies operations-management techniques to parsed
// workflow intent. The analyzer selects techniques whose trigger signals
// appear in the intent and estimates the savings they project; the summarizer
// condenses an analysis into prose and ranked recommendations.
//
// Both engines are deterministic functions of their inputs plus the static
// technique catalog, so independent runs over the same intent agree.
package consulting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/citations"
	"github.com/fyrsmithlabs/specd/internal/intent"
)

// Technique is one catalog entry the analyzer can select.
type Technique struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Triggers       []string `json:"triggers"`
	BaseSavings    float64  `json:"base_savings"`
	Recommendation string   `json:"recommendation"`
}

// catalog is ordered by how often the techniques apply in practice; order
// breaks score ties, so it is part of the engine's contract.
var catalog = []Technique{
	{
		Key:            "value_stream_mapping",
		Name:           "Value Stream Mapping",
		Triggers:       []string{"process", "workflow", "flow", "pipeline", "step", "stream", "stage"},
		BaseSavings:    12,
		Recommendation: "Map the current value stream end to end and design a future state around the value-adding steps",
	},
	{
		Key:            "lean_waste_elimination",
		Name:           "Lean Waste Elimination",
		Triggers:       []string{"waste", "redundant", "duplicate", "manual", "repetitive", "rework", "copy"},
		BaseSavings:    18,
		Recommendation: "Classify each handoff against the seven wastes and remove the steps that add no value",
	},
	{
		Key:            "theory_of_constraints",
		Name:           "Theory of Constraints",
		Triggers:       []string{"bottleneck", "slow", "delay", "capacity", "throughput", "backlog", "queue"},
		BaseSavings:    15,
		Recommendation: "Identify the constraining step, exploit it fully, and subordinate the rest of the flow to it",
	},
	{
		Key:            "process_reengineering",
		Name:           "Business Process Reengineering",
		Triggers:       []string{"redesign", "rebuild", "transform", "overhaul", "legacy", "system", "platform"},
		BaseSavings:    25,
		Recommendation: "Redesign the process around its outcome instead of patching the existing task sequence",
	},
	{
		Key:            "six_sigma_dmaic",
		Name:           "Six Sigma DMAIC",
		Triggers:       []string{"quality", "defect", "error", "consistency", "variation", "accuracy", "reliab"},
		BaseSavings:    14,
		Recommendation: "Run a DMAIC cycle to measure defect sources and hold the gains with statistical controls",
	},
	{
		Key:            "pareto_analysis",
		Name:           "Pareto Analysis",
		Triggers:       []string{"priorit", "critical", "important", "focus", "top", "key", "main"},
		BaseSavings:    10,
		Recommendation: "Rank contributing causes by impact and concentrate effort on the vital few",
	},
	{
		Key:            "kaizen_events",
		Name:           "Kaizen Events",
		Triggers:       []string{"improve", "incremental", "continuous", "refine", "streamline", "tune"},
		BaseSavings:    9,
		Recommendation: "Schedule short focused improvement events with the people who run the process",
	},
	{
		Key:            "activity_based_costing",
		Name:           "Activity-Based Costing",
		Triggers:       []string{"cost", "budget", "expense", "spend", "pricing", "overhead", "billing"},
		BaseSavings:    8,
		Recommendation: "Assign costs to activities rather than volume so the expensive work becomes visible",
	},
}

// Technique selection caps by sensitivity: higher sensitivity tolerates a
// broader program of concurrent techniques.
const (
	maxTechniquesLow    = 3
	maxTechniquesMedium = 4
	maxTechniquesHigh   = 5
)

// savingsCap bounds the combined savings estimate; stacked techniques overlap
// and never add linearly.
const savingsCap = 45.0

// positionWeights discount each additional technique's contribution.
var positionWeights = []float64{1.0, 0.5, 0.35, 0.25, 0.2}

// Catalog returns the full technique catalog in selection-priority order.
func Catalog() []Technique {
	out := make([]Technique, len(catalog))
	copy(out, catalog)
	return out
}

// TechniqueByKey looks up a catalog entry.
func TechniqueByKey(key string) (Technique, bool) {
	for _, t := range catalog {
		if t.Key == key {
			return t, true
		}
	}
	return Technique{}, false
}

// Assessment is one selected technique with its match evidence.
type Assessment struct {
	Technique string               `json:"technique"`
	Name      string               `json:"name"`
	Score     int                  `json:"score"`
	Rationale string               `json:"rationale"`
	Citations []citations.Citation `json:"citations"`
}

// Analysis is the stage output: selected techniques plus the combined
// savings estimate.
type Analysis struct {
	Techniques              []Assessment         `json:"techniques"`
	EstimatedSavingsPercent float64              `json:"estimated_savings_percent"`
	KeyFindings             []string             `json:"key_findings"`
	Citations               []citations.Citation `json:"citations"`
}

// TechniqueKeys returns the selected technique keys in rank order.
func (a *Analysis) TechniqueKeys() []string {
	keys := make([]string, 0, len(a.Techniques))
	for _, t := range a.Techniques {
		keys = append(keys, t.Technique)
	}
	return keys
}

// Analyzer selects applicable techniques for a parsed intent.
type Analyzer struct {
	registry *citations.Registry
	logger   *zap.Logger
}

// NewAnalyzer creates an analyzer backed by the given citation registry.
func NewAnalyzer(registry *citations.Registry, logger *zap.Logger) (*Analyzer, error) {
	if registry == nil {
		return nil, fmt.Errorf("citation registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{registry: registry, logger: logger}, nil
}

// Analyze scores every catalog technique against the intent's signal tokens
// and returns the top matches. Zero matches yields an Analysis with an empty
// technique list and no error; deciding what to do with that is the caller's
// concern.
func (a *Analyzer) Analyze(_ context.Context, in *intent.ParsedIntent) (*Analysis, error) {
	if in == nil {
		return nil, fmt.Errorf("parsed intent is required")
	}

	tokens := signalTokens(in)

	type scored struct {
		technique Technique
		score     int
		matched   []string
	}

	var hits []scored
	for _, t := range catalog {
		score, matched := matchTriggers(tokens, t.Triggers)
		if score == 0 {
			continue
		}
		hits = append(hits, scored{technique: t, score: score, matched: matched})
	}

	// Stable keeps catalog priority as the tiebreak.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit := techniqueCap(in.Profile.Sensitivity); len(hits) > limit {
		hits = hits[:limit]
	}

	analysis := &Analysis{
		Techniques:  make([]Assessment, 0, len(hits)),
		KeyFindings: make([]string, 0, len(hits)),
	}

	seen := make(map[string]struct{})
	var total float64
	for i, h := range hits {
		weight := positionWeights[len(positionWeights)-1]
		if i < len(positionWeights) {
			weight = positionWeights[i]
		}
		total += h.technique.BaseSavings * weight

		cits := a.registry.ForTechnique(h.technique.Key)
		analysis.Techniques = append(analysis.Techniques, Assessment{
			Technique: h.technique.Key,
			Name:      h.technique.Name,
			Score:     h.score,
			Rationale: fmt.Sprintf("matched %d signal(s): %s", h.score, strings.Join(h.matched, ", ")),
			Citations: cits,
		})
		analysis.KeyFindings = append(analysis.KeyFindings,
			fmt.Sprintf("%s applies: intent mentions %s", h.technique.Name, strings.Join(h.matched, ", ")))

		for _, c := range cits {
			if _, ok := seen[c.Key]; ok {
				continue
			}
			seen[c.Key] = struct{}{}
			analysis.Citations = append(analysis.Citations, c)
		}
	}

	if total > savingsCap {
		total = savingsCap
	}
	analysis.EstimatedSavingsPercent = round1(total)

	a.logger.Debug("analysis complete",
		zap.Int("techniques", len(analysis.Techniques)),
		zap.Float64("estimated_savings_percent", analysis.EstimatedSavingsPercent))

	return analysis, nil
}

// signalTokens collects the tokens techniques are matched against: operation
// words, entities, and the objective itself.
func signalTokens(in *intent.ParsedIntent) []string {
	var tokens []string
	for _, op := range in.Operations {
		tokens = append(tokens, strings.Fields(op)...)
	}
	tokens = append(tokens, in.Entities...)
	tokens = append(tokens, strings.Fields(strings.ToLower(in.Objective))...)
	return tokens
}

// matchTriggers counts triggers that appear as a substring of any token.
// Substring matching lets a trigger stem like "priorit" cover inflections.
func matchTriggers(tokens []string, triggers []string) (int, []string) {
	var matched []string
	for _, trig := range triggers {
		for _, tok := range tokens {
			if strings.Contains(tok, trig) {
				matched = append(matched, trig)
				break
			}
		}
	}
	return len(matched), matched
}

func techniqueCap(s intent.Sensitivity) int {
	switch s {
	case intent.SensitivityLow:
		return maxTechniquesLow
	case intent.SensitivityHigh:
		return maxTechniquesHigh
	default:
		return maxTechniquesMedium
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
