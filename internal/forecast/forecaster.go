// Package forecast projects quota consumption and return-on-investment
// scenarios for an optimized workflow.
//
// All arithmetic is deterministic: a baseline is derived from the workflow's
// load profile and step count, three scenarios scale the workflow's efficiency
// gain, and savings percentages are expressed relative to the conservative
// scenario.
package forecast

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/optimization"
)

// Scenario names, ordered from least to most aggressive.
const (
	ScenarioConservative = "conservative"
	ScenarioBalanced     = "balanced"
	ScenarioBold         = "bold"
)

// Baseline unit model. Load is measured in items per month; compute scales
// with both load and step count, storage with load alone.
const (
	defaultMonthlyLoad = 1000.0
	computePerKiloLoad = 2.0 // compute units per step per thousand items
	storagePerKiloLoad = 1.5 // storage units per thousand items
	computeUnitRate    = 3.0 // currency per compute unit
	storageUnitRate    = 1.2 // currency per storage unit
)

// analysisWeight blends the consulting savings estimate into the workflow's
// mechanical gain. Process-change savings overlap with optimization savings,
// so they never count at full value.
const analysisWeight = 0.3

// maxRealizedPercent caps how much of the baseline any scenario may claim.
const maxRealizedPercent = 75.0

// QuotaForecast is projected monthly resource consumption.
type QuotaForecast struct {
	ComputeUnits float64 `json:"compute_units"`
	StorageUnits float64 `json:"storage_units"`
	MonthlyCost  float64 `json:"monthly_cost"`
}

// Scenario is one projected adoption path. SavingsPercent is relative to the
// conservative scenario; the conservative scenario itself is always 0.
type Scenario struct {
	Name           string        `json:"name"`
	Forecast       QuotaForecast `json:"forecast"`
	SavingsPercent float64       `json:"savings_percent"`
	Effort         string        `json:"effort"`
	Risk           string        `json:"risk"`
	WithinBudget   bool          `json:"within_budget"`
}

// ROIAnalysis is the stage output: the unoptimized baseline and the three
// scenarios projected from it. Notes flag any scenario that exceeds a
// caller-supplied ceiling.
type ROIAnalysis struct {
	Baseline  QuotaForecast `json:"baseline"`
	Scenarios []Scenario    `json:"scenarios"`
	Notes     []string      `json:"notes,omitempty"`
}

// ByName returns the named scenario.
func (r *ROIAnalysis) ByName(name string) (Scenario, bool) {
	for _, s := range r.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

var scenarioTable = []struct {
	name       string
	multiplier float64
	effort     string
	risk       string
}{
	{name: ScenarioConservative, multiplier: 0.5, effort: "low", risk: "low"},
	{name: ScenarioBalanced, multiplier: 1.0, effort: "medium", risk: "medium"},
	{name: ScenarioBold, multiplier: 1.4, effort: "high", risk: "high"},
}

// Forecaster projects ROI scenarios for optimized workflows.
type Forecaster struct {
	logger *zap.Logger
}

// NewForecaster creates a forecaster. A nil logger defaults to a no-op logger.
func NewForecaster(logger *zap.Logger) *Forecaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forecaster{logger: logger}
}

// Forecast derives the baseline from the workflow's profile and step count,
// then projects the three standard scenarios from the blended efficiency
// gain. Ceilings from the profile are checked against every scenario.
func (f *Forecaster) Forecast(_ context.Context, wf *optimization.Workflow, analysis *consulting.Analysis) (*ROIAnalysis, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if analysis == nil {
		return nil, fmt.Errorf("analysis is required")
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow has no steps to forecast")
	}

	load := wf.Profile.ExpectedLoad
	if load <= 0 {
		load = defaultMonthlyLoad
	}
	kilo := load / 1000

	baseline := QuotaForecast{
		ComputeUnits: kilo * computePerKiloLoad * float64(len(wf.Steps)),
		StorageUnits: kilo * storagePerKiloLoad,
	}
	baseline.MonthlyCost = baseline.ComputeUnits*computeUnitRate + baseline.StorageUnits*storageUnitRate

	gain := wf.EfficiencyGain + analysisWeight*analysis.EstimatedSavingsPercent
	if gain < 0 {
		gain = 0
	}

	roi := &ROIAnalysis{
		Baseline:  roundForecast(baseline),
		Scenarios: make([]Scenario, 0, len(scenarioTable)),
	}

	for _, entry := range scenarioTable {
		realized := gain * entry.multiplier
		if realized > maxRealizedPercent {
			realized = maxRealizedPercent
		}

		// Compute shrinks with the full realized gain; storage persists and
		// only sheds half of it.
		fc := QuotaForecast{
			ComputeUnits: baseline.ComputeUnits * (1 - realized/100),
			StorageUnits: baseline.StorageUnits * (1 - realized/200),
		}
		fc.MonthlyCost = fc.ComputeUnits*computeUnitRate + fc.StorageUnits*storageUnitRate

		roi.Scenarios = append(roi.Scenarios, Scenario{
			Name:     entry.name,
			Forecast: roundForecast(fc),
			Effort:   entry.effort,
			Risk:     entry.risk,
		})
	}

	consCost := roi.Scenarios[0].Forecast.MonthlyCost
	for i := range roi.Scenarios {
		s := &roi.Scenarios[i]
		if i > 0 && consCost > 0 {
			s.SavingsPercent = round1((consCost - s.Forecast.MonthlyCost) / consCost * 100)
		}
		s.WithinBudget = checkCeilings(roi, s, wf.Profile)
	}

	f.logger.Debug("roi forecast built",
		zap.Float64("baseline_monthly_cost", roi.Baseline.MonthlyCost),
		zap.Float64("blended_gain", gain))

	return roi, nil
}

// checkCeilings compares one scenario against the profile ceilings, appending
// a note to the ROI per exceeded ceiling. It reports whether the scenario
// stays within every configured ceiling.
func checkCeilings(roi *ROIAnalysis, s *Scenario, limits intent.Profile) bool {
	within := true
	note := func(resource string, got, limit float64) {
		within = false
		roi.Notes = append(roi.Notes,
			fmt.Sprintf("%s forecast exceeds %s ceiling (%.2f > %.2f)", s.Name, resource, got, limit))
	}

	if limits.MaxComputeUnits > 0 && s.Forecast.ComputeUnits > limits.MaxComputeUnits {
		note("compute", s.Forecast.ComputeUnits, limits.MaxComputeUnits)
	}
	if limits.MaxStorageUnits > 0 && s.Forecast.StorageUnits > limits.MaxStorageUnits {
		note("storage", s.Forecast.StorageUnits, limits.MaxStorageUnits)
	}
	if limits.MaxMonthlyCost > 0 && s.Forecast.MonthlyCost > limits.MaxMonthlyCost {
		note("monthly cost", s.Forecast.MonthlyCost, limits.MaxMonthlyCost)
	}
	return within
}

func roundForecast(fc QuotaForecast) QuotaForecast {
	return QuotaForecast{
		ComputeUnits: round2(fc.ComputeUnits),
		StorageUnits: round2(fc.StorageUnits),
		MonthlyCost:  round2(fc.MonthlyCost),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
