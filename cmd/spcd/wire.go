package main

// Wire types mirroring the daemon's request and response bodies. The CLI
// decodes only the fields it renders.

// OptimizeRequest matches internal/http OptimizeRequest
type OptimizeRequest struct {
	Intent  string   `json:"intent"`
	Options *Options `json:"options,omitempty"`
}

// Options matches internal/pipeline Options
type Options struct {
	ExpectedLoad           float64      `json:"expected_load,omitempty"`
	CostCeiling            *CostCeiling `json:"cost_ceiling,omitempty"`
	PerformanceSensitivity string       `json:"performance_sensitivity,omitempty"`
}

// CostCeiling matches internal/pipeline CostCeiling
type CostCeiling struct {
	MaxComputeUnits float64 `json:"max_compute_units,omitempty"`
	MaxStorageUnits float64 `json:"max_storage_units,omitempty"`
	MaxMonthlyCost  float64 `json:"max_monthly_cost,omitempty"`
}

// Outcome matches the pipeline outcome returned by POST /api/v1/optimize
type Outcome struct {
	Success          bool              `json:"success"`
	Artifact         *Artifact         `json:"artifact,omitempty"`
	EfficiencyReport *EfficiencyReport `json:"efficiency_report,omitempty"`
	Err              *PipelineError    `json:"error,omitempty"`
	Context          *RunContext       `json:"context"`
}

// Artifact matches internal/spec Artifact
type Artifact struct {
	Requirements string          `json:"requirements"`
	Design       string          `json:"design"`
	Tasks        []Task          `json:"tasks"`
	Metadata     Metadata        `json:"metadata"`
	Options      []OptionSummary `json:"options"`
}

// Task matches internal/spec Task
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Effort      string   `json:"effort"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// Metadata matches internal/spec Metadata
type Metadata struct {
	Objective         string   `json:"objective"`
	Techniques        []string `json:"techniques,omitempty"`
	EfficiencyGain    float64  `json:"efficiency_gain"`
	StepCount         int      `json:"step_count"`
	OptimizationCount int      `json:"optimization_count"`
	Generator         string   `json:"generator"`
}

// OptionSummary matches internal/spec OptionSummary
type OptionSummary struct {
	Name           string  `json:"name"`
	Scenario       string  `json:"scenario"`
	Description    string  `json:"description"`
	TaskCount      int     `json:"task_count"`
	SavingsPercent float64 `json:"savings_percent"`
}

// EfficiencyReport matches internal/pipeline EfficiencyReport
type EfficiencyReport struct {
	SavingsPercentage    float64 `json:"savings_percentage"`
	BestCasePercentage   float64 `json:"best_case_percentage"`
	BaselineMonthlyCost  float64 `json:"baseline_monthly_cost"`
	ProjectedMonthlyCost float64 `json:"projected_monthly_cost"`
}

// PipelineError matches internal/pipeline Error
type PipelineError struct {
	Stage           string `json:"stage"`
	Kind            string `json:"kind"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action"`
}

// RunContext matches the fields of internal/pipeline RunContext the CLI
// renders
type RunContext struct {
	SessionID  string   `json:"session_id"`
	DurationMS int64    `json:"duration_ms"`
	Degraded   []string `json:"degraded,omitempty"`
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Pipeline      StatsResponse `json:"pipeline"`
	Counts        HealthCounts  `json:"counts"`
}

// HealthCounts matches internal/http HealthCounts
type HealthCounts struct {
	Techniques    int `json:"techniques"`
	Sources       int `json:"sources"`
	SteeringNotes int `json:"steering_notes"`
}

// StatsResponse matches internal/http StatsResponse
type StatsResponse struct {
	Requests      uint64  `json:"requests"`
	Failures      uint64  `json:"failures"`
	DegradedRuns  uint64  `json:"degraded_runs"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// TechniquesResponse matches internal/http TechniquesResponse
type TechniquesResponse struct {
	Techniques []TechniqueBody `json:"techniques"`
	Count      int             `json:"count"`
}

// TechniqueBody matches internal/http TechniqueBody
type TechniqueBody struct {
	Key            string         `json:"key"`
	Name           string         `json:"name"`
	Triggers       []string       `json:"triggers"`
	BaseSavings    float64        `json:"base_savings"`
	Recommendation string         `json:"recommendation"`
	Citations      []CitationBody `json:"citations,omitempty"`
}

// CitationBody matches internal/http CitationBody
type CitationBody struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Year        int      `json:"year"`
	Publication string   `json:"publication"`
	Finding     string   `json:"finding"`
}
