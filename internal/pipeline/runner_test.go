package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/optimization"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

func goodParsed() *intent.ParsedIntent {
	return &intent.ParsedIntent{
		Objective:  "Automate invoice processing",
		Operations: []string{"automate invoice processing"},
		Entities:   []string{"invoice", "processing"},
	}
}

func goodAnalysis() *consulting.Analysis {
	return &consulting.Analysis{
		Techniques: []consulting.Assessment{{
			Technique: "process_reengineering",
			Name:      "Business Process Reengineering",
			Score:     2,
			Rationale: "matched 2 signal(s): automate, processing",
		}},
		EstimatedSavingsPercent: 25,
		KeyFindings:             []string{"Business Process Reengineering applies: intent mentions automate"},
	}
}

func goodWorkflow() *optimization.Workflow {
	return &optimization.Workflow{
		Steps: []optimization.Step{{
			ID:        "S-01",
			Name:      "Automate invoice processing",
			Operation: "automate invoice processing",
		}},
		Optimizations: []optimization.Optimization{{
			Kind:           optimization.KindAutomation,
			Description:    "automate repetitive steps so they run without operator involvement",
			SavingsPercent: 9,
		}},
		EfficiencyGain: 9,
	}
}

func goodROI() *forecast.ROIAnalysis {
	return &forecast.ROIAnalysis{
		Baseline: forecast.QuotaForecast{ComputeUnits: 8, StorageUnits: 3, MonthlyCost: 27.6},
		Scenarios: []forecast.Scenario{
			{
				Name:         forecast.ScenarioConservative,
				Forecast:     forecast.QuotaForecast{ComputeUnits: 7.34, StorageUnits: 2.88, MonthlyCost: 25.48},
				Effort:       "low",
				Risk:         "low",
				WithinBudget: true,
			},
			{
				Name:           forecast.ScenarioBalanced,
				Forecast:       forecast.QuotaForecast{ComputeUnits: 6.68, StorageUnits: 2.75, MonthlyCost: 23.34},
				SavingsPercent: 8.4,
				Effort:         "medium",
				Risk:           "medium",
				WithinBudget:   true,
			},
			{
				Name:           forecast.ScenarioBold,
				Forecast:       forecast.QuotaForecast{ComputeUnits: 6.15, StorageUnits: 2.65, MonthlyCost: 21.63},
				SavingsPercent: 15.1,
				Effort:         "high",
				Risk:           "high",
				WithinBudget:   true,
			},
		},
	}
}

func goodSummary() *consulting.Summary {
	return &consulting.Summary{
		ExecutiveSummary: "The analysis recommends one technique with projected savings of 25.0%.",
		Recommendations: []consulting.Recommendation{{
			Rank:      1,
			Technique: "process_reengineering",
			Action:    "Redesign the process around its outcome instead of patching the existing task sequence",
			Impact:    "high",
		}},
	}
}

func goodArtifact() *spec.Artifact {
	return &spec.Artifact{
		Requirements: "# Requirements: Automate invoice processing",
		Design:       "# Design: Automate invoice processing",
		Tasks: []spec.Task{
			{ID: "T-01", Title: "Automate invoice processing", Effort: "medium"},
			{ID: "T-02", Title: "Apply automation optimization", Effort: "small", DependsOn: []string{"T-01"}},
			{ID: "T-03", Title: "Measure outcomes against forecast", Effort: "small", DependsOn: []string{"T-02"}},
		},
		Metadata: spec.Metadata{
			Objective:  "Automate invoice processing",
			Techniques: []string{"process_reengineering"},
			Generator:  "specd",
		},
	}
}

// stubCollab implements all six collaborator interfaces. Each stage
// delegates to its override when set and otherwise returns a canned
// valid output.
type stubCollab struct {
	mu             sync.Mutex
	parseCalls     int
	analyzeCalls   int
	optimizeCalls  int
	forecastCalls  int
	summarizeCalls int
	emitCalls      int

	parseFn     func(ctx context.Context, text string, profile intent.Profile) (*intent.ParsedIntent, error)
	analyzeFn   func(ctx context.Context, in *intent.ParsedIntent) (*consulting.Analysis, error)
	optimizeFn  func(ctx context.Context, in *intent.ParsedIntent, analysis *consulting.Analysis) (*optimization.Workflow, error)
	forecastFn  func(ctx context.Context, wf *optimization.Workflow, analysis *consulting.Analysis) (*forecast.ROIAnalysis, error)
	summarizeFn func(ctx context.Context, analysis *consulting.Analysis, techniques []string) (*consulting.Summary, error)
	emitFn      func(ctx context.Context, wf *optimization.Workflow, summary *consulting.Summary, roi *forecast.ROIAnalysis, objective string) (*spec.Artifact, error)
}

func (s *stubCollab) bump(counter *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter++
}

func (s *stubCollab) Parse(ctx context.Context, text string, profile intent.Profile) (*intent.ParsedIntent, error) {
	s.bump(&s.parseCalls)
	if s.parseFn != nil {
		return s.parseFn(ctx, text, profile)
	}
	return goodParsed(), nil
}

func (s *stubCollab) Analyze(ctx context.Context, in *intent.ParsedIntent) (*consulting.Analysis, error) {
	s.bump(&s.analyzeCalls)
	if s.analyzeFn != nil {
		return s.analyzeFn(ctx, in)
	}
	return goodAnalysis(), nil
}

func (s *stubCollab) Optimize(ctx context.Context, in *intent.ParsedIntent, analysis *consulting.Analysis) (*optimization.Workflow, error) {
	s.bump(&s.optimizeCalls)
	if s.optimizeFn != nil {
		return s.optimizeFn(ctx, in, analysis)
	}
	return goodWorkflow(), nil
}

func (s *stubCollab) Forecast(ctx context.Context, wf *optimization.Workflow, analysis *consulting.Analysis) (*forecast.ROIAnalysis, error) {
	s.bump(&s.forecastCalls)
	if s.forecastFn != nil {
		return s.forecastFn(ctx, wf, analysis)
	}
	return goodROI(), nil
}

func (s *stubCollab) Summarize(ctx context.Context, analysis *consulting.Analysis, techniques []string) (*consulting.Summary, error) {
	s.bump(&s.summarizeCalls)
	if s.summarizeFn != nil {
		return s.summarizeFn(ctx, analysis, techniques)
	}
	return goodSummary(), nil
}

func (s *stubCollab) Emit(ctx context.Context, wf *optimization.Workflow, summary *consulting.Summary, roi *forecast.ROIAnalysis, objective string) (*spec.Artifact, error) {
	s.bump(&s.emitCalls)
	if s.emitFn != nil {
		return s.emitFn(ctx, wf, summary, roi, objective)
	}
	return goodArtifact(), nil
}

func (s *stubCollab) collaborators() Collaborators {
	return Collaborators{
		Parser:     s,
		Analyzer:   s,
		Optimizer:  s,
		Forecaster: s,
		Summarizer: s,
		Emitter:    s,
	}
}

type captureSink struct {
	mu   sync.Mutex
	recs []Record
}

func (c *captureSink) Record(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *captureSink) all() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.recs...)
}

func (c *captureSink) withOutcome(outcome string) []Record {
	var out []Record
	for _, rec := range c.all() {
		if rec.Outcome == outcome {
			out = append(out, rec)
		}
	}
	return out
}

type fakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
	return nil
}

func (f *fakeSleeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRunner(t *testing.T, c *stubCollab) (*Runner, *captureSink, *fakeSleeper) {
	t.Helper()
	sink := &captureSink{}
	r, err := NewRunner(Config{}, c.collaborators(), WithSink(sink))
	require.NoError(t, err)
	sleeper := &fakeSleeper{}
	r.sleep = sleeper.sleep
	return r, sink, sleeper
}

func entriesFor(rc *RunContext, stage Stage) []LogEntry {
	var out []LogEntry
	for _, e := range rc.Entries {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

func TestNewRunner_RequiresAllCollaborators(t *testing.T) {
	c := &stubCollab{}
	full := c.collaborators()

	cases := []struct {
		name   string
		mutate func(*Collaborators)
	}{
		{"parser", func(c *Collaborators) { c.Parser = nil }},
		{"analyzer", func(c *Collaborators) { c.Analyzer = nil }},
		{"optimizer", func(c *Collaborators) { c.Optimizer = nil }},
		{"forecaster", func(c *Collaborators) { c.Forecaster = nil }},
		{"summarizer", func(c *Collaborators) { c.Summarizer = nil }},
		{"emitter", func(c *Collaborators) { c.Emitter = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broken := full
			tc.mutate(&broken)
			_, err := NewRunner(Config{}, broken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.name)
		})
	}

	r, err := NewRunner(Config{}, full)
	require.NoError(t, err)
	assert.Equal(t, 3, r.cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, r.cfg.RetryDelay)
	assert.Equal(t, 30*time.Second, r.cfg.StageTimeout)
}

func TestRunner_RejectsEmptyIntent(t *testing.T) {
	c := &stubCollab{}
	r, sink, _ := newTestRunner(t, c)

	for _, raw := range []string{"", "   ", "\n\t  "} {
		out := r.Run(context.Background(), raw, nil)
		require.NotNil(t, out)
		assert.False(t, out.Success)
		assert.Nil(t, out.Artifact)
		assert.Nil(t, out.EfficiencyReport)
		require.NotNil(t, out.Err)
		assert.Equal(t, ErrorStageIntent, out.Err.Stage)
		assert.Equal(t, KindValidationFailed, out.Err.Kind)
		assert.NotEmpty(t, out.Err.SuggestedAction)
		assert.Empty(t, out.Context.Entries)
	}

	// No collaborator is ever consulted for a rejected request.
	assert.Equal(t, 0, c.parseCalls)
	assert.Len(t, sink.withOutcome(KindValidationFailed), 3)
}

func TestRunner_RejectsInconsistentOptions(t *testing.T) {
	c := &stubCollab{}
	r, _, _ := newTestRunner(t, c)

	cases := []struct {
		name string
		opts *Options
	}{
		{"negative load", &Options{ExpectedLoad: -1}},
		{"negative compute ceiling", &Options{CostCeiling: &CostCeiling{MaxComputeUnits: -5}}},
		{"negative storage ceiling", &Options{CostCeiling: &CostCeiling{MaxStorageUnits: -0.5}}},
		{"negative cost ceiling", &Options{CostCeiling: &CostCeiling{MaxMonthlyCost: -10}}},
		{"unknown sensitivity", &Options{PerformanceSensitivity: "extreme"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := r.Run(context.Background(), "Automate invoice processing", tc.opts)
			assert.False(t, out.Success)
			require.NotNil(t, out.Err)
			assert.Equal(t, ErrorStageIntent, out.Err.Stage)
			assert.Equal(t, KindValidationFailed, out.Err.Kind)
			assert.Empty(t, out.Context.Entries)
		})
	}
	assert.Equal(t, 0, c.parseCalls)
}

func TestRunner_SuccessfulRun(t *testing.T) {
	c := &stubCollab{}
	r, sink, sleeper := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.NotNil(t, out)
	assert.True(t, out.Success)
	assert.Nil(t, out.Err)
	require.NotNil(t, out.Artifact)
	assert.Len(t, out.Artifact.Tasks, 3)
	assert.Empty(t, out.Context.Degraded)
	assert.NotEmpty(t, out.Context.SessionID)
	assert.GreaterOrEqual(t, out.Context.DurationMS, int64(0))
	assert.Zero(t, sleeper.count())

	// One attempt per stage, all ok, in execution order.
	require.Len(t, out.Context.Entries, len(Stages()))
	for i, stage := range Stages() {
		assert.Equal(t, stage, out.Context.Entries[i].Stage)
		assert.Equal(t, 1, out.Context.Entries[i].Attempt)
		assert.Equal(t, OutcomeOK, out.Context.Entries[i].Outcome)
	}

	require.NotNil(t, out.EfficiencyReport)
	assert.InDelta(t, 8.4, out.EfficiencyReport.SavingsPercentage, 1e-9)
	assert.InDelta(t, 15.1, out.EfficiencyReport.BestCasePercentage, 1e-9)
	assert.InDelta(t, 27.6, out.EfficiencyReport.BaselineMonthlyCost, 1e-9)
	assert.InDelta(t, 23.34, out.EfficiencyReport.ProjectedMonthlyCost, 1e-9)

	// Six attempt records plus the terminal success record.
	assert.Len(t, sink.withOutcome(OutcomeOK), 6)
	require.Len(t, sink.withOutcome("success"), 1)
	for _, rec := range sink.all() {
		assert.Equal(t, out.Context.SessionID, rec.SessionID)
	}
}

func TestRunner_ThreadsOptionsIntoProfile(t *testing.T) {
	var got intent.Profile
	c := &stubCollab{
		parseFn: func(_ context.Context, _ string, profile intent.Profile) (*intent.ParsedIntent, error) {
			got = profile
			return goodParsed(), nil
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", &Options{
		ExpectedLoad:           500,
		CostCeiling:            &CostCeiling{MaxComputeUnits: 20, MaxStorageUnits: 10, MaxMonthlyCost: 75},
		PerformanceSensitivity: intent.SensitivityHigh,
	})

	require.True(t, out.Success)
	assert.Equal(t, intent.Profile{
		ExpectedLoad:    500,
		Sensitivity:     intent.SensitivityHigh,
		MaxComputeUnits: 20,
		MaxStorageUnits: 10,
		MaxMonthlyCost:  75,
	}, got)
}

func TestRunner_RetriesTransientFaults(t *testing.T) {
	attempts := 0
	c := &stubCollab{
		analyzeFn: func(_ context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			attempts++
			if attempts < 3 {
				return nil, Transient(fmt.Errorf("upstream flake %d", attempts))
			}
			return goodAnalysis(), nil
		},
	}
	r, _, sleeper := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	assert.Empty(t, out.Context.Degraded)
	assert.Equal(t, 3, c.analyzeCalls)
	assert.Equal(t, 2, sleeper.count())

	analyze := entriesFor(out.Context, StageAnalyze)
	require.Len(t, analyze, 3)
	assert.Equal(t, OutcomeRetry, analyze[0].Outcome)
	assert.Equal(t, OutcomeRetry, analyze[1].Outcome)
	assert.Equal(t, OutcomeOK, analyze[2].Outcome)
	assert.Equal(t, []int{1, 2, 3}, []int{analyze[0].Attempt, analyze[1].Attempt, analyze[2].Attempt})
}

func TestRunner_ExhaustedRetriesDegradeRecoverableStage(t *testing.T) {
	var sawAnalysis *consulting.Analysis
	c := &stubCollab{
		analyzeFn: func(_ context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			return nil, Transient(fmt.Errorf("upstream unavailable"))
		},
		optimizeFn: func(_ context.Context, _ *intent.ParsedIntent, analysis *consulting.Analysis) (*optimization.Workflow, error) {
			sawAnalysis = analysis
			return goodWorkflow(), nil
		},
	}
	r, sink, sleeper := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{ErrorStageAnalysis}, out.Context.Degraded)
	assert.Equal(t, 3, c.analyzeCalls)
	assert.Equal(t, 2, sleeper.count())

	// Downstream stages consume the substituted analysis.
	require.NotNil(t, sawAnalysis)
	require.Len(t, sawAnalysis.Techniques, 1)
	assert.Equal(t, "process_mapping", sawAnalysis.Techniques[0].Technique)
	assert.InDelta(t, 5, sawAnalysis.EstimatedSavingsPercent, 1e-9)

	analyze := entriesFor(out.Context, StageAnalyze)
	require.Len(t, analyze, 3)
	assert.Equal(t, OutcomeError, analyze[2].Outcome)
	require.Len(t, sink.withOutcome(degradedKind(StageAnalyze)), 1)
}

func TestRunner_NonTransientFaultsAreNotRetried(t *testing.T) {
	c := &stubCollab{
		forecastFn: func(_ context.Context, _ *optimization.Workflow, _ *consulting.Analysis) (*forecast.ROIAnalysis, error) {
			return nil, fmt.Errorf("model rejected the workflow")
		},
	}
	r, _, sleeper := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	assert.Equal(t, 1, c.forecastCalls)
	assert.Zero(t, sleeper.count())
	assert.Equal(t, []string{ErrorStageForecasting}, out.Context.Degraded)

	// The substituted forecast mirrors an empty baseline with no claimed
	// savings.
	require.NotNil(t, out.EfficiencyReport)
	assert.Zero(t, out.EfficiencyReport.SavingsPercentage)
}

func TestRunner_InvalidOutputIsNeverRetried(t *testing.T) {
	c := &stubCollab{
		analyzeFn: func(_ context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			return &consulting.Analysis{}, nil
		},
	}
	r, _, sleeper := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	assert.Equal(t, 1, c.analyzeCalls)
	assert.Zero(t, sleeper.count())
	assert.Equal(t, []string{ErrorStageAnalysis}, out.Context.Degraded)

	analyze := entriesFor(out.Context, StageAnalyze)
	require.Len(t, analyze, 1)
	assert.Equal(t, OutcomeInvalid, analyze[0].Outcome)
}

func TestRunner_SummarizeFaultIsFatal(t *testing.T) {
	c := &stubCollab{
		summarizeFn: func(_ context.Context, _ *consulting.Analysis, _ []string) (*consulting.Summary, error) {
			return nil, fmt.Errorf("too many techniques selected")
		},
	}
	r, sink, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	assert.False(t, out.Success)
	assert.Nil(t, out.Artifact)
	require.NotNil(t, out.Err)
	assert.Equal(t, ErrorStageAnalysis, out.Err.Stage)
	assert.Equal(t, "analysis_failed", out.Err.Kind)
	assert.Equal(t, "retry with fewer techniques", out.Err.SuggestedAction)
	assert.Equal(t, 0, c.emitCalls)
	assert.Empty(t, entriesFor(out.Context, StageEmit))

	terminal := sink.withOutcome("analysis_failed")
	require.Len(t, terminal, 1)
	require.NotNil(t, terminal[0].Err)
	assert.Equal(t, out.Err, terminal[0].Err)
}

func TestRunner_SummarizeInvalidOutputIsFatal(t *testing.T) {
	c := &stubCollab{
		summarizeFn: func(_ context.Context, _ *consulting.Analysis, _ []string) (*consulting.Summary, error) {
			return &consulting.Summary{}, nil
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, "analysis_failed", out.Err.Kind)
	assert.Equal(t, "retry with fewer techniques", out.Err.SuggestedAction)
	assert.NotContains(t, out.Context.Degraded, ErrorStageAnalysis)
}

func TestRunner_EmitFaultIsFatal(t *testing.T) {
	c := &stubCollab{
		emitFn: func(_ context.Context, _ *optimization.Workflow, _ *consulting.Summary, _ *forecast.ROIAnalysis, _ string) (*spec.Artifact, error) {
			return nil, fmt.Errorf("template rendering failed")
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, ErrorStageSpec, out.Err.Stage)
	assert.Equal(t, "spec_failed", out.Err.Kind)
	assert.Equal(t, "simplify the workflow intent and retry", out.Err.SuggestedAction)
	assert.Empty(t, out.Context.Degraded)
}

func TestRunner_EmitEmptyTaskListIsPatched(t *testing.T) {
	c := &stubCollab{
		emitFn: func(_ context.Context, _ *optimization.Workflow, _ *consulting.Summary, _ *forecast.ROIAnalysis, _ string) (*spec.Artifact, error) {
			a := goodArtifact()
			a.Tasks = nil
			return a, nil
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{ErrorStageSpec}, out.Context.Degraded)
	require.NotNil(t, out.Artifact)
	require.Len(t, out.Artifact.Tasks, 1)
	assert.Equal(t, "T-01", out.Artifact.Tasks[0].ID)

	// The rendered documents from the partial artifact survive the patch.
	assert.Equal(t, "# Requirements: Automate invoice processing", out.Artifact.Requirements)
	assert.Equal(t, "# Design: Automate invoice processing", out.Artifact.Design)
}

func TestRunner_CollaboratorPanicBecomesPipelineError(t *testing.T) {
	c := &stubCollab{
		optimizeFn: func(_ context.Context, _ *intent.ParsedIntent, _ *consulting.Analysis) (*optimization.Workflow, error) {
			panic("index out of range")
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.NotNil(t, out)
	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, ErrorStageOptimization, out.Err.Stage)
	assert.Equal(t, KindPipelineError, out.Err.Kind)
	assert.Contains(t, out.Err.Message, "index out of range")
	assert.NotEmpty(t, out.Err.SuggestedAction)

	// Nothing runs past the failed stage.
	assert.Equal(t, 1, c.optimizeCalls)
	assert.Equal(t, 0, c.forecastCalls)
	assert.Equal(t, 0, c.summarizeCalls)
	assert.Equal(t, 0, c.emitCalls)
}

func TestRunner_NilResultWithoutErrorIsPipelineError(t *testing.T) {
	c := &stubCollab{
		forecastFn: func(_ context.Context, _ *optimization.Workflow, _ *consulting.Analysis) (*forecast.ROIAnalysis, error) {
			return nil, nil
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, ErrorStageForecasting, out.Err.Stage)
	assert.Equal(t, KindPipelineError, out.Err.Kind)
	assert.Equal(t, 1, c.forecastCalls)
	assert.Equal(t, 0, c.summarizeCalls)
}

func TestRunner_CanceledBeforeFirstStage(t *testing.T) {
	c := &stubCollab{}
	r, _, _ := newTestRunner(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Run(ctx, "Automate invoice processing", nil)

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, ErrorStageIntent, out.Err.Stage)
	assert.Equal(t, KindPipelineError, out.Err.Kind)
	assert.Equal(t, 0, c.parseCalls)
}

func TestRunner_CancellationStopsAtStageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &stubCollab{
		analyzeFn: func(_ context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			cancel()
			return goodAnalysis(), nil
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(ctx, "Automate invoice processing", nil)

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, KindPipelineError, out.Err.Kind)
	assert.Equal(t, ErrorStageOptimization, out.Err.Stage)

	// The analyze stage completed; optimize never started.
	require.Len(t, entriesFor(out.Context, StageAnalyze), 1)
	assert.Equal(t, OutcomeOK, entriesFor(out.Context, StageAnalyze)[0].Outcome)
	assert.Equal(t, 0, c.optimizeCalls)
}

func TestRunner_CancellationDuringCollaboratorCallIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &stubCollab{
		analyzeFn: func(c context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			cancel()
			return nil, c.Err()
		},
	}
	r, _, sleeper := newTestRunner(t, c)

	out := r.Run(ctx, "Automate invoice processing", nil)

	assert.False(t, out.Success)
	require.NotNil(t, out.Err)
	assert.Equal(t, ErrorStageAnalysis, out.Err.Stage)
	assert.Equal(t, KindPipelineError, out.Err.Kind)
	assert.Equal(t, 1, c.analyzeCalls)
	assert.Zero(t, sleeper.count())
	assert.Equal(t, 0, c.optimizeCalls)
}

func TestRunner_PerAttemptTimeoutIsRetriedThenDegraded(t *testing.T) {
	c := &stubCollab{
		analyzeFn: func(ctx context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	sink := &captureSink{}
	r, err := NewRunner(Config{StageTimeout: time.Millisecond}, c.collaborators(), WithSink(sink))
	require.NoError(t, err)
	sleeper := &fakeSleeper{}
	r.sleep = sleeper.sleep

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	assert.Equal(t, 3, c.analyzeCalls)
	assert.Equal(t, 2, sleeper.count())
	assert.Equal(t, []string{ErrorStageAnalysis}, out.Context.Degraded)
}

func TestRunner_AttemptPairsAreUniqueAndOrdered(t *testing.T) {
	attempts := 0
	c := &stubCollab{
		analyzeFn: func(_ context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
			attempts++
			if attempts == 1 {
				return nil, Transient(fmt.Errorf("flake"))
			}
			return goodAnalysis(), nil
		},
		forecastFn: func(_ context.Context, _ *optimization.Workflow, _ *consulting.Analysis) (*forecast.ROIAnalysis, error) {
			return &forecast.ROIAnalysis{}, nil
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)
	require.True(t, out.Success)

	order := make(map[Stage]int, len(Stages()))
	for i, s := range Stages() {
		order[s] = i
	}
	seen := make(map[string]bool)
	lastStage := -1
	for _, e := range out.Context.Entries {
		key := fmt.Sprintf("%s/%d", e.Stage, e.Attempt)
		assert.False(t, seen[key], "duplicate attempt %s", key)
		seen[key] = true
		assert.GreaterOrEqual(t, order[e.Stage], lastStage)
		lastStage = order[e.Stage]
	}
}

func TestRunner_StatsCounters(t *testing.T) {
	c := &stubCollab{}
	r, _, _ := newTestRunner(t, c)

	require.True(t, r.Run(context.Background(), "Automate invoice processing", nil).Success)

	c.analyzeFn = func(_ context.Context, _ *intent.ParsedIntent) (*consulting.Analysis, error) {
		return &consulting.Analysis{}, nil
	}
	require.True(t, r.Run(context.Background(), "Automate invoice processing", nil).Success)

	c.analyzeFn = nil
	c.summarizeFn = func(_ context.Context, _ *consulting.Analysis, _ []string) (*consulting.Summary, error) {
		return nil, fmt.Errorf("boom")
	}
	require.False(t, r.Run(context.Background(), "Automate invoice processing", nil).Success)

	snap := r.Stats()
	assert.Equal(t, uint64(3), snap.Requests)
	assert.Equal(t, uint64(1), snap.Failures)
	assert.Equal(t, uint64(1), snap.DegradedRuns)
	assert.GreaterOrEqual(t, snap.AvgDurationMS, float64(0))
}

func TestRunner_FatalErrorsAlwaysCarrySuggestedAction(t *testing.T) {
	faults := []struct {
		name   string
		mutate func(*stubCollab)
	}{
		{"parse panic", func(c *stubCollab) {
			c.parseFn = func(context.Context, string, intent.Profile) (*intent.ParsedIntent, error) { panic("boom") }
		}},
		{"summarize error", func(c *stubCollab) {
			c.summarizeFn = func(context.Context, *consulting.Analysis, []string) (*consulting.Summary, error) {
				return nil, fmt.Errorf("boom")
			}
		}},
		{"emit error", func(c *stubCollab) {
			c.emitFn = func(context.Context, *optimization.Workflow, *consulting.Summary, *forecast.ROIAnalysis, string) (*spec.Artifact, error) {
				return nil, fmt.Errorf("boom")
			}
		}},
		{"forecast nil result", func(c *stubCollab) {
			c.forecastFn = func(context.Context, *optimization.Workflow, *consulting.Analysis) (*forecast.ROIAnalysis, error) {
				return nil, nil
			}
		}},
	}
	for _, tc := range faults {
		t.Run(tc.name, func(t *testing.T) {
			c := &stubCollab{}
			tc.mutate(c)
			r, _, _ := newTestRunner(t, c)

			out := r.Run(context.Background(), "Automate invoice processing", nil)

			assert.False(t, out.Success)
			require.NotNil(t, out.Err)
			assert.NotEmpty(t, out.Err.SuggestedAction)
			assert.NotEmpty(t, out.Err.Message)
		})
	}
}

func TestRunner_DegradedRecoverableStagesStillProduceArtifact(t *testing.T) {
	// Break every recoverable stage at once; the run should still succeed
	// on fallbacks alone.
	c := &stubCollab{
		parseFn: func(context.Context, string, intent.Profile) (*intent.ParsedIntent, error) {
			return nil, fmt.Errorf("parser offline")
		},
		analyzeFn: func(context.Context, *intent.ParsedIntent) (*consulting.Analysis, error) {
			return nil, fmt.Errorf("analyzer offline")
		},
		optimizeFn: func(context.Context, *intent.ParsedIntent, *consulting.Analysis) (*optimization.Workflow, error) {
			return nil, fmt.Errorf("optimizer offline")
		},
		forecastFn: func(context.Context, *optimization.Workflow, *consulting.Analysis) (*forecast.ROIAnalysis, error) {
			return nil, fmt.Errorf("forecaster offline")
		},
	}
	r, _, _ := newTestRunner(t, c)

	out := r.Run(context.Background(), "Automate invoice processing", nil)

	require.True(t, out.Success)
	require.NotNil(t, out.Artifact)
	assert.NotEmpty(t, out.Artifact.Tasks)
	assert.Equal(t, []string{
		ErrorStageIntent,
		ErrorStageAnalysis,
		ErrorStageOptimization,
		ErrorStageForecasting,
	}, out.Context.Degraded)
}
