package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/pipeline"
)

// registerTools registers the core pipeline tools and their registry
// metadata. Steering tools register separately via SetSteering.
func (s *Server) registerTools() {
	s.toolRegistry.RegisterAll([]*ToolMetadata{
		{
			Name:        "workflow_optimize",
			Description: "Run the optimization pipeline over a workflow description and return the specification artifact",
			Category:    CategoryWorkflow,
			Keywords:    []string{"pipeline", "optimize", "intent", "forecast", "specification", "run"},
		},
		{
			Name:        "workflow_techniques",
			Description: "List the operations-management technique catalog the analyzer selects from",
			Category:    CategoryWorkflow,
			Keywords:    []string{"catalog", "lean", "analysis", "techniques"},
		},
		{
			Name:        "workflow_citations",
			Description: "Look up the published sources backing a technique recommendation",
			Category:    CategoryWorkflow,
			Keywords:    []string{"sources", "references", "evidence", "research"},
		},
		{
			Name:        "pipeline_stats",
			Description: "Read the process-wide pipeline run counters",
			Category:    CategoryPipeline,
			Keywords:    []string{"counters", "metrics", "failures", "degraded", "latency"},
		},
		{
			Name:        "tool_search",
			Description: "Search for available tools by name, description, or keyword",
			Category:    CategorySearch,
			Keywords:    []string{"discover", "find", "tools"},
		},
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "workflow_optimize",
		Description: "Run the optimization pipeline over a raw workflow description. Parses the intent, applies matching techniques, forecasts savings scenarios, and returns requirements, design, tasks, and delivery options.",
		Meta:        s.toolMeta("workflow_optimize"),
	}, s.handleOptimize)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "workflow_techniques",
		Description: "List the technique catalog: trigger signals, base savings, and recommendation text for each technique the analyzer can select.",
		Meta:        s.toolMeta("workflow_techniques"),
	}, s.handleTechniques)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "workflow_citations",
		Description: "Return the published sources backing a technique, by technique key. Unknown techniques return an empty list.",
		Meta:        s.toolMeta("workflow_citations"),
	}, s.handleCitations)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pipeline_stats",
		Description: "Return process-wide pipeline counters: total runs, failures, degraded runs, and mean run latency.",
		Meta:        s.toolMeta("pipeline_stats"),
	}, s.handleStats)

	s.registerSearchTools()
}

// ===== WORKFLOW TOOLS =====

type optimizeInput struct {
	Intent          string  `json:"intent" jsonschema:"required,Raw workflow description to optimize"`
	ExpectedLoad    float64 `json:"expected_load,omitempty" jsonschema:"Projected monthly item volume (0 selects the default load)"`
	MaxComputeUnits float64 `json:"max_compute_units,omitempty" jsonschema:"Monthly compute unit ceiling (0 means unlimited)"`
	MaxStorageUnits float64 `json:"max_storage_units,omitempty" jsonschema:"Monthly storage unit ceiling (0 means unlimited)"`
	MaxMonthlyCost  float64 `json:"max_monthly_cost,omitempty" jsonschema:"Projected monthly cost ceiling (0 means unlimited)"`
	Sensitivity     string  `json:"sensitivity,omitempty" jsonschema:"Performance sensitivity: low, medium, or high (default: medium)"`
}

// options maps the wire input onto pipeline run options. A cost ceiling
// is attached only when at least one bound is set.
func (in optimizeInput) options() *pipeline.Options {
	opts := &pipeline.Options{
		ExpectedLoad:           in.ExpectedLoad,
		PerformanceSensitivity: intent.Sensitivity(strings.ToLower(in.Sensitivity)),
	}
	if in.MaxComputeUnits > 0 || in.MaxStorageUnits > 0 || in.MaxMonthlyCost > 0 {
		opts.CostCeiling = &pipeline.CostCeiling{
			MaxComputeUnits: in.MaxComputeUnits,
			MaxStorageUnits: in.MaxStorageUnits,
			MaxMonthlyCost:  in.MaxMonthlyCost,
		}
	}
	return opts
}

type taskOutput struct {
	ID          string   `json:"id" jsonschema:"Task identifier"`
	Title       string   `json:"title" jsonschema:"Task title"`
	Description string   `json:"description" jsonschema:"What the task delivers"`
	Effort      string   `json:"effort" jsonschema:"Relative effort estimate"`
	DependsOn   []string `json:"depends_on,omitempty" jsonschema:"Task IDs this task depends on"`
}

type optionOutput struct {
	Name           string  `json:"name" jsonschema:"Delivery option name"`
	Scenario       string  `json:"scenario" jsonschema:"Forecast scenario backing the option"`
	Description    string  `json:"description" jsonschema:"Option description"`
	TaskCount      int     `json:"task_count" jsonschema:"Number of tasks in the option"`
	SavingsPercent float64 `json:"savings_percent" jsonschema:"Projected cost saving percentage"`
}

type efficiencyOutput struct {
	SavingsPercentage    float64 `json:"savings_percentage" jsonschema:"Balanced-scenario cost saving percentage"`
	BestCasePercentage   float64 `json:"best_case_percentage" jsonschema:"Highest saving across scenarios"`
	BaselineMonthlyCost  float64 `json:"baseline_monthly_cost" jsonschema:"Unoptimized monthly cost projection"`
	ProjectedMonthlyCost float64 `json:"projected_monthly_cost" jsonschema:"Balanced-scenario monthly cost"`
}

type pipelineErrorOutput struct {
	Stage           string `json:"stage" jsonschema:"Taxonomy stage the failure is attributed to"`
	Kind            string `json:"kind" jsonschema:"Failure kind within the closed taxonomy"`
	Message         string `json:"message" jsonschema:"Human-readable failure description"`
	SuggestedAction string `json:"suggested_action" jsonschema:"What to try next"`
}

type optimizeOutput struct {
	Success      bool                 `json:"success" jsonschema:"Whether the run produced an artifact"`
	SessionID    string               `json:"session_id,omitempty" jsonschema:"Run session identifier"`
	DurationMS   int64                `json:"duration_ms,omitempty" jsonschema:"Run duration in milliseconds"`
	Objective    string               `json:"objective,omitempty" jsonschema:"Parsed workflow objective"`
	Techniques   []string             `json:"techniques,omitempty" jsonschema:"Applied technique names"`
	Requirements string               `json:"requirements,omitempty" jsonschema:"Requirements document in markdown"`
	Design       string               `json:"design,omitempty" jsonschema:"Design document in markdown"`
	Tasks        []taskOutput         `json:"tasks,omitempty" jsonschema:"Delivery tasks"`
	Options      []optionOutput       `json:"options,omitempty" jsonschema:"Delivery options (minimal, balanced, comprehensive)"`
	Efficiency   *efficiencyOutput    `json:"efficiency_report,omitempty" jsonschema:"Projected savings summary"`
	Degraded     []string             `json:"degraded,omitempty" jsonschema:"Taxonomy stages that ran on fallback output"`
	Error        *pipelineErrorOutput `json:"error,omitempty" jsonschema:"Failure details when success is false"`
}

func (s *Server) handleOptimize(ctx context.Context, req *mcp.CallToolRequest, args optimizeInput) (*mcp.CallToolResult, optimizeOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "workflow_optimize")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "workflow_optimize")
		s.metrics.RecordInvocation(ctx, "workflow_optimize", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, optimizeOutput{}, err
	}

	outcome := s.runner.Run(ctx, args.Intent, args.options())

	if outcome.Err != nil {
		toolErr = outcome.Err
		out := optimizeOutput{
			Error: &pipelineErrorOutput{
				Stage:           outcome.Err.Stage,
				Kind:            outcome.Err.Kind,
				Message:         outcome.Err.Message,
				SuggestedAction: outcome.Err.SuggestedAction,
			},
		}
		if outcome.Context != nil {
			out.SessionID = outcome.Context.SessionID
			out.DurationMS = outcome.Context.DurationMS
			out.Degraded = outcome.Context.Degraded
		}
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Pipeline failed at %s (%s): %s. %s",
					outcome.Err.Stage, outcome.Err.Kind, outcome.Err.Message, outcome.Err.SuggestedAction)},
			},
		}, out, nil
	}

	artifact := outcome.Artifact
	out := optimizeOutput{
		Success:      true,
		SessionID:    outcome.Context.SessionID,
		DurationMS:   outcome.Context.DurationMS,
		Degraded:     outcome.Context.Degraded,
		Objective:    artifact.Metadata.Objective,
		Techniques:   artifact.Metadata.Techniques,
		Requirements: artifact.Requirements,
		Design:       artifact.Design,
		Tasks:        make([]taskOutput, 0, len(artifact.Tasks)),
		Options:      make([]optionOutput, 0, len(artifact.Options)),
	}
	for _, task := range artifact.Tasks {
		out.Tasks = append(out.Tasks, taskOutput{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			Effort:      task.Effort,
			DependsOn:   task.DependsOn,
		})
	}
	for _, opt := range artifact.Options {
		out.Options = append(out.Options, optionOutput{
			Name:           opt.Name,
			Scenario:       opt.Scenario,
			Description:    opt.Description,
			TaskCount:      opt.TaskCount,
			SavingsPercent: opt.SavingsPercent,
		})
	}
	if r := outcome.EfficiencyReport; r != nil {
		out.Efficiency = &efficiencyOutput{
			SavingsPercentage:    r.SavingsPercentage,
			BestCasePercentage:   r.BestCasePercentage,
			BaselineMonthlyCost:  r.BaselineMonthlyCost,
			ProjectedMonthlyCost: r.ProjectedMonthlyCost,
		}
	}

	headline := fmt.Sprintf("Optimized %q: %d tasks", out.Objective, len(out.Tasks))
	if out.Efficiency != nil {
		headline += fmt.Sprintf(", %.1f%% projected savings", out.Efficiency.SavingsPercentage)
	}
	if len(out.Degraded) > 0 {
		headline += fmt.Sprintf(" (degraded stages: %s)", strings.Join(out.Degraded, ", "))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: headline},
		},
	}, out, nil
}

type techniquesInput struct{}

type techniqueOutput struct {
	Key            string   `json:"key" jsonschema:"Technique key used by workflow_citations"`
	Name           string   `json:"name" jsonschema:"Technique name"`
	Triggers       []string `json:"triggers" jsonschema:"Intent signal words that select the technique"`
	BaseSavings    float64  `json:"base_savings" jsonschema:"Base savings percentage before sensitivity scaling"`
	Recommendation string   `json:"recommendation" jsonschema:"What applying the technique means"`
	Citations      int      `json:"citations" jsonschema:"Number of published sources backing the technique"`
}

type techniquesOutput struct {
	Techniques []techniqueOutput `json:"techniques" jsonschema:"Technique catalog in selection-priority order"`
	Count      int               `json:"count" jsonschema:"Number of techniques"`
}

func (s *Server) handleTechniques(ctx context.Context, req *mcp.CallToolRequest, args techniquesInput) (*mcp.CallToolResult, techniquesOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "workflow_techniques")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "workflow_techniques")
		s.metrics.RecordInvocation(ctx, "workflow_techniques", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, techniquesOutput{}, err
	}

	catalog := consulting.Catalog()
	out := techniquesOutput{
		Techniques: make([]techniqueOutput, 0, len(catalog)),
	}
	for _, t := range catalog {
		out.Techniques = append(out.Techniques, techniqueOutput{
			Key:            t.Key,
			Name:           t.Name,
			Triggers:       t.Triggers,
			BaseSavings:    t.BaseSavings,
			Recommendation: t.Recommendation,
			Citations:      len(s.citations.ForTechnique(t.Key)),
		})
	}
	out.Count = len(out.Techniques)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d techniques in the catalog", out.Count)},
		},
	}, out, nil
}

type citationsInput struct {
	Technique string `json:"technique" jsonschema:"required,Technique key, e.g. lean_waste_elimination"`
}

type citationOutput struct {
	Key         string   `json:"key" jsonschema:"Source key"`
	Title       string   `json:"title" jsonschema:"Publication title"`
	Authors     []string `json:"authors" jsonschema:"Authors"`
	Year        int      `json:"year" jsonschema:"Publication year"`
	Publication string   `json:"publication" jsonschema:"Journal or publisher"`
	Finding     string   `json:"finding" jsonschema:"Relevant finding"`
}

type citationsOutput struct {
	Technique string           `json:"technique" jsonschema:"Technique key queried"`
	Citations []citationOutput `json:"citations" jsonschema:"Sources backing the technique, in registry order"`
	Count     int              `json:"count" jsonschema:"Number of sources"`
}

func (s *Server) handleCitations(ctx context.Context, req *mcp.CallToolRequest, args citationsInput) (*mcp.CallToolResult, citationsOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "workflow_citations")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "workflow_citations")
		s.metrics.RecordInvocation(ctx, "workflow_citations", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, citationsOutput{}, err
	}
	if strings.TrimSpace(args.Technique) == "" {
		toolErr = fmt.Errorf("technique is required")
		return nil, citationsOutput{}, toolErr
	}

	found := s.citations.ForTechnique(args.Technique)
	out := citationsOutput{
		Technique: args.Technique,
		Citations: make([]citationOutput, 0, len(found)),
	}
	for _, c := range found {
		out.Citations = append(out.Citations, citationOutput{
			Key:         c.Key,
			Title:       c.Title,
			Authors:     c.Authors,
			Year:        c.Year,
			Publication: c.Publication,
			Finding:     c.Finding,
		})
	}
	out.Count = len(out.Citations)

	text := fmt.Sprintf("%d sources for technique %q", out.Count, args.Technique)
	if out.Count == 0 {
		text = fmt.Sprintf("No published sources recorded for technique %q", args.Technique)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, out, nil
}

// ===== PIPELINE TOOLS =====

type statsInput struct{}

type statsOutput struct {
	Requests      uint64  `json:"requests" jsonschema:"Completed runs, successful or not"`
	Failures      uint64  `json:"failures" jsonschema:"Runs that returned a pipeline error"`
	DegradedRuns  uint64  `json:"degraded_runs" jsonschema:"Runs that needed at least one fallback substitution"`
	AvgDurationMS float64 `json:"avg_duration_ms" jsonschema:"Mean run latency in milliseconds"`
}

func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, args statsInput) (*mcp.CallToolResult, statsOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, "pipeline_stats")
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, "pipeline_stats")
		s.metrics.RecordInvocation(ctx, "pipeline_stats", time.Since(start), toolErr)
	}()

	if err := s.checkLimit(); err != nil {
		toolErr = err
		return nil, statsOutput{}, err
	}

	snap := s.runner.Stats()
	out := statsOutput{
		Requests:      snap.Requests,
		Failures:      snap.Failures,
		DegradedRuns:  snap.DegradedRuns,
		AvgDurationMS: snap.AvgDurationMS,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d runs, %d failures, %d degraded, avg %.1fms",
				out.Requests, out.Failures, out.DegradedRuns, out.AvgDurationMS)},
		},
	}, out, nil
}
