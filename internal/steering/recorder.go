package steering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/pipeline"
)

// Runner is the pipeline surface the recorder decorates.
type Runner interface {
	Run(ctx context.Context, rawIntent string, opts *pipeline.Options) *pipeline.Outcome
	Stats() pipeline.StatsSnapshot
}

// RecordingRunner runs the pipeline and writes a steering note after each
// successful run. Note-write failures are logged and never surfaced; the
// run itself already succeeded.
type RecordingRunner struct {
	runner Runner
	store  *Store
	logger *zap.Logger
}

// NewRecordingRunner wraps runner so successful outcomes land in store.
func NewRecordingRunner(runner Runner, store *Store, logger *zap.Logger) (*RecordingRunner, error) {
	if runner == nil {
		return nil, fmt.Errorf("pipeline runner is required")
	}
	if store == nil {
		return nil, fmt.Errorf("steering store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingRunner{runner: runner, store: store, logger: logger}, nil
}

// Run delegates to the wrapped runner, then records a note when the run
// produced an artifact.
func (r *RecordingRunner) Run(ctx context.Context, rawIntent string, opts *pipeline.Options) *pipeline.Outcome {
	out := r.runner.Run(ctx, rawIntent, opts)
	note := NoteForOutcome(out)
	if note == nil {
		return out
	}

	slug, err := r.store.Write(note)
	if err != nil {
		r.logger.Warn("failed to write steering note",
			zap.String("session_id", note.Session),
			zap.Error(err))
		return out
	}
	r.logger.Debug("steering note recorded",
		zap.String("slug", slug),
		zap.String("session_id", note.Session))
	return out
}

// Stats delegates to the wrapped runner.
func (r *RecordingRunner) Stats() pipeline.StatsSnapshot {
	return r.runner.Stats()
}

// NoteForOutcome derives the steering note for a successful run. Returns
// nil for failed runs and outcomes without an artifact. The Generated
// time is left zero so Store.Write stamps it; re-running an objective
// replaces its note under the same slug.
func NoteForOutcome(out *pipeline.Outcome) *Note {
	if out == nil || !out.Success || out.Artifact == nil {
		return nil
	}

	meta := out.Artifact.Metadata
	note := &Note{
		Title: meta.Objective,
		Body:  noteBody(out),
	}
	if rc := out.Context; rc != nil {
		note.Session = rc.SessionID
		note.Stages = stagesFromEntries(rc.Entries)
		note.Degraded = rc.Degraded
	}
	return note
}

// noteBody composes the executive summary paragraph.
func noteBody(out *pipeline.Outcome) string {
	meta := out.Artifact.Metadata

	var b strings.Builder
	fmt.Fprintf(&b, "Optimized %q", meta.Objective)
	if len(meta.Techniques) > 0 {
		fmt.Fprintf(&b, " applying %s", strings.Join(meta.Techniques, ", "))
	}
	fmt.Fprintf(&b, ". The workflow has %d steps after %d optimizations, delivered as %d tasks.",
		meta.StepCount, meta.OptimizationCount, len(out.Artifact.Tasks))

	if eff := out.EfficiencyReport; eff != nil {
		fmt.Fprintf(&b, "\n\nBalanced scenario projects %.1f%% monthly savings (best case %.1f%%), cutting the projected bill from %.2f to %.2f cost units.",
			eff.SavingsPercentage, eff.BestCasePercentage,
			eff.BaselineMonthlyCost, eff.ProjectedMonthlyCost)
	}

	if rc := out.Context; rc != nil && len(rc.Degraded) > 0 {
		fmt.Fprintf(&b, "\n\nDegraded stages: %s. Review before reusing this plan.",
			strings.Join(rc.Degraded, ", "))
	}
	return b.String()
}

// stagesFromEntries returns the distinct stage names in first-attempt
// order.
func stagesFromEntries(entries []pipeline.LogEntry) []string {
	seen := make(map[pipeline.Stage]struct{}, len(entries))
	stages := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Stage]; ok {
			continue
		}
		seen[e.Stage] = struct{}{}
		stages = append(stages, string(e.Stage))
	}
	return stages
}
