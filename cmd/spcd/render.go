package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Lipgloss styles shared by the rendered reports
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// savingsBadge returns a status badge for a projected savings figure.
func savingsBadge(pct float64) string {
	if pct >= 20 {
		return healthyStyle.Render("[✓]")
	} else if pct >= 5 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// renderOutcome renders a pipeline outcome as a styled terminal report.
func renderOutcome(out *Outcome) string {
	if out == nil {
		return errorStyle.Render("✗ No outcome returned") + "\n"
	}
	if !out.Success || out.Artifact == nil {
		return renderFailure(out)
	}

	var b strings.Builder
	meta := out.Artifact.Metadata

	b.WriteString(titleStyle.Render(fmt.Sprintf("✓ Optimized %q", meta.Objective)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Summary"))
	b.WriteString("\n")
	writeRow(&b, "Techniques", strings.Join(meta.Techniques, ", "))
	writeRow(&b, "Workflow", fmt.Sprintf("%d steps, %d optimizations", meta.StepCount, meta.OptimizationCount))
	writeRow(&b, "Tasks", fmt.Sprintf("%d", len(out.Artifact.Tasks)))
	if eff := out.EfficiencyReport; eff != nil {
		best := dimStyle.Render(fmt.Sprintf("(best case %.1f%%)", eff.BestCasePercentage))
		writeRow(&b, "Savings", fmt.Sprintf("%.1f%% %s %s", eff.SavingsPercentage, savingsBadge(eff.SavingsPercentage), best))
		writeRow(&b, "Monthly cost", fmt.Sprintf("%.2f, down from a %.2f baseline", eff.ProjectedMonthlyCost, eff.BaselineMonthlyCost))
	}

	if len(out.Artifact.Options) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Scenarios"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-15s %-13s %8s %6s", "NAME", "SCENARIO", "SAVINGS", "TASKS")))
		b.WriteString("\n")
		for _, opt := range out.Artifact.Options {
			fmt.Fprintf(&b, "  %-15s %-13s %7.1f%% %6d\n", opt.Name, opt.Scenario, opt.SavingsPercent, opt.TaskCount)
		}
	}

	if len(out.Artifact.Tasks) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Tasks"))
		b.WriteString("\n")
		for _, task := range out.Artifact.Tasks {
			fmt.Fprintf(&b, "  %s %s", labelStyle.Render("["+task.ID+"]"), task.Title)
			if notes := taskNotes(task); notes != "" {
				fmt.Fprintf(&b, " %s", dimStyle.Render("("+notes+")"))
			}
			b.WriteString("\n")
		}
	}

	if out.Context != nil && len(out.Context.Degraded) > 0 {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("⚠ Degraded stages: " + strings.Join(out.Context.Degraded, ", ")))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Fallback results were substituted; review before applying."))
		b.WriteString("\n")
	}

	if rc := out.Context; rc != nil {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Session %s (%dms)", rc.SessionID, rc.DurationMS)))
		b.WriteString("\n")
	}

	return b.String()
}

// renderFailure renders a failed outcome with its taxonomy fields.
func renderFailure(out *Outcome) string {
	var b strings.Builder

	if out.Err == nil {
		b.WriteString(errorStyle.Render("✗ Pipeline failed"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Pipeline failed at %s (%s)", out.Err.Stage, out.Err.Kind)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %s\n", out.Err.Message)
	if out.Err.SuggestedAction != "" {
		b.WriteString("\n")
		writeRow(&b, "Suggested", out.Err.SuggestedAction)
	}
	if out.Context != nil && out.Context.SessionID != "" {
		writeRow(&b, "Session", out.Context.SessionID)
	}
	return b.String()
}

// writeRow writes one aligned label/value line.
func writeRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-13s", label+":")), value)
}

// taskNotes summarizes a task's effort and dependencies.
func taskNotes(task Task) string {
	notes := task.Effort
	if len(task.DependsOn) > 0 {
		if notes != "" {
			notes += ", "
		}
		notes += "after " + strings.Join(task.DependsOn, ", ")
	}
	return notes
}
