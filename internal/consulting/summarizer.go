package consulting

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/citations"
)

// maxSummaryTechniques bounds how many techniques one summary can cover
// before the prose stops being useful to a reader.
const maxSummaryTechniques = 8

// Recommendation is one ranked action in a summary.
type Recommendation struct {
	Rank      int    `json:"rank"`
	Technique string `json:"technique"`
	Action    string `json:"action"`
	Impact    string `json:"impact"`
}

// Summary is the stage output: executive prose, ranked recommendations, and
// the evidence behind them.
type Summary struct {
	ExecutiveSummary string               `json:"executive_summary"`
	Recommendations  []Recommendation     `json:"recommendations"`
	Evidence         []citations.Citation `json:"evidence"`
}

// Summarizer condenses an analysis into caller-facing prose.
type Summarizer struct {
	logger *zap.Logger
}

// NewSummarizer creates a summarizer. A nil logger defaults to a no-op logger.
func NewSummarizer(logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{logger: logger}
}

// Summarize builds the executive summary for the given analysis and selected
// technique keys. It fails when asked to cover more techniques than a summary
// can carry; the caller surfaces that as an instruction to retry with fewer.
func (s *Summarizer) Summarize(_ context.Context, analysis *Analysis, techniques []string) (*Summary, error) {
	if analysis == nil {
		return nil, fmt.Errorf("analysis is required")
	}
	if len(techniques) == 0 {
		return nil, fmt.Errorf("no techniques to summarize")
	}
	if len(techniques) > maxSummaryTechniques {
		return nil, fmt.Errorf("cannot summarize %d techniques (limit %d)", len(techniques), maxSummaryTechniques)
	}

	names := make([]string, 0, len(techniques))
	recs := make([]Recommendation, 0, len(techniques))
	for i, key := range techniques {
		name := key
		action := fmt.Sprintf("apply %s", strings.ReplaceAll(key, "_", " "))
		if t, ok := TechniqueByKey(key); ok {
			name = t.Name
			action = t.Recommendation
		}
		names = append(names, name)
		recs = append(recs, Recommendation{
			Rank:      i + 1,
			Technique: key,
			Action:    action,
			Impact:    impactForRank(i + 1),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The assessment identified %s as the applicable improvement %s, led by %s.",
		countPhrase(len(names)), pluralize("technique", len(names)), names[0])
	if analysis.EstimatedSavingsPercent > 0 {
		fmt.Fprintf(&b, " Applied together they project an efficiency improvement of %.1f%%.",
			analysis.EstimatedSavingsPercent)
	} else {
		b.WriteString(" The projected efficiency improvement is conservative pending baseline measurement.")
	}
	if len(analysis.KeyFindings) > 0 {
		fmt.Fprintf(&b, " Principal finding: %s.", strings.TrimSuffix(analysis.KeyFindings[0], "."))
	}

	summary := &Summary{
		ExecutiveSummary: b.String(),
		Recommendations:  recs,
		Evidence:         analysis.Citations,
	}

	s.logger.Debug("summary built",
		zap.Int("recommendations", len(summary.Recommendations)),
		zap.Int("evidence", len(summary.Evidence)))

	return summary, nil
}

func impactForRank(rank int) string {
	switch {
	case rank == 1:
		return "high"
	case rank <= 3:
		return "medium"
	default:
		return "supporting"
	}
}

func countPhrase(n int) string {
	words := []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight"}
	if n >= 0 && n < len(words) {
		return words[n]
	}
	return fmt.Sprintf("%d", n)
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
