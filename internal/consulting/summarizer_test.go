package consulting

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/citations"
)

func sampleAnalysis() *Analysis {
	return &Analysis{
		Techniques: []Assessment{
			{Technique: "lean_waste_elimination", Name: "Lean Waste Elimination", Score: 3},
			{Technique: "theory_of_constraints", Name: "Theory of Constraints", Score: 2},
		},
		EstimatedSavingsPercent: 22.5,
		KeyFindings:             []string{"Lean Waste Elimination applies: intent mentions manual, duplicate"},
		Citations: []citations.Citation{
			{Key: "ohno-1988", Title: "Toyota Production System", Finding: "x"},
		},
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	s := NewSummarizer(nil)
	analysis := sampleAnalysis()

	got, err := s.Summarize(context.Background(), analysis, analysis.TechniqueKeys())
	require.NoError(t, err)

	assert.Contains(t, got.ExecutiveSummary, "Lean Waste Elimination")
	assert.Contains(t, got.ExecutiveSummary, "22.5%")
	assert.Contains(t, got.ExecutiveSummary, "two")

	require.Len(t, got.Recommendations, 2)
	assert.Equal(t, 1, got.Recommendations[0].Rank)
	assert.Equal(t, "lean_waste_elimination", got.Recommendations[0].Technique)
	assert.Equal(t, "high", got.Recommendations[0].Impact)
	assert.Equal(t, "medium", got.Recommendations[1].Impact)
	// Catalog entries contribute their curated action text.
	assert.Contains(t, got.Recommendations[0].Action, "seven wastes")

	assert.Equal(t, analysis.Citations, got.Evidence)
}

func TestSummarizer_Summarize_UnknownTechniqueGetsGenericAction(t *testing.T) {
	s := NewSummarizer(nil)

	got, err := s.Summarize(context.Background(), sampleAnalysis(), []string{"bespoke_method"})
	require.NoError(t, err)
	require.Len(t, got.Recommendations, 1)
	assert.Equal(t, "apply bespoke method", got.Recommendations[0].Action)
}

func TestSummarizer_Summarize_ZeroSavings(t *testing.T) {
	s := NewSummarizer(nil)
	analysis := sampleAnalysis()
	analysis.EstimatedSavingsPercent = 0

	got, err := s.Summarize(context.Background(), analysis, []string{"lean_waste_elimination"})
	require.NoError(t, err)
	assert.Contains(t, got.ExecutiveSummary, "conservative pending baseline measurement")
}

func TestSummarizer_Summarize_Errors(t *testing.T) {
	s := NewSummarizer(nil)

	t.Run("nil analysis", func(t *testing.T) {
		_, err := s.Summarize(context.Background(), nil, []string{"a"})
		require.Error(t, err)
	})

	t.Run("no techniques", func(t *testing.T) {
		_, err := s.Summarize(context.Background(), sampleAnalysis(), nil)
		require.Error(t, err)
	})

	t.Run("too many techniques", func(t *testing.T) {
		keys := make([]string, maxSummaryTechniques+1)
		for i := range keys {
			keys[i] = "t"
		}
		_, err := s.Summarize(context.Background(), sampleAnalysis(), keys)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "limit"))
	})
}

func TestSummarizer_Summarize_Deterministic(t *testing.T) {
	s := NewSummarizer(nil)
	analysis := sampleAnalysis()

	first, err := s.Summarize(context.Background(), analysis, analysis.TechniqueKeys())
	require.NoError(t, err)
	second, err := s.Summarize(context.Background(), analysis, analysis.TechniqueKeys())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
