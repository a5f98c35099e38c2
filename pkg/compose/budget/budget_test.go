package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
)

func TestApplyNoopWhenUnderBudget(t *testing.T) {
	pol := policy.Default()
	sections := &Sections{Facts: []model.Fact{{FactID: "1", Value: "small"}}}
	report, err := Apply(sections, pol)
	require.NoError(t, err)
	require.Empty(t, report.Degradations)
}

func TestApplyDropsLowestConfidenceInsightFirst(t *testing.T) {
	pol := policy.Default()
	pol.MaxTokens = 10
	sections := &Sections{
		Insights: []model.Insight{
			{ID: "strong", Confidence: 0.9, Statement: "padding to cost tokens here"},
			{ID: "weak", Confidence: 0.1, Statement: "padding to cost tokens also here"},
		},
	}
	report, err := Apply(sections, pol)
	require.NoError(t, err)
	require.Equal(t, "global_drop_lowest_confidence", report.Degradations[0].Action)
	for _, in := range sections.Insights {
		require.NotEqual(t, "weak", in.ID)
	}
}

func TestApplyDropsOldestEpisodeBeforeFacts(t *testing.T) {
	pol := policy.Default()
	pol.MaxTokens = 10
	now := time.Now()
	sections := &Sections{
		Facts: []model.Fact{{FactID: "keep", Value: "must never be dropped by the global pass"}},
		Episodes: []model.Episode{
			{EpisodeID: "old", TimeRange: model.TimeRange{Start: now.Add(-48 * time.Hour)}, Summary: "old episode padding text"},
			{EpisodeID: "new", TimeRange: model.TimeRange{Start: now}, Summary: "new episode padding text"},
		},
	}
	report, err := Apply(sections, pol)
	require.NoError(t, err)
	require.Len(t, sections.Facts, 1, "facts are never dropped by the global budget pass")
	found := false
	for _, d := range report.Degradations {
		if d.Action == "global_drop_oldest" {
			found = true
		}
	}
	require.True(t, found)
}

func TestApplyReturnsOverflowUnresolvableWhenNothingLeftToDrop(t *testing.T) {
	pol := policy.Default()
	pol.MaxTokens = 1
	sections := &Sections{
		Facts: []model.Fact{{FactID: "1", Value: "this alone already exceeds a one token budget by a wide margin"}},
	}
	report, err := Apply(sections, pol)
	require.NoError(t, err)
	require.Equal(t, "overflow_unresolvable", report.Degradations[len(report.Degradations)-1].Action)
	require.Greater(t, report.UsedTokensEst, uint32(pol.MaxTokens))
	require.Len(t, sections.Facts, 1)
}

func TestApplyTrimsRollingSummaryTailAfterInsightsAndEpisodesExhausted(t *testing.T) {
	pol := policy.Default()
	pol.MaxTokens = 5
	sections := &Sections{
		RollingSummary: "a long rolling summary that keeps going and going and going",
	}
	report, err := Apply(sections, pol)
	require.NoError(t, err)
	require.Less(t, len(sections.RollingSummary), len("a long rolling summary that keeps going and going and going"))
	found := false
	for _, d := range report.Degradations {
		if d.Action == "trim_rolling_summary_tail" {
			found = true
		}
	}
	require.True(t, found)
}
