package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
)

func testPolicy() *policy.Policy {
	p := policy.Default()
	p.MaxFacts = 10
	p.MaxEpisodes = 10
	p.MaxInsights = 10
	p.MaxProceduresPerTaskType = 10
	p.ConfidenceFloor = 0.3
	return p
}

func TestSortFactsOrdersByConfidenceThenRecency(t *testing.T) {
	now := time.Now()
	facts := []model.Fact{
		{FactID: "low", Confidence: 0.2, Validity: model.Validity{ValidFrom: now}},
		{FactID: "high-older", Confidence: 0.9, Validity: model.Validity{ValidFrom: now.Add(-time.Hour)}},
		{FactID: "high-newer", Confidence: 0.9, Validity: model.Validity{ValidFrom: now}},
	}
	SortFacts(facts)
	require.Equal(t, []string{"high-newer", "high-older", "low"}, []string{facts[0].FactID, facts[1].FactID, facts[2].FactID})
}

func TestSortEpisodesOrdersByRecencyScore(t *testing.T) {
	episodes := []model.Episode{
		{EpisodeID: "a", RecencyScore: 0.1},
		{EpisodeID: "b", RecencyScore: 0.8},
	}
	SortEpisodes(episodes)
	require.Equal(t, "b", episodes[0].EpisodeID)
}

func TestTrimFactsReducesTopKBeforeTouchingBudget(t *testing.T) {
	pol := testPolicy()
	pol.MaxFacts = 2
	facts := []model.Fact{
		{FactID: "1", Confidence: 0.9, Value: "v"},
		{FactID: "2", Confidence: 0.8, Value: "v"},
		{FactID: "3", Confidence: 0.7, Value: "v"},
	}
	kept, res := TrimFacts(facts, pol, 10_000)
	require.Len(t, kept, 2)
	require.Equal(t, "reduce_top_k", res.Degradations[0].Action)
}

func TestTrimFactsDropsLowestConfidenceUnderTinyCap(t *testing.T) {
	pol := testPolicy()
	facts := []model.Fact{
		{FactID: "1", Confidence: 0.9, Value: "keep me, a longer value to cost tokens"},
		{FactID: "2", Confidence: 0.8, Value: "drop me, also padded out with text"},
	}
	kept, res := TrimFacts(facts, pol, 30)
	require.LessOrEqual(t, len(kept), 1)
	require.NotEmpty(t, res.Omissions)
}

func TestTrimFactsOmitsSectionWhenEvenOneFactExceedsCap(t *testing.T) {
	pol := testPolicy()
	facts := []model.Fact{{FactID: "1", Confidence: 0.9, Value: "way too long a value to ever fit under one byte"}}
	kept, res := TrimFacts(facts, pol, 1)
	require.Nil(t, kept)
	require.Equal(t, "omit_section", res.Degradations[len(res.Degradations)-1].Action)
}

func TestTrimEpisodesTightensTimeWindowBeforeConfidenceFloor(t *testing.T) {
	pol := testPolicy()
	episodes := make([]model.Episode, 6)
	for i := range episodes {
		episodes[i] = model.Episode{EpisodeID: string(rune('a' + i)), RecencyScore: 0.9, Summary: "padding text to add token weight"}
	}
	kept, res := TrimEpisodes(episodes, pol, 200)
	require.Less(t, len(kept), len(episodes))
	require.Contains(t, actions(res), "tighten_time_window")
}

func TestTrimInsightsDropsBelowConfidenceFloor(t *testing.T) {
	pol := testPolicy()
	insights := []model.Insight{
		{ID: "strong", Confidence: 0.9, Statement: "padded statement text here"},
		{ID: "weak", Confidence: 0.1, Statement: "padded statement text here too"},
	}
	kept, _ := TrimInsights(insights, pol, 40)
	for _, in := range kept {
		require.GreaterOrEqual(t, in.Confidence, pol.ConfidenceFloor)
	}
}

func TestTrimProceduresHasNoConfidenceDimension(t *testing.T) {
	pol := testPolicy()
	procs := []model.Procedure{
		{ProcedureID: "1", Priority: 10},
		{ProcedureID: "2", Priority: 1},
	}
	kept, res := TrimProcedures(procs, pol, 10_000)
	require.Len(t, kept, 2)
	require.Empty(t, res.Degradations)
}

func actions(res Result) []string {
	out := make([]string, len(res.Degradations))
	for i, d := range res.Degradations {
		out[i] = d.Action
	}
	return out
}
