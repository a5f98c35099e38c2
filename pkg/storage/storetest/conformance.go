// Package storetest is the backend-agnostic conformance suite every
// storage.Backend implementation must pass. sqlitestore and pgstore each
// carry a thin _test.go that calls Run against their own Open, the way the
// teacher's test/util package gives every ent-backed service test a shared
// database harness.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage"
)

// Run exercises every storage.Backend operation against backend, asserting
// the ordering, limit, and invariant properties spec.md §9 requires hold
// identically regardless of which concrete backend is under test.
func Run(t *testing.T, backend storage.Backend) {
	t.Helper()
	t.Run("Events", func(t *testing.T) { testEvents(t, backend) })
	t.Run("WorkingState", func(t *testing.T) { testWorkingState(t, backend) })
	t.Run("STMSummary", func(t *testing.T) { testSTMSummary(t, backend) })
	t.Run("Facts", func(t *testing.T) { testFacts(t, backend) })
	t.Run("Episodes", func(t *testing.T) { testEpisodes(t, backend) })
	t.Run("Procedures", func(t *testing.T) { testProcedures(t, backend) })
	t.Run("Insights", func(t *testing.T) { testInsights(t, backend) })
	t.Run("Tombstones", func(t *testing.T) { testTombstones(t, backend) })
	t.Run("BuildRecords", func(t *testing.T) { testBuildRecords(t, backend) })
}

func newScope() model.Scope {
	return model.Scope{
		TenantID:  "tenant-" + uuid.NewString(),
		UserID:    "user-1",
		AgentID:   "agent-1",
		SessionID: "session-1",
		RunID:     "run-1",
	}
}

func testEvents(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := backend.AppendEvent(ctx, model.Event{
			EventID:   uuid.NewString(),
			Scope:     scope,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Kind:      model.EventKindMessage,
			Payload:   []byte(`{"n":` + string(rune('0'+i)) + `}`),
		})
		require.NoError(t, err)
	}

	events, err := backend.ListEvents(ctx, scope, model.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.True(t, events[0].Timestamp.After(events[1].Timestamp), "most recent first")
	require.True(t, events[1].Timestamp.After(events[2].Timestamp), "most recent first")

	limited, err := backend.ListEvents(ctx, scope, model.EventFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2, "LIMIT is pushed down to the backend")
	require.Equal(t, events[0].EventID, limited[0].EventID, "a pushed-down limit keeps the most recent events")
	require.Equal(t, events[1].EventID, limited[1].EventID)
}

func testWorkingState(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()

	_, err := backend.GetWorkingState(ctx, scope)
	require.Error(t, err)

	goal := "ship the release"
	patched, err := backend.PatchWorkingState(ctx, scope, model.WorkingStatePatch{Goal: &goal}, 0)
	require.NoError(t, err)
	require.Equal(t, goal, patched.Goal)
	require.Equal(t, int64(1), patched.StateVersion)

	_, err = backend.PatchWorkingState(ctx, scope, model.WorkingStatePatch{}, 0)
	require.Error(t, err, "stale expectedVersion must be rejected")

	fetched, err := backend.GetWorkingState(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, goal, fetched.Goal)
}

func testSTMSummary(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()

	empty, err := backend.GetSTMSummary(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, "", empty.RollingSummary)

	err = backend.UpdateSTMSummary(ctx, scope, model.STMSummary{RollingSummary: "did the thing"})
	require.NoError(t, err)

	fetched, err := backend.GetSTMSummary(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, "did the thing", fetched.RollingSummary)
}

func testFacts(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := model.Fact{
		FactID: uuid.NewString(), Scope: scope, FactKey: "user.pref.tone",
		Value: "terse", Status: model.FactStatusActive,
		Validity: model.Validity{ValidFrom: now.Add(-48 * time.Hour)},
		Confidence: 0.9, ScopeLevel: model.ScopeLevelUser,
	}
	_, err := backend.UpsertFact(ctx, first)
	require.NoError(t, err)

	second := first
	second.FactID = uuid.NewString()
	second.Value = "friendly"
	second.Validity.ValidFrom = now.Add(-1 * time.Hour)
	_, err = backend.UpsertFact(ctx, second)
	require.NoError(t, err)

	facts, err := backend.ListFacts(ctx, scope, model.FactFilter{Now: now})
	require.NoError(t, err)

	var active, deprecated int
	for _, f := range facts {
		switch f.Status {
		case model.FactStatusActive:
			active++
			require.Equal(t, second.FactID, f.FactID, "only the most recent upsert stays active")
		case model.FactStatusDeprecated:
			deprecated++
		}
	}
	require.Equal(t, 1, active, "at most one active fact per (scope_level, fact_key)")
	require.Equal(t, 1, deprecated)

	testFactOrdering(t, backend)
}

// testFactOrdering asserts ListFacts ranks (confidence desc, fact_id asc)
// rather than by recency, and that a pushed-down limit keeps the
// highest-confidence rows rather than the most recently asserted ones.
func testFactOrdering(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	low := model.Fact{
		FactID: "a-low-confidence-but-newest", Scope: scope, FactKey: "ordering.low",
		Value: "v", Status: model.FactStatusActive, Confidence: 0.2, ScopeLevel: model.ScopeLevelUser,
		Validity: model.Validity{ValidFrom: now.Add(-1 * time.Hour)}, // most recent
	}
	high := model.Fact{
		FactID: "b-high-confidence-but-oldest", Scope: scope, FactKey: "ordering.high",
		Value: "v", Status: model.FactStatusActive, Confidence: 0.9, ScopeLevel: model.ScopeLevelUser,
		Validity: model.Validity{ValidFrom: now.Add(-48 * time.Hour)}, // oldest
	}
	_, err := backend.UpsertFact(ctx, low)
	require.NoError(t, err)
	_, err = backend.UpsertFact(ctx, high)
	require.NoError(t, err)

	facts, err := backend.ListFacts(ctx, scope, model.FactFilter{KeyPrefix: "ordering.", Now: now})
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.Equal(t, high.FactID, facts[0].FactID, "confidence desc ranks ahead of recency")
	require.Equal(t, low.FactID, facts[1].FactID)

	limited, err := backend.ListFacts(ctx, scope, model.FactFilter{KeyPrefix: "ordering.", Now: now, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, high.FactID, limited[0].FactID, "a pushed-down limit must keep the highest-confidence fact, not the newest")
}

func testEpisodes(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := backend.PutEpisode(ctx, model.Episode{
			EpisodeID:        uuid.NewString(),
			Scope:            scope,
			TimeRange:        model.TimeRange{Start: base.Add(time.Duration(i) * 24 * time.Hour)},
			Summary:          "episode",
			Tags:             []string{"billing"},
			CompressionLevel: model.CompressionRaw,
		})
		require.NoError(t, err)
	}

	episodes, err := backend.ListEpisodes(ctx, scope, model.EpisodeFilter{})
	require.NoError(t, err)
	require.Len(t, episodes, 3)
	require.True(t, episodes[0].TimeRange.Start.After(episodes[1].TimeRange.Start), "most recent first")

	filtered, err := backend.ListEpisodes(ctx, scope, model.EpisodeFilter{TagsAny: []string{"shipping"}})
	require.NoError(t, err)
	require.Empty(t, filtered, "no episode carries the shipping tag")
}

func testProcedures(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()

	err := backend.PutProcedure(ctx, model.Procedure{
		ProcedureID: uuid.NewString(), Scope: scope, TaskType: "refund",
		Content: map[string]any{"steps": []string{"verify", "issue"}}, Priority: 1,
	})
	require.NoError(t, err)
	err = backend.PutProcedure(ctx, model.Procedure{
		ProcedureID: uuid.NewString(), Scope: scope, TaskType: "refund",
		Content: map[string]any{"steps": []string{"escalate"}}, Priority: 5,
	})
	require.NoError(t, err)

	procedures, err := backend.ListProcedures(ctx, scope, model.ProcedureFilter{TaskType: "refund"})
	require.NoError(t, err)
	require.Len(t, procedures, 2)
	require.Equal(t, 5, procedures[0].Priority, "higher priority first")
}

func testInsights(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	err := backend.PutInsight(ctx, model.Insight{
		ID: uuid.NewString(), Scope: scope, Type: model.InsightHypothesis,
		Statement: "customer is price-sensitive", Trigger: model.TriggerSynthesis,
		Confidence: 0.6, ValidationState: model.ValidationUnvalidated,
		ExpiresAt: now.Add(-time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	err = backend.PutInsight(ctx, model.Insight{
		ID: uuid.NewString(), Scope: scope, Type: model.InsightHypothesis,
		Statement: "customer prefers email", Trigger: model.TriggerSynthesis,
		Confidence: 0.8, ValidationState: model.ValidationValidated,
		ExpiresAt: model.RunEndSentinel,
	})
	require.NoError(t, err)

	insights, err := backend.ListInsights(ctx, scope, model.InsightFilter{Now: now})
	require.NoError(t, err)
	require.Len(t, insights, 1, "the expired insight is filtered from reads")
	require.Equal(t, "customer prefers email", insights[0].Statement)

	n, err := backend.ReapExpiredInsights(ctx, scope, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testTombstones(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	err := backend.Tombstone(ctx, model.Tombstone{
		EntityKind: model.EntityFact, EntityID: uuid.NewString(), Scope: scope,
		DeletedAt: time.Now().UTC(), Reason: "gdpr erasure",
	})
	require.NoError(t, err)
}

func testBuildRecords(t *testing.T, backend storage.Backend) {
	ctx := context.Background()
	scope := newScope()
	buildID := uuid.NewString()

	err := backend.RecordBuild(ctx, model.BuildRecord{
		BuildID: buildID, Scope: scope, GeneratedAt: time.Now().UTC(),
		BudgetReport: model.BudgetReport{MaxTokens: 4000, UsedTokensEst: 1200},
		Explain:      model.Explain{Selected: []string{"fact:1"}},
	})
	require.NoError(t, err)

	rec, err := backend.GetBuildRecord(ctx, scope, buildID)
	require.NoError(t, err)
	require.Equal(t, uint32(4000), rec.BudgetReport.MaxTokens)
	require.Equal(t, []string{"fact:1"}, rec.Explain.Selected)
}
