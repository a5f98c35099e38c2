package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
)

func newTestWriter(t *testing.T) (*Writer, *sqlitestore.Store, model.Scope) {
	t.Helper()
	store, err := sqlitestore.Open(context.Background(), sqlitestore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	scope := model.Scope{TenantID: "tenant-" + uuid.NewString(), UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}
	return New(store), store, scope
}

func TestUpsertFactRejectsEmptyKey(t *testing.T) {
	w, _, scope := newTestWriter(t)
	_, err := w.UpsertFact(context.Background(), model.Fact{FactID: uuid.NewString(), Scope: scope})
	require.Error(t, err)
}

func TestUpsertFactDefaultsStatusAndValidFrom(t *testing.T) {
	w, _, scope := newTestWriter(t)
	got, err := w.UpsertFact(context.Background(), model.Fact{
		FactID: uuid.NewString(), Scope: scope, FactKey: "k", Value: "v", ScopeLevel: model.ScopeLevelUser,
	})
	require.NoError(t, err)
	require.Equal(t, model.FactStatusActive, got.Status)
	require.False(t, got.Validity.ValidFrom.IsZero())
}

func TestReplaceEpisodeRejectsDecompression(t *testing.T) {
	w, _, scope := newTestWriter(t)
	ctx := context.Background()
	id := uuid.NewString()

	coarse := model.Episode{EpisodeID: id, Scope: scope, CompressionLevel: model.CompressionMilestone, TimeRange: model.TimeRange{Start: time.Now()}}
	require.NoError(t, w.backend.PutEpisode(ctx, coarse))

	err := w.ReplaceEpisode(ctx, coarse, model.Episode{EpisodeID: id, Scope: scope, CompressionLevel: model.CompressionRaw})
	require.Error(t, err)
}

func TestReplaceEpisodeRequiresSameID(t *testing.T) {
	w, _, scope := newTestWriter(t)
	previous := model.Episode{EpisodeID: uuid.NewString(), Scope: scope, CompressionLevel: model.CompressionRaw}
	err := w.ReplaceEpisode(context.Background(), previous, model.Episode{EpisodeID: uuid.NewString(), Scope: scope, CompressionLevel: model.CompressionMilestone})
	require.Error(t, err)
}

func TestRecordInsightDefaultsExpiry(t *testing.T) {
	w, store, scope := newTestWriter(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, w.RecordInsight(ctx, model.Insight{
		ID: id, Scope: scope, Type: model.InsightHypothesis, Statement: "x", Trigger: model.TriggerSynthesis, Confidence: 0.5,
	}))

	got, err := store.ListInsights(ctx, scope, model.InsightFilter{Now: time.Now(), Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, model.RunEndSentinel, got[0].ExpiresAt)
}

func TestReaperSweepsExpiredInsights(t *testing.T) {
	w, store, scope := newTestWriter(t)
	ctx := context.Background()

	require.NoError(t, store.PutInsight(ctx, model.Insight{
		ID: uuid.NewString(), Scope: scope, Type: model.InsightPattern, Statement: "stale",
		Trigger: model.TriggerSynthesis, Confidence: 0.4, ValidationState: model.ValidationUnvalidated,
		ExpiresAt: time.Now().Add(-time.Hour).Format(time.RFC3339),
	}))

	reaper := NewReaper(store, func(context.Context) ([]model.Scope, error) {
		return []model.Scope{scope}, nil
	}, 10*time.Millisecond)

	reaper.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	reaper.Stop()

	remaining, err := store.ListInsights(ctx, scope, model.InsightFilter{Now: time.Now(), Limit: 10})
	require.NoError(t, err)
	require.Empty(t, remaining)
}
