package compose

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
)

// brokenWorkingStateBackend wraps a real store but forces GetWorkingState to
// fail with a non-NotFound error, simulating a dropped connection.
type brokenWorkingStateBackend struct {
	*sqlitestore.Store
}

func (b *brokenWorkingStateBackend) GetWorkingState(ctx context.Context, scope model.Scope) (*model.WorkingState, error) {
	return nil, engramerr.NewStorageError(engramerr.ErrConnection, "working_state", errors.New("connection reset"))
}

func newTestComposer(t *testing.T) (*Composer, *sqlitestore.Store, model.Scope) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	scope := model.Scope{
		TenantID:  "tenant-" + uuid.NewString(),
		UserID:    "user-1",
		AgentID:   "agent-1",
		SessionID: "session-1",
		RunID:     "run-1",
	}
	return New(store, policy.NewRegistry()), store, scope
}

func TestBuildReturnsAllTopLevelKeys(t *testing.T) {
	composer, store, scope := newTestComposer(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateSTMSummary(ctx, scope, model.STMSummary{RollingSummary: "investigating a deploy failure"}))
	_, err := store.UpsertFact(ctx, model.Fact{
		FactID: uuid.NewString(), Scope: scope, FactKey: "user.pref.tone", Value: "concise",
		Status: model.FactStatusActive, ScopeLevel: model.ScopeLevelUser, Confidence: 0.9,
		Validity: model.Validity{ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	packet, err := composer.Build(ctx, model.BuildRequest{Scope: scope, Purpose: model.PurposePlanner})
	require.NoError(t, err)

	require.Equal(t, model.SchemaVersion, packet.Meta.SchemaVersion)
	require.Equal(t, scope, packet.Meta.Scope)
	require.Equal(t, "investigating a deploy failure", packet.ShortTerm.RollingSummary)
	require.Len(t, packet.LongTerm.Facts, 1)
	require.Len(t, packet.LongTerm.Preferences, 1)
	require.Equal(t, "user.pref.tone", packet.LongTerm.Preferences[0].FactKey)
	require.NotNil(t, packet.Explain.Determinism.SortKeys)
}

func TestBuildEmptyScopeReturnsDefaults(t *testing.T) {
	composer, _, scope := newTestComposer(t)

	packet, err := composer.Build(context.Background(), model.BuildRequest{Scope: scope, Purpose: model.PurposeTool})
	require.NoError(t, err)

	require.True(t, packet.ShortTerm.WorkingState.Empty())
	require.Empty(t, packet.LongTerm.Facts)
	require.Empty(t, packet.LongTerm.Episodes)
}

func TestBuildExcludesUnvalidatedInsightsFromResponder(t *testing.T) {
	composer, store, scope := newTestComposer(t)
	ctx := context.Background()

	require.NoError(t, store.PutInsight(ctx, model.Insight{
		ID: uuid.NewString(), Scope: scope, Type: model.InsightHypothesis,
		Statement: "the flag flip caused the regression", Trigger: model.TriggerFailure,
		Confidence: 0.8, ValidationState: model.ValidationUnvalidated, ExpiresAt: model.RunEndSentinel,
	}))

	plannerPacket, err := composer.Build(ctx, model.BuildRequest{Scope: scope, Purpose: model.PurposePlanner})
	require.NoError(t, err)
	require.Len(t, plannerPacket.Insight.Hypotheses, 1)

	responderPacket, err := composer.Build(ctx, model.BuildRequest{Scope: scope, Purpose: model.PurposeResponder})
	require.NoError(t, err)
	require.Empty(t, responderPacket.Insight.Hypotheses)
	require.False(t, responderPacket.Insight.UsagePolicy.AllowInResponder)
}

func TestBuildRejectsUnknownPolicyOption(t *testing.T) {
	composer, _, scope := newTestComposer(t)

	_, err := composer.Build(context.Background(), model.BuildRequest{
		Scope: scope, Purpose: model.PurposePlanner,
		PolicyOverrides: map[string]any{"not_a_real_option": 1},
	})
	require.Error(t, err)
}

func TestBuildDropsFactsByConfidenceUnderTinyBudget(t *testing.T) {
	composer, store, scope := newTestComposer(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.UpsertFact(ctx, model.Fact{
			FactID: uuid.NewString(), Scope: scope, FactKey: uuid.NewString(), Value: "some moderately long value to push token usage up",
			Status: model.FactStatusActive, ScopeLevel: model.ScopeLevelUser, Confidence: 0.1 + float64(i)*0.15,
			Validity: model.Validity{ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		})
		require.NoError(t, err)
	}

	packet, err := composer.Build(ctx, model.BuildRequest{
		Scope: scope, Purpose: model.PurposePlanner,
		Budget: &model.Budget{MaxTokens: 60, PerSection: map[string]uint32{"facts": 40}},
	})
	require.NoError(t, err)

	require.Less(t, len(packet.LongTerm.Facts), 5)
	require.NotEmpty(t, packet.BudgetReport.Degradations)
}

func TestBuildSurfacesNonNotFoundWorkingStateError(t *testing.T) {
	_, store, scope := newTestComposer(t)
	composer := New(&brokenWorkingStateBackend{Store: store}, policy.NewRegistry())

	_, err := composer.Build(context.Background(), model.BuildRequest{Scope: scope, Purpose: model.PurposePlanner})
	require.Error(t, err)
	var storageErr *engramerr.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, engramerr.ErrConnection, storageErr.Kind)
}

func TestBuildRecordsSupersededFactConflict(t *testing.T) {
	composer, store, scope := newTestComposer(t)
	ctx := context.Background()

	priorID := uuid.NewString()
	_, err := store.UpsertFact(ctx, model.Fact{
		FactID: priorID, Scope: scope, FactKey: "user.pref.editor", Value: "vim",
		Status: model.FactStatusActive, ScopeLevel: model.ScopeLevelUser, Confidence: 0.6,
		Validity: model.Validity{ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	_, err = store.UpsertFact(ctx, model.Fact{
		FactID: uuid.NewString(), Scope: scope, FactKey: "user.pref.editor", Value: "vscode",
		Status: model.FactStatusActive, ScopeLevel: model.ScopeLevelUser, Confidence: 0.9,
		Validity: model.Validity{ValidFrom: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	packet, err := composer.Build(ctx, model.BuildRequest{Scope: scope, Purpose: model.PurposeResponder})
	require.NoError(t, err)

	require.Len(t, packet.LongTerm.Facts, 1)
	require.Equal(t, "vscode", packet.LongTerm.Facts[0].Value)
	require.Equal(t, model.FactStatusActive, packet.LongTerm.Facts[0].Status)

	require.Len(t, packet.Explain.Conflicts, 1)
	require.Equal(t, "superseded", packet.Explain.Conflicts[0].Type)
	require.Equal(t, []string{priorID}, packet.Explain.Conflicts[0].FactIDs)
}

func TestCancelBuildReportsUnknownID(t *testing.T) {
	composer, _, _ := newTestComposer(t)
	require.False(t, composer.CancelBuild("nonexistent"))
}
