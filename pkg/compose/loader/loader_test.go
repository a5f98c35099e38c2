package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage/sqlitestore"
)

// failingWorkingStateBackend wraps a real store but forces GetWorkingState
// to fail with a non-NotFound storage error, the way a dropped connection or
// a query timeout would.
type failingWorkingStateBackend struct {
	*sqlitestore.Store
	workingStateErr error
}

func (b *failingWorkingStateBackend) GetWorkingState(ctx context.Context, scope model.Scope) (*model.WorkingState, error) {
	return nil, b.workingStateErr
}

func newTestBackend(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(context.Background(), sqlitestore.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadReturnsEmptyCandidatesForUnknownScope(t *testing.T) {
	backend := newTestBackend(t)
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}
	req := model.BuildRequest{Scope: scope, Purpose: model.PurposePlanner}

	candidates, err := Load(context.Background(), backend, req, policy.Default(), time.Now())
	require.NoError(t, err)
	require.Empty(t, candidates.Facts)
	require.Empty(t, candidates.Episodes)
	require.Len(t, candidates.Failures, 1, "only the NotFound working state is recorded")
}

func TestLoadPicksUpWrittenFacts(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}

	_, err := backend.UpsertFact(ctx, model.Fact{
		FactID: "f1", Scope: scope, FactKey: "k", Value: "v", Status: model.FactStatusActive,
		Validity: model.Validity{ValidFrom: time.Now().Add(-time.Hour)}, ScopeLevel: model.ScopeLevelUser,
	})
	require.NoError(t, err)

	req := model.BuildRequest{Scope: scope, Purpose: model.PurposePlanner}
	candidates, err := Load(ctx, backend, req, policy.Default(), time.Now())
	require.NoError(t, err)
	require.Len(t, candidates.Facts, 1)
	require.Equal(t, "f1", candidates.Facts[0].FactID)
}

func TestLoadIncludesConversationWindowOnlyWhenRequested(t *testing.T) {
	backend := newTestBackend(t)
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}
	require.NoError(t, backend.AppendEvent(context.Background(), model.Event{
		EventID: "ev-1", Scope: scope, Timestamp: time.Now(), Kind: model.EventKindMessage, Payload: []byte(`{}`),
	}))

	without, err := Load(context.Background(), backend, model.BuildRequest{Scope: scope}, policy.Default(), time.Now())
	require.NoError(t, err)
	require.Nil(t, without.Conversation)

	with, err := Load(context.Background(), backend, model.BuildRequest{Scope: scope, ConversationWindow: 5}, policy.Default(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, with.Conversation)
}

func TestLoadDefaultsWorkingStateToEmptyOnNotFound(t *testing.T) {
	backend := newTestBackend(t)
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}

	candidates, err := Load(context.Background(), backend, model.BuildRequest{Scope: scope}, policy.Default(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, candidates.WorkingState)
	require.Contains(t, candidates.Failures, "working_state")
}

func TestLoadEpisodesAppliesAgeTieredCompressionFilter(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := model.Episode{
		EpisodeID: "fresh-raw", Scope: scope, CompressionLevel: model.CompressionRaw,
		TimeRange: model.TimeRange{Start: now.Add(-3 * 24 * time.Hour)},
	}
	staleButUncompacted := model.Episode{
		EpisodeID: "20d-raw", Scope: scope, CompressionLevel: model.CompressionRaw,
		TimeRange: model.TimeRange{Start: now.Add(-20 * 24 * time.Hour)},
	}
	midCompacted := model.Episode{
		EpisodeID: "20d-phase-summary", Scope: scope, CompressionLevel: model.CompressionPhaseSummary,
		TimeRange: model.TimeRange{Start: now.Add(-20 * 24 * time.Hour)},
	}
	tooOld := model.Episode{
		EpisodeID: "120d-raw-no-cue", Scope: scope, CompressionLevel: model.CompressionRaw,
		TimeRange: model.TimeRange{Start: now.Add(-120 * 24 * time.Hour)},
	}
	tooOldButTagged := model.Episode{
		EpisodeID: "120d-tagged", Scope: scope, CompressionLevel: model.CompressionRaw,
		TimeRange: model.TimeRange{Start: now.Add(-120 * 24 * time.Hour)}, Tags: []string{"incident-42"},
	}
	for _, e := range []model.Episode{fresh, staleButUncompacted, midCompacted, tooOld, tooOldButTagged} {
		require.NoError(t, backend.PutEpisode(ctx, e))
	}

	pol := policy.Default()
	pol.EpisodeTimeWindowDays = 365

	req := model.BuildRequest{Scope: scope, Cues: &model.Cues{Tags: []string{"incident-42"}}}
	candidates, err := Load(ctx, backend, req, pol, now)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, e := range candidates.Episodes {
		ids[e.EpisodeID] = true
	}
	require.True(t, ids["fresh-raw"])
	require.False(t, ids["20d-raw"], "a raw episode older than 7 days is not admitted by any tier")
	require.True(t, ids["20d-phase-summary"])
	require.True(t, ids["120d-tagged"], "a >90d episode matching a cue must still be included")
	require.False(t, ids["120d-raw-no-cue"], "a >90d episode with no matching cue must be excluded")
}

func TestLoadSurfacesNonNotFoundWorkingStateError(t *testing.T) {
	scope := model.Scope{TenantID: "t1", UserID: "u1", AgentID: "a1", SessionID: "s1", RunID: "r1"}
	backend := &failingWorkingStateBackend{
		Store:           newTestBackend(t),
		workingStateErr: engramerr.NewStorageError(engramerr.ErrConnection, "working_state", errors.New("connection reset")),
	}

	_, err := Load(context.Background(), backend, model.BuildRequest{Scope: scope}, policy.Default(), time.Now())
	require.Error(t, err)
	var storageErr *engramerr.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, engramerr.ErrConnection, storageErr.Kind)
}
