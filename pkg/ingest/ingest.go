// Package ingest is the write path: thin validating wrappers over
// storage.Backend for the online event/working-state writers, plus the
// offline consolidation helpers (fact upsert, episode compaction, insight
// recording) that turn a run's raw events into durable memory.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage"
)

// Writer wraps a storage.Backend with the write-path invariants spec.md §5
// assigns to the consolidation/ingest layer rather than to storage itself.
type Writer struct {
	backend storage.Backend
}

// New constructs a Writer over backend.
func New(backend storage.Backend) *Writer {
	return &Writer{backend: backend}
}

// AppendEvent stores one immutable audit record.
func (w *Writer) AppendEvent(ctx context.Context, event model.Event) error {
	if event.EventID == "" {
		return engramerr.NewStorageError(engramerr.ErrQuery, "events", fmt.Errorf("event_id is required"))
	}
	return w.backend.AppendEvent(ctx, event)
}

// PatchWorkingState applies a partial update under optimistic concurrency.
func (w *Writer) PatchWorkingState(ctx context.Context, scope model.Scope, patch model.WorkingStatePatch, expectedVersion int64) (*model.WorkingState, error) {
	return w.backend.PatchWorkingState(ctx, scope, patch, expectedVersion)
}

// UpsertFact stores a new active fact, letting the backend's transaction
// demote whatever fact previously held (ScopeLevel, FactKey) active.
func (w *Writer) UpsertFact(ctx context.Context, fact model.Fact) (*model.Fact, error) {
	if fact.FactKey == "" {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", fmt.Errorf("fact_key is required"))
	}
	if fact.Status == "" {
		fact.Status = model.FactStatusActive
	}
	if fact.Validity.ValidFrom.IsZero() {
		fact.Validity.ValidFrom = time.Now().UTC()
	}
	return w.backend.UpsertFact(ctx, fact)
}

// ReplaceEpisode implements the compaction replace-or-supersede rule
// (spec.md §5): a coarser re-summarization of the same event range
// supersedes its finer-grained predecessor rather than appending a
// duplicate, by writing under the same EpisodeID with a coarser
// CompressionLevel.
func (w *Writer) ReplaceEpisode(ctx context.Context, previous model.Episode, coarsened model.Episode) error {
	if coarsened.EpisodeID == "" {
		coarsened.EpisodeID = previous.EpisodeID
	}
	if coarsened.EpisodeID != previous.EpisodeID {
		return engramerr.NewStorageError(engramerr.ErrQuery, "episodes",
			fmt.Errorf("compaction must replace in place: got episode_id %q, want %q", coarsened.EpisodeID, previous.EpisodeID))
	}
	if !coarsened.CompressionLevel.Coarser(previous.CompressionLevel) {
		return engramerr.NewStorageError(engramerr.ErrQuery, "episodes",
			fmt.Errorf("compaction must not decompress %q below %q", coarsened.CompressionLevel, previous.CompressionLevel))
	}
	return w.backend.PutEpisode(ctx, coarsened)
}

// RecordInsight stores a newly synthesized insight.
func (w *Writer) RecordInsight(ctx context.Context, insight model.Insight) error {
	if insight.ID == "" {
		return engramerr.NewStorageError(engramerr.ErrQuery, "insights", fmt.Errorf("id is required"))
	}
	if insight.ExpiresAt == "" {
		insight.ExpiresAt = model.RunEndSentinel
	}
	return w.backend.PutInsight(ctx, insight)
}

// PutProcedure stores or updates a stored how-to.
func (w *Writer) PutProcedure(ctx context.Context, procedure model.Procedure) error {
	return w.backend.PutProcedure(ctx, procedure)
}

// Tombstone records a hard-delete governance event.
func (w *Writer) Tombstone(ctx context.Context, tomb model.Tombstone) error {
	return w.backend.Tombstone(ctx, tomb)
}
