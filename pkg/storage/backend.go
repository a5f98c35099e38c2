// Package storage defines the capability interface every Engram backend
// implements (spec.md §4.1): indexed hard filters and limits pushed down to
// the backend, identical ordering across implementations, and a narrow set
// of write primitives consolidation and the host application use outside
// the composer's read-only path.
//
// Composer code never type-switches on a concrete backend (spec.md §9); it
// depends only on Backend, or on one of the narrower per-entity interfaces
// it embeds, the way pkg/services/*.go each wrap one entity behind a small
// constructor in the teacher project.
package storage

import (
	"context"
	"time"

	"github.com/engramhq/engram/pkg/model"
)

// EventStore appends and lists the immutable evidence substrate.
type EventStore interface {
	AppendEvent(ctx context.Context, event model.Event) error
	ListEvents(ctx context.Context, scope model.Scope, filter model.EventFilter) ([]model.Event, error)
}

// WorkingStateStore reads and patches the single per-run working state.
type WorkingStateStore interface {
	GetWorkingState(ctx context.Context, scope model.Scope) (*model.WorkingState, error)
	PatchWorkingState(ctx context.Context, scope model.Scope, patch model.WorkingStatePatch, expectedVersion int64) (*model.WorkingState, error)
}

// STMStore reads and updates the per-session rolling summary.
type STMStore interface {
	GetSTMSummary(ctx context.Context, scope model.Scope) (*model.STMSummary, error)
	UpdateSTMSummary(ctx context.Context, scope model.Scope, summary model.STMSummary) error
}

// FactStore upserts and lists facts, enforcing the single-active-row
// invariant atomically inside UpsertFact.
type FactStore interface {
	UpsertFact(ctx context.Context, fact model.Fact) (*model.Fact, error)
	ListFacts(ctx context.Context, scope model.Scope, filter model.FactFilter) ([]model.Fact, error)
}

// EpisodeStore appends/lists episodes. Replacement semantics (compaction)
// are a pkg/ingest concern layered on top of these primitives.
type EpisodeStore interface {
	PutEpisode(ctx context.Context, episode model.Episode) error
	ListEpisodes(ctx context.Context, scope model.Scope, filter model.EpisodeFilter) ([]model.Episode, error)
}

// ProcedureStore appends/lists procedures.
type ProcedureStore interface {
	PutProcedure(ctx context.Context, procedure model.Procedure) error
	ListProcedures(ctx context.Context, scope model.Scope, filter model.ProcedureFilter) ([]model.Procedure, error)
}

// InsightStore appends/lists insights and supports explicit reaping.
type InsightStore interface {
	PutInsight(ctx context.Context, insight model.Insight) error
	ListInsights(ctx context.Context, scope model.Scope, filter model.InsightFilter) ([]model.Insight, error)
	ReapExpiredInsights(ctx context.Context, scope model.Scope, now time.Time) (int, error)
}

// TombstoneStore records hard-delete governance actions.
type TombstoneStore interface {
	Tombstone(ctx context.Context, tomb model.Tombstone) error
}

// BuildRecordStore persists every emitted packet's explain + budget report
// for replay (§6.4, context_builds).
type BuildRecordStore interface {
	RecordBuild(ctx context.Context, record model.BuildRecord) error
	GetBuildRecord(ctx context.Context, scope model.Scope, buildID string) (*model.BuildRecord, error)
}

// Backend is the full capability set a storage implementation exposes to
// the composer and to write-path callers (pkg/ingest, the reference HTTP
// surface). All operations are scoped; backends never return rows outside
// the scope they were asked to query.
type Backend interface {
	EventStore
	WorkingStateStore
	STMStore
	FactStore
	EpisodeStore
	ProcedureStore
	InsightStore
	TombstoneStore
	BuildRecordStore

	// Health reports backend connectivity for use by /health endpoints and
	// readiness probes (pkg/database/health.go in the teacher project).
	Health(ctx context.Context) error

	// Close releases pooled connections. Safe to call once at shutdown.
	Close() error
}
