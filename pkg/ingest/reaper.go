package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage"
)

// ScopeLister supplies the set of scopes the Reaper should sweep on each
// tick. cmd/engramd wires this to whatever tracks active sessions/runs;
// it is intentionally decoupled from storage.Backend since no backend
// operation here enumerates scopes (a Scope is an isolation key, not a
// listable entity, per spec.md §3).
type ScopeLister func(ctx context.Context) ([]model.Scope, error)

// Reaper periodically calls ReapExpiredInsights for every scope ScopeLister
// returns, mirroring the teacher's cleanup.Service ticker loop: run once
// immediately, then on a fixed interval, until Stop.
type Reaper struct {
	backend  storage.Backend
	scopes   ScopeLister
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper constructs a Reaper over backend, sweeping the scopes scopes
// returns every interval.
func NewReaper(backend storage.Backend, scopes ScopeLister, interval time.Duration) *Reaper {
	return &Reaper{backend: backend, scopes: scopes, interval: interval}
}

// Start launches the background reap loop. A second call is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)

	slog.Info("insight reaper started", "interval", r.interval)
}

// Stop signals the reap loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("insight reaper stopped")
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	r.reapAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapAll(ctx)
		}
	}
}

func (r *Reaper) reapAll(ctx context.Context) {
	scopes, err := r.scopes(ctx)
	if err != nil {
		slog.Error("reaper: failed to list scopes", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, scope := range scopes {
		count, err := r.backend.ReapExpiredInsights(ctx, scope, now)
		if err != nil {
			slog.Error("reaper: failed to reap insights", "scope", scope.Key(), "error", err)
			continue
		}
		if count > 0 {
			slog.Info("reaper: reaped expired insights", "scope", scope.Key(), "count", count)
		}
	}
}
