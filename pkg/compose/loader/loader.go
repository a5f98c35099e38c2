// Package loader implements the composer's candidate-loading stage
// (spec.md §4.2): one loader per memory type, each deriving its own filter
// from the BuildRequest and policy, run concurrently and isolated from each
// other's failures.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage"
)

// Candidates is every memory type's raw (unscored, untrimmed) read, plus
// per-loader failure notes for sections the composer must now mark omitted
// rather than fail the whole build over.
type Candidates struct {
	WorkingState *model.WorkingState
	STMSummary   *model.STMSummary
	Facts        []model.Fact
	Conflicts    []model.Conflict
	Episodes     []model.Episode
	Procedures   []model.Procedure
	Insights     []model.Insight
	Conversation []model.Event

	Failures   map[string]error
	failuresMu sync.Mutex
}

// Load runs every applicable loader concurrently via errgroup, bounded by
// req's effective deadline, the way pkg/queue.Pool fans work out across a
// bounded worker set in the teacher project. A single loader's failure is
// recorded in Candidates.Failures and surfaces later as an
// explain.omitted entry (spec.md §4.2, "loader failure isolation"); the one
// exception is a working-state storage error other than NotFound, which
// Load returns and which fails the whole build.
func Load(ctx context.Context, backend storage.Backend, req model.BuildRequest, pol *policy.Policy, now time.Time) (*Candidates, error) {
	c := &Candidates{Failures: map[string]error{}}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ws, err := backend.GetWorkingState(gctx, req.Scope)
		if err != nil {
			if errors.Is(err, engramerr.ErrNotFound) {
				c.recordFailure("working_state", err)
				empty := model.WorkingState{}
				c.WorkingState = &empty
				return nil
			}
			// Any other storage failure on working state surfaces to the
			// caller rather than being swallowed into an omission (spec.md
			// §4.5, §7: working state is the one section a build cannot
			// silently proceed without). A typed storage error keeps its kind.
			var storageErr *engramerr.StorageError
			if errors.As(err, &storageErr) {
				return err
			}
			return engramerr.NewStorageError(engramerr.ErrQuery, "working_state", err)
		}
		c.WorkingState = ws
		return nil
	})

	g.Go(func() error {
		sum, err := backend.GetSTMSummary(gctx, req.Scope)
		if err != nil {
			c.recordFailure("short_term", err)
			c.STMSummary = &model.STMSummary{}
			return nil
		}
		c.STMSummary = sum
		return nil
	})

	g.Go(func() error {
		facts, conflicts, err := loadFacts(gctx, backend, req, pol, now)
		if err != nil {
			c.recordFailure("facts", err)
			return nil
		}
		c.Facts = facts
		c.Conflicts = conflicts
		return nil
	})

	g.Go(func() error {
		episodes, err := loadEpisodes(gctx, backend, req, pol, now)
		if err != nil {
			c.recordFailure("episodes", err)
			return nil
		}
		c.Episodes = episodes
		return nil
	})

	g.Go(func() error {
		procedures, err := loadProcedures(gctx, backend, req, pol)
		if err != nil {
			c.recordFailure("procedures", err)
			return nil
		}
		c.Procedures = procedures
		return nil
	})

	g.Go(func() error {
		insights, err := loadInsights(gctx, backend, req, pol, now)
		if err != nil {
			c.recordFailure("insights", err)
			return nil
		}
		c.Insights = insights
		return nil
	})

	if req.ConversationWindow > 0 {
		g.Go(func() error {
			events, err := backend.ListEvents(gctx, req.Scope, model.EventFilter{Limit: req.ConversationWindow})
			if err != nil {
				c.recordFailure("conversation_window", err)
				return nil
			}
			c.Conversation = events
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Candidates) recordFailure(section string, err error) {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()
	c.Failures[section] = fmt.Errorf("loader %q: %w", section, err)
}
