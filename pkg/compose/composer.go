// Package compose implements the Context Composer: the deterministic
// read path that turns a BuildRequest into a MemoryPacket (spec.md §4).
// Build fans candidate loading out across goroutines (pkg/compose/loader),
// truncates each section to its policy cap (pkg/compose/scorer), then
// reconciles the whole packet against the global token budget
// (pkg/compose/budget) before stamping an explain trace.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/pkg/compose/budget"
	"github.com/engramhq/engram/pkg/compose/loader"
	"github.com/engramhq/engram/pkg/compose/scorer"
	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage"
)

// Composer is the process-wide build entry point. It holds no per-build
// state beyond the in-flight cancellation registry; every dependency it
// needs (the backend, the policy registry) is supplied by the caller or
// read from the registry at Build time, so a Composer is safe for
// concurrent use the same way the teacher's WorkerPool is.
type Composer struct {
	backend  storage.Backend
	policies *policy.Registry

	mu       sync.RWMutex
	inFlight map[string]context.CancelFunc
}

// New constructs a Composer over backend, reading policies from policies.
func New(backend storage.Backend, policies *policy.Registry) *Composer {
	return &Composer{
		backend:  backend,
		policies: policies,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// CancelBuild cancels an in-flight build by its build ID, the way
// WorkerPool.CancelSession reaches into the active-session registry.
// Reports whether a matching build was found on this Composer.
func (c *Composer) CancelBuild(buildID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cancel, ok := c.inFlight[buildID]
	if ok {
		cancel()
	}
	return ok
}

// Build runs one deterministic composition. A storage error in any loader
// other than working state degrades that section (recorded in
// explain.omitted) rather than aborting the whole build, and an unresolvable
// overflow is reported as an overflow_unresolvable degradation on the
// returned packet; only a policy validation error, a deadline overrun, or a
// working-state storage error other than NotFound return a non-nil error.
func (c *Composer) Build(ctx context.Context, req model.BuildRequest) (*model.MemoryPacket, error) {
	pol, err := c.resolvePolicy(req)
	if err != nil {
		return nil, err
	}

	deadline := pol.Deadline()
	if req.Deadline > 0 {
		deadline = req.Deadline
	}
	buildCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		buildCtx, cancel = context.WithTimeout(ctx, deadline)
	} else {
		buildCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	buildID := uuid.NewString()
	c.mu.Lock()
	c.inFlight[buildID] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, buildID)
		c.mu.Unlock()
	}()

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	candidates, err := loader.Load(buildCtx, c.backend, req, pol, now)
	if err != nil {
		// loader.Load only returns a non-nil error for the one section that
		// cannot degrade silently (working state on a non-NotFound storage
		// failure); every other loader's failure is captured in
		// Candidates.Failures instead. err already arrives as a properly
		// typed *engramerr.StorageError, so it is returned as-is.
		return nil, err
	}
	if buildCtx.Err() != nil {
		return nil, engramerr.NewBuildError(engramerr.ErrDeadline, buildCtx.Err())
	}

	packet, err := assemble(buildID, req, pol, candidates, now)
	if err != nil {
		return nil, err
	}

	if err := c.backend.RecordBuild(ctx, model.BuildRecord{
		BuildID: buildID, Scope: req.Scope, GeneratedAt: packet.Meta.GeneratedAt,
		BudgetReport: packet.BudgetReport, Explain: packet.Explain,
	}); err != nil {
		slog.Warn("failed to record build for replay", "build_id", buildID, "error", err)
	}

	return packet, nil
}

func (c *Composer) resolvePolicy(req model.BuildRequest) (*policy.Policy, error) {
	base := c.policies.GetDefault()
	if req.PolicyOverrides == nil {
		base = base.Clone()
	} else {
		merged, err := policy.Merge(base, req.PolicyOverrides)
		if err != nil {
			return nil, err
		}
		base = merged
	}
	if req.Budget != nil {
		if req.Budget.MaxTokens > 0 {
			base.MaxTokens = req.Budget.MaxTokens
		}
		for section, n := range req.Budget.PerSection {
			if base.PerSection == nil {
				base.PerSection = map[string]uint32{}
			}
			base.PerSection[section] = n
		}
	}
	return base, policy.Validate(base)
}

func assemble(buildID string, req model.BuildRequest, pol *policy.Policy, c *loader.Candidates, now time.Time) (*model.MemoryPacket, error) {
	scorer.SortFacts(c.Facts)
	scorer.SortEpisodes(c.Episodes)
	scorer.SortInsights(c.Insights)

	facts, factsRes := scorer.TrimFacts(c.Facts, pol, pol.PerSection["facts"])
	episodes, episodesRes := scorer.TrimEpisodes(c.Episodes, pol, pol.PerSection["episodes"])
	procedures, proceduresRes := scorer.TrimProcedures(c.Procedures, pol, pol.PerSection["procedures"])
	insights, insightsRes := scorer.TrimInsights(c.Insights, pol, pol.PerSection["insights"])

	var degradations []model.Degradation
	var omissions []model.Omission
	for _, r := range []scorer.Result{factsRes, episodesRes, proceduresRes, insightsRes} {
		degradations = append(degradations, r.Degradations...)
		omissions = append(omissions, r.Omissions...)
	}
	for section, err := range c.Failures {
		omissions = append(omissions, model.Omission{Item: section, Reason: err.Error()})
	}

	sections := &budget.Sections{
		RollingSummary: c.STMSummary.RollingSummary,
		Episodes:       episodes,
		Insights:       insights,
		Procedures:     procedures,
		Facts:          facts,
		WorkingState:   *c.WorkingState,
	}
	report, err := budget.Apply(sections, pol)
	if err != nil {
		return nil, err
	}
	degradations = append(degradations, report.Degradations...)
	omissions = append(omissions, report.Omissions...)

	allowResponderInsight := req.Purpose != model.PurposeResponder || pol.AllowInsightInResponder
	insightBlock := model.InsightBlock{UsagePolicy: model.InsightUsagePolicy{AllowInResponder: pol.AllowInsightInResponder}}
	if allowResponderInsight {
		for _, in := range sections.Insights {
			switch in.Type {
			case model.InsightHypothesis:
				insightBlock.Hypotheses = append(insightBlock.Hypotheses, in)
			case model.InsightStrategy:
				insightBlock.StrategySketches = append(insightBlock.StrategySketches, in)
			case model.InsightPattern:
				insightBlock.Patterns = append(insightBlock.Patterns, in)
			}
		}
	}

	var preferences []model.Fact
	for _, f := range sections.Facts {
		if strings.HasPrefix(f.FactKey, "user.pref.") {
			preferences = append(preferences, f)
		}
	}

	packet := &model.MemoryPacket{
		Meta: model.Meta{
			SchemaVersion: model.SchemaVersion,
			Scope:         req.Scope,
			GeneratedAt:   now,
			Purpose:       req.Purpose,
			TaskType:      req.TaskType,
			Cues:          req.Cues,
			Budget:        model.Budget{MaxTokens: pol.MaxTokens, PerSection: pol.PerSection},
			PolicyID:      pol.ID,
		},
		ShortTerm: model.ShortTerm{
			WorkingState:       sections.WorkingState,
			RollingSummary:     sections.RollingSummary,
			KeyQuotes:          c.STMSummary.KeyQuotes,
			ConversationWindow: conversationWindow(req, c.Conversation),
			OpenLoops:          c.STMSummary.OpenLoops,
			LastToolEvidence:   c.STMSummary.LastToolEvidence,
		},
		LongTerm: model.LongTerm{
			Facts:       sections.Facts,
			Preferences: preferences,
			Procedures:  sections.Procedures,
			Episodes:    sections.Episodes,
		},
		Insight:   insightBlock,
		Citations: citations(sections, c),
		BudgetReport: model.BudgetReport{
			MaxTokens:     pol.MaxTokens,
			UsedTokensEst: report.UsedTokensEst,
			SectionUsage:  report.SectionUsage,
			Degradations:  degradations,
			Omissions:     omissions,
		},
		Explain: model.Explain{
			Selected:  selectedIDs(sections),
			Omitted:   omissions,
			Filters:   explainFilters(req, pol),
			Conflicts: c.Conflicts,
			Determinism: model.Determinism{
				PolicyID:   pol.ID,
				SortKeys:   map[string]string{"facts": "confidence_desc,valid_from_desc", "episodes": "recency_desc", "insights": "confidence_desc"},
				TimeWindow: map[string]string{"episodes": fmt.Sprintf("%dd", pol.EpisodeTimeWindowDays)},
				TopK:       map[string]int{"facts": pol.MaxFacts, "episodes": pol.MaxEpisodes, "insights": pol.MaxInsights},
			},
		},
	}
	return packet, nil
}

func conversationWindow(req model.BuildRequest, events []model.Event) []model.Event {
	if req.ConversationWindow <= 0 {
		return nil
	}
	return events
}

func explainFilters(req model.BuildRequest, pol *policy.Policy) map[string]string {
	filters := map[string]string{
		"purpose": string(req.Purpose),
	}
	if req.TaskType != "" {
		filters["task_type"] = req.TaskType
	}
	return filters
}

func selectedIDs(s *budget.Sections) []string {
	var ids []string
	for _, f := range s.Facts {
		ids = append(ids, "fact:"+f.FactID)
	}
	for _, e := range s.Episodes {
		ids = append(ids, "episode:"+e.EpisodeID)
	}
	for _, p := range s.Procedures {
		ids = append(ids, "procedure:"+p.ProcedureID)
	}
	for _, in := range s.Insights {
		ids = append(ids, "insight:"+in.ID)
	}
	sort.Strings(ids)
	return ids
}

func citations(s *budget.Sections, c *loader.Candidates) []model.Citation {
	seen := make(map[string]struct{})
	var out []model.Citation
	add := func(eventID string) {
		if eventID == "" {
			return
		}
		if _, ok := seen[eventID]; ok {
			return
		}
		seen[eventID] = struct{}{}
		out = append(out, model.Citation{ID: eventID, Type: "event"})
	}
	for _, f := range s.Facts {
		for _, src := range f.Sources {
			add(src)
		}
	}
	for _, e := range s.Episodes {
		for _, src := range e.Sources {
			add(src)
		}
	}
	for _, p := range s.Procedures {
		for _, src := range p.Sources {
			add(src)
		}
	}
	for _, in := range s.Insights {
		for _, src := range in.Sources {
			add(src)
		}
	}
	for _, ev := range c.STMSummary.LastToolEvidence {
		add(ev.EventID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
