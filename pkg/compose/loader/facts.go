package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage"
)

// loadFacts reads active facts for the scope, capped at
// policy.MaxTotalCandidates so a single loader can never starve the
// others' share of the per-build candidate budget. It also looks up, per
// active fact, any deprecated row sharing its (scope_level, fact_key) so the
// composer can surface the supersession as an explain.conflicts entry
// (spec.md §8 scenario S2).
func loadFacts(ctx context.Context, backend storage.Backend, req model.BuildRequest, pol *policy.Policy, now time.Time) ([]model.Fact, []model.Conflict, error) {
	limit := pol.MaxFacts
	if limit <= 0 || limit > pol.MaxTotalCandidates {
		limit = pol.MaxTotalCandidates
	}
	active, err := backend.ListFacts(ctx, req.Scope, model.FactFilter{
		StatusIn: []model.FactStatus{model.FactStatusActive},
		Now:      now,
		Limit:    limit,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(active) == 0 {
		return active, nil, nil
	}

	conflicts, err := supersededConflicts(ctx, backend, req, pol, now, active)
	if err != nil {
		// The conflict trace is informational, not load-bearing: a failure
		// looking up deprecated rows degrades to "no conflicts reported"
		// rather than failing the whole facts loader.
		return active, nil, nil
	}
	return active, conflicts, nil
}

// supersededConflicts looks up deprecated facts sharing an active fact's
// (scope_level, fact_key) and reports one Conflict per active fact that has
// at least one.
func supersededConflicts(ctx context.Context, backend storage.Backend, req model.BuildRequest, pol *policy.Policy, now time.Time, active []model.Fact) ([]model.Conflict, error) {
	deprecated, err := backend.ListFacts(ctx, req.Scope, model.FactFilter{
		StatusIn: []model.FactStatus{model.FactStatusDeprecated},
		Now:      now,
		Limit:    pol.MaxTotalCandidates,
	})
	if err != nil {
		return nil, err
	}

	priorByKey := map[string][]string{}
	for _, f := range deprecated {
		priorByKey[string(f.ScopeLevel)+"\x00"+f.FactKey] = append(priorByKey[string(f.ScopeLevel)+"\x00"+f.FactKey], f.FactID)
	}

	var conflicts []model.Conflict
	for _, f := range active {
		prior, ok := priorByKey[string(f.ScopeLevel)+"\x00"+f.FactKey]
		if !ok {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Type:    "superseded",
			Detail:  fmt.Sprintf("fact_key %q superseded prior value(s)", f.FactKey),
			FactIDs: prior,
		})
	}
	return conflicts, nil
}
