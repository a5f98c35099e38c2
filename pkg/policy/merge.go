package policy

import (
	"encoding/json"
	"fmt"

	"github.com/engramhq/engram/pkg/engramerr"
)

// Merge overlays overrides (typically a BuildRequest's PolicyOverrides map,
// or a YAML fragment) onto a clone of base: every option named in overrides
// replaces base's value, an explicit zero included, and every other option
// keeps base's value. Unknown keys in overrides are rejected with
// ErrUnknownOption rather than silently ignored.
func Merge(base *Policy, overrides map[string]any) (*Policy, error) {
	if len(overrides) == 0 {
		return base.Clone(), nil
	}

	if err := rejectUnknownOptions(overrides); err != nil {
		return nil, err
	}

	// Round-trip overrides through JSON and decode them straight onto the
	// clone: only the named fields are set, and option types are checked.
	raw, err := json.Marshal(overrides)
	if err != nil {
		return nil, engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "", err)
	}

	merged := base.Clone()
	if err := json.Unmarshal(raw, merged); err != nil {
		return nil, engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "", err)
	}
	return merged, Validate(merged)
}

var knownOptions = map[string]bool{
	"id": true, "max_facts": true, "max_episodes": true,
	"max_procedures_per_task_type": true, "max_insights": true,
	"max_total_candidates": true, "episode_time_window_days": true,
	"recency_tau_days": true, "confidence_floor": true,
	"active_facts_ceiling": true, "allow_insight_in_responder": true,
	"deadline_ms": true, "max_tokens": true, "per_section": true,
}

func rejectUnknownOptions(overrides map[string]any) error {
	for k := range overrides {
		if !knownOptions[k] {
			return engramerr.NewPolicyError(engramerr.ErrUnknownOption, k,
				fmt.Errorf("unrecognized policy option %q", k))
		}
	}
	return nil
}

// Validate rejects policies with nonsensical budgets before any I/O is
// issued, per spec.md §7 ("Policy errors fail the build before any I/O").
func Validate(p *Policy) error {
	switch {
	case p.MaxTokens == 0:
		return engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "max_tokens",
			fmt.Errorf("must be greater than zero"))
	case p.MaxTotalCandidates <= 0:
		return engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "max_total_candidates",
			fmt.Errorf("must be greater than zero"))
	case p.ConfidenceFloor < 0 || p.ConfidenceFloor > 1:
		return engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "confidence_floor",
			fmt.Errorf("must be in [0,1]"))
	case p.RecencyTauDays <= 0:
		return engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "recency_tau_days",
			fmt.Errorf("must be greater than zero"))
	case p.DeadlineMS < 0:
		return engramerr.NewPolicyError(engramerr.ErrInvalidBudget, "deadline_ms",
			fmt.Errorf("must be non-negative"))
	}
	return nil
}
