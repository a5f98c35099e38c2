// Package policy holds the composer's policy surface (spec.md §6.2): the
// per-section caps, overflow-ladder thresholds, and injection rules that
// shape a build. A PolicyRegistry is process-wide and immutable after
// construction, replaceable only atomically between builds, the way the
// teacher's pkg/config.Config is read-only after Initialize.
package policy

import "time"

// Policy is the full set of recognized options, each carrying its spec.md
// §6.2 default when constructed via Default().
type Policy struct {
	ID string `yaml:"id" json:"id"`

	MaxFacts                  int `yaml:"max_facts" json:"max_facts"`
	MaxEpisodes               int `yaml:"max_episodes" json:"max_episodes"`
	MaxProceduresPerTaskType  int `yaml:"max_procedures_per_task_type" json:"max_procedures_per_task_type"`
	MaxInsights               int `yaml:"max_insights" json:"max_insights"`
	MaxTotalCandidates        int `yaml:"max_total_candidates" json:"max_total_candidates"`

	EpisodeTimeWindowDays int     `yaml:"episode_time_window_days" json:"episode_time_window_days"`
	RecencyTauDays        float64 `yaml:"recency_tau_days" json:"recency_tau_days"`
	ConfidenceFloor       float64 `yaml:"confidence_floor" json:"confidence_floor"`
	ActiveFactsCeiling    int     `yaml:"active_facts_ceiling" json:"active_facts_ceiling"`

	AllowInsightInResponder bool `yaml:"allow_insight_in_responder" json:"allow_insight_in_responder"`

	DeadlineMS int `yaml:"deadline_ms" json:"deadline_ms"`

	MaxTokens  uint32            `yaml:"max_tokens" json:"max_tokens"`
	PerSection map[string]uint32 `yaml:"per_section" json:"per_section"`
}

// Default returns the zero-override policy with every spec.md §6.2/§4.3
// default populated.
func Default() *Policy {
	return &Policy{
		ID:                       "default",
		MaxFacts:                 30,
		MaxEpisodes:              20,
		MaxProceduresPerTaskType: 5,
		MaxInsights:              10,
		MaxTotalCandidates:       100,
		EpisodeTimeWindowDays:    90,
		RecencyTauDays:           14,
		ConfidenceFloor:          0.2,
		ActiveFactsCeiling:       0, // 0 disables the warning
		AllowInsightInResponder:  false,
		DeadlineMS:               150,
		MaxTokens:                4000,
		PerSection: map[string]uint32{
			"working_state": 800,
			"short_term":    1200,
			"facts":         1200,
			"episodes":      1200,
			"procedures":    600,
			"insights":      600,
		},
	}
}

// Deadline returns DeadlineMS as a time.Duration.
func (p *Policy) Deadline() time.Duration {
	return time.Duration(p.DeadlineMS) * time.Millisecond
}

// MaxPerSection returns the configured per-section cap for the named
// memory type section header used throughout §4.2/§4.3 ("facts",
// "episodes", "procedures", "insights").
func (p *Policy) MaxPerSection(section string) int {
	switch section {
	case "facts":
		return p.MaxFacts
	case "episodes":
		return p.MaxEpisodes
	case "procedures":
		return p.MaxProceduresPerTaskType
	case "insights":
		return p.MaxInsights
	default:
		return 0
	}
}

// Clone deep-copies a Policy so callers may mutate the copy (e.g. via
// Merge) without affecting the registry's live policy.
func (p *Policy) Clone() *Policy {
	cp := *p
	if p.PerSection != nil {
		cp.PerSection = make(map[string]uint32, len(p.PerSection))
		for k, v := range p.PerSection {
			cp.PerSection[k] = v
		}
	}
	return &cp
}
