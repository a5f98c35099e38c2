package model

import "time"

// CompressionLevel names an Episode's fidelity tier. Compaction only ever
// moves an episode toward a coarser tier: raw -> phase_summary -> milestone
// -> theme.
type CompressionLevel string

const (
	CompressionRaw          CompressionLevel = "raw"
	CompressionPhaseSummary CompressionLevel = "phase_summary"
	CompressionMilestone    CompressionLevel = "milestone"
	CompressionTheme        CompressionLevel = "theme"
)

// compressionRank orders tiers from finest to coarsest; Coarser compares by it.
var compressionRank = map[CompressionLevel]int{
	CompressionRaw:          0,
	CompressionPhaseSummary: 1,
	CompressionMilestone:    2,
	CompressionTheme:        3,
}

// Coarser reports whether l is at least as compressed as other.
func (l CompressionLevel) Coarser(other CompressionLevel) bool {
	return compressionRank[l] >= compressionRank[other]
}

// TimeRange bounds the wall-clock span an Episode summarizes. End is nil for
// an episode still accumulating events.
type TimeRange struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// Episode is a session-boundary memory unit. RecencyScore is computed by the
// episodes loader at read time and is never persisted.
type Episode struct {
	EpisodeID        string           `json:"episode_id"`
	Scope            Scope            `json:"scope"`
	TimeRange        TimeRange        `json:"time_range"`
	Summary          string           `json:"summary"`
	Highlights       []string         `json:"highlights,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Entities         []string         `json:"entities,omitempty"`
	Sources          []string         `json:"sources,omitempty"` // event IDs
	CompressionLevel CompressionLevel `json:"compression_level"`
	RecencyScore     float64          `json:"recency_score,omitempty"`
}

// EpisodeFilter narrows list_episodes. Limit is a hard cap enforced by the backend.
type EpisodeFilter struct {
	Since           *time.Time
	Until           *time.Time
	TagsAny         []string
	EntitiesAny     []string
	CompressionIn   []CompressionLevel
	Limit           int
}
