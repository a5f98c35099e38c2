package model

import "time"

// Cues are explicit lookup hints a caller supplies to steer candidate
// retrieval. Tags and Entities admit episodes older than 90 days that match
// them; TimeRange narrows the episode time window; Keywords are not used by
// the reference loaders, and no cue affects insights. The cues are echoed
// in the packet's meta.cues.
type Cues struct {
	Tags      []string   `json:"tags,omitempty"`
	Entities  []string   `json:"entities,omitempty"`
	Keywords  []string   `json:"keywords,omitempty"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
}

// BuildRequest is the sole input to the composer.
type BuildRequest struct {
	Scope    Scope   `json:"scope"`
	Purpose  Purpose `json:"purpose"`
	TaskType string  `json:"task_type,omitempty"`
	Cues     *Cues   `json:"cues,omitempty"`

	// PolicyOverrides, when non-nil, is merged (override semantics) on top of
	// the composer's registered default policy for this build only.
	PolicyOverrides map[string]any `json:"policy,omitempty"`

	// Budget overrides the registered policy's default token budget for this
	// build only. Zero value means "use policy defaults".
	Budget *Budget `json:"budget,omitempty"`

	// Now overrides the instant used for validity/expiry comparisons. Tests
	// inject this to make builds reproducible; production callers leave it
	// zero and the composer uses time.Now().
	Now time.Time `json:"-"`

	// Deadline overrides policy.DeadlineMS for this build only.
	Deadline time.Duration `json:"-"`

	// ConversationWindow opts into including recent raw events verbatim in
	// short_term.conversation_window (never emitted by default, per §9 Open
	// Question (c)).
	ConversationWindow int `json:"conversation_window,omitempty"`
}

// Budget carries the token ceiling and per-section allotments enforced by
// the budget controller (§4.4, §6.2).
type Budget struct {
	MaxTokens  uint32            `json:"max_tokens"`
	PerSection map[string]uint32 `json:"per_section,omitempty"`
}
