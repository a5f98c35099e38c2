package model

// EvidenceRef points from a higher-order entity back to the Event(s) that
// support it. Citations are always by EventID, never by pointer (§9 Design
// Notes: no cyclic references).
type EvidenceRef struct {
	EventID string `json:"event_id"`
	Note    string `json:"note,omitempty"`
}

// WorkingState is the single mutable record per run: the live plan, slot
// fills, constraints, and accumulated evidence/decisions/risks. It is
// mutated in place by patch operations guarded by optimistic concurrency on
// StateVersion.
type WorkingState struct {
	Goal          string              `json:"goal"`
	Plan          []string            `json:"plan,omitempty"`
	Slots         map[string]string   `json:"slots,omitempty"`
	Constraints   map[string]string   `json:"constraints,omitempty"`
	ToolEvidence  []EvidenceRef       `json:"tool_evidence,omitempty"`
	Decisions     []string            `json:"decisions,omitempty"`
	Risks         []string            `json:"risks,omitempty"`
	StateVersion  int64               `json:"state_version"`
}

// Empty reports whether ws is the zero-value default returned when a scope
// has no recorded working state (storage NotFound, per §4.5, is not an
// error — it yields this default).
func (ws WorkingState) Empty() bool {
	return ws.StateVersion == 0 && ws.Goal == "" && len(ws.Plan) == 0 &&
		len(ws.Slots) == 0 && len(ws.Constraints) == 0
}

// WorkingStatePatch describes a partial update to a WorkingState. Nil fields
// are left untouched; non-nil map/slice fields replace their counterpart
// wholesale (the backend does not attempt field-level merges inside them).
type WorkingStatePatch struct {
	Goal         *string
	Plan         []string
	Slots        map[string]string
	Constraints  map[string]string
	ToolEvidence []EvidenceRef
	Decisions    []string
	Risks        []string
}

// KeyQuote is a verbatim quote lifted from an event, kept in the rolling
// short-term summary for a session.
type KeyQuote struct {
	EvidenceID string `json:"evidence_id"`
	Quote      string `json:"quote"`
	Role       string `json:"role"`
	Timestamp  string `json:"ts"`
}

// STMSummary is the one-per-session rolling short-term memory: a prose
// summary plus the open loops and evidence it was built from.
type STMSummary struct {
	RollingSummary    string        `json:"rolling_summary"`
	KeyQuotes         []KeyQuote    `json:"key_quotes,omitempty"`
	OpenLoops         []string      `json:"open_loops,omitempty"`
	LastToolEvidence  []EvidenceRef `json:"last_tool_evidence,omitempty"`
}
