package model

import "time"

// SchemaVersion is the only value meta.schema_version ever takes for this
// packet shape (Testable Property 1).
const SchemaVersion = "v1"

// MemoryPacket is the composer's sole runtime contract, consumed by upstream
// prompting code. Every returned packet carries all seven top-level keys.
type MemoryPacket struct {
	Meta         Meta         `json:"meta"`
	ShortTerm    ShortTerm    `json:"short_term"`
	LongTerm     LongTerm     `json:"long_term"`
	Insight      InsightBlock `json:"insight"`
	Citations    []Citation   `json:"citations"`
	BudgetReport BudgetReport `json:"budget_report"`
	Explain      Explain      `json:"explain"`
}

// Meta carries the build's identifying and replay metadata.
type Meta struct {
	SchemaVersion string    `json:"schema_version"`
	Scope         Scope     `json:"scope"`
	GeneratedAt   time.Time `json:"generated_at"`
	Purpose       Purpose   `json:"purpose"`
	TaskType      string    `json:"task_type,omitempty"`
	Cues          *Cues     `json:"cues,omitempty"`
	Budget        Budget    `json:"budget"`
	PolicyID      string    `json:"policy_id,omitempty"`
}

// ShortTerm is the working-memory section of a packet.
type ShortTerm struct {
	WorkingState       WorkingState  `json:"working_state"`
	RollingSummary     string        `json:"rolling_summary"`
	KeyQuotes          []KeyQuote    `json:"key_quotes"`
	ConversationWindow []Event       `json:"conversation_window,omitempty"`
	OpenLoops          []string      `json:"open_loops"`
	LastToolEvidence   []EvidenceRef `json:"last_tool_evidence"`
}

// LongTerm is the durable-memory section of a packet. Preferences is a
// projection of Facts (§9 Open Question (a)), not a separately stored
// category: it holds every fact in Facts whose FactKey has the "user.pref."
// prefix, filtered in place by the assembler.
type LongTerm struct {
	Facts       []Fact      `json:"facts"`
	Preferences []Fact      `json:"preferences"`
	Procedures  []Procedure `json:"procedures"`
	Episodes    []Episode   `json:"episodes"`
}

// InsightUsagePolicy records whether insights were eligible for injection
// into a responder-purpose build.
type InsightUsagePolicy struct {
	AllowInResponder bool `json:"allow_in_responder"`
}

// InsightBlock is the insight section of a packet, split by InsightType.
type InsightBlock struct {
	UsagePolicy       InsightUsagePolicy `json:"usage_policy"`
	Hypotheses        []Insight          `json:"hypotheses"`
	StrategySketches  []Insight          `json:"strategy_sketches"`
	Patterns          []Insight          `json:"patterns"`
}

// Citation is a de-duplicated reference into the evidence substrate.
type Citation struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"` // "event", "quote", "source"
	Role    string    `json:"role,omitempty"`
	Ts      time.Time `json:"ts,omitempty"`
	Summary string    `json:"summary,omitempty"`
}

// Degradation records one action the budget controller or scorer/trimmer
// took to respect a cap or budget.
type Degradation struct {
	Section string `json:"section"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

// Omission records one item, or one whole section, dropped before it ever
// reached the packet, with the reason it was dropped.
type Omission struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// BudgetReport is the budget controller's user-visible accounting.
type BudgetReport struct {
	MaxTokens      uint32            `json:"max_tokens"`
	UsedTokensEst  uint32            `json:"used_tokens_est"`
	SectionUsage   map[string]uint32 `json:"section_usage"`
	Degradations   []Degradation     `json:"degradations"`
	Omissions      []Omission        `json:"omissions"`
}

// Conflict records a detected invariant interaction worth surfacing
// read-side (e.g. a fact superseded by a later upsert).
type Conflict struct {
	Type    string   `json:"type"`
	Detail  string   `json:"detail"`
	FactIDs []string `json:"fact_ids,omitempty"`
}

// Determinism carries the parameters that make a build replayable given
// identical underlying store state (Testable Property 7).
type Determinism struct {
	PolicyID    string         `json:"policy_id"`
	SortKeys    map[string]string `json:"sort_keys"`
	TimeWindow  map[string]string `json:"time_window"`
	TopK        map[string]int    `json:"top_k"`
}

// Explain is the per-build selection/omission/filter/conflict trace.
type Explain struct {
	Selected    []string          `json:"selected"`
	Omitted     []Omission        `json:"omitted"`
	Filters     map[string]string `json:"filters"`
	Conflicts   []Conflict        `json:"conflicts"`
	Determinism Determinism       `json:"determinism"`
}

// BuildRecord is the persisted row stored in context_builds (§6.4) so a
// build's explain + budget report can be replayed.
type BuildRecord struct {
	BuildID      string       `json:"build_id"`
	Scope        Scope        `json:"scope"`
	GeneratedAt  time.Time    `json:"generated_at"`
	BudgetReport BudgetReport `json:"budget_report"`
	Explain      Explain      `json:"explain"`
}
