package model

import "time"

// FactStatus is the lifecycle state of a Fact. Facts transition by status
// only; hard delete is the separate Tombstone governance path.
type FactStatus string

const (
	FactStatusActive     FactStatus = "active"
	FactStatusDisputed   FactStatus = "disputed"
	FactStatusDeprecated FactStatus = "deprecated"
)

// Validity bounds the time range a Fact is considered current.
type Validity struct {
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// Covers reports whether the validity window includes instant now, per the
// loader rule in §4.2: valid_from <= now and (valid_to is null or now <= valid_to).
func (v Validity) Covers(now time.Time) bool {
	if v.ValidFrom.After(now) {
		return false
	}
	return v.ValidTo == nil || !v.ValidTo.Before(now)
}

// Fact is a scoped, versioned assertion. Invariant: for any
// (ScopeLevel, FactKey) at most one row has Status == active; upserting a
// new active fact demotes the previous active row to deprecated.
type Fact struct {
	FactID     string     `json:"fact_id"`
	Scope      Scope      `json:"scope"`
	FactKey    string     `json:"fact_key"`
	Value      string     `json:"value"`
	Status     FactStatus `json:"status"`
	Validity   Validity   `json:"validity"`
	Confidence float64    `json:"confidence"`
	Sources    []string   `json:"sources,omitempty"` // event IDs
	ScopeLevel ScopeLevel `json:"scope_level"`
}

// FactFilter narrows list_facts. Limit is a hard cap enforced by the backend.
type FactFilter struct {
	StatusIn  []FactStatus
	KeyPrefix string
	Now       time.Time
	Limit     int
}
