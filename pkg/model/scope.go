// Package model defines the immutable value shapes Engram persists and composes:
// scopes, memory entities, the composer's request/response contract, and the
// policy-facing degradation records that accompany a build.
package model

import "fmt"

// Scope is the five-tuple isolation key for every read and write. Cross-scope
// reads are forbidden; every storage operation takes a Scope.
type Scope struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

// Key returns a stable string key for the scope, suitable for map keys and
// log fields. It is not used for storage predicates; backends compare fields.
func (s Scope) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", s.TenantID, s.UserID, s.AgentID, s.SessionID, s.RunID)
}

// ScopeLevel names the granularity a Fact is asserted at.
type ScopeLevel string

const (
	ScopeLevelUser   ScopeLevel = "user"
	ScopeLevelAgent  ScopeLevel = "agent"
	ScopeLevelTenant ScopeLevel = "tenant"
)

// Purpose controls the injection policy applied when assembling a packet.
type Purpose string

const (
	PurposePlanner   Purpose = "planner"
	PurposeTool      Purpose = "tool"
	PurposeResponder Purpose = "responder"
)
