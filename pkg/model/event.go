package model

import "time"

// EventKind classifies an Event's payload shape.
type EventKind string

const (
	EventKindMessage     EventKind = "message"
	EventKindToolResult  EventKind = "tool_result"
	EventKindStatePatch  EventKind = "state_patch"
	EventKindAnnotation  EventKind = "annotation"
)

// Event is an append-only audit record and the evidence substrate every other
// memory entity cites back to by EventID. Events are immutable once appended.
type Event struct {
	EventID   string          `json:"event_id"`
	Scope     Scope           `json:"scope"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      EventKind       `json:"kind"`
	Payload   []byte          `json:"payload"` // opaque JSON, stored and returned verbatim
	Tags      []string        `json:"tags,omitempty"`
	Entities  []string        `json:"entities,omitempty"`
}

// EventFilter narrows list_events. Limit is a hard cap enforced by the backend.
type EventFilter struct {
	Since   *time.Time
	Until   *time.Time
	KindIn  []EventKind
	Limit   int
}
