package model

import "time"

// EntityKind names the memory entity a Tombstone covers.
type EntityKind string

const (
	EntityFact      EntityKind = "fact"
	EntityEpisode   EntityKind = "episode"
	EntityProcedure EntityKind = "procedure"
	EntityInsight   EntityKind = "insight"
)

// Tombstone is the governance-level hard-delete record left behind when an
// entity is physically removed (spec.md §3: "hard delete is a separate
// governance operation leaving a tombstone").
type Tombstone struct {
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	Scope      Scope      `json:"scope"`
	DeletedAt  time.Time  `json:"deleted_at"`
	Reason     string     `json:"reason,omitempty"`
}
