package eventstream

import (
	"time"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryTransitioned is emitted after a memory status
	// transition is committed, including creation (empty from_status).
	EventTypeMemoryTransitioned = "smartsteps.memory.transitioned"
)

// MemoryTransitionedEvent is a transport-neutral event payload for a
// committed status transition.
//
// Events are observability, not audit: the append-only audit log in the
// store is the record of truth, and publishing happens after the store
// commit, outside its atomic unit.
type MemoryTransitionedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	MemoryID      string       `json:"memory_id"`
	Kind          memory.Kind  `json:"kind"`
	Version       int          `json:"version"`
	FromStatus    string       `json:"from_status,omitempty"`
	ToStatus      string       `json:"to_status"`
	Actor         string       `json:"actor"`
	Reason        string       `json:"reason,omitempty"`
}

// NewTransitionEvent builds a v1 event from a committed audit entry.
func NewTransitionEvent(entry memory.AuditEntry, kind memory.Kind, version int) *MemoryTransitionedEvent {
	return &MemoryTransitionedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryTransitioned,
		EventID:       entry.EntryID,
		EmittedAt:     entry.Timestamp,
		MemoryID:      entry.MemoryID,
		Kind:          kind,
		Version:       version,
		FromStatus:    string(entry.FromStatus),
		ToStatus:      string(entry.ToStatus),
		Actor:         entry.Actor,
		Reason:        entry.Reason,
	}
}
