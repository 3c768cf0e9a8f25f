package memory

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// AuditEntry records one status transition of one memory. The audit trail is
// append-only: entries are never mutated or deleted, and stores write exactly
// one entry in the same atomic unit of work as the mutation it describes.
type AuditEntry struct {
	// EntryID is a sortable ulid, unique across the trail.
	EntryID string `json:"entry_id"`

	MemoryID string `json:"memory_id"`

	// FromStatus is empty for the entry recording a record's creation.
	FromStatus Status `json:"from_status,omitempty"`
	ToStatus   Status `json:"to_status"`

	// Actor is SystemActor or a human editor id.
	Actor string `json:"actor"`

	Timestamp time.Time `json:"timestamp"`

	// Reason is free text, e.g. "validator: consistent".
	Reason string `json:"reason,omitempty"`
}

// NewAuditEntry builds an entry with a fresh ulid and the given timestamp.
func NewAuditEntry(memoryID string, from, to Status, actor, reason string, at time.Time) AuditEntry {
	return AuditEntry{
		EntryID:    ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		MemoryID:   memoryID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Timestamp:  at,
		Reason:     reason,
	}
}
