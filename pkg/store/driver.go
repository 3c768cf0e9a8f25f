// Package store defines the logical, backend-agnostic memory store.
//
// The store is the single source of truth for memory records. It is versioned
// (every mutation creates a new version and old versions are retained),
// optimistic (writers racing on the same id lose with a Conflict and retry),
// and audited (every Put and every status transition appends exactly one
// AuditEntry in the same atomic unit of work — no mutation without its audit
// record).
//
// Backends are pluggable: any key-value, document or relational store that
// can satisfy the Driver contract is conformant. This package ships inmemory,
// sqlite and postgres implementations.
package store

import (
	"context"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

// Driver is the contract every store backend implements.
type Driver interface {
	// Put stores a new record and returns its id, assigning one if the
	// record has none. The record must be in a birth status: draft for
	// generated facts, canon for human-authored foundation content and
	// knowledge chunks. Storing an id that already exists fails — knowledge
	// chunks in particular are immutable once canon. Put appends the audit
	// entry recording the record's creation atomically with the insert.
	Put(ctx context.Context, m *memory.Memory) (string, error)

	// Get returns the current version of a record, or a NotFoundError.
	// Deleted records are still returned; callers filter by status.
	Get(ctx context.Context, id string) (*memory.Memory, error)

	// ListByKindStatus returns the current versions of all records with the
	// given kind and status.
	ListByKindStatus(ctx context.Context, kind memory.Kind, status memory.Status) ([]*memory.Memory, error)

	// Transition moves a record along a lifecycle edge. fromVersion is the
	// version the caller last read; a mismatch fails with a ConflictError
	// and the caller must re-read and retry. An edge not in the state
	// machine fails with an InvalidTransitionError and leaves the record
	// unchanged. Transitioning to the record's current status is an
	// idempotent no-op: no version bump and no duplicate audit entry.
	// Leaving human_review requires a human actor.
	Transition(ctx context.Context, id string, to memory.Status, actor, reason string, fromVersion int) (*memory.Memory, error)

	// SetLinks replaces a persona memory's contradicts/supports reference
	// sets. This is a versioned mutation guarded by fromVersion, but it is
	// not a status transition and writes no audit entry.
	SetLinks(ctx context.Context, id string, contradicts, supports []string, fromVersion int) (*memory.Memory, error)

	// AttachSession appends a session reference to a client memory.
	AttachSession(ctx context.Context, id, sessionID string, fromVersion int) (*memory.Memory, error)

	// History returns every retained version of a record, oldest first.
	History(ctx context.Context, id string) ([]*memory.Memory, error)

	// Audit returns the append-only audit trail for a record, oldest first.
	Audit(ctx context.Context, id string) ([]memory.AuditEntry, error)

	// PutSession stores or replaces a session record.
	PutSession(ctx context.Context, s *memory.Session) error

	// GetSession returns a session, or a NotFoundError.
	GetSession(ctx context.Context, id string) (*memory.Session, error)

	// AppendSessionMemories merges a summary payload and memory references
	// into an existing session.
	AppendSessionMemories(ctx context.Context, sessionID string, summary map[string]any, memoryIDs ...string) (*memory.Session, error)

	// Close releases backend resources.
	Close() error
}
