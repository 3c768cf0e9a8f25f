package store

import (
	"fmt"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

// ValidateNew checks a record about to be inserted: known kind, a facet
// matching the kind, a legal birth status, and no self-citation. Shared by
// every backend so the contract cannot drift between them.
func ValidateNew(m *memory.Memory) error {
	if m == nil {
		return fmt.Errorf("nil memory")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", m.Kind)
	}

	switch m.Kind {
	case memory.KindJane:
		if m.Jane == nil {
			return fmt.Errorf("jane memory missing jane facet")
		}
	case memory.KindClient:
		if m.Client == nil {
			return fmt.Errorf("client memory missing client facet")
		}
	case memory.KindKnowledge:
		if m.Knowledge == nil {
			return fmt.Errorf("knowledge chunk missing knowledge facet")
		}
		if m.Status != memory.StatusCanon {
			return fmt.Errorf("knowledge chunks are born canon, got %q", m.Status)
		}
	}

	// Birth states: draft for generated facts, canon for human-authored
	// foundation content and knowledge chunks.
	if m.Status != memory.StatusDraft && m.Status != memory.StatusCanon {
		return fmt.Errorf("illegal birth status %q", m.Status)
	}

	if m.SelfCites() {
		return ErrSelfCitation
	}

	return nil
}

// CheckTransition applies the shared transition preconditions against the
// current version of a record. It returns noop=true when the record already
// has the target status (idempotent retry — no version bump, no audit).
func CheckTransition(cur *memory.Memory, to memory.Status, actor string, fromVersion int) (noop bool, err error) {
	if !to.Valid() {
		return false, InvalidTransitionError{ID: cur.ID, From: cur.Status, To: to}
	}

	if cur.Status == to {
		return true, nil
	}

	if !memory.CanTransition(cur.Status, to) {
		return false, InvalidTransitionError{ID: cur.ID, From: cur.Status, To: to}
	}

	if memory.HumanOnly(cur.Status) && (actor == "" || actor == memory.SystemActor) {
		return false, ErrHumanRequired
	}

	if cur.Version != fromVersion {
		return false, ConflictError{ID: cur.ID, Expected: fromVersion, Actual: cur.Version}
	}

	return false, nil
}

// CheckUpdate applies the shared preconditions for non-transition mutations
// (link recording, session attachment).
func CheckUpdate(cur *memory.Memory, fromVersion int) error {
	if cur.Version != fromVersion {
		return ConflictError{ID: cur.ID, Expected: fromVersion, Actual: cur.Version}
	}
	return nil
}
