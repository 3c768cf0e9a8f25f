package store

import (
	"errors"
	"fmt"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

var (
	// ErrExists is returned by Put when the record id is already in use.
	// Ids are never reused, and knowledge chunks are immutable once canon.
	ErrExists = errors.New("memory id already exists")

	// ErrSelfCitation is returned when a persona memory cites itself in its
	// contradicts or supports set.
	ErrSelfCitation = errors.New("memory may not cite itself")

	// ErrHumanRequired is returned when a system actor attempts to leave
	// human_review; only an explicit human decision may do that.
	ErrHumanRequired = errors.New("transition out of human_review requires a human actor")
)

// NotFoundError is returned when a record or session id is unknown.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "memory not found"
	}
	return "memory not found: " + e.ID
}

// InvalidTransitionError is returned when the requested lifecycle edge does
// not exist. It indicates a caller bug or data corruption; the record is
// left unchanged.
type InvalidTransitionError struct {
	ID   string
	From memory.Status
	To   memory.Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s", e.ID, e.From, e.To)
}

// ConflictError is an optimistic-concurrency collision: the record's version
// changed since the caller last read it. Recoverable — re-read and retry.
type ConflictError struct {
	ID       string
	Expected int
	Actual   int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, have %d", e.ID, e.Expected, e.Actual)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var it InvalidTransitionError
	return errors.As(err, &it)
}
