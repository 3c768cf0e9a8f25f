package memory

// Status is a memory's position in the lifecycle state machine.
type Status string

const (
	// StatusDraft is a freshly generated candidate fact, not yet submitted.
	StatusDraft Status = "draft"

	// StatusQuarantined is a draft under consistency validation.
	StatusQuarantined Status = "quarantined"

	// StatusCanon is trusted content, eligible for retrieval.
	StatusCanon Status = "canon"

	// StatusHumanReview is a draft that failed validation and awaits an
	// explicit human decision. Only a human actor may transition out.
	StatusHumanReview Status = "human_review"

	// StatusDeleted is a soft-deleted record: retained, excluded from
	// retrieval, id never reused.
	StatusDeleted Status = "deleted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusQuarantined, StatusCanon, StatusHumanReview, StatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether a quarantine submission waiting on this status may
// proceed: canon, human_review and deleted end a draft's in-flight validation.
func (s Status) Terminal() bool {
	return s == StatusCanon || s == StatusHumanReview || s == StatusDeleted
}

// transitions is the lifecycle edge set. Birth states (draft for generated
// facts, canon for human-authored foundation content and knowledge chunks)
// are handled by the store at Put time, not here.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusQuarantined, StatusDeleted},
	StatusQuarantined: {StatusCanon, StatusHumanReview, StatusDeleted},
	StatusCanon:       {StatusDeleted},
	StatusHumanReview: {StatusCanon, StatusDeleted},
	StatusDeleted:     {},
}

// CanTransition reports whether the edge from → to exists in the lifecycle
// state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HumanOnly reports whether the edge from → to requires a human actor.
// Leaving human_review is the escape hatch from automated judgment and is
// never taken by the system itself.
func HumanOnly(from Status) bool {
	return from == StatusHumanReview
}
