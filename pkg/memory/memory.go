// Package memory defines the core record types for the persona memory engine.
//
// A Memory is a versioned, typed fact about the Jane persona, about a client,
// or a chunk of reference material. Records move through a lifecycle
// (draft → quarantined → canon / human_review / deleted) enforced by the
// status state machine in status.go; every status change is recorded in an
// append-only audit trail.
//
// The Kind tag is closed — there is no inheritance hierarchy. Kind-specific
// fields live on exactly one of the Jane/Client/Knowledge facet pointers.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which facet of a Memory is populated.
type Kind string

const (
	// KindJane is a fact about the Jane persona itself.
	KindJane Kind = "jane"

	// KindClient is a disclosure made by a client during a session.
	KindClient Kind = "client"

	// KindKnowledge is a chunk of reference material from the knowledge base.
	KindKnowledge Kind = "knowledge"
)

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindJane, KindClient, KindKnowledge:
		return true
	}
	return false
}

// Actor records the producing agent of a memory: either a language model
// (by model name) or a human editor (by editor id). Exactly one field is set.
type Actor struct {
	Model string `json:"model,omitempty"`
	Human string `json:"human,omitempty"`
}

// SystemActor is the actor string recorded on audit entries for transitions
// applied by the engine itself rather than a human.
const SystemActor = "system"

// Memory is a single versioned record. Common metadata lives on the struct;
// kind-specific payloads live on the facet pointer matching Kind.
type Memory struct {
	// ID is the opaque unique identifier, immutable once assigned.
	ID string `json:"id"`

	// Kind selects which facet pointer is populated.
	Kind Kind `json:"kind"`

	// Version increases monotonically with every mutation. Old versions are
	// retained by the store for audit.
	Version int `json:"version"`

	// Status is the record's position in the lifecycle state machine.
	Status Status `json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// SourceDocument and SourcePage record provenance for content derived
	// from reference material.
	SourceDocument string `json:"source_document,omitempty"`
	SourcePage     int    `json:"source_page,omitempty"`

	// GeneratedBy records the producing agent.
	GeneratedBy Actor `json:"generated_by"`

	// NeedsEncryption marks the content payload as sensitive; conforming
	// stores persist it encrypted at rest.
	NeedsEncryption bool `json:"needs_encryption"`

	// Content is the free-text payload of the record.
	Content string `json:"content"`

	Jane      *JaneFacet      `json:"jane,omitempty"`
	Client    *ClientFacet    `json:"client,omitempty"`
	Knowledge *KnowledgeFacet `json:"knowledge,omitempty"`
}

// JaneFacet holds fields specific to persona memories.
//
// Contradicts and Supports are plain id references, never live pointers: a
// JaneMemory does not own the memories it cites, and deleting a cited memory
// leaves the reference dangling rather than cascading.
type JaneFacet struct {
	Topic         string         `json:"topic"`
	RelatedTopics []string       `json:"related_topics,omitempty"`
	Contradicts   []string       `json:"contradicts,omitempty"`
	Supports      []string       `json:"supports,omitempty"`
	Detail        map[string]any `json:"detailed_content,omitempty"`
}

// ClientFacet holds fields specific to client disclosures.
type ClientFacet struct {
	ClientID       string    `json:"client_id"`
	DisclosureType string    `json:"disclosure_type,omitempty"`
	Sensitivity    int       `json:"sensitivity_level"`
	Topics         []string  `json:"topics,omitempty"`
	DisclosedAt    time.Time `json:"disclosed_at"`
	SessionNumber  int       `json:"session_number"`

	// Sessions lists the session ids that reference this disclosure.
	// The relationship is many-to-many; neither side owns the other.
	Sessions []string `json:"sessions,omitempty"`
}

// KnowledgeFacet holds fields specific to knowledge-base chunks. Chunks are
// reference material, not generated facts: they are created directly in canon
// and are immutable afterwards.
type KnowledgeFacet struct {
	Topics     []string  `json:"topics,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// NewID returns a fresh opaque memory id.
func NewID() string {
	return uuid.NewString()
}

// NewJaneDraft builds a draft persona memory ready for submission to the
// quarantine pipeline.
func NewJaneDraft(topic, content string, by Actor) *Memory {
	return &Memory{
		ID:          NewID(),
		Kind:        KindJane,
		Status:      StatusDraft,
		GeneratedBy: by,
		Content:     content,
		Jane:        &JaneFacet{Topic: topic},
	}
}

// NewClientDraft builds a draft client disclosure.
func NewClientDraft(clientID, content string, by Actor) *Memory {
	return &Memory{
		ID:          NewID(),
		Kind:        KindClient,
		Status:      StatusDraft,
		GeneratedBy: by,
		Content:     content,
		Client:      &ClientFacet{ClientID: clientID},
	}
}

// NewKnowledgeChunk builds a knowledge-base chunk. Chunks skip quarantine and
// are born directly in canon.
func NewKnowledgeChunk(sourceDocument string, page int, content string, embedding []float32) *Memory {
	return &Memory{
		ID:             NewID(),
		Kind:           KindKnowledge,
		Status:         StatusCanon,
		SourceDocument: sourceDocument,
		SourcePage:     page,
		Content:        content,
		Knowledge: &KnowledgeFacet{
			PageNumber: page,
			Embedding:  embedding,
		},
	}
}

// SelfCites reports whether a persona memory cites itself in its contradicts
// or supports sets, which is never valid.
func (m *Memory) SelfCites() bool {
	if m.Jane == nil {
		return false
	}
	for _, id := range m.Jane.Contradicts {
		if id == m.ID {
			return true
		}
	}
	for _, id := range m.Jane.Supports {
		if id == m.ID {
			return true
		}
	}
	return false
}

// ClientID returns the owning client id for client memories, "" otherwise.
func (m *Memory) ClientID() string {
	if m.Client == nil {
		return ""
	}
	return m.Client.ClientID
}

// Topic returns the persona topic for jane memories, "" otherwise.
func (m *Memory) Topic() string {
	if m.Jane == nil {
		return ""
	}
	return m.Jane.Topic
}

// Clone returns a deep copy of the memory. Stores return clones so callers
// can never mutate persisted state in place.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	out := *m
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		out.ExpiresAt = &t
	}
	if m.Jane != nil {
		j := *m.Jane
		j.RelatedTopics = append([]string(nil), m.Jane.RelatedTopics...)
		j.Contradicts = append([]string(nil), m.Jane.Contradicts...)
		j.Supports = append([]string(nil), m.Jane.Supports...)
		if m.Jane.Detail != nil {
			j.Detail = make(map[string]any, len(m.Jane.Detail))
			for k, v := range m.Jane.Detail {
				j.Detail[k] = v
			}
		}
		out.Jane = &j
	}
	if m.Client != nil {
		c := *m.Client
		c.Topics = append([]string(nil), m.Client.Topics...)
		c.Sessions = append([]string(nil), m.Client.Sessions...)
		out.Client = &c
	}
	if m.Knowledge != nil {
		k := *m.Knowledge
		k.Topics = append([]string(nil), m.Knowledge.Topics...)
		k.Embedding = append([]float32(nil), m.Knowledge.Embedding...)
		out.Knowledge = &k
	}
	return &out
}
