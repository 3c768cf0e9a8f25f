// Package inmemory provides the in-process reference implementation of the
// store.Driver contract, backed by maps under a single RWMutex. Reads run in
// parallel; writes to different ids never block each other for long since
// the critical sections are map operations only.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
)

// Driver implements store.Driver with in-process maps.
type Driver struct {
	mu sync.RWMutex

	// versions holds every retained version per id, oldest first. The last
	// element is the current version.
	versions map[string][]*memory.Memory

	// audit holds the append-only trail per id, oldest first.
	audit map[string][]memory.AuditEntry

	sessions map[string]*memory.Session
}

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		versions: make(map[string][]*memory.Memory),
		audit:    make(map[string][]memory.AuditEntry),
		sessions: make(map[string]*memory.Session),
	}
}

func (d *Driver) current(id string) *memory.Memory {
	vs := d.versions[id]
	if len(vs) == 0 {
		return nil
	}
	return vs[len(vs)-1]
}

// Put stores a new record, assigning an id when absent, and appends the
// creation audit entry in the same critical section.
func (d *Driver) Put(_ context.Context, m *memory.Memory) (string, error) {
	if err := store.ValidateNew(m); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if m.ID == "" {
		m.ID = memory.NewID()
	}
	if d.current(m.ID) != nil {
		return "", store.ErrExists
	}

	now := time.Now().UTC()
	rec := m.Clone()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	d.versions[rec.ID] = []*memory.Memory{rec}
	d.audit[rec.ID] = append(d.audit[rec.ID],
		memory.NewAuditEntry(rec.ID, "", rec.Status, actorString(rec.GeneratedBy), "created", now))

	// Reflect assigned fields back to the caller's copy.
	m.Version = rec.Version
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt

	return rec.ID, nil
}

func actorString(a memory.Actor) string {
	if a.Human != "" {
		return a.Human
	}
	return memory.SystemActor
}

// Get returns the current version of a record.
func (d *Driver) Get(_ context.Context, id string) (*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cur := d.current(id)
	if cur == nil {
		return nil, store.NotFoundError{ID: id}
	}
	return cur.Clone(), nil
}

// ListByKindStatus returns current versions matching kind and status.
func (d *Driver) ListByKindStatus(_ context.Context, kind memory.Kind, status memory.Status) ([]*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*memory.Memory
	for id := range d.versions {
		cur := d.current(id)
		if cur.Kind == kind && cur.Status == status {
			out = append(out, cur.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Transition applies a lifecycle edge with optimistic versioning, appending
// the audit entry atomically with the new version.
func (d *Driver) Transition(_ context.Context, id string, to memory.Status, actor, reason string, fromVersion int) (*memory.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.current(id)
	if cur == nil {
		return nil, store.NotFoundError{ID: id}
	}

	noop, err := store.CheckTransition(cur, to, actor, fromVersion)
	if err != nil {
		return nil, err
	}
	if noop {
		return cur.Clone(), nil
	}

	now := time.Now().UTC()
	next := cur.Clone()
	next.Version = cur.Version + 1
	next.Status = to
	next.UpdatedAt = now
	if actor != "" && actor != memory.SystemActor {
		next.GeneratedBy = memory.Actor{Human: actor}
	}

	d.versions[id] = append(d.versions[id], next)
	d.audit[id] = append(d.audit[id],
		memory.NewAuditEntry(id, cur.Status, to, actor, reason, now))

	return next.Clone(), nil
}

// SetLinks replaces the contradicts/supports sets of a persona memory.
// Versioned, but not a status transition: no audit entry.
func (d *Driver) SetLinks(_ context.Context, id string, contradicts, supports []string, fromVersion int) (*memory.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.current(id)
	if cur == nil {
		return nil, store.NotFoundError{ID: id}
	}
	if cur.Jane == nil {
		return nil, store.InvalidTransitionError{ID: id, From: cur.Status, To: cur.Status}
	}
	if err := store.CheckUpdate(cur, fromVersion); err != nil {
		return nil, err
	}
	for _, ref := range append(append([]string(nil), contradicts...), supports...) {
		if ref == id {
			return nil, store.ErrSelfCitation
		}
	}

	next := cur.Clone()
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	next.Jane.Contradicts = append([]string(nil), contradicts...)
	next.Jane.Supports = append([]string(nil), supports...)

	d.versions[id] = append(d.versions[id], next)
	return next.Clone(), nil
}

// AttachSession appends a session reference to a client memory.
func (d *Driver) AttachSession(_ context.Context, id, sessionID string, fromVersion int) (*memory.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.current(id)
	if cur == nil {
		return nil, store.NotFoundError{ID: id}
	}
	if cur.Client == nil {
		return nil, store.InvalidTransitionError{ID: id, From: cur.Status, To: cur.Status}
	}
	if err := store.CheckUpdate(cur, fromVersion); err != nil {
		return nil, err
	}

	for _, existing := range cur.Client.Sessions {
		if existing == sessionID {
			return cur.Clone(), nil
		}
	}

	next := cur.Clone()
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	next.Client.Sessions = append(next.Client.Sessions, sessionID)

	d.versions[id] = append(d.versions[id], next)
	return next.Clone(), nil
}

// History returns every retained version, oldest first.
func (d *Driver) History(_ context.Context, id string) ([]*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	vs, ok := d.versions[id]
	if !ok {
		return nil, store.NotFoundError{ID: id}
	}

	out := make([]*memory.Memory, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out, nil
}

// Audit returns the trail for a record, oldest first.
func (d *Driver) Audit(_ context.Context, id string) ([]memory.AuditEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.versions[id]; !ok {
		return nil, store.NotFoundError{ID: id}
	}

	return append([]memory.AuditEntry(nil), d.audit[id]...), nil
}

// PutSession stores or replaces a session record.
func (d *Driver) PutSession(_ context.Context, s *memory.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions[s.ID] = s.Clone()
	return nil
}

// GetSession returns a session by id.
func (d *Driver) GetSession(_ context.Context, id string) (*memory.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, store.NotFoundError{ID: id}
	}
	return s.Clone(), nil
}

// AppendSessionMemories merges summary output and memory references into an
// existing session.
func (d *Driver) AppendSessionMemories(_ context.Context, sessionID string, summary map[string]any, memoryIDs ...string) (*memory.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, store.NotFoundError{ID: sessionID}
	}

	if summary != nil {
		if s.Summary == nil {
			s.Summary = make(map[string]any, len(summary))
		}
		for k, v := range summary {
			s.Summary[k] = v
		}
	}

	have := make(map[string]bool, len(s.MemoryIDs))
	for _, id := range s.MemoryIDs {
		have[id] = true
	}
	for _, id := range memoryIDs {
		if !have[id] {
			s.MemoryIDs = append(s.MemoryIDs, id)
			have[id] = true
		}
	}

	return s.Clone(), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

var _ store.Driver = (*Driver)(nil)
