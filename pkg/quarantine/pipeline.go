// Package quarantine orchestrates the lifecycle that takes a draft memory
// from creation through validation to canon, human review or deletion.
//
// Submissions are not cancellable once the record exists in quarantined
// status: abandonment goes through human review or an explicit deleted
// transition, never a silent rollback.
package quarantine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/indexer"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/validate"
)

// maxConflictRetries bounds re-read-and-reapply loops on optimistic
// conflicts. Conflicts are recovered locally, never surfaced to callers.
const maxConflictRetries = 5

// Config holds the pipeline's collaborators.
type Config struct {
	Store     store.Driver
	Validator *validate.Validator
	Logger    *zap.Logger

	// Indexer, when set, receives index jobs for records reaching canon and
	// removal jobs for deleted records.
	Indexer *indexer.Pool

	// Publisher, when set, receives transition events after each committed
	// transition. Publishing failures are logged, never propagated.
	Publisher eventstream.Publisher
}

// Pipeline runs drafts through quarantine and validation.
type Pipeline struct {
	store     store.Driver
	validator *validate.Validator
	logger    *zap.Logger
	indexer   *indexer.Pool
	publisher eventstream.Publisher
	gate      *topicGate
}

// NewPipeline creates a quarantine pipeline.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		store:     cfg.Store,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		indexer:   cfg.Indexer,
		publisher: cfg.Publisher,
		gate:      newTopicGate(),
	}
}

// Submit stores a draft, quarantines it, validates it and commits the
// resulting transition. Resubmitting a record that already reached canon is
// a no-op. For persona drafts, at most one quarantined draft per topic is in
// flight at a time; a second submission waits cooperatively.
func (p *Pipeline) Submit(ctx context.Context, draft *memory.Memory) (*memory.Memory, error) {
	if draft.Kind == memory.KindKnowledge {
		return nil, fmt.Errorf("knowledge chunks do not pass through quarantine")
	}

	if draft.ID != "" {
		existing, err := p.store.Get(ctx, draft.ID)
		if err == nil {
			return p.resume(ctx, existing)
		}
		if !store.IsNotFound(err) {
			return nil, err
		}
	}

	if draft.Kind == memory.KindJane {
		key := gateKey(draft.Kind, draft.Topic())
		if err := p.gate.acquire(ctx, key); err != nil {
			return nil, fmt.Errorf("waiting for in-flight draft on topic %q: %w", draft.Topic(), err)
		}
		defer p.gate.release(key)
	}

	draft.Status = memory.StatusDraft
	id, err := p.store.Put(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("storing draft: %w", err)
	}
	p.publishLast(ctx, id)

	quarantined, err := p.transitionRetry(ctx, id, memory.StatusQuarantined, memory.SystemActor, "submitted for validation")
	if err != nil {
		return nil, err
	}

	return p.decide(ctx, quarantined)
}

// resume picks an already-stored record up from wherever it left off.
func (p *Pipeline) resume(ctx context.Context, existing *memory.Memory) (*memory.Memory, error) {
	switch existing.Status {
	case memory.StatusCanon, memory.StatusHumanReview, memory.StatusDeleted:
		return existing, nil
	case memory.StatusDraft:
		quarantined, err := p.transitionRetry(ctx, existing.ID, memory.StatusQuarantined, memory.SystemActor, "submitted for validation")
		if err != nil {
			return nil, err
		}
		return p.decide(ctx, quarantined)
	case memory.StatusQuarantined:
		return p.decide(ctx, existing)
	default:
		return nil, fmt.Errorf("record %s in unknown status %q", existing.ID, existing.Status)
	}
}

// decide validates a quarantined record and commits the verdict transition.
func (p *Pipeline) decide(ctx context.Context, quarantined *memory.Memory) (*memory.Memory, error) {
	var verdict validate.Verdict
	if quarantined.Kind == memory.KindClient {
		verdict = p.validator.ValidateClient(ctx, quarantined)
	} else {
		verdict = p.validator.Validate(ctx, quarantined)
	}

	if verdict.Consistent {
		m, err := p.transitionRetry(ctx, quarantined.ID, memory.StatusCanon, memory.SystemActor, "validator: consistent")
		if err != nil {
			return nil, err
		}
		p.enqueueIndex(m, false)
		return m, nil
	}

	reason := "validator: " + verdict.Reason
	if len(verdict.Conflicts) > 0 {
		reason = fmt.Sprintf("validator: conflicts with %s", strings.Join(verdict.Conflicts, ", "))
	}

	m, err := p.transitionRetry(ctx, quarantined.ID, memory.StatusHumanReview, memory.SystemActor, reason)
	if err != nil {
		return nil, err
	}

	p.logger.Info("draft flagged for human review",
		zap.String("memory_id", m.ID),
		zap.Strings("conflicts", verdict.Conflicts),
	)
	return m, nil
}

// ResolveHumanReview is the only path out of human_review: an explicit human
// decision to promote to canon or delete. decision must be canon or deleted.
func (p *Pipeline) ResolveHumanReview(ctx context.Context, id string, decision memory.Status, editorID, reason string) (*memory.Memory, error) {
	if decision != memory.StatusCanon && decision != memory.StatusDeleted {
		return nil, store.InvalidTransitionError{ID: id, From: memory.StatusHumanReview, To: decision}
	}
	if editorID == "" {
		return nil, store.ErrHumanRequired
	}

	current, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != memory.StatusHumanReview {
		return nil, store.InvalidTransitionError{ID: id, From: current.Status, To: decision}
	}

	if reason == "" {
		reason = fmt.Sprintf("resolved by %s", editorID)
	}

	m, err := p.transitionRetry(ctx, id, decision, editorID, reason)
	if err != nil {
		return nil, err
	}

	switch decision {
	case memory.StatusCanon:
		p.enqueueIndex(m, false)
	case memory.StatusDeleted:
		p.enqueueIndex(m, true)
	}
	return m, nil
}

// Delete soft-deletes a record from any status and drops it from the index.
func (p *Pipeline) Delete(ctx context.Context, id, actor, reason string) (*memory.Memory, error) {
	m, err := p.transitionRetry(ctx, id, memory.StatusDeleted, actor, reason)
	if err != nil {
		return nil, err
	}
	p.enqueueIndex(m, true)
	return m, nil
}

// transitionRetry applies a transition, recovering optimistic conflicts by
// re-reading and re-applying the same target status. Observing the target
// already applied counts as success.
func (p *Pipeline) transitionRetry(ctx context.Context, id string, to memory.Status, actor, reason string) (*memory.Memory, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		current, err := p.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == to {
			return current, nil
		}

		m, err := p.store.Transition(ctx, id, to, actor, reason, current.Version)
		if err == nil {
			p.publishLast(ctx, id)
			return m, nil
		}
		if !store.IsConflict(err) {
			return nil, err
		}
		lastErr = err

		p.logger.Debug("transition conflict, retrying",
			zap.String("memory_id", id),
			zap.String("to", string(to)),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("transition to %s exhausted conflict retries: %w", to, lastErr)
}

func (p *Pipeline) enqueueIndex(m *memory.Memory, remove bool) {
	if p.indexer == nil {
		return
	}
	p.indexer.Enqueue(indexer.Job{Memory: m, Remove: remove})
}

// publishLast emits the most recent audit entry as a transition event.
// Events are observability only; failures never affect the pipeline.
func (p *Pipeline) publishLast(ctx context.Context, id string) {
	if p.publisher == nil {
		return
	}

	entries, err := p.store.Audit(ctx, id)
	if err != nil || len(entries) == 0 {
		return
	}

	current, err := p.store.Get(ctx, id)
	if err != nil {
		return
	}

	event := eventstream.NewTransitionEvent(entries[len(entries)-1], current.Kind, current.Version)
	if err := p.publisher.PublishTransition(ctx, event); err != nil {
		p.logger.Warn("publishing transition event failed",
			zap.String("memory_id", id),
			zap.Error(err),
		)
	}
}

func gateKey(kind memory.Kind, topic string) string {
	return string(kind) + "/" + strings.ToLower(topic)
}
