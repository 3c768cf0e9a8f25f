// Package engine wires the memory subsystem together and exposes the
// operations a conversation host calls: assemble context for a turn, commit
// candidate facts, resolve human review, ingest knowledge and close out a
// session.
//
// The engine also owns hot-context cache lifecycle: any operation that can
// change a collection's canon set invalidates the cache.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/indexer"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/quarantine"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/retrieval"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/summarizer"
)

// Config holds the engine's collaborators.
type Config struct {
	Store      store.Driver
	Router     *retrieval.Router
	Pipeline   *quarantine.Pipeline
	Summarizer *summarizer.Summarizer
	Indexer    *indexer.Pool
	Logger     *zap.Logger
}

// Engine orchestrates retrieval, quarantine and summarization.
type Engine struct {
	store      store.Driver
	router     *retrieval.Router
	pipeline   *quarantine.Pipeline
	summarizer *summarizer.Summarizer
	indexer    *indexer.Pool
	logger     *zap.Logger
}

// New creates an engine from already-constructed components.
func New(cfg Config) *Engine {
	return &Engine{
		store:      cfg.Store,
		router:     cfg.Router,
		pipeline:   cfg.Pipeline,
		summarizer: cfg.Summarizer,
		indexer:    cfg.Indexer,
		logger:     cfg.Logger,
	}
}

// Store exposes the underlying memory store for read-side tooling.
func (e *Engine) Store() store.Driver {
	return e.store
}

// HandleTurn assembles the context bundle for one conversation turn. It never
// fails the turn; worst case is an empty, degraded bundle.
func (e *Engine) HandleTurn(ctx context.Context, q retrieval.Query) *retrieval.Bundle {
	return e.router.Retrieve(ctx, q)
}

// CommitFacts submits candidate fact drafts through the quarantine pipeline.
// Each draft lands in canon or human_review; a failed submission is logged
// and skipped so one bad draft never loses the rest of the batch.
func (e *Engine) CommitFacts(ctx context.Context, drafts []*memory.Memory) []*memory.Memory {
	committed := make([]*memory.Memory, 0, len(drafts))
	canonReached := false

	for _, draft := range drafts {
		m, err := e.pipeline.Submit(ctx, draft)
		if err != nil {
			e.logger.Error("fact submission failed",
				zap.String("memory_id", draft.ID),
				zap.Error(err),
			)
			continue
		}
		if m.Status == memory.StatusCanon {
			canonReached = true
		}
		committed = append(committed, m)
	}

	if canonReached {
		e.router.InvalidateCache()
	}
	return committed
}

// ResolveHumanReview applies a human decision to a flagged draft and
// invalidates cached context if the decision changed the canon set.
func (e *Engine) ResolveHumanReview(ctx context.Context, id string, decision memory.Status, editorID, reason string) (*memory.Memory, error) {
	m, err := e.pipeline.ResolveHumanReview(ctx, id, decision, editorID, reason)
	if err != nil {
		return nil, err
	}
	e.router.InvalidateCache()
	return m, nil
}

// Delete soft-deletes a record and invalidates cached context.
func (e *Engine) Delete(ctx context.Context, id, actor, reason string) (*memory.Memory, error) {
	m, err := e.pipeline.Delete(ctx, id, actor, reason)
	if err != nil {
		return nil, err
	}
	e.router.InvalidateCache()
	return m, nil
}

// AddKnowledge ingests a knowledge chunk. Chunks skip quarantine, are stored
// directly in canon, and are indexed asynchronously.
func (e *Engine) AddKnowledge(ctx context.Context, chunk *memory.Memory) (string, error) {
	if chunk.Kind != memory.KindKnowledge {
		return "", fmt.Errorf("AddKnowledge requires a knowledge chunk, got %q", chunk.Kind)
	}

	id, err := e.store.Put(ctx, chunk)
	if err != nil {
		return "", err
	}

	stored, err := e.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if e.indexer != nil {
		e.indexer.Enqueue(indexer.Job{Memory: stored})
	}
	e.router.InvalidateCache()
	return id, nil
}

// EndSession summarizes a finished session into client memory drafts and
// invalidates cached context for the client.
func (e *Engine) EndSession(ctx context.Context, req summarizer.Request) (*summarizer.Result, error) {
	result, err := e.summarizer.Summarize(ctx, req)
	if err != nil {
		return nil, err
	}
	e.router.InvalidateCache()
	return result, nil
}
