// Package indexer provides an asynchronous worker pool that keeps the
// similarity index in step with the memory store.
//
// The pool decouples embedding calls and index writes from the retrieval and
// quarantine hot paths. The index is a derived, eventually consistent cache
// over the store's vectors: a brief lag behind a put or transition is
// acceptable because retrieval filters by the status carried on each index
// entry.
package indexer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/embeddings"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Memory is the record to (re)index or remove.
	Memory *memory.Memory

	// Remove drops the record from the index instead of upserting it.
	Remove bool
}

// Config is the configuration options for the worker pool.
type Config struct {
	// VectorDriver is the similarity index to keep in sync.
	VectorDriver vector.Driver

	// Embedder generates text embeddings for records that do not carry one.
	Embedder embeddings.Embedder

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes index jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// CollectionFor maps a memory to its similarity-index collection.
func CollectionFor(m *memory.Memory) string {
	switch m.Kind {
	case memory.KindClient:
		return vector.ClientCollection(m.ClientID())
	case memory.KindKnowledge:
		return vector.CollectionKnowledge
	default:
		return vector.CollectionJane
	}
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("index job queued",
			zap.String("memory_id", job.Memory.ID),
			zap.Bool("remove", job.Remove),
		)
		return true
	default:
		p.logger.Error("index job not queued, queue full, job dropped",
			zap.String("memory_id", job.Memory.ID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after request handling has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("index worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("index worker stopped", zap.Uint("worker_id", id))
}

// processJob applies one index mutation. Errors are logged, never returned:
// the index is a derived cache and the store already holds the truth.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	collection := CollectionFor(job.Memory)

	if job.Remove {
		if err := p.config.VectorDriver.Delete(ctx, collection, []string{job.Memory.ID}); err != nil {
			p.logger.Error("async index removal failed",
				zap.String("memory_id", job.Memory.ID),
				zap.String("collection", collection),
				zap.Error(err),
			)
		}
		return
	}

	embedding, err := p.embeddingFor(ctx, job.Memory)
	if err != nil {
		p.logger.Warn("failed to generate embedding",
			zap.String("memory_id", job.Memory.ID),
			zap.Error(err),
		)
		return
	}

	doc := vector.Document{
		ID:        job.Memory.ID,
		Embedding: embedding,
		Status:    string(job.Memory.Status),
		UpdatedAt: job.Memory.UpdatedAt,
	}

	if err := p.config.VectorDriver.Add(ctx, collection, []vector.Document{doc}); err != nil {
		p.logger.Error("async index write failed",
			zap.String("memory_id", job.Memory.ID),
			zap.String("collection", collection),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("memory indexed",
		zap.String("memory_id", job.Memory.ID),
		zap.String("collection", collection),
		zap.String("status", string(job.Memory.Status)),
	)
}

// embeddingFor returns the record's stored embedding when it carries one
// (knowledge chunks arrive pre-embedded) and otherwise embeds the content.
func (p *Pool) embeddingFor(ctx context.Context, m *memory.Memory) ([]float32, error) {
	if m.Knowledge != nil && len(m.Knowledge.Embedding) > 0 {
		return m.Knowledge.Embedding, nil
	}
	if m.Content == "" {
		return nil, fmt.Errorf("memory %s has no content to embed", m.ID)
	}
	return p.config.Embedder.Embed(ctx, m.Content)
}
