// Package chromem provides a vector driver backed by chromem-go, a pure-Go
// embedded vector database with cosine similarity search.
//
// chromem has no lookup-by-id, so the driver keeps a sidecar map of document
// metadata per collection; chromem holds the embeddings and answers KNN
// queries.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

// Driver implements vector.Driver on chromem-go.
type Driver struct {
	db     *chromemgo.DB
	logger *zap.Logger

	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection
	docs        map[string]map[string]vector.Document
}

// NewDriver creates an in-process chromem index.
func NewDriver(logger *zap.Logger) *Driver {
	return &Driver{
		db:          chromemgo.NewDB(),
		logger:      logger,
		collections: make(map[string]*chromemgo.Collection),
		docs:        make(map[string]map[string]vector.Document),
	}
}

func (d *Driver) getOrCreateCollection(name string) (*chromemgo.Collection, error) {
	d.mu.RLock()
	col, ok := d.collections[name]
	d.mu.RUnlock()
	if ok {
		return col, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if col, ok := d.collections[name]; ok {
		return col, nil
	}

	// Embeddings are always provided by the caller, so no embedding func;
	// the default distance is cosine.
	col, err := d.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", name, err)
	}

	d.collections[name] = col
	d.docs[name] = make(map[string]vector.Document)
	return col, nil
}

// Add inserts or replaces documents, keyed by ID.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	col, err := d.getOrCreateCollection(collection)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		err := col.AddDocument(ctx, chromemgo.Document{
			ID:        doc.ID,
			Embedding: doc.Embedding,
			Metadata: map[string]string{
				"status": doc.Status,
			},
			// chromem requires non-empty content; the id suffices since
			// record content lives in the store.
			Content: doc.ID,
		})
		if err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}

		d.mu.Lock()
		doc.Embedding = append([]float32(nil), doc.Embedding...)
		d.docs[collection][doc.ID] = doc
		d.mu.Unlock()
	}

	d.logger.Debug("added documents to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query returns the topK nearest documents by cosine similarity.
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	col, ok := d.collections[collection]
	size := len(d.docs[collection])
	d.mu.RUnlock()
	if !ok || size == 0 {
		return nil, nil
	}

	// chromem requires nResults <= collection size.
	if topK > size {
		topK = size
	}

	hits, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %q: %w", collection, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.QueryResult, 0, len(hits))
	for _, hit := range hits {
		doc, ok := d.docs[collection][hit.ID]
		if !ok {
			doc = vector.Document{ID: hit.ID, Embedding: hit.Embedding, Status: hit.Metadata["status"]}
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    hit.Similarity,
		})
	}

	vector.SortResults(results)
	return results, nil
}

// Get retrieves documents by id from the sidecar map.
func (d *Driver) Get(_ context.Context, collection string, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	coll := d.docs[collection]
	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := coll[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Delete removes documents by id.
func (d *Driver) Delete(ctx context.Context, collection string, ids []string) error {
	d.mu.RLock()
	col, ok := d.collections[collection]
	d.mu.RUnlock()
	if !ok || len(ids) == 0 {
		return nil
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting from collection %q: %w", collection, err)
	}

	d.mu.Lock()
	for _, id := range ids {
		delete(d.docs[collection], id)
	}
	d.mu.Unlock()
	return nil
}

// Close is a no-op; chromem keeps everything in memory.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
