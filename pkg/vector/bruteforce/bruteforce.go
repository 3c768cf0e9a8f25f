// Package bruteforce provides an exact in-memory vector driver: a full
// cosine scan per query. Fine at the scale of a single persona's memory;
// approximate structures are an internal optimization with no externally
// visible behavior change beyond score ordering at ties.
package bruteforce

import (
	"context"
	"sync"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

// Driver implements vector.Driver with per-collection maps.
type Driver struct {
	mu          sync.RWMutex
	collections map[string]map[string]vector.Document
}

// NewDriver creates an empty brute-force index.
func NewDriver() *Driver {
	return &Driver{
		collections: make(map[string]map[string]vector.Document),
	}
}

// Add inserts or replaces documents, keyed by ID.
func (d *Driver) Add(_ context.Context, collection string, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	coll, ok := d.collections[collection]
	if !ok {
		coll = make(map[string]vector.Document)
		d.collections[collection] = coll
	}

	for _, doc := range docs {
		doc.Embedding = append([]float32(nil), doc.Embedding...)
		coll[doc.ID] = doc
	}
	return nil
}

// Query scans the whole collection and returns the topK hits by cosine
// similarity, ties broken by recency.
func (d *Driver) Query(_ context.Context, collection string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	coll := d.collections[collection]
	results := make([]vector.QueryResult, 0, len(coll))
	for _, doc := range coll {
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    vector.Cosine(embedding, doc.Embedding),
		})
	}

	vector.SortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get retrieves documents by id; unknown ids are omitted.
func (d *Driver) Get(_ context.Context, collection string, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	coll := d.collections[collection]
	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := coll[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Delete removes documents by id.
func (d *Driver) Delete(_ context.Context, collection string, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	coll := d.collections[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// Close is a no-op for the in-memory index.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
