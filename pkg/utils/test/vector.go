package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

// MockVectorDriver is a test vector driver with configurable per-collection
// results and an optional per-collection delay for deadline tests.
type MockVectorDriver struct {
	mu sync.Mutex

	// Results maps collection name to the hits Query returns.
	Results map[string][]vector.QueryResult

	// Delays maps collection name to an artificial Query latency. Query
	// honors the context deadline while waiting.
	Delays map[string]time.Duration

	// Added accumulates documents by collection.
	Added map[string][]vector.Document

	// Deleted accumulates deleted ids by collection.
	Deleted map[string][]string
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Results: make(map[string][]vector.QueryResult),
		Delays:  make(map[string]time.Duration),
		Added:   make(map[string][]vector.Document),
		Deleted: make(map[string][]string),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, collection string, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added[collection] = append(m.Added[collection], docs...)
	return nil
}

func (m *MockVectorDriver) Query(ctx context.Context, collection string, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	delay := m.Delays[collection]
	results := append([]vector.QueryResult(nil), m.Results[collection]...)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorDriver) Get(_ context.Context, collection string, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[string]vector.Document)
	for _, doc := range m.Added[collection] {
		byID[doc.ID] = doc
	}

	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted[collection] = append(m.Deleted[collection], ids...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)
