// Package vector provides the similarity index: collection-scoped storage and
// nearest-neighbor retrieval of memory embeddings.
//
// The index is a derived, eventually-consistent cache over the store's
// vectors — it may briefly lag a put or transition. Each index entry carries
// the record's status and updated-at as of indexing time so retrieval can
// filter to canon entries and break score ties by recency without a store
// round trip.
package vector

import (
	"context"
	"math"
	"sort"
	"time"
)

// Collection names. One collection per kind; client memories are further
// partitioned per client so history queries never cross clients.
const (
	CollectionJane      = "jane"
	CollectionKnowledge = "knowledge"
)

// ClientCollection returns the per-client collection name.
func ClientCollection(clientID string) string {
	return "client/" + clientID
}

// Document is a stored index entry for one memory.
type Document struct {
	// ID is the memory id this entry indexes.
	ID string

	// Embedding is the vector representation of the memory content.
	Embedding []float32

	// Status is the record's lifecycle status as of indexing time.
	Status string

	// UpdatedAt is the record's update time as of indexing time; used as
	// the tie-breaker for equal similarity scores.
	UpdatedAt time.Time
}

// QueryResult is a search hit with its cosine similarity score in [-1, 1].
type QueryResult struct {
	Document

	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add inserts or replaces documents in a collection, keyed by ID.
	Add(ctx context.Context, collection string, docs []Document) error

	// Query returns the topK most similar documents in a collection,
	// ordered by descending score, ties broken by more recent UpdatedAt.
	Query(ctx context.Context, collection string, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by id from a collection. Unknown ids are
	// silently omitted.
	Get(ctx context.Context, collection string, ids []string) ([]Document, error)

	// Delete removes documents by id from a collection.
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-magnitude inputs.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SortResults orders hits by descending score, ties broken by more recent
// UpdatedAt first. Shared by backends so ordering semantics cannot drift.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
}
