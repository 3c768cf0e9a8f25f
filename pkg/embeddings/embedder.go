// Package embeddings defines the external embedding collaborator: a function
// from text to a fixed-length float vector. The engine calls it whenever a
// memory's content changes and for every retrieval query.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
