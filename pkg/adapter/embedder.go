package adapter

import "context"

// Embedder converts text into a vector of fixed dimension. A store is pinned
// to one embedder model for its lifetime.
type Embedder interface {
	// Embed returns the embedding for text. Vectors need not be normalized.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the length of every vector Embed returns
	Dimension() int
}
