// Package embed is the C4 component: turns chunk/document text into dense
// vectors for the vector index.
package embed

import "context"

// Embedder converts text to embedding vectors.
type Embedder interface {
	// EmbedBatch returns one embedding per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns a model identifier string, stored for provenance.
	Name() string
	// Dimension returns the embedding dimensionality.
	Dimension() int
	// Ping checks whether the embedding backend is reachable.
	Ping(ctx context.Context) error
}
