// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// EmbedBatch generates embeddings for texts at the requested dimensionality.
	// Each returned item carries the index of the input it belongs to; items
	// are not guaranteed to come back in input order. A dims of 0 lets the
	// model pick its native size.
	EmbedBatch(ctx context.Context, texts []string, dims int) ([]Embedding, error)

	// Dimensions returns the configured embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Embedding is one vector returned by an EmbeddingService.
type Embedding struct {
	// Index is the position of the source text in the request.
	Index int

	// Vector is the embedding.
	Vector []float32
}
