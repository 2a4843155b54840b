// Package search defines the interfaces for the semantic search
// infrastructure: embedding generation and vector similarity indexing.
// Concrete implementations (Qdrant, etc.) satisfy these interfaces so the
// registry, router, and retrieval layers never depend on a specific backend.
package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingUnavailable marks failures of the embedding provider.
// Callers use errors.Is to distinguish "retry safely" from input errors.
// The provider must fail loudly — a zero or garbage vector is never
// substituted for a real embedding.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Unavailable wraps err so that errors.Is(err, ErrEmbeddingUnavailable)
// holds, preserving the original cause in the message chain.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
}

// Point is a single entry in a vector index: an embedding plus the payload
// fields stored alongside it.
type Point struct {
	// ID is the unique identifier for this point (UUID string).
	ID string

	// Vector is the embedding for this point.
	Vector []float32

	// Payload holds string key-value pairs stored with the vector and
	// available for filtering at query time.
	Payload map[string]string
}

// Hit is a single result of a similarity search.
type Hit struct {
	// ID is the identifier of the matched point.
	ID string

	// Score is the cosine similarity of the match. For normalized text
	// embeddings it falls in [0, 1].
	Score float32

	// Payload holds the stored fields of the matched point.
	Payload map[string]string
}

// Query describes a nearest-neighbor search.
type Query struct {
	// TopK is the maximum number of hits to return.
	TopK int

	// MinScore excludes hits with similarity at or below this value.
	// Zero means no threshold.
	MinScore float32

	// Filter restricts the search to points whose payload matches every
	// key-value pair exactly. Nil means unfiltered.
	Filter map[string]string
}

// VectorIndex is the interface for persisting and searching embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert stores or updates a batch of points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the nearest neighbors of vector, ordered by
	// descending similarity, subject to the query's limit, threshold,
	// and payload filter.
	Search(ctx context.Context, vector []float32, q Query) ([]Hit, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, ids []string) error

	// DeleteByFilter removes every point whose payload matches the filter.
	DeleteByFilter(ctx context.Context, filter map[string]string) error

	// Close releases any resources held by the index.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines and must
// return an error wrapping ErrEmbeddingUnavailable when the provider cannot
// be reached.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne is a convenience wrapper for embedding a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, Unavailable(errors.New("embedder returned empty result"))
	}
	return vecs[0], nil
}
