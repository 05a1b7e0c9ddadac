// Package vector provides the in-process vector index used by local retrieval.
package vector

import "context"

// Filter reports whether the entry with the given id may be returned.
// A nil Filter admits every entry.
type Filter func(id string) bool

// VectorIndex defines vector storage and filtered similarity search.
type VectorIndex interface {
	// Upsert stores vectors under ids, replacing any existing entry with the same id.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single vector search hit keyed by document id.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity for normalized vectors
}
