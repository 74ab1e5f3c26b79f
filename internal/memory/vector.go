// Package memory implements the memory retriever and its vector store
// backends.
package memory

import "context"

// Payload keys shared by every backend.
const (
	payloadContent   = "content"
	payloadMetadata  = "metadata"
	payloadCreatedAt = "created_at"
)

// VectorStore is a nearest-neighbour index over embedded memories.
type VectorStore interface {
	// Upsert stores a text with its embedding and metadata.
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error

	// Search finds the most similar items scoring at least threshold.
	Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]Result, error)

	// EnsureCollection makes sure the storage exists.
	EnsureCollection(ctx context.Context) error
}

// TextStore supports the case-insensitive substring fallback.
type TextStore interface {
	SearchText(ctx context.Context, query string, limit int) ([]Result, error)
}

// Store is implemented by backends that support both retrieval paths.
type Store interface {
	VectorStore
	TextStore
}

// Result is one match returned by a store.
type Result struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}
