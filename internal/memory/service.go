package memory

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

// SimilarityThreshold is the minimum cosine similarity for a vector match.
const SimilarityThreshold float32 = 0.7

// Record is a stored memory as returned by Recall.
type Record struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Score     float32        `json:"score,omitempty"`
}

// EmbedFunc turns text into a vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Retriever stores memories and recalls them, first by similarity and, when
// that path fails, by substring.
type Retriever struct {
	store Store
	embed EmbedFunc
	now   func() time.Time
}

// NewRetriever creates a Retriever. A nil embed makes every Remember a no-op
// and every Recall use the substring path.
func NewRetriever(store Store, embed EmbedFunc) *Retriever {
	return &Retriever{store: store, embed: embed, now: time.Now}
}

// Remember embeds content and stores it. Failures are logged and dropped:
// memory never blocks the caller.
func (r *Retriever) Remember(ctx context.Context, content string, metadata map[string]any) {
	if r.embed == nil {
		slog.WarnContext(ctx, "Memory not stored: no embedder configured")
		return
	}
	vec, err := r.embed(ctx, content)
	if err != nil {
		slog.WarnContext(ctx, "Memory not stored: embedding failed", "error", err)
		return
	}
	now := r.now().UTC()
	err = r.store.Upsert(ctx, recordID(content, now), vec, map[string]any{
		payloadContent:   content,
		payloadMetadata:  metadata,
		payloadCreatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		slog.WarnContext(ctx, "Memory not stored: upsert failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "Memory stored", "length", len(content))
}

// Recall returns up to limit memories relevant to query. The vector path is
// tried first; if embedding or search fails, a substring search runs
// instead. The two result sets are never merged. Recall never fails: a
// failing fallback yields an empty result.
func (r *Retriever) Recall(ctx context.Context, query string, limit int) []Record {
	if limit <= 0 {
		limit = 5
	}

	results, err := r.vectorSearch(ctx, query, limit)
	if err == nil {
		return toRecords(results)
	}
	slog.DebugContext(ctx, "Vector recall failed, using substring search", "error", err)

	results, err = r.store.SearchText(ctx, query, limit)
	if err != nil {
		slog.WarnContext(ctx, "Substring recall failed", "error", err)
		return []Record{}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return toRecords(results)
}

func (r *Retriever) vectorSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	if r.embed == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.store.Search(ctx, vec, limit, SimilarityThreshold)
}

func toRecords(results []Result) []Record {
	out := make([]Record, 0, len(results))
	for _, res := range results {
		content, _ := res.Payload[payloadContent].(string)
		meta, _ := res.Payload[payloadMetadata].(map[string]any)
		rec := Record{
			ID:       res.ID,
			Content:  content,
			Metadata: meta,
			Score:    res.Score,
		}
		if ts, ok := res.Payload[payloadCreatedAt].(string); ok {
			rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		out = append(out, rec)
	}
	return out
}

// recordID generates a deterministic ID from content and creation time.
func recordID(content string, at time.Time) string {
	h := sha256.Sum256([]byte(at.Format(time.RFC3339Nano) + ":" + content))
	return fmt.Sprintf("%x", h[:8])
}
