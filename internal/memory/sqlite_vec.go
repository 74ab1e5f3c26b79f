package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

const memoriesSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	embedding BLOB,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);
`

// SQLiteVecStore implements Store on a local SQLite file. Embeddings are
// stored as BLOBs (little-endian float32 arrays) and cosine similarity is
// computed in Go.
type SQLiteVecStore struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteVecStore wraps an open database. Call EnsureCollection before use.
func NewSQLiteVecStore(db *sql.DB, dimension int) *SQLiteVecStore {
	return &SQLiteVecStore{db: db, dimension: dimension}
}

// OpenSQLiteVecStore opens (or creates) the database at path and its schema.
func OpenSQLiteVecStore(ctx context.Context, path string, dimension int) (*SQLiteVecStore, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := NewSQLiteVecStore(db, dimension)
	if err := s.EnsureCollection(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteVecStore) Close() error {
	return s.db.Close()
}

// EnsureCollection creates the memories table if needed.
func (s *SQLiteVecStore) EnsureCollection(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, memoriesSchema); err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}
	return nil
}

// Upsert stores or replaces a memory with its embedding.
func (s *SQLiteVecStore) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if s.dimension > 0 && len(vector) != s.dimension {
		return fmt.Errorf("embedding dimension %d, store expects %d", len(vector), s.dimension)
	}
	content, _ := payload[payloadContent].(string)
	meta, err := json.Marshal(payload[payloadMetadata])
	if err != nil || string(meta) == "null" {
		meta = []byte("{}")
	}
	createdAt := time.Now().UTC()
	if ts, ok := payload[payloadCreatedAt].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			createdAt = parsed
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`, id, content, encodeFloat32s(vector), string(meta), createdAt)
	return err
}

// Search returns the memories whose cosine similarity to vector is at least
// threshold, best first.
func (s *SQLiteVecStore) Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, metadata, created_at
		FROM memories
		WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Result
	for rows.Next() {
		var (
			id, content, meta string
			blob              []byte
			createdAt         time.Time
		)
		if err := rows.Scan(&id, &content, &blob, &meta, &createdAt); err != nil {
			return nil, err
		}

		stored := decodeFloat32s(blob)
		if len(stored) != len(vector) {
			continue // dimension mismatch, skip
		}
		sim := cosineSimilarity(vector, stored)
		if sim < threshold {
			continue
		}
		r := rowResult(id, content, meta, createdAt)
		r.Score = sim
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// SearchText returns memories containing query, case-insensitively, newest first.
func (s *SQLiteVecStore) SearchText(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, created_at
		FROM memories
		WHERE instr(lower(content), lower(?)) > 0
		ORDER BY created_at DESC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			id, content, meta string
			createdAt         time.Time
		)
		if err := rows.Scan(&id, &content, &meta, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, rowResult(id, content, meta, createdAt))
	}
	return out, rows.Err()
}

func rowResult(id, content, meta string, createdAt time.Time) Result {
	var metadata map[string]any
	_ = json.Unmarshal([]byte(meta), &metadata)
	return Result{
		ID: id,
		Payload: map[string]any{
			payloadContent:   content,
			payloadMetadata:  metadata,
			payloadCreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// encodeFloat32s converts a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s converts little-endian bytes back to a float32 slice.
func decodeFloat32s(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
