package memory

import (
	"context"
	"database/sql"
	"math"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T, dim int) *SQLiteVecStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// A single connection keeps the in-memory database shared.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	store := NewSQLiteVecStore(db, dim)
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestSQLiteVecStore_UpsertAndSearch(t *testing.T) {
	store := setupTestStore(t, 3)
	ctx := context.Background()

	err := store.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]any{
		"content":  "hello world",
		"metadata": map[string]any{"tag": "greeting"},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.Upsert(ctx, "b", []float32{0.8, 0.6, 0}, map[string]any{
		"content": "goodbye world",
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := store.Search(ctx, []float32{0.9, 0.1, 0}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Error("expected first result to have higher score")
	}
	meta, _ := results[0].Payload["metadata"].(map[string]any)
	if meta["tag"] != "greeting" {
		t.Errorf("expected metadata round trip, got %v", results[0].Payload["metadata"])
	}
}

func TestSQLiteVecStore_ThresholdFilters(t *testing.T) {
	store := setupTestStore(t, 3)
	ctx := context.Background()

	_ = store.Upsert(ctx, "close", []float32{1, 0, 0}, map[string]any{"content": "close"})
	_ = store.Upsert(ctx, "far", []float32{0, 1, 0}, map[string]any{"content": "far"})

	results, err := store.Search(ctx, []float32{1, 0.1, 0}, 10, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "close" {
		t.Fatalf("expected only the close vector above threshold, got %+v", results)
	}
}

func TestSQLiteVecStore_UpsertUpdatesExisting(t *testing.T) {
	store := setupTestStore(t, 3)
	ctx := context.Background()

	_ = store.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]any{"content": "original"})
	if err := store.Upsert(ctx, "a", []float32{0, 1, 0}, map[string]any{"content": "updated"}); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search(ctx, []float32{0, 1, 0}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Payload["content"] != "updated" {
		t.Errorf("expected updated content, got %q", results[0].Payload["content"])
	}
}

func TestSQLiteVecStore_DimensionMismatchRejected(t *testing.T) {
	store := setupTestStore(t, 3)
	if err := store.Upsert(context.Background(), "a", []float32{1, 0}, map[string]any{"content": "x"}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestSQLiteVecStore_SearchText(t *testing.T) {
	store := setupTestStore(t, 2)
	ctx := context.Background()

	_ = store.Upsert(ctx, "1", []float32{1, 0}, map[string]any{"content": "I like Coffee in the morning"})
	_ = store.Upsert(ctx, "2", []float32{0, 1}, map[string]any{"content": "Tea is fine too"})
	_ = store.Upsert(ctx, "3", []float32{1, 1}, map[string]any{"content": "coffee, black"})

	results, err := store.SearchText(ctx, "COFFEE", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 case-insensitive matches, got %d", len(results))
	}

	results, err = store.SearchText(ctx, "coffee", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(results))
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	original := []float32{1.5, -2.25, 0, math.MaxFloat32}
	decoded := decodeFloat32s(encodeFloat32s(original))
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: %d vs %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("index %d: expected %f, got %f", i, original[i], decoded[i])
		}
	}
	if decodeFloat32s([]byte{1, 2, 3}) != nil {
		t.Error("expected nil for misaligned input")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float32
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		got := cosineSimilarity(tt.a, tt.b)
		if math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}
