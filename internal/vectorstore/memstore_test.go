package vectorstore

import (
	"context"
	"testing"
)

func TestMemoryStoreUpsertAndSearch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Ensure(ctx, CollectionConfig{Name: "memo", Dimension: 3, Distance: Cosine}); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// Ensure is idempotent.
	if err := store.Ensure(ctx, CollectionConfig{Name: "memo", Dimension: 3, Distance: Cosine}); err != nil {
		t.Fatalf("Ensure (second call): %v", err)
	}

	if err := store.UpsertBatch(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: Payload{"topic": "t1"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: Payload{"topic": "t2"}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Payload: Payload{"topic": "t1"}},
	}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Fatalf("expected closest match to be a, got %s (score %f)", results[0].ID, results[0].Score)
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("expected descending score order, got %f then %f", results[0].Score, results[1].Score)
	}
}

func TestMemoryStoreSearchFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Ensure(ctx, CollectionConfig{Name: "memo", Dimension: 2})

	_ = store.UpsertBatch(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}, Payload: Payload{"topic": "t1", "score": 5}},
		{ID: "b", Vector: []float32{1, 0}, Payload: Payload{"topic": "t2", "score": 1}},
	})

	filter := Match("topic", "t1")
	results, err := store.Search(ctx, []float32{1, 0}, 10, &filter)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected only point a to match filter, got %#v", results)
	}

	rangeFilter := &Filter{Must: []Condition{{Field: "score", Op: OpGte, Value: 3}}}
	results, err = store.Search(ctx, []float32{1, 0}, 10, rangeFilter)
	if err != nil {
		t.Fatalf("Search with range filter: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected range filter to match only point a, got %#v", results)
	}
}

func TestMemoryStoreUpdatePayloadAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Ensure(ctx, CollectionConfig{Name: "memo", Dimension: 2})
	_ = store.Upsert(ctx, Point{ID: "a", Vector: []float32{1, 0}, Payload: Payload{"topic": "t1"}})

	if err := store.UpdatePayload(ctx, "a", Payload{"extra": "v"}); err != nil {
		t.Fatalf("UpdatePayload: %v", err)
	}
	results, err := store.Scroll(ctx, 0, nil)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(results) != 1 || results[0].Payload["extra"] != "v" || results[0].Payload["topic"] != "t1" {
		t.Fatalf("expected merged payload, got %#v", results[0].Payload)
	}

	if err := store.UpdatePayload(ctx, "missing", Payload{"x": "y"}); err == nil {
		t.Fatalf("expected error updating missing point")
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 points after delete, got %d", count)
	}
}

func TestMemoryStoreDropCollection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Ensure(ctx, CollectionConfig{Name: "memo", Dimension: 2})
	_ = store.UpsertBatch(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	})
	if err := store.DropCollection(ctx); err != nil {
		t.Fatalf("DropCollection: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty collection after drop, got %d points", count)
	}
}

func TestMemoryStoreDeleteBatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.UpsertBatch(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
		{ID: "c", Vector: []float32{1, 1}},
	})
	if err := store.DeleteBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	count, _ := store.Count(ctx)
	if count != 1 {
		t.Fatalf("expected 1 remaining point, got %d", count)
	}
}
