package vectorstore

import "context"

// Store is the full vector-store facade consumed by the memory substrate.
// Concrete backends: QdrantStore, PostgresVectorStore. memoryStore
// (memstore.go) is an in-process implementation used by tests and as a
// dependency-free fallback.
type Store interface {
	// Ensure creates the collection with the configured dimension/distance
	// if it does not already exist. Idempotent.
	Ensure(ctx context.Context, cfg CollectionConfig) error

	Upsert(ctx context.Context, p Point) error
	UpsertBatch(ctx context.Context, ps []Point) error

	// Search returns the k nearest points to query, filtered, ordered by
	// score descending.
	Search(ctx context.Context, query []float32, k int, filter *Filter) ([]Result, error)

	// Scroll returns an unordered listing (score is always 1.0).
	Scroll(ctx context.Context, limit int, filter *Filter) ([]Result, error)

	// UpdatePayload merges partial into the stored payload for id.
	UpdatePayload(ctx context.Context, id string, partial Payload) error

	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error

	Count(ctx context.Context) (int, error)
	DropCollection(ctx context.Context) error
}
