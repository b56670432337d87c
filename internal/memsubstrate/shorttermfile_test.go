package memsubstrate

import (
	"testing"
	"time"

	"github.com/memochater/core/internal/convpacket"
)

func TestShortTermVectorFileUpsertInsertsAndReplaces(t *testing.T) {
	file := NewShortTermVectorFile("test-embed")

	file.Upsert(VectorizedMemory{
		ID: "v1", Summary: "s1", Content: "c1",
		SummaryEmbedding: []float32{1, 0}, ContentEmbedding: []float32{1, 0},
	})
	if len(file.Vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(file.Vectors))
	}
	if file.Metadata.Dimension != 2 {
		t.Fatalf("expected dimension to be set from first insert, got %d", file.Metadata.Dimension)
	}

	file.Upsert(VectorizedMemory{
		ID: "v1", Summary: "s1-updated", Content: "c1-updated",
		SummaryEmbedding: []float32{0, 1}, ContentEmbedding: []float32{0, 1},
	})
	if len(file.Vectors) != 1 {
		t.Fatalf("expected upsert to replace, not append, got %d vectors", len(file.Vectors))
	}
	if file.Vectors[0].Summary != "s1-updated" {
		t.Fatalf("expected replaced record, got %q", file.Vectors[0].Summary)
	}
}

func TestShortTermVectorFileQueryWeighting(t *testing.T) {
	file := NewShortTermVectorFile("test-embed")
	file.Upsert(VectorizedMemory{
		ID: "summary-match", SummaryEmbedding: []float32{1, 0}, ContentEmbedding: []float32{0, 1},
	})
	file.Upsert(VectorizedMemory{
		ID: "content-match", SummaryEmbedding: []float32{0, 1}, ContentEmbedding: []float32{1, 0},
	})

	results := file.Query([]float32{1, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// content weight (0.6) exceeds summary weight (0.4), so the record whose
	// content embedding matches the query should rank first.
	if results[0].ID != "content-match" {
		t.Fatalf("expected content-match to rank first, got %s", results[0].ID)
	}
}

func TestShortTermVectorFileQueryTopK(t *testing.T) {
	file := NewShortTermVectorFile("test-embed")
	for i := 0; i < 5; i++ {
		file.Upsert(VectorizedMemory{
			ID:               string(rune('a' + i)),
			SummaryEmbedding: []float32{1, float32(i)},
			ContentEmbedding: []float32{1, float32(i)},
		})
	}
	results := file.Query([]float32{1, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected top-2 truncation, got %d", len(results))
	}
}

func TestShortTermFileRepositorySaveAndLoad(t *testing.T) {
	repo := NewShortTermFileRepository(t.TempDir())
	file := NewShortTermVectorFile("test-embed")
	file.Upsert(VectorizedMemory{
		ID: "v1", Summary: "s", Content: "c", MemoryType: convpacket.MemoryFact,
		Source: convpacket.MemoryCurrentConversation, Timestamp: time.Now().UTC(),
		SummaryEmbedding: []float32{1, 0}, ContentEmbedding: []float32{0, 1},
	})

	if err := repo.Save("assistant-1", "topic-1", file, "test-embed"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := repo.Load("assistant-1", "topic-1", "fallback-model")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Vectors) != 1 || loaded.Vectors[0].ID != "v1" {
		t.Fatalf("expected loaded file to round-trip the vector, got %#v", loaded.Vectors)
	}
	if loaded.Metadata.EmbeddingModel != "test-embed" {
		t.Fatalf("expected embedding model to persist, got %q", loaded.Metadata.EmbeddingModel)
	}
}

func TestShortTermFileRepositoryLoadMissingReturnsFreshFile(t *testing.T) {
	repo := NewShortTermFileRepository(t.TempDir())
	file, err := repo.Load("assistant-x", "topic-x", "fallback-model")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(file.Vectors) != 0 {
		t.Fatalf("expected empty vectors for missing file, got %d", len(file.Vectors))
	}
	if file.Metadata.EmbeddingModel != "fallback-model" {
		t.Fatalf("expected fallback model, got %q", file.Metadata.EmbeddingModel)
	}
}
