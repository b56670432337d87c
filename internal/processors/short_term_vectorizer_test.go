package processors

import (
	"context"
	"testing"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/memsubstrate"
	"github.com/memochater/core/internal/pipeline"
)

func TestShortTermVectorizerSkipsWhenNoMemory(t *testing.T) {
	p := NewShortTermVectorizer()
	packet := convpacket.New("a", "t", "sys")
	repo := memsubstrate.NewShortTermFileRepository(t.TempDir())
	files := memsubstrate.NewCachedShortTermFileRepository(repo, nil)
	pctx := &pipeline.Context{AssistantID: "a", TopicID: "t", ShortTermFiles: files}
	pctx.SetEmbeddingModel("test-embed")

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestShortTermVectorizerUpsertsAndPersists(t *testing.T) {
	p := NewShortTermVectorizer()
	packet := convpacket.New("a", "t", "sys")
	packet.AddShortTermMemory(convpacket.ShortTermMemory{ID: "m1", Summary: "summary one", Content: "content one", MemoryType: convpacket.MemoryFact})
	packet.AddShortTermMemory(convpacket.ShortTermMemory{ID: "m2", Summary: "summary two", Content: "content two", MemoryType: convpacket.MemoryEvent})

	dataDir := t.TempDir()
	repo := memsubstrate.NewShortTermFileRepository(dataDir)
	files := memsubstrate.NewCachedShortTermFileRepository(repo, nil)
	ai := &stubAI{}
	pctx := &pipeline.Context{AssistantID: "a", TopicID: "t", ShortTermFiles: files, AI: ai}
	pctx.SetEmbeddingModel("test-embed")

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}

	reloaded, err := repo.Load("a", "t", "test-embed")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reloaded.Vectors) != 2 {
		t.Fatalf("expected 2 persisted vectors, got %d", len(reloaded.Vectors))
	}
	if reloaded.Metadata.Dimension != 2 {
		t.Fatalf("expected dimension stamped from first embedding, got %d", reloaded.Metadata.Dimension)
	}

	// Re-running with one updated memory should upsert in place, not grow
	// the file past 2 records.
	packet2 := convpacket.New("a", "t", "sys")
	packet2.AddShortTermMemory(convpacket.ShortTermMemory{ID: "m1", Summary: "summary one revised", Content: "content one revised", MemoryType: convpacket.MemoryFact})
	if err := p.Process(context.Background(), packet2, pctx); err != nil {
		t.Fatalf("Process (update): %v", err)
	}
	reloaded2, err := repo.Load("a", "t", "test-embed")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reloaded2.Vectors) != 2 {
		t.Fatalf("expected upsert to keep the file at 2 records, got %d", len(reloaded2.Vectors))
	}
}
