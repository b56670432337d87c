package processors

import (
	"context"
	"testing"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/memsubstrate"
	"github.com/memochater/core/internal/pipeline"
	"github.com/memochater/core/internal/vectorstore"
)

func newTestLongTermStore(t *testing.T) *memsubstrate.LongTermStore {
	t.Helper()
	store, err := memsubstrate.NewLongTermStore(vectorstore.NewMemoryStore(), t.TempDir(), &stubAI{}, "test-embed")
	if err != nil {
		t.Fatalf("NewLongTermStore: %v", err)
	}
	return store
}

func TestMemoryCommitterPromotesConfidentCurrentConversationEntries(t *testing.T) {
	p := NewMemoryCommitter()
	packet := convpacket.New("a", "t", "sys")
	packet.AddShortTermMemory(convpacket.ShortTermMemory{
		ID: "m1", Content: "the user's birthday is in June", Confidence: 0.9,
		Source: convpacket.MemoryCurrentConversation, MemoryType: convpacket.MemoryFact,
	})
	packet.AddShortTermMemory(convpacket.ShortTermMemory{
		ID: "m2", Content: "low confidence guess", Confidence: 0.1,
		Source: convpacket.MemoryCurrentConversation, MemoryType: convpacket.MemoryOther,
	})
	packet.AddShortTermMemory(convpacket.ShortTermMemory{
		ID: "m3", Content: "retrieved from long-term already", Confidence: 0.95,
		Source: convpacket.MemoryLongTermRetrieval, MemoryType: convpacket.MemoryFact,
	})

	store := newTestLongTermStore(t)
	pctx := &pipeline.Context{TopicID: "t", LongTerm: store}

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.MemoryCount != 1 {
		t.Fatalf("expected exactly 1 promoted memory (confident, current-conversation only), got %d", stats.MemoryCount)
	}

	got, err := store.Get(context.Background(), "m1", 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected promoted memory m1 to be retrievable")
	}
	if got.Category != "extracted" {
		t.Fatalf("expected category 'extracted', got %q", got.Category)
	}
	if got.Importance != defaultCommitImportance {
		t.Fatalf("expected default importance %v, got %v", defaultCommitImportance, got.Importance)
	}
}
