package processors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

func TestShortTermExpanderSkipsWhenNothingMarked(t *testing.T) {
	p := NewShortTermExpander()
	packet := convpacket.New("a", "t", "sys")
	packet.AppendUserMessage("hi")
	packet.AddShortTermMemory(convpacket.ShortTermMemory{ID: "m1", Summary: "s", ShouldExpand: false})
	pctx := &pipeline.Context{}

	before := len(packet.Messages)
	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(packet.Messages) != before {
		t.Fatalf("expected no message inserted when nothing is marked for expansion")
	}
}

func TestShortTermExpanderInsertsBeforeFinalMessage(t *testing.T) {
	p := NewShortTermExpander()
	packet := convpacket.New("a", "t", "sys")
	packet.AppendUserMessage("tell me more")
	packet.AddShortTermMemory(convpacket.ShortTermMemory{
		ID: "m1", Summary: "project deadline", Content: "the deadline is next Friday",
		MemoryType: convpacket.MemoryFact, ShouldExpand: true, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	pctx := &pipeline.Context{UserName: "Alice"}

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(packet.Messages) != 3 {
		t.Fatalf("expected [system, injected, final_user], got %d", len(packet.Messages))
	}
	injected := packet.Messages[1]
	if !strings.HasPrefix(injected.Content, shortTermExpansionPrefix) {
		t.Fatalf("expected expansion prefix, got %q", injected.Content)
	}
	if !strings.Contains(injected.Content, "the deadline is next Friday") {
		t.Fatalf("expected full content embedded in expansion, got %q", injected.Content)
	}
	if packet.Messages[2].Content != "tell me more" {
		t.Fatalf("expected final user message preserved last, got %q", packet.Messages[2].Content)
	}
}
