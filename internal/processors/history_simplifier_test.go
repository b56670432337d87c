package processors

import (
	"context"
	"testing"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

func TestHistorySimplifierSkipsUnderThreshold(t *testing.T) {
	p := NewHistorySimplifier()
	packet := convpacket.New("a", "t", "be helpful")
	packet.AppendUserMessage("hi")
	pctx := &pipeline.Context{HistorySimplifyThreshold: 10000}

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(packet.Messages) != 2 {
		t.Fatalf("expected messages untouched, got %d", len(packet.Messages))
	}
}

func TestHistorySimplifierCompressesOverThreshold(t *testing.T) {
	p := NewHistorySimplifier()
	packet := convpacket.New("a", "t", "be helpful")
	for i := 0; i < 20; i++ {
		packet.AppendUserMessage("this is a fairly long filler message meant to push the token estimate well past the configured threshold for this test case")
		packet.AppendAssistantMessage("acknowledged, continuing the conversation with another reasonably long reply to pad the transcript further")
	}
	packet.AppendUserMessage("what should we do next")

	ai := &stubAI{reply: "summary of everything discussed so far"}
	pctx := &pipeline.Context{AI: ai, ProcessorModel: "proc-model", HistorySimplifyThreshold: 50}

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("expected exactly one summarization call, got %d", ai.calls)
	}
	if len(packet.Messages) != 3 {
		t.Fatalf("expected [system, summary, last_user], got %d messages", len(packet.Messages))
	}
	if packet.Messages[0].Role != convpacket.RoleSystem {
		t.Fatalf("expected system message preserved at index 0, got role %q", packet.Messages[0].Role)
	}
	last := packet.Messages[len(packet.Messages)-1]
	if last.Content != "what should we do next" {
		t.Fatalf("expected most recent user message preserved, got %q", last.Content)
	}
}
