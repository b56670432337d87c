package processors

import (
	"context"
	"testing"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

func TestSubconsciousProcessorAddsThinkingEntries(t *testing.T) {
	p := NewSubconsciousProcessor()
	packet := convpacket.New("a", "t", "sys")
	packet.AppendUserMessage("I'm feeling stuck on this bug")
	packet.AppendAssistantMessage("Let's look at the stack trace together")
	pctx := &pipeline.Context{}

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	thoughts := packet.GetThinking()
	if len(thoughts) != 2 {
		t.Fatalf("expected 2 thinking entries, got %d", len(thoughts))
	}
	if thoughts[0].Source != convpacket.ThinkingUserAnalysis {
		t.Fatalf("expected first entry tagged UserAnalysis, got %q", thoughts[0].Source)
	}
	if thoughts[1].Source != convpacket.ThinkingSelfReflection {
		t.Fatalf("expected second entry tagged SelfReflection, got %q", thoughts[1].Source)
	}
}

func TestSubconsciousProcessorSkipsEmptyTurn(t *testing.T) {
	p := NewSubconsciousProcessor()
	packet := convpacket.New("a", "t", "sys")
	pctx := &pipeline.Context{}

	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(packet.GetThinking()) != 0 {
		t.Fatalf("expected no thinking entries for an empty turn")
	}
}
