package processors

import (
	"context"
	"strings"
	"testing"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

func TestShortTermAssemblerSkipsWhenNoMemory(t *testing.T) {
	p := NewShortTermAssembler()
	packet := convpacket.New("a", "t", "sys")
	packet.AppendUserMessage("hello")
	pctx := &pipeline.Context{}

	before := len(packet.Messages)
	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(packet.Messages) != before {
		t.Fatalf("expected messages untouched when no short-term memory present")
	}
}

func TestShortTermAssemblerInjectsAndReappendsUserInput(t *testing.T) {
	p := NewShortTermAssembler()
	packet := convpacket.New("a", "t", "sys")
	packet.AppendUserMessage("what's my name again")
	packet.AddShortTermMemory(convpacket.ShortTermMemory{ID: "m1", Summary: "User's name is Alice", MemoryType: convpacket.MemoryFact, Relevance: 0.9})
	packet.AddShortTermMemory(convpacket.ShortTermMemory{ID: "m2", Summary: "User likes hiking", MemoryType: convpacket.MemoryPreference, Relevance: 0.5})

	pctx := &pipeline.Context{UserName: "Alice"}
	if err := p.Process(context.Background(), packet, pctx); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(packet.Messages) != 3 {
		t.Fatalf("expected [system, injected memory, user input], got %d", len(packet.Messages))
	}
	if packet.Messages[0].Role != convpacket.RoleSystem {
		t.Fatalf("expected system message preserved first")
	}
	injected := packet.Messages[1]
	if injected.Role != convpacket.RoleUser || !strings.HasPrefix(injected.Content, shortTermInjectionPrefix) {
		t.Fatalf("expected injection message with the normative prefix, got %q", injected.Content)
	}
	if !strings.Contains(injected.Content, "[fact]User's name is Alice") {
		t.Fatalf("expected higher-relevance memory formatted into the injection, got %q", injected.Content)
	}
	last := packet.Messages[2]
	if last.Content != "what's my name again" {
		t.Fatalf("expected original user input reappended last, got %q", last.Content)
	}
}
