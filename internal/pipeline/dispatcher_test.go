package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/memochater/core/internal/convpacket"
)

type fakeProcessor struct {
	name            string
	requiresMemory  bool
	err             error
	calls           *int
}

func (p *fakeProcessor) Name() string          { return p.name }
func (p *fakeProcessor) RequiresMemory() bool  { return p.requiresMemory }
func (p *fakeProcessor) Process(_ context.Context, packet *convpacket.Packet, _ *Context) error {
	if p.calls != nil {
		*p.calls++
	}
	if p.err != nil {
		return p.err
	}
	packet.AppendAssistantMessage("touched by " + p.name)
	return nil
}

func TestDispatchRunsConfiguredSequenceInOrder(t *testing.T) {
	d := NewDispatcher()
	calls := []string{}
	d.Register(&trackingProcessor{name: "a", log: &calls})
	d.Register(&trackingProcessor{name: "b", log: &calls})
	d.Register(&trackingProcessor{name: "c", log: &calls})

	cfg := Config{
		PhaseOnUserMessage: {{Name: "a"}, {Name: "b"}, {Name: "c"}},
	}
	packet := convpacket.New("asst", "topic", "")
	pctx := &Context{MemoryEnabled: true}

	d.Dispatch(context.Background(), PhaseOnUserMessage, packet, cfg, pctx)

	if len(calls) != 3 || calls[0] != "a" || calls[1] != "b" || calls[2] != "c" {
		t.Fatalf("expected processors to run in configured order, got %v", calls)
	}
	if packet.LastProcessor != "c" {
		t.Fatalf("expected last_processor to be the final successful processor, got %q", packet.LastProcessor)
	}
}

type trackingProcessor struct {
	name string
	log  *[]string
}

func (p *trackingProcessor) Name() string         { return p.name }
func (p *trackingProcessor) RequiresMemory() bool { return false }
func (p *trackingProcessor) Process(_ context.Context, _ *convpacket.Packet, _ *Context) error {
	*p.log = append(*p.log, p.name)
	return nil
}

func TestDispatchSkipsMissingProcessor(t *testing.T) {
	d := NewDispatcher()
	cfg := Config{PhaseOnUserMessage: {{Name: "does-not-exist"}}}
	packet := convpacket.New("asst", "topic", "")
	pctx := &Context{}

	// should not panic, and last_processor stays empty
	d.Dispatch(context.Background(), PhaseOnUserMessage, packet, cfg, pctx)
	if packet.LastProcessor != "" {
		t.Fatalf("expected no processor to run, got last_processor=%q", packet.LastProcessor)
	}
}

func TestDispatchSkipsMemoryGatedProcessorWhenDisabled(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	d.Register(&fakeProcessor{name: "memory-proc", requiresMemory: true, calls: &calls})
	cfg := Config{PhaseOnUserMessage: {{Name: "memory-proc"}}}
	packet := convpacket.New("asst", "topic", "")
	pctx := &Context{MemoryEnabled: false}

	d.Dispatch(context.Background(), PhaseOnUserMessage, packet, cfg, pctx)
	if calls != 0 {
		t.Fatalf("expected memory-gated processor to be skipped, got %d calls", calls)
	}
}

func TestDispatchIsolatesProcessorErrorAndContinues(t *testing.T) {
	d := NewDispatcher()
	d.Register(&fakeProcessor{name: "failing", err: errors.New("boom")})
	calls := 0
	d.Register(&fakeProcessor{name: "ok", calls: &calls})
	cfg := Config{PhaseOnUserMessage: {{Name: "failing"}, {Name: "ok"}}}
	packet := convpacket.New("asst", "topic", "")
	pctx := &Context{}

	d.Dispatch(context.Background(), PhaseOnUserMessage, packet, cfg, pctx)
	if calls != 1 {
		t.Fatalf("expected downstream processor to still run after isolated error, got %d calls", calls)
	}
	if packet.LastProcessor != "ok" {
		t.Fatalf("expected last_processor to be the surviving processor, got %q", packet.LastProcessor)
	}
}

func TestDispatchEmptyPhaseIsNoop(t *testing.T) {
	d := NewDispatcher()
	packet := convpacket.New("asst", "topic", "")
	pctx := &Context{}
	d.Dispatch(context.Background(), PhaseOnUserMessage, packet, Config{}, pctx)
	if packet.LastProcessor != "" {
		t.Fatalf("expected no-op for unconfigured phase")
	}
}
