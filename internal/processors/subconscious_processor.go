package processors

import (
	"context"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

// SubconsciousProcessor records the just-completed turn in the packet's
// thinking pool: the user input verbatim (with a fixed prefix) tagged
// UserAnalysis, and the AI response verbatim (with a fixed prefix) tagged
// SelfReflection. It makes no model call and performs no affect or intent
// analysis of either text.
type SubconsciousProcessor struct{}

func NewSubconsciousProcessor() *SubconsciousProcessor { return &SubconsciousProcessor{} }

func (p *SubconsciousProcessor) Name() string         { return "SubconsciousProcessor" }
func (p *SubconsciousProcessor) RequiresMemory() bool { return true }

func (p *SubconsciousProcessor) Process(ctx context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	if packet.UserInput == "" && packet.AIResponse == "" {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"skipped": true,
			"reason":  "empty_turn",
		})
	}

	if packet.UserInput != "" {
		packet.AddThinking("用户发言: "+packet.UserInput, convpacket.ThinkingUserAnalysis)
	}
	if packet.AIResponse != "" {
		packet.AddThinking("本轮回应要点: "+packet.AIResponse, convpacket.ThinkingSelfReflection)
	}

	return packet.SetProcessorState(p.Name(), map[string]any{
		"processed": true,
	})
}
