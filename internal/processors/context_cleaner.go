package processors

import (
	"context"
	"strings"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

// ContextCleaner removes transient injected messages (ShortTermAssembler's
// memory preface, ShortTermExpander's expansion block) so they never bleed
// into persistent history or a later ContentChunker pass.
type ContextCleaner struct{}

func NewContextCleaner() *ContextCleaner { return &ContextCleaner{} }

func (p *ContextCleaner) Name() string         { return "ContextCleaner" }
func (p *ContextCleaner) RequiresMemory() bool { return true }

func (p *ContextCleaner) Process(_ context.Context, packet *convpacket.Packet, _ *pipeline.Context) error {
	before := packet.Messages
	kept := make([]convpacket.Message, 0, len(before))
	removed := 0
	for _, m := range before {
		if shouldRemoveInjection(m) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	packet.ReplaceMessages(kept)

	return packet.SetProcessorState(p.Name(), map[string]any{
		"cleaned":       true,
		"removed_count": removed,
		"before_count":  len(before),
		"after_count":   len(kept),
	})
}

func shouldRemoveInjection(m convpacket.Message) bool {
	if m.Role != convpacket.RoleUser {
		return false
	}
	return strings.HasPrefix(m.Content, shortTermInjectionPrefix) || strings.HasPrefix(m.Content, shortTermExpansionPrefix)
}
