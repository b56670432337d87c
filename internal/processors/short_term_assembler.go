package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

// shortTermInjectionPrefix and shortTermExpansionPrefix are the normative
// markers ContextCleaner matches on; any processor that injects a
// transient, cleanable memory message must start its content with one of
// these.
const (
	shortTermInjectionPrefix = "【系统消息-短期记忆】现在为你注入"
	shortTermExpansionPrefix = "【系统消息-短期记忆】根据"
)

const assemblerTemplate = shortTermInjectionPrefix + "短期记忆，你现在正在与%s进行交谈\n---短期记忆---\n%s\n---短期记忆结束---\n"

// ShortTermAssembler rebuilds the outgoing context around the packet's
// short-term memory pool: system message, one injected "recalled memory"
// user message, then the turn's original user input.
type ShortTermAssembler struct{}

func NewShortTermAssembler() *ShortTermAssembler { return &ShortTermAssembler{} }

func (p *ShortTermAssembler) Name() string         { return "ShortTermAssembler" }
func (p *ShortTermAssembler) RequiresMemory() bool { return true }

func (p *ShortTermAssembler) Process(_ context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	memories := packet.GetShortTermMemorySorted()
	if len(memories) == 0 {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"skipped": true,
			"reason":  "no_short_term_memory",
		})
	}

	var systemOnly []convpacket.Message
	if len(packet.Messages) > 0 && packet.Messages[0].Role == convpacket.RoleSystem {
		systemOnly = []convpacket.Message{packet.Messages[0]}
	}

	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, "["+string(m.MemoryType)+"]"+m.Summary)
	}
	memoriesText := "（暂无短期记忆）"
	if len(lines) > 0 {
		memoriesText = strings.Join(lines, "\n")
	}

	userName := pctx.UserName
	if userName == "" {
		userName = "user"
	}
	injection := fmt.Sprintf(assemblerTemplate, userName, memoriesText)

	rebuilt := append(systemOnly, convpacket.Message{Role: convpacket.RoleUser, Content: injection})
	if packet.UserInput != "" {
		rebuilt = append(rebuilt, convpacket.Message{Role: convpacket.RoleUser, Content: packet.UserInput})
	}
	packet.ReplaceMessages(rebuilt)

	return packet.SetProcessorState(p.Name(), map[string]any{
		"assembled":       true,
		"memory_count":    len(memories),
		"context_cleared": true,
	})
}
