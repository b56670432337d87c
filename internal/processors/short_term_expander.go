package processors

import (
	"context"
	"strings"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/pipeline"
)

// ShortTermExpander inserts the full content of any short-term memory
// flagged ShouldExpand immediately before the turn's final (most recent)
// message, so the model sees the detail behind a summary it has been shown.
type ShortTermExpander struct{}

func NewShortTermExpander() *ShortTermExpander { return &ShortTermExpander{} }

func (p *ShortTermExpander) Name() string         { return "ShortTermExpander" }
func (p *ShortTermExpander) RequiresMemory() bool { return true }

func (p *ShortTermExpander) Process(_ context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	memories := packet.GetShortTermMemory()
	var toExpand []convpacket.ShortTermMemory
	for _, m := range memories {
		if m.ShouldExpand {
			toExpand = append(toExpand, m)
		}
	}
	if len(toExpand) == 0 {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"expanded": false,
			"reason":   "no_memories_marked_for_expansion",
		})
	}

	blocks := make([]string, 0, len(toExpand))
	expandedIDs := make([]string, 0, len(toExpand))
	for _, m := range toExpand {
		blocks = append(blocks, "["+m.Timestamp.Format("2006-01-02 15:04:05")+"]["+string(m.MemoryType)+"]"+m.Summary+"\n"+m.Content)
		expandedIDs = append(expandedIDs, m.ID)
	}
	expandedText := strings.Join(blocks, "\n\n")
	if expandedText == "" {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"expanded": false,
			"reason":   "expanded_text_empty",
		})
	}

	userName := pctx.UserName
	if userName == "" {
		userName = "user"
	}
	injection := shortTermExpansionPrefix + userName + "的标记，以下记忆需要展开\n---展开的短期记忆---\n" + expandedText + "\n---短期记忆结束---"

	messages := packet.Messages
	insertPos := len(messages)
	if insertPos > 0 {
		insertPos--
	}
	rebuilt := make([]convpacket.Message, 0, len(messages)+1)
	rebuilt = append(rebuilt, messages[:insertPos]...)
	rebuilt = append(rebuilt, convpacket.Message{Role: convpacket.RoleUser, Content: injection})
	rebuilt = append(rebuilt, messages[insertPos:]...)
	packet.ReplaceMessages(rebuilt)

	return packet.SetProcessorState(p.Name(), map[string]any{
		"expanded":        true,
		"expanded_ids":    expandedIDs,
		"expanded_count":  len(toExpand),
		"insert_position": insertPos,
	})
}
