package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/memochater/core/internal/aiprovider"
	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/observability"
	"github.com/memochater/core/internal/pipeline"
	"github.com/memochater/core/internal/util"
)

// defaultHistorySimplifyThreshold is used when a Context leaves
// HistorySimplifyThreshold unset (<= 0).
const defaultHistorySimplifyThreshold = 3000

const summarizePromptTemplate = `请将以下历史对话压缩为一段简洁的摘要，保留关键事实、决定和未解决的问题，不要添加新信息：

%s

直接输出摘要正文，不要任何前缀或解释。`

// HistorySimplifier compresses an over-long message transcript into a single
// summary message, preserving the system message and the most recent user
// message so the model retains the turn it is about to answer.
type HistorySimplifier struct{}

func NewHistorySimplifier() *HistorySimplifier { return &HistorySimplifier{} }

func (p *HistorySimplifier) Name() string         { return "HistorySimplifier" }
func (p *HistorySimplifier) RequiresMemory() bool { return true }

func (p *HistorySimplifier) Process(ctx context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	log := observability.LoggerWithTrace(ctx)
	messages := packet.Messages

	total := 0
	for _, m := range messages {
		total += util.CountTokens(m.Content)
	}

	threshold := pctx.HistorySimplifyThreshold
	if threshold <= 0 {
		threshold = defaultHistorySimplifyThreshold
	}
	if total < threshold {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"skipped":      true,
			"reason":       "under_threshold",
			"token_count":  total,
		})
	}

	if len(messages) < 3 {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"skipped": true,
			"reason":  "too_few_messages",
		})
	}

	var systemMsg *convpacket.Message
	lastUser := messages[len(messages)-1]
	middle := messages
	if messages[0].Role == convpacket.RoleSystem {
		sys := messages[0]
		systemMsg = &sys
		middle = messages[1 : len(messages)-1]
	} else {
		middle = messages[:len(messages)-1]
	}

	if len(middle) == 0 {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"skipped": true,
			"reason":  "nothing_to_simplify",
		})
	}

	transcript := renderTranscript(middle, pctx.UserName, pctx.AssistantName)
	model := pctx.ProcessorModel
	if model == "" {
		model = pctx.MainModel
	}
	prompt := fmt.Sprintf(summarizePromptTemplate, transcript)
	summary, err := pctx.AI.Chat(ctx, []aiprovider.Message{{Role: string(convpacket.RoleUser), Content: prompt}}, model)
	if err != nil {
		log.Error().Err(err).Msg("pipeline_history_simplifier_summarize_failed")
		return packet.SetProcessorState(p.Name(), map[string]any{
			"simplified": false,
			"error":      err.Error(),
		})
	}
	summary = strings.TrimSpace(summary)

	rebuilt := make([]convpacket.Message, 0, 3)
	if systemMsg != nil {
		rebuilt = append(rebuilt, *systemMsg)
	}
	rebuilt = append(rebuilt, convpacket.Message{Role: convpacket.RoleAssistant, Content: "之前对话摘要：" + summary})
	rebuilt = append(rebuilt, lastUser)
	packet.ReplaceMessages(rebuilt)

	return packet.SetProcessorState(p.Name(), map[string]any{
		"simplified":       true,
		"original_count":   len(messages),
		"compressed_count": len(rebuilt),
		"token_count":      total,
	})
}

// renderTranscript formats non-system messages as "【name】: content" blocks,
// the same rendering ContentChunker uses for the processor model prompt.
func renderTranscript(messages []convpacket.Message, userName, assistantName string) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		name := roleLabel(m.Role, userName, assistantName)
		lines = append(lines, fmt.Sprintf("【%s】: %s", name, m.Content))
	}
	return strings.Join(lines, "\n\n")
}

func roleLabel(role convpacket.Role, userName, assistantName string) string {
	switch role {
	case convpacket.RoleUser:
		if userName != "" {
			return userName
		}
		return "user"
	case convpacket.RoleAssistant:
		if assistantName != "" {
			return assistantName
		}
		return "assistant"
	default:
		return string(role)
	}
}
