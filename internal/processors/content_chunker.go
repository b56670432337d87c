package processors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/memochater/core/internal/aiprovider"
	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/kind"
	"github.com/memochater/core/internal/observability"
	"github.com/memochater/core/internal/pipeline"
)

const chunkerPromptTemplate = `你是一个对话内容分析专家。请将以下对话内容按逻辑或步骤切分成独立的信息块。

要求：
1. 每个块应该是一个完整的逻辑单元（一个话题、一个步骤、一个结论等）
2. 为每个块生成一个简洁的总结标题（不超过50字）
3. 保留块的详细内容，内容可以包含任意字符

输出格式（XML，内容用CDATA包裹）：
<chunks>
  <chunk>
    <summary>简洁的总结标题</summary>
    <content><![CDATA[该块的详细内容，可包含任意字符]]></content>
    <type>fact</type>
  </chunk>
</chunks>

type可选值：fact/event/preference/knowledge/task/other

对话内容：
%s

请直接输出XML，不要有其他内容。`

const chunkerMaxAttempts = 3

// contentChunk is one parsed <chunk> element before conversion to a
// ShortTermMemory.
type contentChunk struct {
	Summary string
	Content string
	Type    string
}

// ContentChunker turns a completed turn's transcript into semantic chunks,
// each becoming a short-term memory, then clears the non-system messages so
// the next turn starts from a compact context.
type ContentChunker struct{}

func NewContentChunker() *ContentChunker { return &ContentChunker{} }

func (p *ContentChunker) Name() string         { return "ContentChunker" }
func (p *ContentChunker) RequiresMemory() bool { return true }

func (p *ContentChunker) Process(ctx context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	log := observability.LoggerWithTrace(ctx)

	conversation := renderTranscript(nonSystemMessages(packet.Messages), pctx.UserName, pctx.AssistantName)
	if conversation == "" {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"skipped": true,
			"reason":  "empty_conversation",
		})
	}

	model := pctx.ProcessorModel
	if model == "" {
		model = pctx.MainModel
	}
	prompt := fmt.Sprintf(chunkerPromptTemplate, conversation)

	var best []contentChunk
	var lastErr error
	for attempt := 1; attempt <= chunkerMaxAttempts; attempt++ {
		response, err := pctx.AI.Chat(ctx, []aiprovider.Message{{Role: string(convpacket.RoleUser), Content: prompt}}, model)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("pipeline_content_chunker_call_failed")
			continue
		}

		chunks, err := parseChunks(response)
		if err == nil {
			lastErr = nil
			if len(chunks) > len(best) {
				best = chunks
			}
			break
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("pipeline_content_chunker_parse_failed")
		if partial := partialParseChunks(response); len(partial) > len(best) {
			best = partial
		}
	}

	if len(best) == 0 {
		if lastErr != nil {
			return kind.New(kind.Parse, "ContentChunker.parse", lastErr)
		}
		return kind.New(kind.Parse, "ContentChunker.parse", fmt.Errorf("no chunks parsed"))
	}

	now := time.Now()
	millis := now.UnixMilli()
	for i, c := range best {
		packet.AddShortTermMemory(convpacket.ShortTermMemory{
			ID:           "chunk_" + strconv.FormatInt(millis, 10) + "_" + strconv.Itoa(i),
			Summary:      c.Summary,
			Content:      c.Content,
			MemoryType:   convpacket.MemoryType(c.Type),
			Relevance:    1.0,
			Confidence:   1.0,
			ShouldExpand: false,
			Source:       convpacket.MemoryCurrentConversation,
			Timestamp:    now,
		})
	}

	// Clear non-system messages: the chunked turn has been handed off to
	// short-term memory, so the next turn starts from a compact context.
	var systemOnly []convpacket.Message
	if len(packet.Messages) > 0 && packet.Messages[0].Role == convpacket.RoleSystem {
		systemOnly = []convpacket.Message{packet.Messages[0]}
	}
	packet.ReplaceMessages(systemOnly)

	return packet.SetProcessorState(p.Name(), map[string]any{
		"chunked":         true,
		"chunk_count":     len(best),
		"context_cleared": true,
	})
}

func nonSystemMessages(messages []convpacket.Message) []convpacket.Message {
	out := make([]convpacket.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == convpacket.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// parseChunks extracts the <chunks> (or first-<chunk>..last-</chunk>
// fallback) span and parses every <chunk> inside it. An empty result is an
// error so the caller's retry loop can fall back to partial salvage.
func parseChunks(response string) ([]contentChunk, error) {
	xmlContent, err := extractChunksSpan(response)
	if err != nil {
		return nil, err
	}

	chunks := extractAllChunks(xmlContent)
	if len(chunks) == 0 {
		preview := previewString(response, 500)
		return nil, fmt.Errorf("no <chunk> elements parsed from response, preview: %s", preview)
	}
	return chunks, nil
}

// partialParseChunks scans the raw response (ignoring whether a <chunks>
// wrapper was found at all) and keeps every <chunk>...</chunk> span that
// parses, used as the partial-salvage fallback across retry attempts.
func partialParseChunks(response string) []contentChunk {
	return extractAllChunks(response)
}

func extractChunksSpan(response string) (string, error) {
	if start := strings.Index(response, "<chunks>"); start >= 0 {
		if endOffset := strings.Index(response[start:], "</chunks>"); endOffset >= 0 {
			end := start + endOffset + len("</chunks>")
			return response[start:end], nil
		}
	}
	if firstChunk := strings.Index(response, "<chunk>"); firstChunk >= 0 {
		if lastChunkEnd := strings.LastIndex(response, "</chunk>"); lastChunkEnd >= 0 {
			end := lastChunkEnd + len("</chunk>")
			return response[firstChunk:end], nil
		}
	}
	preview := previewString(response, 300)
	return "", fmt.Errorf("no xml chunk structure found, preview: %s", preview)
}

func extractAllChunks(xmlContent string) []contentChunk {
	var chunks []contentChunk
	searchStart := 0
	for {
		rel := strings.Index(xmlContent[searchStart:], "<chunk>")
		if rel < 0 {
			break
		}
		chunkStart := searchStart + rel
		relEnd := strings.Index(xmlContent[chunkStart:], "</chunk>")
		if relEnd < 0 {
			break
		}
		chunkEnd := chunkStart + relEnd + len("</chunk>")
		chunkXML := xmlContent[chunkStart:chunkEnd]
		if c, ok := parseSingleChunk(chunkXML); ok {
			chunks = append(chunks, c)
		}
		searchStart = chunkEnd
	}
	return chunks
}

func parseSingleChunk(chunkXML string) (contentChunk, bool) {
	summary, ok := extractTagContent(chunkXML, "summary")
	if !ok {
		return contentChunk{}, false
	}
	content, ok := extractTagContentCDATA(chunkXML, "content")
	if !ok {
		return contentChunk{}, false
	}
	chunkType, ok := extractTagContent(chunkXML, "type")
	if !ok || chunkType == "" {
		chunkType = "other"
	}
	return contentChunk{Summary: summary, Content: content, Type: chunkType}, true
}

func extractTagContent(xml, tag string) (string, bool) {
	open, close := "<"+tag+">", "</"+tag+">"
	start := strings.Index(xml, open)
	if start < 0 {
		return "", false
	}
	contentStart := start + len(open)
	rel := strings.Index(xml[contentStart:], close)
	if rel < 0 {
		return "", false
	}
	return strings.TrimSpace(xml[contentStart : contentStart+rel]), true
}

func extractTagContentCDATA(xml, tag string) (string, bool) {
	open, close := "<"+tag+">", "</"+tag+">"
	start := strings.Index(xml, open)
	if start < 0 {
		return "", false
	}
	contentStart := start + len(open)
	rel := strings.Index(xml[contentStart:], close)
	if rel < 0 {
		return "", false
	}
	raw := xml[contentStart : contentStart+rel]

	if cdataStart := strings.Index(raw, "<![CDATA["); cdataStart >= 0 {
		if cdataEnd := strings.Index(raw, "]]>"); cdataEnd >= 0 {
			return raw[cdataStart+len("<![CDATA[") : cdataEnd], true
		}
	}
	return strings.TrimSpace(raw), true
}

func previewString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
