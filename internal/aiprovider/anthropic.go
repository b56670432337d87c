package aiprovider

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/memochater/core/internal/kind"
	"github.com/memochater/core/internal/observability"
)

const defaultAnthropicMaxTokens int64 = 4096

// AnthropicProvider implements Provider over the Anthropic Messages API.
// Anthropic has no embeddings endpoint, so Embed/EmbedBatch delegate to a
// separate Embedder (typically an OpenAIProvider used for embeddings only).
type AnthropicProvider struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	Embedder  Embedder
}

// NewAnthropicProvider builds a Provider against the Anthropic Messages API.
// embedder may be nil if the caller never calls Embed/EmbedBatch.
func NewAnthropicProvider(apiKey, baseURL, defaultModel string, embedder Embedder) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return &AnthropicProvider{
		sdk:       anthropic.NewClient(opts...),
		model:     defaultModel,
		maxTokens: defaultAnthropicMaxTokens,
		Embedder:  embedder,
	}
}

func (p *AnthropicProvider) pickModel(model string) string {
	if model != "" {
		return model
	}
	return p.model
}

// splitSystem pulls leading system-role messages out (Anthropic takes system
// as a top-level param, not a message-list entry).
func splitSystem(messages []Message) (string, []anthropic.MessageParam) {
	var sys []string
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			sys = append(sys, m.Content)
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(sys, "\n"), converted
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, model string) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	sys, converted := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.pickModel(model)),
		Messages:  converted,
		MaxTokens: p.maxTokens,
	}
	if sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("model", string(params.Model)).Msg("anthropic_chat_error")
		return "", kind.New(kind.AI, "Chat", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return StripThinkingTags(text.String()), nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, messages []Message, model string, onChunk func(string)) error {
	log := observability.LoggerWithTrace(ctx)
	sys, converted := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.pickModel(model)),
		Messages:  converted,
		MaxTokens: p.maxTokens,
	}
	if sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	stream := p.sdk.Messages.NewStreaming(ctx, params)
	filter := &ThinkingTagFilter{}
	for stream.Next() {
		event := stream.Current()
		blockDelta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := blockDelta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || textDelta.Text == "" {
			continue
		}
		if out := filter.Feed(textDelta.Text); out != "" {
			onChunk(out)
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("model", string(params.Model)).Msg("anthropic_chat_stream_error")
		return kind.New(kind.AI, "ChatStream", err)
	}
	if tail := filter.Flush(); tail != "" {
		onChunk(tail)
	}
	return nil
}

func (p *AnthropicProvider) Embed(ctx context.Context, text string, model string) ([]float32, error) {
	if p.Embedder == nil {
		return nil, kind.New(kind.Config, "Embed", fmt.Errorf("no embedder configured for anthropic provider"))
	}
	return p.Embedder.Embed(ctx, text, model)
}

func (p *AnthropicProvider) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if p.Embedder == nil {
		return nil, kind.New(kind.Config, "EmbedBatch", fmt.Errorf("no embedder configured for anthropic provider"))
	}
	return p.Embedder.EmbedBatch(ctx, texts, model)
}
