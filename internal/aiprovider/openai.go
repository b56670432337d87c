package aiprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/memochater/core/internal/kind"
	"github.com/memochater/core/internal/observability"
)

// OpenAIProvider implements Provider over the OpenAI-compatible chat and
// embeddings endpoints.
type OpenAIProvider struct {
	client         openai.Client
	defaultModel   string
	embeddingModel string
}

// NewOpenAIProvider builds a Provider against baseURL (empty for the public
// OpenAI endpoint) using apiKey. defaultModel/embeddingModel are used when
// callers pass an empty model string.
func NewOpenAIProvider(baseURL, apiKey, defaultModel, embeddingModel string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client:         openai.NewClient(opts...),
		defaultModel:   defaultModel,
		embeddingModel: embeddingModel,
	}
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (p *OpenAIProvider) pickModel(model string) string {
	if model != "" {
		return model
	}
	return p.defaultModel
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    p.pickModel(model),
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		log.Error().Err(err).Str("model", p.pickModel(model)).Msg("openai_chat_error")
		return "", kind.New(kind.AI, "Chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", kind.New(kind.AI, "Chat", fmt.Errorf("no choices returned"))
	}
	return StripThinkingTags(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []Message, model string, onChunk func(string)) error {
	log := observability.LoggerWithTrace(ctx)
	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    p.pickModel(model),
		Messages: toOpenAIMessages(messages),
	})
	filter := &ThinkingTagFilter{}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if out := filter.Feed(delta); out != "" {
			onChunk(out)
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("model", p.pickModel(model)).Msg("openai_chat_stream_error")
		return kind.New(kind.AI, "ChatStream", err)
	}
	if tail := filter.Flush(); tail != "" {
		onChunk(tail)
	}
	return nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string, model string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, kind.New(kind.AI, "Embed", fmt.Errorf("no embedding returned"))
	}
	return out[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	m := model
	if m == "" {
		m = p.embeddingModel
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: m,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, kind.New(kind.AI, "EmbedBatch", err)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}
