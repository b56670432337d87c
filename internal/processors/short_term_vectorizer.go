package processors

import (
	"context"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/kind"
	"github.com/memochater/core/internal/memsubstrate"
	"github.com/memochater/core/internal/observability"
	"github.com/memochater/core/internal/pipeline"
)

// ShortTermVectorizer synchronizes the per-topic short-term vector file with
// the packet's short-term memory pool: every memory gets a dual
// (summary+content) embedding and is upserted by id, after which the file is
// rewritten atomically.
type ShortTermVectorizer struct{}

func NewShortTermVectorizer() *ShortTermVectorizer { return &ShortTermVectorizer{} }

func (p *ShortTermVectorizer) Name() string         { return "ShortTermVectorizer" }
func (p *ShortTermVectorizer) RequiresMemory() bool { return true }

func (p *ShortTermVectorizer) Process(ctx context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	log := observability.LoggerWithTrace(ctx)

	memories := packet.GetShortTermMemory()
	if len(memories) == 0 {
		return packet.SetProcessorState(p.Name(), map[string]any{
			"vectorized": false,
			"reason":     "no_memories",
		})
	}

	model := pctx.EmbeddingModel()
	file, err := pctx.ShortTermFiles.Load(ctx, pctx.AssistantID, pctx.TopicID, model)
	if err != nil {
		return kind.New(kind.Memory, "ShortTermVectorizer.Load", err)
	}

	newCount, updateCount := 0, 0
	existing := make(map[string]bool, len(file.Vectors))
	for _, v := range file.Vectors {
		existing[v.ID] = true
	}

	for _, m := range memories {
		summaryEmbedding, err := pctx.AI.Embed(ctx, m.Summary, model)
		if err != nil {
			log.Warn().Err(err).Str("memory_id", m.ID).Msg("pipeline_short_term_vectorizer_summary_embed_failed")
			continue
		}
		contentEmbedding, err := pctx.AI.Embed(ctx, m.Content, model)
		if err != nil {
			log.Warn().Err(err).Str("memory_id", m.ID).Msg("pipeline_short_term_vectorizer_content_embed_failed")
			continue
		}

		vm := memsubstrate.VectorizedMemory{
			ID:               m.ID,
			Summary:          m.Summary,
			Content:          m.Content,
			MemoryType:       m.MemoryType,
			Source:           m.Source,
			Timestamp:        m.Timestamp,
			ShouldExpand:     m.ShouldExpand,
			Confidence:       m.Confidence,
			SummaryEmbedding: summaryEmbedding,
			ContentEmbedding: contentEmbedding,
		}
		if existing[m.ID] {
			updateCount++
		} else {
			newCount++
			existing[m.ID] = true
		}
		file.Upsert(vm)
	}

	if err := pctx.ShortTermFiles.Save(ctx, pctx.AssistantID, pctx.TopicID, file, model); err != nil {
		return kind.New(kind.Memory, "ShortTermVectorizer.Save", err)
	}

	return packet.SetProcessorState(p.Name(), map[string]any{
		"vectorized":  true,
		"new_count":   newCount,
		"update_count": updateCount,
		"total_count": len(file.Vectors),
	})
}
