package processors

import (
	"context"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/memsubstrate"
	"github.com/memochater/core/internal/observability"
	"github.com/memochater/core/internal/pipeline"
)

// defaultCommitImportance is used for every promoted memory, since
// ShortTermMemory carries no importance field of its own (only relevance
// and confidence).
const defaultCommitImportance = 0.7

// minCommitConfidence is the promotion threshold this implementation applies:
// a short-term memory is promoted only once the chunker (or an equivalent
// upstream producer) has expressed at least this much confidence in it.
const minCommitConfidence = 0.5

// MemoryCommitter promotes high-confidence current-conversation short-term
// memories into the long-term store, one LongTermMemory per promoted entry,
// category "extracted", importance defaultCommitImportance.
type MemoryCommitter struct{}

func NewMemoryCommitter() *MemoryCommitter { return &MemoryCommitter{} }

func (p *MemoryCommitter) Name() string         { return "MemoryCommitter" }
func (p *MemoryCommitter) RequiresMemory() bool { return true }

func (p *MemoryCommitter) Process(ctx context.Context, packet *convpacket.Packet, pctx *pipeline.Context) error {
	log := observability.LoggerWithTrace(ctx)

	memories := packet.GetShortTermMemory()
	committed := 0
	for _, m := range memories {
		if m.Source != convpacket.MemoryCurrentConversation || m.Confidence < minCommitConfidence {
			continue
		}

		err := pctx.LongTerm.Store(ctx, memsubstrate.LongTermMemory{
			ID:            m.ID,
			Content:       m.Content,
			Category:      "extracted",
			Importance:    defaultCommitImportance,
			SourceSession: pctx.TopicID,
			Tags:          []string{string(m.MemoryType)},
		})
		if err != nil {
			log.Error().Err(err).Str("memory_id", m.ID).Msg("pipeline_memory_committer_store_failed")
			continue
		}
		committed++
	}

	return packet.SetProcessorState(p.Name(), map[string]any{
		"committed":       true,
		"promoted_count":  committed,
		"candidate_count": len(memories),
	})
}
