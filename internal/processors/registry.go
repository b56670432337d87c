package processors

import "github.com/memochater/core/internal/pipeline"

// RegisterAll registers every built-in processor with d.
func RegisterAll(d *pipeline.Dispatcher) {
	d.Register(NewHistorySimplifier())
	d.Register(NewSubconsciousProcessor())
	d.Register(NewContentChunker())
	d.Register(NewShortTermAssembler())
	d.Register(NewContextCleaner())
	d.Register(NewShortTermExpander())
	d.Register(NewShortTermVectorizer())
	d.Register(NewMemoryCommitter())
}

// DefaultConfig returns the documented default pipeline configuration
// wiring the built-in processors to their phases in the order that makes
// their ABI contracts hold: ContextCleaner before ShortTermAssembler so a
// stale injection never survives into the assembled context, ShortTermAssembler
// before ShortTermExpander so the expander's insertion point is the freshly
// assembled context's final message, and ContentChunker before
// ShortTermVectorizer so the vectorizer sees the turn's new chunks.
func DefaultConfig() pipeline.Config {
	return pipeline.Config{
		pipeline.PhaseOnUserMessage: {
			{Name: "ContextCleaner"},
			{Name: "HistorySimplifier"},
			{Name: "ShortTermAssembler"},
			{Name: "ShortTermExpander"},
		},
		pipeline.PhaseAfterAIResponse: {
			{Name: "SubconsciousProcessor"},
			{Name: "ContentChunker"},
			{Name: "ShortTermVectorizer"},
			{Name: "MemoryCommitter"},
		},
	}
}
