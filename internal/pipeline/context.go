package pipeline

import (
	"context"

	"github.com/memochater/core/internal/aiprovider"
	"github.com/memochater/core/internal/memsubstrate"
)

// Context is the per-(assistant,topic) bundle a ProcessorContextFactory
// materializes before a phase dispatch: assistant config, topic type,
// model names, AI client, and the memory-substrate handles a processor needs.
type Context struct {
	AssistantID string
	TopicID     string
	UserName    string
	AssistantName string

	MemoryEnabled bool
	DataDir       string

	MainModel      string
	ProcessorModel string
	embeddingModel string

	AI          aiprovider.Provider
	LongTerm    *memsubstrate.LongTermStore
	Pending     *memsubstrate.PendingQueue
	ShortTermFiles *CachedShortTermFiles

	// HistorySimplifyThreshold is the caller-defined token-estimate threshold
	// (util.CountTokens summed over all messages) HistorySimplifier compares
	// against.
	HistorySimplifyThreshold int
}

// EmbeddingModel returns the model name embedding calls should use.
func (c *Context) EmbeddingModel() string {
	return c.embeddingModel
}

// CachedShortTermFiles aliases the memsubstrate repository type so processors
// only need to import package pipeline for their context dependencies.
type CachedShortTermFiles = memsubstrate.CachedShortTermFileRepository

// ContextFactory builds a Context for a given (assistant_id, topic_id) pair.
type ContextFactory interface {
	Build(ctx context.Context, assistantID, topicID string) (*Context, error)
}

// StaticContextFactory returns the same pre-built Context for any topic,
// overriding only the identifiers — useful for tests and for single-assistant
// deployments where per-assistant config lookup is out of scope.
type StaticContextFactory struct {
	Template Context
}

// Build returns a copy of the template stamped with assistantID/topicID.
func (f *StaticContextFactory) Build(_ context.Context, assistantID, topicID string) (*Context, error) {
	c := f.Template
	c.AssistantID = assistantID
	c.TopicID = topicID
	return &c, nil
}

// NewContext is a convenience constructor used by tests and simple factories.
func NewContext(assistantID, topicID, embeddingModel string) *Context {
	return &Context{AssistantID: assistantID, TopicID: topicID, embeddingModel: embeddingModel}
}

// SetEmbeddingModel overrides the embedding model carried by this context.
func (c *Context) SetEmbeddingModel(model string) {
	c.embeddingModel = model
}
