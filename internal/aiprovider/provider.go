// Package aiprovider defines the minimal completion/embedding surface the
// pipeline and its processors consume: no tool calls, no streaming tool
// deltas, no compaction state.
package aiprovider

import "context"

// Message is a single chat turn passed to a Provider. Callers translate
// convpacket.Message into this shape at the package boundary so aiprovider
// stays independent of the packet representation.
type Message struct {
	Role    string
	Content string
}

// Provider is the completion/embedding surface consumed by the pipeline
// and its processors.
type Provider interface {
	// Chat returns the full assistant response for the given history.
	Chat(ctx context.Context, messages []Message, model string) (string, error)

	// ChatStream streams the assistant response, invoking onChunk for each
	// delta as it arrives; the concatenation of all chunks is the final
	// response, which the caller must assemble itself.
	ChatStream(ctx context.Context, messages []Message, model string, onChunk func(string)) error

	Embedder
}

// Embedder is the embedding subset of Provider, split out so memsubstrate
// components can depend on only what they need.
type Embedder interface {
	Embed(ctx context.Context, text string, model string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error)
}
