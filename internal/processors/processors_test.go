package processors

import (
	"context"

	"github.com/memochater/core/internal/aiprovider"
)

// stubAI is a minimal aiprovider.Provider for processor tests: Chat and
// ChatStream return a canned reply (ignoring the prompt), Embed/EmbedBatch
// derive a small deterministic vector from input length so cosine-similarity
// assertions are stable.
type stubAI struct {
	reply string
	calls int
}

func (s *stubAI) Chat(_ context.Context, _ []aiprovider.Message, _ string) (string, error) {
	s.calls++
	return s.reply, nil
}

func (s *stubAI) ChatStream(_ context.Context, _ []aiprovider.Message, _ string, onChunk func(string)) error {
	onChunk(s.reply)
	return nil
}

func (s *stubAI) Embed(_ context.Context, text string, _ string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubAI) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

// failingAI returns an error from Chat on its first N calls, then succeeds.
type failingAI struct {
	failCount int
	reply     string
	calls     int
}

func (f *failingAI) Chat(_ context.Context, _ []aiprovider.Message, _ string) (string, error) {
	f.calls++
	if f.calls <= f.failCount {
		return "", errChatFailed
	}
	return f.reply, nil
}

func (f *failingAI) ChatStream(_ context.Context, _ []aiprovider.Message, _ string, onChunk func(string)) error {
	onChunk(f.reply)
	return nil
}

func (f *failingAI) Embed(_ context.Context, text string, _ string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (f *failingAI) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type chatError string

func (e chatError) Error() string { return string(e) }

const errChatFailed = chatError("chat call failed")
