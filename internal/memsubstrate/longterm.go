package memsubstrate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memochater/core/internal/aiprovider"
	"github.com/memochater/core/internal/kind"
	"github.com/memochater/core/internal/vectorstore"
)

// LongTermStore composes a vectorstore.Store with a FileStore and an
// embedding client. The embedding model may be swapped at runtime under
// an RWMutex so in-flight calls see a consistent choice.
type LongTermStore struct {
	store    vectorstore.Store
	files    *FileStore
	embedder aiprovider.Embedder

	mu                sync.RWMutex
	defaultModel      string
	embeddingModel    string
	embeddingModelSet bool
}

// NewLongTermStore wires a vector store, a file-blob store rooted at
// fileStorageDir, and an embedder. defaultEmbeddingModel is used unless
// SetEmbeddingModel overrides it.
func NewLongTermStore(store vectorstore.Store, fileStorageDir string, embedder aiprovider.Embedder, defaultEmbeddingModel string) (*LongTermStore, error) {
	files, err := NewFileStore(fileStorageDir)
	if err != nil {
		return nil, err
	}
	return &LongTermStore{
		store:          store,
		files:          files,
		embedder:       embedder,
		defaultModel:   defaultEmbeddingModel,
		embeddingModel: defaultEmbeddingModel,
	}, nil
}

// SetEmbeddingModel overrides the embedding model used by subsequent calls.
// Passing "" clears the override and falls back to the constructor default.
func (s *LongTermStore) SetEmbeddingModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingModelSet = model != ""
	if !s.embeddingModelSet {
		model = s.defaultModel
	}
	s.embeddingModel = model
}

// EmbeddingModel returns the model currently in effect.
func (s *LongTermStore) EmbeddingModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingModel
}

func (s *LongTermStore) currentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingModel
}

func (s *LongTermStore) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text, s.currentModel())
	if err != nil {
		return nil, kind.New(kind.Memory, "embed", err)
	}
	return vec, nil
}

func (s *LongTermStore) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, texts, s.currentModel())
	if err != nil {
		return nil, kind.New(kind.Memory, "embedBatch", err)
	}
	return vecs, nil
}

// Store embeds memory.Content and upserts the point ( store).
func (s *LongTermStore) Store(ctx context.Context, memory LongTermMemory) error {
	vec, err := s.embed(ctx, memory.Content)
	if err != nil {
		return err
	}
	return s.store.Upsert(ctx, vectorstore.Point{
		ID:      memory.ID,
		Vector:  vec,
		Payload: memoryToPayload(memory),
	})
}

// StoreRaw stores a RawExtractedMemory, materializing any attached file
// blobs first and stamping their generated ids into the memory's FileRefs.
func (s *LongTermStore) StoreRaw(ctx context.Context, raw RawExtractedMemory, sourceSession string, newID func() string) (LongTermMemory, error) {
	now := time.Now().UTC()
	memory := LongTermMemory{
		ID:            newID(),
		Content:       raw.Content,
		Category:      raw.Category,
		Importance:    raw.Importance,
		LastAccessed:  now,
		CreatedAt:     now,
		SourceSession: sourceSession,
	}
	files := make([]MemoryFile, 0, len(raw.FileRefs))
	for _, ref := range raw.FileRefs {
		f := MemoryFile{
			ID:          newID(),
			OriginalRef: ref.LocalID,
			MemoryID:    memory.ID,
			FileType:    ref.FileType,
			Content:     ref.Content,
			Language:    ref.Language,
			CreatedAt:   now,
		}
		files = append(files, f)
		memory.FileRefs = append(memory.FileRefs, f.ID)
	}
	if len(files) > 0 {
		if err := s.files.StoreBatch(files); err != nil {
			return LongTermMemory{}, err
		}
	}
	if err := s.Store(ctx, memory); err != nil {
		return LongTermMemory{}, err
	}
	return memory, nil
}

// StoreBatch embeds every memory's content in one batched call (or, for
// providers without native batch embedding support, fans out concurrently
// via errgroup) and upserts all points together.
func (s *LongTermStore) StoreBatch(ctx context.Context, memories []LongTermMemory) error {
	if len(memories) == 0 {
		return nil
	}
	contents := make([]string, len(memories))
	for i, m := range memories {
		contents[i] = m.Content
	}

	vectors := make([][]float32, len(memories))
	if batch, err := s.embedBatch(ctx, contents); err == nil && len(batch) == len(memories) {
		vectors = batch
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, content := range contents {
			i, content := i, content
			g.Go(func() error {
				vec, err := s.embed(gctx, content)
				if err != nil {
					return err
				}
				vectors[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	points := make([]vectorstore.Point, len(memories))
	for i, m := range memories {
		points[i] = vectorstore.Point{ID: m.ID, Vector: vectors[i], Payload: memoryToPayload(m)}
	}
	return s.store.UpsertBatch(ctx, points)
}

// Search embeds query and runs an unfiltered KNN search.
func (s *LongTermStore) Search(ctx context.Context, query string, topK int) ([]RetrievedMemory, error) {
	return s.SearchWithFilter(ctx, query, topK, "", nil)
}

// SearchWithFilter embeds query and runs a KNN search, restricted by the
// given category and/or minimum importance when non-zero/non-nil.
func (s *LongTermStore) SearchWithFilter(ctx context.Context, query string, topK int, category string, minImportance *float64) ([]RetrievedMemory, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	filter := buildFilter(category, minImportance)
	results, err := s.store.Search(ctx, vec, topK, filter)
	if err != nil {
		return nil, kind.New(kind.Memory, "SearchWithFilter", err)
	}
	out := make([]RetrievedMemory, 0, len(results))
	for _, r := range results {
		if m, ok := payloadToMemory(r.ID, r.Payload); ok {
			out = append(out, RetrievedMemory{Memory: m, Relevance: r.Score})
		}
	}
	return out, nil
}

// Get looks up a memory by id via a filter-only search against a zero
// vector, since the vector store offers no direct key lookup ( get).
func (s *LongTermStore) Get(ctx context.Context, id string, vectorDimension int) (*LongTermMemory, error) {
	zero := make([]float32, vectorDimension)
	filter := vectorstore.Match("id", id)
	results, err := s.store.Search(ctx, zero, 1, &filter)
	if err != nil {
		return nil, kind.New(kind.Memory, "Get", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	m, ok := payloadToMemory(results[0].ID, results[0].Payload)
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// RecordAccess increments access_count and refreshes last_accessed for id.
func (s *LongTermStore) RecordAccess(ctx context.Context, id string, vectorDimension int) error {
	memory, err := s.Get(ctx, id, vectorDimension)
	if err != nil {
		return err
	}
	if memory == nil {
		return nil
	}
	memory.RecordAccess(time.Now().UTC())
	return s.store.UpdatePayload(ctx, id, vectorstore.Payload{
		"access_count":  memory.AccessCount,
		"last_accessed": memory.LastAccessed.Unix(),
	})
}

// Delete removes linked file blobs, then the vector point ( delete).
func (s *LongTermStore) Delete(ctx context.Context, id string) error {
	_, _ = s.files.DeleteByMemory(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return kind.New(kind.Memory, "Delete", err)
	}
	return nil
}

// GetFiles returns the file blobs attached to memoryID.
func (s *LongTermStore) GetFiles(memoryID string) ([]MemoryFile, error) {
	return s.files.GetByMemory(memoryID)
}

// Stats reports memory and file counts.
func (s *LongTermStore) Stats(ctx context.Context) (StoreStats, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return StoreStats{}, kind.New(kind.Memory, "Stats", err)
	}
	totalFiles, _ := s.files.Stats()
	return StoreStats{MemoryCount: n, FileCount: totalFiles}, nil
}

// ListAll scrolls the whole collection with relevance fixed at 1.0 (
// list_all).
func (s *LongTermStore) ListAll(ctx context.Context, limit int) ([]RetrievedMemory, error) {
	results, err := s.store.Scroll(ctx, limit, nil)
	if err != nil {
		return nil, kind.New(kind.Memory, "ListAll", err)
	}
	out := make([]RetrievedMemory, 0, len(results))
	for _, r := range results {
		if m, ok := payloadToMemory(r.ID, r.Payload); ok {
			out = append(out, RetrievedMemory{Memory: m, Relevance: 1.0})
		}
	}
	return out, nil
}

func buildFilter(category string, minImportance *float64) *vectorstore.Filter {
	var must []vectorstore.Condition
	if category != "" {
		must = append(must, vectorstore.Condition{Field: "category", Op: vectorstore.OpEq, Value: category})
	}
	if minImportance != nil {
		must = append(must, vectorstore.Condition{Field: "importance", Op: vectorstore.OpGte, Value: *minImportance})
	}
	if len(must) == 0 {
		return nil
	}
	return &vectorstore.Filter{Must: must}
}

func memoryToPayload(m LongTermMemory) vectorstore.Payload {
	p := vectorstore.Payload{
		"id":            m.ID,
		"content":       m.Content,
		"category":      m.Category,
		"importance":    m.Importance,
		"access_count":  m.AccessCount,
		"last_accessed": m.LastAccessed.Unix(),
		"created_at":    m.CreatedAt.Unix(),
	}
	if m.SourceSession != "" {
		p["source_session"] = m.SourceSession
	}
	if len(m.FileRefs) > 0 {
		refs := make([]any, len(m.FileRefs))
		for i, r := range m.FileRefs {
			refs[i] = r
		}
		p["file_refs"] = refs
	}
	if len(m.Tags) > 0 {
		tags := make([]any, len(m.Tags))
		for i, t := range m.Tags {
			tags[i] = t
		}
		p["tags"] = tags
	}
	return p
}

func payloadToMemory(id string, p vectorstore.Payload) (LongTermMemory, bool) {
	content, ok1 := p["content"].(string)
	category, ok2 := p["category"].(string)
	if !ok1 || !ok2 {
		return LongTermMemory{}, false
	}
	m := LongTermMemory{
		ID:         id,
		Content:    content,
		Category:   category,
		Importance: toFloat64(p["importance"]),
		AccessCount: toInt64(p["access_count"]),
	}
	if ts := toInt64(p["last_accessed"]); ts != 0 {
		m.LastAccessed = time.Unix(ts, 0).UTC()
	}
	if ts := toInt64(p["created_at"]); ts != 0 {
		m.CreatedAt = time.Unix(ts, 0).UTC()
	}
	if s, ok := p["source_session"].(string); ok {
		m.SourceSession = s
	}
	m.FileRefs = toStringList(p["file_refs"])
	m.Tags = toStringList(p["tags"])
	return m, true
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return 0
	}
}

func toStringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
