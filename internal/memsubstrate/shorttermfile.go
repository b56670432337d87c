package memsubstrate

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/kind"
)

// VectorizedMemory is one dual-embedded record in a ShortTermVectorFile,
// schema bit-exact per the persisted-state layout: both a summary and a
// content embedding are kept so a query can weigh either half independently.
type VectorizedMemory struct {
	ID               string                 `json:"id"`
	Summary          string                 `json:"summary"`
	Content          string                 `json:"content"`
	MemoryType       convpacket.MemoryType  `json:"memory_type"`
	Source           convpacket.MemorySource `json:"source"`
	Timestamp        time.Time              `json:"timestamp"`
	ShouldExpand     bool                   `json:"should_expand"`
	Confidence       float64                `json:"confidence"`
	SummaryEmbedding []float32              `json:"summary_embedding"`
	ContentEmbedding []float32              `json:"content_embedding"`
}

// VectorFileMetadata describes the embedding model and dimension a
// ShortTermVectorFile's vectors were produced with.
type VectorFileMetadata struct {
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	LastUpdated    time.Time `json:"last_updated"`
}

// ShortTermVectorFile is the per-topic dual-vector memory file: every
// record carries both a summary embedding and a content embedding.
type ShortTermVectorFile struct {
	Vectors  []VectorizedMemory  `json:"vectors"`
	Metadata VectorFileMetadata  `json:"metadata"`
}

// NewShortTermVectorFile returns an empty file stamped with embeddingModel.
func NewShortTermVectorFile(embeddingModel string) *ShortTermVectorFile {
	return &ShortTermVectorFile{
		Vectors:  []VectorizedMemory{},
		Metadata: VectorFileMetadata{EmbeddingModel: embeddingModel, LastUpdated: time.Now().UTC()},
	}
}

// Upsert inserts vm, or replaces the existing record with matching ID,
// preserving insertion order for new records.
func (f *ShortTermVectorFile) Upsert(vm VectorizedMemory) {
	if f.Metadata.Dimension == 0 && len(vm.SummaryEmbedding) > 0 {
		f.Metadata.Dimension = len(vm.SummaryEmbedding)
	}
	for i := range f.Vectors {
		if f.Vectors[i].ID == vm.ID {
			f.Vectors[i] = vm
			return
		}
	}
	f.Vectors = append(f.Vectors, vm)
}

// scoredVector is an internal search hit before truncation to top-k.
type scoredVector struct {
	vm    VectorizedMemory
	score float64
}

// Query takes queryVector as already embedded by the caller (the file's
// declared model must match what produced it) and scores every record as
// 0.4·cos(q, summary_embedding) + 0.6·cos(q, content_embedding), returning
// the top-k descending.
func (f *ShortTermVectorFile) Query(queryVector []float32, k int) []VectorizedMemory {
	scored := make([]scoredVector, 0, len(f.Vectors))
	for _, vm := range f.Vectors {
		cs := cosineSimilarity(queryVector, vm.SummaryEmbedding)
		cc := cosineSimilarity(queryVector, vm.ContentEmbedding)
		scored = append(scored, scoredVector{vm: vm, score: 0.4*cs + 0.6*cc})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if k > len(scored) {
		k = len(scored)
	}
	out := make([]VectorizedMemory, k)
	for i := 0; i < k; i++ {
		out[i] = scored[i].vm
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ShortTermFileRepository loads and atomically persists per-topic
// ShortTermVectorFile documents under dataDir/assistants/<a>/topics/<t>/short_term_vectors.json.
type ShortTermFileRepository struct {
	mu      sync.Mutex
	dataDir string
}

// NewShortTermFileRepository roots the repository at dataDir.
func NewShortTermFileRepository(dataDir string) *ShortTermFileRepository {
	return &ShortTermFileRepository{dataDir: dataDir}
}

func (r *ShortTermFileRepository) path(assistantID, topicID string) string {
	return filepath.Join(r.dataDir, "assistants", assistantID, "topics", topicID, "short_term_vectors.json")
}

// Load reads the topic's vector file, returning a fresh file stamped with
// defaultModel if none exists yet or the existing file fails to parse.
func (r *ShortTermFileRepository) Load(assistantID, topicID, defaultModel string) (*ShortTermVectorFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := os.ReadFile(r.path(assistantID, topicID))
	if err != nil {
		if os.IsNotExist(err) {
			return NewShortTermVectorFile(defaultModel), nil
		}
		return nil, kind.New(kind.Memory, "Load", err)
	}
	var file ShortTermVectorFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return NewShortTermVectorFile(defaultModel), nil
	}
	return &file, nil
}

// Save atomically rewrites the topic's vector file (write-temp, rename),
// stamping LastUpdated and refreshing the declared embedding model.
func (r *ShortTermFileRepository) Save(assistantID, topicID string, file *ShortTermVectorFile, embeddingModel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file.Metadata.LastUpdated = time.Now().UTC()
	if embeddingModel != "" {
		file.Metadata.EmbeddingModel = embeddingModel
	}
	dest := r.path(assistantID, topicID)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return kind.New(kind.Memory, "Save", err)
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return kind.New(kind.Memory, "Save", err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return kind.New(kind.Memory, "Save", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return kind.New(kind.Memory, "Save", err)
	}
	return nil
}
