// Package memsubstrate implements the memory substrate the pipeline engine
// consumes: a long-term vector-backed store, a pending-memory FIFO, and a
// per-topic short-term vector file with dual (summary+content) embeddings.
package memsubstrate

import "time"

// LongTermMemory is the unit of long-term storage. The vector
// representation is owned by the vectorstore.Store; file blobs are owned
// by FileStore keyed by id.
type LongTermMemory struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	Importance    float64   `json:"importance"`
	AccessCount   int64     `json:"access_count"`
	LastAccessed  time.Time `json:"last_accessed"`
	CreatedAt     time.Time `json:"created_at"`
	SourceSession string    `json:"source_session,omitempty"`
	FileRefs      []string  `json:"file_refs,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
}

// RecordAccess increments AccessCount and refreshes LastAccessed.
func (m *LongTermMemory) RecordAccess(now time.Time) {
	m.AccessCount++
	m.LastAccessed = now
}

// RetrievedMemory pairs a LongTermMemory with the similarity score a search
// returned it at.
type RetrievedMemory struct {
	Memory    LongTermMemory
	Relevance float64
}

// MemoryFile is a blob associated with a LongTermMemory (e.g. a code
// snippet extracted alongside a chunk).
type MemoryFile struct {
	ID          string         `json:"id"`
	OriginalRef string         `json:"original_ref"`
	MemoryID    string         `json:"memory_id"`
	FileType    string         `json:"file_type"`
	Content     string         `json:"content"`
	Language    string         `json:"language,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RawExtractedMemory is a processor-produced memory awaiting storage, with
// still-local file references that get assigned real ids during storage.
type RawExtractedMemory struct {
	Content    string
	Category   string
	Importance float64
	FileRefs   []RawFileRef
}

// RawFileRef is a file blob attached to a RawExtractedMemory before storage.
type RawFileRef struct {
	LocalID  string
	FileType string
	Content  string
	Language string
}

// StoreStats summarizes a LongTermStore's size.
type StoreStats struct {
	MemoryCount int
	FileCount   int
}

// PendingMemory is a FIFO entry awaiting promotion to long-term.
type PendingMemory struct {
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	Importance    float64   `json:"importance"`
	SourceSession string    `json:"source_session"`
	CreatedAt     time.Time `json:"created_at"`
}
