// Package relgraph implements the Relation Graph Engine: per-scope dimension
// graphs, adjacency caches, temporal single-chain insertion, and weighted
// multi-dimension queries.
package relgraph

import (
	"path/filepath"
	"time"
)

// Scope discriminates the three storage locations a DimensionGraph can live in.
type Scope struct {
	kind        scopeKind
	AssistantID string
	TopicID     string
}

type scopeKind int

const (
	scopeShortTerm scopeKind = iota
	scopeLongTerm
	scopeGlobal
)

// ShortTermScope returns a per-topic scope.
func ShortTermScope(assistantID, topicID string) Scope {
	return Scope{kind: scopeShortTerm, AssistantID: assistantID, TopicID: topicID}
}

// LongTermScope returns a per-assistant scope.
func LongTermScope(assistantID string) Scope {
	return Scope{kind: scopeLongTerm, AssistantID: assistantID}
}

// GlobalScope returns the singleton global scope.
func GlobalScope() Scope { return Scope{kind: scopeGlobal} }

// CacheKey returns the locator cache key for this scope+dimension.
func (s Scope) CacheKey(dimension string) string {
	switch s.kind {
	case scopeShortTerm:
		return "short:" + s.AssistantID + ":" + s.TopicID + ":" + dimension
	case scopeLongTerm:
		return "long:" + s.AssistantID + ":" + dimension
	default:
		return "global:" + dimension
	}
}

// StorageDir returns the directory holding this scope's dimension JSON files,
// relative to dataDir.
func (s Scope) StorageDir(dataDir string) string {
	switch s.kind {
	case scopeShortTerm:
		return filepath.Join(dataDir, "assistants", s.AssistantID, "topics", s.TopicID, "graphs")
	case scopeLongTerm:
		return filepath.Join(dataDir, "assistants", s.AssistantID, "long_term_graphs")
	default:
		return filepath.Join(dataDir, "global_graphs")
	}
}

// Direction constrains which edges a query considers relative to an anchor.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Both     Direction = "both"
)

// MemoryRefType discriminates what a node's MemoryRef points at.
type MemoryRefType string

const (
	RefShortTerm MemoryRefType = "ShortTerm"
	RefLongTerm  MemoryRefType = "LongTerm"
	RefExternal  MemoryRefType = "External"
)

// MemoryRef identifies where the memory behind a node actually lives.
type MemoryRef struct {
	Type MemoryRefType `json:"type"`
	// ShortTerm
	FilePath string `json:"file_path,omitempty"`
	// LongTerm
	Collection string `json:"collection,omitempty"`
	Point      string `json:"point,omitempty"`
	// External
	URI string `json:"uri,omitempty"`
}

// Features holds the optional, dimension-specific feature bag of a node.
type Features struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Entities  []string   `json:"entities,omitempty"`
	Emotion   *string    `json:"emotion,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	Embedding []float32  `json:"embedding,omitempty"`
}

// Node is a single vertex in a DimensionGraph. Its ID equals the memory id it
// represents.
type Node struct {
	ID        string    `json:"id"`
	MemoryRef MemoryRef `json:"memory_ref"`
	CreatedAt time.Time `json:"created_at"`
	Features  Features  `json:"features"`
}

// Edge is a directed, weighted relation between two node ids.
type Edge struct {
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Weight       float64   `json:"weight"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
	AutoGenerated bool     `json:"auto_generated"`
}

// RelatedNode is one hit returned by a single-graph query.
type RelatedNode struct {
	ID        string
	Weight    float64
	Reason    string
	Direction Direction
}

// DimensionContribution is one dimension's raw contribution to a ScoredNode,
// the explainability channel for multi-graph queries.
type DimensionContribution struct {
	ID            string
	Dimension     string
	RawWeight     float64
	WeightedScore float64
	Reason        string
}

// ScoredNode is one hit returned by a multi-graph query.
type ScoredNode struct {
	ID             string
	TotalScore     float64
	DimensionScores map[string]float64
	Reasons        []string
}
