package relgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/memochater/core/internal/kind"
)

const graphVersion = "1.0"

// Metadata carries summary counters and timestamps for a DimensionGraph.
type Metadata struct {
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DimensionGraph holds one named dimension's nodes and edges for one scope,
// plus forward/reverse adjacency caches rebuilt from the edge list. Grounded
// on the RWMutex-guarded map store in a reference in-memory graph backend,
// generalized to typed Node/Edge values and dual adjacency caches.
type DimensionGraph struct {
	mu sync.RWMutex

	Dimension string     `json:"dimension"`
	Version   string     `json:"version"`
	Metadata  Metadata   `json:"metadata"`
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges"`

	// storagePath is where Save() writes; set by the locator on load/create,
	// never serialized.
	storagePath string

	// adjacency caches; never serialized, rebuilt from Edges.
	forward map[string][]adjEntry
	reverse map[string][]adjEntry
	nodeIdx map[string]int
}

type adjEntry struct {
	other  string
	weight float64
	idx    int // index into Edges
}

// New creates an empty dimension graph for the given dimension name.
func New(dimension string) *DimensionGraph {
	now := time.Now()
	g := &DimensionGraph{
		Dimension: dimension,
		Version:   graphVersion,
		Metadata:  Metadata{CreatedAt: now, UpdatedAt: now},
	}
	g.rebuildCachesLocked()
	return g
}

// SetStoragePath sets the path Save() will write to.
func (g *DimensionGraph) SetStoragePath(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.storagePath = path
}

// AddNode inserts a node. If a node with the same id exists, it is replaced.
func (g *DimensionGraph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx, ok := g.nodeIdx[n.ID]; ok {
		g.Nodes[idx] = n
		return
	}
	g.Nodes = append(g.Nodes, n)
	g.nodeIdx[n.ID] = len(g.Nodes) - 1
	g.touchLocked()
}

// RemoveNode deletes a node and cascade-removes all incident edges, then
// rebuilds the index.
func (g *DimensionGraph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodeIdx[id]; !ok {
		return
	}
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
	g.rebuildCachesLocked()
	g.touchLocked()
}

// HasNode reports whether a node with the given id exists.
func (g *DimensionGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodeIdx[id]
	return ok
}

// GetNode returns the node with the given id.
func (g *DimensionGraph) GetNode(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.nodeIdx[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[idx], true
}

// AddEdge inserts an edge. Edges referencing an unknown node id are rejected.
// Raw AddEdge is for restore-from-disk / general dimensions only; the
// temporal dimension's single-chain invariant is enforced only by
// InsertTemporalNode (see temporal.go).
func (g *DimensionGraph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEdgeLocked(e)
}

func (g *DimensionGraph) addEdgeLocked(e Edge) error {
	if _, ok := g.nodeIdx[e.Source]; !ok {
		return kind.New(kind.Graph, "AddEdge", errUnknownNode(e.Source))
	}
	if _, ok := g.nodeIdx[e.Target]; !ok {
		return kind.New(kind.Graph, "AddEdge", errUnknownNode(e.Target))
	}
	idx := len(g.Edges)
	g.Edges = append(g.Edges, e)
	g.forward[e.Source] = append(g.forward[e.Source], adjEntry{other: e.Target, weight: e.Weight, idx: idx})
	g.reverse[e.Target] = append(g.reverse[e.Target], adjEntry{other: e.Source, weight: e.Weight, idx: idx})
	g.touchLocked()
	return nil
}

// AddEdges inserts multiple edges, stopping at the first error.
func (g *DimensionGraph) AddEdges(es []Edge) error {
	for _, e := range es {
		if err := g.AddEdge(e); err != nil {
			return err
		}
	}
	return nil
}

// RemoveEdge deletes the first edge source->target found, if any.
func (g *DimensionGraph) RemoveEdge(source, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			continue
		}
		edges = append(edges, e)
	}
	if len(edges) == len(g.Edges) {
		return
	}
	g.Edges = edges
	g.rebuildCachesLocked()
	g.touchLocked()
}

// EdgesFrom returns all edges with the given source.
func (g *DimensionGraph) EdgesFrom(source string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, a := range g.forward[source] {
		out = append(out, g.Edges[a.idx])
	}
	return out
}

// EdgesTo returns all edges with the given target.
func (g *DimensionGraph) EdgesTo(target string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, a := range g.reverse[target] {
		out = append(out, g.Edges[a.idx])
	}
	return out
}

// EdgeBetween returns the edge source->target, if one exists.
func (g *DimensionGraph) EdgeBetween(source, target string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, a := range g.forward[source] {
		if a.other == target {
			return g.Edges[a.idx], true
		}
	}
	return Edge{}, false
}

// ForwardNeighbors returns (target, weight) pairs reachable via outgoing edges.
func (g *DimensionGraph) ForwardNeighbors(id string) []RelatedNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RelatedNode, 0, len(g.forward[id]))
	for _, a := range g.forward[id] {
		out = append(out, RelatedNode{ID: a.other, Weight: a.weight, Reason: g.Edges[a.idx].Reason, Direction: Forward})
	}
	return out
}

// BackwardNeighbors returns (source, weight) pairs reachable via incoming edges.
func (g *DimensionGraph) BackwardNeighbors(id string) []RelatedNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RelatedNode, 0, len(g.reverse[id]))
	for _, a := range g.reverse[id] {
		out = append(out, RelatedNode{ID: a.other, Weight: a.weight, Reason: g.Edges[a.idx].Reason, Direction: Backward})
	}
	return out
}

// RebuildCaches rebuilds the adjacency caches and node index from the edge
// and node lists. Called automatically on Load; exposed for bulk-mutation
// callers (e.g. direct field assignment during tests).
func (g *DimensionGraph) RebuildCaches() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rebuildCachesLocked()
}

func (g *DimensionGraph) rebuildCachesLocked() {
	g.nodeIdx = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.nodeIdx[n.ID] = i
	}
	g.forward = make(map[string][]adjEntry)
	g.reverse = make(map[string][]adjEntry)
	for idx, e := range g.Edges {
		g.forward[e.Source] = append(g.forward[e.Source], adjEntry{other: e.Target, weight: e.Weight, idx: idx})
		g.reverse[e.Target] = append(g.reverse[e.Target], adjEntry{other: e.Source, weight: e.Weight, idx: idx})
	}
}

func (g *DimensionGraph) touchLocked() {
	g.Metadata.NodeCount = len(g.Nodes)
	g.Metadata.EdgeCount = len(g.Edges)
	g.Metadata.UpdatedAt = time.Now()
}

// diskForm is the on-disk JSON shape of a DimensionGraph.
type diskForm struct {
	Dimension string   `json:"dimension"`
	Version   string   `json:"version"`
	Metadata  Metadata `json:"metadata"`
	Nodes     []Node   `json:"nodes"`
	Edges     []Edge   `json:"edges"`
}

// Save serializes the graph to its storage path.
func (g *DimensionGraph) Save() error {
	g.mu.RLock()
	path := g.storagePath
	df := diskForm{Dimension: g.Dimension, Version: g.Version, Metadata: g.Metadata, Nodes: g.Nodes, Edges: g.Edges}
	g.mu.RUnlock()

	if path == "" {
		return kind.New(kind.Graph, "Save", errNoStoragePath)
	}
	raw, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return kind.New(kind.Graph, "Save", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kind.New(kind.Graph, "Save", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return kind.New(kind.Graph, "Save", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return kind.New(kind.Graph, "Save", err)
	}
	return nil
}

// Load reads a DimensionGraph from path and rebuilds caches.
func Load(path string) (*DimensionGraph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, kind.New(kind.Graph, "Load", err)
	}
	var df diskForm
	if err := json.Unmarshal(raw, &df); err != nil {
		return nil, kind.New(kind.Graph, "Load", err)
	}
	g := &DimensionGraph{
		Dimension:   df.Dimension,
		Version:     df.Version,
		Metadata:    df.Metadata,
		Nodes:       df.Nodes,
		Edges:       df.Edges,
		storagePath: path,
	}
	g.rebuildCachesLocked()
	return g, nil
}

// NodeIDs returns all node ids, sorted, for test/debug convenience.
func (g *DimensionGraph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.ID)
	}
	sort.Strings(out)
	return out
}

func errUnknownNode(id string) error { return &unknownNodeError{id: id} }

type unknownNodeError struct{ id string }

func (e *unknownNodeError) Error() string { return "unknown node id: " + e.id }

var errNoStoragePath = &noStoragePathError{}

type noStoragePathError struct{}

func (e *noStoragePathError) Error() string { return "graph has no storage path set" }
