package relgraph

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Locator resolves a (Scope, dimension) pair to a cached, mutex-guarded
// DimensionGraph, loading it from disk or creating it empty on first touch.
// A registry of dimension processors sits alongside the cache, and a
// singleflight group collapses concurrent cache-miss loads of the same key.
type Locator struct {
	dataDir string

	mu    sync.Mutex
	cache map[string]*DimensionGraph
	group singleflight.Group

	procMu     sync.RWMutex
	processors map[string]*TemporalProcessor
}

// NewLocator creates a locator rooted at dataDir.
func NewLocator(dataDir string) *Locator {
	return &Locator{
		dataDir:    dataDir,
		cache:      make(map[string]*DimensionGraph),
		processors: make(map[string]*TemporalProcessor),
	}
}

// RegisterProcessor registers a named dimension processor (currently only
// the temporal dimension has one).
func (l *Locator) RegisterProcessor(name string, p *TemporalProcessor) {
	l.procMu.Lock()
	defer l.procMu.Unlock()
	l.processors[name] = p
}

// Processor returns the registered processor for a dimension, if any.
func (l *Locator) Processor(dimension string) (*TemporalProcessor, bool) {
	l.procMu.RLock()
	defer l.procMu.RUnlock()
	p, ok := l.processors[dimension]
	return p, ok
}

// Get returns the cached graph for (scope, dimension), loading from disk or
// creating empty on first touch. Concurrent first-touches for the same key
// collapse into a single disk operation via singleflight.
func (l *Locator) Get(scope Scope, dimension string) (*DimensionGraph, error) {
	key := scope.CacheKey(dimension)

	l.mu.Lock()
	if g, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return g, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.Lock()
		if g, ok := l.cache[key]; ok {
			l.mu.Unlock()
			return g, nil
		}
		l.mu.Unlock()

		path := filepath.Join(scope.StorageDir(l.dataDir), dimension+".json")
		var g *DimensionGraph
		if _, statErr := os.Stat(path); statErr == nil {
			loaded, loadErr := Load(path)
			if loadErr != nil {
				return nil, loadErr
			}
			g = loaded
		} else {
			g = New(dimension)
			g.SetStoragePath(path)
		}

		l.mu.Lock()
		l.cache[key] = g
		l.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DimensionGraph), nil
}

// Resolve implements DimensionResolver for MultiGraphQuery.
func (l *Locator) Resolve(scope Scope, dimension string) (*DimensionGraph, bool) {
	g, err := l.Get(scope, dimension)
	if err != nil {
		return nil, false
	}
	return g, true
}

// ListDimensions enumerates the ".json" files under the scope's storage dir.
func (l *Locator) ListDimensions(scope Scope) ([]string, error) {
	dir := scope.StorageDir(l.dataDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			out = append(out, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return out, nil
}

// Delete removes a dimension's cached graph and its on-disk file.
func (l *Locator) Delete(scope Scope, dimension string) error {
	key := scope.CacheKey(dimension)
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()

	path := filepath.Join(scope.StorageDir(l.dataDir), dimension+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteAll removes every dimension graph for a scope.
func (l *Locator) DeleteAll(scope Scope) error {
	dims, err := l.ListDimensions(scope)
	if err != nil {
		return err
	}
	for _, d := range dims {
		if err := l.Delete(scope, d); err != nil {
			return err
		}
	}
	return nil
}

// Flush serializes a single cached graph, if present.
func (l *Locator) Flush(scope Scope, dimension string) error {
	key := scope.CacheKey(dimension)
	l.mu.Lock()
	g, ok := l.cache[key]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return g.Save()
}

// FlushAll serializes every cached graph.
func (l *Locator) FlushAll() error {
	l.mu.Lock()
	graphs := make([]*DimensionGraph, 0, len(l.cache))
	for _, g := range l.cache {
		graphs = append(graphs, g)
	}
	l.mu.Unlock()

	for _, g := range graphs {
		if err := g.Save(); err != nil {
			return err
		}
	}
	return nil
}

// QueryMulti resolves each dimension in req through this locator and
// combines the per-dimension results.
func (l *Locator) QueryMulti(scope Scope, req MultiGraphRequest) MultiGraphResult {
	return MultiGraphQuery(scope, l, req)
}
