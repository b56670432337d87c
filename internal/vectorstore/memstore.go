package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/memochater/core/internal/kind"
)

// memoryStore is a dependency-free in-process Store backed by an
// RWMutex-guarded map with cosine similarity via dot/norm helpers, typed
// Payload values, and the richer Filter (must/must-not/should) shape.
type memoryStore struct {
	mu      sync.RWMutex
	cfg     CollectionConfig
	ensured bool
	points  map[string]pointRecord
}

// NewMemoryStore returns an in-process Store, useful for tests and as a
// dependency-free fallback backend.
func NewMemoryStore() Store {
	return &memoryStore{points: make(map[string]pointRecord)}
}

func (m *memoryStore) Ensure(_ context.Context, cfg CollectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensured {
		return nil // idempotent
	}
	m.cfg = cfg
	m.ensured = true
	return nil
}

func (m *memoryStore) Upsert(_ context.Context, p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[p.ID] = pointRecord{Point: clonePoint(p)}
	return nil
}

func (m *memoryStore) UpsertBatch(ctx context.Context, ps []Point) error {
	for _, p := range ps {
		if err := m.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryStore) Search(_ context.Context, query []float32, k int, filter *Filter) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	qnorm := vecNorm(query)
	out := make([]Result, 0, len(m.points))
	for _, pr := range m.points {
		if !matchesFilter(pr.Payload, filter) {
			continue
		}
		score := cosineSim(query, pr.Vector, qnorm)
		out = append(out, Result{ID: pr.ID, Score: score, Payload: clonePayload(pr.Payload)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memoryStore) Scroll(_ context.Context, limit int, filter *Filter) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Result, 0, len(m.points))
	for _, pr := range m.points {
		if !matchesFilter(pr.Payload, filter) {
			continue
		}
		out = append(out, Result{ID: pr.ID, Score: 1.0, Payload: clonePayload(pr.Payload)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) UpdatePayload(_ context.Context, id string, partial Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.points[id]
	if !ok {
		return kind.New(kind.Point, "UpdatePayload", errPointNotFound(id))
	}
	if pr.Payload == nil {
		pr.Payload = Payload{}
	}
	for k, v := range partial {
		pr.Payload[k] = v
	}
	m.points[id] = pr
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, id)
	return nil
}

func (m *memoryStore) DeleteBatch(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := m.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

func (m *memoryStore) DropCollection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]pointRecord)
	m.ensured = false
	return nil
}

// --- shared helpers (toFloat is also used by QdrantStore/PostgresVectorStore
// when rendering range conditions; the filter matching is memoryStore's own) ---

func matchesFilter(payload Payload, f *Filter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !conditionMatches(payload, c) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if conditionMatches(payload, c) {
			return false
		}
	}
	if len(f.Should) > 0 {
		any := false
		for _, c := range f.Should {
			if conditionMatches(payload, c) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func conditionMatches(payload Payload, c Condition) bool {
	v, ok := payload[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return scalarEqual(v, c.Value)
	case OpGte, OpLte, OpGt, OpLt:
		a, aok := toFloat(v)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Op {
		case OpGte:
			return a >= b
		case OpLte:
			return a <= b
		case OpGt:
			return a > b
		case OpLt:
			return a < b
		}
	}
	return false
}

func scalarEqual(a, b Scalar) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v Scalar) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func vecNorm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func vecDot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosineSim(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = vecNorm(a)
	}
	bnorm := vecNorm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return vecDot(a, b) / (anorm * bnorm)
}

func clonePoint(p Point) Point {
	v := make([]float32, len(p.Vector))
	copy(v, p.Vector)
	return Point{ID: p.ID, Vector: v, Payload: clonePayload(p.Payload)}
}

func clonePayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	cp := make(Payload, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

type pointNotFoundError struct{ id string }

func (e *pointNotFoundError) Error() string { return "point not found: " + e.id }

func errPointNotFound(id string) error { return &pointNotFoundError{id: id} }
