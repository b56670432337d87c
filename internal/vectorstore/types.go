// Package vectorstore is a thin, typed facade over an external vector
// database. Two backends are provided: Qdrant (a reference own
// choice) and Postgres/pgvector (added to exercise a
// relational stack).
package vectorstore

import "time"

// Distance selects the similarity metric a collection is created with.
type Distance string

const (
	Cosine    Distance = "cosine"
	Euclidean Distance = "euclidean"
	Dot       Distance = "dot"
)

// Scalar is any payload leaf value: string, int64, float64, bool, or a
// homogeneous list of one of those.
type Scalar = any

// Payload is a point's metadata, mapping field name to scalar or
// homogeneous-list-of-scalar values.
type Payload map[string]Scalar

// Point is a single vector-store record.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpLt  Op = "lt"
)

// Condition is a single filter predicate: field Op value.
type Condition struct {
	Field string
	Op    Op
	Value Scalar
}

// Filter is a conjunction of Must conditions, with optional MustNot/Should
// groups.
type Filter struct {
	Must    []Condition
	MustNot []Condition
	Should  []Condition
}

// Match returns a Filter with a single equality Must condition — the common
// case used throughout the memory substrate.
func Match(field string, value Scalar) Filter {
	return Filter{Must: []Condition{{Field: field, Op: OpEq, Value: value}}}
}

// Result is one hit from Search or Scroll.
type Result struct {
	ID      string
	Score   float64
	Payload Payload
}

// CollectionConfig describes how Ensure should create a collection if absent.
type CollectionConfig struct {
	Name      string
	Dimension int
	Distance  Distance
}

// pointRecord is the internal representation used by the in-memory backend
// and shared helpers; insertedAt is unused by the interface but kept for
// potential TTL-style extensions.
type pointRecord struct {
	Point
	insertedAt time.Time
}
