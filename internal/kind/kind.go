// Package kind provides the typed error taxonomy shared across the pipeline,
// memory substrate, and relation graph packages.
package kind

import (
	"errors"
	"fmt"
)

// Kind identifies the broad category of a failure.
type Kind string

const (
	Network Kind = "network" // transient remote failure
	API     Kind = "api"     // remote non-success response
	Parse   Kind = "parse"   // malformed remote response or file
	Config  Kind = "config"  // invalid processor or pipeline configuration
	Service Kind = "service" // dependency unavailable
	AI      Kind = "ai"      // failure reported by the upstream provider
	Memory  Kind = "memory"  // long-term store or pending queue failure
	Graph   Kind = "graph"   // missing required feature, bad compute, storage I/O

	// Vector-store specific kinds: finer-grained than the taxonomy
	// above, used only within package vectorstore.
	Connection    Kind = "connection"
	Collection    Kind = "collection"
	Point         Kind = "point"
	Search        Kind = "search"
	Serialization Kind = "serialization"
)

// Error wraps an underlying error with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and an operation label. Returns nil if err is nil.
func New(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// Of returns the Kind of err if it (or something it wraps) is a *Error.
// Returns "" if err carries no Kind.
func Of(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, k Kind) bool {
	return Of(err) == k
}
