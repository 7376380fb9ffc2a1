// Package audit implements the append-only audit store (C5): one immutable
// quad set per mutation, joined with the resource store's current snapshot
// on read (spec.md §4.3).
package audit

import (
	"context"

	"trellis.io/ldp/rdf"
)

// Store is the C5 capability contract. Per spec.md §4.3, an audit store
// never reports absence as failure: even the Noop driver returns success,
// so a deployment that disables auditing does not change mutation-pipeline
// behavior.
type Store interface {
	// Add appends an immutable quad set recording one mutation event.
	Add(ctx context.Context, id string, quads []rdf.Quad) error

	// List returns every audit quad recorded for id, in append order.
	List(ctx context.Context, id string) ([]rdf.Quad, error)
}

// Noop is the disabled-audit driver: Add always succeeds without
// persisting anything, List always returns an empty slice.
type Noop struct{}

func (Noop) Add(ctx context.Context, id string, quads []rdf.Quad) error { return nil }
func (Noop) List(ctx context.Context, id string) ([]rdf.Quad, error)    { return nil, nil }
