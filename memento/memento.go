// Package memento implements the Memento engine (C6): one n-quads snapshot
// file per mutation, keyed by epoch second, supporting TimeGate/TimeMap
// negotiation per RFC 7089 and spec.md §4.4.
package memento

import (
	"context"
	"time"

	"trellis.io/ldp/rdf"
)

// Interval is a half-open [Start, End) window during which Get(id, t) for
// any t in the window resolves to the same snapshot — the shape spec.md
// §4.4 says powers TimeMap and Link headers. The most recent interval has
// Open == true and a zero End; Contains treats it as running up to the
// current time.
type Interval struct {
	Start time.Time
	End   time.Time
	Open  bool // true for the most recent snapshot's interval
}

func (iv Interval) Contains(t time.Time) bool {
	if t.Before(iv.Start) {
		return false
	}
	if iv.Open {
		return !t.After(time.Now())
	}
	return t.Before(iv.End)
}

// Store is the C6 capability contract.
type Store interface {
	// Put writes a snapshot for id at instant, truncated to the second.
	// Per spec.md §4.3/§4.4, a second Put at the same epoch second
	// overwrites the prior snapshot (last-writer-wins collapse).
	Put(ctx context.Context, id string, instant time.Time, quads []rdf.Quad) error

	// Get returns the snapshot whose interval contains instant.
	// MISSING_RESOURCE-equivalent (ok=false) if instant precedes every
	// snapshot on record.
	Get(ctx context.Context, id string, instant time.Time) (quads []rdf.Quad, ok bool, err error)

	// List returns every Memento for id as ordered, half-open intervals.
	List(ctx context.Context, id string) ([]Interval, error)

	// Delete removes exactly one snapshot, the one at instant's truncated
	// second.
	Delete(ctx context.Context, id string, instant time.Time) error
}

func truncate(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
