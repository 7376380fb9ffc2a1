// Package binary implements the binary store (C3): storage for LDP-NR bytes
// under caller-chosen ids, independent of the resource store that holds
// their RDF metadata.
package binary

import (
	"context"
	"io"
)

// Metadata accompanies a Put call; drivers persist whatever subset they need
// (the filesystem driver ignores it entirely, the S3 driver forwards
// ContentType).
type Metadata struct {
	ContentType string
	Size        int64
}

// Store is the capability contract every binary driver satisfies, per
// spec.md §4.2. A Store never interprets the bytes it holds — digesting,
// ranging, and content-type negotiation all happen at this layer so C10 can
// stay storage-agnostic.
type Store interface {
	// Get returns the full stored object. NotFound (trelliserr.NotFound) if
	// absent.
	Get(ctx context.Context, id string) (io.ReadCloser, error)

	// GetRange returns bytes [from, to] inclusive. Drivers that cannot seek
	// efficiently may read the full object and discard bytes outside the
	// range; callers must not assume partial reads are cheap.
	GetRange(ctx context.Context, id string, from, to int64) (io.ReadCloser, error)

	// Put writes r atomically: a reader of id must never observe a partial
	// write. Implementations use a temp-file-then-rename discipline or the
	// driver's native atomic put.
	Put(ctx context.Context, id string, r io.Reader, meta Metadata) error

	// Purge removes the stored object. A missing object is not an error —
	// callers (mutation pipeline cleanup) purge defensively and a no-op
	// result is success; drivers log at warn when asked to purge something
	// absent.
	Purge(ctx context.Context, id string) error

	// Digest streams the complete stored object through the named hash
	// algorithm and returns the base64-encoded digest. It must never digest
	// an HTTP request/response payload subset — the whole stored object,
	// per the invariant in spec.md §4.2.
	Digest(ctx context.Context, id string, algorithm string) (string, error)
}
