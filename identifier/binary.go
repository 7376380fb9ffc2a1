package identifier

import (
	"encoding/hex"
	"path/filepath"

	"github.com/google/uuid"
)

// BinaryIDSupplier mints identifiers for newly created binaries (LDP-NRs),
// independent of the resource identifier hierarchy used by Layout — binary
// IDs are opaque storage keys, never derived from the resource IRI
// (spec.md §4.1).
type BinaryIDSupplier interface {
	// New returns a freshly generated binary id together with the relative
	// hierarchy path under which binary.Store should place it.
	New() (id string, hierarchyPath string)
}

// RandomHierarchyBinaryIDSupplier generates a random id (a UUID's hex form)
// and shards it into a configurable number of path segments, mirroring
// Layout's shape but with independent length/depth configuration per
// spec.md §6 (file.binary.hierarchy / file.binary.length).
type RandomHierarchyBinaryIDSupplier struct {
	Length int
	Levels int
}

func DefaultBinaryIDSupplier() RandomHierarchyBinaryIDSupplier {
	return RandomHierarchyBinaryIDSupplier{Length: 2, Levels: 2}
}

func (s RandomHierarchyBinaryIDSupplier) New() (string, string) {
	raw := uuid.New()
	id := raw.String()
	hexForm := hex.EncodeToString(raw[:])

	length, levels := s.Length, s.Levels
	if length <= 0 {
		length = 2
	}
	if levels <= 0 {
		levels = 2
	}
	for len(hexForm) < length*levels {
		hexForm += hexForm
	}

	segments := make([]string, 0, levels+1)
	for i := 0; i < levels; i++ {
		segments = append(segments, hexForm[i*length:(i+1)*length])
	}
	segments = append(segments, id)
	return id, filepath.Join(segments...)
}
