// Package identifier implements the resource-directory layout (C2): turning
// an internal IRI into a sharded on-disk path, and translating between the
// internal "trellis:data/" IRI scheme and the deployment's external base
// URL.
package identifier

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"hash/crc32"
	"path/filepath"
	"strings"
)

// InternalPrefix is the scheme+prefix every resource identifier uses inside
// the store, translated to/from the deployment base URL at the HTTP
// boundary (spec.md §3).
const InternalPrefix = "trellis:data/"

// BlankNodePrefix is prepended to a skolemized blank-node UUID (spec.md §9).
const BlankNodePrefix = "trellis:bnode/"

// Layout computes the sharded directory path for a resource's internal IRI.
// Default LENGTH=2, MAX=3 matches spec.md §4.1/§6: the first LENGTH*MAX hex
// characters of CRC-32(IRI) become MAX path segments of LENGTH characters
// each, and the leaf directory name is the lowercase MD5 hex digest of the
// IRI.
type Layout struct {
	Length int
	Max    int
}

func DefaultLayout() Layout {
	return Layout{Length: 2, Max: 3}
}

// Path returns the directory segments (not joined to any base path) for the
// given internal IRI: e.g. ["3a", "f2", "09", "<md5>"].
func (l Layout) Path(internalIRI string) []string {
	length, max := l.Length, l.Max
	if length <= 0 {
		length = 2
	}
	if max <= 0 {
		max = 3
	}

	sum := crc32.ChecksumIEEE([]byte(internalIRI))
	var crcBytes [4]byte
	binary.BigEndian.PutUint32(crcBytes[:], sum)
	hexCRC := hex.EncodeToString(crcBytes[:])
	for len(hexCRC) < length*max {
		hexCRC += hexCRC
	}

	segments := make([]string, 0, max+1)
	for i := 0; i < max; i++ {
		start := i * length
		segments = append(segments, hexCRC[start:start+length])
	}

	sumMD5 := md5.Sum([]byte(internalIRI))
	segments = append(segments, hex.EncodeToString(sumMD5[:]))
	return segments
}

// Dir joins Layout.Path onto base using the OS path separator, the function
// a resource/audit/memento store driver calls to locate a resource's
// directory on disk.
func (l Layout) Dir(base, internalIRI string) string {
	segments := l.Path(internalIRI)
	parts := append([]string{base}, segments...)
	return filepath.Join(parts...)
}

// ToInternal rewrites an external resource URL (under baseURL) to the
// internal trellis:data/ form. It is a pure prefix swap: if externalURL does
// not start with baseURL, it is returned unchanged (spec.md §4.1).
func ToInternal(baseURL, externalURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if strings.HasPrefix(externalURL, base) {
		return InternalPrefix + strings.TrimPrefix(strings.TrimPrefix(externalURL, base), "/")
	}
	return externalURL
}

// ToExternal rewrites an internal trellis:data/ IRI to an external URL under
// baseURL. Unchanged if internalIRI does not carry the internal prefix.
func ToExternal(baseURL, internalIRI string) string {
	if strings.HasPrefix(internalIRI, InternalPrefix) {
		return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(internalIRI, InternalPrefix)
	}
	return internalIRI
}
