package binary

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"
)

// newHash returns the hash.Hash for a Want-Digest/Digest algorithm token.
// "SHA" is accepted as a legacy alias for "SHA-1" (spec.md §4.2). The second
// return value is false for any algorithm this server does not support,
// which the caller treats as "digest absent" rather than an error.
func newHash(algorithm string) (hash.Hash, bool) {
	switch strings.ToUpper(algorithm) {
	case "MD5":
		return md5.New(), true
	case "SHA", "SHA-1":
		return sha1.New(), true
	case "SHA-256":
		return sha256.New(), true
	case "SHA-384":
		return sha512.New384(), true
	case "SHA-512":
		return sha512.New(), true
	case "SHA3-256":
		return sha3.New256(), true
	case "SHA3-384":
		return sha3.New384(), true
	case "SHA3-512":
		return sha3.New512(), true
	default:
		return nil, false
	}
}

// digestReader streams r through the named algorithm's hash and returns the
// base64 digest, used by every driver's Digest method so the streaming
// behavior (never buffering the full object in memory) is shared.
func digestReader(r io.Reader, algorithm string) (string, bool, error) {
	h, ok := newHash(algorithm)
	if !ok {
		return "", false, nil
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", true, err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), true, nil
}
