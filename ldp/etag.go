// Package ldp implements the LDP protocol handler (C10): the resource
// state machine, conditional requests, content negotiation, and the
// mutation pipeline tying together the resource store, binary store,
// Memento engine, audit store, and notification emitter.
package ldp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"trellis.io/ldp/resource"
)

// ComputeETag derives a resource's ETag from (interactionModel, modified,
// and for a binary its id and size), per spec.md §4.7; no content digest is
// computed. Weak iff weakETag (the http.weak-etag config key).
func ComputeETag(r *resource.Resource, weakETag bool) string {
	h := sha256.New()
	h.Write([]byte(r.InteractionModel))
	h.Write([]byte(strconv.FormatInt(r.Modified.UnixNano(), 10)))
	if r.Binary != nil {
		h.Write([]byte(r.Binary.ID))
		h.Write([]byte(strconv.FormatInt(r.Binary.Size, 10)))
	}
	sum := hex.EncodeToString(h.Sum(nil))[:32]
	if weakETag {
		return fmt.Sprintf(`W/"%s"`, sum)
	}
	return fmt.Sprintf(`"%s"`, sum)
}
