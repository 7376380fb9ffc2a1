package ldp

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"trellis.io/ldp/resource"
)

var slugSanitizer = regexp.MustCompile(`[^A-Za-z0-9._~-]+`)

// sanitizeSlug lowercases nothing (LDP slugs are case-sensitive path
// segments) but strips characters unsafe in a URL path segment.
func sanitizeSlug(slug string) string {
	return strings.Trim(slugSanitizer.ReplaceAllString(slug, "-"), "-")
}

// NextChildID resolves the child resource id for a POST, per spec.md §4.7:
// use a sanitized Slug header if present and valid; on collision with an
// existing (non-deleted) resource, retry with a generated suffix rather
// than failing the request (spec.md's supplemented Slug-collision-retry
// behavior, since a caller-supplied hint should not block creation). With
// no Slug, generate a fresh id outright.
func NextChildID(ctx context.Context, store resource.Store, parent string) (string, error) {
	return nextChildID(ctx, store, parent, "")
}

func NextChildIDFromSlug(ctx context.Context, store resource.Store, parent, slug string) (string, error) {
	return nextChildID(ctx, store, parent, slug)
}

func nextChildID(ctx context.Context, store resource.Store, parent, slug string) (string, error) {
	candidate := sanitizeSlug(slug)
	if candidate == "" {
		candidate = uuid.New().String()
	}

	for attempt := 0; attempt < 5; attempt++ {
		id := path.Join(parent, candidate)
		snap, err := store.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if !snap.Exists() {
			return id, nil
		}
		candidate = sanitizeSlug(slug) + "-" + uuid.New().String()[:8]
	}
	return path.Join(parent, uuid.New().String()), nil
}
