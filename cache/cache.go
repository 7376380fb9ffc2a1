// Package cache provides the Cache abstraction used by C9's WebAC
// (target,agent)->modes cache (the JSON-LD profile cache is rdfio's own
// ProfileCache): Redis-backed when --webac-cache redis is configured, or an
// in-process bounded LRU map otherwise. The in-process driver guards its
// map with a single mutex, so readers and writers take the same lock.
package cache

import (
	"context"
	"time"
)

// Cache is a generic bounded, TTL-expiring string-keyed cache. Values are
// opaque []byte so both drivers can serialize however they like.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
