package webac

import (
	"context"
	"encoding/json"
	"time"

	"trellis.io/ldp/cache"
)

// CachedEngine wraps Engine with the bounded (target,agent)->modes cache
// spec.md §4.6 calls for, backed by any cache.Cache implementation.
type CachedEngine struct {
	Engine *Engine
	Cache  cache.Cache
	TTL    time.Duration
}

func (c *CachedEngine) Modes(ctx context.Context, target string, p Principal) (map[Mode]bool, error) {
	key := CacheKey(target, p.Agent)
	if raw, ok, err := c.Cache.Get(ctx, key); err == nil && ok {
		var modes map[Mode]bool
		if err := json.Unmarshal(raw, &modes); err == nil {
			return modes, nil
		}
	}

	modes, err := c.Engine.Modes(ctx, target, p)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(modes); err == nil {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		_ = c.Cache.Set(ctx, key, raw, ttl)
	}
	return modes, nil
}

// Invalidate clears a target's cached modes for every agent is not
// supported by a plain key-value cache (the key embeds the agent); callers
// that mutate a resource's ACL graph should instead rely on the TTL, or
// maintain their own target->agent index if exact invalidation matters.
func (c *CachedEngine) InvalidateAgent(ctx context.Context, target, agent string) error {
	return c.Cache.Delete(ctx, CacheKey(target, agent))
}
