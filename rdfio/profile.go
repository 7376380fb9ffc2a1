package rdfio

import (
	"strings"
	"sync"
)

// Shape selects how a JSON-LD writer renders a document, per spec.md §4.5.
type Shape int

const (
	ShapeCompacted Shape = iota
	ShapeFlattened
	ShapeExpanded
)

// Profile carries the JSON-LD writing options resolved from an Accept/
// Prefer "profile" parameter: which shape to use, a custom @context URL,
// and whether @base should be emitted.
type Profile struct {
	Shape          Shape
	ContextURL     string
	EmitBase       bool
}

const (
	// Sentinel profile URIs from spec.md §4.5 ("Trellis.SerializationRelative
	// /Absolute sentinel profiles").
	ProfileRelative = "trellis:SerializationRelative"
	ProfileAbsolute = "trellis:SerializationAbsolute"
)

// MergeProfiles implements spec.md §4.5's merge rule: the first occurrence
// of flattened|compacted|expanded among the supplied profile tokens wins;
// default is compacted. A custom profile URL is usable only if it is
// whitelisted or falls under a whitelisted domain prefix; @base is emitted
// only per the defaultEmitBase config or one of the two sentinel profiles.
func MergeProfiles(tokens []string, whitelistedProfiles, whitelistedDomains []string, defaultEmitBase bool) Profile {
	p := Profile{Shape: ShapeCompacted, EmitBase: defaultEmitBase}
	shapeChosen := false

	for _, tok := range tokens {
		switch tok {
		case "http://www.w3.org/ns/json-ld#flattened":
			if !shapeChosen {
				p.Shape = ShapeFlattened
				shapeChosen = true
			}
		case "http://www.w3.org/ns/json-ld#compacted":
			if !shapeChosen {
				p.Shape = ShapeCompacted
				shapeChosen = true
			}
		case "http://www.w3.org/ns/json-ld#expanded":
			if !shapeChosen {
				p.Shape = ShapeExpanded
				shapeChosen = true
			}
		case ProfileRelative:
			p.EmitBase = true
		case ProfileAbsolute:
			p.EmitBase = false
		default:
			if isWhitelisted(tok, whitelistedProfiles, whitelistedDomains) {
				p.ContextURL = tok
			}
		}
	}
	return p
}

func isWhitelisted(url string, profiles, domains []string) bool {
	for _, p := range profiles {
		if p == url {
			return true
		}
	}
	for _, d := range domains {
		if strings.HasPrefix(url, d) {
			return true
		}
	}
	return false
}

// ProfileCache is the two-level cache spec.md §4.5 describes: a resolved
// JSON-LD @context, keyed by profile URL. The first level (this struct) is
// process-wide; a second level (per-request merged Profile) is cheap enough
// to recompute and is not cached here.
type ProfileCache struct {
	mu       sync.RWMutex
	contexts map[string][]byte // profile URL -> resolved @context document
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{contexts: make(map[string][]byte)}
}

func (c *ProfileCache) Get(url string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctx, ok := c.contexts[url]
	return ctx, ok
}

func (c *ProfileCache) Put(url string, context []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[url] = context
}
