package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutPathIsPureFunction(t *testing.T) {
	l := DefaultLayout()
	iri := "trellis:data/container1/resource1"

	p1 := l.Path(iri)
	p2 := l.Path(iri)
	assert.Equal(t, p1, p2)
	assert.Len(t, p1, 4) // 3 shard segments + md5 leaf

	other := l.Path("trellis:data/container1/resource2")
	assert.NotEqual(t, p1, other)
}

func TestIRITranslationRoundTrips(t *testing.T) {
	base := "http://example.org/repo"
	external := "http://example.org/repo/container1/resource1"

	internal := ToInternal(base, external)
	assert.Equal(t, InternalPrefix+"container1/resource1", internal)

	back := ToExternal(base, internal)
	assert.Equal(t, external, back)
}

func TestIRITranslationUnchangedWhenPrefixMismatch(t *testing.T) {
	assert.Equal(t, "http://other.example/x", ToInternal("http://example.org/repo", "http://other.example/x"))
	assert.Equal(t, "not-internal", ToExternal("http://example.org/repo", "not-internal"))
}
