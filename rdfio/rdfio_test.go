package rdfio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/namespace"
	"trellis.io/ldp/rdf"
)

func newTestService(t *testing.T) *Service {
	ns, err := namespace.New(filepath.Join(t.TempDir(), "ns.json"))
	require.NoError(t, err)
	return NewService(ns)
}

func TestServiceSupportedSyntaxes(t *testing.T) {
	s := newTestService(t)
	assert.ElementsMatch(t, []Syntax{Turtle, JSONLD, NTriples}, s.ReadSyntaxes())
	assert.ElementsMatch(t, []Syntax{Turtle, JSONLD, NTriples}, s.WriteSyntaxes())
	assert.ElementsMatch(t, []Syntax{SPARQLUpdate}, s.UpdateSyntaxes())
}

func TestServiceReadWriteNTriplesRoundTrip(t *testing.T) {
	s := newTestService(t)
	input := `<http://example.org/s> <http://example.org/p> "value" .` + "\n"

	triples, err := s.Read(bytes.NewBufferString(input), NTriples, "http://example.org/")
	require.NoError(t, err)
	require.Len(t, triples, 1)

	var buf bytes.Buffer
	require.NoError(t, s.Write(triples, &buf, NTriples, "http://example.org/", Profile{}))
	assert.Contains(t, buf.String(), "http://example.org/s")
}

func TestServiceReadUnsupportedSyntaxFails(t *testing.T) {
	s := newTestService(t)
	_, err := s.Read(bytes.NewBufferString(""), Syntax("application/unknown"), "")
	require.Error(t, err)
}

func TestMergeProfilesFirstShapeWins(t *testing.T) {
	p := MergeProfiles([]string{
		"http://www.w3.org/ns/json-ld#expanded",
		"http://www.w3.org/ns/json-ld#flattened",
	}, nil, nil, false)
	assert.Equal(t, ShapeExpanded, p.Shape)
}

func TestMergeProfilesDefaultsToCompacted(t *testing.T) {
	p := MergeProfiles(nil, nil, nil, false)
	assert.Equal(t, ShapeCompacted, p.Shape)
}

func TestMergeProfilesCustomProfileRequiresWhitelist(t *testing.T) {
	p := MergeProfiles([]string{"http://untrusted.example/profile"}, nil, nil, false)
	assert.Empty(t, p.ContextURL)

	p2 := MergeProfiles([]string{"http://trusted.example/profile"}, []string{"http://trusted.example/profile"}, nil, false)
	assert.Equal(t, "http://trusted.example/profile", p2.ContextURL)
}

func TestDiscoverNamespacesRegistersUnknownPrefix(t *testing.T) {
	s := newTestService(t)
	triples := []rdf.Triple{
		{Subject: rdf.IRI("http://example.org/s"), Predicate: rdf.IRI("http://purl.org/dc/terms/title"), Object: rdf.Literal("x", "")},
	}
	s.DiscoverNamespaces(triples)
	_, ok := s.namespaces.PrefixFor("http://purl.org/dc/terms/")
	assert.True(t, ok)
}
