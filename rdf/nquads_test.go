package rdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNQuadsRoundTrip(t *testing.T) {
	quads := []Quad{
		NewQuad(DefaultGraph, IRI("http://example.org/r1"), IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"), IRI("http://www.w3.org/ns/ldp#RDFSource")),
		NewQuad(IRI("trellis:data/r1#audit"), IRI("http://example.org/r1"), IRI("http://purl.org/dc/terms/modified"), Literal("2026-07-31T00:00:00Z", "http://www.w3.org/2001/XMLSchema#dateTime")),
		NewQuad(DefaultGraph, BlankNode("b0"), IRI("http://example.org/p"), LangLiteral("hello \"world\"\nnext", "en")),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNQuads(&buf, quads))

	parsed, err := ReadNQuads(&buf, nil)
	require.NoError(t, err)
	require.Len(t, parsed, len(quads))

	for i, q := range quads {
		assert.True(t, q.Equal(parsed[i]), "quad %d mismatch: %+v vs %+v", i, q, parsed[i])
	}
}

func TestNQuadsDropsMalformedLines(t *testing.T) {
	input := `<http://example.org/s> <http://example.org/p> <http://example.org/o> .
this is not a valid nquads line
<http://example.org/s2> <http://example.org/p2> "literal value" .
`
	quads, err := ReadNQuads(bytes.NewBufferString(input), nil)
	require.NoError(t, err)
	assert.Len(t, quads, 2)
}

func TestNQuadsDropsLinesStartingWithWhitespace(t *testing.T) {
	input := "<http://example.org/s> <http://example.org/p> <http://example.org/o> .\n" +
		"  <http://example.org/s2> <http://example.org/p2> <http://example.org/o2> .\n"
	quads, err := ReadNQuads(bytes.NewBufferString(input), nil)
	require.NoError(t, err)
	assert.Len(t, quads, 1, "a line starting with whitespace must be dropped, not trimmed and parsed")
}

func TestTermStringForms(t *testing.T) {
	assert.Equal(t, "<http://example.org/x>", IRI("http://example.org/x").String())
	assert.Equal(t, "_:b1", BlankNode("b1").String())
	assert.Equal(t, `"hi"@en`, LangLiteral("hi", "en").String())
	assert.Equal(t, `"1"^^<http://www.w3.org/2001/XMLSchema#integer>`, Literal("1", "http://www.w3.org/2001/XMLSchema#integer").String())
}
