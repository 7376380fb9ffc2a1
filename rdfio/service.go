package rdfio

import (
	"io"

	"trellis.io/ldp/namespace"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/trelliserr"
)

// Reader parses bytes in a given syntax into triples against a base IRI.
// The N-Triples reader is built in (it shares the N-Quads line codec); a
// Turtle/JSON-LD/RDFA reader is supplied by the deployment as an external
// capability, per the package doc's out-of-scope note.
type Reader interface {
	Read(r io.Reader, base string) ([]rdf.Triple, error)
}

// Writer serializes triples in a given syntax, honoring a JSON-LD profile
// when the syntax is JSONLD.
type Writer interface {
	Write(w io.Writer, triples []rdf.Triple, base string, profile Profile) error
}

// Updater applies a SPARQL-Update document to a mutable triple set. This is
// the SPARQL-Update evaluator contract spec.md §4.5/§1 calls out as an
// external capability: the engine itself is not reimplemented here.
type Updater interface {
	Update(triples *[]rdf.Triple, sparqlUpdate string, base string) error
}

// Service is the C8 capability set: one Reader/Writer per syntax, an
// Updater for SPARQL-Update, a namespace service for autodiscovery, and a
// JSON-LD profile cache.
type Service struct {
	readers    map[Syntax]Reader
	writers    map[Syntax]Writer
	updaters   map[Syntax]Updater
	namespaces *namespace.Service
	profiles   *ProfileCache
}

func NewService(ns *namespace.Service) *Service {
	s := &Service{
		readers:    make(map[Syntax]Reader),
		writers:    make(map[Syntax]Writer),
		updaters:   make(map[Syntax]Updater),
		namespaces: ns,
		profiles:   NewProfileCache(),
	}
	ntReaderWriter := ntriplesCodec{}
	s.readers[NTriples] = ntReaderWriter
	s.writers[NTriples] = ntReaderWriter
	return s
}

// RegisterReader wires an external Turtle/JSON-LD/RDFA parser in.
func (s *Service) RegisterReader(syn Syntax, r Reader) { s.readers[syn] = r }

// RegisterWriter wires an external Turtle/JSON-LD serializer in.
func (s *Service) RegisterWriter(syn Syntax, w Writer) { s.writers[syn] = w }

// RegisterUpdater wires a SPARQL-Update evaluator in.
func (s *Service) RegisterUpdater(syn Syntax, u Updater) { s.updaters[syn] = u }

// Read parses in using syn, wrapping parse failures as BadRdfSyntax (400)
// per spec.md §7. Unknown-prefix IRIs whose namespace differs from an
// already-registered one are added to the namespace service (autodiscovery,
// spec.md §4.5) by running DiscoverNamespaces over the parsed triples.
func (s *Service) Read(r io.Reader, syn Syntax, base string) ([]rdf.Triple, error) {
	if !s.supportsRead(syn) {
		return nil, trelliserr.New(trelliserr.UnsupportedSyntax, "unsupported read syntax: "+string(syn))
	}
	reader, ok := s.readers[syn]
	if !ok {
		return nil, trelliserr.New(trelliserr.UnsupportedSyntax, "no reader registered for: "+string(syn))
	}
	triples, err := reader.Read(r, base)
	if err != nil {
		return nil, trelliserr.Wrap(trelliserr.BadRequest, "malformed RDF syntax", err)
	}
	s.DiscoverNamespaces(triples)
	return triples, nil
}

// Write serializes triples using syn. JSON-LD profile options are honored
// only when syn == JSONLD; other syntaxes ignore profile.
func (s *Service) Write(triples []rdf.Triple, w io.Writer, syn Syntax, base string, profile Profile) error {
	if !s.supportsWrite(syn) {
		return trelliserr.New(trelliserr.NotAcceptable, "unsupported write syntax: "+string(syn))
	}
	writer, ok := s.writers[syn]
	if !ok {
		return trelliserr.New(trelliserr.NotAcceptable, "no writer registered for: "+string(syn))
	}
	return writer.Write(w, triples, base, profile)
}

// Update mutates triples in place using a SPARQL-Update document. A
// non-SPARQL-Update syntax fails UnsupportedSyntax per spec.md §4.5.
func (s *Service) Update(triples *[]rdf.Triple, syn Syntax, sparqlUpdate string, base string) error {
	if syn != SPARQLUpdate {
		return trelliserr.New(trelliserr.UnsupportedSyntax, "PATCH body must be application/sparql-update")
	}
	updater, ok := s.updaters[syn]
	if !ok {
		return trelliserr.New(trelliserr.Internal, "no SPARQL-Update evaluator configured")
	}
	if err := updater.Update(triples, sparqlUpdate, base); err != nil {
		return trelliserr.Wrap(trelliserr.BadRequest, "SPARQL-Update evaluation failed", err)
	}
	return nil
}

// ntriplesCodec adapts the rdf package's N-Quads codec (with no graph term)
// to the Reader/Writer contract, since N-Triples is N-Quads without a graph
// position.
type ntriplesCodec struct{}

func (ntriplesCodec) Read(r io.Reader, base string) ([]rdf.Triple, error) {
	quads, err := rdf.ReadNQuads(r, nil)
	if err != nil {
		return nil, err
	}
	triples := make([]rdf.Triple, len(quads))
	for i, q := range quads {
		triples[i] = q.Triple()
	}
	return triples, nil
}

func (ntriplesCodec) Write(w io.Writer, triples []rdf.Triple, base string, profile Profile) error {
	quads := make([]rdf.Quad, len(triples))
	for i, t := range triples {
		quads[i] = rdf.Quad{Graph: rdf.DefaultGraph, Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
	}
	return rdf.WriteNQuads(w, quads)
}
