package rdfio

import (
	"fmt"
	"net/url"
	"strings"

	"trellis.io/ldp/rdf"
)

// DiscoverNamespaces implements spec.md §4.5's read-time autodiscovery: for
// every predicate and rdf:type object IRI in triples, if its namespace is
// unknown to the namespace service and its URL origin differs from every
// already-registered namespace's origin, it is registered under a
// generated "nsN" prefix.
func (s *Service) DiscoverNamespaces(triples []rdf.Triple) {
	if s.namespaces == nil {
		return
	}
	known := s.namespaces.All()
	knownOrigins := make(map[string]bool, len(known))
	for _, uri := range known {
		knownOrigins[originOf(uri)] = true
	}

	next := len(known)
	seen := make(map[string]bool)
	consider := func(iri string) {
		nsURI := namespaceOf(iri)
		if seen[nsURI] {
			return
		}
		seen[nsURI] = true
		if _, ok := s.namespaces.PrefixFor(nsURI); ok {
			return
		}
		if knownOrigins[originOf(nsURI)] {
			return
		}
		next++
		_ = s.namespaces.SetPrefix(fmt.Sprintf("ns%d", next), nsURI)
		knownOrigins[originOf(nsURI)] = true
	}

	for _, t := range triples {
		if t.Predicate.IsIRI() {
			consider(t.Predicate.Value)
		}
		if t.Object.IsIRI() && t.Predicate.Value == "http://www.w3.org/1999/02/22-rdf-syntax-ns#type" {
			consider(t.Object.Value)
		}
	}
}

// namespaceOf splits an IRI into its namespace the way most RDF
// prefix-discovery heuristics do: up to and including the last '#', or
// failing that the last '/'.
func namespaceOf(iri string) string {
	if i := strings.LastIndexByte(iri, '#'); i >= 0 {
		return iri[:i+1]
	}
	if i := strings.LastIndexByte(iri, '/'); i >= 0 {
		return iri[:i+1]
	}
	return iri
}

func originOf(iri string) string {
	u, err := url.Parse(iri)
	if err != nil {
		return iri
	}
	return u.Scheme + "://" + u.Host
}
