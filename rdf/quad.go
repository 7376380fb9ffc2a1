package rdf

// Triple is a (subject, predicate, object) statement with no graph context,
// the shape the I/O service (C8) reads and writes for a single named graph.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func (t Triple) Equal(o Triple) bool {
	return t.Subject.Equal(o.Subject) && t.Predicate.Equal(o.Predicate) && t.Object.Equal(o.Object)
}

// Quad adds a graph term to a Triple, per spec.md §3: "Quad = (graph,
// subject, predicate, object)". Graph is DefaultGraph for triples not bound
// to one of the named server graphs.
type Quad struct {
	Graph     Term
	Subject   Term
	Predicate Term
	Object    Term
}

func (q Quad) Triple() Triple {
	return Triple{Subject: q.Subject, Predicate: q.Predicate, Object: q.Object}
}

func (q Quad) Equal(o Quad) bool {
	return q.Graph.Equal(o.Graph) &&
		q.Subject.Equal(o.Subject) && q.Predicate.Equal(o.Predicate) && q.Object.Equal(o.Object)
}

func NewQuad(graph, subject, predicate, object Term) Quad {
	return Quad{Graph: graph, Subject: subject, Predicate: predicate, Object: object}
}

// Dataset is an in-memory collection of quads, grouped by graph, used as the
// unit of mutation passed to resource.Store.Create/Replace and the unit
// persisted by memento.Store.Put.
type Dataset struct {
	graphs map[string][]Quad // keyed by graph.String(), "" for the default graph
}

func NewDataset() *Dataset {
	return &Dataset{graphs: make(map[string][]Quad)}
}

func (d *Dataset) Add(q Quad) {
	key := graphKey(q.Graph)
	d.graphs[key] = append(d.graphs[key], q)
}

func graphKey(g Term) string {
	if g.IsDefaultGraph() {
		return ""
	}
	return g.String()
}

// Graph returns the triples held in the named graph (DefaultGraph for the
// unnamed graph), in insertion order.
func (d *Dataset) Graph(graph Term) []Quad {
	return d.graphs[graphKey(graph)]
}

// Graphs returns every graph term that holds at least one quad, excluding
// the default graph (callers that care about it check Graph(DefaultGraph)
// directly, mirroring how PreferContainment/PreferMembership/etc. are
// enumerated independently in spec.md §3).
func (d *Dataset) Graphs() []Term {
	var out []Term
	for key, quads := range d.graphs {
		if key == "" || len(quads) == 0 {
			continue
		}
		out = append(out, quads[0].Graph)
	}
	return out
}

func (d *Dataset) Len() int {
	n := 0
	for _, quads := range d.graphs {
		n += len(quads)
	}
	return n
}

// All returns every quad in the dataset across all graphs, for the n-quads
// codec to serialize as a single file (spec.md §6: "one <epoch-seconds>.nq
// per Memento").
func (d *Dataset) All() []Quad {
	out := make([]Quad, 0, d.Len())
	for _, quads := range d.graphs {
		out = append(out, quads...)
	}
	return out
}
