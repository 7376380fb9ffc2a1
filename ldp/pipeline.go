package ldp

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"trellis.io/ldp/audit"
	"trellis.io/ldp/binary"
	"trellis.io/ldp/memento"
	"trellis.io/ldp/notification"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/trelliserr"
)

// Pipeline is the C10 mutation pipeline: every Create/Replace/Delete call
// drives the resource store, then the Memento engine and audit store
// (spec.md §5: "both write after primary mutation succeeds; failure of
// either leaves primary in place, logs error"), then the notification
// emitter (best-effort, spec.md §4.9).
type Pipeline struct {
	Resources resource.Store
	Binaries  binary.Store
	Mementos  memento.Store
	Audit     audit.Store
	Notifier  *notification.Emitter
	Log       *logrus.Logger
}

func New(resources resource.Store, binaries binary.Store, mementos memento.Store, auditStore audit.Store, notifier *notification.Emitter, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{Resources: resources, Binaries: binaries, Mementos: mementos, Audit: auditStore, Notifier: notifier, Log: log}
}

// Create persists a brand-new resource and its first Memento snapshot
// (invariant I4: exactly one Memento per mutation).
func (p *Pipeline) Create(ctx context.Context, r *resource.Resource, ds *rdf.Dataset, actor string) error {
	withServerManaged(ds, r)
	if err := p.Resources.Create(ctx, resource.Mutation{Resource: r, Dataset: ds}); err != nil {
		return err
	}
	p.afterMutation(ctx, r, ds, actor, notification.EventCreate)
	return nil
}

// Replace performs a CAS'd full replacement, advancing r.Modified past
// expectedModified (invariant I1: modified strictly increases).
func (p *Pipeline) Replace(ctx context.Context, r *resource.Resource, ds *rdf.Dataset, expectedModified time.Time, actor string) error {
	if !r.Modified.After(expectedModified) {
		return trelliserr.New(trelliserr.Internal, "replace must advance Modified past expectedModified")
	}
	withServerManaged(ds, r)
	if err := p.Resources.Replace(ctx, resource.Mutation{Resource: r, Dataset: ds}, expectedModified); err != nil {
		return err
	}
	p.afterMutation(ctx, r, ds, actor, notification.EventUpdate)
	return nil
}

// withServerManaged (re)writes r's PreferServerManaged triples (rdf:type,
// dc:modified, dc:isPartOf) into ds, replacing whatever stale copies a
// previous mutation left there, per spec.md §3's description of the
// PreferServerManaged graph as server-computed rather than client-supplied.
func withServerManaged(ds *rdf.Dataset, r *resource.Resource) {
	graph := rdf.IRI(graphServerManaged)
	kept := rdf.NewDataset()
	for _, q := range ds.All() {
		if q.Graph.Value == graphServerManaged {
			continue
		}
		kept.Add(q)
	}
	kept.Add(rdf.NewQuad(graph, rdf.IRI(r.Identifier), rdf.IRI(predType), rdf.IRI(string(r.InteractionModel))))
	kept.Add(rdf.NewQuad(graph, rdf.IRI(r.Identifier), rdf.IRI(predModified),
		rdf.Literal(r.Modified.UTC().Format(time.RFC3339), "http://www.w3.org/2001/XMLSchema#dateTime")))
	if r.Container != "" {
		kept.Add(rdf.NewQuad(graph, rdf.IRI(r.Identifier), rdf.IRI(predIsPartOf), rdf.IRI(r.Container)))
	}
	*ds = *kept
}

// Delete tombstones a resource. Per spec.md §4.7/§3, the Memento history up
// to and including the tombstone remains readable; the resource itself
// answers 410 on a direct GET.
func (p *Pipeline) Delete(ctx context.Context, id string, interactionModel resource.InteractionModel, at time.Time, actor string) error {
	if err := p.Resources.Delete(ctx, id, at); err != nil {
		return err
	}
	r := &resource.Resource{Identifier: id, InteractionModel: interactionModel, Modified: at}
	p.afterMutation(ctx, r, rdf.NewDataset(), actor, notification.EventDelete)
	return nil
}

// Touch advances a parent's Modified timestamp without a content change —
// the first half of the two-step create/delete containment update
// described in spec.md §5. It does not write a Memento snapshot or emit a
// notification: it is not itself a visible mutation of the parent's data,
// only bookkeeping.
func (p *Pipeline) Touch(ctx context.Context, id string, at time.Time) error {
	return p.Resources.Touch(ctx, id, at)
}

// afterMutation writes the Memento snapshot and audit record, and emits a
// best-effort notification. Per spec.md §5/§4.9, failures here are logged
// and never escalated back to the caller — the primary mutation already
// succeeded.
func (p *Pipeline) afterMutation(ctx context.Context, r *resource.Resource, ds *rdf.Dataset, actor string, eventType notification.EventType) {
	quads := ds.All()
	if p.Mementos != nil {
		if err := p.Mementos.Put(ctx, r.Identifier, r.Modified, quads); err != nil {
			p.Log.WithFields(logrus.Fields{"resource": r.Identifier, "error": err}).Error("failed to write memento snapshot")
		}
	}
	if p.Audit != nil {
		auditQuad := rdf.NewQuad(
			rdf.IRI("http://www.w3.org/ns/ldp#PreferAudit"),
			rdf.IRI(r.Identifier),
			rdf.IRI("http://purl.org/dc/terms/modified"),
			rdf.Literal(r.Modified.UTC().Format(time.RFC3339), "http://www.w3.org/2001/XMLSchema#dateTime"),
		)
		if err := p.Audit.Add(ctx, r.Identifier, []rdf.Quad{auditQuad}); err != nil {
			p.Log.WithFields(logrus.Fields{"resource": r.Identifier, "error": err}).Error("failed to append audit record")
		}
	}
	if p.Notifier != nil {
		if err := p.Notifier.Emit(ctx, notification.Event{
			Type:             eventType,
			Object:           r.Identifier,
			InteractionModel: string(r.InteractionModel),
			Actor:            actor,
			Created:          time.Now().UTC(),
		}); err != nil {
			p.Log.WithFields(logrus.Fields{"resource": r.Identifier, "error": err}).Warn("failed to emit notification")
		}
	}
}
