package resource

import (
	"context"
	"time"

	"github.com/go-kivik/kivik/v4"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/trelliserr"
)

// couchDoc is the CouchDB document shape for a resource record, mirrored
// from the teacher's CouchDBClient document CRUD pattern (storage/
// database.go) but reshaped around resource.Mutation instead of a
// workflow-process document.
type couchDoc struct {
	ID       string       `json:"_id"`
	Rev      string       `json:"_rev,omitempty"`
	Resource *Resource    `json:"resource"`
	Quads    []rdf.Quad   `json:"quads"`
	Deleted  bool         `json:"deleted"`
}

// CouchStore is the alternate C4 driver, demonstrating polymorphism over
// the mutable snapshot store with a second real backend (spec.md §9).
type CouchStore struct {
	DB *kivik.DB
}

func NewCouchStore(db *kivik.DB) *CouchStore {
	return &CouchStore{DB: db}
}

// getDoc fetches the raw document, including its current _rev, so callers
// that both check and then write can reuse the rev they already read
// instead of re-fetching it immediately before the write — re-fetching
// would always hand CouchDB its own latest rev, defeating the _rev
// optimistic-concurrency check the write is supposed to rely on.
func (s *CouchStore) getDoc(ctx context.Context, id string) (couchDoc, bool, error) {
	row := s.DB.Get(ctx, id)
	var doc couchDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return couchDoc{}, false, nil
		}
		return couchDoc{}, false, trelliserr.Wrap(trelliserr.Internal, "get resource from couchdb", err)
	}
	return doc, true, nil
}

func (s *CouchStore) Get(ctx context.Context, id string) (Snapshot, error) {
	doc, found, err := s.getDoc(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		return MissingResource, nil
	}
	if doc.Deleted {
		return Deleted(doc.Resource.Modified), nil
	}
	doc.Resource.Stream = datasetFromQuads(doc.Quads)
	return Materialized(doc.Resource), nil
}

func (s *CouchStore) Create(ctx context.Context, m Mutation) error {
	doc, found, err := s.getDoc(ctx, m.Resource.Identifier)
	if err != nil {
		return err
	}
	if found && !doc.Deleted {
		return trelliserr.New(trelliserr.Conflict, "resource already exists: "+m.Resource.Identifier)
	}
	return s.put(ctx, m, doc.Rev)
}

func (s *CouchStore) Replace(ctx context.Context, m Mutation, expectedModified time.Time) error {
	doc, found, err := s.getDoc(ctx, m.Resource.Identifier)
	if err != nil {
		return err
	}
	if !found || doc.Deleted {
		return trelliserr.New(trelliserr.NotFound, "resource not found: "+m.Resource.Identifier)
	}
	if !doc.Resource.Modified.Equal(expectedModified) {
		return trelliserr.New(trelliserr.Conflict, "resource modified concurrently: "+m.Resource.Identifier)
	}
	return s.put(ctx, m, doc.Rev)
}

func (s *CouchStore) put(ctx context.Context, m Mutation, rev string) error {
	doc := couchDoc{ID: m.Resource.Identifier, Rev: rev, Resource: m.Resource}
	if m.Dataset != nil {
		doc.Quads = m.Dataset.All()
	}
	if _, err := s.DB.Put(ctx, doc.ID, doc); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "put resource to couchdb", err)
	}
	return nil
}

func (s *CouchStore) Delete(ctx context.Context, id string, at time.Time) error {
	doc, _, err := s.getDoc(ctx, id)
	if err != nil {
		return err
	}
	tombstone := couchDoc{ID: id, Rev: doc.Rev, Resource: &Resource{Identifier: id, Modified: at}, Deleted: true}
	if _, err := s.DB.Put(ctx, id, tombstone); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "tombstone resource in couchdb", err)
	}
	return nil
}

func (s *CouchStore) Touch(ctx context.Context, id string, at time.Time) error {
	doc, found, err := s.getDoc(ctx, id)
	if err != nil {
		return err
	}
	if !found || doc.Deleted {
		return trelliserr.New(trelliserr.NotFound, "resource not found: "+id)
	}
	doc.Resource.Modified = at
	return s.put(ctx, Mutation{Resource: doc.Resource, Dataset: datasetFromQuads(doc.Quads)}, doc.Rev)
}
