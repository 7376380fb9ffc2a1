package resource

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
	boltutil "trellis.io/ldp/db/bolt"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/trelliserr"
)

const bucketResources = "resources"

// record is the JSON shape persisted per resource: server-managed metadata
// plus the dataset's quads, each JSON-encoded as an rdf.Quad, since bbolt
// values are opaque byte slices.
type record struct {
	Resource *Resource
	Quads    []rdf.Quad
	Deleted  bool
}

// BoltStore is the default C4 driver: one bbolt bucket keyed by internal
// resource IRI, grounded on the teacher's db/bolt generic KV helper.
type BoltStore struct {
	db *boltutil.DB
}

func NewBoltStore(db *boltutil.DB) (*BoltStore, error) {
	if err := db.CreateBucket(bucketResources); err != nil {
		return nil, trelliserr.Wrap(trelliserr.Internal, "create resource bucket", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, id string) (Snapshot, error) {
	var rec record
	err := s.db.GetJSON(bucketResources, id, &rec)
	if err != nil {
		return MissingResource, nil
	}
	if rec.Deleted {
		return Deleted(rec.Resource.Modified), nil
	}
	rec.Resource.Stream = datasetFromQuads(rec.Quads)
	return Materialized(rec.Resource), nil
}

// Create and Replace each read the existing record and write the new one
// inside a single bbolt transaction: db/bolt's GetJSON/PutJSON helpers each
// open their own View/Update transaction, so two calls chained as
// read-then-write would let concurrent callers both pass the
// existence/expectedModified check before either writes, breaking the CAS
// contract resource.Store documents.

func (s *BoltStore) Create(ctx context.Context, m Mutation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketResources))
		existing, found, err := getRecord(b, m.Resource.Identifier)
		if err != nil {
			return err
		}
		if found && !existing.Deleted {
			return trelliserr.New(trelliserr.Conflict, "resource already exists: "+m.Resource.Identifier)
		}
		return putRecord(b, m)
	})
}

func (s *BoltStore) Replace(ctx context.Context, m Mutation, expectedModified time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketResources))
		existing, found, err := getRecord(b, m.Resource.Identifier)
		if err != nil {
			return err
		}
		if !found || existing.Deleted {
			return trelliserr.New(trelliserr.NotFound, "resource not found: "+m.Resource.Identifier)
		}
		if !existing.Resource.Modified.Equal(expectedModified) {
			return trelliserr.New(trelliserr.Conflict, "resource modified concurrently: "+m.Resource.Identifier)
		}
		return putRecord(b, m)
	})
}

// getRecord reads a record within an already-open transaction's bucket. A
// missing key is reported via the ok return, not an error.
func getRecord(b *bolt.Bucket, id string) (record, bool, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return record{}, false, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, false, trelliserr.Wrap(trelliserr.Internal, "decode resource record", err)
	}
	return rec, true, nil
}

func putRecord(b *bolt.Bucket, m Mutation) error {
	rec := record{Resource: m.Resource}
	if m.Dataset != nil {
		rec.Quads = m.Dataset.All()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "encode resource record", err)
	}
	if err := b.Put([]byte(m.Resource.Identifier), data); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "store resource", err)
	}
	return nil
}

func (s *BoltStore) store(m Mutation) error {
	rec := record{Resource: m.Resource}
	if m.Dataset != nil {
		rec.Quads = m.Dataset.All()
	}
	if err := s.db.PutJSON(bucketResources, m.Resource.Identifier, rec); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "store resource", err)
	}
	return nil
}

func (s *BoltStore) Delete(ctx context.Context, id string, at time.Time) error {
	rec := record{Resource: &Resource{Identifier: id, Modified: at}, Deleted: true}
	if err := s.db.PutJSON(bucketResources, id, rec); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "tombstone resource", err)
	}
	return nil
}

func (s *BoltStore) Touch(ctx context.Context, id string, at time.Time) error {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "resource not found: "+id)
	}
	snap.Resource.Modified = at
	return s.store(Mutation{Resource: snap.Resource, Dataset: snap.Resource.Stream})
}

func datasetFromQuads(quads []rdf.Quad) *rdf.Dataset {
	ds := rdf.NewDataset()
	for _, q := range quads {
		ds.Add(q)
	}
	return ds
}
