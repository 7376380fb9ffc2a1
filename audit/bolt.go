package audit

import (
	"context"

	boltutil "trellis.io/ldp/db/bolt"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/trelliserr"
)

const bucketAudit = "audit"

// BoltStore is the C5 driver: each resource id keys one JSON record holding
// the list of quad batches; every Add call appends a batch to that list so
// List can replay them in order, grounded on the teacher's db/bolt generic
// KV helper.
type BoltStore struct {
	db *boltutil.DB
}

func NewBoltStore(db *boltutil.DB) (*BoltStore, error) {
	if err := db.CreateBucket(bucketAudit); err != nil {
		return nil, trelliserr.Wrap(trelliserr.Internal, "create audit bucket", err)
	}
	return &BoltStore{db: db}, nil
}

type entries struct {
	Batches [][]rdf.Quad
}

func (s *BoltStore) Add(ctx context.Context, id string, quads []rdf.Quad) error {
	var e entries
	_ = s.db.GetJSON(bucketAudit, id, &e) // absent key leaves e zero-valued
	e.Batches = append(e.Batches, quads)
	if err := s.db.PutJSON(bucketAudit, id, e); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "append audit record", err)
	}
	return nil
}

func (s *BoltStore) List(ctx context.Context, id string) ([]rdf.Quad, error) {
	var e entries
	if err := s.db.GetJSON(bucketAudit, id, &e); err != nil {
		return nil, nil
	}
	var all []rdf.Quad
	for _, batch := range e.Batches {
		all = append(all, batch...)
	}
	return all, nil
}
