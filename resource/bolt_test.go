package resource

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	boltutil "trellis.io/ldp/db/bolt"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/trelliserr"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := boltutil.Open(filepath.Join(t.TempDir(), "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := NewBoltStore(db)
	require.NoError(t, err)
	return store
}

func TestBoltStoreCreateGetReplace(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	ds := rdf.NewDataset()
	ds.Add(rdf.NewQuad(rdf.DefaultGraph, rdf.IRI("trellis:data/r1"), rdf.IRI("http://purl.org/dc/terms/title"), rdf.Literal("hello", "")))

	r := &Resource{Identifier: "trellis:data/r1", InteractionModel: RDFSource, Modified: t0}
	require.NoError(t, store.Create(ctx, Mutation{Resource: r, Dataset: ds}))

	snap, err := store.Get(ctx, "trellis:data/r1")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, RDFSource, snap.Resource.InteractionModel)
	assert.Len(t, snap.Resource.Stream.All(), 1)

	t1 := t0.Add(time.Second)
	r2 := &Resource{Identifier: "trellis:data/r1", InteractionModel: RDFSource, Modified: t1}
	require.NoError(t, store.Replace(ctx, Mutation{Resource: r2, Dataset: ds}, t0))

	// stale CAS must fail
	err = store.Replace(ctx, Mutation{Resource: r2, Dataset: ds}, t0)
	require.Error(t, err)
	assert.Equal(t, trelliserr.Conflict, trelliserr.KindOf(err))
}

func TestBoltStoreCreateTwiceConflicts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	r := &Resource{Identifier: "trellis:data/dup", InteractionModel: RDFSource, Modified: time.Now()}
	require.NoError(t, store.Create(ctx, Mutation{Resource: r}))
	err := store.Create(ctx, Mutation{Resource: r})
	require.Error(t, err)
	assert.Equal(t, trelliserr.Conflict, trelliserr.KindOf(err))
}

func TestBoltStoreDeleteLeavesTombstone(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	r := &Resource{Identifier: "trellis:data/del", InteractionModel: RDFSource, Modified: time.Now()}
	require.NoError(t, store.Create(ctx, Mutation{Resource: r}))

	at := time.Now().Add(time.Minute)
	require.NoError(t, store.Delete(ctx, "trellis:data/del", at))

	snap, err := store.Get(ctx, "trellis:data/del")
	require.NoError(t, err)
	assert.True(t, snap.IsDeleted())
}

func TestBoltStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	snap, err := store.Get(context.Background(), "trellis:data/nope")
	require.NoError(t, err)
	assert.True(t, snap.IsMissing())
}

func TestBoltStoreTouchAdvancesModifiedOnly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)
	r := &Resource{Identifier: "trellis:data/parent", InteractionModel: BasicContainer, Modified: t0}
	require.NoError(t, store.Create(ctx, Mutation{Resource: r}))

	t1 := t0.Add(time.Second)
	require.NoError(t, store.Touch(ctx, "trellis:data/parent", t1))

	snap, err := store.Get(ctx, "trellis:data/parent")
	require.NoError(t, err)
	assert.True(t, snap.Resource.Modified.Equal(t1))
	assert.Equal(t, BasicContainer, snap.Resource.InteractionModel)
}
