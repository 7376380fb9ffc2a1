package memento

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/rdf"
)

func quad(title string) rdf.Quad {
	return rdf.NewQuad(rdf.DefaultGraph, rdf.IRI("trellis:data/r1"), rdf.IRI("http://purl.org/dc/terms/title"), rdf.Literal(title, ""))
}

func TestFilesystemStorePutGetSelectsGreatestNotAfter(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultLayout(), nil)
	ctx := context.Background()

	t0 := time.Unix(1000, 0).UTC()
	t1 := time.Unix(2000, 0).UTC()
	require.NoError(t, store.Put(ctx, "trellis:data/r1", t0, []rdf.Quad{quad("v0")}))
	require.NoError(t, store.Put(ctx, "trellis:data/r1", t1, []rdf.Quad{quad("v1")}))

	quads, ok, err := store.Get(ctx, "trellis:data/r1", time.Unix(1500, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v0", quads[0].Object.Value)

	quads, ok, err = store.Get(ctx, "trellis:data/r1", time.Unix(5000, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", quads[0].Object.Value)

	_, ok, err = store.Get(ctx, "trellis:data/r1", time.Unix(500, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilesystemStoreSameEpochCollapses(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultLayout(), nil)
	ctx := context.Background()
	t0 := time.Unix(1000, 0).UTC()

	require.NoError(t, store.Put(ctx, "trellis:data/r1", t0, []rdf.Quad{quad("first")}))
	require.NoError(t, store.Put(ctx, "trellis:data/r1", t0, []rdf.Quad{quad("second")}))

	quads, ok, err := store.Get(ctx, "trellis:data/r1", t0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", quads[0].Object.Value)

	intervals, err := store.List(ctx, "trellis:data/r1")
	require.NoError(t, err)
	assert.Len(t, intervals, 1)
}

func TestFilesystemStoreListReturnsHalfOpenIntervals(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultLayout(), nil)
	ctx := context.Background()
	t0 := time.Unix(1000, 0).UTC()
	t1 := time.Unix(2000, 0).UTC()
	require.NoError(t, store.Put(ctx, "trellis:data/r1", t0, []rdf.Quad{quad("v0")}))
	require.NoError(t, store.Put(ctx, "trellis:data/r1", t1, []rdf.Quad{quad("v1")}))

	intervals, err := store.List(ctx, "trellis:data/r1")
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.True(t, intervals[0].Start.Equal(t0))
	assert.True(t, intervals[0].End.Equal(t1))
	assert.False(t, intervals[0].Open)
	assert.True(t, intervals[1].Open)
}

func TestFilesystemStoreDeleteRemovesOneSnapshot(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultLayout(), nil)
	ctx := context.Background()
	t0 := time.Unix(1000, 0).UTC()
	require.NoError(t, store.Put(ctx, "trellis:data/r1", t0, []rdf.Quad{quad("v0")}))
	require.NoError(t, store.Delete(ctx, "trellis:data/r1", t0))

	_, ok, err := store.Get(ctx, "trellis:data/r1", t0)
	require.NoError(t, err)
	assert.False(t, ok)
}
