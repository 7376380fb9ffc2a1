package ldp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/audit"
	boltutil "trellis.io/ldp/db/bolt"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/memento"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/resource"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	db, err := boltutil.Open(filepath.Join(t.TempDir(), "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	resources, err := resource.NewBoltStore(db)
	require.NoError(t, err)

	mementos := memento.NewFilesystemStore(t.TempDir(), identifier.DefaultLayout(), nil)
	auditStore := audit.Noop{}

	return New(resources, nil, mementos, auditStore, nil, nil)
}

func TestPipelineCreateWritesMementoSnapshot(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	r := &resource.Resource{Identifier: "trellis:data/r1", InteractionModel: resource.RDFSource, Modified: now}
	ds := rdf.NewDataset()
	ds.Add(rdf.NewQuad(rdf.DefaultGraph, rdf.IRI("trellis:data/r1"), rdf.IRI("http://purl.org/dc/terms/title"), rdf.Literal("hello", "")))

	require.NoError(t, p.Create(ctx, r, ds, "http://example.org/agents/alice"))

	snap, err := p.Resources.Get(ctx, "trellis:data/r1")
	require.NoError(t, err)
	assert.True(t, snap.Exists())

	quads, ok, err := p.Mementos.Get(ctx, "trellis:data/r1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, quads, 3) // dc:title plus server-managed rdf:type and dc:modified
}

func TestPipelineReplaceRejectsModifiedThatDoesNotAdvance(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	r := &resource.Resource{Identifier: "trellis:data/r2", InteractionModel: resource.RDFSource, Modified: now}
	require.NoError(t, p.Create(ctx, r, rdf.NewDataset(), ""))

	stale := &resource.Resource{Identifier: "trellis:data/r2", InteractionModel: resource.RDFSource, Modified: now}
	err := p.Replace(ctx, stale, rdf.NewDataset(), now, "")
	assert.Error(t, err)
}

func TestPipelineDeleteLeavesTombstoneReadableInMemento(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)
	t1 := t0.Add(time.Second)

	r := &resource.Resource{Identifier: "trellis:data/r3", InteractionModel: resource.RDFSource, Modified: t0}
	require.NoError(t, p.Create(ctx, r, rdf.NewDataset(), ""))
	require.NoError(t, p.Delete(ctx, "trellis:data/r3", resource.RDFSource, t1, ""))

	snap, err := p.Resources.Get(ctx, "trellis:data/r3")
	require.NoError(t, err)
	assert.True(t, snap.IsDeleted())

	_, ok, err := p.Mementos.Get(ctx, "trellis:data/r3", t0)
	require.NoError(t, err)
	assert.True(t, ok)
}
