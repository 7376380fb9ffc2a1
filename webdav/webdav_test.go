package webdav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/audit"
	"trellis.io/ldp/binary"
	"trellis.io/ldp/cache"
	boltutil "trellis.io/ldp/db/bolt"
	trellishttp "trellis.io/ldp/http"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/ldp"
	"trellis.io/ldp/memento"
	"trellis.io/ldp/namespace"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/rdfio"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/webac"
)

const testBase = "http://example.org"

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db, err := boltutil.Open(filepath.Join(t.TempDir(), "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	resources, err := resource.NewBoltStore(db)
	require.NoError(t, err)

	mementos := memento.NewFilesystemStore(t.TempDir(), identifier.DefaultLayout(), nil)
	ids := identifier.DefaultBinaryIDSupplier()
	binaries := binary.NewFilesystemStore(t.TempDir(), ids, nil)

	ns, err := namespace.New("")
	require.NoError(t, err)
	rdfSvc := rdfio.NewService(ns)

	pipeline := ldp.New(resources, binaries, mementos, audit.Noop{}, nil, nil)

	engine := &webac.Engine{
		Resources: resources,
		Admins:    map[string]bool{"": true},
	}
	cached := &webac.CachedEngine{Engine: engine, Cache: cache.NewInMemoryCache(100)}

	h := &ldp.Handler{
		Pipeline:  pipeline,
		Resources: resources,
		Binaries:  binaries,
		Mementos:  mementos,
		RDFIO:     rdfSvc,
		WebAC:     cached,
		IDs:       ids,
		BaseURL:   testBase,
	}

	root := &resource.Resource{Identifier: "/", InteractionModel: resource.BasicContainer}
	require.NoError(t, pipeline.Create(context.Background(), root, rdf.NewDataset(), ""))

	return New(h)
}

func doRequest(h *Handler, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = trellishttp.CustomHTTPErrorHandler
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMkColCreatesBasicContainer(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/a", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderLocation))
}

func TestMkColRejectsMissingParent(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/missing/child", "", nil)
	assert.NotEqual(t, http.StatusCreated, rec.Code)
}

func TestPutUnderContainerAddsContainment(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/c1", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, http.MethodPut, "/c1/child1", "", map[string]string{
		"Content-Type": "application/n-triples",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	snap, err := h.LDP.Resources.Get(context.Background(), "/c1")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Contains(t, h.LDP.Children(snap.Resource), "/c1/child1")
}

func TestDeleteRecursiveRemovesChildren(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/d1", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(h, "MKCOL", "/d1/d2", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, http.MethodDelete, "/d1", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	snap, err := h.LDP.Resources.Get(context.Background(), "/d1/d2")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestCopyDepthZeroCopiesOnlySelf(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/s1", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(h, "MKCOL", "/s1/child", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "COPY", "/s1", "", map[string]string{
		"Destination": testBase + "/s1copy",
		"Depth":       "0",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	snap, err := h.LDP.Resources.Get(context.Background(), "/s1copy/child")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestCopyDepthInfinityCopiesSubtree(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/s2", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(h, "MKCOL", "/s2/child", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "COPY", "/s2", "", map[string]string{
		"Destination": testBase + "/s2copy",
		"Depth":       "infinity",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	snap, err := h.LDP.Resources.Get(context.Background(), "/s2copy/child")
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestCopyDoesNotCarryStaleContainmentFromSource(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/s4", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(h, "MKCOL", "/s4/child", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "COPY", "/s4", "", map[string]string{
		"Destination": testBase + "/s4copy",
		"Depth":       "infinity",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	snap, err := h.LDP.Resources.Get(context.Background(), "/s4copy")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	for _, child := range h.LDP.Children(snap.Resource) {
		assert.NotEqual(t, "/s4/child", child, "copy's containment graph must not retain a pointer back into the source tree")
	}
	assert.Contains(t, h.LDP.Children(snap.Resource), "/s4copy/child")
}

func TestCopyRejectsExistingDestination(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/s3", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(h, "MKCOL", "/s3dst", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "COPY", "/s3", "", map[string]string{
		"Destination": testBase + "/s3dst",
		"Depth":       "0",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMoveRejectsDestinationInsideSource(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/m1", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "MOVE", "/m1", "", map[string]string{
		"Destination": testBase + "/m1/nested",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMoveRelocatesSubtree(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/m2", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(h, "MKCOL", "/m2/child", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "MOVE", "/m2", "", map[string]string{
		"Destination": testBase + "/m2moved",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	oldSnap, err := h.LDP.Resources.Get(context.Background(), "/m2")
	require.NoError(t, err)
	assert.False(t, oldSnap.Exists())

	newSnap, err := h.LDP.Resources.Get(context.Background(), "/m2moved/child")
	require.NoError(t, err)
	assert.True(t, newSnap.Exists())
}

func TestPropFindReportsResourceType(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/p1", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, "PROPFIND", "/p1", "", nil)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "<collection")
}

func TestPropPatchSetsAndRemovesProperties(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, http.MethodPut, "/pp1", "", map[string]string{
		"Content-Type": "application/n-triples",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	setBody := `<?xml version="1.0"?>
<D:propertyupdate xmlns:D="DAV:" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <D:set>
    <D:prop>
      <dc:title>My Title</dc:title>
    </D:prop>
  </D:set>
</D:propertyupdate>`
	rec = doRequest(h, "PROPPATCH", "/pp1", setBody, map[string]string{
		"Content-Type": "application/xml",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	snap, err := h.LDP.Resources.Get(context.Background(), "/pp1")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	found := false
	for _, q := range snap.Resource.Stream.Graph(rdf.DefaultGraph) {
		if q.Predicate.Value == "http://purl.org/dc/elements/1.1/title" && q.Object.Value == "My Title" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckMoveCycleRejectsSelfAndDescendant(t *testing.T) {
	h := newTestHandler(t)
	rec := doRequest(h, "MKCOL", "/cy1", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Error(t, checkMoveCycle(context.Background(), h.LDP.Resources, "/cy1", "/cy1"))
	assert.Error(t, checkMoveCycle(context.Background(), h.LDP.Resources, "/cy1", "/cy1/sub"))
	assert.NoError(t, checkMoveCycle(context.Background(), h.LDP.Resources, "/cy1", "/other"))
}

func TestParseDepth(t *testing.T) {
	assert.Equal(t, depthZero, parseDepth("0"))
	assert.Equal(t, depthOne, parseDepth("1"))
	assert.Equal(t, depthInfinity, parseDepth("infinity"))
	assert.Equal(t, depthInfinity, parseDepth(""))
}

func TestSplitIRI(t *testing.T) {
	ns, local := splitIRI("http://purl.org/dc/terms/title")
	assert.Equal(t, "http://purl.org/dc/terms/", ns)
	assert.Equal(t, "title", local)

	ns, local = splitIRI("http://www.w3.org/ns/ldp#contains")
	assert.Equal(t, "http://www.w3.org/ns/ldp#", ns)
	assert.Equal(t, "contains", local)
}
