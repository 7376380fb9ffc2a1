package ldp

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"trellis.io/ldp/binary"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/rdfio"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/trelliserr"
	"trellis.io/ldp/webac"
)

func binaryMetadata(contentType string, size int64) binary.Metadata {
	return binary.Metadata{ContentType: contentType, Size: size}
}

const (
	graphContainment    = "http://www.w3.org/ns/ldp#PreferContainment"
	graphServerManaged  = "http://www.w3.org/ns/ldp#PreferServerManaged"
	graphAccessControl  = "http://www.w3.org/ns/ldp#PreferAccessControl"
	predContains        = "http://www.w3.org/ns/ldp#contains"
	predType            = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	predModified        = "http://purl.org/dc/terms/modified"
	predIsPartOf        = "http://purl.org/dc/terms/isPartOf"
)

// checkPrecondition enforces If-Match / CONFIG_HTTP_PRECONDITION_REQUIRED on
// mutating requests, per spec.md §4.7.
func (h *Handler) checkPrecondition(c echo.Context, r *resource.Resource) error {
	ifMatch := c.Request().Header.Get("If-Match")
	if ifMatch == "" {
		if h.PreconditionRequired {
			return trelliserr.New(trelliserr.PreconditionRequired, "If-Match is required")
		}
		return nil
	}
	if r == nil {
		return nil
	}
	if ifMatch != ComputeETag(r, h.WeakETag) {
		return trelliserr.New(trelliserr.PreconditionFailed, "If-Match does not match current ETag")
	}
	return nil
}

// interactionModelFromLink maps a POST/PUT request's Link: rel=type header
// to an interaction model, defaulting to RDFSource, or NonRDFSource when
// the request carries an opaque (non-RDF) content type, per spec.md §4.7.
func interactionModelFromLink(c echo.Context) resource.InteractionModel {
	for _, link := range c.Request().Header["Link"] {
		for _, part := range strings.Split(link, ",") {
			if !strings.Contains(part, `rel="type"`) {
				continue
			}
			start := strings.Index(part, "<")
			end := strings.Index(part, ">")
			if start < 0 || end < 0 || end <= start {
				continue
			}
			switch resource.InteractionModel(part[start+1 : end]) {
			case resource.NonRDFSource:
				return resource.NonRDFSource
			case resource.BasicContainer:
				return resource.BasicContainer
			case resource.DirectContainer:
				return resource.DirectContainer
			case resource.IndirectContainer:
				return resource.IndirectContainer
			case resource.RDFSource:
				return resource.RDFSource
			}
		}
	}
	if ct := c.Request().Header.Get(echo.HeaderContentType); ct != "" {
		for _, syn := range []rdfio.Syntax{rdfio.Turtle, rdfio.JSONLD, rdfio.NTriples} {
			if strings.HasPrefix(ct, string(syn)) {
				return resource.RDFSource
			}
		}
		return resource.NonRDFSource
	}
	return resource.RDFSource
}

// validateDigest checks a write request's Digest header against the bytes
// just written to binID, per spec.md §4.7: "Digest on a write request is
// validated against the stored bytes and rejected with 409 Conflict on
// mismatch." An algorithm this server cannot compute is silently skipped
// rather than failing the request.
func (h *Handler) validateDigest(ctx context.Context, header, binID string) error {
	if header == "" {
		return nil
	}
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		alg := normalizeDigestAlg(strings.TrimSpace(kv[0]))
		want := strings.TrimSpace(kv[1])
		got, err := h.Binaries.Digest(ctx, binID, alg)
		if err != nil {
			continue
		}
		if got != want {
			return trelliserr.New(trelliserr.Conflict, "Digest does not match stored bytes")
		}
	}
	return nil
}

func isRDFSyntax(contentType string, svc *rdfio.Service) (rdfio.Syntax, bool) {
	for _, syn := range svc.ReadSyntaxes() {
		if strings.HasPrefix(contentType, string(syn)) {
			return syn, true
		}
	}
	return "", false
}

// Post creates a new child resource under an LDP container, per spec.md
// §4.7: identifier from Slug (with collision retry), interaction model from
// Link rel=type. The parent's containment graph is updated after the child
// is created; a failure of that update is logged and does not fail the
// request.
func (h *Handler) Post(c echo.Context) error {
	ctx := c.Request().Context()
	parentID := h.internalID(c)

	if err := h.authorize(c, parentID, webac.ModeAppend); err != nil {
		return err
	}
	parentSnap, err := h.Resources.Get(ctx, parentID)
	if err != nil {
		return err
	}
	if !parentSnap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such container")
	}
	if !parentSnap.Resource.InteractionModel.IsContainer() {
		return trelliserr.New(trelliserr.MethodNotAllowed, "POST target is not a container")
	}

	childID, err := NextChildIDFromSlug(ctx, h.Resources, parentID, c.Request().Header.Get("Slug"))
	if err != nil {
		return err
	}

	model := interactionModelFromLink(c)
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return trelliserr.Wrap(trelliserr.BadRequest, "failed to read request body", err)
	}

	now := time.Now().UTC()
	r := &resource.Resource{
		Identifier:       childID,
		InteractionModel: model,
		Modified:         now,
		Container:        parentID,
	}
	ds := rdf.NewDataset()

	if model == resource.NonRDFSource {
		contentType := c.Request().Header.Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		id, _ := h.IDs.New()
		if err := h.Binaries.Put(ctx, id, strings.NewReader(string(body)), binaryMetadata(contentType, int64(len(body)))); err != nil {
			return err
		}
		if err := h.validateDigest(ctx, c.Request().Header.Get("Digest"), id); err != nil {
			h.Binaries.Purge(ctx, id)
			return err
		}
		r.Binary = &resource.BinaryMetadata{ID: id, ContentType: contentType, Size: int64(len(body))}
	} else {
		syn, ok := isRDFSyntax(c.Request().Header.Get(echo.HeaderContentType), h.RDFIO)
		if !ok {
			return trelliserr.New(trelliserr.UnsupportedSyntax, "unsupported RDF content type")
		}
		triples, err := h.RDFIO.Read(strings.NewReader(string(body)), syn, childID)
		if err != nil {
			return err
		}
		for _, t := range triples {
			ds.Add(rdf.NewQuad(rdf.DefaultGraph, t.Subject, t.Predicate, t.Object))
		}
	}

	actor := principal(c).Agent
	if err := h.Pipeline.Create(ctx, r, ds, actor); err != nil {
		return err
	}
	if err := h.addContainment(ctx, parentSnap.Resource, childID, now); err != nil {
		h.Log.WithError(err).Warn("failed to update parent containment graph")
	}

	c.Response().Header().Set(echo.HeaderLocation, identifier.ToExternal(h.BaseURL, childID))
	return c.NoContent(http.StatusCreated)
}

// AddContainment is the exported form of addContainment, used by the
// WebDAV projection (C11) when it creates resources through its own
// MKCOL/COPY/PUT-rewrite paths rather than through Post.
func (h *Handler) AddContainment(ctx context.Context, parent *resource.Resource, childID string, at time.Time) error {
	return h.addContainment(ctx, parent, childID, at)
}

// RemoveContainment is the exported form of removeContainment, used by the
// WebDAV projection's recursive DELETE (C11).
func (h *Handler) RemoveContainment(ctx context.Context, parent *resource.Resource, childID string, at time.Time) error {
	return h.removeContainment(ctx, parent, childID, at)
}

// Children returns the internal ids of r's immediate ldp:contains members,
// read from its own containment graph, per spec.md §3. Used by the WebDAV
// projection's recursive DELETE/COPY/MOVE (C11).
func (h *Handler) Children(r *resource.Resource) []string {
	if r == nil || r.Stream == nil {
		return nil
	}
	var out []string
	for _, q := range r.Stream.All() {
		if q.Graph.Value == graphContainment && q.Predicate.Value == predContains {
			out = append(out, q.Object.Value)
		}
	}
	return out
}

// CreateContainer creates an empty BasicContainer under parent and performs
// its containment bookkeeping, per the WebDAV projection's MKCOL mapping
// (spec.md §4.8). Unlike Post, no request body is read — MKCOL carries
// none.
func (h *Handler) CreateContainer(ctx context.Context, parentID, slug, actor string) (string, error) {
	parentSnap, err := h.Resources.Get(ctx, parentID)
	if err != nil {
		return "", err
	}
	if !parentSnap.Exists() {
		return "", trelliserr.New(trelliserr.Conflict, "MKCOL parent does not exist")
	}
	if !parentSnap.Resource.InteractionModel.IsContainer() {
		return "", trelliserr.New(trelliserr.MethodNotAllowed, "MKCOL parent is not a container")
	}

	childID, err := NextChildIDFromSlug(ctx, h.Resources, parentID, slug)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	r := &resource.Resource{Identifier: childID, InteractionModel: resource.BasicContainer, Modified: now, Container: parentID}
	if err := h.Pipeline.Create(ctx, r, rdf.NewDataset(), actor); err != nil {
		return "", err
	}
	if err := h.addContainment(ctx, parentSnap.Resource, childID, now); err != nil {
		h.Log.WithError(err).Warn("failed to update parent containment graph")
	}
	return childID, nil
}

// addContainment appends an ldp:contains edge to the parent's containment
// graph and advances its modified timestamp, per spec.md §3/§5 invariant
// "P.modified >= R.modified".
func (h *Handler) addContainment(ctx context.Context, parent *resource.Resource, childID string, at time.Time) error {
	ds := parent.Stream
	if ds == nil {
		ds = rdf.NewDataset()
	}
	ds.Add(rdf.NewQuad(rdf.IRI(graphContainment), rdf.IRI(parent.Identifier), rdf.IRI(predContains), rdf.IRI(childID)))
	updated := *parent
	updated.Modified = at
	updated.Stream = ds
	return h.Pipeline.Replace(ctx, &updated, ds, parent.Modified, "")
}

// Put performs a full replace of a resource's user-managed graph, or
// creates it if absent, per spec.md §4.7. Creation is not gated by any
// setting and does not check that a parent exists; a resource created here
// has no Container and no parent's containment graph is updated.
func (h *Handler) Put(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)

	if err := h.authorize(c, id, webac.ModeWrite); err != nil {
		return err
	}
	snap, err := h.Resources.Get(ctx, id)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return trelliserr.Wrap(trelliserr.BadRequest, "failed to read request body", err)
	}
	now := time.Now().UTC()
	actor := principal(c).Agent

	if !snap.Exists() {
		model := interactionModelFromLink(c)
		r := &resource.Resource{Identifier: id, InteractionModel: model, Modified: now}
		ds, err := h.datasetFromBody(c, id, model, body, r)
		if err != nil {
			return err
		}
		return h.finishCreate(c, r, ds, actor)
	}

	if err := h.checkPrecondition(c, snap.Resource); err != nil {
		return err
	}

	r := snap.Resource
	oldStream := r.Stream
	expected := r.Modified
	r.Modified = now
	newGraph, err := h.datasetFromBody(c, id, r.InteractionModel, body, r)
	if err != nil {
		return err
	}
	ds := preserveNonUserGraphs(oldStream, newGraph)
	r.Stream = ds
	if err := h.Pipeline.Replace(ctx, r, ds, expected, actor); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderETag, ComputeETag(r, h.WeakETag))
	return c.NoContent(http.StatusNoContent)
}

// preserveNonUserGraphs carries a resource's containment, membership, and
// access-control graphs forward across a PUT/PATCH, which per spec.md §4.7
// only replace the PreferUserManaged graph. PreferServerManaged is dropped
// here too since Pipeline.Replace recomputes it from the Resource fields.
func preserveNonUserGraphs(old, newUserGraph *rdf.Dataset) *rdf.Dataset {
	merged := rdf.NewDataset()
	if old != nil {
		for _, q := range old.All() {
			if q.Graph.IsDefaultGraph() || q.Graph.Value == graphServerManaged {
				continue
			}
			merged.Add(q)
		}
	}
	if newUserGraph != nil {
		for _, q := range newUserGraph.All() {
			merged.Add(q)
		}
	}
	return merged
}

func (h *Handler) finishCreate(c echo.Context, r *resource.Resource, ds *rdf.Dataset, actor string) error {
	if err := h.Pipeline.Create(c.Request().Context(), r, ds, actor); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderETag, ComputeETag(r, h.WeakETag))
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) datasetFromBody(c echo.Context, id string, model resource.InteractionModel, body []byte, r *resource.Resource) (*rdf.Dataset, error) {
	ds := rdf.NewDataset()
	if model == resource.NonRDFSource {
		contentType := c.Request().Header.Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		binID, _ := h.IDs.New()
		ctx := c.Request().Context()
		if err := h.Binaries.Put(ctx, binID, strings.NewReader(string(body)), binaryMetadata(contentType, int64(len(body)))); err != nil {
			return nil, err
		}
		if err := h.validateDigest(ctx, c.Request().Header.Get("Digest"), binID); err != nil {
			h.Binaries.Purge(ctx, binID)
			return nil, err
		}
		r.Binary = &resource.BinaryMetadata{ID: binID, ContentType: contentType, Size: int64(len(body))}
		return ds, nil
	}
	syn, ok := isRDFSyntax(c.Request().Header.Get(echo.HeaderContentType), h.RDFIO)
	if !ok {
		return nil, trelliserr.New(trelliserr.UnsupportedSyntax, "unsupported RDF content type")
	}
	triples, err := h.RDFIO.Read(strings.NewReader(string(body)), syn, id)
	if err != nil {
		return nil, err
	}
	for _, t := range triples {
		ds.Add(rdf.NewQuad(rdf.DefaultGraph, t.Subject, t.Predicate, t.Object))
	}
	r.Stream = ds
	return ds, nil
}

// Patch applies a SPARQL-Update document to a resource's user-managed
// graph, per spec.md §4.5/§4.7. Modifying the PreferAccessControl graph
// (?ext=acl) requires acl:Control rather than acl:Write.
func (h *Handler) Patch(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)
	modifyingACL := c.QueryParam("ext") == "acl"
	required := webac.ModeWrite
	if modifyingACL {
		required = webac.ModeControl
	}
	if err := h.authorize(c, id, required); err != nil {
		return err
	}

	snap, err := h.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}
	if err := h.checkPrecondition(c, snap.Resource); err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return trelliserr.Wrap(trelliserr.BadRequest, "failed to read request body", err)
	}

	r := snap.Resource
	oldStream := r.Stream
	targetGraph := rdf.DefaultGraph
	if modifyingACL {
		targetGraph = rdf.IRI(graphAccessControl)
	}

	var triples []rdf.Triple
	if oldStream != nil {
		for _, q := range oldStream.Graph(targetGraph) {
			triples = append(triples, q.Triple())
		}
	}
	if err := h.RDFIO.Update(&triples, rdfio.SPARQLUpdate, string(body), id); err != nil {
		return err
	}

	newGraph := rdf.NewDataset()
	for _, t := range triples {
		newGraph.Add(rdf.NewQuad(targetGraph, t.Subject, t.Predicate, t.Object))
	}

	var updated *rdf.Dataset
	if modifyingACL {
		updated = preserveGraphsExcept(oldStream, graphAccessControl)
		for _, q := range newGraph.All() {
			updated.Add(q)
		}
		r.HasACL = len(triples) > 0
	} else {
		updated = preserveNonUserGraphs(oldStream, newGraph)
	}

	expected := r.Modified
	r.Modified = time.Now().UTC()
	r.Stream = updated
	if err := h.Pipeline.Replace(ctx, r, updated, expected, principal(c).Agent); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderETag, ComputeETag(r, h.WeakETag))
	return c.NoContent(http.StatusNoContent)
}

// preserveGraphsExcept carries every named graph forward across a PATCH
// that replaces exceptGraph wholesale (the ?ext=acl case), per spec.md
// §4.5. PreferServerManaged is dropped too since Pipeline.Replace
// recomputes it.
func preserveGraphsExcept(old *rdf.Dataset, exceptGraph string) *rdf.Dataset {
	merged := rdf.NewDataset()
	if old != nil {
		for _, q := range old.All() {
			if q.Graph.Value == exceptGraph || q.Graph.Value == graphServerManaged {
				continue
			}
			merged.Add(q)
		}
	}
	return merged
}

// Delete tombstones a resource and removes it from its parent's containment
// graph, per spec.md §4.7/§5.
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)

	if err := h.authorize(c, id, webac.ModeWrite); err != nil {
		return err
	}
	snap, err := h.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}
	if err := h.checkPrecondition(c, snap.Resource); err != nil {
		return err
	}

	now := time.Now().UTC()
	model := snap.Resource.InteractionModel
	parentID := snap.Resource.Container
	if err := h.Pipeline.Delete(ctx, id, model, now, principal(c).Agent); err != nil {
		return err
	}

	if parentID != "" {
		if parentSnap, err := h.Resources.Get(ctx, parentID); err == nil && parentSnap.Exists() {
			if err := h.removeContainment(ctx, parentSnap.Resource, id, now); err != nil {
				h.Log.WithError(err).Warn("failed to update parent containment graph after delete")
			}
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) removeContainment(ctx context.Context, parent *resource.Resource, childID string, at time.Time) error {
	ds := parent.Stream
	if ds == nil {
		return nil
	}
	filtered := rdf.NewDataset()
	for _, q := range ds.All() {
		if q.Graph.Value == graphContainment && q.Predicate.Value == predContains && q.Object.Value == childID {
			continue
		}
		filtered.Add(q)
	}
	updated := *parent
	updated.Modified = at
	updated.Stream = filtered
	return h.Pipeline.Replace(ctx, &updated, filtered, parent.Modified, "")
}
