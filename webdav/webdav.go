// Package webdav implements the C11 WebDAV projection: MKCOL, PROPFIND,
// PROPPATCH, COPY, and MOVE mapped onto the C10 LDP primitives, plus a
// recursive DELETE (spec.md §4.8 — "the source does not perform it; the
// WebDAV filter does").
package webdav

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"trellis.io/ldp/binary"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/ldp"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/trelliserr"
	"trellis.io/ldp/webac"
)

// Handler layers the WebDAV verbs over an *ldp.Handler. Every non-DAV verb
// (GET/HEAD/POST/PATCH/OPTIONS) delegates straight through; PUT and DELETE
// are wrapped to add the WebDAV-specific rewrite and recursion rules.
type Handler struct {
	LDP *ldp.Handler
	Log *logrus.Logger
}

func New(h *ldp.Handler) *Handler {
	log := h.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{LDP: h, Log: log}
}

// RegisterRoutes wires both the LDP verbs and the WebDAV extension verbs
// onto a single route group sharing one principal-extraction middleware.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("", h.LDP.PrincipalMiddleware())
	g.GET("/*", h.LDP.Get)
	g.HEAD("/*", h.LDP.Get)
	g.POST("/*", h.LDP.Post)
	g.PATCH("/*", h.LDP.Patch)
	g.OPTIONS("/*", h.LDP.Options)
	g.PUT("/*", h.Put)
	g.DELETE("/*", h.Delete)
	g.Add("MKCOL", "/*", h.MkCol)
	g.Add("PROPFIND", "/*", h.PropFind)
	g.Add("PROPPATCH", "/*", h.PropPatch)
	g.Add("COPY", "/*", h.Copy)
	g.Add("MOVE", "/*", h.Move)
}

func (h *Handler) internalID(c echo.Context) string {
	return identifier.ToInternal(h.LDP.BaseURL, externalURL(c))
}

func externalURL(c echo.Context) string {
	req := c.Request()
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.Path
}

func principal(c echo.Context) webac.Principal {
	if p, ok := c.Get("principal").(webac.Principal); ok {
		return p
	}
	return webac.Principal{}
}

// destinationID resolves the Destination header to an internal id, per
// spec.md §4.8: "Destinations outside the deployment base URL fail with
// 400 Bad Request."
func (h *Handler) destinationID(c echo.Context) (string, error) {
	dest := c.Request().Header.Get("Destination")
	if dest == "" {
		return "", trelliserr.New(trelliserr.BadRequest, "Destination header is required")
	}
	if !strings.HasPrefix(dest, h.LDP.BaseURL) {
		return "", trelliserr.New(trelliserr.BadRequest, "Destination outside deployment base URL")
	}
	return identifier.ToInternal(h.LDP.BaseURL, dest), nil
}

const (
	depthZero = iota
	depthOne
	depthInfinity
)

func parseDepth(header string) int {
	switch header {
	case "0":
		return depthZero
	case "1":
		return depthOne
	default:
		return depthInfinity
	}
}

// MkCol creates an empty ldp:BasicContainer, per spec.md §4.8: "MKCOL → POST
// of ldp:BasicContainer with the last path segment as Slug."
func (h *Handler) MkCol(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)
	parentID, slug := path.Dir(id), path.Base(id)
	if slug == "" || slug == "." || slug == "/" {
		return trelliserr.New(trelliserr.BadRequest, "MKCOL requires a collection name")
	}
	if err := h.LDP.Authorize(c, parentID, webac.ModeAppend); err != nil {
		return err
	}
	childID, err := h.LDP.CreateContainer(ctx, parentID, slug, principal(c).Agent)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, identifier.ToExternal(h.LDP.BaseURL, childID))
	return c.NoContent(http.StatusCreated)
}

// Put rewrites a PUT to a non-existent URI under an existing container into
// a contained create (spec.md §4.8: "PUT to a non-existent URI under a
// container → rewrite to POST+Slug"). The underlying *ldp.Handler.Put
// already performs PUT-create at the literal id; this wrapper's only job is
// the containment bookkeeping a bare uncontained PUT-create would skip.
func (h *Handler) Put(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)

	snap, err := h.LDP.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if snap.Exists() {
		return h.LDP.Put(c)
	}

	parentID := path.Dir(id)
	parentSnap, err := h.LDP.Resources.Get(ctx, parentID)
	if err != nil {
		return err
	}
	if err := h.LDP.Put(c); err != nil {
		return err
	}
	if !parentSnap.Exists() || !parentSnap.Resource.InteractionModel.IsContainer() {
		return nil
	}
	if err := h.LDP.AddContainment(ctx, parentSnap.Resource, id, time.Now().UTC()); err != nil {
		h.Log.WithError(err).Warn("failed to update parent containment graph after PUT-create")
	}
	return nil
}

// Delete performs a recursive delete: children first, then the resource
// itself, per spec.md §4.8 ("DELETE → recursive: walk ldp:contains, delete
// children first") — plain LDP DELETE (ldp.Handler.Delete) is intentionally
// not recursive; this wrapper is what the WebDAV projection adds.
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)
	if err := h.LDP.Authorize(c, id, webac.ModeWrite); err != nil {
		return err
	}
	if err := h.deleteRecursive(ctx, id, principal(c).Agent); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) deleteRecursive(ctx context.Context, id, actor string) error {
	snap, err := h.LDP.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}
	for _, child := range h.LDP.Children(snap.Resource) {
		if err := h.deleteRecursive(ctx, child, actor); err != nil {
			h.Log.WithError(err).Warn("recursive delete failed for child resource")
		}
	}

	now := time.Now().UTC()
	if err := h.LDP.Pipeline.Delete(ctx, id, snap.Resource.InteractionModel, now, actor); err != nil {
		return err
	}
	if snap.Resource.Container == "" {
		return nil
	}
	parentSnap, err := h.LDP.Resources.Get(ctx, snap.Resource.Container)
	if err != nil || !parentSnap.Exists() {
		return nil
	}
	if err := h.LDP.RemoveContainment(ctx, parentSnap.Resource, id, now); err != nil {
		h.Log.WithError(err).Warn("failed to update parent containment graph after recursive delete")
	}
	return nil
}

// Copy duplicates a resource tree to Destination, per spec.md §4.8: "with
// Depth: 0|1|infinity; copies selected graphs + binary bytes to the
// destination; requires destination parent to exist and destination itself
// to be missing (else 409)."
func (h *Handler) Copy(c echo.Context) error {
	ctx := c.Request().Context()
	srcID := h.internalID(c)
	dstID, err := h.destinationID(c)
	if err != nil {
		return err
	}
	depth := parseDepth(c.Request().Header.Get("Depth"))

	if err := h.LDP.Authorize(c, srcID, webac.ModeRead); err != nil {
		return err
	}
	if err := h.LDP.Authorize(c, path.Dir(dstID), webac.ModeAppend); err != nil {
		return err
	}
	if err := h.copyTree(ctx, srcID, dstID, depth, principal(c).Agent); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

// copyTree copies srcID to dstID (requiring dstID's absence and its
// parent's presence, per spec.md §4.8), then recurses into srcID's
// children according to depth: depthZero copies only srcID itself,
// depthOne copies srcID plus its immediate children (as depthZero),
// depthInfinity copies the whole subtree.
func (h *Handler) copyTree(ctx context.Context, srcID, dstID string, depth int, actor string) error {
	snap, err := h.LDP.Resources.Get(ctx, srcID)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}

	dstSnap, err := h.LDP.Resources.Get(ctx, dstID)
	if err != nil {
		return err
	}
	if dstSnap.Exists() {
		return trelliserr.New(trelliserr.Conflict, "COPY destination already exists")
	}

	dstParentID := path.Dir(dstID)
	parentSnap, err := h.LDP.Resources.Get(ctx, dstParentID)
	if err != nil {
		return err
	}
	if !parentSnap.Exists() || !parentSnap.Resource.InteractionModel.IsContainer() {
		return trelliserr.New(trelliserr.Conflict, "COPY destination parent does not exist")
	}

	now := time.Now().UTC()
	r := &resource.Resource{
		Identifier:              dstID,
		InteractionModel:        snap.Resource.InteractionModel,
		Modified:                now,
		Container:               dstParentID,
		MembershipResource:      snap.Resource.MembershipResource,
		MemberRelation:          snap.Resource.MemberRelation,
		MemberOfRelation:        snap.Resource.MemberOfRelation,
		InsertedContentRelation: snap.Resource.InsertedContentRelation,
	}
	ds := rewriteDataset(withoutGraph(snap.Resource.Stream, graphContainment), srcID, dstID)

	if snap.Resource.Binary != nil {
		newBinID, _ := h.LDP.IDs.New()
		body, err := h.LDP.Binaries.Get(ctx, snap.Resource.Binary.ID)
		if err != nil {
			return err
		}
		meta := binary.Metadata{ContentType: snap.Resource.Binary.ContentType, Size: snap.Resource.Binary.Size}
		putErr := h.LDP.Binaries.Put(ctx, newBinID, body, meta)
		body.Close()
		if putErr != nil {
			return putErr
		}
		r.Binary = &resource.BinaryMetadata{ID: newBinID, ContentType: snap.Resource.Binary.ContentType, Size: snap.Resource.Binary.Size}
	}

	if err := h.LDP.Pipeline.Create(ctx, r, ds, actor); err != nil {
		return err
	}
	if err := h.LDP.AddContainment(ctx, parentSnap.Resource, dstID, now); err != nil {
		h.Log.WithError(err).Warn("failed to update parent containment graph after COPY")
	}

	if depth == depthZero {
		return nil
	}
	childDepth := depth
	if depth == depthOne {
		childDepth = depthZero
	}
	for _, child := range h.LDP.Children(snap.Resource) {
		childDst := path.Join(dstID, path.Base(child))
		if err := h.copyTree(ctx, child, childDst, childDepth, actor); err != nil {
			h.Log.WithError(err).Warn("COPY failed for child resource")
		}
	}
	return nil
}

// graphContainment is the PreferContainment named graph the LDP pipeline
// stores ldp:contains quads in (ldp/mutations.go's graphContainment).
const graphContainment = "http://www.w3.org/ns/ldp#PreferContainment"

// withoutGraph drops every quad in the given named graph. copyTree uses this
// to strip the source container's ldp:contains listing before copying its
// stream: those quads name children still rooted under the old subtree, and
// AddContainment reconstructs the correct ldp:contains edges per-destination
// as the recursive copy walks each child, so carrying the stale listing
// forward would leave the copy's containment graph with both the correct
// new children and phantom entries pointing back into the source tree.
func withoutGraph(ds *rdf.Dataset, graph string) *rdf.Dataset {
	out := rdf.NewDataset()
	if ds == nil {
		return out
	}
	for _, q := range ds.All() {
		if q.Graph.Value == graph {
			continue
		}
		out.Add(q)
	}
	return out
}

// rewriteDataset copies ds, replacing every term equal to oldID with newID
// (so self-referential triples like a container's own rdf:type subject
// follow the resource to its new identifier), per spec.md §4.8's "copies
// selected graphs ... to the destination".
func rewriteDataset(ds *rdf.Dataset, oldID, newID string) *rdf.Dataset {
	out := rdf.NewDataset()
	if ds == nil {
		return out
	}
	for _, q := range ds.All() {
		out.Add(rdf.NewQuad(q.Graph, rewriteTerm(q.Subject, oldID, newID), q.Predicate, rewriteTerm(q.Object, oldID, newID)))
	}
	return out
}

func rewriteTerm(t rdf.Term, oldID, newID string) rdf.Term {
	if t.IsIRI() && t.Value == oldID {
		return rdf.IRI(newID)
	}
	return t
}
