package ldp

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"trellis.io/ldp/binary"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/memento"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/rdfio"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/security"
	"trellis.io/ldp/trelliserr"
	"trellis.io/ldp/webac"
)

// Handler wires the C10 LDP protocol surface onto the lower-level stores
// and services built in C2–C9, per spec.md §4.7.
type Handler struct {
	Pipeline             *Pipeline
	Resources            resource.Store
	Binaries             binary.Store
	Mementos             memento.Store
	RDFIO                *rdfio.Service
	WebAC                *webac.CachedEngine
	IDs                  identifier.BinaryIDSupplier
	JWT                  *security.JWTService
	BaseURL              string
	WeakETag             bool
	PreconditionRequired bool
	MementoHeaderDates   bool
	Log                  *logrus.Logger
}

// principal extracts the webac.Principal an upstream auth middleware
// attaches to the request context (see PrincipalMiddleware in routes.go). Anonymous
// when absent.
func principal(c echo.Context) webac.Principal {
	if p, ok := c.Get("principal").(webac.Principal); ok {
		return p
	}
	return webac.Principal{}
}

func (h *Handler) internalID(c echo.Context) string {
	return identifier.ToInternal(h.BaseURL, externalURL(c))
}

func externalURL(c echo.Context) string {
	req := c.Request()
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.Path
}

// authorize enforces the WebAC decision for method against target, per
// spec.md §4.6/§4.7: access denied fails closed with 403 (401 if the
// principal is anonymous, matching a WWW-Authenticate challenge).
// Authorize is the exported form of authorize, used by the WebDAV
// projection (C11) so MKCOL/COPY/MOVE/recursive-DELETE enforce the same
// WebAC decision as the LDP verbs they are built from.
func (h *Handler) Authorize(c echo.Context, target string, required webac.Mode) error {
	return h.authorize(c, target, required)
}

func (h *Handler) authorize(c echo.Context, target string, required webac.Mode) error {
	p := principal(c)
	modes, err := h.WebAC.Modes(c.Request().Context(), target, p)
	if err != nil {
		return trelliserr.Wrap(trelliserr.Forbidden, "access control evaluation failed", err)
	}
	if modes[required] {
		return nil
	}
	if !p.Authenticated {
		c.Response().Header().Set("WWW-Authenticate", `Bearer realm="trellis"`)
		return trelliserr.New(trelliserr.Unauthorized, "authentication required")
	}
	return trelliserr.New(trelliserr.Forbidden, "access denied")
}

// Get serves GET/HEAD for an LDP resource: conditional requests, Memento
// (Accept-Datetime) negotiation, content negotiation, Prefer-driven graph
// inclusion, Range for binaries, and Memento Link headers, per spec.md
// §4.7/§4.4.
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)

	if err := h.authorize(c, id, webac.ModeRead); err != nil {
		return err
	}

	snap, err := h.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if snap.IsMissing() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}

	if acceptDatetime := c.Request().Header.Get("Accept-Datetime"); acceptDatetime != "" {
		return h.getMemento(c, id, acceptDatetime)
	}
	if c.QueryParam("ext") == "timemap" {
		return h.getTimeMap(c, id)
	}

	if snap.IsDeleted() {
		h.setMementoLinks(c, id)
		return trelliserr.New(trelliserr.Gone, "resource deleted")
	}

	r := snap.Resource
	etag := ComputeETag(r, h.WeakETag)
	if inm := c.Request().Header.Get("If-None-Match"); inm != "" && inm == etag {
		c.Response().Header().Set(echo.HeaderETag, etag)
		return c.NoContent(http.StatusNotModified)
	}

	c.Response().Header().Set(echo.HeaderETag, etag)
	c.Response().Header().Set("Last-Modified", r.Modified.UTC().Format(http.TimeFormat))
	c.Response().Header().Set("Link", interactionModelLinkHeader(r.InteractionModel))
	h.setMementoLinks(c, id)

	if r.InteractionModel == resource.NonRDFSource {
		return h.getBinary(c, r)
	}
	return h.getRDF(c, r)
}

func (h *Handler) getBinary(c echo.Context, r *resource.Resource) error {
	ctx := c.Request().Context()
	if r.Binary == nil {
		return trelliserr.New(trelliserr.Internal, "non-RDF source missing binary metadata")
	}
	c.Response().Header().Set(echo.HeaderContentType, r.Binary.ContentType)

	if wantDigest := c.Request().Header.Get("Want-Digest"); wantDigest != "" {
		if alg := parseWantDigest(wantDigest); alg != "" {
			digest, err := h.Binaries.Digest(ctx, r.Binary.ID, alg)
			if err == nil {
				c.Response().Header().Set("Digest", alg+"="+digest)
			}
		}
	}

	if rng := c.Request().Header.Get("Range"); rng != "" {
		if from, to, ok := parseRange(rng, r.Binary.Size); ok {
			body, err := h.Binaries.GetRange(ctx, r.Binary.ID, from, to)
			if err != nil {
				return err
			}
			defer body.Close()
			c.Response().Header().Set("Content-Range", contentRangeHeader(from, to, r.Binary.Size))
			c.Response().WriteHeader(http.StatusPartialContent)
			_, err = io.Copy(c.Response(), body)
			return err
		}
	}

	body, err := h.Binaries.Get(ctx, r.Binary.ID)
	if err != nil {
		return err
	}
	defer body.Close()
	_, err = io.Copy(c.Response(), body)
	return err
}

func (h *Handler) getRDF(c echo.Context, r *resource.Resource) error {
	syn := negotiateWriteSyntax(c.Request().Header.Get(echo.HeaderAccept), h.RDFIO)
	if syn == "" {
		return trelliserr.New(trelliserr.NotAcceptable, "no acceptable RDF syntax")
	}
	pref := ParsePrefer(c.Request().Header.Get("Prefer"))
	triples := selectGraphs(r.Stream, pref)

	c.Response().Header().Set(echo.HeaderContentType, string(syn))
	return h.RDFIO.Write(triples, c.Response(), syn, externalURL(c), rdfio.Profile{Shape: rdfio.ShapeCompacted})
}

// selectGraphs applies Prefer include/omit over a resource's named graphs,
// per spec.md §4.7. PreferUserManaged is always included unless explicitly
// omitted (return=minimal omits everything but user-managed).
func selectGraphs(ds *rdf.Dataset, pref Prefer) []rdf.Triple {
	if ds == nil {
		return nil
	}
	omit := make(map[string]bool)
	for _, g := range pref.Omit {
		omit[g] = true
	}
	include := make(map[string]bool)
	for _, g := range pref.Include {
		include[g] = true
	}

	var out []rdf.Triple
	for _, q := range ds.All() {
		key := q.Graph.Value
		if q.Graph.IsDefaultGraph() {
			if !omit["http://www.w3.org/ns/ldp#PreferUserManaged"] {
				out = append(out, q.Triple())
			}
			continue
		}
		if omit[key] {
			continue
		}
		if pref.ReturnMinimal && !include[key] {
			continue
		}
		out = append(out, q.Triple())
	}
	return out
}

func (h *Handler) getMemento(c echo.Context, id, acceptDatetime string) error {
	t, err := http.ParseTime(acceptDatetime)
	if err != nil {
		return trelliserr.New(trelliserr.BadRequest, "malformed Accept-Datetime")
	}
	quads, ok, err := h.Mementos.Get(c.Request().Context(), id, t)
	if err != nil {
		return err
	}
	if !ok {
		return trelliserr.New(trelliserr.NotAcceptable, "no memento for the requested datetime")
	}
	syn := negotiateWriteSyntax(c.Request().Header.Get(echo.HeaderAccept), h.RDFIO)
	if syn == "" {
		return trelliserr.New(trelliserr.NotAcceptable, "no acceptable RDF syntax")
	}
	triples := make([]rdf.Triple, len(quads))
	for i, q := range quads {
		triples[i] = q.Triple()
	}
	c.Response().Header().Set("Memento-Datetime", t.UTC().Format(http.TimeFormat))
	c.Response().Header().Set(echo.HeaderContentType, string(syn))
	return h.RDFIO.Write(triples, c.Response(), syn, externalURL(c), rdfio.Profile{Shape: rdfio.ShapeCompacted})
}

func (h *Handler) getTimeMap(c echo.Context, id string) error {
	intervals, err := h.Mementos.List(c.Request().Context(), id)
	if err != nil {
		return err
	}
	var ds rdf.Dataset
	for _, iv := range intervals {
		q := rdf.NewQuad(rdf.DefaultGraph, rdf.IRI(id),
			rdf.IRI("http://mementoweb.org/ns#memento"),
			rdf.Literal(iv.Start.UTC().Format(time.RFC3339), ""))
		ds.Add(q)
	}
	syn := negotiateWriteSyntax(c.Request().Header.Get(echo.HeaderAccept), h.RDFIO)
	if syn == "" {
		return trelliserr.New(trelliserr.NotAcceptable, "no acceptable RDF syntax")
	}
	triples := make([]rdf.Triple, 0, ds.Len())
	for _, q := range ds.All() {
		triples = append(triples, q.Triple())
	}
	c.Response().Header().Set(echo.HeaderContentType, string(syn))
	return h.RDFIO.Write(triples, c.Response(), syn, externalURL(c), rdfio.Profile{Shape: rdfio.ShapeCompacted})
}

func (h *Handler) setMementoLinks(c echo.Context, id string) {
	var links []string
	links = append(links, "<"+id+">; rel=\"original timegate\"")
	links = append(links, "<"+id+"?ext=timemap>; rel=\"timemap\"")
	if h.MementoHeaderDates {
		intervals, err := h.Mementos.List(c.Request().Context(), id)
		if err == nil {
			for _, iv := range intervals {
				links = append(links, "<"+id+">; rel=\"memento\"; datetime=\""+iv.Start.UTC().Format(http.TimeFormat)+"\"")
			}
		}
	}
	c.Response().Header().Add("Link", strings.Join(links, ", "))
}

func interactionModelLinkHeader(m resource.InteractionModel) string {
	return "<" + string(m) + ">; rel=\"type\""
}

func parseWantDigest(header string) string {
	for _, part := range strings.Split(header, ",") {
		name := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if name != "" {
			return normalizeDigestAlg(name)
		}
	}
	return ""
}

func normalizeDigestAlg(alg string) string {
	if strings.EqualFold(alg, "SHA") {
		return "SHA-1"
	}
	return strings.ToUpper(alg)
}

func parseRange(header string, size int64) (from, to int64, ok bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] == "" {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		from = size - n
		if from < 0 {
			from = 0
		}
		return from, size - 1, true
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if parts[1] != "" {
		e, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || e < start {
			return 0, 0, false
		}
		if e < end {
			end = e
		}
	}
	return start, end, true
}

func contentRangeHeader(from, to, size int64) string {
	return "bytes " + strconv.FormatInt(from, 10) + "-" + strconv.FormatInt(to, 10) + "/" + strconv.FormatInt(size, 10)
}
