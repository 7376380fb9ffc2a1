package webdav

import (
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/trelliserr"
	"trellis.io/ldp/webac"
)

const davNS = "DAV:"

// Property is one WebDAV property value: XMLName carries the DAV: or
// arbitrary namespace+local-name pair, InnerXML the already-rendered
// element content. This is the same wire shape golang.org/x/net/webdav's
// PropSystem uses for live and dead properties.
type Property struct {
	XMLName  xml.Name
	InnerXML []byte `xml:",innerxml"`
}

type multistatus struct {
	XMLName   xml.Name     `xml:"DAV: multistatus"`
	Responses []msResponse `xml:"response"`
}

type msResponse struct {
	XMLName  xml.Name    `xml:"DAV: response"`
	Href     string      `xml:"DAV: href"`
	Propstat propstatXML `xml:"DAV: propstat"`
}

type propstatXML struct {
	Prop   propWrapper `xml:"DAV: prop"`
	Status string      `xml:"DAV: status"`
}

type propWrapper struct {
	Items []Property `xml:",any"`
}

// PropFind reports the requested resource's properties as a DAV
// multistatus document, per spec.md §4.8: every literal-valued triple on
// the resource becomes a property element (namespace+local-name split
// from its predicate IRI), plus the synthetic getcontenttype,
// getlastmodified, and resourcetype properties.
func (h *Handler) PropFind(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)
	if err := h.LDP.Authorize(c, id, webac.ModeRead); err != nil {
		return err
	}
	snap, err := h.LDP.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}

	props := syntheticProperties(snap.Resource)
	props = append(props, userManagedProperties(snap.Resource)...)

	ms := multistatus{Responses: []msResponse{{
		Href: externalURL(c),
		Propstat: propstatXML{
			Prop:   propWrapper{Items: props},
			Status: "HTTP/1.1 200 OK",
		},
	}}}
	body, err := xml.Marshal(ms)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusMultiStatus, "application/xml; charset=utf-8", body)
}

func syntheticProperties(r *resource.Resource) []Property {
	props := []Property{
		{XMLName: xml.Name{Space: davNS, Local: "getlastmodified"}, InnerXML: []byte(r.Modified.UTC().Format(http.TimeFormat))},
	}
	if r.InteractionModel.IsContainer() {
		props = append(props, Property{XMLName: xml.Name{Space: davNS, Local: "resourcetype"}, InnerXML: []byte(`<collection xmlns="DAV:"/>`)})
	} else {
		props = append(props, Property{XMLName: xml.Name{Space: davNS, Local: "resourcetype"}})
	}
	if r.Binary != nil {
		props = append(props, Property{XMLName: xml.Name{Space: davNS, Local: "getcontenttype"}, InnerXML: []byte(r.Binary.ContentType)})
	}
	return props
}

func userManagedProperties(r *resource.Resource) []Property {
	if r.Stream == nil {
		return nil
	}
	var out []Property
	for _, q := range r.Stream.Graph(rdf.DefaultGraph) {
		if q.Subject.Value != r.Identifier || !q.Object.IsLiteral() {
			continue
		}
		ns, local := splitIRI(q.Predicate.Value)
		if local == "" {
			continue
		}
		var buf strings.Builder
		xml.EscapeText(&buf, []byte(q.Object.Value))
		out = append(out, Property{XMLName: xml.Name{Space: ns, Local: local}, InnerXML: []byte(buf.String())})
	}
	return out
}

// splitIRI divides a predicate IRI into the namespace (including its
// trailing "#" or "/") and local name, the round-trip spec.md §4.8
// requires between a PROPPATCH element's namespace+local-name and the
// predicate IRI it becomes.
func splitIRI(iri string) (ns, local string) {
	idx := strings.LastIndexAny(iri, "#/")
	if idx < 0 || idx == len(iri)-1 {
		return iri, ""
	}
	return iri[:idx+1], iri[idx+1:]
}

type propertyUpdate struct {
	XMLName xml.Name    `xml:"DAV: propertyupdate"`
	Set     *propChange `xml:"set"`
	Remove  *propChange `xml:"remove"`
}

type propChange struct {
	Prop propWrapper `xml:"prop"`
}

// PropPatch applies a <propertyupdate> document to a resource's
// user-managed graph, per spec.md §4.8: a <set> element's children become
// triples; a <remove> element's children delete the matching predicate's
// triples. Non-user-managed graphs (containment, membership, ACL) pass
// through untouched; PreferServerManaged is recomputed by Pipeline.Replace
// regardless of what this handler writes into it.
func (h *Handler) PropPatch(c echo.Context) error {
	ctx := c.Request().Context()
	id := h.internalID(c)
	if err := h.LDP.Authorize(c, id, webac.ModeWrite); err != nil {
		return err
	}

	snap, err := h.LDP.Resources.Get(ctx, id)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return trelliserr.New(trelliserr.NotFound, "no such resource")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return trelliserr.Wrap(trelliserr.BadRequest, "failed to read request body", err)
	}
	var update propertyUpdate
	if err := xml.Unmarshal(body, &update); err != nil {
		return trelliserr.Wrap(trelliserr.BadRequest, "malformed propertyupdate document", err)
	}

	removeKeys := make(map[string]bool)
	if update.Remove != nil {
		for _, p := range update.Remove.Prop.Items {
			removeKeys[p.XMLName.Space+p.XMLName.Local] = true
		}
	}

	r := snap.Resource
	updated := rdf.NewDataset()
	if r.Stream != nil {
		for _, q := range r.Stream.All() {
			if q.Graph.IsDefaultGraph() && removeKeys[q.Predicate.Value] {
				continue
			}
			updated.Add(q)
		}
	}
	if update.Set != nil {
		for _, p := range update.Set.Prop.Items {
			predIRI := p.XMLName.Space + p.XMLName.Local
			updated.Add(rdf.NewQuad(rdf.DefaultGraph, rdf.IRI(id), rdf.IRI(predIRI), rdf.Literal(string(p.InnerXML), "")))
		}
	}

	expected := r.Modified
	r.Modified = time.Now().UTC()
	r.Stream = updated
	if err := h.LDP.Pipeline.Replace(ctx, r, updated, expected, principal(c).Agent); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
