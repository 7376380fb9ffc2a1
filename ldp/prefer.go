package ldp

import "strings"

// Prefer is the parsed shape of the HTTP Prefer request header, per
// spec.md §4.7: `return=representation; include="<iri> ..."; omit="<iri>
// ..."`.
type Prefer struct {
	ReturnRepresentation bool
	ReturnMinimal        bool
	Include              []string
	Omit                 []string
}

// ParsePrefer parses a raw Prefer header value. Malformed tokens are
// ignored rather than rejected, matching the tolerant parsing style the
// rest of the HTTP layer uses for optional headers.
func ParsePrefer(header string) Prefer {
	var p Prefer
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		var value string
		if len(kv) == 2 {
			value = strings.Trim(strings.TrimSpace(kv[1]), `"`)
		}
		switch key {
		case "return":
			switch value {
			case "representation":
				p.ReturnRepresentation = true
			case "minimal":
				p.ReturnMinimal = true
			}
		case "include":
			p.Include = append(p.Include, strings.Fields(value)...)
		case "omit":
			p.Omit = append(p.Omit, strings.Fields(value)...)
		}
	}
	return p
}

// ExtGraph maps an "?ext=" query parameter to the graph IRI it forces into
// Include, per spec.md §4.7.
func ExtGraph(ext string) (string, bool) {
	switch ext {
	case "acl":
		return "http://www.w3.org/ns/ldp#PreferAccessControl", true
	case "describedby", "fixity":
		return "", false
	case "timemap":
		return "", false // handled as its own response type, not a Prefer graph
	default:
		return "", false
	}
}
