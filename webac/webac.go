// Package webac implements the Web Access Control engine (C9): ACL graph
// discovery by ancestor walk, mode computation from acl:Authorization
// resources, and a bounded (target,agent)->modes cache, per spec.md §4.6.
package webac

import (
	"context"
	"net/http"

	"trellis.io/ldp/identifier"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/resource"
)

// Mode is one of the four WebAC access modes.
type Mode string

const (
	ModeRead    Mode = "http://www.w3.org/ns/auth/acl#Read"
	ModeWrite   Mode = "http://www.w3.org/ns/auth/acl#Write"
	ModeAppend  Mode = "http://www.w3.org/ns/auth/acl#Append"
	ModeControl Mode = "http://www.w3.org/ns/auth/acl#Control"
)

const (
	nsType             = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	classAuthorization = "http://www.w3.org/ns/auth/acl#Authorization"
	predAgent          = "http://www.w3.org/ns/auth/acl#agent"
	predAgentClass     = "http://www.w3.org/ns/auth/acl#agentClass"
	predAgentGroup     = "http://www.w3.org/ns/auth/acl#agentGroup"
	predAccessTo       = "http://www.w3.org/ns/auth/acl#accessTo"
	predDefault        = "http://www.w3.org/ns/auth/acl#default"
	predMode           = "http://www.w3.org/ns/auth/acl#mode"
	predHasMember      = "http://www.w3.org/2006/vcard/ns#hasMember"
	classAuthenticated = "http://www.w3.org/ns/auth/acl#AuthenticatedAgent"
	classFoafAgent     = "http://xmlns.com/foaf/0.1/Agent"
)

// Principal is the caller identity the WAC engine consumes; the auth layer
// that produces it (JWT/Basic) is out of scope per spec.md §1. Group
// membership is not carried on the Principal: acl:agentGroup matching is
// resolved live against each group resource's own vcard:hasMember triples
// (spec.md §4.6), since group rosters live in the resource graph, not in
// whatever token produced the Principal.
type Principal struct {
	Agent         string // IRI identifying the authenticated agent, "" for anonymous
	Authenticated bool
}

// ModeForMethod returns the WebAC mode an HTTP method requires, per spec.md
// §4.6. modifyingACL additionally requires acl:Control regardless of
// method.
func ModeForMethod(method string, modifyingACL bool) []Mode {
	if modifyingACL {
		return []Mode{ModeControl}
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, "PROPFIND":
		return []Mode{ModeRead}
	case http.MethodPut, http.MethodPatch, http.MethodDelete, "PROPPATCH", "COPY", "MOVE":
		return []Mode{ModeWrite}
	case http.MethodPost, "MKCOL":
		return []Mode{ModeAppend}
	default:
		return []Mode{ModeWrite}
	}
}

// authorization is one acl:Authorization resource parsed out of a
// PreferAccessControl graph.
type authorization struct {
	agents       []string
	agentClasses []string
	agentGroups  []string
	accessTo     []string
	defaultFor   []string
	modes        []Mode
}

// matchesAgent resolves whether p satisfies a, including a live lookup of
// each acl:agentGroup's vcard:hasMember roster (spec.md §4.6). The group
// lookup needs e.Resources, so this is an Engine method rather than a pure
// function on authorization.
func (e *Engine) matchesAgent(ctx context.Context, a authorization, p Principal) bool {
	for _, agent := range a.agents {
		if agent == p.Agent {
			return true
		}
	}
	for _, class := range a.agentClasses {
		if class == classFoafAgent {
			return true
		}
		if class == classAuthenticated && p.Authenticated {
			return true
		}
	}
	if p.Agent == "" {
		return false
	}
	for _, group := range a.agentGroups {
		members, err := e.groupMembers(ctx, group)
		if err != nil {
			continue
		}
		for _, m := range members {
			if m == p.Agent {
				return true
			}
		}
	}
	return false
}

// groupMembers fetches the agentGroup resource and returns the vcard:hasMember
// objects from its PreferUserManaged (default) graph. groupIRI is an external
// IRI (relative to e.BaseURL when it names a resource on this server).
func (e *Engine) groupMembers(ctx context.Context, groupIRI string) ([]string, error) {
	id := identifier.ToInternal(e.BaseURL, groupIRI)
	snap, err := e.Resources.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() || snap.Resource == nil || snap.Resource.Stream == nil {
		return nil, nil
	}
	var members []string
	for _, q := range snap.Resource.Stream.Graph(rdf.DefaultGraph) {
		if q.Predicate.Value == predHasMember {
			members = append(members, q.Object.Value)
		}
	}
	return members, nil
}

func parseAuthorizations(quads []rdf.Quad) []authorization {
	bySubject := make(map[string][]rdf.Quad)
	for _, q := range quads {
		bySubject[q.Subject.String()] = append(bySubject[q.Subject.String()], q)
	}

	var out []authorization
	for _, subjectQuads := range bySubject {
		isAuthorization := false
		for _, q := range subjectQuads {
			if q.Predicate.Value == nsType && q.Object.Value == classAuthorization {
				isAuthorization = true
				break
			}
		}
		if !isAuthorization {
			continue
		}
		var a authorization
		for _, q := range subjectQuads {
			switch q.Predicate.Value {
			case predAgent:
				a.agents = append(a.agents, q.Object.Value)
			case predAgentClass:
				a.agentClasses = append(a.agentClasses, q.Object.Value)
			case predAgentGroup:
				a.agentGroups = append(a.agentGroups, q.Object.Value)
			case predAccessTo:
				a.accessTo = append(a.accessTo, q.Object.Value)
			case predDefault:
				a.defaultFor = append(a.defaultFor, q.Object.Value)
			case predMode:
				a.modes = append(a.modes, Mode(q.Object.Value))
			}
		}
		out = append(out, a)
	}
	return out
}

// Engine is the WebAC decision point. Resources is used to walk the resource
// hierarchy looking for the nearest ACL graph, and to fetch agentGroup
// roster resources; AccessControlGraph extracts a resource's
// PreferAccessControl quads. BaseURL converts group IRIs found in ACL
// graphs back to internal resource identifiers before the roster lookup.
type Engine struct {
	Resources          resource.Store
	AccessControlGraph func(r *resource.Resource) []rdf.Quad
	Admins             map[string]bool
	BaseURL            string
}

// Modes returns the access modes Principal p holds on target, per the
// walk_up pseudocode in spec.md §4.6: ACL = PreferAccessControl graph of the
// nearest ancestor (including target) with a non-empty ACL; if none is
// found, access is denied (empty mode set). An admin allow-list
// short-circuits to the full mode set.
func (e *Engine) Modes(ctx context.Context, target string, p Principal) (map[Mode]bool, error) {
	if e.Admins[p.Agent] {
		return map[Mode]bool{ModeRead: true, ModeWrite: true, ModeAppend: true, ModeControl: true}, nil
	}

	current := target
	isTarget := true
	for current != "" {
		snap, err := e.Resources.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		if !snap.Exists() && !snap.IsDeleted() {
			return map[Mode]bool{}, nil
		}
		if snap.Resource != nil && snap.Resource.HasACL {
			quads := e.AccessControlGraph(snap.Resource)
			if len(quads) > 0 {
				return e.evaluate(ctx, quads, target, current, p, isTarget), nil
			}
		}
		if snap.Resource == nil {
			break
		}
		current = snap.Resource.Container
		isTarget = false
	}
	return map[Mode]bool{}, nil
}

// evaluate applies the authorizations found in quads, which live on the
// ancestor resource at aclResource (equal to target when aclIsOnTarget).
// acl:default only grants inherited access when it names that exact
// ancestor — not merely when some default value is present — otherwise a
// rule intended to apply below a sibling ancestor would leak downward.
func (e *Engine) evaluate(ctx context.Context, quads []rdf.Quad, target, aclResource string, p Principal, aclIsOnTarget bool) map[Mode]bool {
	modes := make(map[Mode]bool)
	for _, a := range parseAuthorizations(quads) {
		if !e.matchesAgent(ctx, a, p) {
			continue
		}
		applies := false
		for _, acc := range a.accessTo {
			if acc == target {
				applies = true
				break
			}
		}
		if !applies && !aclIsOnTarget {
			for _, def := range a.defaultFor {
				if def == aclResource {
					applies = true
					break
				}
			}
		}
		if !applies {
			continue
		}
		for _, m := range a.modes {
			modes[m] = true
		}
	}
	return modes
}

// CacheKey builds the (target,agent) cache key spec.md §4.6 specifies.
func CacheKey(target, agent string) string {
	return target + "|" + agent
}
