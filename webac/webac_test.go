package webac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/resource"
)

type fakeStore struct {
	resources map[string]*resource.Resource
	acls      map[string][]rdf.Quad
}

func newFakeStore() *fakeStore {
	return &fakeStore{resources: map[string]*resource.Resource{}, acls: map[string][]rdf.Quad{}}
}

func (f *fakeStore) put(r *resource.Resource) { f.resources[r.Identifier] = r }

func (f *fakeStore) Get(ctx context.Context, id string) (resource.Snapshot, error) {
	r, ok := f.resources[id]
	if !ok {
		return resource.MissingResource, nil
	}
	return resource.Materialized(r), nil
}
func (f *fakeStore) Create(ctx context.Context, m resource.Mutation) error { return nil }
func (f *fakeStore) Replace(ctx context.Context, m resource.Mutation, expected time.Time) error {
	return nil
}
func (f *fakeStore) Delete(ctx context.Context, id string, at time.Time) error { return nil }
func (f *fakeStore) Touch(ctx context.Context, id string, at time.Time) error  { return nil }

func authQuads(subject, agent string, modes ...Mode) []rdf.Quad {
	var out []rdf.Quad
	s := rdf.BlankNode(subject)
	out = append(out, rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(nsType), rdf.IRI(classAuthorization)))
	out = append(out, rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predAgent), rdf.IRI(agent)))
	out = append(out, rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predAccessTo), rdf.IRI("trellis:data/container1")))
	for _, m := range modes {
		out = append(out, rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predMode), rdf.IRI(string(m))))
	}
	return out
}

func TestEngineGrantsConfiguredMode(t *testing.T) {
	store := newFakeStore()
	store.put(&resource.Resource{Identifier: "trellis:data/container1", HasACL: true})
	store.acls["trellis:data/container1"] = authQuads("auth1", "http://example.org/alice", ModeRead, ModeWrite)

	engine := &Engine{
		Resources:          store,
		AccessControlGraph: func(r *resource.Resource) []rdf.Quad { return store.acls[r.Identifier] },
	}

	modes, err := engine.Modes(context.Background(), "trellis:data/container1", Principal{Agent: "http://example.org/alice", Authenticated: true})
	require.NoError(t, err)
	assert.True(t, modes[ModeRead])
	assert.True(t, modes[ModeWrite])
	assert.False(t, modes[ModeControl])
}

func TestEngineDeniesUnmatchedAgent(t *testing.T) {
	store := newFakeStore()
	store.put(&resource.Resource{Identifier: "trellis:data/container1", HasACL: true})
	store.acls["trellis:data/container1"] = authQuads("auth1", "http://example.org/alice", ModeRead)

	engine := &Engine{
		Resources:          store,
		AccessControlGraph: func(r *resource.Resource) []rdf.Quad { return store.acls[r.Identifier] },
	}

	modes, err := engine.Modes(context.Background(), "trellis:data/container1", Principal{Agent: "http://example.org/bob"})
	require.NoError(t, err)
	assert.Empty(t, modes)
}

func TestEngineWalksUpToNearestACL(t *testing.T) {
	store := newFakeStore()
	store.put(&resource.Resource{Identifier: "trellis:data/container1", HasACL: true})
	store.acls["trellis:data/container1"] = authQuads("auth1", "http://example.org/alice", ModeRead)
	store.put(&resource.Resource{Identifier: "trellis:data/container1/child", Container: "trellis:data/container1"})

	engine := &Engine{
		Resources:          store,
		AccessControlGraph: func(r *resource.Resource) []rdf.Quad { return store.acls[r.Identifier] },
	}

	modes, err := engine.Modes(context.Background(), "trellis:data/container1/child", Principal{Agent: "http://example.org/alice"})
	require.NoError(t, err)
	assert.Empty(t, modes, "accessTo names container1, not the child, and no acl:default was set")
}

func TestEngineAdminShortCircuits(t *testing.T) {
	store := newFakeStore()
	engine := &Engine{
		Resources: store,
		Admins:    map[string]bool{"http://example.org/admin": true},
	}
	modes, err := engine.Modes(context.Background(), "trellis:data/anything", Principal{Agent: "http://example.org/admin"})
	require.NoError(t, err)
	assert.True(t, modes[ModeControl])
	assert.True(t, modes[ModeRead])
}

func TestEngineDefaultMustNameTheInheritingAncestor(t *testing.T) {
	store := newFakeStore()
	store.put(&resource.Resource{Identifier: "trellis:data/container1", HasACL: true})
	s := rdf.BlankNode("auth1")
	quads := []rdf.Quad{
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(nsType), rdf.IRI(classAuthorization)),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predAgent), rdf.IRI("http://example.org/alice")),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predDefault), rdf.IRI("trellis:data/unrelated")),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predMode), rdf.IRI(string(ModeRead))),
	}
	store.acls["trellis:data/container1"] = quads
	store.put(&resource.Resource{Identifier: "trellis:data/container1/child", Container: "trellis:data/container1"})

	engine := &Engine{
		Resources:          store,
		AccessControlGraph: func(r *resource.Resource) []rdf.Quad { return store.acls[r.Identifier] },
	}

	modes, err := engine.Modes(context.Background(), "trellis:data/container1/child", Principal{Agent: "http://example.org/alice"})
	require.NoError(t, err)
	assert.Empty(t, modes, "acl:default names an unrelated resource, not the ancestor the ACL came from")
}

func TestEngineDefaultGrantsAccessWhenNamingTheActualAncestor(t *testing.T) {
	store := newFakeStore()
	store.put(&resource.Resource{Identifier: "trellis:data/container1", HasACL: true})
	s := rdf.BlankNode("auth1")
	quads := []rdf.Quad{
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(nsType), rdf.IRI(classAuthorization)),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predAgent), rdf.IRI("http://example.org/alice")),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predDefault), rdf.IRI("trellis:data/container1")),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predMode), rdf.IRI(string(ModeRead))),
	}
	store.acls["trellis:data/container1"] = quads
	store.put(&resource.Resource{Identifier: "trellis:data/container1/child", Container: "trellis:data/container1"})

	engine := &Engine{
		Resources:          store,
		AccessControlGraph: func(r *resource.Resource) []rdf.Quad { return store.acls[r.Identifier] },
	}

	modes, err := engine.Modes(context.Background(), "trellis:data/container1/child", Principal{Agent: "http://example.org/alice"})
	require.NoError(t, err)
	assert.True(t, modes[ModeRead])
}

func TestEngineResolvesAgentGroupMembership(t *testing.T) {
	store := newFakeStore()
	store.put(&resource.Resource{Identifier: "trellis:data/container1", HasACL: true})
	s := rdf.BlankNode("auth1")
	quads := []rdf.Quad{
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(nsType), rdf.IRI(classAuthorization)),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predAgentGroup), rdf.IRI("http://example.org/groups/editors")),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predAccessTo), rdf.IRI("trellis:data/container1")),
		rdf.NewQuad(rdf.DefaultGraph, s, rdf.IRI(predMode), rdf.IRI(string(ModeWrite))),
	}
	store.acls["trellis:data/container1"] = quads
	groupStream := rdf.NewDataset()
	groupStream.Add(rdf.NewQuad(rdf.DefaultGraph, rdf.IRI("http://example.org/groups/editors"), rdf.IRI(predHasMember), rdf.IRI("http://example.org/alice")))
	store.put(&resource.Resource{
		Identifier: "trellis:data/groups/editors",
		Stream:     groupStream,
	})

	engine := &Engine{
		Resources:          store,
		AccessControlGraph: func(r *resource.Resource) []rdf.Quad { return store.acls[r.Identifier] },
		BaseURL:            "http://example.org/",
	}

	modes, err := engine.Modes(context.Background(), "trellis:data/container1", Principal{Agent: "http://example.org/alice"})
	require.NoError(t, err)
	assert.True(t, modes[ModeWrite])

	modes, err = engine.Modes(context.Background(), "trellis:data/container1", Principal{Agent: "http://example.org/mallory"})
	require.NoError(t, err)
	assert.Empty(t, modes)
}

func TestModeForMethod(t *testing.T) {
	assert.Equal(t, []Mode{ModeRead}, ModeForMethod("GET", false))
	assert.Equal(t, []Mode{ModeWrite}, ModeForMethod("PUT", false))
	assert.Equal(t, []Mode{ModeAppend}, ModeForMethod("POST", false))
	assert.Equal(t, []Mode{ModeControl}, ModeForMethod("PUT", true))
}
