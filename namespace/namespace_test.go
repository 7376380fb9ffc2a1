package namespace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPrefixPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namespaces.json")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SetPrefix("dc", "http://purl.org/dc/terms/"))

	reloaded, err := New(path)
	require.NoError(t, err)
	uri, ok := reloaded.Lookup("dc")
	require.True(t, ok)
	assert.Equal(t, "http://purl.org/dc/terms/", uri)

	prefix, ok := reloaded.PrefixFor("http://purl.org/dc/terms/")
	require.True(t, ok)
	assert.Equal(t, "dc", prefix)
}

func TestNewOnMissingFileStartsEmpty(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	_, ok := s.Lookup("dc")
	assert.False(t, ok)
}
