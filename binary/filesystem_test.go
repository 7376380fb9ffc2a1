package binary

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/trelliserr"
)

func TestFilesystemStorePutGetDigest(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultBinaryIDSupplier(), nil)
	ctx := context.Background()

	content := "hello binary world"
	require.NoError(t, store.Put(ctx, "obj1", strings.NewReader(content), Metadata{ContentType: "text/plain"}))

	r, err := store.Get(ctx, "obj1")
	require.NoError(t, err)
	got, _ := io.ReadAll(r)
	r.Close()
	assert.Equal(t, content, string(got))

	digest, err := store.Digest(ctx, "obj1", "MD5")
	require.NoError(t, err)
	assert.NotEmpty(t, digest)
}

func TestFilesystemStoreGetRange(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultBinaryIDSupplier(), nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "obj2", strings.NewReader("0123456789"), Metadata{}))

	r, err := store.GetRange(ctx, "obj2", 2, 5)
	require.NoError(t, err)
	got, _ := io.ReadAll(r)
	r.Close()
	assert.Equal(t, "2345", string(got))
}

func TestFilesystemStoreGetMissingIsNotFound(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultBinaryIDSupplier(), nil)
	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, trelliserr.NotFound, trelliserr.KindOf(err))
}

func TestFilesystemStorePurgeMissingIsNotAnError(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), identifier.DefaultBinaryIDSupplier(), nil)
	assert.NoError(t, store.Purge(context.Background(), "never-existed"))
}
