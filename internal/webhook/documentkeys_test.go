package webhook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKeyStore_RememberLookupForget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document-keys.json")

	store, err := NewDocumentKeyStore(path)
	require.NoError(t, err)

	_, ok := store.Lookup(42)
	assert.False(t, ok)

	require.NoError(t, store.Remember(42, "proj/org/proj/doc.pdf"))

	key, ok := store.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, "proj/org/proj/doc.pdf", key)

	store.Forget(42)
	_, ok = store.Lookup(42)
	assert.False(t, ok)
}

func TestDocumentKeyStore_PersistsAcrossLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document-keys.json")

	first, err := NewDocumentKeyStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Remember(1, "a/b/c.pdf"))
	require.NoError(t, first.Remember(2, "a/b/d.pdf"))

	second, err := NewDocumentKeyStore(path)
	require.NoError(t, err)

	key, ok := second.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "a/b/c.pdf", key)

	key, ok = second.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "a/b/d.pdf", key)
}
