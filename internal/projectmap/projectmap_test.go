package projectmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_RecordAndResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project-map.json")

	m, err := Load(path)
	require.NoError(t, err)

	_, ok := m.Resolve("Smith v. Jones")
	assert.False(t, ok)

	require.NoError(t, m.Record("Smith v. Jones", 2370300))

	id, ok := m.Resolve("Smith v. Jones")
	require.True(t, ok)
	assert.Equal(t, 2370300, id)

	name, ok := m.NameFor(2370300)
	require.True(t, ok)
	assert.Equal(t, "Smith v. Jones", name)
}

func TestMap_LoadPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project-map.json")

	first, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, first.Record("Alpha", 1))
	require.NoError(t, first.Record("Beta", 2))

	second, err := Load(path)
	require.NoError(t, err)

	id, ok := second.Resolve("Alpha")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = second.Resolve("Beta")
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestMap_LoadMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	m, err := Load(path)
	require.NoError(t, err)
	_, ok := m.Resolve("anything")
	assert.False(t, ok)
}
