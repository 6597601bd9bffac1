package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSuppressionSet_Missing(t *testing.T) {
	s, err := LoadSuppressionSet(filepath.Join(t.TempDir(), "hidden.json"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.False(t, s.Contains("X1"))
}

func TestLoadSuppressionSet_ParsesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hidden.json")
	require.NoError(t, os.WriteFile(path, []byte(`["X1", "Y2", "X1"]`), 0o644))

	s, err := LoadSuppressionSet(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("X1"))
	assert.True(t, s.Contains(" Y2 "))
	assert.False(t, s.Contains(""))
}

func TestLoadSuppressionSet_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hidden.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))

	_, err := LoadSuppressionSet(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse suppression list")
}

func TestSuppressionSet_AddSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hidden.json")
	s, err := LoadSuppressionSet(path)
	require.NoError(t, err)

	assert.True(t, s.Add("B"))
	assert.True(t, s.Add("A"))
	assert.False(t, s.Add("A"))
	assert.False(t, s.Add("  "))
	require.NoError(t, s.Save())

	reloaded, err := LoadSuppressionSet(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, reloaded.IDs())
}

func TestSuppressionSet_SaveWithoutPath(t *testing.T) {
	err := NewSuppressionSet("A").Save()
	require.Error(t, err)
}

func TestSuppressionSet_NilSafe(t *testing.T) {
	var s *SuppressionSet
	assert.False(t, s.Contains("A"))
	assert.Zero(t, s.Len())
	assert.Nil(t, s.IDs())
}
