package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/hotword/pkg/wake"
)

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	_, ok := s.Get("anything")
	assert.False(t, ok)
}

func TestStore_SetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(wake.PrefKeyPermission, "true"))

	reopened, err := Open(path)
	require.NoError(t, err)
	v, ok := reopened.Get(wake.PrefKeyPermission)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("never-existed"))

	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestStore_BoolHelpers(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	assert.True(t, s.GetBool(KeyEnabled, true))
	assert.False(t, s.GetBool(KeyEnabled, false))

	require.NoError(t, s.SetBool(KeyEnabled, false))
	assert.False(t, s.GetBool(KeyEnabled, true))

	require.NoError(t, s.SetBool(KeyEnabled, true))
	assert.True(t, s.GetBool(KeyEnabled, false))

	// Unrecognized values fall back.
	require.NoError(t, s.Set(KeyEnabled, "maybe"))
	assert.True(t, s.GetBool(KeyEnabled, true))
}

func TestStore_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("][ not yaml"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestStore_ImplementsPreferenceStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	var _ wake.PreferenceStore = s
	require.NoError(t, s.Set(wake.PrefKeyPermission, "true"))
}
