package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScopeDiscovery tests XDG directory resolution and settings file search
func TestScopeDiscovery(t *testing.T) {
	t.Run("ScopeDirFollowsXDG", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
		t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
		t.Setenv("XDG_DATA_HOME", "/xdg/data")

		tests := []struct {
			scope    Scope
			expected string
		}{
			{ScopePreferences, "/xdg/config/myapp"},
			{ScopeUserGlobal, "/xdg/config/myapp"},
			{ScopeLocalData, "/xdg/cache/myapp"},
			{ScopePersistentData, "/xdg/data/myapp"},
		}
		for _, tt := range tests {
			dir, ok := ScopeDir("myapp", tt.scope)
			require.True(t, ok, tt.scope.String())
			assert.Equal(t, tt.expected, dir, tt.scope.String())
		}

		_, ok := ScopeDir("myapp", ScopeRuntime)
		assert.False(t, ok)
	})

	t.Run("ScopeDirFallsBackToHome", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", "/home/tester")

		dir, ok := ScopeDir("myapp", ScopeUserGlobal)
		require.True(t, ok)
		assert.Equal(t, "/home/tester/.config/myapp", dir)

		dir, ok = ScopeDir("myapp", ScopePersistentData)
		require.True(t, ok)
		assert.Equal(t, "/home/tester/.local/share/myapp", dir)
	})

	t.Run("ProjectLocalIsWorkingDirectory", func(t *testing.T) {
		cwd, err := os.Getwd()
		require.NoError(t, err)
		dir, ok := ScopeDir("myapp", ScopeProjectLocal)
		require.True(t, ok)
		assert.Equal(t, cwd, dir)
	})

	t.Run("FindConfigInOrder", func(t *testing.T) {
		memFs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(memFs, "/cfg/settings.json", []byte("{}"), 0644))
		require.NoError(t, afero.WriteFile(memFs, "/cfg/settings.yml", []byte(""), 0644))

		path, ok := findConfigIn(memFs, "/cfg")
		require.True(t, ok)
		assert.Equal(t, "/cfg/settings.yml", path)

		require.NoError(t, afero.WriteFile(memFs, "/cfg/settings.toml", []byte(""), 0644))
		path, _ = findConfigIn(memFs, "/cfg")
		assert.Equal(t, "/cfg/settings.toml", path)

		_, ok = findConfigIn(memFs, "/empty")
		assert.False(t, ok)
	})

	t.Run("DirectoryIsNotAFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "settings.toml"), 0755))
		_, ok := FindConfigIn(tmpDir)
		assert.False(t, ok)
	})

	t.Run("WithScopes", func(t *testing.T) {
		configHome := t.TempDir()
		dataHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", configHome)
		t.Setenv("XDG_DATA_HOME", dataHome)
		t.Setenv("XDG_CACHE_HOME", t.TempDir())

		require.NoError(t, os.MkdirAll(filepath.Join(configHome, "myapp"), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join(dataHome, "myapp"), 0755))
		userFile := writeFile(t, filepath.Join(configHome, "myapp"), "settings.toml", "theme = \"light\"\nfont = \"mono\"\n")
		dataFile := writeFile(t, filepath.Join(dataHome, "myapp"), "settings.yaml", "theme: dark\n")

		path, ok := ResolveScopePath("myapp", ScopeUserGlobal)
		require.True(t, ok)
		assert.Equal(t, userFile, path)

		b := NewLayerBuilder().WithScopes("myapp", ScopeUserGlobal, ScopeLocalData, ScopePersistentData, ScopeRuntime)
		require.Equal(t, 2, b.Len())

		cfg, sources, err := b.BuildWithProvenance()
		require.NoError(t, err)

		theme, _ := cfg.String("theme")
		assert.Equal(t, "dark", theme)

		meta, _ := sources.SourceOf("theme")
		assert.Equal(t, ScopePersistentData, meta.Scope)
		assert.Equal(t, dataFile, meta.Path)
		meta, _ = sources.SourceOf("font")
		assert.Equal(t, ScopeUserGlobal, meta.Scope)
	})

	t.Run("ScopeNames", func(t *testing.T) {
		assert.Equal(t, "ProjectLocal", ScopeProjectLocal.String())
		assert.True(t, ScopeLocalData.IsFileBased())
		assert.False(t, ScopeRuntime.IsFileBased())
		assert.NotContains(t, DefaultScopes(), ScopeRuntime)
	})
}
