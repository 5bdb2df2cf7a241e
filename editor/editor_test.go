package editor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/settings"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFactory tests editor selection and file creation
func TestFactory(t *testing.T) {
	t.Run("FormatFromPath", func(t *testing.T) {
		tests := []struct {
			path   string
			format settings.Format
			ok     bool
		}{
			{"a.toml", settings.FormatTOML, true},
			{"a.TOML", settings.FormatTOML, true},
			{"a.json", settings.FormatJSON, true},
			{"a.yaml", settings.FormatYAML, true},
			{"a.Yml", settings.FormatYAML, true},
			{"a.ini", "", false},
			{"Makefile", "", false},
		}
		for _, tt := range tests {
			format, ok := FormatFromPath(tt.path)
			assert.Equal(t, tt.ok, ok, tt.path)
			assert.Equal(t, tt.format, format, tt.path)
		}
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.ini", "a=1\n")
		_, err := Open(path)
		assert.ErrorIs(t, err, ErrFormatMismatch)

		_, err = OpenOrCreate(filepath.Join(t.TempDir(), "config"))
		assert.ErrorIs(t, err, ErrFormatMismatch)

		_, err = Create(filepath.Join(t.TempDir(), "x.env"), settings.FormatEnv)
		assert.ErrorIs(t, err, ErrFormatMismatch)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing.toml"))
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("OpenDispatches", func(t *testing.T) {
		dir := t.TempDir()
		for name, want := range map[string]settings.Format{
			"a.toml": settings.FormatTOML,
			"b.json": settings.FormatJSON,
			"c.yml":  settings.FormatYAML,
		} {
			e, err := Open(writeFile(t, dir, name, ""))
			require.NoError(t, err, name)
			assert.Equal(t, want, e.Format(), name)
			assert.Equal(t, filepath.Join(dir, name), e.Path())
			assert.False(t, e.IsDirty())
		}
	})

	t.Run("CreateWritesEmptyDocument", func(t *testing.T) {
		dir := t.TempDir()
		for format, want := range map[settings.Format]string{
			settings.FormatTOML: "",
			settings.FormatJSON: "{}\n",
			settings.FormatYAML: "{}\n",
		} {
			path := filepath.Join(dir, "new."+string(format))
			e, err := Create(path, format)
			require.NoError(t, err, format)
			assert.False(t, e.IsDirty())
			assert.Empty(t, e.Keys())
			assert.Equal(t, want, readFile(t, path), format)
		}
	})

	t.Run("CreateReplacesExistingFile", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "old.toml", "a = 1\n")
		_, err := Create(path, settings.FormatTOML)
		require.NoError(t, err)
		assert.Equal(t, "", readFile(t, path))
	})

	t.Run("CreateInMissingDirectory", func(t *testing.T) {
		_, err := Create(filepath.Join(t.TempDir(), "no", "such", "dir.toml"), settings.FormatTOML)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("OpenOrCreate", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "user.yaml")

		e, err := OpenOrCreate(path)
		require.NoError(t, err)
		require.NoError(t, e.Set("theme", "dark"))
		require.NoError(t, e.Save())

		again, err := OpenOrCreate(path)
		require.NoError(t, err)
		theme, ok := Get[string](again, "theme")
		require.True(t, ok)
		assert.Equal(t, "dark", theme)
	})

	t.Run("MemoryFilesystem", func(t *testing.T) {
		memFs := afero.NewMemMapFs()
		require.NoError(t, memFs.MkdirAll("/etc/app", 0755))

		e, err := OpenOrCreateFs(memFs, "/etc/app/config.toml")
		require.NoError(t, err)
		require.NoError(t, e.Set("server.port", 8080))
		require.NoError(t, e.Save())

		data, err := afero.ReadFile(memFs, "/etc/app/config.toml")
		require.NoError(t, err)
		assert.Equal(t, "[server]\nport = 8080\n", string(data))
	})
}

// TestTypedGet tests conversion of stored values
func TestTypedGet(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typed.toml", `
port = 8080
name = "app"
ratio = 0.5
enabled = true
timeout = "30s"
tags = ["a", "b"]
`)
	e, err := Open(path)
	require.NoError(t, err)

	port, ok := Get[int](e, "port")
	require.True(t, ok)
	assert.Equal(t, 8080, port)

	name, ok := Get[string](e, "name")
	require.True(t, ok)
	assert.Equal(t, "app", name)

	timeout, ok := Get[time.Duration](e, "timeout")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, timeout)

	tags, ok := Get[[]string](e, "tags")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, tags)

	// An integer is never read as a string
	_, ok = Get[string](e, "port")
	assert.False(t, ok)

	_, ok = Get[int](e, "name")
	assert.False(t, ok)

	_, ok = Get[bool](e, "missing")
	assert.False(t, ok)

	_, err = convert[bool]("ratio", 0.5)
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "ratio", mismatch.Key)
	assert.Equal(t, "bool", mismatch.Expected)
	assert.Equal(t, "float64", mismatch.Actual)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

// TestSetGetIdempotence tests that a stored value reads back unchanged and
// that repeating a set does not change the file
func TestSetGetIdempotence(t *testing.T) {
	values := map[string]any{
		"s":               "hello",
		"i":               int64(42),
		"f":               1.5,
		"b":               true,
		"list":            []any{"a", "b"},
		"nested.deep.key": "v",
	}

	for _, ext := range []string{"toml", "json", "yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config."+ext)
			e, err := OpenOrCreate(path)
			require.NoError(t, err)

			for key, v := range values {
				require.NoError(t, e.Set(key, v), key)
				got, ok := e.Get(key)
				require.True(t, ok, key)
				assert.Equal(t, v, got, key)
			}
			require.NoError(t, e.Save())
			first := readFile(t, path)

			for key, v := range values {
				require.NoError(t, e.Set(key, v), key)
			}
			require.NoError(t, e.Save())
			assert.Equal(t, first, readFile(t, path))

			reopened, err := Open(path)
			require.NoError(t, err)
			for key, v := range values {
				got, ok := reopened.Get(key)
				require.True(t, ok, key)
				assert.Equal(t, v, got, key)
			}
		})
	}
}

// TestAtomicSave tests the temporary file and rename protocol
func TestAtomicSave(t *testing.T) {
	t.Run("FailureLeavesFileAndDirtyFlag", func(t *testing.T) {
		dir := t.TempDir()
		original := "# keep me\nport = 8080\n"
		path := writeFile(t, dir, "config.toml", original)

		e, err := OpenFs(afero.NewReadOnlyFs(afero.NewOsFs()), path)
		require.NoError(t, err)
		require.NoError(t, e.Set("port", 9090))

		err = e.Save()
		assert.ErrorIs(t, err, ErrIO)
		assert.True(t, e.IsDirty())
		assert.Equal(t, original, readFile(t, path))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("ModeIsPreserved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret.yaml")
		require.NoError(t, os.WriteFile(path, []byte("token: a\n"), 0600))

		e, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, e.Set("token", "b"))
		require.NoError(t, e.Save())

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("NoTemporaryFilesRemain", func(t *testing.T) {
		dir := t.TempDir()
		e, err := Create(filepath.Join(dir, "a.json"), settings.FormatJSON)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, e.Set("n", i))
			require.NoError(t, e.Save())
		}

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
	})

	t.Run("EditDuringStageKeepsDirty", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "race.toml", "a = 1\n")
		e, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, e.Set("a", 2))

		sw, err := e.stage()
		require.NoError(t, err)
		require.NoError(t, e.Set("a", 3))
		require.NoError(t, sw.commit())

		assert.True(t, e.IsDirty())
		assert.Equal(t, "a = 2\n", readFile(t, path))
	})
}
