package settings

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSourceMap tests provenance recording and reporting
func TestSourceMap(t *testing.T) {
	t.Run("KindNames", func(t *testing.T) {
		assert.Equal(t, "default", KindDefault.String())
		assert.Equal(t, "file", KindFile.String())
		assert.Equal(t, "environment", KindEnvironment.String())
		assert.Equal(t, "secrets", KindSecrets.String())
		assert.Equal(t, "override", KindOverride.String())
		assert.Equal(t, "SourceKind(9)", SourceKind(9).String())

		assert.True(t, fileSource("/a.toml", 0).IsFile())
		for _, meta := range []SourceMetadata{defaultSource(0), secretsSource("/s.toml", 1), envSource("APP", 2), overrideSource("cli", 3)} {
			assert.False(t, meta.IsFile(), meta.ID)
		}
	})

	t.Run("InsertKeepsLaterLayer", func(t *testing.T) {
		sm := NewSourceMap()
		sm.Insert("server.port", fileSource("/etc/app/base.toml", 0))
		sm.Insert("server.port", envSource("APP", 2))
		sm.Insert("server.port", fileSource("/etc/app/local.toml", 1))

		meta, ok := sm.SourceOf("server.port")
		require.True(t, ok)
		assert.Equal(t, "env:APP", meta.ID)
		assert.Equal(t, 2, meta.LayerIndex)
	})

	t.Run("InsertSameLayerReplaces", func(t *testing.T) {
		sm := NewSourceMap()
		sm.Insert("a", overrideSource("first", 3))
		sm.Insert("a", overrideSource("second", 3))

		meta, _ := sm.SourceOf("a")
		assert.Equal(t, "override:second", meta.ID)
	})

	t.Run("ZeroValueIsUsable", func(t *testing.T) {
		var sm SourceMap
		sm.Insert("a", defaultSource(0))
		assert.Equal(t, 1, sm.Len())

		var nilMap *SourceMap
		_, ok := nilMap.SourceOf("a")
		assert.False(t, ok)
		assert.Nil(t, nilMap.Keys())
		assert.Equal(t, 0, nilMap.Len())
	})

	t.Run("MetadataString", func(t *testing.T) {
		assert.Equal(t, "file:/srv/app.toml", fileSource("/srv/app.toml", 0).String())
		assert.Equal(t, "file:/srv/app.toml [UserGlobal]", scopedFileSource("/srv/app.toml", ScopeUserGlobal, 0).String())
		assert.Equal(t, "secrets:/srv/secrets.toml", secretsSource("/srv/secrets.toml", 0).String())
		assert.Equal(t, "override:cli", overrideSource("cli", 0).String())
		assert.Equal(t, "default", defaultSource(0).String())
	})

	t.Run("IsFile", func(t *testing.T) {
		assert.True(t, fileSource("/a.toml", 0).IsFile())
		assert.True(t, scopedFileSource("/a.toml", ScopeProjectLocal, 0).IsFile())
		assert.False(t, secretsSource("/a.toml", 0).IsFile())
		assert.False(t, envSource("APP", 0).IsFile())
		assert.False(t, defaultSource(0).IsFile())
		assert.False(t, SourceMetadata{Kind: KindFile}.IsFile())
	})

	t.Run("KeysFromAndFiles", func(t *testing.T) {
		sm := NewSourceMap()
		sm.Insert("b", fileSource("/z.toml", 0))
		sm.Insert("a", fileSource("/z.toml", 0))
		sm.Insert("c", fileSource("/a.toml", 1))
		sm.Insert("d", secretsSource("/s.toml", 2))

		assert.Equal(t, []string{"a", "b"}, sm.KeysFrom("file:/z.toml"))
		assert.Empty(t, sm.KeysFrom("file:/missing.toml"))
		assert.Equal(t, []string{"/a.toml", "/z.toml"}, sm.Files())
	})

	t.Run("EntriesIsCopy", func(t *testing.T) {
		sm := NewSourceMap()
		sm.Insert("a", defaultSource(0))
		entries := sm.Entries()
		delete(entries, "a")
		assert.Equal(t, 1, sm.Len())
	})

	t.Run("AuditReport", func(t *testing.T) {
		sm := NewSourceMap()
		sm.Insert("server.port", envSource("APP", 2))
		sm.Insert("app_name", fileSource("/etc/app/base.toml", 0))
		sm.Insert("theme", scopedFileSource("/home/u/.config/app/settings.toml", ScopeUserGlobal, 1))

		expected := "Configuration Audit Report\n" +
			"==========================\n\n" +
			fmt.Sprintf("%-30s -> Layer 0: file:/etc/app/base.toml\n", "app_name") +
			fmt.Sprintf("%-30s -> Layer 2: env:APP\n", "server.port") +
			fmt.Sprintf("%-30s -> Layer 1: file:/home/u/.config/app/settings.toml [UserGlobal]\n", "theme")
		assert.Equal(t, expected, sm.AuditReport())
	})

	t.Run("EmptyAuditReport", func(t *testing.T) {
		report := NewSourceMap().AuditReport()
		assert.True(t, strings.HasPrefix(report, "Configuration Audit Report\n"))
		assert.Equal(t, 3, strings.Count(report, "\n"))
	})

	t.Run("DropSubtree", func(t *testing.T) {
		sm := NewSourceMap()
		sm.Insert("db.host", defaultSource(0))
		sm.Insert("db.port", defaultSource(0))
		sm.Insert("dbx", defaultSource(0))
		sm.dropSubtree("db")
		assert.Equal(t, []string{"dbx"}, sm.Keys())
	})
}

// TestProvenanceLastWriterWins checks that every merged leaf reports the last
// layer that set it, for arbitrary layer stacks.
func TestProvenanceLastWriterWins(t *testing.T) {
	leaves := []string{"a", "b", "c.d", "c.e", "f.g.h"}

	rapid.Check(t, func(t *rapid.T) {
		layerCount := rapid.IntRange(1, 6).Draw(t, "layers")

		b := NewLayerBuilder()
		want := make(map[string]int64)
		wantLayer := make(map[string]int)

		for i := 0; i < layerCount; i++ {
			values := make(map[string]any)
			for _, leaf := range leaves {
				if !rapid.Bool().Draw(t, fmt.Sprintf("set_%d_%s", i, leaf)) {
					continue
				}
				v := rapid.Int64Range(-1000, 1000).Draw(t, fmt.Sprintf("value_%d_%s", i, leaf))
				setNestedValue(values, leaf, v)
				want[leaf] = v
				wantLayer[leaf] = i
			}
			b.WithOverrides(fmt.Sprintf("layer%d", i), values)
		}

		cfg, sources, err := b.BuildWithProvenance()
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if sources.Len() != len(want) {
			t.Fatalf("recorded %d keys, want %d: %v", sources.Len(), len(want), sources.Keys())
		}
		for leaf, v := range want {
			got, err := cfg.Int64(leaf)
			if err != nil {
				t.Fatalf("%s: %v", leaf, err)
			}
			if got != v {
				t.Fatalf("%s = %d, want %d", leaf, got, v)
			}
			meta, ok := sources.SourceOf(leaf)
			if !ok {
				t.Fatalf("%s has no source", leaf)
			}
			if meta.LayerIndex != wantLayer[leaf] {
				t.Fatalf("%s from layer %d, want %d", leaf, meta.LayerIndex, wantLayer[leaf])
			}
			if meta.ID != fmt.Sprintf("override:layer%d", wantLayer[leaf]) {
				t.Fatalf("%s has source %s", leaf, meta.ID)
			}
		}
	})
}
