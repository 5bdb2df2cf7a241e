package settings

import (
	"fmt"
	"slices"
	"strings"
)

// SourceKind classifies where a value came from.
type SourceKind int

const (
	// KindDefault is a code-level default from WithDefaults.
	KindDefault SourceKind = iota
	// KindFile is a configuration file; values from it can be edited in place.
	KindFile
	// KindEnvironment is the prefixed environment variables layer.
	KindEnvironment
	// KindSecrets is a secrets file. It is never edited.
	KindSecrets
	// KindOverride is a named in-memory layer such as parsed command-line arguments.
	KindOverride
)

func (k SourceKind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindFile:
		return "file"
	case KindEnvironment:
		return "environment"
	case KindSecrets:
		return "secrets"
	case KindOverride:
		return "override"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// SourceMetadata describes the layer that supplied a value.
type SourceMetadata struct {
	// ID is a stable identifier: file:<abs>, secrets:<abs>, env:<prefix>, override:<name> or default.
	ID   string
	Kind SourceKind
	// Path is the absolute file path for file and secrets sources.
	Path string
	// Scope is set for files discovered through a scope.
	Scope    Scope
	HasScope bool
	// LayerIndex is the position of the contributing layer in build order.
	LayerIndex int
}

// IsFile reports whether the value can be edited in place.
func (m SourceMetadata) IsFile() bool {
	return m.Kind == KindFile && m.Path != ""
}

func (m SourceMetadata) String() string {
	if m.HasScope {
		return fmt.Sprintf("%s [%s]", m.ID, m.Scope)
	}
	return m.ID
}

func fileSource(absPath string, index int) SourceMetadata {
	return SourceMetadata{ID: "file:" + absPath, Kind: KindFile, Path: absPath, LayerIndex: index}
}

func scopedFileSource(absPath string, scope Scope, index int) SourceMetadata {
	m := fileSource(absPath, index)
	m.Scope = scope
	m.HasScope = true
	return m
}

func secretsSource(absPath string, index int) SourceMetadata {
	return SourceMetadata{ID: "secrets:" + absPath, Kind: KindSecrets, Path: absPath, LayerIndex: index}
}

func envSource(prefix string, index int) SourceMetadata {
	return SourceMetadata{ID: "env:" + prefix, Kind: KindEnvironment, LayerIndex: index}
}

func overrideSource(name string, index int) SourceMetadata {
	return SourceMetadata{ID: "override:" + name, Kind: KindOverride, LayerIndex: index}
}

func defaultSource(index int) SourceMetadata {
	return SourceMetadata{ID: "default", Kind: KindDefault, LayerIndex: index}
}

// SourceMap maps dotted leaf keys to the layer that supplied their final value.
// It is filled during the merge and read-only afterwards.
type SourceMap struct {
	entries map[string]SourceMetadata
}

// NewSourceMap creates an empty SourceMap.
func NewSourceMap() *SourceMap {
	return &SourceMap{entries: make(map[string]SourceMetadata)}
}

// Insert records meta for key, replacing an existing entry only if meta comes
// from the same or a later layer.
func (s *SourceMap) Insert(key string, meta SourceMetadata) {
	if s.entries == nil {
		s.entries = make(map[string]SourceMetadata)
	}
	if existing, ok := s.entries[key]; ok && existing.LayerIndex > meta.LayerIndex {
		return
	}
	s.entries[key] = meta
}

// SourceOf returns the metadata of the layer that supplied key.
func (s *SourceMap) SourceOf(key string) (SourceMetadata, bool) {
	if s == nil {
		return SourceMetadata{}, false
	}
	meta, ok := s.entries[key]
	return meta, ok
}

// Entries returns a copy of all entries.
func (s *SourceMap) Entries() map[string]SourceMetadata {
	out := make(map[string]SourceMetadata, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Keys returns all recorded keys in sorted order.
func (s *SourceMap) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of recorded keys.
func (s *SourceMap) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// KeysFrom returns the sorted keys supplied by the source with the given ID.
func (s *SourceMap) KeysFrom(id string) []string {
	var keys []string
	for _, k := range s.Keys() {
		if s.entries[k].ID == id {
			keys = append(keys, k)
		}
	}
	return keys
}

// Files returns the sorted, de-duplicated absolute paths of file sources.
func (s *SourceMap) Files() []string {
	seen := make(map[string]bool)
	var files []string
	for _, meta := range s.Entries() {
		if meta.IsFile() && !seen[meta.Path] {
			seen[meta.Path] = true
			files = append(files, meta.Path)
		}
	}
	slices.Sort(files)
	return files
}

// AuditReport renders every key and its source, sorted by key.
func (s *SourceMap) AuditReport() string {
	var b strings.Builder
	b.WriteString("Configuration Audit Report\n")
	b.WriteString("==========================\n\n")
	for _, key := range s.Keys() {
		meta := s.entries[key]
		fmt.Fprintf(&b, "%-30s -> Layer %d: %s\n", key, meta.LayerIndex, meta)
	}
	return b.String()
}

// dropSubtree removes key and every key below it.
func (s *SourceMap) dropSubtree(key string) {
	delete(s.entries, key)
	prefix := key + "."
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
}

// recordLeaves records meta for every leaf of value below key. Empty maps record nothing.
func (s *SourceMap) recordLeaves(key string, value any, meta SourceMetadata) {
	if m, ok := value.(map[string]any); ok {
		for k, v := range m {
			s.recordLeaves(key+"."+k, v, meta)
		}
		return
	}
	s.entries[key] = meta
}
