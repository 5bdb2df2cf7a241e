// Package editor edits configuration files in place. Each file is opened by a
// format-specific LayerEditor that addresses values by dotted key, tracks
// unsaved changes and saves atomically. ConfigEditor routes edits to the file
// that supplied each key, using the provenance recorded by the settings package.
package editor

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/lixenwraith/settings"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// LayerEditor edits one configuration file.
// Implementations are TOMLEditor, JSONEditor and YAMLEditor.
type LayerEditor interface {
	// Get returns the current value at the dotted key, including unsaved edits.
	Get(key string) (any, bool)
	// Set writes value at the dotted key, creating intermediate tables.
	Set(key string, value any) error
	// Unset removes exactly the leaf at the dotted key.
	Unset(key string) error
	// Keys returns the top-level key names.
	Keys() []string
	// IsDirty reports whether there are unsaved changes.
	IsDirty() bool
	// Save atomically replaces the file with the current document.
	Save() error
	// Path returns the absolute file path.
	Path() string
	// Format returns the file format.
	Format() settings.Format

	stage() (*stagedWrite, error)
}

// Get returns the value at key converted to T. A missing key or a value that
// cannot be converted to T yields false.
func Get[T any](e LayerEditor, key string) (T, bool) {
	raw, ok := e.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	v, err := convert[T](key, raw)
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// convert decodes raw into T without weak typing: an int never becomes a string.
func convert[T any](key string, raw any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &out,
		TagName:    "toml",
		DecodeHook: settings.DecodeHook(),
	})
	if err != nil {
		return out, fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		var zero T
		return zero, &TypeMismatchError{
			Key:      key,
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   fmt.Sprintf("%T", raw),
		}
	}
	return out, nil
}

// document holds the state shared by all format editors.
type document struct {
	mu     sync.RWMutex
	fs     afero.Fs
	path   string
	format settings.Format
	logger zerolog.Logger
	dirty  bool
	// rev counts successful mutations; a save only clears dirty if no edit raced it
	rev uint64
	// render serializes the document; called with mu held for reading
	render func() ([]byte, error)
}

func (d *document) Path() string { return d.path }

func (d *document) Format() settings.Format { return d.format }

func (d *document) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// touch marks a successful mutation. Caller holds mu.
func (d *document) touch() {
	d.dirty = true
	d.rev++
}

func (d *document) Save() error {
	sw, err := d.stage()
	if err != nil {
		return err
	}
	return sw.commit()
}

func (d *document) stage() (*stagedWrite, error) {
	d.mu.RLock()
	data, err := d.render()
	rev := d.rev
	d.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render '%s': %w", ErrSerialization, d.path, err)
	}

	sw, err := stageFile(d.fs, d.path, data)
	if err != nil {
		return nil, err
	}
	sw.done = func() {
		d.mu.Lock()
		if d.rev == rev {
			d.dirty = false
		}
		d.mu.Unlock()
		d.logger.Debug().Str("path", d.path).Int("bytes", len(data)).Msg("Saved configuration file")
	}
	return sw, nil
}

// splitKey splits a dotted key, rejecting empty keys and empty segments.
func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in key %q", ErrInvalidPath, key)
		}
	}
	return parts, nil
}

// lookup navigates a generic tree.
func lookup(tree any, parts []string) (any, bool) {
	current := tree
	for _, p := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// assign writes value into a generic tree, creating intermediate maps.
func assign(root map[string]any, key string, parts []string, value any) error {
	current := root
	for i, p := range parts[:len(parts)-1] {
		next, ok := current[p]
		if !ok {
			child := make(map[string]any)
			current[p] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q in key %q is not a table", ErrInvalidPath, strings.Join(parts[:i+1], "."), key)
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// remove deletes exactly one leaf from a generic tree.
func remove(root map[string]any, key string, parts []string) error {
	current := root
	for i, p := range parts[:len(parts)-1] {
		next, ok := current[p]
		if !ok {
			return fmt.Errorf("%w: %q", ErrKeyNotFound, strings.Join(parts[:i+1], "."))
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q in key %q is not a table", ErrInvalidPath, strings.Join(parts[:i+1], "."), key)
		}
		current = child
	}
	leaf := parts[len(parts)-1]
	if _, ok := current[leaf]; !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	delete(current, leaf)
	return nil
}
