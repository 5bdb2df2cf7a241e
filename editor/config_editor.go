package editor

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/lixenwraith/settings"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ConfigEditor routes per-key edits to the file that supplied each key.
// Keys without a file source go to the default target, if one is set.
// A ConfigEditor is not safe for concurrent mutation.
type ConfigEditor struct {
	sources       *settings.SourceMap
	editors       map[string]LayerEditor
	defaultTarget string
	fs            afero.Fs
	logger        zerolog.Logger
}

// NewConfigEditor creates an editor over the provenance recorded in sources.
func NewConfigEditor(sources *settings.SourceMap) *ConfigEditor {
	if sources == nil {
		sources = settings.NewSourceMap()
	}
	return &ConfigEditor{
		sources: sources,
		editors: make(map[string]LayerEditor),
		fs:      afero.NewOsFs(),
		logger:  zerolog.Nop(),
	}
}

// SetDefaultTarget sets the file that receives keys with no file source.
// The file is created on first use if it does not exist.
func (c *ConfigEditor) SetDefaultTarget(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.defaultTarget = path
}

// DefaultTarget returns the default target path, or "" when unset.
func (c *ConfigEditor) DefaultTarget() string {
	return c.defaultTarget
}

// SetFs sets the filesystem used to open, create and save files.
// It should be called before the first edit.
func (c *ConfigEditor) SetFs(fs afero.Fs) {
	if fs != nil {
		c.fs = fs
	}
}

// SetLogger sets the logger passed to every editor opened afterwards.
func (c *ConfigEditor) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// SourceMap returns the provenance the editor routes by.
func (c *ConfigEditor) SourceMap() *settings.SourceMap {
	return c.sources
}

// fileSource returns the backing file of key. ok is false when the key is
// unknown or only has a default value; err is set for non-file sources.
func (c *ConfigEditor) fileSource(key string) (path string, ok bool, err error) {
	meta, found := c.sources.SourceOf(key)
	if !found || meta.Kind == settings.KindDefault {
		return "", false, nil
	}
	if !meta.IsFile() {
		return "", false, fmt.Errorf("%w: source for key %q is not a file: %s", ErrInvalidPath, key, meta.ID)
	}
	return meta.Path, true, nil
}

// notFound builds the ErrKeyNotFound error for a key without a file source,
// telling default-only keys apart from unknown ones.
func (c *ConfigEditor) notFound(key, detail string) error {
	if meta, found := c.sources.SourceOf(key); found && meta.Kind == settings.KindDefault {
		return fmt.Errorf("%w: key %q only has a default value, %s", ErrKeyNotFound, key, detail)
	}
	return fmt.Errorf("%w: key %q not found, %s", ErrKeyNotFound, key, detail)
}

// Get returns the current value of key from its source file, including
// unsaved edits. Unknown keys and keys from non-file sources are not found.
func (c *ConfigEditor) Get(key string) (any, bool, error) {
	path, ok, err := c.fileSource(key)
	if err != nil || !ok {
		return nil, false, nil
	}
	e, err := c.open(path)
	if err != nil {
		return nil, false, err
	}
	v, found := e.Get(key)
	return v, found, nil
}

// Lookup returns the value of key converted to T. A value that exists but
// cannot be converted returns a *TypeMismatchError.
func Lookup[T any](c *ConfigEditor, key string) (T, bool, error) {
	var zero T
	raw, ok, err := c.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := convert[T](key, raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Set writes value for key into its source file, or into the default target
// for keys without a file source.
func (c *ConfigEditor) Set(key string, value any) error {
	path, ok, err := c.fileSource(key)
	if err != nil {
		return err
	}

	var e LayerEditor
	if ok {
		e, err = c.open(path)
	} else {
		if c.defaultTarget == "" {
			return c.notFound(key, "no default target set")
		}
		e, err = c.openOrCreate(c.defaultTarget)
	}
	if err != nil {
		return err
	}

	if err := e.Set(key, value); err != nil {
		return err
	}
	c.logger.Debug().Str("key", key).Str("path", e.Path()).Msg("Set configuration key")
	return nil
}

// Unset removes key from its source file.
func (c *ConfigEditor) Unset(key string) error {
	path, ok, err := c.fileSource(key)
	if err != nil {
		return err
	}
	if !ok {
		return c.notFound(key, "no file to remove it from")
	}

	e, err := c.open(path)
	if err != nil {
		return err
	}
	if err := e.Unset(key); err != nil {
		return err
	}
	c.logger.Debug().Str("key", key).Str("path", e.Path()).Msg("Unset configuration key")
	return nil
}

// Save writes every dirty file. All files are staged first; if any fails to
// stage, no file is changed. Renames then run in path order, so a failure
// during that phase can leave earlier files updated.
func (c *ConfigEditor) Save() error {
	paths := c.DirtyFiles()
	if len(paths) == 0 {
		return nil
	}

	staged := make([]*stagedWrite, 0, len(paths))
	for _, path := range paths {
		sw, err := c.editors[path].stage()
		if err != nil {
			for _, s := range staged {
				s.discard()
			}
			return fmt.Errorf("failed to stage '%s': %w", path, err)
		}
		staged = append(staged, sw)
	}

	var errs []error
	for _, sw := range staged {
		if err := sw.commit(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.Debug().Strs("files", paths).Msg("Saved configuration files")
	return nil
}

// IsDirty reports whether any open editor has unsaved changes.
func (c *ConfigEditor) IsDirty() bool {
	for _, e := range c.editors {
		if e.IsDirty() {
			return true
		}
	}
	return false
}

// DirtyFiles returns the sorted paths of files with unsaved changes.
func (c *ConfigEditor) DirtyFiles() []string {
	var paths []string
	for path, e := range c.editors {
		if e.IsDirty() {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}

// open returns the cached editor for path or opens the existing file.
func (c *ConfigEditor) open(path string) (LayerEditor, error) {
	if e, ok := c.editors[path]; ok {
		return e, nil
	}
	e, err := OpenFs(c.fs, path, WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.editors[e.Path()] = e
	return e, nil
}

// openOrCreate is open, creating an empty document when the file does not exist.
func (c *ConfigEditor) openOrCreate(path string) (LayerEditor, error) {
	if e, ok := c.editors[path]; ok {
		return e, nil
	}
	e, err := OpenOrCreateFs(c.fs, path, WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.editors[e.Path()] = e
	return e, nil
}
