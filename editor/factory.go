package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/lixenwraith/settings"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Option configures editors created by the factory functions.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger sets the logger used by the editor.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FormatFromPath returns the editable format implied by the extension of path.
// Recognized extensions are toml, json, yaml and yml, in any case.
func FormatFromPath(path string) (settings.Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return settings.FormatTOML, true
	case ".json":
		return settings.FormatJSON, true
	case ".yaml", ".yml":
		return settings.FormatYAML, true
	default:
		return "", false
	}
}

// Open opens an existing file on the OS filesystem.
func Open(path string, opts ...Option) (LayerEditor, error) {
	return OpenFs(afero.NewOsFs(), path, opts...)
}

// OpenFs opens an existing file, choosing the editor by extension.
func OpenFs(afs afero.Fs, path string, opts ...Option) (LayerEditor, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized extension for '%s'", ErrFormatMismatch, path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve '%s': %w", ErrIO, path, err)
	}

	data, err := afero.ReadFile(afs, absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read '%s': %w", ErrIO, absPath, err)
	}

	o := buildOptions(opts)
	doc := &document{fs: afs, path: absPath, format: format, logger: o.logger}

	var e LayerEditor
	switch format {
	case settings.FormatTOML:
		e, err = newTOMLEditor(doc, data)
	case settings.FormatJSON:
		e, err = newJSONEditor(doc, data)
	case settings.FormatYAML:
		e, err = newYAMLEditor(doc, data)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Debug().Str("path", absPath).Str("format", string(format)).Msg("Opened configuration file")
	return e, nil
}

// Create writes an empty document of the given format to path on the OS filesystem.
func Create(path string, format settings.Format, opts ...Option) (LayerEditor, error) {
	return CreateFs(afero.NewOsFs(), path, format, opts...)
}

// CreateFs writes an empty document immediately and returns a clean editor for it.
// An existing file is replaced.
func CreateFs(afs afero.Fs, path string, format settings.Format, opts ...Option) (LayerEditor, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve '%s': %w", ErrIO, path, err)
	}

	o := buildOptions(opts)
	doc := &document{fs: afs, path: absPath, format: format, logger: o.logger}

	var e LayerEditor
	switch format {
	case settings.FormatTOML:
		e, err = newTOMLEditor(doc, nil)
	case settings.FormatJSON:
		e, err = newJSONEditor(doc, nil)
	case settings.FormatYAML:
		e, err = newYAMLEditor(doc, nil)
	default:
		return nil, fmt.Errorf("%w: cannot create a '%s' document", ErrFormatMismatch, format)
	}
	if err != nil {
		return nil, err
	}

	if err := e.Save(); err != nil {
		return nil, err
	}

	o.logger.Debug().Str("path", absPath).Str("format", string(format)).Msg("Created configuration file")
	return e, nil
}

// OpenOrCreate opens path on the OS filesystem, creating an empty document if it does not exist.
func OpenOrCreate(path string, opts ...Option) (LayerEditor, error) {
	return OpenOrCreateFs(afero.NewOsFs(), path, opts...)
}

// OpenOrCreateFs opens path, creating an empty document in the format implied
// by its extension if it does not exist.
func OpenOrCreateFs(afs afero.Fs, path string, opts ...Option) (LayerEditor, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized extension for '%s'", ErrFormatMismatch, path)
	}
	if _, err := afs.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CreateFs(afs, path, format, opts...)
		}
		return nil, fmt.Errorf("%w: failed to stat '%s': %w", ErrIO, path, err)
	}
	return OpenFs(afs, path, opts...)
}
