package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ValidatorFunc validates a fully merged Config at the end of a build.
type ValidatorFunc func(c *Config) error

// LayerBuilder collects layers in precedence order (later wins) and merges them.
// Building reads files but never writes; order of appends is the only precedence signal.
type LayerBuilder struct {
	layers     []Layer
	fs         afero.Fs
	logger     zerolog.Logger
	tagName    string
	validators []ValidatorFunc
	err        error
}

// NewLayerBuilder creates an empty builder reading from the OS filesystem.
func NewLayerBuilder() *LayerBuilder {
	return &LayerBuilder{
		fs:      afero.NewOsFs(),
		logger:  zerolog.Nop(),
		tagName: "toml",
	}
}

// Add appends an arbitrary layer description.
func (b *LayerBuilder) Add(layer Layer) *LayerBuilder {
	b.layers = append(b.layers, layer.clone())
	return b
}

// WithPath appends a mandatory configuration file.
func (b *LayerBuilder) WithPath(path string) *LayerBuilder {
	return b.Add(PathLayer(path))
}

// WithEnvVar appends a configuration file whose path is read from the
// environment variable name. An unset variable skips the layer.
func (b *LayerBuilder) WithEnvVar(name string) *LayerBuilder {
	return b.Add(EnvVarLayer(name))
}

// WithEnvSearch appends an environment-aware search layer. It is accepted but contributes nothing.
func (b *LayerBuilder) WithEnvSearch(env Environment, dirs ...string) *LayerBuilder {
	return b.Add(EnvSearchLayer(env, dirs...))
}

// WithSecrets appends a mandatory secrets file.
func (b *LayerBuilder) WithSecrets(path string) *LayerBuilder {
	return b.Add(SecretsLayer(path))
}

// WithEnvVars appends the environment variables named <prefix><separator>...
func (b *LayerBuilder) WithEnvVars(prefix, separator string) *LayerBuilder {
	return b.Add(EnvVarsLayer(prefix, separator))
}

// WithScopedPath appends a mandatory configuration file tagged with scope.
func (b *LayerBuilder) WithScopedPath(path string, scope Scope) *LayerBuilder {
	return b.Add(ScopedPathLayer(path, scope))
}

// WithScopes appends a ScopedPath layer for each scope, in the given order,
// whose directory for app holds a settings file. Scopes without a file are skipped.
func (b *LayerBuilder) WithScopes(app string, scopes ...Scope) *LayerBuilder {
	for _, scope := range scopes {
		dir, ok := ScopeDir(app, scope)
		if !ok {
			continue
		}
		path, found := findConfigIn(b.fs, dir)
		if !found {
			b.logger.Debug().Str("scope", scope.String()).Str("dir", dir).Msg("No settings file in scope")
			continue
		}
		b.WithScopedPath(path, scope)
	}
	return b
}

// WithPathInDir appends dir/<basename>.<ext> for the first supported
// extension that exists. Nothing is appended when no file matches.
func (b *LayerBuilder) WithPathInDir(dir, basename string) *LayerBuilder {
	for _, ext := range searchExtensions {
		path := filepath.Join(dir, basename+ext)
		if ok, _ := afero.Exists(b.fs, path); ok {
			return b.WithPath(path)
		}
	}
	b.logger.Debug().Str("dir", dir).Str("name", basename).Msg("No configuration file found")
	return b
}

// WithOverrides appends named in-memory values.
func (b *LayerBuilder) WithOverrides(name string, values map[string]any) *LayerBuilder {
	return b.Add(OverrideLayer(name, values))
}

// WithArgs parses command-line arguments and appends them as the "cli" override layer.
func (b *LayerBuilder) WithArgs(args []string) *LayerBuilder {
	values, err := parseArgs(args)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	return b.WithOverrides("cli", values)
}

// WithDefaults appends code-level defaults from a struct (or pointer to one)
// or a map[string]any. The value is converted and copied when appended, so
// struct fields are named by the tag name set at that point.
func (b *LayerBuilder) WithDefaults(defaults any) *LayerBuilder {
	if defaults == nil {
		return b
	}
	values, err := defaultsToMap(defaults, b.tagName)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.layers = append(b.layers, Layer{Kind: LayerDefaults, Values: values})
	return b
}

// WithFs sets the filesystem used to read layer files.
func (b *LayerBuilder) WithFs(fs afero.Fs) *LayerBuilder {
	if fs != nil {
		b.fs = fs
	}
	return b
}

// WithLogger sets the logger for build diagnostics.
func (b *LayerBuilder) WithLogger(logger zerolog.Logger) *LayerBuilder {
	b.logger = logger
	return b
}

// WithTagName sets the struct tag used for later WithDefaults calls and for
// Config.Scan. Default is "toml".
func (b *LayerBuilder) WithTagName(tagName string) *LayerBuilder {
	switch tagName {
	case "toml", "json", "yaml", "mapstructure":
		b.tagName = tagName
	default:
		if b.err == nil {
			b.err = fmt.Errorf("%w: unsupported tag name %q", ErrInvalidLayer, tagName)
		}
	}
	return b
}

// WithValidator adds a validation function that runs at the end of the build process.
// Validators run in the order they are added.
func (b *LayerBuilder) WithValidator(fn ValidatorFunc) *LayerBuilder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Layers returns a copy of the layer descriptions in build order.
func (b *LayerBuilder) Layers() []Layer {
	out := make([]Layer, len(b.layers))
	for i, l := range b.layers {
		out[i] = l.clone()
	}
	return out
}

// Len returns the number of layers.
func (b *LayerBuilder) Len() int { return len(b.layers) }

// IsEmpty reports whether no layers were added.
func (b *LayerBuilder) IsEmpty() bool { return len(b.layers) == 0 }

// HasPathLayer reports whether a Path or ScopedPath layer was added.
func (b *LayerBuilder) HasPathLayer() bool {
	return b.hasLayer(func(l Layer) bool { return l.Kind == LayerPath || l.Kind == LayerScopedPath })
}

// HasEnvVarLayer reports whether an EnvVar layer for name was added.
func (b *LayerBuilder) HasEnvVarLayer(name string) bool {
	return b.hasLayer(func(l Layer) bool { return l.Kind == LayerEnvVar && l.Name == name })
}

// HasSecretsLayer reports whether a Secrets layer was added.
func (b *LayerBuilder) HasSecretsLayer() bool {
	return b.hasLayer(func(l Layer) bool { return l.Kind == LayerSecrets })
}

// HasEnvVarsLayer reports whether an EnvVars layer with this prefix and separator was added.
func (b *LayerBuilder) HasEnvVarsLayer(prefix, separator string) bool {
	return b.hasLayer(func(l Layer) bool {
		return l.Kind == LayerEnvVars && l.Prefix == prefix && l.Separator == separator
	})
}

func (b *LayerBuilder) hasLayer(match func(Layer) bool) bool {
	for _, l := range b.layers {
		if match(l) {
			return true
		}
	}
	return false
}

// Build merges all layers into a Config.
func (b *LayerBuilder) Build() (*Config, error) {
	cfg, _, err := b.build(false)
	return cfg, err
}

// BuildWithProvenance merges all layers and records, for every leaf key,
// which layer supplied its final value.
func (b *LayerBuilder) BuildWithProvenance() (*Config, *SourceMap, error) {
	return b.build(true)
}

// MustBuild is like Build but panics on error.
func (b *LayerBuilder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("settings build failed: %v", err))
	}
	return cfg
}

// BuildAndScan builds the configuration and decodes it into target.
func (b *LayerBuilder) BuildAndScan(target any) error {
	cfg, err := b.Build()
	if err != nil {
		return err
	}
	if err := cfg.Scan("", target); err != nil {
		return fmt.Errorf("failed to scan final config into target: %w", err)
	}
	return nil
}

func (b *LayerBuilder) build(track bool) (*Config, *SourceMap, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	merged := make(map[string]any)
	var sources *SourceMap
	if track {
		sources = NewSourceMap()
	}

	for i, layer := range b.layers {
		values, meta, skip, err := b.resolve(i, layer)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d (%s): %w", i, layer, err)
		}
		if skip {
			continue
		}
		b.logger.Debug().
			Int("layer", i).
			Str("source", meta.ID).
			Int("keys", len(values)).
			Msg("Merging configuration layer")
		mergeLayer(merged, values, "", meta, sources)
	}

	cfg := &Config{data: merged, tagName: b.tagName}

	for _, validator := range b.validators {
		if err := validator(cfg); err != nil {
			return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return cfg, sources, nil
}

// resolve turns a layer description into values and the metadata recorded for them.
func (b *LayerBuilder) resolve(index int, layer Layer) (map[string]any, SourceMetadata, bool, error) {
	switch layer.Kind {
	case LayerPath:
		values, absPath, err := b.loadFile(layer.Path)
		if err != nil {
			return nil, SourceMetadata{}, false, err
		}
		return values, fileSource(absPath, index), false, nil

	case LayerScopedPath:
		values, absPath, err := b.loadFile(layer.Path)
		if err != nil {
			return nil, SourceMetadata{}, false, err
		}
		return values, scopedFileSource(absPath, layer.Scope, index), false, nil

	case LayerEnvVar:
		path, ok := os.LookupEnv(layer.Name)
		if !ok {
			b.logger.Debug().Str("var", layer.Name).Msg("Environment variable unset, skipping layer")
			return nil, SourceMetadata{}, true, nil
		}
		// The named file is an ordinary file source and stays editable.
		values, absPath, err := b.loadFile(path)
		if err != nil {
			return nil, SourceMetadata{}, false, fmt.Errorf("from $%s: %w", layer.Name, err)
		}
		return values, fileSource(absPath, index), false, nil

	case LayerEnvSearch:
		b.logger.Debug().Str("environment", layer.Environment.String()).Msg("Environment search layer contributes nothing")
		return nil, SourceMetadata{}, true, nil

	case LayerSecrets:
		values, absPath, err := b.loadFile(layer.Path)
		if err != nil {
			return nil, SourceMetadata{}, false, err
		}
		return values, secretsSource(absPath, index), false, nil

	case LayerEnvVars:
		return loadEnvVars(layer.Prefix, layer.Separator), envSource(layer.Prefix, index), false, nil

	case LayerOverride:
		values, _ := normalizeValue(cloneMap(layer.Values)).(map[string]any)
		return values, overrideSource(layer.Name, index), false, nil

	case LayerDefaults:
		values, _ := normalizeValue(cloneMap(layer.Values)).(map[string]any)
		if values == nil {
			values = map[string]any{}
		}
		return values, defaultSource(index), false, nil

	default:
		return nil, SourceMetadata{}, false, fmt.Errorf("%w: unknown layer kind %d", ErrInvalidLayer, int(layer.Kind))
	}
}
