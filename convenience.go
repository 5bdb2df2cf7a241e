package settings

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

// Quick builds a Config with the usual precedence, lowest first: struct
// defaults, each file in order, environment variables named
// <envPrefix>__a__b, then command-line arguments from os.Args.
func Quick(defaults any, envPrefix string, files ...string) (*Config, *SourceMap, error) {
	b := NewLayerBuilder().WithDefaults(defaults)
	for _, f := range files {
		b.WithPath(f)
	}
	if envPrefix != "" {
		b.WithEnvVars(envPrefix, "__")
	}
	b.WithArgs(os.Args[1:])
	return b.BuildWithProvenance()
}

// MustQuick is like Quick but panics on error.
func MustQuick(defaults any, envPrefix string, files ...string) *Config {
	cfg, _, err := Quick(defaults, envPrefix, files...)
	if err != nil {
		panic(fmt.Sprintf("settings initialization failed: %v", err))
	}
	return cfg
}

// Validate checks that all required paths are present in the merged configuration.
func (c *Config) Validate(required ...string) error {
	var missing []string
	for _, path := range required {
		if !c.Has(path) {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Dump writes the merged configuration to w in the given format.
func (c *Config) Dump(w io.Writer, format Format) error {
	data := c.AsMap()

	switch format {
	case FormatTOML, "":
		return toml.NewEncoder(w).Encode(data)

	case FormatJSON:
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = w.Write(pretty.Pretty(raw))
		return err

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	default:
		return fmt.Errorf("%w: cannot dump as %q", ErrUnsupportedFormat, format)
	}
}
