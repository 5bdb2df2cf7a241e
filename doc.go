// Package settings composes configuration from an ordered list of layers and
// remembers which layer supplied every resulting key.
//
// Layers are appended to a LayerBuilder in precedence order: later layers win.
// Supported layers are configuration files (TOML, JSON, YAML, .env), a file
// path named by an environment variable, secrets files, prefixed environment
// variables, in-memory overrides (for example parsed command-line arguments)
// and code-level defaults.
//
// Quick Start:
//
//	cfg, sources, err := settings.NewLayerBuilder().
//	    WithDefaults(defaults).
//	    WithPath("config/base.toml").
//	    WithPath("config/local.yaml").
//	    WithEnvVars("MYAPP", "__").
//	    BuildWithProvenance()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	port, _ := cfg.Int64("server.port")
//	meta, _ := sources.SourceOf("server.port")
//	fmt.Println(meta.ID) // file:/abs/path/config/local.yaml
//
// Merge rules:
//  1. Mappings merge recursively, key by key.
//  2. Scalars and arrays are replaced wholesale by the later layer.
//  3. When a later layer replaces a value, provenance for that key and every
//     key below it moves to the later layer.
//
// The resulting SourceMap is what the editor package uses to route a change
// back into the file that supplied the value.
package settings
