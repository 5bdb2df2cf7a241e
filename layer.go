package settings

import (
	"fmt"
	"slices"
)

// LayerKind identifies the variant of a Layer.
type LayerKind int

const (
	// LayerPath is a mandatory configuration file.
	LayerPath LayerKind = iota
	// LayerEnvVar is a configuration file whose path is read from an environment variable.
	LayerEnvVar
	// LayerEnvSearch is an environment-aware search; it currently contributes nothing.
	LayerEnvSearch
	// LayerSecrets is a mandatory secrets file.
	LayerSecrets
	// LayerEnvVars maps prefixed environment variables to nested keys.
	LayerEnvVars
	// LayerScopedPath is a configuration file tagged with the scope it was found in.
	LayerScopedPath
	// LayerOverride is a named set of in-memory values.
	LayerOverride
	// LayerDefaults holds code-level default values.
	LayerDefaults
)

func (k LayerKind) String() string {
	switch k {
	case LayerPath:
		return "path"
	case LayerEnvVar:
		return "env_var"
	case LayerEnvSearch:
		return "env_search"
	case LayerSecrets:
		return "secrets"
	case LayerEnvVars:
		return "env_vars"
	case LayerScopedPath:
		return "scoped_path"
	case LayerOverride:
		return "override"
	case LayerDefaults:
		return "defaults"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

// Layer describes one configuration source. Only the fields relevant to Kind are set.
// A Layer is a value; builders copy it on append.
type Layer struct {
	Kind LayerKind

	// Path is the file path for LayerPath, LayerSecrets and LayerScopedPath.
	Path string
	// Name is the variable name for LayerEnvVar and the override name for LayerOverride.
	Name string
	// Environment and Dirs describe a LayerEnvSearch.
	Environment Environment
	Dirs        []string
	// Prefix and Separator describe a LayerEnvVars.
	Prefix    string
	Separator string
	// Scope tags a LayerScopedPath.
	Scope Scope
	// Values holds the data of a LayerOverride or LayerDefaults.
	Values map[string]any
}

// PathLayer describes a mandatory configuration file.
func PathLayer(path string) Layer {
	return Layer{Kind: LayerPath, Path: path}
}

// EnvVarLayer describes a configuration file named by the environment variable name.
func EnvVarLayer(name string) Layer {
	return Layer{Kind: LayerEnvVar, Name: name}
}

// EnvSearchLayer describes an environment-aware search across dirs.
func EnvSearchLayer(env Environment, dirs ...string) Layer {
	return Layer{Kind: LayerEnvSearch, Environment: env, Dirs: slices.Clone(dirs)}
}

// SecretsLayer describes a mandatory secrets file.
func SecretsLayer(path string) Layer {
	return Layer{Kind: LayerSecrets, Path: path}
}

// EnvVarsLayer describes environment variables named <prefix><separator>a<separator>b.
func EnvVarsLayer(prefix, separator string) Layer {
	return Layer{Kind: LayerEnvVars, Prefix: prefix, Separator: separator}
}

// ScopedPathLayer describes a mandatory configuration file found in scope.
func ScopedPathLayer(path string, scope Scope) Layer {
	return Layer{Kind: LayerScopedPath, Path: path, Scope: scope}
}

// OverrideLayer describes named in-memory values. The map is deep-copied.
func OverrideLayer(name string, values map[string]any) Layer {
	return Layer{Kind: LayerOverride, Name: name, Values: cloneMap(values)}
}

// DefaultsLayer describes code-level defaults. The map is deep-copied.
func DefaultsLayer(values map[string]any) Layer {
	return Layer{Kind: LayerDefaults, Values: cloneMap(values)}
}

// String returns a short human-readable description of the layer.
func (l Layer) String() string {
	switch l.Kind {
	case LayerPath, LayerSecrets:
		return fmt.Sprintf("%s(%s)", l.Kind, l.Path)
	case LayerScopedPath:
		return fmt.Sprintf("%s(%s, %s)", l.Kind, l.Path, l.Scope)
	case LayerEnvVar:
		return fmt.Sprintf("%s(%s)", l.Kind, l.Name)
	case LayerEnvSearch:
		return fmt.Sprintf("%s(%s, %v)", l.Kind, l.Environment, l.Dirs)
	case LayerEnvVars:
		return fmt.Sprintf("%s(%s, %q)", l.Kind, l.Prefix, l.Separator)
	case LayerOverride:
		return fmt.Sprintf("%s(%s)", l.Kind, l.Name)
	default:
		return l.Kind.String()
	}
}

func (l Layer) clone() Layer {
	c := l
	c.Dirs = slices.Clone(l.Dirs)
	c.Values = cloneMap(l.Values)
	return c
}
