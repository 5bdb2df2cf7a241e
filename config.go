package settings

import (
	"slices"
)

// Config is an immutable snapshot of merged configuration values.
type Config struct {
	data    map[string]any
	tagName string
}

// NewConfig wraps a nested map in a Config. The map is deep-copied.
func NewConfig(values map[string]any) *Config {
	data := cloneMap(values)
	if data == nil {
		data = make(map[string]any)
	}
	return &Config{data: data, tagName: "toml"}
}

// Get returns a copy of the value at the dotted path.
func (c *Config) Get(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	v, ok := navigateToPath(c.data, path)
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Has reports whether the dotted path exists.
func (c *Config) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// AsMap returns a deep copy of the merged configuration tree.
func (c *Config) AsMap() map[string]any {
	return cloneMap(c.data)
}

// Flatten returns the merged configuration as dotted leaf paths.
func (c *Config) Flatten() map[string]any {
	return flattenMap(c.AsMap(), "")
}

// Keys returns all dotted leaf paths in sorted order.
func (c *Config) Keys() []string {
	flat := flattenMap(c.data, "")
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
