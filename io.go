package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format names a configuration file format.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatEnv  Format = "env"
)

// DetectFormat returns the format implied by the file extension, or "" when unknown.
func DetectFormat(path string) Format {
	base := strings.ToLower(filepath.Base(path))
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return FormatEnv
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".env":
		return FormatEnv
	default:
		return ""
	}
}

// detectFormatFromContent guesses the format of data for files without a known extension.
func detectFormatFromContent(data []byte) Format {
	// Try JSON first (strict format)
	var jsonTest any
	if err := json.Unmarshal(jsonc.ToJSON(data), &jsonTest); err == nil {
		if _, ok := jsonTest.(map[string]any); ok {
			return FormatJSON
		}
	}

	// Try TOML before YAML: "key = value" lines are valid YAML scalars
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return FormatTOML
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return FormatYAML
	}

	return ""
}

// ParseData decodes data in the given format into a nested map.
// An empty format triggers content detection.
func ParseData(data []byte, format Format) (map[string]any, error) {
	if format == "" {
		format = detectFormatFromContent(data)
		if format == "" {
			return nil, ErrUnsupportedFormat
		}
	}

	var result map[string]any
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("%w: toml: %w", ErrFileParse, err)
		}

	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return map[string]any{}, nil
		}
		raw, err := DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: json: %w", ErrFileParse, err)
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: json: top-level value must be an object, got %T", ErrFileParse, raw)
		}
		result = m

	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: yaml: %w", ErrFileParse, err)
		}
		switch m := normalizeValue(raw).(type) {
		case nil:
			result = map[string]any{}
		case map[string]any:
			result = m
		default:
			return nil, fmt.Errorf("%w: yaml: top-level value must be a mapping, got %T", ErrFileParse, raw)
		}

	case FormatEnv:
		vars, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: env: %w", ErrFileParse, err)
		}
		result = make(map[string]any, len(vars))
		for name, value := range vars {
			key := strings.ReplaceAll(strings.ToLower(name), "__", ".")
			if !validDottedKey(key) {
				return nil, fmt.Errorf("%w: env: invalid key %q", ErrFileParse, name)
			}
			setNestedValue(result, key, ParseValue(value))
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if result == nil {
		result = map[string]any{}
	}
	return normalizeValue(result).(map[string]any), nil
}

// DecodeJSON decodes JSON, tolerating comments and trailing commas.
// Integers decode as int64 and other numbers as float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return normalizeJSONNumbers(v), nil
}

// Normalize converts decoder output into the tree shape used throughout the
// package: map[string]any for tables, []any for arrays and int64 for integers.
// Maps and slices are converted in place where possible.
func Normalize(v any) any {
	return normalizeValue(v)
}

func normalizeJSONNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeJSONNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeJSONNumbers(item)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}

func validDottedKey(key string) bool {
	for _, seg := range strings.Split(key, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}
