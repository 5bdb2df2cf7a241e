package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// loadFile reads and parses a mandatory configuration file.
// The returned path is absolute.
func (b *LayerBuilder) loadFile(path string) (map[string]any, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("%w: empty file path", ErrInvalidLayer)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve path '%s': %w", path, err)
	}

	data, err := afero.ReadFile(b.fs, absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, absPath, fmt.Errorf("%w: '%s': %w", ErrConfigNotFound, absPath, err)
		}
		return nil, absPath, fmt.Errorf("failed to read config file '%s': %w", absPath, err)
	}

	values, err := ParseData(data, DetectFormat(absPath))
	if err != nil {
		return nil, absPath, fmt.Errorf("failed to load '%s': %w", absPath, err)
	}
	return values, absPath, nil
}

// loadEnvVars scans the live environment for variables named
// <prefix><sep>a<sep>b and maps them to the nested key a.b.
// Matching is case-insensitive and keys are lower-cased.
func loadEnvVars(prefix, sep string) map[string]any {
	result := make(map[string]any)

	environ := os.Environ()
	slices.Sort(environ)

	match := strings.ToLower(prefix + sep)
	lowerSep := strings.ToLower(sep)

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if prefix != "" {
			if !strings.HasPrefix(lower, match) {
				continue
			}
			lower = lower[len(match):]
		}

		var segments []string
		if lowerSep == "" {
			segments = []string{lower}
		} else {
			segments = strings.Split(lower, lowerSep)
		}
		segments = slices.DeleteFunc(segments, func(s string) bool { return s == "" })
		if len(segments) == 0 {
			continue
		}

		setNestedValue(result, strings.Join(segments, "."), ParseValue(value))
	}

	return result
}

// ParseValue interprets a textual value as bool, int64, float64 or string, in that order.
func ParseValue(s string) any {
	if strings.EqualFold(s, "true") {
		return true
	}
	if strings.EqualFold(s, "false") {
		return false
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	// Remove quotes if present
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}

// parseArgs turns "--key value", "--key=value" and "--flag" arguments into a nested map.
func parseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			// Skip non-flag arguments
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// Skip "--" argument if used as a separator
			i++
			continue
		}

		var keyPath string
		var valueStr string

		if key, value, found := strings.Cut(argContent, "="); found {
			keyPath = key
			valueStr = value
			i++
		} else {
			keyPath = argContent
			isBoolFlag := i+1 >= len(args) || strings.HasPrefix(args[i+1], "--")

			if isBoolFlag {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		for _, segment := range strings.Split(keyPath, ".") {
			if !isValidKeySegment(segment) {
				return nil, fmt.Errorf("%w: invalid key segment %q in path %q", ErrCLIParse, segment, keyPath)
			}
		}

		setNestedValue(result, keyPath, ParseValue(valueStr))
	}

	return result, nil
}
