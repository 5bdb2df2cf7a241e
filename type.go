package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// lookup fetches a value for the typed accessors, normalized to the scalar
// set produced by the loaders (string, int64, float64, bool).
func (c *Config) lookup(path string) (any, error) {
	val, found := c.Get(path)
	if !found {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	return normalizeValue(val), nil
}

// String returns the value at path as a string. Numbers and booleans are
// formatted; nil reads as the empty string; tables and arrays are an error.
func (c *Config) String(path string) (string, error) {
	val, err := c.lookup(path)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}
	s, err := stringOf(val)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Int64 returns the value at path as an int64. Floats are truncated, booleans
// read as 0 or 1, and strings are parsed with base prefixes ("0x1F") allowed.
func (c *Config) Int64(path string) (int64, error) {
	val, err := c.lookup(path)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(v, 0, 64)
		if err == nil {
			return i, nil
		}
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			return int64(f), nil
		}
		return 0, fmt.Errorf("cannot convert string %q to int64 for path %s: %w", v, path, err)
	case nil:
		return 0, fmt.Errorf("value for path %s is nil, cannot convert to int64", path)
	}
	return 0, fmt.Errorf("cannot convert type %T to int64 for path %s", val, path)
}

// Bool returns the value at path as a bool. Numbers are true when non-zero;
// strings accept the forms understood by strconv.ParseBool.
func (c *Config) Bool(path string) (bool, error) {
	val, err := c.lookup(path)
	if err != nil {
		return false, err
	}

	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to bool for path %s: %w", v, path, err)
		}
		return b, nil
	case nil:
		return false, fmt.Errorf("value for path %s is nil, cannot convert to bool", path)
	}
	return false, fmt.Errorf("cannot convert type %T to bool for path %s", val, path)
}

// Float64 returns the value at path as a float64.
func (c *Config) Float64(path string) (float64, error) {
	val, err := c.lookup(path)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to float64 for path %s: %w", v, path, err)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value for path %s is nil, cannot convert to float64", path)
	}
	return 0, fmt.Errorf("cannot convert type %T to float64 for path %s", val, path)
}

// StringSlice retrieves a list of strings. Array elements are converted with
// the same rules as String; a string value is split on commas.
func (c *Config) StringSlice(path string) ([]string, error) {
	val, err := c.lookup(path)
	if err != nil {
		return nil, err
	}

	switch v := val.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, err := stringOf(item)
			if err != nil {
				return nil, fmt.Errorf("element %d of %s: %w", i, path, err)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("cannot convert type %T to []string for path %s", val, path)
	}
}

func stringOf(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(s), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("cannot convert type %T to string", v)
	}
}
