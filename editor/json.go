package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/lixenwraith/settings"
	"github.com/tidwall/pretty"
)

// JSONEditor edits a JSON document as a generic value tree. Comments and
// trailing commas are accepted on open; formatting is not preserved on save.
type JSONEditor struct {
	*document
	root any
}

func newJSONEditor(doc *document, data []byte) (*JSONEditor, error) {
	e := &JSONEditor{document: doc, root: map[string]any{}}
	doc.render = e.render

	if len(bytes.TrimSpace(data)) > 0 {
		root, err := settings.DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: json '%s': %w", ErrParse, doc.path, err)
		}
		e.root = root
	}
	return e, nil
}

func (e *JSONEditor) Get(key string) (any, bool) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := lookup(e.root, parts)
	if !ok {
		return nil, false
	}
	return cloneTree(v), true
}

func (e *JSONEditor) Set(key string, value any) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	encoded, err := toJSONTree(value)
	if err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	root, ok := e.root.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: document root of '%s' is not an object", ErrInvalidPath, e.path)
	}
	if err := assign(root, key, parts, encoded); err != nil {
		return err
	}
	e.touch()
	return nil
}

func (e *JSONEditor) Unset(key string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	root, ok := e.root.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: document root of '%s' is not an object", ErrInvalidPath, e.path)
	}
	if err := remove(root, key, parts); err != nil {
		return err
	}
	e.touch()
	return nil
}

// Keys returns the top-level keys in sorted order.
func (e *JSONEditor) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	root, ok := e.root.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (e *JSONEditor) render() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.root); err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(buf.Bytes(), &pretty.Options{
		Width:    80,
		Prefix:   "",
		Indent:   "  ",
		SortKeys: true,
	}), nil
}

// toJSONTree converts an arbitrary Go value into the generic JSON tree shape
// by round-tripping it through encoding/json.
func toJSONTree(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return settings.DecodeJSON(raw)
}

// cloneTree deep-copies maps and slices of a generic tree.
func cloneTree(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneTree(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneTree(item)
		}
		return out
	default:
		return v
	}
}
