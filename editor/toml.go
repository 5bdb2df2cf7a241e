package editor

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lixenwraith/settings"
)

// TOMLEditor edits a TOML file line by line. Lines that an edit does not touch
// are written back byte for byte, so comments, blank lines, key order and
// spacing survive. Replacing a scalar keeps the key text, the spacing around
// '=' and any trailing comment.
type TOMLEditor struct {
	*document
	doc *tomlDoc
	// tree is the decoded document, refreshed after every edit
	tree map[string]any
}

func newTOMLEditor(doc *document, data []byte) (*TOMLEditor, error) {
	e := &TOMLEditor{document: doc}
	doc.render = func() ([]byte, error) { return []byte(e.doc.render()), nil }

	src := string(data)
	tree, err := decodeTOML(src)
	if err != nil {
		return nil, fmt.Errorf("%w: toml '%s': %w", ErrParse, doc.path, err)
	}
	parsed, err := parseTOMLDoc(src)
	if err != nil {
		return nil, fmt.Errorf("%w: toml '%s': %w", ErrParse, doc.path, err)
	}
	e.doc, e.tree = parsed, tree
	return e, nil
}

func decodeTOML(src string) (map[string]any, error) {
	var m map[string]any
	if _, err := toml.Decode(src, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return map[string]any{}, nil
	}
	return settings.Normalize(m).(map[string]any), nil
}

func (e *TOMLEditor) Get(key string) (any, bool) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := lookup(e.tree, parts)
	if !ok {
		return nil, false
	}
	return cloneTree(v), true
}

func (e *TOMLEditor) Set(key string, value any) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	text, err := encodeTOMLValue(value)
	if err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Existing intermediates must be tables
	current := e.tree
	for i, p := range parts[:len(parts)-1] {
		next, ok := current[p]
		if !ok {
			break
		}
		table, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q in key %q is not a table", ErrInvalidPath, strings.Join(parts[:i+1], "."), key)
		}
		current = table
	}

	return e.apply(key, func(d *tomlDoc) error { return d.set(parts, value, text) })
}

func (e *TOMLEditor) Unset(key string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.tree
	for i, p := range parts[:len(parts)-1] {
		next, ok := current[p]
		if !ok {
			return fmt.Errorf("%w: %q", ErrKeyNotFound, strings.Join(parts[:i+1], "."))
		}
		table, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q in key %q is not a table", ErrInvalidPath, strings.Join(parts[:i+1], "."), key)
		}
		current = table
	}
	if _, ok := current[parts[len(parts)-1]]; !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	return e.apply(key, func(d *tomlDoc) error { return d.unset(parts) })
}

// apply runs an edit against a copy of the document and keeps it only if the
// result still decodes. Caller holds mu.
func (e *TOMLEditor) apply(key string, edit func(*tomlDoc) error) error {
	candidate := e.doc.clone()
	if err := edit(candidate); err != nil {
		return err
	}
	tree, err := decodeTOML(candidate.render())
	if err != nil {
		return fmt.Errorf("%w: key %q produced an invalid document: %w", ErrSerialization, key, err)
	}
	e.doc, e.tree = candidate, tree
	e.touch()
	return nil
}

// Keys returns the top-level keys in document order.
func (e *TOMLEditor) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	inRoot := true
	for _, entry := range e.doc.entries {
		switch entry.kind {
		case tomlHeader:
			inRoot = false
			add(entry.table[0])
		case tomlKeyValue:
			if inRoot {
				add(entry.key[0])
			}
		}
	}
	return keys
}

// set writes text (the encoding of value) at the absolute key path parts.
func (d *tomlDoc) set(parts []string, value any, text string) error {
	kvs := d.keyValues()

	for _, kv := range kvs {
		if equalPath(kv.full, parts) {
			d.entries[kv.index].value = text
			return nil
		}
	}

	for _, kv := range kvs {
		if len(kv.full) < len(parts) && hasPathPrefix(parts, kv.full) {
			return d.editInline(kv.index, parts[len(kv.full):], value, false)
		}
	}

	// A table being replaced by a value: drop its sections and dotted keys
	d.removeTable(parts)
	d.insertKey(parts, text)
	return nil
}

func (d *tomlDoc) unset(parts []string) error {
	kvs := d.keyValues()

	for _, kv := range kvs {
		if equalPath(kv.full, parts) {
			d.entries = slices.Delete(d.entries, kv.index, kv.index+1)
			return nil
		}
	}

	for _, kv := range kvs {
		if len(kv.full) < len(parts) && hasPathPrefix(parts, kv.full) {
			return d.editInline(kv.index, parts[len(kv.full):], nil, true)
		}
	}

	if d.removeTable(parts) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrKeyNotFound, strings.Join(parts, "."))
}

// editInline rewrites the inline table held by the entry at idx after setting
// or deleting rel inside it.
func (d *tomlDoc) editInline(idx int, rel []string, value any, del bool) error {
	entry := d.entries[idx]
	key := formatKey(entry.key)

	var holder map[string]any
	if _, err := toml.Decode("v = "+entry.value, &holder); err != nil {
		return fmt.Errorf("%w: inline value of %q: %w", ErrParse, key, err)
	}
	table, ok := settings.Normalize(holder["v"]).(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %q is not a table", ErrInvalidPath, key)
	}

	var err error
	if del {
		err = remove(table, strings.Join(rel, "."), rel)
	} else {
		err = assign(table, strings.Join(rel, "."), rel, value)
	}
	if err != nil {
		return err
	}

	text, err := inlineTable(table)
	if err != nil {
		return fmt.Errorf("%w: inline table %q: %w", ErrSerialization, key, err)
	}
	entry.value = text
	return nil
}

// removeTable deletes every section at or below table and every dotted key
// that defines part of it. It reports whether anything was removed.
func (d *tomlDoc) removeTable(table []string) bool {
	removed := false
	for i := len(d.entries) - 1; i >= 0; i-- {
		entry := d.entries[i]
		if entry.kind == tomlHeader && hasPathPrefix(entry.table, table) {
			d.entries = slices.Delete(d.entries, i, d.sectionEnd(i))
			removed = true
		}
	}

	kvs := d.keyValues()
	for j := len(kvs) - 1; j >= 0; j-- {
		if hasPathPrefix(kvs[j].full, table) {
			d.entries = slices.Delete(d.entries, kvs[j].index, kvs[j].index+1)
			removed = true
		}
	}
	return removed
}

// insertKey adds a new key. It goes to the end of its parent's section, next to
// dotted keys that already define the parent, or into a new [parent] section.
func (d *tomlDoc) insertKey(parts []string, text string) {
	parent := parts[:len(parts)-1]
	leaf := parts[len(parts)-1:]

	if len(parent) > 0 {
		if h := d.header(parent); h >= 0 {
			d.appendToSection(h, leaf, text)
			return
		}
	}

	best, bestLen := -1, 0
	var bestTable []string
	for _, kv := range d.keyValues() {
		table := d.sectionTable(kv.section)
		if !hasPathPrefix(parent, table) {
			continue
		}
		if c := commonPrefixLen(kv.full, parent); c > len(table) && c >= bestLen {
			best, bestLen, bestTable = kv.index, c, table
		}
	}
	if best >= 0 {
		d.insert(best+1, newKeyValue(slices.Clone(parts[len(bestTable):]), text))
		return
	}

	if len(parent) == 0 {
		d.appendToSection(-1, leaf, text)
		return
	}

	var added []*tomlEntry
	if n := len(d.entries); n > 0 && !isBlank(d.entries[n-1]) {
		added = append(added, blankLine())
	}
	added = append(added, newHeader(slices.Clone(parent)), newKeyValue(leaf, text))
	d.entries = append(d.entries, added...)
}

func (d *tomlDoc) sectionTable(section int) []string {
	if section < 0 {
		return nil
	}
	return d.entries[section].table
}

// appendToSection inserts key after the last non-blank line of the section
// whose header is at h (-1 for the root table). A root key placed directly
// above a header gets a blank line after it.
func (d *tomlDoc) appendToSection(h int, key []string, text string) {
	end := d.sectionEnd(h)
	at := d.lastContent(h+1, end)
	entry := newKeyValue(slices.Clone(key), text)
	if h < 0 && at == end && at < len(d.entries) {
		d.insert(at, entry, blankLine())
		return
	}
	d.insert(at, entry)
}

// encodeTOMLValue renders value as TOML value text. Maps and structs become
// inline tables with sorted keys.
func encodeTOMLValue(value any) (string, error) {
	if value == nil {
		return "", errors.New("toml has no null value")
	}
	if m, ok := value.(map[string]any); ok {
		return inlineTable(m)
	}
	if _, ok := value.(encoding.TextMarshaler); ok {
		return encodeScalar(value)
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", errors.New("toml has no null value")
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			return encodeScalar(rv.Interface())
		}
		return encodeViaTable(rv.Interface())

	case reflect.Map:
		return encodeViaTable(rv.Interface())

	case reflect.Slice, reflect.Array:
		items := make([]string, rv.Len())
		for i := range items {
			text, err := encodeTOMLValue(rv.Index(i).Interface())
			if err != nil {
				return "", fmt.Errorf("element %d: %w", i, err)
			}
			items[i] = text
		}
		return "[" + strings.Join(items, ", ") + "]", nil

	default:
		return encodeScalar(rv.Interface())
	}
}

// encodeViaTable encodes a struct or map as a document and decodes it back,
// so struct tags are honored, then renders the result inline.
func encodeViaTable(v any) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", err
	}
	m, err := decodeTOML(buf.String())
	if err != nil {
		return "", err
	}
	return inlineTable(m)
}

func encodeScalar(v any) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]any{"v": v}); err != nil {
		return "", err
	}
	text, ok := strings.CutPrefix(strings.TrimSpace(buf.String()), "v = ")
	if !ok {
		return "", fmt.Errorf("cannot encode %T as a toml value", v)
	}
	return text, nil
}

func inlineTable(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	items := make([]string, len(keys))
	for i, k := range keys {
		text, err := encodeTOMLValue(m[k])
		if err != nil {
			return "", fmt.Errorf("key %q: %w", k, err)
		}
		items[i] = formatKeySegment(k) + " = " + text
	}
	return "{ " + strings.Join(items, ", ") + " }", nil
}
