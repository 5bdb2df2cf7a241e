package editor

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/lixenwraith/settings"
	"gopkg.in/yaml.v3"
)

// YAMLEditor edits a YAML document through its node tree, so comments and key
// order of untouched nodes survive a save. Replaced scalars keep their line comment.
type YAMLEditor struct {
	*document
	doc *yaml.Node
}

func newYAMLEditor(doc *document, data []byte) (*YAMLEditor, error) {
	e := &YAMLEditor{document: doc}
	doc.render = e.render

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: yaml '%s': %w", ErrParse, doc.path, err)
	}

	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		node = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{newMappingNode()}}
	} else if root := node.Content[0]; root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		node.Content[0] = newMappingNode()
	}
	e.doc = &node
	return e, nil
}

func newMappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func (e *YAMLEditor) root() *yaml.Node {
	return resolveAlias(e.doc.Content[0])
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mappingValue returns the index of key's value node in a mapping's Content.
func mappingValue(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i + 1
		}
	}
	return -1
}

func (e *YAMLEditor) Get(key string) (any, bool) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	n := e.root()
	for _, p := range parts {
		if n.Kind != yaml.MappingNode {
			return nil, false
		}
		idx := mappingValue(n, p)
		if idx < 0 {
			return nil, false
		}
		n = resolveAlias(n.Content[idx])
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, false
	}
	return settings.Normalize(v), true
}

func (e *YAMLEditor) Set(key string, value any) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	var encoded yaml.Node
	if err := encoded.Encode(value); err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrSerialization, key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := parentMapping(e.doc.Content[0], key, parts, true)
	if err != nil {
		return err
	}

	leaf := parts[len(parts)-1]
	if idx := mappingValue(n, leaf); idx >= 0 {
		old := n.Content[idx]
		encoded.LineComment = old.LineComment
		encoded.HeadComment = old.HeadComment
		encoded.FootComment = old.FootComment
		n.Content[idx] = &encoded
	} else {
		appendPair(n, leaf, &encoded)
	}

	e.touch()
	return nil
}

// parentMapping walks from root to the mapping that holds the last segment
// of parts. With create set, missing intermediate mappings are added.
// Aliases are not followed: an edit there would change the anchored node.
func parentMapping(root *yaml.Node, key string, parts []string, create bool) (*yaml.Node, error) {
	n := root
	for i := 0; ; i++ {
		switch n.Kind {
		case yaml.MappingNode:
		case yaml.AliasNode:
			return nil, fmt.Errorf("%w: %s in key %q is an alias of &%s; edit the anchor instead",
				ErrInvalidPath, describePath(parts[:i]), key, n.Value)
		default:
			return nil, fmt.Errorf("%w: %s in key %q is not a mapping", ErrInvalidPath, describePath(parts[:i]), key)
		}
		if i == len(parts)-1 {
			return n, nil
		}

		idx := mappingValue(n, parts[i])
		if idx < 0 {
			if !create {
				return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, strings.Join(parts[:i+1], "."))
			}
			child := newMappingNode()
			appendPair(n, parts[i], child)
			n = child
			continue
		}
		n = n.Content[idx]
	}
}

func describePath(parts []string) string {
	if len(parts) == 0 {
		return "document root"
	}
	return strconv.Quote(strings.Join(parts, "."))
}

// appendPair adds key: value to a mapping. An empty flow mapping such as a
// freshly created "{}" switches to block style.
func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	if len(m.Content) == 0 {
		m.Style &^= yaml.FlowStyle
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func (e *YAMLEditor) Unset(key string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := parentMapping(e.doc.Content[0], key, parts, false)
	if err != nil {
		return err
	}

	idx := mappingValue(n, parts[len(parts)-1])
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	n.Content = append(n.Content[:idx-1], n.Content[idx+1:]...)

	e.touch()
	return nil
}

// Keys returns the top-level keys in document order.
func (e *YAMLEditor) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	root := e.root()
	if root.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys
}

func (e *YAMLEditor) render() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(e.doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
