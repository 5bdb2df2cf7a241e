package editor

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type tomlLineKind int

const (
	// blank lines and comments
	tomlTrivia tomlLineKind = iota
	// [table] or [[array]]
	tomlHeader
	// key = value, possibly spanning several lines
	tomlKeyValue
)

// tomlEntry is one logical line of a TOML document. Key/value entries keep the
// text around the value so a replacement leaves key spacing and comments intact.
type tomlEntry struct {
	kind tomlLineKind
	// raw text of trivia and header lines
	raw string

	// header fields
	table []string
	array bool

	// key/value fields; key is relative to the enclosing table
	key    []string
	prefix string
	value  string
	suffix string
}

func (e *tomlEntry) text() string {
	if e.kind == tomlKeyValue {
		return e.prefix + e.value + e.suffix
	}
	return e.raw
}

// tomlDoc is a line-oriented TOML document. Rendering an unmodified document
// reproduces the input byte for byte.
type tomlDoc struct {
	entries         []*tomlEntry
	eol             string
	trailingNewline bool
}

func parseTOMLDoc(src string) (*tomlDoc, error) {
	d := &tomlDoc{eol: "\n"}
	if src == "" {
		d.trailingNewline = true
		return d, nil
	}
	if strings.Contains(src, "\r\n") {
		d.eol = "\r\n"
	}
	d.trailingNewline = strings.HasSuffix(src, "\n")

	body := src
	if d.trailingNewline {
		body = strings.TrimSuffix(body, "\n")
		body = strings.TrimSuffix(body, "\r")
	}
	lines := strings.Split(body, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			d.entries = append(d.entries, &tomlEntry{kind: tomlTrivia, raw: line})

		case strings.HasPrefix(trimmed, "["):
			table, array, err := parseHeader(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			d.entries = append(d.entries, &tomlEntry{kind: tomlHeader, raw: line, table: table, array: array})

		default:
			entry, last, err := parseKeyValue(lines, i, d.eol)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			d.entries = append(d.entries, entry)
			i = last
		}
	}
	return d, nil
}

func (d *tomlDoc) render() string {
	var b strings.Builder
	for i, e := range d.entries {
		if i > 0 {
			b.WriteString(d.eol)
		}
		b.WriteString(e.text())
	}
	if d.trailingNewline && len(d.entries) > 0 {
		b.WriteString(d.eol)
	}
	return b.String()
}

// clone copies the entry list and entries so a failed edit can be rolled back.
func (d *tomlDoc) clone() *tomlDoc {
	c := &tomlDoc{eol: d.eol, trailingNewline: d.trailingNewline}
	c.entries = make([]*tomlEntry, len(d.entries))
	for i, e := range d.entries {
		cp := *e
		c.entries[i] = &cp
	}
	return c
}

func (d *tomlDoc) insert(at int, entries ...*tomlEntry) {
	d.entries = append(d.entries[:at], append(entries, d.entries[at:]...)...)
}

// tomlLocated is a key/value entry with its absolute key path.
type tomlLocated struct {
	index int
	// section is the index of the enclosing header, or -1 for the root table
	section int
	full    []string
}

// keyValues lists key/value entries outside array-of-tables sections.
func (d *tomlDoc) keyValues() []tomlLocated {
	var out []tomlLocated
	var table []string
	section := -1
	inArray := false
	for i, e := range d.entries {
		switch e.kind {
		case tomlHeader:
			table, section, inArray = e.table, i, e.array
		case tomlKeyValue:
			if inArray {
				continue
			}
			full := make([]string, 0, len(table)+len(e.key))
			full = append(append(full, table...), e.key...)
			out = append(out, tomlLocated{index: i, section: section, full: full})
		}
	}
	return out
}

// header returns the index of the standard table header for table, or -1.
func (d *tomlDoc) header(table []string) int {
	for i, e := range d.entries {
		if e.kind == tomlHeader && !e.array && equalPath(e.table, table) {
			return i
		}
	}
	return -1
}

// sectionEnd returns the index one past the last entry belonging to the
// section starting at start (-1 for the root table). Comments directly above
// the next header belong to that header.
func (d *tomlDoc) sectionEnd(start int) int {
	next := len(d.entries)
	for i := start + 1; i < len(d.entries); i++ {
		if d.entries[i].kind == tomlHeader {
			next = i
			break
		}
	}
	if next == len(d.entries) {
		return next
	}
	end := next
	for end-1 > start && isComment(d.entries[end-1]) {
		end--
	}
	return end
}

// lastContent returns the index after the last non-blank entry in [start, end),
// or start when there is none.
func (d *tomlDoc) lastContent(start, end int) int {
	for i := end; i > start; i-- {
		if !isBlank(d.entries[i-1]) {
			return i
		}
	}
	return start
}

func isComment(e *tomlEntry) bool {
	return e.kind == tomlTrivia && strings.HasPrefix(strings.TrimSpace(e.raw), "#")
}

func isBlank(e *tomlEntry) bool {
	return e.kind == tomlTrivia && strings.TrimSpace(e.raw) == ""
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasPathPrefix(path, prefix []string) bool {
	return len(path) >= len(prefix) && equalPath(path[:len(prefix)], prefix)
}

func commonPrefixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// parseHeader parses a trimmed "[a.b]" or "[[a.b]]" line.
func parseHeader(trimmed string) ([]string, bool, error) {
	array := strings.HasPrefix(trimmed, "[[")
	open := 1
	if array {
		open = 2
	}
	end := scanUntil(trimmed, open, ']')
	if end < 0 {
		return nil, false, fmt.Errorf("unterminated table header")
	}
	if array && (end+1 >= len(trimmed) || trimmed[end+1] != ']') {
		return nil, false, fmt.Errorf("unterminated array table header")
	}
	table, err := parseKeyPath(trimmed[open:end])
	if err != nil {
		return nil, false, err
	}
	return table, array, nil
}

// parseKeyValue parses the entry starting at lines[start]. It returns the
// entry and the index of the last line it occupies.
func parseKeyValue(lines []string, start int, eol string) (*tomlEntry, int, error) {
	line := lines[start]
	eq := scanUntil(line, 0, '=')
	if eq < 0 {
		return nil, 0, fmt.Errorf("expected '=' in key/value pair")
	}
	key, err := parseKeyPath(line[:eq])
	if err != nil {
		return nil, 0, err
	}

	valueStart := eq + 1
	for valueStart < len(line) && (line[valueStart] == ' ' || line[valueStart] == '\t') {
		valueStart++
	}

	endLine, endCol, err := scanValue(lines, start, valueStart)
	if err != nil {
		return nil, 0, err
	}

	var value string
	if endLine == start {
		value = line[valueStart:endCol]
	} else {
		parts := []string{line[valueStart:]}
		parts = append(parts, lines[start+1:endLine]...)
		parts = append(parts, lines[endLine][:endCol])
		value = strings.Join(parts, eol)
	}

	return &tomlEntry{
		kind:   tomlKeyValue,
		key:    key,
		prefix: line[:valueStart],
		value:  value,
		suffix: lines[endLine][endCol:],
	}, endLine, nil
}

// scanUntil returns the index of the first target byte at or after from that
// is outside quoted strings, or -1.
func scanUntil(s string, from int, target byte) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case target:
			return i
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' {
					i++
				}
				i++
			}
		case '\'':
			i++
			for i < len(s) && s[i] != '\'' {
				i++
			}
		}
	}
	return -1
}

// scanValue finds the end of a value that starts at lines[line][col]. The
// value may span lines inside multi-line strings or arrays. It returns the
// line and the column one past the last character of the value.
func scanValue(lines []string, line, col int) (int, int, error) {
	const (
		none = iota
		basic
		literal
		mlBasic
		mlLiteral
	)
	state := none
	depth := 0
	endLine, endCol := line, col

	for li := line; li < len(lines); li++ {
		s := lines[li]
		i := 0
		if li == line {
			i = col
		}
	scan:
		for i < len(s) {
			c := s[i]
			switch state {
			case basic:
				switch c {
				case '\\':
					i += 2
					continue
				case '"':
					state = none
				}
				i++
				endLine, endCol = li, i
				continue

			case literal:
				if c == '\'' {
					state = none
				}
				i++
				endLine, endCol = li, i
				continue

			case mlBasic, mlLiteral:
				quote := byte('"')
				if state == mlLiteral {
					quote = '\''
				}
				if state == mlBasic && c == '\\' {
					i += 2
					continue
				}
				if c == quote && strings.HasPrefix(s[i:], strings.Repeat(string(quote), 3)) {
					n := 3
					for n < 5 && i+n < len(s) && s[i+n] == quote {
						n++
					}
					i += n
					state = none
					endLine, endCol = li, i
					continue
				}
				i++
				endLine, endCol = li, i
				continue
			}

			switch c {
			case ' ', '\t':
				i++
				continue
			case '#':
				break scan
			case '"':
				if strings.HasPrefix(s[i:], `"""`) {
					state = mlBasic
					i += 3
				} else {
					state = basic
					i++
				}
			case '\'':
				if strings.HasPrefix(s[i:], "'''") {
					state = mlLiteral
					i += 3
				} else {
					state = literal
					i++
				}
			case '[', '{':
				depth++
				i++
			case ']', '}':
				depth--
				i++
			default:
				_, size := utf8.DecodeRuneInString(s[i:])
				i += size
			}
			endLine, endCol = li, i
		}

		switch state {
		case basic, literal:
			return 0, 0, fmt.Errorf("unterminated string")
		case none:
			if depth <= 0 {
				if endLine == line && endCol == col {
					return 0, 0, fmt.Errorf("missing value")
				}
				return endLine, endCol, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("unterminated value")
}

// parseKeyPath splits a dotted TOML key, unquoting quoted segments.
func parseKeyPath(s string) ([]string, error) {
	var parts []string
	i := 0
	skipSpace := func() {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
	}

	for {
		skipSpace()
		if i >= len(s) {
			return nil, fmt.Errorf("empty key segment in %q", s)
		}

		switch s[i] {
		case '"':
			end := i + 1
			for end < len(s) && s[end] != '"' {
				if s[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(s) {
				return nil, fmt.Errorf("unterminated quoted key in %q", s)
			}
			seg, err := strconv.Unquote(s[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("invalid quoted key %s: %w", s[i:end+1], err)
			}
			parts = append(parts, seg)
			i = end + 1

		case '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted key in %q", s)
			}
			parts = append(parts, s[i+1:i+1+end])
			i = i + end + 2

		default:
			start := i
			for i < len(s) && isBareKeyChar(s[i]) {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("invalid character %q in key %q", s[i], s)
			}
			parts = append(parts, s[start:i])
		}

		skipSpace()
		if i >= len(s) {
			return parts, nil
		}
		if s[i] != '.' {
			return nil, fmt.Errorf("unexpected character %q in key %q", s[i], s)
		}
		i++
	}
}

func isBareKeyChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-'
}

// formatKey renders a key path, quoting segments that are not bare keys.
func formatKey(parts []string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = formatKeySegment(p)
	}
	return strings.Join(out, ".")
}

func formatKeySegment(s string) string {
	bare := s != ""
	for i := 0; i < len(s); i++ {
		if !isBareKeyChar(s[i]) {
			bare = false
			break
		}
	}
	if bare {
		return s
	}
	return quoteBasic(s)
}

// quoteBasic renders s as a TOML basic string.
func quoteBasic(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func newKeyValue(key []string, value string) *tomlEntry {
	return &tomlEntry{kind: tomlKeyValue, key: key, prefix: formatKey(key) + " = ", value: value}
}

func newHeader(table []string) *tomlEntry {
	return &tomlEntry{kind: tomlHeader, raw: "[" + formatKey(table) + "]", table: table}
}

func blankLine() *tomlEntry {
	return &tomlEntry{kind: tomlTrivia}
}
