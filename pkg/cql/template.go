package cql

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Shape is the kind of statement a template describes.
type Shape int

const (
	ShapeWrite Shape = iota
	ShapeRead
)

func (s Shape) String() string {
	if s == ShapeRead {
		return "read"
	}
	return "write"
}

// Template is a parsed query text. Its identity is Text.
type Template struct {
	Text  string
	Verb  string
	Shape Shape
	Table string

	// Columns lists the selected or inserted columns. It is empty for SELECT *.
	Columns []string
	// Conditions lists the columns of the WHERE clause, in order.
	Conditions []string

	Placeholders int
}

// ParseTemplate parses the small subset of CQL the access layer issues:
// SELECT, INSERT, UPDATE and DELETE with positional placeholders.
func ParseTemplate(text string) (Template, error) {
	t := Template{Text: text}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return t, compileErr(text, "empty template")
	}

	n, err := countPlaceholders(trimmed)
	if err != nil {
		return t, compileErr(text, err.Error())
	}
	t.Placeholders = n

	fields := strings.Fields(trimmed)
	t.Verb = strings.ToUpper(fields[0])
	upper := asciiUpper(trimmed)

	switch t.Verb {
	case "SELECT":
		t.Shape = ShapeRead
		from := keywordIndex(upper, "FROM")
		if from < 0 {
			return t, compileErr(text, "SELECT without FROM")
		}
		cols := strings.TrimSpace(trimmed[len("SELECT"):from])
		if cols == "" {
			return t, compileErr(text, "SELECT without columns")
		}
		if cols != "*" {
			t.Columns = splitList(cols, ",")
		}
		t.Table = firstIdent(trimmed[from+len("FROM"):])
	case "INSERT":
		into := keywordIndex(upper, "INTO")
		if into < 0 {
			return t, compileErr(text, "INSERT without INTO")
		}
		rest := trimmed[into+len("INTO"):]
		t.Table = firstIdent(rest)
		values := keywordIndex(asciiUpper(rest), "VALUES")
		if values < 0 {
			return t, compileErr(text, "INSERT without VALUES")
		}
		lp, rp := strings.Index(rest[:values], "("), strings.Index(rest[:values], ")")
		if lp < 0 || rp < lp {
			return t, compileErr(text, "INSERT without column list")
		}
		t.Columns = splitList(rest[lp+1:rp], ",")
	case "UPDATE":
		t.Table = firstIdent(trimmed[len("UPDATE"):])
		set := keywordIndex(upper, "SET")
		if set < 0 {
			return t, compileErr(text, "UPDATE without SET")
		}
		assignments := trimmed[set+len("SET"):]
		if where := keywordIndex(upper[set:], "WHERE"); where >= 0 {
			assignments = trimmed[set+len("SET") : set+where]
		}
		for _, a := range splitList(assignments, ",") {
			t.Columns = append(t.Columns, columnName(a))
		}
	case "DELETE":
		from := keywordIndex(upper, "FROM")
		if from < 0 {
			return t, compileErr(text, "DELETE without FROM")
		}
		t.Table = firstIdent(trimmed[from+len("FROM"):])
	default:
		return t, compileErr(text, fmt.Sprintf("unsupported statement %q", fields[0]))
	}

	if t.Table == "" {
		return t, compileErr(text, "missing table name")
	}

	if where := keywordIndex(upper, "WHERE"); where >= 0 {
		for _, cond := range splitKeyword(trimmed[where+len("WHERE"):], "AND") {
			name := columnName(cond)
			if name == "" {
				return t, compileErr(text, "empty WHERE condition")
			}
			t.Conditions = append(t.Conditions, name)
		}
	}
	return t, nil
}

func compileErr(text, reason string) error {
	return errors.Wrapf(ErrTemplateCompilation, "%s: %q", reason, text)
}

// countPlaceholders counts ? markers outside of quoted literals.
func countPlaceholders(s string) (int, error) {
	var (
		n      int
		quoted bool
		depth  int
	)
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
		case quoted:
		case r == '?':
			n++
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return 0, errors.New("unbalanced parentheses")
			}
		}
	}
	if quoted {
		return 0, errors.New("unterminated string literal")
	}
	if depth != 0 {
		return 0, errors.New("unbalanced parentheses")
	}
	return n, nil
}

// keywordIndex finds kw in upper as a whole word. upper must be the
// upper-cased template so indexes map back to the original text.
func keywordIndex(upper, kw string) int {
	for off := 0; ; {
		i := strings.Index(upper[off:], kw)
		if i < 0 {
			return -1
		}
		i += off
		end := i + len(kw)
		if (i == 0 || !isIdentByte(upper[i-1])) && (end == len(upper) || !isIdentByte(upper[end])) {
			return i
		}
		off = end
	}
}

func splitKeyword(s, kw string) []string {
	var out []string
	for {
		i := keywordIndex(asciiUpper(s), kw)
		if i < 0 {
			break
		}
		out = append(out, strings.TrimSpace(s[:i]))
		s = s[i+len(kw):]
	}
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// columnName returns the left-hand side of an assignment or comparison.
func columnName(expr string) string {
	parts := strings.FieldsFunc(expr, func(r rune) bool {
		return r == '=' || r == '<' || r == '>' || r == ' '
	})
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func firstIdent(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (isIdentByte(s[end]) || s[end] == '.' || s[end] == '"') {
		end++
	}
	return s[:end]
}

func splitList(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// asciiUpper upper-cases ASCII letters only, keeping byte offsets stable.
func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func isIdentByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
