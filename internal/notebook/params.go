// SPDX-License-Identifier: MPL-2.0

package notebook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const (
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindBool    Kind = "bool"
	KindString  Kind = "str"
	KindNone    Kind = "None"
	KindList    Kind = "list"
	KindDict    Kind = "dict"
	KindUnknown Kind = "unknown"
)

var trailingComma = regexp.MustCompile(`,\s*([\]}])`)

type (
	// Kind is the Python type inferred from a parameter literal.
	Kind string

	// Parameter is one declaration of the parameters cell.
	Parameter struct {
		Name string
		// Literal is the right-hand side as written, without the comment.
		Literal string
		Kind    Kind
		// Annotation is the type hint, if any (name: int = 1).
		Annotation  string
		Description string
	}
)

// Output reports whether the parameter names a process output.
func (p Parameter) Output() bool {
	return strings.HasPrefix(p.Name, OutputPrefix)
}

// Input reports whether the parameter is explicitly marked as an input.
func (p Parameter) Input() bool {
	return strings.HasPrefix(p.Name, InputPrefix)
}

// Value converts the literal into a Go value: int64, float64, bool, string,
// nil, or the YAML decoding of list and dict literals. Expressions that
// cannot be evaluated are returned as their source text.
func (p Parameter) Value() any {
	switch p.Kind {
	case KindInt:
		n, _ := strconv.ParseInt(strings.ReplaceAll(p.Literal, "_", ""), 0, 64)
		return n
	case KindFloat:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(p.Literal, "_", ""), 64)
		return f
	case KindBool:
		return p.Literal == "True"
	case KindString:
		s, err := unquote(p.Literal)
		if err != nil {
			return p.Literal
		}
		return s
	case KindNone:
		return nil
	case KindList, KindDict:
		var v any
		src := strings.NewReplacer("(", "[", ")", "]", "True", "true", "False", "false", "None", "null").Replace(p.Literal)
		src = trailingComma.ReplaceAllString(src, "$1")
		if err := yaml.Unmarshal([]byte(src), &v); err != nil {
			return p.Literal
		}
		return v
	default:
		return p.Literal
	}
}

// ParseParameters parses the assignments in a parameters cell. Lines that are
// not assignments (comments, imports, calls) are skipped. A literal whose
// brackets are left open continues on the following lines.
func ParseParameters(source string) []Parameter {
	var params []Parameter
	lines := strings.Split(source, "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := assignmentIndex(line)
		if eq < 0 {
			continue
		}
		name, annotation, _ := strings.Cut(line[:eq], ":")
		name = strings.TrimSpace(name)
		if !isIdentifier(name) {
			continue
		}

		literal, comment := splitComment(line[eq+1:])
		for depth(literal) > 0 && i+1 < len(lines) {
			i++
			more, c := splitComment(lines[i])
			literal += " " + strings.TrimSpace(more)
			if comment == "" {
				comment = c
			}
		}
		literal = strings.TrimSpace(literal)

		params = append(params, Parameter{
			Name:        name,
			Literal:     literal,
			Kind:        InferKind(literal),
			Annotation:  strings.TrimSpace(annotation),
			Description: comment,
		})
	}
	return params
}

// InferKind returns the Python type of a literal.
func InferKind(literal string) Kind {
	s := strings.TrimSpace(literal)
	switch {
	case s == "None":
		return KindNone
	case s == "True" || s == "False":
		return KindBool
	case isQuoted(s):
		return KindString
	case strings.HasPrefix(s, "[") || strings.HasPrefix(s, "("):
		return KindList
	case strings.HasPrefix(s, "{"):
		return KindDict
	}

	digits := strings.ReplaceAll(s, "_", "")
	if _, err := strconv.ParseInt(digits, 0, 64); err == nil {
		return KindInt
	}
	if _, err := strconv.ParseFloat(digits, 64); err == nil && !strings.ContainsAny(digits, "xXnN") {
		return KindFloat
	}
	return KindUnknown
}

// assignmentIndex returns the index of the top-level "=" of an assignment, or
// -1 for comparisons, keyword calls and lines without one.
func assignmentIndex(line string) int {
	var q quoteState
	for i, r := range line {
		if q.inString(r) {
			continue
		}
		switch {
		case r == '#':
			return -1
		case r == '(' || r == '[' || r == '{':
			return -1
		case r == '=':
			if i+1 < len(line) && line[i+1] == '=' {
				return -1
			}
			if i > 0 && strings.ContainsRune("!<>=+-*/%", rune(line[i-1])) {
				return -1
			}
			return i
		}
	}
	return -1
}

// splitComment separates a trailing "# comment" that is not inside a string.
func splitComment(s string) (string, string) {
	var q quoteState
	for i, r := range s {
		if q.inString(r) {
			continue
		}
		if r == '#' {
			return s[:i], strings.TrimSpace(s[i+1:])
		}
	}
	return s, ""
}

// depth is the count of unclosed brackets outside strings.
func depth(s string) int {
	var q quoteState
	n := 0
	for _, r := range s {
		if q.inString(r) {
			continue
		}
		switch {
		case strings.ContainsRune("([{", r):
			n++
		case strings.ContainsRune(")]}", r):
			n--
		}
	}
	return n
}

// quoteState tracks whether a scan of Python source is inside a string
// literal. A backslash inside a string escapes the rune that follows it.
type quoteState struct {
	quote   rune
	escaped bool
}

// inString consumes r and reports whether it is part of a string literal,
// quotes included.
func (q *quoteState) inString(r rune) bool {
	switch {
	case q.escaped:
		q.escaped = false
	case q.quote != 0:
		if r == '\\' {
			q.escaped = true
		} else if r == q.quote {
			q.quote = 0
		}
	case r == '\'' || r == '"':
		q.quote = r
	default:
		return false
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func isQuoted(s string) bool {
	s = strings.TrimLeft(s, "rRbBuU")
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '\'' || q == '"') && s[len(s)-1] == q
}

// unquote decodes a Python string literal with single or double quotes.
func unquote(s string) (string, error) {
	raw := len(s) > 0 && (s[0] == 'r' || s[0] == 'R')
	s = strings.TrimLeft(s, "rRbBuU")
	if !isQuoted(s) {
		return "", fmt.Errorf("not a string literal: %s", s)
	}
	body := s[1 : len(s)-1]
	if raw {
		return body, nil
	}
	if s[0] == '\'' {
		body = strings.ReplaceAll(body, `\'`, `'`)
		body = strings.ReplaceAll(body, `"`, `\"`)
	}
	return strconv.Unquote(`"` + body + `"`)
}
