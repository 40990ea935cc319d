package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jward/moonlens/internal/position"
)

// SyntaxError reports type-annotation text that does not match the grammar.
type SyntaxError struct {
	Text   string
	Reason string
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("types: invalid type %q", e.Text)
	}
	return fmt.Sprintf("types: invalid type %q: %s", e.Text, e.Reason)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func syntaxErr(text, reason string) error {
	return &SyntaxError{Text: text, Reason: reason}
}

func wrapErr(text string, err error) error {
	if _, ok := err.(*SyntaxError); ok {
		return err
	}
	return &SyntaxError{Text: text, Reason: err.Error(), Err: err}
}

// Parse reads the canonical text form back into a Type. Rules are tried in
// order: atoms, a parenthesised whole, a top-level union, a table, a list,
// then a function signature.
func Parse(text string) (Type, error) {
	s := strings.TrimSpace(text)
	switch s {
	case "nil":
		return Nil, nil
	case "number":
		return Number, nil
	case "boolean":
		return Boolean, nil
	case "string":
		return String, nil
	case "":
		return nil, syntaxErr(text, "empty type")
	}

	if position.Wraps(s, '(', ')') {
		return Parse(s[1 : len(s)-1])
	}

	alts, err := position.SplitTopLevel(s, '|')
	if err != nil {
		return nil, wrapErr(s, err)
	}
	if len(alts) > 1 {
		var acc Type
		for i, alt := range alts {
			t, err := Parse(alt)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				acc = t
				continue
			}
			acc = Join(acc, t)
		}
		return acc, nil
	}

	if position.Wraps(s, '{', '}') {
		return parseTable(s)
	}
	if position.Wraps(s, '[', ']') {
		return parseList(s)
	}
	if strings.Contains(s, "->") {
		return parseFunction(s)
	}
	return nil, syntaxErr(s, "unrecognised type")
}

// MustParse is Parse for static text; it panics on error.
func MustParse(text string) Type {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

func parseList(s string) (*List, error) {
	parts, err := position.SplitTopLevel(s[1:len(s)-1], ',')
	if err != nil {
		return nil, wrapErr(s, err)
	}
	l := &List{}
	for _, p := range parts {
		t, err := Parse(p)
		if err != nil {
			return nil, err
		}
		l.Elems = append(l.Elems, t)
	}
	return l, nil
}

func parseTable(s string) (*Table, error) {
	parts, err := position.SplitTopLevel(s[1:len(s)-1], ',')
	if err != nil {
		return nil, wrapErr(s, err)
	}
	t := NewTable()
	for _, p := range parts {
		colon, err := position.IndexTopLevel(p, ':')
		if err != nil {
			return nil, wrapErr(p, err)
		}
		if colon < 0 {
			return nil, syntaxErr(p, "table field needs key: type")
		}
		keyText := strings.TrimSpace(p[:colon])
		value, err := Parse(p[colon+1:])
		if err != nil {
			return nil, err
		}
		if err := setTableKey(t, keyText, value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func setTableKey(t *Table, key string, value Type) error {
	switch {
	case strings.HasPrefix(key, `"`):
		name, err := strconv.Unquote(key)
		if err != nil {
			return wrapErr(key, err)
		}
		t.SetEntry(name, value)
	case key == "true" || key == "false":
		t.SetBranch(key == "true", value)
	case position.Wraps(key, '[', ']'):
		inner := key[1 : len(key)-1]
		colon, err := position.IndexTopLevel(inner, ':')
		if err != nil {
			return wrapErr(key, err)
		}
		if colon < 0 {
			return syntaxErr(key, "index signature needs [name: type]")
		}
		keyType, err := Parse(inner[colon+1:])
		if err != nil {
			return err
		}
		t.SetTyped(strings.TrimSpace(inner[:colon]), keyType, value)
	default:
		if i, err := strconv.Atoi(key); err == nil {
			t.SetIndex(i, value)
			return nil
		}
		if !isIdentifier(key) {
			return syntaxErr(key, "invalid table key")
		}
		t.SetEntry(key, value)
	}
	return nil
}

func parseFunction(s string) (*Function, error) {
	start, end, err := position.FindGroup(s, '(', ')')
	if err != nil {
		return nil, wrapErr(s, err)
	}
	if start != 0 {
		return nil, syntaxErr(s, "function type must start with a parameter group")
	}
	params, err := parseParams(s[1 : end-1])
	if err != nil {
		return nil, err
	}

	rest := strings.TrimSpace(s[end:])
	if !strings.HasPrefix(rest, "->") {
		return nil, syntaxErr(s, "expected -> after parameters")
	}
	rest = strings.TrimSpace(rest[2:])

	f := &Function{Params: params}
	if position.Wraps(rest, '[', ']') {
		l, err := parseList(rest)
		if err != nil {
			return nil, err
		}
		f.Return = l
		if len(l.Elems) == 1 {
			f.Return = l.Elems[0]
		}
		return f, nil
	}
	ret, err := Parse(rest)
	if err != nil {
		return nil, err
	}
	f.Return = ret
	return f, nil
}

func parseParams(s string) ([]Param, error) {
	parts, err := position.SplitTopLevel(s, ',')
	if err != nil {
		return nil, wrapErr(s, err)
	}
	params := make([]Param, 0, len(parts))
	for _, p := range parts {
		colon, err := position.IndexTopLevel(p, ':')
		if err != nil {
			return nil, wrapErr(p, err)
		}
		if colon < 0 {
			name := strings.TrimSpace(p)
			if !isParamName(name) {
				return nil, syntaxErr(p, "invalid parameter")
			}
			params = append(params, Param{Name: name, Type: Nil})
			continue
		}
		name := strings.TrimSpace(p[:colon])
		if !isParamName(name) {
			return nil, syntaxErr(p, "invalid parameter name")
		}
		t, err := Parse(p[colon+1:])
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: name, Type: t})
	}
	return params, nil
}

func isParamName(s string) bool {
	return s == "..." || isIdentifier(s)
}
