// Package doc indexes block comments as documentation for the declaration
// that starts on the line directly below them.
package doc

import (
	"sort"
	"strings"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/types"
)

// Entry is one documentation comment. Override is set when the first line
// of the comment parses as a type; Body is the remaining free text.
type Entry struct {
	Range    position.Range
	Raw      string
	Override types.Type
	Body     string
}

// Index maps the 0-based line a block comment ends on to its entry.
type Index struct {
	byLine map[int]*Entry
}

// Build indexes every block comment. Line comments are ignored.
func Build(comments []ast.Comment) *Index {
	idx := &Index{byLine: make(map[int]*Entry)}
	for _, c := range comments {
		if !c.Block {
			continue
		}
		e := NewEntry(c.Raw, c.Text)
		e.Range = position.FromSpan(c.Span())
		idx.byLine[e.Range.End.Line] = e
	}
	return idx
}

// For returns the documentation of a declaration starting on line. Only a
// comment ending exactly one line above matches.
func (x *Index) For(line int) (*Entry, bool) {
	if x == nil {
		return nil, false
	}
	e, ok := x.byLine[line-1]
	return e, ok
}

// Len is the number of indexed comments.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.byLine)
}

// Entries returns the indexed comments ordered by end line.
func (x *Index) Entries() []*Entry {
	if x == nil {
		return nil
	}
	keys := make([]int, 0, len(x.byLine))
	for k := range x.byLine {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, x.byLine[k])
	}
	return out
}

// NewEntry splits comment text into an optional type override and a body.
// A first line that does not parse as a type is kept as part of the body.
func NewEntry(raw, text string) *Entry {
	e := &Entry{Raw: raw}
	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)
	if first != "" {
		if t, err := types.Parse(first); err == nil {
			e.Override = t
			e.Body = strings.TrimSpace(rest)
			return e
		}
	}
	e.Body = strings.TrimSpace(text)
	return e
}

// FunctionOverride returns the override when it is a function type.
func (e *Entry) FunctionOverride() (*types.Function, bool) {
	if e == nil {
		return nil, false
	}
	fn, ok := e.Override.(*types.Function)
	return fn, ok
}
