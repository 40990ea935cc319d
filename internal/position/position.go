// Package position converts parser source spans into the 0-based ranges used
// by every downstream consumer, and provides the bracket-aware text scanning
// used by the type-annotation parser.
package position

import "fmt"

// Span is a source span in the parser's convention: 1-based lines, 0-based
// columns, half-open on the end column.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Position is a 0-based line/column pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open 0-based range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// FromSpan converts a parser span to a 0-based range.
func FromSpan(s Span) Range {
	return Range{
		Start: Position{Line: s.StartLine - 1, Character: s.StartCol},
		End:   Position{Line: s.EndLine - 1, Character: s.EndCol},
	}
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Contains reports whether p lies inside r. The end is exclusive.
func (r Range) Contains(p Position) bool {
	return !p.Before(r.Start) && p.Before(r.End)
}

// Encloses reports whether inner lies entirely inside r.
func (r Range) Encloses(inner Range) bool {
	return !inner.Start.Before(r.Start) && !r.End.Before(inner.End)
}

// IsZero reports whether r is the zero range, used for entries with no
// source location (builtins).
func (r Range) IsZero() bool {
	return r == Range{}
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}
