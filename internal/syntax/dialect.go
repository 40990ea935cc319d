package syntax

import (
	"sort"

	"github.com/jward/moonlens/internal/position"
)

// The grammar only knows plain Lua 5.1 statements. Before parsing, the
// extensions it rejects are blanked out with spaces, keeping every byte
// offset and line in place, and remembered here so the converter can put
// them back:
//
//   - operator assignments (`x += 1`, `s ..= t`) keep only their `=`
//   - `!=` becomes `~=`
//   - `goto name`, `::name::` and `break` statements; the grammar only
//     accepts `break` as the last statement of a loop body
//   - local attributes (`local x <const> = 1`)
//   - a `;` directly before a block terminator, which the grammar rejects
//     after `return`
//
// `---` comments are turned into plain `--` comments because the grammar
// reads them as annotations and loses track of the statements that follow.
type dialect struct {
	src      []byte
	lines    []int          // byte offset of each line start
	compound map[int]string // offset of the `=` of an operator assignment -> operator, `=` included
	attribs  map[int]string // offset of a local name -> its attribute
	jumps    []jump         // goto, label and break statements in source order
}

type jumpKind int

const (
	jumpGoto jumpKind = iota
	jumpLabel
	jumpBreak
)

// jump is a blanked goto, label or break statement. A break has no name.
type jump struct {
	offset int
	kind   jumpKind
	stmt   position.Span
	name   string
	nameAt position.Span
}

type tokenKind int

const (
	tokName tokenKind = iota
	tokPunct
	tokValue // numbers and strings
)

type token struct {
	kind       tokenKind
	start, end int
}

var compoundOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"^=": true, "..=": true, "&=": true, "|=": true, "<<=": true, ">>=": true,
}

var (
	punct3 = []string{"...", "..=", "//=", "<<=", ">>="}
	punct2 = []string{
		"..", "==", "~=", "<=", ">=", "<<", ">>", "//", "::", "!=",
		"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=",
	}
)

// terminators end a block; a `;` right before one is dropped.
var terminators = map[string]bool{"end": true, "else": true, "elseif": true, "until": true}

// prelex scans src and returns the rewritten source and what was removed.
// src itself is not modified.
func prelex(src []byte) *dialect {
	d := &dialect{
		src:      append([]byte(nil), src...),
		lines:    []int{0},
		compound: make(map[int]string),
		attribs:  make(map[int]string),
	}
	for i, b := range src {
		if b == '\n' {
			d.lines = append(d.lines, i+1)
		}
	}
	toks := d.scan()
	text := func(t token) string { return string(d.src[t.start:t.end]) }
	is := func(i int, kind tokenKind, s string) bool {
		return i >= 0 && i < len(toks) && toks[i].kind == kind && text(toks[i]) == s
	}
	isName := func(i int) bool { return i < len(toks) && toks[i].kind == tokName && !keywords[text(toks[i])] }

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		s := text(t)
		switch {
		case t.kind == tokPunct && compoundOps[s]:
			d.compound[t.end-1] = s
			d.blank(t.start, t.end-1)
		case t.kind == tokPunct && s == "!=":
			d.src[t.start] = '~'
		case t.kind == tokPunct && s == ";":
			if i+1 == len(toks) || (toks[i+1].kind == tokName && terminators[text(toks[i+1])]) {
				d.blank(t.start, t.end)
			}
		case t.kind == tokName && s == "break":
			d.jumps = append(d.jumps, jump{offset: t.start, kind: jumpBreak, stmt: d.span(t.start, t.end)})
			d.blank(t.start, t.end)
		case t.kind == tokName && s == "goto" && isName(i+1) && !is(i-1, tokPunct, ".") && !is(i-1, tokPunct, ":"):
			name := toks[i+1]
			d.jumps = append(d.jumps, jump{
				offset: t.start,
				stmt:   d.span(t.start, name.end),
				name:   text(name),
				nameAt: d.span(name.start, name.end),
			})
			d.blank(t.start, name.end)
			i++
		case t.kind == tokPunct && s == "::" && isName(i+1) && is(i+2, tokPunct, "::"):
			name := toks[i+1]
			d.jumps = append(d.jumps, jump{
				offset: t.start,
				kind:   jumpLabel,
				stmt:   d.span(t.start, toks[i+2].end),
				name:   text(name),
				nameAt: d.span(name.start, name.end),
			})
			d.blank(t.start, toks[i+2].end)
			i += 2
		case t.kind == tokName && s == "local" && isName(i+1):
			i = d.localAttribs(toks, i+1, text) - 1
		}
	}
	return d
}

// localAttribs consumes `name [<attrib>] {, name [<attrib>]}` starting at
// toks[i] and returns the index of the first token after it.
func (d *dialect) localAttribs(toks []token, i int, text func(token) string) int {
	for i < len(toks) && toks[i].kind == tokName {
		name := toks[i]
		i++
		if i+2 < len(toks) && text(toks[i]) == "<" && toks[i+1].kind == tokName && text(toks[i+2]) == ">" {
			d.attribs[name.start] = text(toks[i+1])
			d.blank(toks[i].start, toks[i+2].end)
			i += 3
		}
		if i >= len(toks) || text(toks[i]) != "," {
			break
		}
		i++
	}
	return i
}

// blank replaces src[from:to] with spaces, keeping line breaks.
func (d *dialect) blank(from, to int) {
	for i := from; i < to; i++ {
		if d.src[i] != '\n' && d.src[i] != '\r' {
			d.src[i] = ' '
		}
	}
}

// point returns the 1-based line and 0-based byte column of a byte offset.
func (d *dialect) point(off int) (int, int) {
	line := sort.Search(len(d.lines), func(i int) bool { return d.lines[i] > off }) - 1
	return line + 1, off - d.lines[line]
}

func (d *dialect) span(from, to int) position.Span {
	sl, sc := d.point(from)
	el, ec := d.point(to)
	return position.Span{StartLine: sl, StartCol: sc, EndLine: el, EndCol: ec}
}

// scan tokenizes d.src, skipping whitespace and comments.
func (d *dialect) scan() []token {
	src := d.src
	var toks []token
	i := 0
	if len(src) > 1 && src[0] == '#' && src[1] == '!' {
		for i < len(src) && src[i] != '\n' {
			i++
		}
	}
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			i++
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			i = d.skipComment(i)
		case c == '"' || c == '\'':
			end := skipShortString(src, i)
			toks = append(toks, token{tokValue, i, end})
			i = end
		case c == '[' && isLongOpen(src[i:]):
			end := skipLong(src, i)
			toks = append(toks, token{tokValue, i, end})
			i = end
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			end := skipNumber(src, i)
			toks = append(toks, token{tokValue, i, end})
			i = end
		case isNameStart(c):
			end := i + 1
			for end < len(src) && isNamePart(src[end]) {
				end++
			}
			toks = append(toks, token{tokName, i, end})
			i = end
		default:
			n := punctLen(src[i:])
			toks = append(toks, token{tokPunct, i, i + n})
			i += n
		}
	}
	return toks
}

// skipComment skips the comment starting at src[i] and returns the offset
// after it. A line comment starting with `---` loses its third dash.
func (d *dialect) skipComment(i int) int {
	src := d.src
	body := i + 2
	if body < len(src) && src[body] == '[' && isLongOpen(src[body:]) {
		return skipLong(src, body)
	}
	if body < len(src) && src[body] == '-' {
		src[body] = ' '
	}
	for body < len(src) && src[body] != '\n' {
		body++
	}
	return body
}

func isLongOpen(s []byte) bool {
	_, ok := longLevel(string(s[:min(len(s), 64)]))
	return ok
}

// skipLong skips a long bracket starting at src[i]; an unterminated one
// runs to the end of input.
func skipLong(src []byte, i int) int {
	j := i + 1
	for j < len(src) && src[j] == '=' {
		j++
	}
	level := j - i - 1
	for k := j + 1; k < len(src); k++ {
		if src[k] != ']' {
			continue
		}
		m := k + 1
		for m < len(src) && src[m] == '=' {
			m++
		}
		if m-k-1 == level && m < len(src) && src[m] == ']' {
			return m + 1
		}
	}
	return len(src)
}

func skipShortString(src []byte, i int) int {
	quote := src[i]
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		case '\n':
			return j
		}
		j++
	}
	return len(src)
}

func skipNumber(src []byte, i int) int {
	j := i
	for j < len(src) {
		c := src[j]
		switch {
		case isNamePart(c) || c == '.':
			j++
		case (c == '+' || c == '-') && j > i && isExponent(src[j-1], src[i:j]):
			j++
		default:
			return j
		}
	}
	return j
}

// isExponent reports whether prev starts an exponent in the number so far.
func isExponent(prev byte, num []byte) bool {
	hex := len(num) > 1 && num[0] == '0' && (num[1] == 'x' || num[1] == 'X')
	if hex {
		return prev == 'p' || prev == 'P'
	}
	return prev == 'e' || prev == 'E'
}

func punctLen(s []byte) int {
	for _, p := range punct3 {
		if len(s) >= 3 && string(s[:3]) == p {
			return 3
		}
	}
	for _, p := range punct2 {
		if len(s) >= 2 && string(s[:2]) == p {
			return 2
		}
	}
	return 1
}

func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isNameStart(c byte) bool { return c == '_' || c >= 0x80 || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isNamePart(c byte) bool  { return isNameStart(c) || isDigit(c) }

var keywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true, "end": true,
	"false": true, "for": true, "function": true, "goto": true, "if": true, "in": true,
	"local": true, "nil": true, "not": true, "or": true, "repeat": true, "return": true,
	"then": true, "true": true, "until": true, "while": true,
}
