package analysis

import (
	"fmt"
	"strings"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/doc"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/scope"
	"github.com/jward/moonlens/internal/types"
)

// Severity follows the editor-protocol numbering.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity maps a severity name ("error", "warning", "information" or
// "info", "hint") to its value.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "information", "info":
		return SeverityInformation, nil
	case "hint":
		return SeverityHint, nil
	}
	return 0, fmt.Errorf("analysis: unknown severity %q", name)
}

// Diagnostic codes.
const (
	CodeSyntax         = "syntax"
	CodeReturnOutside  = "return-outside-function"
	CodeBreakOutside   = "break-outside-loop"
	CodeUndefinedLabel = "undefined-label"
	CodeDuplicateLabel = "duplicate-label"
	CodeRedefinedLocal = "redefined-local"
)

// Diagnostic is one advisory finding.
type Diagnostic struct {
	Message  string         `json:"message"`
	Range    position.Range `json:"range"`
	Severity Severity       `json:"severity"`
	Code     string         `json:"code,omitempty"`
}

// SymbolKind classifies an outline entry.
type SymbolKind int

const (
	SymbolVariable SymbolKind = iota
	SymbolFunction
)

func (k SymbolKind) String() string {
	if k == SymbolFunction {
		return "function"
	}
	return "variable"
}

// Symbol is one node of the document outline.
type Symbol struct {
	Name           string         `json:"name"`
	Kind           SymbolKind     `json:"kind"`
	Range          position.Range `json:"range"`
	SelectionRange position.Range `json:"selectionRange"`
	Detail         string         `json:"detail,omitempty"`
	Children       []*Symbol      `json:"children,omitempty"`
	Parent         *Symbol        `json:"-"`
}

// HistoryItem is one rendered event of a variable's history.
type HistoryItem struct {
	ScopeTag string `json:"scope"`
	Type     string `json:"type"`
}

// Info is the lookup-table entry for a name occurrence.
type Info struct {
	Range   position.Range
	Name    string
	Type    types.Type
	Doc     *doc.Entry
	Scope   *scope.Scope
	History []HistoryItem
}

// Result holds the outputs of one traversal. It is read-only once
// returned.
type Result struct {
	Diagnostics []Diagnostic
	Symbols     []*Symbol
	LUT         map[position.Position]*Info
	Scopes      []scope.Entry
	Global      *scope.Scope
	Docs        *doc.Index

	// SyntaxError is set when the document failed to parse; the other
	// outputs are then empty apart from the one diagnostic.
	SyntaxError error

	types   map[ast.Node]types.Type
	strings map[*ast.StringLiteral]string
}

// InfoAt returns the entry starting exactly at pos, or else the entry with
// the innermost range containing pos.
func (r *Result) InfoAt(pos position.Position) (*Info, bool) {
	if info, ok := r.LUT[pos]; ok {
		return info, true
	}
	var best *Info
	for _, info := range r.LUT {
		if !info.Range.Contains(pos) {
			continue
		}
		if best == nil || best.Range.Encloses(info.Range) {
			best = info
		}
	}
	return best, best != nil
}

// ScopeAt returns the innermost scope active at pos.
func (r *Result) ScopeAt(pos position.Position) *scope.Scope {
	return scope.At(r.Scopes, r.Global, pos)
}

// TypeOf returns the type inferred for a node of the analysed tree.
func (r *Result) TypeOf(n ast.Node) (types.Type, bool) {
	t, ok := r.types[n]
	return t, ok
}

// StringValue returns the decoded value of a string literal.
func (r *Result) StringValue(n *ast.StringLiteral) (string, bool) {
	if n.Decoded {
		return n.Value, true
	}
	s, ok := r.strings[n]
	return s, ok
}

// Infos returns the lookup-table entries ordered by position.
func (r *Result) Infos() []*Info {
	out := make([]*Info, 0, len(r.LUT))
	for _, info := range r.LUT {
		out = append(out, info)
	}
	sortInfos(out)
	return out
}

// HasErrors reports whether any diagnostic has error severity.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Walk calls fn for every symbol, parents before children.
func Walk(symbols []*Symbol, fn func(*Symbol)) {
	for _, s := range symbols {
		fn(s)
		Walk(s.Children, fn)
	}
}
