package analysis

import (
	"fmt"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/doc"
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/scope"
	"github.com/jward/moonlens/internal/types"
)

type frameKind int

const (
	frameFunction frameKind = iota
	frameLoop
)

func (k frameKind) String() string {
	if k == frameFunction {
		return "function"
	}
	return "loop"
}

// frame is a context marker that later statements find by walking outward.
type frame struct {
	kind    frameKind
	returns []types.Type
}

// pendingGoto is a goto not yet matched with a label. at moves outward one
// block at a time as blocks exit without defining the label.
type pendingGoto struct {
	name string
	rng  position.Range
	at   *scope.Scope
}

type walker struct {
	cfg   *config
	docs  *doc.Index
	chain *scope.Chain

	types   map[ast.Node]types.Type
	strings map[*ast.StringLiteral]string
	lut     map[position.Position]*Info
	diags   []Diagnostic

	symbols  []*Symbol
	symStack []*Symbol
	frames   []*frame

	// boundaries are the scopes a goto cannot jump out of.
	boundaries map[*scope.Scope]bool
	gotos      []*pendingGoto

	// Set by declaration handlers before walking a function value.
	fnSymbols map[*ast.FunctionExpr]*Symbol
	fnDocs    map[*ast.FunctionExpr]*doc.Entry
	fnSelf    map[*ast.FunctionExpr]types.Type

	varDocs map[*scope.Variable]*doc.Entry
}

func newWalker(cfg *config, docs *doc.Index) *walker {
	w := &walker{
		cfg:        cfg,
		docs:       docs,
		chain:      scope.NewChain(),
		types:      make(map[ast.Node]types.Type),
		strings:    make(map[*ast.StringLiteral]string),
		lut:        make(map[position.Position]*Info),
		boundaries: make(map[*scope.Scope]bool),
		fnSymbols:  make(map[*ast.FunctionExpr]*Symbol),
		fnDocs:     make(map[*ast.FunctionExpr]*doc.Entry),
		fnSelf:     make(map[*ast.FunctionExpr]types.Type),
		varDocs:    make(map[*scope.Variable]*doc.Entry),
	}
	global := w.chain.Global()
	if cfg.prelude {
		for _, name := range PreludeNames() {
			t, _ := PreludeType(name)
			w.chain.DeclareIn(global, name, t, position.Range{})
		}
	}
	for name, t := range cfg.globals {
		if _, exists := global.LookupLocal(name); exists {
			w.chain.Update(name, t, position.Range{})
			continue
		}
		w.chain.DeclareIn(global, name, t, position.Range{})
	}
	return w
}

func (w *walker) result() *Result {
	sortDiagnostics(w.diags)
	return &Result{
		Diagnostics: w.diags,
		Symbols:     w.symbols,
		LUT:         w.lut,
		Scopes:      w.chain.Entries(),
		Global:      w.chain.Global(),
		Docs:        w.docs,
		types:       w.types,
		strings:     w.strings,
	}
}

// spanned is anything with a source span, including the ast parts that are
// not visitable nodes such as *ast.FuncName and *ast.IfClause.
type spanned interface {
	Span() position.Span
}

func rangeOf(n spanned) position.Range { return position.FromSpan(n.Span()) }

// tag labels a scope by construct and 1-based start line.
func tag(kind string, n spanned) string {
	return fmt.Sprintf("%s line %d", kind, n.Span().StartLine)
}

// ============================================================================
// Types
// ============================================================================

func (w *walker) attach(n ast.Node, t types.Type) {
	w.types[n] = types.OrNil(t)
}

// infer walks e and returns the type it attached.
func (w *walker) infer(e ast.Expr) types.Type {
	if e == nil {
		return types.Nil
	}
	e.Accept(w)
	t, ok := w.types[e]
	if !ok {
		internal("no type attached to %T", e)
	}
	return t
}

func (w *walker) inferAll(exprs []ast.Expr) []types.Type {
	out := make([]types.Type, len(exprs))
	for i, e := range exprs {
		out[i] = w.infer(e)
	}
	return out
}

// ============================================================================
// Diagnostics
// ============================================================================

func (w *walker) report(code string, sev Severity, rng position.Range, format string, args ...any) {
	if s, ok := w.cfg.severity[code]; ok {
		sev = s
	}
	w.diags = append(w.diags, Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Range:    rng,
		Severity: sev,
		Code:     code,
	})
}

// ============================================================================
// Context frames
// ============================================================================

func (w *walker) pushFrame(k frameKind) *frame {
	f := &frame{kind: k}
	w.frames = append(w.frames, f)
	return f
}

func (w *walker) popFrame(k frameKind) *frame {
	if len(w.frames) == 0 {
		internal("pop %s frame on empty context stack", k)
	}
	f := w.frames[len(w.frames)-1]
	if f.kind != k {
		internal("pop %s frame but top is %s", k, f.kind)
	}
	w.frames = w.frames[:len(w.frames)-1]
	return f
}

// enclosingFunction returns the innermost function frame.
func (w *walker) enclosingFunction() (*frame, bool) {
	for i := len(w.frames) - 1; i >= 0; i-- {
		if w.frames[i].kind == frameFunction {
			return w.frames[i], true
		}
	}
	return nil, false
}

// inLoop reports whether a loop frame is open inside the current function.
func (w *walker) inLoop() bool {
	for i := len(w.frames) - 1; i >= 0; i-- {
		switch w.frames[i].kind {
		case frameLoop:
			return true
		case frameFunction:
			return false
		}
	}
	return false
}

// ============================================================================
// Symbols
// ============================================================================

func (w *walker) addSymbol(s *Symbol) *Symbol {
	if n := len(w.symStack); n > 0 {
		parent := w.symStack[n-1]
		s.Parent = parent
		parent.Children = append(parent.Children, s)
		return s
	}
	w.symbols = append(w.symbols, s)
	return s
}

func (w *walker) enterSymbol(s *Symbol) { w.symStack = append(w.symStack, s) }

func (w *walker) exitSymbol(s *Symbol) {
	n := len(w.symStack)
	if n == 0 || w.symStack[n-1] != s {
		internal("symbol stack out of order at %s", s.Name)
	}
	w.symStack = w.symStack[:n-1]
}

// ============================================================================
// Blocks and labels
// ============================================================================

// fork opens a block scope. A boundary scope stops goto resolution.
func (w *walker) fork(n ast.Node, tagText string, boundary bool) *scope.Scope {
	prev := w.chain.Fork(rangeOf(n), tagText)
	if boundary {
		w.boundaries[w.chain.Current()] = true
	}
	return prev
}

// restore closes the current block after resolving the gotos that were
// waiting on it.
func (w *walker) restore(prev *scope.Scope) {
	w.exitGotos(w.chain.Current())
	w.chain.Restore(prev)
}

func (w *walker) stmts(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		s.Accept(w)
	}
}

// block walks b in its own scope.
func (w *walker) block(b *ast.Block, tagText string) {
	if b == nil {
		return
	}
	prev := w.fork(b, tagText, false)
	w.stmts(b)
	w.restore(prev)
}

func (w *walker) exitGotos(s *scope.Scope) {
	kept := w.gotos[:0]
	for _, g := range w.gotos {
		if g.at != s {
			kept = append(kept, g)
			continue
		}
		if _, ok := s.Label(g.name); ok {
			continue
		}
		if w.boundaries[s] || s.Parent == nil {
			w.report(CodeUndefinedLabel, SeverityWarning, g.rng, "undefined label '%s'", g.name)
			continue
		}
		g.at = s.Parent
		kept = append(kept, g)
	}
	w.gotos = kept
}

// ============================================================================
// Lookup table
// ============================================================================

// record stores the lookup-table entry for a name occurrence. v may be nil
// for member names, which have no variable record.
func (w *walker) record(n ast.Node, name string, t types.Type, v *scope.Variable) {
	rng := rangeOf(n)
	info := &Info{
		Range: rng,
		Name:  name,
		Type:  types.OrNil(t),
		Scope: w.chain.Current(),
	}
	if v != nil {
		info.Doc = w.varDocs[v]
		info.History = make([]HistoryItem, 0, len(v.History))
		for _, e := range v.History {
			tagText := ""
			if e.Scope != nil {
				tagText = e.Scope.Tag
			}
			info.History = append(info.History, HistoryItem{ScopeTag: tagText, Type: types.Represent(e.Type)})
		}
	}
	w.lut[rng.Start] = info
}

// docFor returns the documentation of a declaration node.
func (w *walker) docFor(n ast.Node) (*doc.Entry, bool) {
	return w.docs.For(rangeOf(n).Start.Line)
}
