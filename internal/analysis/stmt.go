package analysis

import (
	"strings"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/scope"
	"github.com/jward/moonlens/internal/types"
)

func (w *walker) VisitChunk(n *ast.Chunk) {
	prev := w.fork(n, "chunk", true)
	w.stmts(n.Body)
	w.restore(prev)
}

func (w *walker) VisitBlock(n *ast.Block) {
	w.block(n, tag("block", n))
}

// declareLocal declares id in the current scope. A second local of the same
// name in one scope is valid source; it is recorded as a mutation of the
// existing record and flagged with a hint.
func (w *walker) declareLocal(id *ast.Ident, t types.Type) *scope.Variable {
	rng := rangeOf(id)
	if v, owned := w.chain.Current().LookupLocal(id.Name); owned {
		if v.Declared() != rng {
			w.report(CodeRedefinedLocal, SeverityHint, rng, "redefinition of local '%s'", id.Name)
		}
		return w.chain.Update(id.Name, t, rng)
	}
	return w.chain.Declare(id.Name, t, rng)
}

// assignName updates the visible variable called id, or creates it in the
// global scope when no scope in the chain has it.
func (w *walker) assignName(id *ast.Ident, t types.Type) *scope.Variable {
	if _, ok := w.chain.Lookup(id.Name); ok {
		return w.chain.Update(id.Name, t, rangeOf(id))
	}
	return w.chain.DeclareIn(w.chain.Global(), id.Name, t, rangeOf(id))
}

func (w *walker) VisitLocal(n *ast.LocalStatement) {
	entry, documented := w.docFor(n)
	single := documented && len(n.Names) == 1

	syms := make([]*Symbol, len(n.Names))
	for i, id := range n.Names {
		s := &Symbol{Name: id.Name, Kind: SymbolVariable, Range: rangeOf(n), SelectionRange: rangeOf(id)}
		if fn := functionAt(n.Values, i); fn != nil {
			s.Kind = SymbolFunction
			w.fnSymbols[fn] = s
			if single {
				w.fnDocs[fn] = entry
			}
		}
		syms[i] = w.addSymbol(s)
	}

	values := types.Resolve(w.inferAll(n.Values), len(n.Names))
	if single && entry.Override != nil {
		values[0] = entry.Override
	}
	for i, id := range n.Names {
		v := w.declareLocal(id, values[i])
		if single {
			w.varDocs[v] = entry
		}
		w.attach(id, values[i])
		w.record(id, id.Name, values[i], v)
		syms[i].Detail = types.Represent(values[i])
	}
}

func (w *walker) VisitAssign(n *ast.AssignStatement) {
	w.assign(n, n.Targets, n.Values, "")
}

func (w *walker) VisitCompoundAssign(n *ast.CompoundAssignStatement) {
	w.assign(n, n.Targets, n.Values, n.Op)
}

// assign handles plain and operator assignment. For an operator assignment
// the first value takes the operator's result type.
func (w *walker) assign(stmt ast.Node, targets, values []ast.Expr, op string) {
	entry, documented := w.docFor(stmt)
	single := documented && len(targets) == 1

	syms := make([]*Symbol, len(targets))
	for i, target := range targets {
		name, ok := targetName(target)
		if !ok {
			continue
		}
		fn := functionAt(values, i)
		if fn == nil {
			// Only new globals get a variable symbol; updates do not.
			id, isIdent := target.(*ast.Ident)
			if !isIdent {
				continue
			}
			if _, visible := w.chain.Lookup(id.Name); visible {
				continue
			}
		}
		s := &Symbol{Name: name, Kind: SymbolVariable, Range: rangeOf(stmt), SelectionRange: rangeOf(target)}
		if fn != nil {
			s.Kind = SymbolFunction
			w.fnSymbols[fn] = s
			if single {
				w.fnDocs[fn] = entry
			}
		}
		syms[i] = w.addSymbol(s)
	}

	exprs := w.inferAll(values)
	if op != "" && len(exprs) > 0 {
		exprs[0] = types.CompoundResult(op)
	}
	resolved := types.Resolve(exprs, len(targets))
	if single && entry.Override != nil {
		resolved[0] = entry.Override
	}
	for i, target := range targets {
		v := w.assignTarget(target, resolved[i])
		if v != nil && single {
			w.varDocs[v] = entry
		}
		if syms[i] != nil {
			syms[i].Detail = types.Represent(resolved[i])
		}
	}
}

// assignTarget stores t into one assignment target. It returns the
// variable record for a plain name target.
func (w *walker) assignTarget(target ast.Expr, t types.Type) *scope.Variable {
	switch tg := target.(type) {
	case *ast.Ident:
		v := w.assignName(tg, t)
		w.attach(tg, t)
		w.record(tg, tg.Name, t, v)
		return v
	case *ast.MemberExpr:
		w.infer(tg.Base)
		w.attach(tg, t)
		name, _ := targetName(tg)
		w.record(tg.Name, name, t, nil)
		if base, path, ok := memberPath(tg.Base); ok {
			w.mutateVar(base, path, func(tbl *types.Table) bool {
				tbl.SetEntry(tg.Name.Name, t)
				return true
			})
		}
	case *ast.IndexExpr:
		w.infer(tg.Base)
		keyType := w.infer(tg.Index)
		w.attach(tg, t)
		if base, path, ok := memberPath(tg.Base); ok {
			w.mutateVar(base, path, func(tbl *types.Table) bool {
				return w.setKey(tbl, tg.Index, keyType, t)
			})
		}
	default:
		w.infer(target)
	}
	return nil
}

// mutateVar applies mutate to a copy of the table reached from the variable
// base through path, and records the result as a mutation of base.
func (w *walker) mutateVar(base *ast.Ident, path []string, mutate func(*types.Table) bool) {
	v, ok := w.chain.Lookup(base.Name)
	if !ok {
		return
	}
	tbl, ok := types.First(v.Type()).(*types.Table)
	if !ok {
		return
	}
	c := tbl.Clone()
	if !mutateIn(c, path, mutate) {
		return
	}
	w.chain.Update(base.Name, c, rangeOf(base))
}

func mutateIn(t *types.Table, path []string, mutate func(*types.Table) bool) bool {
	if len(path) == 0 {
		return mutate(t)
	}
	inner, ok := t.Entry(path[0])
	if !ok {
		return false
	}
	it, ok := types.First(inner).(*types.Table)
	if !ok {
		return false
	}
	c := it.Clone()
	if !mutateIn(c, path[1:], mutate) {
		return false
	}
	t.SetEntry(path[0], c)
	return true
}

// memberPath flattens a.b.c into the base name a and the path [b c].
func memberPath(e ast.Expr) (*ast.Ident, []string, bool) {
	switch x := e.(type) {
	case *ast.Ident:
		return x, nil, true
	case *ast.MemberExpr:
		base, path, ok := memberPath(x.Base)
		if !ok {
			return nil, nil, false
		}
		return base, append(path, x.Name.Name), true
	}
	return nil, nil, false
}

// targetName is the dotted display name of a target, if it has one.
func targetName(e ast.Expr) (string, bool) {
	base, path, ok := memberPath(e)
	if !ok {
		return "", false
	}
	if len(path) == 0 {
		return base.Name, true
	}
	return base.Name + "." + strings.Join(path, "."), true
}

func functionAt(values []ast.Expr, i int) *ast.FunctionExpr {
	if i >= len(values) {
		return nil
	}
	fn, _ := values[i].(*ast.FunctionExpr)
	return fn
}

func funcNameText(n *ast.FuncName) string {
	var b strings.Builder
	b.WriteString(n.Base.Name)
	for _, f := range n.Fields {
		b.WriteByte('.')
		b.WriteString(f.Name)
	}
	if n.Method != nil {
		b.WriteByte(':')
		b.WriteString(n.Method.Name)
	}
	return b.String()
}

func (w *walker) VisitFunctionDecl(n *ast.FunctionDecl) {
	entry, documented := w.docFor(n)
	if documented {
		w.fnDocs[n.Func] = entry
	}
	name := n.Name
	sym := w.addSymbol(&Symbol{
		Name:           funcNameText(name),
		Kind:           SymbolFunction,
		Range:          rangeOf(n),
		SelectionRange: rangeOf(name),
	})
	w.fnSymbols[n.Func] = sym

	var t types.Type
	switch {
	case n.Local:
		// The placeholder makes the name visible to its own body.
		v := w.declareLocal(name.Base, types.Nil)
		if documented {
			w.varDocs[v] = entry
		}
		t = w.infer(n.Func)
		w.chain.Update(name.Base.Name, t, rangeOf(name.Base))
		w.attach(name.Base, t)
		w.record(name.Base, name.Base.Name, t, v)

	case len(name.Fields) == 0 && name.Method == nil:
		t = w.infer(n.Func)
		v := w.assignName(name.Base, t)
		if documented {
			w.varDocs[v] = entry
		}
		w.attach(name.Base, t)
		w.record(name.Base, name.Base.Name, t, v)

	default:
		owner := w.infer(name.Base)
		path := make([]string, 0, len(name.Fields))
		for _, f := range name.Fields {
			path = append(path, f.Name)
		}
		key := name.Method
		if key == nil {
			key = name.Fields[len(name.Fields)-1]
			path = path[:len(path)-1]
		}
		for _, p := range path {
			owner = fieldType(owner, p)
		}
		if name.Method != nil {
			w.fnSelf[n.Func] = owner
		}
		t = w.infer(n.Func)
		w.mutateVar(name.Base, path, func(tbl *types.Table) bool {
			tbl.SetEntry(key.Name, t)
			return true
		})
		w.attach(key, t)
		w.record(key, funcNameText(name), t, nil)
	}
	sym.Detail = types.Represent(t)
}

func fieldType(t types.Type, name string) types.Type {
	tbl, ok := types.First(t).(*types.Table)
	if !ok {
		return types.Nil
	}
	if v, ok := tbl.Entry(name); ok {
		return types.OrNil(v)
	}
	return types.Nil
}

func (w *walker) VisitReturn(n *ast.ReturnStatement) {
	value := types.Fold(types.Values(w.inferAll(n.Values)))
	f, ok := w.enclosingFunction()
	if !ok {
		w.report(CodeReturnOutside, SeverityError, rangeOf(n), "return statement outside of a function")
		return
	}
	f.returns = append(f.returns, value)
}

func (w *walker) VisitCallStatement(n *ast.CallStatement) {
	w.infer(n.Call)
}

func (w *walker) VisitIf(n *ast.IfStatement) {
	for i, c := range n.Clauses {
		w.infer(c.Cond)
		kind := "if"
		if i > 0 {
			kind = "elseif"
		}
		w.block(c.Body, tag(kind, c))
	}
	if n.Else != nil {
		w.block(n.Else, tag("else", n.Else))
	}
}

func (w *walker) VisitWhile(n *ast.WhileStatement) {
	w.infer(n.Cond)
	w.pushFrame(frameLoop)
	w.block(n.Body, tag("while", n))
	w.popFrame(frameLoop)
}

// VisitRepeat walks the condition inside the body scope so it sees the
// body's locals.
func (w *walker) VisitRepeat(n *ast.RepeatStatement) {
	w.pushFrame(frameLoop)
	prev := w.fork(n, tag("repeat", n), false)
	w.stmts(n.Body)
	w.infer(n.Cond)
	w.restore(prev)
	w.popFrame(frameLoop)
}

func (w *walker) VisitNumericFor(n *ast.NumericForStatement) {
	w.infer(n.Start)
	w.infer(n.Limit)
	if n.Step != nil {
		w.infer(n.Step)
	}
	w.pushFrame(frameLoop)
	prev := w.fork(n, tag("for", n), false)
	v := w.declareLocal(n.Var, types.Number)
	w.attach(n.Var, types.Number)
	w.record(n.Var, n.Var.Name, types.Number, v)
	w.stmts(n.Body)
	w.restore(prev)
	w.popFrame(frameLoop)
}

// VisitGenericFor types the loop variables from the iterator function's
// return values. Iterator expressions are walked outside the loop scope.
func (w *walker) VisitGenericFor(n *ast.GenericForStatement) {
	values := types.Values(w.inferAll(n.Exprs))
	vars := types.Resolve(nil, len(n.Names))
	if len(values) > 0 {
		if fn, ok := values[0].(*types.Function); ok {
			vars = types.Resolve([]types.Type{fn.Return}, len(n.Names))
		}
	}
	w.pushFrame(frameLoop)
	prev := w.fork(n, tag("for", n), false)
	for i, id := range n.Names {
		v := w.declareLocal(id, vars[i])
		w.attach(id, vars[i])
		w.record(id, id.Name, vars[i], v)
	}
	w.stmts(n.Body)
	w.restore(prev)
	w.popFrame(frameLoop)
}

func (w *walker) VisitDo(n *ast.DoStatement) {
	w.block(n.Body, tag("do", n))
}

func (w *walker) VisitBreak(n *ast.BreakStatement) {
	if !w.inLoop() {
		w.report(CodeBreakOutside, SeverityError, rangeOf(n), "break outside a loop")
	}
}

func (w *walker) VisitGoto(n *ast.GotoStatement) {
	w.gotos = append(w.gotos, &pendingGoto{
		name: n.Label.Name,
		rng:  rangeOf(n),
		at:   w.chain.Current(),
	})
}

func (w *walker) VisitLabel(n *ast.LabelStatement) {
	rng := rangeOf(n.Name)
	if prev, dup := w.chain.Current().DeclareLabel(n.Name.Name, rng); dup {
		w.report(CodeDuplicateLabel, SeverityWarning, rng,
			"label '%s' already defined on line %d", n.Name.Name, prev.Start.Line+1)
	}
}

func (w *walker) VisitEmpty(*ast.EmptyStatement) {}
