package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/syntax"
	"github.com/jward/moonlens/internal/types"
)

func (w *walker) VisitNil(n *ast.NilLiteral)         { w.attach(n, types.Nil) }
func (w *walker) VisitBoolean(n *ast.BooleanLiteral) { w.attach(n, types.Boolean) }
func (w *walker) VisitNumber(n *ast.NumberLiteral)   { w.attach(n, types.Number) }
func (w *walker) VisitVararg(n *ast.VarargLiteral)   { w.attach(n, types.NewList()) } // arity unknown: no values

func (w *walker) VisitString(n *ast.StringLiteral) {
	if !n.Decoded {
		if s, err := syntax.Unquote(n.Raw); err == nil {
			w.strings[n] = s
		}
	}
	w.attach(n, types.String)
}

// VisitIdent resolves a read. An unknown name becomes a Nil global so later
// lookups of it still find a record.
func (w *walker) VisitIdent(n *ast.Ident) {
	rng := rangeOf(n)
	v, ok := w.chain.Lookup(n.Name)
	if ok {
		v = w.chain.Reference(n.Name, rng)
	} else {
		v = w.chain.DeclareIn(w.chain.Global(), n.Name, types.Nil, rng)
	}
	t := v.Type()
	w.attach(n, t)
	w.record(n, n.Name, t, v)
}

func (w *walker) VisitFunction(n *ast.FunctionExpr) {
	override, hasOverride := w.fnDocs[n].FunctionOverride()
	sym := w.fnSymbols[n]
	if sym != nil {
		w.enterSymbol(sym)
	}

	prev := w.fork(n, tag("function", n), true)
	f := w.pushFrame(frameFunction)

	var params []types.Param
	if self, ok := w.fnSelf[n]; ok {
		w.chain.Declare("self", self, rangeOf(n))
		params = append(params, types.Param{Name: "self", Type: self})
	}
	for _, p := range n.Params {
		pt := types.Type(types.Nil)
		if hasOverride {
			pt = paramType(override, p.Name)
		}
		v := w.declareLocal(p, pt)
		w.attach(p, pt)
		w.record(p, p.Name, pt, v)
		params = append(params, types.Param{Name: p.Name, Type: pt})
	}
	if n.Vararg {
		params = append(params, types.Param{Name: "...", Type: types.Nil})
	}

	w.stmts(n.Body)
	w.popFrame(frameFunction)
	w.restore(prev)
	if sym != nil {
		w.exitSymbol(sym)
	}

	var t types.Type = &types.Function{Params: params, Return: types.Join(f.returns...)}
	if hasOverride {
		t = override
	}
	w.attach(n, t)
}

// paramType matches a documented parameter by name.
func paramType(fn *types.Function, name string) types.Type {
	for _, p := range fn.Params {
		if p.Name == name {
			return types.OrNil(p.Type)
		}
	}
	return types.Nil
}

// VisitTable builds the table type field by field. A trailing positional
// field that yields several values fills successive sequence slots.
func (w *walker) VisitTable(n *ast.TableExpr) {
	tbl := types.NewTable()
	next := 1
	for i, f := range n.Fields {
		switch f.Kind {
		case ast.FieldPositional:
			vt := w.infer(f.Value)
			if l, ok := vt.(*types.List); ok && i == len(n.Fields)-1 {
				for _, e := range l.Elems {
					tbl.SetIndex(next, types.OrNil(e))
					next++
				}
				continue
			}
			tbl.SetIndex(next, types.First(vt))
			next++
		case ast.FieldNamed:
			vt := types.First(w.infer(f.Value))
			tbl.SetEntry(f.Name.Name, vt)
			w.record(f.Name, f.Name.Name, vt, nil)
		case ast.FieldComputed:
			kt := w.infer(f.Key)
			vt := types.First(w.infer(f.Value))
			w.setKey(tbl, f.Key, kt, vt)
		}
	}
	w.attach(n, tbl)
}

func (w *walker) VisitBinary(n *ast.BinaryExpr) {
	w.infer(n.Left)
	w.infer(n.Right)
	w.attach(n, types.BinaryResult(n.Op))
}

func (w *walker) VisitUnary(n *ast.UnaryExpr) {
	w.infer(n.Operand)
	w.attach(n, types.UnaryResult(n.Op))
}

func (w *walker) VisitLogical(n *ast.LogicalExpr) {
	left := types.First(w.infer(n.Left))
	right := types.First(w.infer(n.Right))
	w.attach(n, types.Logical(n.Op, left, right))
}

// VisitParen truncates to one value.
func (w *walker) VisitParen(n *ast.ParenExpr) {
	w.attach(n, types.First(w.infer(n.Inner)))
}

func (w *walker) VisitMember(n *ast.MemberExpr) {
	t := fieldType(w.infer(n.Base), n.Name.Name)
	w.attach(n, t)
	name, ok := targetName(n)
	if !ok {
		name = n.Name.Name
	}
	w.record(n.Name, name, t, nil)
}

func (w *walker) VisitIndex(n *ast.IndexExpr) {
	base := w.infer(n.Base)
	key := w.infer(n.Index)
	t := types.Type(types.Nil)
	if tbl, ok := types.First(base).(*types.Table); ok {
		t = w.getKey(tbl, n.Index, key)
	}
	w.attach(n, t)
}

func (w *walker) VisitCall(n *ast.CallExpr) {
	callee := w.infer(n.Callee)
	w.inferAll(n.Args)
	w.attach(n, returnOf(callee))
}

func (w *walker) VisitMethodCall(n *ast.MethodCallExpr) {
	method := fieldType(w.infer(n.Receiver), n.Method.Name)
	w.record(n.Method, n.Method.Name, method, nil)
	w.inferAll(n.Args)
	w.attach(n, returnOf(method))
}

func returnOf(callee types.Type) types.Type {
	if fn, ok := types.First(callee).(*types.Function); ok {
		return types.OrNil(fn.Return)
	}
	return types.Nil
}

// ============================================================================
// Table keys
// ============================================================================

type keyKind int

const (
	keyNone keyKind = iota
	keyString
	keyInteger
	keyBoolean
)

type literalKey struct {
	kind keyKind
	str  string
	num  int
	b    bool
}

// literal classifies a key expression that is a string, integral number or
// boolean literal.
func (w *walker) literal(e ast.Expr) literalKey {
	switch x := e.(type) {
	case *ast.StringLiteral:
		if x.Decoded {
			return literalKey{kind: keyString, str: x.Value}
		}
		if s, ok := w.strings[x]; ok {
			return literalKey{kind: keyString, str: s}
		}
	case *ast.NumberLiteral:
		if i, ok := integerValue(x.Raw); ok {
			return literalKey{kind: keyInteger, num: i}
		}
	case *ast.BooleanLiteral:
		return literalKey{kind: keyBoolean, b: x.Value}
	}
	return literalKey{}
}

func integerValue(raw string) (int, bool) {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "0x") && !strings.ContainsAny(lower, ".p") {
		u, err := strconv.ParseUint(lower[2:], 16, 64)
		return int(u), err == nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(i), true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// isKeyAtom reports whether t can key an index signature.
func isKeyAtom(t types.Type) bool {
	return types.Is(t, types.KindString) || types.Is(t, types.KindNumber) || types.Is(t, types.KindBoolean)
}

// setKey stores value under a computed key. It reports whether the table
// changed.
func (w *walker) setKey(tbl *types.Table, key ast.Expr, keyType, value types.Type) bool {
	switch lit := w.literal(key); lit.kind {
	case keyString:
		tbl.SetEntry(lit.str, value)
		return true
	case keyInteger:
		tbl.SetIndex(lit.num, value)
		return true
	case keyBoolean:
		tbl.SetBranch(lit.b, value)
		return true
	}
	kt := types.First(keyType)
	if !isKeyAtom(kt) {
		return false
	}
	tbl.SetTyped("key", kt, value)
	return true
}

// getKey looks a computed key up: the literal bucket first, then the index
// signature for the key's type.
func (w *walker) getKey(tbl *types.Table, key ast.Expr, keyType types.Type) types.Type {
	switch lit := w.literal(key); lit.kind {
	case keyString:
		if t, ok := tbl.Entry(lit.str); ok {
			return types.OrNil(t)
		}
	case keyInteger:
		if t, ok := tbl.Sequence[lit.num]; ok {
			return types.OrNil(t)
		}
	case keyBoolean:
		branch := tbl.False
		if lit.b {
			branch = tbl.True
		}
		if branch != nil {
			return branch
		}
	}
	kt := types.First(keyType)
	if !isKeyAtom(kt) {
		return types.Nil
	}
	if t, ok := tbl.TypedValue(kt); ok {
		return types.OrNil(t)
	}
	return types.Nil
}
