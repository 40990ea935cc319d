package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/moonlens/internal/ast"
)

// Expressions arrive as runs of items: binary and unary operation nodes
// whose operands are themselves runs, with suffixes such as `.name` and
// `[key]` left as loose tokens. The grammar's operator precedence does not
// match Lua's, so every operation is flattened into operands and operators
// and rebuilt with Lua's priorities.

// priority holds the left and right binding power of each binary operator.
var priority = map[string]struct{ left, right int }{
	"or": {1, 1}, "and": {2, 2},
	"<": {3, 3}, ">": {3, 3}, "<=": {3, 3}, ">=": {3, 3}, "~=": {3, 3}, "==": {3, 3},
	"|": {4, 4}, "~": {5, 5}, "&": {6, 6}, "<<": {7, 7}, ">>": {7, 7},
	"..": {9, 8}, // right associative
	"+":  {10, 10}, "-": {10, 10},
	"*": {11, 11}, "/": {11, 11}, "//": {11, 11}, "%": {11, 11},
	"^": {14, 13}, // right associative, binds tighter than unary operators
}

const unaryPriority = 12

// elem is one piece of a flattened operation: an operand run or an operator.
type elem struct {
	operand []item
	op      string
	unary   bool
	at      *sitter.Node
}

func (e elem) isOperand() bool { return e.op == "" }

// exprList converts a comma separated run into expressions.
func (c *converter) exprList(its []item) []ast.Expr {
	var out []ast.Expr
	depth := 0
	from := 0
	for i, it := range its {
		switch it.node.Type() {
		case "[", "left_paren":
			depth++
		case "]", "right_paren":
			depth--
		case ",":
			if depth == 0 {
				out = append(out, c.expr(its[from:i]))
				from = i + 1
			}
		}
	}
	if from < len(its) {
		out = append(out, c.expr(its[from:]))
	}
	return out
}

// expr converts a run holding exactly one expression.
func (c *converter) expr(its []item) ast.Expr {
	if len(its) == 0 {
		return &ast.NilLiteral{}
	}
	var elems []elem
	c.flatten(its, &elems)
	p := &exprParser{c: c, elems: elems}
	e := p.sub(0)
	if p.i < len(p.elems) {
		c.fail(p.node(), "unexpected %s in expression", p.node().Type())
	}
	return e
}

// flatten appends the operands and operators of its to out, opening up
// nested operation nodes that are not inside brackets or parentheses.
func (c *converter) flatten(its []item, out *[]elem) {
	var run []item
	flush := func() {
		if len(run) > 0 {
			*out = append(*out, elem{operand: run})
			run = nil
		}
	}
	depth := 0
	for _, it := range its {
		typ := it.node.Type()
		if depth == 0 {
			switch {
			case typ == "binary_operation":
				flush()
				c.flatten(c.items(it.node), out)
				continue
			case typ == "unary_operation":
				flush()
				kids := c.items(it.node)
				if len(kids) == 0 {
					c.fail(it.node, "empty unary operation")
					continue
				}
				*out = append(*out, elem{op: kids[0].node.Type(), unary: true, at: kids[0].node})
				c.flatten(kids[1:], out)
				continue
			case !it.node.IsNamed() && priority[typ].left > 0:
				flush()
				*out = append(*out, elem{op: typ, at: it.node})
				continue
			}
		}
		switch typ {
		case "[", "left_paren":
			depth++
		case "]", "right_paren":
			depth--
		}
		run = append(run, it)
	}
	flush()
}

type exprParser struct {
	c     *converter
	elems []elem
	i     int
}

func (p *exprParser) node() *sitter.Node {
	e := p.elems[min(p.i, len(p.elems)-1)]
	if e.at != nil {
		return e.at
	}
	return e.operand[0].node
}

// sub parses operators binding tighter than limit, the way Lua's own
// parser does.
func (p *exprParser) sub(limit int) ast.Expr {
	if p.i >= len(p.elems) {
		if len(p.elems) > 0 {
			p.c.fail(p.node(), "expression ends early")
		}
		return &ast.NilLiteral{}
	}
	var left ast.Expr
	e := p.elems[p.i]
	p.i++
	switch {
	case e.unary:
		operand := p.sub(unaryPriority)
		left = &ast.UnaryExpr{Loc: ast.Loc{Pos: join(p.c.span(e.at), operand.Span())}, Op: e.op, Operand: operand}
	case e.isOperand():
		left = p.c.postfix(e.operand)
	default:
		p.c.fail(e.at, "unexpected operator %s", e.op)
		return &ast.NilLiteral{Loc: p.c.loc(e.at)}
	}
	for p.i < len(p.elems) {
		e := p.elems[p.i]
		prio, ok := priority[e.op]
		if e.unary || e.isOperand() || !ok || prio.left <= limit {
			break
		}
		p.i++
		right := p.sub(prio.right)
		loc := ast.Loc{Pos: join(left.Span(), right.Span())}
		if e.op == "and" || e.op == "or" {
			left = &ast.LogicalExpr{Loc: loc, Op: e.op, Left: left, Right: right}
		} else {
			left = &ast.BinaryExpr{Loc: loc, Op: e.op, Left: left, Right: right}
		}
	}
	return left
}

// closing returns the index of the bracket or parenthesis closing its[i].
func closing(its []item, i int) int {
	depth := 0
	for j := i; j < len(its); j++ {
		switch its[j].node.Type() {
		case "[", "left_paren":
			depth++
		case "]", "right_paren":
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// postfix converts a primary expression followed by `.name` and `[key]`
// suffixes.
func (c *converter) postfix(its []item) ast.Expr {
	var e ast.Expr
	i := 0
	first := its[0].node
	if first.Type() == "left_paren" {
		j := closing(its, 0)
		if j < 0 {
			c.fail(first, "unclosed parenthesis")
			return &ast.NilLiteral{Loc: c.loc(first)}
		}
		e = &ast.ParenExpr{Loc: ast.Loc{Pos: c.d.span(c.start(first), c.end(its[j].node))}, Inner: c.expr(its[1:j])}
		i = j + 1
	} else {
		e = c.primary(first)
		i = 1
	}
	for i < len(its) {
		n := its[i].node
		switch n.Type() {
		case ".":
			if i+1 >= len(its) || !its[i+1].is("identifier") {
				c.fail(n, "expected a field name")
				return e
			}
			name := c.ident(its[i+1].node)
			e = &ast.MemberExpr{Loc: ast.Loc{Pos: join(e.Span(), name.Span())}, Base: e, Name: name}
			i += 2
		case "[":
			j := closing(its, i)
			if j < 0 {
				c.fail(n, "unclosed bracket")
				return e
			}
			key := c.expr(its[i+1 : j])
			e = &ast.IndexExpr{Loc: ast.Loc{Pos: join(e.Span(), c.span(its[j].node))}, Base: e, Index: key}
			i = j + 1
		default:
			c.fail(n, "unexpected %s after expression", n.Type())
			return e
		}
	}
	return e
}

func (c *converter) primary(n *sitter.Node) ast.Expr {
	loc := c.loc(n)
	switch n.Type() {
	case "nil":
		return &ast.NilLiteral{Loc: loc}
	case "boolean":
		return &ast.BooleanLiteral{Loc: loc, Value: c.text(n) == "true"}
	case "number":
		return &ast.NumberLiteral{Loc: loc, Raw: c.text(n)}
	case "string":
		return &ast.StringLiteral{Loc: loc, Raw: c.text(n)}
	case "ellipsis":
		return &ast.VarargLiteral{Loc: loc}
	case "identifier":
		return c.ident(n)
	case "function":
		return c.function(n, c.items(n))
	case "tableconstructor":
		return c.table(n)
	case "function_call":
		return c.call(n)
	case "binary_operation", "unary_operation":
		return c.expr([]item{{node: n}})
	}
	c.fail(n, "unsupported expression %s", n.Type())
	return &ast.NilLiteral{Loc: loc}
}

// table converts a table constructor or table call argument.
func (c *converter) table(n *sitter.Node) *ast.TableExpr {
	t := &ast.TableExpr{Loc: c.loc(n)}
	its := c.items(n)
	i := find(its, "fieldlist")
	if i < 0 {
		return t
	}
	for _, f := range c.items(its[i].node) {
		if !f.is("field") {
			continue
		}
		parts := c.items(f.node)
		entry := &ast.Field{Loc: c.loc(f.node), Value: c.expr(field(parts, "value"))}
		name := field(parts, "name")
		switch {
		case find(parts, "field_left_bracket") >= 0:
			entry.Kind = ast.FieldComputed
			entry.Key = c.expr(field(parts, "key"))
		case len(name) == 1:
			entry.Kind = ast.FieldNamed
			entry.Name = c.ident(name[0].node)
		default:
			entry.Kind = ast.FieldPositional
		}
		t.Fields = append(t.Fields, entry)
	}
	return t
}

// call converts a function_call node. Everything before the method colon or
// the arguments is the callee.
func (c *converter) call(n *sitter.Node) ast.Expr {
	loc := c.loc(n)
	its := c.items(n)
	k := len(its)
	for i, it := range its {
		if it.is("self_call_colon") || it.is("function_call_paren") || it.field == "args" {
			k = i
			break
		}
	}
	if k == 0 {
		c.fail(n, "call without a callee")
		return &ast.CallExpr{Loc: loc, Callee: &ast.NilLiteral{Loc: loc}}
	}
	callee := c.postfix(its[:k])
	rest := its[k:]

	var method *ast.Ident
	if len(rest) > 0 && rest[0].is("self_call_colon") {
		if len(rest) < 2 || !rest[1].is("identifier") {
			c.fail(rest[0].node, "expected a method name")
			return &ast.CallExpr{Loc: loc, Callee: callee}
		}
		method = c.ident(rest[1].node)
		rest = rest[2:]
	}
	args, form := c.arguments(rest)
	if method != nil {
		return &ast.MethodCallExpr{Loc: loc, Receiver: callee, Method: method, Args: args, Form: form}
	}
	return &ast.CallExpr{Loc: loc, Callee: callee, Args: args, Form: form}
}

func (c *converter) arguments(its []item) ([]ast.Expr, ast.CallForm) {
	for _, it := range its {
		if it.field != "args" {
			continue
		}
		switch it.node.Type() {
		case "function_arguments":
			return c.exprList(c.items(it.node)), ast.CallParen
		case "table_argument":
			return []ast.Expr{c.table(it.node)}, ast.CallTable
		case "string_argument":
			return []ast.Expr{&ast.StringLiteral{Loc: c.loc(it.node), Raw: c.text(it.node)}}, ast.CallString
		}
		c.fail(it.node, "unsupported call arguments %s", it.node.Type())
	}
	return nil, ast.CallParen
}
