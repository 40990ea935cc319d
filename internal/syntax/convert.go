package syntax

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/position"
)

// converter turns a tree-sitter Lua tree into ast nodes. The grammar keeps
// most structure flat: statement bodies are siblings of their keywords and
// expressions are token runs, so blocks and expressions are rebuilt here.
// The first unsupported node it meets is kept in err and conversion carries
// on with placeholders so the caller only has to check once.
type converter struct {
	d    *dialect
	src  []byte // the rewritten source the tree was built from
	jump int    // next entry of d.jumps to place
	err  error
}

// item is a child node together with its field name.
type item struct {
	node  *sitter.Node
	field string
}

func (it item) is(typ string) bool { return it.node.Type() == typ }

func (c *converter) fail(n *sitter.Node, format string, args ...any) {
	if c.err != nil {
		return
	}
	line, col := c.d.point(c.start(n))
	c.err = &Error{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// start is the offset where n's own text begins. The grammar attaches the
// whitespace before a token to the token itself, so leading whitespace and
// comments are skipped.
func (c *converter) start(n *sitter.Node) int {
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch == nil || ch.Type() == "comment" || ch.Type() == "emmy_documentation" {
			continue
		}
		return c.start(ch)
	}
	i, end := int(n.StartByte()), int(n.EndByte())
	for i < end && isSpace(c.src[i]) {
		i++
	}
	return i
}

func (c *converter) end(n *sitter.Node) int { return int(n.EndByte()) }

func (c *converter) span(n *sitter.Node) position.Span { return c.d.span(c.start(n), c.end(n)) }

func (c *converter) loc(n *sitter.Node) ast.Loc { return ast.Loc{Pos: c.span(n)} }

func (c *converter) text(n *sitter.Node) string { return string(c.src[c.start(n):c.end(n)]) }

// items returns the children of n with their field names, comments and
// whitespace tokens excluded.
func (c *converter) items(n *sitter.Node) []item {
	if n == nil {
		return nil
	}
	out := make([]item, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch == nil {
			continue
		}
		switch ch.Type() {
		case "comment", "emmy_documentation", "shebang":
			continue
		}
		if !ch.IsNamed() && c.start(ch) == c.end(ch) && !ch.IsMissing() {
			continue
		}
		out = append(out, item{node: ch, field: n.FieldNameForChild(i)})
	}
	return out
}

// field returns the items labelled with name, in order.
func field(its []item, name string) []item {
	var out []item
	for _, it := range its {
		if it.field == name {
			out = append(out, it)
		}
	}
	return out
}

// find returns the index of the first item of the given type, or -1.
func find(its []item, typ string) int {
	for i, it := range its {
		if it.is(typ) {
			return i
		}
	}
	return -1
}

func join(a, b position.Span) position.Span {
	return position.Span{StartLine: a.StartLine, StartCol: a.StartCol, EndLine: b.EndLine, EndCol: b.EndCol}
}

// ============================================================================
// Blocks
// ============================================================================

// separators are the keyword tokens that delimit the flattened parts of a
// compound statement.
var separators = map[string]bool{
	"if_start": true, "if_then": true, "if_elseif": true, "if_else": true, "if_end": true,
	"while_start": true, "while_do": true, "while_end": true,
	"repeat_start": true, "repeat_until": true,
	"do_start": true, "do_end": true,
	"for_start": true, "for_do": true, "for_end": true,
}

// section is a separator token and the items up to the next one.
type section struct {
	sep  item
	body []item
}

func sections(its []item) []section {
	var out []section
	for _, it := range its {
		if separators[it.node.Type()] {
			out = append(out, section{sep: it})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].body = append(out[len(out)-1].body, it)
		}
	}
	return out
}

// block converts the statements in its, which sit between the offsets from
// and to. Goto and label statements removed before parsing are put back in
// source order.
func (c *converter) block(its []item, from, to int) *ast.Block {
	b := &ast.Block{Loc: ast.Loc{Pos: c.d.span(from, to)}}
	for _, it := range its {
		c.placeJumps(b, c.start(it.node))
		if s := c.stmt(it.node); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	c.placeJumps(b, to)
	return b
}

func (c *converter) placeJumps(b *ast.Block, before int) {
	for c.jump < len(c.d.jumps) && c.d.jumps[c.jump].offset < before {
		j := c.d.jumps[c.jump]
		c.jump++
		loc := ast.Loc{Pos: j.stmt}
		name := &ast.Ident{Loc: ast.Loc{Pos: j.nameAt}, Name: j.name}
		switch j.kind {
		case jumpLabel:
			b.Stmts = append(b.Stmts, &ast.LabelStatement{Loc: loc, Name: name})
		case jumpGoto:
			b.Stmts = append(b.Stmts, &ast.GotoStatement{Loc: loc, Label: name})
		case jumpBreak:
			b.Stmts = append(b.Stmts, &ast.BreakStatement{Loc: loc})
		}
	}
}

// between converts a section body that runs from the end of its separator
// to the start of the next one.
func (c *converter) between(s section, next item) *ast.Block {
	return c.block(s.body, c.end(s.sep.node), c.start(next.node))
}

// ============================================================================
// Statements
// ============================================================================

func (c *converter) stmt(n *sitter.Node) ast.Stmt {
	loc := c.loc(n)
	switch n.Type() {
	case ";":
		return &ast.EmptyStatement{Loc: loc}
	case "variable_declaration":
		return c.declaration(n)
	case "function_call":
		return &ast.CallStatement{Loc: loc, Call: c.call(n)}
	case "function_statement":
		return c.functionDecl(n)
	case "return_statement", "module_return_statement":
		its := c.items(n)
		if len(its) > 0 && its[0].is("return") {
			its = its[1:]
		}
		return &ast.ReturnStatement{Loc: loc, Values: c.exprList(its)}
	case "do_statement", "while_statement", "repeat_statement", "if_statement", "for_statement":
		return c.compound(n)
	}
	c.fail(n, "unsupported statement %s", n.Type())
	return &ast.EmptyStatement{Loc: loc}
}

// declaration handles locals, assignments and operator assignments, which
// the grammar all reads as a variable declaration.
func (c *converter) declaration(n *sitter.Node) ast.Stmt {
	loc := c.loc(n)
	its := c.items(n)
	names := field(its, "name")
	// The commas between values carry no field name, so the values are
	// everything after the `=`.
	var values []item
	eq := find(its, "=")
	if eq >= 0 {
		values = its[eq+1:]
	}

	if len(its) > 0 && its[0].is("local") {
		s := &ast.LocalStatement{Loc: loc}
		for _, decl := range names {
			parts := c.items(decl.node)
			if len(parts) != 1 || !parts[0].is("identifier") {
				c.fail(decl.node, "local declaration needs a plain name")
				continue
			}
			id := c.ident(parts[0].node)
			s.Names = append(s.Names, id)
			s.Attribs = append(s.Attribs, c.d.attribs[c.start(parts[0].node)])
		}
		s.Values = c.exprList(values)
		return s
	}

	var targets []ast.Expr
	for _, decl := range names {
		targets = append(targets, c.expr(c.items(decl.node)))
	}
	op := ""
	if eq >= 0 {
		op = c.d.compound[c.start(its[eq].node)]
	}
	vals := c.exprList(values)
	if op != "" {
		return &ast.CompoundAssignStatement{Loc: loc, Op: op, Targets: targets, Values: vals}
	}
	if len(vals) == 0 {
		c.fail(n, "assignment without a value")
	}
	return &ast.AssignStatement{Loc: loc, Targets: targets, Values: vals}
}

// ident converts an identifier. The grammar recovers from a missing name
// with an empty or keyword identifier and no error, so that is reported here.
func (c *converter) ident(n *sitter.Node) *ast.Ident {
	name := c.text(n)
	switch {
	case name == "":
		c.fail(n, "expected a name")
	case keywords[name]:
		c.fail(n, "unexpected %q", name)
	}
	return &ast.Ident{Loc: c.loc(n), Name: name}
}

func (c *converter) functionDecl(n *sitter.Node) ast.Stmt {
	its := c.items(n)
	d := &ast.FunctionDecl{Loc: c.loc(n)}
	d.Local = len(its) > 0 && its[0].is("local")
	if name := field(its, "name"); len(name) == 1 {
		d.Name = c.funcName(name[0].node)
	} else {
		c.fail(n, "function declaration without a name")
		d.Name = &ast.FuncName{Loc: d.Loc, Base: &ast.Ident{Loc: d.Loc}}
	}
	d.Func = c.function(n, its)
	return d
}

// funcName splits `a.b.c` and `a.b:m` into a base name, a field path and
// an optional method.
func (c *converter) funcName(n *sitter.Node) *ast.FuncName {
	fn := &ast.FuncName{Loc: c.loc(n)}
	if n.Type() == "identifier" {
		fn.Base = c.ident(n)
		return fn
	}
	method := false
	for _, it := range c.items(n) {
		switch it.node.Type() {
		case "table_dot":
		case "table_colon":
			method = true
		case "identifier":
			id := c.ident(it.node)
			switch {
			case fn.Base == nil:
				fn.Base = id
			case method:
				fn.Method = id
			default:
				fn.Fields = append(fn.Fields, id)
			}
		default:
			c.fail(it.node, "unexpected %s in function name", it.node.Type())
		}
	}
	if fn.Base == nil {
		c.fail(n, "function name without a base")
		fn.Base = &ast.Ident{Loc: fn.Loc}
	}
	return fn
}

// function converts the parameter list and body of a function statement or
// expression whose children are its.
func (c *converter) function(n *sitter.Node, its []item) *ast.FunctionExpr {
	f := &ast.FunctionExpr{Loc: c.loc(n)}
	if i := find(its, "parameter_list"); i >= 0 {
		for _, p := range c.items(its[i].node) {
			switch p.node.Type() {
			case "identifier":
				f.Params = append(f.Params, c.ident(p.node))
			case "ellipsis":
				f.Vararg = true
			}
		}
	}
	from := c.end(n)
	for _, it := range its {
		if it.is("function_body_paren") {
			from = c.end(it.node)
		}
	}
	to := c.end(n)
	if i := find(its, "function_end"); i >= 0 {
		to = c.start(its[i].node)
	}
	var body []item
	if i := find(its, "function_body"); i >= 0 {
		body = c.items(its[i].node)
	}
	f.Body = c.block(body, from, to)
	return f
}

// compound converts the statements built from separator keywords.
func (c *converter) compound(n *sitter.Node) ast.Stmt {
	loc := c.loc(n)
	secs := sections(c.items(n))
	kind := func(i int) string {
		if i < len(secs) {
			return secs[i].sep.node.Type()
		}
		return ""
	}
	// Each statement has a fixed separator sequence; a mismatch means the
	// grammar produced something unexpected.
	bad := func() ast.Stmt {
		c.fail(n, "malformed %s", n.Type())
		return &ast.EmptyStatement{Loc: loc}
	}
	switch n.Type() {
	case "do_statement":
		if kind(0) != "do_start" || kind(1) != "do_end" {
			return bad()
		}
		return &ast.DoStatement{Loc: loc, Body: c.between(secs[0], secs[1].sep)}
	case "while_statement":
		if kind(0) != "while_start" || kind(1) != "while_do" || kind(2) != "while_end" {
			return bad()
		}
		cond := c.expr(secs[0].body)
		return &ast.WhileStatement{Loc: loc, Cond: cond, Body: c.between(secs[1], secs[2].sep)}
	case "repeat_statement":
		if kind(0) != "repeat_start" || kind(1) != "repeat_until" {
			return bad()
		}
		body := c.between(secs[0], secs[1].sep)
		return &ast.RepeatStatement{Loc: loc, Body: body, Cond: c.expr(secs[1].body)}
	case "for_statement":
		if kind(0) != "for_start" || kind(1) != "for_do" || kind(2) != "for_end" || len(secs[0].body) != 1 {
			return bad()
		}
		return c.forStatement(loc, secs[0].body[0].node, func() *ast.Block { return c.between(secs[1], secs[2].sep) })
	}
	return c.ifStatement(n, secs, bad)
}

func (c *converter) ifStatement(n *sitter.Node, secs []section, bad func() ast.Stmt) ast.Stmt {
	s := &ast.IfStatement{Loc: c.loc(n)}
	i := 0
	for i+2 < len(secs) {
		head := secs[i].sep.node.Type()
		if (head != "if_start" && head != "if_elseif") || secs[i+1].sep.node.Type() != "if_then" {
			break
		}
		if (head == "if_start") != (i == 0) {
			return bad()
		}
		clause := &ast.IfClause{
			Loc:  ast.Loc{Pos: c.d.span(c.start(secs[i].sep.node), c.start(secs[i+2].sep.node))},
			Cond: c.expr(secs[i].body),
		}
		clause.Body = c.between(secs[i+1], secs[i+2].sep)
		s.Clauses = append(s.Clauses, clause)
		i += 2
	}
	if len(s.Clauses) == 0 || i >= len(secs) {
		return bad()
	}
	if secs[i].sep.is("if_else") {
		if i+1 >= len(secs) {
			return bad()
		}
		s.Else = c.between(secs[i], secs[i+1].sep)
		i++
	}
	if !secs[i].sep.is("if_end") || i != len(secs)-1 {
		return bad()
	}
	return s
}

// forStatement converts a for_numeric or for_generic clause. body is called
// after the clause so conversion stays in source order.
func (c *converter) forStatement(loc ast.Loc, clause *sitter.Node, body func() *ast.Block) ast.Stmt {
	its := c.items(clause)
	if clause.Type() == "for_numeric" {
		s := &ast.NumericForStatement{Loc: loc}
		if v := field(its, "var"); len(v) == 1 {
			s.Var = c.ident(v[0].node)
		} else {
			c.fail(clause, "numeric for without a variable")
			s.Var = &ast.Ident{Loc: loc}
		}
		s.Start = c.expr(field(its, "start"))
		s.Limit = c.expr(field(its, "finish"))
		if step := field(its, "step"); len(step) > 0 {
			s.Step = c.expr(step)
		}
		s.Body = body()
		return s
	}
	if clause.Type() != "for_generic" {
		c.fail(clause, "unsupported for clause %s", clause.Type())
		return &ast.DoStatement{Loc: loc, Body: body()}
	}
	s := &ast.GenericForStatement{Loc: loc}
	if i := find(its, "identifier_list"); i >= 0 {
		for _, id := range c.items(its[i].node) {
			if id.is("identifier") {
				s.Names = append(s.Names, c.ident(id.node))
			}
		}
	}
	s.Exprs = c.exprList(field(its, "expression_list"))
	s.Body = body()
	return s
}
