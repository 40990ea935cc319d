package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/position"
)

func mustParse(t *testing.T, src string) (*ast.Chunk, []ast.Comment) {
	t.Helper()
	chunk, comments, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	require.NotNil(t, chunk)
	return chunk, comments
}

// ============================================================================
// Unquote
// ============================================================================

func TestUnquote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single'`, "single"},
		{`"tab\there"`, "tab\there"},
		{`"q\"uote"`, `q"uote`},
		{`"\65\066\0677"`, "ABC7"},
		{`"\x41\x62"`, "Ab"},
		{`"\u{48}\u{20AC}"`, "H€"},
		{"\"a\\z   \n  b\"", "ab"},
		{"\"line\\\nnext\"", "line\nnext"},
		{`"back\\slash"`, `back\slash`},
		{"[[long]]", "long"},
		{"[[\nfirst newline dropped]]", "first newline dropped"},
		{"[==[has ]] inside]==]", "has ]] inside"},
		{`[[no \n escapes]]`, `no \n escapes`},
	}
	for _, tt := range tests {
		got, err := Unquote(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestUnquote_Errors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `"open`, `"bad \q"`, `"\x4"`, `"\256"`, `"\u{}"`, `[=[mismatch]]`, `plain`} {
		_, err := Unquote(raw)
		assert.ErrorIs(t, err, ErrBadString, raw)
	}
}

// ============================================================================
// Parse
// ============================================================================

func TestParse_LocalDeclaration(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local x, y = 1, 'two'\n")

	require.Len(t, chunk.Body.Stmts, 1)
	local, ok := chunk.Body.Stmts[0].(*ast.LocalStatement)
	require.True(t, ok, "got %T", chunk.Body.Stmts[0])
	require.Len(t, local.Names, 2)
	assert.Equal(t, "x", local.Names[0].Name)
	assert.Equal(t, "y", local.Names[1].Name)
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 6, EndLine: 1, EndCol: 7}, local.Names[0].Span())

	require.Len(t, local.Values, 2)
	num, ok := local.Values[0].(*ast.NumberLiteral)
	require.True(t, ok)
	assert.Equal(t, "1", num.Raw)
	str, ok := local.Values[1].(*ast.StringLiteral)
	require.True(t, ok)
	assert.Equal(t, "'two'", str.Raw)
	assert.False(t, str.Decoded)
}

func TestParse_LocalWithoutValues(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local a\n")
	local, ok := chunk.Body.Stmts[0].(*ast.LocalStatement)
	require.True(t, ok)
	require.Len(t, local.Names, 1)
	assert.Empty(t, local.Values)
}

func TestParse_Functions(t *testing.T) {
	t.Parallel()
	src := `local function add(a, b) return a + b end
function M.util:run(...) end
`
	chunk, _ := mustParse(t, src)
	require.Len(t, chunk.Body.Stmts, 2)

	add, ok := chunk.Body.Stmts[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.True(t, add.Local)
	assert.Equal(t, "add", add.Name.Base.Name)
	require.Len(t, add.Func.Params, 2)
	require.Len(t, add.Func.Body.Stmts, 1)
	ret, ok := add.Func.Body.Stmts[0].(*ast.ReturnStatement)
	require.True(t, ok)
	require.Len(t, ret.Values, 1)
	bin, ok := ret.Values[0].(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)

	run, ok := chunk.Body.Stmts[1].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.False(t, run.Local)
	assert.Equal(t, "M", run.Name.Base.Name)
	require.Len(t, run.Name.Fields, 1)
	assert.Equal(t, "util", run.Name.Fields[0].Name)
	require.NotNil(t, run.Name.Method)
	assert.Equal(t, "run", run.Name.Method.Name)
	assert.True(t, run.Func.Vararg)
}

func TestParse_LogicalAndCalls(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "x = a and b\nobj:go(1)\nprint 'hi'\n")
	require.Len(t, chunk.Body.Stmts, 3)

	assign, ok := chunk.Body.Stmts[0].(*ast.AssignStatement)
	require.True(t, ok)
	logical, ok := assign.Values[0].(*ast.LogicalExpr)
	require.True(t, ok)
	assert.Equal(t, "and", logical.Op)

	call, ok := chunk.Body.Stmts[1].(*ast.CallStatement)
	require.True(t, ok)
	method, ok := call.Call.(*ast.MethodCallExpr)
	require.True(t, ok)
	assert.Equal(t, "go", method.Method.Name)
	assert.Equal(t, ast.CallParen, method.Form)

	call, ok = chunk.Body.Stmts[2].(*ast.CallStatement)
	require.True(t, ok)
	plain, ok := call.Call.(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, ast.CallString, plain.Form)
}

func TestParse_TableFields(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local t = { 1, name = 'x', [2] = true }\n")
	local := chunk.Body.Stmts[0].(*ast.LocalStatement)
	tbl, ok := local.Values[0].(*ast.TableExpr)
	require.True(t, ok)
	require.Len(t, tbl.Fields, 3)
	assert.Equal(t, ast.FieldPositional, tbl.Fields[0].Kind)
	assert.Equal(t, ast.FieldNamed, tbl.Fields[1].Kind)
	assert.Equal(t, "name", tbl.Fields[1].Name.Name)
	assert.Equal(t, ast.FieldComputed, tbl.Fields[2].Kind)
}

func TestParse_ControlFlow(t *testing.T) {
	t.Parallel()
	src := `for i = 1, 10, 2 do end
for k, v in pairs(t) do end
while x do break end
repeat local y until y
if a then elseif b then else end
do goto done end
::done::
`
	chunk, _ := mustParse(t, src)
	require.Len(t, chunk.Body.Stmts, 7)

	numeric, ok := chunk.Body.Stmts[0].(*ast.NumericForStatement)
	require.True(t, ok)
	assert.Equal(t, "i", numeric.Var.Name)
	assert.NotNil(t, numeric.Step)

	generic, ok := chunk.Body.Stmts[1].(*ast.GenericForStatement)
	require.True(t, ok)
	require.Len(t, generic.Names, 2)
	require.Len(t, generic.Exprs, 1)

	_, ok = chunk.Body.Stmts[2].(*ast.WhileStatement)
	assert.True(t, ok)
	_, ok = chunk.Body.Stmts[3].(*ast.RepeatStatement)
	assert.True(t, ok)

	ifs, ok := chunk.Body.Stmts[4].(*ast.IfStatement)
	require.True(t, ok)
	assert.Len(t, ifs.Clauses, 2)
	assert.NotNil(t, ifs.Else)

	_, ok = chunk.Body.Stmts[5].(*ast.DoStatement)
	assert.True(t, ok)
	label, ok := chunk.Body.Stmts[6].(*ast.LabelStatement)
	require.True(t, ok)
	assert.Equal(t, "done", label.Name.Name)
}

func TestParse_BreakAnywhere(t *testing.T) {
	t.Parallel()
	src := `for i = 1, 2 do
  break
  local y = 2
end
break
`
	chunk, _ := mustParse(t, src)
	require.Len(t, chunk.Body.Stmts, 2)

	loop, ok := chunk.Body.Stmts[0].(*ast.NumericForStatement)
	require.True(t, ok)
	require.Len(t, loop.Body.Stmts, 2)
	brk, ok := loop.Body.Stmts[0].(*ast.BreakStatement)
	require.True(t, ok)
	assert.Equal(t, position.Span{StartLine: 2, StartCol: 2, EndLine: 2, EndCol: 7}, brk.Span())
	_, ok = loop.Body.Stmts[1].(*ast.LocalStatement)
	assert.True(t, ok)

	_, ok = chunk.Body.Stmts[1].(*ast.BreakStatement)
	assert.True(t, ok)
}

func TestParse_Comments(t *testing.T) {
	t.Parallel()
	src := "-- line\n--[[ block\ncomment ]]\n--[==[level]==]\nlocal x = 1\n"
	_, comments := mustParse(t, src)
	require.Len(t, comments, 3)

	assert.False(t, comments[0].Block)
	assert.Equal(t, "line", comments[0].Text)

	assert.True(t, comments[1].Block)
	assert.Equal(t, " block\ncomment ", comments[1].Text)
	assert.Equal(t, 2, comments[1].Span().StartLine)
	assert.Equal(t, 3, comments[1].Span().EndLine)

	assert.True(t, comments[2].Block)
	assert.Equal(t, "level", comments[2].Text)
}

func TestParse_SyntaxError(t *testing.T) {
	t.Parallel()
	_, _, err := Parse(context.Background(), []byte("local x = 1\nlocal = 2\n"))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Line)
	assert.NotEmpty(t, se.Message)
}

func TestParse_StatementShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want any
	}{
		{"local x = 1", &ast.LocalStatement{}},
		{"x = 1", &ast.AssignStatement{}},
		{"y = 1 + 2", &ast.AssignStatement{}},
		{"function f() return 1 end", &ast.FunctionDecl{}},
		{"print(t.k)", &ast.CallStatement{}},
		{"for i = 1, 3 do end", &ast.NumericForStatement{}},
	}
	for _, tt := range tests {
		chunk, _ := mustParse(t, tt.src)
		require.Len(t, chunk.Body.Stmts, 1, tt.src)
		assert.IsType(t, tt.want, chunk.Body.Stmts[0], tt.src)
	}
}

func TestParse_SpansSkipLeadingWhitespace(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local a = 1\n\n  b = a\n")
	require.Len(t, chunk.Body.Stmts, 2)

	assign := chunk.Body.Stmts[1].(*ast.AssignStatement)
	assert.Equal(t, position.Span{StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 7}, assign.Span())
	target := assign.Targets[0].(*ast.Ident)
	assert.Equal(t, "b", target.Name)
	assert.Equal(t, position.Span{StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 3}, target.Span())
}

func TestParse_MemberAndCallArguments(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "print(t.k, u[1])\n")
	call := chunk.Body.Stmts[0].(*ast.CallStatement).Call.(*ast.CallExpr)
	assert.Equal(t, "print", call.Callee.(*ast.Ident).Name)
	require.Len(t, call.Args, 2)

	member, ok := call.Args[0].(*ast.MemberExpr)
	require.True(t, ok, "got %T", call.Args[0])
	assert.Equal(t, "t", member.Base.(*ast.Ident).Name)
	assert.Equal(t, "k", member.Name.Name)

	index, ok := call.Args[1].(*ast.IndexExpr)
	require.True(t, ok, "got %T", call.Args[1])
	assert.Equal(t, "1", index.Index.(*ast.NumberLiteral).Raw)
}

func TestParse_ChainedCalls(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "a.b:m(1).c()\n")
	outer := chunk.Body.Stmts[0].(*ast.CallStatement).Call.(*ast.CallExpr)
	member, ok := outer.Callee.(*ast.MemberExpr)
	require.True(t, ok, "got %T", outer.Callee)
	assert.Equal(t, "c", member.Name.Name)

	inner, ok := member.Base.(*ast.MethodCallExpr)
	require.True(t, ok, "got %T", member.Base)
	assert.Equal(t, "m", inner.Method.Name)
	require.Len(t, inner.Args, 1)
	recv := inner.Receiver.(*ast.MemberExpr)
	assert.Equal(t, "a", recv.Base.(*ast.Ident).Name)
	assert.Equal(t, "b", recv.Name.Name)
}

func TestParse_ParenthesizedCallee(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, `local s = ("x"):rep(2)`)
	local := chunk.Body.Stmts[0].(*ast.LocalStatement)
	call, ok := local.Values[0].(*ast.MethodCallExpr)
	require.True(t, ok, "got %T", local.Values[0])
	paren, ok := call.Receiver.(*ast.ParenExpr)
	require.True(t, ok)
	assert.Equal(t, `"x"`, paren.Inner.(*ast.StringLiteral).Raw)
}

func TestParse_OperatorPrecedence(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "x = not a == b or c and d\ny = -n ^ 2\nz = p .. q .. r\nw = 1 + 2 * 3\n")
	value := func(i int) ast.Expr { return chunk.Body.Stmts[i].(*ast.AssignStatement).Values[0] }

	or, ok := value(0).(*ast.LogicalExpr)
	require.True(t, ok, "got %T", value(0))
	assert.Equal(t, "or", or.Op)
	eq := or.Left.(*ast.BinaryExpr)
	assert.Equal(t, "==", eq.Op)
	assert.Equal(t, "not", eq.Left.(*ast.UnaryExpr).Op)
	assert.Equal(t, "and", or.Right.(*ast.LogicalExpr).Op)

	neg, ok := value(1).(*ast.UnaryExpr)
	require.True(t, ok, "got %T", value(1))
	assert.Equal(t, "-", neg.Op)
	assert.Equal(t, "^", neg.Operand.(*ast.BinaryExpr).Op)

	concat := value(2).(*ast.BinaryExpr)
	assert.Equal(t, "p", concat.Left.(*ast.Ident).Name)
	assert.Equal(t, "..", concat.Right.(*ast.BinaryExpr).Op)

	sum := value(3).(*ast.BinaryExpr)
	assert.Equal(t, "+", sum.Op)
	assert.Equal(t, "*", sum.Right.(*ast.BinaryExpr).Op)
	assert.Equal(t, position.Span{StartLine: 4, StartCol: 4, EndLine: 4, EndCol: 13}, sum.Span())
}

func TestParse_CompoundAssignment(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "x += 1\ns ..= \"t\"\nn //= 2\n")
	require.Len(t, chunk.Body.Stmts, 3)

	for i, op := range []string{"+=", "..=", "//="} {
		s, ok := chunk.Body.Stmts[i].(*ast.CompoundAssignStatement)
		require.True(t, ok, "got %T", chunk.Body.Stmts[i])
		assert.Equal(t, op, s.Op)
		require.Len(t, s.Targets, 1)
		require.Len(t, s.Values, 1)
	}
	first := chunk.Body.Stmts[0].(*ast.CompoundAssignStatement)
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 6}, first.Span())
}

func TestParse_NotEqualSpelling(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "ok = a != b\n")
	cmp, ok := chunk.Body.Stmts[0].(*ast.AssignStatement).Values[0].(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "~=", cmp.Op)
}

func TestParse_LocalAttribs(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local a <const>, b, c <close> = 1, 2, 3\n")
	local := chunk.Body.Stmts[0].(*ast.LocalStatement)
	require.Len(t, local.Names, 3)
	assert.Equal(t, []string{"const", "", "close"}, local.Attribs)
	assert.Equal(t, "c", local.Names[2].Name)
	require.Len(t, local.Values, 3)
}

func TestParse_GotoInsideNestedBlocks(t *testing.T) {
	t.Parallel()
	src := `for i = 1, 3 do
  if i == 2 then goto continue end
  ::continue::
end
`
	chunk, _ := mustParse(t, src)
	loop := chunk.Body.Stmts[0].(*ast.NumericForStatement)
	require.Len(t, loop.Body.Stmts, 2)

	ifs := loop.Body.Stmts[0].(*ast.IfStatement)
	require.Len(t, ifs.Clauses[0].Body.Stmts, 1)
	jump, ok := ifs.Clauses[0].Body.Stmts[0].(*ast.GotoStatement)
	require.True(t, ok)
	assert.Equal(t, "continue", jump.Label.Name)
	assert.Equal(t, position.Span{StartLine: 2, StartCol: 17, EndLine: 2, EndCol: 30}, jump.Span())

	label, ok := loop.Body.Stmts[1].(*ast.LabelStatement)
	require.True(t, ok)
	assert.Equal(t, position.Span{StartLine: 3, StartCol: 4, EndLine: 3, EndCol: 12}, label.Name.Span())
}

func TestParse_SemicolonBeforeEnd(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local function g() return f(); end\nlocal t = {1; 2}\n")
	require.Len(t, chunk.Body.Stmts, 2)
	g := chunk.Body.Stmts[0].(*ast.FunctionDecl)
	require.Len(t, g.Func.Body.Stmts, 1)
	t2 := chunk.Body.Stmts[1].(*ast.LocalStatement).Values[0].(*ast.TableExpr)
	assert.Len(t, t2.Fields, 2)
}

func TestParse_TripleDashComments(t *testing.T) {
	t.Parallel()
	chunk, comments := mustParse(t, "--- doc\nif a then end\n----------\n")
	require.Len(t, chunk.Body.Stmts, 1)
	assert.IsType(t, &ast.IfStatement{}, chunk.Body.Stmts[0])
	require.Len(t, comments, 2)
	assert.Equal(t, "--- doc", comments[0].Raw)
	assert.Equal(t, "----------", comments[1].Raw)
}

func TestParse_AnonymousFunctionAndVararg(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "local f = function(a, ...) return ... end\n")
	fn, ok := chunk.Body.Stmts[0].(*ast.LocalStatement).Values[0].(*ast.FunctionExpr)
	require.True(t, ok)
	require.Len(t, fn.Params, 1)
	assert.True(t, fn.Vararg)
	ret := fn.Body.Stmts[0].(*ast.ReturnStatement)
	assert.IsType(t, &ast.VarargLiteral{}, ret.Values[0])
}

func TestParse_BlockSpans(t *testing.T) {
	t.Parallel()
	chunk, _ := mustParse(t, "do\n  local x\nend\n")
	do := chunk.Body.Stmts[0].(*ast.DoStatement)
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 2, EndLine: 3, EndCol: 0}, do.Body.Span())
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 0, EndLine: 4, EndCol: 0}, chunk.Span())
}

func TestParse_MissingNameIsAnError(t *testing.T) {
	t.Parallel()
	for _, src := range []string{"local = 2\n", "local function g() return f(); end end\n", "x\n"} {
		_, _, err := Parse(context.Background(), []byte(src))
		var se *Error
		assert.ErrorAs(t, err, &se, src)
	}
}

func TestParseTree_UsesRewrittenSource(t *testing.T) {
	t.Parallel()
	src := []byte("x += 1\n")
	tree, err := ParseTree(context.Background(), src)
	require.NoError(t, err)
	root := tree.RootNode()
	assert.Equal(t, "program", root.Type())
	assert.False(t, root.HasError())
	decl := root.NamedChild(0)
	assert.Equal(t, "variable_declaration", decl.Type())
	assert.Equal(t, "x += 1", NodeText(decl, src))
}
