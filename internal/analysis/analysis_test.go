package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/scope"
	"github.com/jward/moonlens/internal/types"
)

func analyze(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	res, err := AnalyzeSource(context.Background(), []byte(src), opts...)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Nil(t, res.SyntaxError, "unexpected syntax error: %v", res.SyntaxError)
	return res
}

// typeAt renders the type of the name occurrence at a 0-based position.
func typeAt(t *testing.T, res *Result, line, col int) string {
	t.Helper()
	info, ok := res.InfoAt(position.Position{Line: line, Character: col})
	require.True(t, ok, "no info at %d:%d", line, col)
	return types.Represent(info.Type)
}

func codes(res *Result) []string {
	var out []string
	for _, d := range res.Diagnostics {
		out = append(out, d.Code)
	}
	return out
}

// ============================================================================
// Declarations and assignment
// ============================================================================

func TestDocumentationOverrideWins(t *testing.T) {
	t.Parallel()
	res := analyze(t, `--[[(a: number) -> string]]
local function f(a)
  return 1
end
`)
	info, ok := res.InfoAt(position.Position{Line: 1, Character: 15})
	require.True(t, ok)
	assert.Equal(t, "f", info.Name)
	assert.True(t, types.Equal(types.MustParse("(a: number) -> string"), info.Type), "got %s", types.Represent(info.Type))
	require.NotNil(t, info.Doc)
	assert.Equal(t, "number", typeAt(t, res, 1, 17), "parameter takes the documented type")
}

func TestUndeclaredAssignmentIsGlobal(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function setup()
  counter = 1
end
local function read()
  return counter
end
`)
	v, ok := res.Global.LookupLocal("counter")
	require.True(t, ok)
	assert.Equal(t, types.Number, v.Type())
	assert.Equal(t, "number", typeAt(t, res, 4, 9))
	assert.Equal(t, "() -> [number]", typeAt(t, res, 3, 15))
}

func TestShadowingKeepsOuterVariable(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local x = 1
do
  local x = "s"
end
print(x)
`)
	assert.Equal(t, "string", typeAt(t, res, 2, 8))
	assert.Equal(t, "number", typeAt(t, res, 4, 6))
	assert.NotContains(t, codes(res), CodeRedefinedLocal)
}

func TestRedefinitionInSameScope(t *testing.T) {
	t.Parallel()
	res := analyze(t, "local x = 1\nlocal x = 'a'\n")

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, CodeRedefinedLocal, d.Code)
	assert.Equal(t, SeverityHint, d.Severity)
	assert.Equal(t, "redefinition of local 'x'", d.Message)

	info, ok := res.InfoAt(position.Position{Line: 1, Character: 6})
	require.True(t, ok)
	assert.Equal(t, types.String, info.Type)
	require.Len(t, info.History, 2)
	assert.Equal(t, "string", info.History[0].Type)
	assert.Equal(t, "number", info.History[1].Type)
}

func TestMultiValueAssignment(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function two() return 1, "s" end
local a, b, c = two()
local d, e = two(), true
`)
	assert.Equal(t, "() -> [number, string]", typeAt(t, res, 0, 15))
	assert.Equal(t, "number", typeAt(t, res, 1, 6))
	assert.Equal(t, "string", typeAt(t, res, 1, 9))
	assert.Equal(t, "nil", typeAt(t, res, 1, 12))
	assert.Equal(t, "number", typeAt(t, res, 2, 6))
	assert.Equal(t, "boolean", typeAt(t, res, 2, 9))
}

func TestVarargYieldsNoKnownValues(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function f(...)
  local a, b = ...
  local t = { 1, ... }
  return ...
end
local r = f(1, 2)
`)
	assert.Equal(t, "nil", typeAt(t, res, 1, 8))
	assert.Equal(t, "nil", typeAt(t, res, 1, 11))
	assert.Equal(t, "{1: number}", typeAt(t, res, 2, 8), "a trailing vararg adds no entries")
	assert.Equal(t, "nil", typeAt(t, res, 5, 6))
}

func TestOperatorAssignmentFromSource(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local x = "a"
x += 1
local s = 2
s ..= 1
local ne = x != s
`)
	assert.Equal(t, "number", typeAt(t, res, 1, 0))
	assert.Equal(t, "string", typeAt(t, res, 3, 0))
	assert.Equal(t, "boolean", typeAt(t, res, 4, 6))
	assert.Empty(t, res.Diagnostics)
}

func TestFieldAssignmentUpdatesTable(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local cfg = {}
cfg.port = 8080
cfg["host"] = "localhost"
cfg[1] = true
local p = cfg.port
local h = cfg.host
local one = cfg[1]
`)
	assert.Equal(t, "number", typeAt(t, res, 4, 6))
	assert.Equal(t, "string", typeAt(t, res, 5, 6))
	assert.Equal(t, "boolean", typeAt(t, res, 6, 6))
}

func TestVariableDocumentation(t *testing.T) {
	t.Parallel()
	res := analyze(t, `--[[number
port to listen on]]
local port = "8080"
--[[Just a note]]
local name = "x"
`)
	info, ok := res.InfoAt(position.Position{Line: 2, Character: 6})
	require.True(t, ok)
	assert.Equal(t, types.Number, info.Type)
	require.NotNil(t, info.Doc)
	assert.Equal(t, "port to listen on", info.Doc.Body)

	info, ok = res.InfoAt(position.Position{Line: 4, Character: 6})
	require.True(t, ok)
	assert.Equal(t, types.String, info.Type)
	require.NotNil(t, info.Doc)
	assert.Nil(t, info.Doc.Override)
	assert.Equal(t, "Just a note", info.Doc.Body)
}

// ============================================================================
// Expressions
// ============================================================================

func TestLogicalOperators(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local b = true
local s = b and "x"
local o = b or "y"
local n = nil or 3
local z = nil and 3
local k = 1 and "k"
`)
	assert.True(t, types.Equal(types.Join(types.Boolean, types.String), types.MustParse(typeAt(t, res, 1, 6))))
	assert.True(t, types.Equal(types.Join(types.Boolean, types.String), types.MustParse(typeAt(t, res, 2, 6))))
	assert.Equal(t, "number", typeAt(t, res, 3, 6))
	assert.Equal(t, "nil", typeAt(t, res, 4, 6))
	assert.Equal(t, "string", typeAt(t, res, 5, 6))
}

func TestOperatorResults(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local a = "x" .. 1
local b = 1 < 2
local c = not a
local d = #a
local e = 2 ^ 3
`)
	assert.Equal(t, "string", typeAt(t, res, 0, 6))
	assert.Equal(t, "boolean", typeAt(t, res, 1, 6))
	assert.Equal(t, "boolean", typeAt(t, res, 2, 6))
	assert.Equal(t, "number", typeAt(t, res, 3, 6))
	assert.Equal(t, "number", typeAt(t, res, 4, 6))
}

func TestTableConstructorAndIndexing(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function pair() return 1, "s" end
local t = { 10, name = "n", [true] = 1, pair() }
local v = t.name
local w = t[3]
local q = t[true]
local m = t.missing
local p = (pair())
local a2, b2 = (pair())
`)
	assert.Equal(t, "{name: string, 1: number, 2: number, 3: string, true: number}", typeAt(t, res, 1, 6))
	assert.Equal(t, "string", typeAt(t, res, 2, 6))
	assert.Equal(t, "string", typeAt(t, res, 3, 6))
	assert.Equal(t, "number", typeAt(t, res, 4, 6))
	assert.Equal(t, "nil", typeAt(t, res, 5, 6))
	assert.Equal(t, "number", typeAt(t, res, 6, 6), "parentheses keep only the first value")
	assert.Equal(t, "nil", typeAt(t, res, 7, 10))
}

func TestStringKeysAreDecoded(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local t = { ["a\110"] = 1 }
local v = t.an
`)
	assert.Equal(t, "number", typeAt(t, res, 1, 6))
}

func TestTypedIndex(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local names = {}
local key = tostring(1)
names[key] = 5
local got = names[tostring(2)]
local later = names
`)
	assert.Equal(t, "{}", typeAt(t, res, 0, 6), "lookup entries are snapshots")
	assert.Equal(t, "number", typeAt(t, res, 3, 6))
	assert.Equal(t, "{[key: string]: number}", typeAt(t, res, 4, 6))
}

// ============================================================================
// Functions
// ============================================================================

func TestReturnUnion(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function f(x)
  if x then return 1 end
  return "s"
end
local function none() end
`)
	assert.True(t, types.Equal(types.MustParse("(x: nil) -> [number | string]"), types.MustParse(typeAt(t, res, 0, 15))))
	assert.Equal(t, "() -> [nil]", typeAt(t, res, 4, 15))
}

func TestNestedFunctionReturnsStayInner(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function outer()
  local inner = function() return "s" end
  return 1
end
`)
	assert.Equal(t, "() -> [number]", typeAt(t, res, 0, 15))
	assert.Equal(t, "() -> [string]", typeAt(t, res, 1, 8))
}

func TestMethodDeclaration(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local Account = { balance = 0 }
function Account:deposit(v)
  self.balance = self.balance + v
  return self
end
local d = Account.deposit
local r = Account:deposit(1)
`)
	info, ok := res.InfoAt(position.Position{Line: 5, Character: 6})
	require.True(t, ok)
	fn, ok := info.Type.(*types.Function)
	require.True(t, ok, "got %s", types.Represent(info.Type))
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "self", fn.Params[0].Name)
	assert.Equal(t, "{balance: number}", types.Represent(fn.Params[0].Type))
	assert.Equal(t, "v", fn.Params[1].Name)
	assert.Equal(t, "{balance: number}", typeAt(t, res, 6, 6))
}

func TestLocalFunctionSeesItself(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local function loop(n)
  return loop(n)
end
`)
	// The recursive call resolves against the placeholder.
	assert.Equal(t, "(n: nil) -> [nil]", typeAt(t, res, 0, 15))
	_, global := res.Global.LookupLocal("loop")
	assert.False(t, global)
}

func TestDottedDeclaration(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local M = { util = {} }
function M.util.greet(name)
  return "hi " .. name
end
local g = M.util.greet
`)
	assert.Equal(t, "(name: nil) -> [string]", typeAt(t, res, 4, 6))
}

// ============================================================================
// Control flow
// ============================================================================

func TestForLoops(t *testing.T) {
	t.Parallel()
	res := analyze(t, `for i = 1, 10 do
  local sq = i * i
end
for k, v in ipairs({}) do
  local z = k
end
for a, b in next, {} do end
`)
	assert.Equal(t, "number", typeAt(t, res, 0, 4))
	assert.Equal(t, "number", typeAt(t, res, 3, 4))
	assert.Equal(t, "nil", typeAt(t, res, 3, 7))
	assert.Equal(t, "number", typeAt(t, res, 4, 8))
	assert.Equal(t, "nil", typeAt(t, res, 6, 4))
	_, leaked := res.Global.LookupLocal("i")
	assert.False(t, leaked)
}

func TestRepeatConditionSeesBody(t *testing.T) {
	t.Parallel()
	res := analyze(t, "repeat local done = true until done\n")
	_, global := res.Global.LookupLocal("done")
	assert.False(t, global, "condition resolved the body local")
	assert.Equal(t, "boolean", typeAt(t, res, 0, 31))
}

func TestReturnOutsideFunction(t *testing.T) {
	t.Parallel()
	res := analyze(t, "local x = 1\nreturn x\n")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, CodeReturnOutside, res.Diagnostics[0].Code)
	assert.Equal(t, SeverityError, res.Diagnostics[0].Severity)
	assert.Equal(t, 1, res.Diagnostics[0].Range.Start.Line)
	assert.True(t, res.HasErrors())
}

func TestBreak(t *testing.T) {
	t.Parallel()
	res := analyze(t, `while true do break end
break
for i = 1, 2 do
  local f = function() break end
end
`)
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		assert.Equal(t, CodeBreakOutside, d.Code)
	}
	assert.Equal(t, 1, res.Diagnostics[0].Range.Start.Line)
	assert.Equal(t, 3, res.Diagnostics[1].Range.Start.Line)
}

func TestGotoAndLabels(t *testing.T) {
	t.Parallel()
	res := analyze(t, `for i = 1, 3 do
  if i == 2 then goto continue end
  ::continue::
end
do goto nowhere end
::top::
::top::
`)
	require.Len(t, res.Diagnostics, 2, "%v", res.Diagnostics)
	assert.Equal(t, "undefined label 'nowhere'", res.Diagnostics[0].Message)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
	assert.Equal(t, "label 'top' already defined on line 6", res.Diagnostics[1].Message)
}

func TestGotoCannotLeaveFunction(t *testing.T) {
	t.Parallel()
	res := analyze(t, `::out::
local function f()
  goto out
end
`)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, CodeUndefinedLabel, res.Diagnostics[0].Code)
}

// ============================================================================
// Outputs
// ============================================================================

func TestSymbols(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local M = {}
function M.greet(name)
  local msg = "hi " .. name
  return msg
end
local function helper() end
local g = M.greet
`)
	require.Len(t, res.Symbols, 4)
	assert.Equal(t, "M", res.Symbols[0].Name)
	assert.Equal(t, SymbolVariable, res.Symbols[0].Kind)

	greet := res.Symbols[1]
	assert.Equal(t, "M.greet", greet.Name)
	assert.Equal(t, SymbolFunction, greet.Kind)
	assert.Equal(t, position.Range{Start: position.Position{Line: 1, Character: 9}, End: position.Position{Line: 1, Character: 16}}, greet.SelectionRange)
	assert.Equal(t, "(name: nil) -> [string]", greet.Detail)
	require.Len(t, greet.Children, 1)
	assert.Equal(t, "msg", greet.Children[0].Name)
	assert.Same(t, greet, greet.Children[0].Parent)

	assert.Equal(t, "helper", res.Symbols[2].Name)
	assert.Equal(t, SymbolFunction, res.Symbols[2].Kind)
	assert.Equal(t, "g", res.Symbols[3].Name)
	assert.Equal(t, "(name: nil) -> [string]", res.Symbols[3].Detail)

	var names []string
	Walk(res.Symbols, func(s *Symbol) { names = append(names, s.Name) })
	assert.Equal(t, []string{"M", "M.greet", "msg", "helper", "g"}, names)
}

func TestScopeAt(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local a = 1
local function f()
  local b = 2
end
`)
	s := res.ScopeAt(position.Position{Line: 2, Character: 4})
	assert.Equal(t, "function line 2", s.Tag)
	_, ok := s.LookupLocal("b")
	assert.True(t, ok)
	assert.Equal(t, "chunk", res.ScopeAt(position.Position{Line: 0, Character: 2}).Tag)
}

func TestIfClauseScopes(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local v = 1
if v then
  local a = 1
elseif v then
  local b = 2
else
  local c = 3
end
`)
	at := func(line, col int) string { return res.ScopeAt(position.Position{Line: line, Character: col}).Tag }
	assert.Equal(t, "if line 2", at(2, 4))
	assert.Equal(t, "elseif line 4", at(4, 4))
	assert.Equal(t, "else line 6", at(6, 4))
	assert.Equal(t, "chunk", at(0, 2))
}

func TestHistoryTracksScopes(t *testing.T) {
	t.Parallel()
	res := analyze(t, `local n
local function f()
  n = 1
end
local m = n
`)
	info, ok := res.InfoAt(position.Position{Line: 4, Character: 10})
	require.True(t, ok)
	require.Len(t, info.History, 3)
	assert.Equal(t, HistoryItem{ScopeTag: "chunk", Type: "number"}, info.History[0])
	assert.Equal(t, HistoryItem{ScopeTag: "function line 2", Type: "number"}, info.History[1])
	assert.Equal(t, HistoryItem{ScopeTag: "chunk", Type: "nil"}, info.History[2])
}

func TestSyntaxErrorEmptiesOutputs(t *testing.T) {
	t.Parallel()
	res, err := AnalyzeSource(context.Background(), []byte("local x = 1\nlocal = 2\n"))
	require.NoError(t, err)
	require.Error(t, res.SyntaxError)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, CodeSyntax, res.Diagnostics[0].Code)
	assert.Equal(t, 1, res.Diagnostics[0].Range.Start.Line)
	assert.Empty(t, res.Symbols)
	assert.Empty(t, res.LUT)
	assert.Empty(t, res.Scopes)
}

// ============================================================================
// Options
// ============================================================================

func TestPrelude(t *testing.T) {
	t.Parallel()
	src := "local s = tostring(1)\nlocal f = math.floor(1.5)\n"

	res := analyze(t, src)
	assert.Equal(t, "string", typeAt(t, res, 0, 6))
	assert.Equal(t, "number", typeAt(t, res, 1, 6))

	res = analyze(t, src, WithoutPrelude())
	assert.Equal(t, "nil", typeAt(t, res, 0, 6))
}

func TestPreludeParses(t *testing.T) {
	t.Parallel()
	for _, name := range PreludeNames() {
		assert.NotPanics(t, func() { PreludeType(name) }, name)
	}
}

func TestWithGlobals(t *testing.T) {
	t.Parallel()
	res := analyze(t, "local v = game.score\n", WithGlobals(map[string]types.Type{
		"game": types.MustParse("{score: number}"),
	}))
	assert.Equal(t, "number", typeAt(t, res, 0, 6))
}

func TestWithSeverity(t *testing.T) {
	t.Parallel()
	res := analyze(t, "return 1\n", WithSeverity(map[string]Severity{CodeReturnOutside: SeverityWarning}))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
	assert.False(t, res.HasErrors())
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]Severity{
		"error": SeverityError, "Warning": SeverityWarning, "info": SeverityInformation, "hint": SeverityHint,
	} {
		got, err := ParseSeverity(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NotEmpty(t, got.String())
	}
	_, err := ParseSeverity("fatal")
	assert.Error(t, err)
}

// ============================================================================
// Invariants
// ============================================================================

func TestGuard(t *testing.T) {
	t.Parallel()

	err := guard(func() { panic(&scope.InvariantError{Op: "declare", Name: "x", Message: "dup"}) })
	var ie *scope.InvariantError
	assert.True(t, errors.As(err, &ie))

	err = guard(func() { internal("bad frame") })
	var ine *InternalError
	assert.True(t, errors.As(err, &ine))

	assert.NoError(t, guard(func() {}))
	assert.PanicsWithValue(t, "other", func() { _ = guard(func() { panic("other") }) })
}

func TestPopFrameWrongKind(t *testing.T) {
	t.Parallel()
	w := newWalker(newConfig(nil), nil)
	w.pushFrame(frameLoop)
	assert.PanicsWithError(t, "analysis: internal error: pop function frame but top is loop", func() {
		w.popFrame(frameFunction)
	})
}
