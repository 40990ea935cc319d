package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableOf(build func(t *Table)) *Table {
	t := NewTable()
	build(t)
	return t
}

func sampleTypes() map[string]Type {
	fn := &Function{
		Params: []Param{{Name: "a", Type: Number}, {Name: "b", Type: Join(String, Nil)}},
		Return: String,
	}
	return map[string]Type{
		"nil":          Nil,
		"number":       Number,
		"boolean":      Boolean,
		"string":       String,
		"empty list":   NewList(),
		"single list":  NewList(Number),
		"nested list":  NewList(NewList(String, Nil), Boolean),
		"function":     fn,
		"no params":    &Function{Return: Nil},
		"multi return": &Function{Params: []Param{{Name: "...", Type: Nil}}, Return: NewList(Number, String)},
		"empty return": &Function{Return: NewList()},
		"list return":  &Function{Return: NewList(Number)},
		"fn param":     &Function{Params: []Param{{Name: "cb", Type: fn}}, Return: fn},
		"union":        Join(Number, String, Nil),
		"fn union":     Join(fn, Nil),
		"empty table":  NewTable(),
		"table": tableOf(func(t *Table) {
			t.SetEntry("name", String)
			t.SetEntry("odd key", Number)
			t.SetEntry("true", Boolean)
			t.SetEntry("1", Nil)
			t.SetIndex(1, Number)
			t.SetIndex(2, NewList(Number))
			t.SetBranch(true, String)
			t.SetBranch(false, Nil)
			t.SetTyped("k", String, Join(Number, Boolean))
			t.SetTyped("i", Number, fn)
		}),
		"nested table": tableOf(func(t *Table) {
			t.SetEntry("inner", tableOf(func(in *Table) {
				in.SetEntry("f", fn)
				in.SetEntry("quote\"d", String)
			}))
			t.SetEntry("list", NewList(Join(Number, NewTable())))
		}),
		"bracket keys": tableOf(func(t *Table) {
			t.SetEntry("}", Number)
			t.SetEntry("{", String)
			t.SetEntry("a(b", tableOf(func(in *Table) { in.SetEntry("]", Boolean) }))
		}),
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for name, typ := range sampleTypes() {
		text := Represent(typ)
		got, err := Parse(text)
		require.NoError(t, err, "%s: %s", name, text)
		assert.True(t, Equal(typ, got), "%s: %s reparsed as %s", name, text, Represent(got))
	}
}

func TestRepresent(t *testing.T) {
	t.Parallel()

	fn := &Function{Params: []Param{{Name: "a", Type: Number}}, Return: String}
	assert.Equal(t, "(a: number) -> [string]", Represent(fn))
	assert.Equal(t, "() -> [number, string]", Represent(&Function{Return: NewList(Number, String)}))
	assert.Equal(t, "() -> [[number]]", Represent(&Function{Return: NewList(Number)}))
	assert.Equal(t, "() -> []", Represent(&Function{Return: NewList()}))
	assert.Equal(t, "((a: number) -> [string]) | nil", Represent(Join(fn, Nil)))
	assert.Equal(t, "{}", Represent(NewTable()))
	assert.Equal(t, "nil", Represent(nil))

	tbl := NewTable()
	tbl.SetEntry("x", Number)
	tbl.SetIndex(1, String)
	tbl.SetTyped("k", String, Boolean)
	assert.Equal(t, "{x: number, 1: string, [k: string]: boolean}", Represent(tbl))
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Type
	}{
		{"  number ", Number},
		{"(string)", String},
		{"((nil))", Nil},
		{"number | string", Join(Number, String)},
		{"number | string | nil", Join(Join(Number, String), Nil)},
		{"[]", NewList()},
		{"[number]", NewList(Number)},
		{"[number, [string]]", NewList(Number, NewList(String))},
		{"(a: number) -> string", &Function{Params: []Param{{Name: "a", Type: Number}}, Return: String}},
		{"(a: number) -> [string]", &Function{Params: []Param{{Name: "a", Type: Number}}, Return: String}},
		{"(a, b) -> [nil]", &Function{Params: []Param{{Name: "a", Type: Nil}, {Name: "b", Type: Nil}}, Return: Nil}},
		{"() -> [number, nil]", &Function{Return: NewList(Number, Nil)}},
		{"{a: number, b: {c: string}}", tableOf(func(t *Table) {
			t.SetEntry("a", Number)
			t.SetEntry("b", tableOf(func(in *Table) { in.SetEntry("c", String) }))
		})},
		{`{"a,b": number, 3: nil, true: string}`, tableOf(func(t *Table) {
			t.SetEntry("a,b", Number)
			t.SetIndex(3, Nil)
			t.SetBranch(true, String)
		})},
		{"{[key: string]: number | nil}", tableOf(func(t *Table) {
			t.SetTyped("key", String, Join(Number, Nil))
		})},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, Equal(tt.want, got), "%q parsed as %s", tt.in, Represent(got))
	}
}

func TestParse_UnionIsLeftFolded(t *testing.T) {
	t.Parallel()
	got, err := Parse("number | (string | boolean)")
	require.NoError(t, err)
	u, ok := got.(*Union)
	require.True(t, ok)
	assert.Len(t, u.Alts, 3)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"integer",
		"{a number}",
		"{a: }",
		"[number",
		"number]",
		"(a: number -> [nil]",
		"a: number -> [nil]",
		"(a: number) [nil]",
		"(1x: number) -> [nil]",
		"{$: number}",
		"(a: number) -> [nil] trailing",
	} {
		_, err := Parse(in)
		var se *SyntaxError
		assert.ErrorAs(t, err, &se, "input %q", in)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a := tableOf(func(t *Table) {
		t.SetEntry("x", Number)
		t.SetEntry("y", String)
	})
	b := tableOf(func(t *Table) {
		t.SetEntry("y", String)
		t.SetEntry("x", Number)
	})
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, NewTable()))
	assert.True(t, Equal(Join(Number, String), Join(String, Number)))
	assert.False(t, Equal(NewList(Number), Number))
	assert.False(t, Equal(&Function{Params: []Param{{Name: "a", Type: Nil}}, Return: Nil},
		&Function{Params: []Param{{Name: "b", Type: Nil}}, Return: Nil}))
	assert.True(t, Equal(nil, Nil))
}

func TestJoin(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Nil, Join())
	assert.Equal(t, Number, Join(Number))
	assert.Equal(t, Number, Join(Number, Number))
	assert.True(t, Equal(Join(Number, String, Boolean), Join(Join(Number, String), Join(Boolean, Number))))

	u, ok := Join(Join(Number, String), Nil).(*Union)
	require.True(t, ok)
	assert.Len(t, u.Alts, 3, "nested unions are flattened")
}

func TestResolve(t *testing.T) {
	t.Parallel()
	a, b, c, d, e, f := Number, String, Boolean, Nil, NewTable(), &Function{Return: Nil}
	exprs := []Type{NewList(a, b), c, NewList(d, e, f)}

	got := Resolve(exprs, 5)
	assert.True(t, equalSlices([]Type{a, c, d, e, f}, got))

	got = Resolve(exprs, 2)
	assert.True(t, equalSlices([]Type{a, c}, got))

	got = Resolve(exprs, 6)
	require.Len(t, got, 6)
	assert.Equal(t, Nil, got[5])
}

func TestResolve_EmptyAndSingle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []Type{Nil, Nil}, Resolve(nil, 2))
	assert.Equal(t, []Type{Nil, String}, Resolve([]Type{NewList(), String}, 2))
	assert.Equal(t, []Type{Number}, Resolve([]Type{Number, String}, 1))
}

func TestFold(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Nil, Fold(nil))
	assert.Equal(t, Number, Fold([]Type{Number}))
	assert.True(t, Equal(NewList(Number, String), Fold([]Type{Number, String})))
}

func TestOperators(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Number, BinaryResult("+"))
	assert.Equal(t, Number, BinaryResult("//"))
	assert.Equal(t, Number, BinaryResult("<<"))
	assert.Equal(t, Boolean, BinaryResult("~="))
	assert.Equal(t, Boolean, BinaryResult("<="))
	assert.Equal(t, String, BinaryResult(".."))
	assert.Equal(t, Boolean, UnaryResult("not"))
	assert.Equal(t, Number, UnaryResult("#"))
	assert.Equal(t, String, CompoundResult("..="))
	assert.Equal(t, Number, CompoundResult("+="))
}

func TestLogical(t *testing.T) {
	t.Parallel()
	assert.True(t, Equal(Join(Boolean, String), Logical("and", Boolean, String)))
	assert.True(t, Equal(Join(Boolean, String), Logical("or", Boolean, String)))
	assert.Equal(t, Nil, Logical("and", Nil, String))
	assert.Equal(t, String, Logical("or", Nil, String))
	assert.Equal(t, String, Logical("and", Number, String))
	assert.Equal(t, Number, Logical("or", Number, String))
}
