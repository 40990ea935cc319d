package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/moonlens/internal/position"
)

func TestPrelex_KeepsOffsets(t *testing.T) {
	t.Parallel()
	src := "x += 1\ngoto\nout\n::out::\nlocal k <const> = 1\n"
	d := prelex([]byte(src))
	require.Len(t, d.src, len(src))
	for i := range src {
		if src[i] == '\n' {
			assert.Equal(t, byte('\n'), d.src[i], "offset %d", i)
		}
	}
	assert.Equal(t, "x  = 1\n    \n   \n       \nlocal k         = 1\n", string(d.src))
}

func TestPrelex_CompoundOperators(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("a += 1 b -= 2 c ..= d e <<= 1 f >= g h == i"))
	assert.Equal(t, map[int]string{3: "+=", 10: "-=", 18: "..=", 26: "<<="}, d.compound)
	assert.Equal(t, "a  = 1 b  = 2 c   = d e   = 1 f >= g h == i", string(d.src))
}

func TestPrelex_IgnoresStringsAndComments(t *testing.T) {
	t.Parallel()
	src := `s = "a += b" -- x += 1
t = [[goto out]] --[==[ ::top:: ]==]
u = 'it''s' .. "\" != "
`
	d := prelex([]byte(src))
	assert.Empty(t, d.compound)
	assert.Empty(t, d.jumps)
	assert.Equal(t, src, string(d.src))
}

func TestPrelex_NotEqual(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("if a != b then end"))
	assert.Equal(t, "if a ~= b then end", string(d.src))
}

func TestPrelex_Jumps(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("goto top\n::top::\nx.goto = 1\n"))
	require.Len(t, d.jumps, 2)

	assert.Equal(t, jumpGoto, d.jumps[0].kind)
	assert.Equal(t, "top", d.jumps[0].name)
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 8}, d.jumps[0].stmt)
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 5, EndLine: 1, EndCol: 8}, d.jumps[0].nameAt)

	assert.Equal(t, jumpLabel, d.jumps[1].kind)
	assert.Equal(t, 9, d.jumps[1].offset)
	assert.Equal(t, position.Span{StartLine: 2, StartCol: 0, EndLine: 2, EndCol: 7}, d.jumps[1].stmt)

	// A field called goto is not a statement.
	assert.Contains(t, string(d.src), "x.goto = 1")
}

func TestPrelex_Break(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("while x do break end\nbreak\nt.breaks = 1\n"))
	require.Len(t, d.jumps, 2)
	assert.Equal(t, jumpBreak, d.jumps[0].kind)
	assert.Equal(t, position.Span{StartLine: 1, StartCol: 11, EndLine: 1, EndCol: 16}, d.jumps[0].stmt)
	assert.Equal(t, jumpBreak, d.jumps[1].kind)
	assert.Equal(t, 21, d.jumps[1].offset)
	assert.Equal(t, "while x do       end\n     \nt.breaks = 1\n", string(d.src))
}

func TestPrelex_Attribs(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("local a <const>, b <close> = f()\nlocal x < y\n"))
	assert.Equal(t, map[int]string{6: "const", 17: "close"}, d.attribs)
	assert.Contains(t, string(d.src), "local x < y")
}

func TestPrelex_TrailingSemicolon(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("return x; end; f(); g() ;"))
	assert.Equal(t, "return x  end; f(); g()  ", string(d.src))
}

func TestPrelex_TripleDash(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("--- doc\n--[[ block ]]\n---[[ not long ]]\nx = 1 --- tail\n"))
	assert.Equal(t, "--  doc\n--[[ block ]]\n-- [[ not long ]]\nx = 1 --  tail\n", string(d.src))
}

func TestPrelex_Shebang(t *testing.T) {
	t.Parallel()
	d := prelex([]byte("#!/usr/bin/env lua -- x += 1\ny += 2\n"))
	require.Len(t, d.compound, 1)
	assert.Equal(t, "+=", d.compound[32])
}
