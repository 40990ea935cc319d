// Package syntax adapts the tree-sitter Lua grammar to the ast package.
// Tree-sitter rows are 0-based; every span produced here uses 1-based lines
// and 0-based columns, the convention position.FromSpan expects.
package syntax

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"

	"github.com/jward/moonlens/internal/ast"
	"github.com/jward/moonlens/internal/position"
)

// Error is a parse failure at a 1-based line and 0-based column.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

var (
	language     *sitter.Language
	languageOnce sync.Once
)

// Language returns the Lua grammar.
func Language() *sitter.Language {
	languageOnce.Do(func() {
		language = lua.GetLanguage()
	})
	return language
}

// Parse parses src into a chunk plus every comment in the document. Any
// error or missing node in the tree fails the whole parse with *Error
// positioned at the first such node.
func Parse(ctx context.Context, src []byte) (*ast.Chunk, []ast.Comment, error) {
	d := prelex(src)
	tree, err := parse(ctx, d.src)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()
	root := tree.RootNode()
	c := &converter{d: d, src: d.src}
	if root.HasError() {
		return nil, nil, c.firstError(root)
	}

	chunk := &ast.Chunk{Loc: ast.Loc{Pos: d.span(0, len(src))}}
	chunk.Body = c.block(c.items(root), 0, len(src))
	if c.err != nil {
		return nil, nil, c.err
	}
	return chunk, c.comments(root, src), nil
}

// ParseTree returns the raw syntax tree of src, built from the same
// rewritten source Parse uses so node offsets match the original text.
func ParseTree(ctx context.Context, src []byte) (*sitter.Tree, error) {
	return parse(ctx, prelex(src).src)
}

func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: %w", err)
	}
	return tree, nil
}

// NodeText returns the text of n without the whitespace the grammar
// attaches in front of tokens.
func NodeText(n *sitter.Node, src []byte) string {
	return strings.TrimLeft(n.Content(src), " \t\r\n\v\f")
}

// firstError finds the first ERROR or MISSING node in source order.
func (c *converter) firstError(root *sitter.Node) *Error {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if found == nil {
		return &Error{Line: 1, Message: "syntax error"}
	}
	line, col := c.d.point(c.start(found))
	e := &Error{Line: line, Column: col}
	if found.IsMissing() {
		e.Message = fmt.Sprintf("missing %q", found.Type())
		return e
	}
	text := c.text(found)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40]
	}
	if text == "" {
		e.Message = "unexpected end of input"
	} else {
		e.Message = fmt.Sprintf("unexpected %q", text)
	}
	return e
}

// comments returns every comment node in document order, with the text
// taken from the original source.
func (c *converter) comments(root *sitter.Node, orig []byte) []ast.Comment {
	var out []ast.Comment
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "comment" {
			raw := string(orig[c.start(n):c.end(n)])
			out = append(out, newComment(raw, c.span(n)))
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}

func newComment(raw string, span position.Span) ast.Comment {
	c := ast.Comment{Loc: ast.Loc{Pos: span}, Raw: raw}
	rest := strings.TrimPrefix(raw, "--")
	if body, ok := longBracket(rest); ok {
		c.Block = true
		c.Text = body
		return c
	}
	c.Text = strings.TrimSpace(rest)
	return c
}
