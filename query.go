package moonlens

import (
	"fmt"

	"github.com/jward/moonlens/internal/store"
)

// QueryBuilder provides the read side of the index.
type QueryBuilder struct {
	store *store.Store
}

// SymbolNode is one entry of a document outline with its children.
type SymbolNode struct {
	*Symbol
	Children []*SymbolNode
}

// ScopeResult is the innermost scope at a position followed by its
// enclosing scopes, outermost last.
type ScopeResult struct {
	Scope *Scope
	Chain []*Scope
}

func (q *QueryBuilder) file(op, path string) (*File, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: lookup file: %w", op, err)
	}
	return f, nil
}

// HoverAt returns the hover row at the given 0-based position: the
// occurrence starting there, or else the innermost one containing it. Nil
// when the file is not indexed or nothing is there.
func (q *QueryBuilder) HoverAt(file string, line, col int) (*Hover, error) {
	f, err := q.file("hover at", file)
	if err != nil || f == nil {
		return nil, err
	}
	h, err := q.store.HoverAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("hover at: %w", err)
	}
	return h, nil
}

// Symbols returns the outline of file as a tree, in document order.
func (q *QueryBuilder) Symbols(file string) ([]*SymbolNode, error) {
	f, err := q.file("symbols", file)
	if err != nil || f == nil {
		return nil, err
	}
	syms, err := q.store.SymbolsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}

	// Rows come back in insertion order, which puts parents first.
	nodes := make(map[int64]*SymbolNode, len(syms))
	var roots []*SymbolNode
	for _, sym := range syms {
		n := &SymbolNode{Symbol: sym}
		nodes[sym.ID] = n
		if sym.ParentSymbolID != nil {
			if parent, ok := nodes[*sym.ParentSymbolID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots, nil
}

// Diagnostics returns the analyzer and rule diagnostics of file ordered by
// position.
func (q *QueryBuilder) Diagnostics(file string) ([]*Diagnostic, error) {
	f, err := q.file("diagnostics", file)
	if err != nil || f == nil {
		return nil, err
	}
	diags, err := q.store.DiagnosticsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	return diags, nil
}

// ScopeAt returns the innermost scope at the given 0-based position and
// its enclosing scopes. Nil when the file is not indexed.
func (q *QueryBuilder) ScopeAt(file string, line, col int) (*ScopeResult, error) {
	f, err := q.file("scope at", file)
	if err != nil || f == nil {
		return nil, err
	}
	sc, err := q.store.ScopeAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("scope at: %w", err)
	}
	if sc == nil {
		return nil, nil
	}
	chain, err := q.store.ScopeChain(sc.ID)
	if err != nil {
		return nil, fmt.Errorf("scope at: %w", err)
	}
	res := &ScopeResult{Scope: sc}
	if len(chain) > 1 {
		res.Chain = chain[1:]
	}
	return res, nil
}

// Files returns every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}
