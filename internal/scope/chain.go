package scope

import (
	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/types"
)

// Entry pairs a forked scope with the source range it covers.
type Entry struct {
	Range position.Range
	Scope *Scope
}

// Chain tracks the current scope of a traversal and every scope it forked.
type Chain struct {
	global  *Scope
	current *Scope
	entries []Entry
}

// NewChain returns a chain whose current scope is a fresh global scope.
func NewChain() *Chain {
	g := New("global")
	return &Chain{global: g, current: g}
}

// Global returns the root scope.
func (c *Chain) Global() *Scope { return c.global }

// Current returns the innermost scope.
func (c *Chain) Current() *Scope { return c.current }

// Fork makes a child of the current scope current and returns the previous
// scope, which the caller must hand back to Restore.
func (c *Chain) Fork(rng position.Range, tag string) *Scope {
	prev := c.current
	c.current = newScope(tag, rng, prev)
	c.entries = append(c.entries, Entry{Range: rng, Scope: c.current})
	return prev
}

// Restore makes prev current again.
func (c *Chain) Restore(prev *Scope) {
	if prev == nil {
		invariant("restore", "", "nil scope")
	}
	c.current = prev
}

// Lookup resolves name from the current scope outward.
func (c *Chain) Lookup(name string) (*Variable, bool) {
	return c.current.Lookup(name)
}

// Declare creates name in the current scope. Declaring a name the current
// scope already owns panics with *InvariantError; shadowing an ancestor's
// name is allowed.
func (c *Chain) Declare(name string, typ types.Type, rng position.Range) *Variable {
	return c.current.declare(name, typ, rng, c.current)
}

// DeclareIn creates name in s instead of the current scope.
func (c *Chain) DeclareIn(s *Scope, name string, typ types.Type, rng position.Range) *Variable {
	return s.declare(name, typ, rng, c.current)
}

// Update records an assignment to the visible variable called name.
func (c *Chain) Update(name string, typ types.Type, rng position.Range) *Variable {
	v, ok := c.Lookup(name)
	if !ok {
		invariant("update", name, "no variable record")
	}
	v.prepend(Event{Type: types.OrNil(typ), Range: rng, Scope: c.current})
	return v
}

// Reference records a read of name carrying its current type. A second
// reference at the same range as the latest event is a no-op.
func (c *Chain) Reference(name string, rng position.Range) *Variable {
	v, ok := c.Lookup(name)
	if !ok {
		invariant("reference", name, "no variable record")
	}
	if len(v.History) > 0 && v.History[0].Range == rng {
		return v
	}
	v.prepend(Event{Type: v.Type(), Range: rng, Scope: c.current})
	return v
}

// Entries returns every forked scope in fork order.
func (c *Chain) Entries() []Entry { return c.entries }

// ScopeAt returns the innermost scope whose range contains pos, or the
// global scope.
func (c *Chain) ScopeAt(pos position.Position) *Scope {
	return At(c.entries, c.global, pos)
}

// At picks the innermost entry containing pos. Later forks win ties, which
// keeps nested scopes with identical ranges (a function and its body) in
// the order they were entered.
func At(entries []Entry, fallback *Scope, pos position.Position) *Scope {
	best := fallback
	var bestRange position.Range
	found := false
	for _, e := range entries {
		if !e.Range.Contains(pos) {
			continue
		}
		if !found || bestRange.Encloses(e.Range) {
			best, bestRange, found = e.Scope, e.Range, true
		}
	}
	return best
}
