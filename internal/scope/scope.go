// Package scope implements the lexical scope chain of one traversal:
// parent-delegated lookup, shadowing on declare, and a most-recent-first
// mutation history per variable.
package scope

import (
	"fmt"
	"sort"

	"github.com/jward/moonlens/internal/position"
	"github.com/jward/moonlens/internal/types"
)

// InvariantError reports misuse of the chain by the walker. It is raised
// as a panic; it never describes a problem in the analysed source.
type InvariantError struct {
	Op      string
	Name    string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("scope: %s %q: %s", e.Op, e.Name, e.Message)
}

func invariant(op, name, msg string) {
	panic(&InvariantError{Op: op, Name: name, Message: msg})
}

// Event is one declaration, mutation or reference of a variable.
type Event struct {
	Type  types.Type
	Range position.Range
	Scope *Scope // scope that was current when the event was recorded
}

// Variable is a named binding and its history, most recent first.
type Variable struct {
	Name    string
	Owner   *Scope
	History []Event
}

// Type returns the variable's current type.
func (v *Variable) Type() types.Type {
	if len(v.History) == 0 {
		return types.Nil
	}
	return types.OrNil(v.History[0].Type)
}

// Declared returns the range of the declaring event.
func (v *Variable) Declared() position.Range {
	if len(v.History) == 0 {
		return position.Range{}
	}
	return v.History[len(v.History)-1].Range
}

func (v *Variable) prepend(e Event) {
	v.History = append(v.History, Event{})
	copy(v.History[1:], v.History)
	v.History[0] = e
}

// Scope is one lexical scope.
type Scope struct {
	Tag    string
	Range  position.Range
	Parent *Scope

	vars   map[string]*Variable
	order  []string
	labels map[string]position.Range
}

// New returns a root scope with no parent.
func New(tag string) *Scope {
	return newScope(tag, position.Range{}, nil)
}

func newScope(tag string, rng position.Range, parent *Scope) *Scope {
	return &Scope{
		Tag:    tag,
		Range:  rng,
		Parent: parent,
		vars:   make(map[string]*Variable),
		labels: make(map[string]position.Range),
	}
}

// LookupLocal returns the variable owned by s itself.
func (s *Scope) LookupLocal(name string) (*Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Lookup searches s and then its ancestors.
func (s *Scope) Lookup(name string) (*Variable, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Variables returns the variables owned by s in declaration order.
func (s *Scope) Variables() []*Variable {
	out := make([]*Variable, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.vars[name])
	}
	return out
}

// Depth is the number of ancestors of s.
func (s *Scope) Depth() int {
	d := 0
	for cur := s.Parent; cur != nil; cur = cur.Parent {
		d++
	}
	return d
}

// DeclareLabel records a label. It reports the earlier declaration when
// the name is already a label of s; the earlier one is kept.
func (s *Scope) DeclareLabel(name string, rng position.Range) (position.Range, bool) {
	if prev, ok := s.labels[name]; ok {
		return prev, true
	}
	s.labels[name] = rng
	return rng, false
}

// Label returns a label declared directly in s.
func (s *Scope) Label(name string) (position.Range, bool) {
	r, ok := s.labels[name]
	return r, ok
}

// Labels returns the label names of s, sorted.
func (s *Scope) Labels() []string {
	names := make([]string, 0, len(s.labels))
	for n := range s.labels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Scope) declare(name string, typ types.Type, rng position.Range, current *Scope) *Variable {
	if _, exists := s.vars[name]; exists {
		invariant("declare", name, "already declared in scope "+s.Tag)
	}
	v := &Variable{Name: name, Owner: s, History: []Event{{Type: types.OrNil(typ), Range: rng, Scope: current}}}
	s.vars[name] = v
	s.order = append(s.order, name)
	return v
}
