// Package types is the value domain of the inferencer: atoms, lists,
// functions, structural tables and unions, together with their canonical
// text form and the parser that reads that form back.
package types

import "sort"

// Kind discriminates Type values.
type Kind uint8

const (
	KindNil Kind = iota
	KindNumber
	KindBoolean
	KindString
	KindList
	KindFunction
	KindTable
	KindUnion
)

var kindNames = [...]string{"nil", "number", "boolean", "string", "list", "function", "table", "union"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Type is a structural type. Values are treated as immutable once built;
// equality is structural (see Equal), never pointer identity.
type Type interface {
	Kind() Kind
	// String returns the canonical text form accepted by Parse.
	String() string
}

type atom Kind

func (a atom) Kind() Kind     { return Kind(a) }
func (a atom) String() string { return Kind(a).String() }

// The payload-free atoms.
var (
	Nil     Type = atom(KindNil)
	Number  Type = atom(KindNumber)
	Boolean Type = atom(KindBoolean)
	String  Type = atom(KindString)
)

// List is a fixed-arity multi-value, such as the values of a return list.
type List struct {
	Elems []Type
}

func (*List) Kind() Kind { return KindList }

// NewList builds a List.
func NewList(elems ...Type) *List {
	return &List{Elems: elems}
}

// Param is one named function parameter.
type Param struct {
	Name string
	Type Type
}

// Function is a function signature. Return holds a single Type; several
// return values are carried as a *List.
type Function struct {
	Params []Param
	Return Type
}

func (*Function) Kind() Kind { return KindFunction }

// Field is a string-keyed table entry.
type Field struct {
	Name string
	Type Type
}

// Index is a generic index signature such as `[k: string]: number`. Label is
// the display name of the key and takes no part in equality.
type Index struct {
	Label string
	Key   Type
	Value Type
}

// Table is a structural table type. Entries keep insertion order for
// display; lookups and equality ignore order.
type Table struct {
	Entries  []Field
	Sequence map[int]Type
	Typed    []Index
	True     Type
	False    Type
}

func (*Table) Kind() Kind { return KindTable }

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{Sequence: map[int]Type{}}
}

// Entry returns the type stored under a string key.
func (t *Table) Entry(name string) (Type, bool) {
	for _, f := range t.Entries {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// SetEntry stores typ under name, replacing an existing entry in place.
func (t *Table) SetEntry(name string, typ Type) {
	for i, f := range t.Entries {
		if f.Name == name {
			t.Entries[i].Type = typ
			return
		}
	}
	t.Entries = append(t.Entries, Field{Name: name, Type: typ})
}

// SetIndex stores typ under integer key i.
func (t *Table) SetIndex(i int, typ Type) {
	if t.Sequence == nil {
		t.Sequence = map[int]Type{}
	}
	t.Sequence[i] = typ
}

// Indexes returns the integer keys in ascending order.
func (t *Table) Indexes() []int {
	keys := make([]int, 0, len(t.Sequence))
	for k := range t.Sequence {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// TypedValue returns the value type of the index signature keyed by key.
func (t *Table) TypedValue(key Type) (Type, bool) {
	for _, ix := range t.Typed {
		if Equal(ix.Key, key) {
			return ix.Value, true
		}
	}
	return nil, false
}

// SetTyped stores an index signature. A second signature for the same key
// type widens the existing value type.
func (t *Table) SetTyped(label string, key, value Type) {
	for i, ix := range t.Typed {
		if Equal(ix.Key, key) {
			t.Typed[i].Value = Join(ix.Value, value)
			return
		}
	}
	t.Typed = append(t.Typed, Index{Label: label, Key: key, Value: value})
}

// SetBranch stores the value under a literal boolean key.
func (t *Table) SetBranch(key bool, typ Type) {
	if key {
		t.True = typ
	} else {
		t.False = typ
	}
}

// Clone returns a shallow copy that can be modified without touching t.
func (t *Table) Clone() *Table {
	c := &Table{
		Entries:  append([]Field(nil), t.Entries...),
		Sequence: make(map[int]Type, len(t.Sequence)),
		Typed:    append([]Index(nil), t.Typed...),
		True:     t.True,
		False:    t.False,
	}
	for k, v := range t.Sequence {
		c.Sequence[k] = v
	}
	return c
}

// IsEmpty reports whether the table has no keys at all.
func (t *Table) IsEmpty() bool {
	return len(t.Entries) == 0 && len(t.Sequence) == 0 && len(t.Typed) == 0 && t.True == nil && t.False == nil
}

// Union is a flat set of at least two distinct alternatives. Build unions
// with Join so that nesting and duplicates never appear.
type Union struct {
	Alts []Type
}

func (*Union) Kind() Kind { return KindUnion }

// Join combines types into a union, flattening nested unions and dropping
// structurally equal duplicates. Zero types yield Nil and a single type is
// returned unchanged.
func Join(ts ...Type) Type {
	var alts []Type
	add := func(t Type) {
		for _, a := range alts {
			if Equal(a, t) {
				return
			}
		}
		alts = append(alts, t)
	}
	for _, t := range ts {
		t = OrNil(t)
		if u, ok := t.(*Union); ok {
			for _, a := range u.Alts {
				add(a)
			}
			continue
		}
		add(t)
	}
	switch len(alts) {
	case 0:
		return Nil
	case 1:
		return alts[0]
	}
	return &Union{Alts: alts}
}

// OrNil maps a missing type to Nil.
func OrNil(t Type) Type {
	if t == nil {
		return Nil
	}
	return t
}

// Is reports whether t is the atom with kind k.
func Is(t Type, k Kind) bool {
	a, ok := OrNil(t).(atom)
	return ok && Kind(a) == k
}
