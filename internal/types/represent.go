package types

import (
	"strconv"
	"strings"
)

// Represent returns the canonical text of t; a missing type reads as nil.
func Represent(t Type) string {
	return OrNil(t).String()
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range l.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Represent(e))
	}
	b.WriteByte(']')
	return b.String()
}

// String writes the parameter group followed by a bracketed return group.
// Parse unwraps exactly one list layer from a single-element return group,
// so a return that is itself a one-element list is written double-bracketed.
func (f *Function) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(Represent(p.Type))
	}
	b.WriteString(") -> ")
	if l, ok := f.Return.(*List); ok && len(l.Elems) != 1 {
		b.WriteString(l.String())
	} else {
		b.WriteByte('[')
		b.WriteString(Represent(f.Return))
		b.WriteByte(']')
	}
	return b.String()
}

func (t *Table) String() string {
	var parts []string
	for _, f := range t.Entries {
		parts = append(parts, entryKey(f.Name)+": "+Represent(f.Type))
	}
	for _, i := range t.Indexes() {
		parts = append(parts, strconv.Itoa(i)+": "+Represent(t.Sequence[i]))
	}
	if t.True != nil {
		parts = append(parts, "true: "+Represent(t.True))
	}
	if t.False != nil {
		parts = append(parts, "false: "+Represent(t.False))
	}
	for _, ix := range t.Typed {
		label := ix.Label
		if !isIdentifier(label) {
			label = "key"
		}
		parts = append(parts, "["+label+": "+Represent(ix.Key)+"]: "+Represent(ix.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (u *Union) String() string {
	parts := make([]string, len(u.Alts))
	for i, a := range u.Alts {
		s := Represent(a)
		if a.Kind() == KindFunction {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, " | ")
}

func entryKey(name string) string {
	if isIdentifier(name) && name != "true" && name != "false" {
		return name
	}
	return strconv.Quote(name)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
