package types

// Equal reports whether a and b are structurally identical. Table entry and
// union alternative order do not matter; index signature labels are ignored.
func Equal(a, b Type) bool {
	a, b = OrNil(a), OrNil(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case atom:
		return true
	case *List:
		y := b.(*List)
		return equalSlices(x.Elems, y.Elems)
	case *Function:
		y := b.(*Function)
		if len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if x.Params[i].Name != y.Params[i].Name || !Equal(x.Params[i].Type, y.Params[i].Type) {
				return false
			}
		}
		return Equal(x.Return, y.Return)
	case *Table:
		return equalTables(x, b.(*Table))
	case *Union:
		y := b.(*Union)
		if len(x.Alts) != len(y.Alts) {
			return false
		}
		for _, alt := range x.Alts {
			if !containsType(y.Alts, alt) {
				return false
			}
		}
		return true
	}
	return false
}

func equalSlices(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalTables(x, y *Table) bool {
	if len(x.Entries) != len(y.Entries) || len(x.Sequence) != len(y.Sequence) || len(x.Typed) != len(y.Typed) {
		return false
	}
	for _, f := range x.Entries {
		other, ok := y.Entry(f.Name)
		if !ok || !Equal(f.Type, other) {
			return false
		}
	}
	for k, v := range x.Sequence {
		other, ok := y.Sequence[k]
		if !ok || !Equal(v, other) {
			return false
		}
	}
	for _, ix := range x.Typed {
		other, ok := y.TypedValue(ix.Key)
		if !ok || !Equal(ix.Value, other) {
			return false
		}
	}
	return equalBranch(x.True, y.True) && equalBranch(x.False, y.False)
}

func equalBranch(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}

func containsType(ts []Type, t Type) bool {
	for _, c := range ts {
		if Equal(c, t) {
			return true
		}
	}
	return false
}
