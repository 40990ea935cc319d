package types

// First returns the first value a type contributes when only one value is
// wanted: the head of a List (Nil for an empty one), otherwise t itself.
func First(t Type) Type {
	if l, ok := OrNil(t).(*List); ok {
		if len(l.Elems) == 0 {
			return Nil
		}
		return OrNil(l.Elems[0])
	}
	return OrNil(t)
}

// Values flattens the types of an ordered expression list into the values
// it yields. Every expression but the last contributes only its first value;
// the last contributes all of its values when it is a List.
func Values(exprs []Type) []Type {
	if len(exprs) == 0 {
		return nil
	}
	values := make([]Type, 0, len(exprs))
	for _, t := range exprs[:len(exprs)-1] {
		values = append(values, First(t))
	}
	last := OrNil(exprs[len(exprs)-1])
	if l, ok := last.(*List); ok {
		for _, e := range l.Elems {
			values = append(values, OrNil(e))
		}
		return values
	}
	return append(values, last)
}

// Resolve distributes the values of exprs over n targets. Targets past the
// available values resolve to Nil; surplus values are discarded.
func Resolve(exprs []Type, n int) []Type {
	values := Values(exprs)
	out := make([]Type, n)
	for i := range out {
		if i < len(values) {
			out[i] = values[i]
		} else {
			out[i] = Nil
		}
	}
	return out
}

// Fold turns a value sequence into one type: none is Nil, one is itself,
// several become a List.
func Fold(values []Type) Type {
	switch len(values) {
	case 0:
		return Nil
	case 1:
		return OrNil(values[0])
	}
	return &List{Elems: append([]Type(nil), values...)}
}
