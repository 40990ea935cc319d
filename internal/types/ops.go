package types

var comparisonOps = map[string]bool{
	"==": true, "~=": true, "!=": true,
	"<": true, ">": true, "<=": true, ">=": true,
}

// BinaryResult is the fixed result type of a binary operator. Arithmetic
// and bitwise operators yield number, comparisons yield boolean and
// concatenation yields string.
func BinaryResult(op string) Type {
	switch {
	case op == "..":
		return String
	case comparisonOps[op]:
		return Boolean
	}
	return Number
}

// UnaryResult is the fixed result type of a unary operator.
func UnaryResult(op string) Type {
	if op == "not" {
		return Boolean
	}
	return Number
}

// CompoundResult is the type a compound assignment such as `x += 1` or
// `s ..= t` forces onto its first value.
func CompoundResult(op string) Type {
	if op == "..=" || op == ".." {
		return String
	}
	return Number
}

// Logical types a short-circuit `and` / `or` from its operand types.
func Logical(op string, left, right Type) Type {
	left, right = OrNil(left), OrNil(right)
	switch {
	case Is(left, KindNil):
		if op == "and" {
			return Nil
		}
		return right
	case Is(left, KindBoolean):
		return Join(Boolean, right)
	case op == "and":
		return right
	}
	return left
}
