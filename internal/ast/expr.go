package ast

// NilLiteral is `nil`.
type NilLiteral struct {
	Loc
}

// BooleanLiteral is `true` or `false`.
type BooleanLiteral struct {
	Loc
	Value bool
}

// NumberLiteral keeps the literal's source text.
type NumberLiteral struct {
	Loc
	Raw string
}

// StringLiteral keeps the raw source text including quotes or long
// brackets. Decoded reports whether Value already holds the materialised
// string.
type StringLiteral struct {
	Loc
	Raw     string
	Value   string
	Decoded bool
}

// VarargLiteral is `...`.
type VarargLiteral struct {
	Loc
}

// Ident is a name, either read, declared or assigned.
type Ident struct {
	Loc
	Name string
}

// FunctionExpr is `function(params) body end`; it is also the body of
// every FunctionDecl.
type FunctionExpr struct {
	Loc
	Params []*Ident
	Vararg bool
	Body   *Block
}

// FieldKind classifies a table constructor field.
type FieldKind int

const (
	FieldPositional FieldKind = iota // `value`
	FieldNamed                       // `name = value`
	FieldComputed                    // `[key] = value`
)

// Field is one table constructor entry. Name is set for FieldNamed, Key
// for FieldComputed.
type Field struct {
	Loc
	Kind  FieldKind
	Name  *Ident
	Key   Expr
	Value Expr
}

// TableExpr is a table constructor `{ ... }`.
type TableExpr struct {
	Loc
	Fields []*Field
}

// BinaryExpr is an arithmetic, bitwise, comparison or concatenation
// operation.
type BinaryExpr struct {
	Loc
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is `not x`, `-x`, `#x` or `~x`.
type UnaryExpr struct {
	Loc
	Op      string
	Operand Expr
}

// LogicalExpr is a short-circuit `and` / `or`.
type LogicalExpr struct {
	Loc
	Op    string
	Left  Expr
	Right Expr
}

// ParenExpr is `(x)`; it truncates a multi-value to one value.
type ParenExpr struct {
	Loc
	Inner Expr
}

// MemberExpr is `base.name`.
type MemberExpr struct {
	Loc
	Base Expr
	Name *Ident
}

// IndexExpr is `base[index]`.
type IndexExpr struct {
	Loc
	Base  Expr
	Index Expr
}

// CallForm records how a call passed its arguments.
type CallForm int

const (
	CallParen  CallForm = iota // f(a, b)
	CallTable                  // f{...}
	CallString                 // f"..."
)

// CallExpr is `callee(args)`.
type CallExpr struct {
	Loc
	Callee Expr
	Args   []Expr
	Form   CallForm
}

// MethodCallExpr is `receiver:method(args)`.
type MethodCallExpr struct {
	Loc
	Receiver Expr
	Method   *Ident
	Args     []Expr
	Form     CallForm
}

func (n *NilLiteral) Accept(v Visitor)     { v.VisitNil(n) }
func (n *BooleanLiteral) Accept(v Visitor) { v.VisitBoolean(n) }
func (n *NumberLiteral) Accept(v Visitor)  { v.VisitNumber(n) }
func (n *StringLiteral) Accept(v Visitor)  { v.VisitString(n) }
func (n *VarargLiteral) Accept(v Visitor)  { v.VisitVararg(n) }
func (n *Ident) Accept(v Visitor)          { v.VisitIdent(n) }
func (n *FunctionExpr) Accept(v Visitor)   { v.VisitFunction(n) }
func (n *TableExpr) Accept(v Visitor)      { v.VisitTable(n) }
func (n *BinaryExpr) Accept(v Visitor)     { v.VisitBinary(n) }
func (n *UnaryExpr) Accept(v Visitor)      { v.VisitUnary(n) }
func (n *LogicalExpr) Accept(v Visitor)    { v.VisitLogical(n) }
func (n *ParenExpr) Accept(v Visitor)      { v.VisitParen(n) }
func (n *MemberExpr) Accept(v Visitor)     { v.VisitMember(n) }
func (n *IndexExpr) Accept(v Visitor)      { v.VisitIndex(n) }
func (n *CallExpr) Accept(v Visitor)       { v.VisitCall(n) }
func (n *MethodCallExpr) Accept(v Visitor) { v.VisitMethodCall(n) }

func (*NilLiteral) exprNode()     {}
func (*BooleanLiteral) exprNode() {}
func (*NumberLiteral) exprNode()  {}
func (*StringLiteral) exprNode()  {}
func (*VarargLiteral) exprNode()  {}
func (*Ident) exprNode()          {}
func (*FunctionExpr) exprNode()   {}
func (*TableExpr) exprNode()      {}
func (*BinaryExpr) exprNode()     {}
func (*UnaryExpr) exprNode()      {}
func (*LogicalExpr) exprNode()    {}
func (*ParenExpr) exprNode()      {}
func (*MemberExpr) exprNode()     {}
func (*IndexExpr) exprNode()      {}
func (*CallExpr) exprNode()       {}
func (*MethodCallExpr) exprNode() {}
