package ast

// LocalStatement is `local a <attr>, b = x, y`.
type LocalStatement struct {
	Loc
	Names   []*Ident
	Attribs []string // parallel to Names; "" when absent
	Values  []Expr
}

// AssignStatement is `a, b.c, d[e] = x, y, z`.
type AssignStatement struct {
	Loc
	Targets []Expr
	Values  []Expr
}

// CompoundAssignStatement is the dialect's operator assignment, such as
// `a += 1` or `s ..= "x"`. Op includes the trailing `=`.
type CompoundAssignStatement struct {
	Loc
	Op      string
	Targets []Expr
	Values  []Expr
}

// CallStatement is a call used as a statement.
type CallStatement struct {
	Loc
	Call Expr // *CallExpr or *MethodCallExpr
}

// FuncName is the name part of `function a.b.c:m()`.
type FuncName struct {
	Loc
	Base   *Ident
	Fields []*Ident
	Method *Ident
}

// FunctionDecl is `function name() end` or `local function name() end`.
type FunctionDecl struct {
	Loc
	Local bool
	Name  *FuncName
	Func  *FunctionExpr
}

// ReturnStatement is `return a, b`.
type ReturnStatement struct {
	Loc
	Values []Expr
}

// IfClause is one `if`/`elseif` arm.
type IfClause struct {
	Loc
	Cond Expr
	Body *Block
}

// IfStatement is an if/elseif/else chain. Else is nil when absent.
type IfStatement struct {
	Loc
	Clauses []*IfClause
	Else    *Block
}

// WhileStatement is `while cond do body end`.
type WhileStatement struct {
	Loc
	Cond Expr
	Body *Block
}

// RepeatStatement is `repeat body until cond`; Cond sees the body's locals.
type RepeatStatement struct {
	Loc
	Body *Block
	Cond Expr
}

// NumericForStatement is `for i = start, limit, step do body end`. Step may be nil.
type NumericForStatement struct {
	Loc
	Var   *Ident
	Start Expr
	Limit Expr
	Step  Expr
	Body  *Block
}

// GenericForStatement is `for k, v in explist do body end`.
type GenericForStatement struct {
	Loc
	Names []*Ident
	Exprs []Expr
	Body  *Block
}

// DoStatement is `do body end`.
type DoStatement struct {
	Loc
	Body *Block
}

// BreakStatement is `break`.
type BreakStatement struct {
	Loc
}

// GotoStatement is `goto label`.
type GotoStatement struct {
	Loc
	Label *Ident
}

// LabelStatement is `::name::`.
type LabelStatement struct {
	Loc
	Name *Ident
}

// EmptyStatement is a lone `;`.
type EmptyStatement struct {
	Loc
}

func (n *LocalStatement) Accept(v Visitor)          { v.VisitLocal(n) }
func (n *AssignStatement) Accept(v Visitor)         { v.VisitAssign(n) }
func (n *CompoundAssignStatement) Accept(v Visitor) { v.VisitCompoundAssign(n) }
func (n *CallStatement) Accept(v Visitor)           { v.VisitCallStatement(n) }
func (n *FunctionDecl) Accept(v Visitor)            { v.VisitFunctionDecl(n) }
func (n *ReturnStatement) Accept(v Visitor)         { v.VisitReturn(n) }
func (n *IfStatement) Accept(v Visitor)             { v.VisitIf(n) }
func (n *WhileStatement) Accept(v Visitor)          { v.VisitWhile(n) }
func (n *RepeatStatement) Accept(v Visitor)         { v.VisitRepeat(n) }
func (n *NumericForStatement) Accept(v Visitor)     { v.VisitNumericFor(n) }
func (n *GenericForStatement) Accept(v Visitor)     { v.VisitGenericFor(n) }
func (n *DoStatement) Accept(v Visitor)             { v.VisitDo(n) }
func (n *BreakStatement) Accept(v Visitor)          { v.VisitBreak(n) }
func (n *GotoStatement) Accept(v Visitor)           { v.VisitGoto(n) }
func (n *LabelStatement) Accept(v Visitor)          { v.VisitLabel(n) }
func (n *EmptyStatement) Accept(v Visitor)          { v.VisitEmpty(n) }

func (*LocalStatement) stmtNode()          {}
func (*AssignStatement) stmtNode()         {}
func (*CompoundAssignStatement) stmtNode() {}
func (*CallStatement) stmtNode()           {}
func (*FunctionDecl) stmtNode()            {}
func (*ReturnStatement) stmtNode()         {}
func (*IfStatement) stmtNode()             {}
func (*WhileStatement) stmtNode()          {}
func (*RepeatStatement) stmtNode()         {}
func (*NumericForStatement) stmtNode()     {}
func (*GenericForStatement) stmtNode()     {}
func (*DoStatement) stmtNode()             {}
func (*BreakStatement) stmtNode()          {}
func (*GotoStatement) stmtNode()           {}
func (*LabelStatement) stmtNode()          {}
func (*EmptyStatement) stmtNode()          {}
