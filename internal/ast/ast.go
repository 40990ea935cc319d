// Package ast is the closed syntax tree the analyzer walks. Every node kind
// has exactly one Visitor method, so adding a kind forces every walker to
// handle it before the module compiles.
package ast

import "github.com/jward/moonlens/internal/position"

// Node is any syntax tree node.
type Node interface {
	Span() position.Span
	Accept(v Visitor)
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Visitor has one method per node kind.
type Visitor interface {
	VisitChunk(*Chunk)
	VisitBlock(*Block)

	VisitLocal(*LocalStatement)
	VisitAssign(*AssignStatement)
	VisitCompoundAssign(*CompoundAssignStatement)
	VisitCallStatement(*CallStatement)
	VisitFunctionDecl(*FunctionDecl)
	VisitReturn(*ReturnStatement)
	VisitIf(*IfStatement)
	VisitWhile(*WhileStatement)
	VisitRepeat(*RepeatStatement)
	VisitNumericFor(*NumericForStatement)
	VisitGenericFor(*GenericForStatement)
	VisitDo(*DoStatement)
	VisitBreak(*BreakStatement)
	VisitGoto(*GotoStatement)
	VisitLabel(*LabelStatement)
	VisitEmpty(*EmptyStatement)

	VisitNil(*NilLiteral)
	VisitBoolean(*BooleanLiteral)
	VisitNumber(*NumberLiteral)
	VisitString(*StringLiteral)
	VisitVararg(*VarargLiteral)
	VisitIdent(*Ident)
	VisitFunction(*FunctionExpr)
	VisitTable(*TableExpr)
	VisitBinary(*BinaryExpr)
	VisitUnary(*UnaryExpr)
	VisitLogical(*LogicalExpr)
	VisitParen(*ParenExpr)
	VisitMember(*MemberExpr)
	VisitIndex(*IndexExpr)
	VisitCall(*CallExpr)
	VisitMethodCall(*MethodCallExpr)
}

// Loc carries a node's source span and implements Span for embedders.
type Loc struct {
	Pos position.Span
}

func (l Loc) Span() position.Span { return l.Pos }

// Comment is a source comment. Block comments use long brackets
// (`--[[ ... ]]`); Text is the comment body without delimiters.
type Comment struct {
	Loc
	Raw   string
	Text  string
	Block bool
}

// Chunk is the root of one parsed document.
type Chunk struct {
	Loc
	Body *Block
}

// Block is an ordered statement sequence.
type Block struct {
	Loc
	Stmts []Stmt
}

func (n *Chunk) Accept(v Visitor) { v.VisitChunk(n) }
func (n *Block) Accept(v Visitor) { v.VisitBlock(n) }
