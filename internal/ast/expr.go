package ast

import "github.com/scanloop/stplc/internal/types"

// Expr is a sum type over expression forms.
type Expr struct {
	Ident   *IdentExpr
	Literal *Literal
	Unary   *UnaryExpr
	Binary  *BinaryExpr
	Call    *CallExpr
	Span    types.Span
}

// IdentExpr references a symbolic variable by name.
type IdentExpr struct {
	Name string
}

// LiteralKind discriminates Literal's payload.
type LiteralKind int

const (
	LitBool LiteralKind = iota
	LitInt
	LitReal
	LitString
)

// Literal is a constant value appearing in source, with the type it was
// parsed under (the analyzer resolves the final type; the literal text and
// declared kind are preserved for constant folding in codegen).
type Literal struct {
	Kind LiteralKind
	Bool bool
	Int  int64 // also used for enum-value literals, resolved by the analyzer
	Real float64
	Str  string
	Type *types.Type
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// UnaryExpr is `op operand`.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

// BinaryOp enumerates binary operators (spec.md §4.2's opcode-selection
// table is keyed on these plus operand type).
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
	BinXor
	BinExpt
)

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// CallExpr calls a stdlib builtin or a function-block instance method.
type CallExpr struct {
	Name string
	Args []Expr
}
