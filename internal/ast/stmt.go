package ast

import "github.com/scanloop/stplc/internal/types"

// Statement is a sum type over the statement forms the code generator lowers
// (spec.md §4.2 "Control-flow lowering").
type Statement struct {
	Assign *AssignStmt
	If     *IfStmt
	Case   *CaseStmt
	While  *WhileStmt
	Repeat *RepeatStmt
	For    *ForStmt
	Exit   *ExitStmt
	Return *ReturnStmt
	Span   types.Span
}

// AssignStmt is `target := value;`.
type AssignStmt struct {
	Target Expr
	Value  Expr
}

// IfStmt models IF/ELSIF*/ELSE, each ElseIf sharing the arm shape of the
// primary condition (spec.md §4.2).
type IfStmt struct {
	Cond   Expr
	Then   []Statement
	ElseIf []ElseIfArm
	Else   []Statement // nil if no ELSE
}

// ElseIfArm is one ELSIF clause.
type ElseIfArm struct {
	Cond Expr
	Body []Statement
}

// CaseStmt models CASE selector OF arms ELSE body END_CASE.
type CaseStmt struct {
	Selector Expr
	Arms     []CaseArm
	Else     []Statement // nil if no ELSE
}

// CaseArm is one label set (single values, ranges, or comma-joined list) and
// its body.
type CaseArm struct {
	Labels []CaseLabel
	Body   []Statement
}

// CaseLabel is either a single value or an inclusive range.
type CaseLabel struct {
	Value   Expr
	RangeHi *Expr // non-nil for a range label `lo..hi`
}

// WhileStmt is WHILE cond DO body END_WHILE.
type WhileStmt struct {
	Cond Expr
	Body []Statement
}

// RepeatStmt is REPEAT body UNTIL cond END_REPEAT; body runs at least once.
type RepeatStmt struct {
	Body []Statement
	Cond Expr
}

// ForStmt is FOR var := from TO to [BY step] DO body END_FOR.
type ForStmt struct {
	Var  string
	From Expr
	To   Expr
	Step *Expr // nil means default step of +1
	Body []Statement
}

// ExitStmt is EXIT; valid only within a loop body.
type ExitStmt struct{}

// ReturnStmt is RETURN;.
type ReturnStmt struct{}
