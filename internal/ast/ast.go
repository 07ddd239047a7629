// Package ast defines the abstract syntax tree produced by the ST parser,
// which is out of scope for this module (spec.md §2: "The ST parser ...
// treated as a black box producing AST nodes"). Everything here is the
// contract the analyzer and code generator consume; nothing here builds an
// AST from source text.
package ast

import "github.com/scanloop/stplc/internal/types"

// Library is the AST root: an ordered sequence of elements. Invariant:
// element names unique by category within global scope (enforced by the
// analyzer, not here).
type Library struct {
	Elements []Element
}

// Element is one top-level declaration.
type Element struct {
	DataType      *DataTypeDecl
	Function      *POU
	FunctionBlock *POU
	Program       *POU
	Configuration *ConfigurationDecl
}

// DataTypeDecl declares a named derived type (structure, enumeration,
// subrange, or array alias).
type DataTypeDecl struct {
	Name string
	Type *types.Type
}

// VarQualifier is the declaration qualifier on a variable.
type VarQualifier int

const (
	QualNone VarQualifier = iota
	QualConstant
	QualRetain
	QualNonRetain
)

// Initializer pairs a declared type with an optional constant initial value.
type Initializer struct {
	Type    *types.Type
	Literal *Literal // nil if no initial value given
}

// VarDecl is one variable declaration within a POU.
type VarDecl struct {
	Name        string
	Kind        types.VarKind
	Qualifier   VarQualifier
	Init        Initializer
	AddressBind string // empty if unbound (%IX0.0-style direct representation)
	Span        types.Span
}

// POU (Program Organization Unit) is a program, function, or function block:
// a name, variable declarations, and a body (spec.md §3).
type POU struct {
	Name    string
	Vars    []VarDecl
	Body    []Statement
	Returns *types.Type // non-nil only for Function
	Span    types.Span
}

// ConfigurationDecl binds resources and tasks (spec.md §3 "configuration
// declarations"); its task/program-instance shape mirrors container.TaskEntry
// and container.ProgramInstanceEntry directly since both describe the same
// task table.
type ConfigurationDecl struct {
	Name      string
	Resources []ResourceDecl
}

// ResourceDecl is a named resource owning tasks and program instances.
type ResourceDecl struct {
	Name     string
	Tasks    []TaskDecl
	Programs []ProgramInstanceDecl
}

// TaskKind mirrors container.TaskType at the AST level.
type TaskKind int

const (
	TaskCyclic TaskKind = iota
	TaskEvent
	TaskFreewheeling
)

// TaskDecl declares a scheduler task.
type TaskDecl struct {
	Name     string
	Kind     TaskKind
	Interval uint32
	Priority int16
	Span     types.Span
}

// ProgramInstanceDecl binds a program declaration to a task within a
// resource.
type ProgramInstanceDecl struct {
	Name         string
	ProgramName  string
	TaskName     string
	Span         types.Span
}
