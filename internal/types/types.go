// Package types models the intermediate type representation produced by
// semantic analysis and consumed by the code generator: a tagged variant
// over the elementary and derived IEC 61131-3 types (spec.md §3, "Type
// representation (intermediate)").
package types

import "fmt"

// Kind discriminates the Type variant.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindUInt
	KindReal
	KindTime
	KindDate
	KindString
	KindSubrange
	KindArray
	KindEnumeration
	KindStructure
	KindFunctionBlock
	KindFunction
)

// Category classifies where a type came from, per
// original_source/compiler/analyzer/src/type_category.rs.
type Category int

const (
	CategoryElementary Category = iota
	CategoryUserDefined
	CategoryDerived
)

// Field describes one member of a Structure or FunctionBlock type, laid out
// in declaration order (spec.md §3: "fields are laid out in declaration
// order with natural alignment").
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

// VarKind is the IEC variable kind (input/output/inout/temp/external/global).
type VarKind int

const (
	VarInput VarKind = iota
	VarOutput
	VarInOut
	VarTemp
	VarExternal
	VarGlobal
)

// FBField additionally records the variable kind of a function-block member,
// needed to distinguish VAR_INPUT from VAR_OUTPUT members at call sites.
type FBField struct {
	Field
	Kind VarKind
}

// Type is the tagged-variant intermediate type. Only the fields relevant to
// Kind are populated; the rest are zero.
type Type struct {
	Kind Kind

	// Elementary type attributes.
	Width      int  // Int/UInt: 8/16/32/64. Real: 32/64.
	Category   Category
	SourceSpan Span

	// String.
	MaxLen int // 0 means unbounded/implementation-defined (SPEC_FULL.md §C.3)

	// Subrange.
	Base     *Type
	Min, Max int64

	// Array.
	Elem   *Type
	Length int // 0 means unspecified length

	// Enumeration.
	Underlying *Type
	Values     []string

	// Structure / FunctionBlock.
	Name   string
	Fields []Field
	FBVars []FBField

	// Function.
	Params []Field
	Result *Type
}

// Span is a byte-offset range in a named source file, used for diagnostics.
type Span struct {
	File string
	Lo   int
	Hi   int
}

// Bool is the singleton BOOL type.
var Bool = &Type{Kind: KindBool, Category: CategoryElementary}

func sized(kind Kind, width int) *Type {
	return &Type{Kind: kind, Width: width, Category: CategoryElementary}
}

var (
	SInt = sized(KindInt, 8)
	Int  = sized(KindInt, 16)
	DInt = sized(KindInt, 32)
	LInt = sized(KindInt, 64)

	USInt = sized(KindUInt, 8)
	UInt  = sized(KindUInt, 16)
	UDInt = sized(KindUInt, 32)
	ULInt = sized(KindUInt, 64)

	Real  = sized(KindReal, 32)
	LReal = sized(KindReal, 64)

	Time = &Type{Kind: KindTime, Category: CategoryElementary}
	Date = &Type{Kind: KindDate, Category: CategoryElementary}
)

// Elementary is the pre-populated type-name -> Type table required by
// spec.md §3 ("Elementary types are pre-populated").
var Elementary = map[string]*Type{
	"BOOL":   Bool,
	"SINT":   SInt,
	"INT":    Int,
	"DINT":   DInt,
	"LINT":   LInt,
	"USINT":  USInt,
	"UINT":   UInt,
	"UDINT":  UDInt,
	"ULINT":  ULInt,
	"BYTE":   USInt,
	"WORD":   UInt,
	"DWORD":  UDInt,
	"LWORD":  ULInt,
	"REAL":   Real,
	"LREAL":  LReal,
	"TIME":   Time,
	"DATE":   Date,
	"STRING": {Kind: KindString, Category: CategoryElementary},
}

// IsBitString reports whether t is an unsigned integer type. BYTE/WORD/
// DWORD/LWORD share the USINT/UINT/UDINT/ULINT types, so this is true for
// both families — the unsigned types that drive BIT_* vs BOOL_* opcode
// selection (spec.md §4.2).
func IsBitString(t *Type) bool {
	return t.Kind == KindUInt
}

// IsInteger reports whether t is Int or UInt.
func IsInteger(t *Type) bool { return t.Kind == KindInt || t.Kind == KindUInt }

// IsFloat reports whether t is Real.
func IsFloat(t *Type) bool { return t.Kind == KindReal }

// String renders a Type for diagnostics.
func (t *Type) String() string {
	switch t.Kind {
	case KindBool:
		return "BOOL"
	case KindInt:
		return fmt.Sprintf("INT%d", t.Width)
	case KindUInt:
		return fmt.Sprintf("UINT%d", t.Width)
	case KindReal:
		return fmt.Sprintf("REAL%d", t.Width)
	case KindString:
		return "STRING"
	case KindSubrange:
		return fmt.Sprintf("SUBRANGE(%d..%d)", t.Min, t.Max)
	case KindArray:
		return fmt.Sprintf("ARRAY OF %s", t.Elem)
	case KindEnumeration, KindStructure, KindFunctionBlock, KindFunction:
		return t.Name
	default:
		return "<unknown>"
	}
}

// Equal reports structural equality for the subset of comparisons the code
// generator needs (width+signedness+kind match, per the stack-depth and
// typed-arithmetic invariants in spec.md §8).
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt, KindUInt, KindReal:
		return a.Width == b.Width
	case KindBool, KindTime, KindDate, KindString:
		return true
	case KindEnumeration, KindStructure, KindFunctionBlock, KindFunction:
		return a.Name == b.Name
	default:
		return false
	}
}
