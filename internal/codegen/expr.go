package codegen

import (
	"math"

	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/stdlib"
	"github.com/scanloop/stplc/internal/types"
)

// isDefaultLiteral reports whether e is a literal with no type pinned by the
// analyzer, meaning codegen is free to infer its type from context.
func isDefaultLiteral(e *ast.Expr) bool {
	return e.Literal != nil && e.Literal.Type == nil
}

// resolveType infers the type an expression evaluates to. Variables carry
// their declared type; literals carry the analyzer-assigned type when
// present, otherwise a context-free default; unary/binary expressions
// inherit from whichever operand is NOT a context-free literal, enforcing
// the "both operands share (width, signedness, kind)" invariant (spec.md §8)
// by propagating the more specific side.
func (fc *funcCompiler) resolveType(e *ast.Expr) (*types.Type, error) {
	switch {
	case e.Ident != nil:
		t, ok := fc.varType(e.Ident.Name)
		if !ok {
			return nil, errUndeclared(e.Ident.Name)
		}
		return t, nil
	case e.Literal != nil:
		if e.Literal.Type != nil {
			return e.Literal.Type, nil
		}
		switch e.Literal.Kind {
		case ast.LitBool:
			return types.Bool, nil
		case ast.LitReal:
			return types.LReal, nil
		default:
			return types.DInt, nil
		}
	case e.Unary != nil:
		return fc.resolveType(&e.Unary.Operand)
	case e.Binary != nil:
		switch e.Binary.Op {
		case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
			// A comparison's result is always BOOL regardless of the
			// (numeric) type its own operands are compiled as (spec.md
			// §4.2) — callers that need the operand type use
			// resolveOperandType directly.
			return types.Bool, nil
		case ast.BinAnd, ast.BinOr, ast.BinXor:
			ot, err := fc.resolveOperandType(&e.Binary.Left, &e.Binary.Right)
			if err != nil {
				return nil, err
			}
			if ot.Kind == types.KindBool {
				// AND/OR/XOR over BOOL operands (plain booleans or
				// comparison results) produce BOOL (spec.md §4.2).
				return types.Bool, nil
			}
			return ot, nil
		default:
			return fc.resolveOperandType(&e.Binary.Left, &e.Binary.Right)
		}
	case e.Call != nil:
		entry, ok := stdlib.Lookup(e.Call.Name)
		if !ok {
			return nil, errUnsupported("unknown builtin: " + e.Call.Name)
		}
		return entry.Result, nil
	default:
		return nil, errUnsupported("empty expression")
	}
}

// resolveOperandType infers the shared type of a binary expression's two
// operands directly from the operands themselves — independent of whatever
// type a caller wants the expression's overall result produced as. This
// matters because a comparison's operand type and result type differ (`x >
// 5` operates on x's DInt operands but always yields BOOL), so operand type
// cannot be derived from resolveType's result for the node as a whole.
func (fc *funcCompiler) resolveOperandType(left, right *ast.Expr) (*types.Type, error) {
	lt, err := fc.resolveType(left)
	if err != nil {
		return nil, err
	}
	if isDefaultLiteral(left) && !isDefaultLiteral(right) {
		return fc.resolveType(right)
	}
	return lt, nil
}

// compileExpr emits code that pushes e's value as expect (expect must be
// the type resolveType would assign, or a type it can be folded/loaded as).
func (fc *funcCompiler) compileExpr(e *ast.Expr, expect *types.Type) error {
	switch {
	case e.Ident != nil:
		return fc.compileIdent(e.Ident, expect)
	case e.Literal != nil:
		return fc.compileLiteral(e.Literal, expect)
	case e.Unary != nil:
		return fc.compileUnary(e.Unary, expect)
	case e.Binary != nil:
		return fc.compileBinary(e.Binary, expect)
	case e.Call != nil:
		return fc.compileCall(e.Call)
	default:
		return errUnsupported("empty expression")
	}
}

func (fc *funcCompiler) compileIdent(id *ast.IdentExpr, expect *types.Type) error {
	idx, ok := fc.varIndex(id.Name)
	if !ok {
		return errUndeclared(id.Name)
	}
	load, _ := loadStoreOps(expect)
	if load == 0 {
		return errUnsupported("load of type " + expect.String())
	}
	fc.em.emitLoadVar(load, idx)
	return nil
}

func (fc *funcCompiler) compileLiteral(lit *ast.Literal, expect *types.Type) error {
	if expect.Kind == types.KindBool {
		fc.em.emitLoadBool(lit.Bool)
		return nil
	}
	if types.IsFloat(expect) {
		if expect.Width == 64 {
			idx := fc.pool.Add(container.F64Const(litFloat(lit)))
			fc.em.emitLoadConst(opcode.LoadConstF64, idx)
		} else {
			idx := fc.pool.Add(container.F32Const(float32(litFloat(lit))))
			fc.em.emitLoadConst(opcode.LoadConstF32, idx)
		}
		return nil
	}
	if types.IsInteger(expect) {
		v := lit.Int
		if is64(expect) {
			var entry container.ConstEntry
			if expect.Kind == types.KindUInt {
				entry = container.U64Const(uint64(v))
			} else {
				entry = container.I64Const(v)
			}
			idx := fc.pool.Add(entry)
			fc.em.emitLoadConst(opcode.LoadConstI64, idx)
			return nil
		}
		if err := checkIntRange(v, expect); err != nil {
			return err
		}
		var entry container.ConstEntry
		if expect.Kind == types.KindUInt {
			entry = container.U32Const(uint32(v))
		} else {
			entry = container.I32Const(int32(v))
		}
		idx := fc.pool.Add(entry)
		fc.em.emitLoadConst(opcode.LoadConstI32, idx)
		return nil
	}
	return errUnsupported("literal of type " + expect.String())
}

func litFloat(lit *ast.Literal) float64 {
	if lit.Kind == ast.LitReal {
		return lit.Real
	}
	return float64(lit.Int)
}

// checkIntRange enforces spec.md's ConstantOverflow for narrow constants
// that cannot possibly fit in their declared width even after the eventual
// TRUNC_* at assignment (the pool itself always stores 32 bits for widths
// <= 32; this guards against literals that overflow the *pool* entry's
// natural home, i.e. anything outside a 32-bit range).
func checkIntRange(v int64, t *types.Type) error {
	if t.Kind == types.KindUInt {
		if v < 0 || v > math.MaxUint32 {
			return errOverflow("unsigned literal out of 32-bit range")
		}
		return nil
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return errOverflow("signed literal out of 32-bit range")
	}
	return nil
}

func (fc *funcCompiler) compileUnary(u *ast.UnaryExpr, expect *types.Type) error {
	// Constant folding: a literal negation never emits NEG_I32 — the
	// negative value is folded directly into the pool entry (spec.md §4.2,
	// §8: "literal integer negation is folded at compile time").
	if u.Op == ast.UnaryNeg && u.Operand.Literal != nil && u.Operand.Literal.Kind != ast.LitBool {
		folded := *u.Operand.Literal
		if folded.Kind == ast.LitReal {
			folded.Real = -folded.Real
		} else {
			folded.Int = -folded.Int
		}
		return fc.compileLiteral(&folded, expect)
	}

	if err := fc.compileExpr(&u.Operand, expect); err != nil {
		return err
	}

	switch u.Op {
	case ast.UnaryNeg:
		_, _, _, _, _, neg, ok := arithOps(expect)
		if !ok {
			return errUnsupported("negation of type " + expect.String())
		}
		fc.em.emitUnary(neg)
		return nil
	case ast.UnaryNot:
		if expect.Kind == types.KindBool {
			fc.em.emitUnary(opcode.BoolNot)
			return nil
		}
		// Signed integer NOT is bitwise-typed NOT_I32/NOT_I64 per the
		// resolved Open Question in spec.md §9.
		if op, ok := signedNotOp(expect); ok {
			fc.em.emitUnary(op)
			return nil
		}
		// Unsigned bit-string NOT: BIT_NOT_* followed by width truncation,
		// applied twice as spec.md §4.2 requires ("width enforcement on both
		// produced value and stored value").
		if _, _, _, not, ok := bitwiseOps(expect); ok {
			fc.em.emitUnary(not)
			if tr, ok := truncOp(expect); ok {
				fc.em.emitUnary(tr)
			}
			return nil
		}
		return errUnsupported("NOT of type " + expect.String())
	default:
		return errUnsupported("unknown unary operator")
	}
}

func (fc *funcCompiler) compileBinary(b *ast.BinaryExpr, expect *types.Type) error {
	if b.Op == ast.BinExpt {
		if err := fc.compileExpr(&b.Left, expect); err != nil {
			return err
		}
		if err := fc.compileExpr(&b.Right, expect); err != nil {
			return err
		}
		fc.em.emitBuiltin(stdlib.ExptI32ID, 2)
		return nil
	}

	// A comparison's operands carry their own type, independent of whatever
	// type the caller wants the BOOL result produced as (spec.md §4.2):
	// without this, a boolean combinator over comparison results — e.g.
	// `(x>5) AND (y>3)` — would force expect=BOOL down into the
	// comparisons' numeric operands. Arithmetic and bitwise AND/OR/XOR have
	// no such split: their operand type and result type are the same, so
	// they keep using expect directly.
	operandType := expect
	if isComparisonOp(b.Op) {
		t, err := fc.resolveOperandType(&b.Left, &b.Right)
		if err != nil {
			return err
		}
		operandType = t
	}

	if err := fc.compileExpr(&b.Left, operandType); err != nil {
		return err
	}
	if err := fc.compileExpr(&b.Right, operandType); err != nil {
		return err
	}

	switch b.Op {
	case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinMod:
		add, sub, mul, div, mod, _, ok := arithOps(operandType)
		if !ok {
			return errUnsupported("arithmetic on type " + operandType.String())
		}
		op := map[ast.BinaryOp]opcode.Op{ast.BinAdd: add, ast.BinSub: sub, ast.BinMul: mul, ast.BinDiv: div, ast.BinMod: mod}[b.Op]
		if op == 0 && b.Op == ast.BinMod && mod == 0 {
			return errUnsupported("MOD on floating point")
		}
		fc.em.emitBinary(op)
		return nil
	case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		eq, ne, lt, le, gt, ge, ok := compareOps(operandType)
		if !ok {
			return errUnsupported("comparison on type " + operandType.String())
		}
		op := map[ast.BinaryOp]opcode.Op{ast.BinEq: eq, ast.BinNe: ne, ast.BinLt: lt, ast.BinLe: le, ast.BinGt: gt, ast.BinGe: ge}[b.Op]
		fc.em.emitCompare(op)
		return nil
	case ast.BinAnd, ast.BinOr, ast.BinXor:
		if operandType.Kind == types.KindBool {
			op := map[ast.BinaryOp]opcode.Op{ast.BinAnd: opcode.BoolAnd, ast.BinOr: opcode.BoolOr, ast.BinXor: opcode.BoolXor}[b.Op]
			fc.em.emitBinary(op)
			return nil
		}
		and, or, xor, _, ok := bitwiseOps(operandType)
		if !ok {
			return errUnsupported("AND/OR/XOR on type " + operandType.String())
		}
		op := map[ast.BinaryOp]opcode.Op{ast.BinAnd: and, ast.BinOr: or, ast.BinXor: xor}[b.Op]
		fc.em.emitBinary(op)
		return nil
	default:
		return errUnsupported("unknown binary operator")
	}
}

// isComparisonOp reports whether op always produces BOOL from operands of
// some other (possibly non-BOOL) type.
func isComparisonOp(op ast.BinaryOp) bool {
	switch op {
	case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		return true
	default:
		return false
	}
}

func (fc *funcCompiler) compileCall(call *ast.CallExpr) error {
	entry, ok := stdlib.Lookup(call.Name)
	if !ok {
		return errUnsupported("unknown builtin: " + call.Name)
	}
	if len(call.Args) != len(entry.Params) {
		return errUnsupported("wrong argument count for " + call.Name)
	}
	for i, arg := range call.Args {
		if err := fc.compileExpr(&arg, entry.Params[i]); err != nil {
			return err
		}
	}
	fc.em.emitBuiltin(entry.ID, len(entry.Params))
	return nil
}
