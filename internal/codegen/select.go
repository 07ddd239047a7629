package codegen

import (
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/types"
)

// is64 reports whether t occupies a dedicated 64-bit opcode family; 8/16/32
// bit integers all execute through the 32-bit family with truncation at
// assignment (spec.md §4.2).
func is64(t *types.Type) bool {
	return (t.Kind == types.KindInt || t.Kind == types.KindUInt) && t.Width == 64
}

// loadStoreOps returns the (load, store) opcode pair for t's stack
// representation.
func loadStoreOps(t *types.Type) (load, store opcode.Op) {
	switch t.Kind {
	case types.KindBool:
		return opcode.LoadVarI32, opcode.StoreVarI32
	case types.KindInt, types.KindUInt:
		if is64(t) {
			return opcode.LoadVarI64, opcode.StoreVarI64
		}
		return opcode.LoadVarI32, opcode.StoreVarI32
	case types.KindReal:
		if t.Width == 64 {
			return opcode.LoadVarF64, opcode.StoreVarF64
		}
		return opcode.LoadVarF32, opcode.StoreVarF32
	default:
		return 0, 0
	}
}

// truncOp returns the TRUNC_* opcode required before storing into a
// narrower-than-32-bit target, or (0, false) if t needs no truncation
// (spec.md §4.2: "8/16-bit assignments emit a TRUNC_{I|U}{8|16} immediately
// before STORE_VAR_I32").
func truncOp(t *types.Type) (opcode.Op, bool) {
	if t.Kind != types.KindInt && t.Kind != types.KindUInt {
		return 0, false
	}
	switch {
	case t.Kind == types.KindInt && t.Width == 8:
		return opcode.TruncI8, true
	case t.Kind == types.KindUInt && t.Width == 8:
		return opcode.TruncU8, true
	case t.Kind == types.KindInt && t.Width == 16:
		return opcode.TruncI16, true
	case t.Kind == types.KindUInt && t.Width == 16:
		return opcode.TruncU16, true
	default:
		return 0, false
	}
}

// arithOps returns (add, sub, mul, div, mod, neg) for integer/float type t.
func arithOps(t *types.Type) (add, sub, mul, div, mod, neg opcode.Op, ok bool) {
	switch {
	case types.IsInteger(t) && is64(t):
		return opcode.AddI64, opcode.SubI64, opcode.MulI64, opcode.DivI64, opcode.ModI64, opcode.NegI64, true
	case types.IsInteger(t):
		return opcode.AddI32, opcode.SubI32, opcode.MulI32, opcode.DivI32, opcode.ModI32, opcode.NegI32, true
	case types.IsFloat(t) && t.Width == 64:
		return opcode.AddF64, opcode.SubF64, opcode.MulF64, opcode.DivF64, 0, 0, true
	case types.IsFloat(t):
		return opcode.AddF32, opcode.SubF32, opcode.MulF32, opcode.DivF32, 0, 0, true
	default:
		return 0, 0, 0, 0, 0, 0, false
	}
}

// compareOps returns (eq, ne, lt, le, gt, ge) for type t, selecting signed vs
// unsigned vs float per spec.md §4.2 ("Comparisons pick signed vs unsigned
// based on the operand type").
func compareOps(t *types.Type) (eq, ne, lt, le, gt, ge opcode.Op, ok bool) {
	switch {
	case t.Kind == types.KindInt && is64(t):
		return opcode.EqI64, opcode.NeI64, opcode.LtI64, opcode.LeI64, opcode.GtI64, opcode.GeI64, true
	case t.Kind == types.KindInt:
		return opcode.EqI32, opcode.NeI32, opcode.LtI32, opcode.LeI32, opcode.GtI32, opcode.GeI32, true
	case t.Kind == types.KindUInt && is64(t):
		return opcode.EqU64, opcode.NeU64, opcode.LtU64, opcode.LeU64, opcode.GtU64, opcode.GeU64, true
	case t.Kind == types.KindUInt:
		return opcode.EqU32, opcode.NeU32, opcode.LtU32, opcode.LeU32, opcode.GtU32, opcode.GeU32, true
	case t.Kind == types.KindReal && t.Width == 64:
		return opcode.EqF64, opcode.NeF64, opcode.LtF64, opcode.LeF64, opcode.GtF64, opcode.GeF64, true
	case t.Kind == types.KindReal:
		return opcode.EqF32, opcode.NeF32, opcode.LtF32, opcode.LeF32, opcode.GtF32, opcode.GeF32, true
	case t.Kind == types.KindBool:
		return opcode.EqI32, opcode.NeI32, opcode.LtI32, opcode.LeI32, opcode.GtI32, opcode.GeI32, true
	default:
		return 0, 0, 0, 0, 0, 0, false
	}
}

// bitwiseOps returns (and, or, xor, not) for an unsigned bit-string type.
func bitwiseOps(t *types.Type) (and, or, xor, not opcode.Op, ok bool) {
	if t.Kind != types.KindUInt {
		return 0, 0, 0, 0, false
	}
	if is64(t) {
		return opcode.BitAnd64, opcode.BitOr64, opcode.BitXor64, opcode.BitNot64, true
	}
	return opcode.BitAnd32, opcode.BitOr32, opcode.BitXor32, opcode.BitNot32, true
}

// signedNotOp returns NOT_I32/NOT_I64 for a signed integer, per the
// resolved Open Question in spec.md §9: "signed NOT -> NOT_I32 (0x40);
// unsigned bit-string NOT -> BIT_NOT_32 (0x5B) + TRUNC_*".
func signedNotOp(t *types.Type) (opcode.Op, bool) {
	if t.Kind != types.KindInt {
		return 0, false
	}
	if is64(t) {
		return opcode.NotI64, true
	}
	return opcode.NotI32, true
}
