package vm

import "github.com/scanloop/stplc/internal/opcode"

// execTrunc narrows the top-of-stack value to 8 or 16 bits, sign- or
// zero-extending it back into the 32-bit canonical slot (spec.md §4.1
// "reinject as 32-bit slot").
func (vm *VM) execTrunc(op opcode.Op) *Trap {
	v, tr := vm.stack.popI32()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.TruncI8:
		return vm.stack.pushI32(int32(int8(v)))
	case opcode.TruncU8:
		return vm.stack.pushI32(int32(uint8(v)))
	case opcode.TruncI16:
		return vm.stack.pushI32(int32(int16(v)))
	case opcode.TruncU16:
		return vm.stack.pushI32(int32(uint16(v)))
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

// execArithI32 implements ADD/SUB/MUL/DIV/MOD/NEG_I32 with wrapping
// semantics (spec.md §4.3: "Integer arithmetic uses wrapping semantics").
func (vm *VM) execArithI32(op opcode.Op) *Trap {
	if op == opcode.NegI32 {
		a, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		return vm.stack.pushI32(-a)
	}
	b, tr := vm.stack.popI32()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popI32()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.AddI32:
		return vm.stack.pushI32(a + b)
	case opcode.SubI32:
		return vm.stack.pushI32(a - b)
	case opcode.MulI32:
		return vm.stack.pushI32(a * b)
	case opcode.DivI32:
		if b == 0 {
			return &Trap{Kind: TrapDivideByZero}
		}
		return vm.stack.pushI32(a / b)
	case opcode.ModI32:
		if b == 0 {
			return &Trap{Kind: TrapDivideByZero}
		}
		return vm.stack.pushI32(a % b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execArithI64(op opcode.Op) *Trap {
	if op == opcode.NegI64 {
		a, tr := vm.stack.popI64()
		if tr != nil {
			return tr
		}
		return vm.stack.pushI64(-a)
	}
	b, tr := vm.stack.popI64()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popI64()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.AddI64:
		return vm.stack.pushI64(a + b)
	case opcode.SubI64:
		return vm.stack.pushI64(a - b)
	case opcode.MulI64:
		return vm.stack.pushI64(a * b)
	case opcode.DivI64:
		if b == 0 {
			return &Trap{Kind: TrapDivideByZero}
		}
		return vm.stack.pushI64(a / b)
	case opcode.ModI64:
		if b == 0 {
			return &Trap{Kind: TrapDivideByZero}
		}
		return vm.stack.pushI64(a % b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execArithF32(op opcode.Op) *Trap {
	b, tr := vm.stack.popF32()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popF32()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.AddF32:
		return vm.stack.pushF32(a + b)
	case opcode.SubF32:
		return vm.stack.pushF32(a - b)
	case opcode.MulF32:
		return vm.stack.pushF32(a * b)
	case opcode.DivF32:
		return vm.stack.pushF32(a / b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execArithF64(op opcode.Op) *Trap {
	b, tr := vm.stack.popF64()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popF64()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.AddF64:
		return vm.stack.pushF64(a + b)
	case opcode.SubF64:
		return vm.stack.pushF64(a - b)
	case opcode.MulF64:
		return vm.stack.pushF64(a * b)
	case opcode.DivF64:
		return vm.stack.pushF64(a / b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

// execNot implements signed-integer NOT_I32/NOT_I64, resolved to bitwise
// complement per the Open Question answer in spec.md §9 ("signed NOT ->
// NOT_I32 (0x40)").
func (vm *VM) execNot(op opcode.Op) *Trap {
	switch op {
	case opcode.NotI32:
		a, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		return vm.stack.pushI32(^a)
	case opcode.NotI64:
		a, tr := vm.stack.popI64()
		if tr != nil {
			return tr
		}
		return vm.stack.pushI64(^a)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execBool(op opcode.Op) *Trap {
	if op == opcode.BoolNot {
		a, tr := vm.stack.popBool()
		if tr != nil {
			return tr
		}
		return vm.stack.pushBool(!a)
	}
	b, tr := vm.stack.popBool()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popBool()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.BoolAnd:
		return vm.stack.pushBool(a && b)
	case opcode.BoolOr:
		return vm.stack.pushBool(a || b)
	case opcode.BoolXor:
		return vm.stack.pushBool(a != b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execBit32(op opcode.Op) *Trap {
	if op == opcode.BitNot32 {
		a, tr := vm.stack.popU32()
		if tr != nil {
			return tr
		}
		return vm.stack.pushU32(^a)
	}
	b, tr := vm.stack.popU32()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popU32()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.BitAnd32:
		return vm.stack.pushU32(a & b)
	case opcode.BitOr32:
		return vm.stack.pushU32(a | b)
	case opcode.BitXor32:
		return vm.stack.pushU32(a ^ b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execBit64(op opcode.Op) *Trap {
	if op == opcode.BitNot64 {
		a, tr := vm.stack.popU64()
		if tr != nil {
			return tr
		}
		return vm.stack.pushU64(^a)
	}
	b, tr := vm.stack.popU64()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popU64()
	if tr != nil {
		return tr
	}
	switch op {
	case opcode.BitAnd64:
		return vm.stack.pushU64(a & b)
	case opcode.BitOr64:
		return vm.stack.pushU64(a | b)
	case opcode.BitXor64:
		return vm.stack.pushU64(a ^ b)
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
}

func (vm *VM) execCompareI32(op opcode.Op) *Trap {
	b, tr := vm.stack.popI32()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popI32()
	if tr != nil {
		return tr
	}
	var r bool
	switch op {
	case opcode.EqI32:
		r = a == b
	case opcode.NeI32:
		r = a != b
	case opcode.LtI32:
		r = a < b
	case opcode.LeI32:
		r = a <= b
	case opcode.GtI32:
		r = a > b
	case opcode.GeI32:
		r = a >= b
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
	return vm.stack.pushBool(r)
}

func (vm *VM) execCompareU32(op opcode.Op) *Trap {
	b, tr := vm.stack.popU32()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popU32()
	if tr != nil {
		return tr
	}
	var r bool
	switch op {
	case opcode.EqU32:
		r = a == b
	case opcode.NeU32:
		r = a != b
	case opcode.LtU32:
		r = a < b
	case opcode.LeU32:
		r = a <= b
	case opcode.GtU32:
		r = a > b
	case opcode.GeU32:
		r = a >= b
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
	return vm.stack.pushBool(r)
}

func (vm *VM) execCompareI64(op opcode.Op) *Trap {
	b, tr := vm.stack.popI64()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popI64()
	if tr != nil {
		return tr
	}
	var r bool
	switch op {
	case opcode.EqI64:
		r = a == b
	case opcode.NeI64:
		r = a != b
	case opcode.LtI64:
		r = a < b
	case opcode.LeI64:
		r = a <= b
	case opcode.GtI64:
		r = a > b
	case opcode.GeI64:
		r = a >= b
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
	return vm.stack.pushBool(r)
}

func (vm *VM) execCompareU64(op opcode.Op) *Trap {
	b, tr := vm.stack.popU64()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popU64()
	if tr != nil {
		return tr
	}
	var r bool
	switch op {
	case opcode.EqU64:
		r = a == b
	case opcode.NeU64:
		r = a != b
	case opcode.LtU64:
		r = a < b
	case opcode.LeU64:
		r = a <= b
	case opcode.GtU64:
		r = a > b
	case opcode.GeU64:
		r = a >= b
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
	return vm.stack.pushBool(r)
}

func (vm *VM) execCompareF32(op opcode.Op) *Trap {
	b, tr := vm.stack.popF32()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popF32()
	if tr != nil {
		return tr
	}
	var r bool
	switch op {
	case opcode.EqF32:
		r = a == b
	case opcode.NeF32:
		r = a != b
	case opcode.LtF32:
		r = a < b
	case opcode.LeF32:
		r = a <= b
	case opcode.GtF32:
		r = a > b
	case opcode.GeF32:
		r = a >= b
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
	return vm.stack.pushBool(r)
}

func (vm *VM) execCompareF64(op opcode.Op) *Trap {
	b, tr := vm.stack.popF64()
	if tr != nil {
		return tr
	}
	a, tr := vm.stack.popF64()
	if tr != nil {
		return tr
	}
	var r bool
	switch op {
	case opcode.EqF64:
		r = a == b
	case opcode.NeF64:
		r = a != b
	case opcode.LtF64:
		r = a < b
	case opcode.LeF64:
		r = a <= b
	case opcode.GtF64:
		r = a > b
	case opcode.GeF64:
		r = a >= b
	default:
		return &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)}
	}
	return vm.stack.pushBool(r)
}
