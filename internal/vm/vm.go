// Package vm implements the deterministic scan-cycle virtual machine that
// executes a compiled container (spec.md §4.3). The VM is a single-threaded,
// cooperative bytecode interpreter: every instruction either advances the
// program counter or latches a trap, and no instruction blocks.
package vm

import (
	"encoding/binary"
	"math"

	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/stdlib"
)

// VM executes functions from a single loaded container. Its operand stack
// is reused across every function/program-instance invocation; variable
// storage is owned by the caller (spec.md §5: "no cross-instance aliasing
// of variables") and passed into Execute per call.
type VM struct {
	container *container.Container
	stack     *operandStack

	state State
	fault *FaultContext
}

// New returns a VM in the Ready state, its operand stack sized from the
// container header's max_stack_depth (spec.md §3 "Stack/vars/... arrays:
// caller-allocated, sized from the container header").
func New(c *container.Container) *VM {
	return &VM{
		container: c,
		stack:     newOperandStack(int(c.Header.MaxStackDepth)),
		state:     StateReady,
	}
}

// State reports the VM's current lifecycle state.
func (vm *VM) State() State { return vm.state }

// Fault returns the latched fault context, or nil if the VM has never
// trapped since construction or the last Reset.
func (vm *VM) Fault() *FaultContext { return vm.fault }

// Start transitions Ready -> Running. Starting a Faulted or already-Running
// VM is a programming error the caller must avoid; Start reports it as a
// trap-free bool rather than panicking, matching the "every error is a
// value" policy (spec.md §7).
func (vm *VM) Start() bool {
	if vm.state != StateReady {
		return false
	}
	vm.state = StateRunning
	return true
}

// Reset clears a latched fault and returns the VM to Ready, per spec.md
// §4.3 ("Faulted is terminal until explicit reset").
func (vm *VM) Reset() {
	vm.state = StateReady
	vm.fault = nil
	vm.stack.reset()
}

// Execute runs functionID to completion (its RET_VOID), reading and writing
// vars in place. vars must be sized to at least the function's num_locals;
// the scheduler owns allocating and persisting this slice across rounds
// (spec.md §6 "Persisted state between rounds: the variable-table buffer").
//
// On a trap, Execute latches the VM into Faulted and returns the trap. While
// the VM is Faulted, Execute runs nothing and returns the latched trap until
// Reset clears it (spec.md §4.3 "Trap latching").
func (vm *VM) Execute(functionID uint16, vars []uint64) *Trap {
	if vm.state == StateFaulted && vm.fault != nil {
		return vm.fault.Trap
	}
	if int(functionID) >= len(vm.container.Functions) {
		return vm.fail(functionID, 0, &Trap{Kind: TrapInvalidFunctionId, Operand: uint32(functionID)})
	}
	bc, err := vm.container.FunctionBytecode(functionID)
	if err != nil {
		return vm.fail(functionID, 0, &Trap{Kind: TrapInvalidFunctionId, Operand: uint32(functionID)})
	}

	vm.stack.reset()
	pc := 0
	for {
		if pc >= len(bc) {
			// A well-formed function always ends in RET_VOID; running off
			// the end is itself a malformed-instruction condition.
			return vm.fail(functionID, pc, &Trap{Kind: TrapInvalidInstruction})
		}
		op := opcode.Op(bc[pc])
		opPC := pc
		pc++

		switch op {
		case opcode.RetVoid:
			return nil

		case opcode.LoadConstI32, opcode.LoadConstI64, opcode.LoadConstF32, opcode.LoadConstF64:
			idx, ok := readU16(bc, pc)
			if !ok {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction})
			}
			pc += 2
			width := 4
			if op == opcode.LoadConstI64 || op == opcode.LoadConstF64 {
				width = 8
			}
			bits, err := vm.container.RawBits(idx, width)
			if err != nil {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidConstantIndex, Operand: uint32(idx)})
			}
			if tr := vm.stack.push(bits); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.LoadTrue:
			if tr := vm.stack.pushBool(true); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.LoadFalse:
			if tr := vm.stack.pushBool(false); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.LoadVarI32, opcode.LoadVarI64, opcode.LoadVarF32, opcode.LoadVarF64:
			idx, ok := readU16(bc, pc)
			if !ok {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction})
			}
			pc += 2
			if int(idx) >= len(vars) {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidVariableIndex, Operand: uint32(idx)})
			}
			if tr := vm.stack.push(vars[idx]); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.StoreVarI32, opcode.StoreVarI64, opcode.StoreVarF32, opcode.StoreVarF64:
			idx, ok := readU16(bc, pc)
			if !ok {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction})
			}
			pc += 2
			v, tr := vm.stack.pop()
			if tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
			if int(idx) >= len(vars) {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidVariableIndex, Operand: uint32(idx)})
			}
			vars[idx] = v

		case opcode.TruncI8, opcode.TruncU8, opcode.TruncI16, opcode.TruncU16:
			if tr := vm.execTrunc(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.AddI32, opcode.SubI32, opcode.MulI32, opcode.DivI32, opcode.ModI32, opcode.NegI32:
			if tr := vm.execArithI32(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.AddI64, opcode.SubI64, opcode.MulI64, opcode.DivI64, opcode.ModI64, opcode.NegI64:
			if tr := vm.execArithI64(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.AddF32, opcode.SubF32, opcode.MulF32, opcode.DivF32:
			if tr := vm.execArithF32(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.AddF64, opcode.SubF64, opcode.MulF64, opcode.DivF64:
			if tr := vm.execArithF64(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.NotI32, opcode.NotI64:
			if tr := vm.execNot(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.BoolAnd, opcode.BoolOr, opcode.BoolXor, opcode.BoolNot:
			if tr := vm.execBool(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.BitAnd32, opcode.BitOr32, opcode.BitXor32, opcode.BitNot32:
			if tr := vm.execBit32(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.BitAnd64, opcode.BitOr64, opcode.BitXor64, opcode.BitNot64:
			if tr := vm.execBit64(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.EqI32, opcode.NeI32, opcode.LtI32, opcode.LeI32, opcode.GtI32, opcode.GeI32:
			if tr := vm.execCompareI32(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.EqU32, opcode.NeU32, opcode.LtU32, opcode.LeU32, opcode.GtU32, opcode.GeU32:
			if tr := vm.execCompareU32(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.EqI64, opcode.NeI64, opcode.LtI64, opcode.LeI64, opcode.GtI64, opcode.GeI64:
			if tr := vm.execCompareI64(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.EqU64, opcode.NeU64, opcode.LtU64, opcode.LeU64, opcode.GtU64, opcode.GeU64:
			if tr := vm.execCompareU64(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.EqF32, opcode.NeF32, opcode.LtF32, opcode.LeF32, opcode.GtF32, opcode.GeF32:
			if tr := vm.execCompareF32(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
		case opcode.EqF64, opcode.NeF64, opcode.LtF64, opcode.LeF64, opcode.GtF64, opcode.GeF64:
			if tr := vm.execCompareF64(op); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		case opcode.Jmp:
			offset, ok := readI16(bc, pc)
			if !ok {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction})
			}
			pc += 2
			pc += int(offset)

		case opcode.JmpIfNot:
			offset, ok := readI16(bc, pc)
			if !ok {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction})
			}
			pc += 2
			cond, tr := vm.stack.popBool()
			if tr != nil {
				return vm.fail(functionID, opPC, tr)
			}
			if !cond {
				pc += int(offset)
			}

		case opcode.Builtin:
			funcID, ok := readU16(bc, pc)
			if !ok {
				return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction})
			}
			pc += 2
			if tr := vm.execBuiltin(funcID); tr != nil {
				return vm.fail(functionID, opPC, tr)
			}

		default:
			return vm.fail(functionID, opPC, &Trap{Kind: TrapInvalidInstruction, Operand: uint32(op)})
		}
	}
}

func (vm *VM) fail(functionID uint16, pc int, trap *Trap) *Trap {
	vm.state = StateFaulted
	vm.fault = &FaultContext{PC: pc, FunctionID: functionID, Trap: trap}
	return trap
}

func readU16(bc []byte, pc int) (uint16, bool) {
	if pc+2 > len(bc) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(bc[pc : pc+2]), true
}

func readI16(bc []byte, pc int) (int16, bool) {
	v, ok := readU16(bc, pc)
	return int16(v), ok
}

// execBuiltin dispatches BUILTIN func_id per spec.md §4.3: "consumes
// arguments from the stack (count and types determined by func_id) and
// pushes the result". EXPT_I32 is the only ABI-pinned builtin; the rest are
// the supplemented arithmetic catalog (SPEC_FULL.md §C.2).
func (vm *VM) execBuiltin(funcID uint16) *Trap {
	if _, ok := stdlib.ByID(funcID); !ok {
		return &Trap{Kind: TrapInvalidBuiltinFunction, Operand: uint32(funcID)}
	}

	switch funcID {
	case stdlib.ExptI32ID:
		b, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		a, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		if b < 0 {
			return &Trap{Kind: TrapNegativeExponent}
		}
		return vm.stack.pushI32(wrappingPowI32(a, uint32(b)))

	case stdlib.ExptI32ID + 1: // ABS_I32
		a, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		if a < 0 {
			a = -a
		}
		return vm.stack.pushI32(a)

	case stdlib.ExptI32ID + 2: // MIN_I32
		b, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		a, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		if b < a {
			a = b
		}
		return vm.stack.pushI32(a)

	case stdlib.ExptI32ID + 3: // MAX_I32
		b, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		a, tr := vm.stack.popI32()
		if tr != nil {
			return tr
		}
		if b > a {
			a = b
		}
		return vm.stack.pushI32(a)

	case stdlib.ExptI32ID + 4: // SQRT_F64
		a, tr := vm.stack.popF64()
		if tr != nil {
			return tr
		}
		return vm.stack.pushF64(math.Sqrt(a))

	default:
		return &Trap{Kind: TrapInvalidBuiltinFunction, Operand: uint32(funcID)}
	}
}

// wrappingPowI32 computes a**b with two's-complement wraparound on overflow,
// mirroring Rust's i32::wrapping_pow (spec.md §4.3: "pushes a.wrapping_pow(b
// as u32)").
func wrappingPowI32(a int32, b uint32) int32 {
	result := int32(1)
	base := a
	for b > 0 {
		if b&1 == 1 {
			result = result * base
		}
		base = base * base
		b >>= 1
	}
	return result
}
