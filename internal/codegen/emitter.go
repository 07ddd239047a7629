package codegen

import (
	"encoding/binary"

	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/opcode"
)

// emitter accumulates one function's bytecode, tracking operand-stack depth
// and pending jump fixups (spec.md §4.2 "Stack-depth analysis", §9
// "Back-patching of jumps").
type emitter struct {
	buf      []byte
	depth    int
	maxDepth int

	labelPos []int // -1 until marked
	fixups   []fixup
}

type fixup struct {
	operandPos int // position of the first of the two operand bytes
	label      int
}

func newEmitter() *emitter {
	return &emitter{}
}

// newLabel allocates a fresh, as-yet-unresolved label.
func (e *emitter) newLabel() int {
	e.labelPos = append(e.labelPos, -1)
	return len(e.labelPos) - 1
}

// markLabel resolves label to the current end-of-buffer position.
func (e *emitter) markLabel(label int) {
	e.labelPos[label] = len(e.buf)
}

func (e *emitter) push() {
	e.depth++
	if e.depth > e.maxDepth {
		e.maxDepth = e.depth
	}
}

func (e *emitter) pop() {
	e.depth--
}

func (e *emitter) emitOp(op opcode.Op) {
	e.buf = append(e.buf, byte(op))
}

func (e *emitter) emitU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[0], b[1])
}

// emitLoadConst emits a LOAD_CONST_* instruction, pushing one value.
func (e *emitter) emitLoadConst(op opcode.Op, idx uint16) {
	e.emitOp(op)
	e.emitU16(idx)
	e.push()
}

// emitLoadVar emits a LOAD_VAR_* instruction, pushing one value.
func (e *emitter) emitLoadVar(op opcode.Op, idx uint16) {
	e.emitOp(op)
	e.emitU16(idx)
	e.push()
}

// emitStoreVar emits a STORE_VAR_* instruction, popping one value.
func (e *emitter) emitStoreVar(op opcode.Op, idx uint16) {
	e.emitOp(op)
	e.emitU16(idx)
	e.pop()
}

// emitLoadBool emits LOAD_TRUE/LOAD_FALSE, pushing one value.
func (e *emitter) emitLoadBool(v bool) {
	if v {
		e.emitOp(opcode.LoadTrue)
	} else {
		e.emitOp(opcode.LoadFalse)
	}
	e.push()
}

// emitUnary emits a unary opcode (NEG/NOT/BIT_NOT/BOOL_NOT/TRUNC_*): pops one,
// pushes one, net zero depth change.
func (e *emitter) emitUnary(op opcode.Op) {
	e.emitOp(op)
}

// emitBinary emits a binary opcode: pops two, pushes one, net depth -1.
func (e *emitter) emitBinary(op opcode.Op) {
	e.emitOp(op)
	e.pop()
}

// emitCompare emits a comparison opcode: same stack effect as emitBinary.
func (e *emitter) emitCompare(op opcode.Op) {
	e.emitBinary(op)
}

// emitJump emits JMP or JMP_IF_NOT with a placeholder offset, recording a
// fixup to be resolved once label is marked. JMP_IF_NOT pops the condition.
func (e *emitter) emitJump(op opcode.Op, label int) {
	e.emitOp(op)
	operandPos := len(e.buf)
	e.emitU16(0) // placeholder
	e.fixups = append(e.fixups, fixup{operandPos: operandPos, label: label})
	if op == opcode.JmpIfNot {
		e.pop()
	}
}

// emitBuiltin emits BUILTIN func_id, popping numArgs and pushing one result.
func (e *emitter) emitBuiltin(funcID uint16, numArgs int) {
	e.emitOp(opcode.Builtin)
	e.emitU16(funcID)
	for i := 0; i < numArgs; i++ {
		e.pop()
	}
	e.push()
}

// emitRetVoid emits RET_VOID.
func (e *emitter) emitRetVoid() {
	e.emitOp(opcode.RetVoid)
}

// resolve backpatches every recorded fixup. Offsets are signed 16-bit,
// relative to the first byte after the 2-byte offset operand (spec.md §4.1).
func (e *emitter) resolve() error {
	for _, f := range e.fixups {
		target := e.labelPos[f.label]
		if target < 0 {
			return errUnsupported("internal: unresolved jump label")
		}
		offset := target - (f.operandPos + 2)
		if offset < -32768 || offset > 32767 {
			return errOverflow("jump offset exceeds 16-bit range")
		}
		binary.LittleEndian.PutUint16(e.buf[f.operandPos:f.operandPos+2], uint16(int16(offset)))
	}
	return nil
}

// constIndex adds v to pool and returns its (deduplicated) index.
func constIndex(pool *container.Pool, v container.ConstEntry) uint16 {
	return pool.Add(v)
}
