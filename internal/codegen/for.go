package codegen

import (
	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/types"
)

// compileFor lowers FOR i := from TO to [BY step] DO body END_FOR
// (spec.md §4.2). When step is a literal (including the implicit default of
// +1), its sign is known at compile time and the loop head is a single
// comparison. Otherwise the sign is tested at runtime on every iteration, so
// a negative or positive BY expression both terminate correctly.
func (fc *funcCompiler) compileFor(s *ast.ForStmt) error {
	idx, ok := fc.varIndex(s.Var)
	if !ok {
		return errUndeclared(s.Var)
	}
	t, _ := fc.varType(s.Var)

	if err := fc.compileExpr(&s.From, t); err != nil {
		return err
	}
	if err := fc.storeToVar(idx, t); err != nil {
		return err
	}

	toIdx := fc.allocTemp(t)
	if err := fc.compileExpr(&s.To, t); err != nil {
		return err
	}
	if err := fc.storeToVar(toIdx, t); err != nil {
		return err
	}

	loopLabel := fc.em.newLabel()
	endLabel := fc.em.newLabel()

	if s.Step == nil {
		return fc.compileForFixedStep(s, idx, toIdx, t, 1, loopLabel, endLabel)
	}
	if lit := s.Step.Literal; lit != nil && lit.Kind != ast.LitReal {
		return fc.compileForFixedStep(s, idx, toIdx, t, lit.Int, loopLabel, endLabel)
	}
	return fc.compileForDynamicStep(s, idx, toIdx, t, loopLabel, endLabel)
}

func (fc *funcCompiler) compileForFixedStep(s *ast.ForStmt, idx, toIdx uint16, t *types.Type, step int64, loopLabel, endLabel int) error {
	_, _, _, le, _, ge, ok := compareOps(t)
	if !ok {
		return errUnsupported("FOR over type " + t.String())
	}

	fc.em.markLabel(loopLabel)
	if err := fc.loadFromVar(idx, t); err != nil {
		return err
	}
	if err := fc.loadFromVar(toIdx, t); err != nil {
		return err
	}
	if step >= 0 {
		fc.em.emitCompare(le)
	} else {
		fc.em.emitCompare(ge)
	}
	fc.em.emitJump(opcode.JmpIfNot, endLabel)

	fc.pushLoop(endLabel)
	err := fc.compileBlock(s.Body)
	fc.popLoop()
	if err != nil {
		return err
	}

	if err := fc.incrementByConst(idx, t, step); err != nil {
		return err
	}
	fc.em.emitJump(opcode.Jmp, loopLabel)
	fc.em.markLabel(endLabel)
	return nil
}

func (fc *funcCompiler) compileForDynamicStep(s *ast.ForStmt, idx, toIdx uint16, t *types.Type, loopLabel, endLabel int) error {
	stepIdx := fc.allocTemp(t)
	if err := fc.compileExpr(s.Step, t); err != nil {
		return err
	}
	if err := fc.storeToVar(stepIdx, t); err != nil {
		return err
	}

	_, _, _, le, gt, ge, ok := compareOps(t)
	if !ok {
		return errUnsupported("FOR over type " + t.String())
	}

	fc.em.markLabel(loopLabel)

	// condA = step > 0 AND i <= to
	if err := fc.loadFromVar(stepIdx, t); err != nil {
		return err
	}
	if err := fc.loadZero(t); err != nil {
		return err
	}
	fc.em.emitCompare(gt)
	if err := fc.loadFromVar(idx, t); err != nil {
		return err
	}
	if err := fc.loadFromVar(toIdx, t); err != nil {
		return err
	}
	fc.em.emitCompare(le)
	fc.em.emitBinary(opcode.BoolAnd)

	// condB = step <= 0 AND i >= to
	if err := fc.loadFromVar(stepIdx, t); err != nil {
		return err
	}
	if err := fc.loadZero(t); err != nil {
		return err
	}
	fc.em.emitCompare(le)
	if err := fc.loadFromVar(idx, t); err != nil {
		return err
	}
	if err := fc.loadFromVar(toIdx, t); err != nil {
		return err
	}
	fc.em.emitCompare(ge)
	fc.em.emitBinary(opcode.BoolAnd)

	// cond = condA OR condB
	fc.em.emitBinary(opcode.BoolOr)
	fc.em.emitJump(opcode.JmpIfNot, endLabel)

	fc.pushLoop(endLabel)
	err := fc.compileBlock(s.Body)
	fc.popLoop()
	if err != nil {
		return err
	}

	if err := fc.loadFromVar(idx, t); err != nil {
		return err
	}
	if err := fc.loadFromVar(stepIdx, t); err != nil {
		return err
	}
	add, _, _, _, _, _, _ := arithOps(t)
	fc.em.emitBinary(add)
	if err := fc.storeToVar(idx, t); err != nil {
		return err
	}
	fc.em.emitJump(opcode.Jmp, loopLabel)
	fc.em.markLabel(endLabel)
	return nil
}

// loadZero pushes a zero constant of type t, used by the dynamic-step sign
// test.
func (fc *funcCompiler) loadZero(t *types.Type) error {
	lit := &ast.Literal{Type: t}
	if types.IsFloat(t) {
		lit.Kind = ast.LitReal
		lit.Real = 0
	} else {
		lit.Kind = ast.LitInt
		lit.Int = 0
	}
	return fc.compileLiteral(lit, t)
}

// incrementByConst emits `var := var + step` for a compile-time-known step.
func (fc *funcCompiler) incrementByConst(idx uint16, t *types.Type, step int64) error {
	if err := fc.loadFromVar(idx, t); err != nil {
		return err
	}
	lit := &ast.Literal{Type: t, Kind: ast.LitInt, Int: step}
	if err := fc.compileLiteral(lit, t); err != nil {
		return err
	}
	add, _, _, _, _, _, ok := arithOps(t)
	if !ok {
		return errUnsupported("FOR step on type " + t.String())
	}
	fc.em.emitBinary(add)
	return fc.storeToVar(idx, t)
}
