package codegen

import (
	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/types"
)

// compileCase lowers CASE selector OF arms ELSE body END_CASE. The selector
// is evaluated exactly once (spec.md §4.2, §8) by capturing it into a hidden
// temporary variable, then each arm tests the temporary.
func (fc *funcCompiler) compileCase(s *ast.CaseStmt) error {
	selType, err := fc.resolveType(&s.Selector)
	if err != nil {
		return err
	}
	tmpIdx := fc.allocTemp(selType)
	if err := fc.compileExpr(&s.Selector, selType); err != nil {
		return err
	}
	if err := fc.storeToVar(tmpIdx, selType); err != nil {
		return err
	}

	endLabel := fc.em.newLabel()
	for i := range s.Arms {
		arm := &s.Arms[i]
		nextLabel := fc.em.newLabel()

		if err := fc.compileCaseTest(tmpIdx, selType, arm.Labels); err != nil {
			return err
		}
		fc.em.emitJump(opcode.JmpIfNot, nextLabel)
		if err := fc.compileBlock(arm.Body); err != nil {
			return err
		}
		fc.em.emitJump(opcode.Jmp, endLabel)
		fc.em.markLabel(nextLabel)
	}
	if s.Else != nil {
		if err := fc.compileBlock(s.Else); err != nil {
			return err
		}
	}
	fc.em.markLabel(endLabel)
	return nil
}

// compileCaseTest emits code leaving a bool on the stack: true iff the
// captured selector matches any of labels (single values, inclusive ranges,
// or a comma-joined list — spec.md §4.2: "or an OR chain for multi-value
// arms").
func (fc *funcCompiler) compileCaseTest(tmpIdx uint16, selType *types.Type, labels []ast.CaseLabel) error {
	eq, _, _, le, _, ge, ok := compareOps(selType)
	if !ok {
		return errUnsupported("CASE over type " + selType.String())
	}

	for i, label := range labels {
		if label.RangeHi != nil {
			// lo <= selector <= hi, i.e. (selector >= lo) AND (selector <= hi)
			if err := fc.loadFromVar(tmpIdx, selType); err != nil {
				return err
			}
			if err := fc.compileExpr(&label.Value, selType); err != nil {
				return err
			}
			fc.em.emitCompare(ge)
			if err := fc.loadFromVar(tmpIdx, selType); err != nil {
				return err
			}
			if err := fc.compileExpr(label.RangeHi, selType); err != nil {
				return err
			}
			fc.em.emitCompare(le)
			fc.em.emitBinary(opcode.BoolAnd)
		} else {
			if err := fc.loadFromVar(tmpIdx, selType); err != nil {
				return err
			}
			if err := fc.compileExpr(&label.Value, selType); err != nil {
				return err
			}
			fc.em.emitCompare(eq)
		}
		if i > 0 {
			fc.em.emitBinary(opcode.BoolOr)
		}
	}
	return nil
}
