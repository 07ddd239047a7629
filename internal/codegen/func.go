package codegen

import (
	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/types"
)

// funcCompiler lowers one POU body to bytecode. Variables are assigned
// dense 0-based indices in declaration order (spec.md §4.2); hidden
// compiler-internal temporaries (CASE selectors, FOR loop bounds) are
// appended after the declared variables in first-use order.
type funcCompiler struct {
	em   *emitter
	pool *container.Pool

	varIndex_ map[string]uint16
	varType_  map[string]*types.Type
	nextVar   uint16

	loopEnds []int // stack of end-of-loop labels, for EXIT
}

func newFuncCompiler(pool *container.Pool, vars []ast.VarDecl) *funcCompiler {
	fc := &funcCompiler{
		em:        newEmitter(),
		pool:      pool,
		varIndex_: make(map[string]uint16, len(vars)),
		varType_:  make(map[string]*types.Type, len(vars)),
	}
	for _, v := range vars {
		fc.varIndex_[v.Name] = fc.nextVar
		fc.varType_[v.Name] = v.Init.Type
		fc.nextVar++
	}
	return fc
}

func (fc *funcCompiler) varIndex(name string) (uint16, bool) {
	idx, ok := fc.varIndex_[name]
	return idx, ok
}

func (fc *funcCompiler) varType(name string) (*types.Type, bool) {
	t, ok := fc.varType_[name]
	return t, ok
}

// allocTemp reserves a fresh variable slot of type t for internal use (CASE
// selector capture, FOR loop bound/step capture) and returns its index.
func (fc *funcCompiler) allocTemp(t *types.Type) uint16 {
	idx := fc.nextVar
	fc.nextVar++
	return idx
}

// numVars returns the total variable count, declared plus temporaries —
// the value that becomes the container header's num_variables.
func (fc *funcCompiler) numVars() uint16 { return fc.nextVar }

// storeToVar emits the truncation (if narrower than 32 bits) and the
// STORE_VAR_* for target, assuming the value is already on the stack as
// target's canonical stack representation (spec.md §4.2).
func (fc *funcCompiler) storeToVar(idx uint16, t *types.Type) error {
	if tr, ok := truncOp(t); ok {
		fc.em.emitUnary(tr)
	}
	_, store := loadStoreOps(t)
	if store == 0 {
		return errUnsupported("store of type " + t.String())
	}
	fc.em.emitStoreVar(store, idx)
	return nil
}

func (fc *funcCompiler) loadFromVar(idx uint16, t *types.Type) error {
	load, _ := loadStoreOps(t)
	if load == 0 {
		return errUnsupported("load of type " + t.String())
	}
	fc.em.emitLoadVar(load, idx)
	return nil
}

func (fc *funcCompiler) compileBlock(stmts []ast.Statement) error {
	for i := range stmts {
		if err := fc.compileStmt(&stmts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (fc *funcCompiler) compileStmt(s *ast.Statement) error {
	switch {
	case s.Assign != nil:
		return fc.compileAssign(s.Assign)
	case s.If != nil:
		return fc.compileIf(s.If)
	case s.Case != nil:
		return fc.compileCase(s.Case)
	case s.While != nil:
		return fc.compileWhile(s.While)
	case s.Repeat != nil:
		return fc.compileRepeat(s.Repeat)
	case s.For != nil:
		return fc.compileFor(s.For)
	case s.Exit != nil:
		return fc.compileExit()
	case s.Return != nil:
		fc.em.emitRetVoid()
		return nil
	default:
		return errUnsupported("empty statement")
	}
}

func (fc *funcCompiler) compileAssign(a *ast.AssignStmt) error {
	if a.Target.Ident == nil {
		return errUnsupported("assignment to non-variable target")
	}
	idx, ok := fc.varIndex(a.Target.Ident.Name)
	if !ok {
		return errUndeclared(a.Target.Ident.Name)
	}
	t, _ := fc.varType(a.Target.Ident.Name)
	if err := fc.compileExpr(&a.Value, t); err != nil {
		return err
	}
	return fc.storeToVar(idx, t)
}

func (fc *funcCompiler) compileIf(s *ast.IfStmt) error {
	endLabel := fc.em.newLabel()

	emitArm := func(cond *ast.Expr, body []ast.Statement) error {
		nextLabel := fc.em.newLabel()
		if err := fc.compileCondition(cond); err != nil {
			return err
		}
		fc.em.emitJump(opcode.JmpIfNot, nextLabel)
		if err := fc.compileBlock(body); err != nil {
			return err
		}
		fc.em.emitJump(opcode.Jmp, endLabel)
		fc.em.markLabel(nextLabel)
		return nil
	}

	if err := emitArm(&s.Cond, s.Then); err != nil {
		return err
	}
	for i := range s.ElseIf {
		arm := &s.ElseIf[i]
		if err := emitArm(&arm.Cond, arm.Body); err != nil {
			return err
		}
	}
	if s.Else != nil {
		if err := fc.compileBlock(s.Else); err != nil {
			return err
		}
	}
	fc.em.markLabel(endLabel)
	return nil
}

func (fc *funcCompiler) compileExit() error {
	if len(fc.loopEnds) == 0 {
		return errUnsupported("EXIT outside of a loop")
	}
	fc.em.emitJump(opcode.Jmp, fc.loopEnds[len(fc.loopEnds)-1])
	return nil
}

func (fc *funcCompiler) pushLoop(end int) { fc.loopEnds = append(fc.loopEnds, end) }
func (fc *funcCompiler) popLoop()         { fc.loopEnds = fc.loopEnds[:len(fc.loopEnds)-1] }

func (fc *funcCompiler) compileWhile(s *ast.WhileStmt) error {
	loopLabel := fc.em.newLabel()
	endLabel := fc.em.newLabel()
	fc.em.markLabel(loopLabel)

	if err := fc.compileCondition(&s.Cond); err != nil {
		return err
	}
	fc.em.emitJump(opcode.JmpIfNot, endLabel)

	fc.pushLoop(endLabel)
	err := fc.compileBlock(s.Body)
	fc.popLoop()
	if err != nil {
		return err
	}

	fc.em.emitJump(opcode.Jmp, loopLabel)
	fc.em.markLabel(endLabel)
	return nil
}

func (fc *funcCompiler) compileRepeat(s *ast.RepeatStmt) error {
	loopLabel := fc.em.newLabel()
	endLabel := fc.em.newLabel()
	fc.em.markLabel(loopLabel)

	fc.pushLoop(endLabel)
	err := fc.compileBlock(s.Body)
	fc.popLoop()
	if err != nil {
		return err
	}

	if err := fc.compileCondition(&s.Cond); err != nil {
		return err
	}
	fc.em.emitJump(opcode.JmpIfNot, loopLabel)
	fc.em.markLabel(endLabel)
	return nil
}

// compileCondition emits a boolean-valued expression as the type resolveType
// assigns it (BOOL for a comparison). A comparison like `x < 0` still
// compiles its operands as DInt, because compileBinary resolves a
// comparison's operand type from the operands themselves (spec.md §4.2
// opcode-selection table).
func (fc *funcCompiler) compileCondition(cond *ast.Expr) error {
	t, err := fc.resolveType(cond)
	if err != nil {
		return err
	}
	return fc.compileExpr(cond, t)
}
