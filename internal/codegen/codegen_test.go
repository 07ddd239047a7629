package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/opcode"
	"github.com/scanloop/stplc/internal/types"
)

func ident(name string) ast.Expr { return ast.Expr{Ident: &ast.IdentExpr{Name: name}} }
func intLit(v int64) ast.Expr    { return ast.Expr{Literal: &ast.Literal{Kind: ast.LitInt, Int: v}} }

func assign(target string, value ast.Expr) ast.Statement {
	return ast.Statement{Assign: &ast.AssignStmt{Target: ident(target), Value: value}}
}

func binary(op ast.BinaryOp, left, right ast.Expr) ast.Expr {
	return ast.Expr{Binary: &ast.BinaryExpr{Op: op, Left: left, Right: right}}
}

func varDecl(name string, t *types.Type) ast.VarDecl {
	return ast.VarDecl{Name: name, Kind: types.VarTemp, Init: ast.Initializer{Type: t}}
}

func libraryOf(pou *ast.POU) *ast.Library {
	return &ast.Library{Elements: []ast.Element{{Program: pou}}}
}

func compileOne(t *testing.T, pou *ast.POU) ([]byte, *container.Container) {
	t.Helper()
	c, err := Compile(libraryOf(pou), nil, nil)
	require.NoError(t, err)
	require.Len(t, c.Functions, 1)
	bc, err := c.FunctionBytecode(0)
	require.NoError(t, err)
	return bc, c
}

// decodeOps walks bc and returns the opcode sequence, ignoring operands —
// used by tests that check structural shape (which branches exist) rather
// than the exact byte layout.
func decodeOps(bc []byte) []opcode.Op {
	var ops []opcode.Op
	for i := 0; i < len(bc); {
		op := opcode.Op(bc[i])
		ops = append(ops, op)
		n := opcode.OperandBytes(op)
		if n < 0 {
			n = 0
		}
		i += 1 + n
	}
	return ops
}

func TestCompileSmokeTest(t *testing.T) {
	// x := 10; y := x + 32; — spec.md §8's canonical bytecode-level example.
	pou := &ast.POU{
		Name: "SMOKE",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(10)),
			assign("y", binary(ast.BinAdd, ident("x"), intLit(32))),
		},
	}
	bc, c := compileOne(t, pou)

	want := []byte{
		byte(opcode.LoadConstI32), 0, 0,
		byte(opcode.StoreVarI32), 0, 0,
		byte(opcode.LoadVarI32), 0, 0,
		byte(opcode.LoadConstI32), 1, 0,
		byte(opcode.AddI32),
		byte(opcode.StoreVarI32), 1, 0,
		byte(opcode.RetVoid),
	}
	require.Equal(t, want, bc)

	v0, err := c.GetI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(10), v0)
	v1, err := c.GetI32(1)
	require.NoError(t, err)
	require.Equal(t, int32(32), v1)
}

func TestCompileSimpleAssignment(t *testing.T) {
	pou := &ast.POU{
		Name: "ASSIGN",
		Vars: []ast.VarDecl{varDecl("x", types.DInt)},
		Body: []ast.Statement{assign("x", intLit(7))},
	}
	bc, _ := compileOne(t, pou)
	require.Equal(t, []byte{
		byte(opcode.LoadConstI32), 0, 0,
		byte(opcode.StoreVarI32), 0, 0,
		byte(opcode.RetVoid),
	}, bc)
}

func TestCompileCounterAcrossRounds(t *testing.T) {
	// count := count + 1; run the same function five times -> codegen only
	// needs to prove the body reads-then-writes the same slot each scan.
	pou := &ast.POU{
		Name: "COUNTER",
		Vars: []ast.VarDecl{varDecl("count", types.DInt)},
		Body: []ast.Statement{
			assign("count", binary(ast.BinAdd, ident("count"), intLit(1))),
		},
	}
	bc, _ := compileOne(t, pou)
	require.Equal(t, []byte{
		byte(opcode.LoadVarI32), 0, 0,
		byte(opcode.LoadConstI32), 0, 0,
		byte(opcode.AddI32),
		byte(opcode.StoreVarI32), 0, 0,
		byte(opcode.RetVoid),
	}, bc)
}

func TestCompileCase(t *testing.T) {
	// CASE x OF 1: y:=10; 2,3: y:=30; ELSE y:=99; END_CASE;
	pou := &ast.POU{
		Name: "CASE_ARM",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			{Case: &ast.CaseStmt{
				Selector: ident("x"),
				Arms: []ast.CaseArm{
					{Labels: []ast.CaseLabel{{Value: intLit(1)}}, Body: []ast.Statement{assign("y", intLit(10))}},
					{Labels: []ast.CaseLabel{{Value: intLit(2)}, {Value: intLit(3)}}, Body: []ast.Statement{assign("y", intLit(30))}},
				},
				Else: []ast.Statement{assign("y", intLit(99))},
			}},
		},
	}
	bc, _ := compileOne(t, pou)
	require.Equal(t, byte(opcode.RetVoid), bc[len(bc)-1])

	ops := decodeOps(bc)
	require.Contains(t, ops, opcode.BoolOr, "the 2,3 arm must OR its two label tests")
	require.Contains(t, ops, opcode.JmpIfNot)
	require.Contains(t, ops, opcode.Jmp)
}

func TestCompileCaseRange(t *testing.T) {
	// CASE x OF 1..5: y:=1; ELSE y:=0; END_CASE;
	pou := &ast.POU{
		Name: "CASE_RANGE",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			{Case: &ast.CaseStmt{
				Selector: ident("x"),
				Arms: []ast.CaseArm{
					{Labels: []ast.CaseLabel{{Value: intLit(1), RangeHi: ptrExpr(intLit(5))}}, Body: []ast.Statement{assign("y", intLit(1))}},
				},
				Else: []ast.Statement{assign("y", intLit(0))},
			}},
		},
	}
	bc, _ := compileOne(t, pou)
	ops := decodeOps(bc)
	require.Contains(t, ops, opcode.GeI32)
	require.Contains(t, ops, opcode.LeI32)
	require.Contains(t, ops, opcode.BoolAnd)
}

func ptrExpr(e ast.Expr) *ast.Expr { return &e }

func TestCompileIfElseIfElse(t *testing.T) {
	pou := &ast.POU{
		Name: "IF_CHAIN",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			{If: &ast.IfStmt{
				Cond: binary(ast.BinLt, ident("x"), intLit(0)),
				Then: []ast.Statement{assign("y", intLit(-1))},
				ElseIf: []ast.ElseIfArm{
					{Cond: binary(ast.BinEq, ident("x"), intLit(0)), Body: []ast.Statement{assign("y", intLit(0))}},
				},
				Else: []ast.Statement{assign("y", intLit(1))},
			}},
		},
	}
	bc, _ := compileOne(t, pou)
	require.Equal(t, byte(opcode.RetVoid), bc[len(bc)-1])

	ops := decodeOps(bc)
	require.Contains(t, ops, opcode.LtI32)
	require.Contains(t, ops, opcode.EqI32)
	require.Contains(t, ops, opcode.JmpIfNot)
}

func TestCompileForSum(t *testing.T) {
	// total := 0; FOR i := 1 TO 5 DO total := total + i; END_FOR;
	pou := &ast.POU{
		Name: "FOR_SUM",
		Vars: []ast.VarDecl{varDecl("total", types.DInt), varDecl("i", types.DInt)},
		Body: []ast.Statement{
			assign("total", intLit(0)),
			{For: &ast.ForStmt{
				Var:  "i",
				From: intLit(1),
				To:   intLit(5),
				Body: []ast.Statement{assign("total", binary(ast.BinAdd, ident("total"), ident("i")))},
			}},
		},
	}
	bc, _ := compileOne(t, pou)
	require.Equal(t, byte(opcode.RetVoid), bc[len(bc)-1])

	ops := decodeOps(bc)
	require.Contains(t, ops, opcode.LeI32, "default +1 step compiles a single <= test")
	require.Contains(t, ops, opcode.Jmp)
}

func TestCompileForDynamicStep(t *testing.T) {
	// FOR i := 10 TO 1 BY step DO ... END_FOR — step is a runtime expression,
	// so both sign branches of the loop head must be emitted.
	pou := &ast.POU{
		Name: "FOR_DYNAMIC",
		Vars: []ast.VarDecl{varDecl("i", types.DInt), varDecl("step", types.DInt), varDecl("total", types.DInt)},
		Body: []ast.Statement{
			{For: &ast.ForStmt{
				Var:  "i",
				From: intLit(10),
				To:   intLit(1),
				Step: ptrExpr(ident("step")),
				Body: []ast.Statement{assign("total", binary(ast.BinAdd, ident("total"), ident("i")))},
			}},
		},
	}
	bc, _ := compileOne(t, pou)
	ops := decodeOps(bc)
	require.Contains(t, ops, opcode.GtI32)
	require.Contains(t, ops, opcode.LeI32)
	require.Contains(t, ops, opcode.GeI32)
	require.Contains(t, ops, opcode.BoolAnd)
	require.Contains(t, ops, opcode.BoolOr)
}

func TestCompileExptBuiltin(t *testing.T) {
	pou := &ast.POU{
		Name: "POW",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("y", binary(ast.BinExpt, ident("x"), intLit(2))),
		},
	}
	bc, _ := compileOne(t, pou)
	require.Equal(t, []byte{
		byte(opcode.LoadVarI32), 0, 0,
		byte(opcode.LoadConstI32), 0, 0,
		byte(opcode.Builtin), 0x40, 0x03,
		byte(opcode.StoreVarI32), 1, 0,
		byte(opcode.RetVoid),
	}, bc)
}

func TestCompileUndeclaredVariable(t *testing.T) {
	pou := &ast.POU{
		Name: "BAD",
		Body: []ast.Statement{assign("missing", intLit(1))},
	}
	_, err := Compile(libraryOf(pou), nil, nil)
	require.Error(t, err)
	cgErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, UndeclaredVariable, cgErr.Kind)
}
