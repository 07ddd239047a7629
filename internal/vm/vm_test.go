package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/codegen"
	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/types"
)

func ident(name string) ast.Expr { return ast.Expr{Ident: &ast.IdentExpr{Name: name}} }
func intLit(v int64) ast.Expr    { return ast.Expr{Literal: &ast.Literal{Kind: ast.LitInt, Int: v}} }
func boolLit(v bool) ast.Expr    { return ast.Expr{Literal: &ast.Literal{Kind: ast.LitBool, Bool: v}} }

func assign(target string, value ast.Expr) ast.Statement {
	return ast.Statement{Assign: &ast.AssignStmt{Target: ident(target), Value: value}}
}

func binary(op ast.BinaryOp, left, right ast.Expr) ast.Expr {
	return ast.Expr{Binary: &ast.BinaryExpr{Op: op, Left: left, Right: right}}
}

func varDecl(name string, t *types.Type) ast.VarDecl {
	return ast.VarDecl{Name: name, Kind: types.VarTemp, Init: ast.Initializer{Type: t}}
}

func ptrExpr(e ast.Expr) *ast.Expr { return &e }

func compileProgram(t *testing.T, pou *ast.POU) *container.Container {
	t.Helper()
	lib := &ast.Library{Elements: []ast.Element{{Program: pou}}}
	c, err := codegen.Compile(lib, nil, nil)
	require.NoError(t, err)
	return c
}

func TestExecuteSimpleAssignment(t *testing.T) {
	pou := &ast.POU{
		Name: "main",
		Vars: []ast.VarDecl{varDecl("x", types.Int)},
		Body: []ast.Statement{assign("x", intLit(42))},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())

	vars := make([]uint64, c.Functions[0].NumLocals)
	tr := m.Execute(0, vars)
	require.Nil(t, tr)
	require.Equal(t, int32(42), int32(uint32(vars[0])))
}

func TestExecuteSmokeAddition(t *testing.T) {
	pou := &ast.POU{
		Name: "SMOKE",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(10)),
			assign("y", binary(ast.BinAdd, ident("x"), intLit(32))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())

	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(10), int32(uint32(vars[0])))
	require.Equal(t, int32(42), int32(uint32(vars[1])))
}

func TestExecuteCase(t *testing.T) {
	// CASE x OF 1: y:=10; 2,3: y:=30; ELSE y:=99; END_CASE; with x:=3 -> y==30.
	pou := &ast.POU{
		Name: "CASE_ARM",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(3)),
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
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(30), int32(uint32(vars[1])))
}

func TestExecuteIfElseIfElse(t *testing.T) {
	// IF x>5 THEN y:=1; ELSIF x>0 THEN y:=2; ELSE y:=3; END_IF with x:=3 -> y==2.
	pou := &ast.POU{
		Name: "IF_CHAIN",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(3)),
			{If: &ast.IfStmt{
				Cond: binary(ast.BinGt, ident("x"), intLit(5)),
				Then: []ast.Statement{assign("y", intLit(1))},
				ElseIf: []ast.ElseIfArm{
					{Cond: binary(ast.BinGt, ident("x"), intLit(0)), Body: []ast.Statement{assign("y", intLit(2))}},
				},
				Else: []ast.Statement{assign("y", intLit(3))},
			}},
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(2), int32(uint32(vars[1])))
}

func TestExecuteForSum(t *testing.T) {
	// FOR i := 1 TO 5 DO sum := sum + i; END_FOR; -> sum == 15.
	pou := &ast.POU{
		Name: "FOR_SUM",
		Vars: []ast.VarDecl{varDecl("sum", types.DInt), varDecl("i", types.DInt)},
		Body: []ast.Statement{
			assign("sum", intLit(0)),
			{For: &ast.ForStmt{
				Var:  "i",
				From: intLit(1),
				To:   intLit(5),
				Body: []ast.Statement{assign("sum", binary(ast.BinAdd, ident("sum"), ident("i")))},
			}},
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(15), int32(uint32(vars[0])))
}

func TestExecuteForZeroIterations(t *testing.T) {
	// FOR i := 10 TO 1 DO touched := 1; END_FOR; positive default step, hi < lo
	// -> body runs zero times (spec.md §8).
	pou := &ast.POU{
		Name: "FOR_ZERO",
		Vars: []ast.VarDecl{varDecl("touched", types.DInt), varDecl("i", types.DInt)},
		Body: []ast.Statement{
			assign("touched", intLit(0)),
			{For: &ast.ForStmt{
				Var:  "i",
				From: intLit(10),
				To:   intLit(1),
				Body: []ast.Statement{assign("touched", intLit(1))},
			}},
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(0), int32(uint32(vars[0])))
}

func TestExecuteRepeatRunsAtLeastOnce(t *testing.T) {
	// REPEAT count := count + 1; UNTIL TRUE END_REPEAT; -> body executes
	// exactly once even though the condition is immediately true.
	pou := &ast.POU{
		Name: "REPEAT_ONCE",
		Vars: []ast.VarDecl{varDecl("count", types.DInt)},
		Body: []ast.Statement{
			{Repeat: &ast.RepeatStmt{
				Body: []ast.Statement{assign("count", binary(ast.BinAdd, ident("count"), intLit(1)))},
				Cond: boolLit(true),
			}},
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(1), int32(uint32(vars[0])))
}

func TestExecuteDivideByZeroTraps(t *testing.T) {
	pou := &ast.POU{
		Name: "DIV0",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(1)),
			assign("y", binary(ast.BinDiv, ident("x"), intLit(0))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	tr := m.Execute(0, vars)
	require.NotNil(t, tr)
	require.Equal(t, TrapDivideByZero, tr.Kind)
	require.Equal(t, StateFaulted, m.State())
	require.NotNil(t, m.Fault())
}

func TestExecuteModZeroTraps(t *testing.T) {
	pou := &ast.POU{
		Name: "MOD0",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(1)),
			assign("y", binary(ast.BinMod, ident("x"), intLit(0))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	tr := m.Execute(0, vars)
	require.NotNil(t, tr)
	require.Equal(t, TrapDivideByZero, tr.Kind)
}

func TestExecuteMinIntDivNegOneDoesNotTrap(t *testing.T) {
	// i32::MIN / -1 does not trap; result is i32::MIN (spec.md §8).
	pou := &ast.POU{
		Name: "MIN_DIV",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(int64(int32(-2147483648)))),
			assign("y", binary(ast.BinDiv, ident("x"), intLit(-1))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	tr := m.Execute(0, vars)
	require.Nil(t, tr)
	require.Equal(t, int32(-2147483648), int32(uint32(vars[1])))
}

func TestExecuteSIntOverflowWraps(t *testing.T) {
	// 127 + 1 assigned to a SINT stores -128 (wraps after TRUNC_I8).
	pou := &ast.POU{
		Name: "SINT_OVERFLOW",
		Vars: []ast.VarDecl{varDecl("x", types.SInt), varDecl("y", types.SInt)},
		Body: []ast.Statement{
			assign("x", intLit(127)),
			assign("y", binary(ast.BinAdd, ident("x"), intLit(1))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(-128), int32(uint32(vars[1])))
}

func TestExecuteUSIntOverflowWraps(t *testing.T) {
	// 255 + 1 assigned to a USINT stores 0.
	pou := &ast.POU{
		Name: "USINT_OVERFLOW",
		Vars: []ast.VarDecl{varDecl("x", types.USInt), varDecl("y", types.USInt)},
		Body: []ast.Statement{
			assign("x", intLit(255)),
			assign("y", binary(ast.BinAdd, ident("x"), intLit(1))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(0), int32(uint32(vars[1])))
}

func TestExecuteExptNegativeExponentTraps(t *testing.T) {
	pou := &ast.POU{
		Name: "EXPT_NEG",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("e", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("x", intLit(2)),
			assign("e", intLit(-1)),
			assign("y", binary(ast.BinExpt, ident("x"), ident("e"))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	tr := m.Execute(0, vars)
	require.NotNil(t, tr)
	require.Equal(t, TrapNegativeExponent, tr.Kind)
}

func TestExecuteExptPositiveExponent(t *testing.T) {
	pou := &ast.POU{
		Name: "EXPT_POS",
		Vars: []ast.VarDecl{varDecl("x", types.DInt), varDecl("y", types.DInt)},
		Body: []ast.Statement{
			assign("y", binary(ast.BinExpt, ident("x"), intLit(3))),
		},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	vars[0] = uint64(uint32(2)) // x = 2
	require.Nil(t, m.Execute(0, vars))
	require.Equal(t, int32(8), int32(uint32(vars[1])))
}

func TestExecuteInvalidFunctionIdTraps(t *testing.T) {
	pou := &ast.POU{Name: "EMPTY", Body: []ast.Statement{{Return: &ast.ReturnStmt{}}}}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	tr := m.Execute(7, nil)
	require.NotNil(t, tr)
	require.Equal(t, TrapInvalidFunctionId, tr.Kind)
}

func TestResetClearsFault(t *testing.T) {
	pou := &ast.POU{
		Name: "DIV0",
		Vars: []ast.VarDecl{varDecl("x", types.DInt)},
		Body: []ast.Statement{assign("x", binary(ast.BinDiv, intLit(1), intLit(0)))},
	}
	c := compileProgram(t, pou)
	m := New(c)
	require.True(t, m.Start())
	vars := make([]uint64, c.Functions[0].NumLocals)
	require.NotNil(t, m.Execute(0, vars))
	require.Equal(t, StateFaulted, m.State())

	m.Reset()
	require.Equal(t, StateReady, m.State())
	require.Nil(t, m.Fault())
}
