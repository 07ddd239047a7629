package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/codegen"
	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/types"
)

func counterLibrary() *ast.Library {
	program := &ast.POU{
		Name: "COUNTER",
		Vars: []ast.VarDecl{varDecl("x", types.DInt)},
		Body: []ast.Statement{assign("x", binary(ast.BinAdd, ident("x"), intLit(1)))},
	}
	cfg := &ast.ConfigurationDecl{
		Name: "CONFIG",
		Resources: []ast.ResourceDecl{{
			Name:  "R1",
			Tasks: []ast.TaskDecl{{Name: "FAST", Kind: ast.TaskFreewheeling}},
			Programs: []ast.ProgramInstanceDecl{
				{Name: "INST", ProgramName: "COUNTER", TaskName: "FAST"},
			},
		}},
	}
	return &ast.Library{Elements: []ast.Element{
		{Program: program},
		{Configuration: cfg},
	}}
}

func TestSchedulerCounterPersistsAcrossRounds(t *testing.T) {
	c, err := codegen.Compile(counterLibrary(), nil, nil)
	require.NoError(t, err)

	m := New(c)
	require.True(t, m.Start())
	sched := NewScheduler(m)

	for i := 1; i <= 5; i++ {
		tr := sched.RunRound(uint64(i))
		require.Nil(t, tr)
	}

	vars, ok := sched.InstanceVars("INST")
	require.True(t, ok)
	require.Equal(t, int32(5), int32(uint32(vars[0])))
}

func twoTaskLibrary() *ast.Library {
	low := &ast.POU{
		Name: "LOW_PRI",
		Vars: []ast.VarDecl{varDecl("order", types.DInt)},
		Body: []ast.Statement{assign("order", intLit(1))},
	}
	high := &ast.POU{
		Name: "HIGH_PRI",
		Vars: []ast.VarDecl{varDecl("order", types.DInt)},
		Body: []ast.Statement{assign("order", intLit(2))},
	}
	cfg := &ast.ConfigurationDecl{
		Name: "CONFIG",
		Resources: []ast.ResourceDecl{{
			Name: "R1",
			Tasks: []ast.TaskDecl{
				{Name: "LOW", Kind: ast.TaskFreewheeling, Priority: 1},
				{Name: "HIGH", Kind: ast.TaskFreewheeling, Priority: 10},
			},
			Programs: []ast.ProgramInstanceDecl{
				{Name: "LOW_INST", ProgramName: "LOW_PRI", TaskName: "LOW"},
				{Name: "HIGH_INST", ProgramName: "HIGH_PRI", TaskName: "HIGH"},
			},
		}},
	}
	return &ast.Library{Elements: []ast.Element{
		{Program: low},
		{Program: high},
		{Configuration: cfg},
	}}
}

func TestSchedulerRunsTasksOfEachPriority(t *testing.T) {
	c, err := codegen.Compile(twoTaskLibrary(), nil, nil)
	require.NoError(t, err)
	require.Len(t, c.Tasks, 2)
	require.Equal(t, int16(1), c.Tasks[0].Priority)
	require.Equal(t, int16(10), c.Tasks[1].Priority)

	m := New(c)
	require.True(t, m.Start())
	sched := NewScheduler(m)

	require.Nil(t, sched.RunRound(0))

	lowVars, ok := sched.InstanceVars("LOW_INST")
	require.True(t, ok)
	require.Equal(t, int32(1), int32(uint32(lowVars[0])))

	highVars, ok := sched.InstanceVars("HIGH_INST")
	require.True(t, ok)
	require.Equal(t, int32(2), int32(uint32(highVars[0])))
}

func cyclicLibrary(interval uint32) *ast.Library {
	program := &ast.POU{
		Name: "TICK",
		Vars: []ast.VarDecl{varDecl("ticks", types.DInt)},
		Body: []ast.Statement{assign("ticks", binary(ast.BinAdd, ident("ticks"), intLit(1)))},
	}
	cfg := &ast.ConfigurationDecl{
		Name: "CONFIG",
		Resources: []ast.ResourceDecl{{
			Name:  "R1",
			Tasks: []ast.TaskDecl{{Name: "CYC", Kind: ast.TaskCyclic, Interval: interval}},
			Programs: []ast.ProgramInstanceDecl{
				{Name: "TICK_INST", ProgramName: "TICK", TaskName: "CYC"},
			},
		}},
	}
	return &ast.Library{Elements: []ast.Element{
		{Program: program},
		{Configuration: cfg},
	}}
}

func TestSchedulerCyclicTaskRunsOnceAtOrAfterDue(t *testing.T) {
	c, err := codegen.Compile(cyclicLibrary(10), nil, nil)
	require.NoError(t, err)

	m := New(c)
	require.True(t, m.Start())
	sched := NewScheduler(m)

	// Due immediately at t=0 (nextDue defaults to zero value).
	require.Nil(t, sched.RunRound(0))
	vars, ok := sched.InstanceVars("TICK_INST")
	require.True(t, ok)
	require.Equal(t, int32(1), int32(uint32(vars[0])))

	// Not due again until t=10.
	require.Nil(t, sched.RunRound(5))
	require.Equal(t, int32(1), int32(uint32(vars[0])))

	require.Nil(t, sched.RunRound(10))
	require.Equal(t, int32(2), int32(uint32(vars[0])))
}

func TestSchedulerEventTaskFiresOnlyWhenSet(t *testing.T) {
	program := &ast.POU{
		Name: "ON_EVENT",
		Vars: []ast.VarDecl{varDecl("hits", types.DInt)},
		Body: []ast.Statement{assign("hits", binary(ast.BinAdd, ident("hits"), intLit(1)))},
	}
	cfg := &ast.ConfigurationDecl{
		Name: "CONFIG",
		Resources: []ast.ResourceDecl{{
			Name:  "R1",
			Tasks: []ast.TaskDecl{{Name: "EVT", Kind: ast.TaskEvent}},
			Programs: []ast.ProgramInstanceDecl{
				{Name: "EVT_INST", ProgramName: "ON_EVENT", TaskName: "EVT"},
			},
		}},
	}
	lib := &ast.Library{Elements: []ast.Element{{Program: program}, {Configuration: cfg}}}

	c, err := codegen.Compile(lib, nil, nil)
	require.NoError(t, err)
	require.Equal(t, container.TaskEvent, c.Tasks[0].Type)

	m := New(c)
	require.True(t, m.Start())
	sched := NewScheduler(m)

	require.Nil(t, sched.RunRound(0))
	vars, ok := sched.InstanceVars("EVT_INST")
	require.True(t, ok)
	require.Equal(t, int32(0), int32(uint32(vars[0])))

	sched.SetEvent("EVT")
	require.Nil(t, sched.RunRound(1))
	require.Equal(t, int32(1), int32(uint32(vars[0])))

	// Event flag is consumed; a round with no new SetEvent does not re-fire.
	require.Nil(t, sched.RunRound(2))
	require.Equal(t, int32(1), int32(uint32(vars[0])))
}
