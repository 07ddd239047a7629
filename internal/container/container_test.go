package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleContainer() *Container {
	pool := NewPool()
	idx2 := pool.Add(I32Const(2))
	idx3 := pool.Add(I32Const(3))
	_ = pool.Add(I32Const(2)) // should dedup to idx2

	return &Container{
		Header: Header{
			NumVariables:  2,
			MaxStackDepth: 4,
		},
		Constants: pool.Entries(),
		Functions: []FuncDirEntry{
			{FunctionID: 0, BytecodeOffset: 0, BytecodeLength: 3, MaxStackDepth: 4, NumLocals: 2},
		},
		Bytecode: []byte{byte(idx2), byte(idx3), 0xB5},
		Tasks: []TaskEntry{
			{Name: "main_task", Type: TaskFreewheeling, Interval: 0, Priority: 0},
		},
		Programs: []ProgramInstanceEntry{
			{Name: "main", FunctionID: 0, TaskRef: 0},
		},
	}
}

func TestContainerRoundTrip(t *testing.T) {
	c := sampleContainer()
	data, err := Write(c)
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)

	require.Equal(t, c.Header.NumVariables, got.Header.NumVariables)
	require.Equal(t, c.Header.MaxStackDepth, got.Header.MaxStackDepth)
	require.Equal(t, c.Constants, got.Constants)
	require.Equal(t, c.Functions, got.Functions)
	require.Equal(t, c.Bytecode, got.Bytecode)
	require.Equal(t, c.Tasks, got.Tasks)
	require.Equal(t, c.Programs, got.Programs)
}

func TestConstantPoolDedup(t *testing.T) {
	pool := NewPool()
	a := pool.Add(I32Const(2))
	b := pool.Add(I32Const(3))
	c := pool.Add(I32Const(2))
	require.Equal(t, a, c)
	require.NotEqual(t, a, b)
	require.Len(t, pool.Entries(), 2)
}

func TestInvalidMagic(t *testing.T) {
	_, err := Read([]byte("not-a-container-at-all-012345678901234567890"))
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestUnsupportedVersion(t *testing.T) {
	c := sampleContainer()
	data, err := Write(c)
	require.NoError(t, err)
	data[4] = 0xFF // low byte of version field
	data[5] = 0xFF
	_, err = Read(data)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestFunctionDirectIndexing(t *testing.T) {
	c := sampleContainer()
	bc, err := c.FunctionBytecode(0)
	require.NoError(t, err)
	require.Equal(t, c.Bytecode, bc)

	_, err = c.FunctionBytecode(1)
	require.Error(t, err)
}

func TestConstAccessors(t *testing.T) {
	pool := NewPool()
	i32 := pool.Add(I32Const(-5))
	f64 := pool.Add(F64Const(3.5))
	c := &Container{Constants: pool.Entries()}

	v, err := c.GetI32(i32)
	require.NoError(t, err)
	require.Equal(t, int32(-5), v)

	_, err = c.GetI64(i32)
	require.Error(t, err)

	f, err := c.GetF64(f64)
	require.NoError(t, err)
	require.Equal(t, 3.5, f)

	_, err = c.GetI32(99)
	require.ErrorIs(t, err, ErrInvalidConstantIdx)
}

func TestValidateTaskTable(t *testing.T) {
	c := sampleContainer()
	require.NoError(t, c.Validate())

	bad := sampleContainer()
	bad.Tasks[0].Type = TaskCyclic
	bad.Tasks[0].Interval = 0
	require.Error(t, bad.Validate())

	badRef := sampleContainer()
	badRef.Programs[0].TaskRef = 5
	require.Error(t, badRef.Validate())
}
