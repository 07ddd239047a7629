// Package container implements the binary container format that is the ABI
// between the code generator and the virtual machine: a header, a constant
// pool, a code section, and a task table, serialized little-endian and
// tightly packed (see SPEC_FULL.md §C, spec.md §4.1).
package container

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Magic identifies a stplc container. Version is the only other
// forward-compatibility hook in the format.
var Magic = [4]byte{'S', 'T', 'P', 'L'}

const FormatVersion uint16 = 1

// HeaderSize is the fixed on-disk size of Header in bytes:
// magic(4) + version(2) + numVariables(2) + maxStackDepth(2) + numFunctions(2)
// + 4 * (offset:4 + size:4) = 12 + 32 = 44.
const HeaderSize = 44

// Errors returned by Read (ErrInvalidConstantIdx by the constant accessors
// instead). Each corresponds to one row of the container I/O
// taxonomy in spec.md §7 ("Container I/O errors ... are distinct from
// traps and occur only during load").
var (
	ErrInvalidMagic        = errors.New("container: invalid magic")
	ErrUnsupportedVersion  = errors.New("container: unsupported format version")
	ErrInvalidConstantType = errors.New("container: invalid constant type tag")
	ErrInvalidConstantIdx  = errors.New("container: constant index out of range")
	ErrSectionSizeMismatch = errors.New("container: section size mismatch")
)

// Header is the fixed-size prefix of a container.
type Header struct {
	NumVariables   uint16
	MaxStackDepth  uint16
	NumFunctions   uint16
	ConstPoolOff   uint32
	ConstPoolSize  uint32
	CodeOff        uint32
	CodeSize       uint32
	TaskTableOff   uint32
	TaskTableSize  uint32
	// Reserved keeps the fourth (offset, size) pair from the header table in
	// spec.md §4.1 for a future section; the current format does not use it.
	ReservedOff  uint32
	ReservedSize uint32
}

// FuncDirEntry is the fixed 14-byte function directory record described in
// spec.md §3 ("Function directory entry").
type FuncDirEntry struct {
	FunctionID      uint16
	BytecodeOffset  uint32
	BytecodeLength  uint32
	MaxStackDepth   uint16
	NumLocals       uint16
}

const funcDirEntrySize = 14

// TaskType enumerates the three task kinds from spec.md §3.
type TaskType uint8

const (
	TaskCyclic TaskType = iota
	TaskEvent
	TaskFreewheeling
)

// TaskEntry is one row of the task table.
type TaskEntry struct {
	Name     string
	Type     TaskType
	Interval uint32 // milliseconds; must be > 0 for TaskCyclic
	Priority int16
}

// ProgramInstanceEntry binds a compiled function to a task.
type ProgramInstanceEntry struct {
	Name       string
	FunctionID uint16
	TaskRef    uint16 // index into Container.Tasks
}

// Container is the in-memory representation of a compiled ST program.
type Container struct {
	Header    Header
	Constants []ConstEntry
	Functions []FuncDirEntry
	Bytecode  []byte // concatenated bytecode bodies, directory offsets index into this
	Tasks     []TaskEntry
	Programs  []ProgramInstanceEntry
}

// FunctionBytecode returns the bytecode slice for the function at the given
// directory position, validating function_id == position (spec.md §3
// "direct-indexing requirement").
func (c *Container) FunctionBytecode(functionID uint16) ([]byte, error) {
	if int(functionID) >= len(c.Functions) {
		return nil, errors.Errorf("container: invalid function id %d", functionID)
	}
	e := c.Functions[functionID]
	if e.FunctionID != functionID {
		return nil, errors.Errorf("container: function directory corrupt: entry %d claims id %d", functionID, e.FunctionID)
	}
	end := e.BytecodeOffset + e.BytecodeLength
	if end > uint32(len(c.Bytecode)) {
		return nil, errors.Errorf("container: function %d bytecode out of range", functionID)
	}
	return c.Bytecode[e.BytecodeOffset:end], nil
}

// Write serializes the container to its binary form.
func Write(c *Container) ([]byte, error) {
	var constBuf bytes.Buffer
	if err := writeConstPool(&constBuf, c.Constants); err != nil {
		return nil, err
	}

	var codeBuf bytes.Buffer
	dirSize := funcDirEntrySize * len(c.Functions)
	for _, e := range c.Functions {
		if err := binary.Write(&codeBuf, binary.LittleEndian, e.FunctionID); err != nil {
			return nil, err
		}
		if err := binary.Write(&codeBuf, binary.LittleEndian, e.BytecodeOffset); err != nil {
			return nil, err
		}
		if err := binary.Write(&codeBuf, binary.LittleEndian, e.BytecodeLength); err != nil {
			return nil, err
		}
		if err := binary.Write(&codeBuf, binary.LittleEndian, e.MaxStackDepth); err != nil {
			return nil, err
		}
		if err := binary.Write(&codeBuf, binary.LittleEndian, e.NumLocals); err != nil {
			return nil, err
		}
	}
	codeBuf.Write(c.Bytecode)
	if codeBuf.Len() != dirSize+len(c.Bytecode) {
		return nil, errors.Wrap(ErrSectionSizeMismatch, "code section")
	}

	var taskBuf bytes.Buffer
	if err := writeTaskTable(&taskBuf, c.Tasks, c.Programs); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(Magic[:])
	binary.Write(&out, binary.LittleEndian, FormatVersion)
	binary.Write(&out, binary.LittleEndian, c.Header.NumVariables)
	binary.Write(&out, binary.LittleEndian, c.Header.MaxStackDepth)
	binary.Write(&out, binary.LittleEndian, uint16(len(c.Functions)))

	constOff := uint32(HeaderSize)
	constSize := uint32(constBuf.Len())
	codeOff := constOff + constSize
	codeSize := uint32(codeBuf.Len())
	taskOff := codeOff + codeSize
	taskSize := uint32(taskBuf.Len())

	writeSectionPair(&out, constOff, constSize)
	writeSectionPair(&out, codeOff, codeSize)
	writeSectionPair(&out, taskOff, taskSize)
	writeSectionPair(&out, 0, 0)

	if out.Len() != HeaderSize {
		return nil, errors.Errorf("container: header encode produced %d bytes, want %d", out.Len(), HeaderSize)
	}

	out.Write(constBuf.Bytes())
	out.Write(codeBuf.Bytes())
	out.Write(taskBuf.Bytes())
	return out.Bytes(), nil
}

func writeSectionPair(out *bytes.Buffer, off, size uint32) {
	binary.Write(out, binary.LittleEndian, off)
	binary.Write(out, binary.LittleEndian, size)
}

// Read deserializes a container, validating magic, version, and section
// sizes as it goes.
func Read(data []byte) (*Container, error) {
	if len(data) < HeaderSize {
		return nil, errors.Wrap(ErrInvalidMagic, "truncated header")
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return nil, ErrInvalidMagic
	}
	r := bytes.NewReader(data[4:])

	var version uint16
	binary.Read(r, binary.LittleEndian, &version)
	if version != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got version %d", version)
	}

	c := &Container{}
	binary.Read(r, binary.LittleEndian, &c.Header.NumVariables)
	binary.Read(r, binary.LittleEndian, &c.Header.MaxStackDepth)
	binary.Read(r, binary.LittleEndian, &c.Header.NumFunctions)

	readSectionPair(r, &c.Header.ConstPoolOff, &c.Header.ConstPoolSize)
	readSectionPair(r, &c.Header.CodeOff, &c.Header.CodeSize)
	readSectionPair(r, &c.Header.TaskTableOff, &c.Header.TaskTableSize)
	readSectionPair(r, &c.Header.ReservedOff, &c.Header.ReservedSize)

	constSec, err := section(data, c.Header.ConstPoolOff, c.Header.ConstPoolSize)
	if err != nil {
		return nil, err
	}
	consts, err := readConstPool(constSec)
	if err != nil {
		return nil, err
	}
	c.Constants = consts

	codeSec, err := section(data, c.Header.CodeOff, c.Header.CodeSize)
	if err != nil {
		return nil, err
	}
	funcs, bytecode, err := readCodeSection(codeSec, int(c.Header.NumFunctions))
	if err != nil {
		return nil, err
	}
	c.Functions = funcs
	c.Bytecode = bytecode

	taskSec, err := section(data, c.Header.TaskTableOff, c.Header.TaskTableSize)
	if err != nil {
		return nil, err
	}
	tasks, progs, err := readTaskTable(taskSec)
	if err != nil {
		return nil, err
	}
	c.Tasks = tasks
	c.Programs = progs

	return c, nil
}

func readSectionPair(r *bytes.Reader, off, size *uint32) {
	binary.Read(r, binary.LittleEndian, off)
	binary.Read(r, binary.LittleEndian, size)
}

func section(data []byte, off, size uint32) ([]byte, error) {
	end := uint64(off) + uint64(size)
	if end > uint64(len(data)) {
		return nil, errors.Wrap(ErrSectionSizeMismatch, "section extends past end of container")
	}
	return data[off:end], nil
}

func readCodeSection(data []byte, numFunctions int) ([]FuncDirEntry, []byte, error) {
	dirSize := funcDirEntrySize * numFunctions
	if len(data) < dirSize {
		return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "code section shorter than directory")
	}
	entries := make([]FuncDirEntry, numFunctions)
	r := bytes.NewReader(data[:dirSize])
	for i := 0; i < numFunctions; i++ {
		var e FuncDirEntry
		binary.Read(r, binary.LittleEndian, &e.FunctionID)
		binary.Read(r, binary.LittleEndian, &e.BytecodeOffset)
		binary.Read(r, binary.LittleEndian, &e.BytecodeLength)
		binary.Read(r, binary.LittleEndian, &e.MaxStackDepth)
		binary.Read(r, binary.LittleEndian, &e.NumLocals)
		entries[i] = e
	}
	bytecode := data[dirSize:]
	var total uint32
	for _, e := range entries {
		end := e.BytecodeOffset + e.BytecodeLength
		if end > total {
			total = end
		}
	}
	if uint32(len(bytecode)) < total {
		return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "bytecode shorter than directory claims")
	}
	if dirSize+len(bytecode) != len(data) {
		return nil, nil, errors.Wrap(ErrSectionSizeMismatch, "code section size does not match header")
	}
	return entries, bytecode, nil
}
