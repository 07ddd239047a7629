package container

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ConstTag identifies the Go type stored in a constant pool entry.
type ConstTag uint8

const (
	ConstI32 ConstTag = iota + 1
	ConstU32
	ConstI64
	ConstU64
	ConstF32
	ConstF64
)

// ConstEntry is one typed entry in the constant pool.
type ConstEntry struct {
	Tag  ConstTag
	Bits uint64 // payload, always stored widened to 64 bits; only the low N bits are meaningful per Tag
}

// I32Const builds a 32-bit signed constant entry.
func I32Const(v int32) ConstEntry { return ConstEntry{Tag: ConstI32, Bits: uint64(uint32(v))} }

// U32Const builds a 32-bit unsigned constant entry.
func U32Const(v uint32) ConstEntry { return ConstEntry{Tag: ConstU32, Bits: uint64(v)} }

// I64Const builds a 64-bit signed constant entry.
func I64Const(v int64) ConstEntry { return ConstEntry{Tag: ConstI64, Bits: uint64(v)} }

// U64Const builds a 64-bit unsigned constant entry.
func U64Const(v uint64) ConstEntry { return ConstEntry{Tag: ConstU64, Bits: v} }

// F32Const builds a 32-bit float constant entry.
func F32Const(v float32) ConstEntry {
	return ConstEntry{Tag: ConstF32, Bits: uint64(math.Float32bits(v))}
}

// F64Const builds a 64-bit float constant entry.
func F64Const(v float64) ConstEntry {
	return ConstEntry{Tag: ConstF64, Bits: math.Float64bits(v)}
}

// GetI32 returns the entry's value as int32, or an error if its tag isn't
// ConstI32 (spec.md §4.1: "accessors return an error if the requested type
// mismatches the stored tag").
func (c *Container) GetI32(idx uint16) (int32, error) {
	e, err := c.constAt(idx)
	if err != nil {
		return 0, err
	}
	if e.Tag != ConstI32 {
		return 0, errors.Errorf("container: constant %d is not I32", idx)
	}
	return int32(uint32(e.Bits)), nil
}

// GetI64 returns the entry's value as int64.
func (c *Container) GetI64(idx uint16) (int64, error) {
	e, err := c.constAt(idx)
	if err != nil {
		return 0, err
	}
	if e.Tag != ConstI64 {
		return 0, errors.Errorf("container: constant %d is not I64", idx)
	}
	return int64(e.Bits), nil
}

// GetF32 returns the entry's value as float32.
func (c *Container) GetF32(idx uint16) (float32, error) {
	e, err := c.constAt(idx)
	if err != nil {
		return 0, err
	}
	if e.Tag != ConstF32 {
		return 0, errors.Errorf("container: constant %d is not F32", idx)
	}
	return math.Float32frombits(uint32(e.Bits)), nil
}

// GetF64 returns the entry's value as float64.
func (c *Container) GetF64(idx uint16) (float64, error) {
	e, err := c.constAt(idx)
	if err != nil {
		return 0, err
	}
	if e.Tag != ConstF64 {
		return 0, errors.Errorf("container: constant %d is not F64", idx)
	}
	return math.Float64frombits(e.Bits), nil
}

// RawBits returns the raw bit pattern of the constant at idx, validating
// only that its stored payload width matches wantWidth (4 or 8 bytes). The
// VM uses this instead of the typed Get* accessors: LOAD_CONST_I32 and
// LOAD_CONST_F32 both load 4 raw bytes onto the stack, and the bit pattern
// is identical whether the pool tagged them signed or unsigned (spec.md §9:
// "carry types in the opcode, not in the value").
func (c *Container) RawBits(idx uint16, wantWidth int) (uint64, error) {
	e, err := c.constAt(idx)
	if err != nil {
		return 0, err
	}
	n, err := payloadLen(e.Tag)
	if err != nil {
		return 0, err
	}
	if n != wantWidth {
		return 0, errors.Errorf("container: constant %d has width %d, want %d", idx, n, wantWidth)
	}
	return e.Bits, nil
}

func (c *Container) constAt(idx uint16) (ConstEntry, error) {
	if int(idx) >= len(c.Constants) {
		return ConstEntry{}, errors.Wrapf(ErrInvalidConstantIdx, "index %d, pool size %d", idx, len(c.Constants))
	}
	return c.Constants[idx], nil
}

func payloadLen(tag ConstTag) (int, error) {
	switch tag {
	case ConstI32, ConstU32, ConstF32:
		return 4, nil
	case ConstI64, ConstU64, ConstF64:
		return 8, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConstantType, "tag %d", tag)
	}
}

func writeConstPool(out *bytes.Buffer, entries []ConstEntry) error {
	binary.Write(out, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		n, err := payloadLen(e.Tag)
		if err != nil {
			return err
		}
		out.WriteByte(byte(e.Tag))
		switch n {
		case 4:
			binary.Write(out, binary.LittleEndian, uint32(e.Bits))
		case 8:
			binary.Write(out, binary.LittleEndian, e.Bits)
		}
	}
	return nil
}

func readConstPool(data []byte) ([]ConstEntry, error) {
	if len(data) < 2 {
		return nil, errors.Wrap(ErrSectionSizeMismatch, "constant pool header truncated")
	}
	count := binary.LittleEndian.Uint16(data[0:2])
	pos := 2
	entries := make([]ConstEntry, 0, count)
	for i := 0; i < int(count); i++ {
		if pos >= len(data) {
			return nil, errors.Wrap(ErrSectionSizeMismatch, "constant pool truncated")
		}
		tag := ConstTag(data[pos])
		pos++
		n, err := payloadLen(tag)
		if err != nil {
			return nil, err
		}
		if pos+n > len(data) {
			return nil, errors.Wrap(ErrSectionSizeMismatch, "constant payload truncated")
		}
		var bits uint64
		if n == 4 {
			bits = uint64(binary.LittleEndian.Uint32(data[pos : pos+4]))
		} else {
			bits = binary.LittleEndian.Uint64(data[pos : pos+8])
		}
		entries = append(entries, ConstEntry{Tag: tag, Bits: bits})
		pos += n
	}
	if pos != len(data) {
		return nil, errors.Wrap(ErrSectionSizeMismatch, "constant pool trailing bytes")
	}
	return entries, nil
}

// Pool builds a constant pool, appending a new entry only if no
// structurally-equal entry already exists (spec.md §3: "Deduplication of
// structurally-equal constants is required").
type Pool struct {
	entries []ConstEntry
	index   map[ConstEntry]uint16
}

// NewPool returns an empty deduplicating constant pool builder.
func NewPool() *Pool {
	return &Pool{index: make(map[ConstEntry]uint16)}
}

// Add returns the index of v in the pool, reusing an existing entry when one
// with the same (tag, bit pattern) is already present.
func (p *Pool) Add(v ConstEntry) uint16 {
	if idx, ok := p.index[v]; ok {
		return idx
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, v)
	p.index[v] = idx
	return idx
}

// Entries returns the accumulated pool in insertion order.
func (p *Pool) Entries() []ConstEntry { return p.entries }
