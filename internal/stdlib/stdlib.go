// Package stdlib is the catalog of built-in functions dispatched through the
// BUILTIN opcode (spec.md §4.1, §4.3). It mirrors
// original_source/compiler/analyzer/src/intermediates/stdlib_function.rs:
// each entry has a fixed numeric id, a name, and a signature.
package stdlib

import "github.com/scanloop/stplc/internal/types"

// Entry describes one builtin function.
type Entry struct {
	Name   string
	ID     uint16
	Params []*types.Type
	Result *types.Type
}

// ExptI32ID is pinned by the container ABI (spec.md §4.1).
const ExptI32ID uint16 = 0x0340

// Catalog is the full builtin table, id-ordered. The ids above ExptI32ID are
// a supplemented, intentionally small extension (SPEC_FULL.md §C.2): they
// are not required by any spec.md invariant but round out the arithmetic
// subset the codegen already supports.
var Catalog = []Entry{
	{Name: "EXPT_I32", ID: ExptI32ID, Params: []*types.Type{types.DInt, types.DInt}, Result: types.DInt},
	{Name: "ABS_I32", ID: ExptI32ID + 1, Params: []*types.Type{types.DInt}, Result: types.DInt},
	{Name: "MIN_I32", ID: ExptI32ID + 2, Params: []*types.Type{types.DInt, types.DInt}, Result: types.DInt},
	{Name: "MAX_I32", ID: ExptI32ID + 3, Params: []*types.Type{types.DInt, types.DInt}, Result: types.DInt},
	{Name: "SQRT_F64", ID: ExptI32ID + 4, Params: []*types.Type{types.LReal}, Result: types.LReal},
}

var byName = func() map[string]Entry {
	m := make(map[string]Entry, len(Catalog))
	for _, e := range Catalog {
		m[e.Name] = e
	}
	return m
}()

var byID = func() map[uint16]Entry {
	m := make(map[uint16]Entry, len(Catalog))
	for _, e := range Catalog {
		m[e.ID] = e
	}
	return m
}()

// Lookup resolves a builtin by its catalog name (e.g. "EXPT_I32"). An
// ST-source name such as "EXPT" is not in the catalog and is not found.
func Lookup(name string) (Entry, bool) {
	e, ok := byName[name]
	return e, ok
}

// ByID resolves a builtin by its func_id, used by the VM to validate a
// BUILTIN operand before dispatch.
func ByID(id uint16) (Entry, bool) {
	e, ok := byID[id]
	return e, ok
}
