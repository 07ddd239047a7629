// Package codegen lowers an analyzed AST to the bytecode container format
// (spec.md §4.2 "Code generation"). Compile is the only exported entry
// point: it walks Library.Elements in declaration order, assigning each
// Program a function_id equal to its position, and produces a single
// ready-to-serialize container.Container.
package codegen

import (
	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/container"
	"github.com/scanloop/stplc/internal/symbols"
	"github.com/scanloop/stplc/internal/types"
)

// Compile lowers lib to a container. tenv and senv are the analyzer's
// resolved type and symbol environments; Compile does not read them, and
// takes every variable's type from its declaration in the POU (spec.md §4.2:
// "code generation assumes a library that has already passed semantic
// analysis").
func Compile(lib *ast.Library, tenv *types.Env, senv *symbols.Env) (*container.Container, error) {
	pool := container.NewPool()
	var functions []container.FuncDirEntry
	var bytecode []byte
	var maxStack, maxLocals uint16

	programIDs := make(map[string]uint16)

	var programs []*ast.POU
	for i := range lib.Elements {
		el := &lib.Elements[i]
		if el.Program != nil {
			programIDs[el.Program.Name] = uint16(len(programs))
			programs = append(programs, el.Program)
		}
	}

	for i, pou := range programs {
		fc := newFuncCompiler(pool, pou.Vars)
		if err := fc.compileBlock(pou.Body); err != nil {
			return nil, err
		}
		fc.em.emitRetVoid()
		if err := fc.em.resolve(); err != nil {
			return nil, err
		}

		entry := container.FuncDirEntry{
			FunctionID:     uint16(i),
			BytecodeOffset: uint32(len(bytecode)),
			BytecodeLength: uint32(len(fc.em.buf)),
			MaxStackDepth:  uint16(fc.em.maxDepth),
			NumLocals:      fc.numVars(),
		}
		functions = append(functions, entry)
		bytecode = append(bytecode, fc.em.buf...)

		if entry.MaxStackDepth > maxStack {
			maxStack = entry.MaxStackDepth
		}
		if entry.NumLocals > maxLocals {
			maxLocals = entry.NumLocals
		}
	}

	tasks, progInstances, err := compileTaskTable(lib, programIDs)
	if err != nil {
		return nil, err
	}

	c := &container.Container{
		Header: container.Header{
			NumVariables:  maxLocals,
			MaxStackDepth: maxStack,
			NumFunctions:  uint16(len(functions)),
		},
		Constants: pool.Entries(),
		Functions: functions,
		Bytecode:  bytecode,
		Tasks:     tasks,
		Programs:  progInstances,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// compileTaskTable flattens every CONFIGURATION's resources into the
// container's flat task table and program-instance list, resolving each
// PROGRAM_INSTANCE's PROGRAM reference through programIDs (spec.md §3:
// "program instances bind a compiled function to a task").
func compileTaskTable(lib *ast.Library, programIDs map[string]uint16) ([]container.TaskEntry, []container.ProgramInstanceEntry, error) {
	var tasks []container.TaskEntry
	var progs []container.ProgramInstanceEntry

	for i := range lib.Elements {
		cfg := lib.Elements[i].Configuration
		if cfg == nil {
			continue
		}
		for _, res := range cfg.Resources {
			taskIdx := make(map[string]uint16, len(res.Tasks))
			for _, t := range res.Tasks {
				taskIdx[t.Name] = uint16(len(tasks))
				tasks = append(tasks, container.TaskEntry{
					Name:     t.Name,
					Type:     taskKind(t.Kind),
					Interval: t.Interval,
					Priority: t.Priority,
				})
			}
			for _, p := range res.Programs {
				fnID, ok := programIDs[p.ProgramName]
				if !ok {
					return nil, nil, errUndeclared(p.ProgramName)
				}
				taskRef, ok := taskIdx[p.TaskName]
				if !ok {
					return nil, nil, errUndeclared(p.TaskName)
				}
				progs = append(progs, container.ProgramInstanceEntry{
					Name:       p.Name,
					FunctionID: fnID,
					TaskRef:    taskRef,
				})
			}
		}
	}
	return tasks, progs, nil
}

func taskKind(k ast.TaskKind) container.TaskType {
	switch k {
	case ast.TaskEvent:
		return container.TaskEvent
	case ast.TaskFreewheeling:
		return container.TaskFreewheeling
	default:
		return container.TaskCyclic
	}
}
