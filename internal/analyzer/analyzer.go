// Package analyzer is the interface the rest of the pipeline needs from
// semantic analysis: a pass pipeline of type
// (Library, *TypeEnv, *SymbolEnv) -> []Diagnostic, driven by the
// compiler driver. The rule catalog itself (duplicate names, subrange
// bounds, enum uniqueness, ...) is out of scope for this module (spec.md §2,
// §4.4) — only the minimal passes needed to unblock codegen in tests are
// implemented here, as a stub pipeline.
package analyzer

import (
	"github.com/sirupsen/logrus"

	"github.com/scanloop/stplc/internal/ast"
	"github.com/scanloop/stplc/internal/diag"
	"github.com/scanloop/stplc/internal/symbols"
	"github.com/scanloop/stplc/internal/types"
)

// Pass is one stage of the pipeline.
type Pass struct {
	Name string
	Run  func(lib *ast.Library, tenv *types.Env, senv *symbols.Env) []diag.Diagnostic
}

// Pipeline is an ordered list of passes: elementary-type seeding,
// type-environment resolution, symbol-environment resolution, then the
// POU-hierarchy cycle check (a topological sort). There is no late-bound type
// resolution pass and no semantic rule catalog pass.
var Pipeline = []Pass{
	{Name: "elementary_types", Run: seedElementaryTypes},
	{Name: "resolve_type_environment", Run: resolveTypeEnvironment},
	{Name: "resolve_symbol_environment", Run: resolveSymbolEnvironment},
	{Name: "pou_hierarchy", Run: pouHierarchy},
}

// Run executes the pipeline against lib, accumulating diagnostics from every
// pass (spec.md §7: "Analyzer diagnostics ... accumulated per pass"). The
// code generator must not run if the result is non-empty.
func Run(lib *ast.Library, log *logrus.Logger) ([]diag.Diagnostic, *types.Env, *symbols.Env) {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	tenv := types.NewEnv()
	senv := symbols.NewEnv()

	var all []diag.Diagnostic
	for _, p := range Pipeline {
		log.WithField("component", "analyzer").Debugf("running pass %q", p.Name)
		ds := p.Run(lib, tenv, senv)
		all = append(all, ds...)
	}
	return all, tenv, senv
}

func seedElementaryTypes(_ *ast.Library, _ *types.Env, _ *symbols.Env) []diag.Diagnostic {
	// types.NewEnv already seeds the elementary table; this pass exists so
	// the pipeline shape matches spec.md §4.4 even though there is nothing
	// left to do once Env is constructed that way.
	return nil
}

func resolveTypeEnvironment(lib *ast.Library, tenv *types.Env, _ *symbols.Env) []diag.Diagnostic {
	var ds []diag.Diagnostic
	for _, el := range lib.Elements {
		if el.DataType == nil {
			continue
		}
		if err := tenv.Define(el.DataType.Name, el.DataType.Type); err != nil {
			ds = append(ds, diag.Diagnostic{
				Code:    "S0001",
				Message: err.Error(),
				Primary: diag.Label{Primary: true, Message: "duplicate type declaration"},
			})
		}
	}
	return ds
}

func resolveSymbolEnvironment(lib *ast.Library, _ *types.Env, senv *symbols.Env) []diag.Diagnostic {
	var ds []diag.Diagnostic
	define := func(name string, kind symbols.Kind) {
		if err := senv.Define(symbols.GlobalScope, name, kind); err != nil {
			ds = append(ds, diag.Diagnostic{
				Code:    "S0002",
				Message: err.Error(),
				Primary: diag.Label{Primary: true, Message: "duplicate declaration"},
			})
		}
	}
	for _, el := range lib.Elements {
		switch {
		case el.Function != nil:
			define(el.Function.Name, symbols.KindFunction)
		case el.FunctionBlock != nil:
			define(el.FunctionBlock.Name, symbols.KindFunctionBlock)
		case el.Program != nil:
			define(el.Program.Name, symbols.KindProgram)
		}
	}
	return ds
}

func pouHierarchy(lib *ast.Library, _ *types.Env, _ *symbols.Env) []diag.Diagnostic {
	g := symbols.NewGraph()
	for _, el := range lib.Elements {
		pou := el.Function
		if pou == nil {
			pou = el.FunctionBlock
		}
		if pou == nil {
			pou = el.Program
		}
		if pou == nil {
			continue
		}
		g.AddNode(pou.Name)
		for _, v := range pou.Vars {
			if v.Init.Type != nil && v.Init.Type.Kind == types.KindFunctionBlock {
				g.AddEdge(pou.Name, v.Init.Type.Name)
			}
		}
	}
	if _, err := g.TopoSort(); err != nil {
		return []diag.Diagnostic{{
			Code:    "S0003",
			Message: err.Error(),
			Primary: diag.Label{Primary: true, Message: "cyclic function block nesting"},
		}}
	}
	return nil
}
