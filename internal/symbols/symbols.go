// Package symbols implements the symbol environment (spec.md §3) and the
// declaration dependency graph used to topologically order POUs and detect
// cyclic function-block nesting (original_source's rule_pou_hierarchy.rs and
// symbol_graph.rs, SPEC_FULL.md §C.1).
package symbols

import (
	"sort"

	"github.com/pkg/errors"
)

// Kind is the category of a bound symbol.
type Kind int

const (
	KindFunction Kind = iota
	KindFunctionBlock
	KindProgram
	KindVariable
	KindEnumValue
)

// Scope is either the global scope or a named POU scope.
type Scope struct {
	Name   string // "" for global
	Global bool
}

// GlobalScope is the shared global-scope value.
var GlobalScope = Scope{Global: true}

// Symbol is one (scope, name) -> kind binding.
type Symbol struct {
	Scope Scope
	Name  string
	Kind  Kind
}

type key struct {
	scope Scope
	name  string
}

// Env is the symbol environment. Invariant: (scope, name) is unique.
type Env struct {
	table map[key]Symbol
}

// NewEnv returns an empty symbol environment.
func NewEnv() *Env {
	return &Env{table: make(map[key]Symbol)}
}

// Define binds (scope, name) to kind, failing if already bound.
func (e *Env) Define(scope Scope, name string, kind Kind) error {
	k := key{scope, name}
	if existing, ok := e.table[k]; ok {
		return errors.Errorf("symbol environment: %q already bound in scope %q as kind %d", name, scope.Name, existing.Kind)
	}
	e.table[k] = Symbol{Scope: scope, Name: name, Kind: kind}
	return nil
}

// Lookup returns the symbol bound to (scope, name).
func (e *Env) Lookup(scope Scope, name string) (Symbol, bool) {
	s, ok := e.table[key{scope, name}]
	return s, ok
}

// Graph is a declaration dependency graph: an edge A -> B means "A's
// declaration references B's name" (e.g. a function block field whose type
// is another function block). It supports topological ordering and cycle
// detection for the POU-hierarchy pass.
type Graph struct {
	edges map[string][]string
	nodes map[string]bool
}

// NewGraph returns an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string][]string), nodes: make(map[string]bool)}
}

// AddNode registers a declaration name even if it has no outgoing edges.
func (g *Graph) AddNode(name string) {
	g.nodes[name] = true
}

// AddEdge records that from depends on to.
func (g *Graph) AddEdge(from, to string) {
	g.nodes[from] = true
	g.nodes[to] = true
	g.edges[from] = append(g.edges[from], to)
}

// state used during DFS-based topological sort.
type visitState int

const (
	unvisited visitState = iota
	visiting
	done
)

// TopoSort returns declaration names in dependency order (dependencies
// before dependents), or an error naming the first cycle found.
func (g *Graph) TopoSort() ([]string, error) {
	state := make(map[string]visitState, len(g.nodes))
	var order []string

	// Deterministic iteration: collect and sort node names first so the
	// resulting order (among independent components) is stable.
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	var visit func(n string, path []string) error
	visit = func(n string, path []string) error {
		switch state[n] {
		case done:
			return nil
		case visiting:
			return errors.Errorf("cyclic type reference involving %q (path: %v)", n, append(path, n))
		}
		state[n] = visiting
		deps := append([]string(nil), g.edges[n]...)
		sort.Strings(deps)
		for _, d := range deps {
			if err := visit(d, append(path, n)); err != nil {
				return err
			}
		}
		state[n] = done
		order = append(order, n)
		return nil
	}

	for _, n := range names {
		if err := visit(n, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
