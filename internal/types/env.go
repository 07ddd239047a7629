package types

import "github.com/pkg/errors"

// Env is the type environment: a mapping type-name -> Type, pre-populated
// with the elementary types (spec.md §3: "Type environment"). Invariant:
// each name bound at most once (enforced by Define).
type Env struct {
	byName map[string]*Type
}

// NewEnv returns a type environment seeded with the elementary types.
func NewEnv() *Env {
	e := &Env{byName: make(map[string]*Type, len(Elementary))}
	for name, t := range Elementary {
		e.byName[name] = t
	}
	return e
}

// Define binds name to t. It is an error to redefine an existing name —
// this is the "stdlib type redefinition" rule from spec.md §4.4, modeled
// directly here since it is purely a type-environment invariant.
func (e *Env) Define(name string, t *Type) error {
	if _, exists := e.byName[name]; exists {
		return errors.Errorf("type environment: %q already bound", name)
	}
	e.byName[name] = t
	return nil
}

// Lookup returns the type bound to name, or (nil, false).
func (e *Env) Lookup(name string) (*Type, bool) {
	t, ok := e.byName[name]
	return t, ok
}

// Names returns all bound type names, for diagnostics and iteration.
func (e *Env) Names() []string {
	out := make([]string, 0, len(e.byName))
	for n := range e.byName {
		out = append(out, n)
	}
	return out
}
