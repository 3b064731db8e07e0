package lox

import (
	"fmt"

	"github.com/josharian/intern"
	"github.com/rami3l/golox/debug"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Environment is one lexical scope's variable table, linked to its
// enclosing scope. The resolver's depth annotations let the interpreter
// jump straight to the defining Environment instead of walking up on every
// miss, per the resolution-depth invariant in the data model.
type Environment struct {
	enclosing *Environment
	values    map[string]Value
}

func NewEnvironment(enclosing *Environment) *Environment {
	return &Environment{enclosing: enclosing, values: map[string]Value{}}
}

// Define introduces or overwrites a binding in this environment only.
func (e *Environment) Define(name string, v Value) {
	e.values[intern.String(name)] = v
}

func (e *Environment) Get(name Token) (Value, error) {
	if v, ok := e.values[name.Lexeme]; ok {
		return v, nil
	}
	return nil, newRuntimeError(name, fmt.Sprintf("undefined variable '%s'", name.Lexeme))
}

func (e *Environment) Assign(name Token, v Value) error {
	if _, ok := e.values[name.Lexeme]; ok {
		e.values[name.Lexeme] = v
		return nil
	}
	return newRuntimeError(name, fmt.Sprintf("undefined variable '%s'", name.Lexeme))
}

func (e *Environment) ancestor(depth int) *Environment {
	env := e
	for i := 0; i < depth; i++ {
		debug.Assertf(env.enclosing != nil, "resolved depth %d exceeds environment chain", depth)
		env = env.enclosing
	}
	return env
}

// names returns e's own variable names, sorted, for debug tracing of the
// environment chain (the tree-walking analogue of the bytecode VM's stack
// trace).
func (e *Environment) names() []string {
	ks := maps.Keys(e.values)
	slices.Sort(ks)
	return ks
}

// GetAt reads name exactly `depth` environments above e, per the resolver's
// contract: a resolved depth always addresses a defining environment, so no
// "undefined" fallback is needed here.
func (e *Environment) GetAt(depth int, name string) (Value, bool) {
	v, ok := e.ancestor(depth).values[name]
	return v, ok
}

func (e *Environment) AssignAt(depth int, name Token, v Value) {
	e.ancestor(depth).values[name.Lexeme] = v
}
