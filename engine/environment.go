// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"log/slog"
	"sort"
)

// AnsName is the workspace slot holding the implicit result of a call
// that asked for zero results, mirroring the interactive convention
// of numeric environments.
const AnsName = "ans"

// Builtin is a named engine function with declared result metadata.
// The declared count is the number of results Fn produces when
// allowed to; callers asking for fewer get a prefix, callers asking
// for more get an execution error before Fn runs.
type Builtin struct {
	Name    string
	Results int
	Help    string
	Fn      func(call *Call) ([]any, error)
}

// Invoke implements Callable.
func (b *Builtin) Invoke(call *Call) ([]any, error) {
	return b.Fn(call)
}

// ResultCount implements Callable.
func (b *Builtin) ResultCount() int {
	return b.Results
}

// Environment is the engine-side workspace: named global values plus
// the registry of builtin functions. One Environment lives per engine
// session, injected into the dispatch loop rather than held in
// package state, and it survives interrupted calls unchanged. It is
// confined to the dispatch goroutine and needs no locking.
type Environment struct {
	globals  map[string]any
	builtins map[string]*Builtin

	// SnapshotDir is where relative save/load paths resolve. Empty
	// means the process working directory.
	SnapshotDir string

	// Logger receives workspace diagnostics; nil means slog.Default.
	Logger *slog.Logger
}

// NewEnvironment returns an environment with the standard builtin
// library registered.
func NewEnvironment() *Environment {
	env := &Environment{
		globals:  make(map[string]any),
		builtins: make(map[string]*Builtin),
	}
	registerBuiltins(env)
	return env
}

func (e *Environment) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Register adds a builtin to the registry, replacing any previous
// builtin of the same name.
func (e *Environment) Register(builtin *Builtin) {
	e.builtins[builtin.Name] = builtin
}

// SetGlobal binds a value to a workspace name.
func (e *Environment) SetGlobal(name string, value any) {
	e.globals[name] = value
}

// Global reads a workspace name.
func (e *Environment) Global(name string) (any, bool) {
	value, ok := e.globals[name]
	return value, ok
}

// DeleteGlobal unbinds a workspace name. Unbinding an absent name is
// a no-op.
func (e *Environment) DeleteGlobal(name string) {
	delete(e.globals, name)
}

// GlobalNames returns the bound workspace names in sorted order.
func (e *Environment) GlobalNames() []string {
	names := make([]string, 0, len(e.globals))
	for name := range e.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin looks up a registered builtin by name.
func (e *Environment) Builtin(name string) (*Builtin, bool) {
	builtin, ok := e.builtins[name]
	return builtin, ok
}

// BuiltinNames returns the registered builtin names in sorted order.
func (e *Environment) BuiltinNames() []string {
	names := make([]string, 0, len(e.builtins))
	for name := range e.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveCallable resolves a call target name: a workspace global
// bound to a callable shadows a builtin of the same name, matching
// lookup order in the interactive environments this protocol fronts.
func (e *Environment) ResolveCallable(name string) (Callable, error) {
	if value, ok := e.globals[name]; ok {
		if callable, ok := value.(Callable); ok {
			return callable, nil
		}
		return nil, Errorf(IDUndefinedFunction, "%q is bound to a %T, not a callable", name, value)
	}
	if builtin, ok := e.builtins[name]; ok {
		return builtin, nil
	}
	return nil, Errorf(IDUndefinedFunction, "no function named %q", name)
}
