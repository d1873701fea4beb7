// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// ObjectRef stands in for an engine-side object that cannot cross the
// wire by value. The handle indexes the engine's proxy cache; it is
// meaningful only to the engine that issued it, and only until that
// engine invalidates it.
type ObjectRef struct {
	Handle int
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("object<%d>", r.Handle)
}

// FunctionRef stands in for an engine-side callable. Exactly one of
// Name and Handle is meaningful: a named reference addresses a global
// function of the engine, a handled reference addresses an anonymous
// or bound callable parked in the proxy cache. ByHandle distinguishes
// the two, so that handle 0 remains a valid cache slot.
type FunctionRef struct {
	Name     string
	Handle   int
	ByHandle bool
}

// NamedFunction builds a reference to a global engine function.
func NamedFunction(name string) FunctionRef {
	return FunctionRef{Name: name}
}

// HandledFunction builds a reference to a cached callable.
func HandledFunction(handle int) FunctionRef {
	return FunctionRef{Handle: handle, ByHandle: true}
}

func (r FunctionRef) String() string {
	if r.ByHandle {
		return fmt.Sprintf("function<%d>", r.Handle)
	}
	return fmt.Sprintf("function %q", r.Name)
}
