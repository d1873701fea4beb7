// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

// Object is a live engine-side value that crosses the wire by
// reference. The dispatch loop parks Objects in the proxy cache and
// hands the peer a handle; get_proxy and set_proxy requests arrive
// here as attribute reads and writes.
type Object interface {
	// Attribute reads a named attribute. A returned Callable encodes
	// as a handle-form function reference the peer can call.
	Attribute(name string) (any, error)

	// SetAttribute writes a named attribute.
	SetAttribute(name string, value any) error
}

// Callable is anything the engine can invoke on behalf of the peer:
// registered builtins, and bound methods reached through get_proxy.
type Callable interface {
	// Invoke runs the callable with the given call context and
	// returns its results in declaration order.
	Invoke(call *Call) ([]any, error)

	// ResultCount is the number of results the callable naturally
	// produces, used when the caller does not state how many it
	// wants.
	ResultCount() int
}

// Func adapts a plain function and a declared result count into a
// Callable. Bound methods on live objects are usually Funcs built in
// an Attribute implementation.
type Func struct {
	Results int
	Fn      func(call *Call) ([]any, error)
}

// Invoke implements Callable.
func (f Func) Invoke(call *Call) ([]any, error) {
	return f.Fn(call)
}

// ResultCount implements Callable.
func (f Func) ResultCount() int {
	return f.Results
}
