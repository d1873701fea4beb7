// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"math"

	"github.com/bastibe/transplant/wire"
)

// Call is the context handed to a Callable: the decoded arguments,
// the number of results the peer asked for, and the interrupt
// safepoint.
type Call struct {
	// Args are the call arguments, already translated: object and
	// function references resolved to live values.
	Args []any

	// Results is the requested result count, or -1 when the caller
	// left the choice to the callee's declaration.
	Results int

	env       *Environment
	interrupt *Notifier
}

// Environment returns the engine environment the call runs in.
func (c *Call) Environment() *Environment {
	return c.env
}

// CheckInterrupt is the cooperative safepoint for long-running
// builtins. When an external interrupt is pending it unwinds the
// call; the dispatch loop recovers the unwind and answers the peer
// with an interrupted error.
func (c *Call) CheckInterrupt() {
	if c.interrupt.Interrupted() {
		panic(interruptPanic{})
	}
}

// Arity fails unless the call has between min and max arguments; a
// max of -1 means unbounded.
func (c *Call) Arity(min, max int) error {
	if len(c.Args) < min || (max >= 0 && len(c.Args) > max) {
		if min == max {
			return Errorf(IDExecution, "want %d arguments, got %d", min, len(c.Args))
		}
		if max < 0 {
			return Errorf(IDExecution, "want at least %d arguments, got %d", min, len(c.Args))
		}
		return Errorf(IDExecution, "want %d to %d arguments, got %d", min, max, len(c.Args))
	}
	return nil
}

// Arg returns argument i, which must exist.
func (c *Call) Arg(i int) (any, error) {
	if i < 0 || i >= len(c.Args) {
		return nil, Errorf(IDExecution, "missing argument %d", i+1)
	}
	return c.Args[i], nil
}

// String returns argument i as a string.
func (c *Call) String(i int) (string, error) {
	arg, err := c.Arg(i)
	if err != nil {
		return "", err
	}
	value, ok := arg.(string)
	if !ok {
		return "", Errorf(IDExecution, "argument %d is %s, want string", i+1, wire.Kind(arg))
	}
	return value, nil
}

// Int returns argument i as an integer. Floats with an exact integer
// value are accepted, since peers with only a double type send counts
// that way.
func (c *Call) Int(i int) (int64, error) {
	arg, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	switch value := arg.(type) {
	case int64:
		return value, nil
	case uint64:
		if value > math.MaxInt64 {
			return 0, Errorf(IDExecution, "argument %d overflows an integer", i+1)
		}
		return int64(value), nil
	case float64:
		if value != math.Trunc(value) || math.IsInf(value, 0) {
			return 0, Errorf(IDExecution, "argument %d is not an integer", i+1)
		}
		return int64(value), nil
	}
	return 0, Errorf(IDExecution, "argument %d is %s, want integer", i+1, wire.Kind(arg))
}

// Float returns argument i as a float64, widening integers.
func (c *Call) Float(i int) (float64, error) {
	arg, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	switch value := arg.(type) {
	case float64:
		return value, nil
	case int64:
		return float64(value), nil
	case uint64:
		return float64(value), nil
	}
	return 0, Errorf(IDExecution, "argument %d is %s, want number", i+1, wire.Kind(arg))
}

// Sequence returns argument i as a sequence.
func (c *Call) Sequence(i int) ([]any, error) {
	arg, err := c.Arg(i)
	if err != nil {
		return nil, err
	}
	value, ok := arg.([]any)
	if !ok {
		return nil, Errorf(IDExecution, "argument %d is %s, want sequence", i+1, wire.Kind(arg))
	}
	return value, nil
}

// Matrix returns argument i as a dense matrix.
func (c *Call) Matrix(i int) (*wire.Matrix, error) {
	arg, err := c.Arg(i)
	if err != nil {
		return nil, err
	}
	value, ok := arg.(*wire.Matrix)
	if !ok {
		return nil, Errorf(IDExecution, "argument %d is %s, want matrix", i+1, wire.Kind(arg))
	}
	return value, nil
}

// Sparse returns argument i as a sparse matrix.
func (c *Call) Sparse(i int) (*wire.Sparse, error) {
	arg, err := c.Arg(i)
	if err != nil {
		return nil, err
	}
	value, ok := arg.(*wire.Sparse)
	if !ok {
		return nil, Errorf(IDExecution, "argument %d is %s, want sparse matrix", i+1, wire.Kind(arg))
	}
	return value, nil
}
