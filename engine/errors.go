// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"runtime"

	"github.com/bastibe/transplant/wire"
)

// Error identifiers carried in error responses. Controllers match on
// these strings, so they are protocol constants.
const (
	// IDProtocol marks a malformed or unanswerable request: bad
	// envelope, unknown message type, missing field.
	IDProtocol = "transplant:protocol"

	// IDInvalidHandle marks a reference to a proxy handle that is out
	// of range or has been invalidated.
	IDInvalidHandle = "transplant:invalidHandle"

	// IDUndefinedVariable marks a get_global for an unbound name.
	IDUndefinedVariable = "transplant:undefinedVariable"

	// IDUndefinedFunction marks a call target that resolves to
	// nothing callable.
	IDUndefinedFunction = "transplant:undefinedFunction"

	// IDExecution marks a failure inside the invoked operation
	// itself.
	IDExecution = "transplant:execution"

	// IDInterrupted marks a call aborted by an external interrupt.
	IDInterrupted = "transplant:interrupted"
)

// Error is an engine failure with a stable identifier. Builtins
// return plain errors and get IDExecution; they return an *Error when
// a more specific identifier fits.
type Error struct {
	ID      string
	Message string
}

// Errorf builds an *Error with a formatted message.
func Errorf(id, format string, args ...any) *Error {
	return &Error{ID: id, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Identifier returns the protocol identifier.
func (e *Error) Identifier() string {
	return e.ID
}

// captureStack collects the executing goroutine's stack as wire
// frames, innermost first, skipping the given number of callers above
// captureStack itself and trimming the runtime's own frames.
func captureStack(skip int) []wire.Frame {
	callers := make([]uintptr, 32)
	n := runtime.Callers(skip+2, callers)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(callers[:n])
	var stack []wire.Frame
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			stack = append(stack, wire.Frame{
				File: frame.File,
				Line: frame.Line,
				Name: frame.Function,
			})
		}
		if !more {
			break
		}
	}
	return stack
}
