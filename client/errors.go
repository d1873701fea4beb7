// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bastibe/transplant/wire"
)

// ErrEngineDied reports that the connection to the engine failed.
// Any transport failure during a round trip means the engine process
// is gone or unreachable, never a recoverable engine error.
var ErrEngineDied = errors.New("client: engine died")

// ErrReleased reports use of a proxy or function stub after its
// handle was released.
var ErrReleased = errors.New("client: handle released")

// EngineError is an error response re-raised on the controller side.
// It carries the engine's identifier, message, and stack so callers
// can match programmatically or show a full remote traceback.
type EngineError struct {
	Identifier string
	Message    string
	Stack      []wire.Frame
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Identifier, e.Message)
}

// Traceback renders the engine-side stack, innermost frame first.
func (e *EngineError) Traceback() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", e.Identifier, e.Message)
	for _, frame := range e.Stack {
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", frame.Name, frame.File, frame.Line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// IsEngineError reports whether err is an engine error with the given
// identifier.
func IsEngineError(err error, identifier string) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr) && engineErr.Identifier == identifier
}
