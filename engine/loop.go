// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bastibe/transplant/proxy"
	"github.com/bastibe/transplant/transport"
	"github.com/bastibe/transplant/wire"
)

// Loop is the engine's dispatch loop: the synchronous
// receive-decode-execute-encode-send cycle over one reply socket.
// Exactly one request is serviced at a time; the Environment and
// Cache are touched only from Serve's goroutine.
type Loop struct {
	// Socket is the replying end of the channel. Required.
	Socket *transport.RepSocket

	// Env is the workspace the loop executes against. Required.
	Env *Environment

	// Cache holds live objects referenced over the wire. Required.
	Cache *proxy.Cache

	// Format is the wire encoding both ends agreed on. Required.
	Format wire.Format

	// Interrupt, when non-nil, lets an external signal abort the call
	// in progress. The same notifier is installed on the socket so a
	// blocked receive can be abandoned without losing frame state.
	Interrupt *Notifier

	// Logger receives loop diagnostics; nil means slog.Default.
	Logger *slog.Logger
}

// Serve runs the dispatch cycle until a die request (nil return) or a
// transport failure (non-nil return). Execution failures, protocol
// mistakes, and interrupts are answered over the wire and never end
// the loop. Serve survives a panic that unwinds a call in progress:
// the cycle is recovered, the peer gets an error response unless one
// was already sent for the in-flight request, and the workspace and
// cache carry over intact.
func (l *Loop) Serve() error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if l.Interrupt != nil {
		l.Socket.SetInterrupt(l.Interrupt.Interrupted)
	}
	logger.Info("dispatch loop running", "format", l.Format.Name())
	for {
		payload, err := l.Socket.Recv()
		if errors.Is(err, transport.ErrInterrupted) {
			// The interrupt landed between calls. There is no call to
			// abort and no response owed: clear the flag and receive
			// again, resuming any partially read frame.
			logger.Debug("interrupt between requests")
			l.Interrupt.Clear()
			continue
		}
		if err != nil {
			return fmt.Errorf("engine: receive: %w", err)
		}
		done, err := l.serveOne(logger, payload)
		if err != nil {
			return err
		}
		if done {
			logger.Info("dispatch loop terminating on die request")
			return nil
		}
	}
}

// serveOne handles one received request, always leaving the socket
// with the reply sent unless the transport itself failed. The
// responseSent flag decides, across a panic recovery, whether the
// revival path still owes the peer a response.
func (l *Loop) serveOne(logger *slog.Logger, payload []byte) (done bool, fatal error) {
	responseSent := false
	send := func(response wire.Response) error {
		data, err := wire.EncodeResponse(l.Format, response)
		if err != nil {
			// The response itself would not encode. The request still
			// needs an answer; fall back to a plain error response,
			// which always encodes.
			logger.Error("response failed to encode", "error", err)
			data, err = wire.EncodeResponse(l.Format, wire.ErrorResponse{
				Identifier: IDProtocol,
				Message:    fmt.Sprintf("response failed to encode: %v", err),
			})
			if err != nil {
				return fmt.Errorf("engine: encode error response: %w", err)
			}
		}
		if err := l.Socket.Send(data); err != nil {
			return fmt.Errorf("engine: send: %w", err)
		}
		responseSent = true
		return nil
	}

	defer func() {
		cause := recover()
		if cause == nil {
			return
		}
		// Revival: a panic unwound the call in progress. The
		// workspace and cache survive; the only question is whether
		// the peer is still owed a response for this request.
		response := wire.ErrorResponse{Identifier: IDInterrupted, Message: "call interrupted"}
		if _, interrupted := cause.(interruptPanic); interrupted {
			logger.Warn("call interrupted")
		} else {
			logger.Error("call panicked", "cause", cause)
			response = wire.ErrorResponse{
				Identifier: IDExecution,
				Message:    fmt.Sprintf("engine fault: %v", cause),
				Stack:      captureStack(2),
			}
		}
		l.Interrupt.Clear()
		if responseSent {
			return
		}
		fatal = send(response)
	}()

	request, err := wire.DecodeRequest(l.Format, payload)
	if err != nil {
		// A request that does not decode is a protocol mistake, not
		// an execution failure, whichever codec sentinel it wraps.
		logger.Debug("malformed request", "error", err)
		return false, send(wire.ErrorResponse{Identifier: IDProtocol, Message: err.Error()})
	}
	response, done := l.execute(logger, request)
	return done, send(response)
}

// execute performs one decoded request against the environment and
// cache.
func (l *Loop) execute(logger *slog.Logger, request wire.Request) (wire.Response, bool) {
	switch request := request.(type) {
	case wire.DieRequest:
		return wire.AckResponse{}, true

	case wire.SetGlobalRequest:
		value, err := decodeValue(l.Env, l.Cache, request.Value, 0)
		if err != nil {
			return errorResponse(err), false
		}
		l.Env.SetGlobal(request.Name, value)
		logger.Debug("global bound", "name", request.Name)
		return wire.AckResponse{}, false

	case wire.GetGlobalRequest:
		value, ok := l.Env.Global(request.Name)
		if !ok {
			// An unbound global that names a builtin is still useful
			// to the peer: hand back a callable reference.
			if _, isBuiltin := l.Env.Builtin(request.Name); isBuiltin {
				return wire.ValueResponse{Value: wire.NamedFunction(request.Name)}, false
			}
			return errorResponse(Errorf(IDUndefinedVariable,
				"no variable named %q", request.Name)), false
		}
		encoded, err := encodeValue(l.Cache, value, 0)
		if err != nil {
			return errorResponse(err), false
		}
		return wire.ValueResponse{Value: encoded}, false

	case wire.SetProxyRequest:
		object, err := l.cachedObject(request.Handle)
		if err != nil {
			return errorResponse(err), false
		}
		value, err := decodeValue(l.Env, l.Cache, request.Value, 0)
		if err != nil {
			return errorResponse(err), false
		}
		if err := object.SetAttribute(request.Name, value); err != nil {
			return errorResponse(err), false
		}
		return wire.AckResponse{}, false

	case wire.GetProxyRequest:
		object, err := l.cachedObject(request.Handle)
		if err != nil {
			return errorResponse(err), false
		}
		value, err := object.Attribute(request.Name)
		if err != nil {
			return errorResponse(err), false
		}
		encoded, err := encodeValue(l.Cache, value, 0)
		if err != nil {
			return errorResponse(err), false
		}
		return wire.ValueResponse{Value: encoded}, false

	case wire.DelProxyRequest:
		if err := l.Cache.Invalidate(proxy.Handle(request.Handle)); err != nil {
			return errorResponse(Errorf(IDInvalidHandle, "%v", err)), false
		}
		logger.Debug("handle invalidated", "handle", request.Handle)
		return wire.AckResponse{}, false

	case wire.CallRequest:
		response := l.call(request)
		return response, false
	}
	return errorResponse(Errorf(IDProtocol, "unknown request %T", request)), false
}

// cachedObject fetches a handle and requires it to be a live Object.
func (l *Loop) cachedObject(handle int) (Object, error) {
	cached, err := l.Cache.Get(proxy.Handle(handle))
	if err != nil {
		return nil, Errorf(IDInvalidHandle, "%v", err)
	}
	object, ok := cached.(Object)
	if !ok {
		return nil, Errorf(IDExecution,
			"handle %d holds %s, which has no attributes", handle, describe(cached))
	}
	return object, nil
}

// call resolves and invokes a call request, shaping the results by
// the requested count.
func (l *Loop) call(request wire.CallRequest) wire.Response {
	callable, err := l.resolveTarget(request.Target)
	if err != nil {
		return errorResponse(err)
	}
	args, err := decodeValue(l.Env, l.Cache, any(request.Args), 0)
	if err != nil {
		return errorResponse(err)
	}
	wanted := request.ResultCount
	if wanted > 0 && callable.ResultCount() < wanted {
		return errorResponse(Errorf(IDExecution,
			"caller wants %d results, callable produces %d", wanted, callable.ResultCount()))
	}
	call := &Call{
		Args:      args.([]any),
		Results:   wanted,
		env:       l.Env,
		interrupt: l.Interrupt,
	}
	results, err := callable.Invoke(call)
	if err != nil {
		return errorResponse(err)
	}
	if wanted < 0 {
		wanted = callable.ResultCount()
		if wanted > len(results) {
			wanted = len(results)
		}
	}
	switch {
	case wanted == 0:
		// The peer asked for no value. The first result, if any,
		// still lands in the implicit workspace slot and travels back
		// as the last-expression value.
		if len(results) == 0 {
			return wire.AckResponse{}
		}
		encoded, err := encodeValue(l.Cache, results[0], 0)
		if err != nil {
			return errorResponse(err)
		}
		l.Env.SetGlobal(AnsName, results[0])
		return wire.ValueResponse{Value: encoded}
	case wanted > len(results):
		return errorResponse(Errorf(IDExecution,
			"caller wants %d results, call produced %d", wanted, len(results)))
	case wanted == 1:
		encoded, err := encodeValue(l.Cache, results[0], 0)
		if err != nil {
			return errorResponse(err)
		}
		return wire.ValueResponse{Value: encoded}
	default:
		encoded, err := encodeValue(l.Cache, any(results[:wanted]), 0)
		if err != nil {
			return errorResponse(err)
		}
		return wire.ValueResponse{Value: encoded}
	}
}

// resolveTarget maps the wire form of a call target onto a Callable.
func (l *Loop) resolveTarget(target any) (Callable, error) {
	switch target := target.(type) {
	case string:
		return l.Env.ResolveCallable(target)
	case int64:
		return resolveFunction(l.Env, l.Cache, wire.HandledFunction(int(target)))
	case wire.FunctionRef:
		return resolveFunction(l.Env, l.Cache, target)
	}
	return nil, Errorf(IDProtocol, "call target is %s", describe(target))
}

// errorResponse shapes any engine error into the wire error envelope,
// preserving a specific identifier when the error carries one.
func errorResponse(err error) wire.ErrorResponse {
	identifier := IDExecution
	var withID interface{ Identifier() string }
	switch {
	case errors.As(err, &withID):
		identifier = withID.Identifier()
	case errors.Is(err, proxy.ErrInvalidHandle):
		identifier = IDInvalidHandle
	case errors.Is(err, wire.ErrMessage):
		identifier = IDProtocol
	}
	return wire.ErrorResponse{
		Identifier: identifier,
		Message:    err.Error(),
		Stack:      captureStack(1),
	}
}
