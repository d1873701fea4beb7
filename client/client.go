// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"

	"github.com/bastibe/transplant/transport"
	"github.com/bastibe/transplant/wire"
)

// Client is the controller's synchronous view of one engine session.
// Every method performs exactly one request/response round trip; the
// transport enforces the alternation, so a Client must not be shared
// between goroutines without external serialization.
type Client struct {
	socket *transport.ReqSocket
	format wire.Format
}

// New wraps an accepted requester socket. Both ends must agree on the
// format out of band (the engine daemon takes it from its config).
func New(socket *transport.ReqSocket, format wire.Format) *Client {
	return &Client{socket: socket, format: format}
}

// Listen binds an endpoint, waits for one engine to dial in, and
// returns a client over the accepted connection. The listener closes
// after the single accept; the protocol is one client, one engine.
func Listen(endpoint string, format wire.Format) (*Client, error) {
	parsed, err := transport.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	listener, err := transport.Listen(parsed)
	if err != nil {
		return nil, err
	}
	defer listener.Close()
	socket, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("client: accept: %w", err)
	}
	return New(socket, format), nil
}

// roundTrip sends one request and decodes its response. Error
// responses become *EngineError; transport failures in either
// direction become ErrEngineDied.
func (c *Client) roundTrip(request wire.Request) (wire.Response, error) {
	payload, err := wire.EncodeRequest(c.format, request)
	if err != nil {
		return nil, err
	}
	if err := c.socket.Send(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineDied, err)
	}
	reply, err := c.socket.Recv()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineDied, err)
	}
	response, err := wire.DecodeResponse(c.format, reply)
	if err != nil {
		return nil, err
	}
	if failure, ok := response.(wire.ErrorResponse); ok {
		return nil, &EngineError{
			Identifier: failure.Identifier,
			Message:    failure.Message,
			Stack:      failure.Stack,
		}
	}
	return response, nil
}

// ack performs a round trip that must answer with an ack.
func (c *Client) ack(request wire.Request) error {
	response, err := c.roundTrip(request)
	if err != nil {
		return err
	}
	if _, ok := response.(wire.AckResponse); !ok {
		return fmt.Errorf("%w: response is %T, want ack", wire.ErrMessage, response)
	}
	return nil
}

// value performs a round trip that must answer with a value, and
// wraps any references in the result as stubs bound to this client.
func (c *Client) value(request wire.Request) (any, error) {
	response, err := c.roundTrip(request)
	if err != nil {
		return nil, err
	}
	result, ok := response.(wire.ValueResponse)
	if !ok {
		return nil, fmt.Errorf("%w: response is %T, want value", wire.ErrMessage, response)
	}
	return c.wrapResult(result.Value, 0)
}

// SetGlobal binds a value to a name in the engine workspace.
func (c *Client) SetGlobal(name string, value any) error {
	unwrapped, err := unwrapArgument(value, 0)
	if err != nil {
		return err
	}
	return c.ack(wire.SetGlobalRequest{Name: name, Value: unwrapped})
}

// GetGlobal reads a name from the engine workspace. A name bound to a
// callable comes back as a *RemoteFunction.
func (c *Client) GetGlobal(name string) (any, error) {
	return c.value(wire.GetGlobalRequest{Name: name})
}

// Call invokes a named engine function asking for one result. An
// engine that acks instead, because the callee produced nothing,
// yields a nil result.
func (c *Client) Call(name string, args ...any) (any, error) {
	results, err := c.CallN(name, 1, args...)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// CallN invokes a callable with an explicit result count. A count of
// zero executes for effect: the result slice is empty unless the
// engine volunteered an implicit last-expression value, which then
// arrives as the single element. A count of -1 defers to the
// callee's declared result count.
//
// The target may be a function name, a *RemoteFunction, or a *Proxy
// attribute retrieved earlier.
func (c *Client) CallN(target any, count int, args ...any) ([]any, error) {
	wireTarget, err := callTarget(target)
	if err != nil {
		return nil, err
	}
	unwrapped := make([]any, len(args))
	for i, arg := range args {
		if unwrapped[i], err = unwrapArgument(arg, 0); err != nil {
			return nil, err
		}
	}
	response, err := c.roundTrip(wire.CallRequest{
		Target:      wireTarget,
		Args:        unwrapped,
		ResultCount: count,
	})
	if err != nil {
		return nil, err
	}
	switch response := response.(type) {
	case wire.AckResponse:
		return nil, nil
	case wire.ValueResponse:
		result, err := c.wrapResult(response.Value, 0)
		if err != nil {
			return nil, err
		}
		if count > 1 {
			sequence, ok := result.([]any)
			if !ok || len(sequence) != count {
				return nil, fmt.Errorf("%w: call answered with %s, want %d results",
					wire.ErrMessage, wire.Kind(result), count)
			}
			return sequence, nil
		}
		return []any{result}, nil
	}
	return nil, fmt.Errorf("%w: response is %T", wire.ErrMessage, response)
}

// callTarget maps the caller's view of a target to its wire form.
func callTarget(target any) (any, error) {
	switch target := target.(type) {
	case string:
		return target, nil
	case *RemoteFunction:
		if target.released {
			return nil, fmt.Errorf("%w: function %v", ErrReleased, target.ref)
		}
		return target.ref, nil
	case wire.FunctionRef:
		return target, nil
	}
	return nil, fmt.Errorf("%w: call target is %T", wire.ErrMessage, target)
}

// Die asks the engine to exit. The engine acks before terminating.
func (c *Client) Die() error {
	return c.ack(wire.DieRequest{})
}

// Close closes the connection without the die handshake. The engine
// will observe a transport failure and exit on its own.
func (c *Client) Close() error {
	return c.socket.Close()
}

// Recover restores request/response lockstep after an interrupted
// call by receiving and discarding the outstanding response. Call it
// after InterruptProcess when a Call was in flight; the discarded
// response is the interrupted call's answer, whose content is
// undefined.
func (c *Client) Recover() error {
	if _, err := c.socket.Recv(); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineDied, err)
	}
	return nil
}
