// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"

	"github.com/bastibe/transplant/wire"
)

// maxWrapDepth bounds result and argument walks, mirroring the
// engine's own translation limit.
const maxWrapDepth = 10000

// Proxy is the controller-side stub for a live engine object. All
// access is explicit: Get and Set move attributes over the wire,
// CallMethod invokes a callable attribute, Release invalidates the
// engine-side handle. After Release every method fails with
// ErrReleased.
type Proxy struct {
	client   *Client
	handle   int
	released bool
}

// Handle returns the engine-side cache handle.
func (p *Proxy) Handle() int {
	return p.handle
}

func (p *Proxy) String() string {
	return fmt.Sprintf("proxy<%d>", p.handle)
}

// Get reads an attribute of the remote object.
func (p *Proxy) Get(name string) (any, error) {
	if p.released {
		return nil, fmt.Errorf("%w: %v", ErrReleased, p)
	}
	return p.client.value(wire.GetProxyRequest{Handle: p.handle, Name: name})
}

// Set assigns an attribute of the remote object.
func (p *Proxy) Set(name string, value any) error {
	if p.released {
		return fmt.Errorf("%w: %v", ErrReleased, p)
	}
	unwrapped, err := unwrapArgument(value, 0)
	if err != nil {
		return err
	}
	return p.client.ack(wire.SetProxyRequest{Handle: p.handle, Name: name, Value: unwrapped})
}

// CallMethod reads a callable attribute and invokes it with one
// requested result.
func (p *Proxy) CallMethod(name string, args ...any) (any, error) {
	attribute, err := p.Get(name)
	if err != nil {
		return nil, err
	}
	function, ok := attribute.(*RemoteFunction)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q is not callable", wire.ErrMessage, name)
	}
	result, err := function.Call(args...)
	// The method's handle lives only for this call; a failed release
	// matters to the caller too.
	if releaseErr := function.Release(); releaseErr != nil {
		err = errors.Join(err, releaseErr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release invalidates the engine-side handle. The engine may reuse
// it for a later object; this stub is dead either way.
func (p *Proxy) Release() error {
	if p.released {
		return fmt.Errorf("%w: %v", ErrReleased, p)
	}
	p.released = true
	return p.client.ack(wire.DelProxyRequest{Handle: p.handle})
}

// RemoteFunction is the controller-side stub for an engine callable:
// either a named global function or an anonymous callable parked in
// the engine's cache.
type RemoteFunction struct {
	client   *Client
	ref      wire.FunctionRef
	released bool
}

func (f *RemoteFunction) String() string {
	return f.ref.String()
}

// Call invokes the function asking for one result. An engine that
// acks instead, because the callee produced nothing, yields a nil
// result.
func (f *RemoteFunction) Call(args ...any) (any, error) {
	results, err := f.client.CallN(f, 1, args...)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// CallN invokes the function with an explicit result count.
func (f *RemoteFunction) CallN(count int, args ...any) ([]any, error) {
	return f.client.CallN(f, count, args...)
}

// Release invalidates a handle-form function's cache slot. Named
// functions hold no engine state; releasing one only retires the
// stub.
func (f *RemoteFunction) Release() error {
	if f.released {
		return fmt.Errorf("%w: function %v", ErrReleased, f.ref)
	}
	f.released = true
	if !f.ref.ByHandle {
		return nil
	}
	return f.client.ack(wire.DelProxyRequest{Handle: f.ref.Handle})
}

// wrapResult replaces references in a decoded result with stubs bound
// to this client, walking containers element-wise.
func (c *Client) wrapResult(value any, depth int) (any, error) {
	if depth > maxWrapDepth {
		return nil, fmt.Errorf("%w: result nested deeper than %d", wire.ErrMessage, maxWrapDepth)
	}
	switch value := value.(type) {
	case wire.ObjectRef:
		return &Proxy{client: c, handle: value.Handle}, nil
	case wire.FunctionRef:
		return &RemoteFunction{client: c, ref: value}, nil
	case []any:
		wrapped := make([]any, len(value))
		for i, element := range value {
			element, err := c.wrapResult(element, depth+1)
			if err != nil {
				return nil, err
			}
			wrapped[i] = element
		}
		return wrapped, nil
	case map[string]any:
		wrapped := make(map[string]any, len(value))
		for key, element := range value {
			element, err := c.wrapResult(element, depth+1)
			if err != nil {
				return nil, err
			}
			wrapped[key] = element
		}
		return wrapped, nil
	}
	return value, nil
}

// unwrapArgument reverses wrapResult for outgoing values: stubs
// become their wire references, so a proxied object can be passed
// back to the engine as a call argument.
func unwrapArgument(value any, depth int) (any, error) {
	if depth > maxWrapDepth {
		return nil, fmt.Errorf("%w: argument nested deeper than %d", wire.ErrMessage, maxWrapDepth)
	}
	switch value := value.(type) {
	case *Proxy:
		if value.released {
			return nil, fmt.Errorf("%w: %v", ErrReleased, value)
		}
		return wire.ObjectRef{Handle: value.handle}, nil
	case *RemoteFunction:
		if value.released {
			return nil, fmt.Errorf("%w: function %v", ErrReleased, value.ref)
		}
		return value.ref, nil
	case []any:
		unwrapped := make([]any, len(value))
		for i, element := range value {
			element, err := unwrapArgument(element, depth+1)
			if err != nil {
				return nil, err
			}
			unwrapped[i] = element
		}
		return unwrapped, nil
	case map[string]any:
		unwrapped := make(map[string]any, len(value))
		for key, element := range value {
			element, err := unwrapArgument(element, depth+1)
			if err != nil {
				return nil, err
			}
			unwrapped[key] = element
		}
		return unwrapped, nil
	}
	return value, nil
}
