// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the controller side of the protocol: a typed,
// synchronous API over the requesting end of the channel.
//
// The controller listens; the engine dials in. Every method is one
// request/response round trip, and the transport enforces that
// alternation, so at most one call is ever in flight.
//
// Values returned by the engine by reference arrive as stubs: *Proxy
// for live objects, *RemoteFunction for callables. Stubs are explicit
// — attribute access, method calls, and release are all spelled out,
// with no dynamic forwarding — and they re-encode as references when
// passed back to the engine as arguments.
//
// Engine failures arrive as *EngineError carrying the engine's
// identifier, message, and stack. A transport failure at any point is
// ErrEngineDied: the protocol gives no way to distinguish a crashed
// engine from a severed connection, and neither is recoverable.
//
// There are no timeouts. A controller whose engine hangs inside a
// call blocks until the engine answers, the connection drops, or the
// operator interrupts the engine with InterruptProcess followed by
// Recover.
package client
