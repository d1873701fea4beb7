// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the computation side of the protocol: a
// workspace of named globals, a registry of callable builtins, and
// the dispatch loop that services requests one at a time over a reply
// socket.
//
// The loop owns all mutable state. The Environment and the proxy
// cache are touched only from Serve's goroutine, so neither needs
// locking; a caller that wants parallel dispatch must add its own
// mutual exclusion around both, which this package deliberately does
// not provide.
//
// Live values cross the wire by reference. A builtin that returns an
// Object or a Callable has it parked in the proxy cache and replaced
// by a handle; later requests read attributes, assign attributes, or
// invoke the cached value through that handle until the peer releases
// it.
//
// Interruption is external. A Notifier armed from a signal handler
// unwinds the call in progress at its next safepoint; Serve recovers
// the unwind, answers the peer if an answer is still owed, and keeps
// the workspace and cache intact. The loop itself only ends on a die
// request or a transport failure.
package engine
