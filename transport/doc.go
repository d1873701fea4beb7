// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries protocol messages over a strict
// request-reply channel.
//
// The controller listens and holds the requesting end; the engine
// dials in and holds the replying end. Exactly one request is in
// flight at a time: the requester must alternate Send and Recv, the
// replier must alternate Recv and Send, and either side breaking the
// cadence fails immediately with ErrBadSequence rather than
// interleaving messages.
//
// Messages travel as frames: a four-byte big-endian payload length
// followed by the payload. Oversized frames are rejected on both
// paths so a corrupt or hostile peer cannot force an arbitrary
// allocation.
//
// The replying end supports cooperative interruption: with an
// interrupt predicate installed, a blocked receive wakes periodically
// and fails with ErrInterrupted while the partially read frame stays
// buffered, so a later receive resumes the same frame without losing
// bytes.
//
// Endpoints are written "tcp://host:port" or "ipc:///path/to/socket".
// An in-memory pair for tests comes from Pipe.
package transport
