// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "net"

// Pipe returns a connected in-memory requester/replier pair for
// tests. Both ends support deadlines, so interruptible receives work
// the same as over a real connection.
func Pipe() (*ReqSocket, *RepSocket) {
	requester, replier := net.Pipe()
	return &ReqSocket{conn: requester, reader: frameReader{conn: requester}},
		&RepSocket{conn: replier, reader: frameReader{conn: replier}}
}
