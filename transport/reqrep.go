// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
)

// ReqSocket is the requesting end of a channel. Calls must alternate
// Send, Recv, Send, Recv; it is not safe for concurrent use.
type ReqSocket struct {
	conn          net.Conn
	reader        frameReader
	awaitingReply bool
}

// Send transmits a request. It fails with ErrBadSequence while a
// reply is outstanding.
func (s *ReqSocket) Send(payload []byte) error {
	if s.awaitingReply {
		return fmt.Errorf("%w: send with a reply outstanding", ErrBadSequence)
	}
	if err := writeFrame(s.conn, payload); err != nil {
		return err
	}
	s.awaitingReply = true
	return nil
}

// Recv blocks for the reply to the last request. It fails with
// ErrBadSequence when no request is outstanding.
func (s *ReqSocket) Recv() ([]byte, error) {
	if !s.awaitingReply {
		return nil, fmt.Errorf("%w: receive with no request outstanding", ErrBadSequence)
	}
	frame, err := s.reader.read(nil)
	if err != nil {
		return nil, err
	}
	s.awaitingReply = false
	return frame, nil
}

// Close closes the connection. A blocked Recv on the other end fails.
func (s *ReqSocket) Close() error {
	return s.conn.Close()
}

// RepSocket is the replying end of a channel. Calls must alternate
// Recv, Send, Recv, Send; it is not safe for concurrent use.
type RepSocket struct {
	conn        net.Conn
	reader      frameReader
	interrupted func() bool
	replyOwed   bool
}

// SetInterrupt installs a predicate polled during blocked receives.
// While it reports true, Recv fails with ErrInterrupted instead of
// blocking; pass nil to restore plain blocking receives.
func (s *RepSocket) SetInterrupt(predicate func() bool) {
	s.interrupted = predicate
}

// Recv blocks for the next request. After an ErrInterrupted return
// the partially received frame stays buffered and a later Recv
// resumes it.
func (s *RepSocket) Recv() ([]byte, error) {
	if s.replyOwed {
		return nil, fmt.Errorf("%w: receive with a reply owed", ErrBadSequence)
	}
	frame, err := s.reader.read(s.interrupted)
	if err != nil {
		return nil, err
	}
	s.replyOwed = true
	return frame, nil
}

// Send transmits the reply to the last request. It fails with
// ErrBadSequence when no request is pending.
func (s *RepSocket) Send(payload []byte) error {
	if !s.replyOwed {
		return fmt.Errorf("%w: reply with no request pending", ErrBadSequence)
	}
	if err := writeFrame(s.conn, payload); err != nil {
		return err
	}
	s.replyOwed = false
	return nil
}

// Close closes the connection.
func (s *RepSocket) Close() error {
	return s.conn.Close()
}

// Dial connects to a listening controller and returns the replying
// end the engine drives.
func Dial(ctx context.Context, endpoint Endpoint) (*RepSocket, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, endpoint.Network, endpoint.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	return &RepSocket{conn: conn, reader: frameReader{conn: conn}}, nil
}

// Listener accepts engine connections on a bound endpoint.
type Listener struct {
	inner   net.Listener
	network string
}

// Listen binds an endpoint. For tcp endpoints a port of 0 picks a
// free port, reported by Endpoint.
func Listen(endpoint Endpoint) (*Listener, error) {
	inner, err := net.Listen(endpoint.Network, endpoint.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", endpoint, err)
	}
	return &Listener{inner: inner, network: endpoint.Network}, nil
}

// Endpoint returns the bound address, with any wildcard port
// resolved.
func (l *Listener) Endpoint() Endpoint {
	return Endpoint{Network: l.network, Address: l.inner.Addr().String()}
}

// Accept blocks for one engine connection and returns the requesting
// end the controller drives.
func (l *Listener) Accept() (*ReqSocket, error) {
	conn, err := l.inner.Accept()
	if err != nil {
		return nil, err
	}
	return &ReqSocket{conn: conn, reader: frameReader{conn: conn}}, nil
}

// Close stops listening. For ipc endpoints the socket file is
// removed.
func (l *Listener) Close() error {
	return l.inner.Close()
}
