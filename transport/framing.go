// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

// MaxMessageSize caps a single frame's payload. Large matrices fit
// comfortably; a corrupt length prefix does not turn into a half-GiB
// allocation.
const MaxMessageSize = 512 << 20

// interruptPollInterval is how often a blocked interruptible receive
// wakes to check the interrupt predicate.
const interruptPollInterval = 25 * time.Millisecond

var (
	// ErrBadSequence reports a Send or Recv out of request-reply
	// order.
	ErrBadSequence = errors.New("transport: message out of sequence")

	// ErrInterrupted reports a receive abandoned by the interrupt
	// predicate. The partially read frame stays buffered; the next
	// receive resumes it.
	ErrInterrupted = errors.New("transport: receive interrupted")

	// ErrTooLarge reports a frame beyond MaxMessageSize, on either
	// the sending or the receiving path.
	ErrTooLarge = errors.New("transport: message too large")
)

// frameReader accumulates one frame across possibly interrupted
// reads. headerFilled and payloadFilled persist between calls so an
// ErrInterrupted return never loses bytes already consumed from the
// connection.
type frameReader struct {
	conn          net.Conn
	header        [4]byte
	headerFilled  int
	payload       []byte
	payloadFilled int
}

// read returns the next complete frame. With a non-nil interrupted
// predicate, the read polls it between slices and fails with
// ErrInterrupted when it reports true, leaving partial state in
// place.
func (r *frameReader) read(interrupted func() bool) ([]byte, error) {
	if interrupted == nil {
		if err := r.conn.SetReadDeadline(time.Time{}); err != nil {
			return nil, err
		}
	}
	for {
		if interrupted != nil {
			if interrupted() {
				return nil, ErrInterrupted
			}
			if err := r.conn.SetReadDeadline(time.Now().Add(interruptPollInterval)); err != nil {
				return nil, err
			}
		}
		if r.headerFilled < len(r.header) {
			n, err := r.conn.Read(r.header[r.headerFilled:])
			r.headerFilled += n
			if err != nil {
				if isTimeout(err) {
					continue
				}
				return nil, err
			}
			if r.headerFilled < len(r.header) {
				continue
			}
			length := binary.BigEndian.Uint32(r.header[:])
			if length > MaxMessageSize {
				return nil, fmt.Errorf("%w: %d byte frame", ErrTooLarge, length)
			}
			r.payload = make([]byte, length)
			r.payloadFilled = 0
		}
		if r.payloadFilled < len(r.payload) {
			n, err := r.conn.Read(r.payload[r.payloadFilled:])
			r.payloadFilled += n
			if err != nil {
				if isTimeout(err) {
					continue
				}
				return nil, err
			}
			if r.payloadFilled < len(r.payload) {
				continue
			}
		}
		frame := r.payload
		r.headerFilled = 0
		r.payload = nil
		r.payloadFilled = 0
		return frame, nil
	}
}

// writeFrame sends one frame. The header and payload go out in a
// single Write so a peer never observes a bare header.
func writeFrame(conn net.Conn, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d byte frame", ErrTooLarge, len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := conn.Write(frame)
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
