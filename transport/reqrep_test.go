// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bastibe/transplant/lib/testutil"
)

func TestPipeRoundTrip(t *testing.T) {
	requester, replier := Pipe()
	defer requester.Close()
	defer replier.Close()

	received := make(chan []byte, 1)
	go func() {
		frame, err := replier.Recv()
		if err != nil {
			t.Errorf("replier receive: %v", err)
			return
		}
		received <- frame
		if err := replier.Send([]byte("reply")); err != nil {
			t.Errorf("replier send: %v", err)
		}
	}()

	if err := requester.Send([]byte("request")); err != nil {
		t.Fatalf("send: %v", err)
	}
	frame := testutil.RequireReceive(t, received, 5*time.Second, "request delivery")
	if string(frame) != "request" {
		t.Errorf("replier got %q", frame)
	}
	reply, err := requester.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(reply) != "reply" {
		t.Errorf("requester got %q", reply)
	}
}

func TestEmptyPayload(t *testing.T) {
	requester, replier := Pipe()
	defer requester.Close()
	defer replier.Close()

	go func() {
		if err := requester.Send(nil); err != nil {
			t.Errorf("send: %v", err)
		}
	}()
	frame, err := replier.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if len(frame) != 0 {
		t.Errorf("got %d bytes, want empty frame", len(frame))
	}
}

func TestLockstepViolations(t *testing.T) {
	requester, replier := Pipe()
	defer requester.Close()
	defer replier.Close()

	if _, err := requester.Recv(); !errors.Is(err, ErrBadSequence) {
		t.Errorf("receive before send: got %v, want ErrBadSequence", err)
	}
	if err := replier.Send([]byte("unsolicited")); !errors.Is(err, ErrBadSequence) {
		t.Errorf("reply before request: got %v, want ErrBadSequence", err)
	}

	go replier.Recv()
	if err := requester.Send([]byte("first")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := requester.Send([]byte("second")); !errors.Is(err, ErrBadSequence) {
		t.Errorf("double send: got %v, want ErrBadSequence", err)
	}
}

func TestOversizedFrameRejectedOnSend(t *testing.T) {
	requester, replier := Pipe()
	defer requester.Close()
	defer replier.Close()

	huge := make([]byte, MaxMessageSize+1)
	if err := requester.Send(huge); !errors.Is(err, ErrTooLarge) {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
}

func TestInterruptPreservesPartialFrame(t *testing.T) {
	requester, replier := Pipe()
	defer requester.Close()
	defer replier.Close()

	var interrupted atomic.Bool
	interrupted.Store(true)
	replier.SetInterrupt(interrupted.Load)

	// The receive must abandon promptly while armed, with nothing on
	// the wire yet.
	if _, err := replier.Recv(); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("armed receive: got %v, want ErrInterrupted", err)
	}

	// Deliver a frame while still armed: the receive keeps abandoning
	// but must buffer whatever it read, then complete the same frame
	// once the interrupt clears.
	go requester.Send([]byte("survives interruption"))
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := replier.Recv(); errors.Is(err, ErrInterrupted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("armed receive never reported ErrInterrupted")
		}
	}
	interrupted.Store(false)
	frame, err := replier.Recv()
	if err != nil {
		t.Fatalf("resumed receive: %v", err)
	}
	if string(frame) != "survives interruption" {
		t.Errorf("resumed receive got %q", frame)
	}
}

func TestPeerCloseFailsReceive(t *testing.T) {
	requester, replier := Pipe()
	defer replier.Close()

	errs := make(chan error, 1)
	go func() {
		_, err := replier.Recv()
		errs <- err
	}()
	requester.Close()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "receive failure"); err == nil {
		t.Error("receive succeeded against a closed peer")
	}
}

func TestListenDialTCP(t *testing.T) {
	endpoint, err := ParseEndpoint("tcp://127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	listener, err := Listen(endpoint)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	type accepted struct {
		socket *ReqSocket
		err    error
	}
	accepts := make(chan accepted, 1)
	go func() {
		socket, err := listener.Accept()
		accepts <- accepted{socket, err}
	}()

	replier, err := Dial(context.Background(), listener.Endpoint())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer replier.Close()

	result := testutil.RequireReceive(t, accepts, 5*time.Second, "accept")
	if result.err != nil {
		t.Fatalf("accept: %v", result.err)
	}
	defer result.socket.Close()

	go result.socket.Send([]byte("over tcp"))
	frame, err := replier.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(frame) != "over tcp" {
		t.Errorf("got %q", frame)
	}
}

func TestListenDialIPC(t *testing.T) {
	socketPath := testutil.SocketDir(t) + "/engine.sock"
	endpoint, err := ParseEndpoint("ipc://" + socketPath)
	if err != nil {
		t.Fatal(err)
	}
	listener, err := Listen(endpoint)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go listener.Accept()
	replier, err := Dial(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	replier.Close()
}
