// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bastibe/transplant/lib/testutil"
	"github.com/bastibe/transplant/proxy"
	"github.com/bastibe/transplant/transport"
	"github.com/bastibe/transplant/wire"
)

// session is a dispatch loop served over an in-memory pipe, driven
// from the test through the requester end.
type session struct {
	t         *testing.T
	socket    *transport.ReqSocket
	loop      *Loop
	interrupt *Notifier
	served    chan error
}

func newSession(t *testing.T) *session {
	t.Helper()
	requester, replier := transport.Pipe()
	interrupt := &Notifier{}
	loop := &Loop{
		Socket:    replier,
		Env:       NewEnvironment(),
		Cache:     proxy.NewCache(),
		Format:    wire.Binary,
		Interrupt: interrupt,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s := &session{
		t:         t,
		socket:    requester,
		loop:      loop,
		interrupt: interrupt,
		served:    make(chan error, 1),
	}
	go func() {
		s.served <- loop.Serve()
	}()
	t.Cleanup(func() {
		requester.Close()
		replier.Close()
	})
	return s
}

// roundTrip sends one request and returns the engine's response.
func (s *session) roundTrip(request wire.Request) wire.Response {
	s.t.Helper()
	payload, err := wire.EncodeRequest(wire.Binary, request)
	if err != nil {
		s.t.Fatalf("encode request: %v", err)
	}
	if err := s.socket.Send(payload); err != nil {
		s.t.Fatalf("send: %v", err)
	}
	reply, err := s.socket.Recv()
	if err != nil {
		s.t.Fatalf("recv: %v", err)
	}
	response, err := wire.DecodeResponse(wire.Binary, reply)
	if err != nil {
		s.t.Fatalf("decode response: %v", err)
	}
	return response
}

// expectValue asserts a value response and returns its payload.
func (s *session) expectValue(request wire.Request) any {
	s.t.Helper()
	response := s.roundTrip(request)
	value, ok := response.(wire.ValueResponse)
	if !ok {
		s.t.Fatalf("got %#v, want a value response", response)
	}
	return value.Value
}

// expectAck asserts an ack response.
func (s *session) expectAck(request wire.Request) {
	s.t.Helper()
	if response := s.roundTrip(request); response != (wire.AckResponse{}) {
		s.t.Fatalf("got %#v, want ack", response)
	}
}

// expectError asserts an error response with the given identifier.
func (s *session) expectError(request wire.Request, identifier string) wire.ErrorResponse {
	s.t.Helper()
	response := s.roundTrip(request)
	failure, ok := response.(wire.ErrorResponse)
	if !ok {
		s.t.Fatalf("got %#v, want an error response", response)
	}
	if failure.Identifier != identifier {
		s.t.Fatalf("error identifier %q, want %q (message: %s)",
			failure.Identifier, identifier, failure.Message)
	}
	return failure
}

// die runs the termination handshake and waits for Serve to return.
func (s *session) die() {
	s.t.Helper()
	s.expectAck(wire.DieRequest{})
	if err := testutil.RequireReceive(s.t, s.served, 5*time.Second, "Serve return"); err != nil {
		s.t.Fatalf("Serve returned %v after die", err)
	}
}

func TestGlobalRoundTrip(t *testing.T) {
	s := newSession(t)
	defer s.die()

	s.expectAck(wire.SetGlobalRequest{Name: "x", Value: []any{int64(1), "two"}})
	value := s.expectValue(wire.GetGlobalRequest{Name: "x"})
	if !wire.Equal(value, []any{int64(1), "two"}) {
		t.Errorf("got %#v", value)
	}

	s.expectError(wire.GetGlobalRequest{Name: "absent"}, IDUndefinedVariable)

	// A builtin's name reads back as a callable reference.
	value = s.expectValue(wire.GetGlobalRequest{Name: "concat"})
	if value != wire.NamedFunction("concat") {
		t.Errorf("builtin read back as %#v", value)
	}
}

func TestCallConcat(t *testing.T) {
	s := newSession(t)
	defer s.die()

	value := s.expectValue(wire.CallRequest{
		Target:      "concat",
		Args:        []any{[]any{int64(1), int64(2)}, []any{int64(3), int64(4)}},
		ResultCount: 1,
	})
	if !wire.Equal(value, []any{int64(1), int64(2), int64(3), int64(4)}) {
		t.Errorf("concat returned %#v", value)
	}
}

func TestCallResultCounts(t *testing.T) {
	s := newSession(t)
	defer s.die()

	matrix, err := wire.MatrixFromFloat64s([]int{4}, []float64{3, 1, 7, 2})
	if err != nil {
		t.Fatal(err)
	}

	// Two results on request: value and one-based index.
	value := s.expectValue(wire.CallRequest{Target: "max", Args: []any{matrix}, ResultCount: 2})
	if !wire.Equal(value, []any{7.0, int64(3)}) {
		t.Errorf("max with two results returned %#v", value)
	}

	// One result: just the value.
	value = s.expectValue(wire.CallRequest{Target: "max", Args: []any{matrix}, ResultCount: 1})
	if value != 7.0 {
		t.Errorf("max with one result returned %#v", value)
	}

	// Unstated count falls back to the declared two.
	value = s.expectValue(wire.CallRequest{Target: "max", Args: []any{matrix}, ResultCount: -1})
	if !wire.Equal(value, []any{7.0, int64(3)}) {
		t.Errorf("max with declared count returned %#v", value)
	}

	// More results than declared is refused before the call runs.
	s.expectError(wire.CallRequest{Target: "max", Args: []any{matrix}, ResultCount: 3},
		IDExecution)
}

func TestCallZeroResultsBindsAns(t *testing.T) {
	s := newSession(t)
	defer s.die()

	matrix, err := wire.MatrixFromFloat64s([]int{3}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	// Zero requested results still surfaces the implicit value and
	// binds it to ans.
	value := s.expectValue(wire.CallRequest{Target: "sum", Args: []any{matrix}, ResultCount: 0})
	if value != 6.0 {
		t.Errorf("implicit result %#v", value)
	}
	if ans := s.expectValue(wire.GetGlobalRequest{Name: AnsName}); ans != 6.0 {
		t.Errorf("ans bound to %#v", ans)
	}

	// A zero-result builtin acks instead.
	s.expectAck(wire.CallRequest{Target: "clear", Args: []any{}, ResultCount: 0})
}

func TestCallTargetResolution(t *testing.T) {
	s := newSession(t)
	defer s.die()

	s.expectError(wire.CallRequest{Target: "no_such_function", Args: []any{}, ResultCount: 1},
		IDUndefinedFunction)

	// A global bound to a non-callable is not invocable by name.
	s.expectAck(wire.SetGlobalRequest{Name: "concat", Value: int64(1)})
	s.expectError(wire.CallRequest{Target: "concat", Args: []any{}, ResultCount: 1},
		IDUndefinedFunction)
	s.expectAck(wire.CallRequest{Target: "clear", Args: []any{"concat"}, ResultCount: 0})

	// Function references resolve like names.
	value := s.expectValue(wire.CallRequest{
		Target:      wire.NamedFunction("length"),
		Args:        []any{"hello"},
		ResultCount: 1,
	})
	if value != int64(5) {
		t.Errorf("length via function ref returned %#v", value)
	}
}

func TestProxyLifecycle(t *testing.T) {
	s := newSession(t)
	defer s.die()

	value := s.expectValue(wire.CallRequest{Target: "accumulator", Args: []any{}, ResultCount: 1})
	ref, ok := value.(wire.ObjectRef)
	if !ok {
		t.Fatalf("accumulator returned %#v, want an object reference", value)
	}

	// Attribute reads and writes through the handle.
	if total := s.expectValue(wire.GetProxyRequest{Handle: ref.Handle, Name: "total"}); total != 0.0 {
		t.Errorf("fresh total %#v", total)
	}
	s.expectAck(wire.SetProxyRequest{Handle: ref.Handle, Name: "total", Value: 10.0})

	// A method arrives as a handled function and is callable by that
	// handle.
	method := s.expectValue(wire.GetProxyRequest{Handle: ref.Handle, Name: "add"})
	methodRef, ok := method.(wire.FunctionRef)
	if !ok || !methodRef.ByHandle {
		t.Fatalf("add attribute is %#v, want a handled function", method)
	}
	value = s.expectValue(wire.CallRequest{
		Target:      int64(methodRef.Handle),
		Args:        []any{2.5, 2.5},
		ResultCount: 1,
	})
	if value != 15.0 {
		t.Errorf("add returned %#v", value)
	}

	// The object as a call argument round-trips by reference: its
	// identity is preserved, so length sees the same live object.
	s.expectError(wire.CallRequest{Target: "length", Args: []any{ref}, ResultCount: 1},
		IDExecution)

	// Release, then every access fails with the invalid handle
	// identifier.
	s.expectAck(wire.DelProxyRequest{Handle: ref.Handle})
	s.expectError(wire.GetProxyRequest{Handle: ref.Handle, Name: "total"}, IDInvalidHandle)
	s.expectError(wire.SetProxyRequest{Handle: ref.Handle, Name: "total", Value: 0.0}, IDInvalidHandle)
	s.expectError(wire.DelProxyRequest{Handle: ref.Handle}, IDInvalidHandle)
	s.expectError(wire.CallRequest{Target: "length", Args: []any{ref}, ResultCount: 1},
		IDInvalidHandle)
}

func TestHandleReuseAfterRelease(t *testing.T) {
	s := newSession(t)
	defer s.die()

	first := s.expectValue(wire.CallRequest{Target: "accumulator", Args: []any{}, ResultCount: 1})
	firstRef := first.(wire.ObjectRef)
	s.expectAck(wire.DelProxyRequest{Handle: firstRef.Handle})

	second := s.expectValue(wire.CallRequest{Target: "accumulator", Args: []any{5.0}, ResultCount: 1})
	secondRef := second.(wire.ObjectRef)
	if secondRef.Handle != firstRef.Handle {
		t.Errorf("released handle %d not reused, got %d", firstRef.Handle, secondRef.Handle)
	}
	if total := s.expectValue(wire.GetProxyRequest{Handle: secondRef.Handle, Name: "total"}); total != 5.0 {
		t.Errorf("reused handle reads stale object: total %#v", total)
	}
}

func TestMalformedRequests(t *testing.T) {
	s := newSession(t)
	defer s.die()

	// Raw garbage still gets an answer, and the loop keeps serving.
	if err := s.socket.Send([]byte{0xc1, 0xc1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	reply, err := s.socket.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	response, err := wire.DecodeResponse(wire.Binary, reply)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	failure, ok := response.(wire.ErrorResponse)
	if !ok || failure.Identifier != IDProtocol {
		t.Fatalf("garbage answered with %#v", response)
	}

	// Well-formed value, invalid envelope.
	payload, err := wire.Binary.Encode(map[string]any{"type": "reboot"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.socket.Send(payload); err != nil {
		t.Fatal(err)
	}
	reply, err = s.socket.Recv()
	if err != nil {
		t.Fatal(err)
	}
	response, err = wire.DecodeResponse(wire.Binary, reply)
	if err != nil {
		t.Fatal(err)
	}
	if failure, ok := response.(wire.ErrorResponse); !ok || failure.Identifier != IDProtocol {
		t.Fatalf("unknown type answered with %#v", response)
	}

	s.expectAck(wire.SetGlobalRequest{Name: "still_alive", Value: true})
}

func TestPanickingCallRevives(t *testing.T) {
	s := newSession(t)
	defer s.die()

	s.loop.Env.Register(&Builtin{
		Name:    "explode",
		Results: 1,
		Fn: func(call *Call) ([]any, error) {
			panic("boom")
		},
	})

	failure := s.expectError(wire.CallRequest{Target: "explode", Args: []any{}, ResultCount: 1},
		IDExecution)
	if !strings.Contains(failure.Message, "boom") {
		t.Errorf("fault message %q does not name the panic", failure.Message)
	}
	if len(failure.Stack) == 0 {
		t.Error("fault carries no stack")
	}

	// The workspace survived the unwind.
	s.expectAck(wire.SetGlobalRequest{Name: "x", Value: int64(1)})
	if value := s.expectValue(wire.GetGlobalRequest{Name: "x"}); value != int64(1) {
		t.Errorf("workspace lost after revival: %#v", value)
	}
}

func TestInterruptedCallRevives(t *testing.T) {
	s := newSession(t)

	s.loop.Env.Register(&Builtin{
		Name:    "spin",
		Results: 1,
		Fn: func(call *Call) ([]any, error) {
			// Arm mid-call, as a signal handler would, then hit the
			// safepoint.
			s.interrupt.Arm()
			call.CheckInterrupt()
			return []any{"unreachable"}, nil
		},
	})

	s.expectError(wire.CallRequest{Target: "spin", Args: []any{}, ResultCount: 1}, IDInterrupted)

	// The interrupted request consumed exactly one request/response
	// pair: die still yields exactly one ack.
	s.die()
}

func TestInterruptBetweenRequestsIsAbsorbed(t *testing.T) {
	s := newSession(t)

	// Arm while the loop sits in receive. The loop must clear the
	// flag and resume receiving without consuming a request/response
	// pair.
	s.interrupt.Arm()
	deadline := time.Now().Add(5 * time.Second)
	for s.interrupt.Interrupted() {
		if time.Now().After(deadline) {
			t.Fatal("idle interrupt never absorbed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.expectAck(wire.SetGlobalRequest{Name: "x", Value: int64(1)})
	s.die()
}

func TestDecodeErrorsInArguments(t *testing.T) {
	s := newSession(t)
	defer s.die()

	// A call argument naming a dead handle fails the call, not the
	// loop.
	s.expectError(wire.CallRequest{
		Target:      "length",
		Args:        []any{wire.ObjectRef{Handle: 99}},
		ResultCount: 1,
	}, IDInvalidHandle)

	s.expectError(wire.SetGlobalRequest{
		Name:  "x",
		Value: wire.HandledFunction(99),
	}, IDInvalidHandle)
}

func TestServeEndsOnPeerLoss(t *testing.T) {
	s := newSession(t)
	s.socket.Close()
	if err := testutil.RequireReceive(t, s.served, 5*time.Second, "Serve return"); err == nil {
		t.Error("Serve returned nil after losing the peer")
	}
}
