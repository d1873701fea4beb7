// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bastibe/transplant/engine"
	"github.com/bastibe/transplant/lib/testutil"
	"github.com/bastibe/transplant/proxy"
	"github.com/bastibe/transplant/transport"
	"github.com/bastibe/transplant/wire"
)

// startEngine serves a real dispatch loop over an in-memory pipe and
// returns a client over the other end plus the loop's interrupt
// notifier.
func startEngine(t *testing.T, format wire.Format) (*Client, *engine.Notifier) {
	t.Helper()
	requester, replier := transport.Pipe()
	notifier := &engine.Notifier{}
	loop := &engine.Loop{
		Socket:    replier,
		Env:       engine.NewEnvironment(),
		Cache:     proxy.NewCache(),
		Format:    format,
		Interrupt: notifier,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	go loop.Serve()
	t.Cleanup(func() {
		requester.Close()
		replier.Close()
	})
	return New(requester, format), notifier
}

func TestGlobalsBothFormats(t *testing.T) {
	for _, format := range []wire.Format{wire.Text, wire.Binary} {
		t.Run(format.Name(), func(t *testing.T) {
			session, _ := startEngine(t, format)
			matrix, err := wire.MatrixFromFloat64s([]int{2}, []float64{1.5, -2})
			if err != nil {
				t.Fatal(err)
			}
			if err := session.SetGlobal("m", matrix); err != nil {
				t.Fatalf("SetGlobal: %v", err)
			}
			value, err := session.GetGlobal("m")
			if err != nil {
				t.Fatalf("GetGlobal: %v", err)
			}
			if !wire.Equal(matrix, value) {
				t.Errorf("round trip changed the matrix: %v", value)
			}
		})
	}
}

func TestEngineErrorReRaises(t *testing.T) {
	session, _ := startEngine(t, wire.Binary)
	_, err := session.GetGlobal("never_bound")
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("got %v, want *EngineError", err)
	}
	if engineErr.Identifier != "transplant:undefinedVariable" {
		t.Errorf("identifier %q", engineErr.Identifier)
	}
	if !IsEngineError(err, "transplant:undefinedVariable") {
		t.Error("IsEngineError missed the identifier")
	}
	if engineErr.Traceback() == "" {
		t.Error("empty traceback")
	}
}

func TestCallAndCallN(t *testing.T) {
	session, _ := startEngine(t, wire.Binary)

	joined, err := session.Call("concat", []any{int64(1)}, []any{int64(2)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !wire.Equal(joined, []any{int64(1), int64(2)}) {
		t.Errorf("concat: %#v", joined)
	}

	matrix, err := wire.MatrixFromFloat64s([]int{3}, []float64{5, 9, 2})
	if err != nil {
		t.Fatal(err)
	}
	results, err := session.CallN("max", 2, matrix)
	if err != nil {
		t.Fatalf("CallN: %v", err)
	}
	if len(results) != 2 || results[0] != 9.0 || results[1] != int64(2) {
		t.Errorf("max: %#v", results)
	}

	// Zero results for a value-producing callee: the implicit value
	// arrives as a single result.
	results, err = session.CallN("sum", 0, matrix)
	if err != nil {
		t.Fatalf("CallN with zero results: %v", err)
	}
	if len(results) != 1 || results[0] != 16.0 {
		t.Errorf("implicit result: %#v", results)
	}
}

func TestProxyStubLifecycle(t *testing.T) {
	session, _ := startEngine(t, wire.Binary)

	result, err := session.Call("accumulator", 1.0)
	if err != nil {
		t.Fatalf("accumulator: %v", err)
	}
	stub, ok := result.(*Proxy)
	if !ok {
		t.Fatalf("result is %T, want *Proxy", result)
	}

	total, err := stub.CallMethod("add", 2.0, 3.0)
	if err != nil {
		t.Fatalf("CallMethod: %v", err)
	}
	if total != 6.0 {
		t.Errorf("total after add: %#v", total)
	}

	if err := stub.Set("total", 100.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := stub.Get("total")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != 100.0 {
		t.Errorf("total: %#v", value)
	}

	// The stub is usable as a call argument: the engine sees the same
	// live object, so length (which has no case for it) names the
	// execution failure, not a marshalling one.
	_, err = session.Call("length", stub)
	if !IsEngineError(err, "transplant:execution") {
		t.Errorf("stub argument: %v", err)
	}

	if err := stub.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := stub.Get("total"); !errors.Is(err, ErrReleased) {
		t.Errorf("Get after release: %v", err)
	}
	if err := stub.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("double release: %v", err)
	}
}

func TestRemoteFunctionStub(t *testing.T) {
	session, _ := startEngine(t, wire.Binary)

	value, err := session.GetGlobal("linspace")
	if err != nil {
		t.Fatalf("GetGlobal: %v", err)
	}
	function, ok := value.(*RemoteFunction)
	if !ok {
		t.Fatalf("builtin read back as %T", value)
	}
	result, err := function.Call(0.0, 1.0, int64(3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	matrix := result.(*wire.Matrix)
	values, err := matrix.Float64s()
	if err != nil || len(values) != 3 || values[1] != 0.5 {
		t.Errorf("linspace: %v (%v)", values, err)
	}
	if err := function.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := function.Call(); !errors.Is(err, ErrReleased) {
		t.Errorf("call after release: %v", err)
	}
}

func TestInterruptedCall(t *testing.T) {
	session, notifier := startEngine(t, wire.Binary)

	// A call too long to ever finish is aborted by an interrupt
	// delivered while it runs. The engine answers the interrupted
	// call itself, so lockstep needs no repair.
	go func() {
		time.Sleep(50 * time.Millisecond)
		notifier.Arm()
	}()
	_, err := session.Call("range", int64(0), int64(1)<<40)
	if !IsEngineError(err, "transplant:interrupted") {
		t.Fatalf("interrupted call: %v", err)
	}

	// The session stays usable afterwards.
	if err := session.SetGlobal("x", int64(1)); err != nil {
		t.Fatalf("SetGlobal after interrupt: %v", err)
	}
	if err := session.Die(); err != nil {
		t.Fatalf("Die after interrupt: %v", err)
	}
}

// scriptedEngine answers each received request with the next canned
// response, for peer behaviors the builtin engine never produces.
func scriptedEngine(t *testing.T, responses ...wire.Response) *Client {
	t.Helper()
	requester, replier := transport.Pipe()
	go func() {
		for _, response := range responses {
			if _, err := replier.Recv(); err != nil {
				return
			}
			payload, err := wire.EncodeResponse(wire.Binary, response)
			if err != nil {
				return
			}
			if err := replier.Send(payload); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		requester.Close()
		replier.Close()
	})
	return New(requester, wire.Binary)
}

func TestCallAcceptsAck(t *testing.T) {
	// The protocol lets an engine ack a call whose function produced
	// nothing; the result is then nil, not a crash.
	session := scriptedEngine(t, wire.AckResponse{}, wire.AckResponse{})
	result, err := session.Call("produce_nothing")
	if err != nil || result != nil {
		t.Fatalf("acked call: result %v, err %v", result, err)
	}
	function := &RemoteFunction{client: session, ref: wire.NamedFunction("produce_nothing")}
	result, err = function.Call()
	if err != nil || result != nil {
		t.Fatalf("acked stub call: result %v, err %v", result, err)
	}
}

func TestCallMethodReportsReleaseFailure(t *testing.T) {
	session := scriptedEngine(t,
		wire.ValueResponse{Value: wire.HandledFunction(5)},
		wire.ValueResponse{Value: int64(1)},
		wire.ErrorResponse{Identifier: "transplant:invalidHandle", Message: "slot reused"},
	)
	stub := &Proxy{client: session, handle: 7}
	_, err := stub.CallMethod("add", int64(1))
	if !IsEngineError(err, "transplant:invalidHandle") {
		t.Fatalf("release failure lost: %v", err)
	}
}

func TestEngineDeathSurfaces(t *testing.T) {
	requester, replier := transport.Pipe()
	session := New(requester, wire.Binary)
	replier.Close()
	err := session.SetGlobal("x", int64(1))
	if !errors.Is(err, ErrEngineDied) {
		t.Errorf("got %v, want ErrEngineDied", err)
	}
}

func TestListenAcceptsOneEngine(t *testing.T) {
	endpoint, err := transport.ParseEndpoint("ipc://" + testutil.SocketDir(t) + "/engine.sock")
	if err != nil {
		t.Fatal(err)
	}

	type listened struct {
		session *Client
		err     error
	}
	sessions := make(chan listened, 1)
	go func() {
		session, err := Listen(endpoint.String(), wire.Binary)
		sessions <- listened{session, err}
	}()

	// Give the listener a moment to bind, then dial in as the engine
	// and serve a minimal loop.
	var socket *transport.RepSocket
	deadline := time.Now().Add(5 * time.Second)
	for {
		socket, err = transport.Dial(context.Background(), endpoint)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	loop := &engine.Loop{
		Socket: socket,
		Env:    engine.NewEnvironment(),
		Cache:  proxy.NewCache(),
		Format: wire.Binary,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	go loop.Serve()

	result := testutil.RequireReceive(t, sessions, 5*time.Second, "listen")
	if result.err != nil {
		t.Fatalf("Listen: %v", result.err)
	}
	defer result.session.Close()
	if err := result.session.Die(); err != nil {
		t.Fatalf("Die: %v", err)
	}
}
