// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// matrixComparer lets cmp look inside the opaque matrix and sparse
// types.
var matrixComparer = cmp.Options{
	cmp.Comparer(func(a, b *Matrix) bool { return a.Equal(b) }),
	cmp.Comparer(func(a, b *Sparse) bool { return a.Equal(b) }),
}

func TestRequestRoundTrip(t *testing.T) {
	matrix, err := MatrixFromInt32s([]int{2, 2}, []int32{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	requests := []Request{
		DieRequest{},
		SetGlobalRequest{Name: "test_data", Value: matrix},
		GetGlobalRequest{Name: "test_data"},
		SetProxyRequest{Handle: 2, Name: "total", Value: 3.5},
		GetProxyRequest{Handle: 2, Name: "total"},
		DelProxyRequest{Handle: 2},
		CallRequest{Target: "concat", Args: []any{[]any{int64(1)}, []any{int64(2)}}, ResultCount: -1},
		CallRequest{Target: int64(4), Args: []any{}, ResultCount: 2},
	}
	for _, format := range []Format{Text, Binary} {
		for _, request := range requests {
			data, err := EncodeRequest(format, request)
			if err != nil {
				t.Fatalf("%s encode %T: %v", format.Name(), request, err)
			}
			decoded, err := DecodeRequest(format, data)
			if err != nil {
				t.Fatalf("%s decode %T: %v", format.Name(), request, err)
			}
			if diff := cmp.Diff(request, decoded, matrixComparer); diff != "" {
				t.Errorf("%s round trip of %T (-want +got):\n%s", format.Name(), request, diff)
			}
		}
	}
}

func TestRequestTargetCanonicalization(t *testing.T) {
	// Function refs canonicalize on the wire: names travel as plain
	// strings, cached callables as plain handles.
	data, err := EncodeRequest(Binary, CallRequest{Target: NamedFunction("max"), Args: []any{}})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeRequest(Binary, data)
	if err != nil {
		t.Fatal(err)
	}
	call, ok := decoded.(CallRequest)
	if !ok || call.Target != "max" {
		t.Errorf("named target: got %#v", decoded)
	}

	data, err = EncodeRequest(Binary, CallRequest{Target: HandledFunction(6), Args: []any{}})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err = DecodeRequest(Binary, data)
	if err != nil {
		t.Fatal(err)
	}
	call, ok = decoded.(CallRequest)
	if !ok || call.Target != int64(6) {
		t.Errorf("handled target: got %#v", decoded)
	}
}

func TestRequestResultCountDefaultsToUnspecified(t *testing.T) {
	data, err := Text.Encode(map[string]any{
		"type": "call", "name": "who", "args": []any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeRequest(Text, data)
	if err != nil {
		t.Fatal(err)
	}
	call, ok := decoded.(CallRequest)
	if !ok {
		t.Fatalf("decoded %T, want CallRequest", decoded)
	}
	if call.ResultCount != -1 {
		t.Errorf("ResultCount: got %d, want -1", call.ResultCount)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []Response{
		AckResponse{},
		ValueResponse{Value: []any{int64(1), int64(2)}},
		ValueResponse{Value: nil},
		ErrorResponse{
			Identifier: "transplant:undefinedFunction",
			Message:    "no function named \"nope\"",
			Stack: []Frame{
				{File: "dispatch.go", Line: 40, Name: "resolve"},
				{File: "loop.go", Line: 12, Name: "serve"},
			},
		},
	}
	for _, format := range []Format{Text, Binary} {
		for _, response := range responses {
			data, err := EncodeResponse(format, response)
			if err != nil {
				t.Fatalf("%s encode %T: %v", format.Name(), response, err)
			}
			decoded, err := DecodeResponse(format, data)
			if err != nil {
				t.Fatalf("%s decode %T: %v", format.Name(), response, err)
			}
			if diff := cmp.Diff(response, decoded, matrixComparer); diff != "" {
				t.Errorf("%s round trip of %T (-want +got):\n%s", format.Name(), response, diff)
			}
		}
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"not a map", []any{"die"}},
		{"missing type", map[string]any{"name": "x"}},
		{"unknown type", map[string]any{"type": "reboot"}},
		{"missing name", map[string]any{"type": "get_global"}},
		{"missing value", map[string]any{"type": "set_global", "name": "x"}},
		{"missing handle", map[string]any{"type": "del_proxy"}},
		{"negative handle", map[string]any{"type": "del_proxy", "handle": int64(-1)}},
		{"missing args", map[string]any{"type": "call", "name": "f"}},
		{"args not sequence", map[string]any{"type": "call", "name": "f", "args": "x"}},
		{"bad target", map[string]any{"type": "call", "name": true, "args": []any{}}},
		{"bad nargout", map[string]any{
			"type": "call", "name": "f", "args": []any{}, "nargout": "two"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := Binary.Encode(c.value)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := DecodeRequest(Binary, data); !errors.Is(err, ErrMessage) {
				t.Fatalf("DecodeRequest: got %v, want ErrMessage", err)
			}
		})
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"not a map", "ack"},
		{"unknown type", map[string]any{"type": "result"}},
		{"error missing message", map[string]any{"type": "error", "identifier": "x:y"}},
		{"error bad stack", map[string]any{
			"type": "error", "identifier": "x:y", "message": "m", "stack": "trace"}},
		{"error bad frame", map[string]any{
			"type": "error", "identifier": "x:y", "message": "m",
			"stack": []any{map[string]any{"line": "twelve"}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := Binary.Encode(c.value)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := DecodeResponse(Binary, data); !errors.Is(err, ErrMessage) {
				t.Fatalf("DecodeResponse: got %v, want ErrMessage", err)
			}
		})
	}
}

func TestDecodeRequestRejectsBadPayload(t *testing.T) {
	if _, err := DecodeRequest(Binary, []byte{0xc1}); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("DecodeRequest: got %v, want ErrUnknownTag", err)
	}
	if _, err := DecodeRequest(Text, []byte("{")); !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeRequest: got %v, want ErrTruncated", err)
	}
}
