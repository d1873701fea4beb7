// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// ErrMessage reports a well-formed wire value that is not a valid
// protocol message: a missing or unknown type, a missing field, or a
// field of the wrong type.
var ErrMessage = errors.New("wire: malformed message")

// Request is one of the seven message kinds a controller sends. The
// set is closed; the engine answers every request with exactly one
// Response.
type Request interface {
	requestType() string
}

// DieRequest asks the engine to acknowledge and exit.
type DieRequest struct{}

// SetGlobalRequest binds a value to a name in the engine's global
// workspace.
type SetGlobalRequest struct {
	Name  string
	Value any
}

// GetGlobalRequest reads a name from the engine's global workspace.
type GetGlobalRequest struct {
	Name string
}

// SetProxyRequest assigns to an attribute of a cached object.
type SetProxyRequest struct {
	Handle int
	Name   string
	Value  any
}

// GetProxyRequest reads an attribute of a cached object.
type GetProxyRequest struct {
	Handle int
	Name   string
}

// DelProxyRequest invalidates a cache handle.
type DelProxyRequest struct {
	Handle int
}

// CallRequest invokes a callable. Target is a function name (string),
// a cache handle (int64), or a FunctionRef. ResultCount is the number
// of results the caller wants; -1 leaves the choice to the callee's
// declaration, 0 asks for execution without a value.
type CallRequest struct {
	Target      any
	Args        []any
	ResultCount int
}

func (DieRequest) requestType() string       { return "die" }
func (SetGlobalRequest) requestType() string { return "set_global" }
func (GetGlobalRequest) requestType() string { return "get_global" }
func (SetProxyRequest) requestType() string  { return "set_proxy" }
func (GetProxyRequest) requestType() string  { return "get_proxy" }
func (DelProxyRequest) requestType() string  { return "del_proxy" }
func (CallRequest) requestType() string      { return "call" }

// Response is one of the three message kinds an engine sends back.
type Response interface {
	responseType() string
}

// AckResponse reports success with no value.
type AckResponse struct{}

// ValueResponse reports success with a result value.
type ValueResponse struct {
	Value any
}

// Frame is one level of an engine-side stack trace.
type Frame struct {
	File string
	Line int
	Name string
}

// ErrorResponse reports failure. Identifier is a stable
// "component:kind" string for programmatic matching; Message is for
// people; Stack is the engine-side trace, innermost frame first.
type ErrorResponse struct {
	Identifier string
	Message    string
	Stack      []Frame
}

func (AckResponse) responseType() string   { return "ack" }
func (ValueResponse) responseType() string { return "value" }
func (ErrorResponse) responseType() string { return "error" }

// EncodeRequest serializes a request in the given format.
func EncodeRequest(format Format, request Request) ([]byte, error) {
	message := map[string]any{"type": request.requestType()}
	switch request := request.(type) {
	case DieRequest:
	case SetGlobalRequest:
		message["name"] = request.Name
		message["value"] = request.Value
	case GetGlobalRequest:
		message["name"] = request.Name
	case SetProxyRequest:
		message["handle"] = int64(request.Handle)
		message["name"] = request.Name
		message["value"] = request.Value
	case GetProxyRequest:
		message["handle"] = int64(request.Handle)
		message["name"] = request.Name
	case DelProxyRequest:
		message["handle"] = int64(request.Handle)
	case CallRequest:
		target, err := callTarget(request.Target)
		if err != nil {
			return nil, err
		}
		message["name"] = target
		args := request.Args
		if args == nil {
			args = []any{}
		}
		message["args"] = args
		message["nargout"] = int64(request.ResultCount)
	default:
		return nil, fmt.Errorf("%w: unknown request %T", ErrMessage, request)
	}
	return format.Encode(message)
}

// callTarget canonicalizes a call target for the wire: names travel
// as strings, cached callables as integer handles.
func callTarget(target any) (any, error) {
	switch target := target.(type) {
	case string:
		return target, nil
	case int:
		return int64(target), nil
	case int64:
		return target, nil
	case FunctionRef:
		if target.ByHandle {
			return int64(target.Handle), nil
		}
		return target.Name, nil
	}
	return nil, fmt.Errorf("%w: call target is %s, want name, handle, or function",
		ErrMessage, Kind(target))
}

// DecodeRequest parses a request payload in the given format.
func DecodeRequest(format Format, data []byte) (Request, error) {
	value, err := format.Decode(data)
	if err != nil {
		return nil, err
	}
	message, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: request is %s, want map", ErrMessage, Kind(value))
	}
	kind, err := stringField(message, "type")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "die":
		return DieRequest{}, nil
	case "set_global":
		name, err := stringField(message, "name")
		if err != nil {
			return nil, err
		}
		value, ok := message["value"]
		if !ok {
			return nil, missingField("value")
		}
		return SetGlobalRequest{Name: name, Value: value}, nil
	case "get_global":
		name, err := stringField(message, "name")
		if err != nil {
			return nil, err
		}
		return GetGlobalRequest{Name: name}, nil
	case "set_proxy":
		handle, err := handleField(message)
		if err != nil {
			return nil, err
		}
		name, err := stringField(message, "name")
		if err != nil {
			return nil, err
		}
		value, ok := message["value"]
		if !ok {
			return nil, missingField("value")
		}
		return SetProxyRequest{Handle: handle, Name: name, Value: value}, nil
	case "get_proxy":
		handle, err := handleField(message)
		if err != nil {
			return nil, err
		}
		name, err := stringField(message, "name")
		if err != nil {
			return nil, err
		}
		return GetProxyRequest{Handle: handle, Name: name}, nil
	case "del_proxy":
		handle, err := handleField(message)
		if err != nil {
			return nil, err
		}
		return DelProxyRequest{Handle: handle}, nil
	case "call":
		target, ok := message["name"]
		if !ok {
			return nil, missingField("name")
		}
		switch typed := target.(type) {
		case string, int64, FunctionRef:
		case uint64:
			handle, ok := intFromWire(typed)
			if !ok {
				return nil, fmt.Errorf("%w: call handle out of range", ErrMessage)
			}
			target = handle
		default:
			return nil, fmt.Errorf("%w: call target is %s, want name, handle, or function",
				ErrMessage, Kind(target))
		}
		args, err := sequenceField(message, "args")
		if err != nil {
			return nil, err
		}
		resultCount := int64(-1)
		if raw, ok := message["nargout"]; ok {
			resultCount, ok = intFromWire(raw)
			if !ok || resultCount < -1 {
				return nil, fmt.Errorf("%w: field \"nargout\" is not a result count", ErrMessage)
			}
		}
		return CallRequest{Target: target, Args: args, ResultCount: int(resultCount)}, nil
	}
	return nil, fmt.Errorf("%w: unknown request type %q", ErrMessage, kind)
}

// EncodeResponse serializes a response in the given format.
func EncodeResponse(format Format, response Response) ([]byte, error) {
	message := map[string]any{"type": response.responseType()}
	switch response := response.(type) {
	case AckResponse:
	case ValueResponse:
		message["value"] = response.Value
	case ErrorResponse:
		message["identifier"] = response.Identifier
		message["message"] = response.Message
		stack := make([]any, len(response.Stack))
		for i, frame := range response.Stack {
			stack[i] = map[string]any{
				"file": frame.File,
				"line": int64(frame.Line),
				"name": frame.Name,
			}
		}
		message["stack"] = stack
	default:
		return nil, fmt.Errorf("%w: unknown response %T", ErrMessage, response)
	}
	return format.Encode(message)
}

// DecodeResponse parses a response payload in the given format.
func DecodeResponse(format Format, data []byte) (Response, error) {
	value, err := format.Decode(data)
	if err != nil {
		return nil, err
	}
	message, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: response is %s, want map", ErrMessage, Kind(value))
	}
	kind, err := stringField(message, "type")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "ack":
		return AckResponse{}, nil
	case "value":
		result, ok := message["value"]
		if !ok {
			return nil, missingField("value")
		}
		return ValueResponse{Value: result}, nil
	case "error":
		identifier, err := stringField(message, "identifier")
		if err != nil {
			return nil, err
		}
		text, err := stringField(message, "message")
		if err != nil {
			return nil, err
		}
		response := ErrorResponse{Identifier: identifier, Message: text}
		if raw, ok := message["stack"]; ok {
			frames, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: field \"stack\" is %s, want sequence",
					ErrMessage, Kind(raw))
			}
			response.Stack = make([]Frame, 0, len(frames))
			for _, element := range frames {
				frame, err := parseFrame(element)
				if err != nil {
					return nil, err
				}
				response.Stack = append(response.Stack, frame)
			}
		}
		return response, nil
	}
	return nil, fmt.Errorf("%w: unknown response type %q", ErrMessage, kind)
}

func parseFrame(value any) (Frame, error) {
	message, ok := value.(map[string]any)
	if !ok {
		return Frame{}, fmt.Errorf("%w: stack frame is %s, want map", ErrMessage, Kind(value))
	}
	var frame Frame
	if raw, ok := message["file"]; ok {
		if frame.File, ok = raw.(string); !ok {
			return Frame{}, fmt.Errorf("%w: frame file is %s, want string", ErrMessage, Kind(raw))
		}
	}
	if raw, ok := message["name"]; ok {
		if frame.Name, ok = raw.(string); !ok {
			return Frame{}, fmt.Errorf("%w: frame name is %s, want string", ErrMessage, Kind(raw))
		}
	}
	if raw, ok := message["line"]; ok {
		line, ok := intFromWire(raw)
		if !ok {
			return Frame{}, fmt.Errorf("%w: frame line is %s, want integer", ErrMessage, Kind(raw))
		}
		frame.Line = int(line)
	}
	return frame, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing field %q", ErrMessage, name)
}

func stringField(message map[string]any, name string) (string, error) {
	raw, ok := message[name]
	if !ok {
		return "", missingField(name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q is %s, want string", ErrMessage, name, Kind(raw))
	}
	return value, nil
}

func handleField(message map[string]any) (int, error) {
	raw, ok := message["handle"]
	if !ok {
		return 0, missingField("handle")
	}
	handle, ok := intFromWire(raw)
	if !ok || handle < 0 {
		return 0, fmt.Errorf("%w: field \"handle\" is not a non-negative integer", ErrMessage)
	}
	return int(handle), nil
}

func sequenceField(message map[string]any, name string) ([]any, error) {
	raw, ok := message[name]
	if !ok {
		return nil, missingField(name)
	}
	value, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is %s, want sequence", ErrMessage, name, Kind(raw))
	}
	return value, nil
}
