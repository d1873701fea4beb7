// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/base64"
	"fmt"
)

// Extension sentinels. A decoded sequence whose first element is one
// of these strings is rebuilt into the corresponding typed value.
const (
	sentinelMatrix   = "__matrix__"
	sentinelSparse   = "__sparse__"
	sentinelObject   = "__object__"
	sentinelFunction = "__function__"
)

// convertTagged rebuilds a typed value from a tagged sequence. The
// second result reports whether the sequence was tagged at all; a
// sequence that names a sentinel but fails its shape is an error, not
// a plain sequence.
func convertTagged(sequence []any) (any, bool, error) {
	if len(sequence) == 0 {
		return nil, false, nil
	}
	sentinel, ok := sequence[0].(string)
	if !ok {
		return nil, false, nil
	}
	switch sentinel {
	case sentinelMatrix:
		value, err := taggedMatrix(sequence)
		return value, true, err
	case sentinelSparse:
		value, err := taggedSparse(sequence)
		return value, true, err
	case sentinelObject:
		value, err := taggedObject(sequence)
		return value, true, err
	case sentinelFunction:
		value, err := taggedFunction(sequence)
		return value, true, err
	}
	return nil, false, nil
}

// intFromWire extracts an integer from a decoded numeric value,
// accepting the int64 and uint64 variants and integral float64 (the
// text format cannot always distinguish 2 from 2.0 once a peer has
// round-tripped it through a float type).
func intFromWire(value any) (int64, bool) {
	switch value := value.(type) {
	case int64:
		return value, true
	case uint64:
		if value > 1<<62 {
			return 0, false
		}
		return int64(value), true
	case float64:
		whole := int64(value)
		if float64(whole) == value {
			return whole, true
		}
	}
	return 0, false
}

// payloadFromWire extracts a binary payload that may travel as a raw
// byte string (binary format) or base64 text (text format).
func payloadFromWire(value any) ([]byte, error) {
	switch value := value.(type) {
	case []byte:
		return value, nil
	case string:
		payload, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("%w: payload is not base64: %v", ErrExtension, err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("%w: payload is %s, want bytes or base64 string",
		ErrExtension, Kind(value))
}

func taggedMatrix(sequence []any) (*Matrix, error) {
	if len(sequence) != 4 {
		return nil, fmt.Errorf("%w: matrix sequence has %d elements, want 4",
			ErrExtension, len(sequence))
	}
	name, ok := sequence[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: matrix dtype is %s, want string",
			ErrExtension, Kind(sequence[1]))
	}
	dtype, err := ParseDtype(name)
	if err != nil {
		return nil, err
	}
	dims, ok := sequence[2].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: matrix shape is %s, want sequence",
			ErrExtension, Kind(sequence[2]))
	}
	shape := make([]int, len(dims))
	for i, dim := range dims {
		n, ok := intFromWire(dim)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: matrix dimension %d is not a valid size",
				ErrExtension, i)
		}
		shape[i] = int(n)
	}
	payload, err := payloadFromWire(sequence[3])
	if err != nil {
		return nil, err
	}
	return NewMatrix(dtype, shape, payload)
}

func taggedSparse(sequence []any) (*Sparse, error) {
	if len(sequence) != 5 {
		return nil, fmt.Errorf("%w: sparse sequence has %d elements, want 5",
			ErrExtension, len(sequence))
	}
	dims, ok := sequence[1].([]any)
	if !ok || len(dims) != 2 {
		return nil, fmt.Errorf("%w: sparse shape must be a two-element sequence",
			ErrExtension)
	}
	rows, rowsOK := intFromWire(dims[0])
	cols, colsOK := intFromWire(dims[1])
	if !rowsOK || !colsOK {
		return nil, fmt.Errorf("%w: sparse shape elements must be integers", ErrExtension)
	}
	component := func(index int, name string) (*Matrix, error) {
		matrix, ok := sequence[index].(*Matrix)
		if !ok {
			return nil, fmt.Errorf("%w: sparse %s component is %s, want matrix",
				ErrExtension, name, Kind(sequence[index]))
		}
		return matrix, nil
	}
	rowIndex, err := component(2, "row index")
	if err != nil {
		return nil, err
	}
	colIndex, err := component(3, "column index")
	if err != nil {
		return nil, err
	}
	values, err := component(4, "values")
	if err != nil {
		return nil, err
	}
	return NewSparse(int(rows), int(cols), rowIndex, colIndex, values)
}

func taggedObject(sequence []any) (ObjectRef, error) {
	if len(sequence) != 2 {
		return ObjectRef{}, fmt.Errorf("%w: object sequence has %d elements, want 2",
			ErrExtension, len(sequence))
	}
	handle, ok := intFromWire(sequence[1])
	if !ok || handle < 0 {
		return ObjectRef{}, fmt.Errorf("%w: object handle is %s, want non-negative integer",
			ErrExtension, Kind(sequence[1]))
	}
	return ObjectRef{Handle: int(handle)}, nil
}

func taggedFunction(sequence []any) (FunctionRef, error) {
	if len(sequence) != 2 {
		return FunctionRef{}, fmt.Errorf("%w: function sequence has %d elements, want 2",
			ErrExtension, len(sequence))
	}
	switch target := sequence[1].(type) {
	case string:
		return NamedFunction(target), nil
	default:
		handle, ok := intFromWire(target)
		if !ok || handle < 0 {
			return FunctionRef{}, fmt.Errorf(
				"%w: function target is %s, want name or non-negative handle",
				ErrExtension, Kind(target))
		}
		return HandledFunction(int(handle)), nil
	}
}
