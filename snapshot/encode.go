// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"fmt"
	"sort"

	"github.com/bastibe/transplant/wire"
)

// node is the CBOR-friendly mirror of one workspace value. Kind
// selects the variant; the other fields are meaningful per kind.
// Maps are stored as parallel key/value slices in sorted key order so
// equal workspaces serialize to equal bytes.
type node struct {
	Kind  string  `cbor:"kind"`
	Bool  bool    `cbor:"bool,omitempty"`
	Int   int64   `cbor:"int,omitempty"`
	Uint  uint64  `cbor:"uint,omitempty"`
	Float float64 `cbor:"float,omitempty"`
	Str   string  `cbor:"str,omitempty"`
	Bytes []byte  `cbor:"bytes,omitempty"`

	Elements []node   `cbor:"elements,omitempty"`
	Keys     []string `cbor:"keys,omitempty"`

	// Dense matrix fields; sparse matrices reuse them through the
	// three component children in Elements (row index, column index,
	// values) plus Shape for the outer dimensions.
	Dtype string `cbor:"dtype,omitempty"`
	Shape []int  `cbor:"shape,omitempty"`
	Data  []byte `cbor:"data,omitempty"`
}

const (
	kindNull   = "null"
	kindBool   = "bool"
	kindInt    = "int"
	kindUint   = "uint"
	kindFloat  = "float"
	kindString = "string"
	kindBytes  = "bytes"
	kindSeq    = "seq"
	kindMap    = "map"
	kindMatrix = "matrix"
	kindSparse = "sparse"
)

// Snapshotable reports whether a value can be stored in a snapshot.
// Object and function references cannot: they name live state of one
// engine session and mean nothing to a later one.
func Snapshotable(value any) bool {
	switch value := value.(type) {
	case nil, bool, int64, uint64, float64, string, []byte, *wire.Matrix, *wire.Sparse:
		return true
	case []any:
		for _, element := range value {
			if !Snapshotable(element) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, element := range value {
			if !Snapshotable(element) {
				return false
			}
		}
		return true
	}
	return false
}

func encodeNode(value any) (node, error) {
	switch value := value.(type) {
	case nil:
		return node{Kind: kindNull}, nil
	case bool:
		return node{Kind: kindBool, Bool: value}, nil
	case int64:
		return node{Kind: kindInt, Int: value}, nil
	case uint64:
		return node{Kind: kindUint, Uint: value}, nil
	case float64:
		return node{Kind: kindFloat, Float: value}, nil
	case string:
		return node{Kind: kindString, Str: value}, nil
	case []byte:
		return node{Kind: kindBytes, Bytes: value}, nil
	case []any:
		elements := make([]node, len(value))
		for i, element := range value {
			encoded, err := encodeNode(element)
			if err != nil {
				return node{}, err
			}
			elements[i] = encoded
		}
		return node{Kind: kindSeq, Elements: elements}, nil
	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		elements := make([]node, len(keys))
		for i, key := range keys {
			encoded, err := encodeNode(value[key])
			if err != nil {
				return node{}, err
			}
			elements[i] = encoded
		}
		return node{Kind: kindMap, Keys: keys, Elements: elements}, nil
	case *wire.Matrix:
		return node{
			Kind:  kindMatrix,
			Dtype: string(value.Dtype()),
			Shape: value.Shape(),
			Data:  value.Data(),
		}, nil
	case *wire.Sparse:
		rows, cols := value.Dims()
		components := make([]node, 3)
		for i, component := range []*wire.Matrix{value.RowIndex(), value.ColIndex(), value.Values()} {
			encoded, err := encodeNode(component)
			if err != nil {
				return node{}, err
			}
			components[i] = encoded
		}
		return node{Kind: kindSparse, Shape: []int{rows, cols}, Elements: components}, nil
	}
	return node{}, fmt.Errorf("%w: %T", ErrUnsupported, value)
}

func decodeNode(encoded node) (any, error) {
	switch encoded.Kind {
	case kindNull:
		return nil, nil
	case kindBool:
		return encoded.Bool, nil
	case kindInt:
		return encoded.Int, nil
	case kindUint:
		return encoded.Uint, nil
	case kindFloat:
		return encoded.Float, nil
	case kindString:
		return encoded.Str, nil
	case kindBytes:
		if encoded.Bytes == nil {
			return []byte{}, nil
		}
		return encoded.Bytes, nil
	case kindSeq:
		elements := make([]any, len(encoded.Elements))
		for i, element := range encoded.Elements {
			decoded, err := decodeNode(element)
			if err != nil {
				return nil, err
			}
			elements[i] = decoded
		}
		return elements, nil
	case kindMap:
		if len(encoded.Keys) != len(encoded.Elements) {
			return nil, fmt.Errorf("%w: map with %d keys and %d values",
				ErrCorrupt, len(encoded.Keys), len(encoded.Elements))
		}
		elements := make(map[string]any, len(encoded.Keys))
		for i, key := range encoded.Keys {
			decoded, err := decodeNode(encoded.Elements[i])
			if err != nil {
				return nil, err
			}
			elements[key] = decoded
		}
		return elements, nil
	case kindMatrix:
		matrix, err := wire.NewMatrix(wire.Dtype(encoded.Dtype), encoded.Shape, encoded.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return matrix, nil
	case kindSparse:
		if len(encoded.Shape) != 2 || len(encoded.Elements) != 3 {
			return nil, fmt.Errorf("%w: malformed sparse node", ErrCorrupt)
		}
		components := make([]*wire.Matrix, 3)
		for i, element := range encoded.Elements {
			decoded, err := decodeNode(element)
			if err != nil {
				return nil, err
			}
			matrix, ok := decoded.(*wire.Matrix)
			if !ok {
				return nil, fmt.Errorf("%w: sparse component is not a matrix", ErrCorrupt)
			}
			components[i] = matrix
		}
		sparse, err := wire.NewSparse(encoded.Shape[0], encoded.Shape[1],
			components[0], components[1], components[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return sparse, nil
	}
	return nil, fmt.Errorf("%w: unknown node kind %q", ErrCorrupt, encoded.Kind)
}
