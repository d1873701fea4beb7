// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "bytes"

// Kind names the value-model variant a decoded value belongs to, for
// error messages and dispatch. Unrecognized types report "invalid".
func Kind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case uint64:
		return "uint"
	case float64:
		return "float"
	case string:
		return "string"
	case []byte:
		return "bytes"
	case []any:
		return "sequence"
	case map[string]any:
		return "map"
	case *Matrix:
		return "matrix"
	case *Sparse:
		return "sparse"
	case ObjectRef:
		return "object"
	case FunctionRef:
		return "function"
	}
	return "invalid"
}

// Equal reports deep equality of two values under the wire value
// model. Numbers compare by exact variant: int64(3) and float64(3)
// are not equal, matching the round-trip guarantee of the formats.
func Equal(a, b any) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case bool:
		b, ok := b.(bool)
		return ok && a == b
	case int64:
		b, ok := b.(int64)
		return ok && a == b
	case uint64:
		b, ok := b.(uint64)
		return ok && a == b
	case float64:
		b, ok := b.(float64)
		return ok && a == b
	case string:
		b, ok := b.(string)
		return ok && a == b
	case []byte:
		b, ok := b.([]byte)
		return ok && bytes.Equal(a, b)
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		b, ok := b.(map[string]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for key, value := range a {
			other, ok := b[key]
			if !ok || !Equal(value, other) {
				return false
			}
		}
		return true
	case *Matrix:
		b, ok := b.(*Matrix)
		return ok && a.Equal(b)
	case *Sparse:
		b, ok := b.(*Sparse)
		return ok && a.Equal(b)
	case ObjectRef:
		b, ok := b.(ObjectRef)
		return ok && a == b
	case FunctionRef:
		b, ok := b.(FunctionRef)
		return ok && a == b
	}
	return false
}
