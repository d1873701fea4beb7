// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bastibe/transplant/client"
	"github.com/bastibe/transplant/wire"
)

// renderCompact prints a result on one line. Plain values use the
// textual wire format; stubs and matrices, which that format cannot
// spell on their own, use their descriptive forms.
func renderCompact(value any) string {
	switch value := value.(type) {
	case *client.Proxy, *client.RemoteFunction:
		return fmt.Sprint(value)
	case *wire.Matrix:
		return renderMatrix(value)
	case *wire.Sparse:
		return value.String()
	case []any:
		elements := make([]string, len(value))
		for i, element := range value {
			elements[i] = renderCompact(element)
		}
		return "[" + strings.Join(elements, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(value)
		elements := make([]string, len(keys))
		for i, key := range keys {
			elements[i] = fmt.Sprintf("%q: %s", key, renderCompact(value[key]))
		}
		return "{" + strings.Join(elements, ", ") + "}"
	}
	encoded, err := wire.Text.Encode(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// renderPretty prints containers one element per line, indented.
func renderPretty(value any, depth int) string {
	indent := strings.Repeat("  ", depth)
	inner := strings.Repeat("  ", depth+1)
	switch value := value.(type) {
	case []any:
		if len(value) == 0 {
			return "[]"
		}
		elements := make([]string, len(value))
		for i, element := range value {
			elements[i] = inner + renderPretty(element, depth+1)
		}
		return "[\n" + strings.Join(elements, ",\n") + "\n" + indent + "]"
	case map[string]any:
		if len(value) == 0 {
			return "{}"
		}
		keys := sortedKeys(value)
		elements := make([]string, len(keys))
		for i, key := range keys {
			elements[i] = fmt.Sprintf("%s%q: %s", inner, key, renderPretty(value[key], depth+1))
		}
		return "{\n" + strings.Join(elements, ",\n") + "\n" + indent + "}"
	}
	return renderCompact(value)
}

// renderMatrix shows small matrices in full and big ones by
// description only.
func renderMatrix(matrix *wire.Matrix) string {
	const displayLimit = 64
	if matrix.Len() > displayLimit {
		return matrix.String()
	}
	shape := matrix.Shape()
	elements := make([]string, matrix.Len())
	indices := make([]int, len(shape))
	for i := range elements {
		element, err := matrix.At(indices...)
		if err != nil {
			return matrix.String()
		}
		elements[i] = fmt.Sprint(element)
		for axis := len(indices) - 1; axis >= 0; axis-- {
			indices[axis]++
			if indices[axis] < shape[axis] {
				break
			}
			indices[axis] = 0
		}
	}
	return fmt.Sprintf("%s(%s)", matrix, strings.Join(elements, ", "))
}

func sortedKeys(value map[string]any) []string {
	keys := make([]string, 0, len(value))
	for key := range value {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
