// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// textEncoder emits the JSON-shaped text format. Output is printable
// ASCII: strings escape every control and non-ASCII rune, binary
// payloads travel base64-encoded, and map keys are emitted in sorted
// order so equal values encode to equal bytes.
type textEncoder struct {
	buffer bytes.Buffer
}

func (e *textEncoder) encode(value any, depth int) error {
	if depth > maxDepth {
		return ErrDepth
	}
	switch value := value.(type) {
	case nil:
		e.buffer.WriteString("null")
	case bool:
		if value {
			e.buffer.WriteString("true")
		} else {
			e.buffer.WriteString("false")
		}
	case int:
		e.writeInt(int64(value))
	case int8:
		e.writeInt(int64(value))
	case int16:
		e.writeInt(int64(value))
	case int32:
		e.writeInt(int64(value))
	case int64:
		e.writeInt(value)
	case uint:
		e.writeUint(uint64(value))
	case uint8:
		e.writeUint(uint64(value))
	case uint16:
		e.writeUint(uint64(value))
	case uint32:
		e.writeUint(uint64(value))
	case uint64:
		e.writeUint(value)
	case float32:
		return e.writeFloat(float64(value), 32)
	case float64:
		return e.writeFloat(value, 64)
	case string:
		e.writeQuoted(value)
	case []byte:
		return fmt.Errorf("%w: raw bytes have no text representation", ErrUnsupported)
	case []any:
		return e.writeSequence(value, depth)
	case map[string]any:
		return e.writeMap(value, depth)
	case *Matrix:
		return e.writeMatrix(value)
	case *Sparse:
		return e.writeSparse(value, depth)
	case ObjectRef:
		e.buffer.WriteString(`["` + sentinelObject + `",`)
		e.writeInt(int64(value.Handle))
		e.buffer.WriteByte(']')
	case FunctionRef:
		e.buffer.WriteString(`["` + sentinelFunction + `",`)
		if value.ByHandle {
			e.writeInt(int64(value.Handle))
		} else {
			e.writeQuoted(value.Name)
		}
		e.buffer.WriteByte(']')
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, value)
	}
	return nil
}

func (e *textEncoder) writeInt(value int64) {
	e.buffer.WriteString(strconv.FormatInt(value, 10))
}

func (e *textEncoder) writeUint(value uint64) {
	e.buffer.WriteString(strconv.FormatUint(value, 10))
}

// writeFloat emits the shortest decimal that round-trips at the given
// precision, forcing a '.' when the short form would otherwise read as
// an integer, so the decoder can tell the two number variants apart.
func (e *textEncoder) writeFloat(value float64, bits int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %v has no text representation", ErrUnsupported, value)
	}
	formatted := strconv.FormatFloat(value, 'g', -1, bits)
	if !strings.ContainsAny(formatted, ".eE") {
		formatted += ".0"
	}
	e.buffer.WriteString(formatted)
	return nil
}

func (e *textEncoder) writeQuoted(s string) {
	e.buffer.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			e.buffer.WriteString(`\"`)
		case '\\':
			e.buffer.WriteString(`\\`)
		case '\n':
			e.buffer.WriteString(`\n`)
		case '\r':
			e.buffer.WriteString(`\r`)
		case '\t':
			e.buffer.WriteString(`\t`)
		case '\b':
			e.buffer.WriteString(`\b`)
		case '\f':
			e.buffer.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				e.writeEscape(uint16(r))
			case r < 0x80:
				e.buffer.WriteByte(byte(r))
			case r <= 0xffff:
				e.writeEscape(uint16(r))
			default:
				high, low := utf16.EncodeRune(r)
				e.writeEscape(uint16(high))
				e.writeEscape(uint16(low))
			}
		}
	}
	e.buffer.WriteByte('"')
}

func (e *textEncoder) writeEscape(unit uint16) {
	const hex = "0123456789abcdef"
	e.buffer.WriteString(`\u`)
	e.buffer.WriteByte(hex[unit>>12&0xf])
	e.buffer.WriteByte(hex[unit>>8&0xf])
	e.buffer.WriteByte(hex[unit>>4&0xf])
	e.buffer.WriteByte(hex[unit&0xf])
}

func (e *textEncoder) writeSequence(sequence []any, depth int) error {
	e.buffer.WriteByte('[')
	for i, element := range sequence {
		if i > 0 {
			e.buffer.WriteByte(',')
		}
		if err := e.encode(element, depth+1); err != nil {
			return err
		}
	}
	e.buffer.WriteByte(']')
	return nil
}

func (e *textEncoder) writeMap(m map[string]any, depth int) error {
	e.buffer.WriteByte('{')
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for i, key := range keys {
		if i > 0 {
			e.buffer.WriteByte(',')
		}
		e.writeQuoted(key)
		e.buffer.WriteByte(':')
		if err := e.encode(m[key], depth+1); err != nil {
			return err
		}
	}
	e.buffer.WriteByte('}')
	return nil
}

func (e *textEncoder) writeMatrix(matrix *Matrix) error {
	e.buffer.WriteString(`["` + sentinelMatrix + `",`)
	e.writeQuoted(string(matrix.Dtype()))
	e.buffer.WriteString(",[")
	for i, dim := range matrix.Shape() {
		if i > 0 {
			e.buffer.WriteByte(',')
		}
		e.writeInt(int64(dim))
	}
	e.buffer.WriteString(`],"`)
	e.buffer.WriteString(base64.StdEncoding.EncodeToString(matrix.Data()))
	e.buffer.WriteString(`"]`)
	return nil
}

func (e *textEncoder) writeSparse(sparse *Sparse, depth int) error {
	rows, cols := sparse.Dims()
	e.buffer.WriteString(`["` + sentinelSparse + `",[`)
	e.writeInt(int64(rows))
	e.buffer.WriteByte(',')
	e.writeInt(int64(cols))
	e.buffer.WriteString("],")
	if err := e.writeMatrix(sparse.RowIndex()); err != nil {
		return err
	}
	e.buffer.WriteByte(',')
	if err := e.writeMatrix(sparse.ColIndex()); err != nil {
		return err
	}
	e.buffer.WriteByte(',')
	if err := e.writeMatrix(sparse.Values()); err != nil {
		return err
	}
	e.buffer.WriteByte(']')
	return nil
}
