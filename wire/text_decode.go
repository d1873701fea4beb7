// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// textDecoder parses the text format. Errors carry the byte offset of
// the first offending byte.
type textDecoder struct {
	data   []byte
	offset int
}

func (d *textDecoder) syntaxErrorAt(offset int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, offset, fmt.Sprintf(format, args...))
}

func (d *textDecoder) truncated(context string) error {
	return fmt.Errorf("%w: input ends inside %s", ErrTruncated, context)
}

func (d *textDecoder) skipSpace() {
	for d.offset < len(d.data) {
		switch d.data[d.offset] {
		case ' ', '\t', '\n', '\r':
			d.offset++
		default:
			return
		}
	}
}

func (d *textDecoder) decodeValue(depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w at offset %d", ErrDepth, d.offset)
	}
	d.skipSpace()
	if d.offset >= len(d.data) {
		return nil, d.truncated("value")
	}
	switch c := d.data[d.offset]; {
	case c == 'n':
		return nil, d.literal("null")
	case c == 't':
		return true, d.literal("true")
	case c == 'f':
		return false, d.literal("false")
	case c == '"':
		return d.decodeString()
	case c == '[':
		return d.decodeSequence(depth)
	case c == '{':
		return d.decodeMap(depth)
	case c == '-' || (c >= '0' && c <= '9'):
		return d.decodeNumber()
	default:
		return nil, d.syntaxErrorAt(d.offset, "unexpected byte %q", c)
	}
}

func (d *textDecoder) literal(word string) error {
	if !bytes.HasPrefix(d.data[d.offset:], []byte(word)) {
		return d.syntaxErrorAt(d.offset, "invalid literal")
	}
	d.offset += len(word)
	return nil
}

// decodeNumber parses the strict number grammar: an optional minus, an
// integer part without leading zeros, and optional fraction and
// exponent parts. A number containing '.', 'e', or 'E' is a float;
// anything else is an integer, preferring int64 and overflowing into
// uint64 before failing.
func (d *textDecoder) decodeNumber() (any, error) {
	start := d.offset
	if d.offset < len(d.data) && d.data[d.offset] == '-' {
		d.offset++
	}
	digits := 0
	for d.offset < len(d.data) && d.data[d.offset] >= '0' && d.data[d.offset] <= '9' {
		d.offset++
		digits++
	}
	if digits == 0 {
		return nil, d.syntaxErrorAt(start, "number has no digits")
	}
	firstDigit := start
	if d.data[firstDigit] == '-' {
		firstDigit++
	}
	if digits > 1 && d.data[firstDigit] == '0' {
		return nil, d.syntaxErrorAt(start, "number has a leading zero")
	}
	isFloat := false
	if d.offset < len(d.data) && d.data[d.offset] == '.' {
		isFloat = true
		d.offset++
		fraction := 0
		for d.offset < len(d.data) && d.data[d.offset] >= '0' && d.data[d.offset] <= '9' {
			d.offset++
			fraction++
		}
		if fraction == 0 {
			return nil, d.syntaxErrorAt(d.offset, "decimal point with no fraction digits")
		}
	}
	if d.offset < len(d.data) && (d.data[d.offset] == 'e' || d.data[d.offset] == 'E') {
		isFloat = true
		d.offset++
		if d.offset < len(d.data) && (d.data[d.offset] == '+' || d.data[d.offset] == '-') {
			d.offset++
		}
		exponent := 0
		for d.offset < len(d.data) && d.data[d.offset] >= '0' && d.data[d.offset] <= '9' {
			d.offset++
			exponent++
		}
		if exponent == 0 {
			return nil, d.syntaxErrorAt(d.offset, "exponent with no digits")
		}
	}
	token := string(d.data[start:d.offset])
	if isFloat {
		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, d.syntaxErrorAt(start, "number %s out of range", token)
		}
		return value, nil
	}
	if value, err := strconv.ParseInt(token, 10, 64); err == nil {
		return value, nil
	}
	value, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return nil, d.syntaxErrorAt(start, "integer %s out of range", token)
	}
	return value, nil
}

func (d *textDecoder) decodeString() (string, error) {
	d.offset++ // opening quote
	var builder strings.Builder
	for {
		if d.offset >= len(d.data) {
			return "", d.truncated("string")
		}
		c := d.data[d.offset]
		switch {
		case c == '"':
			d.offset++
			return builder.String(), nil
		case c == '\\':
			if err := d.decodeEscape(&builder); err != nil {
				return "", err
			}
		case c < 0x20:
			return "", d.syntaxErrorAt(d.offset, "raw control byte 0x%02x in string", c)
		default:
			builder.WriteByte(c)
			d.offset++
		}
	}
}

func (d *textDecoder) decodeEscape(builder *strings.Builder) error {
	start := d.offset
	d.offset++ // backslash
	if d.offset >= len(d.data) {
		return d.truncated("escape sequence")
	}
	c := d.data[d.offset]
	d.offset++
	switch c {
	case '"', '\\', '/':
		builder.WriteByte(c)
	case 'n':
		builder.WriteByte('\n')
	case 'r':
		builder.WriteByte('\r')
	case 't':
		builder.WriteByte('\t')
	case 'b':
		builder.WriteByte('\b')
	case 'f':
		builder.WriteByte('\f')
	case 'u':
		unit, err := d.hexUnit()
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(rune(unit)) {
			if d.offset+1 >= len(d.data) || d.data[d.offset] != '\\' || d.data[d.offset+1] != 'u' {
				return d.syntaxErrorAt(start, "unpaired surrogate \\u%04x", unit)
			}
			d.offset += 2
			low, err := d.hexUnit()
			if err != nil {
				return err
			}
			combined := utf16.DecodeRune(rune(unit), rune(low))
			if combined == utf8.RuneError {
				return d.syntaxErrorAt(start, "invalid surrogate pair \\u%04x\\u%04x", unit, low)
			}
			builder.WriteRune(combined)
			return nil
		}
		builder.WriteRune(rune(unit))
	default:
		return d.syntaxErrorAt(start, "unknown escape \\%c", c)
	}
	return nil
}

func (d *textDecoder) hexUnit() (uint16, error) {
	if d.offset+4 > len(d.data) {
		return 0, d.truncated("unicode escape")
	}
	var unit uint16
	for i := 0; i < 4; i++ {
		c := d.data[d.offset]
		var nibble uint16
		switch {
		case c >= '0' && c <= '9':
			nibble = uint16(c - '0')
		case c >= 'a' && c <= 'f':
			nibble = uint16(c-'a') + 10
		case c >= 'A' && c <= 'F':
			nibble = uint16(c-'A') + 10
		default:
			return 0, d.syntaxErrorAt(d.offset, "invalid hex digit %q in unicode escape", c)
		}
		unit = unit<<4 | nibble
		d.offset++
	}
	return unit, nil
}

func (d *textDecoder) decodeSequence(depth int) (any, error) {
	d.offset++ // opening bracket
	sequence := []any{}
	d.skipSpace()
	if d.offset < len(d.data) && d.data[d.offset] == ']' {
		d.offset++
		return sequence, nil
	}
	for {
		element, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		sequence = append(sequence, element)
		d.skipSpace()
		if d.offset >= len(d.data) {
			return nil, d.truncated("sequence")
		}
		switch d.data[d.offset] {
		case ',':
			d.offset++
		case ']':
			d.offset++
			if converted, tagged, err := convertTagged(sequence); tagged {
				return converted, err
			}
			return sequence, nil
		default:
			return nil, d.syntaxErrorAt(d.offset, "expected ',' or ']' in sequence, got %q",
				d.data[d.offset])
		}
	}
}

func (d *textDecoder) decodeMap(depth int) (any, error) {
	d.offset++ // opening brace
	result := map[string]any{}
	d.skipSpace()
	if d.offset < len(d.data) && d.data[d.offset] == '}' {
		d.offset++
		return result, nil
	}
	for {
		d.skipSpace()
		if d.offset >= len(d.data) {
			return nil, d.truncated("map")
		}
		if d.data[d.offset] != '"' {
			return nil, d.syntaxErrorAt(d.offset, "map key must be a string")
		}
		keyOffset := d.offset
		key, err := d.decodeString()
		if err != nil {
			return nil, err
		}
		if _, exists := result[key]; exists {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrDuplicateKey, key, keyOffset)
		}
		d.skipSpace()
		if d.offset >= len(d.data) || d.data[d.offset] != ':' {
			return nil, d.syntaxErrorAt(d.offset, "expected ':' after map key")
		}
		d.offset++
		value, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		result[key] = value
		d.skipSpace()
		if d.offset >= len(d.data) {
			return nil, d.truncated("map")
		}
		switch d.data[d.offset] {
		case ',':
			d.offset++
		case '}':
			d.offset++
			return result, nil
		default:
			return nil, d.syntaxErrorAt(d.offset, "expected ',' or '}' in map, got %q",
				d.data[d.offset])
		}
	}
}
