// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// binaryDecoder parses the tag-length-value format. Integers decode
// to int64 whenever the value fits, and to uint64 only beyond the
// int64 range, so a value's signedness on the wire never leaks into
// the decoded variant.
type binaryDecoder struct {
	data   []byte
	offset int
}

func (d *binaryDecoder) truncated(context string) error {
	return fmt.Errorf("%w: input ends inside %s at offset %d", ErrTruncated, context, d.offset)
}

func (d *binaryDecoder) readByte(context string) (byte, error) {
	if d.offset >= len(d.data) {
		return 0, d.truncated(context)
	}
	b := d.data[d.offset]
	d.offset++
	return b, nil
}

// take returns the next n bytes without copying. Callers that retain
// the bytes must copy them first.
func (d *binaryDecoder) take(n int, context string) ([]byte, error) {
	if n < 0 || d.offset+n > len(d.data) {
		return nil, d.truncated(context)
	}
	raw := d.data[d.offset : d.offset+n]
	d.offset += n
	return raw, nil
}

// readLength reads a big-endian length prefix of 1, 2, or 4 bytes.
func (d *binaryDecoder) readLength(size int, context string) (int, error) {
	raw, err := d.take(size, context)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return int(raw[0]), nil
	case 2:
		return int(binary.BigEndian.Uint16(raw)), nil
	default:
		length := binary.BigEndian.Uint32(raw)
		if uint64(length) > uint64(math.MaxInt) {
			return 0, fmt.Errorf("%w: %s length %d", ErrTruncated, context, length)
		}
		return int(length), nil
	}
}

func (d *binaryDecoder) decodeValue(depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w at offset %d", ErrDepth, d.offset)
	}
	tagOffset := d.offset
	tag, err := d.readByte("value")
	if err != nil {
		return nil, err
	}
	switch {
	case tag <= 0x7f:
		return int64(tag), nil
	case tag >= 0xe0:
		return int64(int8(tag)), nil
	case tag&0xf0 == fixmapTag:
		return d.decodeMapBody(int(tag&0x0f), depth)
	case tag&0xf0 == fixarrayTag:
		return d.decodeSequenceBody(int(tag&0x0f), depth)
	case tag&0xe0 == fixstrTag:
		return d.decodeString(int(tag & 0x1f))
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagFalse:
		return false, nil
	case tagTrue:
		return true, nil
	case tagBin8, tagBin16, tagBin32:
		length, err := d.readLength(1<<(tag-tagBin8), "byte string length")
		if err != nil {
			return nil, err
		}
		raw, err := d.take(length, "byte string")
		if err != nil {
			return nil, err
		}
		payload := make([]byte, length)
		copy(payload, raw)
		return payload, nil
	case tagFloat32:
		raw, err := d.take(4, "float32")
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(raw))), nil
	case tagFloat64:
		raw, err := d.take(8, "float64")
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
	case tagUint8, tagUint16, tagUint32, tagUint64:
		raw, err := d.take(1<<(tag-tagUint8), "unsigned integer")
		if err != nil {
			return nil, err
		}
		var value uint64
		for _, b := range raw {
			value = value<<8 | uint64(b)
		}
		if value > math.MaxInt64 {
			return value, nil
		}
		return int64(value), nil
	case tagInt8, tagInt16, tagInt32, tagInt64:
		raw, err := d.take(1<<(tag-tagInt8), "signed integer")
		if err != nil {
			return nil, err
		}
		value := int64(int8(raw[0]))
		for _, b := range raw[1:] {
			value = value<<8 | int64(b)
		}
		return value, nil
	case tagStr8, tagStr16, tagStr32:
		length, err := d.readLength(1<<(tag-tagStr8), "string length")
		if err != nil {
			return nil, err
		}
		return d.decodeString(length)
	case tagArray16, tagArray32:
		length, err := d.readLength(2<<(tag-tagArray16), "sequence length")
		if err != nil {
			return nil, err
		}
		return d.decodeSequenceBody(length, depth)
	case tagMap16, tagMap32:
		length, err := d.readLength(2<<(tag-tagMap16), "map length")
		if err != nil {
			return nil, err
		}
		return d.decodeMapBody(length, depth)
	}
	return nil, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownTag, tag, tagOffset)
}

func (d *binaryDecoder) decodeString(length int) (string, error) {
	raw, err := d.take(length, "string")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *binaryDecoder) decodeSequenceBody(count, depth int) (any, error) {
	// Every element takes at least one byte, so a count beyond the
	// remaining input can be rejected before allocating for it.
	if count > len(d.data)-d.offset {
		return nil, d.truncated("sequence")
	}
	sequence := make([]any, count)
	for i := range sequence {
		element, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		sequence[i] = element
	}
	if converted, tagged, err := convertTagged(sequence); tagged {
		return converted, err
	}
	return sequence, nil
}

func (d *binaryDecoder) decodeMapBody(count, depth int) (any, error) {
	if count > (len(d.data)-d.offset)/2 {
		return nil, d.truncated("map")
	}
	result := make(map[string]any, count)
	for i := 0; i < count; i++ {
		keyOffset := d.offset
		keyValue, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		key, ok := keyValue.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s at offset %d", ErrMapKey, Kind(keyValue), keyOffset)
		}
		if _, exists := result[key]; exists {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrDuplicateKey, key, keyOffset)
		}
		value, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, nil
}
