// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// Binary format tag bytes. Single-byte inline forms cover small
// integers (0x00-0x7f positive, 0xe0-0xff negative) and short strings
// and containers; everything else is a tag followed by a big-endian
// length or payload. The reserved byte 0xc1 and the ext family
// (0xc7-0xc9, 0xd4-0xd8) are never emitted and rejected on decode.
const (
	tagNil     = 0xc0
	tagFalse   = 0xc2
	tagTrue    = 0xc3
	tagBin8    = 0xc4
	tagBin16   = 0xc5
	tagBin32   = 0xc6
	tagFloat32 = 0xca
	tagFloat64 = 0xcb
	tagUint8   = 0xcc
	tagUint16  = 0xcd
	tagUint32  = 0xce
	tagUint64  = 0xcf
	tagInt8    = 0xd0
	tagInt16   = 0xd1
	tagInt32   = 0xd2
	tagInt64   = 0xd3
	tagStr8    = 0xd9
	tagStr16   = 0xda
	tagStr32   = 0xdb
	tagArray16 = 0xdc
	tagArray32 = 0xdd
	tagMap16   = 0xde
	tagMap32   = 0xdf

	fixmapTag   = 0x80
	fixarrayTag = 0x90
	fixstrTag   = 0xa0
)

// binaryEncoder emits the tag-length-value format, always choosing the
// smallest form that holds the value. Map keys are emitted in sorted
// order so equal values encode to equal bytes.
type binaryEncoder struct {
	buffer bytes.Buffer
}

func (e *binaryEncoder) encode(value any, depth int) error {
	if depth > maxDepth {
		return ErrDepth
	}
	switch value := value.(type) {
	case nil:
		e.buffer.WriteByte(tagNil)
	case bool:
		if value {
			e.buffer.WriteByte(tagTrue)
		} else {
			e.buffer.WriteByte(tagFalse)
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
		e.buffer.WriteByte(tagFloat32)
		e.writeBigEndian32(math.Float32bits(value))
	case float64:
		e.buffer.WriteByte(tagFloat64)
		e.writeBigEndian64(math.Float64bits(value))
	case string:
		return e.writeString(value)
	case []byte:
		return e.writeBytes(value)
	case []any:
		if err := e.writeSequenceHeader(len(value)); err != nil {
			return err
		}
		for _, element := range value {
			if err := e.encode(element, depth+1); err != nil {
				return err
			}
		}
	case map[string]any:
		if err := e.writeMapHeader(len(value)); err != nil {
			return err
		}
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if err := e.writeString(key); err != nil {
				return err
			}
			if err := e.encode(value[key], depth+1); err != nil {
				return err
			}
		}
	case *Matrix:
		return e.writeMatrix(value)
	case *Sparse:
		return e.writeSparse(value)
	case ObjectRef:
		e.buffer.WriteByte(fixarrayTag | 2)
		if err := e.writeString(sentinelObject); err != nil {
			return err
		}
		e.writeInt(int64(value.Handle))
	case FunctionRef:
		e.buffer.WriteByte(fixarrayTag | 2)
		if err := e.writeString(sentinelFunction); err != nil {
			return err
		}
		if value.ByHandle {
			e.writeInt(int64(value.Handle))
		} else {
			return e.writeString(value.Name)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, value)
	}
	return nil
}

func (e *binaryEncoder) writeInt(value int64) {
	if value >= 0 {
		e.writeUint(uint64(value))
		return
	}
	switch {
	case value >= -32:
		e.buffer.WriteByte(byte(value))
	case value >= math.MinInt8:
		e.buffer.WriteByte(tagInt8)
		e.buffer.WriteByte(byte(value))
	case value >= math.MinInt16:
		e.buffer.WriteByte(tagInt16)
		e.writeBigEndian16(uint16(value))
	case value >= math.MinInt32:
		e.buffer.WriteByte(tagInt32)
		e.writeBigEndian32(uint32(value))
	default:
		e.buffer.WriteByte(tagInt64)
		e.writeBigEndian64(uint64(value))
	}
}

func (e *binaryEncoder) writeUint(value uint64) {
	switch {
	case value < 1<<7:
		e.buffer.WriteByte(byte(value))
	case value < 1<<8:
		e.buffer.WriteByte(tagUint8)
		e.buffer.WriteByte(byte(value))
	case value < 1<<16:
		e.buffer.WriteByte(tagUint16)
		e.writeBigEndian16(uint16(value))
	case value < 1<<32:
		e.buffer.WriteByte(tagUint32)
		e.writeBigEndian32(uint32(value))
	default:
		e.buffer.WriteByte(tagUint64)
		e.writeBigEndian64(value)
	}
}

func (e *binaryEncoder) writeString(value string) error {
	length := len(value)
	switch {
	case length < 32:
		e.buffer.WriteByte(fixstrTag | byte(length))
	case length < 1<<8:
		e.buffer.WriteByte(tagStr8)
		e.buffer.WriteByte(byte(length))
	case length < 1<<16:
		e.buffer.WriteByte(tagStr16)
		e.writeBigEndian16(uint16(length))
	case int64(length) < 1<<32:
		e.buffer.WriteByte(tagStr32)
		e.writeBigEndian32(uint32(length))
	default:
		return fmt.Errorf("%w: string of %d bytes", ErrUnsupported, length)
	}
	e.buffer.WriteString(value)
	return nil
}

func (e *binaryEncoder) writeBytes(value []byte) error {
	length := len(value)
	switch {
	case length < 1<<8:
		e.buffer.WriteByte(tagBin8)
		e.buffer.WriteByte(byte(length))
	case length < 1<<16:
		e.buffer.WriteByte(tagBin16)
		e.writeBigEndian16(uint16(length))
	case int64(length) < 1<<32:
		e.buffer.WriteByte(tagBin32)
		e.writeBigEndian32(uint32(length))
	default:
		return fmt.Errorf("%w: byte string of %d bytes", ErrUnsupported, length)
	}
	e.buffer.Write(value)
	return nil
}

func (e *binaryEncoder) writeSequenceHeader(length int) error {
	switch {
	case length < 16:
		e.buffer.WriteByte(fixarrayTag | byte(length))
	case length < 1<<16:
		e.buffer.WriteByte(tagArray16)
		e.writeBigEndian16(uint16(length))
	case int64(length) < 1<<32:
		e.buffer.WriteByte(tagArray32)
		e.writeBigEndian32(uint32(length))
	default:
		return fmt.Errorf("%w: sequence of %d elements", ErrUnsupported, length)
	}
	return nil
}

func (e *binaryEncoder) writeMapHeader(length int) error {
	switch {
	case length < 16:
		e.buffer.WriteByte(fixmapTag | byte(length))
	case length < 1<<16:
		e.buffer.WriteByte(tagMap16)
		e.writeBigEndian16(uint16(length))
	case int64(length) < 1<<32:
		e.buffer.WriteByte(tagMap32)
		e.writeBigEndian32(uint32(length))
	default:
		return fmt.Errorf("%w: map of %d entries", ErrUnsupported, length)
	}
	return nil
}

func (e *binaryEncoder) writeMatrix(matrix *Matrix) error {
	e.buffer.WriteByte(fixarrayTag | 4)
	if err := e.writeString(sentinelMatrix); err != nil {
		return err
	}
	if err := e.writeString(string(matrix.Dtype())); err != nil {
		return err
	}
	shape := matrix.Shape()
	if err := e.writeSequenceHeader(len(shape)); err != nil {
		return err
	}
	for _, dim := range shape {
		e.writeInt(int64(dim))
	}
	return e.writeBytes(matrix.Data())
}

func (e *binaryEncoder) writeSparse(sparse *Sparse) error {
	e.buffer.WriteByte(fixarrayTag | 5)
	if err := e.writeString(sentinelSparse); err != nil {
		return err
	}
	rows, cols := sparse.Dims()
	e.buffer.WriteByte(fixarrayTag | 2)
	e.writeInt(int64(rows))
	e.writeInt(int64(cols))
	if err := e.writeMatrix(sparse.RowIndex()); err != nil {
		return err
	}
	if err := e.writeMatrix(sparse.ColIndex()); err != nil {
		return err
	}
	return e.writeMatrix(sparse.Values())
}

func (e *binaryEncoder) writeBigEndian16(value uint16) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], value)
	e.buffer.Write(scratch[:])
}

func (e *binaryEncoder) writeBigEndian32(value uint32) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], value)
	e.buffer.Write(scratch[:])
}

func (e *binaryEncoder) writeBigEndian64(value uint64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], value)
	e.buffer.Write(scratch[:])
}
