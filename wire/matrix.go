// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// Matrix is a dense n-dimensional numeric array. The payload is the
// elements in row-major order, each encoded little-endian at the
// dtype's item size. Complex elements store the real half before the
// imaginary half.
//
// The invariant len(data) == ElementCount(shape) * dtype.ItemSize()
// holds for every Matrix built through this package; construct through
// NewMatrix to keep it that way.
type Matrix struct {
	dtype Dtype
	shape []int
	data  []byte
}

// ElementCount returns the number of elements implied by a shape: the
// product of its dimensions, with the empty shape counting as one
// (a zero-dimensional scalar). It fails on negative dimensions and on
// products that overflow int.
func ElementCount(shape []int) (int, error) {
	count := 1
	for _, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("%w: negative dimension %d", ErrShape, dim)
		}
		if dim != 0 && count > math.MaxInt/dim {
			return 0, fmt.Errorf("%w: element count overflows", ErrShape)
		}
		count *= dim
	}
	return count, nil
}

// NewMatrix builds a matrix over the given payload, validating that
// the payload length matches the shape and dtype. The shape and data
// slices are retained; callers must not modify them afterwards.
func NewMatrix(dtype Dtype, shape []int, data []byte) (*Matrix, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrDtype, string(dtype))
	}
	count, err := ElementCount(shape)
	if err != nil {
		return nil, err
	}
	if want := count * dtype.ItemSize(); len(data) != want {
		return nil, fmt.Errorf("%w: dtype %s shape %v wants %d bytes, payload has %d",
			ErrShape, dtype, shape, want, len(data))
	}
	return &Matrix{dtype: dtype, shape: shape, data: data}, nil
}

// Dtype returns the element type.
func (m *Matrix) Dtype() Dtype { return m.dtype }

// Shape returns the dimensions. The slice is shared; callers must not
// modify it.
func (m *Matrix) Shape() []int { return m.shape }

// Data returns the row-major little-endian payload. The slice is
// shared; callers must not modify it.
func (m *Matrix) Data() []byte { return m.data }

// Len returns the number of elements.
func (m *Matrix) Len() int {
	count, _ := ElementCount(m.shape)
	return count
}

// String renders a compact description such as "int32[2x3]".
func (m *Matrix) String() string {
	dims := make([]string, len(m.shape))
	for i, dim := range m.shape {
		dims[i] = fmt.Sprintf("%d", dim)
	}
	return fmt.Sprintf("%s[%s]", m.dtype, strings.Join(dims, "x"))
}

// Equal reports whether two matrices have the same dtype, shape, and
// payload bytes.
func (m *Matrix) Equal(other *Matrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.dtype != other.dtype || len(m.shape) != len(other.shape) {
		return false
	}
	for i := range m.shape {
		if m.shape[i] != other.shape[i] {
			return false
		}
	}
	return bytes.Equal(m.data, other.data)
}

// offset converts a multi-index to a row-major element offset.
func (m *Matrix) offset(indices []int) (int, error) {
	if len(indices) != len(m.shape) {
		return 0, fmt.Errorf("wire: index rank %d against shape %v", len(indices), m.shape)
	}
	offset := 0
	for i, index := range indices {
		if index < 0 || index >= m.shape[i] {
			return 0, fmt.Errorf("wire: index %d out of range for dimension %d of %v",
				index, i, m.shape)
		}
		offset = offset*m.shape[i] + index
	}
	return offset, nil
}

// At returns the element at the given multi-index as the natural Go
// scalar for the dtype: bool, int64, uint64, float64, or complex128.
func (m *Matrix) At(indices ...int) (any, error) {
	offset, err := m.offset(indices)
	if err != nil {
		return nil, err
	}
	return m.element(offset), nil
}

// element decodes the element at a row-major offset. The offset must
// be in range.
func (m *Matrix) element(offset int) any {
	item := m.dtype.ItemSize()
	raw := m.data[offset*item : (offset+1)*item]
	switch m.dtype {
	case Bool:
		return raw[0] != 0
	case Int8:
		return int64(int8(raw[0]))
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(raw)))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(raw)))
	case Int64:
		return int64(binary.LittleEndian.Uint64(raw))
	case Uint8:
		return uint64(raw[0])
	case Uint16:
		return uint64(binary.LittleEndian.Uint16(raw))
	case Uint32:
		return uint64(binary.LittleEndian.Uint32(raw))
	case Uint64:
		return binary.LittleEndian.Uint64(raw)
	case Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(raw)).Float32())
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	case Complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[:4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[4:]))
		return complex(float64(re), float64(im))
	case Complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(raw[:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(raw[8:]))
		return complex(re, im)
	}
	panic(fmt.Sprintf("wire: element of invalid dtype %q", string(m.dtype)))
}

// Float64s returns all elements widened to float64, in row-major
// order. It fails for complex dtypes; bool widens to 0 and 1.
func (m *Matrix) Float64s() ([]float64, error) {
	if m.dtype.IsComplex() {
		return nil, fmt.Errorf("wire: %s matrix has no float64 view", m.dtype)
	}
	values := make([]float64, m.Len())
	for i := range values {
		switch element := m.element(i).(type) {
		case bool:
			if element {
				values[i] = 1
			}
		case int64:
			values[i] = float64(element)
		case uint64:
			values[i] = float64(element)
		case float64:
			values[i] = element
		}
	}
	return values, nil
}

// Complex128s returns all elements widened to complex128, in
// row-major order. Real dtypes widen with a zero imaginary half.
func (m *Matrix) Complex128s() ([]complex128, error) {
	if m.dtype == Bool {
		return nil, fmt.Errorf("wire: %s matrix has no complex128 view", m.dtype)
	}
	values := make([]complex128, m.Len())
	for i := range values {
		switch element := m.element(i).(type) {
		case int64:
			values[i] = complex(float64(element), 0)
		case uint64:
			values[i] = complex(float64(element), 0)
		case float64:
			values[i] = complex(element, 0)
		case complex128:
			values[i] = element
		}
	}
	return values, nil
}

// Int64s returns all elements as int64, in row-major order. It fails
// for non-integer dtypes and for uint64 elements beyond the int64
// range.
func (m *Matrix) Int64s() ([]int64, error) {
	if !m.dtype.IsInteger() {
		return nil, fmt.Errorf("wire: %s matrix has no int64 view", m.dtype)
	}
	values := make([]int64, m.Len())
	for i := range values {
		switch element := m.element(i).(type) {
		case int64:
			values[i] = element
		case uint64:
			if element > math.MaxInt64 {
				return nil, fmt.Errorf("wire: element %d overflows int64", element)
			}
			values[i] = int64(element)
		}
	}
	return values, nil
}

// MatrixFromFloat64s builds a float64 matrix from row-major values.
func MatrixFromFloat64s(shape []int, values []float64) (*Matrix, error) {
	data := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(value))
	}
	return NewMatrix(Float64, shape, data)
}

// MatrixFromInt64s builds an int64 matrix from row-major values.
func MatrixFromInt64s(shape []int, values []int64) (*Matrix, error) {
	data := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(value))
	}
	return NewMatrix(Int64, shape, data)
}

// MatrixFromInt32s builds an int32 matrix from row-major values.
func MatrixFromInt32s(shape []int, values []int32) (*Matrix, error) {
	data := make([]byte, 4*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(value))
	}
	return NewMatrix(Int32, shape, data)
}

// MatrixFromBools builds a bool matrix from row-major values.
func MatrixFromBools(shape []int, values []bool) (*Matrix, error) {
	data := make([]byte, len(values))
	for i, value := range values {
		if value {
			data[i] = 1
		}
	}
	return NewMatrix(Bool, shape, data)
}

// MatrixFromComplex128s builds a complex128 matrix from row-major
// values.
func MatrixFromComplex128s(shape []int, values []complex128) (*Matrix, error) {
	data := make([]byte, 16*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[16*i:], math.Float64bits(real(value)))
		binary.LittleEndian.PutUint64(data[16*i+8:], math.Float64bits(imag(value)))
	}
	return NewMatrix(Complex128, shape, data)
}

// ColumnMajorData returns a copy of the payload with the elements
// reordered column-major, for peers whose native array layout is
// Fortran order. The inverse is MatrixFromColumnMajor.
func (m *Matrix) ColumnMajorData() []byte {
	out := make([]byte, len(m.data))
	permuteAxisOrder(m.shape, m.dtype.ItemSize(), m.data, out, false)
	return out
}

// MatrixFromColumnMajor builds a matrix from a column-major payload,
// reordering it into the row-major layout the wire carries.
func MatrixFromColumnMajor(dtype Dtype, shape []int, data []byte) (*Matrix, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrDtype, string(dtype))
	}
	count, err := ElementCount(shape)
	if err != nil {
		return nil, err
	}
	if want := count * dtype.ItemSize(); len(data) != want {
		return nil, fmt.Errorf("%w: dtype %s shape %v wants %d bytes, payload has %d",
			ErrShape, dtype, shape, want, len(data))
	}
	out := make([]byte, len(data))
	permuteAxisOrder(shape, dtype.ItemSize(), data, out, true)
	return &Matrix{dtype: dtype, shape: shape, data: out}, nil
}

// permuteAxisOrder copies elements between row-major and column-major
// layouts. With toRowMajor false, src is row-major and dst receives
// column-major; with toRowMajor true the roles are swapped.
func permuteAxisOrder(shape []int, itemSize int, src, dst []byte, toRowMajor bool) {
	rank := len(shape)
	if rank <= 1 {
		copy(dst, src)
		return
	}
	count := 1
	for _, dim := range shape {
		count *= dim
	}
	rowStride := make([]int, rank)
	colStride := make([]int, rank)
	rowStride[rank-1] = 1
	for i := rank - 2; i >= 0; i-- {
		rowStride[i] = rowStride[i+1] * shape[i+1]
	}
	colStride[0] = 1
	for i := 1; i < rank; i++ {
		colStride[i] = colStride[i-1] * shape[i-1]
	}
	index := make([]int, rank)
	for element := 0; element < count; element++ {
		row, col := 0, 0
		for i, n := range index {
			row += n * rowStride[i]
			col += n * colStride[i]
		}
		if toRowMajor {
			copy(dst[row*itemSize:(row+1)*itemSize], src[col*itemSize:(col+1)*itemSize])
		} else {
			copy(dst[col*itemSize:(col+1)*itemSize], src[row*itemSize:(row+1)*itemSize])
		}
		for i := rank - 1; i >= 0; i-- {
			index[i]++
			if index[i] < shape[i] {
				break
			}
			index[i] = 0
		}
	}
}
