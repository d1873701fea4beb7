// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Sparse is a two-dimensional sparse matrix in coordinate form: three
// parallel one-dimensional matrices holding the row index, column
// index, and value of each stored entry. Entries may repeat a
// coordinate; densifying sums the duplicates.
//
// The index components keep whatever integer dtype the peer sent, and
// the value component keeps its numeric dtype, so a decode/encode
// round trip is byte-faithful.
type Sparse struct {
	rows, cols int
	rowIndex   *Matrix
	colIndex   *Matrix
	values     *Matrix
}

// NewSparse builds a sparse matrix from its coordinate components,
// validating that the components are one-dimensional and of equal
// length, that the index components are integer-typed, and that every
// index is within the shape.
func NewSparse(rows, cols int, rowIndex, colIndex, values *Matrix) (*Sparse, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative sparse shape %dx%d", ErrShape, rows, cols)
	}
	components := []struct {
		name   string
		matrix *Matrix
	}{
		{"row index", rowIndex},
		{"column index", colIndex},
		{"values", values},
	}
	for _, c := range components {
		if c.matrix == nil {
			return nil, fmt.Errorf("%w: sparse %s component missing", ErrExtension, c.name)
		}
		if len(c.matrix.Shape()) != 1 {
			return nil, fmt.Errorf("%w: sparse %s component is %s, want one-dimensional",
				ErrExtension, c.name, c.matrix)
		}
	}
	if rowIndex.Len() != values.Len() || colIndex.Len() != values.Len() {
		return nil, fmt.Errorf("%w: sparse components disagree on entry count (%d, %d, %d)",
			ErrExtension, rowIndex.Len(), colIndex.Len(), values.Len())
	}
	if !rowIndex.Dtype().IsInteger() || !colIndex.Dtype().IsInteger() {
		return nil, fmt.Errorf("%w: sparse index components must be integer, got %s and %s",
			ErrExtension, rowIndex.Dtype(), colIndex.Dtype())
	}
	rowValues, err := rowIndex.Int64s()
	if err != nil {
		return nil, fmt.Errorf("%w: sparse row index: %v", ErrExtension, err)
	}
	colValues, err := colIndex.Int64s()
	if err != nil {
		return nil, fmt.Errorf("%w: sparse column index: %v", ErrExtension, err)
	}
	for i := range rowValues {
		if rowValues[i] < 0 || rowValues[i] >= int64(rows) ||
			colValues[i] < 0 || colValues[i] >= int64(cols) {
			return nil, fmt.Errorf("%w: sparse entry %d at (%d, %d) outside %dx%d",
				ErrExtension, i, rowValues[i], colValues[i], rows, cols)
		}
	}
	return &Sparse{
		rows: rows, cols: cols,
		rowIndex: rowIndex, colIndex: colIndex, values: values,
	}, nil
}

// SparseFromTriplets builds a float64 sparse matrix from parallel
// index and value slices, using int64 index components.
func SparseFromTriplets(rows, cols int, rowIndex, colIndex []int64, values []float64) (*Sparse, error) {
	if len(rowIndex) != len(values) || len(colIndex) != len(values) {
		return nil, fmt.Errorf("%w: triplet slices disagree on entry count (%d, %d, %d)",
			ErrExtension, len(rowIndex), len(colIndex), len(values))
	}
	shape := []int{len(values)}
	rowMatrix, err := MatrixFromInt64s(shape, rowIndex)
	if err != nil {
		return nil, err
	}
	colMatrix, err := MatrixFromInt64s(shape, colIndex)
	if err != nil {
		return nil, err
	}
	valueMatrix, err := MatrixFromFloat64s(shape, values)
	if err != nil {
		return nil, err
	}
	return NewSparse(rows, cols, rowMatrix, colMatrix, valueMatrix)
}

// SparseFromDense converts a dense two-dimensional matrix to sparse
// form, storing only the nonzero elements in row-major scan order.
func SparseFromDense(m *Matrix) (*Sparse, error) {
	shape := m.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("wire: sparse conversion wants a two-dimensional matrix, got %s", m)
	}
	itemSize := m.Dtype().ItemSize()
	var rowIndex, colIndex []int64
	var valueData []byte
	for row := 0; row < shape[0]; row++ {
		for col := 0; col < shape[1]; col++ {
			offset := row*shape[1] + col
			if elementIsZero(m.element(offset)) {
				continue
			}
			rowIndex = append(rowIndex, int64(row))
			colIndex = append(colIndex, int64(col))
			valueData = append(valueData, m.Data()[offset*itemSize:(offset+1)*itemSize]...)
		}
	}
	entryShape := []int{len(rowIndex)}
	rowMatrix, err := MatrixFromInt64s(entryShape, rowIndex)
	if err != nil {
		return nil, err
	}
	colMatrix, err := MatrixFromInt64s(entryShape, colIndex)
	if err != nil {
		return nil, err
	}
	valueMatrix, err := NewMatrix(m.Dtype(), entryShape, valueData)
	if err != nil {
		return nil, err
	}
	return NewSparse(shape[0], shape[1], rowMatrix, colMatrix, valueMatrix)
}

func elementIsZero(element any) bool {
	switch element := element.(type) {
	case bool:
		return !element
	case int64:
		return element == 0
	case uint64:
		return element == 0
	case float64:
		return element == 0
	case complex128:
		return element == 0
	}
	return false
}

// Dims returns the dense shape (rows, columns).
func (s *Sparse) Dims() (rows, cols int) { return s.rows, s.cols }

// NNZ returns the number of stored entries, duplicates included.
func (s *Sparse) NNZ() int { return s.values.Len() }

// RowIndex returns the row index component.
func (s *Sparse) RowIndex() *Matrix { return s.rowIndex }

// ColIndex returns the column index component.
func (s *Sparse) ColIndex() *Matrix { return s.colIndex }

// Values returns the value component.
func (s *Sparse) Values() *Matrix { return s.values }

// String renders a compact description such as "sparse float64[3x4, 2 entries]".
func (s *Sparse) String() string {
	return fmt.Sprintf("sparse %s[%dx%d, %d entries]", s.values.Dtype(), s.rows, s.cols, s.NNZ())
}

// Equal reports whether two sparse matrices have the same shape and
// byte-identical components.
func (s *Sparse) Equal(other *Sparse) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.rows == other.rows && s.cols == other.cols &&
		s.rowIndex.Equal(other.rowIndex) &&
		s.colIndex.Equal(other.colIndex) &&
		s.values.Equal(other.values)
}

// Dense expands the sparse matrix to a dense one of the value
// component's dtype. Duplicate coordinates sum; integer sums wrap at
// the dtype width like ordinary integer arithmetic.
func (s *Sparse) Dense() (*Matrix, error) {
	dtype := s.values.Dtype()
	count, err := ElementCount([]int{s.rows, s.cols})
	if err != nil {
		return nil, err
	}
	data := make([]byte, count*dtype.ItemSize())
	rowValues, err := s.rowIndex.Int64s()
	if err != nil {
		return nil, err
	}
	colValues, err := s.colIndex.Int64s()
	if err != nil {
		return nil, err
	}
	dense, err := NewMatrix(dtype, []int{s.rows, s.cols}, data)
	if err != nil {
		return nil, err
	}
	for i := range rowValues {
		offset := int(rowValues[i])*s.cols + int(colValues[i])
		addElement(dtype, data, offset, s.values.element(i))
	}
	return dense, nil
}

// addElement adds a scalar into a payload slot, in the accumulation
// domain natural to the dtype.
func addElement(dtype Dtype, data []byte, offset int, element any) {
	itemSize := dtype.ItemSize()
	slot := data[offset*itemSize : (offset+1)*itemSize]
	switch dtype {
	case Bool:
		if element.(bool) {
			slot[0] = 1
		}
	case Int8:
		slot[0] = byte(int8(slot[0]) + int8(element.(int64)))
	case Int16:
		sum := int16(binary.LittleEndian.Uint16(slot)) + int16(element.(int64))
		binary.LittleEndian.PutUint16(slot, uint16(sum))
	case Int32:
		sum := int32(binary.LittleEndian.Uint32(slot)) + int32(element.(int64))
		binary.LittleEndian.PutUint32(slot, uint32(sum))
	case Int64:
		sum := int64(binary.LittleEndian.Uint64(slot)) + element.(int64)
		binary.LittleEndian.PutUint64(slot, uint64(sum))
	case Uint8:
		slot[0] += byte(element.(uint64))
	case Uint16:
		sum := binary.LittleEndian.Uint16(slot) + uint16(element.(uint64))
		binary.LittleEndian.PutUint16(slot, sum)
	case Uint32:
		sum := binary.LittleEndian.Uint32(slot) + uint32(element.(uint64))
		binary.LittleEndian.PutUint32(slot, sum)
	case Uint64:
		sum := binary.LittleEndian.Uint64(slot) + element.(uint64)
		binary.LittleEndian.PutUint64(slot, sum)
	case Float16:
		sum := float16.Frombits(binary.LittleEndian.Uint16(slot)).Float32() +
			float32(element.(float64))
		binary.LittleEndian.PutUint16(slot, float16.Fromfloat32(sum).Bits())
	case Float32:
		sum := math.Float32frombits(binary.LittleEndian.Uint32(slot)) +
			float32(element.(float64))
		binary.LittleEndian.PutUint32(slot, math.Float32bits(sum))
	case Float64:
		sum := math.Float64frombits(binary.LittleEndian.Uint64(slot)) + element.(float64)
		binary.LittleEndian.PutUint64(slot, math.Float64bits(sum))
	case Complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(slot[:4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(slot[4:]))
		value := element.(complex128)
		binary.LittleEndian.PutUint32(slot[:4], math.Float32bits(re+float32(real(value))))
		binary.LittleEndian.PutUint32(slot[4:], math.Float32bits(im+float32(imag(value))))
	case Complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(slot[:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(slot[8:]))
		value := element.(complex128)
		binary.LittleEndian.PutUint64(slot[:8], math.Float64bits(re+real(value)))
		binary.LittleEndian.PutUint64(slot[8:], math.Float64bits(im+imag(value)))
	}
}
