// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Dtype names the element type of a matrix. The names travel on the
// wire verbatim, so they are the lingua franca between peers rather
// than any one language's native spelling.
type Dtype string

const (
	Bool       Dtype = "bool"
	Int8       Dtype = "int8"
	Int16      Dtype = "int16"
	Int32      Dtype = "int32"
	Int64      Dtype = "int64"
	Uint8      Dtype = "uint8"
	Uint16     Dtype = "uint16"
	Uint32     Dtype = "uint32"
	Uint64     Dtype = "uint64"
	Float32    Dtype = "float32"
	Float64    Dtype = "float64"
	Complex64  Dtype = "complex64"
	Complex128 Dtype = "complex128"

	// Float16 is carried for peer compatibility. Payloads are stored
	// and forwarded bit-exact; element access widens to float64
	// through the IEEE 754 binary16 interpretation.
	Float16 Dtype = "float16"
)

// itemSizes maps each supported dtype to its element width in bytes.
// Presence in this map is what makes a dtype valid.
var itemSizes = map[Dtype]int{
	Bool:       1,
	Int8:       1,
	Int16:      2,
	Int32:      4,
	Int64:      8,
	Uint8:      1,
	Uint16:     2,
	Uint32:     4,
	Uint64:     8,
	Float16:    2,
	Float32:    4,
	Float64:    8,
	Complex64:  8,
	Complex128: 16,
}

// ParseDtype validates a wire dtype name.
func ParseDtype(name string) (Dtype, error) {
	dtype := Dtype(name)
	if !dtype.Valid() {
		return "", fmt.Errorf("%w: %q", ErrDtype, name)
	}
	return dtype, nil
}

// Valid reports whether the dtype is one of the supported names.
func (d Dtype) Valid() bool {
	_, ok := itemSizes[d]
	return ok
}

// ItemSize returns the element width in bytes. It panics on an
// invalid dtype; validate with ParseDtype at trust boundaries.
func (d Dtype) ItemSize() int {
	size, ok := itemSizes[d]
	if !ok {
		panic(fmt.Sprintf("wire: ItemSize of invalid dtype %q", string(d)))
	}
	return size
}

// IsInteger reports whether the dtype is a signed or unsigned integer
// type.
func (d Dtype) IsInteger() bool {
	switch d {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsUnsigned reports whether the dtype is an unsigned integer type.
func (d Dtype) IsUnsigned() bool {
	switch d {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsFloat reports whether the dtype is a real floating-point type.
func (d Dtype) IsFloat() bool {
	switch d {
	case Float16, Float32, Float64:
		return true
	}
	return false
}

// IsComplex reports whether the dtype is a complex type.
func (d Dtype) IsComplex() bool {
	return d == Complex64 || d == Complex128
}

func (d Dtype) String() string {
	return string(d)
}
