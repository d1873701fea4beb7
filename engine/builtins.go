// Copyright 2026 The Transplant Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bastibe/transplant/snapshot"
	"github.com/bastibe/transplant/wire"
)

// registerBuiltins installs the standard library. Matrix arithmetic
// works in float64; dtype-preserving operations (reshape, transpose,
// sparse conversion) keep the element bytes untouched.
func registerBuiltins(env *Environment) {
	for _, builtin := range []*Builtin{
		{Name: "concat", Results: 1, Help: "concat(a, b): join two sequences or strings", Fn: builtinConcat},
		{Name: "length", Results: 1, Help: "length(x): element count of a sequence, map, string, or matrix", Fn: builtinLength},
		{Name: "range", Results: 1, Help: "range(start, stop[, step]): integer sequence, stop exclusive", Fn: builtinRange},
		{Name: "zeros", Results: 1, Help: "zeros(dims...): float64 matrix of zeros", Fn: builtinZeros},
		{Name: "ones", Results: 1, Help: "ones(dims...): float64 matrix of ones", Fn: builtinOnes},
		{Name: "eye", Results: 1, Help: "eye(n): n-by-n float64 identity matrix", Fn: builtinEye},
		{Name: "linspace", Results: 1, Help: "linspace(start, stop, count): evenly spaced float64 values, endpoints included", Fn: builtinLinspace},
		{Name: "size", Results: 1, Help: "size(m): matrix dimensions as an int64 vector", Fn: builtinSize},
		{Name: "reshape", Results: 1, Help: "reshape(m, dims...): same elements, new shape", Fn: builtinReshape},
		{Name: "transpose", Results: 1, Help: "transpose(m): swap the two dimensions of a matrix", Fn: builtinTranspose},
		{Name: "add", Results: 1, Help: "add(a, b): elementwise sum; scalars broadcast", Fn: builtinAdd},
		{Name: "multiply", Results: 1, Help: "multiply(a, b): elementwise product; scalars broadcast", Fn: builtinMultiply},
		{Name: "sum", Results: 1, Help: "sum(m): total of all elements", Fn: builtinSum},
		{Name: "max", Results: 2, Help: "max(m): largest element and its one-based index", Fn: builtinMax},
		{Name: "min", Results: 2, Help: "min(m): smallest element and its one-based index", Fn: builtinMin},
		{Name: "sparse", Results: 1, Help: "sparse(m): coordinate-form sparse matrix from a 2-d dense matrix", Fn: builtinSparse},
		{Name: "full", Results: 1, Help: "full(s): dense matrix from a sparse matrix", Fn: builtinFull},
		{Name: "nnz", Results: 1, Help: "nnz(s): number of stored entries in a sparse matrix", Fn: builtinNNZ},
		{Name: "who", Results: 1, Help: "who(): bound workspace names, sorted", Fn: builtinWho},
		{Name: "clear", Results: 0, Help: "clear(names...): unbind workspace names; no names clears everything", Fn: builtinClear},
		{Name: "save", Results: 0, Help: "save(path[, names...]): snapshot workspace globals to a file", Fn: builtinSave},
		{Name: "load", Results: 1, Help: "load(path): restore workspace globals from a snapshot, returning the names", Fn: builtinLoad},
		{Name: "accumulator", Results: 1, Help: "accumulator(): live object with a running total", Fn: builtinAccumulator},
		{Name: "help", Results: 1, Help: "help([name]): describe a builtin, or list all of them", Fn: builtinHelp},
	} {
		env.Register(builtin)
	}
}

func builtinConcat(call *Call) ([]any, error) {
	if err := call.Arity(2, 2); err != nil {
		return nil, err
	}
	switch first := call.Args[0].(type) {
	case string:
		second, err := call.String(1)
		if err != nil {
			return nil, err
		}
		return []any{first + second}, nil
	case []any:
		second, err := call.Sequence(1)
		if err != nil {
			return nil, err
		}
		joined := make([]any, 0, len(first)+len(second))
		joined = append(joined, first...)
		joined = append(joined, second...)
		return []any{joined}, nil
	}
	return nil, Errorf(IDExecution, "cannot concat %s values", wire.Kind(call.Args[0]))
}

func builtinLength(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	switch value := call.Args[0].(type) {
	case string:
		return []any{int64(len(value))}, nil
	case []any:
		return []any{int64(len(value))}, nil
	case map[string]any:
		return []any{int64(len(value))}, nil
	case *wire.Matrix:
		return []any{int64(value.Len())}, nil
	case *wire.Sparse:
		rows, cols := value.Dims()
		return []any{int64(rows * cols)}, nil
	}
	return nil, Errorf(IDExecution, "%s values have no length", wire.Kind(call.Args[0]))
}

func builtinRange(call *Call) ([]any, error) {
	if err := call.Arity(2, 3); err != nil {
		return nil, err
	}
	start, err := call.Int(0)
	if err != nil {
		return nil, err
	}
	stop, err := call.Int(1)
	if err != nil {
		return nil, err
	}
	step := int64(1)
	if len(call.Args) == 3 {
		if step, err = call.Int(2); err != nil {
			return nil, err
		}
	}
	if step == 0 {
		return nil, Errorf(IDExecution, "range step must not be zero")
	}
	var sequence []any
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(sequence)%4096 == 0 {
			call.CheckInterrupt()
		}
		sequence = append(sequence, i)
	}
	if sequence == nil {
		sequence = []any{}
	}
	return []any{sequence}, nil
}

// shapeArgs reads the trailing arguments from index first onward as
// matrix dimensions. A single dimension n means an n-by-n square,
// matching the numeric environments this engine stands in for.
func shapeArgs(call *Call, first int) ([]int, error) {
	if len(call.Args) <= first {
		return nil, Errorf(IDExecution, "missing matrix dimensions")
	}
	shape := make([]int, 0, len(call.Args)-first)
	for i := first; i < len(call.Args); i++ {
		dim, err := call.Int(i)
		if err != nil {
			return nil, err
		}
		if dim < 0 {
			return nil, Errorf(IDExecution, "negative dimension %d", dim)
		}
		shape = append(shape, int(dim))
	}
	if len(shape) == 1 {
		shape = []int{shape[0], shape[0]}
	}
	return shape, nil
}

func filledMatrix(call *Call, fill float64) ([]any, error) {
	shape, err := shapeArgs(call, 0)
	if err != nil {
		return nil, err
	}
	count, err := wire.ElementCount(shape)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	values := make([]float64, count)
	for i := range values {
		if i%65536 == 0 {
			call.CheckInterrupt()
		}
		values[i] = fill
	}
	matrix, err := wire.MatrixFromFloat64s(shape, values)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{matrix}, nil
}

func builtinZeros(call *Call) ([]any, error) {
	return filledMatrix(call, 0)
}

func builtinOnes(call *Call) ([]any, error) {
	return filledMatrix(call, 1)
}

func builtinEye(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	n, err := call.Int(0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, Errorf(IDExecution, "negative dimension %d", n)
	}
	shape := []int{int(n), int(n)}
	count, err := wire.ElementCount(shape)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	values := make([]float64, count)
	for i := int64(0); i < n; i++ {
		values[i*n+i] = 1
	}
	matrix, err := wire.MatrixFromFloat64s(shape, values)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{matrix}, nil
}

func builtinLinspace(call *Call) ([]any, error) {
	if err := call.Arity(3, 3); err != nil {
		return nil, err
	}
	start, err := call.Float(0)
	if err != nil {
		return nil, err
	}
	stop, err := call.Float(1)
	if err != nil {
		return nil, err
	}
	count, err := call.Int(2)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, Errorf(IDExecution, "negative count %d", count)
	}
	values := make([]float64, count)
	for i := range values {
		if i%65536 == 0 {
			call.CheckInterrupt()
		}
		if count == 1 {
			values[i] = start
			continue
		}
		values[i] = start + (stop-start)*float64(i)/float64(count-1)
	}
	matrix, err := wire.MatrixFromFloat64s([]int{int(count)}, values)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{matrix}, nil
}

func builtinSize(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	var shape []int
	switch value := call.Args[0].(type) {
	case *wire.Matrix:
		shape = value.Shape()
	case *wire.Sparse:
		rows, cols := value.Dims()
		shape = []int{rows, cols}
	default:
		return nil, Errorf(IDExecution, "argument 1 is %s, want matrix", wire.Kind(call.Args[0]))
	}
	dims := make([]int64, len(shape))
	for i, dim := range shape {
		dims[i] = int64(dim)
	}
	matrix, err := wire.MatrixFromInt64s([]int{len(dims)}, dims)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{matrix}, nil
}

func builtinReshape(call *Call) ([]any, error) {
	matrix, err := call.Matrix(0)
	if err != nil {
		return nil, err
	}
	shape, err := shapeArgs(call, 1)
	if err != nil {
		return nil, err
	}
	reshaped, err := wire.NewMatrix(matrix.Dtype(), shape, matrix.Data())
	if err != nil {
		return nil, Errorf(IDExecution, "cannot reshape %s to %v", matrix, shape)
	}
	return []any{reshaped}, nil
}

func builtinTranspose(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	matrix, err := call.Matrix(0)
	if err != nil {
		return nil, err
	}
	shape := matrix.Shape()
	if len(shape) != 2 {
		return nil, Errorf(IDExecution, "transpose wants a 2-d matrix, got %s", matrix)
	}
	// Transposing a row-major matrix is exactly the row-to-column
	// major permutation with the dimensions swapped.
	transposed, err := wire.MatrixFromColumnMajor(
		matrix.Dtype(), []int{shape[1], shape[0]}, matrix.Data())
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{transposed}, nil
}

// numericOperand widens a scalar or matrix argument into a float64
// slice plus a shape; scalars report a nil shape and broadcast.
func numericOperand(call *Call, i int) ([]float64, []int, error) {
	switch value := call.Args[i].(type) {
	case *wire.Matrix:
		floats, err := value.Float64s()
		if err != nil {
			return nil, nil, Errorf(IDExecution, "argument %d: %v", i+1, err)
		}
		return floats, value.Shape(), nil
	case int64, uint64, float64:
		scalar, err := call.Float(i)
		if err != nil {
			return nil, nil, err
		}
		return []float64{scalar}, nil, nil
	}
	return nil, nil, Errorf(IDExecution, "argument %d is %s, want matrix or number",
		i+1, wire.Kind(call.Args[i]))
}

func elementwise(call *Call, op func(a, b float64) float64) ([]any, error) {
	if err := call.Arity(2, 2); err != nil {
		return nil, err
	}
	left, leftShape, err := numericOperand(call, 0)
	if err != nil {
		return nil, err
	}
	right, rightShape, err := numericOperand(call, 1)
	if err != nil {
		return nil, err
	}
	shape := leftShape
	if shape == nil {
		shape = rightShape
	}
	if shape == nil {
		// Two scalars: a plain number back, not a 1-element matrix.
		return []any{op(left[0], right[0])}, nil
	}
	if leftShape != nil && rightShape != nil && !sameShape(leftShape, rightShape) {
		return nil, Errorf(IDExecution, "shapes %v and %v do not match", leftShape, rightShape)
	}
	count, err := wire.ElementCount(shape)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	values := make([]float64, count)
	for i := range values {
		if i%65536 == 0 {
			call.CheckInterrupt()
		}
		a, b := left[0], right[0]
		if leftShape != nil {
			a = left[i]
		}
		if rightShape != nil {
			b = right[i]
		}
		values[i] = op(a, b)
	}
	matrix, err := wire.MatrixFromFloat64s(shape, values)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{matrix}, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func builtinAdd(call *Call) ([]any, error) {
	return elementwise(call, func(a, b float64) float64 { return a + b })
}

func builtinMultiply(call *Call) ([]any, error) {
	return elementwise(call, func(a, b float64) float64 { return a * b })
}

func builtinSum(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	matrix, err := call.Matrix(0)
	if err != nil {
		return nil, err
	}
	values, err := matrix.Float64s()
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	total := 0.0
	for i, value := range values {
		if i%65536 == 0 {
			call.CheckInterrupt()
		}
		total += value
	}
	return []any{total}, nil
}

func extremum(call *Call, better func(candidate, best float64) bool) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	matrix, err := call.Matrix(0)
	if err != nil {
		return nil, err
	}
	values, err := matrix.Float64s()
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	if len(values) == 0 {
		return nil, Errorf(IDExecution, "empty matrix has no extremum")
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if better(values[i], values[best]) {
			best = i
		}
	}
	// One-based index, the convention of the environments this engine
	// fronts.
	return []any{values[best], int64(best + 1)}, nil
}

func builtinMax(call *Call) ([]any, error) {
	return extremum(call, func(candidate, best float64) bool { return candidate > best })
}

func builtinMin(call *Call) ([]any, error) {
	return extremum(call, func(candidate, best float64) bool { return candidate < best })
}

func builtinSparse(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	matrix, err := call.Matrix(0)
	if err != nil {
		return nil, err
	}
	sparse, err := wire.SparseFromDense(matrix)
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{sparse}, nil
}

func builtinFull(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	sparse, err := call.Sparse(0)
	if err != nil {
		return nil, err
	}
	dense, err := sparse.Dense()
	if err != nil {
		return nil, Errorf(IDExecution, "%v", err)
	}
	return []any{dense}, nil
}

func builtinNNZ(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	sparse, err := call.Sparse(0)
	if err != nil {
		return nil, err
	}
	return []any{int64(sparse.NNZ())}, nil
}

func builtinWho(call *Call) ([]any, error) {
	if err := call.Arity(0, 0); err != nil {
		return nil, err
	}
	names := call.env.GlobalNames()
	sequence := make([]any, len(names))
	for i, name := range names {
		sequence[i] = name
	}
	return []any{sequence}, nil
}

func builtinClear(call *Call) ([]any, error) {
	if len(call.Args) == 0 {
		for _, name := range call.env.GlobalNames() {
			call.env.DeleteGlobal(name)
		}
		return nil, nil
	}
	for i := range call.Args {
		name, err := call.String(i)
		if err != nil {
			return nil, err
		}
		call.env.DeleteGlobal(name)
	}
	return nil, nil
}

// snapshotPath resolves a save/load path against the environment's
// snapshot directory.
func snapshotPath(env *Environment, path string) string {
	if filepath.IsAbs(path) || env.SnapshotDir == "" {
		return path
	}
	return filepath.Join(env.SnapshotDir, path)
}

func builtinSave(call *Call) ([]any, error) {
	if err := call.Arity(1, -1); err != nil {
		return nil, err
	}
	path, err := call.String(0)
	if err != nil {
		return nil, err
	}
	names := call.env.GlobalNames()
	if len(call.Args) > 1 {
		names = names[:0]
		for i := 1; i < len(call.Args); i++ {
			name, err := call.String(i)
			if err != nil {
				return nil, err
			}
			if _, ok := call.env.Global(name); !ok {
				return nil, Errorf(IDUndefinedVariable, "no variable named %q", name)
			}
			names = append(names, name)
		}
	}
	globals := make(map[string]any, len(names))
	for _, name := range names {
		value, _ := call.env.Global(name)
		if !snapshot.Snapshotable(value) {
			// Live objects and callables are meaningless in a file;
			// skip them rather than fail the whole save.
			call.env.logger().Warn("skipping unsnapshotable global", "name", name)
			continue
		}
		globals[name] = value
	}
	if err := snapshot.Write(snapshotPath(call.env, path), globals); err != nil {
		return nil, Errorf(IDExecution, "save: %v", err)
	}
	return nil, nil
}

func builtinLoad(call *Call) ([]any, error) {
	if err := call.Arity(1, 1); err != nil {
		return nil, err
	}
	path, err := call.String(0)
	if err != nil {
		return nil, err
	}
	globals, err := snapshot.Read(snapshotPath(call.env, path))
	if err != nil {
		return nil, Errorf(IDExecution, "load: %v", err)
	}
	names := make([]string, 0, len(globals))
	for name, value := range globals {
		call.env.SetGlobal(name, value)
		names = append(names, name)
	}
	sort.Strings(names)
	sequence := make([]any, len(names))
	for i, name := range names {
		sequence[i] = name
	}
	return []any{sequence}, nil
}

// Accumulator is the demonstration live object: a running float64
// total mutated through method calls and attribute writes, never
// copied to the wire.
type Accumulator struct {
	total float64
	count int64
}

// Attribute implements Object. The "add" attribute is a bound method.
func (a *Accumulator) Attribute(name string) (any, error) {
	switch name {
	case "total":
		return a.total, nil
	case "count":
		return a.count, nil
	case "add":
		return Func{Results: 1, Fn: a.add}, nil
	case "reset":
		return Func{Results: 0, Fn: a.reset}, nil
	}
	return nil, Errorf(IDExecution, "accumulator has no attribute %q", name)
}

// SetAttribute implements Object.
func (a *Accumulator) SetAttribute(name string, value any) error {
	if name != "total" {
		return Errorf(IDExecution, "accumulator attribute %q is not assignable", name)
	}
	total, ok := value.(float64)
	if !ok {
		if whole, isInt := value.(int64); isInt {
			total, ok = float64(whole), true
		}
	}
	if !ok {
		return Errorf(IDExecution, "accumulator total must be a number, got %s", wire.Kind(value))
	}
	a.total = total
	return nil
}

func (a *Accumulator) add(call *Call) ([]any, error) {
	for i := range call.Args {
		value, err := call.Float(i)
		if err != nil {
			return nil, err
		}
		a.total += value
		a.count++
	}
	return []any{a.total}, nil
}

func (a *Accumulator) reset(call *Call) ([]any, error) {
	a.total = 0
	a.count = 0
	return nil, nil
}

func builtinAccumulator(call *Call) ([]any, error) {
	if err := call.Arity(0, 1); err != nil {
		return nil, err
	}
	accumulator := &Accumulator{}
	if len(call.Args) == 1 {
		initial, err := call.Float(0)
		if err != nil {
			return nil, err
		}
		accumulator.total = initial
	}
	return []any{accumulator}, nil
}

func builtinHelp(call *Call) ([]any, error) {
	if err := call.Arity(0, 1); err != nil {
		return nil, err
	}
	if len(call.Args) == 1 {
		name, err := call.String(0)
		if err != nil {
			return nil, err
		}
		builtin, ok := call.env.Builtin(name)
		if !ok {
			return nil, Errorf(IDUndefinedFunction, "no function named %q", name)
		}
		return []any{builtin.Help}, nil
	}
	var lines []string
	for _, name := range call.env.BuiltinNames() {
		builtin, _ := call.env.Builtin(name)
		lines = append(lines, fmt.Sprintf("%-12s %s", name, builtin.Help))
	}
	return []any{strings.Join(lines, "\n")}, nil
}
