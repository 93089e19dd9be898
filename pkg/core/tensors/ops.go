// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/gomlx/batchdist/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"
)

// Whole-tensor operations. They panic (with exceptions.Panicf) on invalid inputs: callers are expected to
// validate shapes beforehand, so a panic here means a bug in the calling code.
//
// Pure data-movement operations (Gather, ScatterMatrix, Transpose, Diagonal, DiagonalMatrix) work on a bytes view
// of the data, so they handle every dtype with a single implementation.

// Gather returns a new tensor with the items of t (along axis 0, the batch axis) selected by indices, in order.
// Indices can repeat. The result has shape [len(indices), t.Shape().Dimensions[1:]...] and the same device as t.
//
// It's the equivalent of `t[indices]` in numpy/torch.
func Gather(t *Tensor, indices []int) *Tensor {
	t.AssertValid()
	if t.Rank() < 1 {
		exceptions.Panicf("tensors.Gather requires a tensor of rank >= 1, got shape %s", t.Shape())
	}
	numItems := t.shape.Dimensions[0]
	outShape := t.shape.Clone()
	outShape.Dimensions[0] = len(indices)
	output := FromShape(outShape).OnDevice(t.device)
	itemBytes := int(t.shape.SubShape(1).Memory())
	if len(indices) == 0 || itemBytes == 0 {
		return output
	}
	mustNoErr(t.ConstBytes(func(src []byte) {
		mustNoErr(output.MutableBytes(func(dst []byte) {
			for outIdx, srcIdx := range indices {
				if srcIdx < 0 || srcIdx >= numItems {
					exceptions.Panicf("tensors.Gather: index %d (position %d) out of range for batch of %d items",
						srcIdx, outIdx, numItems)
				}
				copy(dst[outIdx*itemBytes:(outIdx+1)*itemBytes], src[srcIdx*itemBytes:(srcIdx+1)*itemBytes])
			}
		}))
	}))
	return output
}

// ScatterMatrix writes values[k] into matrix[rows[k], cols[k]], for every k.
//
// The matrix must be of rank 2, values of rank 1 with len(rows) elements and the same dtype as the matrix.
// rows and cols must have the same length. Later writes to the same position override previous ones.
func ScatterMatrix(matrix *Tensor, rows, cols []int, values *Tensor) {
	matrix.AssertValid()
	values.AssertValid()
	if matrix.Rank() != 2 {
		exceptions.Panicf("tensors.ScatterMatrix requires a matrix of rank 2, got shape %s", matrix.Shape())
	}
	if len(rows) != len(cols) {
		exceptions.Panicf("tensors.ScatterMatrix: rows (%d) and cols (%d) must have the same length", len(rows), len(cols))
	}
	if values.Rank() != 1 || values.shape.Dimensions[0] != len(rows) {
		exceptions.Panicf("tensors.ScatterMatrix: values must be of shape [%d], got %s", len(rows), values.Shape())
	}
	if values.DType() != matrix.DType() {
		exceptions.Panicf("tensors.ScatterMatrix: values dtype %s doesn't match matrix dtype %s",
			values.DType(), matrix.DType())
	}
	if len(rows) == 0 {
		return
	}
	numRows, numCols := matrix.shape.Dimensions[0], matrix.shape.Dimensions[1]
	elemSize := matrix.DType().Size()
	mustNoErr(values.ConstBytes(func(src []byte) {
		mustNoErr(matrix.MutableBytes(func(dst []byte) {
			for k := range rows {
				row, col := rows[k], cols[k]
				if row < 0 || row >= numRows || col < 0 || col >= numCols {
					exceptions.Panicf("tensors.ScatterMatrix: position (%d, %d) out of range for matrix %s",
						row, col, matrix.Shape())
				}
				offset := (row*numCols + col) * elemSize
				copy(dst[offset:offset+elemSize], src[k*elemSize:(k+1)*elemSize])
			}
		}))
	}))
}

// assertMatrix panics if t is not a valid rank-2 tensor.
func assertMatrix(opName string, t *Tensor) (numRows, numCols int) {
	t.AssertValid()
	if t.Rank() != 2 {
		exceptions.Panicf("tensors.%s requires a tensor of rank 2, got shape %s", opName, t.Shape())
	}
	return t.shape.Dimensions[0], t.shape.Dimensions[1]
}

// Transpose returns the transposed of a rank-2 tensor: a new tensor of shape [cols, rows].
func Transpose(t *Tensor) *Tensor {
	numRows, numCols := assertMatrix("Transpose", t)
	output := Zeros(t.device, t.DType(), numCols, numRows)
	if t.shape.IsZeroSize() {
		return output
	}
	elemSize := t.DType().Size()
	rowBytes := numCols * elemSize
	mustNoErr(t.ConstBytes(func(src []byte) {
		mustNoErr(output.MutableBytes(func(dst []byte) {
			for row := range numRows {
				srcRow := src[row*rowBytes : (row+1)*rowBytes]
				for col := range numCols {
					offset := (col*numRows + row) * elemSize
					copy(dst[offset:offset+elemSize], srcRow[col*elemSize:(col+1)*elemSize])
				}
			}
		}))
	}))
	return output
}

// Diagonal returns the diagonal of a square rank-2 tensor, as a rank-1 tensor.
func Diagonal(t *Tensor) *Tensor {
	numRows, numCols := assertMatrix("Diagonal", t)
	if numRows != numCols {
		exceptions.Panicf("tensors.Diagonal requires a square matrix, got shape %s", t.Shape())
	}
	output := Zeros(t.device, t.DType(), numRows)
	if numRows == 0 {
		return output
	}
	elemSize := t.DType().Size()
	mustNoErr(t.ConstBytes(func(src []byte) {
		mustNoErr(output.MutableBytes(func(dst []byte) {
			for ii := range numRows {
				offset := (ii*numCols + ii) * elemSize
				copy(dst[ii*elemSize:(ii+1)*elemSize], src[offset:offset+elemSize])
			}
		}))
	}))
	return output
}

// DiagonalMatrix returns a square matrix with the values of the rank-1 tensor v in the diagonal,
// and zero elsewhere.
func DiagonalMatrix(v *Tensor) *Tensor {
	v.AssertValid()
	if v.Rank() != 1 {
		exceptions.Panicf("tensors.DiagonalMatrix requires a tensor of rank 1, got shape %s", v.Shape())
	}
	dim := v.shape.Dimensions[0]
	output := Zeros(v.device, v.DType(), dim, dim)
	if dim == 0 {
		return output
	}
	elemSize := v.DType().Size()
	mustNoErr(v.ConstBytes(func(src []byte) {
		mustNoErr(output.MutableBytes(func(dst []byte) {
			for ii := range dim {
				offset := (ii*dim + ii) * elemSize
				copy(dst[offset:offset+elemSize], src[ii*elemSize:(ii+1)*elemSize])
			}
		}))
	}))
	return output
}

type binaryOpType int

const (
	binaryOpAdd binaryOpType = iota
	binaryOpSub
)

var binaryOpNames = map[binaryOpType]string{
	binaryOpAdd: "Add",
	binaryOpSub: "Sub",
}

// Add returns x + y, element-wise. Both must have the same shape (dtype included).
func Add(x, y *Tensor) *Tensor {
	return execBinary(binaryOpAdd, x, y)
}

// Sub returns x - y, element-wise. Both must have the same shape (dtype included).
func Sub(x, y *Tensor) *Tensor {
	return execBinary(binaryOpSub, x, y)
}

func execBinary(op binaryOpType, x, y *Tensor) *Tensor {
	x.AssertValid()
	y.AssertValid()
	if !x.shape.Equal(y.shape) {
		exceptions.Panicf("tensors.%s requires operands of the same shape, got %s and %s",
			binaryOpNames[op], x.Shape(), y.Shape())
	}
	if x.DType() == dtypes.Bool {
		exceptions.Panicf("tensors.%s not defined for dtype %s", binaryOpNames[op], x.DType())
	}
	output := FromShape(x.shape.Clone()).OnDevice(x.device)
	if x.shape.IsZeroSize() {
		return output
	}
	constFlatDataPair(x, y, func(xFlat, yFlat any) {
		execBinaryFlat(op, xFlat, yFlat, output.flat)
	})
	return output
}

// execBinaryFlat dispatches the binary operation to the kernel of the corresponding Go type.
func execBinaryFlat(op binaryOpType, x, y, output any) {
	switch xFlat := x.(type) {
	case []float64:
		binaryKernel(op, xFlat, y.([]float64), output.([]float64))
	case []float32:
		binaryKernel(op, xFlat, y.([]float32), output.([]float32))
	case []int64:
		binaryKernel(op, xFlat, y.([]int64), output.([]int64))
	case []int32:
		binaryKernel(op, xFlat, y.([]int32), output.([]int32))
	case []int16:
		binaryKernel(op, xFlat, y.([]int16), output.([]int16))
	case []int8:
		binaryKernel(op, xFlat, y.([]int8), output.([]int8))
	case []uint64:
		binaryKernel(op, xFlat, y.([]uint64), output.([]uint64))
	case []uint32:
		binaryKernel(op, xFlat, y.([]uint32), output.([]uint32))
	case []uint16:
		binaryKernel(op, xFlat, y.([]uint16), output.([]uint16))
	case []uint8:
		binaryKernel(op, xFlat, y.([]uint8), output.([]uint8))
	case []complex64:
		binaryKernel(op, xFlat, y.([]complex64), output.([]complex64))
	case []complex128:
		binaryKernel(op, xFlat, y.([]complex128), output.([]complex128))
	case []float16.Float16:
		yFlat, outFlat := y.([]float16.Float16), output.([]float16.Float16)
		x32 := make([]float32, len(xFlat))
		y32 := make([]float32, len(yFlat))
		for ii := range xFlat {
			x32[ii], y32[ii] = xFlat[ii].Float32(), yFlat[ii].Float32()
		}
		binaryKernel(op, x32, y32, x32)
		for ii, v := range x32 {
			outFlat[ii] = float16.Fromfloat32(v)
		}
	case []bfloat16.BFloat16:
		yFlat, outFlat := y.([]bfloat16.BFloat16), output.([]bfloat16.BFloat16)
		x32 := make([]float32, len(xFlat))
		y32 := make([]float32, len(yFlat))
		for ii := range xFlat {
			x32[ii], y32[ii] = xFlat[ii].Float32(), yFlat[ii].Float32()
		}
		binaryKernel(op, x32, y32, x32)
		for ii, v := range x32 {
			outFlat[ii] = bfloat16.FromFloat32(v)
		}
	default:
		exceptions.Panicf("tensors: binary operation not supported for data of type %T", x)
	}
}

func binaryKernel[T dtypes.Number](op binaryOpType, x, y, output []T) {
	switch op {
	case binaryOpAdd:
		for ii := range output {
			output[ii] = x[ii] + y[ii]
		}
	case binaryOpSub:
		for ii := range output {
			output[ii] = x[ii] - y[ii]
		}
	}
}

// flatEqual compares two flat slices of the same Go type for exact equality.
func flatEqual(x, y any) bool {
	switch xFlat := x.(type) {
	case []float64:
		return slices.Equal(xFlat, y.([]float64))
	case []float32:
		return slices.Equal(xFlat, y.([]float32))
	case []int64:
		return slices.Equal(xFlat, y.([]int64))
	case []int32:
		return slices.Equal(xFlat, y.([]int32))
	case []int16:
		return slices.Equal(xFlat, y.([]int16))
	case []int8:
		return slices.Equal(xFlat, y.([]int8))
	case []uint64:
		return slices.Equal(xFlat, y.([]uint64))
	case []uint32:
		return slices.Equal(xFlat, y.([]uint32))
	case []uint16:
		return slices.Equal(xFlat, y.([]uint16))
	case []uint8:
		return slices.Equal(xFlat, y.([]uint8))
	case []bool:
		return slices.Equal(xFlat, y.([]bool))
	case []complex64:
		return slices.Equal(xFlat, y.([]complex64))
	case []complex128:
		return slices.Equal(xFlat, y.([]complex128))
	case []float16.Float16:
		yFlat := y.([]float16.Float16)
		return slices.EqualFunc(xFlat, yFlat, func(a, b float16.Float16) bool { return a.Float32() == b.Float32() })
	case []bfloat16.BFloat16:
		yFlat := y.([]bfloat16.BFloat16)
		return slices.EqualFunc(xFlat, yFlat, func(a, b bfloat16.BFloat16) bool { return a.Float32() == b.Float32() })
	default:
		exceptions.Panicf("tensors: equality not supported for data of type %T", x)
		return false
	}
}
