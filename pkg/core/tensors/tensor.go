// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, a representation of a multidimensional array.
//
// Tensors are multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large dimensions), defined
// by their shape (a data type and its axes' dimensions) and their actual content, stored as a flat (1D) Go slice
// of the corresponding dtype, in row-major order.
//
// There are various ways to construct a Tensor from local data:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
//   - FromValue[S MultiDimensionSlice](value S): Generic conversion works with the scalar supported `DType`s
//     as well as with any arbitrary multidimensional slice of them. Slices of rank > 1 must be regular, that is
//     all the sub-slices must have the same shape. Example:
//
//     t := FromValue([][]float{{1,2}, {3, 5}, {7, 11}})`
//
// Each tensor carries a Device tag: it is only metadata describing where the caller intends the tensor to live;
// the data itself is always held in host memory.
//
// Besides storage, the package offers the handful of whole-tensor operations needed for batched pairwise
// evaluation: Gather (along the batch axis), ScatterMatrix, ConvertDType, Transpose, Add, Sub, Diagonal and
// DiagonalMatrix, and conversion to/from gonum's mat.Dense.
package tensors

import (
	"sync"

	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/gomlx/batchdist/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Device is a tag describing where a tensor should be materialized, e.g. "cpu" or "cuda:0".
// It is carried along with the tensor and never interpreted by this package.
type Device string

// DefaultDevice is the device used when none is given.
const DefaultDevice Device = "cpu"

// Tensor represents a multidimensional array (from scalar with 0 dimensions, to arbitrarily large dimensions), defined
// by their shape, a data type (dtypes.DType) and its axes' dimensions, and their actual content stored as a flat (1D)
// array of values.
//
// The shape is immutable; the content can be changed with MutableFlatData.
type Tensor struct {
	// shape of the tensor.
	shape shapes.Shape

	// mu protects flat. Readers share it, writers hold it exclusively.
	// The shape is immutable.
	mu sync.RWMutex

	// flat holds the array with actual data. Slice of the Go type for the dtype of the shape.
	flat any

	// device tag.
	device Device
}

// newEmptyTensor returns a Tensor object initialized only with the shape, but no actual storage.
func newEmptyTensor(shape shapes.Shape) *Tensor {
	return &Tensor{
		shape:  shape,
		device: DefaultDevice,
	}
}

// Shape of the tensor, includes DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
// It is a shortcut to `Tensor.Shape().DType`.
func (t *Tensor) DType() dtypes.DType {
	if t == nil {
		return dtypes.InvalidDType
	}
	return t.shape.DType
}

// Rank returns the rank of the tensor's shape.
// It is a shortcut to `Tensor.Shape().Rank()`.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
// It is a shortcut to `Tensor.Shape().IsScalar()`.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
// It is a shortcut to `Tensor.Shape().Size()`.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor. An alias to Tensor.Shape().Memory().
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Device returns the device tag of the tensor.
func (t *Tensor) Device() Device { return t.device }

// OnDevice sets the device tag of the tensor and returns the tensor itself, for chaining.
// No data is moved.
func (t *Tensor) OnDevice(device Device) *Tensor {
	t.device = device
	return t
}

// Ok returns whether the Tensor is in a valid state: it is not nil, and it holds data.
func (t *Tensor) Ok() bool {
	return t != nil && t.shape.Ok() && t.flat != nil
}

// CheckValid returns an error if it's nil, has no data, or if its shape is invalid.
func (t *Tensor) CheckValid() error {
	if t == nil {
		return errors.New("Tensor is nil")
	}
	if !t.shape.Ok() {
		return errors.New("Tensor shape is invalid")
	}
	if t.flat == nil {
		return errors.New("Tensor has no data")
	}
	return nil
}

// AssertValid panics if it's nil, has no data, or if its shape is invalid.
func (t *Tensor) AssertValid() {
	err := t.CheckValid()
	if err != nil {
		panic(err)
	}
}

// mustNoErr panics if err is not nil.
func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
