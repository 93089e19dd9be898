// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/gomlx/batchdist/pkg/core/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Evaluator computes the matrix `M[i, j] = f(x1[i], x2[j])` for a batch-vectorized operation f, with a single
// call to f per evaluation.
//
// It is immutable after New, and it is safe for concurrent use if the operation is.
type Evaluator struct {
	op          Operation
	device      tensors.Device
	dtype       dtypes.DType
	resultIndex int
}

// New creates an Evaluator for the operation op, configured by the given options.
//
// Defaults: device tensors.DefaultDevice ("cpu"), dtype dtypes.Float64 and result index 0.
// Invalid options return an error wrapping ErrInvalidConfiguration.
func New(op Operation, options ...Option) (*Evaluator, error) {
	if op == nil {
		return nil, errors.Wrap(ErrInvalidConfiguration, "nil operation")
	}
	e := &Evaluator{
		op:     op,
		device: tensors.DefaultDevice,
		dtype:  dtypes.Float64,
	}
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustNew is like New, but panics on error.
func MustNew(op Operation, options ...Option) *Evaluator {
	e, err := New(op, options...)
	if err != nil {
		panic(err)
	}
	return e
}

// Device returns the device tag given to the result matrices.
func (e *Evaluator) Device() tensors.Device { return e.device }

// DType returns the dtype of the result matrices.
func (e *Evaluator) DType() dtypes.DType { return e.dtype }

// ResultIndex returns which of the operation's results is used, for operations returning Multi results.
func (e *Evaluator) ResultIndex() int { return e.resultIndex }

// Evaluate returns the matrix of shape [n1, n2] and the configured dtype where `M[i, j] = f(x1[i], x2[j])`,
// for x1 with n1 items and x2 with n2 items (along axis 0). Both inputs must have rank >= 1, and their items
// must have the same shape (dtype included).
//
// The operation is called exactly once, with the gathered batches and params, even when there are no pairs
// to evaluate (n1 or n2 is 0), in which case it receives empty batches.
//
// If x1 and x2 hold the same values (see DecideMode), only the pairs with i <= j are evaluated and the result is
// mirrored into the lower triangle: this assumes f is symmetric.
//
// Errors returned by the operation are returned unchanged. Inputs with the wrong shapes, or an operation result
// that is not a rank-1 tensor with one value per pair, return an error wrapping ErrShapeMismatch.
// A result index out of range for a Multi result returns an error wrapping ErrInvalidConfiguration.
func (e *Evaluator) Evaluate(x1, x2 *tensors.Tensor, params Params) (*tensors.Tensor, error) {
	if err := checkInputs(x1, x2); err != nil {
		return nil, err
	}
	n1, n2 := x1.Shape().Dimensions[0], x2.Shape().Dimensions[0]
	mode := DecideMode(x1, x2)
	pairs := IndicesForMode(n1, n2, mode)
	klog.V(1).Infof("batchdist: evaluating %dx%d matrix in %s mode: %d pairs", n1, n2, mode, pairs.Len())

	var batch1, batch2 *tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		batch1 = tensors.Gather(x1, pairs.Rows)
		batch2 = tensors.Gather(x2, pairs.Cols)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "batchdist: failed to gather batches")
	}
	if klog.V(2).Enabled() {
		klog.Infof("batchdist: gathered batches %s (%s) and %s (%s)",
			batch1.Shape(), humanize.Bytes(uint64(batch1.Memory())),
			batch2.Shape(), humanize.Bytes(uint64(batch2.Memory())))
	}

	result, err := e.op.Call(batch1, batch2, params)
	if err != nil {
		return nil, err
	}
	values, err := e.resolveValues(result, pairs.Len())
	if err != nil {
		return nil, err
	}

	matrix := tensors.Zeros(e.device, e.dtype, n1, n2)
	err = exceptions.TryCatch[error](func() {
		tensors.ScatterMatrix(matrix, pairs.Rows, pairs.Cols, values)
		if mode.IsTriangular() {
			matrix = mirror(matrix)
		}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "batchdist: failed to build result matrix")
	}
	if klog.V(2).Enabled() {
		klog.Infof("batchdist: result matrix %s (%s) on %q", matrix.Shape(),
			humanize.Bytes(uint64(matrix.Memory())), matrix.Device())
	}
	return matrix, nil
}

// MustEvaluate is like Evaluate, but panics on error.
func (e *Evaluator) MustEvaluate(x1, x2 *tensors.Tensor, params Params) *tensors.Tensor {
	matrix, err := e.Evaluate(x1, x2, params)
	if err != nil {
		panic(err)
	}
	return matrix
}

// EvaluateDense is like Evaluate, but returns the result as a gonum *mat.Dense (float64), regardless of the
// configured dtype. Complex dtypes can't be converted and return an error.
//
// gonum doesn't support matrices with a zero-sized axis: if n1 or n2 is 0, an empty *mat.Dense is returned.
func (e *Evaluator) EvaluateDense(x1, x2 *tensors.Tensor, params Params) (*mat.Dense, error) {
	matrix, err := e.Evaluate(x1, x2, params)
	if err != nil {
		return nil, err
	}
	return tensors.ToDense(matrix)
}

// Looped computes the same matrix as Evaluate, but calling the operation once per pair (i, j), with batches
// of one item each, and without the triangular shortcut.
//
// It's slow, and meant as a reference to check operations and to compare against the batched evaluation.
func (e *Evaluator) Looped(x1, x2 *tensors.Tensor, params Params) (*tensors.Tensor, error) {
	if err := checkInputs(x1, x2); err != nil {
		return nil, err
	}
	n1, n2 := x1.Shape().Dimensions[0], x2.Shape().Dimensions[0]
	matrix := tensors.Zeros(e.device, e.dtype, n1, n2)
	for i := range n1 {
		for j := range n2 {
			item1 := tensors.Gather(x1, []int{i})
			item2 := tensors.Gather(x2, []int{j})
			result, err := e.op.Call(item1, item2, params)
			if err != nil {
				return nil, err
			}
			value, err := e.resolveValues(result, 1)
			if err != nil {
				return nil, err
			}
			tensors.ScatterMatrix(matrix, []int{i}, []int{j}, value)
		}
	}
	return matrix, nil
}

// resolveValues selects the tensor from the operation's result, checks it has one value per pair
// and converts it to the configured dtype.
func (e *Evaluator) resolveValues(result Result, numPairs int) (*tensors.Tensor, error) {
	values, err := result.Resolve(e.resultIndex)
	if err != nil {
		return nil, err
	}
	if err := values.CheckValid(); err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "operation returned an invalid tensor: %v", err)
	}
	if values.Rank() != 1 || values.Shape().Dimensions[0] != numPairs {
		return nil, errors.Wrapf(ErrShapeMismatch, "operation returned shape %s, expected a rank-1 tensor with %d values",
			values.Shape(), numPairs)
	}
	if values.DType() == e.dtype {
		return values, nil
	}
	converted, err := tensors.ConvertDType(values, e.dtype)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "cannot convert operation result to %s: %v", e.dtype, err)
	}
	return converted, nil
}

// checkInputs validates that x1 and x2 are batches of items of the same shape.
func checkInputs(x1, x2 *tensors.Tensor) error {
	for ii, x := range []*tensors.Tensor{x1, x2} {
		if err := x.CheckValid(); err != nil {
			return errors.Wrapf(ErrShapeMismatch, "input x%d: %v", ii+1, err)
		}
		if x.Rank() < 1 {
			return errors.Wrapf(ErrShapeMismatch, "input x%d must have rank >= 1 (a batch axis), got shape %s",
				ii+1, x.Shape())
		}
	}
	item1, item2 := x1.Shape().SubShape(1), x2.Shape().SubShape(1)
	if !item1.Equal(item2) {
		return errors.Wrapf(ErrShapeMismatch, "items of x1 %s and x2 %s must have the same shape", item1, item2)
	}
	return nil
}
