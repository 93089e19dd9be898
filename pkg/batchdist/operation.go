// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import "github.com/gomlx/batchdist/pkg/core/tensors"

// Params are extra named parameters forwarded verbatim to the Operation on every call.
type Params map[string]any

// Operation is a function vectorized over the batch axis (axis 0): given two aligned batches of k items each,
// it returns (in its Result) a rank-1 tensor with k values, where value m is f(x1[m], x2[m]).
//
// The Evaluator calls it exactly once per evaluation, possibly with k == 0.
type Operation interface {
	Call(x1, x2 *tensors.Tensor, params Params) (Result, error)
}

// OperationFn adapts a function to an Operation.
type OperationFn func(x1, x2 *tensors.Tensor, params Params) (Result, error)

// Call implements Operation.
func (fn OperationFn) Call(x1, x2 *tensors.Tensor, params Params) (Result, error) {
	return fn(x1, x2, params)
}

// SingleFn adapts a function returning one tensor to an Operation.
type SingleFn func(x1, x2 *tensors.Tensor, params Params) (*tensors.Tensor, error)

// Call implements Operation.
func (fn SingleFn) Call(x1, x2 *tensors.Tensor, params Params) (Result, error) {
	value, err := fn(x1, x2, params)
	if err != nil {
		return Result{}, err
	}
	return Single(value), nil
}
