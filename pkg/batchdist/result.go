// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import (
	"github.com/gomlx/batchdist/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Result is what an Operation returns: either a Single tensor, or Multi tensors from which the Evaluator
// selects one with its configured result index.
type Result struct {
	values []*tensors.Tensor
	multi  bool
}

// Single creates a Result with one tensor. The Evaluator's result index is ignored for single results.
func Single(value *tensors.Tensor) Result {
	return Result{values: []*tensors.Tensor{value}}
}

// Multi creates a Result with several tensors, e.g.: the distance and the transport plan of a solver.
// The Evaluator uses the one at its result index.
func Multi(values ...*tensors.Tensor) Result {
	return Result{values: values, multi: true}
}

// IsMulti returns whether the result was created with Multi.
func (r Result) IsMulti() bool { return r.multi }

// Len returns the number of tensors in the result.
func (r Result) Len() int { return len(r.values) }

// Resolve returns the tensor selected by index.
//
// For a Single result the index is ignored. For a Multi result an index out of range returns an
// error wrapping ErrInvalidConfiguration. A zero Result (created with neither Single nor Multi) returns an
// error wrapping ErrShapeMismatch.
func (r Result) Resolve(index int) (*tensors.Tensor, error) {
	if !r.multi {
		if len(r.values) == 0 {
			return nil, errors.Wrap(ErrShapeMismatch, "operation returned an empty Result")
		}
		return r.values[0], nil
	}
	if index < 0 || index >= len(r.values) {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "result index %d out of range for operation with %d results",
			index, len(r.values))
	}
	return r.values[index], nil
}
