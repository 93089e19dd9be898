// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import (
	"github.com/gomlx/batchdist/pkg/core/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Mirror returns a full symmetric matrix from a square matrix d that only has the upper triangle (diagonal
// included) filled: `d + dᵀ - diag(d)`. The diagonal is not doubled.
//
// The lower triangle of d (below the diagonal) is expected to be zero: it is not checked.
// If d is not a square rank-2 tensor of a numeric dtype, it returns an error wrapping ErrShapeMismatch.
func Mirror(d *tensors.Tensor) (*tensors.Tensor, error) {
	if err := d.CheckValid(); err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "batchdist.Mirror: %v", err)
	}
	if d.Rank() != 2 || d.Shape().Dimensions[0] != d.Shape().Dimensions[1] {
		return nil, errors.Wrapf(ErrShapeMismatch, "batchdist.Mirror requires a square matrix, got shape %s", d.Shape())
	}
	if !d.DType().IsReal() && !d.DType().IsComplex() {
		return nil, errors.Wrapf(ErrShapeMismatch, "batchdist.Mirror not defined for dtype %s", d.DType())
	}
	var mirrored *tensors.Tensor
	err := exceptions.TryCatch[error](func() { mirrored = mirror(d) })
	if err != nil {
		return nil, err
	}
	return mirrored, nil
}

// mirror implements Mirror without checking its input.
func mirror(d *tensors.Tensor) *tensors.Tensor {
	withTranspose := tensors.Add(d, tensors.Transpose(d))
	return tensors.Sub(withTranspose, tensors.DiagonalMatrix(tensors.Diagonal(d)))
}
