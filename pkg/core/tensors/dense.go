// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ToDense converts a rank-2 tensor to a gonum *mat.Dense, converting the values to float64 if needed.
// The returned matrix holds a copy of the data.
//
// gonum can't represent matrices with a zero-sized axis, so for those an empty (zero value) *mat.Dense is
// returned, for which IsEmpty() is true.
func ToDense(t *Tensor) (*mat.Dense, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	if t.Rank() != 2 {
		return nil, errors.Errorf("tensors.ToDense requires a tensor of rank 2, got shape %s", t.Shape())
	}
	if t.shape.IsZeroSize() {
		return &mat.Dense{}, nil
	}
	asFloat64 := t
	if t.DType() != dtypes.Float64 {
		var err error
		asFloat64, err = ConvertDType(t, dtypes.Float64)
		if err != nil {
			return nil, errors.WithMessage(err, "tensors.ToDense")
		}
	}
	return mat.NewDense(t.shape.Dimensions[0], t.shape.Dimensions[1], CopyFlatData[float64](asFloat64)), nil
}

