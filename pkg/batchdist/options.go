// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import (
	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/gomlx/batchdist/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Option configures an Evaluator. See New.
type Option func(e *Evaluator) error

// WithDevice sets the device tag of the result matrix. Default is tensors.DefaultDevice ("cpu").
func WithDevice(device tensors.Device) Option {
	return func(e *Evaluator) error {
		if device == "" {
			return errors.Wrap(ErrInvalidConfiguration, "empty device")
		}
		e.device = device
		return nil
	}
}

// WithDType sets the dtype of the result matrix. The values returned by the operation are converted to it.
// Default is dtypes.Float64.
//
// Only numeric dtypes are accepted.
func WithDType(dtype dtypes.DType) Option {
	return func(e *Evaluator) error {
		if !dtype.IsReal() && !dtype.IsComplex() {
			return errors.Wrapf(ErrInvalidConfiguration, "dtype %s not supported for result matrices", dtype)
		}
		e.dtype = dtype
		return nil
	}
}

// WithDTypeName is like WithDType, but takes the name of the dtype, e.g. "float32" or "F32".
// See dtypes.MapOfNames for the accepted names.
func WithDTypeName(name string) Option {
	return func(e *Evaluator) error {
		dtype, err := dtypes.FromName(name)
		if err != nil {
			return errors.Wrap(ErrInvalidConfiguration, err.Error())
		}
		return WithDType(dtype)(e)
	}
}

// WithResultIndex selects which of the operation's results to use, when it returns a Multi result.
// Default is 0.
func WithResultIndex(index int) Option {
	return func(e *Evaluator) error {
		if index < 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "negative result index %d", index)
		}
		e.resultIndex = index
		return nil
	}
}
