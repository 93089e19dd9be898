// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/gomlx/batchdist/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ConvertDType returns a new tensor with the values of t converted to dtype, with the same shape and device.
// If t already has the requested dtype, it returns a clone.
//
// Conversions between real dtypes (integers and floats) follow Go's conversion rules and go through float64,
// so integers beyond 2^53 may lose precision. Bool converts to/from 0 and 1 (any non-zero value is true).
// Real values convert to complex with zero imaginary part; complex values can only be converted to other
// complex dtypes -- dropping the imaginary part silently is reported as an error.
func ConvertDType(t *Tensor, dtype dtypes.DType) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	if !dtype.IsSupported() {
		return nil, errors.Errorf("tensors.ConvertDType: unsupported target dtype %s", dtype)
	}
	if t.DType() == dtype {
		return t.LocalClone()
	}
	output := FromShape(t.shape.WithDType(dtype)).OnDevice(t.device)
	var convErr error
	err := t.ConstFlatData(func(flat any) {
		if t.DType().IsComplex() {
			if !dtype.IsComplex() {
				convErr = errors.Errorf("tensors.ConvertDType: cannot convert complex dtype %s to non-complex dtype %s",
					t.DType(), dtype)
				return
			}
			fromComplex128(complexToComplex128(flat), output.flat)
			return
		}
		values := realToFloat64(flat)
		if dtype.IsComplex() {
			asComplex := make([]complex128, len(values))
			for ii, v := range values {
				asComplex[ii] = complex(v, 0)
			}
			fromComplex128(asComplex, output.flat)
			return
		}
		fromFloat64(values, output.flat)
	})
	if err != nil {
		return nil, err
	}
	if convErr != nil {
		return nil, convErr
	}
	return output, nil
}

func toFloat64Generic[T dtypes.NumberNotComplex](flat []T) []float64 {
	out := make([]float64, len(flat))
	for ii, v := range flat {
		out[ii] = float64(v)
	}
	return out
}

func fromFloat64Generic[T dtypes.NumberNotComplex](values []float64, output []T) {
	for ii, v := range values {
		output[ii] = T(v)
	}
}

// realToFloat64 converts a flat slice of any non-complex dtype (bool included) to float64.
func realToFloat64(flat any) []float64 {
	switch f := flat.(type) {
	case []float64:
		return toFloat64Generic(f)
	case []float32:
		return toFloat64Generic(f)
	case []int64:
		return toFloat64Generic(f)
	case []int32:
		return toFloat64Generic(f)
	case []int16:
		return toFloat64Generic(f)
	case []int8:
		return toFloat64Generic(f)
	case []uint64:
		return toFloat64Generic(f)
	case []uint32:
		return toFloat64Generic(f)
	case []uint16:
		return toFloat64Generic(f)
	case []uint8:
		return toFloat64Generic(f)
	case []float16.Float16:
		out := make([]float64, len(f))
		for ii, v := range f {
			out[ii] = float64(v.Float32())
		}
		return out
	case []bfloat16.BFloat16:
		out := make([]float64, len(f))
		for ii, v := range f {
			out[ii] = v.Float64()
		}
		return out
	case []bool:
		out := make([]float64, len(f))
		for ii, v := range f {
			if v {
				out[ii] = 1
			}
		}
		return out
	default:
		panicf("tensors: cannot convert data of type %T to float64", flat)
		return nil
	}
}

// fromFloat64 writes values into output, a flat slice of any non-complex dtype (bool included).
func fromFloat64(values []float64, output any) {
	switch f := output.(type) {
	case []float64:
		copy(f, values)
	case []float32:
		fromFloat64Generic(values, f)
	case []int64:
		fromFloat64Generic(values, f)
	case []int32:
		fromFloat64Generic(values, f)
	case []int16:
		fromFloat64Generic(values, f)
	case []int8:
		fromFloat64Generic(values, f)
	case []uint64:
		fromFloat64Generic(values, f)
	case []uint32:
		fromFloat64Generic(values, f)
	case []uint16:
		fromFloat64Generic(values, f)
	case []uint8:
		fromFloat64Generic(values, f)
	case []float16.Float16:
		for ii, v := range values {
			f[ii] = float16.Fromfloat32(float32(v))
		}
	case []bfloat16.BFloat16:
		for ii, v := range values {
			f[ii] = bfloat16.FromFloat64(v)
		}
	case []bool:
		for ii, v := range values {
			f[ii] = v != 0
		}
	default:
		panicf("tensors: cannot convert float64 to data of type %T", output)
	}
}

func complexToComplex128(flat any) []complex128 {
	switch f := flat.(type) {
	case []complex128:
		return f
	case []complex64:
		out := make([]complex128, len(f))
		for ii, v := range f {
			out[ii] = complex128(v)
		}
		return out
	default:
		panicf("tensors: data of type %T is not complex", flat)
		return nil
	}
}

func fromComplex128(values []complex128, output any) {
	switch f := output.(type) {
	case []complex128:
		copy(f, values)
	case []complex64:
		for ii, v := range values {
			f[ii] = complex64(v)
		}
	default:
		panicf("tensors: output of type %T is not complex", output)
	}
}

// panicf panics with an error built with the formatted description.
func panicf(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}
