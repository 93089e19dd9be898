// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/gomlx/batchdist/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// itemSums returns the sum of the values of each item (along axis 0) of a Float64 batch.
func itemSums(x *tensors.Tensor) []float64 {
	numItems := x.Shape().Dimensions[0]
	itemSize := x.Shape().SubShape(1).Size()
	sums := make([]float64, numItems)
	tensors.MustConstFlatData(x, func(flat []float64) {
		for item := range numItems {
			for _, v := range flat[item*itemSize : (item+1)*itemSize] {
				sums[item] += v
			}
		}
	})
	return sums
}

// countingOp wraps a batch-vectorized function and counts how many times it's called.
type countingOp struct {
	calls   atomic.Int32
	fn      func(sums1, sums2 []float64) []float64
	lastLen atomic.Int32
}

func (op *countingOp) Call(x1, x2 *tensors.Tensor, _ Params) (Result, error) {
	op.calls.Add(1)
	sums1, sums2 := itemSums(x1), itemSums(x2)
	op.lastLen.Store(int32(len(sums1)))
	return Single(tensors.FromFlatDataAndDimensions(op.fn(sums1, sums2), len(sums1))), nil
}

// newSumOp returns the symmetric operation f(a, b) = sum(a) + sum(b).
func newSumOp() *countingOp {
	return &countingOp{fn: func(sums1, sums2 []float64) []float64 {
		out := make([]float64, len(sums1))
		for ii := range out {
			out[ii] = sums1[ii] + sums2[ii]
		}
		return out
	}}
}

// newAsymmetricOp returns f(a, b) = sum(a) - 2*sum(b).
func newAsymmetricOp() *countingOp {
	return &countingOp{fn: func(sums1, sums2 []float64) []float64 {
		out := make([]float64, len(sums1))
		for ii := range out {
			out[ii] = sums1[ii] - 2*sums2[ii]
		}
		return out
	}}
}

func randomBatch(rng *rand.Rand, dimensions ...int) *tensors.Tensor {
	x := tensors.Zeros(tensors.DefaultDevice, dtypes.Float64, dimensions...)
	tensors.MustMutableFlatData(x, func(flat []float64) {
		for ii := range flat {
			flat[ii] = rng.NormFloat64()
		}
	})
	return x
}

// bruteForce computes the matrix with a double loop over the item sums.
func bruteForce(fn func(sums1, sums2 []float64) []float64, x1, x2 *tensors.Tensor) *mat.Dense {
	sums1, sums2 := itemSums(x1), itemSums(x2)
	m := mat.NewDense(len(sums1), len(sums2), nil)
	for i, s1 := range sums1 {
		for j, s2 := range sums2 {
			m.Set(i, j, fn([]float64{s1}, []float64{s2})[0])
		}
	}
	return m
}

func TestNew(t *testing.T) {
	op := newSumOp()
	e := must.M1(New(op))
	assert.Equal(t, tensors.DefaultDevice, e.Device())
	assert.Equal(t, dtypes.Float64, e.DType())
	assert.Equal(t, 0, e.ResultIndex())

	e = must.M1(New(op, WithDevice("cuda:1"), WithDTypeName("float32"), WithResultIndex(2)))
	assert.Equal(t, tensors.Device("cuda:1"), e.Device())
	assert.Equal(t, dtypes.Float32, e.DType())
	assert.Equal(t, 2, e.ResultIndex())

	for name, option := range map[string]Option{
		"empty_device":       WithDevice(""),
		"bool_dtype":         WithDType(dtypes.Bool),
		"invalid_dtype":      WithDType(dtypes.InvalidDType),
		"unknown_dtype_name": WithDTypeName("float128"),
		"negative_index":     WithResultIndex(-1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(op, option)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}

	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	require.Panics(t, func() { _ = MustNew(nil) })
}

func TestEvaluateSameInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	x := randomBatch(rng, 10, 4, 3)
	op := newSumOp()
	e := MustNew(op)

	got, err := e.Evaluate(x, x, nil)
	require.NoError(t, err)
	require.Equal(t, []int{10, 10}, got.Shape().Dimensions)
	require.Equal(t, dtypes.Float64, got.DType())
	assert.Equal(t, int32(1), op.calls.Load(), "operation must be called exactly once")
	assert.Equal(t, int32(55), op.lastLen.Load(), "only the upper triangle is evaluated")

	dense := must.M1(tensors.ToDense(got))
	assert.True(t, mat.EqualApprox(bruteForce(op.fn, x, x), dense, 1e-12))

	// Symmetric, with the diagonal not doubled.
	sums := itemSums(x)
	for i := range 10 {
		assert.InDelta(t, 2*sums[i], dense.At(i, i), 1e-12)
		for j := range 10 {
			assert.Equal(t, dense.At(i, j), dense.At(j, i))
		}
	}

	// A different tensor with the same values takes the same path.
	clone := must.M1(x.LocalClone())
	got2 := e.MustEvaluate(x, clone, nil)
	assert.Equal(t, int32(2), op.calls.Load())
	assert.Equal(t, int32(55), op.lastLen.Load())
	assert.True(t, got.Equal(got2))
}

func TestEvaluateDifferentInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	x1 := randomBatch(rng, 10, 4, 3)
	x2 := randomBatch(rng, 8, 4, 3)
	op := newAsymmetricOp()
	e := MustNew(op)

	got := e.MustEvaluate(x1, x2, nil)
	require.Equal(t, []int{10, 8}, got.Shape().Dimensions)
	assert.Equal(t, int32(1), op.calls.Load())
	assert.Equal(t, int32(80), op.lastLen.Load())
	assert.True(t, mat.EqualApprox(bruteForce(op.fn, x1, x2), must.M1(tensors.ToDense(got)), 1e-12))

	// Same number of items, but different values: full cross product, so the asymmetric op is computed right.
	x3 := randomBatch(rng, 10, 4, 3)
	got = e.MustEvaluate(x1, x3, nil)
	assert.Equal(t, int32(100), op.lastLen.Load())
	assert.True(t, mat.EqualApprox(bruteForce(op.fn, x1, x3), must.M1(tensors.ToDense(got)), 1e-12))

	// Compare with the looped evaluation.
	looped := must.M1(e.Looped(x1, x3, nil))
	assert.True(t, got.InDelta(looped, 1e-12))
	assert.Equal(t, int32(2+100), op.calls.Load())
}

func TestEvaluateEmpty(t *testing.T) {
	for _, dims := range [][2]int{{0, 0}, {0, 5}, {5, 0}} {
		n1, n2 := dims[0], dims[1]
		t.Run(fmt.Sprintf("%dx%d", n1, n2), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(7, 7))
			x1, x2 := randomBatch(rng, n1, 4, 3), randomBatch(rng, n2, 4, 3)
			var gotShapes []string
			op := OperationFn(func(b1, b2 *tensors.Tensor, _ Params) (Result, error) {
				gotShapes = append(gotShapes, b1.Shape().String(), b2.Shape().String())
				return Single(tensors.Zeros(tensors.DefaultDevice, dtypes.Float32, 0)), nil
			})
			got, err := MustNew(op).Evaluate(x1, x2, nil)
			require.NoError(t, err)
			assert.Equal(t, []int{n1, n2}, got.Shape().Dimensions)
			assert.Equal(t, dtypes.Float64, got.DType())
			assert.Equal(t, []string{"(Float64)[0 4 3]", "(Float64)[0 4 3]"}, gotShapes,
				"operation must be called once, with empty batches")
		})
	}

	dense, err := MustNew(newSumOp()).EvaluateDense(
		tensors.Zeros(tensors.DefaultDevice, dtypes.Float64, 0, 2),
		tensors.Zeros(tensors.DefaultDevice, dtypes.Float64, 0, 2), nil)
	require.NoError(t, err)
	assert.True(t, dense.IsEmpty())
}

func TestEvaluateRank1Inputs(t *testing.T) {
	// Items are scalars.
	x1 := tensors.FromValue([]float64{1, 2, 3})
	x2 := tensors.FromValue([]float64{10, 20})
	got := MustNew(newAsymmetricOp()).MustEvaluate(x1, x2, nil)
	assert.Equal(t, [][]float64{{-19, -39}, {-18, -38}, {-17, -37}}, got.Value())

	got = MustNew(newSumOp()).MustEvaluate(x1, x1, nil)
	assert.Equal(t, [][]float64{{2, 3, 4}, {3, 4, 5}, {4, 5, 6}}, got.Value())
}

func TestEvaluateErrors(t *testing.T) {
	x1 := tensors.FromValue([][]float64{{1, 2}, {3, 4}})
	x2 := tensors.FromValue([][]float64{{5, 6}, {7, 8}, {9, 10}})

	t.Run("operation_error_unchanged", func(t *testing.T) {
		opErr := fmt.Errorf("solver did not converge")
		op := OperationFn(func(_, _ *tensors.Tensor, _ Params) (Result, error) { return Result{}, opErr })
		_, err := MustNew(op).Evaluate(x1, x2, nil)
		require.True(t, err == opErr, "operation errors must be returned unchanged, got %v", err)
		_, err = MustNew(op).Looped(x1, x2, nil)
		require.True(t, err == opErr)
	})

	resultOp := func(result Result) Operation {
		return OperationFn(func(_, _ *tensors.Tensor, _ Params) (Result, error) { return result, nil })
	}
	for name, op := range map[string]Operation{
		"wrong_length": resultOp(Single(tensors.FromValue([]float64{1, 2, 3}))),
		"wrong_rank":   resultOp(Single(tensors.FromValue([][]float64{{1, 2, 3}, {4, 5, 6}}))),
		"scalar":       resultOp(Single(tensors.FromScalar(1.0))),
		"nil_tensor":   resultOp(Single(nil)),
		"empty_result": resultOp(Result{}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MustNew(op).Evaluate(x1, x2, nil)
			require.ErrorIs(t, err, ErrShapeMismatch)
		})
	}

	t.Run("result_index_out_of_range", func(t *testing.T) {
		six := tensors.FromValue([]float64{1, 2, 3, 4, 5, 6})
		_, err := MustNew(resultOp(Multi(six, six)), WithResultIndex(2)).Evaluate(x1, x2, nil)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("complex_result_to_real", func(t *testing.T) {
		_, err := MustNew(resultOp(Single(tensors.FromValue([]complex128{1, 2, 3, 4, 5, 6})))).Evaluate(x1, x2, nil)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	op := newSumOp()
	e := MustNew(op)
	for name, inputs := range map[string][2]*tensors.Tensor{
		"nil_input":       {nil, x2},
		"scalar_input":    {x1, tensors.FromScalar(1.0)},
		"item_dimensions": {x1, tensors.FromValue([][]float64{{1, 2, 3}})},
		"item_dtype":      {x1, tensors.FromValue([][]float32{{1, 2}})},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.Evaluate(inputs[0], inputs[1], nil)
			require.ErrorIs(t, err, ErrShapeMismatch)
			_, err = e.Looped(inputs[0], inputs[1], nil)
			require.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
	assert.Equal(t, int32(0), op.calls.Load(), "invalid inputs must not reach the operation")
	require.Panics(t, func() { _ = e.MustEvaluate(nil, x2, nil) })
}

func TestEvaluateMultiResult(t *testing.T) {
	x1 := tensors.FromValue([]float64{1, 2})
	x2 := tensors.FromValue([]float64{10, 20, 30})
	// Returns (a+b, a*b) for each pair.
	op := OperationFn(func(b1, b2 *tensors.Tensor, _ Params) (Result, error) {
		a, b := tensors.CopyFlatData[float64](b1), tensors.CopyFlatData[float64](b2)
		sums, products := make([]float64, len(a)), make([]float64, len(a))
		for ii := range a {
			sums[ii], products[ii] = a[ii]+b[ii], a[ii]*b[ii]
		}
		return Multi(tensors.FromValue(sums), tensors.FromValue(products)), nil
	})

	got := MustNew(op).MustEvaluate(x1, x2, nil)
	assert.Equal(t, [][]float64{{11, 21, 31}, {12, 22, 32}}, got.Value())

	got = MustNew(op, WithResultIndex(1)).MustEvaluate(x1, x2, nil)
	assert.Equal(t, [][]float64{{10, 20, 30}, {20, 40, 60}}, got.Value())
}

func TestEvaluateParams(t *testing.T) {
	x := tensors.FromValue([]float64{1, 2, 3})
	op := SingleFn(func(b1, b2 *tensors.Tensor, params Params) (*tensors.Tensor, error) {
		scale, ok := params["scale"].(float64)
		if !ok {
			return nil, errors.New("missing scale parameter")
		}
		a, b := tensors.CopyFlatData[float64](b1), tensors.CopyFlatData[float64](b2)
		out := make([]float64, len(a))
		for ii := range a {
			out[ii] = scale * (a[ii] + b[ii])
		}
		return tensors.FromFlatDataAndDimensions(out, len(out)), nil
	})
	e := MustNew(op)
	got := e.MustEvaluate(x, x, Params{"scale": 10.0})
	assert.Equal(t, [][]float64{{20, 30, 40}, {30, 40, 50}, {40, 50, 60}}, got.Value())

	_, err := e.Evaluate(x, x, nil)
	require.EqualError(t, err, "missing scale parameter")
}

func TestEvaluateDTypeAndDevice(t *testing.T) {
	x1 := tensors.FromValue([][]float64{{1, 1}, {2, 2}})
	x2 := tensors.FromValue([][]float64{{3, 3}})

	got := MustNew(newSumOp(), WithDType(dtypes.Float32), WithDevice("cuda:0")).MustEvaluate(x1, x2, nil)
	assert.Equal(t, dtypes.Float32, got.DType())
	assert.Equal(t, tensors.Device("cuda:0"), got.Device())
	assert.Equal(t, [][]float32{{8}, {10}}, got.Value())

	got = MustNew(newSumOp(), WithDType(dtypes.Int32)).MustEvaluate(x1, x1, nil)
	assert.Equal(t, [][]int32{{4, 6}, {6, 8}}, got.Value())

	got = MustNew(newSumOp(), WithDType(dtypes.Complex64)).MustEvaluate(x1, x1, nil)
	assert.Equal(t, [][]complex64{{4, 6}, {6, 8}}, got.Value())

	dense := must.M1(MustNew(newSumOp(), WithDType(dtypes.Float16)).EvaluateDense(x1, x1, nil))
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{4, 6, 6, 8}), dense))
}

func TestEvaluateConcurrent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	// Same shapes, so every evaluation compares the values of both batches.
	x1 := randomBatch(rng, 6, 3)
	x2 := randomBatch(rng, 6, 3)
	x1Clone := must.M1(x1.LocalClone())
	op := newSumOp()
	e := MustNew(op)
	inputs := [][2]*tensors.Tensor{{x1, x2}, {x2, x1}, {x1, x1Clone}, {x1Clone, x1}}
	wants := make([]*mat.Dense, len(inputs))
	for ii, pair := range inputs {
		wants[ii] = bruteForce(op.fn, pair[0], pair[1])
	}

	const numWorkers = 8
	const numRepeats = 20
	var wg sync.WaitGroup
	errs := make([]error, numWorkers*numRepeats)
	results := make([]*tensors.Tensor, numWorkers*numRepeats)
	for worker := range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repeat := range numRepeats {
				pair := inputs[(worker+repeat)%len(inputs)]
				idx := worker*numRepeats + repeat
				results[idx], errs[idx] = e.Evaluate(pair[0], pair[1], nil)
			}
		}()
	}
	wg.Wait()
	for worker := range numWorkers {
		for repeat := range numRepeats {
			idx := worker*numRepeats + repeat
			require.NoError(t, errs[idx])
			want := wants[(worker+repeat)%len(inputs)]
			assert.True(t, mat.EqualApprox(want, must.M1(tensors.ToDense(results[idx])), 1e-12),
				"worker %d, repeat %d", worker, repeat)
		}
	}
	assert.Equal(t, int32(numWorkers*numRepeats), op.calls.Load())
}

func TestEvaluateNaN(t *testing.T) {
	// NaN is not equal to itself, so a batch with NaNs never takes the triangular path, not even when
	// given as both inputs.
	x := tensors.FromValue([][]float64{{1}, {2}, {math.NaN()}})
	op := newAsymmetricOp()
	e := MustNew(op)
	batched := must.M1(tensors.ToDense(e.MustEvaluate(x, x, nil)))
	assert.Equal(t, int32(9), op.lastLen.Load(), "all pairs are evaluated")
	looped := must.M1(tensors.ToDense(must.M1(e.Looped(x, x, nil))))

	assert.Equal(t, 0.0, batched.At(1, 0))
	assert.Equal(t, -3.0, batched.At(0, 1))
	for i := range 3 {
		for j := range 3 {
			if i == 2 || j == 2 {
				assert.True(t, math.IsNaN(batched.At(i, j)), "M[%d][%d]=%g", i, j, batched.At(i, j))
				continue
			}
			assert.Equal(t, looped.At(i, j), batched.At(i, j), "M[%d][%d]", i, j)
		}
	}

	// Same result as with a copy of the batch.
	clone := must.M1(x.LocalClone())
	fromClone := must.M1(tensors.ToDense(e.MustEvaluate(x, clone, nil)))
	assert.Equal(t, 0.0, fromClone.At(1, 0))
	assert.Equal(t, -3.0, fromClone.At(0, 1))
}

func benchmarkInputs(n int) (*tensors.Tensor, *tensors.Tensor) {
	rng := rand.New(rand.NewPCG(0, 0))
	return randomBatch(rng, n, 4, 3), randomBatch(rng, n, 4, 3)
}

func BenchmarkEvaluate(b *testing.B) {
	for _, n := range []int{10, 100} {
		x1, x2 := benchmarkInputs(n)
		e := MustNew(newSumOp())
		b.Run(fmt.Sprintf("batched/n=%d", n), func(b *testing.B) {
			for b.Loop() {
				_ = e.MustEvaluate(x1, x2, nil)
			}
		})
		b.Run(fmt.Sprintf("batched_same/n=%d", n), func(b *testing.B) {
			for b.Loop() {
				_ = e.MustEvaluate(x1, x1, nil)
			}
		})
		b.Run(fmt.Sprintf("looped/n=%d", n), func(b *testing.B) {
			for b.Loop() {
				_ = must.M1(e.Looped(x1, x2, nil))
			}
		})
	}
}
