// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package batchdist computes pairwise result matrices `M[i, j] = f(x1[i], x2[j])` from an operation f that is
// already vectorized over a batch axis, calling f exactly once per evaluation.
//
// An Evaluator builds the index pairs covering the full cross product of the two input batches (or only the
// upper triangle, if both inputs hold the same values), gathers the inputs aligned to those pairs, calls the
// operation once on the two flat batches, and scatters the flat result back into an n1×n2 matrix. When only the
// upper triangle was computed, it is mirrored into the lower triangle with Mirror.
//
// Example:
//
//	sumOfSquares := batchdist.SingleFn(func(x1, x2 *tensors.Tensor, _ batchdist.Params) (*tensors.Tensor, error) {
//		... // return a rank-1 tensor with one value per item of the batches.
//	})
//	e := batchdist.MustNew(sumOfSquares, batchdist.WithDType(dtypes.Float32))
//	m, err := e.Evaluate(x1, x2, nil)  // m.Shape() is (Float32)[n1 n2]
//
// Notice the triangular shortcut assumes f is symmetric, f(a, b) == f(b, a): it is taken whenever x1 and x2
// are equal in shape and values, even if they are different tensors.
package batchdist
