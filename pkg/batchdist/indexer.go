// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import (
	"fmt"

	"github.com/gomlx/batchdist/pkg/core/tensors"
	"github.com/gomlx/batchdist/pkg/support/xslices"
	"github.com/gomlx/exceptions"
)

// ModeKind enumerates the ways of covering the result matrix.
type ModeKind int

const (
	// ModeFull evaluates every pair (i, j) of the cross product.
	ModeFull ModeKind = iota

	// ModeTriangular evaluates only the pairs with i <= j, for square results whose inputs are the same.
	ModeTriangular
)

// String implements fmt.Stringer.
func (k ModeKind) String() string {
	switch k {
	case ModeFull:
		return "full"
	case ModeTriangular:
		return "triangular"
	default:
		return "unknown"
	}
}

// Mode selects which index pairs are evaluated: Full, or Triangular(n) for an n×n result.
type Mode struct {
	Kind ModeKind

	// N is the number of items of both inputs, only set for ModeTriangular.
	N int
}

// Full returns the mode that evaluates the whole cross product.
func Full() Mode { return Mode{Kind: ModeFull} }

// Triangular returns the mode that evaluates only the upper triangle (diagonal included) of an n×n result.
func Triangular(n int) Mode { return Mode{Kind: ModeTriangular, N: n} }

// IsTriangular returns whether the mode only evaluates the upper triangle.
func (m Mode) IsTriangular() bool { return m.Kind == ModeTriangular }

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m.IsTriangular() {
		return fmt.Sprintf("triangular(%d)", m.N)
	}
	return m.Kind.String()
}

// DecideMode returns Triangular(n) if x1 and x2 are equal in shape (dtype and dimensions) and values, and Full
// otherwise. Different shapes return Full without looking at the values.
//
// Equality is by value, also when x1 and x2 are the same tensor: two different tensors holding the same values
// select the triangular mode, and a batch holding a NaN is never equal to itself.
//
// It panics if x1 or x2 are invalid.
func DecideMode(x1, x2 *tensors.Tensor) Mode {
	if !x1.Shape().Equal(x2.Shape()) || x1.Rank() < 1 {
		return Full()
	}
	if !x1.Equal(x2) {
		return Full()
	}
	return Triangular(x1.Shape().Dimensions[0])
}

// IndexPairs holds the pairs (Rows[k], Cols[k]) to evaluate, read in lock-step. Both slices have the same length.
type IndexPairs struct {
	Rows, Cols []int
}

// Len returns the number of pairs.
func (p IndexPairs) Len() int { return len(p.Rows) }

// Indices returns the pairs of indices to evaluate for inputs with n1 and n2 items, and whether only the upper
// triangle is covered.
//
// If sameInputs is true and n1 == n2, it returns the n(n+1)/2 pairs with i <= j (in row-major order) and true.
// Otherwise, it returns the n1*n2 pairs of the full cross product, with the row index cycling fastest, and false.
func Indices(n1, n2 int, sameInputs bool) (pairs IndexPairs, triangular bool) {
	if sameInputs && n1 == n2 {
		return UpperTriangularIndices(n1), true
	}
	return FullIndices(n1, n2), false
}

// IndicesForMode returns the pairs of indices to evaluate for the given mode.
// For the triangular mode, n1 and n2 must match the mode's N, or it panics.
func IndicesForMode(n1, n2 int, mode Mode) IndexPairs {
	if mode.IsTriangular() {
		if n1 != mode.N || n2 != mode.N {
			exceptions.Panicf("batchdist.IndicesForMode: mode %s doesn't match inputs with %d and %d items", mode, n1, n2)
		}
		return UpperTriangularIndices(mode.N)
	}
	return FullIndices(n1, n2)
}

// FullIndices returns all the n1*n2 pairs (i, j), with i in [0, n1) and j in [0, n2).
//
// The row index cycles fastest: pair k is (k % n1, k / n1). So the rows are [0, 1, ..., n1-1] tiled n2 times,
// and each column index is repeated n1 times.
func FullIndices(n1, n2 int) IndexPairs {
	return IndexPairs{
		Rows: xslices.Tile(xslices.Iota(0, n1), n2),
		Cols: xslices.RepeatInterleave(xslices.Iota(0, n2), n1),
	}
}

// UpperTriangularIndices returns the n(n+1)/2 pairs (i, j) with 0 <= i <= j < n, in row-major order.
//
// It takes the row-major grid of all pairs and keeps those in the upper triangle.
func UpperTriangularIndices(n int) IndexPairs {
	rowsGrid := xslices.RepeatInterleave(xslices.Iota(0, n), n)
	colsGrid := xslices.Tile(xslices.Iota(0, n), n)
	mask := xslices.ZipMap(rowsGrid, colsGrid, func(row, col int) bool { return col >= row })
	return IndexPairs{
		Rows: xslices.Compress(rowsGrid, mask),
		Cols: xslices.Compress(colsGrid, mask),
	}
}
