// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/batchdist/pkg/core/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())

	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, -1) })
}

func TestZeroSize(t *testing.T) {
	shape := Make(dtypes.Float64, 0, 5)
	require.True(t, shape.Ok())
	require.True(t, shape.IsZeroSize())
	require.Equal(t, 0, shape.Size())
	require.Equal(t, []int{0, 0}, shape.Strides())
}

func TestEqual(t *testing.T) {
	s0 := Make(dtypes.Float32, 4, 3)
	require.True(t, s0.Equal(Make(dtypes.Float32, 4, 3)))
	require.False(t, s0.Equal(Make(dtypes.Float64, 4, 3)))
	require.True(t, s0.EqualDimensions(Make(dtypes.Float64, 4, 3)))
	require.False(t, s0.EqualDimensions(Make(dtypes.Float32, 4, 3, 1)))
	require.True(t, Make(dtypes.Int8).Equal(Make(dtypes.Int8)))
}

func TestSubShape(t *testing.T) {
	batch := Make(dtypes.Float32, 10, 4, 3)
	require.True(t, batch.SubShape(1).Equal(Make(dtypes.Float32, 4, 3)))
	require.True(t, batch.SubShape(3).IsScalar())
	require.Panics(t, func() { _ = batch.SubShape(4) })
	require.Equal(t, dtypes.Int64, batch.WithDType(dtypes.Int64).DType)
	require.Equal(t, dtypes.Float32, batch.DType)
}

func TestStrides(t *testing.T) {
	require.Equal(t, []int{3, 1}, Make(dtypes.Float32, 2, 3).Strides())
	require.Equal(t, []int{12, 4, 1}, Make(dtypes.Float32, 5, 3, 4).Strides())
	require.Empty(t, Make(dtypes.Float64).Strides())
}
