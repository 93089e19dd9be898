// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
//
// Besides small generic helpers, it holds the "vectorized" index builders used to construct index
// pairs without nested loops: Iota, Tile, RepeatInterleave and Compress, modeled after the
// numpy/torch functions of the same names.
package xslices

import (
	"math"
	"math/cmplx"
	"reflect"

	"golang.org/x/exp/constraints"
)

// FillSlice fills the slice with the given value.
func FillSlice[T any](slice []T, value T) {
	// Apparently, the fastest way is by using copy.
	if len(slice) == 0 {
		return
	}
	slice[0] = value
	filled := 1
	for ; filled < len(slice); filled *= 2 {
		copy(slice[filled:], slice[:filled])
	}
}

// Iota returns a slice of incremental int values, starting with start and of length len.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T interface {
	constraints.Integer | constraints.Float
}](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Tile returns the slice repeated `times` times, one copy after the other.
// Eg: Tile([]int{0, 1, 2}, 2) -> []int{0, 1, 2, 0, 1, 2}
//
// It is the equivalent of torch's `Tensor.repeat` for 1D tensors.
func Tile[T any](slice []T, times int) []T {
	if times <= 0 || len(slice) == 0 {
		return []T{}
	}
	out := make([]T, len(slice)*times)
	copy(out, slice)
	for filled := len(slice); filled < len(out); filled *= 2 {
		copy(out[filled:], out[:filled])
	}
	return out
}

// RepeatInterleave returns a slice where each element is repeated `repeats` times consecutively.
// Eg: RepeatInterleave([]int{0, 1, 2}, 2) -> []int{0, 0, 1, 1, 2, 2}
func RepeatInterleave[T any](slice []T, repeats int) []T {
	if repeats <= 0 || len(slice) == 0 {
		return []T{}
	}
	out := make([]T, len(slice)*repeats)
	for ii, value := range slice {
		FillSlice(out[ii*repeats:(ii+1)*repeats], value)
	}
	return out
}

// Compress returns the elements of slice for which the corresponding mask element is true, preserving order.
// It panics if the mask and slice have different lengths.
func Compress[T any](slice []T, mask []bool) []T {
	if len(slice) != len(mask) {
		panic("xslices.Compress: slice and mask must have the same length")
	}
	count := 0
	for _, m := range mask {
		if m {
			count++
		}
	}
	out := make([]T, 0, count)
	for ii, m := range mask {
		if m {
			out = append(out, slice[ii])
		}
	}
	return out
}

// ZipMap executes the given function for every pair of elements of in0 and in1 (read in lock-step) and returns
// the mapped slice. It panics if they have different lengths.
func ZipMap[In0, In1, Out any](in0 []In0, in1 []In1, fn func(e0 In0, e1 In1) Out) (out []Out) {
	if len(in0) != len(in1) {
		panic("xslices.ZipMap: inputs must have the same length")
	}
	out = make([]Out, len(in0))
	for ii := range in0 {
		out[ii] = fn(in0[ii], in1[ii])
	}
	return
}

// SlicesInDelta checks whether multidimensional slices s0 and s1 have the same shape and types,
// and that each of their values are within the given delta. Works with any numeric
// types.
//
// If delta <= 0, it checks for equality.
func SlicesInDelta(s0, s1 any, delta float64) bool {
	cmpFn := func(e0, e1 any) bool {
		if reflect.TypeOf(e0) != reflect.TypeOf(e1) {
			return false
		}
		if reflect.DeepEqual(e0, e1) {
			return true
		}
		if delta <= 0 {
			return false
		}

		e0v := reflect.ValueOf(e0)
		e1v := reflect.ValueOf(e1)
		if e0v.Kind() == reflect.Complex64 || e0v.Kind() == reflect.Complex128 {
			return cmplx.Abs(e0v.Complex()-e1v.Complex()) <= delta
		}

		// Other numbers:
		deltaType := reflect.TypeOf(delta)
		if !e0v.CanConvert(deltaType) {
			// Not numeric, cannot check for delta.
			return false
		}
		e0Float := e0v.Convert(deltaType).Float()
		e1Float := e1v.Convert(deltaType).Float()
		return math.Abs(e0Float-e1Float) <= delta
	}
	return deepSliceCmp(s0, s1, cmpFn)
}

// deepSliceCmp returns false if the slices given are of different shapes, or if the given cmpFn on each element
// returns false.
func deepSliceCmp(s0, s1 any, cmpFn func(e0, e1 any) bool) bool {
	return recursiveDeepSliceCmp(reflect.ValueOf(s0), reflect.ValueOf(s1), cmpFn)
}

func recursiveDeepSliceCmp(s0, s1 reflect.Value, cmpFn func(e0, e1 any) bool) bool {
	if !s0.IsValid() || !s1.IsValid() {
		return false
	}
	if s0.Type().Kind() != s1.Type().Kind() {
		return false
	}
	if s0.Type().Kind() != reflect.Slice {
		return cmpFn(s0.Interface(), s1.Interface())
	}
	if s0.Len() != s1.Len() {
		return false
	}
	for ii := 0; ii < s0.Len(); ii++ {
		if !recursiveDeepSliceCmp(s0.Index(ii), s1.Index(ii), cmpFn) {
			return false
		}
	}
	return true
}
