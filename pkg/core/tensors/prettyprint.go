// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/batchdist/pkg/core/dtypes/bfloat16"
	"github.com/x448/float16"
)

// TensorStringDefaultPrecision is the number of significant digits used by Tensor.String.
const TensorStringDefaultPrecision = 4

// maxSummaryItems is the number of items per axis printed before eliding with "...".
const maxSummaryItems = 6

var (
	typeFloat16  = reflect.TypeOf(float16.Float16(0))
	typeBFloat16 = reflect.TypeOf(bfloat16.BFloat16(0))
)

// String converts to string, if not too large. It uses t.Summary(precision=4).
func (t *Tensor) String() string {
	if t.CheckValid() != nil {
		return "<invalid tensor>"
	}
	return t.Summary(TensorStringDefaultPrecision)
}

// Summary returns a summary of the Tensor's content: a header with the shape, memory and device, followed
// by the values for scalars, vectors and matrices. Large axes are elided, inspired by numpy output.
// Tensors of higher rank only print the header.
func (t *Tensor) Summary(precision int) string {
	var buf bytes.Buffer
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(&buf, format, args...) }
	w("%s (%s on %s)", t.shape, humanize.Bytes(uint64(t.Memory())), t.device)
	if t.shape.IsZeroSize() || t.Rank() > 2 {
		return buf.String()
	}

	wValue := func(v reflect.Value) {
		if v.Type() == typeFloat16 {
			w("%.*g", precision, v.Interface().(float16.Float16).Float32())
			return
		} else if v.Type() == typeBFloat16 {
			w("%.*g", precision, v.Interface().(bfloat16.BFloat16).Float32())
			return
		}
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			w("%d", v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			w("%d", v.Uint())
		case reflect.Complex64, reflect.Complex128:
			c := v.Complex()
			w("(%.*g+%.*gi)", precision, real(c), precision, imag(c))
		case reflect.Bool:
			w("%v", v.Bool())
		default:
			w("%.*g", precision, v.Interface())
		}
	}

	t.MustConstFlatData(func(flat any) {
		values := reflect.ValueOf(flat)
		if t.IsScalar() {
			w(": ")
			wValue(values.Index(0))
			return
		}
		numRows, numCols := 1, t.shape.Dimensions[0]
		if t.Rank() == 2 {
			numRows, numCols = t.shape.Dimensions[0], t.shape.Dimensions[1]
		}
		writeRow := func(row int) {
			w("\n  {")
			for _, col := range elidedRange(numCols) {
				if col > 0 {
					w(", ")
				}
				if col < 0 {
					w("...")
					continue
				}
				wValue(values.Index(row*numCols + col))
			}
			w("}")
		}
		for _, row := range elidedRange(numRows) {
			if row < 0 {
				w("\n  ...")
				continue
			}
			writeRow(row)
		}
	})
	return buf.String()
}

// elidedRange returns the indices 0..n-1, or if n is larger than maxSummaryItems, the first and last 3 indices
// with a -1 marking the elided part.
func elidedRange(n int) []int {
	if n <= maxSummaryItems {
		indices := make([]int, n)
		for ii := range indices {
			indices[ii] = ii
		}
		return indices
	}
	half := maxSummaryItems / 2
	indices := make([]int, 0, maxSummaryItems+1)
	for ii := range half {
		indices = append(indices, ii)
	}
	indices = append(indices, -1)
	for ii := n - half; ii < n; ii++ {
		indices = append(indices, ii)
	}
	return indices
}
