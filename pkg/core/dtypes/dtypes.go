// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for all data types a batchdist tensor can hold.
//
// Each DType is stored in local tensors as a flat slice of its Go type (see DType.GoType), and the
// package provides the mappings between the two, plus the generics constraints used by the tensors
// package (Supported, Number, NumberNotComplex).
package dtypes

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/batchdist/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// dtypeKind classifies the DTypes into the families batchdist cares about.
type dtypeKind uint8

const (
	kindOther dtypeKind = iota
	kindInt
	kindFloat
	kindComplex
)

// dtypeInfo is the static information of one DType.
type dtypeInfo struct {
	goType reflect.Type
	kind   dtypeKind
}

// infos is indexed by DType. InvalidDType has no entry (zero dtypeInfo).
var infos = [...]dtypeInfo{
	Bool:       {reflect.TypeFor[bool](), kindOther},
	Int8:       {reflect.TypeFor[int8](), kindInt},
	Int16:      {reflect.TypeFor[int16](), kindInt},
	Int32:      {reflect.TypeFor[int32](), kindInt},
	Int64:      {reflect.TypeFor[int64](), kindInt},
	Uint8:      {reflect.TypeFor[uint8](), kindInt},
	Uint16:     {reflect.TypeFor[uint16](), kindInt},
	Uint32:     {reflect.TypeFor[uint32](), kindInt},
	Uint64:     {reflect.TypeFor[uint64](), kindInt},
	Float16:    {reflect.TypeFor[float16.Float16](), kindFloat},
	Float32:    {reflect.TypeFor[float32](), kindFloat},
	Float64:    {reflect.TypeFor[float64](), kindFloat},
	BFloat16:   {reflect.TypeFor[bfloat16.BFloat16](), kindFloat},
	Complex64:  {reflect.TypeFor[complex64](), kindComplex},
	Complex128: {reflect.TypeFor[complex128](), kindComplex},
}

// dtypeByKind maps the reflect.Kind of native Go types to their DType.
// Float16 and BFloat16 are named uint16 types, so they are matched by type before the kind is looked up.
var dtypeByKind = map[reflect.Kind]DType{}

func init() {
	if strconv.IntSize != 32 && strconv.IntSize != 64 {
		panic(errors.Errorf("cannot use int of %d bits -- only platforms with int32 or int64 are supported",
			strconv.IntSize))
	}
	for dtype, info := range infos {
		if info.goType == nil || dtype == int(Float16) || dtype == int(BFloat16) {
			continue
		}
		dtypeByKind[info.goType.Kind()] = DType(dtype)
	}
	dtypeByKind[reflect.Int] = Int64
	if strconv.IntSize == 32 {
		dtypeByKind[reflect.Int] = Int32
	}

	// Names are also accepted in lower case.
	for _, name := range slices.Collect(maps.Keys(MapOfNames)) {
		lower := strings.ToLower(name)
		if _, found := MapOfNames[lower]; !found {
			MapOfNames[lower] = MapOfNames[name]
		}
	}
}

func (dtype DType) info() dtypeInfo {
	if dtype <= InvalidDType || int(dtype) >= len(infos) {
		return dtypeInfo{}
	}
	return infos[dtype]
}

// FromName returns the DType for the given name or alias (case-insensitive for the canonical names,
// e.g. "Float32", "float32", "F32" or "f32").
func FromName(name string) (DType, error) {
	dtype, found := MapOfNames[name]
	if !found {
		dtype, found = MapOfNames[strings.ToLower(name)]
	}
	if !found || dtype == InvalidDType {
		return InvalidDType, errors.Errorf("unknown dtype name %q", name)
	}
	return dtype, nil
}

// FromGoType returns the DType for the given "reflect.Type", or InvalidDType for unknown types.
// Go's int maps to Int32 or Int64, depending on the platform.
func FromGoType(t reflect.Type) DType {
	switch t {
	case infos[Float16].goType:
		return Float16
	case infos[BFloat16].goType:
		return BFloat16
	}
	if dtype, found := dtypeByKind[t.Kind()]; found {
		return dtype
	}
	return InvalidDType
}

// FromGenericsType returns the DType for the Go type T.
func FromGenericsType[T Supported]() DType {
	return FromGoType(reflect.TypeFor[T]())
}

// GoType returns the Go type used to store values of the dtype. It panics for unknown dtypes.
func (dtype DType) GoType() reflect.Type {
	goType := dtype.info().goType
	if goType == nil {
		panic(errors.Errorf("unknown dtype %q (%d) in DType.GoType", dtype, dtype))
	}
	return goType
}

// Size returns the number of bytes for the given DType.
func (dtype DType) Size() int {
	return int(dtype.GoType().Size())
}

// Memory is Size as an uintptr.
func (dtype DType) Memory() uintptr {
	return uintptr(dtype.Size())
}

// IsComplex returns whether dtype is a supported complex number type.
func (dtype DType) IsComplex() bool { return dtype.info().kind == kindComplex }

// IsReal returns whether dtype holds ordered real numbers: integers (signed or not) or floats.
// These are the dtypes that can be converted to and from float64 without losing the "kind" of the value.
func (dtype DType) IsReal() bool {
	kind := dtype.info().kind
	return kind == kindInt || kind == kindFloat
}

// IsSupported returns whether dtype is one of the dtypes enumerated in this package.
func (dtype DType) IsSupported() bool { return dtype.info().goType != nil }

// Supported lists the Go types that can be used as tensor storage.
// Used as traits for generics.
//
// Notice Go's `int` type is not portable, since it may translate to dtypes Int32 or Int64 depending
// on the platform.
type Supported interface {
	bool | float16.Float16 | bfloat16.BFloat16 |
		float32 | float64 | int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		complex64 | complex128
}

// Number represents the native Go numeric types, complex numbers included.
// float16.Float16 and bfloat16.BFloat16 are not native number types, so they are left out.
type Number interface {
	NumberNotComplex | complex64 | complex128
}

// NumberNotComplex is Number without the complex types.
type NumberNotComplex interface {
	float32 | float64 | int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}
