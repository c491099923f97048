/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package tensors implements a Tensor, a representation of a multi-dimensional array held
// in host memory.
//
// Tensors are multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large
// dimensions), defined by their shape (a data type and its axes' dimensions) and their
// actual content, stored as a flat (1D) slice of the Go type corresponding to the DType.
//
// They are the concrete values carried by parameters and constant-literal nodes of the IR
// graph, and the values produced when constant subgraphs are evaluated eagerly.
//
// There are two ways to construct a Tensor from local data:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a
//     tensor with the given dimensions, and sets the flattened values with the given data.
//     Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
// The per-axis kernels used for eager evaluation (Narrow, Concatenate, InsertAxis,
// Transpose, ConvertDType) live in ops.go.
package tensors

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/onnxfold/types/shapes"
)

// Tensor represents a multidimensional array of one of the supported DTypes.
// The data is always stored as a flat slice of the Go type for the DType, in row-major
// ("C") order.
//
// A Tensor is immutable from the perspective of the IR graph: the evaluation kernels in
// ops.go always allocate a new Tensor for their results.
type Tensor struct {
	// shape of the tensor. Considered immutable.
	shape shapes.Shape

	// flat holds the slice with the actual data, of the Go type for shape.DType.
	flat any
}

// newTensor returns a Tensor with the given shape and an uninitialized (zero) flat slice.
func newTensor(shape shapes.Shape) *Tensor {
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	return &Tensor{
		shape: shape,
		flat:  flatV.Interface(),
	}
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	return newTensor(shape)
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, backed by the
// flattened values given in data. The DType is inferred from T.
//
// It panics if len(data) doesn't match the size given by the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(): data size is %d, but dimensions size is %d",
			len(data), shape.Size())
	}
	return &Tensor{
		shape: shape,
		flat:  slices.Clone(data),
	}
}

// FromScalar creates a scalar (rank-0) tensor holding the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// AssertValid panics if the tensor is nil or if its data has been freed.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("the Tensor is nil")
	}
	if t.flat == nil {
		exceptions.Panicf("the Tensor has no data")
	}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType. Even scalar values have a flattened data representation of
// one element.
//
// This provides accessFn with the actual Tensor data (not a copy), owned by the Tensor:
// it must not be changed.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType. It is the "generics" version of Tensor.ConstFlatData, and
// panics if T doesn't match the tensor's DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ConstFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	accessFn(t.flat.([]T))
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type
// corresponding to the DType, whose contents may be changed until accessFn returns.
// It panics if T doesn't match the tensor's DType.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	ConstFlatData(t, accessFn)
}

// ConstBytes calls accessFn with the data as a bytes slice. The bytes are owned by the
// Tensor and must not be changed -- see Tensor.MutableBytes for that.
func (t *Tensor) ConstBytes(accessFn func(data []byte)) {
	t.bytes(accessFn)
}

// MutableBytes calls accessFn with the data as a bytes slice, whose contents may be
// changed until accessFn returns.
func (t *Tensor) MutableBytes(accessFn func(data []byte)) {
	t.bytes(accessFn)
}

func (t *Tensor) bytes(accessFn func(data []byte)) {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	if flatV.Len() == 0 {
		accessFn(nil)
		return
	}
	element0 := flatV.Index(0)
	flatValuesPtr := element0.Addr().UnsafePointer()
	sizeBytes := uintptr(flatV.Len()) * element0.Type().Size()
	accessFn(unsafe.Slice((*byte)(flatValuesPtr), sizeBytes))
}

// Clone creates a deep copy of the Tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	clone := newTensor(t.shape.Clone())
	t.ConstBytes(func(src []byte) {
		clone.MutableBytes(func(dst []byte) {
			copy(dst, src)
		})
	})
	return clone
}

// Equal compares two tensors for exact equality of shape (dtype included) and contents.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()
	if !t.shape.Equal(other.shape) {
		return false
	}
	equal := false
	t.ConstBytes(func(data []byte) {
		other.ConstBytes(func(otherData []byte) {
			equal = bytes.Equal(data, otherData)
		})
	})
	return equal
}

// MaxStringSize is the largest number of elements Tensor.String will print. Above that
// only the shape and memory usage are printed.
var MaxStringSize = 16

// String returns a printable version of the tensor. For tensors larger than MaxStringSize
// elements only the shape and memory usage are included.
func (t *Tensor) String() string {
	if t == nil || t.flat == nil {
		return "Tensor(<invalid>)"
	}
	if t.Size() > MaxStringSize {
		return fmt.Sprintf("Tensor(%s, %s)", t.shape, humanize.Bytes(uint64(t.Memory())))
	}
	var parts []string
	t.ConstFlatData(func(flat any) {
		flatV := reflect.ValueOf(flat)
		for ii := range flatV.Len() {
			parts = append(parts, fmt.Sprintf("%v", flatV.Index(ii).Interface()))
		}
	})
	return fmt.Sprintf("Tensor(%s: [%s])", t.shape, strings.Join(parts, ", "))
}
