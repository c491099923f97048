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

package tensors

// This file implements the host-side kernels used to evaluate constant subgraphs eagerly:
// Narrow, Concatenate, InsertAxis, Transpose and ConvertDType, plus the rank-1 integer
// accessor Int64Values.
//
// All kernels allocate and return a new Tensor; the inputs are never changed. Invalid
// arguments are reported as errors (not panics): callers treat them as "this subgraph
// cannot be evaluated" and move on.

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/onnxfold/types/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// makeDims builds a Shape directly from the dimensions, without the >0 dimension check of
// shapes.Make: narrowing may legitimately produce zero-sized axes.
func makeDims(dtype dtypes.DType, dimensions []int) shapes.Shape {
	return shapes.Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
}

// adjustAxis normalizes a negative axis (counting from the end) to the [0, rank) range.
// Returns -1 if out-of-range.
func adjustAxis(axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return -1
	}
	return axis
}

// Narrow returns a new tensor that is a narrowed version of t along the given axis: only
// the elements in [start, start+length) of that axis are kept.
func Narrow(t *Tensor, axis, start, length int) (*Tensor, error) {
	t.AssertValid()
	rank := t.Rank()
	axis = adjustAxis(axis, rank)
	if axis < 0 {
		return nil, errors.Errorf("Narrow: axis out of range for shape %s", t.shape)
	}
	dim := t.shape.Dimensions[axis]
	if start < 0 || length < 0 || start+length > dim {
		return nil, errors.Errorf("Narrow: range [%d, %d+%d) out of bounds for axis %d of shape %s",
			start, start, length, axis, t.shape)
	}

	newDims := slices.Clone(t.shape.Dimensions)
	newDims[axis] = length
	result := newTensor(makeDims(t.DType(), newDims))

	elemSize := int(t.DType().Memory())
	inner := elemSize
	for _, d := range t.shape.Dimensions[axis+1:] {
		inner *= d
	}
	outer := 1
	for _, d := range t.shape.Dimensions[:axis] {
		outer *= d
	}
	srcStride := dim * inner
	dstStride := length * inner
	t.ConstBytes(func(src []byte) {
		result.MutableBytes(func(dst []byte) {
			for o := range outer {
				srcPos := o*srcStride + start*inner
				copy(dst[o*dstStride:(o+1)*dstStride], src[srcPos:srcPos+dstStride])
			}
		})
	})
	return result, nil
}

// Concatenate returns the concatenation of the given tensors along the given axis, in
// order. All tensors must have the same dtype and rank, and equal dimensions on every
// other axis. The axis may be negative, in which case it counts from the end.
func Concatenate(inputs []*Tensor, axis int) (*Tensor, error) {
	if len(inputs) == 0 {
		return nil, errors.Errorf("Concatenate: no tensors given")
	}
	first := inputs[0]
	first.AssertValid()
	rank := first.Rank()
	axis = adjustAxis(axis, rank)
	if axis < 0 {
		return nil, errors.Errorf("Concatenate: axis out of range for shape %s", first.shape)
	}
	concatDim := 0
	for _, t := range inputs {
		t.AssertValid()
		if t.DType() != first.DType() || t.Rank() != rank {
			return nil, errors.Errorf("Concatenate: shapes %s and %s are not compatible", first.shape, t.shape)
		}
		for a, d := range t.shape.Dimensions {
			if a != axis && d != first.shape.Dimensions[a] {
				return nil, errors.Errorf("Concatenate: shapes %s and %s differ on axis %d (!= %d)",
					first.shape, t.shape, a, axis)
			}
		}
		concatDim += t.shape.Dimensions[axis]
	}

	newDims := slices.Clone(first.shape.Dimensions)
	newDims[axis] = concatDim
	result := newTensor(makeDims(first.DType(), newDims))

	elemSize := int(first.DType().Memory())
	inner := elemSize
	for _, d := range first.shape.Dimensions[axis+1:] {
		inner *= d
	}
	outer := 1
	for _, d := range first.shape.Dimensions[:axis] {
		outer *= d
	}
	result.MutableBytes(func(dst []byte) {
		dstPos := 0
		for o := range outer {
			for _, t := range inputs {
				chunk := t.shape.Dimensions[axis] * inner
				t.ConstBytes(func(src []byte) {
					copy(dst[dstPos:dstPos+chunk], src[o*chunk:(o+1)*chunk])
				})
				dstPos += chunk
			}
		}
	})
	return result, nil
}

// InsertAxis returns a new tensor with an extra axis of dimension 1 inserted at the given
// position. The axis may range from -(rank+1) to rank, negative values counting from the
// end of the expanded shape.
func InsertAxis(t *Tensor, axis int) (*Tensor, error) {
	t.AssertValid()
	rank := t.Rank()
	if axis < 0 {
		axis += rank + 1
	}
	if axis < 0 || axis > rank {
		return nil, errors.Errorf("InsertAxis: axis out of range for shape %s", t.shape)
	}
	newDims := slices.Insert(slices.Clone(t.shape.Dimensions), axis, 1)
	result := t.Clone()
	result.shape = makeDims(t.DType(), newDims)
	return result, nil
}

// Transpose returns a new tensor with the axes permuted according to permutations:
// axis i of the result corresponds to axis permutations[i] of t. permutations must have
// exactly one value per axis of t; negative values count from the end.
func Transpose(t *Tensor, permutations ...int) (*Tensor, error) {
	t.AssertValid()
	rank := t.Rank()
	if len(permutations) != rank {
		return nil, errors.Errorf("Transpose: shape %s requires %d permutation values, got %d",
			t.shape, rank, len(permutations))
	}
	perm := make([]int, rank)
	seen := make([]bool, rank)
	for i, p := range permutations {
		p = adjustAxis(p, rank)
		if p < 0 || seen[p] {
			return nil, errors.Errorf("Transpose: %v is not a valid permutation for shape %s",
				permutations, t.shape)
		}
		perm[i] = p
		seen[p] = true
	}
	if rank == 0 {
		return t.Clone(), nil
	}

	newDims := make([]int, rank)
	for i, p := range perm {
		newDims[i] = t.shape.Dimensions[p]
	}
	result := newTensor(makeDims(t.DType(), newDims))

	// Strides of the input, in elements.
	srcStrides := make([]int, rank)
	stride := 1
	for a := rank - 1; a >= 0; a-- {
		srcStrides[a] = stride
		stride *= t.shape.Dimensions[a]
	}
	elemSize := int(t.DType().Memory())
	coords := make([]int, rank)
	t.ConstBytes(func(src []byte) {
		result.MutableBytes(func(dst []byte) {
			for flat := 0; flat < result.Size(); flat++ {
				srcIdx := 0
				for a := range rank {
					srcIdx += coords[a] * srcStrides[perm[a]]
				}
				copy(dst[flat*elemSize:(flat+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
				for a := rank - 1; a >= 0; a-- {
					coords[a]++
					if coords[a] < newDims[a] {
						break
					}
					coords[a] = 0
				}
			}
		})
	})
	return result, nil
}

// ConvertDType returns a new tensor with the elements converted to the given dtype.
// Integer-to-integer conversions go through int64; any conversion involving a float type
// goes through float64. Only numeric dtypes are supported.
func ConvertDType(t *Tensor, dtype dtypes.DType) (*Tensor, error) {
	t.AssertValid()
	if dtype == t.DType() {
		return t.Clone(), nil
	}
	if isIntDType(t.DType()) && isIntDType(dtype) {
		wide, ok := toInt64s(t.flat)
		if !ok {
			return nil, errors.Errorf("ConvertDType: unsupported source dtype %s", t.DType())
		}
		flat, ok := int64sTo(dtype, wide)
		if !ok {
			return nil, errors.Errorf("ConvertDType: unsupported target dtype %s", dtype)
		}
		return &Tensor{shape: makeDims(dtype, t.shape.Dimensions), flat: flat}, nil
	}
	wide, ok := toFloat64s(t.flat)
	if !ok {
		return nil, errors.Errorf("ConvertDType: unsupported source dtype %s", t.DType())
	}
	flat, ok := float64sTo(dtype, wide)
	if !ok {
		return nil, errors.Errorf("ConvertDType: unsupported target dtype %s", dtype)
	}
	return &Tensor{shape: makeDims(dtype, t.shape.Dimensions), flat: flat}, nil
}

// Int64Values returns the elements of a rank-1 integer tensor, widened to int64.
// Only Int32 and Int64 tensors are accepted.
func Int64Values(t *Tensor) ([]int64, error) {
	t.AssertValid()
	if t.Rank() != 1 {
		return nil, errors.Errorf("Int64Values: tensor must be rank-1, got shape %s", t.shape)
	}
	switch flat := t.flat.(type) {
	case []int64:
		return slices.Clone(flat), nil
	case []int32:
		return castSlice[int32, int64](flat), nil
	}
	return nil, errors.Errorf("Int64Values: tensor must be Int32 or Int64, got shape %s", t.shape)
}

func isIntDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return true
	}
	return false
}

func castSlice[From, To constraints.Integer | constraints.Float](src []From) []To {
	dst := make([]To, len(src))
	for i, v := range src {
		dst[i] = To(v)
	}
	return dst
}

func toInt64s(flat any) ([]int64, bool) {
	switch v := flat.(type) {
	case []int8:
		return castSlice[int8, int64](v), true
	case []int16:
		return castSlice[int16, int64](v), true
	case []int32:
		return castSlice[int32, int64](v), true
	case []int64:
		return v, true
	case []uint8:
		return castSlice[uint8, int64](v), true
	case []uint16:
		return castSlice[uint16, int64](v), true
	case []uint32:
		return castSlice[uint32, int64](v), true
	case []uint64:
		return castSlice[uint64, int64](v), true
	}
	return nil, false
}

func int64sTo(dtype dtypes.DType, src []int64) (any, bool) {
	switch dtype {
	case dtypes.Int8:
		return castSlice[int64, int8](src), true
	case dtypes.Int16:
		return castSlice[int64, int16](src), true
	case dtypes.Int32:
		return castSlice[int64, int32](src), true
	case dtypes.Int64:
		return slices.Clone(src), true
	case dtypes.Uint8:
		return castSlice[int64, uint8](src), true
	case dtypes.Uint16:
		return castSlice[int64, uint16](src), true
	case dtypes.Uint32:
		return castSlice[int64, uint32](src), true
	case dtypes.Uint64:
		return castSlice[int64, uint64](src), true
	}
	return nil, false
}

func toFloat64s(flat any) ([]float64, bool) {
	switch v := flat.(type) {
	case []float16.Float16:
		dst := make([]float64, len(v))
		for i, e := range v {
			dst[i] = float64(e.Float32())
		}
		return dst, true
	case []float32:
		return castSlice[float32, float64](v), true
	case []float64:
		return v, true
	}
	wide, ok := toInt64s(flat)
	if !ok {
		return nil, false
	}
	return castSlice[int64, float64](wide), true
}

func float64sTo(dtype dtypes.DType, src []float64) (any, bool) {
	switch dtype {
	case dtypes.Float16:
		dst := make([]float16.Float16, len(src))
		for i, v := range src {
			dst[i] = float16.Fromfloat32(float32(v))
		}
		return dst, true
	case dtypes.Float32:
		return castSlice[float64, float32](src), true
	case dtypes.Float64:
		return slices.Clone(src), true
	}
	wide := make([]int64, len(src))
	for i, v := range src {
		wide[i] = int64(v)
	}
	return int64sTo(dtype, wide)
}
