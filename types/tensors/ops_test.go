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

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// iotaTensor returns a tensor of the given dimensions with values 0, 1, 2, ...
func iotaTensor(dimensions ...int) *Tensor {
	size := 1
	for _, dim := range dimensions {
		size *= dim
	}
	data := make([]float32, size)
	for i := range data {
		data[i] = float32(i)
	}
	return FromFlatDataAndDimensions(data, dimensions...)
}

func TestNarrow(t *testing.T) {
	// [[0 1 2] [3 4 5] [6 7 8] [9 10 11]]
	tensor := iotaTensor(4, 3)

	got := must.M1(Narrow(tensor, 0, 1, 2))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]float32{3, 4, 5, 6, 7, 8}, 2, 3)))

	got = must.M1(Narrow(tensor, 1, 1, 2))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]float32{1, 2, 4, 5, 7, 8, 10, 11}, 4, 2)))

	// Negative axis counts from the end.
	got = must.M1(Narrow(tensor, -1, 0, 1))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]float32{0, 3, 6, 9}, 4, 1)))

	// Zero-length narrow is valid and yields an empty tensor.
	got = must.M1(Narrow(tensor, 0, 2, 0))
	require.Equal(t, 0, got.Size())
	require.Equal(t, []int{0, 3}, got.Shape().Dimensions)

	_, err := Narrow(tensor, 0, 3, 2)
	require.Error(t, err)
	_, err = Narrow(tensor, 2, 0, 1)
	require.Error(t, err)
}

func TestConcatenate(t *testing.T) {
	a := FromFlatDataAndDimensions([]int64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := FromFlatDataAndDimensions([]int64{7, 8, 9, 10, 11, 12}, 2, 3)

	got := must.M1(Concatenate([]*Tensor{a, b}, 0))
	require.True(t, got.Equal(FromFlatDataAndDimensions(
		[]int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 4, 3)))

	got = must.M1(Concatenate([]*Tensor{a, b}, 1))
	require.True(t, got.Equal(FromFlatDataAndDimensions(
		[]int64{1, 2, 3, 7, 8, 9, 4, 5, 6, 10, 11, 12}, 2, 6)))

	// Negative axis.
	got = must.M1(Concatenate([]*Tensor{a, b}, -2))
	require.Equal(t, []int{4, 3}, got.Shape().Dimensions)

	// Mismatching off-axis dimension.
	c := FromFlatDataAndDimensions([]int64{1, 2, 3, 4}, 2, 2)
	_, err := Concatenate([]*Tensor{a, c}, 0)
	require.Error(t, err)

	// Mismatching dtype.
	d := FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3)
	_, err = Concatenate([]*Tensor{a, d}, 0)
	require.Error(t, err)

	_, err = Concatenate(nil, 0)
	require.Error(t, err)
}

func TestInsertAxis(t *testing.T) {
	tensor := iotaTensor(2, 3)

	got := must.M1(InsertAxis(tensor, 0))
	require.Equal(t, []int{1, 2, 3}, got.Shape().Dimensions)

	got = must.M1(InsertAxis(tensor, 2))
	require.Equal(t, []int{2, 3, 1}, got.Shape().Dimensions)

	got = must.M1(InsertAxis(tensor, -1))
	require.Equal(t, []int{2, 3, 1}, got.Shape().Dimensions)

	// Data is unchanged, only the shape.
	ConstFlatData(got, func(flat []float32) {
		require.Equal(t, []float32{0, 1, 2, 3, 4, 5}, flat)
	})

	_, err := InsertAxis(tensor, 3)
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	// [[0 1 2] [3 4 5]]
	tensor := iotaTensor(2, 3)
	got := must.M1(Transpose(tensor, 1, 0))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]float32{0, 3, 1, 4, 2, 5}, 3, 2)))

	// Identity permutation.
	got = must.M1(Transpose(tensor, 0, 1))
	require.True(t, got.Equal(tensor))

	// Rank 3: move the last axis to the front.
	tensor = iotaTensor(2, 2, 2)
	got = must.M1(Transpose(tensor, 2, 0, 1))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]float32{0, 2, 4, 6, 1, 3, 5, 7}, 2, 2, 2)))

	// Negative axes.
	got = must.M1(Transpose(iotaTensor(2, 3), -1, -2))
	require.Equal(t, []int{3, 2}, got.Shape().Dimensions)

	_, err := Transpose(iotaTensor(2, 3), 0)
	require.Error(t, err)
	_, err = Transpose(iotaTensor(2, 3), 0, 0)
	require.Error(t, err)
}

func TestConvertDType(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]int64{1, -2, 3}, 3)
	got := must.M1(ConvertDType(tensor, dtypes.Float32))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]float32{1, -2, 3}, 3)))

	// Float to integer truncates.
	got = must.M1(ConvertDType(FromFlatDataAndDimensions([]float32{1.7, -2.7}, 2), dtypes.Int32))
	require.True(t, got.Equal(FromFlatDataAndDimensions([]int32{1, -2}, 2)))

	// Integer to integer keeps exact values, including beyond float32 precision.
	big := int64(1) << 60
	got = must.M1(ConvertDType(FromFlatDataAndDimensions([]int64{big}, 1), dtypes.Int64))
	ConstFlatData(got, func(flat []int64) { require.Equal(t, big, flat[0]) })

	// Narrowing integer conversion wraps like Go conversions do.
	got = must.M1(ConvertDType(FromFlatDataAndDimensions([]int32{300}, 1), dtypes.Uint8))
	ConstFlatData(got, func(flat []uint8) { require.Equal(t, uint8(44), flat[0]) })

	// Float16 source.
	f16 := FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(1.5)}, 1)
	got = must.M1(ConvertDType(f16, dtypes.Float64))
	ConstFlatData(got, func(flat []float64) { require.Equal(t, 1.5, flat[0]) })

	// Bool is not numeric.
	_, err := ConvertDType(FromFlatDataAndDimensions([]bool{true}, 1), dtypes.Float32)
	require.Error(t, err)
}

func TestInt64Values(t *testing.T) {
	got := must.M1(Int64Values(FromFlatDataAndDimensions([]int64{1, 2, 3}, 3)))
	require.Equal(t, []int64{1, 2, 3}, got)

	got = must.M1(Int64Values(FromFlatDataAndDimensions([]int32{4, 5}, 2)))
	require.Equal(t, []int64{4, 5}, got)

	_, err := Int64Values(FromFlatDataAndDimensions([]int64{1, 2, 3, 4}, 2, 2))
	require.Error(t, err)
	_, err = Int64Values(FromFlatDataAndDimensions([]float32{1}, 1))
	require.Error(t, err)
}
