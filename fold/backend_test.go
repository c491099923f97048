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

package fold

import (
	"testing"

	"github.com/gomlx/onnxfold/ir"
	"github.com/gomlx/onnxfold/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// iota2D returns a [rows, cols] float32 tensor with values 0, 1, 2, ...
func iota2D(rows, cols int) *tensors.Tensor {
	data := make([]float32, rows*cols)
	for i := range data {
		data[i] = float32(i)
	}
	return tensors.FromFlatDataAndDimensions(data, rows, cols)
}

// vecI64 returns a rank-1 Int64 tensor with the given values.
func vecI64(values ...int64) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(values, len(values))
}

func TestSliceOpset9(t *testing.T) {
	b := ir.New()
	node := b.AddNode(ir.OpSlice, b.AddInput("w")).
		SetAttrInts("starts", []int{1}).
		SetAttrInts("ends", []int{-1}).
		SetAttrInts("axes", []int{1})
	data := iota2D(4, 6)

	got, ok := runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.True(t, ok)
	want := tensors.FromFlatDataAndDimensions([]float32{
		1, 2, 3, 4,
		7, 8, 9, 10,
		13, 14, 15, 16,
		19, 20, 21, 22,
	}, 4, 4)
	require.True(t, got.Equal(want), "got %s, want %s", got, want)
}

func TestSliceOpset9DefaultAxes(t *testing.T) {
	// Omitted axes default to the sequential 0, 1, ...
	b := ir.New()
	node := b.AddNode(ir.OpSlice, b.AddInput("w")).
		SetAttrInts("starts", []int{0, 1}).
		SetAttrInts("ends", []int{2, 3})
	got, ok := runBackendForONNX(node, []*tensors.Tensor{iota2D(4, 6)}, 9)
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, got.Shape().Dimensions)
}

func TestSliceOpset9NotFoldable(t *testing.T) {
	b := ir.New()
	w := b.AddInput("w")
	data := iota2D(4, 6)

	// Missing "ends".
	node := b.AddNode(ir.OpSlice, w).SetAttrInts("starts", []int{1})
	_, ok := runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.False(t, ok)

	// Mismatched starts/ends lengths.
	node = b.AddNode(ir.OpSlice, w).
		SetAttrInts("starts", []int{1, 2}).
		SetAttrInts("ends", []int{3})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.False(t, ok)

	// Negative resulting length.
	node = b.AddNode(ir.OpSlice, w).
		SetAttrInts("starts", []int{3}).
		SetAttrInts("ends", []int{1})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.False(t, ok)

	// Axis out of range.
	node = b.AddNode(ir.OpSlice, w).
		SetAttrInts("starts", []int{0}).
		SetAttrInts("ends", []int{1}).
		SetAttrInts("axes", []int{5})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.False(t, ok)

	// Wrong number of inputs.
	node = b.AddNode(ir.OpSlice, w, w).
		SetAttrInts("starts", []int{1}).
		SetAttrInts("ends", []int{2})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data, data}, 9)
	require.False(t, ok)

	// Unsupported opset version reaching the dispatch.
	node = b.AddNode(ir.OpSlice, w).
		SetAttrInts("starts", []int{1}).
		SetAttrInts("ends", []int{2})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data}, 11)
	require.False(t, ok)
}

func TestSliceOpset10(t *testing.T) {
	b := ir.New()
	node := b.AddNode(ir.OpSlice, b.AddInput("w"))
	data := iota2D(4, 6)

	got, ok := runBackendForONNX(node,
		[]*tensors.Tensor{data, vecI64(1), vecI64(-1), vecI64(1)}, 10)
	require.True(t, ok)
	assert.Equal(t, []int{4, 4}, got.Shape().Dimensions)

	// Explicit steps of 1 are accepted.
	got, ok = runBackendForONNX(node,
		[]*tensors.Tensor{data, vecI64(0), vecI64(2), vecI64(0), vecI64(1)}, 10)
	require.True(t, ok)
	assert.Equal(t, []int{2, 6}, got.Shape().Dimensions)

	// Steps other than 1 are not foldable.
	_, ok = runBackendForONNX(node,
		[]*tensors.Tensor{data, vecI64(0), vecI64(2), vecI64(0), vecI64(2)}, 10)
	require.False(t, ok)
}

func TestSliceOpset10DefaultAxes(t *testing.T) {
	// When the axes input is omitted every entry defaults to axis 0, so both ranges
	// below narrow axis 0, the second against the already-narrowed tensor.
	b := ir.New()
	node := b.AddNode(ir.OpSlice, b.AddInput("w"))
	got, ok := runBackendForONNX(node,
		[]*tensors.Tensor{iota2D(4, 6), vecI64(1, 1), vecI64(3, 3)}, 10)
	require.True(t, ok)
	assert.Equal(t, []int{1, 6}, got.Shape().Dimensions)
}

func TestSliceOpset10NotFoldable(t *testing.T) {
	b := ir.New()
	node := b.AddNode(ir.OpSlice, b.AddInput("w"))
	data := iota2D(4, 6)

	// Too few inputs.
	_, ok := runBackendForONNX(node, []*tensors.Tensor{data, vecI64(1)}, 10)
	require.False(t, ok)

	// starts not rank-1.
	starts2D := tensors.FromFlatDataAndDimensions([]int64{1}, 1, 1)
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data, starts2D, vecI64(2)}, 10)
	require.False(t, ok)

	// starts/ends length mismatch.
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data, vecI64(1, 2), vecI64(3)}, 10)
	require.False(t, ok)

	// axes length mismatch.
	_, ok = runBackendForONNX(node,
		[]*tensors.Tensor{data, vecI64(1), vecI64(3), vecI64(0, 1)}, 10)
	require.False(t, ok)

	// starts of a non-integer dtype.
	badStarts := tensors.FromFlatDataAndDimensions([]float32{1}, 1)
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data, badStarts, vecI64(2)}, 10)
	require.False(t, ok)
}

func TestConcat(t *testing.T) {
	b := ir.New()
	a := iota2D(2, 3)
	c := iota2D(2, 3)
	node := b.AddNode(ir.OpConcat, b.AddInput("a"), b.AddInput("b")).SetAttrInt("axis", 0)

	got, ok := runBackendForONNX(node, []*tensors.Tensor{a, c}, 9)
	require.True(t, ok)
	assert.Equal(t, []int{4, 3}, got.Shape().Dimensions)

	// Missing axis attribute.
	node = b.AddNode(ir.OpConcat, b.AddInput("c"), b.AddInput("d"))
	_, ok = runBackendForONNX(node, []*tensors.Tensor{a, c}, 9)
	require.False(t, ok)

	// Incompatible shapes.
	node = b.AddNode(ir.OpConcat, b.AddInput("e"), b.AddInput("f")).SetAttrInt("axis", 0)
	_, ok = runBackendForONNX(node, []*tensors.Tensor{a, iota2D(2, 4)}, 9)
	require.False(t, ok)
}

func TestUnsqueeze(t *testing.T) {
	b := ir.New()
	node := b.AddNode(ir.OpUnsqueeze, b.AddInput("w")).SetAttrInts("axes", []int{0, 2})
	got, ok := runBackendForONNX(node, []*tensors.Tensor{iota2D(2, 3)}, 9)
	require.True(t, ok)
	// Axes are applied in order: [2,3] -> [1,2,3] -> [1,2,1,3].
	assert.Equal(t, []int{1, 2, 1, 3}, got.Shape().Dimensions)

	node = b.AddNode(ir.OpUnsqueeze, b.AddInput("x"))
	_, ok = runBackendForONNX(node, []*tensors.Tensor{iota2D(2, 3)}, 9)
	require.False(t, ok)

	// Axis out of range.
	node = b.AddNode(ir.OpUnsqueeze, b.AddInput("y")).SetAttrInts("axes", []int{7})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{iota2D(2, 3)}, 9)
	require.False(t, ok)
}

func TestTransposeOp(t *testing.T) {
	b := ir.New()
	node := b.AddNode(ir.OpTranspose, b.AddInput("w")).SetAttrInts("perm", []int{1, 0})
	got, ok := runBackendForONNX(node, []*tensors.Tensor{iota2D(2, 3)}, 9)
	require.True(t, ok)
	want := tensors.FromFlatDataAndDimensions([]float32{0, 3, 1, 4, 2, 5}, 3, 2)
	require.True(t, got.Equal(want))

	node = b.AddNode(ir.OpTranspose, b.AddInput("x"))
	_, ok = runBackendForONNX(node, []*tensors.Tensor{iota2D(2, 3)}, 9)
	require.False(t, ok)

	node = b.AddNode(ir.OpTranspose, b.AddInput("y")).SetAttrInts("perm", []int{0, 0})
	_, ok = runBackendForONNX(node, []*tensors.Tensor{iota2D(2, 3)}, 9)
	require.False(t, ok)
}

func TestCast(t *testing.T) {
	b := ir.New()
	data := tensors.FromFlatDataAndDimensions([]float32{1.7, -2.7}, 2)

	// Code 7 is Int64.
	node := b.AddNode(ir.OpCast, b.AddInput("w")).SetAttrInt("to", 7)
	got, ok := runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.True(t, ok)
	require.True(t, got.Equal(vecI64(1, -2)))

	// Code 10 (ONNX float16) maps to Float32.
	node = b.AddNode(ir.OpCast, b.AddInput("x")).SetAttrInt("to", 10)
	got, ok = runBackendForONNX(node, []*tensors.Tensor{vecI64(3)}, 9)
	require.True(t, ok)
	require.True(t, got.Equal(tensors.FromFlatDataAndDimensions([]float32{3}, 1)))

	// Unrecognized type code.
	node = b.AddNode(ir.OpCast, b.AddInput("y")).SetAttrInt("to", 999)
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.False(t, ok)

	// Missing attribute.
	node = b.AddNode(ir.OpCast, b.AddInput("z"))
	_, ok = runBackendForONNX(node, []*tensors.Tensor{data}, 9)
	require.False(t, ok)
}

func TestOpaqueOpsAreNotFoldable(t *testing.T) {
	b := ir.New()
	data := iota2D(2, 3)
	for _, op := range []ir.OpType{ir.OpAdd, ir.OpRelu, ir.OpShape} {
		node := b.AddNode(op, b.AddInput(""))
		_, ok := runBackendForONNX(node, []*tensors.Tensor{data}, 9)
		require.False(t, ok, "op %s must not be foldable", op)
	}
}
