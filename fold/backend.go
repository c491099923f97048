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

// This file implements the numeric backend of the pass: given a node whose input tensors
// have all been materialized, evaluate it eagerly with the tensors package kernels.
//
// Every function here returns (result, true) on success and (nil, false) when the node
// cannot be folded -- wrong attributes, unsupported parameter combinations, shape
// mismatches. Not-foldable is never an error: the caller leaves the node in the graph
// unchanged.

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/onnxfold/ir"
	"github.com/gomlx/onnxfold/types/tensors"
	"github.com/gomlx/onnxfold/types/xslices"
	"k8s.io/klog/v2"
)

// onnxTypeToDType maps the numeric ONNX type codes accepted by a Cast node to the
// resulting element type. Only numeric types are included; unsigned ONNX types are mapped
// to the next larger signed type.
var onnxTypeToDType = map[int]dtypes.DType{
	1:  dtypes.Float32,
	2:  dtypes.Uint8,
	3:  dtypes.Int8,
	4:  dtypes.Int32,
	5:  dtypes.Int16,
	6:  dtypes.Int32,
	7:  dtypes.Int64,
	10: dtypes.Float32,
	11: dtypes.Float64,
	12: dtypes.Int64,
}

// adjustSliceRange normalizes negative start/end indices by adding the axis dimension.
// An end higher than the dimension is treated as the end of the axis.
func adjustSliceRange(start, end, dim int) (int, int) {
	if start < 0 {
		start += dim
	}
	if end < 0 {
		end += dim
	}
	if end > dim {
		end = dim
	}
	return start, end
}

// narrowPerAxis narrows t along each of the given axes in order, each axis taken against
// the already-narrowed tensor from the previous one.
func narrowPerAxis(t *tensors.Tensor, axes, starts, ends []int) (*tensors.Tensor, bool) {
	updated := t
	for i, axis := range axes {
		if axis < 0 || axis >= updated.Rank() {
			klog.Warningf("constant folding: Slice axis %d out of range for shape %s, not folding",
				axis, updated.Shape())
			return nil, false
		}
		dim := updated.Shape().Dimensions[axis]
		start, end := adjustSliceRange(starts[i], ends[i], dim)
		length := end - start
		if length < 0 || start > dim-length {
			return nil, false
		}
		var err error
		updated, err = tensors.Narrow(updated, axis, start, length)
		if err != nil {
			klog.Warningf("constant folding: Slice failed: %v, not folding", err)
			return nil, false
		}
	}
	return updated, true
}

// hasIntsAttr reports whether the node carries an integer-array attribute with this name.
func hasIntsAttr(node *ir.Node, name string) bool {
	return node.AttrKindOf(name) == ir.AttrKindInts
}

// runSliceOpset9 evaluates a Slice node in the opset-9 form: a single data input, with
// the slicing specification given by the "starts"/"ends" (and optionally "axes")
// attributes. Omitted axes default to 0, 1, 2, ...
func runSliceOpset9(node *ir.Node, inputs []*tensors.Tensor) (*tensors.Tensor, bool) {
	if len(inputs) != 1 {
		klog.Warningf("constant folding: invalid number of inputs (%d) for opset 9 Slice op, not folding",
			len(inputs))
		return nil, false
	}
	if !hasIntsAttr(node, "starts") || !hasIntsAttr(node, "ends") {
		return nil, false
	}
	starts := node.AttrInts("starts")
	ends := node.AttrInts("ends")
	if len(starts) != len(ends) {
		return nil, false
	}
	var axes []int
	if hasIntsAttr(node, "axes") {
		axes = node.AttrInts("axes")
		if len(axes) != len(starts) {
			return nil, false
		}
	} else {
		axes = xslices.Iota(0, len(starts))
	}
	return narrowPerAxis(inputs[0], axes, starts, ends)
}

// int64sToInts widens the values read from a rank-1 integer tensor to plain ints.
func int64sToInts(values []int64) []int {
	ints := make([]int, len(values))
	for i, v := range values {
		ints[i] = int(v)
	}
	return ints
}

// runSliceOpset10 evaluates a Slice node in the opset-10 form: 3 to 5 inputs positioned
// as [data, starts, ends, axes?, steps?], all rank-1 integer tensors of equal length.
// Any step other than 1 makes the node not-foldable.
func runSliceOpset10(_ *ir.Node, inputs []*tensors.Tensor) (*tensors.Tensor, bool) {
	if len(inputs) < 3 || len(inputs) > 5 {
		klog.Warningf("constant folding: invalid number of inputs (%d) for opset 10 Slice op, not folding",
			len(inputs))
		return nil, false
	}
	startsT, endsT := inputs[1], inputs[2]
	if startsT.Rank() != 1 || endsT.Rank() != 1 {
		klog.Warningf("constant folding: invalid 'starts' or 'ends' inputs for opset 10 Slice op, not folding")
		return nil, false
	}
	numAxes := startsT.Shape().Dimensions[0]
	if endsT.Shape().Dimensions[0] != numAxes {
		// Number of elements of the 'starts' and 'ends' rank-1 inputs must be the same.
		return nil, false
	}

	var axes []int64
	if len(inputs) > 3 {
		axesT := inputs[3]
		if axesT.Rank() != 1 {
			klog.Warningf("constant folding: invalid 'axes' input for opset 10 Slice op, not folding")
			return nil, false
		}
		if axesT.Shape().Dimensions[0] != numAxes {
			klog.Warningf("constant folding: invalid 'axes' or 'ends' inputs for opset 10 Slice op, not folding")
			return nil, false
		}
		var err error
		axes, err = tensors.Int64Values(axesT)
		if err != nil {
			klog.Warningf("constant folding: invalid 'axes' input for opset 10 Slice op: %v, not folding", err)
			return nil, false
		}
	} else {
		// When omitted every entry defaults to axis 0 -- unlike the sequential 0..N-1
		// default of the opset-9 attribute form.
		axes = xslices.SliceWithValue[int64](numAxes, 0)
	}

	if len(inputs) > 4 {
		stepsT := xslices.Last(inputs)
		if stepsT.Rank() != 1 {
			klog.Warningf("constant folding: invalid 'steps' input for opset 10 Slice op, not folding")
			return nil, false
		}
		if stepsT.Shape().Dimensions[0] != numAxes {
			klog.Warningf("constant folding: invalid 'steps' or 'ends' inputs for opset 10 Slice op, not folding")
			return nil, false
		}
		steps, err := tensors.Int64Values(stepsT)
		if err != nil {
			klog.Warningf("constant folding: invalid 'steps' input for opset 10 Slice op: %v, not folding", err)
			return nil, false
		}
		for _, step := range steps {
			if step != 1 {
				klog.Warningf("constant folding: only steps=1 can be constant folded for opset 10 Slice op, not folding")
				return nil, false
			}
		}
	}

	starts, err := tensors.Int64Values(startsT)
	if err != nil {
		klog.Warningf("constant folding: invalid 'starts' input for opset 10 Slice op: %v, not folding", err)
		return nil, false
	}
	ends, err := tensors.Int64Values(endsT)
	if err != nil {
		klog.Warningf("constant folding: invalid 'ends' input for opset 10 Slice op: %v, not folding", err)
		return nil, false
	}
	return narrowPerAxis(inputs[0], int64sToInts(axes), int64sToInts(starts), int64sToInts(ends))
}

// runBackendForONNX eagerly evaluates the node on the given materialized input tensors,
// dispatching on the node's operator kind. It returns (nil, false) if the node cannot be
// folded.
func runBackendForONNX(node *ir.Node, inputs []*tensors.Tensor, opsetVersion int) (*tensors.Tensor, bool) {
	switch node.Op() {
	case ir.OpSlice:
		switch opsetVersion {
		case 9:
			return runSliceOpset9(node, inputs)
		case 10:
			return runSliceOpset10(node, inputs)
		default:
			klog.Warningf("constant folding: unsupported opset version %d, not folding", opsetVersion)
			return nil, false
		}

	case ir.OpConcat:
		if node.AttrKindOf("axis") != ir.AttrKindInt {
			return nil, false
		}
		updated, err := tensors.Concatenate(inputs, node.AttrInt("axis"))
		if err != nil {
			klog.Warningf("constant folding: Concat failed: %v, not folding", err)
			return nil, false
		}
		return updated, true

	case ir.OpUnsqueeze:
		if len(inputs) != 1 {
			klog.Warningf("constant folding: invalid number of inputs (%d) for Unsqueeze op, not folding",
				len(inputs))
			return nil, false
		}
		if !hasIntsAttr(node, "axes") {
			return nil, false
		}
		updated := inputs[0]
		for _, axis := range node.AttrInts("axes") {
			var err error
			updated, err = tensors.InsertAxis(updated, axis)
			if err != nil {
				klog.Warningf("constant folding: Unsqueeze failed: %v, not folding", err)
				return nil, false
			}
		}
		return updated, true

	case ir.OpTranspose:
		if len(inputs) != 1 {
			klog.Warningf("constant folding: invalid number of inputs (%d) for Transpose op, not folding",
				len(inputs))
			return nil, false
		}
		if !hasIntsAttr(node, "perm") {
			return nil, false
		}
		updated, err := tensors.Transpose(inputs[0], node.AttrInts("perm")...)
		if err != nil {
			klog.Warningf("constant folding: Transpose failed: %v, not folding", err)
			return nil, false
		}
		return updated, true

	case ir.OpCast:
		if len(inputs) != 1 {
			klog.Warningf("constant folding: invalid number of inputs (%d) for Cast op, not folding",
				len(inputs))
			return nil, false
		}
		if node.AttrKindOf("to") != ir.AttrKindInt {
			return nil, false
		}
		dtype, found := onnxTypeToDType[node.AttrInt("to")]
		if !found {
			klog.Warningf("constant folding: unrecognized Cast type code %d, not folding", node.AttrInt("to"))
			return nil, false
		}
		updated, err := tensors.ConvertDType(inputs[0], dtype)
		if err != nil {
			klog.Warningf("constant folding: Cast failed: %v, not folding", err)
			return nil, false
		}
		return updated, true
	}
	return nil, false
}
