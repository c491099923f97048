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

// Package fold implements constant folding over the ir package's single-block graph.
//
// Given a Block whose parameter inputs are partly bound by name to concrete tensors (the
// ParamMap), ConstantFold finds the nodes whose every input is already known -- either a
// bound parameter or a literal OpConstant node -- evaluates them eagerly with the tensors
// package kernels, and replaces each one with a freshly materialized parameter input
// carrying the result.
//
// This is not constant folding in the traditional sense, as it doesn't try particularly
// hard to evaluate operations on constant nodes. It is closer to a partial evaluation
// analysis, where operations over constants are lifted so they run once, before the real
// runtime inputs are known.
//
// Folding is a pure optimization: whenever a node cannot be folded (unsupported operator,
// malformed attributes, unsupported opset version) it is simply left in the graph, which
// stays correct, merely less folded.
//
// The pass assumes exclusive mutable access to both the Block and the ParamMap for its
// entire duration.
package fold

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnxfold/ir"
	"github.com/gomlx/onnxfold/types/tensors"
	"github.com/gomlx/onnxfold/types/xslices"
	"k8s.io/klog/v2"
)

// ParamMap maps parameter names to their concrete tensors. Entries correspond, by name,
// to parameter inputs of the Block being folded. Block inputs without an entry here are
// genuine runtime inputs, and nothing that depends on them is folded.
type ParamMap map[string]*tensors.Tensor

// paramBinding is a (name, tensor) pair: one ParamMap entry, keyed by the parameter
// input's Value in the valueToParamMap.
type paramBinding struct {
	name   string
	tensor *tensors.Tensor
}

// valueToParamMap associates the Block's parameter-input Values to their bindings. It is
// built once at pass entry, is the single source of truth for "is this value a constant"
// during the pass, and is projected back into the ParamMap at pass exit.
type valueToParamMap map[*ir.Value]paramBinding

// buildValueToParamMap builds the association for every Block input whose debug name is
// bound in the ParamMap.
func buildValueToParamMap(b *ir.Block, params ParamMap) valueToParamMap {
	valsToParams := make(valueToParamMap, len(params))
	for _, in := range b.Inputs() {
		if t, found := params[in.DebugName()]; found {
			valsToParams[in] = paramBinding{name: in.DebugName(), tensor: t}
		}
	}
	return valsToParams
}

// projectTo replaces the contents of the ParamMap with the surviving associations.
// It is a full replacement: parameters whose block input was erased as unused are dropped.
func (m valueToParamMap) projectTo(params ParamMap) {
	clear(params)
	for _, binding := range m {
		params[binding.name] = binding.tensor
	}
}

// eraseUnused drops associations whose Value no longer has any uses.
func (m valueToParamMap) eraseUnused() {
	for v := range m {
		if !v.HasUses() {
			delete(m, v)
		}
	}
}

// eraseUnusedBlockInputs erases the Block inputs without uses, scanning in reverse index
// order so removals don't shift the indices still to be visited.
func eraseUnusedBlockInputs(b *ir.Block) {
	for i := b.NumInputs() - 1; i >= 0; i-- {
		if !b.Inputs()[i].HasUses() {
			b.EraseInput(i)
		}
	}
}

// isConstant returns whether the value is a foldable constant: a parameter input present
// in the association (which tells constant parameters apart from real runtime inputs), or
// the output of a literal-constant node carrying a concrete tensor value.
func isConstant(v *ir.Value, valsToParams valueToParamMap) bool {
	producer := v.Node()
	if producer.Op() == ir.OpParam {
		_, found := valsToParams[v]
		return found
	}
	return producer.Op() == ir.OpConstant && producer.AttrKindOf("value") == ir.AttrKindTensor
}

// areNodeInputsConstant returns whether every input of the node passes isConstant.
func areNodeInputsConstant(node *ir.Node, valsToParams valueToParamMap) bool {
	for _, in := range node.Inputs() {
		if !isConstant(in, valsToParams) {
			return false
		}
	}
	return true
}

// inputTensors materializes the concrete tensors of the node's inputs, which must all
// have passed isConstant. A classified constant that cannot be resolved to a tensor is a
// broken invariant, not a user-input problem, and panics.
func inputTensors(node *ir.Node, valsToParams valueToParamMap) []*tensors.Tensor {
	values := make([]*tensors.Tensor, 0, node.NumInputs())
	for _, in := range node.Inputs() {
		switch in.Node().Op() {
		case ir.OpParam:
			binding, found := valsToParams[in]
			if !found {
				exceptions.Panicf("fold.inputTensors: input %q not found amongst constant parameters",
					in.DebugName())
			}
			values = append(values, binding.tensor)
		case ir.OpConstant:
			values = append(values, in.Node().AttrTensor("value"))
		default:
			exceptions.Panicf("fold.inputTensors: unsupported kind %s of constant node", in.Node().Op())
		}
	}
	return values
}

// constantParentsToDestroy returns the node's input-producing OpConstant nodes for which
// this node is the only consumer. They must be collected before the node's inputs are
// removed: the decision is based on the use count while the edge still exists.
func constantParentsToDestroy(node *ir.Node) []*ir.Node {
	var parents []*ir.Node
	for _, in := range node.Inputs() {
		if in.Node().Op() == ir.OpConstant && in.NumUses() == 1 {
			parents = append(parents, in.Node())
		}
	}
	return parents
}

// ConstantFold updates the block in-place, folding every operation that only depends on
// constants into a new parameter input, and updates params to match the block's surviving
// parameter inputs.
//
// opsetVersion selects the attribute scheme of the Slice operator; only versions 9 and 10
// are supported -- with any other version the pass emits a warning and changes nothing.
//
// The node list is traversed once, in original order. Folded results are appended as new
// parameter inputs and inserted into the live association, so nodes later in the same
// traversal can consume them: a single pass reaches the fixed point.
func ConstantFold(b *ir.Block, params ParamMap, opsetVersion int) {
	if opsetVersion != 9 && opsetVersion != 10 {
		klog.Warningf("constant folding supported only for opsets 9 and 10 (got %d), not applied", opsetVersion)
		return
	}
	valsToParams := buildValueToParamMap(b, params)
	numFolded := 0
	for _, node := range xslices.Copy(b.Nodes()) {
		if node.IsDestroyed() {
			continue
		}
		if node.NumOutputs() > 1 {
			// Constant folding for multiple-output nodes is not supported.
			continue
		}
		if !areNodeInputsConstant(node, valsToParams) {
			continue
		}
		if node.NumInputs() == 0 {
			// A terminal node with no inputs, such as OpConstant.
			continue
		}
		inputs := inputTensors(node, valsToParams)
		updated, ok := runBackendForONNX(node, inputs, opsetVersion)
		if !ok {
			continue
		}

		// Create a new parameter input bound to the folded tensor, redirect the
		// downstream consumers to it, and disconnect the folded node.
		folded := b.AddInput("")
		folded.SetShape(updated.Shape())
		valsToParams[folded] = paramBinding{name: folded.DebugName(), tensor: updated}
		node.Output().ReplaceAllUsesWith(folded)

		// OpConstant parents this node exclusively owned are destroyed first, based on
		// their use count before the input edges are removed. Parents that were
		// parameter inputs instead are erased by eraseUnusedBlockInputs below.
		parents := constantParentsToDestroy(node)
		node.RemoveAllInputs()
		for _, parent := range parents {
			parent.Destroy()
		}
		node.Destroy()
		numFolded++
	}
	valsToParams.eraseUnused()
	eraseUnusedBlockInputs(b)
	valsToParams.projectTo(params)

	if numFolded > 0 {
		var memory uintptr
		for _, t := range params {
			memory += t.Memory()
		}
		klog.V(1).Infof("constant folding: folded %d nodes, %d parameters now hold %s",
			numFolded, len(params), humanize.Bytes(uint64(memory)))
		klog.V(2).Infof("constant folding: parameters after folding: %v", xslices.SortedKeys(params))
	}
}
