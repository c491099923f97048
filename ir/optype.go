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

package ir

// OpType is an enum of the operator kinds a Node can carry.
//
// Only a small vocabulary is distinguished: OpParam (the pseudo-node producing the block
// parameter inputs), OpConstant (a literal tensor embedded in the graph) and the operators
// the eager evaluation backend knows about. Every other kind (OpAdd, OpRelu, OpShape, ...)
// is carried through the graph untouched.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=Op -output=gen_optype_enumer.go optype.go

const (
	OpInvalid OpType = iota

	// OpParam is the pseudo-node whose outputs are the parameter inputs of a Block.
	// There is exactly one per Block, and it is not part of the node list.
	OpParam

	// OpConstant is a literal-constant node: its "value" attribute holds the tensor it
	// produces.
	OpConstant

	OpSlice
	OpConcat
	OpUnsqueeze
	OpTranspose
	OpCast

	// Operator kinds below are opaque: representable in the graph, never evaluated.

	OpAdd
	OpRelu
	OpShape
)
