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

// Package ir implements the single-block dataflow IR over which the fold package operates.
//
// A Block holds an ordered list of parameter inputs (Value objects produced by a
// distinguished OpParam pseudo-node) and an ordered list of nodes. Each Node is an
// instance of an operator (OpType) with ordered input and output Values and a map of
// named, typed attributes. Each Value has exactly one producer and any number of uses
// (single static assignment); the use lists are kept consistent by every mutation.
//
// The IR is deliberately small: there is no nested control flow, no graph-wide type
// inference, and no serialization. It models the straight-line region of a computation
// graph as it looks right before export, which is all the constant-folding pass needs.
//
// The package is not safe for concurrent use: a Block and everything hanging off it
// assume a single mutator.
package ir

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnxfold/types/xslices"
)

// Block is a straight-line region of the computation graph: an ordered list of parameter
// inputs and an ordered list of nodes.
//
// Create one with New, add parameter inputs with AddInput and nodes with AddNode.
type Block struct {
	paramNode   *Node
	nodes       []*Node
	nextValueID int
	valueNames  map[string]bool
}

// New creates an empty Block.
func New() *Block {
	b := &Block{
		valueNames: make(map[string]bool),
	}
	b.paramNode = &Node{
		block: b,
		op:    OpParam,
	}
	return b
}

// uniquifyName returns name if no value of the Block carries it yet, otherwise name with a
// ".N" suffix appended, for the smallest N that makes it unique. Names stay reserved for
// the lifetime of the Block, even after the value is erased or destroyed.
func (b *Block) uniquifyName(name string) string {
	if !b.valueNames[name] {
		return name
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%d", name, n)
		if !b.valueNames[candidate] {
			return candidate
		}
	}
}

// newValue creates a Value produced by the given node, with a unique id within the Block.
// The default debug name is a rendering of the id, uniquified against the names already
// taken -- a user-named value may have claimed the same numeric string.
func (b *Block) newValue(node *Node) *Value {
	v := &Value{
		id:   b.nextValueID,
		node: node,
	}
	b.nextValueID++
	v.name = b.uniquifyName(fmt.Sprintf("%d", v.id))
	b.valueNames[v.name] = true
	return v
}

// AddInput appends a new parameter input to the Block and returns its Value.
// If name is empty the value keeps its default debug name, a rendering of its unique id.
func (b *Block) AddInput(name string) *Value {
	v := b.newValue(b.paramNode)
	if name != "" {
		v.SetDebugName(name)
	}
	b.paramNode.outputs = append(b.paramNode.outputs, v)
	return v
}

// Inputs returns the parameter inputs of the Block, in order. The returned slice is owned
// by the Block and must not be modified.
func (b *Block) Inputs() []*Value {
	return b.paramNode.outputs
}

// NumInputs returns the number of parameter inputs of the Block.
func (b *Block) NumInputs() int {
	return len(b.paramNode.outputs)
}

// EraseInput removes the parameter input at the given index. It panics if the index is
// out-of-range or if the input still has uses.
func (b *Block) EraseInput(index int) {
	if index < 0 || index >= b.NumInputs() {
		exceptions.Panicf("Block.EraseInput(%d): block has %d inputs", index, b.NumInputs())
	}
	v := b.paramNode.outputs[index]
	if v.HasUses() {
		exceptions.Panicf("Block.EraseInput(%d): input %q still has %d uses", index, v.name, len(v.uses))
	}
	b.paramNode.outputs = append(b.paramNode.outputs[:index], b.paramNode.outputs[index+1:]...)
}

// AddNode appends a new node with the given operator kind and inputs to the Block.
// The node is created with a single output Value; use Node.AddOutput for more.
func (b *Block) AddNode(op OpType, inputs ...*Value) *Node {
	if op == OpInvalid || op == OpParam {
		exceptions.Panicf("Block.AddNode: cannot create a node of kind %s", op)
	}
	n := &Node{
		block:  b,
		op:     op,
		inputs: xslices.Copy(inputs),
	}
	for i, in := range inputs {
		if in == nil {
			exceptions.Panicf("Block.AddNode(%s): input #%d is nil", op, i)
		}
		in.uses = append(in.uses, Use{User: n, InputIndex: i})
	}
	n.outputs = []*Value{b.newValue(n)}
	b.nodes = append(b.nodes, n)
	return n
}

// Nodes returns the live nodes of the Block, in order. The returned slice is owned by the
// Block and must not be modified -- callers that destroy nodes while iterating should
// iterate over a copy (see xslices.Copy).
func (b *Block) Nodes() []*Node {
	return b.nodes
}

// removeNode unlinks the node from the Block's node list.
func (b *Block) removeNode(node *Node) {
	for i, n := range b.nodes {
		if n == node {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			return
		}
	}
	exceptions.Panicf("Block.removeNode: node %s is not part of the block", node)
}

// String returns a multi-line listing of the Block, useful for tests and debugging.
func (b *Block) String() string {
	var sb strings.Builder
	names := make([]string, 0, b.NumInputs())
	for _, in := range b.Inputs() {
		names = append(names, "%"+in.name)
	}
	_, _ = fmt.Fprintf(&sb, "block(%s):\n", strings.Join(names, ", "))
	for _, n := range b.nodes {
		_, _ = fmt.Fprintf(&sb, "  %s\n", n)
	}
	return sb.String()
}
