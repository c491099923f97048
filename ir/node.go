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

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnxfold/types/tensors"
)

// Node is one operator instance of the graph: an operator kind, ordered input and output
// Values, and a map of named attributes.
type Node struct {
	block     *Block
	op        OpType
	inputs    []*Value
	outputs   []*Value
	attrs     map[string]attribute
	destroyed bool
}

// AttrKind enumerates the types an attribute can take.
type AttrKind int

const (
	AttrKindInvalid AttrKind = iota
	AttrKindInt
	AttrKindFloat
	AttrKindInts
	AttrKindTensor
)

// attribute is the tagged union backing the Node attribute map.
type attribute struct {
	kind        AttrKind
	intValue    int
	floatValue  float64
	intsValue   []int
	tensorValue *tensors.Tensor
}

// Op returns the operator kind of the node.
func (n *Node) Op() OpType {
	return n.op
}

// Block returns the Block the node belongs to.
func (n *Node) Block() *Block {
	return n.block
}

// Inputs returns the ordered input Values of the node. The returned slice is owned by
// the node and must not be modified.
func (n *Node) Inputs() []*Value {
	return n.inputs
}

// NumInputs returns the number of inputs of the node.
func (n *Node) NumInputs() int {
	return len(n.inputs)
}

// Outputs returns the ordered output Values of the node. The returned slice is owned by
// the node and must not be modified.
func (n *Node) Outputs() []*Value {
	return n.outputs
}

// NumOutputs returns the number of outputs of the node.
func (n *Node) NumOutputs() int {
	return len(n.outputs)
}

// Output returns the single output of the node. It panics if the node doesn't have
// exactly one output.
func (n *Node) Output() *Value {
	if len(n.outputs) != 1 {
		exceptions.Panicf("Node.Output: node %s has %d outputs", n.op, len(n.outputs))
	}
	return n.outputs[0]
}

// AddOutput appends an extra output Value to the node and returns it.
func (n *Node) AddOutput() *Value {
	v := n.block.newValue(n)
	n.outputs = append(n.outputs, v)
	return v
}

// setAttr stores an attribute, lazily allocating the map.
func (n *Node) setAttr(name string, attr attribute) *Node {
	if n.attrs == nil {
		n.attrs = make(map[string]attribute)
	}
	n.attrs[name] = attr
	return n
}

// SetAttrInt sets an integer-valued attribute. It returns the node, so calls can be chained.
func (n *Node) SetAttrInt(name string, value int) *Node {
	return n.setAttr(name, attribute{kind: AttrKindInt, intValue: value})
}

// SetAttrFloat sets a float-valued attribute. It returns the node, so calls can be chained.
func (n *Node) SetAttrFloat(name string, value float64) *Node {
	return n.setAttr(name, attribute{kind: AttrKindFloat, floatValue: value})
}

// SetAttrInts sets an integer-array-valued attribute. It returns the node, so calls can
// be chained.
func (n *Node) SetAttrInts(name string, values []int) *Node {
	return n.setAttr(name, attribute{kind: AttrKindInts, intsValue: values})
}

// SetAttrTensor sets a tensor-valued attribute. It returns the node, so calls can be chained.
func (n *Node) SetAttrTensor(name string, value *tensors.Tensor) *Node {
	return n.setAttr(name, attribute{kind: AttrKindTensor, tensorValue: value})
}

// HasAttr returns whether the node carries an attribute with the given name.
func (n *Node) HasAttr(name string) bool {
	_, found := n.attrs[name]
	return found
}

// AttrKindOf returns the kind of the named attribute, or AttrKindInvalid if absent.
func (n *Node) AttrKindOf(name string) AttrKind {
	return n.attrs[name].kind
}

// attr returns the named attribute, panicking if absent or of the wrong kind.
func (n *Node) attr(name string, kind AttrKind) attribute {
	a, found := n.attrs[name]
	if !found {
		exceptions.Panicf("node %s has no attribute %q", n.op, name)
	}
	if a.kind != kind {
		exceptions.Panicf("node %s attribute %q has kind %d, wanted %d", n.op, name, a.kind, kind)
	}
	return a
}

// AttrInt returns the value of an integer attribute. It panics if the attribute is
// absent or not an integer -- check with HasAttr/AttrKindOf first.
func (n *Node) AttrInt(name string) int {
	return n.attr(name, AttrKindInt).intValue
}

// AttrFloat returns the value of a float attribute. It panics if the attribute is absent
// or not a float.
func (n *Node) AttrFloat(name string) float64 {
	return n.attr(name, AttrKindFloat).floatValue
}

// AttrInts returns the value of an integer-array attribute. It panics if the attribute
// is absent or not an integer array.
func (n *Node) AttrInts(name string) []int {
	return n.attr(name, AttrKindInts).intsValue
}

// AttrTensor returns the value of a tensor attribute. It panics if the attribute is
// absent or not a tensor.
func (n *Node) AttrTensor(name string) *tensors.Tensor {
	return n.attr(name, AttrKindTensor).tensorValue
}

// RemoveAllInputs disconnects the node from all of its inputs, dropping the
// corresponding entries from the producers' use lists.
func (n *Node) RemoveAllInputs() {
	for _, in := range n.inputs {
		in.removeUsesBy(n)
	}
	n.inputs = nil
}

// Destroy removes the node from its Block. The node must already be fully disconnected
// downstream: it panics if any output still has uses. Inputs are disconnected
// automatically.
func (n *Node) Destroy() {
	if n.destroyed {
		exceptions.Panicf("Node.Destroy: node %s destroyed twice", n.op)
	}
	if n.op == OpParam {
		exceptions.Panicf("Node.Destroy: cannot destroy the block's parameter pseudo-node")
	}
	for _, out := range n.outputs {
		if out.HasUses() {
			exceptions.Panicf("Node.Destroy: output %q of node %s still has %d uses",
				out.name, n.op, out.NumUses())
		}
	}
	n.RemoveAllInputs()
	n.block.removeNode(n)
	n.destroyed = true
}

// IsDestroyed returns whether the node was removed from its Block with Destroy.
func (n *Node) IsDestroyed() bool {
	return n.destroyed
}

// String returns a one-line rendering of the node, e.g. `%3 = Concat(%1, %2)`.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	ins := make([]string, 0, len(n.inputs))
	for _, in := range n.inputs {
		ins = append(ins, "%"+in.name)
	}
	outs := make([]string, 0, len(n.outputs))
	for _, out := range n.outputs {
		outs = append(outs, "%"+out.name)
	}
	return fmt.Sprintf("%s = %s(%s)", strings.Join(outs, ", "), n.op, strings.Join(ins, ", "))
}
