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
	"github.com/gomlx/onnxfold/types/shapes"
)

// Value is a single data edge of the graph: it has exactly one producer (a Node, or the
// Block's OpParam pseudo-node if it is a parameter input) and any number of uses.
type Value struct {
	id    int
	node  *Node
	name  string
	shape shapes.Shape
	uses  []Use
}

// Use records one consumer of a Value: the using node and the input position the Value
// occupies in it.
type Use struct {
	User       *Node
	InputIndex int
}

// Node returns the producer of the Value. For a parameter input this is the Block's
// OpParam pseudo-node.
func (v *Value) Node() *Node {
	return v.node
}

// DebugName returns the debug name of the Value. It defaults to a rendering of the
// Value's unique id within its Block.
func (v *Value) DebugName() string {
	return v.name
}

// SetDebugName changes the debug name of the Value. Names are unique within the Block: if
// another value already carries this name a ".N" suffix is appended. It returns the Value,
// so calls can be chained.
func (v *Value) SetDebugName(name string) *Value {
	if name == v.name {
		return v
	}
	b := v.node.block
	delete(b.valueNames, v.name)
	v.name = b.uniquifyName(name)
	b.valueNames[v.name] = true
	return v
}

// Shape returns the shape of the Value. It is shapes.Invalid() until set.
func (v *Value) Shape() shapes.Shape {
	return v.shape
}

// SetShape sets the shape of the Value. It returns the Value, so calls can be chained.
func (v *Value) SetShape(shape shapes.Shape) *Value {
	v.shape = shape
	return v
}

// Uses returns the current uses of the Value. The returned slice is owned by the Value
// and must not be modified.
func (v *Value) Uses() []Use {
	return v.uses
}

// NumUses returns the number of node inputs the Value currently feeds.
func (v *Value) NumUses() int {
	return len(v.uses)
}

// HasUses returns whether the Value feeds any node input.
func (v *Value) HasUses() bool {
	return len(v.uses) > 0
}

// ReplaceAllUsesWith rewires every use of v to the given Value: all nodes consuming v
// will consume other instead, and v is left with no uses.
func (v *Value) ReplaceAllUsesWith(other *Value) {
	if v == other {
		return
	}
	for _, use := range v.uses {
		use.User.inputs[use.InputIndex] = other
		other.uses = append(other.uses, use)
	}
	v.uses = nil
}

// removeUsesBy drops every use of v held by the given node.
func (v *Value) removeUsesBy(node *Node) {
	kept := v.uses[:0]
	for _, use := range v.uses {
		if use.User != node {
			kept = append(kept, use)
		}
	}
	v.uses = kept
}
