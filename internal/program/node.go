package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// ErrInvalidProgram marks programs that break the index or arity invariants.
var ErrInvalidProgram = errors.New("invalid program")

// #region node
// Node is one operation in a program DAG. Inputs index earlier nodes; side
// inputs are literal attribute values or, in templates, placeholder names.
type Node struct {
	Kind       Kind
	Attr       scene.AttributeType
	Inputs     []int
	SideInputs []string
}

// Type renders the node type string, e.g. "filter_color".
func (n Node) Type() string {
	if n.Kind.HasAttribute() {
		return n.Kind.String() + "_" + n.Attr.Field()
	}
	return n.Kind.String()
}

// Clone deep-copies the node.
func (n Node) Clone() Node {
	return Node{
		Kind:       n.Kind,
		Attr:       n.Attr,
		Inputs:     slices.Clone(n.Inputs),
		SideInputs: slices.Clone(n.SideInputs),
	}
}

type nodeJSON struct {
	Type        string   `json:"type"`
	Inputs      []int    `json:"inputs"`
	SideInputs  []string `json:"side_inputs,omitempty"`
	ValueInputs []string `json:"value_inputs,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	inputs := n.Inputs
	if inputs == nil {
		inputs = []int{}
	}
	return json.Marshal(nodeJSON{Type: n.Type(), Inputs: inputs, SideInputs: n.SideInputs})
}

// UnmarshalJSON accepts both the working form (side_inputs) and the
// persisted form (value_inputs).
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("program node: %w", err)
	}
	kind, attr, err := ParseType(raw.Type)
	if err != nil {
		return err
	}
	side := raw.SideInputs
	if side == nil {
		side = raw.ValueInputs
	}
	*n = Node{Kind: kind, Attr: attr, Inputs: raw.Inputs, SideInputs: side}
	return nil
}

// #endregion node

// #region persisted
// PersistedNode is the on-disk form of a node in question and grouped-scene
// files, where side inputs are stored as value_inputs.
type PersistedNode struct {
	Type        string   `json:"type"`
	Inputs      []int    `json:"inputs"`
	ValueInputs []string `json:"value_inputs"`
}

// #endregion persisted

// #region program
// Program is an ordered node list. List order is execution order.
type Program []Node

// Clone deep-copies every node.
func (p Program) Clone() Program {
	out := make(Program, len(p))
	for i, n := range p {
		out[i] = n.Clone()
	}
	return out
}

// Validate checks that every input refers to an earlier node and that each
// node has the arity its kind requires.
func (p Program) Validate() error {
	for i, n := range p {
		ar, ok := arities[n.Kind]
		if !ok {
			return fmt.Errorf("%w: node %d: %v", ErrInvalidProgram, i, n.Kind)
		}
		if len(n.Inputs) != ar.inputs {
			return fmt.Errorf("%w: node %d (%s) takes %d inputs, has %d", ErrInvalidProgram, i, n.Type(), ar.inputs, len(n.Inputs))
		}
		if ar.side >= 0 && len(n.SideInputs) != ar.side {
			return fmt.Errorf("%w: node %d (%s) takes %d side inputs, has %d", ErrInvalidProgram, i, n.Type(), ar.side, len(n.SideInputs))
		}
		for _, in := range n.Inputs {
			if in < 0 || in >= i {
				return fmt.Errorf("%w: node %d (%s) reads node %d", ErrInvalidProgram, i, n.Type(), in)
			}
		}
	}
	return nil
}

// Expanded reports whether every node can be executed directly.
func (p Program) Expanded() bool {
	for _, n := range p {
		if !n.Kind.Expanded() {
			return false
		}
	}
	return true
}

// Persisted converts the program to its on-disk value_inputs form.
func (p Program) Persisted() []PersistedNode {
	out := make([]PersistedNode, len(p))
	for i, n := range p {
		inputs := slices.Clone(n.Inputs)
		if inputs == nil {
			inputs = []int{}
		}
		values := slices.Clone(n.SideInputs)
		if values == nil {
			values = []string{}
		}
		out[i] = PersistedNode{Type: n.Type(), Inputs: inputs, ValueInputs: values}
	}
	return out
}

// FromPersisted parses an on-disk program.
func FromPersisted(nodes []PersistedNode) (Program, error) {
	out := make(Program, len(nodes))
	for i, pn := range nodes {
		kind, attr, err := ParseType(pn.Type)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		out[i] = Node{Kind: kind, Attr: attr, Inputs: slices.Clone(pn.Inputs), SideInputs: slices.Clone(pn.ValueInputs)}
	}
	return out, nil
}

// #endregion program
