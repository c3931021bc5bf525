package grounding

import (
	"fmt"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
)

// #region builder
// Builder assembles a grounded program while tracking where each template
// node ended up. AppendChain is the only way to emit nodes, and it always
// points the original index at the last node of the chain, so downstream
// references resolve to the end of an expanded filter or transform.
type Builder struct {
	remap   []int
	emitted []bool
	nodes   program.Program
}

// NewBuilder starts a builder for a template with n nodes.
func NewBuilder(n int) *Builder {
	remap := make([]int, n)
	for i := range remap {
		remap[i] = i
	}
	return &Builder{remap: remap, emitted: make([]bool, n)}
}

// Next is the index the next appended node will get.
func (b *Builder) Next() int {
	return len(b.nodes)
}

// Resolve maps an original template index to its current grounded index.
// Reading a node that has not been emitted yet is a forward reference.
func (b *Builder) Resolve(orig int) (int, error) {
	if orig < 0 || orig >= len(b.remap) {
		return 0, fmt.Errorf("%w: reference to node %d out of range", ErrStructural, orig)
	}
	if !b.emitted[orig] {
		return 0, fmt.Errorf("%w: forward reference to node %d", ErrStructural, orig)
	}
	return b.remap[orig], nil
}

// AppendChain emits the nodes that replace template node orig. Every input
// must refer to an already emitted node.
func (b *Builder) AppendChain(orig int, chain []program.Node) error {
	if orig < 0 || orig >= len(b.remap) {
		return fmt.Errorf("%w: node %d out of range", ErrStructural, orig)
	}
	if b.emitted[orig] {
		return fmt.Errorf("%w: node %d expanded twice", ErrStructural, orig)
	}
	if len(chain) == 0 {
		return fmt.Errorf("%w: node %d expanded to nothing", ErrStructural, orig)
	}
	for k, n := range chain {
		pos := len(b.nodes) + k
		for _, in := range n.Inputs {
			if in < 0 || in >= pos {
				return fmt.Errorf("%w: node %d chain element %d reads %d", ErrStructural, orig, k, in)
			}
		}
	}
	b.nodes = append(b.nodes, chain...)
	b.remap[orig] = len(b.nodes) - 1
	b.emitted[orig] = true
	return nil
}

// Program returns the grounded program built so far.
func (b *Builder) Program() program.Program {
	return b.nodes.Clone()
}

// Remap returns a copy of the original-to-current index table.
func (b *Builder) Remap() []int {
	out := make([]int, len(b.remap))
	copy(out, b.remap)
	return out
}

// #endregion builder
