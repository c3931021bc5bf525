package grounding

import (
	"fmt"
	"slices"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region types
// Grounded is one concrete instantiation of a template: executable program,
// rendered text and the example batch chosen by the first filter node.
type Grounded struct {
	Text       string
	Program    program.Program
	GroupType  program.GroupType
	GroupIndex int
	Group      *filtergroup.Group
	Bindings   map[string]string
}

// Grounder turns templates into grounded programs. It is not safe for
// concurrent use because it draws from a single random source.
type Grounder struct {
	meta  *scene.Metadata
	index *filtergroup.Index
	rng   sample.Source
}

// NewGrounder creates a grounder over a metadata table and filter-group index.
func NewGrounder(meta *scene.Metadata, index *filtergroup.Index, rng sample.Source) *Grounder {
	return &Grounder{meta: meta, index: index, rng: rng}
}

type attempt struct {
	tmpl  *program.Template
	b     *Builder
	bound map[string]string

	groupIndex int
	group      *filtergroup.Group
}

func (a *attempt) bind(name, value string) {
	a.bound[name] = value
}

// #endregion types

// #region ground
// Ground makes one grounding attempt. Structural problems wrap ErrStructural;
// transient failures are returned as *Rejection.
func (g *Grounder) Ground(tmpl program.Template) (Grounded, error) {
	t := tmpl.Clone()
	a := &attempt{
		tmpl:       &t,
		b:          NewBuilder(len(t.Nodes)),
		bound:      make(map[string]string),
		groupIndex: -1,
	}

	for orig, n := range t.Nodes {
		var err error
		switch n.Kind {
		case program.KindScene:
			err = a.b.AppendChain(orig, []program.Node{n.Clone()})
		case program.KindFilterTemplate:
			err = g.expandFilter(a, orig, n)
		case program.KindTransformTemplate:
			err = g.expandTransform(a, orig, n)
		default:
			err = g.groundOther(a, orig, n)
		}
		if err != nil {
			return Grounded{}, err
		}
	}
	if a.group == nil {
		return Grounded{}, fmt.Errorf("%w: template has no filter node", ErrStructural)
	}

	text, err := g.renderText(a)
	if err != nil {
		return Grounded{}, err
	}
	p := a.b.Program()
	if err := p.Validate(); err != nil {
		return Grounded{}, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	return Grounded{
		Text:       text,
		Program:    p,
		GroupType:  t.Group,
		GroupIndex: a.groupIndex,
		Group:      a.group,
		Bindings:   a.bound,
	}, nil
}

// #endregion ground

// #region filter
// expandFilter replaces an unexpanded filter with one single-attribute
// filter per option of a chosen group. The first filter fixes the example
// batch.
func (g *Grounder) expandFilter(a *attempt, orig int, n program.Node) error {
	var keys []int
	if a.tmpl.Constraints.ChooseExactly {
		req := a.tmpl.FilterTypes(n)
		keys = g.index.Candidates(a.tmpl.Group, req)
		if len(keys) == 0 {
			return fmt.Errorf("%w: no %s group filters exactly on %v", ErrStructural, a.tmpl.Group, req)
		}
	} else {
		keys = g.index.Keys(a.tmpl.Group)
		if len(keys) == 0 {
			return fmt.Errorf("%w: no %s groups in the index", ErrStructural, a.tmpl.Group)
		}
	}
	key := sample.Choice(g.rng, keys)
	group := g.index.Groups(a.tmpl.Group)[key]

	first, err := a.b.Resolve(n.Inputs[0])
	if err != nil {
		return err
	}
	start := a.b.Next()
	chain := make([]program.Node, 0, len(group.FilterOptions))
	for k, opt := range group.FilterOptions {
		in := first
		if k > 0 {
			in = start + k - 1
		}
		chain = append(chain, program.Node{
			Kind:       program.KindFilter,
			Attr:       opt.Type,
			Inputs:     []int{in},
			SideInputs: []string{opt.Value},
		})
		for _, p := range a.tmpl.Params {
			if p.Type == opt.Type && slices.Contains(n.SideInputs, p.Name) {
				a.bind(p.Name, opt.Value)
			}
		}
	}
	if err := a.b.AppendChain(orig, chain); err != nil {
		return err
	}
	if a.group == nil {
		a.group = group
		a.groupIndex = key
	}
	return nil
}

// #endregion filter

// #region transform
// expandTransform replaces an unexpanded transform with a chain of
// single-attribute transforms. Each grounded value is new to the attempt, so
// a transform never rewrites an attribute to a value already mentioned.
func (g *Grounder) expandTransform(a *attempt, orig int, n program.Node) error {
	var candidates []program.Param
	for _, p := range a.tmpl.Params {
		if slices.Contains(n.SideInputs, p.Name) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: transform node %d has no parameters", ErrStructural, orig)
	}
	chosen := candidates
	if !a.tmpl.Constraints.ChooseAll {
		chosen = sample.Sample(g.rng, candidates, sample.Between(g.rng, 1, len(candidates)))
	}

	base, err := a.b.Resolve(n.Inputs[0])
	if err != nil {
		return err
	}
	selector, err := a.b.Resolve(n.Inputs[1])
	if err != nil {
		return err
	}
	start := a.b.Next()
	chain := make([]program.Node, 0, len(chosen))
	for k, p := range chosen {
		choices := g.unusedValues(a, p.Type)
		if len(choices) == 0 {
			return reject(RejectNoTransformValue, "no unused %s value for %s", p.Type, p.Name)
		}
		value := sample.Choice(g.rng, choices)
		a.bind(p.Name, value)

		in := base
		if k > 0 {
			in = start + k - 1
		}
		chain = append(chain, program.Node{
			Kind:       program.KindTransform,
			Attr:       p.Type,
			Inputs:     []int{in, selector},
			SideInputs: []string{value},
		})
	}
	return a.b.AppendChain(orig, chain)
}

func (g *Grounder) unusedValues(a *attempt, typ scene.AttributeType) []string {
	used := make(map[string]bool, len(a.bound))
	for _, v := range a.bound {
		used[v] = true
	}
	var out []string
	for _, v := range g.meta.Values(typ) {
		if !used[v] {
			out = append(out, v)
		}
	}
	return out
}

// #endregion transform

// #region other
// groundOther copies any other node, substituting bound placeholder values
// and drawing a random legal value for placeholders still unbound.
func (g *Grounder) groundOther(a *attempt, orig int, n program.Node) error {
	out := program.Node{Kind: n.Kind, Attr: n.Attr}
	for _, s := range n.SideInputs {
		typ, isParam := a.tmpl.ParamType(s)
		if !isParam {
			out.SideInputs = append(out.SideInputs, s)
			continue
		}
		if v, ok := a.bound[s]; ok {
			out.SideInputs = append(out.SideInputs, v)
			continue
		}
		values := g.meta.Values(typ)
		if len(values) == 0 {
			return fmt.Errorf("%w: no legal values for %s (%s)", ErrStructural, s, typ)
		}
		v := sample.Choice(g.rng, values)
		a.bind(s, v)
		out.SideInputs = append(out.SideInputs, v)
	}
	for _, in := range n.Inputs {
		idx, err := a.b.Resolve(in)
		if err != nil {
			return err
		}
		out.Inputs = append(out.Inputs, idx)
	}
	return a.b.AppendChain(orig, []program.Node{out})
}

// #endregion other
