package interpreter

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

var (
	// ErrUnknownOperation is returned for node kinds with no handler,
	// including template nodes that were never expanded.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrArity is returned when a program breaks the index or arity rules.
	ErrArity = errors.New("arity violation")
	// ErrTypeMismatch is returned when a node receives the wrong kind of input.
	ErrTypeMismatch = errors.New("input type mismatch")
)

// #region execute
// Execute runs a program against a scene and returns the final output. A
// final object list is re-wrapped into a scene that keeps the source scene's
// metadata and relationships. The input scene is never modified.
func Execute(p program.Program, s scene.Scene) (Output, error) {
	outs, err := ExecuteAll(p, s)
	if err != nil {
		return Output{}, err
	}
	if len(outs) == 0 {
		return Invalid(), nil
	}
	last := outs[len(outs)-1]
	if last.Kind == OutputObjects {
		objs := make([]scene.Object, len(last.Objects))
		for i, o := range last.Objects {
			objs[i] = o.Clone()
		}
		return SceneOf(s.WithObjects(objs)), nil
	}
	return last, nil
}

// ExecuteAll runs a program and returns every node's output, stopping after
// the first invalid one.
func ExecuteAll(p program.Program, s scene.Scene) ([]Output, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArity, err)
	}
	work := s.Clone()
	for i := range work.Objects {
		work.Objects[i].ID = i
	}

	outs := make([]Output, 0, len(p))
	for i, n := range p {
		ins := make([]Output, len(n.Inputs))
		for j, idx := range n.Inputs {
			ins[j] = outs[idx]
		}
		out, err := run(n, ins, work)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, n.Type(), err)
		}
		outs = append(outs, out)
		if out.IsInvalid() {
			break
		}
	}
	return outs, nil
}

// #endregion execute

// #region handlers
func run(n program.Node, ins []Output, work scene.Scene) (Output, error) {
	switch n.Kind {
	case program.KindScene:
		return Objects(cloneAll(work.Objects)), nil

	case program.KindFilter:
		objs, err := objectsOf(ins[0])
		if err != nil {
			return Output{}, err
		}
		value := n.SideInputs[0]
		out := make([]scene.Object, 0, len(objs))
		for _, o := range objs {
			if o.Attr(n.Attr).Matches(value) {
				out = append(out, o.Clone())
			}
		}
		return Objects(out), nil

	case program.KindTransform:
		base, err := objectsOf(ins[0])
		if err != nil {
			return Output{}, err
		}
		sel, err := objectsOf(ins[1])
		if err != nil {
			return Output{}, err
		}
		ids := idSet(sel)
		out := cloneAll(base)
		for i := range out {
			if ids[out[i].ID] {
				if err := out[i].SetAttr(n.Attr, n.SideInputs[0]); err != nil {
					return Output{}, err
				}
			}
		}
		return Objects(out), nil

	case program.KindRemove:
		base, err := objectsOf(ins[0])
		if err != nil {
			return Output{}, err
		}
		sel, err := objectsOf(ins[1])
		if err != nil {
			return Output{}, err
		}
		ids := idSet(sel)
		out := make([]scene.Object, 0, len(base))
		for _, o := range base {
			if !ids[o.ID] {
				out = append(out, o.Clone())
			}
		}
		return Objects(out), nil

	case program.KindCount:
		objs, err := objectsOf(ins[0])
		if err != nil {
			return Output{}, err
		}
		return Int(len(objs)), nil

	case program.KindExist:
		objs, err := objectsOf(ins[0])
		if err != nil {
			return Output{}, err
		}
		return Bool(len(objs) > 0), nil

	case program.KindUnique:
		objs, err := objectsOf(ins[0])
		if err != nil {
			return Output{}, err
		}
		if len(objs) != 1 {
			return Invalid(), nil
		}
		return Output{Kind: OutputObject, Objects: []scene.Object{objs[0].Clone()}}, nil

	case program.KindQuery:
		if ins[0].Kind != OutputObject || len(ins[0].Objects) != 1 {
			return Invalid(), nil
		}
		v := ins[0].Objects[0].Attr(n.Attr)
		if len(v.Values()) != 1 {
			return Invalid(), nil
		}
		return String(v.Values()[0]), nil
	}
	return Output{}, fmt.Errorf("%w: %s", ErrUnknownOperation, n.Type())
}

func objectsOf(o Output) ([]scene.Object, error) {
	switch o.Kind {
	case OutputObjects:
		return o.Objects, nil
	case OutputScene:
		return o.Scene.Objects, nil
	}
	return nil, fmt.Errorf("%w: want objects, got %s", ErrTypeMismatch, o.Kind)
}

func cloneAll(objs []scene.Object) []scene.Object {
	out := make([]scene.Object, len(objs))
	for i, o := range objs {
		out[i] = o.Clone()
	}
	return out
}

func idSet(objs []scene.Object) map[int]bool {
	ids := make(map[int]bool, len(objs))
	for _, o := range objs {
		ids[o.ID] = true
	}
	return ids
}

// #endregion handlers
