package interpreter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene/scenetest"
)

func tenObjects() scene.Scene {
	return scenetest.Scene(4,
		scenetest.Obj("large", "red", "metal", "cube"),
		scenetest.Obj("small", "red", "rubber", "cube"),
		scenetest.Obj("large", "red", "rubber", "cube"),
		scenetest.Obj("small", "blue", "metal", "cube"),
		scenetest.Obj("large", "red", "metal", "sphere"),
		scenetest.Obj("small", "green", "rubber", "cylinder"),
		scenetest.Obj("large", "gray", "metal", "sphere"),
		scenetest.Obj("small", "blue", "rubber", "sphere"),
		scenetest.Obj("large", "yellow", "metal", "cylinder"),
		scenetest.Obj("small", "purple", "rubber", "cube"),
	)
}

func filter(attr scene.AttributeType, in int, v string) program.Node {
	return program.Node{Kind: program.KindFilter, Attr: attr, Inputs: []int{in}, SideInputs: []string{v}}
}

func TestFilterChainSelectsMatchingObjects(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "red"),
		filter(scene.Shape, 1, "cube"),
		{Kind: program.KindCount, Inputs: []int{2}},
	}
	out, err := interpreter.Execute(p, tenObjects())
	require.NoError(t, err)
	assert.Equal(t, interpreter.OutputInt, out.Kind)
	assert.Equal(t, 3, out.Int)
}

func TestFinalObjectListIsWrappedAsScene(t *testing.T) {
	src := tenObjects()
	src.Relationships = json.RawMessage(`{"left":[[1],[0]]}`)
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "red"),
		filter(scene.Shape, 1, "cube"),
	}
	out, err := interpreter.Execute(p, src)
	require.NoError(t, err)
	require.Equal(t, interpreter.OutputScene, out.Kind)
	assert.Len(t, out.Scene.Objects, 3)
	assert.Equal(t, src.ImageFilename, out.Scene.ImageFilename)
	assert.JSONEq(t, `{"left":[[1],[0]]}`, string(out.Scene.Relationships))
	assert.True(t, out.IsStructured())
}

func TestTransformOnlyTouchesSelectedObjects(t *testing.T) {
	src := tenObjects()
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "blue"),
		{Kind: program.KindTransform, Attr: scene.Color, Inputs: []int{0, 1}, SideInputs: []string{"red"}},
		filter(scene.Color, 2, "red"),
		{Kind: program.KindCount, Inputs: []int{3}},
	}
	out, err := interpreter.Execute(p, src)
	require.NoError(t, err)
	assert.Equal(t, 6, out.Int, "4 red objects plus 2 recoloured blue ones")

	// The source scene is untouched.
	assert.True(t, src.Objects[3].Color.Matches("blue"))
}

func TestRemoveAndCount(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "red"),
		{Kind: program.KindRemove, Inputs: []int{0, 1}},
		filter(scene.Shape, 2, "cube"),
		{Kind: program.KindCount, Inputs: []int{3}},
	}
	out, err := interpreter.Execute(p, tenObjects())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Int, "blue cube and purple cube remain")
}

func TestUniqueAndQuery(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "yellow"),
		{Kind: program.KindUnique, Inputs: []int{1}},
		{Kind: program.KindQuery, Attr: scene.Shape, Inputs: []int{2}},
	}
	out, err := interpreter.Execute(p, tenObjects())
	require.NoError(t, err)
	assert.Equal(t, interpreter.String("cylinder"), out)
}

func TestInvalidStopsExecution(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "red"),
		{Kind: program.KindUnique, Inputs: []int{1}},
		{Kind: program.KindQuery, Attr: scene.Shape, Inputs: []int{2}},
	}
	outs, err := interpreter.ExecuteAll(p, tenObjects())
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.True(t, outs[2].IsInvalid())

	last, err := interpreter.Execute(p, tenObjects())
	require.NoError(t, err)
	assert.True(t, last.IsInvalid())
}

func TestExist(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Color, 0, "cyan"),
		{Kind: program.KindExist, Inputs: []int{1}},
	}
	out, err := interpreter.Execute(p, tenObjects())
	require.NoError(t, err)
	assert.Equal(t, interpreter.Bool(false), out)
}

func TestUnexpandedTemplateNodeIsFatal(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		{Kind: program.KindFilterTemplate, Inputs: []int{0}, SideInputs: []string{"<C>"}},
	}
	_, err := interpreter.Execute(p, tenObjects())
	assert.ErrorIs(t, err, interpreter.ErrUnknownOperation)
}

func TestForwardReferenceIsFatal(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		{Kind: program.KindCount, Inputs: []int{2}},
		filter(scene.Color, 0, "red"),
	}
	_, err := interpreter.Execute(p, tenObjects())
	assert.ErrorIs(t, err, interpreter.ErrArity)
}

func TestTypeMismatchIsFatal(t *testing.T) {
	p := program.Program{
		{Kind: program.KindScene},
		{Kind: program.KindCount, Inputs: []int{0}},
		{Kind: program.KindCount, Inputs: []int{1}},
	}
	_, err := interpreter.Execute(p, tenObjects())
	assert.ErrorIs(t, err, interpreter.ErrTypeMismatch)
}

func TestExecutionIsIdempotent(t *testing.T) {
	src := tenObjects()
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Size, 0, "large"),
		{Kind: program.KindTransform, Attr: scene.Material, Inputs: []int{0, 1}, SideInputs: []string{"rubber"}},
	}
	first, err := interpreter.Execute(p, src)
	require.NoError(t, err)
	second, err := interpreter.Execute(p, src)
	require.NoError(t, err)
	assert.Equal(t, first.Key(), second.Key())

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
}

func TestMultiValuedAttributesMatchMembers(t *testing.T) {
	o := scenetest.Obj("large", "red", "metal", "cube")
	o.Shape = scene.Multi("cube", "sphere")
	s := scenetest.Scene(1, o)
	p := program.Program{
		{Kind: program.KindScene},
		filter(scene.Shape, 0, "sphere"),
		{Kind: program.KindCount, Inputs: []int{1}},
	}
	out, err := interpreter.Execute(p, s)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Int)
}

func TestOutputJSONAndAnswerType(t *testing.T) {
	cases := []struct {
		out  interpreter.Output
		want string
		typ  string
	}{
		{interpreter.Int(3), `3`, "int"},
		{interpreter.Bool(true), `true`, "bool"},
		{interpreter.String("red"), `"red"`, "string"},
		{interpreter.Invalid(), `"__INVALID__"`, "string"},
		{interpreter.SceneOf(scenetest.Scene(2)), ``, "scene"},
	}
	for _, c := range cases {
		b, err := json.Marshal(c.out)
		require.NoError(t, err)
		if c.want != "" {
			assert.JSONEq(t, c.want, string(b))
		}
		assert.Equal(t, c.typ, interpreter.AnswerType(b))
	}
}
