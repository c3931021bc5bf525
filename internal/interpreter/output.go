package interpreter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// InvalidAnswer is the persisted form of the invalid sentinel.
const InvalidAnswer = "__INVALID__"

// #region output-kind
// OutputKind tags the variant held by an Output.
type OutputKind int

const (
	OutputInvalid OutputKind = iota
	OutputObjects
	OutputObject
	OutputInt
	OutputBool
	OutputString
	OutputScene
)

func (k OutputKind) String() string {
	switch k {
	case OutputInvalid:
		return "invalid"
	case OutputObjects:
		return "objects"
	case OutputObject:
		return "object"
	case OutputInt:
		return "int"
	case OutputBool:
		return "bool"
	case OutputString:
		return "string"
	case OutputScene:
		return "scene"
	}
	return fmt.Sprintf("output(%d)", int(k))
}

// #endregion output-kind

// #region output
// Output is the value produced by one node.
type Output struct {
	Kind    OutputKind
	Objects []scene.Object
	Int     int
	Bool    bool
	Str     string
	Scene   *scene.Scene
}

// Invalid is the sentinel that halts execution.
func Invalid() Output { return Output{Kind: OutputInvalid} }

// Objects wraps an object list.
func Objects(objs []scene.Object) Output { return Output{Kind: OutputObjects, Objects: objs} }

// Int wraps a count.
func Int(n int) Output { return Output{Kind: OutputInt, Int: n} }

// Bool wraps a boolean.
func Bool(b bool) Output { return Output{Kind: OutputBool, Bool: b} }

// String wraps an attribute value.
func String(s string) Output { return Output{Kind: OutputString, Str: s} }

// SceneOf wraps a scene.
func SceneOf(s scene.Scene) Output { return Output{Kind: OutputScene, Scene: &s} }

// IsInvalid reports whether the output is the invalid sentinel.
func (o Output) IsInvalid() bool { return o.Kind == OutputInvalid }

// IsStructured reports whether the output is a scene, an object or an object
// list. Such answers are exempt from the degeneracy check.
func (o Output) IsStructured() bool {
	switch o.Kind {
	case OutputScene, OutputObjects, OutputObject:
		return true
	}
	return false
}

// Key renders a comparable form used to detect identical answers.
func (o Output) Key() string {
	switch o.Kind {
	case OutputInt:
		return "int:" + strconv.Itoa(o.Int)
	case OutputBool:
		return "bool:" + strconv.FormatBool(o.Bool)
	case OutputString:
		return "str:" + o.Str
	case OutputObject, OutputObjects:
		ids := make([]string, len(o.Objects))
		for i, obj := range o.Objects {
			ids[i] = strconv.Itoa(obj.ID)
		}
		return o.Kind.String() + ":" + strings.Join(ids, ",")
	case OutputScene:
		b, _ := json.Marshal(o.Scene)
		return "scene:" + string(b)
	}
	return "invalid"
}

// MarshalJSON writes answers in the dataset format: numbers, booleans and
// strings as JSON scalars, scenes as scene objects.
func (o Output) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OutputInt:
		return json.Marshal(o.Int)
	case OutputBool:
		return json.Marshal(o.Bool)
	case OutputString:
		return json.Marshal(o.Str)
	case OutputScene:
		return json.Marshal(o.Scene)
	case OutputObjects:
		objs := o.Objects
		if objs == nil {
			objs = []scene.Object{}
		}
		return json.Marshal(objs)
	case OutputObject:
		if len(o.Objects) == 1 {
			return json.Marshal(o.Objects[0])
		}
	}
	return json.Marshal(InvalidAnswer)
}

// #endregion output

// #region answer-type
// AnswerType classifies a persisted answer as int, bool, string or scene.
func AnswerType(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "true" || trimmed == "false":
		return "bool"
	case strings.HasPrefix(trimmed, "{"):
		return "scene"
	case strings.HasPrefix(trimmed, `"`):
		return "string"
	case trimmed == "" || trimmed == "null":
		return "null"
	}
	if _, err := strconv.Atoi(trimmed); err == nil {
		return "int"
	}
	return "unknown"
}

// #endregion answer-type
