package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// ErrUnknownNodeType is returned when a node type string names no operation.
var ErrUnknownNodeType = errors.New("unknown node type")

// #region kind
// Kind is the closed set of program operations. FilterTemplate and
// TransformTemplate only appear in templates and are expanded into chains of
// single-attribute Filter and Transform nodes before execution.
type Kind int

const (
	KindScene Kind = iota
	KindFilter
	KindTransform
	KindRemove
	KindCount
	KindExist
	KindUnique
	KindQuery
	KindFilterTemplate
	KindTransformTemplate
)

var kindNames = map[Kind]string{
	KindScene:             "scene",
	KindFilter:            "filter",
	KindTransform:         "transform",
	KindRemove:            "remove",
	KindCount:             "count",
	KindExist:             "exist",
	KindUnique:            "unique",
	KindQuery:             "query",
	KindFilterTemplate:    "filter",
	KindTransformTemplate: "transform",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HasAttribute reports whether nodes of this kind act on one attribute.
func (k Kind) HasAttribute() bool {
	return k == KindFilter || k == KindTransform || k == KindQuery
}

// Expanded reports whether the kind can be executed directly.
func (k Kind) Expanded() bool {
	return k != KindFilterTemplate && k != KindTransformTemplate
}

// #endregion kind

// #region arity
type arity struct {
	inputs int
	// side < 0 means any number.
	side int
}

var arities = map[Kind]arity{
	KindScene:             {0, 0},
	KindFilter:            {1, 1},
	KindTransform:         {2, 1},
	KindRemove:            {2, 0},
	KindCount:             {1, 0},
	KindExist:             {1, 0},
	KindUnique:            {1, 0},
	KindQuery:             {1, 0},
	KindFilterTemplate:    {1, -1},
	KindTransformTemplate: {2, -1},
}

// #endregion arity

// #region parse-type
// ParseType splits a node type string such as "filter_color" into its kind
// and attribute.
func ParseType(s string) (Kind, scene.AttributeType, error) {
	switch s {
	case "scene":
		return KindScene, "", nil
	case "filter":
		return KindFilterTemplate, "", nil
	case "transform":
		return KindTransformTemplate, "", nil
	case "remove":
		return KindRemove, "", nil
	case "count":
		return KindCount, "", nil
	case "exist":
		return KindExist, "", nil
	case "unique":
		return KindUnique, "", nil
	}
	prefix, suffix, ok := strings.Cut(s, "_")
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
	}
	var kind Kind
	switch prefix {
	case "filter":
		kind = KindFilter
	case "transform":
		kind = KindTransform
	case "query":
		kind = KindQuery
	default:
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
	}
	attr, err := scene.ParseAttributeType(suffix)
	if err != nil || !attr.Filterable() {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
	}
	return kind, attr, nil
}

// #endregion parse-type
