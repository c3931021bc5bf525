package program

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// ErrMalformedTemplate marks templates that violate a load-time invariant.
var ErrMalformedTemplate = errors.New("malformed template")

// placeholderPattern matches <Z>, <C2>, ... in template text.
var placeholderPattern = regexp.MustCompile(`<[A-Za-z0-9]+>`)

// #region group-type
// GroupType says whether a template's filter must select exactly one object
// per scene or several.
type GroupType string

const (
	GroupUnique   GroupType = "unique"
	GroupMultiple GroupType = "multiple"
)

// GroupTypes lists the group types in file order.
var GroupTypes = []GroupType{GroupUnique, GroupMultiple}

// #endregion group-type

// #region constraints
// ParamRule constrains whether a placeholder ends up grounded.
type ParamRule string

const (
	RuleInstantiated ParamRule = "instantiated"
	RuleNull         ParamRule = "null"
)

// Constraints are the template-level grounding rules.
type Constraints struct {
	// ChooseExactly requires the filter group's attribute types to equal the
	// types of the filter node's placeholders.
	ChooseExactly bool
	// ChooseAll grounds every declared transform parameter.
	ChooseAll bool
	Params    map[string]ParamRule
}

// Rule returns the rule for a placeholder, if any.
func (c Constraints) Rule(name string) (ParamRule, bool) {
	r, ok := c.Params[name]
	return r, ok
}

func (c Constraints) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(c.Params)+2)
	if c.ChooseExactly {
		out["filter"] = "choose_exactly"
	}
	if c.ChooseAll {
		out["transform"] = "choose_all"
	}
	for k, v := range c.Params {
		out[k] = string(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an object or an empty array.
func (c *Constraints) UnmarshalJSON(data []byte) error {
	*c = Constraints{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("%w: constraints: %v", ErrMalformedTemplate, err)
		}
		if len(list) > 0 {
			return fmt.Errorf("%w: constraints must be an object or an empty list", ErrMalformedTemplate)
		}
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("%w: constraints: %v", ErrMalformedTemplate, err)
	}
	for k, v := range raw {
		switch k {
		case "filter":
			if v != "choose_exactly" {
				return fmt.Errorf("%w: unknown filter constraint %q", ErrMalformedTemplate, v)
			}
			c.ChooseExactly = true
		case "transform":
			if v != "choose_all" {
				return fmt.Errorf("%w: unknown transform constraint %q", ErrMalformedTemplate, v)
			}
			c.ChooseAll = true
		default:
			rule := ParamRule(v)
			if rule != RuleInstantiated && rule != RuleNull {
				return fmt.Errorf("%w: unknown rule %q for %s", ErrMalformedTemplate, v, k)
			}
			if c.Params == nil {
				c.Params = make(map[string]ParamRule)
			}
			c.Params[k] = rule
		}
	}
	return nil
}

// #endregion constraints

// #region template
// Param declares a placeholder and its attribute type.
type Param struct {
	Type scene.AttributeType `json:"type"`
	Name string              `json:"name"`
}

// Template is an abstract program with placeholders.
type Template struct {
	Text        []string    `json:"text"`
	Group       GroupType   `json:"group"`
	Nodes       Program     `json:"nodes"`
	Params      []Param     `json:"params"`
	Constraints Constraints `json:"constraints"`
}

// ParamType returns the declared type of a placeholder.
func (t *Template) ParamType(name string) (scene.AttributeType, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p.Type, true
		}
	}
	return "", false
}

// Validate checks the load-time structural invariants.
func (t *Template) Validate() error {
	if len(t.Text) == 0 {
		return fmt.Errorf("%w: no text", ErrMalformedTemplate)
	}
	if t.Group != GroupUnique && t.Group != GroupMultiple {
		return fmt.Errorf("%w: unknown group %q", ErrMalformedTemplate, t.Group)
	}
	if len(t.Nodes) < 2 {
		return fmt.Errorf("%w: needs at least a scene and a filter node", ErrMalformedTemplate)
	}
	if t.Nodes[0].Kind != KindScene {
		return fmt.Errorf("%w: node 0 must be scene, got %s", ErrMalformedTemplate, t.Nodes[0].Type())
	}
	if t.Nodes[1].Kind != KindFilterTemplate || len(t.Nodes[1].SideInputs) == 0 {
		return fmt.Errorf("%w: node 1 must be a filter with at least one placeholder", ErrMalformedTemplate)
	}
	if err := t.Nodes.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}

	declared := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if _, err := scene.ParseAttributeType(string(p.Type)); err != nil {
			return fmt.Errorf("%w: param %s: %v", ErrMalformedTemplate, p.Name, err)
		}
		declared[p.Name] = true
	}
	for i, n := range t.Nodes {
		for _, s := range n.SideInputs {
			if placeholderPattern.MatchString(s) && !declared[s] {
				return fmt.Errorf("%w: node %d uses undeclared placeholder %s", ErrMalformedTemplate, i, s)
			}
			if !n.Kind.Expanded() && !declared[s] {
				return fmt.Errorf("%w: node %d side input %q is not a placeholder", ErrMalformedTemplate, i, s)
			}
			if typ, ok := t.ParamType(s); ok && n.Kind.HasAttribute() && typ != n.Attr {
				return fmt.Errorf("%w: node %d %s takes a %s placeholder, got %s (%s)", ErrMalformedTemplate, i, n.Type(), n.Attr, s, typ)
			}
		}
		if n.Kind == KindFilterTemplate || n.Kind == KindTransformTemplate {
			for _, s := range n.SideInputs {
				typ, _ := t.ParamType(s)
				if !typ.Filterable() {
					return fmt.Errorf("%w: node %d placeholder %s has type %s", ErrMalformedTemplate, i, s, typ)
				}
			}
		}
	}
	for _, text := range t.Text {
		for _, tok := range placeholderPattern.FindAllString(text, -1) {
			if !declared[tok] {
				return fmt.Errorf("%w: text uses undeclared placeholder %s", ErrMalformedTemplate, tok)
			}
		}
	}
	for name := range t.Constraints.Params {
		if !declared[name] {
			return fmt.Errorf("%w: constraint on undeclared placeholder %s", ErrMalformedTemplate, name)
		}
	}
	return nil
}

// Clone deep-copies the template.
func (t *Template) Clone() Template {
	out := Template{
		Text:   slices.Clone(t.Text),
		Group:  t.Group,
		Nodes:  t.Nodes.Clone(),
		Params: slices.Clone(t.Params),
		Constraints: Constraints{
			ChooseExactly: t.Constraints.ChooseExactly,
			ChooseAll:     t.Constraints.ChooseAll,
		},
	}
	if t.Constraints.Params != nil {
		out.Constraints.Params = make(map[string]ParamRule, len(t.Constraints.Params))
		for k, v := range t.Constraints.Params {
			out.Constraints.Params[k] = v
		}
	}
	return out
}

// FilterTypes returns the sorted, de-duplicated attribute types of a
// filter node's placeholders.
func (t *Template) FilterTypes(n Node) []scene.AttributeType {
	seen := make(map[scene.AttributeType]bool)
	var out []scene.AttributeType
	for _, s := range n.SideInputs {
		typ, ok := t.ParamType(s)
		if ok && !seen[typ] {
			seen[typ] = true
			out = append(out, typ)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Placeholders returns every placeholder token in the text.
func Placeholders(text string) []string {
	return placeholderPattern.FindAllString(text, -1)
}

// #endregion template
