package scene

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// #region attribute-type
// AttributeType names a categorical object attribute. Relation is declared by
// templates but is never filtered or transformed.
type AttributeType string

const (
	Size     AttributeType = "Size"
	Color    AttributeType = "Color"
	Material AttributeType = "Material"
	Shape    AttributeType = "Shape"
	Relation AttributeType = "Relation"
)

// FilterableTypes lists the attribute types an object carries, in the order
// chains are laid out when several are selected at once.
var FilterableTypes = []AttributeType{Size, Color, Material, Shape}

// ParseAttributeType accepts either the capitalised name ("Color") or the
// lower-case node suffix ("color").
func ParseAttributeType(s string) (AttributeType, error) {
	switch strings.ToLower(s) {
	case "size":
		return Size, nil
	case "color":
		return Color, nil
	case "material":
		return Material, nil
	case "shape":
		return Shape, nil
	case "relation":
		return Relation, nil
	}
	return "", fmt.Errorf("unknown attribute type %q", s)
}

// Field returns the object field and node-type suffix for the attribute.
func (a AttributeType) Field() string {
	return strings.ToLower(string(a))
}

// Filterable reports whether objects carry a value for the attribute.
func (a AttributeType) Filterable() bool {
	return slices.Contains(FilterableTypes, a)
}

// #endregion attribute-type

// #region attr-value
// AttrValue holds one attribute of an object. Most scenes store a single
// string, but multi-valued fields are stored as JSON arrays and must survive
// a round trip in that form.
type AttrValue struct {
	values []string
	list   bool
}

// Single builds a scalar attribute value.
func Single(v string) AttrValue {
	return AttrValue{values: []string{v}}
}

// Multi builds a list-valued attribute value.
func Multi(vs ...string) AttrValue {
	return AttrValue{values: slices.Clone(vs), list: true}
}

// Matches reports whether v equals the value or is one of its members.
func (a AttrValue) Matches(v string) bool {
	return slices.Contains(a.values, v)
}

// Values returns a copy of the underlying values.
func (a AttrValue) Values() []string {
	return slices.Clone(a.values)
}

// IsZero reports whether no value is set.
func (a AttrValue) IsZero() bool {
	return len(a.values) == 0
}

func (a AttrValue) String() string {
	if a.list {
		return "[" + strings.Join(a.values, " ") + "]"
	}
	if len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

func (a AttrValue) clone() AttrValue {
	return AttrValue{values: slices.Clone(a.values), list: a.list}
}

func (a AttrValue) MarshalJSON() ([]byte, error) {
	if a.list {
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	}
	if len(a.values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(a.values[0])
}

func (a *AttrValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*a = AttrValue{}
		return nil
	case strings.HasPrefix(trimmed, "["):
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return fmt.Errorf("attribute list: %w", err)
		}
		*a = AttrValue{values: vs, list: true}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("attribute value: %w", err)
	}
	*a = Single(v)
	return nil
}

// #endregion attr-value
