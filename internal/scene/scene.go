package scene

import (
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"strconv"
	"strings"
)

// #region object
// Object is one scene object. ID is assigned by the interpreter at the start
// of each execution and is never persisted. Fields the generator does not
// interpret (coordinates, rotation, ...) are kept verbatim in Extra.
type Object struct {
	ID       int
	Shape    AttrValue
	Color    AttrValue
	Size     AttrValue
	Material AttrValue
	Extra    map[string]json.RawMessage
}

// Attr returns the value of a filterable attribute.
func (o *Object) Attr(a AttributeType) AttrValue {
	switch a {
	case Shape:
		return o.Shape
	case Color:
		return o.Color
	case Size:
		return o.Size
	case Material:
		return o.Material
	}
	return AttrValue{}
}

// SetAttr overwrites a filterable attribute with a scalar value.
func (o *Object) SetAttr(a AttributeType, v string) error {
	switch a {
	case Shape:
		o.Shape = Single(v)
	case Color:
		o.Color = Single(v)
	case Size:
		o.Size = Single(v)
	case Material:
		o.Material = Single(v)
	default:
		return fmt.Errorf("attribute %s cannot be set on an object", a)
	}
	return nil
}

// Clone returns a deep copy of the object.
func (o Object) Clone() Object {
	return Object{
		ID:       o.ID,
		Shape:    o.Shape.clone(),
		Color:    o.Color.clone(),
		Size:     o.Size.clone(),
		Material: o.Material.clone(),
		Extra:    maps.Clone(o.Extra),
	}
}

func (o Object) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Extra)+4)
	for k, v := range o.Extra {
		out[k] = v
	}
	for _, a := range FilterableTypes {
		if v := o.Attr(a); !v.IsZero() {
			out[a.Field()] = v
		}
	}
	return json.Marshal(out)
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("object: %w", err)
	}
	*o = Object{}
	for _, a := range FilterableTypes {
		v, ok := raw[a.Field()]
		if !ok {
			continue
		}
		var av AttrValue
		if err := json.Unmarshal(v, &av); err != nil {
			return fmt.Errorf("object %s: %w", a.Field(), err)
		}
		switch a {
		case Shape:
			o.Shape = av
		case Color:
			o.Color = av
		case Size:
			o.Size = av
		case Material:
			o.Material = av
		}
		delete(raw, a.Field())
	}
	delete(raw, "id")
	if len(raw) > 0 {
		o.Extra = raw
	}
	return nil
}

// #endregion object

// #region scene
// Scene is a read-only symbolic description of one rendered image.
// Relationships and Directions are carried through untouched.
type Scene struct {
	ImageFilename string
	ImageIndex    int
	Split         string
	Objects       []Object
	Relationships json.RawMessage
	Directions    json.RawMessage
	Extra         map[string]json.RawMessage

	hasIndex bool
}

// Clone returns a copy whose objects can be mutated freely.
func (s Scene) Clone() Scene {
	out := s
	out.Objects = make([]Object, len(s.Objects))
	for i, o := range s.Objects {
		out.Objects[i] = o.Clone()
	}
	out.Extra = maps.Clone(s.Extra)
	return out
}

// WithObjects returns a scene that keeps this scene's metadata and
// relationship table but holds the given objects.
func (s Scene) WithObjects(objs []Object) Scene {
	out := s
	out.Objects = objs
	out.Extra = maps.Clone(s.Extra)
	return out
}

func (s Scene) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+6)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["image_filename"] = s.ImageFilename
	out["image_index"] = s.ImageIndex
	if s.Split != "" {
		out["split"] = s.Split
	}
	objs := s.Objects
	if objs == nil {
		objs = []Object{}
	}
	out["objects"] = objs
	if len(s.Relationships) > 0 {
		out["relationships"] = s.Relationships
	}
	if len(s.Directions) > 0 {
		out["directions"] = s.Directions
	}
	return json.Marshal(out)
}

func (s *Scene) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	*s = Scene{}
	take := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("scene %s: %w", key, err)
		}
		return nil
	}
	if err := take("image_filename", &s.ImageFilename); err != nil {
		return err
	}
	if _, ok := raw["image_index"]; ok {
		s.hasIndex = true
	}
	if err := take("image_index", &s.ImageIndex); err != nil {
		return err
	}
	if err := take("split", &s.Split); err != nil {
		return err
	}
	if err := take("objects", &s.Objects); err != nil {
		return err
	}
	if v, ok := raw["relationships"]; ok {
		s.Relationships = v
		delete(raw, "relationships")
	}
	if v, ok := raw["directions"]; ok {
		s.Directions = v
		delete(raw, "directions")
	}
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

// #endregion scene

// #region index-from-filename
// IndexFromFilename parses the trailing numeric component of an image
// filename, e.g. CLEVR_val_000012.png -> 12.
func IndexFromFilename(name string) (int, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(base, "_")
	idx, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, fmt.Errorf("image index from %q: %w", name, err)
	}
	return idx, nil
}

// #endregion index-from-filename
