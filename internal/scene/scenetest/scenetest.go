// Package scenetest builds small scenes and metadata for tests.
package scenetest

import (
	"fmt"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// Types are the CLEVR attribute values.
var Types = map[string][]string{
	"Color":    {"gray", "red", "blue", "green", "brown", "purple", "cyan", "yellow"},
	"Shape":    {"cube", "sphere", "cylinder"},
	"Size":     {"small", "large"},
	"Material": {"rubber", "metal"},
	"Relation": {"left", "right", "behind", "front"},
}

// Functions mirrors the extended metadata function table.
var Functions = []scene.Function{
	{Name: "scene", Inputs: []string{}, Output: "ObjectSet"},
	{Name: "filter", Inputs: []string{"ObjectSet"}, SideInputs: []string{"Size", "Color", "Material", "Shape"}, Output: "ObjectSet"},
	{Name: "transform", Inputs: []string{"ObjectSet", "ObjectSet"}, SideInputs: []string{"Size", "Color", "Material", "Shape"}, Output: "ObjectSet"},
	{Name: "remove", Inputs: []string{"ObjectSet", "ObjectSet"}, Output: "ObjectSet"},
	{Name: "count", Inputs: []string{"ObjectSet"}, Output: "Integer"},
	{Name: "exist", Inputs: []string{"ObjectSet"}, Output: "Bool"},
	{Name: "unique", Inputs: []string{"ObjectSet"}, Output: "Object"},
	{Name: "query_color", Inputs: []string{"Object"}, Output: "Color"},
	{Name: "query_shape", Inputs: []string{"Object"}, Output: "Shape"},
	{Name: "query_size", Inputs: []string{"Object"}, Output: "Size"},
	{Name: "query_material", Inputs: []string{"Object"}, Output: "Material"},
}

// Metadata returns CLEVR metadata.
func Metadata() *scene.Metadata {
	m, err := scene.NewMetadata("CLEVR-v1.0", Types, Functions)
	if err != nil {
		panic(err)
	}
	return m
}

// Obj builds an object from its four attributes.
func Obj(size, color, material, shape string) scene.Object {
	return scene.Object{
		Size:     scene.Single(size),
		Color:    scene.Single(color),
		Material: scene.Single(material),
		Shape:    scene.Single(shape),
	}
}

// Scene builds a scene with a CLEVR-style filename for the index.
func Scene(index int, objs ...scene.Object) scene.Scene {
	return scene.Scene{
		ImageFilename: fmt.Sprintf("CLEVR_val_%06d.png", index),
		ImageIndex:    index,
		Split:         "val",
		Objects:       objs,
	}
}

// Corpus indexes scenes under a val/1.0 header.
func Corpus(scenes ...scene.Scene) *scene.Corpus {
	info := scene.Info{}
	info.Set("split", "val")
	info.Set("version", "1.0")
	c, err := scene.NewCorpus(info, scenes)
	if err != nil {
		panic(err)
	}
	return c
}
