package filtergroup

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region option
// Option is one (attribute type, value) pair a group filters on. It is
// persisted as a two-element array, e.g. ["Color", "red"].
type Option struct {
	Type  scene.AttributeType
	Value string
}

func (o Option) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{string(o.Type), o.Value})
}

func (o *Option) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("filter option: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("filter option: want [type, value], got %d elements", len(pair))
	}
	typ, err := scene.ParseAttributeType(pair[0])
	if err != nil {
		return fmt.Errorf("filter option: %w", err)
	}
	*o = Option{Type: typ, Value: pair[1]}
	return nil
}

// Options is a sorted set of filter options.
type Options []Option

// Sorted returns a copy ordered by type, then value.
func (opts Options) Sorted() Options {
	out := make(Options, len(opts))
	copy(out, opts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Key renders a stable identity for the option set.
func (opts Options) Key() string {
	parts := make([]string, len(opts))
	for i, o := range opts.Sorted() {
		parts[i] = string(o.Type) + "=" + o.Value
	}
	return strings.Join(parts, ",")
}

// Types returns the sorted attribute types of the options.
func (opts Options) Types() []scene.AttributeType {
	seen := make(map[scene.AttributeType]bool, len(opts))
	var out []scene.AttributeType
	for _, o := range opts {
		if !seen[o.Type] {
			seen[o.Type] = true
			out = append(out, o.Type)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Program lays the options out as a scene node followed by a filter chain.
func (opts Options) Program() program.Program {
	p := program.Program{{Kind: program.KindScene}}
	for i, o := range opts {
		p = append(p, program.Node{
			Kind:       program.KindFilter,
			Attr:       o.Type,
			Inputs:     []int{i},
			SideInputs: []string{o.Value},
		})
	}
	return p
}

// #endregion option

// #region group
// Group is a batch of scenes that all satisfy the same filter options.
type Group struct {
	FilterOptions       Options                   `json:"filter_options"`
	InputImageFilenames []string                  `json:"input_image_filenames"`
	InputImageIndexes   []int                     `json:"input_image_indexes"`
	FilterPrograms      [][]program.PersistedNode `json:"filter_programs"`
}

// Len returns the number of scenes in the group.
func (g *Group) Len() int {
	return len(g.InputImageIndexes)
}

// #endregion group

// #region index
// Index maps group type to group index to group.
type Index struct {
	Unique   map[int]*Group `json:"unique"`
	Multiple map[int]*Group `json:"multiple"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Unique: map[int]*Group{}, Multiple: map[int]*Group{}}
}

// Groups returns the groups of one type.
func (ix *Index) Groups(gt program.GroupType) map[int]*Group {
	switch gt {
	case program.GroupUnique:
		return ix.Unique
	case program.GroupMultiple:
		return ix.Multiple
	}
	return nil
}

// Put stores a group under the given type and index.
func (ix *Index) Put(gt program.GroupType, idx int, g *Group) {
	switch gt {
	case program.GroupUnique:
		if ix.Unique == nil {
			ix.Unique = map[int]*Group{}
		}
		ix.Unique[idx] = g
	case program.GroupMultiple:
		if ix.Multiple == nil {
			ix.Multiple = map[int]*Group{}
		}
		ix.Multiple[idx] = g
	}
}

// Keys returns the group indexes of one type in ascending order.
func (ix *Index) Keys(gt program.GroupType) []int {
	groups := ix.Groups(gt)
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Candidates returns, in ascending order, the indexes of groups whose
// attribute type set equals types.
func (ix *Index) Candidates(gt program.GroupType, types []scene.AttributeType) []int {
	want := typeKey(types)
	var out []int
	for _, k := range ix.Keys(gt) {
		if typeKey(ix.Groups(gt)[k].FilterOptions.Types()) == want {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the total number of groups.
func (ix *Index) Len() int {
	return len(ix.Unique) + len(ix.Multiple)
}

func typeKey(types []scene.AttributeType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// #endregion index
