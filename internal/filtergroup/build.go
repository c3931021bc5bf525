package filtergroup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region config
// BuildConfig bounds index construction.
type BuildConfig struct {
	InstancesPerTemplate int           // option sets to keep per unique template
	ScenesPerGroup       int           // scenes per group
	MaxTime              time.Duration // wall-clock cap per template
}

// DefaultBuildConfig mirrors the dataset defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		InstancesPerTemplate: 50,
		ScenesPerGroup:       5,
		MaxTime:              100 * time.Second,
	}
}

// #endregion config

// #region grouping-templates
// GroupingTemplates are [scene, filter(placeholders...)] templates keyed by
// the group type they populate.
type GroupingTemplates struct {
	Unique   []program.Template `json:"unique"`
	Multiple []program.Template `json:"multiple"`
}

// LoadGroupingTemplates reads and validates a grouping template file. The
// group field of each template is taken from the key it is listed under.
func LoadGroupingTemplates(path string) (GroupingTemplates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GroupingTemplates{}, fmt.Errorf("read grouping templates: %w", err)
	}
	var gts GroupingTemplates
	if err := json.Unmarshal(data, &gts); err != nil {
		return GroupingTemplates{}, fmt.Errorf("decode grouping templates: %w", err)
	}
	for _, gt := range program.GroupTypes {
		ts := gts.For(gt)
		for i := range ts {
			ts[i].Group = gt
			if len(ts[i].Text) == 0 {
				ts[i].Text = []string{string(gt)}
			}
			if err := ts[i].Validate(); err != nil {
				return GroupingTemplates{}, fmt.Errorf("%s grouping template %d: %w", gt, i, err)
			}
		}
	}
	return gts, nil
}

// For returns the templates of one group type.
func (g GroupingTemplates) For(gt program.GroupType) []program.Template {
	if gt == program.GroupUnique {
		return g.Unique
	}
	return g.Multiple
}

// #endregion grouping-templates

// #region builder
// Builder scans a scene corpus for option sets that select exactly one
// object (unique) or several objects (multiple) in enough scenes.
type Builder struct {
	cfg    BuildConfig
	rng    sample.Source
	logger *zap.Logger
	now    func() time.Time
}

// NewBuilder creates a builder. A nil logger discards output.
func NewBuilder(cfg BuildConfig, rng sample.Source, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, rng: rng, logger: logger, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build runs every grouping template and assigns group indexes from one
// running counter shared by both group types.
func (b *Builder) Build(ctx context.Context, corpus *scene.Corpus, templates GroupingTemplates) (*Index, error) {
	ix := NewIndex()
	next := 0
	for _, gt := range program.GroupTypes {
		target := b.cfg.InstancesPerTemplate
		if gt == program.GroupMultiple {
			target *= len(templates.Unique)
		}
		for i, tmpl := range templates.For(gt) {
			groups, err := b.buildTemplate(ctx, corpus, tmpl, gt, target)
			if err != nil {
				return nil, fmt.Errorf("%s template %d: %w", gt, i, err)
			}
			for _, g := range groups {
				ix.Put(gt, next, g)
				next++
			}
			b.logger.Info("grouped scenes",
				zap.String("group", string(gt)),
				zap.Int("template", i),
				zap.Int("groups", len(groups)),
				zap.Int("next_index", next),
			)
		}
	}
	return ix, nil
}

type hit struct {
	scene int
	opts  Options
}

func (b *Builder) buildTemplate(ctx context.Context, corpus *scene.Corpus, tmpl program.Template, gt program.GroupType, target int) ([]*Group, error) {
	n := b.cfg.ScenesPerGroup
	if n < 1 {
		return nil, fmt.Errorf("scenes per group must be positive, got %d", n)
	}
	order := make([]int, corpus.Len())
	for i := range order {
		order[i] = i
	}
	sample.Shuffle(b.rng, order)

	hits := make(map[string][]hit)
	var discovered []string
	valid := 0
	start := b.now()

scan:
	for _, si := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := corpus.Scenes[si]
		for _, opts := range proposals(tmpl, s) {
			ok, err := selects(opts, s, gt)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			key := opts.Key()
			if _, seen := hits[key]; !seen {
				discovered = append(discovered, key)
			}
			hits[key] = append(hits[key], hit{scene: si, opts: opts})
			if len(hits[key]) == n {
				valid++
			}
		}
		if valid >= target {
			break scan
		}
		if b.cfg.MaxTime > 0 && b.now().Sub(start) > b.cfg.MaxTime {
			b.logger.Warn("grouping out of time",
				zap.String("group", string(gt)),
				zap.Int("valid", valid),
				zap.Int("target", target),
			)
			break scan
		}
	}

	var keys []string
	for _, k := range discovered {
		if len(hits[k]) >= n {
			keys = append(keys, k)
		}
	}
	keys = sample.Sample(b.rng, keys, target)

	groups := make([]*Group, 0, len(keys))
	for _, k := range keys {
		chosen := sample.Sample(b.rng, hits[k], n)
		opts := chosen[0].opts
		g := &Group{FilterOptions: opts}
		for _, h := range chosen {
			s := corpus.Scenes[h.scene]
			g.InputImageFilenames = append(g.InputImageFilenames, s.ImageFilename)
			g.InputImageIndexes = append(g.InputImageIndexes, s.ImageIndex)
			g.FilterPrograms = append(g.FilterPrograms, opts.Program().Persisted())
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// #endregion builder

// #region proposals
// proposals enumerates, for every object in the scene, every non-empty subset
// of the grouping filter's placeholder types bound to that object's values.
// Placeholders constrained to null are never used; placeholders constrained
// to be instantiated appear in every subset.
func proposals(tmpl program.Template, s scene.Scene) []Options {
	var free, required []scene.AttributeType
	for _, name := range tmpl.Nodes[1].SideInputs {
		typ, _ := tmpl.ParamType(name)
		switch rule, _ := tmpl.Constraints.Rule(name); rule {
		case program.RuleNull:
			continue
		case program.RuleInstantiated:
			required = appendType(required, typ)
		default:
			free = appendType(free, typ)
		}
	}
	var filteredFree []scene.AttributeType
	for _, t := range free {
		if !containsType(required, t) {
			filteredFree = append(filteredFree, t)
		}
	}

	seen := make(map[string]bool)
	var out []Options
	for _, obj := range s.Objects {
		for mask := 0; mask < 1<<len(filteredFree); mask++ {
			types := append([]scene.AttributeType(nil), required...)
			for i, t := range filteredFree {
				if mask&(1<<i) != 0 {
					types = append(types, t)
				}
			}
			if len(types) == 0 {
				continue
			}
			for _, opts := range bind(obj, types) {
				opts = opts.Sorted()
				if k := opts.Key(); !seen[k] {
					seen[k] = true
					out = append(out, opts)
				}
			}
		}
	}
	return out
}

// bind expands list-valued attributes into one option set per combination.
func bind(obj scene.Object, types []scene.AttributeType) []Options {
	combos := []Options{nil}
	for _, t := range types {
		vals := obj.Attr(t).Values()
		if len(vals) == 0 {
			return nil
		}
		var next []Options
		for _, c := range combos {
			for _, v := range vals {
				cp := append(Options(nil), c...)
				next = append(next, append(cp, Option{Type: t, Value: v}))
			}
		}
		combos = next
	}
	return combos
}

// selects runs the option chain on the scene and checks the object count
// against the group type.
func selects(opts Options, s scene.Scene, gt program.GroupType) (bool, error) {
	count, err := Count(opts, s)
	if err != nil {
		return false, err
	}
	if gt == program.GroupUnique {
		return count == 1, nil
	}
	return count > 1, nil
}

// Count executes the option chain and returns how many objects it selects.
func Count(opts Options, s scene.Scene) (int, error) {
	p := opts.Program()
	p = append(p, program.Node{Kind: program.KindCount, Inputs: []int{len(p) - 1}})
	out, err := interpreter.Execute(p, s)
	if err != nil {
		return 0, fmt.Errorf("execute filter chain: %w", err)
	}
	return out.Int, nil
}

func appendType(ts []scene.AttributeType, t scene.AttributeType) []scene.AttributeType {
	if containsType(ts, t) {
		return ts
	}
	return append(ts, t)
}

func containsType(ts []scene.AttributeType, t scene.AttributeType) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

// #endregion proposals
