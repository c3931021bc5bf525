package filtergroup_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene/scenetest"
)

func groupingTemplate(gt program.GroupType) program.Template {
	return program.Template{
		Text:  []string{string(gt)},
		Group: gt,
		Nodes: program.Program{
			{Kind: program.KindScene},
			{Kind: program.KindFilterTemplate, Inputs: []int{0}, SideInputs: []string{"<Z>", "<C>", "<M>", "<S>"}},
		},
		Params: []program.Param{
			{Type: scene.Size, Name: "<Z>"}, {Type: scene.Color, Name: "<C>"},
			{Type: scene.Material, Name: "<M>"}, {Type: scene.Shape, Name: "<S>"},
		},
	}
}

func smallCorpus() *scene.Corpus {
	var scenes []scene.Scene
	for i := 0; i < 6; i++ {
		scenes = append(scenes, scenetest.Scene(i,
			scenetest.Obj("large", "red", "metal", "cube"),
			scenetest.Obj("small", "blue", "rubber", "sphere"),
			scenetest.Obj("small", "blue", "metal", "cylinder"),
		))
	}
	return scenetest.Corpus(scenes...)
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func buildIndex(t *testing.T) *filtergroup.Index {
	t.Helper()
	cfg := filtergroup.BuildConfig{InstancesPerTemplate: 2, ScenesPerGroup: 3, MaxTime: time.Minute}
	b := filtergroup.NewBuilder(cfg, sample.New(1, "groups"), nil)
	ix, err := b.Build(context.Background(), smallCorpus(), testGroupingTemplates())
	require.NoError(t, err)
	return ix
}

func testGroupingTemplates() filtergroup.GroupingTemplates {
	return filtergroup.GroupingTemplates{
		Unique:   []program.Template{groupingTemplate(program.GroupUnique)},
		Multiple: []program.Template{groupingTemplate(program.GroupMultiple)},
	}
}

func TestBuildSatisfiesGroupInvariant(t *testing.T) {
	ix := buildIndex(t)
	corpus := smallCorpus()

	assert.Len(t, ix.Unique, 2)
	assert.Len(t, ix.Multiple, 2)
	require.NoError(t, ix.Verify(corpus))

	for _, g := range ix.Multiple {
		assert.Equal(t, 3, g.Len())
		for _, opt := range g.FilterOptions {
			assert.NotEqual(t, "red", opt.Value, "red selects one object")
		}
	}
}

func TestBuildUsesOneRunningIndex(t *testing.T) {
	ix := buildIndex(t)
	assert.Equal(t, []int{0, 1}, ix.Keys(program.GroupUnique))
	assert.Equal(t, []int{2, 3}, ix.Keys(program.GroupMultiple))
}

func TestBuildStopsWhenOutOfTime(t *testing.T) {
	clock := time.Unix(0, 0)
	cfg := filtergroup.BuildConfig{InstancesPerTemplate: 2, ScenesPerGroup: 3, MaxTime: time.Second}
	b := filtergroup.NewBuilder(cfg, sample.New(1, ""), nil).WithClock(func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	})
	ix, err := b.Build(context.Background(), smallCorpus(), filtergroup.GroupingTemplates{
		Unique: []program.Template{groupingTemplate(program.GroupUnique)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len(), "one scene cannot fill a three-scene group")
}

func TestBuildHonoursNullConstraint(t *testing.T) {
	tmpl := groupingTemplate(program.GroupMultiple)
	tmpl.Constraints.Params = map[string]program.ParamRule{"<C>": program.RuleNull}
	cfg := filtergroup.BuildConfig{InstancesPerTemplate: 5, ScenesPerGroup: 2, MaxTime: time.Minute}
	ix, err := filtergroup.NewBuilder(cfg, sample.New(2, ""), nil).Build(context.Background(), smallCorpus(),
		filtergroup.GroupingTemplates{Unique: []program.Template{groupingTemplate(program.GroupUnique)}, Multiple: []program.Template{tmpl}})
	require.NoError(t, err)
	for _, g := range ix.Multiple {
		for _, opt := range g.FilterOptions {
			assert.NotEqual(t, scene.Color, opt.Type)
		}
	}
}

func TestVerifyCatchesBrokenGroup(t *testing.T) {
	ix := buildIndex(t)
	for _, g := range ix.Unique {
		g.FilterOptions = filtergroup.Options{{Type: scene.Color, Value: "blue"}}
		break
	}
	assert.Error(t, ix.Verify(smallCorpus()))
}

func TestCandidatesMatchTypeSetsExactly(t *testing.T) {
	ix := filtergroup.NewIndex()
	ix.Put(program.GroupMultiple, 4, &filtergroup.Group{FilterOptions: filtergroup.Options{{Type: scene.Color, Value: "blue"}}})
	ix.Put(program.GroupMultiple, 1, &filtergroup.Group{FilterOptions: filtergroup.Options{{Type: scene.Color, Value: "gray"}}})
	ix.Put(program.GroupMultiple, 2, &filtergroup.Group{FilterOptions: filtergroup.Options{
		{Type: scene.Color, Value: "blue"}, {Type: scene.Size, Value: "small"},
	}})

	assert.Equal(t, []int{1, 4}, ix.Candidates(program.GroupMultiple, []scene.AttributeType{scene.Color}))
	assert.Equal(t, []int{2}, ix.Candidates(program.GroupMultiple, []scene.AttributeType{scene.Size, scene.Color}))
	assert.Empty(t, ix.Candidates(program.GroupMultiple, []scene.AttributeType{scene.Shape}))
	assert.Empty(t, ix.Candidates(program.GroupUnique, []scene.AttributeType{scene.Color}))
}

func TestFileRoundTripUsesStringKeys(t *testing.T) {
	ix := buildIndex(t)
	corpus := smallCorpus()
	path := filepath.Join(t.TempDir(), "grouped.json")
	require.NoError(t, filtergroup.WriteFile(path, corpus.Info, ix))

	f, err := filtergroup.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ix.Keys(program.GroupUnique), f.GroupedScenes.Keys(program.GroupUnique))

	raw := f.GroupedScenes.Unique[0]
	b, err := json.Marshal(raw.FilterOptions)
	require.NoError(t, err)
	assert.Contains(t, string(b), `["`)

	loaded, err := filtergroup.LoadForCorpus(path, corpus)
	require.NoError(t, err)
	require.NoError(t, loaded.Verify(corpus))

	other := scenetest.Corpus()
	other.Info.Set("version", "2.0")
	_, err = filtergroup.LoadForCorpus(path, other)
	assert.Error(t, err)
}

func TestGroupStoreRoundTrip(t *testing.T) {
	store, err := filtergroup.NewGroupStore(newTestDB(t))
	require.NoError(t, err)

	_, found, err := store.Load("missing")
	require.NoError(t, err)
	assert.False(t, found)

	ix := buildIndex(t)
	fp, err := filtergroup.Fingerprint(smallCorpus().Info, 6, testGroupingTemplates(), filtergroup.DefaultBuildConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, store.Save(fp, ix))
	require.NoError(t, store.Save(fp, ix), "saving twice replaces")

	back, found, err := store.Load(fp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ix.Keys(program.GroupMultiple), back.Keys(program.GroupMultiple))
	assert.Equal(t, ix.Unique[0].FilterOptions.Key(), back.Unique[0].FilterOptions.Key())
}

func TestFingerprintCoversGroupingTemplates(t *testing.T) {
	info := smallCorpus().Info
	cfg := filtergroup.DefaultBuildConfig()

	colorOnly := testGroupingTemplates()
	shapeOnly := testGroupingTemplates()
	shapeOnly.Multiple[0].Nodes[1].SideInputs = []string{"<S>"}
	shapeOnly.Multiple[0].Params = []program.Param{{Type: scene.Shape, Name: "<S>"}}

	a, err := filtergroup.Fingerprint(info, 6, colorOnly, cfg, 1)
	require.NoError(t, err)
	b, err := filtergroup.Fingerprint(info, 6, shapeOnly, cfg, 1)
	require.NoError(t, err)
	again, err := filtergroup.Fingerprint(info, 6, testGroupingTemplates(), cfg, 1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "different grouping templates must not share a cache entry")
	assert.Equal(t, a, again)
}
