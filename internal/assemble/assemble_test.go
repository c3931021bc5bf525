package assemble_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/orchestrator"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene/scenetest"
)

func candidate(text string, answers ...interpreter.Output) orchestrator.Candidate {
	return orchestrator.Candidate{
		Text: text,
		Program: program.Program{
			{Kind: program.KindScene},
			{Kind: program.KindFilter, Attr: scene.Color, Inputs: []int{0}, SideInputs: []string{"blue"}},
			{Kind: program.KindCount, Inputs: []int{1}},
		},
		GroupType:      program.GroupMultiple,
		ImageFilenames: []string{"CLEVR_val_000000.png", "CLEVR_val_000001.png"},
		ImageIndices:   []int{0, 1},
		Answers:        answers,
	}
}

func TestPostprocessPersistsValueInputs(t *testing.T) {
	qs, err := assemble.Postprocess([]orchestrator.Candidate{
		candidate("How many blue things?", interpreter.Int(1), interpreter.Int(2)),
	}, "val", "1_count", 4)
	require.NoError(t, err)
	require.Len(t, qs, 1)

	b, err := json.Marshal(qs[0])
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"value_inputs":["blue"]`)
	assert.Contains(t, out, `"value_inputs":[]`)
	assert.NotContains(t, out, "side_inputs")
	assert.Contains(t, out, `"answers":[1,2]`)
	assert.Contains(t, out, `"template_filename":"1_count"`)
	assert.Contains(t, out, `"template_index":4`)
	assert.Equal(t, "int", qs[0].ReturnType())
}

func TestPostprocessSceneAnswers(t *testing.T) {
	s := scenetest.Scene(0, scenetest.Obj("small", "red", "metal", "cube"))
	qs, err := assemble.Postprocess([]orchestrator.Candidate{
		candidate("Find the red cube.", interpreter.SceneOf(s), interpreter.SceneOf(s)),
	}, "val", "0_localization", 0)
	require.NoError(t, err)
	assert.Equal(t, "scene", qs[0].ReturnType())
}

func TestCapAndAssignIndexes(t *testing.T) {
	var qs []assemble.GroundedQuestion
	for i := range 3 {
		batch, err := assemble.Postprocess([]orchestrator.Candidate{
			candidate("a", interpreter.Int(1), interpreter.Int(2)),
			candidate("b", interpreter.Int(1), interpreter.Int(2)),
		}, "train", "1_count", i)
		require.NoError(t, err)
		qs = append(qs, assemble.Cap(batch, 1)...)
	}
	assemble.AssignIndexes(qs)

	require.Len(t, qs, 3)
	for i, q := range qs {
		assert.Equal(t, i, q.QuestionIndex)
		assert.Equal(t, i, q.TemplateIndex)
	}
	assert.Len(t, assemble.Cap(qs, 10), 3)
}

func TestOutputFilename(t *testing.T) {
	assert.Equal(t, "CLEVR_val_2_remove.json", assemble.OutputFilename("CLEVR", "val", "2_remove_val"))
	assert.Equal(t, "CLEVR_train_2_remove.json", assemble.OutputFilename("CLEVR", "train", "2_remove_train"))
	assert.Equal(t, "CLEVR_val_1_count.json", assemble.OutputFilename("CLEVR", "val", "1_count"))
}

func TestParseQuestionFilename(t *testing.T) {
	prefix, split, class, err := assemble.ParseQuestionFilename("/data/CLEVR_train_2_remove.json")
	require.NoError(t, err)
	assert.Equal(t, "CLEVR", prefix)
	assert.Equal(t, "train", split)
	assert.Equal(t, "2_remove", class)

	for _, bad := range []string{"CLEVR_dev_2_remove.json", "CLEVR_val.json", "CLEVR_val_x.txt"} {
		_, _, _, err := assemble.ParseQuestionFilename(bad)
		assert.Error(t, err, bad)
	}
}

func TestQuestionFileRoundTripAndHeldOut(t *testing.T) {
	dir := t.TempDir()
	info := scene.Info{}
	info.Set("split", "train")
	info.Set("version", "1.0")

	qs, err := assemble.Postprocess([]orchestrator.Candidate{
		candidate("How many blue things?", interpreter.Int(1), interpreter.Int(2)),
		candidate("How many red things?", interpreter.Int(0), interpreter.Int(3)),
	}, "train", "1_count_train", 0)
	require.NoError(t, err)
	assemble.AssignIndexes(qs)

	path := filepath.Join(dir, assemble.OutputFilename("CLEVR", "train", "1_count_train"))
	require.NoError(t, assemble.WriteQuestionFile(path, info, qs))

	qf, err := assemble.LoadQuestionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "train", qf.Info.Get("split"))
	require.Len(t, qf.Questions, 2)
	assert.Equal(t, qs[1].Question, qf.Questions[1].Question)
	assert.Equal(t, 1, qf.Questions[1].QuestionIndex)

	held, err := assemble.HeldOutTexts(dir, "CLEVR", "val", "1_count_val")
	require.NoError(t, err)
	assert.True(t, held["How many blue things?"])
	assert.True(t, held["How many red things?"])

	none, err := assemble.HeldOutTexts(dir, "CLEVR", "train", "1_count_train")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = assemble.HeldOutTexts(dir, "CLEVR", "val", "2_remove")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
