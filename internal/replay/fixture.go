package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/eval"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region fixture-types

// Fixture is a self-contained replay regression case: a small corpus, a
// question file over it and the expected action per question.
type Fixture struct {
	Description     string                      `json:"description"`
	Info            scene.Info                  `json:"info"`
	Scenes          []scene.Scene               `json:"scenes"`
	Config          FixtureConfig               `json:"config"`
	Questions       []assemble.GroundedQuestion `json:"questions"`
	ExpectedResults []FixtureExpectedResult     `json:"expected_results"`
}

// FixtureExpectedResult captures the expected action per question.
type FixtureExpectedResult struct {
	QuestionIndex int    `json:"question_index"`
	Action        string `json:"action"`
}

// FixtureConfig mirrors ReplayConfig with JSON tags.
type FixtureConfig struct {
	MinDistinctAnswers int `json:"min_distinct_answers"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Corpus indexes the fixture scenes.
func (f *Fixture) Corpus() (*scene.Corpus, error) {
	return scene.NewCorpus(f.Info, f.Scenes)
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig. A zero
// threshold falls back to the default.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.MinDistinctAnswers > 0 {
		cfg.EvalConfig = eval.EvalConfig{MinDistinctAnswers: fc.MinDistinctAnswers}
	}
	return cfg
}

// #endregion fixture-loader

// #region fixture-export

// BuildFixture packages questions with the corpus scenes they reference and
// records the action each one replays to today as the expected action.
// Scenes missing from the corpus are left out, so those questions replay
// as structural.
func BuildFixture(description string, corpus *scene.Corpus, questions []assemble.GroundedQuestion, config ReplayConfig) *Fixture {
	used := make(map[int]bool)
	var scenes []scene.Scene
	for _, q := range questions {
		for _, idx := range q.ImageIndices {
			if used[idx] {
				continue
			}
			used[idx] = true
			if s, ok := corpus.Scene(idx); ok {
				scenes = append(scenes, s)
			}
		}
	}

	results := Replay(corpus, questions, config)
	expected := make([]FixtureExpectedResult, len(results))
	for i, r := range results {
		expected[i] = FixtureExpectedResult{QuestionIndex: r.QuestionIndex, Action: r.Action}
	}

	return &Fixture{
		Description:     description,
		Info:            corpus.Info.Clone(),
		Scenes:          scenes,
		Config:          FixtureConfig{MinDistinctAnswers: config.EvalConfig.MinDistinctAnswers},
		Questions:       questions,
		ExpectedResults: expected,
	}
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-export
