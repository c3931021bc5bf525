package replay

import (
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestFixture_RemoveCount loads the remove_count fixture, runs Replay() and
// compares each question's Action against the expected action. If the
// interpreter or the eval checks drift, this catches it.
func TestFixture_RemoveCount(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "remove_count.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	corpus, err := f.Corpus()
	if err != nil {
		t.Fatalf("Corpus: %v", err)
	}

	results := Replay(corpus, f.Questions, f.Config.ToReplayConfig())

	if len(results) != len(f.ExpectedResults) {
		t.Fatalf("expected %d results, got %d", len(f.ExpectedResults), len(results))
	}
	for i, expected := range f.ExpectedResults {
		actual := results[i]
		if actual.QuestionIndex != expected.QuestionIndex {
			t.Errorf("result %d: expected question_index=%d, got %d", i, expected.QuestionIndex, actual.QuestionIndex)
		}
		if actual.Action != expected.Action {
			t.Errorf("question %d: expected action=%s, got action=%s (reason: %s)",
				expected.QuestionIndex, expected.Action, actual.Action, actual.Reason)
		}
	}

	summary := Summarize(results)
	if summary.Matches != 2 || summary.Mismatches != 1 || summary.EvalFailures != 1 || summary.Structural != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.OK() {
		t.Error("fixture includes failures, summary should not be OK")
	}
}

// TestFixture_MismatchNamesExample checks the corrupted answer is pinned to
// the third example scene.
func TestFixture_MismatchNamesExample(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "remove_count.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	corpus, err := f.Corpus()
	if err != nil {
		t.Fatalf("Corpus: %v", err)
	}

	results := Replay(corpus, f.Questions[1:2], f.Config.ToReplayConfig())
	if len(results[0].Mismatched) != 1 || results[0].Mismatched[0] != 2 {
		t.Fatalf("expected example 2 to mismatch, got %v", results[0].Mismatched)
	}
}

func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFixture_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestFixtureConfig_ZeroFallsBackToDefault(t *testing.T) {
	var fc FixtureConfig
	cfg := fc.ToReplayConfig()
	if cfg.EvalConfig.MinDistinctAnswers != DefaultReplayConfig().EvalConfig.MinDistinctAnswers {
		t.Fatalf("expected default threshold, got %d", cfg.EvalConfig.MinDistinctAnswers)
	}
}

// #endregion fixture-tests

// #region export-tests

// TestBuildFixture_RoundTrip exports the regression fixture's questions,
// writes it, reloads it and checks it replays to its own expectations.
func TestBuildFixture_RoundTrip(t *testing.T) {
	src, err := LoadFixture(filepath.Join("testdata", "remove_count.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	corpus, err := src.Corpus()
	if err != nil {
		t.Fatalf("Corpus: %v", err)
	}

	built := BuildFixture("exported", corpus, src.Questions, src.Config.ToReplayConfig())
	if len(built.Scenes) != 3 {
		t.Errorf("expected the 3 referenced corpus scenes, got %d", len(built.Scenes))
	}
	for i, e := range built.ExpectedResults {
		if e.Action != src.ExpectedResults[i].Action {
			t.Errorf("question %d: expected action=%s, got %s", e.QuestionIndex, src.ExpectedResults[i].Action, e.Action)
		}
	}

	path := filepath.Join(t.TempDir(), "exported.json")
	if err := WriteFixture(path, built); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	reloaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	rc, err := reloaded.Corpus()
	if err != nil {
		t.Fatalf("Corpus: %v", err)
	}
	results := Replay(rc, reloaded.Questions, reloaded.Config.ToReplayConfig())
	for i, r := range results {
		if r.Action != reloaded.ExpectedResults[i].Action {
			t.Errorf("question %d: reloaded fixture replays to %s, expected %s", r.QuestionIndex, r.Action, reloaded.ExpectedResults[i].Action)
		}
	}
}

// #endregion export-tests
