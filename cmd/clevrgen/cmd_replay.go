package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/eval"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/replay"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

var (
	replayFixture string
	replayJSON    bool
)

// replayCmd re-executes question files
var replayCmd = &cobra.Command{
	Use:   "replay [question files...]",
	Short: "Re-execute question programs and compare answers",
	Long: `Replays dataset files against the scene corpus: each question is checked
structurally, its program is executed twice on every example scene and the
answers are compared with the stored ones.

With --fixture, replays a self-contained regression fixture and compares the
actions with the expected ones instead.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&cfgOverride.scenes, "scenes", "", "Scene corpus file")
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "Replay a fixture file instead of question files")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Output summaries as JSON")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if replayFixture != "" {
		return runFixtureMode(out, replayFixture)
	}
	if len(args) == 0 {
		return fmt.Errorf("replay needs question files or --fixture")
	}

	corpus, err := scene.LoadCorpus(cfg.Paths.Scenes)
	if err != nil {
		return err
	}
	config := replay.ReplayConfig{EvalConfig: eval.EvalConfig{MinDistinctAnswers: cfg.Generation.MinDistinctAnswers}}

	summaries := make(map[string]replay.ReplaySummary, len(args))
	failing := 0
	for _, path := range args {
		qf, err := assemble.LoadQuestionFile(path)
		if err != nil {
			return err
		}
		if err := qf.Info.SameSource(corpus.Info); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results := replay.Replay(corpus, qf.Questions, config)
		for _, r := range results {
			if r.Action != replay.ActionMatch {
				logger.Debug("replay divergence",
					zap.String("file", path),
					zap.Int("question_index", r.QuestionIndex),
					zap.String("action", r.Action),
					zap.String("reason", r.Reason))
			}
		}
		s := replay.Summarize(results)
		summaries[path] = s
		if !s.OK() {
			failing++
		}
	}

	if replayJSON {
		if err := printJSON(out, summaries); err != nil {
			return err
		}
	} else {
		printSummaries(out, args, summaries)
	}
	if failing > 0 {
		return fmt.Errorf("%d of %d files diverged", failing, len(args))
	}
	return nil
}

// #region output

func runFixtureMode(out io.Writer, path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}
	corpus, err := f.Corpus()
	if err != nil {
		return err
	}
	results := replay.Replay(corpus, f.Questions, f.Config.ToReplayConfig())

	expected := make([]string, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		expected[i] = e.Action
	}
	if diverge := printComparison(out, results, expected); diverge > 0 {
		return fmt.Errorf("%d questions diverge from the fixture", diverge)
	}
	return nil
}

// printComparison outputs a comparison table and returns the number of
// divergent questions.
func printComparison(out io.Writer, results []replay.ReplayResult, expected []string) int {
	fmt.Fprintf(out, "%-10s| %-17s| %-17s| %s\n", "Question", "Expected", "Replayed", "Match")
	fmt.Fprintf(out, "%-10s+%-17s+%-17s+%s\n", "----------", "------------------", "------------------", "------")

	total := min(len(results), len(expected))
	matches := 0
	for i := 0; i < total; i++ {
		exp, got := expected[i], results[i].Action
		match := "DIFF"
		if exp == got {
			match = "OK"
			matches++
		}
		fmt.Fprintf(out, "%-10d| %-17s| %-17s| %s\n", results[i].QuestionIndex, exp, got, match)
	}

	diverge := total - matches
	fmt.Fprintf(out, "\nSummary: %d total, %d match, %d diverge\n", total, matches, diverge)
	return diverge
}

func printSummaries(out io.Writer, paths []string, summaries map[string]replay.ReplaySummary) {
	fmt.Fprintf(out, "%-40s %6s %6s %6s %6s %6s\n", "File", "Total", "Match", "Diff", "Eval", "Struct")
	for _, p := range paths {
		s := summaries[p]
		fmt.Fprintf(out, "%-40s %6d %6d %6d %6d %6d\n", p, s.TotalQuestions, s.Matches, s.Mismatches, s.EvalFailures, s.Structural+s.Nondeterminism)
		types := make([]string, 0, len(s.ByReturnType))
		for t := range s.ByReturnType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(out, "  %-38s %6d\n", t, s.ByReturnType[t])
		}
	}
}

// #endregion output
