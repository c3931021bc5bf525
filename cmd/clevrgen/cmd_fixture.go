package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/eval"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/replay"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

var (
	fixtureLast int
	fixtureOut  string
)

// fixtureExportCmd turns the tail of a question file into a replay fixture
var fixtureExportCmd = &cobra.Command{
	Use:   "fixture-export [question file]",
	Short: "Export questions and their scenes as a replay fixture",
	Long: `Takes the last N questions of a dataset file, bundles them with the corpus
scenes they reference and records today's replay action for each as the
expected action. The fixture replays with "clevrgen replay --fixture".`,
	Args: cobra.ExactArgs(1),
	RunE: runFixtureExport,
}

func init() {
	fixtureExportCmd.Flags().StringVar(&cfgOverride.scenes, "scenes", "", "Scene corpus file")
	fixtureExportCmd.Flags().IntVar(&fixtureLast, "last", 4, "Number of most recent questions to export")
	fixtureExportCmd.Flags().StringVar(&fixtureOut, "out", "", "Output fixture JSON path (required)")
	fixtureExportCmd.MarkFlagRequired("out")
}

func runFixtureExport(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd); err != nil {
		return err
	}
	corpus, err := scene.LoadCorpus(cfg.Paths.Scenes)
	if err != nil {
		return err
	}
	qf, err := assemble.LoadQuestionFile(args[0])
	if err != nil {
		return err
	}
	questions := qf.Questions
	if fixtureLast > 0 && len(questions) > fixtureLast {
		questions = questions[len(questions)-fixtureLast:]
	}

	config := replay.ReplayConfig{EvalConfig: eval.EvalConfig{MinDistinctAnswers: cfg.Generation.MinDistinctAnswers}}
	desc := fmt.Sprintf("Last %d questions of %s", len(questions), args[0])
	f := replay.BuildFixture(desc, corpus, questions, config)
	if err := replay.WriteFixture(fixtureOut, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d questions over %d scenes to %s\n", len(f.Questions), len(f.Scenes), fixtureOut)
	return nil
}
