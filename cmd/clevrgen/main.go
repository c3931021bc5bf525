// Command clevrgen builds filter-group indexes, generates CLEVR-style
// question datasets from templates and inspects or replays the results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/config"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/logging"
)

var (
	// Global flags
	cfgPath  string
	verbose  bool
	jsonLogs bool
	dbPath   string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clevrgen",
	Short: "CLEVR question generator",
	Long: `clevrgen instantiates question templates against a CLEVR scene corpus.

Typical flow:
  clevrgen group      # build the filter-group index for a corpus
  clevrgen generate   # ground templates into a question dataset
  clevrgen replay     # re-execute a dataset and compare answers
  clevrgen fixture-export  # freeze questions as a replay regression fixture
  clevrgen inspect    # list generation runs and per-template outcomes`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Logging.Verbose = verbose
		}
		if cmd.Flags().Changed("json-logs") {
			cfg.Logging.JSON = jsonLogs
		}
		if cmd.Flags().Changed("db") {
			cfg.Paths.Database = dbPath
		}
		logger, err = logging.NewLogger(logging.Options{Verbose: cfg.Logging.Verbose, JSON: cfg.Logging.JSON})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "clevrgen.yaml", "Config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON instead of console text")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database for runs, outcomes and the group cache")

	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(fixtureExportCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
