package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/orchestrator"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/store"
)

var (
	inspectLast int
	inspectRun  string
	inspectJSON bool
)

// inspectCmd reads the run ledger
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List generation runs or show one run in detail",
	Long: `Without --run, lists the most recent generation runs. With --run, shows
the files the run wrote and per-template attempt outcomes.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "Show N most recent runs")
	inspectCmd.Flags().StringVar(&inspectRun, "run", "", "Show a single run in detail")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON instead of a table")
}

func runInspect(cmd *cobra.Command, args []string) error {
	st, err := store.NewStore(cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if inspectRun != "" {
		return runDetailMode(out, st, inspectRun)
	}
	return runListMode(out, st, inspectLast)
}

// #region list-mode

type listRow struct {
	RunID     string `json:"run_id"`
	Split     string `json:"split"`
	Seed      uint64 `json:"seed"`
	Status    string `json:"status"`
	Questions int    `json:"questions"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runListMode(out io.Writer, st *store.Store, last int) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[i] = listRow{
			RunID:     r.RunID,
			Split:     r.Split,
			Seed:      r.Seed,
			Status:    string(r.Status),
			Questions: r.Questions,
			StartedAt: r.StartedAt.Format("2006-01-02T15:04:05Z"),
			Error:     r.Error,
		}
		if !r.FinishedAt.IsZero() {
			rows[i].Duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
	}

	if inspectJSON {
		return printJSON(out, rows)
	}
	fmt.Fprintf(out, "%-12s  %-6s  %10s  %-10s  %9s  %-10s  %s\n",
		"Run", "Split", "Seed", "Status", "Questions", "Duration", "Started")
	fmt.Fprintf(out, "%-12s+-%-6s+-%10s+-%-10s+-%9s+-%-10s+-%s\n",
		"------------", "------", "----------", "----------", "---------", "----------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(out, "%-12s  %-6s  %10d  %-10s  %9d  %-10s  %s\n",
			shortID(r.RunID), r.Split, r.Seed, r.Status, r.Questions, r.Duration, r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run       store.RunRecord              `json:"run"`
	Files     []store.RunFile              `json:"files"`
	Templates []orchestrator.TemplateStats `json:"templates"`
}

func runDetailMode(out io.Writer, st *store.Store, runID string) error {
	run, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	files, err := st.ListFiles(runID)
	if err != nil {
		return err
	}
	memory, err := orchestrator.NewOutcomeMemory(st.DB())
	if err != nil {
		return err
	}
	stats, err := memory.Stats(runID)
	if err != nil {
		return err
	}

	if inspectJSON {
		return printJSON(out, detailOutput{Run: run, Files: files, Templates: stats})
	}

	fmt.Fprintf(out, "Run:        %s\n", run.RunID)
	fmt.Fprintf(out, "Split:      %s\n", run.Split)
	fmt.Fprintf(out, "Seed:       %d\n", run.Seed)
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	fmt.Fprintf(out, "Questions:  %d\n", run.Questions)
	fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Format("2006-01-02T15:04:05Z"))
	if run.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", run.Error)
	}

	fmt.Fprintf(out, "\nFiles:\n")
	for _, f := range files {
		status := "ok"
		if f.Failed {
			status = "FAILED: " + f.Error
		}
		fmt.Fprintf(out, "  %-30s %6d  %s\n", f.Class, f.Questions, status)
	}

	fmt.Fprintf(out, "\nTemplates:\n")
	for _, s := range stats {
		fmt.Fprintf(out, "  %-30s %8d tries  %6d accepted  %6.2f%%  %s\n",
			s.Template, s.Attempts, s.Accepted, 100*s.AcceptanceRate(), formatReasons(s))
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func formatReasons(s orchestrator.TemplateStats) string {
	reasons := make([]grounding.RejectReason, 0, len(s.ByReason))
	for r := range s.ByReason {
		reasons = append(reasons, r)
	}
	slices.Sort(reasons)
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", r, s.ByReason[r])
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
