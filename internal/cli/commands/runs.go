package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show run history",
		Long: `Show recent pipeline runs from the state store, newest first.
Pass a run ID to show that run's per-node detail instead.`,
		Example: `  # Show the last 10 runs
  leapml runs

  # Show per-node detail for one run
  leapml runs 4f6b2c1e-...

  # Show more history as JSON
  leapml runs --limit 50 --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runNodeRuns(cmd, args[0])
			}
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}

	if len(runs) == 0 {
		r.Println("No runs recorded yet")
		return nil
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.ID,
			run.Pipeline,
			run.Environment,
			string(run.Status),
			run.StartedAt.Format(time.RFC3339),
			formatDuration(run.StartedAt, run.CompletedAt),
			run.Error,
		}
	}
	r.Printf("Runs (%d shown)\n", len(runs))
	r.Table([]string{"ID", "Pipeline", "Env", "Status", "Started", "Duration", "Error"}, rows)
	return nil
}

func runNodeRuns(cmd *cobra.Command, runID string) error {
	cmdCtx := NewCommandContext(cmd)

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	nodeRuns, err := store.ListNodeRuns(runID)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Run      *state.Run       `json:"run"`
			NodeRuns []*state.NodeRun `json:"node_runs"`
		}{run, nodeRuns})
	}

	r.Printf("Run %s (%s, %s)\n", run.ID, run.Pipeline, run.Status)
	rows := make([][]string, len(nodeRuns))
	for i, nr := range nodeRuns {
		rows[i] = []string{
			nr.NodeName,
			string(nr.Status),
			formatDuration(nr.StartedAt, nr.CompletedAt),
			strconv.FormatInt(nr.RowsOut, 10),
			nr.Error,
		}
	}
	r.Table([]string{"Node", "Status", "Duration", "Rows", "Error"}, rows)
	return nil
}

func formatDuration(started time.Time, completed *time.Time) string {
	if completed == nil {
		return ""
	}
	return completed.Sub(started).Round(time.Millisecond).String()
}
