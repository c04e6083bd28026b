package commands

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/flightdelays"
	"github.com/leapstack-labs/leapml/internal/runner"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the flight delay pipeline",
		Long: `Execute the pipeline nodes in dependency order: select columns,
clean the data, extract features, train the model, and report its
accuracy on the held-out rows.

By default all nodes run. Use --select to start from specific nodes;
their downstream dependents run as well, and any inputs normally
produced by earlier nodes must be loadable from the catalog.`,
		Example: `  # Run the full pipeline
  leapml run

  # Re-train from already extracted features
  leapml run --select train_model

  # Run with JSON output for CI integration
  leapml run --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of nodes to run (plus downstream)")

	return cmd
}

type runView struct {
	RunID    string   `json:"run_id"`
	Status   string   `json:"status"`
	Executed []string `json:"executed"`
	Skipped  []string `json:"skipped,omitempty"`
	Duration string   `json:"duration"`
	Error    string   `json:"error,omitempty"`
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)

	cat, err := cmdCtx.OpenCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, err := flightdelays.NewPipeline(cmdCtx.Logger, cmdCtx.Cfg)
	if err != nil {
		return err
	}

	var selected []string
	if opts.Select != "" {
		for _, name := range strings.Split(opts.Select, ",") {
			selected = append(selected, strings.TrimSpace(name))
		}
	}

	r := &runner.Runner{Catalog: cat, Store: store, Logger: cmdCtx.Logger}
	start := time.Now()
	result, runErr := r.Run(cmd.Context(), p, runner.Options{
		Environment: cmdCtx.Cfg.Environment,
		Select:      selected,
	})
	elapsed := time.Since(start).Round(time.Millisecond)

	view := runView{Duration: elapsed.String(), Status: "completed"}
	if result != nil {
		view.RunID = result.RunID
		view.Executed = result.Executed
		view.Skipped = result.Skipped
	}
	if runErr != nil {
		view.Status = "failed"
		view.Error = runErr.Error()
	}

	ren := cmdCtx.Renderer
	if ren.EffectiveMode() == output.ModeJSON {
		if err := ren.JSON(view); err != nil {
			return err
		}
		return runErr
	}

	if runErr != nil {
		ren.Printf("Run %s failed after %s: %v\n", view.RunID, view.Duration, runErr)
		if len(view.Skipped) > 0 {
			ren.Printf("Skipped: %s\n", strings.Join(view.Skipped, ", "))
		}
		return runErr
	}

	ren.Success("Run " + view.RunID + " completed in " + view.Duration)
	ren.Printf("Executed %d nodes: %s\n", len(view.Executed), strings.Join(view.Executed, ", "))
	return nil
}
