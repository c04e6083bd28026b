package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapml/internal/catalog"
	"github.com/leapstack-labs/leapml/internal/state"
	"github.com/leapstack-labs/leapml/pkg/table"
)

// Runner executes pipelines. Catalog resolves free inputs and persists
// registered outputs; Store, when set, records run history.
type Runner struct {
	Catalog *catalog.Catalog
	Store   state.Store
	Logger  *slog.Logger
}

// Options adjust one run.
type Options struct {
	// Environment is recorded with the run, defaulting to "local".
	Environment string

	// Select restricts execution to the named nodes and everything
	// downstream of them. Inputs normally produced by unselected nodes
	// must then be loadable from the catalog.
	Select []string
}

// Result summarizes one run.
type Result struct {
	RunID    string
	Executed []string
	Skipped  []string
}

// Run executes the pipeline's nodes in dependency order. The first node
// failure aborts the run: downstream nodes are recorded as skipped and the
// node's error is returned.
func (r *Runner) Run(ctx context.Context, p *Pipeline, opts Options) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	env := opts.Environment
	if env == "" {
		env = "local"
	}

	graph, err := p.Graph()
	if err != nil {
		return nil, err
	}

	if len(opts.Select) > 0 {
		for _, name := range opts.Select {
			if _, ok := p.Node(name); !ok {
				return nil, fmt.Errorf("pipeline %q has no node %q", p.Name(), name)
			}
		}
		graph = graph.Subgraph(graph.GetAffectedNodes(opts.Select))
	}

	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	var run *state.Run
	if r.Store != nil {
		run, err = r.Store.CreateRun(p.Name(), env)
		if err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}
	result := &Result{}
	if run != nil {
		result.RunID = run.ID
	}

	logger.Info("pipeline started", "pipeline", p.Name(), "environment", env, "nodes", len(sorted))

	data := make(map[string]*table.Table)
	var failed error
	var failedNode string
	for _, gn := range sorted {
		node := gn.Data.(Node)

		if failed != nil {
			r.recordSkip(run, node.Name, logger)
			result.Skipped = append(result.Skipped, node.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			failed = err
			failedNode = node.Name
			r.recordSkip(run, node.Name, logger)
			result.Skipped = append(result.Skipped, node.Name)
			continue
		}

		if _, err := r.runNode(ctx, node, data, run, logger); err != nil {
			failed = fmt.Errorf("node %q: %w", node.Name, err)
			failedNode = node.Name
			continue
		}
		result.Executed = append(result.Executed, node.Name)
	}

	if failed != nil {
		if run != nil {
			_ = r.Store.CompleteRun(run.ID, state.RunStatusFailed, failed.Error())
		}
		logger.Error("pipeline failed", "pipeline", p.Name(), "node", failedNode, "error", failed)
		return result, failed
	}

	if run != nil {
		if err := r.Store.CompleteRun(run.ID, state.RunStatusCompleted, ""); err != nil {
			return result, fmt.Errorf("record run completion: %w", err)
		}
	}
	logger.Info("pipeline completed", "pipeline", p.Name(), "executed", len(result.Executed))
	return result, nil
}

func (r *Runner) runNode(ctx context.Context, node Node, data map[string]*table.Table,
	run *state.Run, logger *slog.Logger) (int64, error) {

	var nodeRun *state.NodeRun
	if run != nil {
		var err error
		nodeRun, err = r.Store.StartNodeRun(run.ID, node.Name)
		if err != nil {
			return 0, fmt.Errorf("record node start: %w", err)
		}
	}
	logger.Info("node started", "node", node.Name)

	rowsOut, err := r.executeNode(ctx, node, data)
	if nodeRun != nil {
		status := state.NodeRunStatusSuccess
		msg := ""
		if err != nil {
			status = state.NodeRunStatusFailed
			msg = err.Error()
		}
		_ = r.Store.CompleteNodeRun(nodeRun.ID, status, rowsOut, msg)
	}
	if err != nil {
		return 0, err
	}
	logger.Info("node completed", "node", node.Name, "rows_out", rowsOut)
	return rowsOut, nil
}

func (r *Runner) executeNode(ctx context.Context, node Node, data map[string]*table.Table) (int64, error) {
	inputs := make(map[string]*table.Table, len(node.Inputs))
	for _, name := range node.Inputs {
		if tbl, ok := data[name]; ok {
			inputs[name] = tbl
			continue
		}
		if r.Catalog == nil {
			return 0, fmt.Errorf("input %q not available and no catalog configured", name)
		}
		tbl, err := r.Catalog.Load(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("load input %q: %w", name, err)
		}
		inputs[name] = tbl
	}

	outputs, err := node.Func(ctx, inputs)
	if err != nil {
		return 0, err
	}

	var rowsOut int64
	for _, name := range node.Outputs {
		tbl, ok := outputs[name]
		if !ok || tbl == nil {
			return 0, fmt.Errorf("declared output %q was not produced", name)
		}
		data[name] = tbl
		rowsOut += int64(tbl.NumRows())

		if r.Catalog != nil && r.Catalog.Has(name) {
			if err := r.Catalog.Save(ctx, name, tbl); err != nil {
				return 0, fmt.Errorf("save output %q: %w", name, err)
			}
		}
	}
	return rowsOut, nil
}

func (r *Runner) recordSkip(run *state.Run, nodeName string, logger *slog.Logger) {
	logger.Warn("node skipped", "node", nodeName)
	if run == nil {
		return
	}
	if nr, err := r.Store.StartNodeRun(run.ID, nodeName); err == nil {
		_ = r.Store.CompleteNodeRun(nr.ID, state.NodeRunStatusSkipped, 0, "")
	}
}
