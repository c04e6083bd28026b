package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/flightdelays"
)

// NewNodesCommand creates the nodes command.
func NewNodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List pipeline nodes in execution order",
		Long: `List the flight delay pipeline nodes in dependency order, with the
datasets each node consumes and produces.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNodes(cmd)
		},
	}
}

type nodeView struct {
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

type pipelineView struct {
	Name  string     `json:"name"`
	Entry []string   `json:"entry"`
	Final []string   `json:"final"`
	Nodes []nodeView `json:"nodes"`
}

func runNodes(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)

	p, err := flightdelays.NewPipeline(cmdCtx.Logger, cmdCtx.Cfg)
	if err != nil {
		return err
	}
	graph, err := p.Graph()
	if err != nil {
		return err
	}
	sorted, err := graph.TopologicalSort()
	if err != nil {
		return err
	}

	views := make([]nodeView, 0, len(sorted))
	for _, gn := range sorted {
		node, ok := p.Node(gn.ID)
		if !ok {
			continue
		}
		views = append(views, nodeView{Name: node.Name, Inputs: node.Inputs, Outputs: node.Outputs})
	}
	view := pipelineView{
		Name:  p.Name(),
		Entry: graph.GetRoots(),
		Final: graph.GetLeaves(),
		Nodes: views,
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(view)
	}

	r.Printf("Pipeline %s (%d nodes)\n", p.Name(), len(views))
	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{v.Name, strings.Join(v.Inputs, ", "), strings.Join(v.Outputs, ", ")}
	}
	r.Table([]string{"Node", "Inputs", "Outputs"}, rows)
	r.Printf("Entry: %s\n", strings.Join(view.Entry, ", "))
	r.Printf("Final: %s\n", strings.Join(view.Final, ", "))
	return nil
}
