// Package runner executes node pipelines against a dataset catalog. Nodes
// declare their input and output datasets by name; the runner orders them by
// data dependencies, threads intermediate tables between them and persists
// catalog-registered outputs.
package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapml/internal/dag"
	"github.com/leapstack-labs/leapml/pkg/table"
)

// Func is a node's computation: named input tables in, named output tables
// out. The returned map must contain every declared output.
type Func func(ctx context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error)

// Node is one pipeline step.
type Node struct {
	Name    string
	Inputs  []string
	Outputs []string
	Func    Func
}

// Pipeline is a named collection of nodes wired by dataset names.
type Pipeline struct {
	name  string
	nodes []Node
}

// NewPipeline validates and assembles a pipeline. Node names must be unique
// and non-empty, every node needs a function, and each dataset may be
// produced by at most one node.
func NewPipeline(name string, nodes ...Node) (*Pipeline, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("pipeline %q has no nodes", name)
	}

	seen := make(map[string]struct{}, len(nodes))
	producers := make(map[string]string)
	for _, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("pipeline %q: node with empty name", name)
		}
		if _, dup := seen[n.Name]; dup {
			return nil, fmt.Errorf("pipeline %q: duplicate node name %q", name, n.Name)
		}
		seen[n.Name] = struct{}{}
		if n.Func == nil {
			return nil, fmt.Errorf("pipeline %q: node %q has no function", name, n.Name)
		}
		for _, out := range n.Outputs {
			if prev, dup := producers[out]; dup {
				return nil, fmt.Errorf("pipeline %q: dataset %q produced by both %q and %q",
					name, out, prev, n.Name)
			}
			producers[out] = n.Name
		}
	}

	p := &Pipeline{name: name, nodes: nodes}
	if _, err := p.Graph(); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Nodes returns the nodes in declaration order.
func (p *Pipeline) Nodes() []Node { return p.nodes }

// Node returns a node by name.
func (p *Pipeline) Node(name string) (Node, bool) {
	for _, n := range p.nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// FreeInputs returns the dataset names consumed by the pipeline but produced
// by no node, sorted. These must be resolvable from the catalog.
func (p *Pipeline) FreeInputs() []string {
	produced := make(map[string]struct{})
	for _, n := range p.nodes {
		for _, out := range n.Outputs {
			produced[out] = struct{}{}
		}
	}

	free := make(map[string]struct{})
	for _, n := range p.nodes {
		for _, in := range n.Inputs {
			if _, ok := produced[in]; !ok {
				free[in] = struct{}{}
			}
		}
	}
	return sortedKeys(free)
}

// Graph builds the node dependency graph: an edge from each dataset's
// producer to each of its consumers. Returns an error on cyclic wiring.
func (p *Pipeline) Graph() (*dag.Graph, error) {
	g := dag.NewGraph()
	for _, n := range p.nodes {
		g.AddNode(n.Name, n)
	}

	producers := make(map[string]string)
	for _, n := range p.nodes {
		for _, out := range n.Outputs {
			producers[out] = n.Name
		}
	}
	for _, n := range p.nodes {
		for _, in := range n.Inputs {
			producer, ok := producers[in]
			if !ok || producer == n.Name {
				continue
			}
			if err := g.AddEdge(producer, n.Name); err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", p.name, err)
			}
		}
	}

	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("pipeline %q: cycle detected: %v", p.name, path)
	}
	return g, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
