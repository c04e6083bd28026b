// Package tuning provides hyperparameter search: parameter grids, binary
// classification evaluation and train/validation split model selection.
package tuning

import (
	"fmt"
	"sort"
	"strings"
)

// ParamMap is one hyperparameter assignment.
type ParamMap map[string]any

// String renders the assignment with sorted keys, for logging.
func (p ParamMap) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// GridBuilder accumulates per-parameter candidate values and expands them
// into the cartesian product.
type GridBuilder struct {
	names  []string
	values map[string][]any
}

// NewGridBuilder creates an empty grid builder.
func NewGridBuilder() *GridBuilder {
	return &GridBuilder{values: make(map[string][]any)}
}

// Add registers candidate values for one parameter. Adding the same
// parameter again replaces its candidates.
func (g *GridBuilder) Add(name string, values ...any) *GridBuilder {
	if _, seen := g.values[name]; !seen {
		g.names = append(g.names, name)
	}
	g.values[name] = values
	return g
}

// Build expands the grid. With no parameters it returns a single empty
// assignment, so a search over it still evaluates the default model once.
func (g *GridBuilder) Build() []ParamMap {
	grid := []ParamMap{{}}
	for _, name := range g.names {
		candidates := g.values[name]
		next := make([]ParamMap, 0, len(grid)*len(candidates))
		for _, base := range grid {
			for _, v := range candidates {
				pm := make(ParamMap, len(base)+1)
				for k, bv := range base {
					pm[k] = bv
				}
				pm[name] = v
				next = append(next, pm)
			}
		}
		grid = next
	}
	return grid
}
