package feature

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func init() {
	pipeline.RegisterModelKind("vector_assembler", func() pipeline.PersistentTransformer {
		return &VectorAssembler{}
	})
}

// VectorAssembler concatenates numeric and vector columns into a single
// vector column. It is stateless: the same value serves as pipeline stage
// and fitted transformer.
type VectorAssembler struct {
	InputCols []string `json:"input_cols"`
	OutputCol string   `json:"output_col"`
}

// Kind identifies the stage type.
func (a *VectorAssembler) Kind() string { return "vector_assembler" }

// Transform appends the assembled vector column. Input columns must be int,
// float or vector, with no missing values.
func (a *VectorAssembler) Transform(_ context.Context, tbl *table.Table) (*table.Table, error) {
	if len(a.InputCols) == 0 {
		return nil, fmt.Errorf("vector assembler: no input columns")
	}

	cols := make([]*table.Column, len(a.InputCols))
	for i, name := range a.InputCols {
		col, err := tbl.Column(name)
		if err != nil {
			return nil, err
		}
		switch col.Kind {
		case table.Int, table.Float, table.Vector:
		default:
			return nil, fmt.Errorf("vector assembler input %q: %s columns cannot be assembled", name, col.Kind)
		}
		cols[i] = col
	}

	n := tbl.NumRows()
	vectors := make([][]float64, n)
	for row := 0; row < n; row++ {
		var vec []float64
		for _, col := range cols {
			if col.IsNull(row) {
				return nil, fmt.Errorf("vector assembler input %q: null value at row %d", col.Name, row)
			}
			if col.Kind == table.Vector {
				vec = append(vec, col.Vectors[row]...)
				continue
			}
			v, err := col.Float(row)
			if err != nil {
				return nil, fmt.Errorf("vector assembler input %q: %w", col.Name, err)
			}
			vec = append(vec, v)
		}
		vectors[row] = vec
	}
	return tbl.WithColumn(table.NewVectorColumn(a.OutputCol, vectors))
}

var _ pipeline.PersistentTransformer = (*VectorAssembler)(nil)
