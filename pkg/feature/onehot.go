package feature

import (
	"context"
	"fmt"
	"math"

	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func init() {
	pipeline.RegisterModelKind("one_hot_encoder", func() pipeline.PersistentTransformer {
		return &OneHotEncoderModel{}
	})
}

// OneHotEncoder learns the category count of a numeric index column and
// encodes each index as a binary vector. With DropLast set, the last
// category is represented by the all-zero vector, keeping the encoding
// linearly independent.
type OneHotEncoder struct {
	InputCol  string
	OutputCol string
	DropLast  bool
}

// Kind identifies the stage type.
func (e *OneHotEncoder) Kind() string { return "one_hot_encoder" }

// Fit determines the category count from the maximum index in tbl.
func (e *OneHotEncoder) Fit(_ context.Context, tbl *table.Table) (pipeline.Transformer, error) {
	col, err := tbl.Column(e.InputCol)
	if err != nil {
		return nil, err
	}

	maxIdx := -1
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			return nil, fmt.Errorf("one-hot encoder input %q: null value at row %d", e.InputCol, i)
		}
		v, err := col.Float(i)
		if err != nil {
			return nil, fmt.Errorf("one-hot encoder input %q: %w", e.InputCol, err)
		}
		idx, err := categoryIndex(v)
		if err != nil {
			return nil, fmt.Errorf("one-hot encoder input %q row %d: %w", e.InputCol, i, err)
		}
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	if maxIdx < 0 {
		return nil, fmt.Errorf("one-hot encoder input %q has no values", e.InputCol)
	}

	return &OneHotEncoderModel{
		InputCol:  e.InputCol,
		OutputCol: e.OutputCol,
		Size:      maxIdx + 1,
		DropLast:  e.DropLast,
	}, nil
}

// OneHotEncoderModel is a fitted OneHotEncoder.
type OneHotEncoderModel struct {
	InputCol  string `json:"input_col"`
	OutputCol string `json:"output_col"`
	Size      int    `json:"size"`
	DropLast  bool   `json:"drop_last"`
}

// Kind identifies the stage type.
func (m *OneHotEncoderModel) Kind() string { return "one_hot_encoder" }

// Width returns the encoded vector length.
func (m *OneHotEncoderModel) Width() int {
	if m.DropLast {
		return m.Size - 1
	}
	return m.Size
}

// Transform appends the encoded vector column.
func (m *OneHotEncoderModel) Transform(_ context.Context, tbl *table.Table) (*table.Table, error) {
	col, err := tbl.Column(m.InputCol)
	if err != nil {
		return nil, err
	}

	width := m.Width()
	n := col.Len()
	vectors := make([][]float64, n)
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			return nil, fmt.Errorf("one-hot encoder input %q: null value at row %d", m.InputCol, i)
		}
		v, err := col.Float(i)
		if err != nil {
			return nil, fmt.Errorf("one-hot encoder input %q: %w", m.InputCol, err)
		}
		idx, err := categoryIndex(v)
		if err != nil {
			return nil, fmt.Errorf("one-hot encoder input %q row %d: %w", m.InputCol, i, err)
		}
		if idx >= m.Size {
			return nil, fmt.Errorf("one-hot encoder input %q row %d: index %d out of range [0, %d)",
				m.InputCol, i, idx, m.Size)
		}

		vec := make([]float64, width)
		if idx < width {
			vec[idx] = 1
		}
		vectors[i] = vec
	}
	return tbl.WithColumn(table.NewVectorColumn(m.OutputCol, vectors))
}

// categoryIndex validates that a value is a non-negative whole number.
func categoryIndex(v float64) (int, error) {
	if v < 0 || v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("value %v is not a category index", v)
	}
	return int(v), nil
}

var (
	_ pipeline.Estimator             = (*OneHotEncoder)(nil)
	_ pipeline.PersistentTransformer = (*OneHotEncoderModel)(nil)
)
