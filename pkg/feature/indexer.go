// Package feature provides the feature engineering stages: string indexing,
// one-hot encoding and vector assembly. The stages compose into a pipeline
// ending in a classifier.
package feature

import (
	"context"
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
)

// Invalid-value policies for fitted transformers encountering a category
// unseen during fitting.
const (
	// HandleInvalidError fails the transform. The default.
	HandleInvalidError = "error"
	// HandleInvalidKeep maps unseen categories to one extra index past
	// the known labels.
	HandleInvalidKeep = "keep"
	// HandleInvalidSkip drops rows with unseen categories.
	HandleInvalidSkip = "skip"
)

func init() {
	pipeline.RegisterModelKind("string_indexer", func() pipeline.PersistentTransformer {
		return &StringIndexerModel{}
	})
}

// StringIndexer learns a mapping from string categories to numeric indices.
// Labels are ordered by descending frequency, ties broken alphabetically, so
// the most common category gets index 0.
type StringIndexer struct {
	InputCol      string
	OutputCol     string
	HandleInvalid string
}

// Kind identifies the stage type.
func (s *StringIndexer) Kind() string { return "string_indexer" }

// Fit learns the label ordering from tbl's input column.
func (s *StringIndexer) Fit(_ context.Context, tbl *table.Table) (pipeline.Transformer, error) {
	col, err := tbl.Column(s.InputCol)
	if err != nil {
		return nil, err
	}
	if col.Kind != table.String {
		return nil, fmt.Errorf("string indexer input %q must be a string column, got %s", s.InputCol, col.Kind)
	}

	counts := make(map[string]int)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		counts[col.Strings[i]]++
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("string indexer input %q has no values to index", s.InputCol)
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	handle := s.HandleInvalid
	if handle == "" {
		handle = HandleInvalidError
	}
	return &StringIndexerModel{
		InputCol:      s.InputCol,
		OutputCol:     s.OutputCol,
		HandleInvalid: handle,
		Labels:        labels,
	}, nil
}

// StringIndexerModel is a fitted StringIndexer.
type StringIndexerModel struct {
	InputCol      string   `json:"input_col"`
	OutputCol     string   `json:"output_col"`
	HandleInvalid string   `json:"handle_invalid"`
	Labels        []string `json:"labels"`
}

// Kind identifies the stage type.
func (m *StringIndexerModel) Kind() string { return "string_indexer" }

// Transform appends the index column. Rows whose category was not seen
// during fitting are handled per the invalid-value policy.
func (m *StringIndexerModel) Transform(_ context.Context, tbl *table.Table) (*table.Table, error) {
	col, err := tbl.Column(m.InputCol)
	if err != nil {
		return nil, err
	}
	if col.Kind != table.String {
		return nil, fmt.Errorf("string indexer input %q must be a string column, got %s", m.InputCol, col.Kind)
	}

	index := make(map[string]int, len(m.Labels))
	for i, label := range m.Labels {
		index[label] = i
	}

	n := col.Len()
	out := make([]float64, n)
	var skip []bool
	anySkip := false
	for i := 0; i < n; i++ {
		if !col.IsNull(i) {
			if idx, ok := index[col.Strings[i]]; ok {
				out[i] = float64(idx)
				continue
			}
		}

		switch m.HandleInvalid {
		case HandleInvalidKeep:
			out[i] = float64(len(m.Labels))
		case HandleInvalidSkip:
			if skip == nil {
				skip = make([]bool, n)
			}
			skip[i] = true
			anySkip = true
		default:
			if col.IsNull(i) {
				return nil, fmt.Errorf("string indexer %q: null value at row %d", m.InputCol, i)
			}
			return nil, fmt.Errorf("string indexer %q: unseen label %q at row %d", m.InputCol, col.Strings[i], i)
		}
	}

	result, err := tbl.WithColumn(table.NewFloatColumn(m.OutputCol, out))
	if err != nil {
		return nil, err
	}
	if anySkip {
		result = result.Filter(func(row int) bool { return !skip[row] })
	}
	return result, nil
}

var (
	_ pipeline.Estimator             = (*StringIndexer)(nil)
	_ pipeline.PersistentTransformer = (*StringIndexerModel)(nil)
)
