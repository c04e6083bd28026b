// Package pipeline provides composable feature transformation pipelines. A
// pipeline is an ordered list of stages; fitting it fits each estimator stage
// on data already transformed by the preceding stages and yields a Model
// holding the fitted transformers in order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/table"
)

// Transformer maps an input table to an output table without learning
// anything from it.
type Transformer interface {
	// Transform applies the transformation. The input table is not
	// modified.
	Transform(ctx context.Context, tbl *table.Table) (*table.Table, error)
}

// Estimator learns parameters from a table and produces a Transformer.
type Estimator interface {
	// Fit learns from tbl and returns the fitted transformer.
	Fit(ctx context.Context, tbl *table.Table) (Transformer, error)
}

// Stage is one pipeline step: either an Estimator, a Transformer, or both.
// Kind identifies the stage type for persistence.
type Stage interface {
	Kind() string
}

// Pipeline is an ordered sequence of stages. The zero value is unusable; use
// New.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates a pipeline from stages. Every stage must be an Estimator or a
// Transformer.
func New(logger *slog.Logger, stages ...Stage) (*Pipeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for i, s := range stages {
		switch s.(type) {
		case Estimator, Transformer:
		default:
			return nil, fmt.Errorf("stage %d (%s): neither estimator nor transformer", i, s.Kind())
		}
	}
	return &Pipeline{stages: stages, logger: logger}, nil
}

// Stages returns the pipeline's stages in order.
func (p *Pipeline) Stages() []Stage { return p.stages }

// Fit fits the pipeline on tbl. Estimator stages are fitted on the data as
// transformed by all preceding stages; transformer stages pass through
// unchanged. The result holds one fitted transformer per stage.
func (p *Pipeline) Fit(ctx context.Context, tbl *table.Table) (*Model, error) {
	fitted := make([]Transformer, 0, len(p.stages))
	current := tbl
	for i, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var tr Transformer
		switch stage := s.(type) {
		case Estimator:
			p.logger.Debug("fitting stage", "index", i, "kind", s.Kind())
			var err error
			tr, err = stage.Fit(ctx, current)
			if err != nil {
				return nil, fmt.Errorf("fit stage %d (%s): %w", i, s.Kind(), err)
			}
		case Transformer:
			tr = stage
		}

		// Transform for the benefit of later stages; the last stage's
		// output is discarded.
		if i < len(p.stages)-1 {
			next, err := tr.Transform(ctx, current)
			if err != nil {
				return nil, fmt.Errorf("transform after stage %d (%s): %w", i, s.Kind(), err)
			}
			current = next
		}
		fitted = append(fitted, tr)
	}
	return &Model{transformers: fitted, logger: p.logger}, nil
}

// Model is a fitted pipeline: an ordered chain of transformers.
type Model struct {
	transformers []Transformer
	logger       *slog.Logger
}

// NewModel assembles a model from fitted transformers, in application order.
func NewModel(logger *slog.Logger, transformers ...Transformer) *Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Model{transformers: transformers, logger: logger}
}

// Transformers returns the chain in application order.
func (m *Model) Transformers() []Transformer { return m.transformers }

// Transform runs tbl through the full chain.
func (m *Model) Transform(ctx context.Context, tbl *table.Table) (*table.Table, error) {
	current := tbl
	for i, tr := range m.transformers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := tr.Transform(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("transform stage %d: %w", i, err)
		}
		current = next
	}
	return current, nil
}
