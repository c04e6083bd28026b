package tuning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
)

// Candidate records one evaluated hyperparameter assignment.
type Candidate struct {
	Params ParamMap
	Metric float64
}

// Result is the outcome of a tuning run: the winning model refitted on all
// data, plus the full evaluation record.
type Result struct {
	Model      *pipeline.Model
	Best       ParamMap
	BestMetric float64
	Candidates []Candidate
}

// TrainValidationSplit selects hyperparameters by a single train/validation
// split: each grid point is fitted on the training fraction, scored on the
// held-out rows, and the winner is refitted on the full data.
type TrainValidationSplit struct {
	// Build constructs a pipeline for one hyperparameter assignment.
	Build func(params ParamMap) (*pipeline.Pipeline, error)

	// Grid holds the assignments to try. An empty grid evaluates the
	// default assignment once.
	Grid []ParamMap

	// Evaluator scores a transformed validation table. Higher wins.
	Evaluator *BinaryClassificationEvaluator

	// TrainRatio is the training fraction, defaulting to 0.75.
	TrainRatio float64

	// Seed drives the split shuffle.
	Seed int64

	Logger *slog.Logger
}

// Fit runs the search.
func (s *TrainValidationSplit) Fit(ctx context.Context, tbl *table.Table) (*Result, error) {
	if s.Build == nil {
		return nil, fmt.Errorf("train/validation split: no pipeline builder")
	}
	if s.Evaluator == nil {
		return nil, fmt.Errorf("train/validation split: no evaluator")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ratio := s.TrainRatio
	if ratio == 0 {
		ratio = 0.75
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("train/validation split: train ratio %v outside (0, 1)", ratio)
	}

	grid := s.Grid
	if len(grid) == 0 {
		grid = []ParamMap{{}}
	}

	train, validation, err := tbl.RandomSplit(ratio, s.Seed)
	if err != nil {
		return nil, fmt.Errorf("train/validation split: %w", err)
	}
	if train.NumRows() == 0 || validation.NumRows() == 0 {
		return nil, fmt.Errorf("train/validation split: ratio %v leaves an empty partition for %d rows",
			ratio, tbl.NumRows())
	}
	logger.Info("tuning started",
		"candidates", len(grid), "train_rows", train.NumRows(), "validation_rows", validation.NumRows())

	result := &Result{Candidates: make([]Candidate, 0, len(grid))}
	for i, params := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := s.Build(params)
		if err != nil {
			return nil, fmt.Errorf("build candidate %s: %w", params, err)
		}
		model, err := p.Fit(ctx, train)
		if err != nil {
			return nil, fmt.Errorf("fit candidate %s: %w", params, err)
		}
		scored, err := model.Transform(ctx, validation)
		if err != nil {
			return nil, fmt.Errorf("score candidate %s: %w", params, err)
		}
		metric, err := s.Evaluator.Evaluate(scored)
		if err != nil {
			return nil, fmt.Errorf("evaluate candidate %s: %w", params, err)
		}

		logger.Debug("candidate evaluated", "params", params.String(), "metric", metric)
		result.Candidates = append(result.Candidates, Candidate{Params: params, Metric: metric})
		if i == 0 || metric > result.BestMetric {
			result.Best = params
			result.BestMetric = metric
		}
	}

	// Refit the winner on everything.
	p, err := s.Build(result.Best)
	if err != nil {
		return nil, fmt.Errorf("rebuild best candidate %s: %w", result.Best, err)
	}
	model, err := p.Fit(ctx, tbl)
	if err != nil {
		return nil, fmt.Errorf("refit best candidate %s: %w", result.Best, err)
	}
	result.Model = model

	logger.Info("tuning finished", "best", result.Best.String(), "metric", result.BestMetric)
	return result, nil
}
