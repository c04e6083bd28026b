package tuning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/pkg/ensemble"
	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func tuningTable() *table.Table {
	n := 60
	vectors := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i) / float64(n)
		vectors[i] = []float64{v, 1 - v}
		if v >= 0.5 {
			labels[i] = 1
		}
	}
	return table.MustNew(
		table.NewVectorColumn("features", vectors),
		table.NewFloatColumn("label", labels),
	)
}

func forestBuilder(t *testing.T) func(ParamMap) (*pipeline.Pipeline, error) {
	t.Helper()
	return func(params ParamMap) (*pipeline.Pipeline, error) {
		numTrees := 5
		if v, ok := params["num_trees"]; ok {
			numTrees = v.(int)
		}
		maxDepth := 3
		if v, ok := params["max_depth"]; ok {
			maxDepth = v.(int)
		}
		return pipeline.New(nil, &ensemble.RandomForestClassifier{
			FeaturesCol: "features",
			LabelCol:    "label",
			NumTrees:    numTrees,
			MaxDepth:    maxDepth,
			Seed:        11,
		})
	}
}

func TestTrainValidationSplit(t *testing.T) {
	grid := NewGridBuilder().
		Add("num_trees", 3, 8).
		Add("max_depth", 2, 4).
		Build()

	s := &TrainValidationSplit{
		Build: forestBuilder(t),
		Grid:  grid,
		Evaluator: &BinaryClassificationEvaluator{
			LabelCol:       "label",
			ProbabilityCol: "probability",
		},
		TrainRatio: 0.75,
		Seed:       5,
	}

	result, err := s.Fit(context.Background(), tuningTable())
	require.NoError(t, err)
	require.NotNil(t, result.Model)
	require.Len(t, result.Candidates, 4)

	assert.Contains(t, grid, result.Best)
	for _, c := range result.Candidates {
		assert.GreaterOrEqual(t, c.Metric, 0.0)
		assert.LessOrEqual(t, c.Metric, 1.0)
		assert.LessOrEqual(t, c.Metric, result.BestMetric)
	}

	// The refitted winner classifies the easy data well.
	out, err := result.Model.Transform(context.Background(), tuningTable())
	require.NoError(t, err)
	acc, err := (&BinaryClassificationEvaluator{
		LabelCol: "label", PredictionCol: "prediction", Metric: MetricAccuracy,
	}).Evaluate(out)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.85)
}

func TestTrainValidationSplitEmptyGridUsesDefaults(t *testing.T) {
	s := &TrainValidationSplit{
		Build: forestBuilder(t),
		Evaluator: &BinaryClassificationEvaluator{
			LabelCol:       "label",
			ProbabilityCol: "probability",
		},
		Seed: 5,
	}
	result, err := s.Fit(context.Background(), tuningTable())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Empty(t, result.Best)
}

func TestTrainValidationSplitBadRatio(t *testing.T) {
	s := &TrainValidationSplit{
		Build:      forestBuilder(t),
		Evaluator:  &BinaryClassificationEvaluator{LabelCol: "label", ProbabilityCol: "probability"},
		TrainRatio: 1.5,
	}
	_, err := s.Fit(context.Background(), tuningTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside (0, 1)")
}

func TestTrainValidationSplitMissingBuilder(t *testing.T) {
	s := &TrainValidationSplit{Evaluator: &BinaryClassificationEvaluator{}}
	_, err := s.Fit(context.Background(), tuningTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pipeline builder")
}
