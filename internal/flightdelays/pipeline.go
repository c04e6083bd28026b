package flightdelays

import (
	"log/slog"

	"github.com/leapstack-labs/leapml/internal/config"
	"github.com/leapstack-labs/leapml/internal/runner"
)

// PipelineName identifies the flight delay pipeline in run history.
const PipelineName = "flight_delays"

// NewPipeline wires the flight delay nodes into an executable pipeline:
// select_columns -> clean_data -> feature_extraction -> train_model -> score.
func NewPipeline(logger *slog.Logger, cfg *config.Config) (*runner.Pipeline, error) {
	return runner.NewPipeline(PipelineName,
		runner.Node{
			Name:    "select_columns",
			Inputs:  []string{DatasetRaw},
			Outputs: []string{DatasetSelected},
			Func:    SelectColumns(logger, cfg.Job.Columns),
		},
		runner.Node{
			Name:    "clean_data",
			Inputs:  []string{DatasetSelected},
			Outputs: []string{DatasetClean},
			Func:    CleanData(logger),
		},
		runner.Node{
			Name:    "feature_extraction",
			Inputs:  []string{DatasetClean},
			Outputs: []string{DatasetFeatures},
			Func:    ExtractFeatures(logger),
		},
		runner.Node{
			Name:    "train_model",
			Inputs:  []string{DatasetFeatures},
			Outputs: []string{DatasetPredictions, DatasetHoldout},
			Func:    TrainModel(logger, cfg),
		},
		runner.Node{
			Name:   "score",
			Inputs: []string{DatasetHoldout},
			Func:   Score(logger, cfg),
		},
	)
}
