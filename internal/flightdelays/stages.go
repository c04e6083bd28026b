// Package flightdelays implements the flight departure delay prediction
// pipeline: column selection, cleaning, feature extraction, and model
// training over the dataset catalog.
package flightdelays

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/leapstack-labs/leapml/internal/config"
	"github.com/leapstack-labs/leapml/pkg/ensemble"
	"github.com/leapstack-labs/leapml/pkg/feature"
	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/tuning"
)

// FeaturesColumn is the assembled feature vector column name.
const FeaturesColumn = "features"

// FeatureStages builds the transformer chain for the configured field
// groups. String fields are frequency-indexed then one-hot encoded;
// rows with labels unseen during fitting are dropped at transform time.
// Categorical integer fields are one-hot encoded directly, and
// continuous fields pass through to the assembler unchanged.
func FeatureStages(f config.FeatureConfig) []pipeline.Stage {
	stages := make([]pipeline.Stage, 0, 2*len(f.StringFields)+len(f.CategoricalFields)+1)
	vecInputs := make([]string, 0, len(f.StringFields)+len(f.CategoricalFields)+len(f.ContinuousFields))

	for _, name := range f.StringFields {
		idxCol := name + "_index"
		vecCol := name + "_vec"
		stages = append(stages,
			&feature.StringIndexer{InputCol: name, OutputCol: idxCol, HandleInvalid: feature.HandleInvalidSkip},
			&feature.OneHotEncoder{InputCol: idxCol, OutputCol: vecCol, DropLast: true},
		)
		vecInputs = append(vecInputs, vecCol)
	}
	for _, name := range f.CategoricalFields {
		vecCol := name + "_vec"
		stages = append(stages, &feature.OneHotEncoder{InputCol: name, OutputCol: vecCol, DropLast: true})
		vecInputs = append(vecInputs, vecCol)
	}
	vecInputs = append(vecInputs, f.ContinuousFields...)

	stages = append(stages, &feature.VectorAssembler{InputCols: vecInputs, OutputCol: FeaturesColumn})
	return stages
}

// IntermediateColumns lists the columns the stage chain appends before
// the classifier runs, in creation order. Batch outputs drop these.
func IntermediateColumns(f config.FeatureConfig) []string {
	cols := make([]string, 0, 2*len(f.StringFields)+len(f.CategoricalFields)+1)
	for _, name := range f.StringFields {
		cols = append(cols, name+"_index", name+"_vec")
	}
	for _, name := range f.CategoricalFields {
		cols = append(cols, name+"_vec")
	}
	return append(cols, FeaturesColumn)
}

// BuildPipeline assembles the full fit pipeline, overriding classifier
// settings with any values present in params.
func BuildPipeline(logger *slog.Logger, f config.FeatureConfig, m config.ModelConfig, params tuning.ParamMap) (*pipeline.Pipeline, error) {
	numTrees, err := intParam(params, "num_trees", m.NumTrees)
	if err != nil {
		return nil, err
	}
	maxDepth, err := intParam(params, "max_depth", m.MaxDepth)
	if err != nil {
		return nil, err
	}
	minInstances, err := intParam(params, "min_instances_per_node", m.MinInstancesPerNode)
	if err != nil {
		return nil, err
	}
	maxFeatures, err := intParam(params, "max_features", 0)
	if err != nil {
		return nil, err
	}
	for name := range params {
		switch name {
		case "num_trees", "max_depth", "min_instances_per_node", "max_features":
		default:
			return nil, fmt.Errorf("unknown hyperparameter %q", name)
		}
	}

	classifier := &ensemble.RandomForestClassifier{
		FeaturesCol:         FeaturesColumn,
		LabelCol:            f.TargetField,
		NumTrees:            numTrees,
		MaxDepth:            maxDepth,
		MinInstancesPerNode: minInstances,
		MaxFeatures:         maxFeatures,
		Seed:                m.Seed,
	}

	stages := append(FeatureStages(f), classifier)
	return pipeline.New(logger, stages...)
}

// ParamGrid expands the configured hyperparameter grid into assignments
// for the train/validation search. An empty grid yields the single
// default assignment. Parameters are added in sorted name order so ties
// in the search resolve the same way on every run.
func ParamGrid(m config.ModelConfig) []tuning.ParamMap {
	names := make([]string, 0, len(m.Grid))
	for name := range m.Grid {
		names = append(names, name)
	}
	sort.Strings(names)

	b := tuning.NewGridBuilder()
	for _, name := range names {
		b.Add(name, m.Grid[name]...)
	}
	return b.Build()
}

// intParam reads an integer hyperparameter from params, tolerating the
// numeric types YAML decoding produces.
func intParam(params tuning.ParamMap, name string, fallback int) (int, error) {
	v, ok := params[name]
	if !ok {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("hyperparameter %q must be an integer, got %v", name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("hyperparameter %q must be an integer, got %T", name, v)
	}
}
