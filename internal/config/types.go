// Package config provides project configuration for LeapML.
// Configuration is loaded from leapml.yaml, environment variables, and
// CLI flags, with flags taking the highest precedence.
package config

import (
	"fmt"
	"strings"
)

// Config holds all project configuration options.
type Config struct {
	// ProjectRoot is the absolute path of the project directory.
	// It is inferred at load time, not read from the config file.
	ProjectRoot string `koanf:"-"`

	CatalogPath  string `koanf:"catalog_path"`
	StatePath    string `koanf:"state_path"`
	Environment  string `koanf:"environment"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Features FeatureConfig `koanf:"features"`
	Model    ModelConfig   `koanf:"model"`
	Job      JobConfig     `koanf:"job"`
}

// FeatureConfig declares which dataset columns feed the feature stages.
// String fields are label-indexed, categorical fields are indexed then
// one-hot encoded, and continuous fields pass through to the assembler
// unchanged.
type FeatureConfig struct {
	StringFields      []string `koanf:"string_fields"`
	CategoricalFields []string `koanf:"categorical_fields"`
	ContinuousFields  []string `koanf:"continuous_fields"`
	TargetField       string   `koanf:"target_field"`
}

// Validate checks that the field groups are usable: a target is named,
// at least one feature field exists, no field appears in two groups, and
// the target is not also a feature.
func (f *FeatureConfig) Validate() error {
	if f.TargetField == "" {
		return fmt.Errorf("features: target_field is required")
	}
	total := len(f.StringFields) + len(f.CategoricalFields) + len(f.ContinuousFields)
	if total == 0 {
		return fmt.Errorf("features: at least one feature field is required")
	}

	seen := make(map[string]string, total)
	groups := []struct {
		name   string
		fields []string
	}{
		{"string_fields", f.StringFields},
		{"categorical_fields", f.CategoricalFields},
		{"continuous_fields", f.ContinuousFields},
	}
	for _, g := range groups {
		for _, field := range g.fields {
			if field == "" {
				return fmt.Errorf("features: %s contains an empty field name", g.name)
			}
			if field == f.TargetField {
				return fmt.Errorf("features: target field %q cannot also be listed in %s", field, g.name)
			}
			if prev, ok := seen[field]; ok {
				return fmt.Errorf("features: field %q appears in both %s and %s", field, prev, g.name)
			}
			seen[field] = g.name
		}
	}
	return nil
}

// AllFields returns every configured field including the target, in
// string, categorical, continuous, target order.
func (f *FeatureConfig) AllFields() []string {
	out := make([]string, 0, len(f.StringFields)+len(f.CategoricalFields)+len(f.ContinuousFields)+1)
	out = append(out, f.StringFields...)
	out = append(out, f.CategoricalFields...)
	out = append(out, f.ContinuousFields...)
	out = append(out, f.TargetField)
	return out
}

// ModelConfig holds classifier and tuning settings.
type ModelConfig struct {
	NumTrees            int     `koanf:"num_trees"`
	MaxDepth            int     `koanf:"max_depth"`
	MinInstancesPerNode int     `koanf:"min_instances_per_node"`
	TrainRatio          float64 `koanf:"train_ratio"`
	Seed                int64   `koanf:"seed"`
	Metric              string  `koanf:"metric"`

	// Grid maps hyperparameter names to candidate values. When more than
	// one value is given for any parameter, training runs a
	// train/validation search over the cartesian product.
	Grid map[string][]any `koanf:"grid"`
}

// Validate checks model settings for obviously broken values.
func (m *ModelConfig) Validate() error {
	if m.NumTrees < 1 {
		return fmt.Errorf("model: num_trees must be at least 1, got %d", m.NumTrees)
	}
	if m.MaxDepth < 1 {
		return fmt.Errorf("model: max_depth must be at least 1, got %d", m.MaxDepth)
	}
	if m.MinInstancesPerNode < 1 {
		return fmt.Errorf("model: min_instances_per_node must be at least 1, got %d", m.MinInstancesPerNode)
	}
	if m.TrainRatio <= 0 || m.TrainRatio >= 1 {
		return fmt.Errorf("model: train_ratio must be in (0, 1), got %v", m.TrainRatio)
	}
	switch strings.ToLower(m.Metric) {
	case "", "areaunderroc", "accuracy":
	default:
		return fmt.Errorf("model: unknown metric %q (available: [accuracy areaUnderROC])", m.Metric)
	}
	return nil
}

// JobConfig holds batch prediction job settings.
type JobConfig struct {
	// Columns lists the raw input columns the job keeps before cleaning.
	Columns []string `koanf:"columns"`

	// ModelDir is where the trained model is saved and loaded from.
	ModelDir string `koanf:"model_dir"`
}

// Validate checks the full configuration.
func (c *Config) Validate() error {
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	return nil
}
