package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapml/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new LeapML project",
		Long: `Initialize a new LeapML project with default configuration.

This creates:
  - leapml.yaml project configuration
  - catalog.yaml dataset catalog
  - data/ directory for input and output files`,
		Example: `  # Initialize in current directory
  leapml init

  # Initialize in a new directory
  leapml init my-project

  # Force overwrite existing config
  leapml init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "leapml.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leapml.yaml already exists. Use --force to overwrite")
	}

	if err := writeProjectConfig(configPath); err != nil {
		return err
	}
	if err := writeCatalogConfig(filepath.Join(dir, "catalog.yaml")); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o750); err != nil {
		return err
	}

	r.Success("leapml.yaml")
	r.Success("catalog.yaml")
	r.Success("data/")
	r.Println("")
	r.Success("LeapML project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Put raw flight records in data/flights.csv")
	r.Println("  2. Run 'leapml run' to train the model")
	r.Println("  3. Run 'leapml runs' to inspect run history")

	return nil
}

func writeProjectConfig(path string) error {
	features := config.DefaultFeatures()
	model := config.DefaultModel()
	job := config.DefaultJob()

	cfg := map[string]any{
		"environment":  config.DefaultEnv,
		"catalog_path": config.DefaultCatalogFile,
		"state_path":   config.DefaultStateFile,
		"features": map[string]any{
			"string_fields":      features.StringFields,
			"categorical_fields": features.CategoricalFields,
			"continuous_fields":  features.ContinuousFields,
			"target_field":       features.TargetField,
		},
		"model": map[string]any{
			"num_trees":   model.NumTrees,
			"max_depth":   model.MaxDepth,
			"train_ratio": model.TrainRatio,
			"seed":        model.Seed,
			"metric":      model.Metric,
		},
		"job": map[string]any{
			"columns":   job.Columns,
			"model_dir": job.ModelDir,
		},
	}
	return writeYAML(path, cfg)
}

func writeCatalogConfig(path string) error {
	datasets := map[string]any{
		"flights_raw": map[string]any{
			"type":        "file",
			"filepath":    "data/flights.csv",
			"file_format": "csv",
			"load_args": map[string]any{
				"header":       true,
				"infer_schema": true,
			},
		},
		"flights_features": map[string]any{
			"type":        "file",
			"filepath":    "data/flights_features.csv",
			"file_format": "csv",
			"save_args": map[string]any{
				"mode": "overwrite",
			},
		},
		"predictions": map[string]any{
			"type":        "file",
			"filepath":    "data/predictions.jsonl",
			"file_format": "jsonl",
			"save_args": map[string]any{
				"mode": "overwrite",
			},
		},
	}
	return writeYAML(path, datasets)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}
