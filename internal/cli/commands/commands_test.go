package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/config"
	"github.com/leapstack-labs/leapml/internal/testutil"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SetContext(config.WithLogger(context.Background(), testutil.NewTestLogger(t)))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, NewVersionCommand("1.2.3"))
	require.NoError(t, err)
	assert.Contains(t, out, "LeapML v1.2.3")
}

func TestInitCommand(t *testing.T) {
	config.ResetConfig()
	dir := filepath.Join(t.TempDir(), "proj")

	out, err := execute(t, NewInitCommand(), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "project initialized")

	assert.FileExists(t, filepath.Join(dir, "leapml.yaml"))
	assert.FileExists(t, filepath.Join(dir, "catalog.yaml"))
	assert.DirExists(t, filepath.Join(dir, "data"))

	// The scaffolded config loads and validates.
	cfg, err := config.LoadConfig(filepath.Join(dir, "leapml.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "DepDel15", cfg.Features.TargetField)
	config.ResetConfig()
}

func TestInitCommand_ExistingConfig(t *testing.T) {
	config.ResetConfig()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapml.yaml"), []byte("environment: prod\n"), 0o640))

	_, err := execute(t, NewInitCommand(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestNodesCommand(t *testing.T) {
	config.ResetConfig()
	t.Chdir(t.TempDir())

	out, err := execute(t, NewNodesCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "select_columns")
	assert.Contains(t, out, "train_model")
	assert.Contains(t, out, "flights_raw")
	assert.Contains(t, out, "Entry: select_columns")
	assert.Contains(t, out, "Final: score")
}

func TestNodesCommand_Order(t *testing.T) {
	config.ResetConfig()
	t.Chdir(t.TempDir())

	out, err := execute(t, NewNodesCommand())
	require.NoError(t, err)

	// Topological order puts cleaning before feature extraction.
	clean := bytes.Index([]byte(out), []byte("clean_data"))
	features := bytes.Index([]byte(out), []byte("feature_extraction"))
	train := bytes.Index([]byte(out), []byte("train_model"))
	score := bytes.Index([]byte(out), []byte("score"))
	require.GreaterOrEqual(t, clean, 0)
	assert.Less(t, clean, features)
	assert.Less(t, features, train)
	assert.Less(t, train, score)
}

func TestCatalogCommand(t *testing.T) {
	config.ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)

	catalogYAML := `
flights_raw:
  type: file
  filepath: data/flights.csv
  file_format: csv
predictions:
  type: file
  filepath: data/predictions.jsonl
  file_format: jsonl
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(catalogYAML), 0o640))

	out, err := execute(t, NewCatalogCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "flights_raw")
	assert.Contains(t, out, "predictions")
	assert.Contains(t, out, "jsonl")
}

func TestCatalogCommand_MissingFile(t *testing.T) {
	config.ResetConfig()
	t.Chdir(t.TempDir())

	_, err := execute(t, NewCatalogCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}

func TestRunsCommand_Empty(t *testing.T) {
	config.ResetConfig()
	t.Chdir(t.TempDir())

	out, err := execute(t, NewRunsCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}
