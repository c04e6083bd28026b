package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"

	_ "github.com/leapstack-labs/leapml/pkg/backends/file"
	_ "github.com/leapstack-labs/leapml/pkg/backends/memory"
)

func sampleTable() *table.Table {
	return table.MustNew(
		table.NewStringColumn("Airline", []string{"UA", "DL"}),
		table.NewIntColumn("Distance", []int64{2475, 1090}),
	)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(map[string]Entry{
		"flights": {Type: "s3"},
	}, nil)
	require.Error(t, err)

	var unknownErr *backend.UnknownBackendError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "s3", unknownErr.Type)
}

func TestNewRejectsMissingType(t *testing.T) {
	_, err := New(map[string]Entry{"flights": {}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing storage type")
}

func TestListSorted(t *testing.T) {
	c, err := New(map[string]Entry{
		"b_data": {Type: "memory"},
		"a_data": {Type: "memory"},
		"c_data": {Type: "memory"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_data", "b_data", "c_data"}, c.List())
}

func TestLoadUnregisteredDataset(t *testing.T) {
	c, err := New(map[string]Entry{"known": {Type: "memory"}}, nil)
	require.NoError(t, err)

	_, err = c.Load(context.Background(), "unknown")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "unknown", notFound.Name)
	assert.Equal(t, []string{"known"}, notFound.Available)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flights.csv")
	c, err := New(map[string]Entry{
		"flights": {Type: "file", Filepath: path, FileFormat: "csv"},
	}, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	exists, err := c.Exists(ctx, "flights")
	require.NoError(t, err)
	assert.False(t, exists)

	want := sampleTable()
	require.NoError(t, c.Save(ctx, "flights", want))

	got, err := c.Load(ctx, "flights")
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestBackendSharedAcrossEntries(t *testing.T) {
	// Two memory entries share one backend instance, so content saved
	// under one name is invisible under the other but both live in the
	// same store.
	ctx := context.Background()
	c, err := New(map[string]Entry{
		"a": {Type: "memory"},
		"b": {Type: "memory"},
	}, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Save(ctx, "a", sampleTable()))

	exists, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	c, err := New(map[string]Entry{"a": {Type: "memory"}}, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Save(ctx, "a", sampleTable()))
	require.NoError(t, c.Release("a"))

	exists, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAdd(t *testing.T) {
	c, err := New(map[string]Entry{}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Add("fresh", Entry{Type: "memory"}))
	assert.True(t, c.Has("fresh"))

	err = c.Add("bad", Entry{Type: "s3"})
	require.Error(t, err)
	assert.False(t, c.Has("bad"))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	catalogYAML := `
flights_raw:
  type: file
  filepath: data/01_raw/flights.csv
  file_format: csv
  load_args:
    header: true
    infer_schema: true

flights_features:
  type: memory

predictions:
  type: file
  filepath: data/07_model_output/predictions.jsonl
  file_format: jsonl
  save_args:
    mode: overwrite
`
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o640))

	c, err := FromFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"flights_features", "flights_raw", "predictions"}, c.List())

	e, err := c.Get("flights_raw")
	require.NoError(t, err)
	assert.Equal(t, "file", e.Type)
	assert.Equal(t, "data/01_raw/flights.csv", e.Filepath)
	assert.Equal(t, "csv", e.FileFormat)
	assert.Equal(t, true, e.LoadArgs["header"])

	e, err = c.Get("predictions")
	require.NoError(t, err)
	assert.Equal(t, "overwrite", e.SaveArgs["mode"])
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}
