package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	return table.MustNew(
		table.NewStringColumn("Airline", []string{"UA", "DL", "AA"}),
		table.NewIntColumn("Distance", []int64{2475, 1090, 731}),
		table.NewFloatColumn("DepHour", []float64{9.05, 13.3, 6.0}),
	)
}

func TestRegistered(t *testing.T) {
	assert.True(t, backend.IsRegistered("file"))
}

func TestCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New(nil)
	spec := backend.Spec{
		Name:       "flights",
		Filepath:   filepath.Join(t.TempDir(), "flights.csv"),
		FileFormat: "csv",
	}

	exists, err := b.Exists(ctx, spec)
	require.NoError(t, err)
	assert.False(t, exists)

	want := sampleTable(t)
	require.NoError(t, b.Save(ctx, spec, want))

	exists, err = b.Exists(ctx, spec)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := b.Load(ctx, spec)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestJSONLRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New(nil)
	spec := backend.Spec{
		Name:       "predictions",
		Filepath:   filepath.Join(t.TempDir(), "predictions.jsonl"),
		FileFormat: "jsonl",
	}

	want := sampleTable(t)
	require.NoError(t, b.Save(ctx, spec, want))

	got, err := b.Load(ctx, spec)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestDefaultFormatIsCSV(t *testing.T) {
	ctx := context.Background()
	b := New(nil)
	spec := backend.Spec{Name: "d", Filepath: filepath.Join(t.TempDir(), "d.csv")}

	require.NoError(t, b.Save(ctx, spec, sampleTable(t)))
	data, err := os.ReadFile(spec.Filepath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Airline,Distance,DepHour")
}

func TestSaveModes(t *testing.T) {
	ctx := context.Background()
	b := New(nil)
	tbl := sampleTable(t)

	t.Run("error mode refuses second save", func(t *testing.T) {
		spec := backend.Spec{Name: "d", Filepath: filepath.Join(t.TempDir(), "d.csv")}
		require.NoError(t, b.Save(ctx, spec, tbl))

		err := b.Save(ctx, spec, tbl)
		var conflict *backend.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "d", conflict.Name)
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		spec := backend.Spec{
			Name:     "d",
			Filepath: filepath.Join(t.TempDir(), "d.csv"),
			SaveArgs: map[string]any{"mode": "overwrite"},
		}
		require.NoError(t, b.Save(ctx, spec, tbl))
		require.NoError(t, b.Save(ctx, spec, tbl.Head(1)))

		got, err := b.Load(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, 1, got.NumRows())
	})

	t.Run("append adds rows without repeating the header", func(t *testing.T) {
		spec := backend.Spec{
			Name:     "d",
			Filepath: filepath.Join(t.TempDir(), "d.csv"),
			SaveArgs: map[string]any{"mode": "append"},
		}
		require.NoError(t, b.Save(ctx, spec, tbl))
		require.NoError(t, b.Save(ctx, spec, tbl))

		got, err := b.Load(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, 6, got.NumRows())
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		spec := backend.Spec{
			Name:     "d",
			Filepath: filepath.Join(t.TempDir(), "d.csv"),
			SaveArgs: map[string]any{"mode": "merge"},
		}
		err := b.Save(ctx, spec, tbl)
		var writeErr *backend.WriteError
		require.ErrorAs(t, err, &writeErr)
	})
}

func TestSaveCreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	b := New(nil)
	spec := backend.Spec{
		Name:     "d",
		Filepath: filepath.Join(t.TempDir(), "data", "02_intermediate", "d.csv"),
	}
	require.NoError(t, b.Save(ctx, spec, sampleTable(t)))

	exists, err := b.Exists(ctx, spec)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLoadMissingFile(t *testing.T) {
	b := New(nil)
	_, err := b.Load(context.Background(), backend.Spec{
		Name:     "d",
		Filepath: filepath.Join(t.TempDir(), "absent.csv"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2,3\n"), 0o640))

	b := New(nil)
	_, err := b.Load(context.Background(), backend.Spec{Name: "bad", Filepath: path, FileFormat: "csv"})
	var formatErr *backend.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "bad", formatErr.Name)
	assert.Equal(t, "csv", formatErr.Format)
}

func TestLoadArgsDelimiterAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.csv")
	require.NoError(t, os.WriteFile(path, []byte("UA;2475\nDL;1090\n"), 0o640))

	b := New(nil)
	tbl, err := b.Load(context.Background(), backend.Spec{
		Name:     "d",
		Filepath: path,
		LoadArgs: map[string]any{"header": false, "delimiter": ";"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
}

func TestUnsupportedFormat(t *testing.T) {
	b := New(nil)
	_, err := b.Load(context.Background(), backend.Spec{
		Name:       "d",
		Filepath:   writeTemp(t, "x"),
		FileFormat: "parquet",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported file format "parquet"`)
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}
