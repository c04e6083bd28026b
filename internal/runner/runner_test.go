package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/catalog"
	"github.com/leapstack-labs/leapml/internal/state"
	"github.com/leapstack-labs/leapml/pkg/table"

	_ "github.com/leapstack-labs/leapml/pkg/backends/memory"
)

func passthrough(in, out string) Func {
	return func(_ context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error) {
		return map[string]*table.Table{out: inputs[in]}, nil
	}
}

func constant(out string, tbl *table.Table) Func {
	return func(context.Context, map[string]*table.Table) (map[string]*table.Table, error) {
		return map[string]*table.Table{out: tbl}, nil
	}
}

func testTable() *table.Table {
	return table.MustNew(table.NewIntColumn("x", []int64{1, 2, 3}))
}

func memoryCatalog(t *testing.T, names ...string) *catalog.Catalog {
	t.Helper()
	entries := make(map[string]catalog.Entry, len(names))
	for _, n := range names {
		entries[n] = catalog.Entry{Type: "memory"}
	}
	c, err := catalog.New(entries, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func openStore(t *testing.T) state.Store {
	t.Helper()
	s := state.NewSQLiteStore(nil)
	require.NoError(t, s.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewPipelineValidation(t *testing.T) {
	ok := Node{Name: "a", Outputs: []string{"d1"}, Func: constant("d1", testTable())}

	t.Run("empty pipeline", func(t *testing.T) {
		_, err := NewPipeline("p")
		require.Error(t, err)
	})

	t.Run("duplicate node names", func(t *testing.T) {
		_, err := NewPipeline("p", ok, Node{Name: "a", Func: ok.Func})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate node name "a"`)
	})

	t.Run("duplicate outputs", func(t *testing.T) {
		_, err := NewPipeline("p", ok, Node{Name: "b", Outputs: []string{"d1"}, Func: ok.Func})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `dataset "d1" produced by both`)
	})

	t.Run("missing function", func(t *testing.T) {
		_, err := NewPipeline("p", Node{Name: "a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no function")
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := NewPipeline("p",
			Node{Name: "a", Inputs: []string{"d2"}, Outputs: []string{"d1"}, Func: passthrough("d2", "d1")},
			Node{Name: "b", Inputs: []string{"d1"}, Outputs: []string{"d2"}, Func: passthrough("d1", "d2")},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})
}

func TestFreeInputs(t *testing.T) {
	p, err := NewPipeline("p",
		Node{Name: "a", Inputs: []string{"raw"}, Outputs: []string{"mid"}, Func: passthrough("raw", "mid")},
		Node{Name: "b", Inputs: []string{"mid", "lookup"}, Outputs: []string{"out"}, Func: passthrough("mid", "out")},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"lookup", "raw"}, p.FreeInputs())
}

func TestRunThreadsIntermediates(t *testing.T) {
	// raw comes from the catalog, mid is threaded in memory without
	// registration, out is saved back to the catalog.
	ctx := context.Background()
	cat := memoryCatalog(t, "raw", "out")
	require.NoError(t, cat.Save(ctx, "raw", testTable()))

	p, err := NewPipeline("p",
		Node{Name: "a", Inputs: []string{"raw"}, Outputs: []string{"mid"}, Func: passthrough("raw", "mid")},
		Node{Name: "b", Inputs: []string{"mid"}, Outputs: []string{"out"}, Func: passthrough("mid", "out")},
	)
	require.NoError(t, err)

	r := &Runner{Catalog: cat}
	result, err := r.Run(ctx, p, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Executed)
	assert.Empty(t, result.Skipped)

	got, err := cat.Load(ctx, "out")
	require.NoError(t, err)
	assert.True(t, testTable().Equal(got))

	// The intermediate was never registered, so it is not addressable.
	_, err = cat.Load(ctx, "mid")
	require.Error(t, err)
}

func TestRunRecordsHistory(t *testing.T) {
	ctx := context.Background()
	cat := memoryCatalog(t, "raw")
	require.NoError(t, cat.Save(ctx, "raw", testTable()))
	store := openStore(t)

	p, err := NewPipeline("flight_delays",
		Node{Name: "a", Inputs: []string{"raw"}, Outputs: []string{"mid"}, Func: passthrough("raw", "mid")},
	)
	require.NoError(t, err)

	r := &Runner{Catalog: cat, Store: store}
	result, err := r.Run(ctx, p, Options{Environment: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	run, err := store.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, "flight_delays", run.Pipeline)
	assert.Equal(t, "test", run.Environment)

	nodeRuns, err := store.ListNodeRuns(result.RunID)
	require.NoError(t, err)
	require.Len(t, nodeRuns, 1)
	assert.Equal(t, state.NodeRunStatusSuccess, nodeRuns[0].Status)
	assert.Equal(t, int64(3), nodeRuns[0].RowsOut)
}

func TestRunFailureSkipsDownstream(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	boom := func(context.Context, map[string]*table.Table) (map[string]*table.Table, error) {
		return nil, fmt.Errorf("boom")
	}
	p, err := NewPipeline("p",
		Node{Name: "a", Outputs: []string{"d1"}, Func: constant("d1", testTable())},
		Node{Name: "b", Inputs: []string{"d1"}, Outputs: []string{"d2"}, Func: boom},
		Node{Name: "c", Inputs: []string{"d2"}, Outputs: []string{"d3"}, Func: passthrough("d2", "d3")},
	)
	require.NoError(t, err)

	r := &Runner{Store: store}
	result, err := r.Run(ctx, p, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node "b": boom`)
	assert.Equal(t, []string{"a"}, result.Executed)
	assert.Equal(t, []string{"c"}, result.Skipped)

	run, err := store.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)

	nodeRuns, err := store.ListNodeRuns(result.RunID)
	require.NoError(t, err)
	require.Len(t, nodeRuns, 3)
	statuses := map[string]state.NodeRunStatus{}
	for _, nr := range nodeRuns {
		statuses[nr.NodeName] = nr.Status
	}
	assert.Equal(t, state.NodeRunStatusSuccess, statuses["a"])
	assert.Equal(t, state.NodeRunStatusFailed, statuses["b"])
	assert.Equal(t, state.NodeRunStatusSkipped, statuses["c"])
}

func TestRunMissingOutput(t *testing.T) {
	p, err := NewPipeline("p",
		Node{Name: "a", Outputs: []string{"d1", "d2"}, Func: constant("d1", testTable())},
	)
	require.NoError(t, err)

	r := &Runner{}
	_, err = r.Run(context.Background(), p, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `declared output "d2" was not produced`)
}

func TestRunSelectDownstream(t *testing.T) {
	// Selecting b runs b and c; b's input must come from the catalog
	// since a is not executed.
	ctx := context.Background()
	cat := memoryCatalog(t, "mid")
	require.NoError(t, cat.Save(ctx, "mid", testTable()))

	p, err := NewPipeline("p",
		Node{Name: "a", Inputs: []string{"raw"}, Outputs: []string{"mid"}, Func: passthrough("raw", "mid")},
		Node{Name: "b", Inputs: []string{"mid"}, Outputs: []string{"d2"}, Func: passthrough("mid", "d2")},
		Node{Name: "c", Inputs: []string{"d2"}, Outputs: []string{"d3"}, Func: passthrough("d2", "d3")},
	)
	require.NoError(t, err)

	r := &Runner{Catalog: cat}
	result, err := r.Run(ctx, p, Options{Select: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, result.Executed)
}

func TestRunSelectUnknownNode(t *testing.T) {
	p, err := NewPipeline("p", Node{Name: "a", Outputs: []string{"d1"}, Func: constant("d1", testTable())})
	require.NoError(t, err)

	r := &Runner{}
	_, err = r.Run(context.Background(), p, Options{Select: []string{"zzz"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no node "zzz"`)
}

func TestRunMissingInputWithoutCatalog(t *testing.T) {
	p, err := NewPipeline("p",
		Node{Name: "a", Inputs: []string{"raw"}, Outputs: []string{"d1"}, Func: passthrough("raw", "d1")},
	)
	require.NoError(t, err)

	r := &Runner{}
	_, err = r.Run(context.Background(), p, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no catalog configured")
}
