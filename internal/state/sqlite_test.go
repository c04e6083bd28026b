package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(nil)
	require.NoError(t, s.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRunsMigrations(t *testing.T) {
	s := openStore(t)

	// Migrated schema accepts inserts right away.
	run, err := s.CreateRun("flight_delays", "local")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("flight_delays", "local")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	require.NoError(t, s.CompleteRun(run.ID, RunStatusCompleted, ""))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, "flight_delays", got.Pipeline)
	assert.Equal(t, "local", got.Environment)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Error)
}

func TestFailedRunKeepsError(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("flight_delays", "local")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(run.ID, RunStatusFailed, "clean_data: boom"))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "clean_data: boom", got.Error)
}

func TestGetRunNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetRun("no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestCompleteRunNotFound(t *testing.T) {
	s := openStore(t)
	err := s.CompleteRun("no-such-run", RunStatusCompleted, "")
	require.Error(t, err)
}

func TestGetLatestRun(t *testing.T) {
	s := openStore(t)

	latest, err := s.GetLatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest, "no runs yet")

	_, err = s.CreateRun("flight_delays", "local")
	require.NoError(t, err)
	second, err := s.CreateRun("flight_delays", "prod")
	require.NoError(t, err)

	latest, err = s.GetLatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestListRuns(t *testing.T) {
	s := openStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		run, err := s.CreateRun("flight_delays", "local")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first.
	assert.Equal(t, ids[4], runs[0].ID)
	assert.Equal(t, ids[3], runs[1].ID)
	assert.Equal(t, ids[2], runs[2].ID)
}

func TestNodeRunLifecycle(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("flight_delays", "local")
	require.NoError(t, err)

	first, err := s.StartNodeRun(run.ID, "select_columns")
	require.NoError(t, err)
	require.NoError(t, s.CompleteNodeRun(first.ID, NodeRunStatusSuccess, 100, ""))

	second, err := s.StartNodeRun(run.ID, "clean_data")
	require.NoError(t, err)
	require.NoError(t, s.CompleteNodeRun(second.ID, NodeRunStatusFailed, 0, "null check failed"))

	nodeRuns, err := s.ListNodeRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, nodeRuns, 2)

	assert.Equal(t, "select_columns", nodeRuns[0].NodeName)
	assert.Equal(t, NodeRunStatusSuccess, nodeRuns[0].Status)
	assert.Equal(t, int64(100), nodeRuns[0].RowsOut)
	require.NotNil(t, nodeRuns[0].CompletedAt)

	assert.Equal(t, "clean_data", nodeRuns[1].NodeName)
	assert.Equal(t, NodeRunStatusFailed, nodeRuns[1].Status)
	assert.Equal(t, "null check failed", nodeRuns[1].Error)
}

func TestListNodeRunsEmpty(t *testing.T) {
	s := openStore(t)
	run, err := s.CreateRun("flight_delays", "local")
	require.NoError(t, err)

	nodeRuns, err := s.ListNodeRuns(run.ID)
	require.NoError(t, err)
	assert.Empty(t, nodeRuns)
}

func TestNotOpened(t *testing.T) {
	s := NewSQLiteStore(nil)
	_, err := s.CreateRun("p", "e")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not opened")
}
