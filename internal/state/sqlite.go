package state

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store instance. Call Open before use.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database and runs pending
// migrations. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to configure sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// migrate runs all pending database migrations.
func (s *SQLiteStore) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) ready() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

// CreateRun starts a new run record in the running state.
func (s *SQLiteStore) CreateRun(pipeline, env string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:          generateID(),
		Pipeline:    pipeline,
		Environment: env,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	s.logger.Debug("creating run", "id", run.ID, "pipeline", pipeline, "environment", env)

	_, err := s.db.Exec(
		`INSERT INTO runs (id, pipeline, environment, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.Environment, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun finishes a run with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if err := s.ready(); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), now, nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT id, pipeline, environment, status, started_at, completed_at, error
		 FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run, or nil when none exist.
func (s *SQLiteStore) GetLatestRun() (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT id, pipeline, environment, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, pipeline, environment, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StartNodeRun records the start of one node within a run.
func (s *SQLiteStore) StartNodeRun(runID, nodeName string) (*NodeRun, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	nr := &NodeRun{
		ID:        generateID(),
		RunID:     runID,
		NodeName:  nodeName,
		Status:    NodeRunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO node_runs (id, run_id, node_name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		nr.ID, nr.RunID, nr.NodeName, string(nr.Status), nr.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record node run: %w", err)
	}
	return nr, nil
}

// CompleteNodeRun finishes a node record.
func (s *SQLiteStore) CompleteNodeRun(id string, status NodeRunStatus, rowsOut int64, errMsg string) error {
	if err := s.ready(); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE node_runs SET status = ?, completed_at = ?, rows_out = ?, error = ? WHERE id = ?`,
		string(status), now, rowsOut, nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete node run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("node run not found: %s", id)
	}
	return nil
}

// ListNodeRuns retrieves the node records of a run in start order.
func (s *SQLiteStore) ListNodeRuns(runID string) ([]*NodeRun, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, node_name, status, started_at, completed_at, rows_out, error
		 FROM node_runs WHERE run_id = ? ORDER BY started_at ASC, rowid ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodeRuns []*NodeRun
	for rows.Next() {
		nr := &NodeRun{}
		var status string
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&nr.ID, &nr.RunID, &nr.NodeName, &status,
			&nr.StartedAt, &completedAt, &nr.RowsOut, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}
		nr.Status = NodeRunStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			nr.CompletedAt = &t
		}
		nr.Error = errMsg.String
		nodeRuns = append(nodeRuns, nr)
	}
	return nodeRuns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.Pipeline, &run.Environment, &status,
		&run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*SQLiteStore)(nil)
