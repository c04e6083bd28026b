// Package sqlite provides a SQLite dataset backend backed by the pure-Go
// modernc.org/sqlite driver. Boolean columns are stored as INTEGER 0/1 and
// come back as Int on load; callers needing strict bool round-trips should
// prefer the duckdb backend.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapml/pkg/backends/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	backend.Register("sqlite", func(logger *slog.Logger) backend.Backend { return New(logger) })
}

// Backend implements backend.Backend for SQLite database files.
type Backend struct {
	backend.BaseSQLBackend

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// New creates a SQLite backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		BaseSQLBackend: backend.BaseSQLBackend{
			Logger:      logger,
			Placeholder: func(int) string { return "?" },
			TypeName:    typeName,
		},
		dbs: make(map[string]*sql.DB),
	}
}

func typeName(k table.Kind) (string, error) {
	switch k {
	case table.String:
		return "TEXT", nil
	case table.Int:
		return "INTEGER", nil
	case table.Float:
		return "REAL", nil
	case table.Bool:
		return "INTEGER", nil
	default:
		return "", fmt.Errorf("kind %s has no SQLite column type", k)
	}
}

func (b *Backend) db(ctx context.Context, path string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := b.dbs[path]; ok {
		return db, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite %q: %w", path, err)
	}

	b.Logger.Debug("sqlite connected", "path", path)
	b.dbs[path] = db
	return db, nil
}

func (b *Backend) tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", tableName).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", tableName, err)
	}
	return true, nil
}

// Load reads the dataset's table.
func (b *Backend) Load(ctx context.Context, spec backend.Spec) (*table.Table, error) {
	var args backend.TableArgs
	if err := backend.DecodeArgs(spec.LoadArgs, &args); err != nil {
		return nil, err
	}
	db, err := b.db(ctx, spec.Filepath)
	if err != nil {
		return nil, err
	}
	tbl, err := b.ReadTable(ctx, db, backend.TableName(spec, args.Table))
	if err != nil {
		return nil, &backend.FormatError{Name: spec.Name, Format: "sqlite table", Err: err}
	}
	return tbl, nil
}

// Save writes the dataset's table honoring the save mode.
func (b *Backend) Save(ctx context.Context, spec backend.Spec, tbl *table.Table) error {
	var args backend.SaveTableArgs
	if err := backend.DecodeArgs(spec.SaveArgs, &args); err != nil {
		return err
	}
	db, err := b.db(ctx, spec.Filepath)
	if err != nil {
		return &backend.WriteError{Name: spec.Name, Err: err}
	}
	tableName := backend.TableName(spec, args.Table)
	exists, err := b.tableExists(ctx, db, tableName)
	if err != nil {
		return &backend.WriteError{Name: spec.Name, Err: err}
	}
	return b.WriteTable(ctx, db, spec, tableName, tbl, args.SaveMode(), exists)
}

// Exists reports whether the dataset's table is present.
func (b *Backend) Exists(ctx context.Context, spec backend.Spec) (bool, error) {
	var args backend.TableArgs
	if err := backend.DecodeArgs(spec.LoadArgs, &args); err != nil {
		return false, err
	}
	db, err := b.db(ctx, spec.Filepath)
	if err != nil {
		return false, err
	}
	return b.tableExists(ctx, db, backend.TableName(spec, args.Table))
}

// Close closes every open database connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for path, db := range b.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sqlite %q: %w", path, err)
		}
	}
	b.dbs = make(map[string]*sql.DB)
	return firstErr
}

var _ backend.Backend = (*Backend)(nil)
