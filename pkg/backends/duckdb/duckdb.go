// Package duckdb provides a DuckDB dataset backend. Each dataset maps to a
// table inside a DuckDB database file; the catalog entry's filepath locates
// the database (empty for in-memory) and the table name defaults to the
// logical dataset name.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapml/pkg/backends/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	backend.Register("duckdb", func(logger *slog.Logger) backend.Backend { return New(logger) })
}

// Backend implements backend.Backend for DuckDB database files. Connections
// are opened lazily and shared across datasets backed by the same file.
type Backend struct {
	backend.BaseSQLBackend

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// New creates a DuckDB backend.
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
		return "VARCHAR", nil
	case table.Int:
		return "BIGINT", nil
	case table.Float:
		return "DOUBLE", nil
	case table.Bool:
		return "BOOLEAN", nil
	default:
		return "", fmt.Errorf("kind %s has no DuckDB column type", k)
	}
}

func (b *Backend) db(ctx context.Context, path string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := b.dbs[path]; ok {
		return db, nil
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}

	b.Logger.Debug("duckdb connected", "path", path)
	b.dbs[path] = db
	return db, nil
}

func (b *Backend) tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_name = ?", tableName).Scan(&one)
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
		return nil, &backend.FormatError{Name: spec.Name, Format: "duckdb table", Err: err}
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
			firstErr = fmt.Errorf("close duckdb %q: %w", path, err)
		}
	}
	b.dbs = make(map[string]*sql.DB)
	return firstErr
}

var _ backend.Backend = (*Backend)(nil)
