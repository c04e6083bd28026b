// Package postgres provides a PostgreSQL dataset backend using the pgx
// driver through database/sql. A catalog entry's filepath carries the
// connection string (DSN or URL); datasets sharing a DSN share a pool.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapml/pkg/backends/postgres"
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

func init() {
	backend.Register("postgres", func(logger *slog.Logger) backend.Backend { return New(logger) })
}

// Backend implements backend.Backend for PostgreSQL databases.
type Backend struct {
	backend.BaseSQLBackend

	mu  sync.Mutex
	dbs map[string]*sql.DB

	// openDB is swappable in tests.
	openDB func(dsn string) (*sql.DB, error)
}

// New creates a PostgreSQL backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		BaseSQLBackend: backend.BaseSQLBackend{
			Logger:      logger,
			Placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
			TypeName:    typeName,
		},
		dbs:    make(map[string]*sql.DB),
		openDB: func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) },
	}
}

func typeName(k table.Kind) (string, error) {
	switch k {
	case table.String:
		return "TEXT", nil
	case table.Int:
		return "BIGINT", nil
	case table.Float:
		return "DOUBLE PRECISION", nil
	case table.Bool:
		return "BOOLEAN", nil
	default:
		return "", fmt.Errorf("kind %s has no PostgreSQL column type", k)
	}
}

func (b *Backend) db(ctx context.Context, dsn string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := b.dbs[dsn]; ok {
		return db, nil
	}

	db, err := b.openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b.Logger.Debug("postgres connected")
	b.dbs[dsn] = db
	return db, nil
}

func (b *Backend) tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		tableName).Scan(&one)
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
		return nil, &backend.FormatError{Name: spec.Name, Format: "postgres table", Err: err}
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

// Close closes every open connection pool.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for dsn, db := range b.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close postgres: %w", err)
		}
		delete(b.dbs, dsn)
	}
	return firstErr
}

var _ backend.Backend = (*Backend)(nil)
