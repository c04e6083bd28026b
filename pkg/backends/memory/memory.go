// Package memory provides the in-process dataset backend used for pipeline
// intermediates. Content lives for the duration of the owning catalog and is
// never persisted.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapml/pkg/backends/memory"
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func init() {
	backend.Register("memory", func(logger *slog.Logger) backend.Backend { return New(logger) })
}

// SaveArgs are the memory save options.
type SaveArgs struct {
	// Mode is one of error, overwrite. Defaults to overwrite: memory
	// datasets exist to be rewritten between runs.
	Mode string `mapstructure:"mode"`

	Rest map[string]any `mapstructure:",remain"`
}

// Backend implements backend.Backend with an in-process table store.
type Backend struct {
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]*table.Table
}

// New creates an empty memory backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger, tables: make(map[string]*table.Table)}
}

// Load returns the stored table for the dataset.
func (b *Backend) Load(_ context.Context, spec backend.Spec) (*table.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tbl, ok := b.tables[spec.Name]
	if !ok {
		return nil, fmt.Errorf("dataset %q has no in-memory content", spec.Name)
	}
	return tbl, nil
}

// Save stores the table for the dataset.
func (b *Backend) Save(_ context.Context, spec backend.Spec, tbl *table.Table) error {
	var args SaveArgs
	if err := backend.DecodeArgs(spec.SaveArgs, &args); err != nil {
		return err
	}

	mode := args.Mode
	if mode == "" {
		mode = backend.ModeOverwrite
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch mode {
	case backend.ModeError:
		if _, ok := b.tables[spec.Name]; ok {
			return &backend.ConflictError{Name: spec.Name, Location: "in-memory content"}
		}
	case backend.ModeOverwrite:
	default:
		return &backend.WriteError{Name: spec.Name, Err: fmt.Errorf("unknown save mode %q", mode)}
	}
	b.tables[spec.Name] = tbl
	return nil
}

// Exists reports whether the dataset currently holds content.
func (b *Backend) Exists(_ context.Context, spec backend.Spec) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tables[spec.Name]
	return ok, nil
}

// Release discards the dataset's content.
func (b *Backend) Release(spec backend.Spec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tables, spec.Name)
}

// Close discards all content.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = make(map[string]*table.Table)
	return nil
}

var (
	_ backend.Backend  = (*Backend)(nil)
	_ backend.Releaser = (*Backend)(nil)
)
