// Package catalog implements the dataset catalog: a registry mapping logical
// dataset names to storage descriptors. Pipeline code addresses data purely
// by name; the catalog resolves each name to a storage backend and delegates
// the I/O.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"
)

// Entry describes where and how one dataset is stored.
type Entry struct {
	// Type names the storage backend (file, memory, duckdb, sqlite,
	// postgres).
	Type string `koanf:"type"`

	// Filepath locates the backing file, database file or connection
	// string, depending on the backend.
	Filepath string `koanf:"filepath"`

	// FileFormat selects the codec for file datasets (csv, jsonl).
	FileFormat string `koanf:"file_format"`

	// LoadArgs and SaveArgs hold backend-specific options.
	LoadArgs map[string]any `koanf:"load_args"`
	SaveArgs map[string]any `koanf:"save_args"`
}

func (e Entry) spec(name string) backend.Spec {
	return backend.Spec{
		Name:       name,
		Filepath:   e.Filepath,
		FileFormat: e.FileFormat,
		LoadArgs:   e.LoadArgs,
		SaveArgs:   e.SaveArgs,
	}
}

// Catalog maps dataset names to entries. One backend instance is shared by
// all entries of the same storage type, created on first use. Catalog is safe
// for concurrent use.
type Catalog struct {
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]Entry
	backends map[string]backend.Backend
}

// New builds a catalog from entries. Every entry must name a registered
// storage type; an unknown type is reported up front rather than at first
// load.
func New(entries map[string]Entry, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for name, e := range entries {
		if e.Type == "" {
			return nil, fmt.Errorf("catalog entry %q: missing storage type", name)
		}
		if !backend.IsRegistered(e.Type) {
			return nil, fmt.Errorf("catalog entry %q: %w", name,
				&backend.UnknownBackendError{Type: e.Type, Available: backend.List()})
		}
	}

	copied := make(map[string]Entry, len(entries))
	for name, e := range entries {
		copied[name] = e
	}
	return &Catalog{
		logger:   logger,
		entries:  copied,
		backends: make(map[string]backend.Backend),
	}, nil
}

// FromFile loads a catalog from a YAML file mapping dataset names to entries.
func FromFile(path string, logger *slog.Logger) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	var entries map[string]Entry
	if err := k.Unmarshal("", &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(entries, logger)
}

// List returns all registered dataset names, sorted.
func (c *Catalog) List() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.namesLocked()
}

func (c *Catalog) namesLocked() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the entry for a dataset name.
func (c *Catalog) Get(name string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, &NotFoundError{Name: name, Available: c.namesLocked()}
	}
	return e, nil
}

// Add registers a dataset entry, replacing any existing entry of the same
// name. The entry's storage type must be registered.
func (c *Catalog) Add(name string, e Entry) error {
	if e.Type == "" {
		return fmt.Errorf("catalog entry %q: missing storage type", name)
	}
	if !backend.IsRegistered(e.Type) {
		return fmt.Errorf("catalog entry %q: %w", name,
			&backend.UnknownBackendError{Type: e.Type, Available: backend.List()})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = e
	return nil
}

// Has reports whether a dataset name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[name]
	return ok
}

func (c *Catalog) resolve(name string) (Entry, backend.Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, nil, &NotFoundError{Name: name, Available: c.namesLocked()}
	}
	b, ok := c.backends[e.Type]
	if !ok {
		var err error
		b, err = backend.New(e.Type, c.logger)
		if err != nil {
			return Entry{}, nil, err
		}
		c.backends[e.Type] = b
	}
	return e, b, nil
}

// Load reads a dataset by name.
func (c *Catalog) Load(ctx context.Context, name string) (*table.Table, error) {
	e, b, err := c.resolve(name)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("loading dataset", "name", name, "type", e.Type)
	tbl, err := b.Load(ctx, e.spec(name))
	if err != nil {
		return nil, err
	}
	c.logger.Info("dataset loaded", "name", name, "rows", tbl.NumRows(), "cols", tbl.NumCols())
	return tbl, nil
}

// Save writes a dataset by name.
func (c *Catalog) Save(ctx context.Context, name string, tbl *table.Table) error {
	e, b, err := c.resolve(name)
	if err != nil {
		return err
	}
	c.logger.Debug("saving dataset", "name", name, "type", e.Type)
	if err := b.Save(ctx, e.spec(name), tbl); err != nil {
		return err
	}
	c.logger.Info("dataset saved", "name", name, "rows", tbl.NumRows(), "cols", tbl.NumCols())
	return nil
}

// Exists reports whether a dataset currently has stored content.
func (c *Catalog) Exists(ctx context.Context, name string) (bool, error) {
	e, b, err := c.resolve(name)
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, e.spec(name))
}

// Release discards a dataset's content where the backend supports it.
// Unsupported backends ignore the call.
func (c *Catalog) Release(name string) error {
	e, b, err := c.resolve(name)
	if err != nil {
		return err
	}
	if r, ok := b.(backend.Releaser); ok {
		r.Release(e.spec(name))
	}
	return nil
}

// Close closes every backend instantiated so far.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for typ, b := range c.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s backend: %w", typ, err)
		}
		delete(c.backends, typ)
	}
	return firstErr
}
