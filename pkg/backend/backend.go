// Package backend defines the storage backend contract for the dataset
// catalog. A backend resolves a dataset descriptor to concrete load and save
// operations against one class of storage (local files, embedded databases,
// network databases). Concrete implementations live in pkg/backends/
// subdirectories and register themselves with this package's registry.
package backend

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapml/pkg/table"
)

// Spec is the physical descriptor of one catalog entry. It is immutable once
// the catalog has been loaded: backends read it, never modify it.
type Spec struct {
	// Name is the logical dataset name, used as the default table name by
	// database backends.
	Name string

	// Filepath locates the backing file (file backends) or database file
	// (embedded database backends).
	Filepath string

	// FileFormat selects the codec for file backends (csv, jsonl).
	FileFormat string

	// LoadArgs and SaveArgs hold format-specific options. Keys a backend
	// does not recognize are passed through unvalidated.
	LoadArgs map[string]any
	SaveArgs map[string]any
}

// Backend loads and saves datasets for one storage type.
type Backend interface {
	// Load reads the dataset described by spec. It returns a *FormatError
	// when the backing content cannot be parsed with the declared options.
	Load(ctx context.Context, spec Spec) (*table.Table, error)

	// Save writes the dataset described by spec. It returns a
	// *ConflictError when content exists and the save mode does not allow
	// overwriting, and a *WriteError on I/O failure.
	Save(ctx context.Context, spec Spec, tbl *table.Table) error

	// Exists reports whether the dataset currently has stored content.
	Exists(ctx context.Context, spec Spec) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Releaser is implemented by backends that can discard a single dataset's
// content, such as the in-memory backend.
type Releaser interface {
	Release(spec Spec)
}

// Save modes understood by every backend.
const (
	// ModeError refuses to overwrite existing content. The default.
	ModeError = "error"
	// ModeOverwrite replaces existing content.
	ModeOverwrite = "overwrite"
	// ModeAppend adds rows to existing content where the storage
	// supports it.
	ModeAppend = "append"
)

// FormatError indicates the stored content could not be parsed with the
// options declared in the catalog entry.
type FormatError struct {
	Name   string
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("dataset %q: cannot parse as %s: %v", e.Name, e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// WriteError indicates a save failed at the storage layer.
type WriteError struct {
	Name string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("dataset %q: write failed: %v", e.Name, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConflictError indicates a save found existing content and the entry's save
// mode does not permit overwriting it.
type ConflictError struct {
	Name     string
	Location string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dataset %q: %s already exists and save mode is not %q", e.Name, e.Location, ModeOverwrite)
}

// UnknownBackendError is returned when a catalog entry names a storage type
// no backend has registered for.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown storage type %q (available: %v)", e.Type, e.Available)
}
