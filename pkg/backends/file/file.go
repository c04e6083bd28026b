// Package file provides the local-file dataset backend. It stores datasets
// as CSV or JSON-lines files.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/leapml/pkg/backends/file"
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapml/pkg/backend"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func init() {
	backend.Register("file", func(logger *slog.Logger) backend.Backend { return New(logger) })
}

// Formats understood by the backend.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// LoadArgs are the file load options. Unknown keys pass through via Rest.
type LoadArgs struct {
	// Header indicates a CSV header row. Defaults to true.
	Header *bool `mapstructure:"header"`
	// InferSchema enables CSV type inference. Defaults to true.
	InferSchema *bool `mapstructure:"infer_schema"`
	// Delimiter is the CSV field separator. Defaults to comma.
	Delimiter string `mapstructure:"delimiter"`
	// NullValues are extra cell contents treated as missing.
	NullValues []string `mapstructure:"null_values"`

	Rest map[string]any `mapstructure:",remain"`
}

// SaveArgs are the file save options.
type SaveArgs struct {
	// Mode is one of error, overwrite, append. Defaults to error.
	Mode string `mapstructure:"mode"`
	// Header indicates whether to write a CSV header row. Defaults to
	// true; ignored when appending to an existing file.
	Header *bool `mapstructure:"header"`
	// Delimiter is the CSV field separator. Defaults to comma.
	Delimiter string `mapstructure:"delimiter"`

	Rest map[string]any `mapstructure:",remain"`
}

// Backend implements backend.Backend for local files.
type Backend struct {
	logger *slog.Logger
}

// New creates a file backend. A nil logger is replaced with a discard logger.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger}
}

// Load reads the backing file with the declared options.
func (b *Backend) Load(_ context.Context, spec backend.Spec) (*table.Table, error) {
	var args LoadArgs
	if err := backend.DecodeArgs(spec.LoadArgs, &args); err != nil {
		return nil, err
	}

	f, err := os.Open(spec.Filepath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", spec.Filepath, err)
	}
	defer func() { _ = f.Close() }()

	format := fileFormat(spec)
	b.logger.Debug("loading file dataset", "name", spec.Name, "path", spec.Filepath, "format", format)

	var tbl *table.Table
	switch format {
	case FormatCSV:
		tbl, err = table.ReadCSV(f, table.CSVOptions{
			Header:      boolOr(args.Header, true),
			InferSchema: boolOr(args.InferSchema, true),
			Delimiter:   delimiter(args.Delimiter),
			NullValues:  args.NullValues,
		})
	case FormatJSONL:
		tbl, err = table.ReadJSONL(f)
	default:
		return nil, fmt.Errorf("dataset %q: unsupported file format %q", spec.Name, format)
	}
	if err != nil {
		return nil, &backend.FormatError{Name: spec.Name, Format: format, Err: err}
	}
	return tbl, nil
}

// Save writes the table to the backing file honoring the save mode.
func (b *Backend) Save(_ context.Context, spec backend.Spec, tbl *table.Table) error {
	var args SaveArgs
	if err := backend.DecodeArgs(spec.SaveArgs, &args); err != nil {
		return err
	}

	format := fileFormat(spec)
	exists := fileExists(spec.Filepath)
	mode := args.Mode
	if mode == "" {
		mode = backend.ModeError
	}

	var flags int
	writeHeader := boolOr(args.Header, true)
	switch mode {
	case backend.ModeError:
		if exists {
			return &backend.ConflictError{Name: spec.Name, Location: spec.Filepath}
		}
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case backend.ModeOverwrite:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case backend.ModeAppend:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		if exists {
			// The existing file already carries the header.
			writeHeader = false
		}
	default:
		return &backend.WriteError{Name: spec.Name, Err: fmt.Errorf("unknown save mode %q", mode)}
	}

	if dir := filepath.Dir(spec.Filepath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &backend.WriteError{Name: spec.Name, Err: err}
		}
	}

	f, err := os.OpenFile(spec.Filepath, flags, 0o640)
	if err != nil {
		return &backend.WriteError{Name: spec.Name, Err: err}
	}

	b.logger.Debug("saving file dataset", "name", spec.Name, "path", spec.Filepath, "format", format, "mode", mode, "rows", tbl.NumRows())

	switch format {
	case FormatCSV:
		err = table.WriteCSV(f, tbl, table.CSVOptions{Header: writeHeader, Delimiter: delimiter(args.Delimiter)})
	case FormatJSONL:
		err = table.WriteJSONL(f, tbl)
	default:
		err = fmt.Errorf("unsupported file format %q", format)
	}
	if err != nil {
		_ = f.Close()
		return &backend.WriteError{Name: spec.Name, Err: err}
	}
	if err := f.Close(); err != nil {
		return &backend.WriteError{Name: spec.Name, Err: err}
	}
	return nil
}

// Exists reports whether the backing file is present.
func (b *Backend) Exists(_ context.Context, spec backend.Spec) (bool, error) {
	return fileExists(spec.Filepath), nil
}

// Close is a no-op; the backend holds no resources between calls.
func (b *Backend) Close() error { return nil }

func fileFormat(spec backend.Spec) string {
	if spec.FileFormat == "" {
		return FormatCSV
	}
	return spec.FileFormat
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func delimiter(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}

var _ backend.Backend = (*Backend)(nil)
