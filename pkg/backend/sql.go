package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapml/pkg/table"
)

// TableArgs are the load options understood by every database backend.
// Unrecognized keys land in Rest and are ignored.
type TableArgs struct {
	// Table overrides the table name; the logical dataset name is used
	// when empty.
	Table string `mapstructure:"table"`

	Rest map[string]any `mapstructure:",remain"`
}

// SaveTableArgs are the save options understood by every database backend.
type SaveTableArgs struct {
	Table string `mapstructure:"table"`
	// Mode is one of error, overwrite, append. Defaults to error.
	Mode string `mapstructure:"mode"`

	Rest map[string]any `mapstructure:",remain"`
}

// DecodeArgs decodes a load_args/save_args map into a typed options struct
// using mapstructure. A nil map decodes to the zero value.
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decode dataset options: %w", err)
	}
	return nil
}

// SaveMode returns the effective save mode for a spec, defaulting to error.
func (a SaveTableArgs) SaveMode() string {
	if a.Mode == "" {
		return ModeError
	}
	return a.Mode
}

// BaseSQLBackend provides shared database/sql plumbing for database-backed
// dataset storage. Embed it in concrete backends to get row reading, table
// creation and batched inserts; the embedding backend supplies the
// connection, placeholder style and column type mapping.
type BaseSQLBackend struct {
	Logger *slog.Logger

	// Placeholder renders the i-th (1-based) statement parameter.
	Placeholder func(i int) string

	// TypeName maps a column kind to the storage's column type.
	TypeName func(k table.Kind) (string, error)
}

// QuoteIdent quotes an SQL identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableName resolves the table a spec maps to: an explicit table option wins,
// otherwise the logical dataset name is used.
func TableName(spec Spec, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return spec.Name
}

// ReadTable reads an entire table into memory. Column kinds are derived from
// the scanned values: integers, floats, bools and strings are supported;
// NULLs become missing values.
func (b *BaseSQLBackend) ReadTable(ctx context.Context, db *sql.DB, tableName string) (*table.Table, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+QuoteIdent(tableName))
	if err != nil {
		return nil, fmt.Errorf("query table %s: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", tableName, err)
	}

	raw := make([][]any, len(names))
	for rows.Next() {
		scan := make([]any, len(names))
		for i := range scan {
			var v any
			scan[i] = &v
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", tableName, err)
		}
		for i := range scan {
			raw[i] = append(raw[i], *scan[i].(*any))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows of %s: %w", tableName, err)
	}

	cols := make([]*table.Column, len(names))
	for i, name := range names {
		col, err := columnFromValues(name, raw[i])
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", tableName, err)
		}
		cols[i] = col
	}
	return table.New(cols...)
}

// columnFromValues builds a typed column from driver values.
func columnFromValues(name string, values []any) (*table.Column, error) {
	kind := table.Int
	hasValue := false
	for _, v := range values {
		if v == nil {
			continue
		}
		hasValue = true
		switch v.(type) {
		case int64, int32, int16, int8, int, uint32:
			// keep
		case float64, float32:
			if kind == table.Int {
				kind = table.Float
			}
		case bool:
			kind = table.Bool
		case string, []byte:
			kind = table.String
		case time.Time:
			kind = table.String
		default:
			return nil, fmt.Errorf("column %q: unsupported driver value %T", name, v)
		}
	}
	if !hasValue {
		kind = table.String
	}

	col := &table.Column{Name: name, Kind: kind}
	n := len(values)
	nulls := make([]bool, n)
	anyNull := false
	switch kind {
	case table.Int:
		col.Ints = make([]int64, n)
	case table.Float:
		col.Floats = make([]float64, n)
	case table.Bool:
		col.Bools = make([]bool, n)
	default:
		col.Strings = make([]string, n)
	}
	for i, v := range values {
		if v == nil {
			nulls[i] = true
			anyNull = true
			continue
		}
		switch kind {
		case table.Int:
			col.Ints[i] = toInt64(v)
		case table.Float:
			col.Floats[i] = toFloat64(v)
		case table.Bool:
			col.Bools[i] = v.(bool)
		default:
			col.Strings[i] = toString(v)
		}
	}
	if anyNull {
		col.Nulls = nulls
	}
	return col, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case int:
		return int64(n)
	case uint32:
		return int64(n)
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return float64(toInt64(v))
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}

// CreateTable creates a table with columns matching tbl's schema.
func (b *BaseSQLBackend) CreateTable(ctx context.Context, db *sql.DB, tableName string, tbl *table.Table) error {
	defs := make([]string, 0, tbl.NumCols())
	for _, c := range tbl.Columns() {
		typ, err := b.TypeName(c.Kind)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		defs = append(defs, QuoteIdent(c.Name)+" "+typ)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(tableName), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}
	return nil
}

// DropTable drops a table if it exists.
func (b *BaseSQLBackend) DropTable(ctx context.Context, db *sql.DB, tableName string) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(tableName)); err != nil {
		return fmt.Errorf("drop table %s: %w", tableName, err)
	}
	return nil
}

// InsertRows appends every row of tbl to the named table inside a single
// transaction.
func (b *BaseSQLBackend) InsertRows(ctx context.Context, db *sql.DB, tableName string, tbl *table.Table) error {
	if tbl.NumCols() == 0 {
		return fmt.Errorf("insert into %s: table has no columns", tableName)
	}

	quoted := make([]string, tbl.NumCols())
	placeholders := make([]string, tbl.NumCols())
	for i, name := range tbl.Names() {
		quoted[i] = QuoteIdent(name)
		placeholders[i] = b.Placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(tableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert into %s: %w", tableName, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert into %s: %w", tableName, err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, tbl.NumCols())
	for row := 0; row < tbl.NumRows(); row++ {
		for i, c := range tbl.Columns() {
			args[i] = c.Value(row)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert row %d into %s: %w", row, tableName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert into %s: %w", tableName, err)
	}
	b.Logger.Debug("rows inserted", "table", tableName, "rows", tbl.NumRows())
	return nil
}

// WriteTable stores tbl under tableName honoring the save mode: error fails
// on existing content, overwrite replaces it, append adds rows (creating the
// table when missing). exists reports current presence; its check is the
// caller's, since the existence query is dialect-specific.
func (b *BaseSQLBackend) WriteTable(ctx context.Context, db *sql.DB, spec Spec, tableName string, tbl *table.Table, mode string, exists bool) error {
	for _, c := range tbl.Columns() {
		if c.Kind == table.Vector {
			return &WriteError{Name: spec.Name, Err: fmt.Errorf("vector column %q cannot be stored in a database table", c.Name)}
		}
	}

	switch mode {
	case ModeError:
		if exists {
			return &ConflictError{Name: spec.Name, Location: "table " + tableName}
		}
	case ModeOverwrite:
		if exists {
			if err := b.DropTable(ctx, db, tableName); err != nil {
				return &WriteError{Name: spec.Name, Err: err}
			}
			exists = false
		}
	case ModeAppend:
		// Keep existing rows.
	default:
		return &WriteError{Name: spec.Name, Err: fmt.Errorf("unknown save mode %q", mode)}
	}

	if !exists {
		if err := b.CreateTable(ctx, db, tableName, tbl); err != nil {
			return &WriteError{Name: spec.Name, Err: err}
		}
	}
	if err := b.InsertRows(ctx, db, tableName, tbl); err != nil {
		return &WriteError{Name: spec.Name, Err: err}
	}
	return nil
}
