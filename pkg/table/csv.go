package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVOptions controls CSV reading and writing.
type CSVOptions struct {
	// Header indicates the first row holds column names (read) or that a
	// header row should be written (write).
	Header bool
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// InferSchema enables type inference on read. Without it every column
	// is read as string.
	InferSchema bool
	// NullValues are cell contents treated as missing on read. The empty
	// string is always treated as missing.
	NullValues []string
}

// DefaultCSVOptions matches the common load contract: header row present,
// comma-separated, schema inferred.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Header: true, Delimiter: ',', InferSchema: true}
}

// ReadCSV parses CSV data into a table. With InferSchema set, each column is
// narrowed to the tightest of int, float, bool or string that accepts every
// non-missing cell; otherwise all columns are strings. CSV carries no type
// information, so a table written without a lossless format and re-read with
// inference may come back with widened types.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: no data")
	}

	var names []string
	if opts.Header {
		names = records[0]
		records = records[1:]
	} else {
		names = make([]string, len(records[0]))
		for i := range names {
			names[i] = fmt.Sprintf("col_%d", i)
		}
	}
	for i, rec := range records {
		if len(rec) != len(names) {
			return nil, fmt.Errorf("parse csv: row %d has %d fields, want %d", i+1, len(rec), len(names))
		}
	}

	nulls := make(map[string]struct{}, len(opts.NullValues)+1)
	nulls[""] = struct{}{}
	for _, v := range opts.NullValues {
		nulls[v] = struct{}{}
	}

	cols := make([]*Column, len(names))
	for j, name := range names {
		raw := make([]string, len(records))
		missing := make([]bool, len(records))
		anyMissing := false
		for i, rec := range records {
			raw[i] = rec[j]
			if _, ok := nulls[strings.TrimSpace(rec[j])]; ok {
				missing[i] = true
				anyMissing = true
			}
		}
		kind := String
		if opts.InferSchema {
			kind = inferKind(raw, missing)
		}
		col, err := buildColumn(name, kind, raw, missing)
		if err != nil {
			return nil, err
		}
		if anyMissing {
			col.Nulls = missing
		}
		cols[j] = col
	}
	return New(cols...)
}

// inferKind picks the narrowest kind accepting all non-missing values. Every
// candidate kind is checked against every value, so a column mixing numerics
// and bool tokens widens to String rather than coercing the minority cells.
func inferKind(raw []string, missing []bool) Kind {
	canInt, canFloat, canBool := true, true, true
	seen := false
	for i, v := range raw {
		if missing[i] {
			continue
		}
		seen = true
		v = strings.TrimSpace(v)
		if canInt {
			_, err := strconv.ParseInt(v, 10, 64)
			canInt = err == nil
		}
		if canFloat {
			_, err := strconv.ParseFloat(v, 64)
			canFloat = err == nil
		}
		if canBool {
			canBool = isBoolToken(v)
		}
		if !canInt && !canFloat && !canBool {
			return String
		}
	}
	if !seen {
		return String
	}
	// A column of bare 0/1 digits is an int column; Bool only survives for
	// true/false tokens, which no numeric parser accepts.
	switch {
	case canInt:
		return Int
	case canFloat:
		return Float
	case canBool:
		return Bool
	}
	return String
}

func isBoolToken(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false":
		return true
	}
	return false
}

func buildColumn(name string, kind Kind, raw []string, missing []bool) (*Column, error) {
	n := len(raw)
	switch kind {
	case Int:
		vals := make([]int64, n)
		for i, v := range raw {
			if missing[i] {
				continue
			}
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
			}
			vals[i] = parsed
		}
		return NewIntColumn(name, vals), nil
	case Float:
		vals := make([]float64, n)
		for i, v := range raw {
			if missing[i] {
				continue
			}
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
			}
			vals[i] = parsed
		}
		return NewFloatColumn(name, vals), nil
	case Bool:
		vals := make([]bool, n)
		for i, v := range raw {
			if missing[i] {
				continue
			}
			vals[i] = strings.EqualFold(strings.TrimSpace(v), "true")
		}
		return NewBoolColumn(name, vals), nil
	default:
		vals := make([]string, n)
		copy(vals, raw)
		for i := range vals {
			if missing[i] {
				vals[i] = ""
			}
		}
		return NewStringColumn(name, vals), nil
	}
}

// WriteCSV writes the table as CSV. Vector columns cannot be represented and
// cause an error; callers should drop them first.
func WriteCSV(w io.Writer, t *Table, opts CSVOptions) error {
	for _, c := range t.Columns() {
		if c.Kind == Vector {
			return fmt.Errorf("write csv: vector column %q has no CSV representation", c.Name)
		}
	}

	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if opts.Header {
		if err := cw.Write(t.Names()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	record := make([]string, t.NumCols())
	for row := 0; row < t.NumRows(); row++ {
		for j, c := range t.Columns() {
			record[j] = formatCell(c, row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(c *Column, row int) string {
	if c.IsNull(row) {
		return ""
	}
	switch c.Kind {
	case String:
		return c.Strings[row]
	case Int:
		return strconv.FormatInt(c.Ints[row], 10)
	case Float:
		return strconv.FormatFloat(c.Floats[row], 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(c.Bools[row])
	}
	return ""
}
