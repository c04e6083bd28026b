package table

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// ReadJSONL parses JSON-lines data into a table. Column set and order are
// taken from the first record; later records must not introduce new keys.
// JSON numbers become int columns when every value is integral, float
// otherwise. Missing keys and explicit nulls become missing values.
func ReadJSONL(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	var records []map[string]any
	var names []string
	for {
		var rec map[string]any
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parse jsonl record %d: %w", len(records)+1, err)
		}
		if names == nil {
			// json decoding loses key order; a stable order is still
			// needed for a deterministic column layout.
			names = sortedKeys(rec)
		} else {
			for key := range rec {
				if !containsName(names, key) {
					return nil, fmt.Errorf("parse jsonl record %d: unexpected field %q", len(records)+1, key)
				}
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse jsonl: no data")
	}

	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		col, err := buildJSONColumn(name, records)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return New(cols...)
}

func sortedKeys(rec map[string]any) []string {
	names := make([]string, 0, len(rec))
	for key := range rec {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func buildJSONColumn(name string, records []map[string]any) (*Column, error) {
	kind := Int
	missing := make([]bool, len(records))
	anyMissing := false
	for i, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			missing[i] = true
			anyMissing = true
			continue
		}
		switch val := v.(type) {
		case json.Number:
			if kind == Int {
				if _, err := val.Int64(); err != nil {
					kind = Float
				}
			}
		case string:
			kind = String
		case bool:
			kind = Bool
		case []any:
			kind = Vector
		default:
			return nil, fmt.Errorf("column %q record %d: unsupported JSON value %T", name, i+1, v)
		}
	}

	col := &Column{Name: name, Kind: kind}
	if anyMissing {
		col.Nulls = missing
	}
	n := len(records)
	switch kind {
	case Int:
		col.Ints = make([]int64, n)
	case Float:
		col.Floats = make([]float64, n)
	case Bool:
		col.Bools = make([]bool, n)
	case String:
		col.Strings = make([]string, n)
	case Vector:
		col.Vectors = make([][]float64, n)
	}

	for i, rec := range records {
		if missing[i] {
			continue
		}
		if err := setJSONValue(col, i, rec[name]); err != nil {
			return nil, fmt.Errorf("column %q record %d: %w", name, i+1, err)
		}
	}
	return col, nil
}

func setJSONValue(col *Column, i int, v any) error {
	switch col.Kind {
	case Int:
		num, ok := v.(json.Number)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		parsed, err := num.Int64()
		if err != nil {
			return err
		}
		col.Ints[i] = parsed
	case Float:
		num, ok := v.(json.Number)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		parsed, err := num.Float64()
		if err != nil {
			return err
		}
		col.Floats[i] = parsed
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		col.Bools[i] = b
	case String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		col.Strings[i] = s
	case Vector:
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
		vec := make([]float64, len(arr))
		for j, e := range arr {
			num, ok := e.(json.Number)
			if !ok {
				return fmt.Errorf("vector element %d: expected number, got %T", j, e)
			}
			parsed, err := num.Float64()
			if err != nil {
				return err
			}
			vec[j] = parsed
		}
		col.Vectors[i] = vec
	}
	return nil
}

// WriteJSONL writes the table as one JSON object per row. Missing values are
// written as explicit nulls so the column set stays stable across rows.
// Non-finite floats are rejected, matching encoding/json.
func WriteJSONL(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for row := 0; row < t.NumRows(); row++ {
		rec := make(map[string]any, t.NumCols())
		for _, c := range t.Columns() {
			if c.Kind == Float && !c.IsNull(row) && !isFinite(c.Floats[row]) {
				return fmt.Errorf("write jsonl: column %q row %d: non-finite float", c.Name, row)
			}
			rec[c.Name] = c.Value(row)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write jsonl row %d: %w", row, err)
		}
	}
	return bw.Flush()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
