// Package table provides the in-memory tabular dataset handle shared by the
// catalog backends and the ML pipeline stages. Tables are column-oriented and
// immutable from the caller's point of view: every operation returns a new
// Table that may share column storage with its source.
package table

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the value type of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	// Vector columns hold dense float64 vectors, produced by feature
	// assembly stages. They have no CSV representation.
	Vector
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Vector:
		return "vector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named, typed column. Exactly one of the value slices is
// populated, matching Kind. Nulls marks missing values; a nil Nulls slice
// means the column has no missing values.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Ints    []int64
	Floats  []float64
	Bools   []bool
	Vectors [][]float64
	Nulls   []bool
}

// NewStringColumn creates a string column without nulls.
func NewStringColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: String, Strings: values}
}

// NewIntColumn creates an int column without nulls.
func NewIntColumn(name string, values []int64) *Column {
	return &Column{Name: name, Kind: Int, Ints: values}
}

// NewFloatColumn creates a float column without nulls.
func NewFloatColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Float, Floats: values}
}

// NewBoolColumn creates a bool column without nulls.
func NewBoolColumn(name string, values []bool) *Column {
	return &Column{Name: name, Kind: Bool, Bools: values}
}

// NewVectorColumn creates a vector column without nulls.
func NewVectorColumn(name string, values [][]float64) *Column {
	return &Column{Name: name, Kind: Vector, Vectors: values}
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case String:
		return len(c.Strings)
	case Int:
		return len(c.Ints)
	case Float:
		return len(c.Floats)
	case Bool:
		return len(c.Bools)
	case Vector:
		return len(c.Vectors)
	}
	return 0
}

// IsNull reports whether the value at row i is missing.
func (c *Column) IsNull(i int) bool {
	return c.Nulls != nil && c.Nulls[i]
}

// Value returns the value at row i as an any, or nil for missing values.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Kind {
	case String:
		return c.Strings[i]
	case Int:
		return c.Ints[i]
	case Float:
		return c.Floats[i]
	case Bool:
		return c.Bools[i]
	case Vector:
		return c.Vectors[i]
	}
	return nil
}

// Float returns the value at row i coerced to float64. Only Int and Float
// columns are coercible; callers must check IsNull first.
func (c *Column) Float(i int) (float64, error) {
	switch c.Kind {
	case Int:
		return float64(c.Ints[i]), nil
	case Float:
		return c.Floats[i], nil
	default:
		return 0, fmt.Errorf("column %q: cannot coerce %s to float", c.Name, c.Kind)
	}
}

// take returns a new column containing the rows at the given indices.
func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Nulls != nil {
		out.Nulls = make([]bool, len(idx))
		for i, j := range idx {
			out.Nulls[i] = c.Nulls[j]
		}
	}
	switch c.Kind {
	case String:
		out.Strings = make([]string, len(idx))
		for i, j := range idx {
			out.Strings[i] = c.Strings[j]
		}
	case Int:
		out.Ints = make([]int64, len(idx))
		for i, j := range idx {
			out.Ints[i] = c.Ints[j]
		}
	case Float:
		out.Floats = make([]float64, len(idx))
		for i, j := range idx {
			out.Floats[i] = c.Floats[j]
		}
	case Bool:
		out.Bools = make([]bool, len(idx))
		for i, j := range idx {
			out.Bools[i] = c.Bools[j]
		}
	case Vector:
		out.Vectors = make([][]float64, len(idx))
		for i, j := range idx {
			out.Vectors[i] = c.Vectors[j]
		}
	}
	return out
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	cols  []*Column
	index map[string]int
}

// New creates a table from the given columns. Column names must be unique
// and all columns must have the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	n := -1
	for _, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column name must not be empty")
		}
		if _, ok := t.index[c.Name]; ok {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if n >= 0 && c.Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
		n = c.Len()
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New, panicking on error. Intended for tests and fixtures.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the number of columns in the table.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in declaration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column { return t.cols }

// Column returns the named column, or an error naming the available columns.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found (have %v)", name, t.Names())
	}
	return t.cols[i], nil
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Select returns a table containing only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var keep []*Column
	for _, c := range t.cols {
		if _, ok := drop[c.Name]; !ok {
			keep = append(keep, c)
		}
	}
	out, _ := New(keep...)
	return out
}

// WithColumn returns a table with col appended, or replacing an existing
// column of the same name in place.
func (t *Table) WithColumn(col *Column) (*Table, error) {
	if len(t.cols) > 0 && col.Len() != t.NumRows() {
		return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, col.Len(), t.NumRows())
	}
	cols := make([]*Column, len(t.cols))
	copy(cols, t.cols)
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
		return New(cols...)
	}
	return New(append(cols, col)...)
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var idx []int
	for i := 0; i < t.NumRows(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// DropNulls returns the rows that have no missing value in any column.
func (t *Table) DropNulls() *Table {
	return t.Filter(func(row int) bool {
		for _, c := range t.cols {
			if c.IsNull(row) {
				return false
			}
		}
		return true
	})
}

// Take returns a new table containing the rows at the given indices.
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(idx)
	}
	out, _ := New(cols...)
	return out
}

// Head returns the first n rows (or fewer if the table is shorter).
func (t *Table) Head(n int) *Table {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// RandomSplit partitions the rows into two tables by a seeded random
// permutation. The first table receives ceil(ratio*rows) rows. Ratio must be
// in (0, 1).
func (t *Table) RandomSplit(ratio float64, seed int64) (*Table, *Table, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("split ratio must be in (0, 1), got %v", ratio)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(t.NumRows())
	cut := int(math.Ceil(ratio * float64(t.NumRows())))
	return t.Take(perm[:cut]), t.Take(perm[cut:]), nil
}

// Equal reports whether two tables have the same columns and values in the
// same row order. Float values are compared exactly.
func (t *Table) Equal(other *Table) bool {
	return t.equal(other, false)
}

// EqualRows reports whether two tables hold the same multiset of rows,
// ignoring row order. Useful for round-trip tests against storage backends
// that do not guarantee row ordering.
func (t *Table) EqualRows(other *Table) bool {
	return t.equal(other, true)
}

func (t *Table) equal(other *Table, ignoreOrder bool) bool {
	if other == nil || t.NumRows() != other.NumRows() || t.NumCols() != other.NumCols() {
		return false
	}
	for i, c := range t.cols {
		oc := other.cols[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
	}
	a, b := t.rowKeys(), other.rowKeys()
	if ignoreOrder {
		sort.Strings(a)
		sort.Strings(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rowKeys renders every row to a canonical string for comparison. Cells are
// length-prefixed so values containing the separators cannot collide.
func (t *Table) rowKeys() []string {
	keys := make([]string, t.NumRows())
	var sb strings.Builder
	for row := range keys {
		sb.Reset()
		for _, c := range t.cols {
			if c.IsNull(row) {
				sb.WriteString("n;")
				continue
			}
			cell := fmt.Sprintf("%v", c.Value(row))
			sb.WriteString(strconv.Itoa(len(cell)))
			sb.WriteByte(':')
			sb.WriteString(cell)
			sb.WriteByte(';')
		}
		keys[row] = sb.String()
	}
	return keys
}
