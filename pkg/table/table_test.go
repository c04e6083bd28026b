package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		NewStringColumn("airline", []string{"AA", "DL", "UA", "AA"}),
		NewIntColumn("dep_hour", []int64{9, 14, 23, 6}),
		NewFloatColumn("distance", []float64{240.5, 1100, 733.25, 90}),
	)
	require.NoError(t, err)
	return tbl
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cols []*Column
		want string
	}{
		{
			name: "duplicate column",
			cols: []*Column{NewIntColumn("a", []int64{1}), NewFloatColumn("a", []float64{2})},
			want: "duplicate column",
		},
		{
			name: "length mismatch",
			cols: []*Column{NewIntColumn("a", []int64{1, 2}), NewFloatColumn("b", []float64{2})},
			want: "has 1 rows, want 2",
		},
		{
			name: "empty name",
			cols: []*Column{NewIntColumn("", []int64{1})},
			want: "must not be empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cols...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTable_SelectDrop(t *testing.T) {
	tbl := sampleTable(t)

	sel, err := tbl.Select("distance", "airline")
	require.NoError(t, err)
	assert.Equal(t, []string{"distance", "airline"}, sel.Names())
	assert.Equal(t, 4, sel.NumRows())

	_, err = tbl.Select("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "nope" not found`)

	dropped := tbl.Drop("dep_hour", "unknown")
	assert.Equal(t, []string{"airline", "distance"}, dropped.Names())
}

func TestTable_WithColumn(t *testing.T) {
	tbl := sampleTable(t)

	added, err := tbl.WithColumn(NewBoolColumn("delayed", []bool{true, false, false, true}))
	require.NoError(t, err)
	assert.Equal(t, 4, added.NumCols())

	// Replacing keeps position.
	replaced, err := added.WithColumn(NewIntColumn("dep_hour", []int64{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, []string{"airline", "dep_hour", "distance", "delayed"}, replaced.Names())
	col, err := replaced.Column("dep_hour")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, col.Ints)

	_, err = tbl.WithColumn(NewIntColumn("short", []int64{1}))
	require.Error(t, err)
}

func TestTable_DropNulls(t *testing.T) {
	col := NewStringColumn("airline", []string{"AA", "", "UA"})
	col.Nulls = []bool{false, true, false}
	tbl, err := New(col, NewIntColumn("dep_hour", []int64{9, 14, 23}))
	require.NoError(t, err)

	clean := tbl.DropNulls()
	assert.Equal(t, 2, clean.NumRows())
	got, err := clean.Column("dep_hour")
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 23}, got.Ints)
}

func TestTable_RandomSplit(t *testing.T) {
	tbl := sampleTable(t)

	train, test, err := tbl.RandomSplit(0.75, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, train.NumRows())
	assert.Equal(t, 1, test.NumRows())

	// Deterministic for a fixed seed.
	train2, _, err := tbl.RandomSplit(0.75, 42)
	require.NoError(t, err)
	assert.True(t, train.Equal(train2))

	_, _, err = tbl.RandomSplit(1.5, 42)
	require.Error(t, err)
}

func TestTable_EqualRows_IgnoresOrder(t *testing.T) {
	tbl := sampleTable(t)
	reversed := tbl.Take([]int{3, 2, 1, 0})

	assert.False(t, tbl.Equal(reversed))
	assert.True(t, tbl.EqualRows(reversed))

	other := tbl.Drop("distance")
	assert.False(t, tbl.EqualRows(other))
}

func TestTable_Equal_SeparatorCells(t *testing.T) {
	// Cell boundaries must survive values containing the comparison
	// separators.
	a := MustNew(
		NewStringColumn("x", []string{"a|b"}),
		NewStringColumn("y", []string{"c"}),
	)
	b := MustNew(
		NewStringColumn("x", []string{"a"}),
		NewStringColumn("y", []string{"b|c"}),
	)
	assert.False(t, a.Equal(b))
	assert.False(t, a.EqualRows(b))

	c := MustNew(
		NewStringColumn("x", []string{"1:a;"}),
		NewStringColumn("y", []string{""}),
	)
	d := MustNew(
		NewStringColumn("x", []string{""}),
		NewStringColumn("y", []string{"1:a;"}),
	)
	assert.False(t, c.Equal(d))
	clone := MustNew(
		NewStringColumn("x", []string{"1:a;"}),
		NewStringColumn("y", []string{""}),
	)
	assert.True(t, c.Equal(clone))
}

func TestColumn_FloatCoercion(t *testing.T) {
	tbl := sampleTable(t)

	hours, err := tbl.Column("dep_hour")
	require.NoError(t, err)
	v, err := hours.Float(1)
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)

	airline, err := tbl.Column("airline")
	require.NoError(t, err)
	_, err = airline.Float(0)
	require.Error(t, err)
}
