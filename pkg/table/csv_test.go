package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_InferSchema(t *testing.T) {
	data := "Airline,DepHour,Distance,DepDel15\nAA,9,240.5,0\nDL,14,1100,1\nUA,23,733.25,0\n"

	tbl, err := ReadCSV(strings.NewReader(data), DefaultCSVOptions())
	require.NoError(t, err)

	require.Equal(t, []string{"Airline", "DepHour", "Distance", "DepDel15"}, tbl.Names())
	require.Equal(t, 3, tbl.NumRows())

	airline, _ := tbl.Column("Airline")
	assert.Equal(t, String, airline.Kind)
	hour, _ := tbl.Column("DepHour")
	assert.Equal(t, Int, hour.Kind)
	dist, _ := tbl.Column("Distance")
	assert.Equal(t, Float, dist.Kind)
	assert.Equal(t, []float64{240.5, 1100, 733.25}, dist.Floats)

	// 0/1 narrows to int, not bool.
	label, _ := tbl.Column("DepDel15")
	assert.Equal(t, Int, label.Kind)
}

func TestReadCSV_MixedColumnsWidenToString(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"float then bool", "x\n1.5\ntrue\n", []string{"1.5", "true"}},
		{"bool then float", "x\ntrue\n1.5\n", []string{"true", "1.5"}},
		{"int then bool", "x\n7\nfalse\n", []string{"7", "false"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(tt.data), DefaultCSVOptions())
			require.NoError(t, err)
			col, err := tbl.Column("x")
			require.NoError(t, err)
			require.Equal(t, String, col.Kind)
			assert.Equal(t, tt.want, col.Strings)
		})
	}
}

func TestReadCSV_NoInference(t *testing.T) {
	data := "a,b\n1,2.5\n3,x\n"
	tbl, err := ReadCSV(strings.NewReader(data), CSVOptions{Header: true})
	require.NoError(t, err)
	for _, c := range tbl.Columns() {
		assert.Equal(t, String, c.Kind)
	}
}

func TestReadCSV_Nulls(t *testing.T) {
	data := "a,b\n1,x\n,y\n3,NA\n"
	tbl, err := ReadCSV(strings.NewReader(data), CSVOptions{
		Header:      true,
		InferSchema: true,
		NullValues:  []string{"NA"},
	})
	require.NoError(t, err)

	a, _ := tbl.Column("a")
	assert.Equal(t, Int, a.Kind)
	assert.True(t, a.IsNull(1))
	b, _ := tbl.Column("b")
	assert.True(t, b.IsNull(2))

	assert.Equal(t, 1, tbl.DropNulls().NumRows())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		opts CSVOptions
		want string
	}{
		{"empty input", "", DefaultCSVOptions(), "no data"},
		{"ragged row", "a,b\n1,2\n3\n", DefaultCSVOptions(), "has 1 fields, want 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	tbl := MustNew(
		NewStringColumn("airline", []string{"AA", "DL"}),
		NewIntColumn("dep_hour", []int64{9, 14}),
		NewFloatColumn("distance", []float64{240.5, 1100}),
		NewBoolColumn("cancelled", []bool{false, true}),
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl, CSVOptions{Header: true}))

	got, err := ReadCSV(&buf, DefaultCSVOptions())
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got), "expected lossless round trip, got %v", got.Names())
}

func TestWriteCSV_RejectsVectors(t *testing.T) {
	tbl := MustNew(NewVectorColumn("features", [][]float64{{1, 2}}))
	err := WriteCSV(&bytes.Buffer{}, tbl, CSVOptions{Header: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CSV representation")
}
