package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/pkg/table"
)

func fitIndexer(t *testing.T, idx *StringIndexer, tbl *table.Table) *StringIndexerModel {
	t.Helper()
	tr, err := idx.Fit(context.Background(), tbl)
	require.NoError(t, err)
	return tr.(*StringIndexerModel)
}

func TestStringIndexerOrdering(t *testing.T) {
	tbl := table.MustNew(table.NewStringColumn("Airline", []string{
		"DL", "UA", "DL", "AA", "DL", "UA",
	}))
	m := fitIndexer(t, &StringIndexer{InputCol: "Airline", OutputCol: "AirlineIdx"}, tbl)

	// DL appears three times, UA twice, AA once.
	assert.Equal(t, []string{"DL", "UA", "AA"}, m.Labels)

	out, err := m.Transform(context.Background(), tbl)
	require.NoError(t, err)
	col, err := out.Column("AirlineIdx")
	require.NoError(t, err)
	assert.Equal(t, table.Float, col.Kind)
	assert.Equal(t, []float64{0, 1, 0, 2, 0, 1}, col.Floats)
}

func TestStringIndexerTiesBreakAlphabetically(t *testing.T) {
	tbl := table.MustNew(table.NewStringColumn("Airline", []string{"UA", "AA", "DL"}))
	m := fitIndexer(t, &StringIndexer{InputCol: "Airline", OutputCol: "AirlineIdx"}, tbl)
	assert.Equal(t, []string{"AA", "DL", "UA"}, m.Labels)
}

func TestStringIndexerUnseenLabel(t *testing.T) {
	train := table.MustNew(table.NewStringColumn("Airline", []string{"UA", "DL"}))
	test := table.MustNew(table.NewStringColumn("Airline", []string{"UA", "WN"}))
	ctx := context.Background()

	t.Run("error", func(t *testing.T) {
		m := fitIndexer(t, &StringIndexer{InputCol: "Airline", OutputCol: "Idx"}, train)
		_, err := m.Transform(ctx, test)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unseen label "WN"`)
	})

	t.Run("keep", func(t *testing.T) {
		m := fitIndexer(t, &StringIndexer{
			InputCol: "Airline", OutputCol: "Idx", HandleInvalid: HandleInvalidKeep,
		}, train)
		out, err := m.Transform(ctx, test)
		require.NoError(t, err)
		col, err := out.Column("Idx")
		require.NoError(t, err)
		assert.Equal(t, float64(len(m.Labels)), col.Floats[1])
	})

	t.Run("skip", func(t *testing.T) {
		m := fitIndexer(t, &StringIndexer{
			InputCol: "Airline", OutputCol: "Idx", HandleInvalid: HandleInvalidSkip,
		}, train)
		out, err := m.Transform(ctx, test)
		require.NoError(t, err)
		assert.Equal(t, 1, out.NumRows())
	})
}

func TestStringIndexerWrongColumnKind(t *testing.T) {
	tbl := table.MustNew(table.NewIntColumn("x", []int64{1, 2}))
	_, err := (&StringIndexer{InputCol: "x", OutputCol: "y"}).Fit(context.Background(), tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a string column")
}

func TestStringIndexerMissingColumn(t *testing.T) {
	tbl := table.MustNew(table.NewStringColumn("a", []string{"x"}))
	_, err := (&StringIndexer{InputCol: "absent", OutputCol: "y"}).Fit(context.Background(), tbl)
	require.Error(t, err)
}
