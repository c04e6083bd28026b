package ensemble

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func TestFitTreeSeparableData(t *testing.T) {
	// One feature, perfectly separable at 0.5.
	x := mat.NewDense(6, 1, []float64{0, 0.1, 0.2, 0.8, 0.9, 1})
	y := []float64{0, 0, 0, 1, 1, 1}

	tree := fitTree(x, y, allRows(6), treeConfig{maxDepth: 3, minInstancesPerNode: 1}, rand.New(rand.NewSource(1)))
	require.False(t, tree.Leaf)

	assert.Equal(t, 0.0, tree.Predict([]float64{0.05}))
	assert.Equal(t, 1.0, tree.Predict([]float64{0.95}))
}

func TestFitTreePureNodeIsLeaf(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{1, 1, 1, 1}

	tree := fitTree(x, y, allRows(4), treeConfig{maxDepth: 3, minInstancesPerNode: 1}, rand.New(rand.NewSource(1)))
	assert.True(t, tree.Leaf)
	assert.Equal(t, 1.0, tree.Prob)
}

func TestFitTreeRespectsMaxDepth(t *testing.T) {
	// Alternating labels force deep splits if allowed.
	n := 32
	vals := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = float64(i)
		y[i] = float64(i % 2)
	}
	x := mat.NewDense(n, 1, vals)

	tree := fitTree(x, y, allRows(n), treeConfig{maxDepth: 2, minInstancesPerNode: 1}, rand.New(rand.NewSource(1)))
	assert.LessOrEqual(t, tree.Depth(), 2)
}

func TestFitTreeMinInstances(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{0, 0, 1, 1}

	// A minimum of three instances per child makes any split of four rows
	// illegal.
	tree := fitTree(x, y, allRows(4), treeConfig{maxDepth: 5, minInstancesPerNode: 3}, rand.New(rand.NewSource(1)))
	assert.True(t, tree.Leaf)
	assert.Equal(t, 0.5, tree.Prob)
}

func TestFitTreePicksInformativeFeature(t *testing.T) {
	// Feature 0 is noise, feature 1 separates the classes.
	x := mat.NewDense(6, 2, []float64{
		5, 0,
		1, 0.1,
		9, 0.2,
		2, 0.8,
		7, 0.9,
		3, 1,
	})
	y := []float64{0, 0, 0, 1, 1, 1}

	tree := fitTree(x, y, allRows(6), treeConfig{maxDepth: 1, minInstancesPerNode: 1}, rand.New(rand.NewSource(1)))
	require.False(t, tree.Leaf)
	assert.Equal(t, 1, tree.Feature)
}

func TestGini(t *testing.T) {
	assert.Equal(t, 0.0, gini(0, 4))
	assert.Equal(t, 0.0, gini(4, 4))
	assert.Equal(t, 0.5, gini(2, 4))
}

func TestValidateLabels(t *testing.T) {
	require.NoError(t, validateLabels([]float64{0, 1, 1, 0}))
	err := validateLabels([]float64{0, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}
