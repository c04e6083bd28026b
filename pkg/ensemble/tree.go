// Package ensemble implements tree-based binary classifiers: a CART decision
// tree and a bagged random forest built on it. Trees split on Gini impurity
// and store the positive-class fraction at each leaf, so the forest yields
// calibrated-ish probabilities by averaging.
package ensemble

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeNode is one node of a fitted decision tree. Leaf nodes carry the
// positive-class probability; internal nodes route rows with feature values
// at or below Threshold to Left, the rest to Right.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Prob      float64   `json:"prob,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

// Predict returns the positive-class probability for one feature vector.
func (n *TreeNode) Predict(x []float64) float64 {
	node := n
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Prob
}

// Depth returns the length of the longest root-to-leaf path. A lone leaf has
// depth zero.
func (n *TreeNode) Depth() int {
	if n.Leaf {
		return 0
	}
	left, right := n.Left.Depth(), n.Right.Depth()
	if left > right {
		return left + 1
	}
	return right + 1
}

type treeConfig struct {
	maxDepth            int
	minInstancesPerNode int
	// maxFeatures limits how many features each split considers. Zero
	// means all.
	maxFeatures int
}

// fitTree grows a CART tree on the rows named by idx. rng drives the
// per-split feature subsampling and must not be shared across goroutines.
func fitTree(x *mat.Dense, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) *TreeNode {
	return growNode(x, y, idx, 0, cfg, rng)
}

func growNode(x *mat.Dense, y []float64, idx []int, depth int, cfg treeConfig, rng *rand.Rand) *TreeNode {
	pos := 0
	for _, i := range idx {
		if y[i] == 1 {
			pos++
		}
	}
	prob := float64(pos) / float64(len(idx))

	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minInstancesPerNode || pos == 0 || pos == len(idx) {
		return &TreeNode{Leaf: true, Prob: prob}
	}

	feature, threshold, ok := bestSplit(x, y, idx, cfg, rng)
	if !ok {
		return &TreeNode{Leaf: true, Prob: prob}
	}

	var left, right []int
	for _, i := range idx {
		if x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < cfg.minInstancesPerNode || len(right) < cfg.minInstancesPerNode {
		return &TreeNode{Leaf: true, Prob: prob}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growNode(x, y, left, depth+1, cfg, rng),
		Right:     growNode(x, y, right, depth+1, cfg, rng),
	}
}

// bestSplit scans candidate features for the threshold minimizing weighted
// Gini impurity. Each feature is scanned in one pass over its sorted values.
func bestSplit(x *mat.Dense, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) (int, float64, bool) {
	_, numFeatures := x.Dims()
	features := make([]int, numFeatures)
	for i := range features {
		features[i] = i
	}
	if cfg.maxFeatures > 0 && cfg.maxFeatures < numFeatures {
		rng.Shuffle(numFeatures, func(i, j int) {
			features[i], features[j] = features[j], features[i]
		})
		features = features[:cfg.maxFeatures]
	}

	totalPos := 0
	for _, i := range idx {
		if y[i] == 1 {
			totalPos++
		}
	}
	n := len(idx)

	bestGini := gini(totalPos, n)
	bestFeature, bestThreshold := -1, 0.0
	order := make([]int, n)

	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return x.At(order[a], f) < x.At(order[b], f) })

		leftPos, leftN := 0, 0
		for k := 0; k < n-1; k++ {
			i := order[k]
			if y[i] == 1 {
				leftPos++
			}
			leftN++

			v, next := x.At(i, f), x.At(order[k+1], f)
			if v == next {
				continue
			}
			if leftN < cfg.minInstancesPerNode || n-leftN < cfg.minInstancesPerNode {
				continue
			}

			weighted := (float64(leftN)*gini(leftPos, leftN) +
				float64(n-leftN)*gini(totalPos-leftPos, n-leftN)) / float64(n)
			if weighted < bestGini {
				bestGini = weighted
				bestFeature = f
				bestThreshold = (v + next) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// gini computes binary Gini impurity for pos positives out of n.
func gini(pos, n int) float64 {
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

func validateLabels(y []float64) error {
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label at row %d is %v, want 0 or 1", i, v)
		}
	}
	return nil
}
