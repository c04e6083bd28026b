package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
)

func init() {
	pipeline.RegisterModelKind("random_forest", func() pipeline.PersistentTransformer {
		return &RandomForestModel{}
	})
}

// Default hyperparameters, applied when the corresponding field is zero.
const (
	DefaultNumTrees = 20
	DefaultMaxDepth = 5
)

// RandomForestClassifier fits a bagged ensemble of decision trees for binary
// classification. Labels must be 0 or 1.
type RandomForestClassifier struct {
	// FeaturesCol names the input vector column; LabelCol the 0/1 label
	// column.
	FeaturesCol string
	LabelCol    string

	// PredictionCol and ProbabilityCol name the output columns, defaulting
	// to "prediction" and "probability".
	PredictionCol  string
	ProbabilityCol string

	// NumTrees is the ensemble size (default 20). MaxDepth limits tree
	// depth (default 5). MinInstancesPerNode is the smallest split child
	// (default 1). MaxFeatures caps the features considered per split;
	// zero picks sqrt(num features).
	NumTrees            int
	MaxDepth            int
	MinInstancesPerNode int
	MaxFeatures         int

	// Seed makes fitting deterministic.
	Seed int64
}

// Kind identifies the stage type.
func (c *RandomForestClassifier) Kind() string { return "random_forest" }

// Fit trains the forest. Trees are fitted concurrently on bootstrap samples,
// each with its own deterministic seed derived from Seed.
func (c *RandomForestClassifier) Fit(ctx context.Context, tbl *table.Table) (pipeline.Transformer, error) {
	x, numFeatures, err := featureMatrix(tbl, c.FeaturesCol)
	if err != nil {
		return nil, err
	}

	labelCol, err := tbl.Column(c.LabelCol)
	if err != nil {
		return nil, err
	}
	n := tbl.NumRows()
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		if labelCol.IsNull(i) {
			return nil, fmt.Errorf("label column %q: null value at row %d", c.LabelCol, i)
		}
		v, err := labelCol.Float(i)
		if err != nil {
			return nil, fmt.Errorf("label column %q: %w", c.LabelCol, err)
		}
		y[i] = v
	}
	if err := validateLabels(y); err != nil {
		return nil, fmt.Errorf("label column %q: %w", c.LabelCol, err)
	}

	numTrees := c.NumTrees
	if numTrees == 0 {
		numTrees = DefaultNumTrees
	}
	maxDepth := c.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	minInstances := c.MinInstancesPerNode
	if minInstances == 0 {
		minInstances = 1
	}
	maxFeatures := c.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Ceil(math.Sqrt(float64(numFeatures))))
	}

	cfg := treeConfig{
		maxDepth:            maxDepth,
		minInstancesPerNode: minInstances,
		maxFeatures:         maxFeatures,
	}

	trees := make([]*TreeNode, numTrees)
	g, ctx := errgroup.WithContext(ctx)
	for t := 0; t < numTrees; t++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(c.Seed + int64(t)))
			sample := make([]int, n)
			for i := range sample {
				sample[i] = rng.Intn(n)
			}
			trees[t] = fitTree(x, y, sample, cfg, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &RandomForestModel{
		FeaturesCol:    c.FeaturesCol,
		PredictionCol:  c.PredictionCol,
		ProbabilityCol: c.ProbabilityCol,
		NumFeatures:    numFeatures,
		Trees:          trees,
	}, nil
}

// RandomForestModel is a fitted RandomForestClassifier.
type RandomForestModel struct {
	FeaturesCol    string      `json:"features_col"`
	PredictionCol  string      `json:"prediction_col"`
	ProbabilityCol string      `json:"probability_col"`
	NumFeatures    int         `json:"num_features"`
	Trees          []*TreeNode `json:"trees"`
}

// Kind identifies the stage type.
func (m *RandomForestModel) Kind() string { return "random_forest" }

// PredictProb returns the mean tree probability for one feature vector.
func (m *RandomForestModel) PredictProb(x []float64) float64 {
	sum := 0.0
	for _, t := range m.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(m.Trees))
}

// Transform appends the probability and prediction columns. Rows with
// probability at or above 0.5 are predicted positive.
func (m *RandomForestModel) Transform(ctx context.Context, tbl *table.Table) (*table.Table, error) {
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("random forest has no trees")
	}
	col, err := tbl.Column(m.FeaturesCol)
	if err != nil {
		return nil, err
	}
	if col.Kind != table.Vector {
		return nil, fmt.Errorf("features column %q must be a vector column, got %s", m.FeaturesCol, col.Kind)
	}

	n := col.Len()
	probs := make([]float64, n)
	preds := make([]float64, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec := col.Vectors[i]
		if len(vec) != m.NumFeatures {
			return nil, fmt.Errorf("features column %q row %d: vector has %d entries, model expects %d",
				m.FeaturesCol, i, len(vec), m.NumFeatures)
		}
		probs[i] = m.PredictProb(vec)
		if probs[i] >= 0.5 {
			preds[i] = 1
		}
	}

	out, err := tbl.WithColumn(table.NewFloatColumn(m.probabilityCol(), probs))
	if err != nil {
		return nil, err
	}
	return out.WithColumn(table.NewFloatColumn(m.predictionCol(), preds))
}

func (m *RandomForestModel) predictionCol() string {
	if m.PredictionCol == "" {
		return "prediction"
	}
	return m.PredictionCol
}

func (m *RandomForestModel) probabilityCol() string {
	if m.ProbabilityCol == "" {
		return "probability"
	}
	return m.ProbabilityCol
}

// featureMatrix converts a vector column into a dense matrix, validating
// that every row has the same width.
func featureMatrix(tbl *table.Table, name string) (*mat.Dense, int, error) {
	col, err := tbl.Column(name)
	if err != nil {
		return nil, 0, err
	}
	if col.Kind != table.Vector {
		return nil, 0, fmt.Errorf("features column %q must be a vector column, got %s", name, col.Kind)
	}
	n := col.Len()
	if n == 0 {
		return nil, 0, fmt.Errorf("features column %q is empty", name)
	}

	width := len(col.Vectors[0])
	if width == 0 {
		return nil, 0, fmt.Errorf("features column %q has zero-width vectors", name)
	}
	x := mat.NewDense(n, width, nil)
	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			return nil, 0, fmt.Errorf("features column %q: null value at row %d", name, i)
		}
		if len(col.Vectors[i]) != width {
			return nil, 0, fmt.Errorf("features column %q row %d: vector has %d entries, want %d",
				name, i, len(col.Vectors[i]), width)
		}
		x.SetRow(i, col.Vectors[i])
	}
	return x, width, nil
}

var (
	_ pipeline.Estimator             = (*RandomForestClassifier)(nil)
	_ pipeline.PersistentTransformer = (*RandomForestModel)(nil)
)
