package tuning

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapml/pkg/table"
)

// Metrics understood by BinaryClassificationEvaluator.
const (
	MetricAccuracy     = "accuracy"
	MetricAreaUnderROC = "areaUnderROC"
)

// BinaryClassificationEvaluator scores a transformed table holding true
// labels and model outputs. Higher is better for both supported metrics.
type BinaryClassificationEvaluator struct {
	// LabelCol names the 0/1 ground-truth column.
	LabelCol string
	// PredictionCol names the 0/1 prediction column, used by accuracy.
	PredictionCol string
	// ProbabilityCol names the positive-class probability column, used by
	// areaUnderROC.
	ProbabilityCol string
	// Metric selects the score, defaulting to areaUnderROC.
	Metric string
}

// Evaluate computes the configured metric.
func (e *BinaryClassificationEvaluator) Evaluate(tbl *table.Table) (float64, error) {
	metric := e.Metric
	if metric == "" {
		metric = MetricAreaUnderROC
	}
	switch metric {
	case MetricAccuracy:
		return e.accuracy(tbl)
	case MetricAreaUnderROC:
		return e.areaUnderROC(tbl)
	default:
		return 0, fmt.Errorf("unknown evaluation metric %q", metric)
	}
}

func (e *BinaryClassificationEvaluator) column(tbl *table.Table, name string) ([]float64, error) {
	col, err := tbl.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, col.Len())
	for i := range out {
		if col.IsNull(i) {
			return nil, fmt.Errorf("column %q: null value at row %d", name, i)
		}
		v, err := col.Float(i)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *BinaryClassificationEvaluator) accuracy(tbl *table.Table) (float64, error) {
	labels, err := e.column(tbl, e.LabelCol)
	if err != nil {
		return 0, err
	}
	preds, err := e.column(tbl, e.PredictionCol)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return 0, fmt.Errorf("accuracy: no rows to evaluate")
	}

	correct := 0
	for i := range labels {
		if labels[i] == preds[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// areaUnderROC computes AUC by the rank statistic: the probability that a
// random positive scores higher than a random negative, with ties counting
// half.
func (e *BinaryClassificationEvaluator) areaUnderROC(tbl *table.Table) (float64, error) {
	labels, err := e.column(tbl, e.LabelCol)
	if err != nil {
		return 0, err
	}
	scores, err := e.column(tbl, e.ProbabilityCol)
	if err != nil {
		return 0, err
	}

	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(labels))
	numPos, numNeg := 0, 0
	for i := range labels {
		switch labels[i] {
		case 1:
			numPos++
		case 0:
			numNeg++
		default:
			return 0, fmt.Errorf("label at row %d is %v, want 0 or 1", i, labels[i])
		}
		pairs[i] = pair{score: scores[i], pos: labels[i] == 1}
	}
	if numPos == 0 || numNeg == 0 {
		return 0, fmt.Errorf("areaUnderROC needs both classes, got %d positives and %d negatives", numPos, numNeg)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	// Sum ranks of positives, averaging ranks within tie groups.
	rankSum := 0.0
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}

	auc := (rankSum - float64(numPos)*float64(numPos+1)/2) / (float64(numPos) * float64(numNeg))
	return auc, nil
}
