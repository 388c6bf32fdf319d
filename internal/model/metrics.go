package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrSingleClass is returned when a ROC curve is requested for labels of
// one class only
var ErrSingleClass = errors.New("roc undefined: labels contain a single class")

// Metrics are hold-out scores
type Metrics struct {
	ROCAUC    float64 `json:"roc_auc" yaml:"roc_auc"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
}

// Map returns the metrics keyed by tracking name
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"roc_auc":   m.ROCAUC,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1":        m.F1,
	}
}

// ROCCurve returns false- and true-positive rates over every distinct score
// threshold, from (0,0) to (1,1)
func ROCCurve(y, scores []float64) (fpr, tpr []float64, err error) {
	if len(y) != len(scores) {
		return nil, nil, fmt.Errorf("roc: %d labels, %d scores", len(y), len(scores))
	}
	var pos int
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return nil, nil, ErrSingleClass
	}

	s := append([]float64(nil), scores...)
	classes := make([]bool, len(y))
	for i, v := range y {
		classes[i] = v == 1
	}
	stat.SortWeightedLabeled(s, classes, nil)

	tpr, fpr, _ = stat.ROC(nil, s, classes, nil)
	return fpr, tpr, nil
}

// ROCAUC is the area under the ROC curve
func ROCAUC(y, scores []float64) (float64, error) {
	fpr, tpr, err := ROCCurve(y, scores)
	if err != nil {
		return 0, err
	}
	return integrate.Trapezoidal(fpr, tpr), nil
}

// PrecisionRecallF1 scores hard predictions; an undefined ratio is 0
func PrecisionRecallF1(y []float64, pred []int) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for i, p := range pred {
		switch {
		case p == 1 && y[i] == 1:
			tp++
		case p == 1 && y[i] != 1:
			fp++
		case p != 1 && y[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}
