// Package model holds the classifier families, the preprocessing+classifier
// pipeline, evaluation metrics and bundle persistence.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFitted     = errors.New("model not fitted")
	ErrInvalidParam  = errors.New("invalid hyperparameter")
	ErrUnknownFamily = errors.New("unknown classifier family")
	ErrNoProba       = errors.New("classifier has no probability output")
)

// Family names a classifier family
type Family string

const (
	FamilyLogisticRegression Family = "LogisticRegression"
	FamilyRandomForest       Family = "RandomForest"
	FamilyGradientBoosting   Family = "GradientBoosting"
	FamilyNewtonBoost        Family = "NewtonBoost"
	FamilyLeafWiseBoost      Family = "LeafWiseBoost"
)

// Families lists every family in training order
func Families() []Family {
	return []Family{
		FamilyLogisticRegression,
		FamilyRandomForest,
		FamilyGradientBoosting,
		FamilyNewtonBoost,
		FamilyLeafWiseBoost,
	}
}

// ParseFamily resolves a family name, case-insensitively
func ParseFamily(name string) (Family, error) {
	for _, f := range Families() {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// Classifier is a binary classifier over dense, preprocessed inputs
type Classifier interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]int, error)
}

// ProbClassifier also reports P(y=1)
type ProbClassifier interface {
	Classifier
	PredictProba(X mat.Matrix) ([]float64, error)
}

// Params are sampled hyperparameters. Values are float64, int or string.
type Params map[string]any

// Float reads a numeric parameter
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int reads an integer parameter
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// String reads a string parameter
func (p Params) String(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Strings renders every parameter for tracking
func (p Params) Strings() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		switch x := v.(type) {
		case float64:
			out[k] = strconv.FormatFloat(x, 'g', -1, 64)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}

// Keys returns the sorted parameter names
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// allowedParams lists the tunable parameters of each family
var allowedParams = map[Family][]string{
	FamilyLogisticRegression: {"C", "solver", "max_iter"},
	FamilyRandomForest:       {"n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "max_features"},
	FamilyGradientBoosting:   {"n_estimators", "max_depth", "learning_rate", "subsample", "min_samples_leaf"},
	FamilyNewtonBoost:        {"n_estimators", "max_depth", "learning_rate", "subsample", "colsample_bytree", "reg_lambda", "min_child_weight"},
	FamilyLeafWiseBoost:      {"n_estimators", "num_leaves", "max_depth", "learning_rate", "subsample", "min_child_samples"},
}

// AllowedParams returns the tunable parameter names of family
func AllowedParams(family Family) []string {
	return append([]string(nil), allowedParams[family]...)
}

func checkParams(family Family, params Params) error {
	allowed := make(map[string]bool)
	for _, k := range allowedParams[family] {
		allowed[k] = true
	}
	for _, k := range params.Keys() {
		if !allowed[k] {
			return fmt.Errorf("%w: %s has no parameter %q", ErrInvalidParam, family, k)
		}
	}
	return nil
}

// New builds an unfitted classifier of family with params over defaults
func New(family Family, params Params, seed int64) (ProbClassifier, error) {
	if _, ok := allowedParams[family]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	if err := checkParams(family, params); err != nil {
		return nil, err
	}

	switch family {
	case FamilyLogisticRegression:
		m := NewLogisticRegression()
		m.C = params.Float("C", m.C)
		m.Solver = params.String("solver", m.Solver)
		m.MaxIter = params.Int("max_iter", m.MaxIter)
		return m, nil

	case FamilyRandomForest:
		m := NewRandomForest(seed)
		m.NEstimators = params.Int("n_estimators", m.NEstimators)
		m.MaxDepth = params.Int("max_depth", m.MaxDepth)
		m.MinSamplesSplit = params.Int("min_samples_split", m.MinSamplesSplit)
		m.MinSamplesLeaf = params.Int("min_samples_leaf", m.MinSamplesLeaf)
		m.MaxFeatures = params.Int("max_features", m.MaxFeatures)
		return m, nil

	case FamilyGradientBoosting:
		m := NewGradientBoosting(seed)
		m.NEstimators = params.Int("n_estimators", m.NEstimators)
		m.MaxDepth = params.Int("max_depth", m.MaxDepth)
		m.LearningRate = params.Float("learning_rate", m.LearningRate)
		m.Subsample = params.Float("subsample", m.Subsample)
		m.MinSamplesLeaf = params.Int("min_samples_leaf", m.MinSamplesLeaf)
		return m, nil

	case FamilyNewtonBoost:
		m := NewNewtonBoost(seed)
		m.NEstimators = params.Int("n_estimators", m.NEstimators)
		m.MaxDepth = params.Int("max_depth", m.MaxDepth)
		m.LearningRate = params.Float("learning_rate", m.LearningRate)
		m.Subsample = params.Float("subsample", m.Subsample)
		m.ColSample = params.Float("colsample_bytree", m.ColSample)
		m.Lambda = params.Float("reg_lambda", m.Lambda)
		m.MinChildWeight = params.Float("min_child_weight", m.MinChildWeight)
		return m, nil

	default: // FamilyLeafWiseBoost
		m := NewLeafWiseBoost(seed)
		m.NEstimators = params.Int("n_estimators", m.NEstimators)
		m.MaxLeaves = params.Int("num_leaves", m.MaxLeaves)
		m.MaxDepth = params.Int("max_depth", m.MaxDepth)
		m.LearningRate = params.Float("learning_rate", m.LearningRate)
		m.Subsample = params.Float("subsample", m.Subsample)
		m.MinSamplesLeaf = params.Int("min_child_samples", m.MinSamplesLeaf)
		return m, nil
	}
}

func checkXY(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.New("empty training matrix")
	}
	if r != len(y) {
		return fmt.Errorf("X has %d rows, y has %d", r, len(y))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %v at row %d is not 0/1", v, i)
		}
	}
	return nil
}

func predictFromProba(m ProbClassifier, X mat.Matrix) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}
