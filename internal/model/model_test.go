package model

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/features"
	"github.com/wonny/creditpd/internal/testutil"
)

// separable returns a 2-feature problem where y = 1 iff x0 + x1 > 0
func separable(n int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := math.Sin(float64(i)*1.7) * 3
		b := math.Cos(float64(i)*0.9) * 3
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		if a+b > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func accuracy(pred []int, y []float64) float64 {
	var ok float64
	for i := range pred {
		if float64(pred[i]) == y[i] {
			ok++
		}
	}
	return ok / float64(len(pred))
}

func TestFamiliesLearnSeparableProblem(t *testing.T) {
	X, y := separable(400)

	small := map[Family]Params{
		FamilyLogisticRegression: {},
		FamilyRandomForest:       {"n_estimators": 30},
		FamilyGradientBoosting:   {"n_estimators": 50},
		FamilyNewtonBoost:        {"n_estimators": 30},
		FamilyLeafWiseBoost:      {"n_estimators": 50, "num_leaves": 8},
	}

	for _, family := range Families() {
		t.Run(string(family), func(t *testing.T) {
			clf, err := New(family, small[family], 42)
			require.NoError(t, err)
			require.NoError(t, clf.Fit(X, y))

			pred, err := clf.Predict(X)
			require.NoError(t, err)
			assert.Greater(t, accuracy(pred, y), 0.9)

			proba, err := clf.PredictProba(X)
			require.NoError(t, err)
			for _, p := range proba {
				assert.True(t, p >= 0 && p <= 1)
			}
			auc, err := ROCAUC(y, proba)
			require.NoError(t, err)
			assert.Greater(t, auc, 0.95)
		})
	}
}

func TestNewRejectsUnknownParam(t *testing.T) {
	_, err := New(FamilyRandomForest, Params{"learning_rate": 0.1}, 1)
	assert.True(t, errors.Is(err, ErrInvalidParam))

	_, err = New(Family("SVM"), nil, 1)
	assert.True(t, errors.Is(err, ErrUnknownFamily))
}

func TestNewAppliesParams(t *testing.T) {
	clf, err := New(FamilyLeafWiseBoost, Params{"num_leaves": 24, "learning_rate": 0.05, "max_depth": 5}, 3)
	require.NoError(t, err)
	b := clf.(*Booster)
	assert.Equal(t, 24, b.MaxLeaves)
	assert.Equal(t, 0.05, b.LearningRate)
	assert.Equal(t, 5, b.MaxDepth)
	assert.Equal(t, FamilyLeafWiseBoost, b.Family)

	clf, err = New(FamilyLogisticRegression, Params{"C": 0.5, "solver": "cg"}, 3)
	require.NoError(t, err)
	lr := clf.(*LogisticRegression)
	assert.Equal(t, 0.5, lr.C)
	assert.Equal(t, "cg", lr.Solver)
}

func TestLogisticRegressionSolvers(t *testing.T) {
	X, y := separable(200)
	for _, solver := range []string{"lbfgs", "cg"} {
		m := NewLogisticRegression()
		m.Solver = solver
		require.NoError(t, m.Fit(X, y), solver)
		pred, err := m.Predict(X)
		require.NoError(t, err)
		assert.Greater(t, accuracy(pred, y), 0.9, solver)
	}

	m := NewLogisticRegression()
	m.Solver = "newton"
	assert.ErrorIs(t, m.Fit(X, y), ErrInvalidParam)
}

func TestLeafWiseRespectsLeafBudget(t *testing.T) {
	X, y := separable(300)
	m := NewLeafWiseBoost(1)
	m.NEstimators = 3
	m.MaxLeaves = 4
	m.MinSamplesLeaf = 1
	require.NoError(t, m.Fit(X, y))
	for _, tree := range m.Trees {
		assert.LessOrEqual(t, tree.Leaves(), 4)
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := separable(150)
	a := NewRandomForest(9)
	a.NEstimators = 10
	b := NewRandomForest(9)
	b.NEstimators = 10
	b.Workers = 1
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, _ := a.PredictProba(X)
	pb, _ := b.PredictProba(X)
	assert.Equal(t, pa, pb)
}

func TestBoosterValidate(t *testing.T) {
	X, y := separable(20)
	m := NewGradientBoosting(1)
	m.Subsample = 1.5
	assert.ErrorIs(t, m.Fit(X, y), ErrInvalidParam)
}

func TestPredictBeforeFit(t *testing.T) {
	X, _ := separable(5)
	_, err := NewRandomForest(1).PredictProba(X)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestROCAUC(t *testing.T) {
	auc, err := ROCAUC([]float64{1, 0, 1, 0}, []float64{0.1, 0.35, 0.4, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, auc, 1e-12)

	auc, err = ROCAUC([]float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, auc, 1e-12)

	auc, err = ROCAUC([]float64{0, 1}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, auc, 1e-12, "ties count half")

	_, err = ROCAUC([]float64{1, 1}, []float64{0.2, 0.9})
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestROCCurveEndpoints(t *testing.T) {
	fpr, tpr, err := ROCCurve([]float64{0, 1, 0, 1}, []float64{0.2, 0.9, 0.3, 0.6})
	require.NoError(t, err)
	assert.Equal(t, 0.0, fpr[0])
	assert.Equal(t, 0.0, tpr[0])
	assert.Equal(t, 1.0, fpr[len(fpr)-1])
	assert.Equal(t, 1.0, tpr[len(tpr)-1])
}

func TestPrecisionRecallF1(t *testing.T) {
	p, r, f1 := PrecisionRecallF1([]float64{1, 0, 1, 1}, []int{1, 1, 0, 1})
	assert.InDelta(t, 2.0/3.0, p, 1e-12)
	assert.InDelta(t, 2.0/3.0, r, 1e-12)
	assert.InDelta(t, 2.0/3.0, f1, 1e-12)

	p, r, f1 = PrecisionRecallF1([]float64{0, 0}, []int{0, 0})
	assert.Equal(t, []float64{0, 0, 0}, []float64{p, r, f1}, "undefined ratios are 0")
}

func TestPipelineFitEvaluateAndBundle(t *testing.T) {
	recs := features.Engineer(testutil.SyntheticRecords(400, 5))
	X, y := Matrix(recs)
	_, cols := X.Dims()
	require.Equal(t, len(contracts.ModelInputColumns()), cols)

	p, err := NewPipeline(FamilyGradientBoosting, Params{"n_estimators": 40}, 42)
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	m, err := p.Evaluate(X, y)
	require.NoError(t, err)
	assert.Greater(t, m.ROCAUC, 0.7)
	assert.Contains(t, p.Pre.OutputNames(), "SEX_1")

	path := filepath.Join(t.TempDir(), "models", "gradientboosting_best.gob")
	b := &Bundle{Pipeline: p, Metrics: m, TrainedAt: time.Now().UTC(), RunID: "run-1"}
	require.NoError(t, b.Save(path))

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, FamilyGradientBoosting, loaded.Pipeline.Family)
	assert.Equal(t, "run-1", loaded.RunID)

	want, err := p.PredictProba(X)
	require.NoError(t, err)
	got, err := loaded.Pipeline.PredictProba(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestLoadBundleMissingFile(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "none.gob"))
	assert.Error(t, err)
}
