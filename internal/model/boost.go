package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Booster is gradient-boosted trees on the logistic loss.
// The three boosted families are configurations of it:
//
//	GradientBoosting  depth-wise, λ=0, row subsampling
//	NewtonBoost       depth-wise, λ=1, min hessian per child, column subsampling per tree
//	LeafWiseBoost     best-first growth bounded by MaxLeaves
type Booster struct {
	Family         Family
	NEstimators    int
	LearningRate   float64
	MaxDepth       int // 0 → unlimited
	MaxLeaves      int // 0 → depth-wise
	MinSamplesLeaf int
	MinChildWeight float64
	Lambda         float64
	Subsample      float64 // row fraction per round
	ColSample      float64 // column fraction per tree
	Seed           int64

	Init  float64 // log-odds of the training prior
	Trees []Tree
}

// NewGradientBoosting returns 100 rounds at rate 0.1 with depth-3 trees
func NewGradientBoosting(seed int64) *Booster {
	return &Booster{
		Family:         FamilyGradientBoosting,
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
		Subsample:      1,
		ColSample:      1,
		Seed:           seed,
	}
}

// NewNewtonBoost returns 100 rounds at rate 0.3 with depth-6 trees and λ=1
func NewNewtonBoost(seed int64) *Booster {
	return &Booster{
		Family:         FamilyNewtonBoost,
		NEstimators:    100,
		LearningRate:   0.3,
		MaxDepth:       6,
		MinSamplesLeaf: 1,
		MinChildWeight: 1,
		Lambda:         1,
		Subsample:      1,
		ColSample:      1,
		Seed:           seed,
	}
}

// NewLeafWiseBoost returns 100 rounds at rate 0.1 with 31 leaves of at least 20 rows
func NewLeafWiseBoost(seed int64) *Booster {
	return &Booster{
		Family:         FamilyLeafWiseBoost,
		NEstimators:    100,
		LearningRate:   0.1,
		MaxLeaves:      31,
		MinSamplesLeaf: 20,
		MinChildWeight: 1e-3,
		Subsample:      1,
		ColSample:      1,
		Seed:           seed,
	}
}

func (m *Booster) validate() error {
	switch {
	case m.NEstimators < 1:
		return fmt.Errorf("%w: n_estimators must be >= 1", ErrInvalidParam)
	case m.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be > 0", ErrInvalidParam)
	case m.Subsample <= 0 || m.Subsample > 1:
		return fmt.Errorf("%w: subsample must be in (0, 1]", ErrInvalidParam)
	case m.ColSample <= 0 || m.ColSample > 1:
		return fmt.Errorf("%w: colsample_bytree must be in (0, 1]", ErrInvalidParam)
	case m.MaxLeaves == 1:
		return fmt.Errorf("%w: num_leaves must be >= 2", ErrInvalidParam)
	}
	return nil
}

// Fit runs NEstimators Newton steps from the prior log-odds
func (m *Booster) Fit(X mat.Matrix, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}

	rows, p := X.Dims()
	data := newBinned(X, defaultMaxBins)
	rng := rand.New(rand.NewSource(m.Seed))

	var pos float64
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(pos/float64(rows), 1e-6), 1-1e-6)
	m.Init = math.Log(prior / (1 - prior))

	F := make([]float64, rows)
	for i := range F {
		F[i] = m.Init
	}
	g := make([]float64, rows)
	h := make([]float64, rows)

	cfg := treeConfig{
		MaxDepth:       m.MaxDepth,
		MaxLeaves:      m.MaxLeaves,
		MinSamplesLeaf: m.MinSamplesLeaf,
		MinChildWeight: m.MinChildWeight,
		Lambda:         m.Lambda,
	}
	features := allFeatures(p)
	allRows := allFeatures(rows)
	train := denseRows(X)
	nRows := int(math.Max(1, math.Round(m.Subsample*float64(rows))))
	nCols := int(math.Max(1, math.Round(m.ColSample*float64(p))))

	m.Trees = make([]Tree, 0, m.NEstimators)
	for round := 0; round < m.NEstimators; round++ {
		for i := range F {
			prob := sigmoid(F[i])
			g[i] = prob - y[i]
			h[i] = math.Max(prob*(1-prob), 1e-16)
		}

		sample := allRows
		if nRows < rows {
			sample = rng.Perm(rows)[:nRows]
		}
		cols := features
		if nCols < p {
			cols = rng.Perm(p)[:nCols]
		}

		tree := growTree(data, g, h, sample, cols, cfg, rng)
		for i := range tree.Nodes {
			tree.Nodes[i].Value *= m.LearningRate
		}
		m.Trees = append(m.Trees, tree)

		for i, row := range train {
			F[i] += tree.Predict(row)
		}
	}
	return nil
}

// PredictProba returns sigmoid of the boosted log-odds
func (m *Booster) PredictProba(X mat.Matrix) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	rows := denseRows(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		f := m.Init
		for k := range m.Trees {
			f += m.Trees[k].Predict(row)
		}
		out[i] = sigmoid(f)
	}
	return out, nil
}

// Predict thresholds PredictProba at 0.5
func (m *Booster) Predict(X mat.Matrix) ([]int, error) {
	return predictFromProba(m, X)
}
