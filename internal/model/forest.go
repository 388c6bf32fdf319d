package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// RandomForest averages bootstrapped trees grown on random feature subsets.
// Each leaf stores the fraction of positive rows it holds.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int // 0 → unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 → sqrt(p)
	Seed            int64
	Workers         int // 0 → GOMAXPROCS

	Trees []Tree
}

// NewRandomForest returns a 200-tree forest
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:     200,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            seed,
	}
}

// Fit grows the trees concurrently. Each tree owns its random source, so
// the result depends only on Seed.
func (m *RandomForest) Fit(X mat.Matrix, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	if m.NEstimators < 1 {
		return fmt.Errorf("%w: n_estimators must be >= 1", ErrInvalidParam)
	}

	rows, p := X.Dims()
	data := newBinned(X, defaultMaxBins)

	// squared-error regression on y gives leaf value = positive fraction
	g := make([]float64, rows)
	h := make([]float64, rows)
	for i, v := range y {
		g[i] = -v
		h[i] = 1
	}

	maxFeatures := m.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}
	cfg := treeConfig{
		MaxDepth:        m.MaxDepth,
		MinSamplesSplit: m.MinSamplesSplit,
		MinSamplesLeaf:  m.MinSamplesLeaf,
		MaxFeatures:     maxFeatures,
	}
	features := allFeatures(p)

	workers := m.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, m.NEstimators)
	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(workers)
	for k := range trees {
		k := k
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(m.Seed + int64(k)*7919))
			sample := make([]int, rows)
			for i := range sample {
				sample[i] = rng.Intn(rows)
			}
			trees[k] = growTree(data, g, h, sample, features, cfg, rng)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	m.Trees = trees
	return nil
}

// PredictProba averages the leaf fractions of all trees
func (m *RandomForest) PredictProba(X mat.Matrix) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	rows := denseRows(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		var sum float64
		for k := range m.Trees {
			sum += m.Trees[k].Predict(row)
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}

// Predict thresholds PredictProba at 0.5
func (m *RandomForest) Predict(X mat.Matrix) ([]int, error) {
	return predictFromProba(m, X)
}
