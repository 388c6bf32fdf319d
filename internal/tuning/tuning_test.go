package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/features"
	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/internal/testutil"
	"github.com/wonny/creditpd/pkg/logger"
)

func labels(n int, positives int) []float64 {
	y := make([]float64, n)
	for i := 0; i < positives; i++ {
		y[i] = 1
	}
	return y
}

func TestStratifiedSplitKeepsClassShare(t *testing.T) {
	y := labels(100, 20)

	train, test, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	var pos float64
	for _, i := range test {
		pos += y[i]
	}
	assert.Equal(t, 4.0, pos)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "row %d on both sides", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	y := labels(50, 10)
	a, _, err := StratifiedSplit(y, 0.3, 7)
	require.NoError(t, err)
	b, _, err := StratifiedSplit(y, 0.3, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStratifiedSplitRejectsBadSize(t *testing.T) {
	_, _, err := StratifiedSplit(labels(10, 5), 1.0, 1)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	y := labels(30, 9)
	folds, err := StratifiedKFold(y, 3, 42)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	valid := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.Valid, 10)
		assert.Len(t, f.Train, 20)
		var pos float64
		for _, i := range f.Valid {
			valid[i]++
			pos += y[i]
		}
		assert.Equal(t, 3.0, pos)
	}
	assert.Len(t, valid, 30)

	_, err = StratifiedKFold(y, 1, 42)
	assert.Error(t, err)
}

func TestSampleParamsWithinBounds(t *testing.T) {
	space := Default().Space(model.FamilyGradientBoosting)
	require.NotEmpty(t, space)

	rng := rand.New(rand.NewSource(42))
	for _, p := range SampleParams(space, 50, rng) {
		n := p.Int("n_estimators", -1)
		assert.GreaterOrEqual(t, n, 50)
		assert.Less(t, n, 300)
		lr := p.Float("learning_rate", -1)
		assert.GreaterOrEqual(t, lr, 0.01)
		assert.Less(t, lr, 0.21)
	}

	a := SampleParams(space, 3, rand.New(rand.NewSource(1)))
	b := SampleParams(space, 3, rand.New(rand.NewSource(1)))
	assert.Equal(t, a, b)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
	for _, f := range model.Families() {
		assert.NotEmpty(t, Default().Space(f), f)
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeYAML(t, `
search:
  iterations: 4
  folds: 3
  seed: 1
  scoring: roc_auc
  test_size: 0.25
families:
  - family: LogisticRegression
    params:
      - {name: C, kind: uniform, low: 0.1, high: 2}
  - family: RandomForest
    params: []
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Search.Iterations)
	assert.Len(t, cfg.Space(model.FamilyLogisticRegression), 1)
	assert.Empty(t, cfg.Space(model.FamilyRandomForest))
	assert.Nil(t, cfg.Space(model.FamilyNewtonBoost))
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeYAML(t, `
search:
  iterations: 4
  folds: 3
  scoring: roc_auc
  test_size: 0.2
  foldz: 5
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"iterations", func(c *Config) { c.Search.Iterations = 0 }, "search.iterations"},
		{"folds", func(c *Config) { c.Search.Folds = 1 }, "search.folds"},
		{"scoring", func(c *Config) { c.Search.Scoring = "accuracy" }, "search.scoring"},
		{"family spelling", func(c *Config) { c.Families[0].Family = "logisticregression" }, "families[0].family"},
		{"unknown family", func(c *Config) { c.Families[0].Family = "SVM" }, "families[0].family"},
		{"foreign param", func(c *Config) { c.Families[0].Params[0].Name = "num_leaves" }, "families[0].params[0].name"},
		{"bad bounds", func(c *Config) { c.Families[0].Params[0].High = 0 }, "families[0].params[0]"},
		{"fractional randint", func(c *Config) { c.Families[1].Params[0].Low = 1.5 }, "families[1].params[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			err := Validate(cfg)
			var ve ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHashStable(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	b, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other := Default()
	other.Search.Seed = 7
	c, err := Hash(other)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSearchPicksBestCandidate(t *testing.T) {
	X, y := model.Matrix(features.Engineer(testutil.SyntheticRecords(240, 3)))

	s := NewSearcher(SearchConfig{Iterations: 3, Folds: 3, Seed: 42, Scoring: "roc_auc", TestSize: 0.2}, 2, logger.Nop())
	space := []ParamSpec{uniform("C", 0.05, 5)}

	res, err := s.Search(context.Background(), model.FamilyLogisticRegression, space, X, y)
	require.NoError(t, err)
	assert.True(t, res.Searched)
	require.Len(t, res.Candidates, 3)
	for _, c := range res.Candidates {
		assert.LessOrEqual(t, c.MeanAUC, res.Best.MeanAUC)
		assert.Len(t, c.FoldAUCs, 3)
	}
	assert.Greater(t, res.Best.MeanAUC, 0.6)
}

func TestSearchEmptySpaceUsesDefaults(t *testing.T) {
	X, y := model.Matrix(features.Engineer(testutil.SyntheticRecords(60, 3)))
	s := NewSearcher(Default().Search, 1, logger.Nop())

	res, err := s.Search(context.Background(), model.FamilyRandomForest, nil, X, y)
	require.NoError(t, err)
	assert.False(t, res.Searched)
	assert.Empty(t, res.Best.Params)
	assert.True(t, math.IsNaN(res.Best.MeanAUC))
}

func TestSearchAllCandidatesFail(t *testing.T) {
	X, y := model.Matrix(features.Engineer(testutil.SyntheticRecords(60, 3)))
	s := NewSearcher(SearchConfig{Iterations: 2, Folds: 2, Seed: 1, Scoring: "roc_auc", TestSize: 0.2}, 1, logger.Nop())
	space := []ParamSpec{{Name: "solver", Kind: KindChoice, Values: []string{"newton"}}}

	_, err := s.Search(context.Background(), model.FamilyLogisticRegression, space, X, y)
	assert.ErrorIs(t, err, ErrNoViableCandidate)
}

func TestSearchCancelled(t *testing.T) {
	X, y := model.Matrix(features.Engineer(testutil.SyntheticRecords(60, 3)))
	s := NewSearcher(Default().Search, 1, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, model.FamilyLogisticRegression, Default().Space(model.FamilyLogisticRegression), X, y)
	assert.ErrorIs(t, err, context.Canceled)
}
