// Package tuning holds per-family hyperparameter spaces and the randomized
// cross-validated search over them.
package tuning

import (
	"math/rand"

	"github.com/wonny/creditpd/internal/model"
)

// Distribution kinds
const (
	KindUniform = "uniform" // float in [low, high)
	KindRandInt = "randint" // int in [low, high)
	KindChoice  = "choice"  // one of values
)

// Config is the search configuration plus every family's space
// ⭐ SSOT: 하이퍼파라미터 탐색 공간은 여기서만 정의
type Config struct {
	Search   SearchConfig  `yaml:"search" json:"search"`
	Families []FamilySpace `yaml:"families" json:"families"`
}

// SearchConfig controls randomized search
type SearchConfig struct {
	Iterations int     `yaml:"iterations" json:"iterations"`
	Folds      int     `yaml:"folds" json:"folds"`
	Seed       int64   `yaml:"seed" json:"seed"`
	Scoring    string  `yaml:"scoring" json:"scoring"`     // roc_auc
	TestSize   float64 `yaml:"test_size" json:"test_size"` // hold-out fraction
}

// FamilySpace is the space of one classifier family.
// Params keep file order so sampling is reproducible for a seed.
type FamilySpace struct {
	Family string      `yaml:"family" json:"family"`
	Params []ParamSpec `yaml:"params" json:"params"`
}

// ParamSpec is one sampled hyperparameter
type ParamSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Kind   string   `yaml:"kind" json:"kind"`
	Low    float64  `yaml:"low,omitempty" json:"low,omitempty"`
	High   float64  `yaml:"high,omitempty" json:"high,omitempty"`
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// Sample draws one value
func (p ParamSpec) Sample(rng *rand.Rand) any {
	switch p.Kind {
	case KindUniform:
		return p.Low + rng.Float64()*(p.High-p.Low)
	case KindRandInt:
		lo, hi := int(p.Low), int(p.High)
		return lo + rng.Intn(hi-lo)
	default:
		return p.Values[rng.Intn(len(p.Values))]
	}
}

// Space returns the params of family, or nil when it has no space
func (c *Config) Space(family model.Family) []ParamSpec {
	for _, fs := range c.Families {
		if fs.Family == string(family) {
			return fs.Params
		}
	}
	return nil
}

// SampleParams draws n parameter sets for space from rng
func SampleParams(space []ParamSpec, n int, rng *rand.Rand) []model.Params {
	out := make([]model.Params, n)
	for i := range out {
		params := make(model.Params, len(space))
		for _, spec := range space {
			params[spec.Name] = spec.Sample(rng)
		}
		out[i] = params
	}
	return out
}

func uniform(name string, low, high float64) ParamSpec {
	return ParamSpec{Name: name, Kind: KindUniform, Low: low, High: high}
}

func randInt(name string, low, high int) ParamSpec {
	return ParamSpec{Name: name, Kind: KindRandInt, Low: float64(low), High: float64(high)}
}

// Default returns the built-in search: 10 configurations, 3 folds, seed 42
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Iterations: 10,
			Folds:      3,
			Seed:       42,
			Scoring:    "roc_auc",
			TestSize:   0.2,
		},
		Families: []FamilySpace{
			{
				Family: string(model.FamilyLogisticRegression),
				Params: []ParamSpec{
					uniform("C", 0.01, 10.01),
					{Name: "solver", Kind: KindChoice, Values: []string{"lbfgs", "cg"}},
				},
			},
			{
				Family: string(model.FamilyRandomForest),
				Params: []ParamSpec{
					randInt("n_estimators", 50, 300),
					randInt("max_depth", 3, 10),
					randInt("min_samples_split", 2, 10),
					randInt("min_samples_leaf", 1, 5),
				},
			},
			{
				Family: string(model.FamilyGradientBoosting),
				Params: []ParamSpec{
					randInt("n_estimators", 50, 300),
					randInt("max_depth", 2, 6),
					uniform("learning_rate", 0.01, 0.21),
					uniform("subsample", 0.7, 1.0),
				},
			},
			{
				Family: string(model.FamilyNewtonBoost),
				Params: []ParamSpec{
					randInt("n_estimators", 100, 400),
					randInt("max_depth", 3, 8),
					uniform("learning_rate", 0.01, 0.21),
					uniform("subsample", 0.7, 1.0),
					uniform("colsample_bytree", 0.6, 1.0),
				},
			},
			{
				Family: string(model.FamilyLeafWiseBoost),
				Params: []ParamSpec{
					randInt("n_estimators", 100, 400),
					randInt("num_leaves", 20, 50),
					randInt("max_depth", 3, 8),
					uniform("learning_rate", 0.01, 0.21),
					uniform("subsample", 0.7, 1.0),
				},
			},
		},
	}
}
