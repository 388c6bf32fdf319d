package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/pkg/logger"
	"github.com/wonny/creditpd/pkg/stats"
)

// ErrNoViableCandidate is returned when every sampled configuration failed
var ErrNoViableCandidate = errors.New("no candidate could be scored")

// Candidate is one sampled configuration and its CV scores
type Candidate struct {
	Params   model.Params
	FoldAUCs []float64
	MeanAUC  float64 // NaN when any fold failed
}

// Result of one family's search
type Result struct {
	Family     model.Family
	Best       Candidate
	Candidates []Candidate
	Searched   bool // false when the family had no space
	Duration   time.Duration
}

// Searcher runs randomized search with stratified k-fold CV
type Searcher struct {
	cfg     SearchConfig
	workers int
	log     *logger.Logger
}

// NewSearcher creates a Searcher. workers <= 0 uses GOMAXPROCS.
func NewSearcher(cfg SearchConfig, workers int, log *logger.Logger) *Searcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Searcher{cfg: cfg, workers: workers, log: log.Component("tuning")}
}

// Search scores Iterations sampled configurations of space by mean fold
// ROC-AUC and returns the best. An empty space is not searched: the best
// candidate carries empty params (family defaults).
func (s *Searcher) Search(ctx context.Context, family model.Family, space []ParamSpec, X mat.Matrix, y []float64) (*Result, error) {
	start := time.Now()
	res := &Result{Family: family}
	if len(space) == 0 {
		res.Best = Candidate{Params: model.Params{}, MeanAUC: math.NaN()}
		return res, nil
	}
	res.Searched = true

	folds, err := StratifiedKFold(y, s.cfg.Folds, s.cfg.Seed)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	sampled := SampleParams(space, s.cfg.Iterations, rng)

	type split struct {
		Xt, Xv *mat.Dense
		yt, yv []float64
	}
	splits := make([]split, len(folds))
	for k, f := range folds {
		splits[k].Xt, splits[k].yt = Rows(X, y, f.Train)
		splits[k].Xv, splits[k].yv = Rows(X, y, f.Valid)
	}

	scores := make([][]float64, len(sampled))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for c := range sampled {
		for k := range splits {
			c, k := c, k
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				auc, err := scoreFold(family, sampled[c], s.cfg.Seed, splits[k].Xt, splits[k].yt, splits[k].Xv, splits[k].yv)
				if err != nil {
					// a failing configuration scores NaN, the search goes on
					s.log.WithError(err).WithFields(map[string]interface{}{
						"family":    family,
						"candidate": c,
						"fold":      k,
					}).Warn("Fold failed")
					auc = math.NaN()
				}
				scores[c][k] = auc
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	bestIdx := -1
	res.Candidates = make([]Candidate, len(sampled))
	for c, params := range sampled {
		mean := stats.Mean(scores[c])
		res.Candidates[c] = Candidate{Params: params, FoldAUCs: scores[c], MeanAUC: mean}
		if math.IsNaN(mean) {
			continue
		}
		if bestIdx < 0 || mean > res.Candidates[bestIdx].MeanAUC {
			bestIdx = c
		}
	}
	if bestIdx < 0 {
		return nil, fmt.Errorf("%s: %w", family, ErrNoViableCandidate)
	}
	res.Best = res.Candidates[bestIdx]
	res.Duration = time.Since(start)

	s.log.WithFields(map[string]interface{}{
		"family":     family,
		"candidates": len(sampled),
		"folds":      len(folds),
		"best_auc":   res.Best.MeanAUC,
		"elapsed":    res.Duration.String(),
	}).Info("Search finished")

	return res, nil
}

func scoreFold(family model.Family, params model.Params, seed int64, Xt *mat.Dense, yt []float64, Xv *mat.Dense, yv []float64) (float64, error) {
	p, err := model.NewPipeline(family, params, seed)
	if err != nil {
		return 0, err
	}
	if err := p.Fit(Xt, yt); err != nil {
		return 0, err
	}
	proba, err := p.PredictProba(Xv)
	if err != nil {
		return 0, err
	}
	return model.ROCAUC(yv, proba)
}
