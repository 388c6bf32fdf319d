// Package training tunes, evaluates, tracks and persists every classifier
// family on a feature batch.
package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/internal/tracking"
	"github.com/wonny/creditpd/internal/tuning"
	"github.com/wonny/creditpd/pkg/logger"
)

// BestModelFile is the bundle of the family with the highest hold-out AUC
const BestModelFile = "best.gob"

// ErrNoLabels is returned when no row carries a default label
var ErrNoLabels = errors.New("no labelled rows")

// Options configure a Trainer
type Options struct {
	Experiment   string
	ModelsDir    string
	ArtifactsDir string
	Workers      int            // CV fan-out, 0 → GOMAXPROCS
	Families     []model.Family // nil → all
}

// FamilyResult is the outcome of one family
type FamilyResult struct {
	Family    model.Family
	Params    model.Params
	Searched  bool
	CVAUC     float64 // NaN when not searched
	Metrics   model.Metrics
	RunID     string
	ModelPath string
	ROCPath   string // empty when the curve was skipped
	Duration  time.Duration
}

// Report summarizes a training run over all families
type Report struct {
	Rows       int
	TrainRows  int
	TestRows   int
	SpacesHash string
	Results    []FamilyResult
	Best       model.Family // empty when no family has a hold-out AUC
	BestAUC    float64
	BestPath   string
}

// Trainer runs the per-family search → evaluate → track → persist loop
type Trainer struct {
	codec   *dataset.Codec
	tracker tracking.Tracker
	spaces  *tuning.Config
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

// NewTrainer creates a Trainer
func NewTrainer(codec *dataset.Codec, tracker tracking.Tracker, spaces *tuning.Config, opts Options, log *logger.Logger) *Trainer {
	if len(opts.Families) == 0 {
		opts.Families = model.Families()
	}
	return &Trainer{
		codec:   codec,
		tracker: tracker,
		spaces:  spaces,
		opts:    opts,
		log:     log.Component("training"),
		now:     time.Now,
	}
}

// Run trains on the feature CSV at path
func (t *Trainer) Run(ctx context.Context, path string) (*Report, error) {
	records, err := t.codec.ReadFeaturesFile(path)
	if err != nil {
		return nil, fmt.Errorf("load feature batch: %w", err)
	}
	return t.Train(ctx, records)
}

// holdout is the stratified train/test partition shared by every family
type holdout struct {
	Xtr, Xte *mat.Dense
	ytr, yte []float64
}

// Train splits records 80/20 (stratified), then for each family searches
// its space on the train split, refits the best configuration, scores it
// on the hold-out split, records a tracked run and saves the bundle.
func (t *Trainer) Train(ctx context.Context, records []contracts.FeatureRecord) (*Report, error) {
	labelled := make([]contracts.FeatureRecord, 0, len(records))
	for i := range records {
		if !records[i].Missing.Has(contracts.ColDefault) {
			labelled = append(labelled, records[i])
		}
	}
	if dropped := len(records) - len(labelled); dropped > 0 {
		t.log.WithField("rows", dropped).Warn("Dropping rows without a label")
	}
	if len(labelled) == 0 {
		return nil, ErrNoLabels
	}

	X, y := model.Matrix(labelled)
	search := t.spaces.Search
	trainIdx, testIdx, err := tuning.StratifiedSplit(y, search.TestSize, search.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	var split holdout
	split.Xtr, split.ytr = tuning.Rows(X, y, trainIdx)
	split.Xte, split.yte = tuning.Rows(X, y, testIdx)

	hash, err := tuning.Hash(t.spaces)
	if err != nil {
		return nil, fmt.Errorf("hash param spaces: %w", err)
	}

	report := &Report{
		Rows:       len(labelled),
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
		SpacesHash: hash,
		BestAUC:    math.NaN(),
	}
	t.log.WithFields(map[string]interface{}{
		"rows":        report.Rows,
		"train":       report.TrainRows,
		"test":        report.TestRows,
		"families":    len(t.opts.Families),
		"spaces_hash": hash,
	}).Info("Training started")

	searcher := tuning.NewSearcher(search, t.opts.Workers, t.log)
	for _, family := range t.opts.Families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := t.trainFamily(ctx, searcher, family, hash, &split)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", family, err)
		}
		report.Results = append(report.Results, *res)

		auc := res.Metrics.ROCAUC
		if !math.IsNaN(auc) && (report.Best == "" || auc > report.BestAUC) {
			report.Best = family
			report.BestAUC = auc
			report.BestPath = res.ModelPath
		}
	}

	if report.Best == "" {
		t.log.Warn("No family produced a hold-out AUC, best model not selected")
		return report, nil
	}

	bestPath := filepath.Join(t.opts.ModelsDir, BestModelFile)
	if err := copyFile(report.BestPath, bestPath); err != nil {
		return nil, fmt.Errorf("copy best model: %w", err)
	}
	report.BestPath = bestPath

	t.log.WithFields(map[string]interface{}{
		"best":    report.Best,
		"roc_auc": report.BestAUC,
		"path":    bestPath,
	}).Info("Best model selected")

	return report, nil
}

// trainFamily owns one tracked run. The run ends FAILED on any error.
func (t *Trainer) trainFamily(ctx context.Context, searcher *tuning.Searcher, family model.Family, hash string, split *holdout) (res *FamilyResult, err error) {
	start := t.now()
	log := t.log.WithField("family", family)

	run, err := t.tracker.StartRun(ctx, t.opts.Experiment, string(family))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	defer func() {
		status := tracking.StatusFinished
		if err != nil {
			status = tracking.StatusFailed
		}
		if endErr := run.End(context.WithoutCancel(ctx), status); endErr != nil && err == nil {
			err = fmt.Errorf("end run: %w", endErr)
		}
	}()

	found, err := searcher.Search(ctx, family, t.spaces.Space(family), split.Xtr, split.ytr)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if !found.Searched {
		log.Info("No parameter space, fitting defaults")
	}

	pipe, err := model.NewPipeline(family, found.Best.Params, t.spaces.Search.Seed)
	if err != nil {
		return nil, err
	}
	if err := pipe.Fit(split.Xtr, split.ytr); err != nil {
		return nil, err
	}

	res = &FamilyResult{
		Family:   family,
		Params:   found.Best.Params,
		Searched: found.Searched,
		CVAUC:    found.Best.MeanAUC,
		RunID:    run.ID(),
	}

	res.Metrics, err = pipe.Evaluate(split.Xte, split.yte)
	switch {
	case errors.Is(err, model.ErrNoProba), errors.Is(err, model.ErrSingleClass):
		log.WithError(err).Warn("Hold-out AUC undefined")
		res.Metrics.ROCAUC = math.NaN()
		err = nil
	case err != nil:
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	params := found.Best.Params.Strings()
	params["family"] = string(family)
	params["spaces_hash"] = hash
	params["searched"] = strconv.FormatBool(found.Searched)
	if err := run.LogParams(ctx, params); err != nil {
		return nil, fmt.Errorf("log params: %w", err)
	}

	metrics := res.Metrics.Map()
	if found.Searched {
		metrics["cv_roc_auc"] = found.Best.MeanAUC
	}
	if err := run.LogMetrics(ctx, metrics); err != nil {
		return nil, fmt.Errorf("log metrics: %w", err)
	}

	res.ROCPath = t.rocArtifact(ctx, run, pipe, family, split, log)

	res.ModelPath = filepath.Join(t.opts.ModelsDir, ModelFile(family))
	bundle := &model.Bundle{
		Pipeline:  pipe,
		Metrics:   res.Metrics,
		TrainedAt: t.now().UTC(),
		RunID:     run.ID(),
	}
	if err := bundle.Save(res.ModelPath); err != nil {
		return nil, err
	}
	if err := run.LogArtifact(ctx, res.ModelPath, ModelFile(family)); err != nil {
		return nil, fmt.Errorf("log model: %w", err)
	}

	res.Duration = t.now().Sub(start)
	log.WithFields(map[string]interface{}{
		"roc_auc":   res.Metrics.ROCAUC,
		"precision": res.Metrics.Precision,
		"recall":    res.Metrics.Recall,
		"f1":        res.Metrics.F1,
		"run_id":    res.RunID,
		"elapsed":   res.Duration.String(),
	}).Info("Family trained")

	return res, nil
}

// rocArtifact plots the hold-out ROC curve and attaches it to run. A curve
// that cannot be drawn is skipped with a warning; it never fails the run.
func (t *Trainer) rocArtifact(ctx context.Context, run tracking.Run, pipe *model.Pipeline, family model.Family, split *holdout, log *logger.Logger) string {
	proba, err := pipe.PredictProba(split.Xte)
	if err != nil {
		log.WithError(err).Warn("Skipping ROC curve")
		return ""
	}
	name := fmt.Sprintf("roc_%s.png", family)
	path := filepath.Join(t.opts.ArtifactsDir, name)
	if err := SaveROC(path, family, split.yte, proba); err != nil {
		log.WithError(err).Warn("Skipping ROC curve")
		return ""
	}
	if err := run.LogArtifact(ctx, path, name); err != nil {
		log.WithError(err).Warn("ROC curve not tracked")
	}
	return path
}

// ModelFile is the per-family bundle name
func ModelFile(family model.Family) string {
	return strings.ToLower(string(family)) + "_best.gob"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// rename so a serving process never reads a half-written bundle
	return os.Rename(tmp, dst)
}
