// Package pipeline runs the batch stages end to end:
// prepare → validate → features → train.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/features"
	"github.com/wonny/creditpd/internal/prepare"
	"github.com/wonny/creditpd/internal/training"
	"github.com/wonny/creditpd/internal/validation"
	"github.com/wonny/creditpd/pkg/logger"
)

// Stage names, in run order
const (
	StagePrepare  = "prepare"
	StageValidate = "validate"
	StageFeatures = "features"
	StageTrain    = "train"
)

// Orchestrator coordinates the batch stages
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	codec    *dataset.Codec
	preparer *prepare.Preparer
	builder  *features.Builder
	trainer  *training.Trainer
	logger   *logger.Logger
}

// RunConfig holds the file locations of one run
type RunConfig struct {
	RawPath      string
	PreparedPath string
	FeaturedPath string
	SkipTraining bool
}

// RunResult holds the results of a pipeline run
type RunResult struct {
	RunID           string
	CompletedStages []string
	Prepare         *prepare.Result
	ValidatedRows   int
	Features        *features.Result
	Training        *training.Report
	Duration        time.Duration
}

// NewOrchestrator creates an orchestrator. trainer may be nil when runs
// always skip training.
func NewOrchestrator(codec *dataset.Codec, trainer *training.Trainer, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		codec:    codec,
		preparer: prepare.NewPreparer(codec, log),
		builder:  features.NewBuilder(codec, log),
		trainer:  trainer,
		logger:   log.Component("pipeline"),
	}
}

// Run executes every stage, stopping at the first failure. The prepared
// batch is validated before features are built from it.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.NewString()}
	log := o.logger.WithField("run_id", result.RunID)

	log.WithFields(map[string]interface{}{
		"raw":      cfg.RawPath,
		"prepared": cfg.PreparedPath,
		"featured": cfg.FeaturedPath,
	}).Info("Starting pipeline run")

	prepared, err := o.preparer.Run(ctx, cfg.RawPath, cfg.PreparedPath)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", StagePrepare, err)
	}
	result.Prepare = prepared
	result.CompletedStages = append(result.CompletedStages, StagePrepare)

	rows, err := ValidateFile(ctx, o.codec, cfg.PreparedPath)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", StageValidate, err)
	}
	result.ValidatedRows = rows
	result.CompletedStages = append(result.CompletedStages, StageValidate)

	featured, err := o.builder.Run(ctx, cfg.PreparedPath, cfg.FeaturedPath)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", StageFeatures, err)
	}
	result.Features = featured
	result.CompletedStages = append(result.CompletedStages, StageFeatures)

	if cfg.SkipTraining || o.trainer == nil {
		log.Info("Skipping training")
	} else {
		report, err := o.trainer.Run(ctx, cfg.FeaturedPath)
		if err != nil {
			return result, fmt.Errorf("%s failed: %w", StageTrain, err)
		}
		result.Training = report
		result.CompletedStages = append(result.CompletedStages, StageTrain)
	}

	result.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"stages":   result.CompletedStages,
		"duration": result.Duration.String(),
	}).Info("Pipeline run completed")

	return result, nil
}

// ValidateFile reads a raw-schema CSV and validates it, returning the row count
func ValidateFile(ctx context.Context, codec *dataset.Codec, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	records, err := codec.ReadRawFile(path)
	if err != nil {
		return 0, fmt.Errorf("load batch: %w", err)
	}
	if _, err := validation.Validate(records); err != nil {
		return 0, err
	}
	return len(records), nil
}
