// Package jobs holds the scheduled jobs of the credit pipeline.
package jobs

import (
	"context"

	"github.com/wonny/creditpd/internal/pipeline"
	"github.com/wonny/creditpd/pkg/logger"
)

// RetrainJob reruns the full pipeline on the raw batch and, on success,
// calls the publish hook (a serving reload when running in-process)
type RetrainJob struct {
	orchestrator *pipeline.Orchestrator
	config       pipeline.RunConfig
	schedule     string
	publish      func(ctx context.Context) error
	logger       *logger.Logger
}

// NewRetrainJob creates a retrain job. publish may be nil.
func NewRetrainJob(o *pipeline.Orchestrator, cfg pipeline.RunConfig, schedule string, publish func(ctx context.Context) error, log *logger.Logger) *RetrainJob {
	return &RetrainJob{
		orchestrator: o,
		config:       cfg,
		schedule:     schedule,
		publish:      publish,
		logger:       log.Component("jobs"),
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "retrain"
}

// Schedule returns the cron schedule (RETRAIN_SCHEDULE)
func (j *RetrainJob) Schedule() string {
	return j.schedule
}

// Run executes the pipeline
func (j *RetrainJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled retrain")

	res, err := j.orchestrator.Run(ctx, j.config)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"run_id": res.RunID,
		"stages": res.CompletedStages,
	}
	if res.Training != nil {
		fields["best"] = res.Training.Best
		fields["roc_auc"] = res.Training.BestAUC
	}
	j.logger.WithFields(fields).Info("Retrain completed")

	if j.publish != nil {
		return j.publish(ctx)
	}
	return nil
}
