package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/pipeline"
	"github.com/wonny/creditpd/internal/training"
	"github.com/wonny/creditpd/pkg/config"
)

var (
	pipelineRaw       string
	pipelinePrepared  string
	pipelineFeatured  string
	pipelineSkipTrain bool
	pipelineFamilies  []string
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run prepare → validate → features → train",
	Example: `  go run ./cmd/credit pipeline
  go run ./cmd/credit pipeline --raw data/raw/UCI_Credit_Card.csv --skip-train`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	pipelineCmd.Flags().StringVar(&pipelineRaw, "raw", "", "raw CSV (default RAW_DATA_PATH)")
	pipelineCmd.Flags().StringVar(&pipelinePrepared, "prepared", "", "prepared CSV (default PREPARED_DATA_PATH)")
	pipelineCmd.Flags().StringVar(&pipelineFeatured, "featured", "", "featured CSV (default FEATURED_DATA_PATH)")
	pipelineCmd.Flags().BoolVar(&pipelineSkipTrain, "skip-train", false, "stop after feature engineering")
	pipelineCmd.Flags().StringSliceVar(&pipelineFamilies, "families", nil, "families to train (default all)")
	rootCmd.AddCommand(pipelineCmd)
}

// runConfig resolves stage paths, flags over config
func runConfig(cfg *config.Config) pipeline.RunConfig {
	rc := pipeline.RunConfig{
		RawPath:      cfg.Data.RawPath,
		PreparedPath: cfg.Data.PreparedPath,
		FeaturedPath: cfg.Data.FeaturedPath,
		SkipTraining: pipelineSkipTrain,
	}
	if pipelineRaw != "" {
		rc.RawPath = pipelineRaw
	}
	if pipelinePrepared != "" {
		rc.PreparedPath = pipelinePrepared
	}
	if pipelineFeatured != "" {
		rc.FeaturedPath = pipelineFeatured
	}
	return rc
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	rc := runConfig(cfg)

	var trainer *training.Trainer
	if !rc.SkipTraining {
		t, tracker, err := newTrainer(cmd.Context(), cfg, log, pipelineFamilies)
		if err != nil {
			return err
		}
		defer tracker.Close()
		trainer = t
	}

	res, err := pipeline.NewOrchestrator(dataset.New(log), trainer, log).Run(cmd.Context(), rc)
	if err != nil {
		log.WithError(err).WithField("completed", res.CompletedStages).Error("Pipeline failed")
		return err
	}

	PrintHeader("Pipeline " + res.RunID)
	PrintKeyValue("Stages", strings.Join(res.CompletedStages, " → "), 12)
	PrintKeyValue("Prepared", fmt.Sprintf("%d → %d rows", res.Prepare.InputRows, res.Prepare.OutputRows), 12)
	PrintKeyValue("Validated", fmt.Sprintf("%d rows", res.ValidatedRows), 12)
	PrintKeyValue("Featured", fmt.Sprintf("%d rows", res.Features.Rows), 12)
	PrintKeyValue("Duration", res.Duration.Round(1e6).String(), 12)
	if res.Training != nil {
		printReport(res.Training)
		return nil
	}
	PrintSeparator()
	PrintSuccess("Pipeline completed")
	return nil
}
