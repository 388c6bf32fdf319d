package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/training"
)

var (
	trainFamilies []string
	trainSpaces   string
)

var trainCmd = &cobra.Command{
	Use:   "train <featured_csv>",
	Short: "Tune, train and track every model family",
	Long: `Split the featured batch, run the hyperparameter search per family,
evaluate on the hold-out set and record every run in the tracking store.
The family with the highest hold-out ROC AUC is copied to models/best.gob.`,
	Example: `  go run ./cmd/credit train data/processed/featured.csv
  go run ./cmd/credit train data/processed/featured.csv --families LogisticRegression,RandomForest
  go run ./cmd/credit train data/processed/featured.csv --spaces config/param_spaces.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringSliceVar(&trainFamilies, "families", nil, "families to train (default all)")
	trainCmd.Flags().StringVar(&trainSpaces, "spaces", "", "param spaces YAML (overrides PARAM_SPACES_PATH)")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	if trainSpaces != "" {
		cfg.Training.ParamSpacesPath = trainSpaces
	}

	trainer, tracker, err := newTrainer(cmd.Context(), cfg, log, trainFamilies)
	if err != nil {
		return err
	}
	defer tracker.Close()

	report, err := trainer.Run(cmd.Context(), args[0])
	if err != nil {
		log.WithError(err).Error("Training failed")
		return err
	}

	printReport(report)
	return nil
}

func printReport(report *training.Report) {
	PrintHeader("Training")
	PrintKeyValue("Rows", fmt.Sprintf("%d (train %d / test %d)", report.Rows, report.TrainRows, report.TestRows), 12)
	PrintKeyValue("Spaces", report.SpacesHash, 12)
	fmt.Println()

	widths := []int{20, 8, 8, 10, 8, 8, 10}
	PrintTableHeader([]string{"Family", "CV AUC", "AUC", "Precision", "Recall", "F1", "Time"}, widths)
	for _, r := range report.Results {
		PrintTableRow([]string{
			string(r.Family),
			formatScore(r.CVAUC),
			formatScore(r.Metrics.ROCAUC),
			formatScore(r.Metrics.Precision),
			formatScore(r.Metrics.Recall),
			formatScore(r.Metrics.F1),
			r.Duration.Round(1e6).String(),
		}, widths)
	}
	PrintSeparator()

	if report.Best == "" {
		PrintWarning("No family produced a hold-out ROC AUC, best model not updated")
		return
	}
	PrintSuccess(fmt.Sprintf("Best: %s (ROC AUC %.4f) → %s", report.Best, report.BestAUC, report.BestPath))
}
