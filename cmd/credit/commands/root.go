package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/internal/tracking"
	"github.com/wonny/creditpd/internal/training"
	"github.com/wonny/creditpd/internal/tuning"
	"github.com/wonny/creditpd/pkg/config"
	"github.com/wonny/creditpd/pkg/logger"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "credit",
	Short: "Credit card default prediction pipeline",
	Long: `credit - credit card default prediction

Batch stages turn the raw client table into a trained model:
  prepare → validate → features → train
and serve answers predictions with the best model.

Usage:
  go run ./cmd/credit [command]

Examples:
  go run ./cmd/credit prepare
  go run ./cmd/credit validate data/processed/prepared.csv
  go run ./cmd/credit features data/processed/prepared.csv data/processed/featured.csv
  go run ./cmd/credit train data/processed/featured.csv
  go run ./cmd/credit serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// bootstrap loads config and builds the logger
func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

// searchConfig loads the param spaces. Without a spaces file the search
// settings come from the environment.
func searchConfig(cfg *config.Config) (*tuning.Config, error) {
	spaces, err := tuning.LoadOrDefault(cfg.Training.ParamSpacesPath)
	if err != nil {
		return nil, err
	}
	if cfg.Training.ParamSpacesPath == "" {
		spaces.Search.Iterations = cfg.Training.SearchIter
		spaces.Search.Folds = cfg.Training.CVFolds
		spaces.Search.Seed = cfg.Training.Seed
		spaces.Search.TestSize = cfg.Training.TestSize
	}
	return spaces, nil
}

// parseFamilies resolves family names; empty means all
func parseFamilies(names []string) ([]model.Family, error) {
	var out []model.Family
	for _, name := range names {
		f, err := model.ParseFamily(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// newTrainer wires the trainer and its tracking store. The caller closes
// the returned tracker.
func newTrainer(ctx context.Context, cfg *config.Config, log *logger.Logger, familyNames []string) (*training.Trainer, tracking.Tracker, error) {
	spaces, err := searchConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	families, err := parseFamilies(familyNames)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := tracking.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	trainer := training.NewTrainer(dataset.New(log), tracker, spaces, training.Options{
		Experiment:   cfg.Tracking.Experiment,
		ModelsDir:    cfg.Training.ModelsDir,
		ArtifactsDir: cfg.Training.ArtifactsDir,
		Workers:      cfg.Training.Workers,
		Families:     families,
	}, log)
	return trainer, tracker, nil
}
