package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features <input_csv> <output_csv>",
	Short: "Derive the engineered features",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	_, log, err := bootstrap()
	if err != nil {
		return err
	}

	res, err := features.NewBuilder(dataset.New(log), log).Run(cmd.Context(), args[0], args[1])
	if err != nil {
		log.WithError(err).Error("Feature engineering failed")
		return err
	}

	PrintHeader("Features")
	PrintKeyValue("Rows", fmt.Sprintf("%d", res.Rows), 16)
	PrintKeyValue("Unbinned ages", fmt.Sprintf("%d", res.MissingBins), 16)
	PrintKeyValue("Zero-bill rows", fmt.Sprintf("%d", res.ZeroBillRows), 16)
	PrintSeparator()
	PrintSuccess(fmt.Sprintf("Features saved to %s", args[1]))
	return nil
}
