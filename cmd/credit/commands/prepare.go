package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/prepare"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [input_csv output_csv]",
	Short: "Clean the raw client table",
	Long: `Remap sentinel codes, clip repayment statuses and drop exact duplicates.

Without arguments the RAW_DATA_PATH and PREPARED_DATA_PATH locations are used.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	in, out := cfg.Data.RawPath, cfg.Data.PreparedPath
	if len(args) == 2 {
		in, out = args[0], args[1]
	}

	res, err := prepare.NewPreparer(dataset.New(log), log).Run(cmd.Context(), in, out)
	if err != nil {
		log.WithError(err).Error("Prepare failed")
		return err
	}

	PrintHeader("Prepare")
	PrintKeyValue("Input", in, 12)
	PrintKeyValue("Output", out, 12)
	PrintKeyValue("Rows in", fmt.Sprintf("%d", res.InputRows), 12)
	PrintKeyValue("Rows out", fmt.Sprintf("%d", res.OutputRows), 12)
	PrintSeparator()
	PrintSuccess("Prepared data saved")
	return nil
}
