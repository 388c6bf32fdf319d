package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate <csv>",
	Short: "Check a prepared batch against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, log, err := bootstrap()
	if err != nil {
		return err
	}

	rows, err := pipeline.ValidateFile(cmd.Context(), dataset.New(log), args[0])
	if err != nil {
		log.WithError(err).WithField("path", args[0]).Error("Validation failed")
		return err
	}

	PrintSuccess(fmt.Sprintf("%s: %d rows passed validation", args[0], rows))
	return nil
}
