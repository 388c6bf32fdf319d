package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/tracking"
)

var runsCmd = &cobra.Command{
	Use:   "runs [experiment]",
	Short: "List tracked training runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	experiment := cfg.Tracking.Experiment
	if len(args) == 1 {
		experiment = args[0]
	}

	tracker, err := tracking.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer tracker.Close()

	runs, err := tracker.ListRuns(cmd.Context(), experiment)
	if err != nil {
		return err
	}

	PrintHeader("Runs: " + experiment)
	if len(runs) == 0 {
		PrintWarning("No runs recorded")
		return nil
	}

	widths := []int{36, 20, 9, 8, 19}
	PrintTableHeader([]string{"Run ID", "Name", "Status", "AUC", "Started"}, widths)
	for _, r := range runs {
		auc, ok := r.Metrics["roc_auc"]
		score := "-"
		if ok {
			score = formatScore(auc)
		}
		PrintTableRow([]string{r.ID, r.Name, r.Status, score, r.StartTime.Local().Format("2006-01-02 15:04:05")}, widths)
	}
	return nil
}
