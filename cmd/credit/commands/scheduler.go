package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/pipeline"
	"github.com/wonny/creditpd/internal/scheduler"
	"github.com/wonny/creditpd/internal/scheduler/jobs"
	"github.com/wonny/creditpd/internal/tracking"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run and inspect scheduled jobs",
	Long: `Start the scheduler or manage its jobs.

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - run a job now and wait for it
  status  - show job statistics

Example:
  go run ./cmd/credit scheduler start
  go run ./cmd/credit scheduler run retrain`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Start the scheduler and schedule every registered job.

Registered jobs:
- retrain: RETRAIN_SCHEDULE (default daily at 03:00), full pipeline run

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job statistics",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, tracker, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer tracker.Close()

	sched.Start()

	PrintSuccess("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, tracker, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer tracker.Close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	sched, tracker, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer tracker.Close()

	result, err := sched.RunJob(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(1e6)))
	return nil
}

// showStatus reports statistics of this process's scheduler. History is
// kept in memory, so a fresh process shows the schedule and next run.
func showStatus(cmd *cobra.Command, args []string) error {
	sched, tracker, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer tracker.Close()

	sched.Start()
	defer sched.Stop()

	fmt.Println("Job Statistics:")
	fmt.Println()

	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		if stat.NextRun != nil {
			fmt.Printf("   Next Run: %s\n", stat.NextRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

func initScheduler(cmd *cobra.Command) (*scheduler.Scheduler, tracking.Tracker, error) {
	// 1. Config and logger
	cfg, log, err := bootstrap()
	if err != nil {
		return nil, nil, err
	}

	// 2. Trainer and tracking store
	trainer, tracker, err := newTrainer(cmd.Context(), cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}

	// 3. Pipeline
	rc := pipeline.RunConfig{
		RawPath:      cfg.Data.RawPath,
		PreparedPath: cfg.Data.PreparedPath,
		FeaturedPath: cfg.Data.FeaturedPath,
	}
	orch := pipeline.NewOrchestrator(dataset.New(log), trainer, log)

	// 4. Scheduler and jobs
	sched := scheduler.New(log, scheduler.WithRetry(1, time.Minute))
	if err := sched.AddJob(jobs.NewRetrainJob(orch, rc, cfg.RetrainSchedule, nil, log)); err != nil {
		tracker.Close()
		return nil, nil, err
	}

	return sched, tracker, nil
}
