package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mirvm/internal/driver"
	"mirvm/internal/ui"
)

var batchCmd = &cobra.Command{
	Use:   "batch [flags] [sample|file.mp]...",
	Short: "Evaluate many programs in parallel",
	Long:  `Evaluate the given programs, or every built-in sample, concurrently and summarize the outcomes`,
	RunE:  runBatch,
}

func init() {
	addProgressFlag(batchCmd)
	batchCmd.Flags().String("report", "", "write a YAML report to this file")
	batchCmd.Flags().Int("jobs", 0, "evaluations run at once (0 keeps the configured value)")
}

type batchOutcome struct {
	results []*driver.Result
	err     error
	bug     any
}

func runBatch(cmd *cobra.Command, args []string) error {
	settings, opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("jobs"); n > 0 {
		opts.Jobs = n
	}
	reportPath, err := cmd.Flags().GetString("report")
	if err != nil {
		return err
	}

	jobs := driver.AllSamples()
	if len(args) > 0 {
		if jobs, err = driver.LoadJobs(args); err != nil {
			return err
		}
	}
	cleanup, err := setupTracing(cmd, settings.TraceLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	withUI, err := useProgressUI(cmd, len(jobs))
	if err != nil {
		return err
	}
	var results []*driver.Result
	if withUI {
		results, err = runBatchWithUI(cmd.Context(), jobs, opts)
	} else {
		results, err = driver.EvaluateAll(cmd.Context(), jobs, opts)
	}
	if err != nil {
		return err
	}

	quiet := boolFlag(cmd, "quiet")
	timings := boolFlag(cmd, "timings")
	report := driver.NewReport(results, opts)
	for _, res := range results {
		if res == nil {
			continue
		}
		printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, quiet)
		if timings {
			printTimings(cmd.ErrOrStderr(), res)
		}
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), counts.Sprintf("%d passed, %d failed, %d steps",
			report.Summary.Passed, report.Summary.Failed, report.Summary.Steps))
	}
	if reportPath != "" {
		if err := report.WriteFile(reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if report.Summary.Failed > 0 {
		return errFailed
	}
	return nil
}

// runBatchWithUI evaluates jobs while the progress model renders their events.
func runBatchWithUI(ctx context.Context, jobs []driver.Job, opts driver.Options) ([]*driver.Result, error) {
	events := make(chan driver.JobEvent, 2*len(jobs))
	outcomeCh := make(chan batchOutcome, 1)
	opts.Observer = func(ev driver.JobEvent) { events <- ev }

	go func() {
		var out batchOutcome
		defer func() {
			out.bug = recover()
			close(events)
			outcomeCh <- out
		}()
		out.results, out.err = driver.EvaluateAll(ctx, jobs, opts)
	}()

	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name
	}
	program := tea.NewProgram(ui.NewProgressModel("mirvm batch", names, events), tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if outcome.bug != nil {
		panic(outcome.bug)
	}
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
