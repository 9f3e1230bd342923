package main

import (
	"github.com/spf13/cobra"

	"mirvm/internal/driver"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <sample|file.mp>...",
	Short: "Evaluate programs and print their results",
	Long:  `Evaluate built-in samples or IR bundles one after the other, printing the returned value or the detected failure`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExecution,
}

func runExecution(cmd *cobra.Command, args []string) error {
	settings, opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	jobs, err := driver.LoadJobs(args)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, settings.TraceLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	quiet := boolFlag(cmd, "quiet")
	timings := boolFlag(cmd, "timings")
	failed := false
	for _, job := range jobs {
		res, err := driver.Evaluate(cmd.Context(), job, opts)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, quiet)
		if timings {
			printTimings(cmd.ErrOrStderr(), res)
		}
		failed = failed || !res.OK()
	}
	if failed {
		return errFailed
	}
	return nil
}
