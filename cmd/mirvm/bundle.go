package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mirvm/internal/bundle"
	"mirvm/internal/driver"
	"mirvm/internal/mir"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle [flags] [sample]...",
	Short: "Write built-in samples as IR bundles",
	Long:  `Encode the named samples, or all of them, into ` + bundle.Ext + ` files that run, debug and batch accept`,
	RunE:  runBundle,
}

func init() {
	bundleCmd.Flags().StringP("out", "o", ".", "output directory")
}

func runBundle(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	jobs := driver.AllSamples()
	if len(args) > 0 {
		if jobs, err = driver.LoadJobs(args); err != nil {
			return err
		}
	}
	quiet := boolFlag(cmd, "quiet")
	for _, job := range jobs {
		if err := mir.Validate(job.Prog); err != nil {
			return fmt.Errorf("%s: %w", job.Name, err)
		}
		path := filepath.Join(dir, job.Name+bundle.Ext)
		if err := bundle.WriteFile(path, job.Prog); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
	}
	return nil
}
