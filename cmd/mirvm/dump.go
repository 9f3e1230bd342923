package main

import (
	"github.com/spf13/cobra"

	"mirvm/internal/driver"
	"mirvm/internal/mir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <sample|file.mp>",
	Short: "Print the IR of a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := driver.LoadJob(args[0])
		if err != nil {
			return err
		}
		return mir.Dump(cmd.OutOrStdout(), job.Prog)
	},
}
