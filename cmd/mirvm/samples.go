package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mirvm/internal/samples"
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List the built-in sample programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, s := range samples.All() {
			want := fmt.Sprint(s.Want.Value)
			if s.Want.Code != 0 {
				want = s.Want.Code.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, want, s.Summary)
		}
		return w.Flush()
	},
}
