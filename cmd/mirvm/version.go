package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mirvm/internal/layout"
	"mirvm/internal/version"
)

type versionPayload struct {
	Tool      string   `json:"tool"`
	Version   string   `json:"version"`
	GitCommit string   `json:"git_commit,omitempty"`
	BuildDate string   `json:"build_date,omitempty"`
	Targets   []string `json:"targets"`
}

var versionFormat string

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show mirvm build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(versionFormat) {
		case "pretty":
			renderVersionPretty(cmd.OutOrStdout())
			return nil
		case "json":
			return renderVersionJSON(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

func targetTriples() []string {
	var triples []string
	for _, t := range layout.Targets() {
		triples = append(triples, t.Triple)
	}
	return triples
}

func renderVersionPretty(out io.Writer) {
	fmt.Fprintln(out, version.Banner(true))
	fmt.Fprintf(out, "targets: %s\n", strings.Join(targetTriples(), ", "))
}

func renderVersionJSON(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(versionPayload{
		Tool:      "mirvm",
		Version:   version.Plain(),
		GitCommit: version.GitCommit,
		BuildDate: version.BuildDate,
		Targets:   targetTriples(),
	})
}
