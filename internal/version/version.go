package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Build information for the mirvm CLI. The variables can be overridden at
// build time via -ldflags "-X mirvm/internal/version.GitCommit=...".
var (
	Major = "0"
	Minor = "3"
	Patch = "0"
	Label = "dev"

	// GitCommit is an optional commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Plain is the semantic version without colors, e.g. "0.3.0-dev".
func Plain() string {
	v := Major + "." + Minor + "." + Patch
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Colored renders the version with one color per component. Colors follow
// color.NoColor, so the result equals Plain when output is not a terminal.
func Colored() string {
	v := majorColor.Sprint(Major) + "." + minorColor.Sprint(Minor) + "." + patchColor.Sprint(Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Banner is the full "mirvm <version> (<commit>, <date>)" line.
func Banner(colored bool) string {
	v := Plain()
	if colored {
		v = Colored()
	}
	var extra []string
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		extra = append(extra, commit)
	}
	if BuildDate != "" {
		extra = append(extra, BuildDate)
	}
	if len(extra) == 0 {
		return fmt.Sprintf("mirvm %s", v)
	}
	return fmt.Sprintf("mirvm %s (%s)", v, strings.Join(extra, ", "))
}
