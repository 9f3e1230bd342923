package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mirvm/internal/fault"
	"mirvm/internal/version"
)

// errFailed is returned by commands whose evaluations failed after the
// failures have already been reported.
var errFailed = errors.New("evaluation failed")

// stopProfiling is replaced by the profiler cleanup once profiling started.
var stopProfiling = func() {}

var rootCmd = &cobra.Command{
	Use:           "mirvm",
	Short:         "Step-by-step interpreter for a mid-level IR",
	Long:          `mirvm executes IR programs one statement at a time, detecting undefined behaviour and reporting it with source locations`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		if err := applyColorMode(mode); err != nil {
			return err
		}
		stop, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		stopProfiling = stop
		return nil
	},
}

func init() {
	rootCmd.Version = version.Plain()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(samplesCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("config", "", "path to mirvm.toml (default: search from the working directory)")
	flags.String("machine", "", "machine personality (const-eval|checker)")
	flags.String("target", "", "target triple")
	flags.Uint64("steps", 0, "host step budget per program (0 keeps the configured value)")
	flags.Duration("timeout", 0, "wall time budget per program (0 keeps the configured value)")

	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")

	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.Int("trace-ring-size", 4096, "events kept in ring mode")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval")
}

func main() {
	os.Exit(execute())
}

// execute runs the root command. An interpreter bug is reported and mapped
// to exit status 101.
func execute() (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		bug, ok := fault.AsBug(r)
		if !ok {
			panic(r)
		}
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, bug.Error())
		fmt.Fprintln(os.Stderr, "this is a bug in mirvm or in the program's IR")
		code = 101
	}()
	defer func() { stopProfiling() }()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func applyColorMode(mode string) error {
	switch mode {
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout) || os.Getenv("NO_COLOR") != ""
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
