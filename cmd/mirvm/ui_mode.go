package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// progressUI selects how batch progress is shown.
type progressUI uint8

const (
	progressAuto progressUI = iota
	progressOn
	progressOff
)

var progressUINames = map[string]progressUI{
	"":     progressAuto,
	"auto": progressAuto,
	"on":   progressOn,
	"off":  progressOff,
}

func addProgressFlag(cmd *cobra.Command) {
	cmd.Flags().String("ui", "auto",
		"draw per-job batch progress in the terminal (auto|on|off); auto needs a terminal on stdout and no --quiet")
}

func parseProgressUI(value string) (progressUI, error) {
	mode, ok := progressUINames[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return progressAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
	return mode, nil
}

// useProgressUI resolves the --ui flag of cmd for a batch of jobs.
func useProgressUI(cmd *cobra.Command, jobs int) (bool, error) {
	value, err := cmd.Flags().GetString("ui")
	if err != nil {
		return false, err
	}
	mode, err := parseProgressUI(value)
	if err != nil {
		return false, err
	}
	switch mode {
	case progressOn:
		return true, nil
	case progressOff:
		return false, nil
	}
	return jobs > 0 && !boolFlag(cmd, "quiet") && isTerminal(os.Stdout), nil
}
