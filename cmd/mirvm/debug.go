package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mirvm/internal/driver"
	"mirvm/internal/fault"
	"mirvm/internal/ui"
)

var debugCmd = &cobra.Command{
	Use:   "debug [flags] <sample|file.mp>",
	Short: "Single-step a program in the terminal debugger",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebugger,
}

func init() {
	debugCmd.Flags().StringArray("break", nil, "breakpoint as file:line or fn:name (repeatable)")
	debugCmd.Flags().Uint64("run-limit", ui.DefaultRunLimit, "maximum steps taken by one continue, next or out")
}

func runDebugger(cmd *cobra.Command, args []string) error {
	_, opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errors.New("debug needs an interactive terminal")
	}
	job, err := driver.LoadJob(args[0])
	if err != nil {
		return err
	}
	cx, err := driver.Prepare(job, opts)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			fmt.Fprint(cmd.ErrOrStderr(), fe.FormatWithFiles(job.Prog.Files()))
			return errFailed
		}
		return err
	}

	session := ui.NewSession(cx)
	if session.RunLimit, err = cmd.Flags().GetUint64("run-limit"); err != nil {
		return err
	}
	exprs, err := cmd.Flags().GetStringArray("break")
	if err != nil {
		return err
	}
	for _, expr := range exprs {
		if _, err := session.Breakpoints().Parse(expr); err != nil {
			return err
		}
	}

	program := tea.NewProgram(ui.NewDebugger(job.Name, session), tea.WithOutput(os.Stdout), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}
	if bug := session.Bug(); bug != nil {
		fmt.Fprint(cmd.ErrOrStderr(), bug.FormatWithFiles(cx.Files))
		panic(bug)
	}
	if fe := session.Err(); fe != nil {
		fmt.Fprint(cmd.ErrOrStderr(), fe.FormatWithFiles(cx.Files))
		return errFailed
	}
	return nil
}
