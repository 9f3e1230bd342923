package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"mirvm/internal/driver"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// printResult writes the value or the failure of res.
func printResult(out, errOut io.Writer, res *driver.Result, quiet bool) {
	if res.OK() {
		if quiet {
			fmt.Fprintln(out, res.Display())
			return
		}
		fmt.Fprintf(out, "%s %s = %s %s\n",
			okColor.Sprint("ok"), res.Name, res.Display(),
			dimColor.Sprint(counts.Sprintf("(%d steps, %s)", res.Steps, res.Machine)))
		return
	}
	fmt.Fprintf(errOut, "%s %s\n", failColor.Sprint("failed"), res.Name)
	fmt.Fprint(errOut, res.Describe())
	if !quiet {
		fmt.Fprintln(errOut, dimColor.Sprint(counts.Sprintf("after %d steps on %s", res.Steps, res.Machine)))
	}
}
