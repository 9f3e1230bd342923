package main

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mirvm/internal/driver"
)

// counts formats step counts with digit grouping.
var counts = message.NewPrinter(language.English)

func printTimings(out io.Writer, res *driver.Result) {
	if out == nil || res == nil {
		return
	}
	for _, p := range res.Timing.Phases {
		line := counts.Sprintf("%s %.1f ms", p.Name, p.DurationMS)
		if p.Steps > 0 {
			line += counts.Sprintf(" (%d steps)", p.Steps)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "total %.1f ms\n", res.Timing.TotalMS)
}
