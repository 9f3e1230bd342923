// Package driver runs IR programs on the interpreter under host-side budgets
// and collects their results for the CLI.
package driver

import (
	"runtime"
	"time"

	"mirvm/internal/config"
	"mirvm/internal/interp"
	"mirvm/internal/layout"
	"mirvm/internal/machine"
)

// Options controls how jobs are evaluated.
type Options struct {
	Target      layout.Target
	Personality machine.Personality
	Machine     machine.Config
	UBChecks    bool

	// Steps bounds Step calls per job; zero means unlimited.
	Steps uint64
	// Timeout bounds the wall time of each job; zero means no deadline
	// beyond the caller's context.
	Timeout time.Duration
	// Jobs is the number of evaluations run at once by EvaluateAll.
	Jobs int

	// Observer receives job start and finish events. It may be called from
	// several goroutines at once.
	Observer JobObserver
}

// OptionsFrom maps validated settings onto driver options.
func OptionsFrom(s config.Settings) Options {
	return Options{
		Target:      s.Target,
		Personality: s.Personality,
		Machine:     s.Machine,
		UBChecks:    s.UBChecks,
		Steps:       s.Steps,
		Timeout:     s.Timeout,
		Jobs:        s.Jobs,
	}
}

func (o Options) jobs(n int) int {
	j := o.Jobs
	if j <= 0 {
		j = runtime.GOMAXPROCS(0)
	}
	return max(1, min(j, n))
}

func (o Options) newMachine() interp.Machine {
	return machine.New(o.Personality, o.Machine)
}
