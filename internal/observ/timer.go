// Package observ measures the phases of an evaluation: loading, validation,
// interpretation.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase records one timed phase.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Steps uint64
	Note  string
}

// Timer collects phases in the order they were begun. It is safe for
// concurrent use so that batch jobs can report into one timer.
type Timer struct {
	mu     sync.Mutex
	now    func() time.Time
	phases []Phase
}

func NewTimer() *Timer { return NewTimerWithClock(time.Now) }

// NewTimerWithClock uses now instead of the wall clock.
func NewTimerWithClock(now func() time.Time) *Timer {
	return &Timer{now: now, phases: make([]Phase, 0, 4)}
}

// Begin starts a phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: t.now()})
	return len(t.phases) - 1
}

// End finishes the phase idx. Unknown indexes are ignored.
func (t *Timer) End(idx int, note string) {
	t.EndSteps(idx, 0, note)
}

// EndSteps finishes the phase idx and records how many interpreter steps it took.
func (t *Timer) EndSteps(idx int, steps uint64, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = t.now().Sub(p.Start)
	p.Steps = steps
	p.Note = note
}

// Summary renders the phases as an aligned table.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&sb, "  %-20s %9.3f ms", p.Name, p.DurationMS)
		if p.Steps > 0 {
			fmt.Fprintf(&sb, "  %d steps", p.Steps)
		}
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "  %-20s %9.3f ms\n", "total", report.TotalMS)
	return sb.String()
}

// PhaseReport is the serialized form of a phase.
type PhaseReport struct {
	Name       string  `json:"name" yaml:"name"`
	DurationMS float64 `json:"duration_ms" yaml:"duration_ms"`
	Steps      uint64  `json:"steps,omitempty" yaml:"steps,omitempty"`
	Note       string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Report aggregates all phases.
type Report struct {
	TotalMS float64       `json:"total_ms" yaml:"total_ms"`
	Phases  []PhaseReport `json:"phases" yaml:"phases"`
}

func (t *Timer) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, p := range t.phases {
		total += p.Dur
		report.Phases[i] = PhaseReport{
			Name:       p.Name,
			DurationMS: durationToMillis(p.Dur),
			Steps:      p.Steps,
			Note:       p.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
