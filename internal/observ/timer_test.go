package observ_test

import (
	"strings"
	"testing"
	"time"

	"mirvm/internal/observ"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestReportSumsPhases(t *testing.T) {
	timer := observ.NewTimerWithClock(fakeClock(2 * time.Millisecond))
	load := timer.Begin("load")
	timer.End(load, "factorial")
	eval := timer.Begin("eval")
	timer.EndSteps(eval, 120, "")

	r := timer.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(r.Phases))
	}
	if r.Phases[0].DurationMS != 2 || r.Phases[1].DurationMS != 2 {
		t.Fatalf("expected 2ms per phase, got %+v", r.Phases)
	}
	if r.TotalMS != 4 {
		t.Fatalf("expected total 4ms, got %v", r.TotalMS)
	}
	if r.Phases[1].Steps != 120 || r.Phases[0].Note != "factorial" {
		t.Fatalf("unexpected phase metadata %+v", r.Phases)
	}
}

func TestSummary(t *testing.T) {
	timer := observ.NewTimerWithClock(fakeClock(time.Millisecond))
	timer.EndSteps(timer.Begin("eval"), 7, "ok")
	out := timer.Summary()
	for _, want := range []string{"timings:", "eval", "7 steps", "// ok", "total"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
}

func TestEndIgnoresUnknownIndex(t *testing.T) {
	timer := observ.NewTimer()
	timer.End(3, "nothing")
	if r := timer.Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("expected empty report, got %+v", r)
	}
}
