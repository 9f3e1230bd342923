package trace

// jobTracer labels every event with the job it belongs to.
type jobTracer struct {
	Tracer
	job string
}

// ForJob returns a tracer that stamps job on events passing through it.
// Disabled tracers are returned unchanged.
func ForJob(t Tracer, job string) Tracer {
	if t == nil || !t.Enabled() {
		return Nop
	}
	return jobTracer{Tracer: t, job: job}
}

func (t jobTracer) Emit(ev *Event) {
	if ev.Job == "" {
		ev.Job = t.job
	}
	t.Tracer.Emit(ev)
}
