package driver

import "time"

// JobStatus reports whether a job started or finished.
type JobStatus int

const (
	JobStart JobStatus = iota
	JobDone
)

// JobEvent describes a job boundary. Result is set for JobDone.
type JobEvent struct {
	Index   int
	Name    string
	Status  JobStatus
	Elapsed time.Duration
	Result  *Result
}

// JobObserver receives job events emitted by Evaluate and EvaluateAll.
type JobObserver func(JobEvent)

func (o Options) notify(ev JobEvent) {
	if o.Observer != nil {
		o.Observer(ev)
	}
}
