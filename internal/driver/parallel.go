package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mirvm/internal/fault"
	"mirvm/internal/trace"
)

var errBugInJob = errors.New("driver: interpreter bug in job")

// EvaluateAll runs jobs concurrently, at most opts.Jobs at a time. Each job
// gets its own interpreter and machine. Results are in job order.
//
// A *fault.Bug raised by any job stops the batch and is re-raised on the
// calling goroutine after all workers returned.
func EvaluateAll(ctx context.Context, jobs []Job, opts Options) ([]*Result, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "batch", trace.Parent(ctx)).
		WithExtra("jobs", fmt.Sprint(len(jobs)))
	ctx = trace.WithParent(ctx, span)

	// Indexes are unique per goroutine, so results need no lock.
	results := make([]*Result, len(jobs))
	var (
		bugOnce sync.Once
		bug     *fault.Bug
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs(len(jobs)))
	for i, job := range jobs {
		g.Go(func() (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				b, ok := fault.AsBug(r)
				if !ok {
					panic(r)
				}
				bugOnce.Do(func() { bug = b })
				err = errBugInJob
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			opts.notify(JobEvent{Index: i, Name: job.Name, Status: JobStart})
			began := time.Now()
			res, err := Evaluate(gctx, job, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Name, err)
			}
			results[i] = res
			opts.notify(JobEvent{Index: i, Name: job.Name, Status: JobDone, Elapsed: time.Since(began), Result: res})
			return nil
		})
	}
	err := g.Wait()
	if bug != nil {
		span.End("bug")
		panic(bug)
	}
	if err != nil {
		span.End("error")
		return results, err
	}
	span.End("ok")
	return results, nil
}
