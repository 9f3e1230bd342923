package driver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"mirvm/internal/fault"
	"mirvm/internal/interp"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/observ"
	"mirvm/internal/source"
	"mirvm/internal/trace"
	"mirvm/internal/types"
)

// ctxCheckInterval is how many steps run between context checks.
const ctxCheckInterval = 256

// Job is one program to evaluate.
type Job struct {
	Name string
	Prog *mir.Program
	// Fn is the body to start; NoBodyID selects Prog.Entry.
	Fn       mir.BodyID
	Generics []types.TypeID
	Args     []memory.Immediate
}

// NewJob evaluates prog's entry body without arguments.
func NewJob(name string, prog *mir.Program) Job {
	return Job{Name: name, Prog: prog, Fn: mir.NoBodyID}
}

// Result is the outcome of one job.
type Result struct {
	Name    string
	Machine string
	Steps   uint64
	Elapsed time.Duration

	// Value and Layout describe the root frame's return value when the
	// evaluation finished.
	Value  memory.Immediate
	Layout *layout.TypeLayout
	Bytes  []byte

	// Failure is the interpretation failure, if any.
	Failure *fault.Error
	Files   *source.FileSet
	Types   *types.Interner
	Timing  observ.Report
}

// OK reports whether the job ran to completion.
func (r *Result) OK() bool {
	return r.Failure == nil
}

// Display renders the returned value.
func (r *Result) Display() string {
	switch {
	case r.Failure != nil:
		return ""
	case r.Layout != nil && r.Layout.IsZST():
		return "()"
	case r.Value.Kind != memory.ImmUninit:
		if r.Layout == nil || r.Types == nil {
			return r.Value.String()
		}
		return FormatValue(r.Types, r.Layout.Type, r.Value)
	case len(r.Bytes) > 0:
		return "0x" + hex.EncodeToString(r.Bytes)
	default:
		return "<uninit>"
	}
}

// Describe renders the failure with source positions, or "".
func (r *Result) Describe() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.FormatWithFiles(r.Files)
}

// Prepare validates the job and returns a started interpreter context.
func Prepare(job Job, opts Options) (*interp.InterpCx, error) {
	if job.Prog == nil {
		return nil, errors.New("driver: job without program")
	}
	if err := mir.Validate(job.Prog); err != nil {
		return nil, fmt.Errorf("%s: %w", job.Name, err)
	}
	cx, err := interp.New(job.Prog, interp.Options{
		Target:   opts.Target,
		Machine:  opts.newMachine(),
		UBChecks: opts.UBChecks,
	})
	if err != nil {
		return nil, err
	}
	fn := job.Fn
	if fn == mir.NoBodyID {
		fn = job.Prog.Entry
	}
	if err := cx.Start(fn, job.Generics, job.Args...); err != nil {
		return nil, err
	}
	return cx, nil
}

// Evaluate runs job to completion or until a budget is exhausted.
// Interpretation failures are reported in Result.Failure; the error is
// reserved for invalid jobs and cancellation of ctx.
func Evaluate(ctx context.Context, job Job, opts Options) (*Result, error) {
	tracer := trace.ForJob(trace.FromContext(ctx), job.Name)
	span := trace.Begin(tracer, trace.ScopeEval, "evaluate", trace.Parent(ctx))
	timer := observ.NewTimer()
	res := &Result{Name: job.Name}
	if job.Prog != nil {
		res.Files = job.Prog.Files()
	}

	prep := timer.Begin("prepare")
	cx, err := Prepare(job, opts)
	timer.End(prep, "")
	if err != nil {
		var fe *fault.Error
		if !errors.As(err, &fe) {
			span.End("invalid")
			return nil, err
		}
		res.Failure = fe
		res.Timing = timer.Report()
		trace.Failure(tracer, fe.Code.String(), fe.Message)
		span.End(fe.Code.String())
		return res, nil
	}
	cx.Tracer = tracer
	res.Machine = cx.Machine.Name()
	res.Files = cx.Files
	res.Types = cx.Types

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	eval := timer.Begin("eval")
	runErr := run(ctx, cx, opts.Steps)
	res.Steps = cx.Steps
	res.Elapsed = time.Since(start)
	timer.EndSteps(eval, cx.Steps, "")
	res.Timing = timer.Report()

	switch {
	case runErr == nil:
		res.Value, res.Layout, err = cx.Result()
		if err != nil && fault.CodeOf(err) != fault.CodeBadShape {
			span.End("result")
			return nil, err
		}
		if res.Bytes, err = cx.ResultBytes(); err != nil {
			span.End("result")
			return nil, err
		}
		span.WithExtra("steps", fmt.Sprint(cx.Steps)).End("ok")
		return res, nil
	case errors.Is(runErr, context.Canceled):
		span.End("canceled")
		return nil, runErr
	default:
		var fe *fault.Error
		if !errors.As(runErr, &fe) {
			span.End("error")
			return nil, runErr
		}
		res.Failure = fe
		trace.Failure(tracer, fe.Code.String(), fe.Message)
		span.WithExtra("steps", fmt.Sprint(cx.Steps)).End(fe.Code.String())
		return res, nil
	}
}

// run steps cx until it finishes, fails, or exceeds a host budget.
func run(ctx context.Context, cx *interp.InterpCx, steps uint64) error {
	for {
		if steps > 0 && cx.Steps >= steps && cx.Depth() > 0 {
			return hostBudget(cx, fmt.Sprintf("exceeded host step budget of %d", steps))
		}
		if cx.Steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return hostBudget(cx, fmt.Sprintf("deadline exceeded after %d steps", cx.Steps))
				}
				return err
			}
		}
		more, err := cx.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func hostBudget(cx *interp.InterpCx, msg string) *fault.Error {
	fe := fault.Errorf(fault.CodeHostBudget, "%s", msg)
	fe.Backtrace = cx.Backtrace()
	if len(fe.Backtrace) > 0 {
		fe.Span = fe.Backtrace[0].Span
	}
	return fe
}
