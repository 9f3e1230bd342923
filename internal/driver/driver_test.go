package driver_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mirvm/internal/bundle"
	"mirvm/internal/config"
	"mirvm/internal/driver"
	"mirvm/internal/fault"
	"mirvm/internal/mir"
	"mirvm/internal/samples"
	"mirvm/internal/trace"
	"mirvm/internal/types"
)

func options() driver.Options {
	opts := driver.OptionsFrom(config.Default())
	opts.Machine.ConstEvalSteps = 1000
	return opts
}

func sampleJob(t *testing.T, name string) driver.Job {
	t.Helper()
	job, err := driver.LoadJob(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return job
}

func TestEvaluateSample(t *testing.T) {
	res, err := driver.Evaluate(context.Background(), sampleJob(t, "factorial"), options())
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %s", res.Describe())
	}
	if res.Display() != "3628800" {
		t.Fatalf("expected 3628800, got %s", res.Display())
	}
	if res.Machine != "const-eval" || res.Steps == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Timing.Phases) != 2 || res.Timing.Phases[1].Steps != res.Steps {
		t.Fatalf("expected prepare and eval phases, got %+v", res.Timing)
	}
}

func returning(name string, ret func(types.Builtins, *types.Interner) (types.TypeID, mir.Rvalue)) driver.Job {
	in := types.NewInterner()
	prog := mir.NewProgram(name, in)
	ty, rv := ret(in.Builtins(), in)
	bld := mir.NewBuilder("main", ty)
	bld.Assign(mir.LocalPlace(mir.ReturnLocal), rv)
	bld.Terminate(mir.Return())
	prog.Entry = prog.AddBody(bld.MustFinish())
	return driver.NewJob(name, prog)
}

func TestDisplayRendersByType(t *testing.T) {
	tests := []struct {
		name string
		ret  func(types.Builtins, *types.Interner) (types.TypeID, mir.Rvalue)
		want string
	}{
		{"i32", func(b types.Builtins, _ *types.Interner) (types.TypeID, mir.Rvalue) {
			return b.I32, mir.Use(mir.ConstInt(b.I32, -1))
		}, "-1"},
		{"i8", func(b types.Builtins, _ *types.Interner) (types.TypeID, mir.Rvalue) {
			return b.I8, mir.Use(mir.ConstInt(b.I8, -128))
		}, "-128"},
		{"u64", func(b types.Builtins, _ *types.Interner) (types.TypeID, mir.Rvalue) {
			return b.U64, mir.Use(mir.ConstUint(b.U64, ^uint64(0)))
		}, "18446744073709551615"},
		{"bool", func(b types.Builtins, _ *types.Interner) (types.TypeID, mir.Rvalue) {
			return b.Bool, mir.Use(mir.ConstBool(b.Bool, true))
		}, "true"},
		{"char", func(b types.Builtins, _ *types.Interner) (types.TypeID, mir.Rvalue) {
			return b.Char, mir.Use(mir.ConstUint(b.Char, 'x'))
		}, "'x'"},
		{"pair", func(b types.Builtins, in *types.Interner) (types.TypeID, mir.Rvalue) {
			ty := in.Tuple([]types.TypeID{b.I32, b.Bool})
			return ty, mir.TupleAggregate(mir.ConstInt(b.I32, -7), mir.ConstBool(b.Bool, false))
		}, "(-7, false)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := driver.Evaluate(context.Background(), returning(tt.name, tt.ret), options())
			if err != nil {
				t.Fatal(err)
			}
			if !res.OK() {
				t.Fatalf("expected success, got %s", res.Describe())
			}
			if res.Display() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, res.Display())
			}
		})
	}
}

func TestEvaluateReportsFailureInResult(t *testing.T) {
	res, err := driver.Evaluate(context.Background(), sampleJob(t, "dangling"), options())
	if err != nil {
		t.Fatalf("expected failure inside the result, got error %v", err)
	}
	if res.OK() || res.Failure.Code != fault.CodeDanglingPointer {
		t.Fatalf("expected dangling pointer, got %+v", res.Failure)
	}
	if !strings.Contains(res.Describe(), "dangling.src:7:14") {
		t.Fatalf("expected source location, got %s", res.Describe())
	}
}

func TestHostStepBudget(t *testing.T) {
	opts := options()
	opts.Machine.ConstEvalSteps = 0
	opts.Steps = 50
	res, err := driver.Evaluate(context.Background(), sampleJob(t, "spin"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() || res.Failure.Code != fault.CodeHostBudget {
		t.Fatalf("expected host budget failure, got %+v", res.Failure)
	}
	if res.Steps != 50 {
		t.Fatalf("expected exactly 50 steps, got %d", res.Steps)
	}
	if res.Failure.Class() != fault.ClassResourceExhausted || len(res.Failure.Backtrace) != 1 {
		t.Fatalf("expected a resource failure with backtrace, got %+v", res.Failure)
	}
}

func TestStepBudgetAllowsExactFit(t *testing.T) {
	opts := options()
	first, err := driver.Evaluate(context.Background(), sampleJob(t, "enum_match"), opts)
	if err != nil || !first.OK() {
		t.Fatalf("first run failed: %v %+v", err, first)
	}
	opts.Steps = first.Steps
	res, err := driver.Evaluate(context.Background(), sampleJob(t, "enum_match"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() {
		t.Fatalf("expected a budget of exactly %d steps to suffice, got %s", first.Steps, res.Describe())
	}
}

func TestDeadlineStopsEvaluation(t *testing.T) {
	opts := options()
	opts.Machine.ConstEvalSteps = 0
	opts.Steps = 0
	opts.Timeout = 20 * time.Millisecond
	res, err := driver.Evaluate(context.Background(), sampleJob(t, "spin"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() || res.Failure.Code != fault.CodeHostBudget {
		t.Fatalf("expected host budget failure, got %+v", res.Failure)
	}
	if !strings.Contains(res.Failure.Message, "deadline exceeded") {
		t.Fatalf("unexpected message %q", res.Failure.Message)
	}
}

func TestCanceledContextIsAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.Evaluate(ctx, sampleJob(t, "spin"), options())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStartFailureIsResult(t *testing.T) {
	job := sampleJob(t, "factorial")
	body, ok := job.Prog.BodyByName("fact")
	if !ok {
		t.Fatalf("missing fact")
	}
	job.Fn = body
	res, err := driver.Evaluate(context.Background(), job, options())
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() || res.Failure.Code != fault.CodeBadShape {
		t.Fatalf("expected argument count failure, got %+v", res.Failure)
	}
}

func TestInvalidProgramIsAnError(t *testing.T) {
	in := types.NewInterner()
	prog := mir.NewProgram("broken", in)
	bld := mir.NewBuilder("main", in.Builtins().Unit)
	bld.Terminate(mir.Goto(9))
	prog.Entry = prog.AddBody(bld.MustFinish())
	if _, err := driver.Evaluate(context.Background(), driver.NewJob("broken", prog), options()); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestEvaluateTraces(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := driver.Evaluate(ctx, sampleJob(t, "generic_max"), options()); err != nil {
		t.Fatal(err)
	}
	var begins, frames int
	for _, ev := range ring.Snapshot() {
		switch {
		case ev.Kind == trace.KindSpanBegin && ev.Name == "evaluate":
			begins++
		case ev.Scope == trace.ScopeFrame:
			frames++
		}
	}
	if begins != 1 || frames == 0 {
		t.Fatalf("expected one evaluate span and frame events, got %d and %d", begins, frames)
	}
}

func TestEvaluateAllKeepsJobOrder(t *testing.T) {
	jobs := driver.AllSamples()
	opts := options()
	opts.Jobs = 3
	var (
		mu     sync.Mutex
		starts int
		dones  int
	)
	opts.Observer = func(ev driver.JobEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Status == driver.JobStart {
			starts++
		} else {
			dones++
		}
	}
	results, err := driver.EvaluateAll(context.Background(), jobs, opts)
	if err != nil {
		t.Fatal(err)
	}
	if starts != len(jobs) || dones != len(jobs) {
		t.Fatalf("expected %d start and done events, got %d and %d", len(jobs), starts, dones)
	}
	for i, res := range results {
		s, _ := samples.Lookup(jobs[i].Name)
		if res.Name != s.Name {
			t.Fatalf("result %d: expected %s, got %s", i, s.Name, res.Name)
		}
		if s.Want.Code != 0 {
			if res.OK() || res.Failure.Code != s.Want.Code {
				t.Fatalf("%s: expected %s, got %+v", s.Name, s.Want.Code, res.Failure)
			}
			continue
		}
		if !res.OK() || res.Value.A.Uint64() != s.Want.Value {
			t.Fatalf("%s: expected %d, got %s %s", s.Name, s.Want.Value, res.Display(), res.Describe())
		}
	}
}

func mismatchJob() driver.Job {
	in := types.NewInterner()
	b := in.Builtins()
	prog := mir.NewProgram("mismatch", in)
	bld := mir.NewBuilder("main", b.Bool)
	bld.Assign(mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinEq, mir.ConstUint(b.U32, 1), mir.ConstUint(b.U64, 1)))
	bld.Terminate(mir.Return())
	prog.Entry = prog.AddBody(bld.MustFinish())
	return driver.NewJob("mismatch", prog)
}

func TestEvaluateAllReraisesBug(t *testing.T) {
	jobs := append(driver.AllSamples()[:2], mismatchJob())
	defer func() {
		bug, ok := fault.AsBug(recover())
		if !ok {
			t.Fatalf("expected the bug to reach the caller")
		}
		if !strings.Contains(bug.Message, "given for a value of type") {
			t.Fatalf("unexpected bug %q", bug.Message)
		}
	}()
	_, _ = driver.EvaluateAll(context.Background(), jobs, options())
}

func TestLoadJob(t *testing.T) {
	s, _ := samples.Lookup("statics")
	path := filepath.Join(t.TempDir(), "statics"+bundle.Ext)
	if err := bundle.WriteFile(path, s.Build()); err != nil {
		t.Fatal(err)
	}
	job, err := driver.LoadJob(path)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	if job.Name != "statics" || job.Fn != mir.NoBodyID {
		t.Fatalf("unexpected job %+v", job)
	}

	tests := []struct {
		arg  string
		want string
	}{
		{"nope", "unknown sample"},
		{filepath.Join(t.TempDir(), "gone.mp"), "does not exist"},
	}
	for _, tt := range tests {
		if _, err := driver.LoadJob(tt.arg); err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tt.arg, tt.want, err)
		}
	}
}

func TestReportRoundTrip(t *testing.T) {
	opts := options()
	results, err := driver.EvaluateAll(context.Background(), []driver.Job{sampleJob(t, "factorial"), sampleJob(t, "overflow")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	rep := driver.NewReport(results, opts)
	var buf bytes.Buffer
	if err := rep.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	back, err := driver.ReadReport(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if back.Summary.Total != 2 || back.Summary.Passed != 1 || back.Summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", back.Summary)
	}
	if back.Jobs[0].Value != "3628800" || back.Jobs[0].Status != "ok" {
		t.Fatalf("unexpected first job %+v", back.Jobs[0])
	}
	failed := back.Jobs[1]
	if failed.Code != "E5001" || failed.Location != "overflow.src:5:5" || len(failed.Backtrace) != 2 {
		t.Fatalf("unexpected failed job %+v", failed)
	}
	if back.Machine != "const-eval" || back.Target != "x86_64-linux-gnu" {
		t.Fatalf("unexpected header %+v", back)
	}
}
