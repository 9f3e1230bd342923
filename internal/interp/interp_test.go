package interp_test

import (
	"bytes"
	"strings"
	"testing"

	"mirvm/internal/fault"
	"mirvm/internal/interp"
	"mirvm/internal/layout"
	"mirvm/internal/machine"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/trace"
	"mirvm/internal/types"
)

type fixture struct {
	in   *types.Interner
	b    types.Builtins
	prog *mir.Program
}

func newFixture() *fixture {
	in := types.NewInterner()
	return &fixture{in: in, b: in.Builtins(), prog: mir.NewProgram("test", in)}
}

func (f *fixture) add(bld *mir.Builder) mir.BodyID {
	return f.prog.AddBody(bld.MustFinish())
}

func (f *fixture) entry(bld *mir.Builder) {
	f.prog.Entry = f.add(bld)
}

func (f *fixture) intern(t types.Type) types.TypeID {
	return f.in.Intern(t)
}

func (f *fixture) start(t *testing.T, opts interp.Options) *interp.InterpCx {
	t.Helper()
	if opts.Machine == nil {
		opts.Machine = machine.NewConstEval(0)
	}
	cx, err := interp.New(f.prog, opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := cx.Start(f.prog.Entry, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	return cx
}

func (f *fixture) run(t *testing.T, m interp.Machine) (*interp.InterpCx, error) {
	t.Helper()
	cx := f.start(t, interp.Options{Machine: m, UBChecks: true})
	return cx, cx.Run()
}

// mustRun runs the entry body and returns its result.
func (f *fixture) mustRun(t *testing.T, m interp.Machine) memory.Immediate {
	t.Helper()
	cx, err := f.run(t, m)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	imm, _, err := cx.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	return imm
}

var ret = mir.LocalPlace(mir.ReturnLocal)

func local(l mir.LocalID) mir.Place {
	return mir.LocalPlace(l)
}

func expectCode(t *testing.T, err error, code fault.Code) *fault.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", code)
	}
	fe, ok := err.(*fault.Error)
	if !ok {
		t.Fatalf("expected *fault.Error, got %T: %v", err, err)
	}
	if fe.Code != code {
		t.Fatalf("expected %s, got %s (%s)", code, fe.Code, fe.Message)
	}
	return fe
}

func expectBug(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected an interpreter bug containing %q", want)
		}
		bug, ok := fault.AsBug(r)
		if !ok {
			t.Fatalf("expected *fault.Bug, got %T: %v", r, r)
		}
		if !strings.Contains(bug.Message, want) {
			t.Fatalf("expected bug containing %q, got %q", want, bug.Message)
		}
	}()
	fn()
}

// recorder is a const-eval machine that remembers retags and terminators.
type recorder struct {
	*machine.ConstEval
	retags      []mir.RetagKind
	terminators int
}

func newRecorder() *recorder {
	return &recorder{ConstEval: machine.NewConstEval(0)}
}

func (r *recorder) RetagPtrValue(_ *interp.InterpCx, kind mir.RetagKind, val memory.Immediate) (memory.Immediate, error) {
	r.retags = append(r.retags, kind)
	return val, nil
}

func (r *recorder) BeforeTerminator(*interp.InterpCx) error {
	r.terminators++
	return nil
}

func TestStepAdvancesStatementIndex(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("three", f.b.U32)
	x := bld.Local("x", f.b.U32)
	bld.Assign(local(x), mir.Use(mir.ConstUint(f.b.U32, 1)))
	bld.Stmt(mir.Nop())
	bld.Assign(ret, mir.Use(mir.Copy(local(x))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx := f.start(t, interp.Options{})
	for want := 1; want <= 3; want++ {
		more, err := cx.Step()
		if err != nil || !more {
			t.Fatalf("step %d: expected progress, got more=%v err=%v", want, more, err)
		}
		if got := cx.Frame().Loc; got != interp.At(0, want) {
			t.Fatalf("expected location bb0[%d], got %s", want, got)
		}
		if cx.Depth() != 1 {
			t.Fatalf("expected depth 1, got %d", cx.Depth())
		}
	}
	if more, err := cx.Step(); err != nil || !more {
		t.Fatalf("return step: more=%v err=%v", more, err)
	}
	if more, err := cx.Step(); err != nil || more {
		t.Fatalf("expected finished, got more=%v err=%v", more, err)
	}
	if cx.Steps != 4 {
		t.Fatalf("expected 4 steps, got %d", cx.Steps)
	}
	imm, _, err := cx.Result()
	if err != nil {
		t.Fatal(err)
	}
	if imm.A.Uint64() != 1 {
		t.Fatalf("expected 1, got %s", imm)
	}
}

func TestUseConstWritesBytes(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("five", f.b.U32)
	bld.Assign(ret, mir.Use(mir.ConstUint(f.b.U32, 5)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx := f.start(t, interp.Options{})
	if _, err := cx.Step(); err != nil {
		t.Fatal(err)
	}
	if got := cx.Frame().Loc; got != interp.At(0, 1) {
		t.Fatalf("expected bb0[1], got %s", got)
	}
	if err := cx.Run(); err != nil {
		t.Fatal(err)
	}
	got, err := cx.ResultBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{5, 0, 0, 0}) {
		t.Fatalf("expected [5 0 0 0], got %v", got)
	}
}

func TestStepOnFinishedContext(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("unit", f.b.Unit)
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx := f.start(t, interp.Options{})
	if err := cx.Run(); err != nil {
		t.Fatal(err)
	}
	if !cx.Finished() {
		t.Fatalf("expected finished context")
	}
	steps := cx.Steps
	if more, err := cx.Step(); more || err != nil {
		t.Fatalf("expected no progress, got more=%v err=%v", more, err)
	}
	if cx.Steps != steps {
		t.Fatalf("expected step counter to stay at %d, got %d", steps, cx.Steps)
	}
}

func TestNewRequiresMachine(t *testing.T) {
	f := newFixture()
	if _, err := interp.New(f.prog, interp.Options{}); err == nil {
		t.Fatalf("expected error for missing machine")
	}
}

func TestStartRejectsGenericsMismatch(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("id", f.in.Param(0), f.in.Param(0)).Generics(1)
	bld.Assign(ret, mir.Use(mir.Move(local(bld.Arg(0)))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx, err := interp.New(f.prog, interp.Options{Machine: machine.NewConstEval(0)})
	if err != nil {
		t.Fatal(err)
	}
	if err := cx.Start(f.prog.Entry, nil); err == nil {
		t.Fatalf("expected error starting a generic body without instantiation")
	}
}

func TestTraceRecordsSteps(t *testing.T) {
	f := newFixture()
	callee := mir.NewBuilder("one", f.b.U32)
	callee.Assign(ret, mir.Use(mir.ConstUint(f.b.U32, 1)))
	callee.Terminate(mir.Return())
	id := f.add(callee)

	bld := mir.NewBuilder("main", f.b.U32)
	next := bld.NewBlock()
	bld.Terminate(mir.CallTerm(mir.Call{Func: id, Dest: ret, Target: next}))
	bld.SetBlock(next)
	bld.Terminate(mir.Return())
	f.entry(bld)

	ring := trace.NewRingTracer(64, trace.LevelDebug)
	cx := f.start(t, interp.Options{Tracer: ring})
	if err := cx.Run(); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	joined := strings.Join(names, "\n")
	for _, want := range []string{"push", "pop", "[depth=1] main bb0[0]", "[depth=2] one bb0[0]"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected trace event %q in:\n%s", want, joined)
		}
	}
}

func TestRepeatFillsArray(t *testing.T) {
	tests := []struct {
		name   string
		target layout.Target
		want   []byte
	}{
		{"little endian", layout.X86_64LinuxGNU(), []byte{5, 0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0}},
		{"big endian", layout.PowerPC64LinuxGNU(), []byte{0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			arr := f.intern(types.MakeArray(f.b.U32, 4))
			bld := mir.NewBuilder("fill", arr)
			bld.Assign(ret, mir.Repeat(mir.ConstUint(f.b.U32, 5), 4))
			bld.Terminate(mir.Return())
			f.entry(bld)

			cx := f.start(t, interp.Options{Target: tt.target})
			if err := cx.Run(); err != nil {
				t.Fatal(err)
			}
			got, err := cx.ResultBytes()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRepeatZeroLengthChecksDestination(t *testing.T) {
	f := newFixture()
	arr0 := f.intern(types.MakeArray(f.b.U32, 0))
	ptr := f.intern(types.MakeRawPtr(arr0, true))
	bld := mir.NewBuilder("dangling", f.b.Unit)
	x := bld.Local("x", arr0)
	p := bld.Local("p", ptr)
	bld.Stmt(mir.StorageLive(x))
	bld.Assign(local(p), mir.AddressOf(true, local(x)))
	bld.Stmt(mir.StorageDead(x))
	bld.Assign(local(p).Deref(), mir.Repeat(mir.ConstUint(f.b.U32, 5), 0))
	bld.Assign(ret, mir.Use(mir.ConstUnit(f.b.Unit)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	_, err := f.run(t, machine.NewConstEval(0))
	expectCode(t, err, fault.CodeDanglingPointer)
}

func TestRepeatZeroLengthLive(t *testing.T) {
	f := newFixture()
	arr0 := f.intern(types.MakeArray(f.b.U32, 0))
	bld := mir.NewBuilder("empty", arr0)
	bld.Assign(ret, mir.Repeat(mir.ConstUint(f.b.U32, 5), 0))
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx, err := f.run(t, machine.NewConstEval(0))
	if err != nil {
		t.Fatal(err)
	}
	got, err := cx.ResultBytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no bytes, got %v", got)
	}
}

func TestDeadLocalRead(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("dead", f.b.U32)
	x := bld.Local("x", f.b.U32)
	bld.Stmt(mir.StorageLive(x))
	bld.Assign(local(x), mir.Use(mir.ConstUint(f.b.U32, 1)))
	bld.Stmt(mir.StorageDead(x))
	bld.Assign(ret, mir.Use(mir.Copy(local(x))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	_, err := f.run(t, machine.NewConstEval(0))
	fe := expectCode(t, err, fault.CodeDeadLocal)
	if len(fe.Backtrace) != 1 || fe.Backtrace[0].FuncName != "dead" {
		t.Fatalf("expected backtrace with frame dead, got %+v", fe.Backtrace)
	}
	if fe.Backtrace[0].Location != "bb0[3]" {
		t.Fatalf("expected failure at bb0[3], got %s", fe.Backtrace[0].Location)
	}
}

func TestConstEvalCounterLimit(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("spin", f.b.Unit)
	bld.Stmt(mir.ConstEvalCounter())
	bld.Terminate(mir.Goto(0))
	f.entry(bld)

	m := machine.NewConstEval(100)
	_, err := f.run(t, m)
	fe := expectCode(t, err, fault.CodeStepLimit)
	if fe.Class() != fault.ClassResourceExhausted {
		t.Fatalf("expected resource exhaustion, got %s", fe.Class())
	}
	if m.Steps() != 101 {
		t.Fatalf("expected 101 counted steps, got %d", m.Steps())
	}
}

func TestAssumeFalse(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("assume", f.b.Unit)
	bld.Stmt(mir.Assume(mir.ConstBool(f.b.Bool, false)))
	bld.Assign(ret, mir.Use(mir.ConstUnit(f.b.Unit)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	_, err := f.run(t, machine.NewConstEval(0))
	expectCode(t, err, fault.CodeAssumeFalse)
}

func TestCopyNonOverlapping(t *testing.T) {
	build := func(f *fixture, off, count uint64) {
		arr := f.intern(types.MakeArray(f.b.U8, 4))
		ptr := f.intern(types.MakeRawPtr(f.b.U8, true))
		bld := mir.NewBuilder("copy", arr)
		a := bld.Local("a", arr)
		p := bld.Local("p", ptr)
		q := bld.Local("q", ptr)
		bld.Assign(local(a), mir.ArrayAggregate(f.b.U8,
			mir.ConstUint(f.b.U8, 1), mir.ConstUint(f.b.U8, 2), mir.ConstUint(f.b.U8, 3), mir.ConstUint(f.b.U8, 4)))
		bld.Assign(local(p), mir.AddressOf(true, local(a).ConstantIndex(0, 4, false)))
		bld.Assign(local(q), mir.Binary(mir.BinOffset, mir.Copy(local(p)), mir.ConstUint(f.b.Usize, off)))
		bld.Stmt(mir.CopyNonOverlapping(mir.Copy(local(p)), mir.Copy(local(q)), mir.ConstUint(f.b.Usize, count)))
		bld.Assign(ret, mir.Use(mir.Copy(local(a))))
		bld.Terminate(mir.Return())
		f.entry(bld)
	}

	t.Run("disjoint", func(t *testing.T) {
		f := newFixture()
		build(f, 2, 2)
		cx, err := f.run(t, machine.NewConstEval(0))
		if err != nil {
			t.Fatal(err)
		}
		got, err := cx.ResultBytes()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, []byte{1, 2, 1, 2}) {
			t.Fatalf("expected [1 2 1 2], got %v", got)
		}
	})
	t.Run("overlapping", func(t *testing.T) {
		f := newFixture()
		build(f, 1, 2)
		_, err := f.run(t, machine.NewConstEval(0))
		expectCode(t, err, fault.CodeOverlappingCopy)
	})
}

func TestStaticRead(t *testing.T) {
	f := newFixture()
	id := f.prog.AddStatic(mir.Static{Name: "ANSWER", Type: f.b.U32, Init: []byte{42, 0, 0, 0}})
	ref := f.intern(types.MakeRef(f.b.U32, false))
	bld := mir.NewBuilder("answer", f.b.U32)
	p := bld.Local("p", ref)
	bld.Assign(local(p), mir.Use(mir.ConstStatic(ref, id)))
	bld.Assign(ret, mir.Use(mir.Copy(local(p).Deref())))
	bld.Terminate(mir.Return())
	f.entry(bld)

	if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != 42 {
		t.Fatalf("expected 42, got %s", got)
	}
}

func TestImmutableStaticWrite(t *testing.T) {
	f := newFixture()
	id := f.prog.AddStatic(mir.Static{Name: "FROZEN", Type: f.b.U32})
	ptr := f.intern(types.MakeRawPtr(f.b.U32, true))
	bld := mir.NewBuilder("poke", f.b.Unit)
	p := bld.Local("p", ptr)
	bld.Assign(local(p), mir.Use(mir.ConstStatic(ptr, id)))
	bld.Assign(local(p).Deref(), mir.Use(mir.ConstUint(f.b.U32, 1)))
	bld.Assign(ret, mir.Use(mir.ConstUnit(f.b.Unit)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	_, err := f.run(t, machine.NewConstEval(0))
	expectCode(t, err, fault.CodeReadOnlyWrite)
}

func TestThreadLocalUnsupportedAtCompileTime(t *testing.T) {
	f := newFixture()
	id := f.prog.AddStatic(mir.Static{Name: "TLS", Type: f.b.U32, ThreadLocal: true})
	ptr := f.intern(types.MakeRawPtr(f.b.U32, false))
	bld := mir.NewBuilder("tls", ptr)
	bld.Assign(ret, mir.ThreadLocalRef(id))
	bld.Terminate(mir.Return())
	f.entry(bld)

	_, err := f.run(t, machine.NewConstEval(0))
	fe := expectCode(t, err, fault.CodeUnsupportedOp)
	if fe.Class() != fault.ClassUnsupported {
		t.Fatalf("expected unsupported class, got %s", fe.Class())
	}
}
