package interp

import (
	"strings"
	"testing"

	"mirvm/internal/fault"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

// framePusher is a machine whose intrinsic hook pushes a frame, which no
// statement may do.
type framePusher struct {
	callee mir.BodyID
}

func (m *framePusher) Name() string { return "pusher" }

func (m *framePusher) BeforeTerminator(*InterpCx) error { return nil }

func (m *framePusher) IncrementConstEvalCounter(*InterpCx) error { return nil }

func (m *framePusher) RetagPtrValue(_ *InterpCx, _ mir.RetagKind, val memory.Immediate) (memory.Immediate, error) {
	return val, nil
}

func (m *framePusher) RetagPlaceContents(*InterpCx, mir.RetagKind, PlaceTy) error { return nil }

func (m *framePusher) ThreadLocalStaticPointer(*InterpCx, mir.StaticID) (memory.Pointer, error) {
	return memory.Pointer{}, fault.Unsupported("no thread-locals")
}

func (m *framePusher) EmulateNondivergingIntrinsic(cx *InterpCx, _ *mir.Intrinsic) error {
	body, _ := cx.Prog.Body(m.callee)
	_, err := cx.pushFrame(m.callee, body, nil)
	return err
}

func (m *framePusher) ExposeProvenance(*InterpCx, memory.Pointer) error { return nil }

func (m *framePusher) PointerFromExposedAddr(_ *InterpCx, addr uint64) (memory.Pointer, error) {
	return memory.Pointer{Addr: addr}, nil
}

func TestStatementMustKeepFrame(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	prog := mir.NewProgram("pusher", in)

	callee := mir.NewBuilder("callee", b.Unit)
	callee.Terminate(mir.Return())
	calleeID := prog.AddBody(callee.MustFinish())

	main := mir.NewBuilder("main", b.Unit)
	main.Stmt(mir.Assume(mir.ConstBool(b.Bool, true)))
	main.Assign(mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.ConstUnit(b.Unit)))
	main.Terminate(mir.Return())
	prog.Entry = prog.AddBody(main.MustFinish())

	cx, err := New(prog, Options{Machine: &framePusher{callee: calleeID}})
	if err != nil {
		t.Fatal(err)
	}
	if err := cx.Start(prog.Entry, nil); err != nil {
		t.Fatal(err)
	}

	defer func() {
		bug, ok := fault.AsBug(recover())
		if !ok {
			t.Fatalf("expected an interpreter bug")
		}
		if !strings.Contains(bug.Message, "statement changed the current frame") {
			t.Fatalf("unexpected bug %q", bug.Message)
		}
		if !strings.Contains(bug.Context, "assume") {
			t.Fatalf("expected the failing statement in the bug context, got %q", bug.Context)
		}
	}()
	_, _ = cx.Step()
}

func TestLocalsStartLazy(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	prog := mir.NewProgram("lazy", in)
	arr := in.Intern(types.MakeArray(b.U8, 8))

	bld := mir.NewBuilder("lazy", b.U32)
	x := bld.Local("x", b.U32)
	a := bld.Local("a", arr)
	bld.Stmt(mir.StorageLive(x))
	bld.Assign(mir.LocalPlace(x), mir.Use(mir.ConstUint(b.U32, 1)))
	bld.Assign(mir.LocalPlace(a), mir.Repeat(mir.ConstUint(b.U8, 0), 8))
	bld.Assign(mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.Copy(mir.LocalPlace(x))))
	bld.Terminate(mir.Return())
	prog.Entry = prog.AddBody(bld.MustFinish())

	cx, err := New(prog, Options{Machine: &framePusher{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := cx.Start(prog.Entry, nil); err != nil {
		t.Fatal(err)
	}
	f := cx.Frame()
	if f.locals[x].live {
		t.Fatalf("expected storage-managed local to start dead")
	}
	if !f.locals[a].live || f.Allocated(a) {
		t.Fatalf("expected unmanaged local to start live and unallocated")
	}
	for i := 0; i < 3; i++ {
		if _, err := cx.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if f.Allocated(x) {
		t.Fatalf("expected scalar local to stay immediate")
	}
	if !f.Allocated(a) {
		t.Fatalf("expected repeat destination to be allocated")
	}
}
