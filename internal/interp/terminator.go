package interp

import (
	"fmt"

	"github.com/holiman/uint256"

	"mirvm/internal/fault"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/trace"
	"mirvm/internal/types"
)

// evalTerminatorStep runs the machine hook, the terminator, and reports the
// new location.
func (cx *InterpCx) evalTerminatorStep(t *mir.Terminator) error {
	cx.setTerminator(t)
	if err := cx.Machine.BeforeTerminator(cx); err != nil {
		return err
	}
	cx.traceStep(t.Kind.String(), func() string { return cx.printer.Terminator(t) })
	if err := cx.evalTerminator(t); err != nil {
		return err
	}
	if f := cx.Frame(); f != nil && !f.Loc.Unwinding && cx.traceEnabled(trace.ScopeStep) {
		trace.Point(cx.Tracer, trace.ScopeStep, "// executing", fmt.Sprintf("%s bb%d", f.Body.Name, f.Loc.Block))
	}
	return nil
}

func (cx *InterpCx) goTo(bb mir.BlockID) {
	cx.frame().Loc = At(bb, 0)
}

func (cx *InterpCx) evalTerminator(t *mir.Terminator) error {
	switch t.Kind {
	case mir.TermGoto:
		cx.goTo(t.Target)
		return nil

	case mir.TermSwitchInt:
		if t.Switch == nil {
			cx.bug("SwitchInt without targets")
		}
		op, err := cx.evalOperand(t.Discr, nil)
		if err != nil {
			return err
		}
		s, err := cx.readScalar(op)
		if err != nil {
			return err
		}
		if s.IsPtr() {
			return fault.UB(fault.CodePointerAsInt, "switching on a pointer value")
		}
		target := t.Switch.Otherwise
		for i, v := range t.Switch.Values {
			want := new(uint256.Int).SetUint64(v.Hi)
			want.Lsh(want, 64)
			want.Or(want, uint256.NewInt(v.Lo))
			memory.Truncate(want, s.Size)
			if want.Eq(&s.Bits) {
				target = t.Switch.Blocks[i]
				break
			}
		}
		cx.goTo(target)
		return nil

	case mir.TermReturn:
		return cx.returnFromFrame()

	case mir.TermUnreachable:
		return fault.UB(fault.CodeUnreachable, "entering unreachable code")

	case mir.TermCall:
		if t.Call == nil {
			cx.bug("Call without payload")
		}
		return cx.evalCall(t.Call)

	case mir.TermAssert:
		a := t.Assert
		if a == nil {
			cx.bug("Assert without payload")
		}
		op, err := cx.evalOperand(a.Cond, nil)
		if err != nil {
			return err
		}
		cond, err := cx.readBool(op)
		if err != nil {
			return err
		}
		if cond != a.Expected {
			return fault.Errorf(fault.CodeAssertFailed, "%s", a.Msg)
		}
		cx.goTo(a.Target)
		return nil

	case mir.TermDrop:
		pl, err := cx.evalPlace(t.Place)
		if err != nil {
			return err
		}
		if err := cx.checkPlace(pl); err != nil {
			return err
		}
		cx.goTo(t.Target)
		return nil

	case mir.TermPanic:
		cx.panicMsg = t.Msg
		return cx.startUnwind(t.Unwind)

	case mir.TermUnwindResume:
		if !cx.frame().CurrentBlock().Cleanup {
			cx.bug("UnwindResume outside a cleanup block")
		}
		cx.frame().Loc = Unwinding
		return nil

	case mir.TermUnwindTerminate:
		return fault.Errorf(fault.CodeUnwindTerminated, "panic in a function that cannot unwind")

	default:
		cx.bug("unknown terminator kind %d", t.Kind)
		return nil
	}
}

// checkPlace verifies a place about to be dropped is still accessible.
func (cx *InterpCx) checkPlace(p PlaceTy) error {
	if p.onStack {
		_, err := cx.localState(p.frame, p.local)
		return err
	}
	size, err := cx.placeSize(p)
	if err != nil {
		return err
	}
	return cx.Mem.CheckAccess(p.mem.Ptr, size, false)
}

// startUnwind begins unwinding in the current frame.
func (cx *InterpCx) startUnwind(u mir.UnwindAction) error {
	switch u.Kind {
	case mir.UnwindCleanup:
		cx.goTo(u.Block)
		return nil
	case mir.UnwindContinue:
		cx.frame().Loc = Unwinding
		return nil
	case mir.UnwindTerminate:
		return fault.Errorf(fault.CodeUnwindTerminated, "panic in a function that cannot unwind: %s", cx.panicMessage())
	default:
		return fault.UB(fault.CodeUnreachable, "unwinding past a stack frame that does not allow unwinding")
	}
}

func (cx *InterpCx) panicMessage() string {
	if cx.panicMsg == "" {
		return "explicit panic"
	}
	return cx.panicMsg
}

// PanicMessage is the message of the last panic, if any.
func (cx *InterpCx) PanicMessage() string {
	return cx.panicMsg
}

func (cx *InterpCx) evalCall(c *mir.Call) error {
	body, ok := cx.Prog.Body(c.Func)
	if !ok {
		return fault.Errorf(fault.CodeUnknownFunc, "call of fn#%d, which does not exist", c.Func)
	}
	if len(c.Args) != body.ArgCount {
		return fault.Errorf(fault.CodeBadShape, "%s takes %d arguments, got %d", body.Name, body.ArgCount, len(c.Args))
	}
	args := make([]OpTy, len(c.Args))
	for i, a := range c.Args {
		op, err := cx.evalOperand(a, nil)
		if err != nil {
			return err
		}
		args[i] = op
	}
	dest, err := cx.evalPlace(c.Dest)
	if err != nil {
		return err
	}
	inst := make([]types.TypeID, len(c.Generics))
	for i, g := range c.Generics {
		inst[i] = cx.instantiate(g)
	}

	callee, err := cx.pushFrame(c.Func, body, inst)
	if err != nil {
		return err
	}
	callee.hasCaller = true
	callee.dest = dest
	callee.target = c.Target
	callee.unwind = c.Unwind
	idx := len(cx.stack) - 1
	for i, a := range args {
		pl, err := cx.localPlace(idx, mir.LocalID(i+1))
		if err != nil {
			return err
		}
		if a.Layout.Type != pl.Layout.Type {
			return fault.Errorf(fault.CodeBadShape, "argument %d of %s has type %s, expected %s",
				i+1, body.Name, cx.Types.Label(a.Layout.Type), cx.Types.Label(pl.Layout.Type))
		}
		if err := cx.copyOp(a, pl); err != nil {
			return err
		}
	}
	return nil
}

// returnFromFrame copies the return value to the caller's destination and
// pops the frame.
func (cx *InterpCx) returnFromFrame() error {
	f := cx.frame()
	ret, err := cx.localPlace(len(cx.stack)-1, mir.ReturnLocal)
	if err != nil {
		return err
	}
	op, err := cx.placeToOp(ret)
	if err != nil {
		return err
	}
	if f.hasCaller {
		if err := cx.copyOp(op, f.dest); err != nil {
			return err
		}
	} else if err := cx.saveResult(op); err != nil {
		return err
	}
	if _, err := cx.popFrame(false); err != nil {
		return err
	}
	if !f.hasCaller {
		return nil
	}
	if f.target == mir.NoBlockID {
		return fault.UB(fault.CodeUnreachable, "returning from %s, which was called as a diverging function", f.Body.Name)
	}
	cx.goTo(f.target)
	return nil
}

// saveResult keeps the root frame's return value past the frame's lifetime.
func (cx *InterpCx) saveResult(op OpTy) error {
	l := op.Layout
	if l.IsZST() {
		cx.result = &OpTy{Layout: l, Imm: memory.Uninit()}
		return nil
	}
	ptr, err := cx.Mem.Allocate(l.Size, max(l.Align, 1), memory.KindHeap, true)
	if err != nil {
		return err
	}
	if a, ok := cx.Mem.Alloc(ptr.Prov.Alloc); ok {
		a.Name = "result"
	}
	if err := cx.copyOp(op, memPlace(MemPlace{Ptr: ptr}, l)); err != nil {
		return err
	}
	cx.result = &OpTy{Layout: l, Mem: &MemPlace{Ptr: ptr}}
	return nil
}

// unwindPop pops an unwinding frame and continues unwinding in the caller
// according to the call site's unwind action.
func (cx *InterpCx) unwindPop() error {
	f, err := cx.popFrame(true)
	if err != nil {
		return err
	}
	if !f.hasCaller {
		return fault.Errorf(fault.CodeExplicitPanic, "evaluation panicked: %s", cx.panicMessage())
	}
	caller := cx.frame()
	switch f.unwind.Kind {
	case mir.UnwindCleanup:
		caller.Loc = At(f.unwind.Block, 0)
		return nil
	case mir.UnwindContinue:
		caller.Loc = Unwinding
		return nil
	case mir.UnwindTerminate:
		return fault.Errorf(fault.CodeUnwindTerminated, "panic in a function that cannot unwind: %s", cx.panicMessage())
	default:
		return fault.UB(fault.CodeUnreachable, "unwinding past a stack frame that does not allow unwinding")
	}
}
