package interp

import (
	"fmt"

	"mirvm/internal/mir"
	"mirvm/internal/trace"
)

// Step performs one unit of work: a statement, a terminator, or one frame
// pop while unwinding. It reports false only when no frame is left.
func (cx *InterpCx) Step() (bool, error) {
	if len(cx.stack) == 0 {
		return false, nil
	}
	cx.Steps++
	f := cx.frame()
	if f.Loc.Unwinding {
		if err := cx.unwindPop(); err != nil {
			return false, cx.annotate(err)
		}
		return true, nil
	}

	blk := f.CurrentBlock()
	if blk == nil {
		cx.bug("%s has no block bb%d", f.Body.Name, f.Loc.Block)
	}
	if f.Loc.Stmt < len(blk.Statements) {
		stmt := &blk.Statements[f.Loc.Stmt]
		depth := len(cx.stack)
		if err := cx.evalStatement(stmt); err != nil {
			return false, cx.annotate(err)
		}
		if len(cx.stack) != depth || cx.stack[depth-1] != f {
			cx.bug("statement changed the current frame")
		}
		f.Loc.Stmt++
		return true, nil
	}

	if err := cx.evalTerminatorStep(&blk.Terminator); err != nil {
		return false, cx.annotate(err)
	}
	return true, nil
}

func (cx *InterpCx) evalStatement(s *mir.Statement) error {
	cx.setStatement(s)
	cx.traceStep(s.Kind.String(), func() string { return cx.printer.Statement(s) })

	switch s.Kind {
	case mir.StmtAssign:
		return cx.evalRvalueIntoPlace(&s.Rvalue, s.Place)
	case mir.StmtSetDiscriminant:
		dest, err := cx.evalPlace(s.Place)
		if err != nil {
			return err
		}
		return cx.writeDiscriminant(s.Variant, dest)
	case mir.StmtDeinit:
		dest, err := cx.evalPlace(s.Place)
		if err != nil {
			return err
		}
		return cx.writeUninit(dest)
	case mir.StmtStorageLive:
		return cx.storageLive(s.Local)
	case mir.StmtStorageDead:
		return cx.storageDead(s.Local)
	case mir.StmtFakeRead, mir.StmtAscribeUserType, mir.StmtCoverage, mir.StmtNop:
		return nil
	case mir.StmtRetag:
		dest, err := cx.evalPlace(s.Place)
		if err != nil {
			return err
		}
		return cx.Machine.RetagPlaceContents(cx, s.Retag, dest)
	case mir.StmtIntrinsic:
		if s.Intrinsic == nil {
			cx.bug("intrinsic statement without payload")
		}
		return cx.Machine.EmulateNondivergingIntrinsic(cx, s.Intrinsic)
	case mir.StmtPlaceMention:
		_, err := cx.evalPlace(s.Place)
		return err
	case mir.StmtConstEvalCounter:
		return cx.Machine.IncrementConstEvalCounter(cx)
	default:
		cx.bug("unknown statement kind %d", s.Kind)
		return nil
	}
}

// StopPoint describes what the next Step will execute.
type StopPoint struct {
	Func  string
	Depth int
	Loc   Location
	Text  string
}

// Next reports the upcoming statement or terminator; ok is false when the
// stack is empty.
func (cx *InterpCx) Next() (StopPoint, bool) {
	f := cx.Frame()
	if f == nil {
		return StopPoint{}, false
	}
	sp := StopPoint{Func: f.Body.Name, Depth: len(cx.stack), Loc: f.Loc}
	switch {
	case f.Loc.Unwinding:
		sp.Text = "unwind"
	case f.CurrentStatement() != nil:
		sp.Text = cx.printer.Statement(f.CurrentStatement())
	case f.CurrentBlock() != nil:
		sp.Text = cx.printer.Terminator(&f.CurrentBlock().Terminator)
	}
	return sp, true
}

func (cx *InterpCx) traceEnabled(scope trace.Scope) bool {
	return cx.Tracer.Enabled() && cx.Tracer.Level().ShouldEmit(scope)
}

func (cx *InterpCx) traceStep(kind string, text func() string) {
	if !cx.traceEnabled(trace.ScopeStep) {
		return
	}
	f := cx.frame()
	trace.Point(cx.Tracer, trace.ScopeStep,
		fmt.Sprintf("[depth=%d] %s %s", len(cx.stack), f.Body.Name, f.Loc), kind+" "+text())
}

func (cx *InterpCx) traceFrame(event string, f *Frame) {
	if !cx.traceEnabled(trace.ScopeFrame) {
		return
	}
	trace.Point(cx.Tracer, trace.ScopeFrame, event, fmt.Sprintf("%s depth=%d", f.Body.Name, len(cx.stack)))
}
