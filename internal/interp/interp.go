// Package interp executes IR programs one statement or terminator at a time.
//
// An InterpCx owns a frame stack, a memory and a Machine. The host calls Step
// until it reports false. Recoverable failures come back as *fault.Error;
// internal invariant violations panic with *fault.Bug.
package interp

import (
	"errors"
	"fmt"

	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/source"
	"mirvm/internal/trace"
	"mirvm/internal/types"
)

var errNotFinished = errors.New("interp: evaluation has not finished")

// Options configures an interpreter context.
type Options struct {
	Target   layout.Target // zero value means x86_64-linux-gnu
	Machine  Machine
	Tracer   trace.Tracer
	UBChecks bool // value of the UbChecks nullary operation
}

// InterpCx is the state of one evaluation.
type InterpCx struct {
	Prog     *mir.Program
	Types    *types.Interner
	Layout   *layout.LayoutEngine
	Mem      *memory.Memory
	Machine  Machine
	Tracer   trace.Tracer
	Files    *source.FileSet
	UBChecks bool

	// Steps counts calls of Step that did work.
	Steps uint64

	stack    []*Frame
	statics  map[mir.StaticID]memory.Pointer
	consts   map[string]memory.Pointer
	storage  map[*mir.Body][]bool
	printer  *mir.Printer
	result   *OpTy
	panicMsg string

	curSpan source.Span
	curStmt *mir.Statement
	curTerm *mir.Terminator
}

// New creates a context for prog. The program is expected to be validated.
func New(prog *mir.Program, opts Options) (*InterpCx, error) {
	if prog == nil || prog.Types == nil {
		return nil, errors.New("interp: program without types")
	}
	if opts.Machine == nil {
		return nil, errors.New("interp: no machine")
	}
	target := opts.Target
	if target.PtrSize == 0 {
		target = layout.X86_64LinuxGNU()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	return &InterpCx{
		Prog:     prog,
		Types:    prog.Types,
		Layout:   layout.New(target, prog.Types),
		Mem:      memory.New(target),
		Machine:  opts.Machine,
		Tracer:   tracer,
		Files:    prog.Files(),
		UBChecks: opts.UBChecks,
		statics:  make(map[mir.StaticID]memory.Pointer),
		consts:   make(map[string]memory.Pointer),
		storage:  make(map[*mir.Body][]bool),
		printer:  mir.NewPrinter(prog),
	}, nil
}

// Start pushes the root frame for fn. Arguments are written into locals
// 1..=len(args) in order.
func (cx *InterpCx) Start(fn mir.BodyID, generics []types.TypeID, args ...memory.Immediate) error {
	if len(cx.stack) != 0 {
		return errors.New("interp: evaluation already started")
	}
	body, ok := cx.Prog.Body(fn)
	if !ok {
		return fault.Errorf(fault.CodeUnknownFunc, "fn#%d does not exist", fn)
	}
	if len(args) != body.ArgCount {
		return fault.Errorf(fault.CodeBadShape, "%s takes %d arguments, got %d", body.Name, body.ArgCount, len(args))
	}
	cx.result = nil
	cx.curSpan = body.Span
	if _, err := cx.pushFrame(fn, body, generics); err != nil {
		return err
	}
	for i, a := range args {
		pl, err := cx.localPlace(len(cx.stack)-1, mir.LocalID(i+1))
		if err != nil {
			return err
		}
		if err := cx.writeImmediate(a, pl); err != nil {
			return cx.annotate(err)
		}
	}
	return nil
}

// Run steps until the stack is empty.
func (cx *InterpCx) Run() error {
	for {
		more, err := cx.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Finished reports whether the root frame returned.
func (cx *InterpCx) Finished() bool {
	return len(cx.stack) == 0 && cx.result != nil
}

// Depth is the number of frames on the stack.
func (cx *InterpCx) Depth() int {
	return len(cx.stack)
}

// Frames returns the stack, bottom first. The frames must not be modified.
func (cx *InterpCx) Frames() []*Frame {
	return cx.stack
}

// Frame returns the current frame, or nil when the stack is empty.
func (cx *InterpCx) Frame() *Frame {
	if len(cx.stack) == 0 {
		return nil
	}
	return cx.stack[len(cx.stack)-1]
}

func (cx *InterpCx) frame() *Frame {
	f := cx.Frame()
	if f == nil {
		cx.bug("no current frame")
	}
	return f
}

// Result returns the value returned by the root frame.
func (cx *InterpCx) Result() (memory.Immediate, *layout.TypeLayout, error) {
	if cx.result == nil {
		return memory.Immediate{}, nil, errNotFinished
	}
	imm, err := cx.readImmediate(*cx.result)
	return imm, cx.result.Layout, err
}

// ResultBytes returns the target-order bytes of the root frame's return value.
func (cx *InterpCx) ResultBytes() ([]byte, error) {
	if cx.result == nil {
		return nil, errNotFinished
	}
	if cx.result.Mem == nil {
		return nil, nil
	}
	return cx.Mem.ReadBytes(cx.result.Mem.Ptr, cx.result.Layout.Size)
}

// Printer renders IR of the running program.
func (cx *InterpCx) Printer() *mir.Printer {
	return cx.printer
}

// storageLocals marks the locals of b whose lifetime is managed by
// StorageLive/StorageDead; all others are live for the whole frame.
func (cx *InterpCx) storageLocals(b *mir.Body) []bool {
	if s, ok := cx.storage[b]; ok {
		return s
	}
	s := make([]bool, len(b.Locals))
	for bi := range b.Blocks {
		for _, st := range b.Blocks[bi].Statements {
			if (st.Kind == mir.StmtStorageLive || st.Kind == mir.StmtStorageDead) &&
				int(st.Local) > b.ArgCount && int(st.Local) < len(s) {
				s[st.Local] = true
			}
		}
	}
	cx.storage[b] = s
	return s
}

func (cx *InterpCx) pushFrame(id mir.BodyID, body *mir.Body, generics []types.TypeID) (*Frame, error) {
	if len(generics) != body.Generics {
		return nil, fault.Errorf(fault.CodeBadShape, "%s takes %d generic arguments, got %d", body.Name, body.Generics, len(generics))
	}
	if len(body.Blocks) == 0 || len(body.Locals) == 0 {
		return nil, fault.Errorf(fault.CodeBadShape, "%s has no body", body.Name)
	}
	f := &Frame{
		ID:       id,
		Body:     body,
		Loc:      At(0, 0),
		Generics: generics,
		locals:   make([]localState, len(body.Locals)),
		target:   mir.NoBlockID,
	}
	managed := cx.storageLocals(body)
	for i, l := range body.Locals {
		ty := l.Type
		if len(generics) > 0 && cx.Types.HasParams(ty) {
			ty = cx.Types.Subst(ty, generics)
		}
		lay, err := cx.layoutOf(ty)
		if err != nil {
			return nil, err
		}
		if lay.Unsized {
			return nil, fault.Errorf(fault.CodeLayout, "local _%d of %s has unsized type %s", i, body.Name, cx.Types.Label(ty))
		}
		f.locals[i] = localState{live: !managed[i], imm: memory.Uninit(), layout: lay}
	}
	cx.stack = append(cx.stack, f)
	cx.traceFrame("push", f)
	return f, nil
}

// popFrame removes the current frame and frees its stack allocations.
func (cx *InterpCx) popFrame(unwinding bool) (*Frame, error) {
	f := cx.frame()
	var errs []error
	for i := range f.locals {
		if err := cx.releaseLocal(&f.locals[i]); err != nil {
			errs = append(errs, err)
		}
	}
	cx.stack = cx.stack[:len(cx.stack)-1]
	if unwinding {
		cx.traceFrame("unwind", f)
	} else {
		cx.traceFrame("pop", f)
	}
	return f, errors.Join(errs...)
}

func (cx *InterpCx) releaseLocal(st *localState) error {
	var err error
	if st.allocated {
		err = cx.Mem.Deallocate(st.ptr, memory.KindStack)
	}
	st.allocated = false
	st.ptr = memory.Pointer{}
	st.imm = memory.Uninit()
	return err
}

func (cx *InterpCx) storageLive(l mir.LocalID) error {
	f := cx.frame()
	if int(l) < 0 || int(l) >= len(f.locals) {
		cx.bug("StorageLive of unknown local _%d", l)
	}
	st := &f.locals[l]
	if err := cx.releaseLocal(st); err != nil {
		return err
	}
	st.live = true
	return nil
}

func (cx *InterpCx) storageDead(l mir.LocalID) error {
	f := cx.frame()
	if int(l) < 0 || int(l) >= len(f.locals) {
		cx.bug("StorageDead of unknown local _%d", l)
	}
	st := &f.locals[l]
	if err := cx.releaseLocal(st); err != nil {
		return err
	}
	st.live = false
	return nil
}

// instantiate substitutes the current frame's generic arguments into ty.
func (cx *InterpCx) instantiate(ty types.TypeID) types.TypeID {
	f := cx.Frame()
	if f == nil || len(f.Generics) == 0 || !cx.Types.HasParams(ty) {
		return ty
	}
	return cx.Types.Subst(ty, f.Generics)
}

func (cx *InterpCx) layoutOf(ty types.TypeID) (*layout.TypeLayout, error) {
	l, err := cx.Layout.LayoutOf(ty)
	if err != nil {
		return nil, fault.Errorf(fault.CodeLayout, "%v", err)
	}
	return l, nil
}

// LayoutOf is the layout of ty for the context's target.
func (cx *InterpCx) LayoutOf(ty types.TypeID) (*layout.TypeLayout, error) {
	return cx.layoutOf(ty)
}

// AllocStatic allocates and initializes the memory of s.
func (cx *InterpCx) AllocStatic(s *mir.Static, kind memory.AllocKind) (memory.Pointer, error) {
	l, err := cx.layoutOf(s.Type)
	if err != nil {
		return memory.Pointer{}, err
	}
	init := s.Init
	if init == nil {
		init = make([]byte, l.Size)
	}
	if len(init) != l.Size {
		return memory.Pointer{}, fault.Errorf(fault.CodeBadShape,
			"static %s has %d initializer bytes for a %d-byte type", s.Name, len(init), l.Size)
	}
	ptr, err := cx.Mem.AllocateBytes(init, max(l.Align, 1), kind, s.Mutable)
	if err != nil {
		return memory.Pointer{}, err
	}
	if a, ok := cx.Mem.Alloc(ptr.Prov.Alloc); ok {
		a.Name = s.Name
	}
	return ptr, nil
}

func (cx *InterpCx) staticPointer(id mir.StaticID) (memory.Pointer, error) {
	if ptr, ok := cx.statics[id]; ok {
		return ptr, nil
	}
	s, ok := cx.Prog.Static(id)
	if !ok {
		return memory.Pointer{}, fault.Errorf(fault.CodeBadShape, "static#%d does not exist", id)
	}
	if s.ThreadLocal {
		return memory.Pointer{}, fault.Errorf(fault.CodeBadShape, "thread-local static %s used as a constant", s.Name)
	}
	ptr, err := cx.AllocStatic(s, memory.KindStatic)
	if err != nil {
		return memory.Pointer{}, err
	}
	cx.statics[id] = ptr
	return ptr, nil
}

// internBytes returns an immutable allocation holding data.
func (cx *InterpCx) internBytes(data []byte, align int) (memory.Pointer, error) {
	key := fmt.Sprintf("%d:%s", align, data)
	if ptr, ok := cx.consts[key]; ok {
		return ptr, nil
	}
	ptr, err := cx.Mem.AllocateBytes(data, align, memory.KindStatic, false)
	if err != nil {
		return memory.Pointer{}, err
	}
	cx.consts[key] = ptr
	return ptr, nil
}

// Failures ------------------------------------------------------------------

func (cx *InterpCx) setStatement(s *mir.Statement) {
	cx.curStmt, cx.curTerm = s, nil
	cx.curSpan = s.Span
}

func (cx *InterpCx) setTerminator(t *mir.Terminator) {
	cx.curStmt, cx.curTerm = nil, t
	cx.curSpan = t.Span
}

func (cx *InterpCx) context() string {
	switch {
	case cx.curStmt != nil:
		return cx.printer.Statement(cx.curStmt)
	case cx.curTerm != nil:
		return cx.printer.Terminator(cx.curTerm)
	default:
		return ""
	}
}

// bug raises an internal-invariant violation for the current statement.
func (cx *InterpCx) bug(format string, args ...any) {
	fault.Raise(cx.curSpan, cx.context(), format, args...)
}

// annotate attaches the current span and a backtrace to a failure.
func (cx *InterpCx) annotate(err error) error {
	if err == nil {
		return nil
	}
	var fe *fault.Error
	if !errors.As(err, &fe) {
		fe = &fault.Error{Code: fault.CodeBadShape, Message: err.Error()}
	}
	if fe.Annotated() {
		return fe
	}
	if fe.Span.Empty() {
		fe.Span = cx.curSpan
	}
	fe.Backtrace = cx.Backtrace()
	return fe
}

// Backtrace describes the stack, innermost frame first.
func (cx *InterpCx) Backtrace() []fault.BacktraceFrame {
	frames := make([]fault.BacktraceFrame, 0, len(cx.stack))
	for i := len(cx.stack) - 1; i >= 0; i-- {
		f := cx.stack[i]
		frames = append(frames, fault.BacktraceFrame{
			FuncName: f.Body.Name,
			Location: f.Loc.String(),
			Span:     f.Span(),
		})
	}
	return frames
}

// Span is the span of what f executes next.
func (f *Frame) Span() source.Span {
	if s := f.CurrentStatement(); s != nil {
		return s.Span
	}
	if blk := f.CurrentBlock(); blk != nil {
		return blk.Terminator.Span
	}
	return f.Body.Span
}
