package interp

import (
	"fmt"

	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

// Location is where a frame will continue: a statement index inside a
// block, or the unwinding marker. Stmt equal to the statement count means
// the terminator runs next.
type Location struct {
	Block     mir.BlockID
	Stmt      int
	Unwinding bool
}

// At returns the location of statement stmt of block bb.
func At(bb mir.BlockID, stmt int) Location {
	return Location{Block: bb, Stmt: stmt}
}

// Unwinding is the location of a frame propagating a panic.
var Unwinding = Location{Block: mir.NoBlockID, Unwinding: true}

func (l Location) String() string {
	if l.Unwinding {
		return "unwinding"
	}
	return fmt.Sprintf("bb%d[%d]", l.Block, l.Stmt)
}

// localState is the storage of one local. A live local either holds an
// immediate (never addressed) or points to its stack allocation.
type localState struct {
	live      bool
	allocated bool
	ptr       memory.Pointer
	imm       memory.Immediate
	layout    *layout.TypeLayout
}

// Frame is one activation of a body.
type Frame struct {
	ID       mir.BodyID
	Body     *mir.Body
	Loc      Location
	Generics []types.TypeID

	locals []localState

	// Set for frames pushed by a Call terminator.
	hasCaller bool
	dest      PlaceTy          // caller place receiving the return value
	target    mir.BlockID      // caller block to continue at, NoBlockID for diverging calls
	unwind    mir.UnwindAction // what the caller does when this frame unwinds
}

// Local reports the type and layout of local l together with whether it is live.
func (f *Frame) Local(l mir.LocalID) (*layout.TypeLayout, bool) {
	if int(l) < 0 || int(l) >= len(f.locals) {
		return nil, false
	}
	return f.locals[l].layout, f.locals[l].live
}

// Allocated reports whether local l lives in memory.
func (f *Frame) Allocated(l mir.LocalID) bool {
	return int(l) >= 0 && int(l) < len(f.locals) && f.locals[l].allocated
}

// CurrentBlock returns the block at Loc, or nil while unwinding.
func (f *Frame) CurrentBlock() *mir.BasicBlock {
	if f.Loc.Unwinding {
		return nil
	}
	return f.Body.Block(f.Loc.Block)
}

// CurrentStatement returns the statement at Loc, or nil at a terminator.
func (f *Frame) CurrentStatement() *mir.Statement {
	blk := f.CurrentBlock()
	if blk == nil || f.Loc.Stmt >= len(blk.Statements) {
		return nil
	}
	return &blk.Statements[f.Loc.Stmt]
}

// LocalValue renders the current value of local l of f for debuggers.
func (cx *InterpCx) LocalValue(f *Frame, l mir.LocalID) string {
	if int(l) < 0 || int(l) >= len(f.locals) {
		return "<none>"
	}
	st := &f.locals[l]
	switch {
	case !st.live:
		return "<dead>"
	case !st.allocated:
		return st.imm.String()
	case !holdsImmediate(st.layout):
		return fmt.Sprintf("<in memory at %s>", st.ptr)
	}
	imm, err := cx.readImmediate(OpTy{Layout: st.layout, Mem: &MemPlace{Ptr: st.ptr}})
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return imm.String()
}
