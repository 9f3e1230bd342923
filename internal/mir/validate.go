package mir

import (
	"errors"
	"fmt"

	"mirvm/internal/types"
)

// Validate checks structural invariants of every body in prog.
// Type-level checks that need layouts are left to the interpreter.
func Validate(prog *Program) error {
	if prog == nil {
		return errors.New("nil program")
	}
	var errs []error
	if prog.Types == nil {
		errs = append(errs, errors.New("program has no type interner"))
	}
	if prog.Entry != NoBodyID {
		if _, ok := prog.Body(prog.Entry); !ok {
			errs = append(errs, fmt.Errorf("entry fn#%d does not exist", prog.Entry))
		}
	}
	for i, b := range prog.Bodies {
		if b == nil {
			errs = append(errs, fmt.Errorf("fn#%d: missing body", i))
			continue
		}
		if err := validateBody(prog, b); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", b.Name, err))
		}
	}
	if prog.Types != nil {
		for i, s := range prog.Statics {
			if _, ok := prog.Types.Lookup(s.Type); !ok {
				errs = append(errs, fmt.Errorf("static#%d %s: invalid type", i, s.Name))
			}
		}
	}
	return errors.Join(errs...)
}

type bodyChecker struct {
	prog *Program
	body *Body
	errs []error
}

func (c *bodyChecker) errorf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func validateBody(prog *Program, b *Body) error {
	c := &bodyChecker{prog: prog, body: b}

	if len(b.Locals) == 0 {
		c.errorf("no return local")
	}
	if b.ArgCount < 0 || b.ArgCount > len(b.Locals)-1 {
		c.errorf("argument count %d exceeds %d locals", b.ArgCount, len(b.Locals))
	}
	if len(b.Blocks) == 0 {
		c.errorf("no basic blocks")
	}
	for i, l := range b.Locals {
		if prog.Types != nil {
			if _, ok := prog.Types.Lookup(l.Type); !ok {
				c.errorf("_%d: invalid type", i)
			}
		}
	}
	for bi := range b.Blocks {
		blk := &b.Blocks[bi]
		for si := range blk.Statements {
			c.statement(BlockID(bi), si, &blk.Statements[si])
		}
		c.terminator(BlockID(bi), blk)
	}
	return errors.Join(c.errs...)
}

func (c *bodyChecker) local(where string, l LocalID) {
	if l < 0 || int(l) >= len(c.body.Locals) {
		c.errorf("%s: local _%d does not exist", where, l)
	}
}

func (c *bodyChecker) block(where string, bb BlockID) {
	if bb < 0 || int(bb) >= len(c.body.Blocks) {
		c.errorf("%s: target bb%d does not exist", where, bb)
	}
}

func (c *bodyChecker) place(where string, p Place) {
	c.local(where, p.Local)
	for _, e := range p.Proj {
		if e.Kind == ProjIndex {
			c.local(where, e.Index)
		}
		if e.Kind == ProjConstantIndex && e.Offset >= e.MinLength && e.MinLength > 0 {
			c.errorf("%s: constant index %d not below min length %d", where, e.Offset, e.MinLength)
		}
	}
}

func (c *bodyChecker) operand(where string, op Operand) {
	switch op.Kind {
	case OperandCopy, OperandMove:
		c.place(where, op.Place)
	case OperandConst:
		if op.Const.Kind == ConstStaticAddr {
			if _, ok := c.prog.Static(op.Const.Static); !ok {
				c.errorf("%s: static#%d does not exist", where, op.Const.Static)
			}
		}
	default:
		c.errorf("%s: unknown operand kind %d", where, op.Kind)
	}
}

func (c *bodyChecker) statement(bb BlockID, idx int, s *Statement) {
	where := fmt.Sprintf("bb%d[%d]", bb, idx)
	switch s.Kind {
	case StmtAssign:
		c.place(where, s.Place)
		c.rvalue(where, &s.Rvalue)
	case StmtSetDiscriminant, StmtDeinit, StmtFakeRead, StmtRetag, StmtPlaceMention, StmtAscribeUserType:
		c.place(where, s.Place)
	case StmtStorageLive, StmtStorageDead:
		c.local(where, s.Local)
		if s.Local == ReturnLocal || int(s.Local) <= c.body.ArgCount {
			c.errorf("%s: storage statements cannot target the return place or arguments", where)
		}
	case StmtIntrinsic:
		if s.Intrinsic == nil {
			c.errorf("%s: intrinsic statement without payload", where)
			return
		}
		switch s.Intrinsic.Kind {
		case IntrinsicAssume:
			c.operand(where, s.Intrinsic.Op)
		case IntrinsicCopyNonOverlapping:
			c.operand(where, s.Intrinsic.Src)
			c.operand(where, s.Intrinsic.Dst)
			c.operand(where, s.Intrinsic.Count)
		}
	case StmtCoverage, StmtConstEvalCounter, StmtNop:
	default:
		c.errorf("%s: unknown statement kind %d", where, s.Kind)
	}
}

func (c *bodyChecker) rvalue(where string, rv *Rvalue) {
	switch rv.Kind {
	case RvalueUse, RvalueUnaryOp, RvalueRepeat, RvalueShallowInitBox, RvalueCast:
		c.operand(where, rv.Operand)
	case RvalueCopyForDeref:
		c.place(where, rv.Place)
		if !rv.Place.IsIndirectFirstProjection() {
			c.errorf("%s: deref_copy of a place without a deref", where)
		}
	case RvalueLen, RvalueRef, RvalueAddressOf, RvalueDiscriminant:
		c.place(where, rv.Place)
	case RvalueBinaryOp, RvalueCheckedBinaryOp:
		if rv.Binary == nil {
			c.errorf("%s: binary operation without operands", where)
			return
		}
		c.operand(where, rv.Binary.Left)
		c.operand(where, rv.Binary.Right)
	case RvalueAggregate:
		if rv.Aggregate == nil {
			c.errorf("%s: aggregate without payload", where)
			return
		}
		for _, op := range rv.Aggregate.Operands {
			c.operand(where, op)
		}
		if rv.Aggregate.Kind.Kind == AggAdt && c.prog.Types != nil {
			info, _, ok := c.prog.Types.AdtOf(rv.Aggregate.Kind.Type)
			if !ok {
				c.errorf("%s: aggregate of non-ADT type", where)
			} else if rv.Aggregate.Kind.Variant < 0 || rv.Aggregate.Kind.Variant >= len(info.Variants) {
				c.errorf("%s: variant %d out of range for %s", where, rv.Aggregate.Kind.Variant, info.Name)
			}
		}
	case RvalueNullaryOp:
		if rv.NullOp != NullUbChecks && rv.Type == types.NoTypeID {
			c.errorf("%s: %s without a type", where, rv.NullOp)
		}
	case RvalueThreadLocalRef:
		s, ok := c.prog.Static(rv.Static)
		if !ok {
			c.errorf("%s: static#%d does not exist", where, rv.Static)
		} else if !s.ThreadLocal {
			c.errorf("%s: static %s is not thread-local", where, s.Name)
		}
	default:
		c.errorf("%s: unknown rvalue kind %d", where, rv.Kind)
	}
}

func (c *bodyChecker) unwind(where string, u UnwindAction) {
	if u.Kind != UnwindCleanup {
		return
	}
	c.block(where, u.Block)
	if blk := c.body.Block(u.Block); blk != nil && !blk.Cleanup {
		c.errorf("%s: unwind target bb%d is not a cleanup block", where, u.Block)
	}
}

func (c *bodyChecker) terminator(bb BlockID, blk *BasicBlock) {
	t := &blk.Terminator
	where := fmt.Sprintf("bb%d terminator", bb)
	switch t.Kind {
	case TermGoto:
		c.block(where, t.Target)
	case TermSwitchInt:
		c.operand(where, t.Discr)
		if t.Switch == nil {
			c.errorf("%s: switchInt without targets", where)
			return
		}
		if len(t.Switch.Values) != len(t.Switch.Blocks) {
			c.errorf("%s: %d values for %d targets", where, len(t.Switch.Values), len(t.Switch.Blocks))
		}
		for _, target := range t.Switch.Blocks {
			c.block(where, target)
		}
		c.block(where, t.Switch.Otherwise)
	case TermReturn, TermUnreachable, TermUnwindTerminate:
	case TermUnwindResume:
		if !blk.Cleanup {
			c.errorf("%s: resume outside a cleanup block", where)
		}
	case TermCall:
		call := t.Call
		if call == nil {
			c.errorf("%s: call without payload", where)
			return
		}
		callee, ok := c.prog.Body(call.Func)
		if !ok {
			c.errorf("%s: callee fn#%d does not exist", where, call.Func)
		} else {
			if len(call.Args) != callee.ArgCount {
				c.errorf("%s: %s takes %d arguments, got %d", where, callee.Name, callee.ArgCount, len(call.Args))
			}
			if len(call.Generics) != callee.Generics {
				c.errorf("%s: %s takes %d generic arguments, got %d", where, callee.Name, callee.Generics, len(call.Generics))
			}
		}
		for _, a := range call.Args {
			c.operand(where, a)
		}
		c.place(where, call.Dest)
		if call.Target != NoBlockID {
			c.block(where, call.Target)
		}
		c.unwind(where, call.Unwind)
	case TermAssert:
		if t.Assert == nil {
			c.errorf("%s: assert without payload", where)
			return
		}
		c.operand(where, t.Assert.Cond)
		c.block(where, t.Assert.Target)
		c.unwind(where, t.Assert.Unwind)
	case TermDrop:
		c.place(where, t.Place)
		c.block(where, t.Target)
		c.unwind(where, t.Unwind)
	case TermPanic:
		c.unwind(where, t.Unwind)
	default:
		c.errorf("%s: unknown terminator kind %d", where, t.Kind)
	}
}
