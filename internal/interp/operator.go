package interp

import (
	"github.com/holiman/uint256"

	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

// wrappingBinaryOp applies op and discards the overflow flag. Unchecked
// operators make overflow undefined behavior instead.
func (cx *InterpCx) wrappingBinaryOp(op mir.BinOp, left, right ImmTy) (ImmTy, error) {
	v, overflow, err := cx.overflowingBinaryOp(op, left, right)
	if err != nil {
		return ImmTy{}, err
	}
	if overflow && isUnchecked(op) {
		return ImmTy{}, fault.UB(fault.CodeArithOverflow, "overflow in %s", op)
	}
	return v, nil
}

func isUnchecked(op mir.BinOp) bool {
	switch op {
	case mir.BinAddUnchecked, mir.BinSubUnchecked, mir.BinMulUnchecked, mir.BinShlUnchecked, mir.BinShrUnchecked:
		return true
	}
	return false
}

// overflowingBinaryOp returns the wrapped result and whether it overflowed.
func (cx *InterpCx) overflowingBinaryOp(op mir.BinOp, left, right ImmTy) (ImmTy, bool, error) {
	lt := cx.Types.MustLookup(left.Layout.Type)
	if lt.IsPointerLike() {
		return cx.pointerBinaryOp(op, left, right)
	}
	l, err := cx.scalarOf(left)
	if err != nil {
		return ImmTy{}, false, err
	}
	r, err := cx.scalarOf(right)
	if err != nil {
		return ImmTy{}, false, err
	}
	if op.IsShift() {
		if !lt.IsInteger() || !cx.Types.MustLookup(right.Layout.Type).IsInteger() {
			cx.bug("%s of %s by %s", op, cx.Types.Label(left.Layout.Type), cx.Types.Label(right.Layout.Type))
		}
		return cx.shiftOp(op, lt, l, left.Layout, r, cx.Types.MustLookup(right.Layout.Type).Kind == types.KindInt)
	}
	if left.Layout.Type != right.Layout.Type {
		cx.bug("%s of mismatched types %s and %s", op, cx.Types.Label(left.Layout.Type), cx.Types.Label(right.Layout.Type))
	}
	switch lt.Kind {
	case types.KindBool:
		return cx.boolOp(op, l.Uint64() == 1, r.Uint64() == 1)
	case types.KindChar:
		return cx.compareOp(op, l.Bits.Cmp(&r.Bits))
	case types.KindInt, types.KindUint:
		return cx.intOp(op, lt.Kind == types.KindInt, l, r, left.Layout)
	default:
		return ImmTy{}, false, fault.Errorf(fault.CodeBadShape, "%s is not defined on %s", op, cx.Types.Label(left.Layout.Type))
	}
}

func (cx *InterpCx) scalarOf(v ImmTy) (memory.Scalar, error) {
	switch v.Imm.Kind {
	case memory.ImmScalar:
		return v.Imm.A, cx.checkScalar(v.Imm.A, v.Layout)
	case memory.ImmUninit:
		return memory.Scalar{}, fault.UB(fault.CodeUninitRead, "using uninitialized data of type %s", cx.Types.Label(v.Layout.Type))
	default:
		return memory.Scalar{}, fault.Errorf(fault.CodeBadShape, "expected a scalar of type %s, got a pair", cx.Types.Label(v.Layout.Type))
	}
}

func (cx *InterpCx) boolLayout() *layout.TypeLayout {
	l, err := cx.layoutOf(cx.Types.Builtins().Bool)
	if err != nil {
		cx.bug("bool has no layout: %v", err)
	}
	return l
}

func (cx *InterpCx) boolResult(b bool) ImmTy {
	return immOf(memory.ScalarFromBool(b), cx.boolLayout())
}

// compareOp evaluates a comparison given the three-way order of the operands.
func (cx *InterpCx) compareOp(op mir.BinOp, order int) (ImmTy, bool, error) {
	var b bool
	switch op {
	case mir.BinEq:
		b = order == 0
	case mir.BinNe:
		b = order != 0
	case mir.BinLt:
		b = order < 0
	case mir.BinLe:
		b = order <= 0
	case mir.BinGt:
		b = order > 0
	case mir.BinGe:
		b = order >= 0
	case mir.BinCmp:
		l, err := cx.layoutOf(cx.Types.Builtins().I8)
		if err != nil {
			return ImmTy{}, false, err
		}
		return immOf(memory.ScalarFromInt(int64(order), 1), l), false, nil
	default:
		return ImmTy{}, false, fault.Errorf(fault.CodeBadShape, "%s is not a comparison", op)
	}
	return cx.boolResult(b), false, nil
}

func (cx *InterpCx) boolOp(op mir.BinOp, l, r bool) (ImmTy, bool, error) {
	switch op {
	case mir.BinBitAnd:
		return cx.boolResult(l && r), false, nil
	case mir.BinBitOr:
		return cx.boolResult(l || r), false, nil
	case mir.BinBitXor:
		return cx.boolResult(l != r), false, nil
	}
	order := 0
	switch {
	case !l && r:
		order = -1
	case l && !r:
		order = 1
	}
	return cx.compareOp(op, order)
}

func extend(s memory.Scalar, signed bool) uint256.Int {
	if signed {
		return s.SignExtended()
	}
	return s.Bits
}

func signedCmp(a, b *uint256.Int) int {
	switch {
	case a.Eq(b):
		return 0
	case a.Slt(b):
		return -1
	default:
		return 1
	}
}

func (cx *InterpCx) intOp(op mir.BinOp, signed bool, ls, rs memory.Scalar, l *layout.TypeLayout) (ImmTy, bool, error) {
	size := ls.Size
	a, b := extend(ls, signed), extend(rs, signed)

	if op.IsComparison() || op == mir.BinCmp {
		if signed {
			return cx.compareOp(op, signedCmp(&a, &b))
		}
		return cx.compareOp(op, a.Cmp(&b))
	}

	var full uint256.Int
	checkOverflow := false
	switch op {
	case mir.BinAdd, mir.BinAddUnchecked:
		full.Add(&a, &b)
		checkOverflow = true
	case mir.BinSub, mir.BinSubUnchecked:
		full.Sub(&a, &b)
		checkOverflow = true
	case mir.BinMul, mir.BinMulUnchecked:
		full.Mul(&a, &b)
		checkOverflow = true
	case mir.BinDiv, mir.BinRem:
		if b.IsZero() {
			if op == mir.BinDiv {
				return ImmTy{}, false, fault.UB(fault.CodeDivisionByZero, "dividing by zero")
			}
			return ImmTy{}, false, fault.UB(fault.CodeDivisionByZero, "calculating the remainder with a divisor of zero")
		}
		if signed && isMinValue(ls) && isAllOnes(rs) {
			if op == mir.BinDiv {
				return ImmTy{}, false, fault.UB(fault.CodeArithOverflow, "overflow in signed division (dividing MIN by -1)")
			}
			return ImmTy{}, false, fault.UB(fault.CodeArithOverflow, "overflow in signed remainder (dividing MIN by -1)")
		}
		switch {
		case op == mir.BinDiv && signed:
			full.SDiv(&a, &b)
		case op == mir.BinDiv:
			full.Div(&a, &b)
		case signed:
			full.SMod(&a, &b)
		default:
			full.Mod(&a, &b)
		}
	case mir.BinBitAnd:
		full.And(&ls.Bits, &rs.Bits)
	case mir.BinBitOr:
		full.Or(&ls.Bits, &rs.Bits)
	case mir.BinBitXor:
		full.Xor(&ls.Bits, &rs.Bits)
	default:
		return ImmTy{}, false, fault.Errorf(fault.CodeBadShape, "%s is not defined on integers", op)
	}

	res := memory.ScalarFromBits(&full, size)
	overflow := false
	if checkOverflow {
		back := extend(res, signed)
		overflow = !back.Eq(&full)
	}
	return immOf(res, l), overflow, nil
}

func isMinValue(s memory.Scalar) bool {
	m := new(uint256.Int).Lsh(uint256.NewInt(1), uint(s.Size*8-1))
	return s.Bits.Eq(m)
}

func isAllOnes(s memory.Scalar) bool {
	ones := new(uint256.Int).SetAllOne()
	memory.Truncate(ones, s.Size)
	return s.Bits.Eq(ones)
}

// shiftOp shifts by the amount masked to the bit width of the left operand.
// The overflow flag reports an amount outside 0..bits.
func (cx *InterpCx) shiftOp(op mir.BinOp, lt types.Type, ls memory.Scalar, l *layout.TypeLayout, rs memory.Scalar, rsigned bool) (ImmTy, bool, error) {
	bits := uint64(ls.Size * 8)
	overflow := (rsigned && rs.IsNegative()) || !rs.Bits.IsUint64() || rs.Uint64() >= bits
	amount := uint(rs.Bits.Uint64() & (bits - 1))

	var out uint256.Int
	switch op {
	case mir.BinShl, mir.BinShlUnchecked:
		out.Lsh(&ls.Bits, amount)
	default:
		if lt.Kind == types.KindInt {
			ext := ls.SignExtended()
			out.SRsh(&ext, amount)
		} else {
			out.Rsh(&ls.Bits, amount)
		}
	}
	return immOf(memory.ScalarFromBits(&out, ls.Size), l), overflow, nil
}

// pointerBinaryOp handles comparisons of pointers and Offset.
func (cx *InterpCx) pointerBinaryOp(op mir.BinOp, left, right ImmTy) (ImmTy, bool, error) {
	if op == mir.BinOffset {
		return cx.offsetOp(left, right)
	}
	if left.Layout.Type != right.Layout.Type {
		cx.bug("%s of mismatched types %s and %s", op, cx.Types.Label(left.Layout.Type), cx.Types.Label(right.Layout.Type))
	}
	if left.Imm.Kind == memory.ImmUninit || right.Imm.Kind == memory.ImmUninit {
		return ImmTy{}, false, fault.UB(fault.CodeUninitRead, "comparing uninitialized pointers")
	}
	order := left.Imm.A.Bits.Cmp(&right.Imm.A.Bits)
	if order == 0 && left.Imm.Kind == memory.ImmPair {
		order = left.Imm.B.Bits.Cmp(&right.Imm.B.Bits)
	}
	return cx.compareOp(op, order)
}

// offsetOp advances a pointer by count elements of its pointee type.
func (cx *InterpCx) offsetOp(left, right ImmTy) (ImmTy, bool, error) {
	pointee, ok := cx.Types.Pointee(left.Layout.Type)
	if !ok || left.Layout.ABI != layout.ABIScalar {
		cx.bug("Offset of %s", cx.Types.Label(left.Layout.Type))
	}
	pl, err := cx.layoutOf(pointee)
	if err != nil {
		return ImmTy{}, false, err
	}
	ptrS, err := cx.scalarOf(left)
	if err != nil {
		return ImmTy{}, false, err
	}
	cnt, err := cx.scalarOf(right)
	if err != nil {
		return ImmTy{}, false, err
	}
	rt := cx.Types.MustLookup(right.Layout.Type)
	count := extend(cnt, rt.Kind == types.KindInt)
	var bytes uint256.Int
	bytes.Mul(&count, uint256.NewInt(uint64(pl.Size)))
	// the byte offset must fit isize
	back := memory.ScalarFromBits(&bytes, 8).SignExtended()
	if !back.Eq(&bytes) {
		return ImmTy{}, false, fault.UB(fault.CodeOutOfBounds, "overflowing pointer arithmetic: the total offset does not fit isize")
	}
	off := int64(bytes.Uint64())
	ptr := ptrS.ToPointer()
	if off != 0 {
		if !ptr.Prov.Valid() {
			return ImmTy{}, false, fault.UB(fault.CodeNullDeref, "pointer arithmetic on %s, which has no provenance", ptr)
		}
		if err := cx.Mem.CheckAccess(ptr, 0, false); err != nil {
			return ImmTy{}, false, err
		}
	}
	next := ptr.Offset(off)
	next.Addr &= addrMask(cx.Mem.PtrSize())
	if off != 0 {
		if err := cx.Mem.CheckAccess(next, 0, false); err != nil {
			return ImmTy{}, false, err
		}
	}
	return immOf(memory.ScalarFromPointer(next, cx.Mem.PtrSize()), left.Layout), false, nil
}

func addrMask(ptrSize int) uint64 {
	if ptrSize >= 8 {
		return ^uint64(0)
	}
	return 1<<(uint(ptrSize)*8) - 1
}

// unaryOp applies Not or Neg; both wrap.
func (cx *InterpCx) unaryOp(op mir.UnOp, v ImmTy) (ImmTy, error) {
	s, err := cx.scalarOf(v)
	if err != nil {
		return ImmTy{}, err
	}
	t := cx.Types.MustLookup(v.Layout.Type)
	switch {
	case t.Kind == types.KindBool && op == mir.UnNot:
		return immOf(memory.ScalarFromBool(s.Uint64() == 0), v.Layout), nil
	case t.IsInteger() && op == mir.UnNot:
		var out uint256.Int
		out.Not(&s.Bits)
		return immOf(memory.ScalarFromBits(&out, s.Size), v.Layout), nil
	case t.Kind == types.KindInt && op == mir.UnNeg:
		var out uint256.Int
		out.Neg(&s.Bits)
		return immOf(memory.ScalarFromBits(&out, s.Size), v.Layout), nil
	default:
		cx.bug("%s is not defined on %s", op, cx.Types.Label(v.Layout.Type))
		return ImmTy{}, nil
	}
}
