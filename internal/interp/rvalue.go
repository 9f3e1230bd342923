package interp

import (
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
)

// evalRvalueIntoPlace computes rv and stores it into place. The destination
// is resolved first so its layout can guide operand evaluation.
func (cx *InterpCx) evalRvalueIntoPlace(rv *mir.Rvalue, place mir.Place) error {
	dest, err := cx.evalPlace(place)
	if err != nil {
		return err
	}

	switch rv.Kind {
	case mir.RvalueThreadLocalRef:
		ptr, err := cx.Machine.ThreadLocalStaticPointer(cx, rv.Static)
		if err != nil {
			return err
		}
		return cx.writeScalar(memory.ScalarFromPointer(ptr, cx.Mem.PtrSize()), dest)

	case mir.RvalueUse:
		op, err := cx.evalOperand(rv.Operand, dest.Layout)
		if err != nil {
			return err
		}
		return cx.copyOp(op, dest)

	case mir.RvalueCopyForDeref:
		op, err := cx.evalOperand(mir.Copy(rv.Place), dest.Layout)
		if err != nil {
			return err
		}
		return cx.copyOp(op, dest)

	case mir.RvalueBinaryOp:
		var hint *layout.TypeLayout
		if rv.BinOp.IsLeftHomogeneous() {
			hint = dest.Layout
		}
		left, right, err := cx.evalBinaryOperands(rv.BinOp, rv.Binary, hint)
		if err != nil {
			return err
		}
		v, err := cx.wrappingBinaryOp(rv.BinOp, left, right)
		if err != nil {
			return err
		}
		return cx.writeImmediate(v.Imm, dest)

	case mir.RvalueCheckedBinaryOp:
		left, right, err := cx.evalBinaryOperands(rv.BinOp, rv.Binary, nil)
		if err != nil {
			return err
		}
		v, overflow, err := cx.overflowingBinaryOp(rv.BinOp, left, right)
		if err != nil {
			return err
		}
		return cx.writePair(v, overflow, dest)

	case mir.RvalueUnaryOp:
		op, err := cx.evalOperand(rv.Operand, dest.Layout)
		if err != nil {
			return err
		}
		v, err := cx.readImmTy(op)
		if err != nil {
			return err
		}
		res, err := cx.unaryOp(rv.UnOp, v)
		if err != nil {
			return err
		}
		if res.Layout.Type != dest.Layout.Type {
			cx.bug("%s of %s stored into %s", rv.UnOp, cx.Types.Label(res.Layout.Type), cx.Types.Label(dest.Layout.Type))
		}
		return cx.writeImmediate(res.Imm, dest)

	case mir.RvalueAggregate:
		if rv.Aggregate == nil {
			cx.bug("aggregate without payload")
		}
		return cx.writeAggregate(rv.Aggregate, dest)

	case mir.RvalueRepeat:
		return cx.writeRepeat(rv.Operand, rv.Count, dest)

	case mir.RvalueLen:
		src, err := cx.evalPlace(rv.Place)
		if err != nil {
			return err
		}
		n, err := cx.placeLen(src)
		if err != nil {
			return err
		}
		return cx.writeScalar(memory.ScalarFromUint(n, cx.Mem.PtrSize()), dest)

	case mir.RvalueRef:
		src, err := cx.evalPlace(rv.Place)
		if err != nil {
			return err
		}
		mp, err := cx.forceAllocation(src)
		if err != nil {
			return err
		}
		kind := mir.RetagDefault
		if rv.Borrow.AllowsTwoPhase() {
			kind = mir.RetagTwoPhase
		}
		val, err := cx.Machine.RetagPtrValue(cx, kind, cx.placeToRef(mp))
		if err != nil {
			return err
		}
		return cx.writeImmediate(val, dest)

	case mir.RvalueAddressOf:
		baseRaw := false
		if rv.Place.IsIndirectFirstProjection() {
			f := cx.frame()
			if int(rv.Place.Local) < len(f.Body.Locals) {
				baseRaw = cx.Types.IsUnsafePtr(f.Body.Locals[rv.Place.Local].Type)
			}
		}
		src, err := cx.evalPlace(rv.Place)
		if err != nil {
			return err
		}
		mp, err := cx.forceAllocation(src)
		if err != nil {
			return err
		}
		val := cx.placeToRef(mp)
		if !baseRaw {
			if val, err = cx.Machine.RetagPtrValue(cx, mir.RetagRaw, val); err != nil {
				return err
			}
		}
		return cx.writeImmediate(val, dest)

	case mir.RvalueNullaryOp:
		return cx.writeNullaryOp(rv, dest)

	case mir.RvalueShallowInitBox:
		op, err := cx.evalOperand(rv.Operand, nil)
		if err != nil {
			return err
		}
		imm, err := cx.readImmediate(op)
		if err != nil {
			return err
		}
		if imm.Kind != memory.ImmScalar || dest.Layout.ABI != layout.ABIScalar {
			cx.bug("ShallowInitBox needs a thin pointer operand and a thin box destination")
		}
		return cx.writeImmediate(imm, dest)

	case mir.RvalueCast:
		op, err := cx.evalOperand(rv.Operand, nil)
		if err != nil {
			return err
		}
		return cx.cast(op, rv.Cast, cx.instantiate(rv.Type), dest)

	case mir.RvalueDiscriminant:
		src, err := cx.evalPlaceToOp(rv.Place)
		if err != nil {
			return err
		}
		variant, err := cx.readDiscriminant(src)
		if err != nil {
			return err
		}
		d, err := cx.discriminantForVariant(src.Layout, variant)
		if err != nil {
			return err
		}
		return cx.writeImmediate(d.Imm, dest)

	default:
		cx.bug("unknown rvalue kind %d", rv.Kind)
		return nil
	}
}

// evalBinaryOperands evaluates left with hint and right with the left layout
// when the operator keeps both operand types equal.
func (cx *InterpCx) evalBinaryOperands(binop mir.BinOp, b *mir.BinaryOperands, hint *layout.TypeLayout) (ImmTy, ImmTy, error) {
	if b == nil {
		cx.bug("binary operation without operands")
	}
	lop, err := cx.evalOperand(b.Left, hint)
	if err != nil {
		return ImmTy{}, ImmTy{}, err
	}
	var rhint *layout.TypeLayout
	if binop.IsRightHomogeneous() {
		rhint = lop.Layout
	}
	rop, err := cx.evalOperand(b.Right, rhint)
	if err != nil {
		return ImmTy{}, ImmTy{}, err
	}
	left, err := cx.readImmTy(lop)
	if err != nil {
		return ImmTy{}, ImmTy{}, err
	}
	right, err := cx.readImmTy(rop)
	if err != nil {
		return ImmTy{}, ImmTy{}, err
	}
	return left, right, nil
}

// writePair stores (value, overflowed) into a two-field destination.
func (cx *InterpCx) writePair(v ImmTy, overflow bool, dest PlaceTy) error {
	l := dest.Layout
	if len(l.Fields) != 2 {
		cx.bug("checked operation into %s", cx.Types.Label(l.Type))
	}
	if l.ABI == layout.ABIScalarPair && v.Imm.Kind == memory.ImmScalar &&
		l.A.Size == v.Imm.A.Size && l.Fields[1].Offset == l.PairOffset {
		return cx.writeImmediate(memory.ImmFromPair(v.Imm.A, memory.ScalarFromBool(overflow)), dest)
	}
	val, err := cx.projectField(dest, 0)
	if err != nil {
		return err
	}
	if err := cx.writeImmediate(v.Imm, val); err != nil {
		return err
	}
	flag, err := cx.projectField(dest, 1)
	if err != nil {
		return err
	}
	return cx.writeScalar(memory.ScalarFromBool(overflow), flag)
}

func (cx *InterpCx) writeNullaryOp(rv *mir.Rvalue, dest PlaceTy) error {
	ty := cx.instantiate(rv.Type)
	l, err := cx.layoutOf(ty)
	if err != nil {
		return err
	}
	if (rv.NullOp == mir.NullSizeOf || rv.NullOp == mir.NullAlignOf) && l.Unsized {
		cx.bug("%s called for unsized type %s", rv.NullOp, cx.Types.Label(ty))
	}
	var val uint64
	switch rv.NullOp {
	case mir.NullSizeOf:
		val = uint64(l.Size)
	case mir.NullAlignOf:
		val = uint64(l.Align)
	case mir.NullOffsetOf:
		path := make([]layout.FieldStep, len(rv.Fields))
		for i, f := range rv.Fields {
			path[i] = layout.FieldStep{Variant: f.Variant, Field: f.Field}
		}
		off, err := cx.Layout.OffsetOfSubfield(l, path)
		if err != nil {
			cx.bug("offset_of on %s: %v", cx.Types.Label(ty), err)
		}
		val = uint64(off)
	case mir.NullUbChecks:
		return cx.writeScalar(memory.ScalarFromBool(cx.UBChecks), dest)
	default:
		cx.bug("unknown nullary operation %d", rv.NullOp)
	}
	return cx.writeScalar(memory.ScalarFromUint(val, cx.Mem.PtrSize()), dest)
}
