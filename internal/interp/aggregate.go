package interp

import (
	"fortio.org/safecast"

	"mirvm/internal/fault"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
)

// writeAggregate initializes dest field by field, then writes the
// discriminant. Padding is left uninitialized.
func (cx *InterpCx) writeAggregate(agg *mir.Aggregate, dest PlaceTy) error {
	if err := cx.writeUninit(dest); err != nil {
		return err
	}

	variant := 0
	variantDest := dest
	active := -1
	switch agg.Kind.Kind {
	case mir.AggAdt:
		variant = agg.Kind.Variant
		var err error
		if variantDest, err = cx.projectDowncast(dest, variant); err != nil {
			return err
		}
		if agg.Kind.HasActive {
			active = agg.Kind.ActiveField
		}
	case mir.AggRawPtr:
		return cx.writeRawPtr(agg.Operands, dest)
	}

	if active >= 0 && len(agg.Operands) != 1 {
		cx.bug("aggregate with an active field has %d operands", len(agg.Operands))
	}
	for i, operand := range agg.Operands {
		field := i
		if active >= 0 {
			field = active
		}
		fieldDest, err := cx.projectField(variantDest, field)
		if err != nil {
			return err
		}
		op, err := cx.evalOperand(operand, fieldDest.Layout)
		if err != nil {
			return err
		}
		if err := cx.copyOp(op, fieldDest); err != nil {
			return err
		}
	}
	return cx.writeDiscriminant(variant, dest)
}

// writeRawPtr builds a pointer from its data pointer and metadata.
func (cx *InterpCx) writeRawPtr(operands []mir.Operand, dest PlaceTy) error {
	if len(operands) != 2 {
		cx.bug("raw pointer aggregate has %d operands, expected 2", len(operands))
	}
	data, err := cx.evalOperand(operands[0], nil)
	if err != nil {
		return err
	}
	ptr, err := cx.readPointer(data)
	if err != nil {
		return err
	}
	meta, err := cx.evalOperand(operands[1], nil)
	if err != nil {
		return err
	}
	ps := cx.Mem.PtrSize()
	imm := memory.ImmFromScalar(memory.ScalarFromPointer(ptr, ps))
	if !meta.Layout.IsZST() {
		m, err := cx.readScalar(meta)
		if err != nil {
			return err
		}
		imm = memory.ImmFromPair(imm.A, m)
	}
	return cx.copyOp(OpTy{Layout: dest.Layout, Imm: imm}, dest)
}

// writeRepeat fills an array with copies of one operand.
func (cx *InterpCx) writeRepeat(operand mir.Operand, count uint64, dest PlaceTy) error {
	src, err := cx.evalOperand(operand, nil)
	if err != nil {
		return err
	}
	if src.Layout.Unsized {
		cx.bug("repeat of unsized operand of type %s", cx.Types.Label(src.Layout.Type))
	}
	if dest, err = cx.forceAllocation(dest); err != nil {
		return err
	}
	n, err := cx.placeLen(dest)
	if err != nil {
		return err
	}
	if n != count {
		cx.bug("repeat of %d elements into an array of %d", count, n)
	}
	if n == 0 {
		return cx.Mem.CheckAccess(dest.mem.Ptr, 0, true)
	}
	first, err := cx.projectIndex(dest, 0)
	if err != nil {
		return err
	}
	if err := cx.copyOp(src, first); err != nil {
		return err
	}
	size := first.Layout.Size
	rest, err := safecast.Conv[int](n - 1)
	if err != nil {
		return fault.Errorf(fault.CodeBadShape, "repeat count %d: %v", n, err)
	}
	ptr := first.mem.Ptr
	return cx.Mem.CopyRepeatedly(ptr, ptr.Offset(int64(size)), size, rest, true)
}
