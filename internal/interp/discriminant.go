package interp

import (
	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
)

// readDiscriminant returns the variant index stored in op. Types that are
// not enums only have variant 0.
func (cx *InterpCx) readDiscriminant(op OpTy) (int, error) {
	l := op.Layout
	info, _, ok := cx.Types.AdtOf(l.Type)
	if !ok || !info.IsEnum {
		return 0, nil
	}
	if len(info.Variants) == 0 {
		return 0, fault.UB(fault.CodeInvalidTag, "reading the discriminant of %s, which has no variants", cx.Types.Label(l.Type))
	}
	if l.Tag == nil {
		return 0, nil
	}

	var tag memory.Scalar
	if op.Mem == nil {
		if op.Imm.Kind != memory.ImmScalar || l.ABI != layout.ABIScalar {
			return 0, fault.UB(fault.CodeUninitRead, "reading the discriminant of an uninitialized %s", cx.Types.Label(l.Type))
		}
		tag = op.Imm.A
	} else {
		if err := cx.Mem.CheckAlign(op.Mem.Ptr, l.Align); err != nil {
			return 0, err
		}
		s, err := cx.Mem.ReadScalar(op.Mem.Ptr.Offset(int64(l.Tag.Offset)), l.Tag.Size)
		if err != nil {
			return 0, err
		}
		tag = s
	}
	if tag.IsPtr() {
		return 0, fault.UB(fault.CodeInvalidTag, "enum tag of %s is a pointer", cx.Types.Label(l.Type))
	}

	var (
		discr int64
		fits  bool
	)
	if l.Tag.Signed {
		ext := tag.SignExtended()
		discr = int64(ext.Uint64())
		back := memory.ScalarFromInt(discr, 32)
		fits = back.Bits.Eq(&ext)
	} else {
		discr = int64(tag.Uint64())
		fits = tag.Bits.IsUint64() && discr >= 0
	}
	if fits {
		if v, ok := cx.Types.VariantForDiscr(l.Type, discr); ok {
			return v, nil
		}
	}
	return 0, fault.UB(fault.CodeInvalidTag, "enum value has invalid tag: %s", tag.Bits.Hex())
}

// discriminantForVariant is the discriminant value of variant of l's type,
// typed with the enum's discriminant type (u8 for other types).
func (cx *InterpCx) discriminantForVariant(l *layout.TypeLayout, variant int) (ImmTy, error) {
	info, _, ok := cx.Types.AdtOf(l.Type)
	if !ok || !info.IsEnum {
		dl, err := cx.layoutOf(cx.Types.Builtins().U8)
		if err != nil {
			return ImmTy{}, err
		}
		return immOf(memory.ScalarFromUint(0, dl.Size), dl), nil
	}
	if variant < 0 || variant >= len(info.Variants) {
		cx.bug("variant %d of %s", variant, cx.Types.Label(l.Type))
	}
	dl, err := cx.layoutOf(info.DiscrType)
	if err != nil {
		return ImmTy{}, err
	}
	return immOf(memory.ScalarFromInt(info.Variants[variant].Discr, dl.Size), dl), nil
}

// writeDiscriminant marks dest as holding variant.
func (cx *InterpCx) writeDiscriminant(variant int, dest PlaceTy) error {
	l := dest.Layout
	info, _, ok := cx.Types.AdtOf(l.Type)
	if !ok || !info.IsEnum {
		if variant != 0 {
			cx.bug("variant %d of non-enum type %s", variant, cx.Types.Label(l.Type))
		}
		return nil
	}
	if variant < 0 || variant >= len(info.Variants) {
		cx.bug("variant %d of %s", variant, cx.Types.Label(l.Type))
	}
	if l.Tag == nil {
		if variant != 0 {
			cx.bug("variant %d of single-variant enum %s", variant, cx.Types.Label(l.Type))
		}
		return nil
	}
	tag := memory.ScalarFromInt(info.Variants[variant].Discr, l.Tag.Size)
	if l.ABI == layout.ABIScalar && l.Tag.Offset == 0 && l.Tag.Size == l.Size {
		return cx.writeScalar(tag, PlaceTy{Layout: l, onStack: dest.onStack, frame: dest.frame, local: dest.local, mem: dest.mem})
	}
	mp, err := cx.forceAllocation(dest)
	if err != nil {
		return err
	}
	return cx.Mem.WriteScalar(mp.mem.Ptr.Offset(int64(l.Tag.Offset)), tag)
}
