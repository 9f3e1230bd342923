package interp

import (
	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

// cast converts src to castTy and stores the result into dest.
func (cx *InterpCx) cast(src OpTy, kind mir.CastKind, castTy types.TypeID, dest PlaceTy) error {
	castLayout, err := cx.layoutOf(castTy)
	if err != nil {
		return err
	}
	if castLayout.Type != dest.Layout.Type {
		cx.bug("cast to %s stored into %s", cx.Types.Label(castTy), cx.Types.Label(dest.Layout.Type))
	}

	switch kind {
	case mir.CastIntToInt:
		v, err := cx.readImmTy(src)
		if err != nil {
			return err
		}
		res, err := cx.intToInt(v, castLayout)
		if err != nil {
			return err
		}
		return cx.writeImmediate(res.Imm, dest)

	case mir.CastPtrToPtr:
		v, err := cx.readImmTy(src)
		if err != nil {
			return err
		}
		res, err := cx.ptrToPtr(v, castLayout)
		if err != nil {
			return err
		}
		return cx.writeImmediate(res.Imm, dest)

	case mir.CastPointerExposeProvenance:
		ptr, err := cx.readPointer(src)
		if err != nil {
			return err
		}
		if ptr.Prov.Valid() {
			if err := cx.Machine.ExposeProvenance(cx, ptr); err != nil {
				return err
			}
		}
		return cx.writeScalar(memory.ScalarFromUint(ptr.Addr, castLayout.A.Size), dest)

	case mir.CastPointerWithExposedProvenance:
		s, err := cx.readScalar(src)
		if err != nil {
			return err
		}
		ptr, err := cx.Machine.PointerFromExposedAddr(cx, s.Uint64())
		if err != nil {
			return err
		}
		return cx.writeScalar(memory.ScalarFromPointer(ptr, cx.Mem.PtrSize()), dest)

	case mir.CastTransmute:
		if src.Layout.Unsized || dest.Layout.Unsized {
			cx.bug("transmute of unsized type")
		}
		if src.Layout.Size != dest.Layout.Size {
			return fault.UB(fault.CodeTransmuteSize,
				"transmuting from %d-byte type %s to %d-byte type %s",
				src.Layout.Size, cx.Types.Label(src.Layout.Type), dest.Layout.Size, cx.Types.Label(dest.Layout.Type))
		}
		return cx.copyOpTransmute(src, dest)

	default:
		cx.bug("unknown cast kind %d", kind)
		return nil
	}
}

// intToInt sign- or zero-extends according to the source type, then
// truncates to the target size.
func (cx *InterpCx) intToInt(v ImmTy, target *layout.TypeLayout) (ImmTy, error) {
	s, err := cx.scalarOf(v)
	if err != nil {
		return ImmTy{}, err
	}
	if target.ABI != layout.ABIScalar || target.A.Kind == layout.ScalarPtr {
		cx.bug("IntToInt cast to %s", cx.Types.Label(target.Type))
	}
	src := cx.Types.MustLookup(v.Layout.Type)
	ext := extend(s, src.Kind == types.KindInt)
	res := memory.ScalarFromBits(&ext, target.A.Size)
	if err := cx.checkScalar(res, target); err != nil {
		return ImmTy{}, err
	}
	return immOf(res, target), nil
}

// ptrToPtr converts between pointer types, dropping metadata when the target
// is thin.
func (cx *InterpCx) ptrToPtr(v ImmTy, target *layout.TypeLayout) (ImmTy, error) {
	switch v.Imm.Kind {
	case memory.ImmUninit:
		return ImmTy{}, fault.UB(fault.CodeUninitRead, "casting an uninitialized pointer")
	case memory.ImmScalar:
		if target.ABI != layout.ABIScalar {
			cx.bug("cast of thin pointer to wide pointer type %s", cx.Types.Label(target.Type))
		}
		return ImmTy{Imm: v.Imm, Layout: target}, nil
	default:
		switch target.ABI {
		case layout.ABIScalar:
			return immOf(v.Imm.A, target), nil
		case layout.ABIScalarPair:
			return ImmTy{Imm: v.Imm, Layout: target}, nil
		}
		cx.bug("pointer cast to %s", cx.Types.Label(target.Type))
		return ImmTy{}, nil
	}
}

// copyOpTransmute reinterprets the bytes of src with dest's layout.
func (cx *InterpCx) copyOpTransmute(src OpTy, dest PlaceTy) error {
	size := src.Layout.Size
	align := max(src.Layout.Align, dest.Layout.Align, 1)
	tmp, err := cx.Mem.Allocate(size, align, memory.KindHeap, true)
	if err != nil {
		return err
	}
	tmpPlace := memPlace(MemPlace{Ptr: tmp}, src.Layout)
	err = cx.copyOp(src, tmpPlace)
	if err == nil {
		err = cx.copyOp(OpTy{Layout: dest.Layout, Mem: &MemPlace{Ptr: tmp}}, dest)
	}
	if ferr := cx.Mem.Deallocate(tmp, memory.KindHeap); err == nil {
		err = ferr
	}
	return err
}
