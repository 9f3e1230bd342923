package interp

import (
	"mirvm/internal/fault"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
)

// Machine supplies the behavior that differs between interpreter
// personalities. The core forwards to it and never inspects the state a
// machine keeps for provenance tracking.
type Machine interface {
	// Name identifies the personality in traces and reports.
	Name() string

	// BeforeTerminator runs before every terminator.
	BeforeTerminator(cx *InterpCx) error

	// RetagPtrValue derives the pointer value stored by a Ref or AddressOf.
	RetagPtrValue(cx *InterpCx, kind mir.RetagKind, val memory.Immediate) (memory.Immediate, error)

	// RetagPlaceContents handles an explicit Retag statement.
	RetagPlaceContents(cx *InterpCx, kind mir.RetagKind, place PlaceTy) error

	// ThreadLocalStaticPointer resolves the address of a thread-local static.
	ThreadLocalStaticPointer(cx *InterpCx, id mir.StaticID) (memory.Pointer, error)

	// IncrementConstEvalCounter is called for every ConstEvalCounter
	// statement and fails once the machine's step budget is exhausted.
	IncrementConstEvalCounter(cx *InterpCx) error

	// EmulateNondivergingIntrinsic executes an Intrinsic statement.
	EmulateNondivergingIntrinsic(cx *InterpCx, in *mir.Intrinsic) error

	// ExposeProvenance is called when a pointer is cast to an integer.
	ExposeProvenance(cx *InterpCx, ptr memory.Pointer) error

	// PointerFromExposedAddr builds a pointer from an integer address.
	PointerFromExposedAddr(cx *InterpCx, addr uint64) (memory.Pointer, error)
}

// DefaultNondivergingIntrinsic implements the intrinsics every machine
// shares: assume and copy_nonoverlapping.
func DefaultNondivergingIntrinsic(cx *InterpCx, in *mir.Intrinsic) error {
	switch in.Kind {
	case mir.IntrinsicAssume:
		op, err := cx.evalOperand(in.Op, nil)
		if err != nil {
			return err
		}
		b, err := cx.readBool(op)
		if err != nil {
			return err
		}
		if !b {
			return fault.UB(fault.CodeAssumeFalse, "`assume` called with `false`")
		}
		return nil

	case mir.IntrinsicCopyNonOverlapping:
		src, err := cx.evalOperand(in.Src, nil)
		if err != nil {
			return err
		}
		dst, err := cx.evalOperand(in.Dst, nil)
		if err != nil {
			return err
		}
		count, err := cx.evalOperand(in.Count, nil)
		if err != nil {
			return err
		}
		elemTy, ok := cx.Types.Pointee(src.Layout.Type)
		if !ok {
			cx.bug("copy_nonoverlapping source of type %s is not a pointer", cx.Types.Label(src.Layout.Type))
		}
		elem, err := cx.layoutOf(elemTy)
		if err != nil {
			return err
		}
		n, err := cx.readUsize(count)
		if err != nil {
			return err
		}
		size, ok := mulSize(uint64(elem.Size), n)
		if !ok {
			return fault.UB(fault.CodeArithOverflow, "overflow computing total size of `copy_nonoverlapping`")
		}
		srcPtr, err := cx.readPointer(src)
		if err != nil {
			return err
		}
		dstPtr, err := cx.readPointer(dst)
		if err != nil {
			return err
		}
		if err := cx.Mem.CheckAlign(srcPtr, elem.Align); err != nil {
			return err
		}
		if err := cx.Mem.CheckAlign(dstPtr, elem.Align); err != nil {
			return err
		}
		return cx.Mem.Copy(srcPtr, dstPtr, size, true)

	default:
		return fault.Unsupported("intrinsic kind %d", in.Kind)
	}
}
