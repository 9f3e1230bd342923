package interp

import (
	"github.com/holiman/uint256"

	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

// OpTy is an operand value with its layout: an immediate when Mem is nil,
// otherwise the memory place holding the value.
type OpTy struct {
	Layout *layout.TypeLayout
	Imm    memory.Immediate
	Mem    *MemPlace
}

// ImmTy is an immediate with its layout.
type ImmTy struct {
	Imm    memory.Immediate
	Layout *layout.TypeLayout
}

func (v ImmTy) scalar() memory.Scalar {
	return v.Imm.A
}

func immOf(s memory.Scalar, l *layout.TypeLayout) ImmTy {
	return ImmTy{Imm: memory.ImmFromScalar(s), Layout: l}
}

// holdsImmediate reports layouts a local can keep without memory.
func holdsImmediate(l *layout.TypeLayout) bool {
	return l.IsZST() || l.ABI == layout.ABIScalar || l.ABI == layout.ABIScalarPair
}

// layoutFor returns hint when given, otherwise the layout of ty. A hint of a
// different type is an internal error.
func (cx *InterpCx) layoutFor(ty types.TypeID, hint *layout.TypeLayout) (*layout.TypeLayout, error) {
	if hint != nil {
		if hint.Type != ty {
			cx.bug("layout of %s given for a value of type %s", cx.Types.Label(hint.Type), cx.Types.Label(ty))
		}
		return hint, nil
	}
	return cx.layoutOf(ty)
}

// EvalOperand evaluates op in the current frame.
func (cx *InterpCx) EvalOperand(op mir.Operand) (OpTy, error) {
	return cx.evalOperand(op, nil)
}

func (cx *InterpCx) evalOperand(op mir.Operand, hint *layout.TypeLayout) (OpTy, error) {
	var (
		out OpTy
		err error
	)
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove:
		out, err = cx.evalPlaceToOp(op.Place)
	case mir.OperandConst:
		return cx.evalConst(&op.Const, hint)
	default:
		cx.bug("unknown operand kind %d", op.Kind)
	}
	if err != nil {
		return OpTy{}, err
	}
	if hint != nil && hint.Type != out.Layout.Type {
		cx.bug("layout of %s given for a value of type %s", cx.Types.Label(hint.Type), cx.Types.Label(out.Layout.Type))
	}
	return out, nil
}

// evalPlaceToOp reads a place without spilling immediate locals when the
// projections can be applied to the immediate itself.
func (cx *InterpCx) evalPlaceToOp(p mir.Place) (OpTy, error) {
	frame := len(cx.stack) - 1
	st, err := cx.localState(frame, p.Local)
	if err != nil {
		return OpTy{}, err
	}
	if st.allocated {
		pl, err := cx.evalPlace(p)
		if err != nil {
			return OpTy{}, err
		}
		return cx.placeToOp(pl)
	}
	op := OpTy{Layout: st.layout, Imm: st.imm}
	for i, elem := range p.Proj {
		if elem.Kind != mir.ProjField {
			if elem.Kind == mir.ProjDeref {
				return cx.finishFromDeref(op, p.Proj[i+1:])
			}
			break
		}
		next, ok, err := cx.immField(op, elem.Field)
		if err != nil {
			return OpTy{}, err
		}
		if !ok {
			break
		}
		op = next
		if i == len(p.Proj)-1 {
			return op, nil
		}
	}
	if len(p.Proj) == 0 {
		return op, nil
	}
	pl, err := cx.evalPlace(p)
	if err != nil {
		return OpTy{}, err
	}
	return cx.placeToOp(pl)
}

func (cx *InterpCx) finishFromDeref(ptr OpTy, rest []mir.ProjElem) (OpTy, error) {
	pl, err := cx.derefOperand(ptr)
	if err != nil {
		return OpTy{}, err
	}
	for _, elem := range rest {
		if pl, err = cx.projectPlace(pl, elem); err != nil {
			return OpTy{}, err
		}
	}
	return cx.placeToOp(pl)
}

// immField projects field i out of an immediate. ok is false when the field
// is not addressable within the immediate's scalars.
func (cx *InterpCx) immField(op OpTy, i int) (OpTy, bool, error) {
	l := op.Layout
	if l.IsSequence() || len(l.Variants) > 0 || i < 0 || i >= len(l.Fields) {
		return OpTy{}, false, nil
	}
	f := l.Fields[i]
	fl, err := cx.layoutOf(f.Type)
	if err != nil {
		return OpTy{}, false, err
	}
	if fl.IsZST() {
		return OpTy{Layout: fl, Imm: memory.Uninit()}, true, nil
	}
	if f.Offset == 0 && fl.Size == l.Size && fl.ABI == l.ABI {
		return OpTy{Layout: fl, Imm: op.Imm}, true, nil
	}
	if l.ABI != layout.ABIScalarPair || fl.ABI != layout.ABIScalar {
		return OpTy{}, false, nil
	}
	var s memory.Scalar
	switch {
	case f.Offset == 0 && fl.Size == l.A.Size:
		s = op.Imm.A
	case f.Offset == l.PairOffset && fl.Size == l.B.Size:
		s = op.Imm.B
	default:
		return OpTy{}, false, nil
	}
	if op.Imm.Kind != memory.ImmPair {
		return OpTy{Layout: fl, Imm: memory.Uninit()}, true, nil
	}
	return OpTy{Layout: fl, Imm: memory.ImmFromScalar(s)}, true, nil
}

// placeToOp views a place as an operand.
func (cx *InterpCx) placeToOp(p PlaceTy) (OpTy, error) {
	if !p.onStack {
		mp := p.mem
		return OpTy{Layout: p.Layout, Mem: &mp}, nil
	}
	st, err := cx.localState(p.frame, p.local)
	if err != nil {
		return OpTy{}, err
	}
	if st.allocated {
		return OpTy{Layout: p.Layout, Mem: &MemPlace{Ptr: st.ptr}}, nil
	}
	return OpTy{Layout: p.Layout, Imm: st.imm}, nil
}

// readImmediate loads an immediate. Uninitialized memory yields an Uninit
// immediate rather than an error.
func (cx *InterpCx) readImmediate(op OpTy) (memory.Immediate, error) {
	if op.Mem == nil {
		return op.Imm, nil
	}
	l := op.Layout
	ptr := op.Mem.Ptr
	if l.IsZST() {
		return memory.Uninit(), cx.Mem.CheckAccess(ptr, 0, false)
	}
	switch l.ABI {
	case layout.ABIScalar:
		if err := cx.Mem.CheckAlign(ptr, l.Align); err != nil {
			return memory.Immediate{}, err
		}
		s, err := cx.Mem.ReadScalar(ptr, l.A.Size)
		if err != nil {
			return rawUninit(err)
		}
		return memory.ImmFromScalar(s), nil
	case layout.ABIScalarPair:
		if err := cx.Mem.CheckAlign(ptr, l.Align); err != nil {
			return memory.Immediate{}, err
		}
		a, err := cx.Mem.ReadScalar(ptr, l.A.Size)
		if err != nil {
			return rawUninit(err)
		}
		b, err := cx.Mem.ReadScalar(ptr.Offset(int64(l.PairOffset)), l.B.Size)
		if err != nil {
			return rawUninit(err)
		}
		return memory.ImmFromPair(a, b), nil
	default:
		return memory.Immediate{}, fault.Errorf(fault.CodeBadShape,
			"a value of type %s cannot be read as an immediate", cx.Types.Label(l.Type))
	}
}

func rawUninit(err error) (memory.Immediate, error) {
	if fault.CodeOf(err) == fault.CodeUninitRead {
		return memory.Uninit(), nil
	}
	return memory.Immediate{}, err
}

// ReadImmediate loads the value at p.
func (cx *InterpCx) ReadImmediate(p PlaceTy) (memory.Immediate, error) {
	op, err := cx.placeToOp(p)
	if err != nil {
		return memory.Immediate{}, err
	}
	return cx.readImmediate(op)
}

func (cx *InterpCx) readImmTy(op OpTy) (ImmTy, error) {
	imm, err := cx.readImmediate(op)
	if err != nil {
		return ImmTy{}, err
	}
	return ImmTy{Imm: imm, Layout: op.Layout}, nil
}

// readScalar loads an initialized scalar that is valid for its type.
func (cx *InterpCx) readScalar(op OpTy) (memory.Scalar, error) {
	imm, err := cx.readImmediate(op)
	if err != nil {
		return memory.Scalar{}, err
	}
	switch imm.Kind {
	case memory.ImmUninit:
		return memory.Scalar{}, fault.UB(fault.CodeUninitRead, "using uninitialized data of type %s", cx.Types.Label(op.Layout.Type))
	case memory.ImmPair:
		return memory.Scalar{}, fault.Errorf(fault.CodeBadShape, "expected a scalar of type %s, got a pair", cx.Types.Label(op.Layout.Type))
	}
	return imm.A, cx.checkScalar(imm.A, op.Layout)
}

// checkScalar validates bool and char values.
func (cx *InterpCx) checkScalar(s memory.Scalar, l *layout.TypeLayout) error {
	if l.ABI != layout.ABIScalar {
		return nil
	}
	switch l.A.Kind {
	case layout.ScalarBool:
		if s.IsPtr() || !s.Bits.IsUint64() || s.Uint64() > 1 {
			return fault.UB(fault.CodeInvalidValue, "invalid bool value %s", s)
		}
	case layout.ScalarChar:
		v := s.Uint64()
		if s.IsPtr() || v > 0x10FFFF || (v >= 0xD800 && v <= 0xDFFF) {
			return fault.UB(fault.CodeInvalidValue, "invalid char value 0x%x", v)
		}
	}
	return nil
}

func (cx *InterpCx) readBool(op OpTy) (bool, error) {
	if op.Layout.ABI != layout.ABIScalar || op.Layout.A.Kind != layout.ScalarBool {
		cx.bug("expected bool, got %s", cx.Types.Label(op.Layout.Type))
	}
	s, err := cx.readScalar(op)
	if err != nil {
		return false, err
	}
	return s.Uint64() == 1, nil
}

func (cx *InterpCx) readUsize(op OpTy) (uint64, error) {
	s, err := cx.readScalar(op)
	if err != nil {
		return 0, err
	}
	if s.Size != cx.Mem.PtrSize() {
		cx.bug("expected usize, got %s", cx.Types.Label(op.Layout.Type))
	}
	return s.Uint64(), nil
}

// readPointer loads the data pointer of a thin or wide pointer.
func (cx *InterpCx) readPointer(op OpTy) (memory.Pointer, error) {
	imm, err := cx.readImmediate(op)
	if err != nil {
		return memory.Pointer{}, err
	}
	if imm.Kind == memory.ImmUninit {
		return memory.Pointer{}, fault.UB(fault.CodeUninitRead, "using an uninitialized pointer")
	}
	return imm.A.ToPointer(), nil
}

// WriteImmediate stores imm into p.
func (cx *InterpCx) WriteImmediate(imm memory.Immediate, p PlaceTy) error {
	return cx.writeImmediate(imm, p)
}

func (cx *InterpCx) writeImmediate(imm memory.Immediate, dest PlaceTy) error {
	if dest.onStack {
		st, err := cx.localState(dest.frame, dest.local)
		if err != nil {
			return err
		}
		if !st.allocated && holdsImmediate(st.layout) {
			if err := cx.checkImmShape(imm, st.layout); err != nil {
				return err
			}
			if st.layout.IsZST() {
				imm = memory.Uninit()
			}
			st.imm = imm
			return nil
		}
		if dest, err = cx.forceAllocation(dest); err != nil {
			return err
		}
	}
	return cx.writeImmToMem(imm, dest.mem, dest.Layout)
}

func (cx *InterpCx) checkImmShape(imm memory.Immediate, l *layout.TypeLayout) error {
	switch imm.Kind {
	case memory.ImmScalar:
		if l.ABI != layout.ABIScalar || imm.A.Size != l.A.Size {
			return fault.Errorf(fault.CodeBadShape, "a %d-byte scalar does not fit a place of type %s",
				imm.A.Size, cx.Types.Label(l.Type))
		}
	case memory.ImmPair:
		if l.ABI != layout.ABIScalarPair || imm.A.Size != l.A.Size || imm.B.Size != l.B.Size {
			return fault.Errorf(fault.CodeBadShape, "a scalar pair does not fit a place of type %s", cx.Types.Label(l.Type))
		}
	}
	return nil
}

func (cx *InterpCx) writeImmToMem(imm memory.Immediate, mp MemPlace, l *layout.TypeLayout) error {
	if l.IsZST() {
		return cx.Mem.CheckAccess(mp.Ptr, 0, true)
	}
	if err := cx.Mem.CheckAlign(mp.Ptr, l.Align); err != nil {
		return err
	}
	if err := cx.checkImmShape(imm, l); err != nil {
		return err
	}
	switch imm.Kind {
	case memory.ImmScalar:
		return cx.Mem.WriteScalar(mp.Ptr, imm.A)
	case memory.ImmPair:
		if err := cx.Mem.WriteScalar(mp.Ptr, imm.A); err != nil {
			return err
		}
		return cx.Mem.WriteScalar(mp.Ptr.Offset(int64(l.PairOffset)), imm.B)
	default:
		return cx.Mem.WriteUninit(mp.Ptr, l.Size)
	}
}

func (cx *InterpCx) writeScalar(s memory.Scalar, dest PlaceTy) error {
	return cx.writeImmediate(memory.ImmFromScalar(s), dest)
}

func (cx *InterpCx) writeUninit(dest PlaceTy) error {
	if dest.onStack {
		st, err := cx.localState(dest.frame, dest.local)
		if err != nil {
			return err
		}
		if !st.allocated {
			st.imm = memory.Uninit()
			return nil
		}
		if dest, err = cx.forceAllocation(dest); err != nil {
			return err
		}
	}
	size, err := cx.placeSize(dest)
	if err != nil {
		return err
	}
	return cx.Mem.WriteUninit(dest.mem.Ptr, size)
}

// copyOp copies src into dest; both must have the same size and ABI.
func (cx *InterpCx) copyOp(src OpTy, dest PlaceTy) error {
	if src.Layout.Unsized || dest.Layout.Unsized {
		cx.bug("copy of unsized value of type %s", cx.Types.Label(src.Layout.Type))
	}
	if src.Layout.Size != dest.Layout.Size || src.Layout.ABI != dest.Layout.ABI {
		cx.bug("copy of %s into a place of type %s", cx.Types.Label(src.Layout.Type), cx.Types.Label(dest.Layout.Type))
	}
	if src.Mem == nil {
		return cx.writeImmediate(src.Imm, dest)
	}
	if dest.onStack {
		st, err := cx.localState(dest.frame, dest.local)
		if err != nil {
			return err
		}
		if !st.allocated && holdsImmediate(st.layout) {
			imm, err := cx.readImmediate(src)
			if err != nil {
				return err
			}
			return cx.writeImmediate(imm, dest)
		}
		if dest, err = cx.forceAllocation(dest); err != nil {
			return err
		}
	}
	size := dest.Layout.Size
	if size == 0 {
		if err := cx.Mem.CheckAccess(src.Mem.Ptr, 0, false); err != nil {
			return err
		}
		return cx.Mem.CheckAccess(dest.mem.Ptr, 0, true)
	}
	if err := cx.Mem.CheckAlign(src.Mem.Ptr, src.Layout.Align); err != nil {
		return err
	}
	if err := cx.Mem.CheckAlign(dest.mem.Ptr, dest.Layout.Align); err != nil {
		return err
	}
	return cx.Mem.Copy(src.Mem.Ptr, dest.mem.Ptr, size, false)
}

// evalConst materializes an embedded constant.
func (cx *InterpCx) evalConst(c *mir.Const, hint *layout.TypeLayout) (OpTy, error) {
	ty := cx.instantiate(c.Type)
	l, err := cx.layoutFor(ty, hint)
	if err != nil {
		return OpTy{}, err
	}
	switch c.Kind {
	case mir.ConstScalar:
		if l.ABI != layout.ABIScalar {
			cx.bug("scalar constant of non-scalar type %s", cx.Types.Label(ty))
		}
		v := new(uint256.Int).SetUint64(c.Hi)
		v.Lsh(v, 64)
		v.Or(v, uint256.NewInt(c.Lo))
		return OpTy{Layout: l, Imm: memory.ImmFromScalar(memory.ScalarFromBits(v, l.A.Size))}, nil
	case mir.ConstZST:
		if !l.IsZST() {
			cx.bug("zero-sized constant of type %s", cx.Types.Label(ty))
		}
		return OpTy{Layout: l, Imm: memory.Uninit()}, nil
	case mir.ConstSlice:
		return cx.sliceConst(c.Bytes, ty, l)
	case mir.ConstStaticAddr:
		if l.ABI != layout.ABIScalar || l.A.Kind != layout.ScalarPtr {
			cx.bug("static address of non-pointer type %s", cx.Types.Label(ty))
		}
		ptr, err := cx.staticPointer(c.Static)
		if err != nil {
			return OpTy{}, err
		}
		return OpTy{Layout: l, Imm: memory.ImmFromScalar(memory.ScalarFromPointer(ptr, cx.Mem.PtrSize()))}, nil
	case mir.ConstBytes:
		if l.Unsized || len(c.Bytes) != l.Size {
			cx.bug("constant of %d bytes for type %s", len(c.Bytes), cx.Types.Label(ty))
		}
		ptr, err := cx.internBytes(c.Bytes, max(l.Align, 1))
		if err != nil {
			return OpTy{}, err
		}
		return OpTy{Layout: l, Mem: &MemPlace{Ptr: ptr}}, nil
	default:
		cx.bug("unknown constant kind %d", c.Kind)
		return OpTy{}, nil
	}
}

func (cx *InterpCx) sliceConst(data []byte, ty types.TypeID, l *layout.TypeLayout) (OpTy, error) {
	pointee, ok := cx.Types.Pointee(ty)
	if !ok || l.ABI != layout.ABIScalarPair {
		cx.bug("slice constant of type %s", cx.Types.Label(ty))
	}
	pl, err := cx.layoutOf(pointee)
	if err != nil {
		return OpTy{}, err
	}
	if !pl.IsSequence() {
		cx.bug("slice constant of type %s", cx.Types.Label(ty))
	}
	var n uint64
	if pl.Stride > 0 {
		if len(data)%pl.Stride != 0 {
			cx.bug("slice constant of %d bytes for elements of %d bytes", len(data), pl.Stride)
		}
		n = uint64(len(data) / pl.Stride)
	}
	ptr, err := cx.internBytes(data, max(pl.Align, 1))
	if err != nil {
		return OpTy{}, err
	}
	ps := cx.Mem.PtrSize()
	return OpTy{Layout: l, Imm: memory.ImmFromPair(memory.ScalarFromPointer(ptr, ps), memory.ScalarFromUint(n, ps))}, nil
}
