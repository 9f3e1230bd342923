package interp

import (
	"fmt"

	"fortio.org/safecast"

	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
)

// MemPlace is an address plus the metadata of an unsized place.
type MemPlace struct {
	Ptr     memory.Pointer
	Meta    uint64
	HasMeta bool
}

// PlaceTy is a resolved place with its layout. It is either a whole local of
// some frame, which may not be backed by memory, or a memory place.
type PlaceTy struct {
	Layout *layout.TypeLayout

	onStack bool
	frame   int
	local   mir.LocalID

	mem      MemPlace
	variant  int
	downcast bool
}

// IsLocal reports a place naming a whole local.
func (p PlaceTy) IsLocal() bool {
	return p.onStack
}

// Local returns the frame index and local of a local place.
func (p PlaceTy) Local() (int, mir.LocalID, bool) {
	return p.frame, p.local, p.onStack
}

// Mem returns the memory place; ok is false for local places.
func (p PlaceTy) Mem() (MemPlace, bool) {
	return p.mem, !p.onStack
}

func (p PlaceTy) String() string {
	if p.onStack {
		return fmt.Sprintf("frame%d._%d", p.frame, p.local)
	}
	if p.mem.HasMeta {
		return fmt.Sprintf("*(%s, %d)", p.mem.Ptr, p.mem.Meta)
	}
	return "*" + p.mem.Ptr.String()
}

func memPlace(mp MemPlace, l *layout.TypeLayout) PlaceTy {
	return PlaceTy{Layout: l, mem: mp}
}

// localState returns the state of a local place, rejecting dead locals.
func (cx *InterpCx) localState(frame int, l mir.LocalID) (*localState, error) {
	if frame < 0 || frame >= len(cx.stack) {
		cx.bug("frame %d does not exist", frame)
	}
	f := cx.stack[frame]
	if int(l) < 0 || int(l) >= len(f.locals) {
		cx.bug("local _%d does not exist in %s", l, f.Body.Name)
	}
	st := &f.locals[l]
	if !st.live {
		return nil, fault.UB(fault.CodeDeadLocal, "accessing a dead local variable _%d", l)
	}
	return st, nil
}

func (cx *InterpCx) localPlace(frame int, l mir.LocalID) (PlaceTy, error) {
	st, err := cx.localState(frame, l)
	if err != nil {
		return PlaceTy{}, err
	}
	return PlaceTy{Layout: st.layout, onStack: true, frame: frame, local: l}, nil
}

// EvalPlace resolves p in the current frame.
func (cx *InterpCx) EvalPlace(p mir.Place) (PlaceTy, error) {
	return cx.evalPlace(p)
}

func (cx *InterpCx) evalPlace(p mir.Place) (PlaceTy, error) {
	pl, err := cx.localPlace(len(cx.stack)-1, p.Local)
	if err != nil {
		return PlaceTy{}, err
	}
	for _, elem := range p.Proj {
		if pl, err = cx.projectPlace(pl, elem); err != nil {
			return PlaceTy{}, err
		}
	}
	return pl, nil
}

func (cx *InterpCx) projectPlace(base PlaceTy, elem mir.ProjElem) (PlaceTy, error) {
	switch elem.Kind {
	case mir.ProjDeref:
		op, err := cx.placeToOp(base)
		if err != nil {
			return PlaceTy{}, err
		}
		return cx.derefOperand(op)
	case mir.ProjField:
		return cx.projectField(base, elem.Field)
	case mir.ProjIndex:
		idxPlace, err := cx.localPlace(len(cx.stack)-1, elem.Index)
		if err != nil {
			return PlaceTy{}, err
		}
		idxOp, err := cx.placeToOp(idxPlace)
		if err != nil {
			return PlaceTy{}, err
		}
		idx, err := cx.readUsize(idxOp)
		if err != nil {
			return PlaceTy{}, err
		}
		return cx.projectIndex(base, idx)
	case mir.ProjConstantIndex:
		n, err := cx.placeLen(base)
		if err != nil {
			return PlaceTy{}, err
		}
		if n < elem.MinLength {
			return PlaceTy{}, fault.UB(fault.CodeOutOfBounds,
				"indexing out of bounds: the len is %d but the minimum length is %d", n, elem.MinLength)
		}
		idx := elem.Offset
		if elem.FromEnd {
			if elem.Offset > n {
				return PlaceTy{}, fault.UB(fault.CodeOutOfBounds,
					"index %d from the end is out of bounds for length %d", elem.Offset, n)
			}
			idx = n - elem.Offset
		}
		return cx.projectIndex(base, idx)
	case mir.ProjDowncast:
		return cx.projectDowncast(base, elem.Variant)
	default:
		cx.bug("unknown projection kind %d", elem.Kind)
		return PlaceTy{}, nil
	}
}

// derefOperand turns a pointer value into the place it points to.
func (cx *InterpCx) derefOperand(op OpTy) (PlaceTy, error) {
	pointee, ok := cx.Types.Pointee(op.Layout.Type)
	if !ok {
		cx.bug("dereferencing a value of non-pointer type %s", cx.Types.Label(op.Layout.Type))
	}
	pl, err := cx.layoutOf(pointee)
	if err != nil {
		return PlaceTy{}, err
	}
	imm, err := cx.readImmediate(op)
	if err != nil {
		return PlaceTy{}, err
	}
	switch imm.Kind {
	case memory.ImmScalar:
		if pl.Unsized {
			cx.bug("thin pointer to unsized type %s", cx.Types.Label(pointee))
		}
		return memPlace(MemPlace{Ptr: imm.A.ToPointer()}, pl), nil
	case memory.ImmPair:
		if !pl.Unsized {
			cx.bug("wide pointer to sized type %s", cx.Types.Label(pointee))
		}
		return memPlace(MemPlace{Ptr: imm.A.ToPointer(), Meta: imm.B.Uint64(), HasMeta: true}, pl), nil
	default:
		return PlaceTy{}, fault.UB(fault.CodeUninitRead, "dereferencing an uninitialized pointer")
	}
}

// forceAllocation makes sure p is backed by memory and returns the memory
// place. Locals held as immediates are spilled into a fresh stack allocation.
func (cx *InterpCx) forceAllocation(p PlaceTy) (PlaceTy, error) {
	if !p.onStack {
		return p, nil
	}
	st, err := cx.localState(p.frame, p.local)
	if err != nil {
		return PlaceTy{}, err
	}
	if !st.allocated {
		ptr, err := cx.Mem.Allocate(st.layout.Size, max(st.layout.Align, 1), memory.KindStack, true)
		if err != nil {
			return PlaceTy{}, err
		}
		if st.imm.Kind != memory.ImmUninit {
			if err := cx.writeImmToMem(st.imm, MemPlace{Ptr: ptr}, st.layout); err != nil {
				return PlaceTy{}, err
			}
		}
		st.allocated = true
		st.ptr = ptr
		st.imm = memory.Uninit()
	}
	out := memPlace(MemPlace{Ptr: st.ptr}, p.Layout)
	out.variant, out.downcast = p.variant, p.downcast
	return out, nil
}

func (cx *InterpCx) offsetPlace(base PlaceTy, off int, l *layout.TypeLayout) PlaceTy {
	mp := MemPlace{Ptr: base.mem.Ptr.Offset(int64(off))}
	if l.Unsized {
		mp.Meta, mp.HasMeta = base.mem.Meta, base.mem.HasMeta
	}
	return memPlace(mp, l)
}

func (cx *InterpCx) projectField(base PlaceTy, i int) (PlaceTy, error) {
	base, err := cx.forceAllocation(base)
	if err != nil {
		return PlaceTy{}, err
	}
	l := base.Layout
	if l.IsSequence() && !l.Unsized {
		if i < 0 || uint64(i) >= l.Count {
			cx.bug("field %d of array %s", i, cx.Types.Label(l.Type))
		}
		el, err := cx.layoutOf(l.Elem)
		if err != nil {
			return PlaceTy{}, err
		}
		return cx.offsetPlace(base, i*l.Stride, el), nil
	}
	if len(l.Variants) > 0 && !base.downcast {
		cx.bug("field access on enum %s without a downcast", cx.Types.Label(l.Type))
	}
	fields, ok := l.VariantFields(base.variant)
	if !ok || i < 0 || i >= len(fields) {
		cx.bug("field %d does not exist on %s", i, cx.Types.Label(l.Type))
	}
	fl, err := cx.layoutOf(fields[i].Type)
	if err != nil {
		return PlaceTy{}, err
	}
	return cx.offsetPlace(base, fields[i].Offset, fl), nil
}

func (cx *InterpCx) projectIndex(base PlaceTy, idx uint64) (PlaceTy, error) {
	base, err := cx.forceAllocation(base)
	if err != nil {
		return PlaceTy{}, err
	}
	n, err := cx.placeLen(base)
	if err != nil {
		return PlaceTy{}, err
	}
	if idx >= n {
		return PlaceTy{}, fault.UB(fault.CodeOutOfBounds, "index out of bounds: the len is %d but the index is %d", n, idx)
	}
	el, err := cx.layoutOf(base.Layout.Elem)
	if err != nil {
		return PlaceTy{}, err
	}
	off, ok := mulSize(idx, uint64(base.Layout.Stride))
	if !ok {
		return PlaceTy{}, fault.UB(fault.CodeOutOfBounds, "index %d overflows the address space", idx)
	}
	return cx.offsetPlace(base, off, el), nil
}

func (cx *InterpCx) projectDowncast(base PlaceTy, variant int) (PlaceTy, error) {
	l := base.Layout
	if len(l.Variants) == 0 {
		if variant != 0 {
			cx.bug("downcast of %s to variant %d", cx.Types.Label(l.Type), variant)
		}
	} else if variant < 0 || variant >= len(l.Variants) {
		cx.bug("downcast of %s to variant %d", cx.Types.Label(l.Type), variant)
	}
	base.variant, base.downcast = variant, true
	return base, nil
}

// placeLen is the element count of an array or slice place.
func (cx *InterpCx) placeLen(p PlaceTy) (uint64, error) {
	l := p.Layout
	if !l.IsSequence() {
		cx.bug("length of non-sequence type %s", cx.Types.Label(l.Type))
	}
	if !l.Unsized {
		return l.Count, nil
	}
	if p.onStack || !p.mem.HasMeta {
		cx.bug("unsized place %s without metadata", cx.Types.Label(l.Type))
	}
	return p.mem.Meta, nil
}

// placeSize is the dynamic size of p.
func (cx *InterpCx) placeSize(p PlaceTy) (int, error) {
	l := p.Layout
	if !l.Unsized {
		return l.Size, nil
	}
	if !l.IsSequence() {
		return l.Size, nil
	}
	n, err := cx.placeLen(p)
	if err != nil {
		return 0, err
	}
	tail, ok := mulSize(n, uint64(l.Stride))
	if !ok {
		return 0, fault.UB(fault.CodeOutOfBounds, "slice of %d elements overflows the address space", n)
	}
	return l.Size + tail, nil
}

// placeToRef builds the pointer value of a memory place.
func (cx *InterpCx) placeToRef(p PlaceTy) memory.Immediate {
	ptr := memory.ScalarFromPointer(p.mem.Ptr, cx.Mem.PtrSize())
	if p.Layout.Unsized {
		return memory.ImmFromPair(ptr, memory.ScalarFromUint(p.mem.Meta, cx.Mem.PtrSize()))
	}
	return memory.ImmFromScalar(ptr)
}

// mulSize multiplies two sizes, failing when the result does not fit an int.
func mulSize(a, b uint64) (int, bool) {
	if a != 0 && b > ^uint64(0)/a {
		return 0, false
	}
	n, err := safecast.Conv[int](a * b)
	return n, err == nil
}
