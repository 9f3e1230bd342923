package layout

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"mirvm/internal/types"
)

// maxObjectSize bounds every layout; larger types are rejected.
const maxObjectSize = 1 << 47

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (*TypeLayout, *LayoutError) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id}
	}

	switch tt.Kind {
	case types.KindBool:
		return e.scalarLayout(Scalar{Kind: ScalarBool, Size: 1}), nil
	case types.KindChar:
		return e.scalarLayout(Scalar{Kind: ScalarChar, Size: 4}), nil
	case types.KindInt, types.KindUint:
		size := int(tt.Width) / 8
		if tt.Width == types.WidthAny {
			size = e.Target.PtrSize
		}
		return e.scalarLayout(Scalar{Kind: ScalarInt, Size: size, Signed: tt.Kind == types.KindInt}), nil
	case types.KindNever:
		return &TypeLayout{Size: 0, Align: 1, ABI: ABIUninhabited}, nil
	case types.KindRawPtr, types.KindRef, types.KindBox:
		return e.pointerLayout(tt.Elem), nil
	case types.KindStr:
		return &TypeLayout{Size: 0, Align: 1, Unsized: true, Elem: e.Types.Builtins().U8, Stride: 1}, nil
	case types.KindSlice:
		el, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return nil, err
		}
		if el.Unsized {
			return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id)}
		}
		return &TypeLayout{Size: 0, Align: el.Align, Unsized: true, Elem: tt.Elem, Stride: el.Size}, nil
	case types.KindArray:
		return e.arrayLayout(id, tt, state)
	case types.KindTuple:
		elems, _ := e.Types.TupleElems(id)
		return e.structLayout(id, elems, state)
	case types.KindAdt:
		info, _, ok := e.Types.AdtOf(id)
		if !ok {
			return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id}
		}
		if info.IsEnum && len(info.Variants) != 1 {
			return e.enumLayout(id, info, state)
		}
		fields, _ := e.Types.VariantFields(id, 0)
		return e.structLayout(id, fields, state)
	case types.KindParam:
		return nil, &LayoutError{Kind: LayoutErrTooGeneric, Type: id, Label: e.Types.Label(id)}
	default:
		return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id)}
	}
}

func (e *LayoutEngine) scalarLayout(s Scalar) *TypeLayout {
	return &TypeLayout{Size: s.Size, Align: e.Target.intAlign(s.Size), ABI: ABIScalar, A: s}
}

func (e *LayoutEngine) ptrScalar() Scalar {
	return Scalar{Kind: ScalarPtr, Size: e.Target.PtrSize}
}

func (e *LayoutEngine) usizeScalar() Scalar {
	return Scalar{Kind: ScalarInt, Size: e.Target.PtrSize}
}

// pointerLayout is thin for sized pointees and (addr, len) for slices and str.
func (e *LayoutEngine) pointerLayout(pointee types.TypeID) *TypeLayout {
	if !e.IsUnsized(pointee) {
		return &TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign, ABI: ABIScalar, A: e.ptrScalar()}
	}
	return &TypeLayout{
		Size:       2 * e.Target.PtrSize,
		Align:      e.Target.PtrAlign,
		ABI:        ABIScalarPair,
		A:          e.ptrScalar(),
		B:          e.usizeScalar(),
		PairOffset: e.Target.PtrSize,
	}
}

// IsUnsized reports whether values of id lack a static size. It only looks at
// the type structure, so it is safe to call for recursive types.
func (e *LayoutEngine) IsUnsized(id types.TypeID) bool {
	return e.isUnsized(id, 0)
}

func (e *LayoutEngine) isUnsized(id types.TypeID, depth int) bool {
	if depth > 64 {
		return false
	}
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case types.KindSlice, types.KindStr:
		return true
	case types.KindTuple:
		elems, _ := e.Types.TupleElems(id)
		return len(elems) > 0 && e.isUnsized(elems[len(elems)-1], depth+1)
	case types.KindAdt:
		info, _, ok := e.Types.AdtOf(id)
		if !ok || info.IsEnum {
			return false
		}
		fields, _ := e.Types.VariantFields(id, 0)
		return len(fields) > 0 && e.isUnsized(fields[len(fields)-1], depth+1)
	}
	return false
}

func (e *LayoutEngine) arrayLayout(id types.TypeID, tt types.Type, state *layoutState) (*TypeLayout, *LayoutError) {
	el, err := e.layoutOf(tt.Elem, state)
	if err != nil {
		return nil, err
	}
	if el.Unsized {
		return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id)}
	}
	count, convErr := safecast.Conv[int](tt.Count)
	if convErr != nil {
		return nil, &LayoutError{Kind: LayoutErrTooLarge, Type: id, Label: e.Types.Label(id), Err: convErr}
	}
	if el.Size > 0 && count > maxObjectSize/el.Size {
		return nil, &LayoutError{Kind: LayoutErrTooLarge, Type: id, Label: e.Types.Label(id),
			Err: fmt.Errorf("%d elements of %d bytes", count, el.Size)}
	}
	abi := ABIAggregate
	if el.ABI == ABIUninhabited && count > 0 {
		abi = ABIUninhabited
	}
	return &TypeLayout{
		Size:   el.Size * count,
		Align:  el.Align,
		ABI:    abi,
		Elem:   tt.Elem,
		Stride: el.Size,
		Count:  tt.Count,
	}, nil
}

// structLayout places fields in declaration order, each at its natural
// alignment. Only the last field may be unsized.
func (e *LayoutEngine) structLayout(id types.TypeID, fields []types.TypeID, state *layoutState) (*TypeLayout, *LayoutError) {
	out := &TypeLayout{Align: 1, Fields: make([]FieldLayout, len(fields))}
	offset := 0
	uninhabited := false
	fieldLayouts := make([]*TypeLayout, len(fields))
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return nil, err
		}
		if fl.Unsized && i != len(fields)-1 {
			return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id)}
		}
		fieldLayouts[i] = fl
		offset = alignTo(offset, fl.Align)
		out.Fields[i] = FieldLayout{Offset: offset, Type: f}
		offset += fl.Size
		if offset > maxObjectSize {
			return nil, &LayoutError{Kind: LayoutErrTooLarge, Type: id, Label: e.Types.Label(id)}
		}
		out.Align = max(out.Align, fl.Align)
		out.Unsized = out.Unsized || fl.Unsized
		uninhabited = uninhabited || fl.ABI == ABIUninhabited
	}
	if out.Unsized {
		out.Size = offset
		return out, nil
	}
	out.Size = alignTo(offset, out.Align)
	switch {
	case uninhabited:
		out.ABI = ABIUninhabited
	default:
		e.classifyScalars(out, fieldLayouts)
	}
	return out, nil
}

// classifyScalars gives newtypes of a scalar the Scalar ABI and two-scalar
// records the ScalarPair ABI when the record has no extra bytes.
func (e *LayoutEngine) classifyScalars(out *TypeLayout, fields []*TypeLayout) {
	var nonZST []int
	for i, fl := range fields {
		if !fl.IsZST() {
			nonZST = append(nonZST, i)
		}
	}
	switch len(nonZST) {
	case 1:
		fl := fields[nonZST[0]]
		if out.Fields[nonZST[0]].Offset != 0 || fl.Size != out.Size {
			return
		}
		switch fl.ABI {
		case ABIScalar:
			out.ABI, out.A = ABIScalar, fl.A
		case ABIScalarPair:
			out.ABI, out.A, out.B, out.PairOffset = ABIScalarPair, fl.A, fl.B, fl.PairOffset
		}
	case 2:
		a, b := fields[nonZST[0]], fields[nonZST[1]]
		if a.ABI != ABIScalar || b.ABI != ABIScalar || out.Fields[nonZST[0]].Offset != 0 {
			return
		}
		out.ABI, out.A, out.B = ABIScalarPair, a.A, b.A
		out.PairOffset = out.Fields[nonZST[1]].Offset
	}
}

// enumLayout uses a direct tag of the declared discriminant type at offset 0
// followed by each variant's fields.
func (e *LayoutEngine) enumLayout(id types.TypeID, info *types.AdtInfo, state *layoutState) (*TypeLayout, *LayoutError) {
	if len(info.Variants) == 0 {
		return &TypeLayout{Size: 0, Align: 1, ABI: ABIUninhabited}, nil
	}
	tagLayout, err := e.layoutOf(info.DiscrType, state)
	if err != nil {
		return nil, err
	}
	tagType, _ := e.Types.Lookup(info.DiscrType)
	if !tagType.IsInteger() {
		return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id)}
	}
	tag := &TagLayout{Offset: 0, Size: tagLayout.Size, Type: info.DiscrType, Signed: tagType.Kind == types.KindInt}
	if err := checkDiscrFits(info, tag); err != nil {
		return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id), Err: err}
	}

	out := &TypeLayout{Align: tagLayout.Align, Tag: tag, Variants: make([]VariantLayout, len(info.Variants))}
	end := tag.Size
	fieldless := true
	for v := range info.Variants {
		fieldTypes, _ := e.Types.VariantFields(id, v)
		offset := tag.Size
		vl := VariantLayout{Fields: make([]FieldLayout, len(fieldTypes))}
		for i, f := range fieldTypes {
			fl, err := e.layoutOf(f, state)
			if err != nil {
				return nil, err
			}
			if fl.Unsized {
				return nil, &LayoutError{Kind: LayoutErrInvalid, Type: id, Label: e.Types.Label(id)}
			}
			offset = alignTo(offset, fl.Align)
			vl.Fields[i] = FieldLayout{Offset: offset, Type: f}
			offset += fl.Size
			out.Align = max(out.Align, fl.Align)
			if !fl.IsZST() {
				fieldless = false
			}
		}
		out.Variants[v] = vl
		end = max(end, offset)
	}
	if end > maxObjectSize {
		return nil, &LayoutError{Kind: LayoutErrTooLarge, Type: id, Label: e.Types.Label(id)}
	}
	out.Size = alignTo(end, out.Align)
	if fieldless && out.Size == tag.Size {
		out.ABI = ABIScalar
		out.A = tagLayout.A
	}
	return out, nil
}

func checkDiscrFits(info *types.AdtInfo, tag *TagLayout) error {
	bits := tag.Size * 8
	if bits >= 64 {
		return nil
	}
	var lo, hi int64
	if tag.Signed {
		lo, hi = -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
	} else {
		lo, hi = 0, int64(1)<<bits-1
	}
	for _, v := range info.Variants {
		if v.Discr < lo || v.Discr > hi {
			return fmt.Errorf("discriminant %d of %s does not fit in %d bits", v.Discr, v.Name, bits)
		}
	}
	return nil
}

func alignTo(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// AlignTo rounds n up to a multiple of align.
func AlignTo(n, align int) int {
	if n > math.MaxInt-align {
		return n
	}
	return alignTo(n, align)
}
