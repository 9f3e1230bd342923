package layout

import (
	"mirvm/internal/types"
)

// ABI classifies how a value of a type can be held without memory.
type ABI uint8

const (
	ABIAggregate ABI = iota
	ABIUninhabited
	ABIScalar
	ABIScalarPair
)

func (a ABI) String() string {
	switch a {
	case ABIAggregate:
		return "aggregate"
	case ABIUninhabited:
		return "uninhabited"
	case ABIScalar:
		return "scalar"
	case ABIScalarPair:
		return "scalar-pair"
	default:
		return "abi?"
	}
}

// ScalarKind refines which bit patterns a scalar may hold.
type ScalarKind uint8

const (
	ScalarInt ScalarKind = iota
	ScalarBool
	ScalarChar
	ScalarPtr
)

// Scalar is the shape of one primitive value.
type Scalar struct {
	Kind   ScalarKind
	Size   int
	Signed bool
}

// FieldLayout places one field.
type FieldLayout struct {
	Offset int
	Type   types.TypeID
}

// VariantLayout lists the fields of one enum variant.
type VariantLayout struct {
	Fields []FieldLayout
}

// TagLayout locates the direct-encoded discriminant of a multi-variant enum.
type TagLayout struct {
	Offset int
	Size   int
	Type   types.TypeID
	Signed bool
}

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Type    types.TypeID
	Size    int // static size; for unsized types the size of the sized prefix
	Align   int
	Unsized bool
	ABI     ABI

	A, B       Scalar // Scalar uses A; ScalarPair uses A and B
	PairOffset int    // offset of B inside a ScalarPair

	Fields   []FieldLayout   // struct/tuple fields, or the fields of a single-variant ADT
	Variants []VariantLayout // enums only
	Tag      *TagLayout      // multi-variant enums only

	// Arrays, slices and str:
	Elem   types.TypeID
	Stride int
	Count  uint64
}

// IsZST reports a sized type of size zero.
func (l *TypeLayout) IsZST() bool {
	return !l.Unsized && l.Size == 0
}

// IsSequence reports arrays, slices and str.
func (l *TypeLayout) IsSequence() bool {
	return l.Elem != types.NoTypeID
}

// VariantFields returns the fields of variant v. Non-enums only have variant 0.
func (l *TypeLayout) VariantFields(v int) ([]FieldLayout, bool) {
	if len(l.Variants) == 0 {
		return l.Fields, v == 0
	}
	if v < 0 || v >= len(l.Variants) {
		return nil, false
	}
	return l.Variants[v].Fields, true
}

// FieldStep names one step of a subfield path: variant v, field f.
type FieldStep struct {
	Variant int `msgpack:"v,omitempty"`
	Field   int `msgpack:"f"`
}

// LayoutEngine computes memory layout for types.
type LayoutEngine struct {
	Target Target
	Types  *types.Interner

	cache map[types.TypeID]*cacheEntry
}

type cacheEntry struct {
	Layout *TypeLayout
	Err    *LayoutError
}

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Types:  typesIn,
		cache:  make(map[types.TypeID]*cacheEntry, 64),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

// LayoutOf computes and caches the layout of a type. The returned layout is
// shared and must not be modified.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (*TypeLayout, error) {
	state := &layoutState{index: make(map[types.TypeID]int, 8)}
	l, err := e.layoutOf(t, state)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (*TypeLayout, *LayoutError) {
	if cached, ok := e.cache[t]; ok {
		return cached.Layout, cached.Err
	}
	if idx, ok := state.index[t]; ok {
		cycle := append(append([]types.TypeID(nil), state.stack[idx:]...), t)
		err := &LayoutError{Kind: LayoutErrRecursive, Type: t, Label: e.Types.Label(t), Cycle: cycle}
		e.cache[t] = &cacheEntry{Err: err}
		return nil, err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	l, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	if l != nil {
		l.Type = t
	}
	e.cache[t] = &cacheEntry{Layout: l, Err: err}
	return l, err
}

// SizeOf returns the size of a sized type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Size, nil
}

// OffsetOfSubfield returns the byte offset reached by following path from l.
func (e *LayoutEngine) OffsetOfSubfield(l *TypeLayout, path []FieldStep) (int, error) {
	offset := 0
	cur := l
	for _, step := range path {
		fields, ok := cur.VariantFields(step.Variant)
		if !ok || step.Field < 0 || step.Field >= len(fields) {
			return 0, &LayoutError{Kind: LayoutErrInvalid, Type: cur.Type, Label: e.Types.Label(cur.Type)}
		}
		f := fields[step.Field]
		offset += f.Offset
		next, err := e.LayoutOf(f.Type)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return offset, nil
}
