package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Bool  TypeID
	Char  TypeID
	I8    TypeID
	I16   TypeID
	I32   TypeID
	I64   TypeID
	I128  TypeID
	Isize TypeID
	U8    TypeID
	U16   TypeID
	U32   TypeID
	U64   TypeID
	U128  TypeID
	Usize TypeID
	Unit  TypeID
	Never TypeID
	Str   TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Tuples and ADT instances keep their element lists in side tables and are
// deduplicated by those lists.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	builtins Builtins

	tuples     []TupleInfo
	tupleIndex map[string]uint32

	adts      []AdtInfo
	insts     []AdtInstance
	instIndex map[string]uint32
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:      make(map[Type]TypeID, 64),
		tupleIndex: make(map[string]uint32, 16),
		instIndex:  make(map[string]uint32, 16),
	}
	in.reserveSentinels()
	in.internRaw(Type{Kind: KindInvalid})
	in.seedBuiltins()
	return in
}

func (in *Interner) reserveSentinels() {
	in.tuples = append(in.tuples, TupleInfo{})
	in.adts = append(in.adts, AdtInfo{})
	in.insts = append(in.insts, AdtInstance{})
}

func (in *Interner) seedBuiltins() {
	b := &in.builtins
	b.Bool = in.Intern(Type{Kind: KindBool})
	b.Char = in.Intern(Type{Kind: KindChar})
	b.I8 = in.Intern(MakeInt(Width8))
	b.I16 = in.Intern(MakeInt(Width16))
	b.I32 = in.Intern(MakeInt(Width32))
	b.I64 = in.Intern(MakeInt(Width64))
	b.I128 = in.Intern(MakeInt(Width128))
	b.Isize = in.Intern(MakeInt(WidthAny))
	b.U8 = in.Intern(MakeUint(Width8))
	b.U16 = in.Intern(MakeUint(Width16))
	b.U32 = in.Intern(MakeUint(Width32))
	b.U64 = in.Intern(MakeUint(Width64))
	b.U128 = in.Intern(MakeUint(Width128))
	b.Usize = in.Intern(MakeUint(WidthAny))
	b.Unit = in.Tuple(nil)
	b.Never = in.Intern(Type{Kind: KindNever})
	b.Str = in.Intern(Type{Kind: KindStr})
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return tt
}

// Len returns the number of interned types including the invalid sentinel.
func (in *Interner) Len() int {
	return len(in.types)
}

// IsUnsafePtr reports whether id is a raw pointer type.
func (in *Interner) IsUnsafePtr(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindRawPtr
}

// Pointee returns the element type of a pointer-like type.
func (in *Interner) Pointee(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || !tt.IsPointerLike() {
		return NoTypeID, false
	}
	return tt.Elem, true
}

func listKey(prefix uint32, ids []TypeID) string {
	buf := make([]byte, 0, 4+4*len(ids))
	put := func(v uint32) {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	put(prefix)
	for _, id := range ids {
		put(uint32(id))
	}
	return string(buf)
}

func slotOf(n int, what string) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s overflow: %w", what, err))
	}
	return slot
}
