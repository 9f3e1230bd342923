package types

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID `msgpack:"e"`
}

// Tuple finds or creates the tuple of elems. Tuple(nil) is the unit type.
func (in *Interner) Tuple(elems []TypeID) TypeID {
	key := listKey(0, elems)
	if slot, ok := in.tupleIndex[key]; ok {
		return in.Intern(Type{Kind: KindTuple, Payload: slot})
	}
	slot := slotOf(len(in.tuples), "tuple info")
	in.tuples = append(in.tuples, TupleInfo{Elems: append([]TypeID(nil), elems...)})
	in.tupleIndex[key] = slot
	return in.Intern(Type{Kind: KindTuple, Payload: slot})
}

// TupleElems returns the element types of a tuple TypeID.
func (in *Interner) TupleElems(id TypeID) ([]TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple || int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return in.tuples[tt.Payload].Elems, true
}
