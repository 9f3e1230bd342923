package types

import "fmt"

// Table is the serializable form of an Interner. TypeIDs are indexes into Types.
type Table struct {
	Types     []Type        `msgpack:"types"`
	Tuples    []TupleInfo   `msgpack:"tuples"`
	Adts      []AdtInfo     `msgpack:"adts"`
	Instances []AdtInstance `msgpack:"instances"`
}

// Export copies the interner contents into a Table.
func (in *Interner) Export() *Table {
	return &Table{
		Types:     append([]Type(nil), in.types...),
		Tuples:    append([]TupleInfo(nil), in.tuples...),
		Adts:      append([]AdtInfo(nil), in.adts...),
		Instances: append([]AdtInstance(nil), in.insts...),
	}
}

// Import rebuilds an interner from a Table, keeping every TypeID stable.
func Import(t *Table) (*Interner, error) {
	if t == nil || len(t.Types) == 0 || t.Types[0].Kind != KindInvalid {
		return nil, fmt.Errorf("types: table has no invalid sentinel")
	}
	if len(t.Tuples) == 0 || len(t.Adts) == 0 || len(t.Instances) == 0 {
		return nil, fmt.Errorf("types: table is missing reserved slots")
	}
	in := &Interner{
		types:      append([]Type(nil), t.Types...),
		index:      make(map[Type]TypeID, len(t.Types)),
		tuples:     append([]TupleInfo(nil), t.Tuples...),
		tupleIndex: make(map[string]uint32, len(t.Tuples)),
		adts:       append([]AdtInfo(nil), t.Adts...),
		insts:      append([]AdtInstance(nil), t.Instances...),
		instIndex:  make(map[string]uint32, len(t.Instances)),
	}
	for i, tt := range in.types {
		if i == 0 {
			continue
		}
		switch tt.Kind {
		case KindTuple:
			if int(tt.Payload) >= len(in.tuples) {
				return nil, fmt.Errorf("types: type#%d references missing tuple slot %d", i, tt.Payload)
			}
		case KindAdt:
			if tt.Payload == 0 || int(tt.Payload) >= len(in.insts) {
				return nil, fmt.Errorf("types: type#%d references missing ADT instance %d", i, tt.Payload)
			}
		}
		in.index[tt] = TypeID(slotOf(i, "type index"))
	}
	for i := 1; i < len(in.tuples); i++ {
		in.tupleIndex[listKey(0, in.tuples[i].Elems)] = slotOf(i, "tuple index")
	}
	for i := 1; i < len(in.insts); i++ {
		inst := in.insts[i]
		if inst.Def == 0 || int(inst.Def) >= len(in.adts) {
			return nil, fmt.Errorf("types: ADT instance %d references missing definition %d", i, inst.Def)
		}
		in.instIndex[listKey(inst.Def, inst.Args)] = slotOf(i, "instance index")
	}
	in.restoreBuiltins()
	return in, nil
}

func (in *Interner) restoreBuiltins() {
	// Interning existing descriptors returns their recorded IDs.
	in.seedBuiltins()
}
