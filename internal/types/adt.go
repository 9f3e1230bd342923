package types

import "fmt"

// FieldInfo describes one field of a struct or enum variant. The type may
// mention generic parameters of the owning definition.
type FieldInfo struct {
	Name string `msgpack:"n"`
	Type TypeID `msgpack:"t"`
}

// VariantInfo describes one variant. Structs have exactly one.
type VariantInfo struct {
	Name   string      `msgpack:"n"`
	Discr  int64       `msgpack:"d,omitempty"`
	Fields []FieldInfo `msgpack:"f,omitempty"`
}

// AdtInfo is a nominal struct or enum definition.
type AdtInfo struct {
	Name      string        `msgpack:"n"`
	IsEnum    bool          `msgpack:"e,omitempty"`
	Generics  int           `msgpack:"g,omitempty"`
	DiscrType TypeID        `msgpack:"dt,omitempty"` // enums only
	Variants  []VariantInfo `msgpack:"v"`
}

// AdtInstance is a definition applied to concrete (or parametric) arguments.
type AdtInstance struct {
	Def  uint32   `msgpack:"d"`
	Args []TypeID `msgpack:"a,omitempty"`
}

// AdtDef is a handle to a registered definition.
type AdtDef uint32

// RegisterStruct registers a struct definition with the given field list.
func (in *Interner) RegisterStruct(name string, generics int, fields []FieldInfo) AdtDef {
	return in.registerAdt(AdtInfo{
		Name:     name,
		Generics: generics,
		Variants: []VariantInfo{{Name: name, Fields: append([]FieldInfo(nil), fields...)}},
	})
}

// RegisterEnum registers an enum definition. discrType must be an integer type.
func (in *Interner) RegisterEnum(name string, generics int, discrType TypeID, variants []VariantInfo) AdtDef {
	vs := make([]VariantInfo, len(variants))
	for i, v := range variants {
		vs[i] = VariantInfo{Name: v.Name, Discr: v.Discr, Fields: append([]FieldInfo(nil), v.Fields...)}
	}
	return in.registerAdt(AdtInfo{Name: name, IsEnum: true, Generics: generics, DiscrType: discrType, Variants: vs})
}

func (in *Interner) registerAdt(info AdtInfo) AdtDef {
	slot := slotOf(len(in.adts), "adt info")
	in.adts = append(in.adts, info)
	return AdtDef(slot)
}

// Adt instantiates def with args. The argument count must match the definition.
func (in *Interner) Adt(def AdtDef, args []TypeID) TypeID {
	info := in.AdtDefInfo(def)
	if info == nil {
		panic(fmt.Sprintf("types: unknown ADT definition %d", def))
	}
	if len(args) != info.Generics {
		panic(fmt.Sprintf("types: %s expects %d generic arguments, got %d", info.Name, info.Generics, len(args)))
	}
	key := listKey(uint32(def), args)
	if slot, ok := in.instIndex[key]; ok {
		return in.Intern(Type{Kind: KindAdt, Payload: slot})
	}
	slot := slotOf(len(in.insts), "adt instance")
	in.insts = append(in.insts, AdtInstance{Def: uint32(def), Args: append([]TypeID(nil), args...)})
	in.instIndex[key] = slot
	return in.Intern(Type{Kind: KindAdt, Payload: slot})
}

// AdtDefInfo returns the definition for a handle.
func (in *Interner) AdtDefInfo(def AdtDef) *AdtInfo {
	if def == 0 || int(def) >= len(in.adts) {
		return nil
	}
	return &in.adts[def]
}

// AdtOf resolves an ADT TypeID to its definition and instance arguments.
func (in *Interner) AdtOf(id TypeID) (*AdtInfo, []TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindAdt || tt.Payload == 0 || int(tt.Payload) >= len(in.insts) {
		return nil, nil, false
	}
	inst := in.insts[tt.Payload]
	info := in.AdtDefInfo(AdtDef(inst.Def))
	if info == nil {
		return nil, nil, false
	}
	return info, inst.Args, true
}

// IsEnum reports whether id is an enum instance.
func (in *Interner) IsEnum(id TypeID) bool {
	info, _, ok := in.AdtOf(id)
	return ok && info.IsEnum
}

// VariantFields returns the instantiated field types of variant v of an ADT.
func (in *Interner) VariantFields(id TypeID, v int) ([]TypeID, bool) {
	info, args, ok := in.AdtOf(id)
	if !ok || v < 0 || v >= len(info.Variants) {
		return nil, false
	}
	fields := info.Variants[v].Fields
	out := make([]TypeID, len(fields))
	for i, f := range fields {
		out[i] = in.Subst(f.Type, args)
	}
	return out, true
}

// VariantForDiscr finds the variant index whose discriminant equals d.
func (in *Interner) VariantForDiscr(id TypeID, d int64) (int, bool) {
	info, _, ok := in.AdtOf(id)
	if !ok {
		return 0, false
	}
	for i, v := range info.Variants {
		if v.Discr == d {
			return i, true
		}
	}
	return 0, false
}
