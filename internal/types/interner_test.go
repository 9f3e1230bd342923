package types_test

import (
	"testing"

	"mirvm/internal/types"
)

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	arr1 := in.Intern(types.MakeArray(b.U32, 4))
	arr2 := in.Intern(types.MakeArray(b.U32, 4))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Tuple([]types.TypeID{b.U8, b.Bool}) != in.Tuple([]types.TypeID{b.U8, b.Bool}) {
		t.Fatalf("tuples should be deduplicated")
	}
	if in.Tuple(nil) != b.Unit {
		t.Fatalf("empty tuple must be unit")
	}
}

func TestPointerMutabilityAffectsIdentity(t *testing.T) {
	in := types.NewInterner()
	u8 := in.Builtins().U8
	if in.Intern(types.MakeRef(u8, true)) == in.Intern(types.MakeRef(u8, false)) {
		t.Fatalf("mutable and shared references must differ")
	}
	raw := in.Intern(types.MakeRawPtr(u8, false))
	if !in.IsUnsafePtr(raw) {
		t.Fatalf("raw pointer must be unsafe")
	}
	if in.IsUnsafePtr(in.Intern(types.MakeRef(u8, false))) {
		t.Fatalf("references are not unsafe pointers")
	}
}

func TestLabels(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	opt := in.RegisterEnum("Option", 1, b.Isize, []types.VariantInfo{
		{Name: "None", Discr: 0},
		{Name: "Some", Discr: 1, Fields: []types.FieldInfo{{Name: "0", Type: in.Param(0)}}},
	})
	tests := []struct {
		id   types.TypeID
		want string
	}{
		{b.Usize, "usize"},
		{b.I128, "i128"},
		{b.Unit, "()"},
		{in.Tuple([]types.TypeID{b.U8}), "(u8,)"},
		{in.Intern(types.MakeArray(b.U32, 4)), "[u32; 4]"},
		{in.Intern(types.MakeRef(in.Intern(types.MakeSlice(b.U8)), true)), "&mut [u8]"},
		{in.Intern(types.MakeRawPtr(b.Str, false)), "*const str"},
		{in.Adt(opt, []types.TypeID{b.U16}), "Option<u16>"},
		{in.Param(1), "T1"},
	}
	for _, tt := range tests {
		if got := in.Label(tt.id); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestSubstGenericAdt(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	pair := in.RegisterStruct("Pair", 2, []types.FieldInfo{
		{Name: "a", Type: in.Param(0)},
		{Name: "b", Type: in.Intern(types.MakeArray(in.Param(1), 2))},
	})
	generic := in.Adt(pair, []types.TypeID{in.Param(0), in.Param(1)})
	if !in.HasParams(generic) {
		t.Fatalf("expected generic ADT to mention params")
	}
	concrete := in.Subst(generic, []types.TypeID{b.U8, b.U64})
	if concrete != in.Adt(pair, []types.TypeID{b.U8, b.U64}) {
		t.Fatalf("substitution must produce the deduplicated concrete instance")
	}
	fields, ok := in.VariantFields(concrete, 0)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two fields, got %v", fields)
	}
	if fields[0] != b.U8 || fields[1] != in.Intern(types.MakeArray(b.U64, 2)) {
		t.Fatalf("unexpected instantiated fields %s, %s", in.Label(fields[0]), in.Label(fields[1]))
	}
}

func TestTableRoundTripKeepsIDs(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := in.RegisterEnum("E", 0, b.U8, []types.VariantInfo{{Name: "A", Discr: 3}, {Name: "B", Discr: 7}})
	enumID := in.Adt(e, nil)
	tup := in.Tuple([]types.TypeID{enumID, b.Bool})

	out, err := types.Import(in.Export())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if out.Builtins() != b {
		t.Fatalf("builtins changed across round trip")
	}
	if out.Tuple([]types.TypeID{enumID, b.Bool}) != tup {
		t.Fatalf("tuple id changed across round trip")
	}
	if v, ok := out.VariantForDiscr(enumID, 7); !ok || v != 1 {
		t.Fatalf("expected discriminant 7 to map to variant 1, got %d %v", v, ok)
	}
	if out.Len() != in.Len() {
		t.Fatalf("expected %d types, got %d", in.Len(), out.Len())
	}
}
