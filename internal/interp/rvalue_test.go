package interp_test

import (
	"bytes"
	"testing"

	"mirvm/internal/fault"
	"mirvm/internal/machine"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

func TestCheckedAddProducesPair(t *testing.T) {
	f := newFixture()
	pair := f.in.Tuple([]types.TypeID{f.b.U8, f.b.Bool})
	bld := mir.NewBuilder("checked", pair)
	bld.Assign(ret, mir.CheckedBinary(mir.BinAdd, mir.ConstUint(f.b.U8, 250), mir.ConstUint(f.b.U8, 10)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx, err := f.run(t, machine.NewConstEval(0))
	if err != nil {
		t.Fatal(err)
	}
	imm, l, err := cx.Result()
	if err != nil {
		t.Fatal(err)
	}
	if l.Type == f.b.U8 || l.Size != 2 {
		t.Fatalf("expected a (u8, bool) layout, got %s size %d", f.in.Label(l.Type), l.Size)
	}
	if imm.A.Uint64() != 4 || imm.B.Uint64() != 1 {
		t.Fatalf("expected (4, true), got %s", imm)
	}
}

func TestCheckedBinaryOps(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name     string
		op       mir.BinOp
		ty       types.TypeID
		l, r     int64
		want     uint64
		overflow bool
	}{
		{"u8 add wraps", mir.BinAdd, f.b.U8, 250, 10, 4, true},
		{"u8 sub borrows", mir.BinSub, f.b.U8, 3, 5, 254, true},
		{"i8 add overflows", mir.BinAdd, f.b.I8, 127, 1, 0x80, true},
		{"i8 sub in range", mir.BinSub, f.b.I8, -1, 1, 0xfe, false},
		{"u32 mul in range", mir.BinMul, f.b.U32, 1000, 1000, 1000000, false},
		{"i32 mul overflows", mir.BinMul, f.b.I32, 65536, 65536, 0, true},
		{"u32 shl masks amount", mir.BinShl, f.b.U32, 1, 33, 2, true},
		{"u32 shl in range", mir.BinShl, f.b.U32, 1, 31, 0x80000000, false},
		{"i16 shr is arithmetic", mir.BinShr, f.b.I16, -8, 1, 0xfffc, false},
		{"i64 sub overflows", mir.BinSub, f.b.I64, -1 << 63, 1, 1<<63 - 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.prog = mir.NewProgram(tt.name, f.in)
			pair := f.in.Tuple([]types.TypeID{tt.ty, f.b.Bool})
			bld := mir.NewBuilder("checked", pair)
			bld.Assign(ret, mir.CheckedBinary(tt.op, mir.ConstInt(tt.ty, tt.l), mir.ConstInt(tt.ty, tt.r)))
			bld.Terminate(mir.Return())
			f.entry(bld)

			got := f.mustRun(t, machine.NewConstEval(0))
			if got.A.Uint64() != tt.want {
				t.Fatalf("expected value %#x, got %#x", tt.want, got.A.Uint64())
			}
			if (got.B.Uint64() == 1) != tt.overflow {
				t.Fatalf("expected overflow=%v, got %s", tt.overflow, got.B)
			}
		})
	}
}

func TestCheckedAddU128(t *testing.T) {
	f := newFixture()
	pair := f.in.Tuple([]types.TypeID{f.b.U128, f.b.Bool})
	bld := mir.NewBuilder("wide", pair)
	bld.Assign(ret, mir.CheckedBinary(mir.BinAdd,
		mir.ConstUint128(f.b.U128, ^uint64(0), ^uint64(0)), mir.ConstUint(f.b.U128, 1)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	got := f.mustRun(t, machine.NewConstEval(0))
	if !got.A.Bits.IsZero() || got.B.Uint64() != 1 {
		t.Fatalf("expected (0, true), got %s", got)
	}
}

func TestBinaryOps(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name  string
		op    mir.BinOp
		ty    types.TypeID
		resTy types.TypeID
		l, r  int64
		want  uint64
		code  fault.Code
	}{
		{"u8 add wraps", mir.BinAdd, f.b.U8, f.b.U8, 250, 10, 4, 0},
		{"u32 div", mir.BinDiv, f.b.U32, f.b.U32, 7, 2, 3, 0},
		{"i32 div truncates", mir.BinDiv, f.b.I32, f.b.I32, -7, 2, 0xfffffffd, 0},
		{"i32 rem keeps sign", mir.BinRem, f.b.I32, f.b.I32, -7, 2, 0xffffffff, 0},
		{"u32 div by zero", mir.BinDiv, f.b.U32, f.b.U32, 1, 0, 0, fault.CodeDivisionByZero},
		{"u64 rem by zero", mir.BinRem, f.b.U64, f.b.U64, 1, 0, 0, fault.CodeDivisionByZero},
		{"i32 min rem minus one", mir.BinRem, f.b.I32, f.b.I32, -1 << 31, -1, 0, fault.CodeArithOverflow},
		{"i8 min div minus one", mir.BinDiv, f.b.I8, f.b.I8, -128, -1, 0, fault.CodeArithOverflow},
		{"unchecked add overflows", mir.BinAddUnchecked, f.b.U8, f.b.U8, 255, 1, 0, fault.CodeArithOverflow},
		{"unchecked sub in range", mir.BinSubUnchecked, f.b.U8, f.b.U8, 1, 1, 0, 0},
		{"unchecked shl out of range", mir.BinShlUnchecked, f.b.U32, f.b.U32, 1, 32, 0, fault.CodeArithOverflow},
		{"signed lt", mir.BinLt, f.b.I32, f.b.Bool, -1, 1, 1, 0},
		{"unsigned lt", mir.BinLt, f.b.U32, f.b.Bool, 0xffffffff, 1, 0, 0},
		{"u8 ge", mir.BinGe, f.b.U8, f.b.Bool, 5, 5, 1, 0},
		{"i32 cmp less", mir.BinCmp, f.b.I32, f.b.I8, -5, 3, 0xff, 0},
		{"u32 cmp greater", mir.BinCmp, f.b.U32, f.b.I8, 9, 3, 1, 0},
		{"u16 xor", mir.BinBitXor, f.b.U16, f.b.U16, 0xff00, 0x0ff0, 0xf0f0, 0},
		{"bool eq", mir.BinEq, f.b.Bool, f.b.Bool, 1, 1, 1, 0},
		{"bool and", mir.BinBitAnd, f.b.Bool, f.b.Bool, 1, 0, 0, 0},
		{"char ne", mir.BinNe, f.b.Char, f.b.Bool, 'a', 'b', 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.prog = mir.NewProgram(tt.name, f.in)
			bld := mir.NewBuilder("binop", tt.resTy)
			bld.Assign(ret, mir.Binary(tt.op, mir.ConstInt(tt.ty, tt.l), mir.ConstInt(tt.ty, tt.r)))
			bld.Terminate(mir.Return())
			f.entry(bld)

			cx, err := f.run(t, machine.NewConstEval(0))
			if tt.code != 0 {
				expectCode(t, err, tt.code)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			got, _, err := cx.Result()
			if err != nil {
				t.Fatal(err)
			}
			if got.A.Uint64() != tt.want {
				t.Fatalf("expected %#x, got %#x", tt.want, got.A.Uint64())
			}
		})
	}
}

func TestBinaryOpMismatchedTypesIsBug(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("mismatch", f.b.Bool)
	bld.Assign(ret, mir.Binary(mir.BinEq, mir.ConstUint(f.b.U32, 1), mir.ConstUint(f.b.U64, 1)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	expectBug(t, "given for a value of type", func() {
		_, _ = f.run(t, machine.NewConstEval(0))
	})
}

func TestUnaryOps(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		op   mir.UnOp
		ty   types.TypeID
		v    int64
		want uint64
	}{
		{"neg i32", mir.UnNeg, f.b.I32, 5, 0xfffffffb},
		{"neg i8 min wraps", mir.UnNeg, f.b.I8, -128, 0x80},
		{"not u8", mir.UnNot, f.b.U8, 0x0f, 0xf0},
		{"not bool", mir.UnNot, f.b.Bool, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.prog = mir.NewProgram(tt.name, f.in)
			bld := mir.NewBuilder("unop", tt.ty)
			bld.Assign(ret, mir.Unary(tt.op, mir.ConstInt(tt.ty, tt.v)))
			bld.Terminate(mir.Return())
			f.entry(bld)

			if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != tt.want {
				t.Fatalf("expected %#x, got %#x", tt.want, got.A.Uint64())
			}
		})
	}
}

func TestUnaryOpLayoutHintMismatchIsBug(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("neg", f.b.I64)
	bld.Assign(ret, mir.Unary(mir.UnNeg, mir.ConstInt(f.b.I32, 5)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	expectBug(t, "layout of i64 given for a value of type i32", func() {
		_, _ = f.run(t, machine.NewConstEval(0))
	})
}

func TestRefRetagKinds(t *testing.T) {
	f := newFixture()
	shared := f.intern(types.MakeRef(f.b.U32, false))
	unique := f.intern(types.MakeRef(f.b.U32, true))
	bld := mir.NewBuilder("borrows", f.b.Unit)
	x := bld.Local("x", f.b.U32)
	r1 := bld.Local("r1", shared)
	r2 := bld.Local("r2", unique)
	r3 := bld.Local("r3", shared)
	r4 := bld.Local("r4", unique)
	bld.Assign(local(x), mir.Use(mir.ConstUint(f.b.U32, 5)))
	bld.Assign(local(r1), mir.Ref(mir.BorrowShared, local(x)))
	bld.Assign(local(r2), mir.Ref(mir.BorrowMutTwoPhase, local(x)))
	bld.Assign(local(r3), mir.Ref(mir.BorrowFake, local(x)))
	bld.Assign(local(r4), mir.Ref(mir.BorrowMut, local(x)))
	bld.Assign(ret, mir.Use(mir.ConstUnit(f.b.Unit)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	rec := newRecorder()
	if _, err := f.run(t, rec); err != nil {
		t.Fatal(err)
	}
	want := []mir.RetagKind{mir.RetagDefault, mir.RetagTwoPhase, mir.RetagDefault, mir.RetagDefault}
	if len(rec.retags) != len(want) {
		t.Fatalf("expected %d retags, got %v", len(want), rec.retags)
	}
	for i := range want {
		if rec.retags[i] != want[i] {
			t.Fatalf("retag %d: expected %s, got %s", i, want[i], rec.retags[i])
		}
	}
	if rec.terminators != 1 {
		t.Fatalf("expected 1 terminator, got %d", rec.terminators)
	}
}

func TestAddressOfRawShortcut(t *testing.T) {
	f := newFixture()
	raw := f.intern(types.MakeRawPtr(f.b.U32, true))
	ref := f.intern(types.MakeRef(f.b.U32, true))
	bld := mir.NewBuilder("raw", f.b.U32)
	x := bld.Local("x", f.b.U32)
	p := bld.Local("p", raw)
	q := bld.Local("q", raw)
	r := bld.Local("r", ref)
	s := bld.Local("s", raw)
	bld.Assign(local(x), mir.Use(mir.ConstUint(f.b.U32, 1)))
	bld.Assign(local(p), mir.AddressOf(true, local(x)))
	bld.Assign(local(q), mir.AddressOf(true, local(p).Deref()))
	bld.Assign(local(r), mir.Ref(mir.BorrowMut, local(x)))
	bld.Assign(local(s), mir.AddressOf(true, local(r).Deref()))
	bld.Assign(local(q).Deref(), mir.Use(mir.ConstUint(f.b.U32, 9)))
	bld.Assign(ret, mir.Use(mir.Copy(local(x))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	rec := newRecorder()
	got := f.mustRun(t, rec)
	if got.A.Uint64() != 9 {
		t.Fatalf("expected write through q to land in x, got %s", got)
	}
	want := []mir.RetagKind{mir.RetagRaw, mir.RetagDefault, mir.RetagRaw}
	if len(rec.retags) != len(want) {
		t.Fatalf("expected retags %v, got %v", want, rec.retags)
	}
	for i := range want {
		if rec.retags[i] != want[i] {
			t.Fatalf("retag %d: expected %s, got %s", i, want[i], rec.retags[i])
		}
	}
}

func TestNullaryOps(t *testing.T) {
	f := newFixture()
	pair := f.in.Tuple([]types.TypeID{f.b.U8, f.b.U32})
	arr := f.intern(types.MakeArray(f.b.U16, 3))
	tests := []struct {
		name   string
		op     mir.NullOp
		ty     types.TypeID
		fields []mir.FieldStep
		want   uint64
	}{
		{"size of unit", mir.NullSizeOf, f.b.Unit, nil, 0},
		{"size of u64", mir.NullSizeOf, f.b.U64, nil, 8},
		{"size of array", mir.NullSizeOf, arr, nil, 6},
		{"align of u32", mir.NullAlignOf, f.b.U32, nil, 4},
		{"offset of tuple field", mir.NullOffsetOf, pair, []mir.FieldStep{{Field: 1}}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.prog = mir.NewProgram(tt.name, f.in)
			bld := mir.NewBuilder("nullary", f.b.Usize)
			bld.Assign(ret, mir.Nullary(tt.op, tt.ty, tt.fields...))
			bld.Terminate(mir.Return())
			f.entry(bld)

			if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got.A.Uint64())
			}
		})
	}
}

func TestUbChecksNullary(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("checks", f.b.Bool)
	bld.Assign(ret, mir.Nullary(mir.NullUbChecks, f.b.Unit))
	bld.Terminate(mir.Return())
	f.entry(bld)

	if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != 1 {
		t.Fatalf("expected ub checks enabled, got %s", got)
	}
}

func TestSizeOfUnsizedIsBug(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("unsized", f.b.Usize)
	bld.Assign(ret, mir.Nullary(mir.NullSizeOf, f.b.Str))
	bld.Terminate(mir.Return())
	f.entry(bld)

	expectBug(t, "SizeOf called for unsized type", func() {
		_, _ = f.run(t, machine.NewConstEval(0))
	})
}

func TestRawPtrAggregateArityIsBug(t *testing.T) {
	f := newFixture()
	ptr := f.intern(types.MakeRawPtr(f.b.U32, false))
	bld := mir.NewBuilder("arity", ptr)
	bld.Assign(ret, mir.RawPtrAggregate(ptr, mir.ConstUint(f.b.Usize, 0)))
	bld.Terminate(mir.Return())
	f.entry(bld)

	expectBug(t, "raw pointer aggregate has 1 operands", func() {
		_, _ = f.run(t, machine.NewConstEval(0))
	})
}

func TestRawPtrAggregate(t *testing.T) {
	f := newFixture()
	arr := f.intern(types.MakeArray(f.b.U8, 3))
	slice := f.intern(types.MakeSlice(f.b.U8))
	arrPtr := f.intern(types.MakeRawPtr(arr, false))
	thin := f.intern(types.MakeRawPtr(f.b.U8, false))
	wide := f.intern(types.MakeRawPtr(slice, false))
	out := f.in.Tuple([]types.TypeID{f.b.Usize, f.b.U8})

	bld := mir.NewBuilder("rawptr", out)
	a := bld.Local("a", arr)
	p := bld.Local("p", arrPtr)
	p8 := bld.Local("p8", thin)
	s := bld.Local("s", wide)
	t8 := bld.Local("t8", thin)
	n := bld.Local("n", f.b.Usize)
	y := bld.Local("y", f.b.U8)
	bld.Assign(local(a), mir.ArrayAggregate(f.b.U8, mir.ConstUint(f.b.U8, 1), mir.ConstUint(f.b.U8, 2), mir.ConstUint(f.b.U8, 3)))
	bld.Assign(local(p), mir.AddressOf(false, local(a)))
	bld.Assign(local(p8), mir.Cast(mir.CastPtrToPtr, mir.Copy(local(p)), thin))
	bld.Assign(local(s), mir.RawPtrAggregate(wide, mir.Copy(local(p8)), mir.ConstUint(f.b.Usize, 3)))
	bld.Assign(local(t8), mir.RawPtrAggregate(thin, mir.Copy(local(p8)), mir.ConstUnit(f.b.Unit)))
	bld.Assign(local(n), mir.Len(local(s).Deref()))
	bld.Assign(local(y), mir.Use(mir.Copy(local(t8).Deref())))
	bld.Assign(ret, mir.TupleAggregate(mir.Copy(local(n)), mir.Copy(local(y))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	got := f.mustRun(t, machine.NewConstEval(0))
	if got.A.Uint64() != 3 || got.B.Uint64() != 1 {
		t.Fatalf("expected (3, 1), got %s", got)
	}
}

func TestIndexProjection(t *testing.T) {
	build := func(f *fixture, idx uint64) {
		arr := f.intern(types.MakeArray(f.b.U32, 3))
		bld := mir.NewBuilder("index", f.b.U32)
		a := bld.Local("a", arr)
		i := bld.Local("i", f.b.Usize)
		bld.Assign(local(a), mir.ArrayAggregate(f.b.U32,
			mir.ConstUint(f.b.U32, 10), mir.ConstUint(f.b.U32, 20), mir.ConstUint(f.b.U32, 30)))
		bld.Assign(local(i), mir.Use(mir.ConstUint(f.b.Usize, idx)))
		bld.Assign(ret, mir.Use(mir.Copy(local(a).Index(i))))
		bld.Terminate(mir.Return())
		f.entry(bld)
	}

	f := newFixture()
	build(f, 2)
	if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != 30 {
		t.Fatalf("expected 30, got %s", got)
	}

	f = newFixture()
	build(f, 3)
	_, err := f.run(t, machine.NewConstEval(0))
	fe := expectCode(t, err, fault.CodeOutOfBounds)
	if fe.Message != "index out of bounds: the len is 3 but the index is 3" {
		t.Fatalf("unexpected message %q", fe.Message)
	}
}

func TestConstantIndexFromEnd(t *testing.T) {
	f := newFixture()
	arr := f.intern(types.MakeArray(f.b.U8, 4))
	bld := mir.NewBuilder("last", f.b.U8)
	a := bld.Local("a", arr)
	bld.Assign(local(a), mir.ArrayAggregate(f.b.U8,
		mir.ConstUint(f.b.U8, 1), mir.ConstUint(f.b.U8, 2), mir.ConstUint(f.b.U8, 3), mir.ConstUint(f.b.U8, 4)))
	bld.Assign(ret, mir.Use(mir.Copy(local(a).ConstantIndex(1, 4, true))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != 4 {
		t.Fatalf("expected last element 4, got %s", got)
	}
}

func TestCasts(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		kind mir.CastKind
		from types.TypeID
		to   types.TypeID
		v    int64
		want uint64
		code fault.Code
	}{
		{"i8 to u32 sign extends", mir.CastIntToInt, f.b.I8, f.b.U32, -1, 0xffffffff, 0},
		{"u16 to u8 truncates", mir.CastIntToInt, f.b.U16, f.b.U8, 0x1234, 0x34, 0},
		{"u8 to i8 reinterprets", mir.CastIntToInt, f.b.U8, f.b.I8, 200, 0xc8, 0},
		{"bool to u32", mir.CastIntToInt, f.b.Bool, f.b.U32, 1, 1, 0},
		{"u8 to char", mir.CastIntToInt, f.b.U8, f.b.Char, 'A', 'A', 0},
		{"transmute u32 to i32", mir.CastTransmute, f.b.U32, f.b.I32, 0x7fffffff, 0x7fffffff, 0},
		{"transmute size mismatch", mir.CastTransmute, f.b.U16, f.b.U32, 1, 0, fault.CodeTransmuteSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.prog = mir.NewProgram(tt.name, f.in)
			bld := mir.NewBuilder("cast", tt.to)
			bld.Assign(ret, mir.Cast(tt.kind, mir.ConstInt(tt.from, tt.v), tt.to))
			bld.Terminate(mir.Return())
			f.entry(bld)

			cx, err := f.run(t, machine.NewConstEval(0))
			if tt.code != 0 {
				expectCode(t, err, tt.code)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			got, _, err := cx.Result()
			if err != nil {
				t.Fatal(err)
			}
			if got.A.Uint64() != tt.want {
				t.Fatalf("expected %#x, got %#x", tt.want, got.A.Uint64())
			}
		})
	}
}

func TestTransmutedBoolIsValidatedOnUse(t *testing.T) {
	f := newFixture()
	bld := mir.NewBuilder("badbool", f.b.Bool)
	b := bld.Local("b", f.b.Bool)
	bld.Assign(local(b), mir.Cast(mir.CastTransmute, mir.ConstUint(f.b.U8, 2), f.b.Bool))
	bld.Assign(ret, mir.Unary(mir.UnNot, mir.Copy(local(b))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	_, err := f.run(t, machine.NewConstEval(0))
	expectCode(t, err, fault.CodeInvalidValue)
}

func TestTransmuteToArray(t *testing.T) {
	f := newFixture()
	arr := f.intern(types.MakeArray(f.b.U8, 4))
	bld := mir.NewBuilder("bytes", arr)
	bld.Assign(ret, mir.Cast(mir.CastTransmute, mir.ConstUint(f.b.U32, 0x12345678), arr))
	bld.Terminate(mir.Return())
	f.entry(bld)

	cx, err := f.run(t, machine.NewConstEval(0))
	if err != nil {
		t.Fatal(err)
	}
	got, err := cx.ResultBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x78, 0x56, 0x34, 0x12}) {
		t.Fatalf("expected little-endian bytes, got %x", got)
	}
}

func TestPointerOffset(t *testing.T) {
	build := func(f *fixture, off uint64) {
		arr := f.intern(types.MakeArray(f.b.U32, 4))
		ptr := f.intern(types.MakeRawPtr(f.b.U32, false))
		bld := mir.NewBuilder("offset", f.b.U32)
		a := bld.Local("a", arr)
		p := bld.Local("p", ptr)
		q := bld.Local("q", ptr)
		bld.Assign(local(a), mir.Repeat(mir.ConstUint(f.b.U32, 7), 4))
		bld.Assign(local(p), mir.AddressOf(false, local(a).ConstantIndex(0, 4, false)))
		bld.Assign(local(q), mir.Binary(mir.BinOffset, mir.Copy(local(p)), mir.ConstUint(f.b.Usize, off)))
		bld.Assign(ret, mir.Use(mir.ConstUint(f.b.U32, off)))
		bld.Terminate(mir.Return())
		f.entry(bld)
	}
	for _, off := range []uint64{0, 3, 4} {
		f := newFixture()
		build(f, off)
		if _, err := f.run(t, machine.NewConstEval(0)); err != nil {
			t.Fatalf("offset %d: %v", off, err)
		}
	}
	f := newFixture()
	build(f, 5)
	_, err := f.run(t, machine.NewConstEval(0))
	expectCode(t, err, fault.CodeOutOfBounds)
}

func TestPointerComparison(t *testing.T) {
	f := newFixture()
	arr := f.intern(types.MakeArray(f.b.U8, 2))
	ptr := f.intern(types.MakeRawPtr(f.b.U8, false))
	bld := mir.NewBuilder("ptrcmp", f.b.Bool)
	a := bld.Local("a", arr)
	p := bld.Local("p", ptr)
	q := bld.Local("q", ptr)
	bld.Assign(local(a), mir.Repeat(mir.ConstUint(f.b.U8, 0), 2))
	bld.Assign(local(p), mir.AddressOf(false, local(a).ConstantIndex(0, 2, false)))
	bld.Assign(local(q), mir.AddressOf(false, local(a).ConstantIndex(1, 2, false)))
	bld.Assign(ret, mir.Binary(mir.BinLt, mir.Copy(local(p)), mir.Copy(local(q))))
	bld.Terminate(mir.Return())
	f.entry(bld)

	if got := f.mustRun(t, machine.NewConstEval(0)); got.A.Uint64() != 1 {
		t.Fatalf("expected p < q, got %s", got)
	}
}
