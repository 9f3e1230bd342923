package samples

import (
	"strconv"

	"mirvm/internal/fault"
	"mirvm/internal/mir"
	"mirvm/internal/types"
)

func init() {
	register(Sample{
		Name:    "factorial",
		Summary: "recursive fact(10) with checked arithmetic",
		Build:   func() *mir.Program { return factorial("factorial", 10, factorialText) },
		Want:    Outcome{Value: 3628800},
	})
	register(Sample{
		Name:    "overflow",
		Summary: "fact(21) overflows u64 and fails its assert",
		Build:   func() *mir.Program { return factorial("overflow", 21, overflowText) },
		Want:    Outcome{Code: fault.CodeAssertFailed},
	})
	register(Sample{Name: "fibonacci", Summary: "iterative fib(30) counting loop iterations", Build: fibonacci, Want: Outcome{Value: 832040}})
	register(Sample{Name: "repeat_sum", Summary: "sum of a repeated array indexed in a loop", Build: repeatSum, Want: Outcome{Value: 24}})
	register(Sample{Name: "enum_match", Summary: "switch on an enum discriminant", Build: enumMatch, Want: Outcome{Value: 42}})
	register(Sample{Name: "generic_max", Summary: "generic max::<u16> instantiated at the call", Build: genericMax, Want: Outcome{Value: 9}})
	register(Sample{Name: "statics", Summary: "read an immutable static table", Build: statics, Want: Outcome{Value: 21}})
	register(Sample{Name: "dangling", Summary: "read through a pointer to a dead local", Build: dangling, Want: Outcome{Code: fault.CodeDanglingPointer}})
	register(Sample{Name: "invalid_bool", Summary: "use of a transmuted bool that is neither 0 nor 1", Build: invalidBool, Want: Outcome{Code: fault.CodeInvalidValue}})
	register(Sample{Name: "panic_unwind", Summary: "panic unwinding through a cleanup block", Build: panicUnwind, Want: Outcome{Code: fault.CodeExplicitPanic}})
	register(Sample{Name: "spin", Summary: "endless loop stopped by the step budget", Build: spin, Want: Outcome{Code: fault.CodeStepLimit}})
}

const factorialText = `fn fact(n: u64) -> u64 {
    if n == 0 {
        return 1;
    }
    n * fact(n - 1)
}

fn main() -> u64 {
    fact(10)
}
`

const overflowText = `fn fact(n: u64) -> u64 {
    if n == 0 {
        return 1;
    }
    n * fact(n - 1)
}

fn main() -> u64 {
    fact(21)
}
`

func factorial(name string, n uint64, text string) *mir.Program {
	u := newUnit(name, text)
	checked := u.in.Tuple([]types.TypeID{u.b.U64, u.b.Bool})
	factID := u.prog.ReserveBody("fact")

	bld := mir.NewBuilder("fact", u.b.U64, u.b.U64).At(u.at("fn fact"))
	arg := local(bld.Arg(0))
	isZero := bld.Local("is_zero", u.b.Bool)
	dec := bld.Local("dec", checked)
	rec := bld.Local("rec", u.b.U64)
	prod := bld.Local("prod", checked)
	base, step, call, mul, done := bld.NewBlock(), bld.NewBlock(), bld.NewBlock(), bld.NewBlock(), bld.NewBlock()

	bld.At(u.at("n == 0"))
	bld.Assign(local(isZero), mir.Binary(mir.BinEq, mir.Copy(arg), mir.ConstUint(u.b.U64, 0)))
	bld.Terminate(mir.SwitchInt(mir.Copy(local(isZero)), []uint64{0}, []mir.BlockID{step}, base))

	bld.SetBlock(base).At(u.at("return 1"))
	bld.Assign(ret, mir.Use(mir.ConstUint(u.b.U64, 1)))
	bld.Terminate(mir.Return())

	bld.SetBlock(step).At(u.at("n - 1"))
	bld.Assign(local(dec), mir.CheckedBinary(mir.BinSub, mir.Copy(arg), mir.ConstUint(u.b.U64, 1)))
	bld.Terminate(mir.AssertTerm(mir.Copy(local(dec).Field(1)), false, "attempt to subtract with overflow", call, mir.UnwindAction{}))

	bld.SetBlock(call).At(u.at("fact(n - 1)"))
	bld.Terminate(mir.CallTerm(mir.Call{
		Func:   factID,
		Args:   []mir.Operand{mir.Copy(local(dec).Field(0))},
		Dest:   local(rec),
		Target: mul,
	}))

	bld.SetBlock(mul).At(u.at("n * fact(n - 1)"))
	bld.Assign(local(prod), mir.CheckedBinary(mir.BinMul, mir.Copy(arg), mir.Copy(local(rec))))
	bld.Terminate(mir.AssertTerm(mir.Copy(local(prod).Field(1)), false, "attempt to multiply with overflow", done, mir.UnwindAction{}))

	bld.SetBlock(done)
	bld.Assign(ret, mir.Use(mir.Copy(local(prod).Field(0))))
	bld.Terminate(mir.Return())
	u.prog.Bodies[factID] = bld.MustFinish()

	main := mir.NewBuilder("main", u.b.U64).At(u.at("fn main"))
	after := main.NewBlock()
	main.At(u.at("fact(" + strconv.FormatUint(n, 10) + ")"))
	main.Terminate(mir.CallTerm(mir.Call{
		Func:   factID,
		Args:   []mir.Operand{mir.ConstUint(u.b.U64, n)},
		Dest:   ret,
		Target: after,
	}))
	main.SetBlock(after)
	main.Terminate(mir.Return())
	return u.entry(main)
}

const fibonacciText = `fn main() -> u64 {
    let (mut a, mut b, mut i) = (0, 1, 0);
    while i < 30 {
        const_eval_counter();
        let t = a + b;
        a = b;
        b = t;
        i += 1;
    }
    a
}
`

func fibonacci() *mir.Program {
	u := newUnit("fibonacci", fibonacciText)
	u64 := func(v uint64) mir.Operand { return mir.ConstUint(u.b.U64, v) }

	bld := mir.NewBuilder("main", u.b.U64).At(u.at("fn main"))
	a := bld.Local("a", u.b.U64)
	b := bld.Local("b", u.b.U64)
	i := bld.Local("i", u.b.U64)
	t := bld.Local("t", u.b.U64)
	cond := bld.Local("cond", u.b.Bool)
	head, body, exit := bld.NewBlock(), bld.NewBlock(), bld.NewBlock()

	bld.At(u.at("let (mut a, mut b, mut i) = (0, 1, 0);"))
	bld.Assign(local(a), mir.Use(u64(0)))
	bld.Assign(local(b), mir.Use(u64(1)))
	bld.Assign(local(i), mir.Use(u64(0)))
	bld.Terminate(mir.Goto(head))

	bld.SetBlock(head).At(u.at("const_eval_counter()"))
	bld.Stmt(mir.ConstEvalCounter())
	bld.At(u.at("i < 30"))
	bld.Assign(local(cond), mir.Binary(mir.BinLt, mir.Copy(local(i)), u64(30)))
	bld.Terminate(mir.SwitchInt(mir.Copy(local(cond)), []uint64{0}, []mir.BlockID{exit}, body))

	bld.SetBlock(body).At(u.at("a + b"))
	bld.Assign(local(t), mir.Binary(mir.BinAdd, mir.Copy(local(a)), mir.Copy(local(b))))
	bld.At(u.at("a = b"))
	bld.Assign(local(a), mir.Use(mir.Copy(local(b))))
	bld.At(u.at("b = t"))
	bld.Assign(local(b), mir.Use(mir.Move(local(t))))
	bld.At(u.at("i += 1"))
	bld.Assign(local(i), mir.Binary(mir.BinAdd, mir.Copy(local(i)), u64(1)))
	bld.Terminate(mir.Goto(head))

	bld.SetBlock(exit).At(u.at("    a\n"))
	bld.Assign(ret, mir.Use(mir.Copy(local(a))))
	bld.Terminate(mir.Return())
	return u.entry(bld)
}

const repeatSumText = `fn main() -> u32 {
    let arr = [3u32; 8];
    let mut sum = 0;
    let mut i = 0;
    while i < arr.len() {
        sum += arr[i];
        i += 1;
    }
    sum
}
`

func repeatSum() *mir.Program {
	u := newUnit("repeat_sum", repeatSumText)
	arrTy := u.in.Intern(types.MakeArray(u.b.U32, 8))

	bld := mir.NewBuilder("main", u.b.U32).At(u.at("fn main"))
	arr := bld.Local("arr", arrTy)
	sum := bld.Local("sum", u.b.U32)
	i := bld.Local("i", u.b.Usize)
	n := bld.Local("n", u.b.Usize)
	cond := bld.Local("cond", u.b.Bool)
	head, body, exit := bld.NewBlock(), bld.NewBlock(), bld.NewBlock()

	bld.At(u.at("[3u32; 8]"))
	bld.Assign(local(arr), mir.Repeat(mir.ConstUint(u.b.U32, 3), 8))
	bld.At(u.at("let mut sum = 0;"))
	bld.Assign(local(sum), mir.Use(mir.ConstUint(u.b.U32, 0)))
	bld.At(u.at("let mut i = 0;"))
	bld.Assign(local(i), mir.Use(mir.ConstUint(u.b.Usize, 0)))
	bld.Terminate(mir.Goto(head))

	bld.SetBlock(head).At(u.at("arr.len()"))
	bld.Assign(local(n), mir.Len(local(arr)))
	bld.At(u.at("i < arr.len()"))
	bld.Assign(local(cond), mir.Binary(mir.BinLt, mir.Copy(local(i)), mir.Copy(local(n))))
	bld.Terminate(mir.SwitchInt(mir.Copy(local(cond)), []uint64{0}, []mir.BlockID{exit}, body))

	bld.SetBlock(body).At(u.at("sum += arr[i]"))
	bld.Assign(local(sum), mir.Binary(mir.BinAdd, mir.Copy(local(sum)), mir.Copy(local(arr).Index(i))))
	bld.At(u.at("i += 1"))
	bld.Assign(local(i), mir.Binary(mir.BinAdd, mir.Copy(local(i)), mir.ConstUint(u.b.Usize, 1)))
	bld.Terminate(mir.Goto(head))

	bld.SetBlock(exit).At(u.at("    sum\n"))
	bld.Assign(ret, mir.Use(mir.Copy(local(sum))))
	bld.Terminate(mir.Return())
	return u.entry(bld)
}

const enumMatchText = `enum Shape {
    Square(u32),
    Rect(u32, u32),
}

fn area(s: Shape) -> u32 {
    match s {
        Shape::Square(side) => side * side,
        Shape::Rect(w, h) => w * h,
    }
}

fn main() -> u32 {
    area(Shape::Rect(6, 7))
}
`

func enumMatch() *mir.Program {
	u := newUnit("enum_match", enumMatchText)
	def := u.in.RegisterEnum("Shape", 0, u.b.U8, []types.VariantInfo{
		{Name: "Square", Discr: 0, Fields: []types.FieldInfo{{Name: "0", Type: u.b.U32}}},
		{Name: "Rect", Discr: 1, Fields: []types.FieldInfo{{Name: "0", Type: u.b.U32}, {Name: "1", Type: u.b.U32}}},
	})
	shape := u.in.Adt(def, nil)

	area := mir.NewBuilder("area", u.b.U32, shape).At(u.at("fn area"))
	s := local(area.Arg(0))
	d := area.Local("discr", u.b.U8)
	square, rect, bad := area.NewBlock(), area.NewBlock(), area.NewBlock()
	area.At(u.at("match s"))
	area.Assign(local(d), mir.Discriminant(s))
	area.Terminate(mir.SwitchInt(mir.Copy(local(d)), []uint64{0, 1}, []mir.BlockID{square, rect}, bad))
	area.SetBlock(square).At(u.at("side * side"))
	area.Assign(ret, mir.Binary(mir.BinMul, mir.Copy(s.Downcast(0).Field(0)), mir.Copy(s.Downcast(0).Field(0))))
	area.Terminate(mir.Return())
	area.SetBlock(rect).At(u.at("w * h"))
	area.Assign(ret, mir.Binary(mir.BinMul, mir.Copy(s.Downcast(1).Field(0)), mir.Copy(s.Downcast(1).Field(1))))
	area.Terminate(mir.Return())
	area.SetBlock(bad).At(u.at("match s"))
	area.Terminate(mir.Unreachable())
	areaID := u.add(area)

	main := mir.NewBuilder("main", u.b.U32).At(u.at("fn main"))
	v := main.Local("shape", shape)
	after := main.NewBlock()
	main.At(u.at("Shape::Rect(6, 7)"))
	main.Assign(local(v), mir.AdtAggregate(shape, 1, mir.ConstUint(u.b.U32, 6), mir.ConstUint(u.b.U32, 7)))
	main.At(u.at("area(Shape::Rect(6, 7))"))
	main.Terminate(mir.CallTerm(mir.Call{Func: areaID, Args: []mir.Operand{mir.Move(local(v))}, Dest: ret, Target: after}))
	main.SetBlock(after)
	main.Terminate(mir.Return())
	return u.entry(main)
}

const genericMaxText = `fn max<T: Ord>(a: T, b: T) -> T {
    if a > b { a } else { b }
}

fn main() -> u16 {
    max::<u16>(3, 9)
}
`

func genericMax() *mir.Program {
	u := newUnit("generic_max", genericMaxText)
	param := u.in.Param(0)

	max := mir.NewBuilder("max", param, param, param).Generics(1).At(u.at("fn max"))
	a, b := local(max.Arg(0)), local(max.Arg(1))
	gt := max.Local("gt", u.b.Bool)
	takeA, takeB := max.NewBlock(), max.NewBlock()
	max.At(u.at("a > b"))
	max.Assign(local(gt), mir.Binary(mir.BinGt, mir.Copy(a), mir.Copy(b)))
	max.Terminate(mir.SwitchInt(mir.Copy(local(gt)), []uint64{0}, []mir.BlockID{takeB}, takeA))
	max.SetBlock(takeA).At(u.at("{ a }"))
	max.Assign(ret, mir.Use(mir.Move(a)))
	max.Terminate(mir.Return())
	max.SetBlock(takeB).At(u.at("{ b }"))
	max.Assign(ret, mir.Use(mir.Move(b)))
	max.Terminate(mir.Return())
	maxID := u.add(max)

	main := mir.NewBuilder("main", u.b.U16).At(u.at("fn main"))
	after := main.NewBlock()
	main.At(u.at("max::<u16>(3, 9)"))
	main.Terminate(mir.CallTerm(mir.Call{
		Func:     maxID,
		Generics: []types.TypeID{u.b.U16},
		Args:     []mir.Operand{mir.ConstUint(u.b.U16, 3), mir.ConstUint(u.b.U16, 9)},
		Dest:     ret,
		Target:   after,
	}))
	main.SetBlock(after)
	main.Terminate(mir.Return())
	return u.entry(main)
}

const staticsText = `static PRIMES: [u8; 4] = [2, 3, 5, 7];

fn main() -> u8 {
    PRIMES[1] * PRIMES[3]
}
`

func statics() *mir.Program {
	u := newUnit("statics", staticsText)
	table := u.in.Intern(types.MakeArray(u.b.U8, 4))
	ref := u.in.Intern(types.MakeRef(table, false))
	id := u.prog.AddStatic(mir.Static{Name: "PRIMES", Type: table, Init: []byte{2, 3, 5, 7}, Span: u.at("static PRIMES")})

	bld := mir.NewBuilder("main", u.b.U8).At(u.at("fn main"))
	p := bld.Local("primes", ref)
	bld.At(u.at("PRIMES[1]"))
	bld.Assign(local(p), mir.Use(mir.ConstStatic(ref, id)))
	bld.At(u.at("PRIMES[1] * PRIMES[3]"))
	bld.Assign(ret, mir.Binary(mir.BinMul,
		mir.Copy(local(p).Deref().ConstantIndex(1, 4, false)),
		mir.Copy(local(p).Deref().ConstantIndex(1, 4, true))))
	bld.Terminate(mir.Return())
	return u.entry(bld)
}

const danglingText = `fn main() -> u32 {
    let p: *const u32;
    {
        let x = 5;
        p = &raw const x;
    }
    unsafe { *p }
}
`

func dangling() *mir.Program {
	u := newUnit("dangling", danglingText)
	ptr := u.in.Intern(types.MakeRawPtr(u.b.U32, false))

	bld := mir.NewBuilder("main", u.b.U32).At(u.at("fn main"))
	p := bld.Local("p", ptr)
	x := bld.Local("x", u.b.U32)
	bld.At(u.at("let x = 5;"))
	bld.Stmt(mir.StorageLive(x))
	bld.Assign(local(x), mir.Use(mir.ConstUint(u.b.U32, 5)))
	bld.At(u.at("&raw const x"))
	bld.Assign(local(p), mir.AddressOf(false, local(x)))
	bld.At(u.at("    }\n"))
	bld.Stmt(mir.StorageDead(x))
	bld.At(u.at("*p"))
	bld.Assign(ret, mir.Use(mir.Copy(local(p).Deref())))
	bld.Terminate(mir.Return())
	return u.entry(bld)
}

const invalidBoolText = `fn main() -> bool {
    let b: bool = unsafe { transmute(3u8) };
    !b
}
`

func invalidBool() *mir.Program {
	u := newUnit("invalid_bool", invalidBoolText)
	bld := mir.NewBuilder("main", u.b.Bool).At(u.at("fn main"))
	b := bld.Local("b", u.b.Bool)
	bld.At(u.at("transmute(3u8)"))
	bld.Assign(local(b), mir.Cast(mir.CastTransmute, mir.ConstUint(u.b.U8, 3), u.b.Bool))
	bld.At(u.at("!b"))
	bld.Assign(ret, mir.Unary(mir.UnNot, mir.Copy(local(b))))
	bld.Terminate(mir.Return())
	return u.entry(bld)
}

const panicUnwindText = `fn explode() {
    panic!("explode");
}

fn main() -> u32 {
    let guard = Guard(1);
    explode();
    0
}
`

func panicUnwind() *mir.Program {
	u := newUnit("panic_unwind", panicUnwindText)

	explode := mir.NewBuilder("explode", u.b.Unit).At(u.at(`panic!("explode")`))
	explode.Terminate(mir.Panic("explode"))
	explodeID := u.add(explode)

	bld := mir.NewBuilder("main", u.b.U32).At(u.at("fn main"))
	guard := bld.Local("guard", u.b.U32)
	tmp := bld.Local("tmp", u.b.Unit)
	after := bld.NewBlock()
	cleanup := bld.NewCleanupBlock()
	resume := bld.NewCleanupBlock()
	bld.At(u.at("let guard = Guard(1);"))
	bld.Assign(local(guard), mir.Use(mir.ConstUint(u.b.U32, 1)))
	bld.At(u.at("explode();"))
	bld.Terminate(mir.CallTerm(mir.Call{Func: explodeID, Dest: local(tmp), Target: after, Unwind: mir.UnwindTo(cleanup)}))
	bld.SetBlock(after).At(u.at("    0\n"))
	bld.Assign(ret, mir.Use(mir.ConstUint(u.b.U32, 0)))
	bld.Terminate(mir.Return())
	bld.SetBlock(cleanup).At(u.at("let guard"))
	bld.Terminate(mir.Drop(local(guard), resume, mir.UnwindAction{Kind: mir.UnwindTerminate}))
	bld.SetBlock(resume)
	bld.Terminate(mir.UnwindResume())
	return u.entry(bld)
}

const spinText = `fn main() {
    loop {
        const_eval_counter();
    }
}
`

func spin() *mir.Program {
	u := newUnit("spin", spinText)
	bld := mir.NewBuilder("main", u.b.Unit).At(u.at("fn main"))
	head := bld.NewBlock()
	bld.Terminate(mir.Goto(head))
	bld.SetBlock(head).At(u.at("const_eval_counter()"))
	bld.Stmt(mir.ConstEvalCounter())
	bld.At(u.at("loop"))
	bld.Terminate(mir.Goto(head))
	return u.entry(bld)
}
