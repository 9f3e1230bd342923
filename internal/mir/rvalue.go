package mir

import "mirvm/internal/types"

type RvalueKind uint8

const (
	RvalueUse RvalueKind = iota
	RvalueCopyForDeref
	RvalueBinaryOp
	RvalueCheckedBinaryOp
	RvalueUnaryOp
	RvalueAggregate
	RvalueRepeat
	RvalueLen
	RvalueRef
	RvalueAddressOf
	RvalueNullaryOp
	RvalueShallowInitBox
	RvalueCast
	RvalueDiscriminant
	RvalueThreadLocalRef
)

// Rvalue computes a value to store into a place. Only the operand pair of a
// binary operation and the operand list of an aggregate live behind pointers.
type Rvalue struct {
	Kind RvalueKind `msgpack:"k"`

	Operand   Operand         `msgpack:"o,omitempty"` // Use, UnaryOp, Repeat, ShallowInitBox, Cast
	Place     Place           `msgpack:"p,omitempty"` // CopyForDeref, Len, Ref, AddressOf, Discriminant
	BinOp     BinOp           `msgpack:"bo,omitempty"`
	Binary    *BinaryOperands `msgpack:"b,omitempty"`
	UnOp      UnOp            `msgpack:"uo,omitempty"`
	Aggregate *Aggregate      `msgpack:"a,omitempty"`
	Count     uint64          `msgpack:"n,omitempty"` // Repeat
	Borrow    BorrowKind      `msgpack:"bk,omitempty"`
	Mutable   bool            `msgpack:"m,omitempty"` // AddressOf
	NullOp    NullOp          `msgpack:"no,omitempty"`
	Fields    []FieldStep     `msgpack:"f,omitempty"` // NullaryOp OffsetOf
	Type      types.TypeID    `msgpack:"t,omitempty"` // NullaryOp operand type, Cast target, ShallowInitBox result
	Cast      CastKind        `msgpack:"c,omitempty"`
	Static    StaticID        `msgpack:"s,omitempty"` // ThreadLocalRef
}

// BinaryOperands is the (left, right) payload of a binary operation.
type BinaryOperands struct {
	Left  Operand `msgpack:"l"`
	Right Operand `msgpack:"r"`
}

// FieldStep is one step of an offset_of path.
type FieldStep struct {
	Variant int `msgpack:"v,omitempty"`
	Field   int `msgpack:"f"`
}

type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitXor
	BinBitAnd
	BinBitOr
	BinShl
	BinShr
	BinEq
	BinLt
	BinLe
	BinNe
	BinGe
	BinGt
	BinCmp
	BinOffset
	BinAddUnchecked
	BinSubUnchecked
	BinMulUnchecked
	BinShlUnchecked
	BinShrUnchecked
)

// IsLeftHomogeneous reports whether the result type equals the left operand type.
func (op BinOp) IsLeftHomogeneous() bool {
	switch op {
	case BinAdd, BinSub, BinMul, BinDiv, BinRem, BinBitXor, BinBitAnd, BinBitOr,
		BinShl, BinShr, BinOffset,
		BinAddUnchecked, BinSubUnchecked, BinMulUnchecked, BinShlUnchecked, BinShrUnchecked:
		return true
	}
	return false
}

// IsRightHomogeneous reports whether the right operand type equals the left one.
func (op BinOp) IsRightHomogeneous() bool {
	switch op {
	case BinAdd, BinSub, BinMul, BinDiv, BinRem, BinBitXor, BinBitAnd, BinBitOr,
		BinEq, BinLt, BinLe, BinNe, BinGe, BinGt, BinCmp,
		BinAddUnchecked, BinSubUnchecked, BinMulUnchecked:
		return true
	}
	return false
}

// IsComparison reports operators producing bool.
func (op BinOp) IsComparison() bool {
	switch op {
	case BinEq, BinLt, BinLe, BinNe, BinGe, BinGt:
		return true
	}
	return false
}

// IsShift reports shift operators, whose right operand may have any integer type.
func (op BinOp) IsShift() bool {
	switch op {
	case BinShl, BinShr, BinShlUnchecked, BinShrUnchecked:
		return true
	}
	return false
}

func (op BinOp) String() string {
	names := [...]string{"Add", "Sub", "Mul", "Div", "Rem", "BitXor", "BitAnd", "BitOr", "Shl", "Shr",
		"Eq", "Lt", "Le", "Ne", "Ge", "Gt", "Cmp", "Offset",
		"AddUnchecked", "SubUnchecked", "MulUnchecked", "ShlUnchecked", "ShrUnchecked"}
	if int(op) < len(names) {
		return names[op]
	}
	return "BinOp?"
}

type UnOp uint8

const (
	UnNot UnOp = iota
	UnNeg
)

func (op UnOp) String() string {
	if op == UnNeg {
		return "Neg"
	}
	return "Not"
}

type BorrowKind uint8

const (
	BorrowShared BorrowKind = iota
	BorrowFake
	BorrowMut
	BorrowMutTwoPhase
)

// AllowsTwoPhase reports a mutable borrow that may be used in two phases.
func (k BorrowKind) AllowsTwoPhase() bool {
	return k == BorrowMutTwoPhase
}

func (k BorrowKind) String() string {
	switch k {
	case BorrowShared:
		return "&"
	case BorrowFake:
		return "&fake "
	case BorrowMut:
		return "&mut "
	case BorrowMutTwoPhase:
		return "&two-phase mut "
	default:
		return "&? "
	}
}

type NullOp uint8

const (
	NullSizeOf NullOp = iota
	NullAlignOf
	NullOffsetOf
	NullUbChecks
)

func (op NullOp) String() string {
	switch op {
	case NullSizeOf:
		return "SizeOf"
	case NullAlignOf:
		return "AlignOf"
	case NullOffsetOf:
		return "OffsetOf"
	case NullUbChecks:
		return "UbChecks"
	default:
		return "NullOp?"
	}
}

type CastKind uint8

const (
	CastIntToInt CastKind = iota
	CastPtrToPtr
	CastPointerExposeProvenance
	CastPointerWithExposedProvenance
	CastTransmute
)

func (k CastKind) String() string {
	switch k {
	case CastIntToInt:
		return "IntToInt"
	case CastPtrToPtr:
		return "PtrToPtr"
	case CastPointerExposeProvenance:
		return "PointerExposeProvenance"
	case CastPointerWithExposedProvenance:
		return "PointerWithExposedProvenance"
	case CastTransmute:
		return "Transmute"
	default:
		return "Cast?"
	}
}

type AggKind uint8

const (
	AggAdt AggKind = iota
	AggTuple
	AggArray
	AggRawPtr
)

// AggregateKind says what an aggregate builds. Type is the ADT type (Adt),
// the element type (Array) or the pointer type (RawPtr).
type AggregateKind struct {
	Kind        AggKind      `msgpack:"k"`
	Type        types.TypeID `msgpack:"t,omitempty"`
	Variant     int          `msgpack:"v,omitempty"`
	ActiveField int          `msgpack:"af,omitempty"`
	HasActive   bool         `msgpack:"ha,omitempty"`
}

// Aggregate is the payload of an aggregate rvalue.
type Aggregate struct {
	Kind     AggregateKind `msgpack:"k"`
	Operands []Operand     `msgpack:"o"`
}

// Rvalue constructors --------------------------------------------------------

func Use(op Operand) Rvalue {
	return Rvalue{Kind: RvalueUse, Operand: op}
}

func CopyForDeref(p Place) Rvalue {
	return Rvalue{Kind: RvalueCopyForDeref, Place: p}
}

func Binary(op BinOp, left, right Operand) Rvalue {
	return Rvalue{Kind: RvalueBinaryOp, BinOp: op, Binary: &BinaryOperands{Left: left, Right: right}}
}

func CheckedBinary(op BinOp, left, right Operand) Rvalue {
	return Rvalue{Kind: RvalueCheckedBinaryOp, BinOp: op, Binary: &BinaryOperands{Left: left, Right: right}}
}

func Unary(op UnOp, operand Operand) Rvalue {
	return Rvalue{Kind: RvalueUnaryOp, UnOp: op, Operand: operand}
}

func AdtAggregate(adt types.TypeID, variant int, ops ...Operand) Rvalue {
	return Rvalue{Kind: RvalueAggregate, Aggregate: &Aggregate{
		Kind:     AggregateKind{Kind: AggAdt, Type: adt, Variant: variant},
		Operands: ops,
	}}
}

// UnionAggregate initializes only field of variant through a single operand.
func UnionAggregate(adt types.TypeID, variant, field int, op Operand) Rvalue {
	return Rvalue{Kind: RvalueAggregate, Aggregate: &Aggregate{
		Kind:     AggregateKind{Kind: AggAdt, Type: adt, Variant: variant, ActiveField: field, HasActive: true},
		Operands: []Operand{op},
	}}
}

func TupleAggregate(ops ...Operand) Rvalue {
	return Rvalue{Kind: RvalueAggregate, Aggregate: &Aggregate{Kind: AggregateKind{Kind: AggTuple}, Operands: ops}}
}

func ArrayAggregate(elem types.TypeID, ops ...Operand) Rvalue {
	return Rvalue{Kind: RvalueAggregate, Aggregate: &Aggregate{Kind: AggregateKind{Kind: AggArray, Type: elem}, Operands: ops}}
}

// RawPtrAggregate builds a pointer of type ptrTy from (data, metadata).
func RawPtrAggregate(ptrTy types.TypeID, ops ...Operand) Rvalue {
	return Rvalue{Kind: RvalueAggregate, Aggregate: &Aggregate{Kind: AggregateKind{Kind: AggRawPtr, Type: ptrTy}, Operands: ops}}
}

func Repeat(op Operand, count uint64) Rvalue {
	return Rvalue{Kind: RvalueRepeat, Operand: op, Count: count}
}

func Len(p Place) Rvalue {
	return Rvalue{Kind: RvalueLen, Place: p}
}

func Ref(kind BorrowKind, p Place) Rvalue {
	return Rvalue{Kind: RvalueRef, Borrow: kind, Place: p}
}

func AddressOf(mutable bool, p Place) Rvalue {
	return Rvalue{Kind: RvalueAddressOf, Mutable: mutable, Place: p}
}

func Nullary(op NullOp, ty types.TypeID, fields ...FieldStep) Rvalue {
	return Rvalue{Kind: RvalueNullaryOp, NullOp: op, Type: ty, Fields: fields}
}

func ShallowInitBox(op Operand, boxTy types.TypeID) Rvalue {
	return Rvalue{Kind: RvalueShallowInitBox, Operand: op, Type: boxTy}
}

func Cast(kind CastKind, op Operand, target types.TypeID) Rvalue {
	return Rvalue{Kind: RvalueCast, Cast: kind, Operand: op, Type: target}
}

func Discriminant(p Place) Rvalue {
	return Rvalue{Kind: RvalueDiscriminant, Place: p}
}

func ThreadLocalRef(id StaticID) Rvalue {
	return Rvalue{Kind: RvalueThreadLocalRef, Static: id}
}
