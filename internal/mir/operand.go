package mir

import (
	"mirvm/internal/types"
)

type OperandKind uint8

const (
	OperandCopy OperandKind = iota
	OperandMove
	OperandConst
)

// Operand is a place to read from or an embedded constant.
type Operand struct {
	Kind  OperandKind `msgpack:"k"`
	Place Place       `msgpack:"p,omitempty"`
	Const Const       `msgpack:"c,omitempty"`
}

type ConstKind uint8

const (
	// ConstScalar is an integer, bool or char value given by Lo/Hi.
	ConstScalar ConstKind = iota
	// ConstZST is the only value of a zero-sized type.
	ConstZST
	// ConstSlice is a reference to immutable bytes: a (ptr, len) pair.
	ConstSlice
	// ConstStaticAddr is a pointer to a static.
	ConstStaticAddr
	// ConstBytes is the raw target-order representation of any sized value.
	ConstBytes
)

// Const is an embedded constant of type Type.
type Const struct {
	Kind   ConstKind    `msgpack:"k"`
	Type   types.TypeID `msgpack:"t"`
	Lo     uint64       `msgpack:"lo,omitempty"`
	Hi     uint64       `msgpack:"hi,omitempty"`
	Bytes  []byte       `msgpack:"b,omitempty"`
	Static StaticID     `msgpack:"s,omitempty"`
}

func Copy(p Place) Operand {
	return Operand{Kind: OperandCopy, Place: p}
}

func Move(p Place) Operand {
	return Operand{Kind: OperandMove, Place: p}
}

// ConstOperand wraps c.
func ConstOperand(c Const) Operand {
	return Operand{Kind: OperandConst, Const: c}
}

// ConstUint is an unsigned (or bit pattern) scalar constant.
func ConstUint(ty types.TypeID, v uint64) Operand {
	return ConstOperand(Const{Kind: ConstScalar, Type: ty, Lo: v})
}

// ConstUint128 is a scalar constant wider than 64 bits.
func ConstUint128(ty types.TypeID, hi, lo uint64) Operand {
	return ConstOperand(Const{Kind: ConstScalar, Type: ty, Lo: lo, Hi: hi})
}

// ConstInt stores v in two's complement; the interpreter truncates to the type's size.
func ConstInt(ty types.TypeID, v int64) Operand {
	c := Const{Kind: ConstScalar, Type: ty, Lo: uint64(v)}
	if v < 0 {
		c.Hi = ^uint64(0)
	}
	return ConstOperand(c)
}

func ConstBool(ty types.TypeID, b bool) Operand {
	if b {
		return ConstUint(ty, 1)
	}
	return ConstUint(ty, 0)
}

// ConstUnit is the ZST constant of ty.
func ConstUnit(ty types.TypeID) Operand {
	return ConstOperand(Const{Kind: ConstZST, Type: ty})
}

// ConstStr is a &str or &[u8] constant of type ty.
func ConstStr(ty types.TypeID, s string) Operand {
	return ConstOperand(Const{Kind: ConstSlice, Type: ty, Bytes: []byte(s)})
}

// ConstStatic is a pointer of type ty to static id.
func ConstStatic(ty types.TypeID, id StaticID) Operand {
	return ConstOperand(Const{Kind: ConstStaticAddr, Type: ty, Static: id})
}
