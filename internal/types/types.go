package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindInt
	KindUint
	KindNever
	KindArray
	KindSlice
	KindStr
	KindRawPtr
	KindRef
	KindBox
	KindTuple
	KindAdt
	KindParam
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindNever:
		return "never"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindStr:
		return "str"
	case KindRawPtr:
		return "rawptr"
	case KindRef:
		return "ref"
	case KindBox:
		return "box"
	case KindTuple:
		return "tuple"
	case KindAdt:
		return "adt"
	case KindParam:
		return "param"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers. WidthAny is pointer-sized.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind   `msgpack:"k"`
	Elem    TypeID `msgpack:"e,omitempty"`
	Count   uint64 `msgpack:"n,omitempty"` // arrays
	Width   Width  `msgpack:"w,omitempty"` // integers
	Mutable bool   `msgpack:"m,omitempty"` // pointers and references
	Payload uint32 `msgpack:"p,omitempty"` // tuple slot, ADT instance slot or param index
}

// Descriptor helpers ---------------------------------------------------------

func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeArray describes [elem; count].
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes the unsized [elem].
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakeRawPtr describes *const elem or *mut elem.
func MakeRawPtr(elem TypeID, mutable bool) Type {
	return Type{Kind: KindRawPtr, Elem: elem, Mutable: mutable}
}

// MakeRef describes &elem or &mut elem.
func MakeRef(elem TypeID, mutable bool) Type {
	return Type{Kind: KindRef, Elem: elem, Mutable: mutable}
}

func MakeBox(elem TypeID) Type {
	return Type{Kind: KindBox, Elem: elem}
}

// MakeParam describes the i-th generic parameter of the enclosing body.
func MakeParam(index uint32) Type {
	return Type{Kind: KindParam, Payload: index}
}

// IsPointerLike reports kinds whose values are addresses.
func (t Type) IsPointerLike() bool {
	return t.Kind == KindRawPtr || t.Kind == KindRef || t.Kind == KindBox
}

// IsInteger reports signed or unsigned integer kinds.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}
