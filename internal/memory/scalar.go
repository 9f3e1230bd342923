package memory

import (
	"fmt"

	"github.com/holiman/uint256"
)

// AllocID names an allocation. Zero means "no allocation".
type AllocID uint64

// Tag is a provenance tag handed out by the machine's retagging. Zero is untagged.
type Tag uint64

// Provenance ties a pointer value to the allocation it may access.
type Provenance struct {
	Alloc AllocID `msgpack:"a"`
	Tag   Tag     `msgpack:"t,omitempty"`
}

// Valid reports whether p names an allocation.
func (p Provenance) Valid() bool {
	return p.Alloc != 0
}

// Pointer is an absolute address plus optional provenance.
type Pointer struct {
	Prov Provenance
	Addr uint64
}

// Offset moves p by n bytes, keeping provenance.
func (p Pointer) Offset(n int64) Pointer {
	p.Addr = uint64(int64(p.Addr) + n)
	return p
}

func (p Pointer) String() string {
	if !p.Prov.Valid() {
		return fmt.Sprintf("0x%x", p.Addr)
	}
	if p.Prov.Tag != 0 {
		return fmt.Sprintf("0x%x[alloc%d<%d>]", p.Addr, p.Prov.Alloc, p.Prov.Tag)
	}
	return fmt.Sprintf("0x%x[alloc%d]", p.Addr, p.Prov.Alloc)
}

// Scalar is one primitive value of Size bytes (1..16). Bits holds the
// zero-extended two's complement pattern; Prov is set for pointer values.
type Scalar struct {
	Size int
	Bits uint256.Int
	Prov Provenance
}

// ScalarFromUint truncates v to size bytes.
func ScalarFromUint(v uint64, size int) Scalar {
	var s Scalar
	s.Size = size
	s.Bits.SetUint64(v)
	Truncate(&s.Bits, size)
	return s
}

// ScalarFromInt stores v in two's complement truncated to size bytes.
func ScalarFromInt(v int64, size int) Scalar {
	var s Scalar
	s.Size = size
	s.Bits.SetUint64(uint64(v))
	if v < 0 {
		// sign-extend from 64 to 256 bits before truncating
		s.Bits.ExtendSign(&s.Bits, uint256.NewInt(7))
	}
	Truncate(&s.Bits, size)
	return s
}

// ScalarFromBits truncates an arbitrary 256-bit value to size bytes.
func ScalarFromBits(v *uint256.Int, size int) Scalar {
	var s Scalar
	s.Size = size
	s.Bits.Set(v)
	Truncate(&s.Bits, size)
	return s
}

func ScalarFromBool(b bool) Scalar {
	if b {
		return ScalarFromUint(1, 1)
	}
	return ScalarFromUint(0, 1)
}

// ScalarFromPointer encodes p as a pointer-sized scalar.
func ScalarFromPointer(p Pointer, ptrSize int) Scalar {
	s := ScalarFromUint(p.Addr, ptrSize)
	s.Prov = p.Prov
	return s
}

// IsPtr reports whether the scalar carries provenance.
func (s Scalar) IsPtr() bool {
	return s.Prov.Valid()
}

// ToPointer reinterprets the scalar as an address.
func (s Scalar) ToPointer() Pointer {
	return Pointer{Prov: s.Prov, Addr: s.Bits.Uint64()}
}

func (s Scalar) Uint64() uint64 {
	return s.Bits.Uint64()
}

// SignExtended returns the value sign-extended from Size bytes to 256 bits.
func (s Scalar) SignExtended() uint256.Int {
	var out uint256.Int
	if s.Size <= 0 || s.Size >= 32 {
		out.Set(&s.Bits)
		return out
	}
	out.ExtendSign(&s.Bits, uint256.NewInt(uint64(s.Size-1)))
	return out
}

// Int64 returns the signed value; only meaningful for Size <= 8.
func (s Scalar) Int64() int64 {
	v := s.SignExtended()
	return int64(v.Uint64())
}

// IsNegative reports whether the sign bit of the Size-byte value is set.
func (s Scalar) IsNegative() bool {
	if s.Size <= 0 || s.Size > 32 {
		return false
	}
	bit := uint(s.Size*8 - 1)
	return (s.Bits[bit/64]>>(bit%64))&1 == 1
}

// Dec renders the value in decimal, sign-extended from Size bytes when signed.
func (s Scalar) Dec(signed bool) string {
	if !signed || !s.IsNegative() {
		return s.Bits.Dec()
	}
	v := s.SignExtended()
	v.Neg(&v)
	return "-" + v.Dec()
}

func (s Scalar) String() string {
	if s.IsPtr() {
		return s.ToPointer().String()
	}
	if s.Bits.IsUint64() {
		return fmt.Sprintf("%d_%d", s.Bits.Uint64(), s.Size*8)
	}
	return fmt.Sprintf("%s_%d", s.Bits.Hex(), s.Size*8)
}

// Truncate clears every bit above size bytes.
func Truncate(v *uint256.Int, size int) {
	if size >= 32 {
		return
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(size*8))
	mask.SubUint64(mask, 1)
	v.And(v, mask)
}

// ImmKind classifies an Immediate.
type ImmKind uint8

const (
	ImmUninit ImmKind = iota
	ImmScalar
	ImmPair
)

// Immediate is a value held without backing memory.
type Immediate struct {
	Kind ImmKind
	A, B Scalar
}

func Uninit() Immediate {
	return Immediate{Kind: ImmUninit}
}

func ImmFromScalar(s Scalar) Immediate {
	return Immediate{Kind: ImmScalar, A: s}
}

func ImmFromPair(a, b Scalar) Immediate {
	return Immediate{Kind: ImmPair, A: a, B: b}
}

func (im Immediate) String() string {
	switch im.Kind {
	case ImmScalar:
		return im.A.String()
	case ImmPair:
		return fmt.Sprintf("(%s, %s)", im.A, im.B)
	default:
		return "<uninit>"
	}
}
