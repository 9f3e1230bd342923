package mir

import (
	"mirvm/internal/source"
	"mirvm/internal/types"
)

type BodyID int32
type BlockID int32
type LocalID int32
type StaticID int32

const (
	NoBodyID   BodyID   = -1
	NoBlockID  BlockID  = -1
	NoLocalID  LocalID  = -1
	NoStaticID StaticID = -1
)

// ReturnLocal is the local that holds a body's return value.
const ReturnLocal LocalID = 0

type Local struct {
	Name    string       `msgpack:"n,omitempty"`
	Type    types.TypeID `msgpack:"t"`
	Mutable bool         `msgpack:"m,omitempty"`
	Span    source.Span  `msgpack:"s,omitempty"`
}

type ProjKind uint8

const (
	ProjDeref ProjKind = iota
	ProjField
	ProjIndex
	ProjConstantIndex
	ProjDowncast
)

// ProjElem is one projection step of a place.
type ProjElem struct {
	Kind ProjKind `msgpack:"k"`

	Field     int     `msgpack:"f,omitempty"` // ProjField
	Index     LocalID `msgpack:"i,omitempty"` // ProjIndex
	Offset    uint64  `msgpack:"o,omitempty"` // ProjConstantIndex
	MinLength uint64  `msgpack:"l,omitempty"` // ProjConstantIndex
	FromEnd   bool    `msgpack:"e,omitempty"` // ProjConstantIndex
	Variant   int     `msgpack:"v,omitempty"` // ProjDowncast
}

// Place is a local plus a chain of projections.
type Place struct {
	Local LocalID    `msgpack:"l"`
	Proj  []ProjElem `msgpack:"p,omitempty"`
}

// LocalPlace is the place of a whole local.
func LocalPlace(l LocalID) Place {
	return Place{Local: l}
}

// IsIndirectFirstProjection reports whether the place starts by dereferencing its local.
func (p Place) IsIndirectFirstProjection() bool {
	return len(p.Proj) > 0 && p.Proj[0].Kind == ProjDeref
}

// IsLocal reports a place without projections.
func (p Place) IsLocal() bool {
	return len(p.Proj) == 0
}

func (p Place) project(e ProjElem) Place {
	proj := make([]ProjElem, len(p.Proj), len(p.Proj)+1)
	copy(proj, p.Proj)
	return Place{Local: p.Local, Proj: append(proj, e)}
}

func (p Place) Deref() Place {
	return p.project(ProjElem{Kind: ProjDeref})
}

func (p Place) Field(i int) Place {
	return p.project(ProjElem{Kind: ProjField, Field: i})
}

func (p Place) Index(l LocalID) Place {
	return p.project(ProjElem{Kind: ProjIndex, Index: l})
}

func (p Place) ConstantIndex(offset, minLength uint64, fromEnd bool) Place {
	return p.project(ProjElem{Kind: ProjConstantIndex, Offset: offset, MinLength: minLength, FromEnd: fromEnd})
}

func (p Place) Downcast(variant int) Place {
	return p.project(ProjElem{Kind: ProjDowncast, Variant: variant})
}

// RetagKind selects how the machine derives a new provenance tag.
type RetagKind uint8

const (
	RetagDefault RetagKind = iota
	RetagTwoPhase
	RetagRaw
	RetagFnEntry
)

func (k RetagKind) String() string {
	switch k {
	case RetagDefault:
		return "default"
	case RetagTwoPhase:
		return "two-phase"
	case RetagRaw:
		return "raw"
	case RetagFnEntry:
		return "fn-entry"
	default:
		return "retag?"
	}
}
