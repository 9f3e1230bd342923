package mir

import "mirvm/internal/source"

type StmtKind uint8

const (
	StmtAssign StmtKind = iota
	StmtSetDiscriminant
	StmtDeinit
	StmtStorageLive
	StmtStorageDead
	StmtFakeRead
	StmtRetag
	StmtIntrinsic
	StmtPlaceMention
	StmtAscribeUserType
	StmtCoverage
	StmtConstEvalCounter
	StmtNop
)

func (k StmtKind) String() string {
	names := [...]string{"Assign", "SetDiscriminant", "Deinit", "StorageLive", "StorageDead", "FakeRead",
		"Retag", "Intrinsic", "PlaceMention", "AscribeUserType", "Coverage", "ConstEvalCounter", "Nop"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Stmt?"
}

// Statement is one non-terminator step of a basic block.
type Statement struct {
	Kind StmtKind    `msgpack:"k"`
	Span source.Span `msgpack:"s,omitempty"`

	Place     Place      `msgpack:"p,omitempty"` // Assign destination and every place-taking kind
	Rvalue    Rvalue     `msgpack:"r,omitempty"` // Assign
	Variant   int        `msgpack:"v,omitempty"` // SetDiscriminant
	Local     LocalID    `msgpack:"l,omitempty"` // StorageLive, StorageDead
	Retag     RetagKind  `msgpack:"rk,omitempty"`
	Intrinsic *Intrinsic `msgpack:"i,omitempty"`
}

type IntrinsicKind uint8

const (
	IntrinsicAssume IntrinsicKind = iota
	IntrinsicCopyNonOverlapping
)

// Intrinsic is a non-diverging intrinsic call embedded as a statement.
type Intrinsic struct {
	Kind  IntrinsicKind `msgpack:"k"`
	Op    Operand       `msgpack:"o,omitempty"` // Assume
	Src   Operand       `msgpack:"src,omitempty"`
	Dst   Operand       `msgpack:"dst,omitempty"`
	Count Operand       `msgpack:"n,omitempty"`
}

// Statement constructors -----------------------------------------------------

func Assign(dst Place, rv Rvalue) Statement {
	return Statement{Kind: StmtAssign, Place: dst, Rvalue: rv}
}

func SetDiscriminant(p Place, variant int) Statement {
	return Statement{Kind: StmtSetDiscriminant, Place: p, Variant: variant}
}

func Deinit(p Place) Statement {
	return Statement{Kind: StmtDeinit, Place: p}
}

func StorageLive(l LocalID) Statement {
	return Statement{Kind: StmtStorageLive, Local: l}
}

func StorageDead(l LocalID) Statement {
	return Statement{Kind: StmtStorageDead, Local: l}
}

func FakeRead(p Place) Statement {
	return Statement{Kind: StmtFakeRead, Place: p}
}

func Retag(kind RetagKind, p Place) Statement {
	return Statement{Kind: StmtRetag, Retag: kind, Place: p}
}

func Assume(op Operand) Statement {
	return Statement{Kind: StmtIntrinsic, Intrinsic: &Intrinsic{Kind: IntrinsicAssume, Op: op}}
}

func CopyNonOverlapping(src, dst, count Operand) Statement {
	return Statement{Kind: StmtIntrinsic, Intrinsic: &Intrinsic{Kind: IntrinsicCopyNonOverlapping, Src: src, Dst: dst, Count: count}}
}

func PlaceMention(p Place) Statement {
	return Statement{Kind: StmtPlaceMention, Place: p}
}

func AscribeUserType(p Place) Statement {
	return Statement{Kind: StmtAscribeUserType, Place: p}
}

func Coverage() Statement {
	return Statement{Kind: StmtCoverage}
}

func ConstEvalCounter() Statement {
	return Statement{Kind: StmtConstEvalCounter}
}

func Nop() Statement {
	return Statement{Kind: StmtNop}
}
