package mir

import (
	"mirvm/internal/source"
	"mirvm/internal/types"
)

type TermKind uint8

const (
	TermGoto TermKind = iota
	TermSwitchInt
	TermReturn
	TermUnreachable
	TermCall
	TermAssert
	TermDrop
	TermPanic
	TermUnwindResume
	TermUnwindTerminate
)

func (k TermKind) String() string {
	names := [...]string{"Goto", "SwitchInt", "Return", "Unreachable", "Call", "Assert", "Drop",
		"Panic", "UnwindResume", "UnwindTerminate"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Term?"
}

type Terminator struct {
	Kind TermKind    `msgpack:"k"`
	Span source.Span `msgpack:"s,omitempty"`

	Target BlockID        `msgpack:"t,omitempty"` // Goto, Drop
	Discr  Operand        `msgpack:"d,omitempty"` // SwitchInt
	Switch *SwitchTargets `msgpack:"sw,omitempty"`
	Call   *Call          `msgpack:"c,omitempty"`
	Assert *Assert        `msgpack:"a,omitempty"`
	Place  Place          `msgpack:"p,omitempty"` // Drop
	Msg    string         `msgpack:"m,omitempty"` // Panic
	Unwind UnwindAction   `msgpack:"u,omitempty"` // Drop, Panic
}

// SwitchValue is a 128-bit switch value.
type SwitchValue struct {
	Lo uint64 `msgpack:"lo"`
	Hi uint64 `msgpack:"hi,omitempty"`
}

// SwitchTargets maps Values[i] to Blocks[i]; anything else goes to Otherwise.
type SwitchTargets struct {
	Values    []SwitchValue `msgpack:"v"`
	Blocks    []BlockID     `msgpack:"b"`
	Otherwise BlockID       `msgpack:"o"`
}

// Call invokes Func with Generics as its instantiation. Target is NoBlockID
// for calls that never return.
type Call struct {
	Func     BodyID         `msgpack:"f"`
	Generics []types.TypeID `msgpack:"g,omitempty"`
	Args     []Operand      `msgpack:"a,omitempty"`
	Dest     Place          `msgpack:"d"`
	Target   BlockID        `msgpack:"t"`
	Unwind   UnwindAction   `msgpack:"u,omitempty"`
}

// Assert continues to Target when Cond equals Expected and panics otherwise.
type Assert struct {
	Cond     Operand      `msgpack:"c"`
	Expected bool         `msgpack:"e"`
	Msg      string       `msgpack:"m"`
	Target   BlockID      `msgpack:"t"`
	Unwind   UnwindAction `msgpack:"u,omitempty"`
}

type UnwindKind uint8

const (
	UnwindContinue UnwindKind = iota
	UnwindUnreachable
	UnwindTerminate
	UnwindCleanup
)

// UnwindAction says what happens in the caller when the callee unwinds.
type UnwindAction struct {
	Kind  UnwindKind `msgpack:"k"`
	Block BlockID    `msgpack:"b,omitempty"` // UnwindCleanup
}

func UnwindTo(bb BlockID) UnwindAction {
	return UnwindAction{Kind: UnwindCleanup, Block: bb}
}

// Terminator constructors ----------------------------------------------------

func Goto(bb BlockID) Terminator {
	return Terminator{Kind: TermGoto, Target: bb}
}

func SwitchInt(discr Operand, values []uint64, blocks []BlockID, otherwise BlockID) Terminator {
	sv := make([]SwitchValue, len(values))
	for i, v := range values {
		sv[i] = SwitchValue{Lo: v}
	}
	return Terminator{Kind: TermSwitchInt, Discr: discr, Switch: &SwitchTargets{Values: sv, Blocks: blocks, Otherwise: otherwise}}
}

func Return() Terminator {
	return Terminator{Kind: TermReturn}
}

func Unreachable() Terminator {
	return Terminator{Kind: TermUnreachable}
}

func CallTerm(c Call) Terminator {
	return Terminator{Kind: TermCall, Call: &c}
}

func AssertTerm(cond Operand, expected bool, msg string, target BlockID, unwind UnwindAction) Terminator {
	return Terminator{Kind: TermAssert, Assert: &Assert{Cond: cond, Expected: expected, Msg: msg, Target: target, Unwind: unwind}}
}

func Drop(p Place, target BlockID, unwind UnwindAction) Terminator {
	return Terminator{Kind: TermDrop, Place: p, Target: target, Unwind: unwind}
}

func Panic(msg string) Terminator {
	return Terminator{Kind: TermPanic, Msg: msg}
}

func UnwindResume() Terminator {
	return Terminator{Kind: TermUnwindResume}
}

func UnwindTerminateTerm() Terminator {
	return Terminator{Kind: TermUnwindTerminate}
}

// Successors lists the blocks control may continue at.
func (t *Terminator) Successors() []BlockID {
	var out []BlockID
	addUnwind := func(u UnwindAction) {
		if u.Kind == UnwindCleanup {
			out = append(out, u.Block)
		}
	}
	switch t.Kind {
	case TermGoto:
		out = append(out, t.Target)
	case TermSwitchInt:
		if t.Switch != nil {
			out = append(out, t.Switch.Blocks...)
			out = append(out, t.Switch.Otherwise)
		}
	case TermCall:
		if t.Call != nil {
			if t.Call.Target != NoBlockID {
				out = append(out, t.Call.Target)
			}
			addUnwind(t.Call.Unwind)
		}
	case TermAssert:
		if t.Assert != nil {
			out = append(out, t.Assert.Target)
			addUnwind(t.Assert.Unwind)
		}
	case TermDrop:
		out = append(out, t.Target)
		addUnwind(t.Unwind)
	case TermPanic:
		addUnwind(t.Unwind)
	}
	return out
}
