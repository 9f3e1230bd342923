package machine

import (
	"fmt"

	"mirvm/internal/fault"
	"mirvm/internal/interp"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
	"mirvm/internal/trace"
)

// progressThreshold is the counter value after which ConstEval reports
// progress at every power of two.
const progressThreshold = 1 << 20

// ConstEval evaluates constants. It has no provenance tracking, refuses
// thread-locals and exposure, and enforces the ConstEvalCounter budget.
type ConstEval struct {
	Limit uint64
	steps uint64
}

func NewConstEval(limit uint64) *ConstEval {
	return &ConstEval{Limit: limit}
}

func (m *ConstEval) Name() string { return "const-eval" }

// Steps is the number of ConstEvalCounter statements seen.
func (m *ConstEval) Steps() uint64 { return m.steps }

func (m *ConstEval) BeforeTerminator(*interp.InterpCx) error { return nil }

func (m *ConstEval) RetagPtrValue(_ *interp.InterpCx, _ mir.RetagKind, val memory.Immediate) (memory.Immediate, error) {
	return val, nil
}

func (m *ConstEval) RetagPlaceContents(*interp.InterpCx, mir.RetagKind, interp.PlaceTy) error {
	return nil
}

func (m *ConstEval) ThreadLocalStaticPointer(_ *interp.InterpCx, id mir.StaticID) (memory.Pointer, error) {
	return memory.Pointer{}, fault.Unsupported("thread-local statics are not supported in constants (static#%d)", id)
}

func (m *ConstEval) IncrementConstEvalCounter(cx *interp.InterpCx) error {
	m.steps++
	if m.Limit > 0 && m.steps > m.Limit {
		return fault.Errorf(fault.CodeStepLimit, "exceeded interpreter step limit of %d", m.Limit)
	}
	if m.steps >= progressThreshold && m.steps&(m.steps-1) == 0 {
		trace.Point(cx.Tracer, trace.ScopeEval, "progress", fmt.Sprintf("constant evaluation is taking a long time (%d steps)", m.steps))
	}
	return nil
}

func (m *ConstEval) EmulateNondivergingIntrinsic(cx *interp.InterpCx, in *mir.Intrinsic) error {
	return interp.DefaultNondivergingIntrinsic(cx, in)
}

func (m *ConstEval) ExposeProvenance(*interp.InterpCx, memory.Pointer) error {
	return fault.Unsupported("exposing pointers is not possible at compile-time")
}

// PointerFromExposedAddr yields a pointer without provenance.
func (m *ConstEval) PointerFromExposedAddr(_ *interp.InterpCx, addr uint64) (memory.Pointer, error) {
	return memory.Pointer{Addr: addr}, nil
}
