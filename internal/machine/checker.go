package machine

import (
	"mirvm/internal/fault"
	"mirvm/internal/interp"
	"mirvm/internal/memory"
	"mirvm/internal/mir"
)

// Retag records one provenance change made by the Checker.
type Retag struct {
	Kind  mir.RetagKind
	Alloc memory.AllocID
	Old   memory.Tag
	New   memory.Tag
}

// Checker executes programs with fresh provenance tags for every derived
// reference, real thread-local allocations and exposed-provenance casts.
type Checker struct {
	Budget uint64

	terminators uint64
	nextTag     memory.Tag
	retags      []Retag
	exposed     map[memory.AllocID]bool
	tls         map[mir.StaticID]memory.Pointer
}

func NewChecker(budget uint64) *Checker {
	return &Checker{
		Budget:  budget,
		exposed: make(map[memory.AllocID]bool),
		tls:     make(map[mir.StaticID]memory.Pointer),
	}
}

func (m *Checker) Name() string { return "checker" }

// Retags returns every retag performed so far.
func (m *Checker) Retags() []Retag { return m.retags }

// Terminators is the number of terminators executed.
func (m *Checker) Terminators() uint64 { return m.terminators }

// Exposed reports whether alloc had its provenance exposed.
func (m *Checker) Exposed(alloc memory.AllocID) bool { return m.exposed[alloc] }

func (m *Checker) BeforeTerminator(*interp.InterpCx) error {
	m.terminators++
	if m.Budget > 0 && m.terminators > m.Budget {
		return fault.Errorf(fault.CodeStepLimit, "exceeded the budget of %d terminators", m.Budget)
	}
	return nil
}

func (m *Checker) retag(kind mir.RetagKind, s memory.Scalar) memory.Scalar {
	if !s.Prov.Valid() {
		return s
	}
	m.nextTag++
	m.retags = append(m.retags, Retag{Kind: kind, Alloc: s.Prov.Alloc, Old: s.Prov.Tag, New: m.nextTag})
	s.Prov.Tag = m.nextTag
	return s
}

func (m *Checker) RetagPtrValue(_ *interp.InterpCx, kind mir.RetagKind, val memory.Immediate) (memory.Immediate, error) {
	if val.Kind == memory.ImmUninit {
		return val, nil
	}
	val.A = m.retag(kind, val.A)
	return val, nil
}

// RetagPlaceContents retags the pointer stored in place; other values are
// left alone.
func (m *Checker) RetagPlaceContents(cx *interp.InterpCx, kind mir.RetagKind, place interp.PlaceTy) error {
	t, ok := cx.Types.Lookup(place.Layout.Type)
	if !ok || !t.IsPointerLike() {
		return nil
	}
	imm, err := cx.ReadImmediate(place)
	if err != nil {
		return err
	}
	if imm.Kind == memory.ImmUninit {
		return nil
	}
	imm, err = m.RetagPtrValue(cx, kind, imm)
	if err != nil {
		return err
	}
	return cx.WriteImmediate(imm, place)
}

func (m *Checker) ThreadLocalStaticPointer(cx *interp.InterpCx, id mir.StaticID) (memory.Pointer, error) {
	if ptr, ok := m.tls[id]; ok {
		return ptr, nil
	}
	s, ok := cx.Prog.Static(id)
	if !ok {
		return memory.Pointer{}, fault.Errorf(fault.CodeBadShape, "static#%d does not exist", id)
	}
	if !s.ThreadLocal {
		return memory.Pointer{}, fault.Errorf(fault.CodeBadShape, "static %s is not thread-local", s.Name)
	}
	ptr, err := cx.AllocStatic(s, memory.KindThreadLocal)
	if err != nil {
		return memory.Pointer{}, err
	}
	m.tls[id] = ptr
	return ptr, nil
}

func (m *Checker) IncrementConstEvalCounter(*interp.InterpCx) error { return nil }

func (m *Checker) EmulateNondivergingIntrinsic(cx *interp.InterpCx, in *mir.Intrinsic) error {
	return interp.DefaultNondivergingIntrinsic(cx, in)
}

func (m *Checker) ExposeProvenance(_ *interp.InterpCx, ptr memory.Pointer) error {
	m.exposed[ptr.Prov.Alloc] = true
	return nil
}

// PointerFromExposedAddr gives addr the provenance of the exposed allocation
// containing it, or none.
func (m *Checker) PointerFromExposedAddr(cx *interp.InterpCx, addr uint64) (memory.Pointer, error) {
	if a, ok := cx.Mem.AllocContaining(addr); ok && m.exposed[a.ID] {
		return memory.Pointer{Prov: memory.Provenance{Alloc: a.ID}, Addr: addr}, nil
	}
	return memory.Pointer{Addr: addr}, nil
}
