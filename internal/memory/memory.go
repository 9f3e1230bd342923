package memory

import (
	"encoding/binary"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"mirvm/internal/fault"
	"mirvm/internal/layout"
)

// AllocKind records where an allocation came from.
type AllocKind uint8

const (
	KindStack AllocKind = iota + 1
	KindHeap
	KindStatic
	KindThreadLocal
)

func (k AllocKind) String() string {
	switch k {
	case KindStack:
		return "stack"
	case KindHeap:
		return "heap"
	case KindStatic:
		return "static"
	case KindThreadLocal:
		return "thread-local"
	default:
		return "alloc?"
	}
}

// Allocation is a contiguous block of bytes with a per-byte init mask and
// pointer provenance keyed by the offset of the pointer's first byte.
type Allocation struct {
	ID      AllocID
	Kind    AllocKind
	Name    string
	Base    uint64
	Bytes   []byte
	Init    []bool
	Prov    map[int]Provenance
	Align   int
	Mutable bool
	Live    bool
}

// Len returns the allocation size in bytes.
func (a *Allocation) Len() int {
	return len(a.Bytes)
}

// Memory owns every allocation of one interpreter context.
type Memory struct {
	order    binary.ByteOrder
	big      bool
	ptrSize  int
	allocs   map[AllocID]*Allocation
	nextID   AllocID
	nextAddr uint64
}

// firstAddr keeps address zero (and its neighbourhood) unallocated.
const firstAddr = 0x1000

// allocGap separates allocations so one-past-the-end pointers stay unambiguous.
const allocGap = 16

// New creates an empty memory for target.
func New(target layout.Target) *Memory {
	return &Memory{
		order:    target.ByteOrder(),
		big:      target.BigEndian,
		ptrSize:  target.PtrSize,
		allocs:   make(map[AllocID]*Allocation, 32),
		nextID:   1,
		nextAddr: firstAddr,
	}
}

// PtrSize returns the pointer width of the target.
func (m *Memory) PtrSize() int {
	return m.ptrSize
}

// ByteOrder returns the byte order scalars are stored in.
func (m *Memory) ByteOrder() binary.ByteOrder {
	return m.order
}

// Allocate creates a fresh uninitialized allocation and returns its base pointer.
func (m *Memory) Allocate(size, align int, kind AllocKind, mutable bool) (Pointer, error) {
	if size < 0 {
		return Pointer{}, fault.Errorf(fault.CodeBadShape, "negative allocation size %d", size)
	}
	if align <= 0 || align&(align-1) != 0 {
		return Pointer{}, fault.Errorf(fault.CodeBadShape, "invalid alignment %d", align)
	}
	usize, err := safecast.Conv[uint64](size)
	if err != nil {
		return Pointer{}, fault.Errorf(fault.CodeBadShape, "allocation size: %v", err)
	}
	ualign := uint64(align)
	base := (m.nextAddr + ualign - 1) / ualign * ualign
	m.nextAddr = base + usize + allocGap

	id := m.nextID
	m.nextID++
	m.allocs[id] = &Allocation{
		ID:      id,
		Kind:    kind,
		Base:    base,
		Bytes:   make([]byte, size),
		Init:    make([]bool, size),
		Prov:    make(map[int]Provenance),
		Align:   align,
		Mutable: mutable,
		Live:    true,
	}
	return Pointer{Prov: Provenance{Alloc: id}, Addr: base}, nil
}

// AllocateBytes creates an initialized allocation holding data.
func (m *Memory) AllocateBytes(data []byte, align int, kind AllocKind, mutable bool) (Pointer, error) {
	ptr, err := m.Allocate(len(data), align, kind, true)
	if err != nil {
		return Pointer{}, err
	}
	a := m.allocs[ptr.Prov.Alloc]
	copy(a.Bytes, data)
	for i := range a.Init {
		a.Init[i] = true
	}
	a.Mutable = mutable
	return ptr, nil
}

// Deallocate frees the allocation ptr points to the start of.
func (m *Memory) Deallocate(ptr Pointer, kind AllocKind) error {
	a, ok := m.allocs[ptr.Prov.Alloc]
	if !ok || !a.Live {
		return fault.UB(fault.CodeDanglingPointer, "deallocating %s, which is dangling", ptr)
	}
	if ptr.Addr != a.Base {
		return fault.UB(fault.CodeOutOfBounds, "deallocating %s, which is not the start of alloc%d", ptr, a.ID)
	}
	if a.Kind != kind {
		return fault.UB(fault.CodeDanglingPointer, "deallocating %s memory as %s", a.Kind, kind)
	}
	a.Live = false
	a.Bytes, a.Init, a.Prov = nil, nil, nil
	return nil
}

// Alloc returns the allocation with id.
func (m *Memory) Alloc(id AllocID) (*Allocation, bool) {
	a, ok := m.allocs[id]
	return a, ok
}

// Allocations returns every allocation ordered by id.
func (m *Memory) Allocations() []*Allocation {
	out := make([]*Allocation, 0, len(m.allocs))
	for _, a := range m.allocs {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Allocation) int {
		return int(a.ID) - int(b.ID)
	})
	return out
}

// AllocContaining finds the live allocation whose address range contains
// addr (one past the end included).
func (m *Memory) AllocContaining(addr uint64) (*Allocation, bool) {
	for _, a := range m.allocs {
		if a.Live && addr >= a.Base && addr <= a.Base+uint64(len(a.Bytes)) {
			return a, true
		}
	}
	return nil, false
}

// access resolves ptr for a size-byte access. Zero-sized accesses never touch
// an allocation and only reject null pointers.
func (m *Memory) access(ptr Pointer, size int, write bool) (*Allocation, int, error) {
	if size == 0 {
		if ptr.Addr == 0 {
			return nil, 0, fault.UB(fault.CodeNullDeref, "null pointer is not a valid place")
		}
		return nil, 0, nil
	}
	if !ptr.Prov.Valid() {
		return nil, 0, fault.UB(fault.CodeNullDeref, "access of %d bytes through %s, which has no provenance", size, ptr)
	}
	a, ok := m.allocs[ptr.Prov.Alloc]
	if !ok || !a.Live {
		return nil, 0, fault.UB(fault.CodeDanglingPointer, "access through %s, which is dangling", ptr)
	}
	if ptr.Addr < a.Base || ptr.Addr-a.Base+uint64(size) > uint64(len(a.Bytes)) {
		return nil, 0, fault.UB(fault.CodeOutOfBounds,
			"access of %d bytes at %s is out of bounds of alloc%d (size %d)", size, ptr, a.ID, len(a.Bytes))
	}
	if write && !a.Mutable {
		return nil, 0, fault.UB(fault.CodeReadOnlyWrite, "write to immutable alloc%d", a.ID)
	}
	return a, int(ptr.Addr - a.Base), nil
}

// CheckAccess validates a size-byte access without performing it. For a
// zero-sized access through a pointer with provenance the allocation must
// still be live and in bounds.
func (m *Memory) CheckAccess(ptr Pointer, size int, write bool) error {
	if size == 0 && ptr.Prov.Valid() {
		a, ok := m.allocs[ptr.Prov.Alloc]
		if !ok || !a.Live {
			return fault.UB(fault.CodeDanglingPointer, "%s is dangling", ptr)
		}
		if ptr.Addr < a.Base || ptr.Addr > a.Base+uint64(len(a.Bytes)) {
			return fault.UB(fault.CodeOutOfBounds, "%s is out of bounds of alloc%d", ptr, a.ID)
		}
		if write && !a.Mutable {
			return fault.UB(fault.CodeReadOnlyWrite, "write to immutable alloc%d", a.ID)
		}
		return nil
	}
	_, _, err := m.access(ptr, size, write)
	return err
}

// CheckAlign reports a misaligned address.
func (m *Memory) CheckAlign(ptr Pointer, align int) error {
	if align > 1 && ptr.Addr%uint64(align) != 0 {
		return fault.UB(fault.CodeMisaligned, "accessing memory at %s with alignment %d", ptr, align)
	}
	return nil
}

// ReadScalar loads a size-byte scalar. All bytes must be initialized and any
// provenance must cover exactly one whole pointer at ptr.
func (m *Memory) ReadScalar(ptr Pointer, size int) (Scalar, error) {
	a, off, err := m.access(ptr, size, false)
	if err != nil {
		return Scalar{}, err
	}
	if a == nil {
		return Scalar{Size: 0}, nil
	}
	for i := off; i < off+size; i++ {
		if !a.Init[i] {
			return Scalar{}, fault.UB(fault.CodeUninitRead,
				"reading %d bytes at %s, byte %d is uninitialized", size, ptr, i-off)
		}
	}
	s := Scalar{Size: size}
	s.Bits.SetBytes(m.toBigEndian(a.Bytes[off : off+size]))
	for o, p := range a.Prov {
		if o+m.ptrSize <= off || o >= off+size {
			continue
		}
		if o != off || size != m.ptrSize {
			return Scalar{}, fault.UB(fault.CodePointerAsInt,
				"reading %d bytes at %s overlaps part of a pointer", size, ptr)
		}
		s.Prov = p
	}
	return s, nil
}

// WriteScalar stores s at ptr.
func (m *Memory) WriteScalar(ptr Pointer, s Scalar) error {
	a, off, err := m.access(ptr, s.Size, true)
	if err != nil || a == nil {
		return err
	}
	if s.IsPtr() && s.Size != m.ptrSize {
		return fault.Errorf(fault.CodeBadShape, "pointer scalar of %d bytes on a %d-byte target", s.Size, m.ptrSize)
	}
	buf := s.Bits.Bytes32()
	m.fromBigEndian(a.Bytes[off:off+s.Size], buf[32-s.Size:])
	for i := off; i < off+s.Size; i++ {
		a.Init[i] = true
	}
	m.clearProv(a, off, s.Size)
	if s.IsPtr() {
		a.Prov[off] = s.Prov
	}
	return nil
}

// WriteUninit marks size bytes at ptr as uninitialized.
func (m *Memory) WriteUninit(ptr Pointer, size int) error {
	a, off, err := m.access(ptr, size, true)
	if err != nil || a == nil {
		return err
	}
	for i := off; i < off+size; i++ {
		a.Bytes[i] = 0
		a.Init[i] = false
	}
	m.clearProv(a, off, size)
	return nil
}

// ReadBytes returns a copy of size initialized bytes. Provenance is dropped.
func (m *Memory) ReadBytes(ptr Pointer, size int) ([]byte, error) {
	a, off, err := m.access(ptr, size, false)
	if err != nil || a == nil {
		return nil, err
	}
	for i := off; i < off+size; i++ {
		if !a.Init[i] {
			return nil, fault.UB(fault.CodeUninitRead, "reading %d bytes at %s, byte %d is uninitialized", size, ptr, i-off)
		}
	}
	return append([]byte(nil), a.Bytes[off:off+size]...), nil
}

// WriteBytes stores data at ptr, clearing provenance in the range.
func (m *Memory) WriteBytes(ptr Pointer, data []byte) error {
	a, off, err := m.access(ptr, len(data), true)
	if err != nil || a == nil {
		return err
	}
	copy(a.Bytes[off:], data)
	for i := off; i < off+len(data); i++ {
		a.Init[i] = true
	}
	m.clearProv(a, off, len(data))
	return nil
}

// Copy moves size bytes (with init mask and provenance) from src to dst.
func (m *Memory) Copy(src, dst Pointer, size int, nonoverlapping bool) error {
	return m.CopyRepeatedly(src, dst, size, 1, nonoverlapping)
}

// CopyRepeatedly writes count back-to-back copies of the size bytes at src
// starting at dst. With nonoverlapping set, overlap of the source with any
// destination copy is undefined behavior.
func (m *Memory) CopyRepeatedly(src, dst Pointer, size, count int, nonoverlapping bool) error {
	if size == 0 || count == 0 {
		if err := m.CheckAccess(src, 0, false); err != nil {
			return err
		}
		return m.CheckAccess(dst, 0, true)
	}
	total := size * count
	if total/count != size {
		return fault.Errorf(fault.CodeBadShape, "repeated copy of %d x %d bytes overflows", count, size)
	}
	sa, soff, err := m.access(src, size, false)
	if err != nil {
		return err
	}
	da, doff, err := m.access(dst, total, true)
	if err != nil {
		return err
	}
	if nonoverlapping && sa == da && soff < doff+total && doff < soff+size {
		return fault.UB(fault.CodeOverlappingCopy, "copy from %s to %s overlaps (%d x %d bytes)", src, dst, count, size)
	}

	bytes := append([]byte(nil), sa.Bytes[soff:soff+size]...)
	init := append([]bool(nil), sa.Init[soff:soff+size]...)
	var prov map[int]Provenance
	for o, p := range sa.Prov {
		if o >= soff && o+m.ptrSize <= soff+size {
			if prov == nil {
				prov = make(map[int]Provenance)
			}
			prov[o-soff] = p
		}
	}

	m.clearProv(da, doff, total)
	for i := 0; i < count; i++ {
		base := doff + i*size
		copy(da.Bytes[base:base+size], bytes)
		copy(da.Init[base:base+size], init)
		for o, p := range prov {
			da.Prov[base+o] = p
		}
	}
	return nil
}

func (m *Memory) clearProv(a *Allocation, off, size int) {
	for o := range a.Prov {
		if o < off+size && o+m.ptrSize > off {
			delete(a.Prov, o)
		}
	}
}

func (m *Memory) toBigEndian(b []byte) []byte {
	if m.big {
		return b
	}
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func (m *Memory) fromBigEndian(dst, be []byte) {
	if m.big {
		copy(dst, be)
		return
	}
	for i := range be {
		dst[len(be)-1-i] = be[i]
	}
}

// Describe renders an allocation for debugging: bytes in hex, "__" for uninit.
func (a *Allocation) Describe() string {
	if !a.Live {
		return fmt.Sprintf("alloc%d (%s, freed)", a.ID, a.Kind)
	}
	out := fmt.Sprintf("alloc%d (%s, size %d, align %d)", a.ID, a.Kind, len(a.Bytes), a.Align)
	if a.Name != "" {
		out += " " + a.Name
	}
	out += ":"
	for i, b := range a.Bytes {
		if i%16 == 0 {
			out += fmt.Sprintf("\n  0x%04x:", i)
		}
		if a.Init[i] {
			out += fmt.Sprintf(" %02x", b)
		} else {
			out += " __"
		}
	}
	return out
}
