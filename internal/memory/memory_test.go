package memory_test

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"

	"mirvm/internal/fault"
	"mirvm/internal/layout"
	"mirvm/internal/memory"
)

func expectCode(t *testing.T, err error, code fault.Code) {
	t.Helper()
	if got := fault.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestScalarRoundTripEndianness(t *testing.T) {
	tests := []struct {
		name   string
		target layout.Target
		want   []byte
	}{
		{"little", layout.X86_64LinuxGNU(), []byte{5, 0, 0, 0}},
		{"big", layout.PowerPC64LinuxGNU(), []byte{0, 0, 0, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := memory.New(tt.target)
			p, err := m.Allocate(4, 4, memory.KindStack, true)
			if err != nil {
				t.Fatal(err)
			}
			if err := m.WriteScalar(p, memory.ScalarFromUint(5, 4)); err != nil {
				t.Fatal(err)
			}
			raw, err := m.ReadBytes(p, 4)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(raw, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, raw)
			}
			s, err := m.ReadScalar(p, 4)
			if err != nil || s.Uint64() != 5 {
				t.Fatalf("expected 5, got %v (%v)", s, err)
			}
		})
	}
}

func TestWideScalar(t *testing.T) {
	m := memory.New(layout.X86_64LinuxGNU())
	p, _ := m.Allocate(16, 16, memory.KindStack, true)
	v := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	if err := m.WriteScalar(p, memory.ScalarFromBits(v, 16)); err != nil {
		t.Fatal(err)
	}
	s, err := m.ReadScalar(p, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsNegative() || s.Bits.Cmp(v) != 0 {
		t.Fatalf("expected 1<<127, got %s", s)
	}
	if got := memory.ScalarFromInt(-1, 2); got.Uint64() != 0xffff || got.Int64() != -1 {
		t.Fatalf("expected -1i16 = 0xffff, got %s", got)
	}
}

func TestUninitAndBounds(t *testing.T) {
	m := memory.New(layout.X86_64LinuxGNU())
	p, _ := m.Allocate(8, 8, memory.KindStack, true)
	_, err := m.ReadScalar(p, 4)
	expectCode(t, err, fault.CodeUninitRead)

	_ = m.WriteScalar(p, memory.ScalarFromUint(7, 8))
	if err := m.WriteUninit(p.Offset(4), 4); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReadScalar(p, 4); err != nil {
		t.Fatalf("low half must stay initialized: %v", err)
	}
	_, err = m.ReadScalar(p, 8)
	expectCode(t, err, fault.CodeUninitRead)

	_, err = m.ReadScalar(p.Offset(6), 4)
	expectCode(t, err, fault.CodeOutOfBounds)

	_, err = m.ReadScalar(memory.Pointer{Addr: 0x40}, 1)
	expectCode(t, err, fault.CodeNullDeref)
}

func TestPointerProvenance(t *testing.T) {
	m := memory.New(layout.X86_64LinuxGNU())
	target, _ := m.Allocate(4, 4, memory.KindHeap, true)
	slot, _ := m.Allocate(8, 8, memory.KindStack, true)
	if err := m.WriteScalar(slot, memory.ScalarFromPointer(target, 8)); err != nil {
		t.Fatal(err)
	}
	s, err := m.ReadScalar(slot, 8)
	if err != nil {
		t.Fatal(err)
	}
	if s.ToPointer() != target {
		t.Fatalf("expected %s, got %s", target, s.ToPointer())
	}
	_, err = m.ReadScalar(slot, 4)
	expectCode(t, err, fault.CodePointerAsInt)

	if err := m.Deallocate(target, memory.KindHeap); err != nil {
		t.Fatal(err)
	}
	_, err = m.ReadScalar(target, 4)
	expectCode(t, err, fault.CodeDanglingPointer)
}

func TestCopyRepeatedly(t *testing.T) {
	m := memory.New(layout.X86_64LinuxGNU())
	p, _ := m.Allocate(16, 4, memory.KindStack, true)
	_ = m.WriteScalar(p, memory.ScalarFromUint(5, 4))
	if err := m.CopyRepeatedly(p, p.Offset(4), 4, 3, true); err != nil {
		t.Fatal(err)
	}
	raw, err := m.ReadBytes(p, 16)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{5, 0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0}
	if !bytes.Equal(raw, want) {
		t.Fatalf("expected %v, got %v", want, raw)
	}

	err = m.CopyRepeatedly(p, p.Offset(2), 4, 2, true)
	expectCode(t, err, fault.CodeOverlappingCopy)

	if err := m.Copy(p, p.Offset(2), 4, false); err != nil {
		t.Fatalf("overlapping copy must be allowed when not marked nonoverlapping: %v", err)
	}
}

func TestImmutableAndZeroSized(t *testing.T) {
	m := memory.New(layout.X86_64LinuxGNU())
	p, _ := m.AllocateBytes([]byte{1, 2}, 1, memory.KindStatic, false)
	err := m.WriteBytes(p, []byte{9})
	expectCode(t, err, fault.CodeReadOnlyWrite)

	if err := m.CheckAccess(p, 0, false); err != nil {
		t.Fatalf("zero-sized access to a live allocation: %v", err)
	}
	expectCode(t, m.CheckAccess(p, 0, true), fault.CodeReadOnlyWrite)
	expectCode(t, m.CheckAlign(memory.Pointer{Addr: 0x1002}, 4), fault.CodeMisaligned)

	if a, ok := m.AllocContaining(p.Addr + 1); !ok || a.ID != p.Prov.Alloc {
		t.Fatalf("expected address to resolve to alloc%d", p.Prov.Alloc)
	}
}

func TestScalarDec(t *testing.T) {
	minI128 := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	tests := []struct {
		s      memory.Scalar
		signed bool
		want   string
	}{
		{memory.ScalarFromInt(-1, 4), true, "-1"},
		{memory.ScalarFromInt(-1, 4), false, "4294967295"},
		{memory.ScalarFromUint(3628800, 8), false, "3628800"},
		{memory.ScalarFromInt(-128, 1), true, "-128"},
		{memory.ScalarFromUint(127, 1), true, "127"},
		{memory.ScalarFromBits(minI128, 16), true, "-170141183460469231731687303715884105728"},
	}
	for _, tt := range tests {
		if got := tt.s.Dec(tt.signed); got != tt.want {
			t.Fatalf("Dec(%v) of %s: expected %s, got %s", tt.signed, tt.s, tt.want, got)
		}
	}
}
