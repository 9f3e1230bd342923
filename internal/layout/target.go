package layout

import (
	"encoding/binary"
	"fmt"
)

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple      string // e.g. "x86_64-linux-gnu"
	PtrSize     int    // bytes
	PtrAlign    int    // bytes
	MaxIntAlign int    // alignment cap for integers wider than a pointer
	BigEndian   bool
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:      "x86_64-linux-gnu",
		PtrSize:     8,
		PtrAlign:    8,
		MaxIntAlign: 16,
	}
}

func I686LinuxGNU() Target {
	return Target{
		Triple:      "i686-linux-gnu",
		PtrSize:     4,
		PtrAlign:    4,
		MaxIntAlign: 4,
	}
}

func PowerPC64LinuxGNU() Target {
	return Target{
		Triple:      "powerpc64-linux-gnu",
		PtrSize:     8,
		PtrAlign:    8,
		MaxIntAlign: 16,
		BigEndian:   true,
	}
}

// Targets lists the built-in targets by triple.
func Targets() []Target {
	return []Target{X86_64LinuxGNU(), I686LinuxGNU(), PowerPC64LinuxGNU()}
}

// TargetByTriple resolves a built-in target. The empty triple is x86_64.
func TargetByTriple(triple string) (Target, error) {
	if triple == "" {
		return X86_64LinuxGNU(), nil
	}
	for _, t := range Targets() {
		if t.Triple == triple {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown target %q", triple)
}

// ByteOrder returns the byte order of the target.
func (t Target) ByteOrder() binary.ByteOrder {
	if t.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (t Target) intAlign(size int) int {
	if size <= 0 {
		return 1
	}
	if t.MaxIntAlign > 0 && size > t.MaxIntAlign {
		return t.MaxIntAlign
	}
	return size
}
