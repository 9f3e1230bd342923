package prof_test

import (
	"os"
	"path/filepath"
	"testing"

	"mirvm/internal/prof"
)

func TestStartStopWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := prof.Config{
		CPU:   filepath.Join(dir, "cpu.pprof"),
		Heap:  filepath.Join(dir, "heap.pprof"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	p, err := prof.Start(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("expected a second Stop to be a no-op, got %v", err)
	}
	for _, path := range []string{cfg.CPU, cfg.Heap, cfg.Trace} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be written", path)
		}
	}
}

func TestStartFailsOnBadPath(t *testing.T) {
	cfg := prof.Config{CPU: filepath.Join(t.TempDir(), "missing", "cpu.pprof")}
	if _, err := prof.Start(cfg); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestEnabled(t *testing.T) {
	if (prof.Config{}).Enabled() {
		t.Fatalf("expected an empty config to be disabled")
	}
	if !(prof.Config{Heap: "h"}).Enabled() {
		t.Fatalf("expected heap profiling to enable the config")
	}
}
