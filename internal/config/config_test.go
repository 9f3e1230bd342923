package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mirvm/internal/config"
	"mirvm/internal/machine"
	"mirvm/internal/trace"
)

func TestParseFull(t *testing.T) {
	doc := `
[target]
triple = "powerpc64-linux-gnu"

[machine]
personality = "checker"
ub_checks = false

[limits]
steps = 500
const_eval_steps = 40
terminators = 90
timeout = "1500ms"
jobs = 2

[trace]
level = "detail"
`
	s, err := config.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !s.Target.BigEndian || s.Target.Triple != "powerpc64-linux-gnu" {
		t.Fatalf("expected big-endian powerpc64 target, got %+v", s.Target)
	}
	if s.Personality != machine.PersonalityChecker {
		t.Fatalf("expected checker, got %s", s.Personality)
	}
	if s.UBChecks {
		t.Fatalf("expected ub checks disabled")
	}
	if s.Steps != 500 || s.Machine.ConstEvalSteps != 40 || s.Machine.Terminators != 90 {
		t.Fatalf("unexpected limits %+v / %+v", s.Steps, s.Machine)
	}
	if s.Timeout != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s timeout, got %s", s.Timeout)
	}
	if s.Jobs != 2 {
		t.Fatalf("expected 2 jobs, got %d", s.Jobs)
	}
	if s.TraceLevel != trace.LevelDetail {
		t.Fatalf("expected detail trace level, got %s", s.TraceLevel)
	}
}

func TestParseKeepsDefaults(t *testing.T) {
	s, err := config.Parse("[limits]\nsteps = 7\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	def := config.Default()
	if s.Steps != 7 {
		t.Fatalf("expected steps 7, got %d", s.Steps)
	}
	if s.Machine.ConstEvalSteps != def.Machine.ConstEvalSteps || s.Target != def.Target || !s.UBChecks {
		t.Fatalf("expected defaults for unset keys, got %+v", s)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad toml", "[limits\n", "failed to parse TOML"},
		{"unknown key", "[limits]\nbogus = 1\n", "unknown keys: limits.bogus"},
		{"bad triple", "[target]\ntriple = \"riscv\"\n", "[target].triple"},
		{"bad personality", "[machine]\npersonality = \"jit\"\n", "[machine].personality"},
		{"bad timeout", "[limits]\ntimeout = \"soon\"\n", "[limits].timeout"},
		{"negative timeout", "[limits]\ntimeout = \"-1s\"\n", "negative duration"},
		{"zero jobs", "[limits]\njobs = 0\n", "[limits].jobs"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse(tt.doc)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseJoinsErrors(t *testing.T) {
	_, err := config.Parse("[machine]\npersonality = \"jit\"\n[trace]\nlevel = \"loud\"\n")
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"[machine].personality", "[trace].level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestDiscoverWalksParents(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, config.FileName), []byte("[limits]\nsteps = 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := config.Discover(nested)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if s.Steps != 3 {
		t.Fatalf("expected steps 3, got %d", s.Steps)
	}
	if s.Path != filepath.Join(root, config.FileName) {
		t.Fatalf("expected path %s, got %s", filepath.Join(root, config.FileName), s.Path)
	}
}
