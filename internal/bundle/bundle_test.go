package bundle_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"mirvm/internal/bundle"
	"mirvm/internal/fault"
	"mirvm/internal/interp"
	"mirvm/internal/machine"
	"mirvm/internal/mir"
	"mirvm/internal/samples"
)

func dump(t *testing.T, prog *mir.Program) string {
	t.Helper()
	var buf bytes.Buffer
	if err := mir.Dump(&buf, prog); err != nil {
		t.Fatalf("dump: %v", err)
	}
	return buf.String()
}

func outcome(t *testing.T, prog *mir.Program) (uint64, fault.Code) {
	t.Helper()
	cx, err := interp.New(prog, interp.Options{Machine: machine.NewConstEval(1000), UBChecks: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := cx.Start(prog.Entry, nil); err != nil {
		t.Fatal(err)
	}
	if err := cx.Run(); err != nil {
		return 0, fault.CodeOf(err)
	}
	imm, _, err := cx.Result()
	if err != nil {
		t.Fatal(err)
	}
	return imm.A.Uint64(), 0
}

func TestRoundTripPreservesBehaviour(t *testing.T) {
	for _, s := range samples.All() {
		t.Run(s.Name, func(t *testing.T) {
			prog := s.Build()
			var buf bytes.Buffer
			if err := bundle.Encode(&buf, prog); err != nil {
				t.Fatalf("encode: %v", err)
			}
			back, err := bundle.Decode(&buf)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got, want := dump(t, back), dump(t, prog); got != want {
				t.Fatalf("expected identical dump\nwant:\n%s\ngot:\n%s", want, got)
			}
			if len(back.Sources) != len(prog.Sources) || back.Sources[0].Text != prog.Sources[0].Text {
				t.Fatalf("expected sources to survive the round trip")
			}
			v, code := outcome(t, back)
			if code != s.Want.Code || (code == 0 && v != s.Want.Value) {
				t.Fatalf("expected %+v, got value %d code %s", s.Want, v, code)
			}
		})
	}
}

func TestDecodeRejectsForeignData(t *testing.T) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(map[string]any{"magic": "something-else", "schema": 1}); err != nil {
		t.Fatal(err)
	}
	_, err := bundle.Decode(&buf)
	if err == nil || !strings.Contains(err.Error(), "not a mirvm bundle") {
		t.Fatalf("expected magic mismatch, got %v", err)
	}
	if _, err := bundle.Decode(strings.NewReader("\xc1")); err == nil {
		t.Fatalf("expected decode error for garbage")
	}
}

func TestDecodeRejectsOtherSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(map[string]any{"magic": "mirvm-bundle", "schema": bundle.SchemaVersion + 1}); err != nil {
		t.Fatal(err)
	}
	_, err := bundle.Decode(&buf)
	if !errors.Is(err, bundle.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestWriteAndReadFile(t *testing.T) {
	s, ok := samples.Lookup("enum_match")
	if !ok {
		t.Fatalf("missing sample")
	}
	path := filepath.Join(t.TempDir(), "nested", "enum"+bundle.Ext)
	if err := bundle.WriteFile(path, s.Build()); err != nil {
		t.Fatalf("write: %v", err)
	}
	prog, err := bundle.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v, code := outcome(t, prog); code != 0 || v != 42 {
		t.Fatalf("expected 42, got %d (%s)", v, code)
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "tmp-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no temporary files left, got %v", matches)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := bundle.ReadFile(filepath.Join(t.TempDir(), "absent.mp")); err == nil {
		t.Fatalf("expected error")
	}
}
