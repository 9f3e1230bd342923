package samples_test

import (
	"strings"
	"testing"

	"mirvm/internal/fault"
	"mirvm/internal/interp"
	"mirvm/internal/machine"
	"mirvm/internal/mir"
	"mirvm/internal/samples"
)

func run(t *testing.T, prog *mir.Program, m interp.Machine) (*interp.InterpCx, error) {
	t.Helper()
	cx, err := interp.New(prog, interp.Options{Machine: m, UBChecks: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := cx.Start(prog.Entry, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	return cx, cx.Run()
}

func TestSamplesProduceExpectedOutcome(t *testing.T) {
	machines := []struct {
		name string
		make func() interp.Machine
	}{
		{"const-eval", func() interp.Machine { return machine.NewConstEval(1000) }},
		{"checker", func() interp.Machine { return machine.NewChecker(1000) }},
	}
	for _, s := range samples.All() {
		for _, m := range machines {
			t.Run(s.Name+"/"+m.name, func(t *testing.T) {
				prog := s.Build()
				if err := mir.Validate(prog); err != nil {
					t.Fatalf("validate: %v", err)
				}
				cx, err := run(t, prog, m.make())
				if s.Want.Code != 0 {
					if fault.CodeOf(err) != s.Want.Code {
						t.Fatalf("expected %s, got %v", s.Want.Code, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				imm, _, err := cx.Result()
				if err != nil {
					t.Fatalf("result: %v", err)
				}
				if imm.A.Uint64() != s.Want.Value {
					t.Fatalf("expected %d, got %s", s.Want.Value, imm)
				}
			})
		}
	}
}

func TestFailuresPointIntoSource(t *testing.T) {
	tests := []struct {
		sample string
		where  string
	}{
		{"overflow", "overflow.src:5:5"},
		{"dangling", "dangling.src:7:14"},
		{"invalid_bool", "invalid_bool.src:3:5"},
	}
	for _, tt := range tests {
		t.Run(tt.sample, func(t *testing.T) {
			s, ok := samples.Lookup(tt.sample)
			if !ok {
				t.Fatalf("sample %s not registered", tt.sample)
			}
			prog := s.Build()
			cx, err := run(t, prog, machine.NewConstEval(0))
			fe, ok := err.(*fault.Error)
			if !ok {
				t.Fatalf("expected *fault.Error, got %v", err)
			}
			out := fe.FormatWithFiles(cx.Files)
			if !strings.Contains(out, "at "+tt.where) {
				t.Fatalf("expected failure at %s, got\n%s", tt.where, out)
			}
		})
	}
}

func TestOverflowBacktraceDepth(t *testing.T) {
	s, _ := samples.Lookup("overflow")
	_, err := run(t, s.Build(), machine.NewConstEval(0))
	fe, ok := err.(*fault.Error)
	if !ok {
		t.Fatalf("expected *fault.Error, got %v", err)
	}
	// fact(21) fails its multiply after the deeper calls returned.
	if len(fe.Backtrace) != 2 {
		t.Fatalf("expected 2 frames, got %d: %+v", len(fe.Backtrace), fe.Backtrace)
	}
	if fe.Backtrace[0].FuncName != "fact" || fe.Backtrace[1].FuncName != "main" {
		t.Fatalf("unexpected backtrace %+v", fe.Backtrace)
	}
}

func TestNamesAreSorted(t *testing.T) {
	names := samples.Names()
	if len(names) == 0 {
		t.Fatalf("expected registered samples")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}
	if _, ok := samples.Lookup("nope"); ok {
		t.Fatalf("expected unknown sample to be missing")
	}
}
