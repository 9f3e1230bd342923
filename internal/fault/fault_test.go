package fault_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"mirvm/internal/fault"
	"mirvm/internal/source"
)

func TestCodeClass(t *testing.T) {
	tests := []struct {
		code fault.Code
		want fault.Class
	}{
		{fault.CodeUninitRead, fault.ClassUB},
		{fault.CodeUnsupportedOp, fault.ClassUnsupported},
		{fault.CodeStepLimit, fault.ClassResourceExhausted},
		{fault.CodeBadShape, fault.ClassInvalidProgram},
		{fault.CodeAssertFailed, fault.ClassPanic},
	}
	for _, tt := range tests {
		if got := tt.code.Class(); got != tt.want {
			t.Errorf("%s: expected class %s, got %s", tt.code, tt.want, got)
		}
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("eval: %w", fault.Errorf(fault.CodeStepLimit, "after %d steps", 10))
	if !errors.Is(err, fault.Errorf(fault.CodeStepLimit, "")) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if errors.Is(err, fault.Errorf(fault.CodeUninitRead, "")) {
		t.Fatalf("expected different codes not to match")
	}
	if got := fault.CodeOf(err); got != fault.CodeStepLimit {
		t.Fatalf("expected %s, got %s", fault.CodeStepLimit, got)
	}
	if got := err.Error(); !strings.Contains(got, "resource exhausted E3001: after 10 steps") {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestFormatWithFiles(t *testing.T) {
	files := source.NewFileSet()
	id := files.Add("main.rs", []byte("fn f() {\n  a / b\n}\n"))
	span := source.Span{File: id, Start: 11, End: 16}
	e := &fault.Error{
		Code:    fault.CodeDivisionByZero,
		Message: "division by zero",
		Span:    span,
		Backtrace: []fault.BacktraceFrame{
			{FuncName: "f", Location: "bb0[2]", Span: span},
			{FuncName: "main", Location: "bb1[0]"},
		},
	}
	out := e.FormatWithFiles(files)
	for _, want := range []string{
		"undefined behavior E1007: division by zero",
		"at main.rs:2:3",
		"0: f bb0[2] at main.rs:2:3",
		"1: main bb1[0] at <no-span>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRaiseBug(t *testing.T) {
	defer func() {
		b, ok := fault.AsBug(recover())
		if !ok {
			t.Fatalf("expected *fault.Bug panic")
		}
		if !strings.Contains(b.Error(), "while executing `_1 = SizeOf(str)`") {
			t.Fatalf("unexpected bug text %q", b.Error())
		}
	}()
	fault.Raise(source.Span{}, "_1 = SizeOf(str)", "unsized type %s", "str")
}
