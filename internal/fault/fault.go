// Package fault defines the two failure tiers of the interpreter.
//
// A *Error is a recoverable interpretation failure: the evaluated program did
// something undefined, unsupported, or exceeded a budget. It is returned as an
// ordinary error value and can be inspected with errors.As.
//
// A *Bug is an internal-invariant violation. It is raised with panic and is
// never part of the error channel; it means the IR producer or the interpreter
// itself is broken.
package fault

import (
	"errors"
	"fmt"
	"strings"

	"mirvm/internal/source"
)

// Class groups failure codes by how a host should react to them.
type Class uint8

const (
	ClassUB Class = iota + 1
	ClassUnsupported
	ClassResourceExhausted
	ClassInvalidProgram
	ClassPanic
)

func (c Class) String() string {
	switch c {
	case ClassUB:
		return "undefined behavior"
	case ClassUnsupported:
		return "unsupported"
	case ClassResourceExhausted:
		return "resource exhausted"
	case ClassInvalidProgram:
		return "invalid program"
	case ClassPanic:
		return "panic"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// Code identifies a failure. Stable codes - do not change values.
type Code int

const (
	CodeUninitRead       Code = 1001 // E1001: read of uninitialized bytes
	CodeDeadLocal        Code = 1002 // E1002: access to a dead local
	CodeOutOfBounds      Code = 1003 // E1003: memory access out of bounds
	CodeDanglingPointer  Code = 1004 // E1004: pointer to a freed or missing allocation
	CodeMisaligned       Code = 1005 // E1005: misaligned access
	CodeInvalidTag       Code = 1006 // E1006: enum tag matches no variant
	CodeDivisionByZero   Code = 1007 // E1007: division or remainder by zero
	CodeArithOverflow    Code = 1008 // E1008: overflow in an unchecked operation
	CodeOverlappingCopy  Code = 1009 // E1009: non-overlapping copy regions overlap
	CodePointerAsInt     Code = 1010 // E1010: pointer bytes read as plain integer
	CodeUnreachable      Code = 1011 // E1011: unreachable code executed
	CodeAssumeFalse      Code = 1012 // E1012: assume(false)
	CodeReadOnlyWrite    Code = 1013 // E1013: write to immutable memory
	CodeInvalidValue     Code = 1014 // E1014: value invalid for its type
	CodeTransmuteSize    Code = 1015 // E1015: transmute between differently sized types
	CodeNullDeref        Code = 1016 // E1016: dereference of a pointer without provenance
	CodeUnsupportedOp    Code = 2001 // E2001: operation unsupported by the machine
	CodeStepLimit        Code = 3001 // E3001: evaluation step budget exceeded
	CodeHostBudget       Code = 3002 // E3002: host step budget or deadline exceeded
	CodeBadShape         Code = 4001 // E4001: operand or destination of unexpected shape
	CodeLayout           Code = 4002 // E4002: type has no layout
	CodeUnknownFunc      Code = 4003 // E4003: call of an unknown body
	CodeAssertFailed     Code = 5001 // E5001: assert terminator failed
	CodeExplicitPanic    Code = 5002 // E5002: panic escaped the root frame
	CodeUnwindTerminated Code = 5003 // E5003: unwinding reached a terminate action
)

func (c Code) String() string {
	return fmt.Sprintf("E%d", c)
}

// Class returns the class a code belongs to.
func (c Code) Class() Class {
	switch {
	case c >= 5000:
		return ClassPanic
	case c >= 4000:
		return ClassInvalidProgram
	case c >= 3000:
		return ClassResourceExhausted
	case c >= 2000:
		return ClassUnsupported
	default:
		return ClassUB
	}
}

// BacktraceFrame is one frame of the interpreter stack at failure time.
type BacktraceFrame struct {
	FuncName string
	Location string // "bb3[1]" or "unwinding"
	Span     source.Span
}

// Error is a recoverable interpretation failure.
type Error struct {
	Code      Code
	Message   string
	Span      source.Span      // location of the failing statement or terminator
	Backtrace []BacktraceFrame // top to bottom, empty until annotated by the interpreter
}

// Errorf builds an unannotated failure.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Class reports the failure class derived from the code.
func (e *Error) Class() Class {
	return e.Code.Class()
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Class(), e.Code, e.Message)
}

// Annotated reports whether the interpreter already attached a location.
func (e *Error) Annotated() bool {
	return len(e.Backtrace) > 0
}

// FormatWithFiles renders the failure with resolved source positions.
func (e *Error) FormatWithFiles(files *source.FileSet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s: %s\n", e.Class(), e.Code, e.Message)
	fmt.Fprintf(&sb, "at %s\n", files.Format(e.Span))
	if len(e.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range e.Backtrace {
			fmt.Fprintf(&sb, "  %d: %s %s at %s\n", i, frame.FuncName, frame.Location, files.Format(frame.Span))
		}
	}
	return sb.String()
}

// Is matches another *Error by code, so errors.Is(err, fault.Errorf(CodeStepLimit, "")) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

// UB is shorthand for an undefined-behavior failure.
func UB(code Code, format string, args ...any) *Error {
	return Errorf(code, format, args...)
}

// Unsupported reports an operation the active machine cannot perform.
func Unsupported(format string, args ...any) *Error {
	return Errorf(CodeUnsupportedOp, format, args...)
}
