package ui

import (
	"errors"
	"fmt"

	"mirvm/internal/fault"
	"mirvm/internal/interp"
)

// DefaultRunLimit bounds how many steps one Continue, Next or Out may take.
const DefaultRunLimit = 5_000_000

// Session drives an interpreter for a debugger front end. A failure or an
// interpreter bug ends the session instead of escaping to the caller.
type Session struct {
	cx  *interp.InterpCx
	bps *Breakpoints

	// RunLimit bounds multi-step commands; zero means DefaultRunLimit.
	RunLimit uint64

	err    *fault.Error
	bug    *fault.Bug
	status string
}

// NewSession wraps a started interpreter context.
func NewSession(cx *interp.InterpCx) *Session {
	return &Session{cx: cx, bps: NewBreakpoints(), status: "ready"}
}

func (s *Session) Cx() *interp.InterpCx { return s.cx }

func (s *Session) Breakpoints() *Breakpoints { return s.bps }

// Err is the failure that ended the evaluation, if any.
func (s *Session) Err() *fault.Error { return s.err }

// Bug is the interpreter bug that ended the session, if any.
func (s *Session) Bug() *fault.Bug { return s.bug }

// Status describes the outcome of the last command.
func (s *Session) Status() string { return s.status }

// Done reports whether no further step is possible.
func (s *Session) Done() bool {
	return s.err != nil || s.bug != nil || s.cx.Depth() == 0
}

// step performs one interpreter step and reports whether the session can go on.
func (s *Session) step() (ok bool) {
	if s.Done() {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			b, isBug := fault.AsBug(r)
			if !isBug {
				panic(r)
			}
			s.bug = b
			s.status = "interpreter bug"
			ok = false
		}
	}()
	more, err := s.cx.Step()
	if err != nil {
		var fe *fault.Error
		if !errors.As(err, &fe) {
			fe = fault.Errorf(fault.CodeBadShape, "%v", err)
		}
		s.err = fe
		s.status = fmt.Sprintf("%s %s", fe.Class(), fe.Code)
		return false
	}
	if !more || s.cx.Depth() == 0 {
		s.status = "finished"
		return false
	}
	return true
}

func (s *Session) limit() uint64 {
	if s.RunLimit == 0 {
		return DefaultRunLimit
	}
	return s.RunLimit
}

type position struct {
	depth int
	file  string
	line  uint32
}

func (s *Session) position() position {
	f := s.cx.Frame()
	if f == nil {
		return position{}
	}
	file, line := lineOf(s.cx, f)
	return position{depth: s.cx.Depth(), file: file, line: line}
}

// runWhile steps until cond fails, a breakpoint is hit, or the run limit is
// reached. Line breakpoints do not fire again on the line the command
// started from.
func (s *Session) runWhile(cond func() bool) {
	start := s.position()
	var n uint64
	for {
		if !s.step() {
			return
		}
		n++
		if bp, hit := s.bps.Match(s.cx); hit && (bp.Kind != BreakLine || s.position() != start) {
			s.status = "breakpoint " + bp.String()
			return
		}
		if !cond() {
			return
		}
		if n >= s.limit() {
			s.status = fmt.Sprintf("paused after %d steps", n)
			return
		}
	}
}

// Step executes one statement or terminator.
func (s *Session) Step() {
	if s.step() {
		s.status = "step"
	}
}

// Next steps over calls: it runs until the current frame, or one of its
// callers, is about to execute something.
func (s *Session) Next() {
	depth := s.cx.Depth()
	s.status = "next"
	s.runWhile(func() bool { return s.cx.Depth() > depth })
}

// Out runs until the current frame returned or unwound.
func (s *Session) Out() {
	depth := s.cx.Depth()
	s.status = "out"
	s.runWhile(func() bool { return s.cx.Depth() >= depth })
}

// Continue runs until a breakpoint, the end, or the run limit.
func (s *Session) Continue() {
	s.status = "continue"
	s.runWhile(func() bool { return true })
}

// ToggleHere toggles a line breakpoint on the source line executed next.
func (s *Session) ToggleHere() {
	f := s.cx.Frame()
	if f == nil {
		return
	}
	file, line := lineOf(s.cx, f)
	switch {
	case line == 0:
		s.status = "no source line here"
	case s.bps.Toggle(file, line):
		s.status = fmt.Sprintf("breakpoint set at %s:%d", file, line)
	default:
		s.status = fmt.Sprintf("breakpoint cleared at %s:%d", file, line)
	}
}
