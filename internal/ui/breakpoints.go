package ui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"mirvm/internal/interp"
)

// BreakpointKind distinguishes breakpoint types.
type BreakpointKind uint8

const (
	// BreakLine stops before anything spanning a source line.
	BreakLine BreakpointKind = iota
	// BreakFunc stops on entry of a body.
	BreakFunc
)

type Breakpoint struct {
	ID   int
	Kind BreakpointKind

	File string // BreakLine
	Line uint32

	Func string // BreakFunc
}

func (bp *Breakpoint) String() string {
	if bp.Kind == BreakFunc {
		return fmt.Sprintf("#%d fn:%s", bp.ID, bp.Func)
	}
	return fmt.Sprintf("#%d %s:%d", bp.ID, bp.File, bp.Line)
}

// Breakpoints manages a set of breakpoints with stable ids.
type Breakpoints struct {
	nextID int
	list   []*Breakpoint
}

func NewBreakpoints() *Breakpoints {
	return &Breakpoints{nextID: 1}
}

// Parse adds a breakpoint from "fn:name" or "file:line".
func (bps *Breakpoints) Parse(expr string) (*Breakpoint, error) {
	expr = strings.TrimSpace(expr)
	if name, ok := strings.CutPrefix(expr, "fn:"); ok {
		return bps.AddFunc(name)
	}
	i := strings.LastIndexByte(expr, ':')
	if i <= 0 {
		return nil, fmt.Errorf("invalid breakpoint %q (expected file:line or fn:name)", expr)
	}
	line, err := strconv.ParseUint(expr[i+1:], 10, 32)
	if err != nil || line == 0 {
		return nil, fmt.Errorf("invalid line in breakpoint %q", expr)
	}
	return bps.AddLine(expr[:i], uint32(line))
}

func (bps *Breakpoints) AddLine(file string, line uint32) (*Breakpoint, error) {
	file = filepath.ToSlash(filepath.Clean(file))
	if file == "." || line == 0 {
		return nil, fmt.Errorf("invalid breakpoint %s:%d", file, line)
	}
	return bps.add(&Breakpoint{Kind: BreakLine, File: file, Line: line}), nil
}

func (bps *Breakpoints) AddFunc(name string) (*Breakpoint, error) {
	if name == "" {
		return nil, fmt.Errorf("empty function name")
	}
	return bps.add(&Breakpoint{Kind: BreakFunc, Func: name}), nil
}

func (bps *Breakpoints) add(bp *Breakpoint) *Breakpoint {
	bp.ID = bps.nextID
	bps.nextID++
	bps.list = append(bps.list, bp)
	return bp
}

// Delete removes the breakpoint with id.
func (bps *Breakpoints) Delete(id int) bool {
	for i, bp := range bps.list {
		if bp.ID == id {
			bps.list = append(bps.list[:i], bps.list[i+1:]...)
			return true
		}
	}
	return false
}

// Toggle removes an identical line breakpoint or adds a new one. It reports
// whether a breakpoint is set afterwards.
func (bps *Breakpoints) Toggle(file string, line uint32) bool {
	file = filepath.ToSlash(filepath.Clean(file))
	for _, bp := range bps.list {
		if bp.Kind == BreakLine && bp.File == file && bp.Line == line {
			bps.Delete(bp.ID)
			return false
		}
	}
	_, err := bps.AddLine(file, line)
	return err == nil
}

func (bps *Breakpoints) List() []*Breakpoint {
	return bps.list
}

// Match returns the first breakpoint hit by what cx executes next.
func (bps *Breakpoints) Match(cx *interp.InterpCx) (*Breakpoint, bool) {
	f := cx.Frame()
	if f == nil || len(bps.list) == 0 {
		return nil, false
	}
	path, line := lineOf(cx, f)
	entry := f.Loc == interp.At(0, 0)
	for _, bp := range bps.list {
		switch bp.Kind {
		case BreakFunc:
			if entry && f.Body.Name == bp.Func {
				return bp, true
			}
		case BreakLine:
			if line == bp.Line && (path == bp.File || filepath.Base(path) == bp.File) {
				return bp, true
			}
		}
	}
	return nil, false
}

// lineOf returns the source file and line of what f executes next, or a
// zero line when it has no source position.
func lineOf(cx *interp.InterpCx, f *interp.Frame) (string, uint32) {
	span := f.Span()
	file := cx.Files.Get(span.File)
	if file == nil || span.Empty() {
		return "", 0
	}
	start, _ := cx.Files.Resolve(span)
	return file.Path, start.Line
}
