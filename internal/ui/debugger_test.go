package ui_test

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"mirvm/internal/ui"
)

func press(m tea.Model, keys string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, r := range keys {
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m, cmd
}

func TestDebuggerStepsOnKeys(t *testing.T) {
	s := newSession(t, "enum_match")
	m := ui.NewDebugger("enum_match", s)
	view := m.View()
	for _, want := range []string{"enum_match", "next", "stack", "locals", "main"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	m, _ = press(m, "ss")
	if s.Cx().Steps != 2 {
		t.Fatalf("expected 2 steps, got %d", s.Cx().Steps)
	}
	m, _ = press(m, "c")
	if !s.Cx().Finished() {
		t.Fatalf("expected continue to finish, status %q", s.Status())
	}
	if view := m.View(); !strings.Contains(view, "returned 42") || strings.Contains(view, "returned 42_") {
		t.Fatalf("expected the result in view:\n%s", view)
	}
}

func TestDebuggerShowsFailure(t *testing.T) {
	s := newSession(t, "overflow")
	m, _ := press(ui.NewDebugger("overflow", s), "c")
	if view := m.View(); !strings.Contains(view, "overflow.src:5:5") {
		t.Fatalf("expected the failure location in view:\n%s", view)
	}
}

func TestDebuggerBreakpointKey(t *testing.T) {
	s := newSession(t, "factorial")
	m, _ := press(ui.NewDebugger("factorial", s), "b")
	if len(s.Breakpoints().List()) != 1 {
		t.Fatalf("expected a breakpoint after b, status %q", s.Status())
	}
	if view := m.View(); !strings.Contains(view, "breakpoints") {
		t.Fatalf("expected breakpoints in view:\n%s", view)
	}
}

func TestDebuggerQuits(t *testing.T) {
	s := newSession(t, "factorial")
	_, cmd := press(ui.NewDebugger("factorial", s), "q")
	if cmd == nil {
		t.Fatalf("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
