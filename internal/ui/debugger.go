package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mirvm/internal/driver"
	"mirvm/internal/mir"
)

type keyMap struct {
	Step     key.Binding
	Next     key.Binding
	Out      key.Binding
	Continue key.Binding
	Break    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Next, k.Continue, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Step, k.Next, k.Out, k.Continue},
		{k.Break, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Step:     key.NewBinding(key.WithKeys("s", "right"), key.WithHelp("s/→", "step")),
	Next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
	Out:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "step out")),
	Continue: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "continue")),
	Break:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "toggle breakpoint")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// maxLocals bounds the locals section.
const maxLocals = 16

type debuggerModel struct {
	title   string
	session *Session
	help    help.Model
	width   int
}

// NewDebugger returns a Bubble Tea model that single-steps s.
func NewDebugger(title string, s *Session) tea.Model {
	return &debuggerModel{title: title, session: s, help: help.New(), width: 80}
}

func (m *debuggerModel) Init() tea.Cmd { return nil }

func (m *debuggerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, keys.Step):
			m.session.Step()
		case key.Matches(msg, keys.Next):
			m.session.Next()
		case key.Matches(msg, keys.Out):
			m.session.Out()
		case key.Matches(msg, keys.Continue):
			m.session.Continue()
		case key.Matches(msg, keys.Break):
			m.session.ToggleHere()
		}
		if m.session.Bug() != nil {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.help.Width = msg.Width
		}
	}
	return m, nil
}

func (m *debuggerModel) View() string {
	s := m.session
	cx := s.Cx()
	var b strings.Builder

	header := fmt.Sprintf("%s  steps %d  depth %d  %s", m.title, cx.Steps, cx.Depth(), cx.Machine.Name())
	b.WriteString(titleStyle.Render(truncate(header, m.width)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(truncate(s.Status(), m.width)))
	b.WriteString("\n\n")

	if sp, ok := cx.Next(); ok {
		b.WriteString(sectionStyle.Render("next"))
		b.WriteString("\n")
		b.WriteString(truncate(fmt.Sprintf("  %s %s: %s", sp.Func, sp.Loc, sp.Text), m.width))
		b.WriteString("\n")
		if f := cx.Frame(); f != nil {
			if snippet := cx.Files.Snippet(f.Span()); snippet != "" {
				line := fmt.Sprintf("  %s  %s", cx.Files.Format(f.Span()), strings.TrimSpace(snippet))
				b.WriteString(dimStyle.Render(truncate(line, m.width)))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		m.writeStack(&b)
		m.writeLocals(&b)
	}

	if bps := s.Breakpoints().List(); len(bps) > 0 {
		b.WriteString(sectionStyle.Render("breakpoints"))
		b.WriteString("\n")
		for _, bp := range bps {
			b.WriteString("  " + bp.String() + "\n")
		}
		b.WriteString("\n")
	}

	m.writeOutcome(&b)
	b.WriteString(m.help.View(keys))
	b.WriteString("\n")
	return b.String()
}

func (m *debuggerModel) writeStack(b *strings.Builder) {
	cx := m.session.Cx()
	b.WriteString(sectionStyle.Render("stack"))
	b.WriteString("\n")
	for i, fr := range cx.Backtrace() {
		line := fmt.Sprintf("  #%d %s %s %s", i, fr.FuncName, fr.Location, cx.Files.Format(fr.Span))
		b.WriteString(truncate(line, m.width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (m *debuggerModel) writeLocals(b *strings.Builder) {
	cx := m.session.Cx()
	f := cx.Frame()
	b.WriteString(sectionStyle.Render("locals"))
	b.WriteString("\n")
	for i, l := range f.Body.Locals {
		if i == maxLocals {
			fmt.Fprintf(b, "  ... %d more\n", len(f.Body.Locals)-maxLocals)
			break
		}
		name := l.Name
		if name == "" {
			name = "_"
		}
		line := fmt.Sprintf("  _%d %s: %s = %s", i, name, cx.Types.Label(l.Type), cx.LocalValue(f, mir.LocalID(i)))
		b.WriteString(truncate(line, m.width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (m *debuggerModel) writeOutcome(b *strings.Builder) {
	s := m.session
	switch {
	case s.Bug() != nil:
		b.WriteString(errStyle.Render("interpreter bug: " + s.Bug().Message))
	case s.Err() != nil:
		b.WriteString(errStyle.Render(s.Err().FormatWithFiles(s.Cx().Files)))
	case s.Cx().Finished():
		imm, l, err := s.Cx().Result()
		switch {
		case err != nil:
			bytes, berr := s.Cx().ResultBytes()
			if berr != nil {
				b.WriteString(errStyle.Render(berr.Error()))
			} else {
				b.WriteString(okStyle.Render(fmt.Sprintf("returned %x", bytes)))
			}
		case l.IsZST():
			b.WriteString(okStyle.Render("returned ()"))
		default:
			b.WriteString(okStyle.Render("returned " + driver.FormatValue(s.Cx().Types, l.Type, imm)))
		}
	default:
		return
	}
	b.WriteString("\n\n")
}
