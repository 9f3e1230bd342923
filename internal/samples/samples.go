// Package samples holds small IR programs that exercise the interpreter end
// to end. Each program carries the source text its spans point into.
package samples

import (
	"sort"

	"mirvm/internal/fault"
	"mirvm/internal/mir"
	"mirvm/internal/source"
	"mirvm/internal/types"
)

// Outcome is what running a sample under the const-eval machine produces:
// either Value in the first scalar of the result, or a failure with Code.
type Outcome struct {
	Value uint64
	Code  fault.Code
}

// Sample is a named program builder.
type Sample struct {
	Name    string
	Summary string
	Build   func() *mir.Program
	Want    Outcome
}

var registry = map[string]Sample{}

func register(s Sample) {
	if _, dup := registry[s.Name]; dup {
		panic("samples: duplicate " + s.Name)
	}
	registry[s.Name] = s
}

// All returns every sample ordered by name.
func All() []Sample {
	out := make([]Sample, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a sample by name.
func Lookup(name string) (Sample, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names lists sample names in order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	return names
}

// unit is a program under construction together with its single source file.
type unit struct {
	in   *types.Interner
	b    types.Builtins
	prog *mir.Program
	text string
}

func newUnit(name, text string) *unit {
	in := types.NewInterner()
	prog := mir.NewProgram(name, in)
	prog.Sources = []mir.SourceFile{{Path: name + ".src", Text: text}}
	return &unit{in: in, b: in.Builtins(), prog: prog, text: text}
}

func (u *unit) at(needle string) source.Span {
	return mir.SpanOf(0, u.text, needle)
}

func (u *unit) add(bld *mir.Builder) mir.BodyID {
	return u.prog.AddBody(bld.MustFinish())
}

func (u *unit) entry(bld *mir.Builder) *mir.Program {
	u.prog.Entry = u.add(bld)
	return u.prog
}

func local(l mir.LocalID) mir.Place {
	return mir.LocalPlace(l)
}

var ret = mir.LocalPlace(mir.ReturnLocal)
