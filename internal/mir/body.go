package mir

import (
	"mirvm/internal/source"
	"mirvm/internal/types"
)

type BasicBlock struct {
	Statements []Statement `msgpack:"s"`
	Terminator Terminator  `msgpack:"t"`
	Cleanup    bool        `msgpack:"c,omitempty"`
}

// Body is one function. Locals[0] is the return place and Locals[1..=ArgCount]
// are the arguments.
type Body struct {
	Name     string       `msgpack:"name"`
	Locals   []Local      `msgpack:"locals"`
	ArgCount int          `msgpack:"args"`
	Generics int          `msgpack:"generics,omitempty"`
	Blocks   []BasicBlock `msgpack:"blocks"`
	Span     source.Span  `msgpack:"span,omitempty"`
}

// Block returns block bb, or nil when it does not exist.
func (b *Body) Block(bb BlockID) *BasicBlock {
	if bb < 0 || int(bb) >= len(b.Blocks) {
		return nil
	}
	return &b.Blocks[bb]
}

// ReturnType is the type of the return place.
func (b *Body) ReturnType() types.TypeID {
	if len(b.Locals) == 0 {
		return types.NoTypeID
	}
	return b.Locals[ReturnLocal].Type
}

// Static is a global allocation. Init holds its target-order bytes; a nil Init
// means zero-initialized.
type Static struct {
	Name        string       `msgpack:"name"`
	Type        types.TypeID `msgpack:"type"`
	Init        []byte       `msgpack:"init,omitempty"`
	Mutable     bool         `msgpack:"mut,omitempty"`
	ThreadLocal bool         `msgpack:"tls,omitempty"`
	Span        source.Span  `msgpack:"span,omitempty"`
}

// SourceFile is source text that spans in the program point into.
type SourceFile struct {
	Path string `msgpack:"path"`
	Text string `msgpack:"text"`
}

// Program is a self-contained unit the interpreter can execute.
type Program struct {
	Name    string          `msgpack:"name"`
	Types   *types.Interner `msgpack:"-"`
	Bodies  []*Body         `msgpack:"bodies"`
	Statics []Static        `msgpack:"statics,omitempty"`
	Entry   BodyID          `msgpack:"entry"`
	Sources []SourceFile    `msgpack:"sources,omitempty"`
}

// NewProgram creates an empty program over the given type interner.
func NewProgram(name string, in *types.Interner) *Program {
	return &Program{Name: name, Types: in, Entry: NoBodyID}
}

// AddBody appends b and returns its id.
func (p *Program) AddBody(b *Body) BodyID {
	p.Bodies = append(p.Bodies, b)
	return BodyID(len(p.Bodies) - 1)
}

// ReserveBody adds an empty body that can be filled later, so that mutually
// referring bodies can be built.
func (p *Program) ReserveBody(name string) BodyID {
	return p.AddBody(&Body{Name: name})
}

func (p *Program) AddStatic(s Static) StaticID {
	p.Statics = append(p.Statics, s)
	return StaticID(len(p.Statics) - 1)
}

// Body returns the body with id.
func (p *Program) Body(id BodyID) (*Body, bool) {
	if id < 0 || int(id) >= len(p.Bodies) || p.Bodies[id] == nil {
		return nil, false
	}
	return p.Bodies[id], true
}

// BodyByName finds a body by name.
func (p *Program) BodyByName(name string) (BodyID, bool) {
	for i, b := range p.Bodies {
		if b != nil && b.Name == name {
			return BodyID(i), true
		}
	}
	return NoBodyID, false
}

func (p *Program) Static(id StaticID) (*Static, bool) {
	if id < 0 || int(id) >= len(p.Statics) {
		return nil, false
	}
	return &p.Statics[id], true
}

// Files builds a FileSet from the program's sources. File ids follow the
// order of Sources.
func (p *Program) Files() *source.FileSet {
	fs := source.NewFileSet()
	for _, f := range p.Sources {
		fs.Add(f.Path, []byte(f.Text))
	}
	return fs
}
