package mir

import (
	"fmt"
	"strings"

	"mirvm/internal/source"
	"mirvm/internal/types"
)

// Builder assembles a Body block by block. Statements are appended to the
// current block; Terminate closes it.
type Builder struct {
	body *Body
	cur  BlockID
	span source.Span
	done []bool
}

// NewBuilder starts a body returning ret and taking args. Block 0 is current.
func NewBuilder(name string, ret types.TypeID, args ...types.TypeID) *Builder {
	b := &Builder{body: &Body{Name: name, ArgCount: len(args)}}
	b.body.Locals = append(b.body.Locals, Local{Name: "ret", Type: ret, Mutable: true})
	for i, a := range args {
		b.body.Locals = append(b.body.Locals, Local{Name: fmt.Sprintf("arg%d", i+1), Type: a})
	}
	b.cur = b.NewBlock()
	return b
}

// Generics sets the number of generic parameters of the body.
func (b *Builder) Generics(n int) *Builder {
	b.body.Generics = n
	return b
}

// Local declares a new mutable local.
func (b *Builder) Local(name string, ty types.TypeID) LocalID {
	b.body.Locals = append(b.body.Locals, Local{Name: name, Type: ty, Mutable: true, Span: b.span})
	return LocalID(len(b.body.Locals) - 1)
}

// Arg returns the local of the i-th argument (0-based).
func (b *Builder) Arg(i int) LocalID {
	return LocalID(i + 1)
}

// NewBlock adds an empty block without switching to it.
func (b *Builder) NewBlock() BlockID {
	b.body.Blocks = append(b.body.Blocks, BasicBlock{})
	b.done = append(b.done, false)
	return BlockID(len(b.body.Blocks) - 1)
}

// NewCleanupBlock adds an empty block reached only while unwinding.
func (b *Builder) NewCleanupBlock() BlockID {
	bb := b.NewBlock()
	b.body.Blocks[bb].Cleanup = true
	return bb
}

// SetBlock makes bb the current block.
func (b *Builder) SetBlock(bb BlockID) *Builder {
	b.cur = bb
	return b
}

// Current returns the current block.
func (b *Builder) Current() BlockID {
	return b.cur
}

// At sets the span attached to subsequently added statements and terminators.
func (b *Builder) At(span source.Span) *Builder {
	b.span = span
	return b
}

// Stmt appends s to the current block.
func (b *Builder) Stmt(s Statement) *Builder {
	if s.Span.Empty() {
		s.Span = b.span
	}
	blk := &b.body.Blocks[b.cur]
	blk.Statements = append(blk.Statements, s)
	return b
}

// Assign appends dst = rv.
func (b *Builder) Assign(dst Place, rv Rvalue) *Builder {
	return b.Stmt(Assign(dst, rv))
}

// Terminate closes the current block with t.
func (b *Builder) Terminate(t Terminator) {
	if t.Span.Empty() {
		t.Span = b.span
	}
	b.body.Blocks[b.cur].Terminator = t
	b.done[b.cur] = true
}

// Finish returns the body. Every block must have been terminated.
func (b *Builder) Finish() (*Body, error) {
	var open []string
	for i, d := range b.done {
		if !d {
			open = append(open, fmt.Sprintf("bb%d", i))
		}
	}
	if len(open) > 0 {
		return nil, fmt.Errorf("%s: unterminated blocks %s", b.body.Name, strings.Join(open, ", "))
	}
	return b.body, nil
}

// MustFinish is Finish for bodies built by trusted code.
func (b *Builder) MustFinish() *Body {
	body, err := b.Finish()
	if err != nil {
		panic(err)
	}
	return body
}

// SpanOf returns the span of the first occurrence of needle in file's text,
// or an empty span when absent.
func SpanOf(file source.FileID, text, needle string) source.Span {
	i := strings.Index(text, needle)
	if i < 0 {
		return source.Span{}
	}
	return source.Span{File: file, Start: uint32(i), End: uint32(i + len(needle))}
}
