package mir

import (
	"fmt"
	"io"
	"strings"

	"mirvm/internal/types"
)

// Printer renders IR in a rustc-like textual form.
type Printer struct {
	Types *types.Interner
	Prog  *Program
}

// NewPrinter builds a printer for prog.
func NewPrinter(prog *Program) *Printer {
	return &Printer{Types: prog.Types, Prog: prog}
}

func (p *Printer) typeStr(id types.TypeID) string {
	if p.Types == nil {
		return fmt.Sprintf("type#%d", id)
	}
	return p.Types.Label(id)
}

// Place renders a place: (*_1).0, _2[_3], (_4 as Some).
func (p *Printer) Place(pl Place) string {
	s := fmt.Sprintf("_%d", pl.Local)
	for _, e := range pl.Proj {
		switch e.Kind {
		case ProjDeref:
			s = "(*" + s + ")"
		case ProjField:
			s = fmt.Sprintf("%s.%d", s, e.Field)
		case ProjIndex:
			s = fmt.Sprintf("%s[_%d]", s, e.Index)
		case ProjConstantIndex:
			if e.FromEnd {
				s = fmt.Sprintf("%s[-%d of %d]", s, e.Offset, e.MinLength)
			} else {
				s = fmt.Sprintf("%s[%d of %d]", s, e.Offset, e.MinLength)
			}
		case ProjDowncast:
			s = fmt.Sprintf("(%s as variant#%d)", s, e.Variant)
		}
	}
	return s
}

func (p *Printer) Operand(op Operand) string {
	switch op.Kind {
	case OperandCopy:
		return "copy " + p.Place(op.Place)
	case OperandMove:
		return "move " + p.Place(op.Place)
	default:
		return "const " + p.Const(op.Const)
	}
}

func (p *Printer) Const(c Const) string {
	ty := p.typeStr(c.Type)
	switch c.Kind {
	case ConstScalar:
		tt, _ := p.Types.Lookup(c.Type)
		switch {
		case tt.Kind == types.KindBool:
			return fmt.Sprintf("%t", c.Lo != 0)
		case c.Hi != 0 && !(tt.Kind == types.KindInt && c.Hi == ^uint64(0) && int64(c.Lo) < 0):
			return fmt.Sprintf("0x%x%016x_%s", c.Hi, c.Lo, ty)
		case tt.Kind == types.KindInt:
			return fmt.Sprintf("%d_%s", int64(c.Lo), ty)
		default:
			return fmt.Sprintf("%d_%s", c.Lo, ty)
		}
	case ConstZST:
		return "ZST: " + ty
	case ConstSlice:
		return fmt.Sprintf("%q: %s", c.Bytes, ty)
	case ConstStaticAddr:
		name := fmt.Sprintf("static#%d", c.Static)
		if p.Prog != nil {
			if s, ok := p.Prog.Static(c.Static); ok {
				name = s.Name
			}
		}
		return fmt.Sprintf("{&%s}: %s", name, ty)
	default:
		return fmt.Sprintf("bytes%v: %s", c.Bytes, ty)
	}
}

func (p *Printer) operands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = p.Operand(op)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) Rvalue(rv Rvalue) string {
	switch rv.Kind {
	case RvalueUse:
		return p.Operand(rv.Operand)
	case RvalueCopyForDeref:
		return "deref_copy " + p.Place(rv.Place)
	case RvalueBinaryOp, RvalueCheckedBinaryOp:
		prefix := ""
		if rv.Kind == RvalueCheckedBinaryOp {
			prefix = "Checked"
		}
		if rv.Binary == nil {
			return prefix + rv.BinOp.String() + "(<missing>)"
		}
		return fmt.Sprintf("%s%s(%s, %s)", prefix, rv.BinOp, p.Operand(rv.Binary.Left), p.Operand(rv.Binary.Right))
	case RvalueUnaryOp:
		return fmt.Sprintf("%s(%s)", rv.UnOp, p.Operand(rv.Operand))
	case RvalueAggregate:
		if rv.Aggregate == nil {
			return "<missing aggregate>"
		}
		return p.aggregate(rv.Aggregate)
	case RvalueRepeat:
		return fmt.Sprintf("[%s; %d]", p.Operand(rv.Operand), rv.Count)
	case RvalueLen:
		return fmt.Sprintf("Len(%s)", p.Place(rv.Place))
	case RvalueRef:
		return rv.Borrow.String() + p.Place(rv.Place)
	case RvalueAddressOf:
		if rv.Mutable {
			return "&raw mut " + p.Place(rv.Place)
		}
		return "&raw const " + p.Place(rv.Place)
	case RvalueNullaryOp:
		if rv.NullOp == NullUbChecks {
			return "UbChecks()"
		}
		if rv.NullOp == NullOffsetOf {
			steps := make([]string, len(rv.Fields))
			for i, f := range rv.Fields {
				steps[i] = fmt.Sprintf("%d.%d", f.Variant, f.Field)
			}
			return fmt.Sprintf("OffsetOf(%s, [%s])", p.typeStr(rv.Type), strings.Join(steps, ", "))
		}
		return fmt.Sprintf("%s(%s)", rv.NullOp, p.typeStr(rv.Type))
	case RvalueShallowInitBox:
		return fmt.Sprintf("ShallowInitBox(%s, %s)", p.Operand(rv.Operand), p.typeStr(rv.Type))
	case RvalueCast:
		return fmt.Sprintf("%s as %s (%s)", p.Operand(rv.Operand), p.typeStr(rv.Type), rv.Cast)
	case RvalueDiscriminant:
		return fmt.Sprintf("discriminant(%s)", p.Place(rv.Place))
	case RvalueThreadLocalRef:
		return fmt.Sprintf("&/*tls*/ static#%d", rv.Static)
	default:
		return fmt.Sprintf("<rvalue kind %d>", rv.Kind)
	}
}

func (p *Printer) aggregate(a *Aggregate) string {
	ops := p.operands(a.Operands)
	switch a.Kind.Kind {
	case AggTuple:
		return "(" + ops + ")"
	case AggArray:
		return "[" + ops + "]"
	case AggRawPtr:
		return fmt.Sprintf("*%s from (%s)", p.typeStr(a.Kind.Type), ops)
	default:
		name := p.typeStr(a.Kind.Type)
		if info, _, ok := p.Types.AdtOf(a.Kind.Type); ok && info.IsEnum && a.Kind.Variant < len(info.Variants) {
			name += "::" + info.Variants[a.Kind.Variant].Name
		}
		if a.Kind.HasActive {
			return fmt.Sprintf("%s { .%d: %s }", name, a.Kind.ActiveField, ops)
		}
		return fmt.Sprintf("%s(%s)", name, ops)
	}
}

// Statement renders one statement.
func (p *Printer) Statement(s *Statement) string {
	switch s.Kind {
	case StmtAssign:
		return fmt.Sprintf("%s = %s", p.Place(s.Place), p.Rvalue(s.Rvalue))
	case StmtSetDiscriminant:
		return fmt.Sprintf("discriminant(%s) = %d", p.Place(s.Place), s.Variant)
	case StmtDeinit, StmtFakeRead, StmtPlaceMention, StmtAscribeUserType:
		return fmt.Sprintf("%s(%s)", s.Kind, p.Place(s.Place))
	case StmtStorageLive, StmtStorageDead:
		return fmt.Sprintf("%s(_%d)", s.Kind, s.Local)
	case StmtRetag:
		return fmt.Sprintf("Retag([%s] %s)", s.Retag, p.Place(s.Place))
	case StmtIntrinsic:
		if s.Intrinsic == nil {
			return "Intrinsic(<missing>)"
		}
		if s.Intrinsic.Kind == IntrinsicAssume {
			return fmt.Sprintf("assume(%s)", p.Operand(s.Intrinsic.Op))
		}
		return fmt.Sprintf("copy_nonoverlapping(src=%s, dst=%s, count=%s)",
			p.Operand(s.Intrinsic.Src), p.Operand(s.Intrinsic.Dst), p.Operand(s.Intrinsic.Count))
	default:
		return s.Kind.String()
	}
}

func (p *Printer) unwind(u UnwindAction) string {
	switch u.Kind {
	case UnwindUnreachable:
		return "unwind unreachable"
	case UnwindTerminate:
		return "unwind terminate"
	case UnwindCleanup:
		return fmt.Sprintf("unwind: bb%d", u.Block)
	default:
		return "unwind continue"
	}
}

// Terminator renders one terminator.
func (p *Printer) Terminator(t *Terminator) string {
	switch t.Kind {
	case TermGoto:
		return fmt.Sprintf("goto -> bb%d", t.Target)
	case TermSwitchInt:
		if t.Switch == nil {
			return "switchInt(<missing>)"
		}
		arms := make([]string, 0, len(t.Switch.Values)+1)
		for i, v := range t.Switch.Values {
			if i < len(t.Switch.Blocks) {
				arms = append(arms, fmt.Sprintf("%d: bb%d", v.Lo, t.Switch.Blocks[i]))
			}
		}
		arms = append(arms, fmt.Sprintf("otherwise: bb%d", t.Switch.Otherwise))
		return fmt.Sprintf("switchInt(%s) -> [%s]", p.Operand(t.Discr), strings.Join(arms, ", "))
	case TermReturn:
		return "return"
	case TermUnreachable:
		return "unreachable"
	case TermCall:
		c := t.Call
		if c == nil {
			return "call <missing>"
		}
		name := fmt.Sprintf("fn#%d", c.Func)
		if p.Prog != nil {
			if b, ok := p.Prog.Body(c.Func); ok {
				name = b.Name
			}
		}
		if len(c.Generics) > 0 {
			gs := make([]string, len(c.Generics))
			for i, g := range c.Generics {
				gs[i] = p.typeStr(g)
			}
			name += "::<" + strings.Join(gs, ", ") + ">"
		}
		ret := "-> diverge"
		if c.Target != NoBlockID {
			ret = fmt.Sprintf("-> [return: bb%d, %s]", c.Target, p.unwind(c.Unwind))
		}
		return fmt.Sprintf("%s = %s(%s) %s", p.Place(c.Dest), name, p.operands(c.Args), ret)
	case TermAssert:
		a := t.Assert
		if a == nil {
			return "assert <missing>"
		}
		cond := p.Operand(a.Cond)
		if !a.Expected {
			cond = "!" + cond
		}
		return fmt.Sprintf("assert(%s, %q) -> [success: bb%d, %s]", cond, a.Msg, a.Target, p.unwind(a.Unwind))
	case TermDrop:
		return fmt.Sprintf("drop(%s) -> [return: bb%d, %s]", p.Place(t.Place), t.Target, p.unwind(t.Unwind))
	case TermPanic:
		return fmt.Sprintf("panic(%q) -> [%s]", t.Msg, p.unwind(t.Unwind))
	case TermUnwindResume:
		return "resume"
	case TermUnwindTerminate:
		return "abort"
	default:
		return t.Kind.String()
	}
}

// Dump writes every static and body of prog.
func Dump(w io.Writer, prog *Program) error {
	p := NewPrinter(prog)
	var sb strings.Builder
	fmt.Fprintf(&sb, "program %s\n", prog.Name)
	for i := range prog.Statics {
		s := &prog.Statics[i]
		flags := ""
		if s.Mutable {
			flags += " mut"
		}
		if s.ThreadLocal {
			flags += " thread_local"
		}
		fmt.Fprintf(&sb, "static#%d %s%s: %s = %x\n", i, s.Name, flags, p.typeStr(s.Type), s.Init)
	}
	for i, b := range prog.Bodies {
		if b == nil {
			continue
		}
		marker := ""
		if BodyID(i) == prog.Entry {
			marker = " // entry"
		}
		fmt.Fprintf(&sb, "\nfn#%d %s%s\n", i, b.Name, marker)
		p.writeBody(&sb, b)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// DumpBody renders one body.
func (p *Printer) DumpBody(b *Body) string {
	var sb strings.Builder
	p.writeBody(&sb, b)
	return sb.String()
}

func (p *Printer) writeBody(sb *strings.Builder, b *Body) {
	if b.Generics > 0 {
		fmt.Fprintf(sb, "  generics: %d\n", b.Generics)
	}
	for i, l := range b.Locals {
		role := "let"
		switch {
		case i == 0:
			role = "ret"
		case i <= b.ArgCount:
			role = "arg"
		}
		mut := ""
		if l.Mutable {
			mut = "mut "
		}
		fmt.Fprintf(sb, "  %s %s_%d: %s // %s\n", role, mut, i, p.typeStr(l.Type), l.Name)
	}
	for bi := range b.Blocks {
		blk := &b.Blocks[bi]
		cleanup := ""
		if blk.Cleanup {
			cleanup = " (cleanup)"
		}
		fmt.Fprintf(sb, "  bb%d%s: {\n", bi, cleanup)
		for si := range blk.Statements {
			fmt.Fprintf(sb, "    %s;\n", p.Statement(&blk.Statements[si]))
		}
		fmt.Fprintf(sb, "    %s;\n  }\n", p.Terminator(&blk.Terminator))
	}
}
