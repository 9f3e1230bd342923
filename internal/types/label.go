package types

import (
	"fmt"
	"strings"
)

// Label renders a type the way the IR dumper prints it.
func (in *Interner) Label(id TypeID) string {
	var sb strings.Builder
	in.writeLabel(&sb, id, 0)
	return sb.String()
}

func (in *Interner) writeLabel(sb *strings.Builder, id TypeID, depth int) {
	if depth > 32 {
		sb.WriteString("...")
		return
	}
	tt, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	switch tt.Kind {
	case KindBool:
		sb.WriteString("bool")
	case KindChar:
		sb.WriteString("char")
	case KindInt, KindUint:
		prefix := "i"
		if tt.Kind == KindUint {
			prefix = "u"
		}
		if tt.Width == WidthAny {
			sb.WriteString(prefix + "size")
		} else {
			fmt.Fprintf(sb, "%s%d", prefix, tt.Width)
		}
	case KindNever:
		sb.WriteString("!")
	case KindStr:
		sb.WriteString("str")
	case KindArray:
		sb.WriteString("[")
		in.writeLabel(sb, tt.Elem, depth+1)
		fmt.Fprintf(sb, "; %d]", tt.Count)
	case KindSlice:
		sb.WriteString("[")
		in.writeLabel(sb, tt.Elem, depth+1)
		sb.WriteString("]")
	case KindRawPtr:
		if tt.Mutable {
			sb.WriteString("*mut ")
		} else {
			sb.WriteString("*const ")
		}
		in.writeLabel(sb, tt.Elem, depth+1)
	case KindRef:
		if tt.Mutable {
			sb.WriteString("&mut ")
		} else {
			sb.WriteString("&")
		}
		in.writeLabel(sb, tt.Elem, depth+1)
	case KindBox:
		sb.WriteString("Box<")
		in.writeLabel(sb, tt.Elem, depth+1)
		sb.WriteString(">")
	case KindTuple:
		elems, _ := in.TupleElems(id)
		sb.WriteString("(")
		for i, e := range elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			in.writeLabel(sb, e, depth+1)
		}
		if len(elems) == 1 {
			sb.WriteString(",")
		}
		sb.WriteString(")")
	case KindAdt:
		info, args, ok := in.AdtOf(id)
		if !ok {
			sb.WriteString("<adt?>")
			return
		}
		sb.WriteString(info.Name)
		if len(args) > 0 {
			sb.WriteString("<")
			for i, a := range args {
				if i > 0 {
					sb.WriteString(", ")
				}
				in.writeLabel(sb, a, depth+1)
			}
			sb.WriteString(">")
		}
	case KindParam:
		fmt.Fprintf(sb, "T%d", tt.Payload)
	default:
		sb.WriteString(tt.Kind.String())
	}
}
