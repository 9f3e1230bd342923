package driver

import (
	"fmt"
	"strconv"

	"mirvm/internal/memory"
	"mirvm/internal/types"
)

// FormatValue renders imm as a value of type ty. Types without a plain
// rendering fall back to the raw immediate.
func FormatValue(in *types.Interner, ty types.TypeID, imm memory.Immediate) string {
	switch imm.Kind {
	case memory.ImmScalar:
		if s, ok := formatScalar(in, ty, imm.A); ok {
			return s
		}
	case memory.ImmPair:
		elems, ok := in.TupleElems(ty)
		if !ok || len(elems) != 2 {
			break
		}
		a, okA := formatScalar(in, elems[0], imm.A)
		b, okB := formatScalar(in, elems[1], imm.B)
		if okA && okB {
			return fmt.Sprintf("(%s, %s)", a, b)
		}
	}
	return imm.String()
}

func formatScalar(in *types.Interner, ty types.TypeID, s memory.Scalar) (string, bool) {
	t, ok := in.Lookup(ty)
	if !ok {
		return "", false
	}
	if s.IsPtr() {
		return s.ToPointer().String(), true
	}
	switch t.Kind {
	case types.KindBool:
		return strconv.FormatBool(!s.Bits.IsZero()), true
	case types.KindChar:
		return strconv.QuoteRune(rune(s.Uint64())), true
	case types.KindInt:
		return s.Dec(true), true
	case types.KindUint:
		return s.Dec(false), true
	case types.KindRawPtr, types.KindRef, types.KindBox:
		return s.ToPointer().String(), true
	default:
		return "", false
	}
}
