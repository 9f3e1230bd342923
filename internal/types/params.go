package types

// Param returns the TypeID of the i-th generic parameter.
func (in *Interner) Param(i uint32) TypeID {
	return in.Intern(MakeParam(i))
}

// Subst replaces generic parameters in id with args. Parameters without a
// matching argument are left untouched.
func (in *Interner) Subst(id TypeID, args []TypeID) TypeID {
	if len(args) == 0 || !in.HasParams(id) {
		return id
	}
	tt, ok := in.Lookup(id)
	if !ok {
		return id
	}
	switch tt.Kind {
	case KindParam:
		if int(tt.Payload) < len(args) && args[tt.Payload] != NoTypeID {
			return args[tt.Payload]
		}
		return id
	case KindArray, KindSlice, KindRawPtr, KindRef, KindBox:
		tt.Elem = in.Subst(tt.Elem, args)
		return in.Intern(tt)
	case KindTuple:
		elems, _ := in.TupleElems(id)
		out := make([]TypeID, len(elems))
		for i, e := range elems {
			out[i] = in.Subst(e, args)
		}
		return in.Tuple(out)
	case KindAdt:
		_, instArgs, ok := in.AdtOf(id)
		if !ok {
			return id
		}
		out := make([]TypeID, len(instArgs))
		for i, a := range instArgs {
			out[i] = in.Subst(a, args)
		}
		return in.Adt(AdtDef(in.insts[tt.Payload].Def), out)
	default:
		return id
	}
}

// HasParams reports whether id mentions any generic parameter.
func (in *Interner) HasParams(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindParam:
		return true
	case KindArray, KindSlice, KindRawPtr, KindRef, KindBox:
		return in.HasParams(tt.Elem)
	case KindTuple:
		elems, _ := in.TupleElems(id)
		for _, e := range elems {
			if in.HasParams(e) {
				return true
			}
		}
	case KindAdt:
		_, args, _ := in.AdtOf(id)
		for _, a := range args {
			if in.HasParams(a) {
				return true
			}
		}
	}
	return false
}
