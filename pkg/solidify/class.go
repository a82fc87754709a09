package solidify

import (
	"github.com/smoglang/solidify/pkg/value"
)

// emitClass forward-declares the class symbol, emits every method closure
// it owns, then emits the class's own constructor (spec.md §4.7).
func emitClass(st *state, cl *value.Class) error {
	if err := st.sink.Writef("extern const bclass %sclass_%s;\n", bePrefix, cl.Name); err != nil {
		return err
	}

	prefix := classPrefix(cl.Name)
	if err := walkMembers(st, cl.Members, prefix); err != nil {
		return err
	}

	if err := st.sink.Writef("// class %s\n", cl.Name); err != nil {
		return err
	}
	if cl.Super != nil {
		if err := st.sink.Writef("extern const bclass %sclass_%s;\n", bePrefix, cl.Super.Name); err != nil {
			return err
		}
	}

	superRef := "NULL"
	if cl.Super != nil {
		superRef = "&" + bePrefix + "class_" + cl.Super.Name
	}

	if err := st.sink.Writef("%slocal_class(%s, %d, %s, ", bePrefix, cl.Name, cl.NVar, superRef); err != nil {
		return err
	}
	if cl.Members == nil || cl.Members.Len() == 0 {
		if err := st.sink.WriteRaw("NULL"); err != nil {
			return err
		}
	} else if err := emitMap(st, cl.Members, st.literal, prefix); err != nil {
		return err
	}

	if st.literal {
		return st.sink.Writef(", %sstr_weak(%s));\n", bePrefix, EncodeIdent([]byte(cl.Name)))
	}
	return st.sink.Writef(", &%sconst_str_%s);\n", bePrefix, EncodeIdent([]byte(cl.Name)))
}

// walkMembers emits every (string-key, *Closure) pair in a class's members
// map in slot order, each under the class's own naming context, so any
// closure later referenced by a nested prototype has already been declared
// (spec.md §4.7 step 2).
func walkMembers(st *state, members *value.Map, prefix string) error {
	if members == nil {
		return nil
	}
	for i := 0; i < members.Cap(); i++ {
		key, val, _, used := members.Slot(i)
		if !used {
			continue
		}
		_, isString := key.(string)
		closure, isClosure := val.(*value.Closure)
		if !isString || !isClosure {
			continue
		}
		if err := emitClosure(st, closure, prefix); err != nil {
			return err
		}
	}
	return nil
}
