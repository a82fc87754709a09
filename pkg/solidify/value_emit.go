package solidify

import (
	"encoding/hex"
	"math"
	"strings"

	"github.com/smoglang/solidify/pkg/value"
)

// emitValue writes one complete constructor form for v: no leading
// indentation, no trailing comma, no trailing newline (spec.md §4.2).
// literal selects the weak string-literal-friendly constructor family.
// prefix is the enclosing naming context; key names this value when it is
// a native function/pointer member (spec.md §4.2's <key>).
func emitValue(st *state, v value.Value, literal bool, prefix, key string) error {
	switch t := v.(type) {
	case nil:
		return st.sink.WriteRaw(bePrefix + "const_nil()")

	case bool:
		b := 0
		if t {
			b = 1
		}
		return st.sink.Writef("%sconst_bool(%d)", bePrefix, b)

	case int64:
		return st.sink.Writef("%sconst_int(%d)", bePrefix, t)

	case value.Index:
		return st.sink.Writef("%sconst_var(%d)", bePrefix, int64(t))

	case float32:
		return st.sink.Writef("%sconst_real_hex(0x%08X)", bePrefix, math.Float32bits(t))

	case float64:
		return st.sink.Writef("%sconst_real_hex(0x%016X)", bePrefix, math.Float64bits(t))

	case string:
		return emitString(st, t, literal)

	case *value.Closure:
		return emitClosureRef(st, t, prefix)

	case *value.Class:
		return st.sink.Writef("%sconst_class(%sclass_%s)", bePrefix, bePrefix, t.Name)

	case value.NativeFunc:
		macro := bePrefix + "const_"
		if t.IsStatic {
			macro += "static_"
		}
		macro += "func("
		if prefix != "" {
			return st.sink.Writef("%s%sntv_%s_%s)", macro, bePrefix, prefix, key)
		}
		return st.sink.Writef("%s%sntv_%s)", macro, bePrefix, key)

	case value.NativePtr:
		if prefix != "" {
			return st.sink.Writef("%sconst_comptr(&%sntv_%s_%s)", bePrefix, bePrefix, prefix, key)
		}
		return st.sink.Writef("%sconst_comptr(&%sntv_%s)", bePrefix, bePrefix, key)

	case *value.Instance:
		return emitInstance(st, t, literal, prefix)

	case *value.Map:
		return emitMap(st, t, literal, prefix)

	case *value.List:
		return emitList(st, t, literal, prefix)

	default:
		return newError(ErrUnsupportedType, "%T", v)
	}
}

func emitString(st *state, s string, literal bool) error {
	ident := EncodeIdent([]byte(s))
	if len(s) >= 255 {
		// Long strings take the unformatted three-write path to sidestep
		// the sink's fixed line buffer (spec.md §4.2, §8 property 5).
		if err := st.sink.WriteRaw(bePrefix + "nested_str_long("); err != nil {
			return err
		}
		if err := st.sink.WriteRaw(ident); err != nil {
			return err
		}
		return st.sink.WriteRaw(")")
	}
	if literal {
		return st.sink.Writef("%snested_str_weak(%s)", bePrefix, ident)
	}
	return st.sink.Writef("%snested_str(%s)", bePrefix, ident)
}

// emitClosureRef writes the reference form used when a closure value
// appears nested inside another already-walked structure (e.g. a
// prototype's own constant table after the inner-class/closure pre-pass
// has hoisted it) rather than at its own declaration site. The macro name
// folds in the static/class-member qualifiers the dispatch table names
// (spec.md §4.2: "const_[static_][class_]<prefix>_<ident>_closure").
func emitClosureRef(st *state, c *value.Closure, prefix string) error {
	macro := bePrefix + "const_"
	if c.IsStatic {
		macro += "static_"
	}
	effectivePrefix := prefix
	if c.Proto.ParentClass != nil {
		macro += "class_"
		effectivePrefix = classPrefix(c.Proto.ParentClass.Name)
	}
	name := qualifiedName(effectivePrefix, c.Proto.Name)
	return st.sink.Writef("%s%s_closure", macro, name)
}

func emitInstance(st *state, ins *value.Instance, literal bool, prefix string) error {
	if ins.Class == nil || !ins.Class.IsSimple() {
		return newError(ErrUnsupportedClass, "class %q", classNameOf(ins.Class))
	}
	if ins.Class.Super != nil || ins.Class.Sub != nil {
		return newError(ErrInstanceInvariant, "instance of %q", ins.Class.Name)
	}

	if ins.Class.Kind == value.ClassBytes {
		buf, ok := ins.BytesBuffer()
		if !ok {
			return newError(ErrUnsupportedClass, "malformed bytes instance")
		}
		return st.sink.Writef("%sconst_bytes_instance(%s)", bePrefix, strings.ToUpper(hex.EncodeToString(buf)))
	}

	// map/list helper instance: member 0 holds the wrapped *Map or *List.
	if len(ins.Members) < 1 {
		return newError(ErrInstanceInvariant, "simple instance missing wrapped value")
	}
	helperName := "map"
	if ins.Class.Kind == value.ClassListHelper {
		helperName = "list"
	}
	if err := st.sink.Writef("%sconst_simple_instance(%snested_simple_instance(&%sclass_%s, { %sconst_%s( * ",
		bePrefix, bePrefix, bePrefix, helperName, bePrefix, helperName); err != nil {
		return err
	}
	if err := emitValue(st, ins.Members[0], literal, prefix, ""); err != nil {
		return err
	}
	return st.sink.WriteRaw(")}))")
}

func classNameOf(c *value.Class) string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}
