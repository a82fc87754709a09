package solidify

import (
	"strconv"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/value"
)

// emitPrototype walks one prototype's metadata and bytecode in the order
// spec.md §4.5 fixes: stack/arity/varargs, upvalue descriptors, the
// sub-prototype table (with its trailing/leading parent-class slot),
// constants, name, source name, and finally the instruction array.
//
// The inner-class pre-pass (scanning the constant table for Class
// constants and emitting each one first) runs here rather than being
// duplicated at every closure-emitter call site, since every path that
// reaches a prototype body passes through this one function.
func emitPrototype(st *state, p *value.Prototype, name string, literal bool, prefix string) error {
	if err := classPrePass(st, p, literal, prefix); err != nil {
		return err
	}

	if err := st.sink.Writef("%snested_proto(\n", bePrefix); err != nil {
		return err
	}

	varg := 0
	if p.IsVararg {
		varg = 1
	}
	if err := st.sink.Writef("    %d, %d, %d,\n", p.NStack, p.ArgCount, varg); err != nil {
		return err
	}

	if err := emitUpvals(st, p); err != nil {
		return err
	}
	if err := emitSubProtos(st, p, literal, prefix); err != nil {
		return err
	}
	if err := emitConstants(st, p, literal, prefix); err != nil {
		return err
	}

	if literal {
		if err := st.sink.Writef("    %sstr_weak(%s),\n", bePrefix, EncodeIdent([]byte(name))); err != nil {
			return err
		}
	} else {
		if err := st.sink.Writef("    &%sconst_str_%s,\n", bePrefix, EncodeIdent([]byte(name))); err != nil {
			return err
		}
	}
	if err := st.sink.Writef("    &%sconst_str_solidified,\n", bePrefix); err != nil {
		return err
	}

	if err := emitCode(st, p); err != nil {
		return err
	}

	return st.sink.WriteRaw(")")
}

func emitUpvals(st *state, p *value.Prototype) error {
	if len(p.Upvals) == 0 {
		return st.sink.Writef("    0, NULL,\n")
	}
	if err := st.sink.Writef("    1, ((struct bupvaldesc*) &(const bupvaldesc[]){\n"); err != nil {
		return err
	}
	for _, uv := range p.Upvals {
		instack := 0
		if uv.InStack {
			instack = 1
		}
		if err := st.sink.Writef("        %slocal_const_upval(%d, %d),\n", bePrefix, instack, uv.Idx); err != nil {
			return err
		}
	}
	return st.sink.WriteRaw("    }),\n")
}

// emitSubProtos writes the sub-prototype presence bit and table. A
// prototype with no sub-prototypes but a parent class still carries that
// class reference, occupying the table's sole (leading) slot instead of a
// trailing one (spec.md §3, §4.5).
func emitSubProtos(st *state, p *value.Prototype, literal bool, prefix string) error {
	if len(p.SubProtos) == 0 {
		if p.ParentClass == nil {
			return st.sink.Writef("    0, NULL,\n")
		}
		return st.sink.Writef("    0, &%sclass_%s,\n", bePrefix, p.ParentClass.Name)
	}

	if err := st.sink.Writef("    1, ((struct bproto*) &(const bproto*[]){\n"); err != nil {
		return err
	}
	for i, sub := range p.SubProtos {
		name := p.Name + "_" + strconv.Itoa(i)
		if err := st.sink.Writef("        /* sub %d */ &", i); err != nil {
			return err
		}
		if err := emitPrototype(st, sub, name, literal, prefix); err != nil {
			return err
		}
		if err := st.sink.WriteRaw(",\n"); err != nil {
			return err
		}
	}
	if p.ParentClass == nil {
		if err := st.sink.WriteRaw("        NULL,\n"); err != nil {
			return err
		}
	} else {
		if err := st.sink.Writef("        &%sclass_%s,\n", bePrefix, p.ParentClass.Name); err != nil {
			return err
		}
	}
	return st.sink.WriteRaw("    }),\n")
}

func emitConstants(st *state, p *value.Prototype, literal bool, prefix string) error {
	if len(p.Constants) == 0 {
		return st.sink.Writef("    0, NULL,\n")
	}
	if err := st.sink.Writef("    1, ((struct bvalue*) &(const bvalue[]){\n"); err != nil {
		return err
	}
	for k, c := range p.Constants {
		if err := st.sink.Writef("        /* K%d */ ", k); err != nil {
			return err
		}
		if err := emitValue(st, c, literal, prefix, ""); err != nil {
			return err
		}
		if err := st.sink.WriteRaw(",\n"); err != nil {
			return err
		}
	}
	return st.sink.WriteRaw("    }),\n")
}

func emitCode(st *state, p *value.Prototype) error {
	if err := validateGlobalAccess(st, p); err != nil {
		return err
	}
	if err := st.sink.Writef("    %d, ((struct binstruction*) &(const binstruction[]){\n", len(p.Code)); err != nil {
		return err
	}
	names := func(idx int) (string, bool) {
		if idx < 0 || idx >= len(p.Constants) {
			return "", false
		}
		return constDisplayName(p.Constants[idx]), true
	}
	globals := func(idx int) (string, bool) {
		if st.builtins == nil {
			return "", false
		}
		return st.builtins.BuiltinName(idx)
	}
	for _, instr := range p.Code {
		word := bytecode.Encode(instr)
		line := bytecode.Disassemble(instr, names, globals)
		if err := st.sink.Writef("        0x%08X, // %s\n", word, line); err != nil {
			return err
		}
	}
	return st.sink.WriteRaw("    })\n")
}

// validateGlobalAccess enforces spec.md §3 invariant 3: every GETGBL/SETGBL
// Bx must be within the VM's own builtin table, or the resulting constant
// would dangle once the emitted text is compiled.
func validateGlobalAccess(st *state, p *value.Prototype) error {
	count := 0
	if st.builtins != nil {
		count = st.builtins.BuiltinCount()
	}
	for _, instr := range p.Code {
		if bytecode.IsGlobalAccess(instr.Op) && instr.Operand >= count {
			return newError(ErrNonBuiltinGlobal, "Bx=%d exceeds builtin count %d", instr.Operand, count)
		}
	}
	return nil
}

// classPrePass emits every Class constant owned by p before the prototype
// body itself, except the implicit self-reference a static method carries
// at constant index 0 (spec.md §4.5).
func classPrePass(st *state, p *value.Prototype, literal bool, prefix string) error {
	for i, c := range p.Constants {
		cls, ok := c.(*value.Class)
		if !ok {
			continue
		}
		if i == 0 && p.IsStaticMethod {
			continue
		}
		if err := emitClass(st, cls); err != nil {
			return err
		}
	}
	return nil
}

func constDisplayName(v value.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case *value.Closure:
		return t.Proto.Name
	case *value.Class:
		return t.Name
	default:
		return ""
	}
}

