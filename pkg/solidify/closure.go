package solidify

import (
	"github.com/smoglang/solidify/pkg/value"
)

// emitClosure writes a closure's full declaration: the borrowed-method
// short-circuit, the soft upvalue warning, the prototype body, and the
// be_local_closure wrapper (spec.md §4.6). prefix is the caller-chosen
// naming context — typically class_<Name>, an enclosing module name, or
// empty for a top-level closure.
func emitClosure(st *state, c *value.Closure, prefix string) error {
	parent := c.Proto.ParentClass

	if parent != nil && classPrefix(parent.Name) != prefix {
		return emitBorrowedMethod(st, c, parent)
	}

	if c.UpvalCount > 0 {
		if err := st.sink.WriteRaw("// --> Unsupported upvals in closure <---\n"); err != nil {
			return err
		}
	}

	if err := st.sink.Writef("// %s\n", qualifiedName(prefix, c.Proto.Name)); err != nil {
		return err
	}

	if parent != nil {
		if err := st.sink.Writef("extern const bclass %sclass_%s;\n", bePrefix, parent.Name); err != nil {
			return err
		}
	}

	if err := st.sink.Writef("%slocal_closure(%s,\n", bePrefix, qualifiedName(prefix, c.Proto.Name)); err != nil {
		return err
	}
	if err := emitPrototype(st, c.Proto, c.Proto.Name, st.literal, prefix); err != nil {
		return err
	}
	return st.sink.WriteRaw(");\n")
}

// emitBorrowedMethod handles a closure whose prototype belongs to a class
// other than the one currently being walked: the method was inherited
// unchanged rather than redefined, so only a forward reference to the
// owning class's symbol is emitted, no body (spec.md §4.6 step 1, §8
// scenario 3: the extern symbol itself carries no be_ prefix).
func emitBorrowedMethod(st *state, c *value.Closure, parent *value.Class) error {
	if err := st.sink.Writef("// Borrowed method '%s' from class '%s'\n", c.Proto.Name, parent.Name); err != nil {
		return err
	}
	return st.sink.Writef("extern bclosure *%s_%s;\n", classPrefix(parent.Name), c.Proto.Name)
}
