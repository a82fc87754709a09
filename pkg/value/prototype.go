package value

import "github.com/smoglang/solidify/pkg/bytecode"

// UpvalDesc describes how a closure's prototype captures one variable from
// an enclosing scope.
//
// InStack is true when the captured variable is a local slot of the
// immediately enclosing prototype's activation (captured directly off its
// stack frame); it is false when the variable is itself an upvalue of the
// enclosing closure (captured by chaining through it). Idx is the local
// slot number or the enclosing upvalue index, depending on InStack.
type UpvalDesc struct {
	InStack bool
	Idx     int
}

// Prototype holds the immutable code and metadata shared by every closure
// built over the same compiled function or block body.
//
// ParentClass is a weak, non-owning back-reference used to recover
// class/method association when a closure is a class's method: the
// prototype does not own the class, and the class does not own the
// prototype through this field (ownership runs the other way, through the
// class's Members map). spec.md §3 describes this as occupying a trailing
// (or, if there are no sub-prototypes, leading) slot of the sub-prototype
// table; this repo keeps it as its own field and lets the solidifier's
// prototype emitter reconstruct that table-slot convention on emission.
type Prototype struct {
	Name string

	NStack   int
	ArgCount int
	IsVararg bool

	// IsStaticMethod mirrors the "vararg flags mark a static method" bit
	// the VM packs alongside IsVararg (spec.md §4.5's inner-class pre-pass);
	// kept as its own field here rather than another IsVararg bit so Go
	// callers don't have to unpack a flags byte to read it.
	IsStaticMethod bool

	Upvals []UpvalDesc

	SubProtos   []*Prototype
	ParentClass *Class

	Constants []Value
	Code      []bytecode.Instruction
}
