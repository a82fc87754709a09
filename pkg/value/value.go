// Package value defines the tagged value graph the solidifier traverses.
//
// In a full smog deployment this graph lives inside the VM's own heap and
// is reached only through narrow accessor contracts (spec.md §1 names the
// VM's tagged-union representation as an external collaborator). This
// package is that contract's concrete, buildable shape for this repository:
// the compiler and a minimal VM construct these values, and pkg/solidify
// consumes them through nothing but the exported fields and methods here.
//
// A Value is any of:
//
//	nil            Nil
//	bool           Bool
//	int64          Int
//	value.Index    Index       (a variable-slot index, distinct from Int)
//	float32        Real (single precision)
//	float64        Real (double precision)
//	string         String
//	*Prototype     shared code+metadata of a closure
//	*Closure       a prototype plus its capture state
//	*Class         a user-defined or simple-data class
//	NativeFunc     an opaque native function, resolved by name
//	NativePtr      an opaque native pointer, resolved by name
//	*Instance      an instantiated class
//	*Map           a chained-bucket hash table
//	*List          a dense ordered sequence
//
// Every recursive procedure in pkg/solidify performs an exhaustive type
// switch over this set; anything else is an internal error (spec.md §7),
// matching this repo's existing convention of plain interface{} dispatch
// (see the teacher's bytecode.writeConstant and vm.send).
package value

// Value is the tagged value graph's element type. It carries no invariants
// of its own; see the package doc for the closed set of representable
// kinds.
type Value = interface{}

// Index is a variable-slot index. It is represented distinctly from Int so
// that value emission can tell "this integer names a slot" from "this
// integer is ordinary numeric data" (spec.md §3, Value variant Index).
type Index int64
