package solidify

// Every emitted macro, function, and type name is part of the stable
// interface between the emitted text and the VM runtime and must be
// reproduced verbatim (spec.md §6); they all carry the runtime's "be_"
// namespace prefix, matching the dispatch-table examples in spec.md
// (be_nested_proto, be_const_key, be_local_closure, ...).
const bePrefix = "be_"

// qualifiedName builds the symbol a closure/method is declared or
// referenced under: "<prefix>_<ident>", or bare "<ident>" when prefix is
// empty (spec.md §8 scenario 1: a top-level closure named "f" is declared
// as be_local_closure(f, ...), not be_local_closure(_f, ...)).
func qualifiedName(prefix, ident string) string {
	if prefix == "" {
		return ident
	}
	return prefix + "_" + ident
}

// classPrefix is the naming context a closure's prototype implies when it
// belongs to a class: "class_<Name>" (spec.md §4.6).
func classPrefix(className string) string {
	return "class_" + className
}
