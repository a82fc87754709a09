package value

// NativeFunc is an opaque reference to a native (host-implemented)
// function, resolved by name when the emitted text is compiled against
// the VM runtime. It never carries a callable — only the name the runtime
// symbol table is expected to export.
type NativeFunc struct {
	Name     string
	IsStatic bool
}

// NativePtr is an opaque reference to a native data pointer, resolved by
// name the same way as NativeFunc.
type NativePtr struct {
	Name string
}
