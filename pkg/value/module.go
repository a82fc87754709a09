package value

// Module is a named table of closures and classes exported together,
// the top of the value graph's hierarchy (spec.md §4.8).
type Module struct {
	Name  string
	Table *Map
}
