package value

// Closure is a prototype plus its captured environment.
//
// Only closures with UpvalCount == 0 are serializable (spec.md §3
// invariant 2); a nonzero count is a soft warning during solidification,
// not a hard error, matching spec.md §7 and the open question in
// spec.md §9 about whether that should be upgraded.
type Closure struct {
	Proto      *Prototype
	UpvalCount int
	IsStatic   bool
}
