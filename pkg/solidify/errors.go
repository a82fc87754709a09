package solidify

import "fmt"

// Kind classifies a solidification failure, mirroring spec.md §7's error
// table.
type Kind int

const (
	// ErrValue is raised when the top-level value passed to Dump is not a
	// closure, class, or module.
	ErrValue Kind = iota

	// ErrUnsupportedClass is raised when an Instance's class is not one of
	// the three serializable simple-data classes (spec.md §3 invariant 1).
	ErrUnsupportedClass

	// ErrInstanceInvariant is raised when a simple instance has a
	// superclass or sub-class link, which must not happen for map/list
	// helper instances.
	ErrInstanceInvariant

	// ErrUnsupportedKey is raised when a map key is neither a string nor
	// an integer (spec.md §3 invariant 4).
	ErrUnsupportedKey

	// ErrUnsupportedType is raised when a value of unrecognized tag is
	// encountered during recursion.
	ErrUnsupportedType

	// ErrNonBuiltinGlobal is raised when a GETGBL/SETGBL instruction
	// targets an index outside the VM's builtin table (spec.md §3
	// invariant 3).
	ErrNonBuiltinGlobal

	// ErrMemory is raised when a scratch allocation for identifier
	// encoding fails.
	ErrMemory
)

func (k Kind) String() string {
	switch k {
	case ErrValue:
		return "value_error"
	case ErrUnsupportedClass:
		return "internal_error: unsupported class"
	case ErrInstanceInvariant:
		return "internal_error: instance must not have super/sub"
	case ErrUnsupportedKey:
		return "internal_error: unsupported type in key"
	case ErrUnsupportedType:
		return "internal_error: unsupported type in constants"
	case ErrNonBuiltinGlobal:
		return "internal_error: non-builtin global"
	case ErrMemory:
		return "memory_error"
	default:
		return "internal_error: unknown"
	}
}

// Error is the error type Dump and every emission procedure return on a
// hard failure. All hard errors abort the whole operation; anything
// already written to the sink is left in place (spec.md §7: "no
// rollback").
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
