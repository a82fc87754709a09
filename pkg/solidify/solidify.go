// Package solidify walks a smog value graph (a closure, class, or module)
// and emits C source text that, compiled and linked against the smog VM
// runtime, reconstructs the same objects as read-only constants.
//
// This is the "solidifier" of spec.md: it moves work from interpretation
// time (parse, compile, allocate, intern) to build time, at the cost of
// accepting only graphs that satisfy a handful of structural invariants
// (no cycles beyond class/method structure, no live upvalues, no
// non-builtin globals — spec.md §3, §7).
package solidify

import (
	"io"

	"github.com/smoglang/solidify/pkg/value"
)

// BuiltinTable is the narrow accessor contract the global-access validator
// (spec.md §3 invariant 3) needs from the VM: how many builtins it has,
// and what a given index is named. The VM itself remains an external
// collaborator (spec.md §1); this is the entire surface solidify depends
// on from it.
type BuiltinTable interface {
	BuiltinCount() int
	BuiltinName(idx int) (string, bool)
}

// Option configures a Dump call. Options correspond to solidify.dump's
// optional arguments (spec.md §6): literal_mode, output, prefix.
type Option func(*options)

type options struct {
	literal bool
	output  io.Writer
	prefix  string
}

// WithLiteralMode selects the "weak" (string-literal-friendly) constructor
// family instead of the default "strong" (string-table-interned) one.
func WithLiteralMode(literal bool) Option {
	return func(o *options) { o.literal = literal }
}

// WithOutput sets the writable destination. Without it, Dump writes to the
// default process-wide text writer (os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithPrefix sets the outermost symbol prefix used for top-level closures.
// Per spec.md §9's recorded ambiguity, this flows only into closure
// emission, not class or module emission — that is preserved here
// unchanged.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// state carries the context threaded through one Dump call: a lock-free,
// single-call scratch area, never retained across calls (spec.md §5: "The
// solidifier creates no persistent VM objects").
type state struct {
	sink     *Sink
	builtins BuiltinTable
	literal  bool
}

// Dump is the solidifier's entry point, the Go-side equivalent of
// solidify.dump(value, literal_mode, output, prefix). value must be a
// *value.Closure, *value.Class, or *value.Module; anything else raises
// ErrValue (spec.md §6).
//
// builtins supplies the VM's builtin table for global-access validation
// (spec.md §3 invariant 3). Binding solidify.dump to a specific running
// VM instance, and exposing it as a callable script function, are the
// binding layer's job (spec.md §1, out of scope here) — Dump takes the
// table explicitly instead of reaching for ambient VM state, so this
// package has no hidden dependency on any particular VM.
func Dump(v value.Value, builtins BuiltinTable, opts ...Option) error {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.output == nil {
		st := &state{sink: NewStdoutSink(), builtins: builtins, literal: o.literal}
		return dump(st, v, o.prefix)
	}
	st := &state{sink: NewSink(o.output), builtins: builtins, literal: o.literal}
	if err := dump(st, v, o.prefix); err != nil {
		return err
	}
	return st.sink.Flush()
}

func dump(st *state, v value.Value, prefix string) error {
	switch t := v.(type) {
	case *value.Closure:
		if err := emitClosure(st, t, prefix); err != nil {
			return err
		}
	case *value.Class:
		if err := emitClass(st, t); err != nil {
			return err
		}
	case *value.Module:
		if err := emitModule(st, t); err != nil {
			return err
		}
	default:
		return newError(ErrValue, "top-level value must be closure, class, or module, got %T", v)
	}
	return st.sink.Flush()
}
