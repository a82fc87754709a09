package solidify

import (
	"github.com/smoglang/solidify/pkg/value"
)

// emitList writes a list's backing element array in source order, each
// element recursed on with the enclosing prefix and an empty key
// (spec.md §4.4).
func emitList(st *state, l *value.List, literal bool, prefix string) error {
	n := l.Len()
	if n == 0 {
		return st.sink.WriteRaw(bePrefix + "nested_list(0, NULL)")
	}

	if err := st.sink.Writef("%snested_list(%d, ((struct bvalue*) &(const bvalue[]){\n", bePrefix, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := st.sink.Writef("    /* %d */ ", i); err != nil {
			return err
		}
		if err := emitValue(st, l.At(i), literal, prefix, ""); err != nil {
			return err
		}
		if err := st.sink.WriteRaw(",\n"); err != nil {
			return err
		}
	}
	return st.sink.WriteRaw("}))")
}
