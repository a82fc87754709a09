package solidify

import (
	"github.com/smoglang/solidify/pkg/value"
)

// emitModule walks a module's name/value table emitting every string-keyed
// closure (no prefix) and class member first, then the module's own
// constructor and its native-module export line (spec.md §4.8).
func emitModule(st *state, m *value.Module) error {
	if m.Table != nil {
		for i := 0; i < m.Table.Cap(); i++ {
			key, val, _, used := m.Table.Slot(i)
			if !used {
				continue
			}
			if _, isString := key.(string); !isString {
				continue
			}
			switch v := val.(type) {
			case *value.Closure:
				if err := emitClosure(st, v, ""); err != nil {
					return err
				}
			case *value.Class:
				if err := emitClass(st, v); err != nil {
					return err
				}
			}
		}
	}

	if err := st.sink.Writef("%slocal_module(%s, \"%s\", ", bePrefix, m.Name, m.Name); err != nil {
		return err
	}
	if m.Table == nil || m.Table.Len() == 0 {
		if err := st.sink.WriteRaw("NULL"); err != nil {
			return err
		}
	} else if err := emitMap(st, m.Table, st.literal, ""); err != nil {
		return err
	}
	if err := st.sink.WriteRaw(");\n"); err != nil {
		return err
	}

	return st.sink.Writef("EXPORT_VARIABLE define_const_native_module(%s);\n", m.Name)
}
