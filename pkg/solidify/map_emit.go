package solidify

import (
	"github.com/smoglang/solidify/pkg/value"
)

// emitMap compacts the map (dropping trailing empty slots), then emits its
// header constructor wrapping its backing slot array (spec.md §4.3).
// The slot loop walks the raw array by index and skips empty slots
// entirely rather than shifting later slots down, so the chain links
// already recorded in each slot's Next still address the right position
// after reconstruction.
func emitMap(st *state, m *value.Map, literal bool, prefix string) error {
	m.Compact()
	slotCount := m.Cap()
	if slotCount == 0 {
		return st.sink.WriteRaw(bePrefix + "nested_map(0, NULL)")
	}

	if err := st.sink.Writef("%snested_map(%d, ((struct bmapnode*) &(const bmapnode[]){\n", bePrefix, slotCount); err != nil {
		return err
	}
	for i := 0; i < slotCount; i++ {
		key, val, next, used := m.Slot(i)
		if !used {
			continue
		}
		if err := st.sink.Writef("    /* slot %d */ { ", i); err != nil {
			return err
		}
		if err := emitMapKey(st, key, literal, next); err != nil {
			return err
		}
		if err := st.sink.WriteRaw(", "); err != nil {
			return err
		}
		if err := emitValue(st, val, literal, prefix, ""); err != nil {
			return err
		}
		if err := st.sink.WriteRaw(" },\n"); err != nil {
			return err
		}
	}
	return st.sink.WriteRaw("}))")
}

// emitMapKey handles the dispatch table's two key forms: a string key
// (optionally weak, under literal mode) or an integer key, each carrying
// the slot's chain link so reconstruction can walk the same bucket order.
// next is translated to the VM's own -1 sentinel when it is the chain
// terminator. Any other key type was already rejected when the map was
// populated (pkg/value.hashKey), so reaching here with one is an internal
// inconsistency rather than a user-triggerable error path.
func emitMapKey(st *state, key value.Value, literal bool, next int) error {
	link := next
	if link == value.NextNone {
		link = -1
	}
	switch k := key.(type) {
	case string:
		ident := EncodeIdent([]byte(k))
		if literal {
			return st.sink.Writef("%sconst_key_weak(%s, %d)", bePrefix, ident, link)
		}
		return st.sink.Writef("%sconst_key(%s, %d)", bePrefix, ident, link)
	case int64:
		return st.sink.Writef("%sconst_key_int(%d, %d)", bePrefix, k, link)
	default:
		return newError(ErrUnsupportedKey, "%T", key)
	}
}
