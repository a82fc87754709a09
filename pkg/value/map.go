package value

import "fmt"

// mapSlot is one entry of a Map's open-addressed slot array.
//
// Next chains slots that hash to the same bucket; NextNone marks the end
// of a chain, mirroring the VM's own `-1` sentinel (spec.md §3).
type mapSlot struct {
	Key  Value
	Val  Value
	Next int
	used bool
}

// NextNone is the chain-end sentinel recorded in an emitted `next` link
// (spec.md §3: "a sentinel `-1`").
const NextNone = -1

// Map is an open-addressed hash table with per-entry chaining, matching
// the layout the VM's own maps use: a fixed slot array, each slot holding
// a key/value pair and a `next` link to the following slot in its bucket's
// chain. The solidifier must reproduce this exact slot array — including
// empty slots — so lookup semantics survive reconstruction (spec.md §3,
// testable property 2).
//
// Only string and integer keys are representable (spec.md §3 invariant 4);
// Set rejects anything else.
type Map struct {
	slots []mapSlot
	count int
}

// NewMap creates a Map with capacity slots, all initially empty.
func NewMap(capacity int) *Map {
	if capacity < 1 {
		capacity = 1
	}
	return &Map{slots: make([]mapSlot, capacity)}
}

func hashKey(key Value, capacity int) (int, error) {
	switch k := key.(type) {
	case string:
		h := uint64(2166136261)
		for i := 0; i < len(k); i++ {
			h ^= uint64(k[i])
			h *= 16777619
		}
		return int(h % uint64(capacity)), nil
	case int64:
		v := k
		if v < 0 {
			v = -v
		}
		return int(v % int64(capacity)), nil
	default:
		return 0, fmt.Errorf("value: unsupported type in key: %T", key)
	}
}

// Set inserts or updates key -> val. It grows the slot array (doubling)
// and rehashes if the table has no free slot left for a new key; an
// already-present key is updated in place without consuming a new slot.
func (m *Map) Set(key, val Value) error {
	if _, err := hashKey(key, len(m.slots)); err != nil {
		return err
	}
	for {
		if m.trySet(key, val) {
			return nil
		}
		m.grow()
	}
}

func (m *Map) trySet(key, val Value) bool {
	main, _ := hashKey(key, len(m.slots))

	if !m.slots[main].used {
		m.slots[main] = mapSlot{Key: key, Val: val, Next: NextNone, used: true}
		m.count++
		return true
	}

	// Walk the existing chain looking for an update.
	for i := main; ; {
		if m.slots[i].used && keysEqual(m.slots[i].Key, key) {
			m.slots[i].Val = val
			return true
		}
		if m.slots[i].Next == NextNone {
			break
		}
		i = m.slots[i].Next
	}

	free := m.findFree()
	if free < 0 {
		return false
	}
	// Link the new slot onto the end of the main position's chain.
	tail := main
	for m.slots[tail].Next != NextNone {
		tail = m.slots[tail].Next
	}
	m.slots[tail].Next = free
	m.slots[free] = mapSlot{Key: key, Val: val, Next: NextNone, used: true}
	m.count++
	return true
}

func (m *Map) findFree() int {
	for i := len(m.slots) - 1; i >= 0; i-- {
		if !m.slots[i].used {
			return i
		}
	}
	return -1
}

func (m *Map) grow() {
	old := m.slots
	m.slots = make([]mapSlot, len(old)*2)
	m.count = 0
	for _, s := range old {
		if s.used {
			m.trySet(s.Key, s.Val)
		}
	}
}

func keysEqual(a, b Value) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	default:
		return false
	}
}

// Get looks up key, walking the bucket chain from its main position.
func (m *Map) Get(key Value) (Value, bool) {
	if len(m.slots) == 0 {
		return nil, false
	}
	main, err := hashKey(key, len(m.slots))
	if err != nil {
		return nil, false
	}
	for i := main; i != NextNone; {
		if !m.slots[i].used {
			return nil, false
		}
		if keysEqual(m.slots[i].Key, key) {
			return m.slots[i].Val, true
		}
		i = m.slots[i].Next
	}
	return nil, false
}

// Len returns the number of live entries.
func (m *Map) Len() int { return m.count }

// Cap returns the current slot array length.
func (m *Map) Cap() int { return len(m.slots) }

// Slot returns the raw contents of slot i: its key/value (zero values and
// used=false if the slot is empty) and its chain link.
func (m *Map) Slot(i int) (key, val Value, next int, used bool) {
	s := m.slots[i]
	return s.Key, s.Val, s.Next, s.used
}

// NewRawMap creates a Map with exactly capacity slots, all empty, for
// callers (persist.Decode) that reconstruct a specific slot layout
// directly via SetSlot rather than via Set's hash-and-chain insertion.
func NewRawMap(capacity int) *Map {
	if capacity < 0 {
		capacity = 0
	}
	return &Map{slots: make([]mapSlot, capacity)}
}

// SetSlot writes slot i directly, bypassing hashing — the counterpart to
// Slot, used to reconstruct a map whose exact chain layout was recorded
// elsewhere (persist.Decode) rather than computed by Set.
func (m *Map) SetSlot(i int, key, val Value, next int) {
	m.slots[i] = mapSlot{Key: key, Val: val, Next: next, used: true}
	m.count++
}

// Compact drops trailing empty slots, matching the one-time compaction
// spec.md §3's Lifecycle section requires before serialization. It does
// not renumber or remove any non-trailing slot, so existing `next` chain
// links continue to reference the same indices (spec.md §3: "Skipped
// slots must not shift indices of later slots").
func (m *Map) Compact() {
	last := -1
	for i, s := range m.slots {
		if s.used {
			last = i
		}
	}
	m.slots = m.slots[:last+1]
}
