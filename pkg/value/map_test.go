package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSetGet(t *testing.T) {
	m := NewMap(4)
	require.NoError(t, m.Set("a", int64(1)))
	require.NoError(t, m.Set("b", int64(2)))

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMapUpdateInPlaceDoesNotGrowCount(t *testing.T) {
	m := NewMap(4)
	require.NoError(t, m.Set("a", int64(1)))
	require.NoError(t, m.Set("a", int64(2)))

	assert.Equal(t, 1, m.Len())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestMapRejectsUnsupportedKeyType(t *testing.T) {
	m := NewMap(4)
	err := m.Set(3.14, int64(1))
	assert.Error(t, err)
}

func TestMapGrowsAndPreservesEntries(t *testing.T) {
	m := NewMap(1)
	for i := 0; i < 20; i++ {
		require.NoError(t, m.Set(int64(i), int64(i*i)))
	}
	assert.Equal(t, 20, m.Len())
	for i := 0; i < 20; i++ {
		v, ok := m.Get(int64(i))
		require.True(t, ok)
		assert.Equal(t, int64(i*i), v)
	}
}

func TestMapCompactDropsOnlyTrailingEmptySlots(t *testing.T) {
	m := NewMap(8)
	require.NoError(t, m.Set("x", int64(1)))
	beforeCap := m.Cap()
	m.Compact()
	assert.LessOrEqual(t, m.Cap(), beforeCap)
	v, ok := m.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
}

func TestMapChainLinksAddressSamePositionsAfterCompact(t *testing.T) {
	m := NewMap(4)
	// Force a collision chain: hashKey(int64) is v % capacity, so 0 and 4
	// land on the same main slot in a 4-slot table.
	require.NoError(t, m.Set(int64(0), "first"))
	require.NoError(t, m.Set(int64(4), "second"))
	m.Compact()

	_, _, next0, used0 := m.Slot(0)
	require.True(t, used0)
	if next0 != NextNone {
		_, val, _, used := m.Slot(next0)
		require.True(t, used)
		assert.Equal(t, "second", val)
	}
}
