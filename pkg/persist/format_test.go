package persist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/value"
)

func TestEncodeDecodePrototypeRoundTrip(t *testing.T) {
	proto := &value.Prototype{
		Name:     "f",
		NStack:   2,
		ArgCount: 1,
		Constants: []value.Value{
			int64(42),
			"hello",
			true,
		},
		Code: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpReturn},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(proto, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	got, ok := decoded.(*value.Prototype)
	require.True(t, ok)
	assert.Equal(t, proto.Name, got.Name)
	assert.Equal(t, proto.NStack, got.NStack)
	assert.Equal(t, proto.ArgCount, got.ArgCount)
	assert.Equal(t, proto.Constants, got.Constants)
	assert.Equal(t, proto.Code, got.Code)
}

func TestEncodeDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.Error(t, err)
}

func TestEncodeDecodeClassWithMembers(t *testing.T) {
	cls := &value.Class{Name: "Counter", NVar: 1}
	members := value.NewMap(4)
	method := &value.Closure{Proto: &value.Prototype{Name: "value"}}
	require.NoError(t, members.Set("value", method))
	cls.Members = members

	var buf bytes.Buffer
	require.NoError(t, Encode(cls, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	got, ok := decoded.(*value.Class)
	require.True(t, ok)
	assert.Equal(t, "Counter", got.Name)
	assert.Equal(t, 1, got.NVar)
	v, ok := got.Members.Get("value")
	require.True(t, ok)
	closure, ok := v.(*value.Closure)
	require.True(t, ok)
	assert.Equal(t, "value", closure.Proto.Name)
}

func TestEncodeDecodeMapPreservesChainLayout(t *testing.T) {
	m := value.NewMap(4)
	require.NoError(t, m.Set(int64(0), "a"))
	require.NoError(t, m.Set(int64(4), "b"))

	proto := &value.Prototype{Name: "g", Constants: []value.Value{m}}

	var buf bytes.Buffer
	require.NoError(t, Encode(proto, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	got := decoded.(*value.Prototype)
	decodedMap, ok := got.Constants[0].(*value.Map)
	require.True(t, ok)

	v, ok := decodedMap.Get(int64(0))
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = decodedMap.Get(int64(4))
	require.True(t, ok)
	assert.Equal(t, "b", v)
}
