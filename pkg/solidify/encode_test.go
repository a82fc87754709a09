package solidify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIdentPassthrough(t *testing.T) {
	assert.Equal(t, "hello", EncodeIdent([]byte("hello")))
	assert.Equal(t, "a_1", EncodeIdent([]byte("a_1")))
}

func TestEncodeIdentEscapeMarkerCollision(t *testing.T) {
	assert.Equal(t, "k_X_", EncodeIdent([]byte("k_X")))
}

func TestEncodeIdentNonIdentByte(t *testing.T) {
	assert.Equal(t, "v_X3F", EncodeIdent([]byte("v?")))
}

func TestEncodeIdentRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "k_X", "v?", "_X", "__X__", "\x00\x01\xff", "mixed_X?bytes"}
	for _, c := range cases {
		encoded := EncodeIdent([]byte(c))
		decoded, ok := DecodeIdent(encoded)
		require.True(t, ok, "decode failed for %q -> %q", c, encoded)
		assert.Equal(t, []byte(c), decoded)
	}
}

func TestEncodeIdentConcatenationBoundary(t *testing.T) {
	a, b := "foo", "?bar"
	combined := EncodeIdent([]byte(a)) + EncodeIdent([]byte(b))
	decoded, ok := DecodeIdent(combined)
	require.True(t, ok)
	assert.Equal(t, []byte(a+b), decoded)
}

func TestEncodedLenMatchesOutput(t *testing.T) {
	for _, c := range []string{"hello", "k_X", "v?", ""} {
		assert.Equal(t, EncodedLen([]byte(c)), len(EncodeIdent([]byte(c))))
	}
}
