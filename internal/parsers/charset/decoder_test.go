package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("strips BOM", func(t *testing.T) {
		out, err := Decode([]byte{0xEF, 0xBB, 0xBF, 'u', 'p', 'c'}, EncodingAuto)
		require.NoError(t, err)
		assert.Equal(t, "upc", out)
	})

	t.Run("invalid UTF-8 under auto is malformed", func(t *testing.T) {
		_, err := Decode([]byte{'c', 'a', 'f', 0xE9}, EncodingAuto)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("explicit windows-1252", func(t *testing.T) {
		out, err := Decode([]byte{'c', 'a', 'f', 0xE9}, EncodingWindows1252)
		require.NoError(t, err)
		assert.Equal(t, "café", out)
	})

	t.Run("explicit windows-1250", func(t *testing.T) {
		out, err := Decode([]byte{0x8A, 0x9A}, EncodingWindows1250)
		require.NoError(t, err)
		assert.Equal(t, "Šš", out)
	})

	t.Run("NUL bytes are binary", func(t *testing.T) {
		_, err := Decode([]byte{'a', 0x00, 'b'}, EncodingUTF8)
		assert.ErrorIs(t, err, ErrBinary)
	})

	t.Run("unsupported encoding", func(t *testing.T) {
		_, err := Decode([]byte("a"), Encoding("ebcdic"))
		assert.Error(t, err)
	})
}
