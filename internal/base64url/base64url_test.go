package base64url

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_StripsPadding(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "empty", input: []byte{}, want: ""},
		{name: "one byte", input: []byte{0xff}, want: "_w"},
		{name: "two bytes", input: []byte{0xfb, 0xff}, want: "-_8"},
		{name: "three bytes", input: []byte("abc"), want: "YWJj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.input)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "=")
		})
	}
}

func TestDecode_ToleratesPadding(t *testing.T) {
	got, err := Decode("_w==")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, got)

	got, err = Decode("_w")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, got)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode("not*base64")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "not*base64", decodeErr.Input)
	assert.Contains(t, err.Error(), "not*base64")
}

func TestRoundTrip(t *testing.T) {
	for size := 0; size < 70; size++ {
		b := make([]byte, size)
		_, err := rand.Read(b)
		require.NoError(t, err)

		encoded := Encode(b)
		assert.False(t, strings.Contains(encoded, "="))

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, b, decoded)
	}
}

func TestDecodeToString(t *testing.T) {
	s, err := DecodeToString(EncodeString("ver=1\r\ncmd=query\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "ver=1\r\ncmd=query\r\n", s)

	assert.Equal(t, "<error during base64url decode>", DecodeForLog("%%%"))
}
