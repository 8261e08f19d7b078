package nut

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/sqrl-server/internal/base64url"
)

func TestToken_BinaryLayout(t *testing.T) {
	tok := Token{InetInt: 0x04030201, Counter: 0x08070605, IssuedTimestamp: 0x0c0b0a09, RandomInt: 0x100f0e0d}

	b, err := tok.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, b)

	var decoded Token
	require.NoError(t, decoded.UnmarshalBinary(b))
	assert.Equal(t, tok, decoded)

	assert.Error(t, decoded.UnmarshalBinary(b[:15]))
}

func TestCodec_CreateEncryptParse(t *testing.T) {
	codec, err := NewCodec(zeroKey, nil)
	require.NoError(t, err)

	issued := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tok, err := codec.Create(mustURL(t, "https://grc.com/sqrl"), netip.MustParseAddr("127.0.0.1"), 42, issued)
	require.NoError(t, err)
	assert.Equal(t, int32(2130706433), tok.InetInt)
	assert.Equal(t, uint32(42), tok.Counter)
	assert.Equal(t, issued, tok.IssuedAt().UTC())

	wire, err := codec.Encrypt(tok)
	require.NoError(t, err)
	assert.NotContains(t, wire, "=")

	parsed, err := codec.Parse(wire)
	require.NoError(t, err)
	assert.Equal(t, tok, parsed)
}

func TestCodec_DeterministicRandomness(t *testing.T) {
	rng := bytes.NewReader(bytes.Repeat([]byte{0xaa}, 64))
	codec, err := NewCodec(zeroKey, rng)
	require.NoError(t, err)

	tok, err := codec.Create(mustURL(t, "https://grc.com"), netip.MustParseAddr("10.0.0.1"), 1, time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xaaaaaaaa), tok.RandomInt)
}

func TestCodec_ParseRejectsTampering(t *testing.T) {
	codec, err := NewCodec(zeroKey, nil)
	require.NoError(t, err)

	wire, err := codec.Encrypt(Token{Counter: 9})
	require.NoError(t, err)

	raw, err := base64url.Decode(wire)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = codec.Parse(base64url.Encode(raw))
	assert.Error(t, err)

	_, err = codec.Parse(base64url.Encode(raw[:10]))
	assert.Error(t, err)

	_, err = codec.Parse("***")
	assert.Error(t, err)
}

func TestCodec_ParseRejectsForeignKey(t *testing.T) {
	codec, err := NewCodec(zeroKey, nil)
	require.NoError(t, err)
	otherKey := bytes.Repeat([]byte{7}, 16)
	other, err := NewCodec(otherKey, nil)
	require.NoError(t, err)

	wire, err := other.Encrypt(Token{Counter: 9})
	require.NoError(t, err)
	_, err = codec.Parse(wire)
	assert.Error(t, err)
}

func TestNewCodec_BadKey(t *testing.T) {
	_, err := NewCodec([]byte{1, 2, 3}, nil)
	assert.Error(t, err)
}
