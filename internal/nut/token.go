// Package nut implements the SQRL nut: a 128 bit, IP bound, time limited token
// that threads every server reply and the client request that follows it.
package nut

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"net/url"
	"time"

	"github.com/dtroode/sqrl-server/internal/base64url"
)

// PlaintextSize is the packed size of a nut before encryption.
const PlaintextSize = 16

// Token holds the four 32 bit fields of a nut.
type Token struct {
	InetInt         int32
	Counter         uint32
	IssuedTimestamp uint32
	RandomInt       uint32
}

// IssuedAt returns the issue time with second precision.
func (t Token) IssuedAt() time.Time {
	return time.Unix(int64(t.IssuedTimestamp), 0)
}

// IssuedTimestampMillis returns the issue time in epoch milliseconds.
func (t Token) IssuedTimestampMillis() int64 {
	return int64(t.IssuedTimestamp) * 1000
}

// MarshalBinary packs the fields little-endian into 16 bytes.
func (t Token) MarshalBinary() ([]byte, error) {
	b := make([]byte, PlaintextSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(t.InetInt))
	binary.LittleEndian.PutUint32(b[4:8], t.Counter)
	binary.LittleEndian.PutUint32(b[8:12], t.IssuedTimestamp)
	binary.LittleEndian.PutUint32(b[12:16], t.RandomInt)
	return b, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (t *Token) UnmarshalBinary(b []byte) error {
	if len(b) != PlaintextSize {
		return fmt.Errorf("nut must be %d bytes, got %d", PlaintextSize, len(b))
	}
	t.InetInt = int32(binary.LittleEndian.Uint32(b[0:4]))
	t.Counter = binary.LittleEndian.Uint32(b[4:8])
	t.IssuedTimestamp = binary.LittleEndian.Uint32(b[8:12])
	t.RandomInt = binary.LittleEndian.Uint32(b[12:16])
	return nil
}

// Codec creates, encrypts and decrypts nuts under the server AES key.
// It is safe for concurrent use.
type Codec struct {
	aead   cipher.AEAD
	aesKey []byte
	rng    io.Reader
}

// NewCodec creates a Codec. rng may be nil to use crypto/rand.
func NewCodec(aesKey []byte, rng io.Reader) (*Codec, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create nut cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create nut aead: %w", err)
	}
	if rng == nil {
		rng = rand.Reader
	}

	key := make([]byte, len(aesKey))
	copy(key, aesKey)

	return &Codec{aead: aead, aesKey: key, rng: rng}, nil
}

// Create builds a token bound to ip for a page served at serverURL.
func (c *Codec) Create(serverURL *url.URL, ip netip.Addr, counter uint32, issuedAt time.Time) (Token, error) {
	inetInt, err := InetAddressToInt(serverURL, ip, c.aesKey)
	if err != nil {
		return Token{}, fmt.Errorf("failed to fingerprint requester: %w", err)
	}

	var random [4]byte
	if _, err := io.ReadFull(c.rng, random[:]); err != nil {
		return Token{}, fmt.Errorf("failed to read nut randomness: %w", err)
	}

	return Token{
		InetInt:         inetInt,
		Counter:         counter,
		IssuedTimestamp: uint32(issuedAt.Unix()),
		RandomInt:       binary.LittleEndian.Uint32(random[:]),
	}, nil
}

// Encrypt seals the token and returns its wire form.
func (c *Codec) Encrypt(t Token) (string, error) {
	plain, err := t.MarshalBinary()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+PlaintextSize+c.aead.Overhead())
	if _, err := io.ReadFull(c.rng, nonce); err != nil {
		return "", fmt.Errorf("failed to read nut nonce: %w", err)
	}

	return base64url.Encode(c.aead.Seal(nonce, nonce, plain, nil)), nil
}

// Parse decodes and decrypts the wire form of a nut.
func (c *Codec) Parse(s string) (Token, error) {
	sealed, err := base64url.Decode(s)
	if err != nil {
		return Token{}, err
	}
	if len(sealed) != c.aead.NonceSize()+PlaintextSize+c.aead.Overhead() {
		return Token{}, fmt.Errorf("nut has unexpected length %d", len(sealed))
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Token{}, fmt.Errorf("failed to decrypt nut: %w", err)
	}

	var t Token
	if err := t.UnmarshalBinary(plain); err != nil {
		return Token{}, err
	}
	return t, nil
}

// AESKey returns the key used for IPv6 fingerprints.
func (c *Codec) AESKey() []byte {
	return c.aesKey
}
