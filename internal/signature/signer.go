package signature

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const hkdfInfoServerSigning = "sqrl/server/signing/v1"

// Signer holds the server identity used to sign replies. It is read-only after
// construction and safe for concurrent use.
type Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewSigner derives the server signing key from secret.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}

	seed := make([]byte, ed25519.SeedSize)
	reader := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfoServerSigning))
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, fmt.Errorf("failed to derive signing seed: %w", err)
	}

	private := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		private: private,
		public:  private.Public().(ed25519.PublicKey),
	}, nil
}

// Sign signs msg with the server key.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.private, msg)
}

// Verify checks a signature produced by Sign.
func (s *Signer) Verify(msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(s.public, msg, sig)
}

// PublicKey returns the server verification key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.public
}
