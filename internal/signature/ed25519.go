// Package signature verifies SQRL client signatures and signs server replies.
package signature

import (
	"crypto/ed25519"
	"fmt"
)

// VerifyEd25519 reports whether sig is a valid signature of msg under pubKey.
// Malformed keys or signatures are errors rather than a false result.
func VerifyEd25519(sig, msg, pubKey []byte) (bool, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pubKey))
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig), nil
}
