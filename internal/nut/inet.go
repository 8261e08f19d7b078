package nut

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
	"net/url"
)

// InetAddressToInt fingerprints the requester address to 32 bits.
//
// IPv4 addresses are used as is. IPv6 addresses are hashed together with the
// server AES key and the lowest 32 bits of the digest are kept, so the value is
// uniformly spread and cannot be correlated across servers. The server URL is
// validated but does not take part in the fingerprint: the same address yields
// the same value for https:// and sqrl:// pages of one site.
func InetAddressToInt(serverURL *url.URL, addr netip.Addr, aesKey []byte) (int32, error) {
	if serverURL == nil || serverURL.Scheme == "" {
		return 0, fmt.Errorf("server url has no scheme")
	}
	if !addr.IsValid() {
		return 0, fmt.Errorf("invalid requester address")
	}

	addr = addr.Unmap()
	if addr.Is4() {
		return Pack(addr.As4()), nil
	}

	raw := addr.As16()
	h := sha256.New()
	h.Write(aesKey)
	h.Write(raw[:])
	sum := h.Sum(nil)

	var last [4]byte
	copy(last[:], sum[len(sum)-4:])
	return Pack(last), nil
}

// ValidateInetAddress reports whether addr fingerprints to expected.
func ValidateInetAddress(serverURL *url.URL, addr netip.Addr, expected int32, aesKey []byte) bool {
	actual, err := InetAddressToInt(serverURL, addr, aesKey)
	if err != nil {
		return false
	}
	return actual == expected
}
