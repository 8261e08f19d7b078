// Package base64url implements the unpadded base64url variant required by SQRL.
package base64url

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeError reports input that is not valid SQRL base64url.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error base64url decoding %q: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode returns the base64url form of b with all trailing '=' removed.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// EncodeString encodes the UTF-8 bytes of s.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode accepts both padded and unpadded input.
func Decode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, &DecodeError{Input: s, Err: err}
	}
	return b, nil
}

// DecodeToString decodes s and returns the result as a string.
func DecodeToString(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeForLog never fails; it is meant for log context only.
func DecodeForLog(s string) string {
	decoded, err := DecodeToString(s)
	if err != nil {
		return "<error during base64url decode>"
	}
	return decoded
}
