package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	ErrTokenExpired  = errors.New("token expired")
	ErrTokenMismatch = errors.New("token type mismatch")
)

var (
	// ErrNutReplayed means the nut counter was unknown, superseded or already consumed.
	ErrNutReplayed = errors.New("nut replayed")
	// ErrNutExpired means the nut outlived nutValidityInSeconds.
	ErrNutExpired = errors.New("nut expired")
	// ErrBadIDAssociation means idk and pidk resolve to two different identities.
	ErrBadIDAssociation = errors.New("idk and pidk belong to different identities")
	// ErrLoginNotAuthenticated means a CPS token names a correlator that its
	// identity did not authenticate.
	ErrLoginNotAuthenticated = errors.New("login not authenticated")
)

// InvalidRequestError is a malformed or incomplete client request.
type InvalidRequestError struct {
	Field  string
	Reason string
}

// NewInvalidRequest creates an InvalidRequestError.
func NewInvalidRequest(field, reason string) *InvalidRequestError {
	return &InvalidRequestError{Field: field, Reason: reason}
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid sqrl request: %s: %s", e.Field, e.Reason)
}

// SignatureError is a signature that failed Ed25519 verification.
type SignatureError struct {
	Which string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification failed for %s", e.Which)
}

// CommandFailedError is an authoritative refusal of a well-formed command.
type CommandFailedError struct {
	Reason string
}

func (e *CommandFailedError) Error() string {
	return "command failed: " + e.Reason
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InternalError is a broken invariant inside the server.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// UnsupportedCommandError is a cmd value outside the protocol's command set.
type UnsupportedCommandError struct {
	Command string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("unsupported sqrl command %q", e.Command)
}
