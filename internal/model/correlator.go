package model

import "time"

// CorrelatorLength is the length of a base64url encoded 32 byte correlator.
const CorrelatorLength = 43

// CorrelatorStatus describes the front-channel view of a login attempt.
type CorrelatorStatus string

const (
	// CorrelatorStatusPending means no identity has authenticated yet.
	CorrelatorStatusPending CorrelatorStatus = "pending"
	// CorrelatorStatusAuthenticated means an ident command completed.
	CorrelatorStatusAuthenticated CorrelatorStatus = "authenticated"
	// CorrelatorStatusExpired means the login page outlived its TTL.
	CorrelatorStatusExpired CorrelatorStatus = "expired"
)

// Correlator links a browser session to the chain of nuts issued to the SQRL client.
type Correlator struct {
	Value           string
	Status          CorrelatorStatus
	AuthenticatedAs string
	LatestCounter   uint32
	CreatedAt       time.Time
	ExpiresAt       time.Time
	AuthenticatedAt *time.Time
}

// Expired reports whether the correlator is past its expiry at now.
func (c Correlator) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
