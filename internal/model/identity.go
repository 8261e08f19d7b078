package model

import (
	"time"

	"github.com/google/uuid"
)

// Flag is a boolean attribute stored per SQRL identity.
type Flag string

const (
	// FlagSqrlAuthEnabled is cleared by the disable command. A disabled identity
	// can only authenticate with a valid unlock request signature.
	FlagSqrlAuthEnabled Flag = "SQRL_AUTH_ENABLED"
	// FlagSqrlOnlyLogin records the client's "sqrlonly" option.
	FlagSqrlOnlyLogin Flag = "SQRL_ONLY_LOGIN"
	// FlagHardlock records the client's "hardlock" option.
	FlagHardlock Flag = "HARDLOCK"
	// FlagCPSRequested records that the last ident asked for client provided session.
	FlagCPSRequested Flag = "CPS_REQUESTED"
)

// Well-known identity data keys.
const (
	DataKeySuk = "suk"
	DataKeyVuk = "vuk"
)

// Identity is a persisted SQRL identity keyed by its identity key.
type Identity struct {
	ID                  uuid.UUID
	Idk                 string
	Flags               map[Flag]bool
	Data                map[string]string
	CreatedAt           time.Time
	LastAuthenticatedAt *time.Time
	DisabledAt          *time.Time
}

// Suk returns the stored server unlock key, base64url encoded.
func (i Identity) Suk() string {
	return i.Data[DataKeySuk]
}

// Vuk returns the stored verify unlock key, base64url encoded.
func (i Identity) Vuk() string {
	return i.Data[DataKeyVuk]
}

// Enabled reports whether SQRL authentication is enabled for the identity.
func (i Identity) Enabled() bool {
	return i.Flags[FlagSqrlAuthEnabled]
}
