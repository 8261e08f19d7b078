package backchannel

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dtroode/sqrl-server/internal/model"
)

// Tif is the Transaction Information Flags bitmask returned to the client.
type Tif int

const (
	TifIDMatch              Tif = 0x01
	TifPreviousIDMatch      Tif = 0x02
	TifIPMatch              Tif = 0x04
	TifSqrlDisabled         Tif = 0x08
	TifFunctionNotSupported Tif = 0x10
	TifTransientError       Tif = 0x20
	TifCommandFailed        Tif = 0x40
	TifClientFailure        Tif = 0x80
	TifBadIDAssociation     Tif = 0x100
)

var tifNames = []struct {
	flag Tif
	name string
}{
	{TifIDMatch, "ID_MATCH"},
	{TifPreviousIDMatch, "PREVIOUS_ID_MATCH"},
	{TifIPMatch, "IP_MATCH"},
	{TifSqrlDisabled, "SQRL_DISABLED"},
	{TifFunctionNotSupported, "FUNCTION_NOT_SUPPORTED"},
	{TifTransientError, "TRANSIENT_ERROR"},
	{TifCommandFailed, "COMMAND_FAILED"},
	{TifClientFailure, "CLIENT_FAILURE"},
	{TifBadIDAssociation, "BAD_ID_ASSOCIATION"},
}

// Has reports whether every bit of flag is set.
func (t Tif) Has(flag Tif) bool {
	return t&flag == flag
}

// Hex returns the wire form: upper case hex without leading zeros.
func (t Tif) Hex() string {
	return strings.ToUpper(strconv.FormatInt(int64(t), 16))
}

// String lists the flag names, for logs.
func (t Tif) String() string {
	var names []string
	for _, n := range tifNames {
		if t.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// TifBuilder accumulates flags until CreateTif freezes it.
type TifBuilder struct {
	flags  Tif
	frozen bool
}

// NewTifBuilder creates an empty builder.
func NewTifBuilder() *TifBuilder {
	return &TifBuilder{}
}

// Add sets flags. Adding to a frozen builder is a programming error and panics.
func (b *TifBuilder) Add(flags ...Tif) *TifBuilder {
	if b.frozen {
		panic("backchannel: tif builder used after CreateTif")
	}
	for _, f := range flags {
		b.flags |= f
	}
	return b
}

// CreateTif freezes the builder and returns the accumulated flags.
func (b *TifBuilder) CreateTif() Tif {
	b.frozen = true
	return b.flags
}

// FailureTif maps an error from request handling to the TIF failure bits.
func FailureTif(err error) Tif {
	var (
		invalid     *model.InvalidRequestError
		sigErr      *model.SignatureError
		unsupported *model.UnsupportedCommandError
		failed      *model.CommandFailedError
	)

	switch {
	case err == nil:
		return 0
	case errors.As(err, &unsupported):
		return TifFunctionNotSupported | TifCommandFailed
	case errors.As(err, &invalid), errors.As(err, &sigErr):
		return TifClientFailure | TifCommandFailed
	case errors.Is(err, model.ErrBadIDAssociation):
		return TifBadIDAssociation | TifCommandFailed
	case errors.As(err, &failed):
		return TifCommandFailed
	default:
		// nut expiry/replay, persistence and internal failures are all retryable
		return TifTransientError | TifCommandFailed
	}
}
