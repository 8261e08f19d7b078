package nut

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"net/url"
	"time"

	"github.com/dtroode/sqrl-server/internal/model"
)

// DefaultValiditySeconds is used when no validity is configured.
const DefaultValiditySeconds = 900

// Validation is the result of a successful nut validation.
type Validation struct {
	Record  model.NutRecord
	IPMatch bool
}

// Validator checks presented nuts against persistence, the clock and the requester address.
type Validator struct {
	aesKey          []byte
	validitySeconds int64
	now             func() time.Time
}

// NewValidator creates a Validator. validitySeconds must be in 1..math.MaxInt32.
func NewValidator(aesKey []byte, validitySeconds int) (*Validator, error) {
	if validitySeconds <= 0 || validitySeconds > math.MaxInt32 {
		return nil, fmt.Errorf("nut validity %d out of range", validitySeconds)
	}
	return &Validator{
		aesKey:          aesKey,
		validitySeconds: int64(validitySeconds),
		now:             time.Now,
	}, nil
}

// WithClock replaces the validator clock.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// ValiditySeconds returns nutValidityInSeconds.
func (v *Validator) ValiditySeconds() int64 {
	return v.validitySeconds
}

// ComputeNutExpiresAt returns the expiry of t in epoch milliseconds.
func ComputeNutExpiresAt(t Token, validitySeconds int64) int64 {
	return t.IssuedTimestampMillis() + validitySeconds*1000
}

// ExpiresAt returns the expiry of t.
func (v *Validator) ExpiresAt(t Token) time.Time {
	return time.UnixMilli(ComputeNutExpiresAt(t, v.validitySeconds))
}

// ValidateTimestamp fails with model.ErrNutExpired once t is past its validity.
func (v *Validator) ValidateTimestamp(t Token) error {
	// 64 bit arithmetic: issued + MaxInt32 may not fit in 32 bits.
	expires := uint64(t.IssuedTimestamp) + uint64(v.validitySeconds)
	now := v.now().Unix()
	if now < 0 || uint64(now) > expires {
		return model.ErrNutExpired
	}
	return nil
}

// Validate runs the counter, expiry and IP checks in that order and consumes
// the nut. An IP mismatch is not an error; it is reported in Validation.IPMatch.
func (v *Validator) Validate(ctx context.Context, p model.Persistence, t Token, serverURL *url.URL, requester netip.Addr) (Validation, error) {
	record, err := p.FetchNut(ctx, t.Counter)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Validation{}, model.ErrNutReplayed
		}
		return Validation{}, &model.PersistenceError{Err: err}
	}
	if record.Consumed {
		return Validation{}, model.ErrNutReplayed
	}

	correlator, err := p.FetchCorrelator(ctx, record.Correlator)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Validation{}, model.ErrNutReplayed
		}
		return Validation{}, &model.PersistenceError{Err: err}
	}
	if correlator.LatestCounter != record.Counter {
		return Validation{}, model.ErrNutReplayed
	}

	if err := v.ValidateTimestamp(t); err != nil {
		return Validation{}, err
	}

	ipMatch := ValidateInetAddress(serverURL, requester, t.InetInt, v.aesKey)

	won, err := p.MarkNutConsumed(ctx, t.Counter)
	if err != nil {
		return Validation{}, &model.PersistenceError{Err: err}
	}
	if !won {
		return Validation{}, model.ErrNutReplayed
	}
	record.Consumed = true

	return Validation{Record: record, IPMatch: ipMatch}, nil
}
