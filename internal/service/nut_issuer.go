package service

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/dtroode/sqrl-server/internal/metrics"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/nut"
)

// NutIssuer allocates, persists and encrypts nuts. It composes the nut codec
// with the persistence counter and nut table.
type NutIssuer struct {
	codec     *nut.Codec
	validator *nut.Validator
	site      Site
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewNutIssuer creates a NutIssuer.
func NewNutIssuer(codec *nut.Codec, validator *nut.Validator, site Site, m *metrics.Metrics) *NutIssuer {
	return &NutIssuer{
		codec:     codec,
		validator: validator,
		site:      site,
		metrics:   m,
		now:       time.Now,
	}
}

// Issue creates a nut bound to ip and makes it the latest nut of correlator.
// It runs inside the caller's transaction.
func (n *NutIssuer) Issue(ctx context.Context, p model.Persistence, correlator string, ip netip.Addr) (string, error) {
	counter, err := p.NextNutCounter(ctx)
	if err != nil {
		return "", &model.PersistenceError{Err: fmt.Errorf("failed to allocate nut counter: %w", err)}
	}

	token, err := n.codec.Create(n.site.BaseURL, ip, counter, n.now())
	if err != nil {
		return "", &model.InternalError{Err: err}
	}

	err = p.StoreNut(ctx, model.NutRecord{
		Counter:    counter,
		Correlator: correlator,
		IssuedAt:   token.IssuedAt(),
		ExpiresAt:  n.validator.ExpiresAt(token),
	})
	if err != nil {
		return "", &model.PersistenceError{Err: fmt.Errorf("failed to store nut: %w", err)}
	}

	encrypted, err := n.codec.Encrypt(token)
	if err != nil {
		return "", &model.InternalError{Err: err}
	}

	n.metrics.NutIssued()
	return encrypted, nil
}

// Parse decrypts a nut presented by a client.
func (n *NutIssuer) Parse(s string) (nut.Token, error) {
	token, err := n.codec.Parse(s)
	if err != nil {
		return nut.Token{}, model.NewInvalidRequest("nut", err.Error())
	}
	return token, nil
}
