package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/dtroode/sqrl-server/internal/base64url"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/model"
)

// Frontchannel serves the browser side of a login: it opens correlators,
// reports their state and completes client provided sessions.
type Frontchannel struct {
	factory model.PersistenceFactory
	issuer  *NutIssuer
	tokens  model.TokenManager
	site    Site
	ttl     time.Duration
	logger  *logger.Logger
	rng     io.Reader
	now     func() time.Time
}

// NewFrontchannel creates a Frontchannel. ttl bounds the life of a correlator.
func NewFrontchannel(
	factory model.PersistenceFactory,
	issuer *NutIssuer,
	tokens model.TokenManager,
	site Site,
	ttl time.Duration,
	logger *logger.Logger,
) *Frontchannel {
	return &Frontchannel{
		factory: factory,
		issuer:  issuer,
		tokens:  tokens,
		site:    site,
		ttl:     ttl,
		logger:  logger,
		rng:     rand.Reader,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for correlator expiry.
func (f *Frontchannel) WithClock(now func() time.Time) *Frontchannel {
	f.now = now
	return f
}

// BeginLogin opens a correlator and issues its first nut, bound to the browser address.
func (f *Frontchannel) BeginLogin(ctx context.Context, browserIP netip.Addr) (model.LoginSession, error) {
	f.logger.Debug("Frontchannel service: starting login",
		"ip", browserIP.String())

	correlator, err := newCorrelator(f.rng)
	if err != nil {
		f.logger.Error("Frontchannel service: failed to generate correlator",
			"error", err.Error())
		return model.LoginSession{}, err
	}

	now := f.now()
	session := model.LoginSession{
		Correlator: correlator,
		ExpiresAt:  now.Add(f.ttl),
	}

	err = f.inTransaction(ctx, func(p model.Persistence) error {
		err := p.CreateCorrelator(ctx, model.Correlator{
			Value:     correlator,
			Status:    model.CorrelatorStatusPending,
			CreatedAt: now,
			ExpiresAt: session.ExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("failed to create correlator: %w", err)
		}

		session.Nut, err = f.issuer.Issue(ctx, p, correlator, browserIP)
		return err
	})
	if err != nil {
		f.logger.Error("Frontchannel service: failed to begin login",
			"correlator", correlator,
			"error", err.Error())
		return model.LoginSession{}, err
	}

	session.SqrlURL = f.site.SqrlURL(session.Nut)

	f.logger.Info("Frontchannel service: login started",
		"correlator", correlator)
	return session, nil
}

// GetStatus reports the state of correlator. An authenticated correlator also
// yields a login token for the browser.
func (f *Frontchannel) GetStatus(ctx context.Context, correlator string) (model.LoginStatus, error) {
	var c model.Correlator
	err := f.inTransaction(ctx, func(p model.Persistence) error {
		var err error
		c, err = p.FetchCorrelator(ctx, correlator)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.LoginStatus{}, model.ErrNotFound
		}
		f.logger.Error("Frontchannel service: failed to fetch correlator",
			"correlator", correlator,
			"error", err.Error())
		return model.LoginStatus{}, fmt.Errorf("failed to fetch correlator: %w", err)
	}

	switch {
	case c.Expired(f.now()):
		return model.LoginStatus{Status: model.CorrelatorStatusExpired}, nil
	case c.Status == model.CorrelatorStatusAuthenticated:
		token, err := f.tokens.GenerateLoginToken(c.AuthenticatedAs)
		if err != nil {
			f.logger.Error("Frontchannel service: failed to generate login token",
				"correlator", correlator,
				"error", err.Error())
			return model.LoginStatus{}, fmt.Errorf("failed to generate login token: %w", err)
		}
		return model.LoginStatus{
			Status:     model.CorrelatorStatusAuthenticated,
			Idk:        c.AuthenticatedAs,
			LoginToken: token,
		}, nil
	default:
		return model.LoginStatus{Status: model.CorrelatorStatusPending}, nil
	}
}

// CompleteCPS exchanges a CPS token from a reply url= for a login token.
func (f *Frontchannel) CompleteCPS(ctx context.Context, cpsToken string) (string, error) {
	claims, err := f.tokens.ParseCPSToken(cpsToken)
	if err != nil {
		f.logger.Warn("Frontchannel service: invalid cps token",
			"error", err.Error())
		return "", fmt.Errorf("failed to parse cps token: %w", err)
	}

	status, err := f.GetStatus(ctx, claims.Correlator)
	if err != nil {
		return "", err
	}
	if status.Status != model.CorrelatorStatusAuthenticated || status.Idk != claims.Idk {
		f.logger.Warn("Frontchannel service: cps token does not match correlator",
			"correlator", claims.Correlator,
			"idk", claims.Idk)
		return "", model.ErrLoginNotAuthenticated
	}

	f.logger.Info("Frontchannel service: client provided session completed",
		"correlator", claims.Correlator,
		"idk", claims.Idk)
	return status.LoginToken, nil
}

func (f *Frontchannel) inTransaction(ctx context.Context, fn func(p model.Persistence) error) error {
	p, err := f.factory.StartTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(p); err != nil {
		_ = p.Rollback(ctx)
		return err
	}
	return p.Commit(ctx)
}

func newCorrelator(rng io.Reader) (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rng, b); err != nil {
		return "", fmt.Errorf("failed to read correlator randomness: %w", err)
	}
	return base64url.Encode(b), nil
}
