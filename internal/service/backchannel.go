package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dtroode/sqrl-server/internal/backchannel"
	"github.com/dtroode/sqrl-server/internal/base64url"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/metrics"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/nut"
)

// Backchannel runs the client-to-server transaction: parse, verify, validate
// the nut, execute the command, then reply with a fresh nut.
type Backchannel struct {
	factory   model.PersistenceFactory
	parser    *backchannel.Parser
	encoder   *backchannel.Encoder
	issuer    *NutIssuer
	validator *nut.Validator
	tokens    model.TokenManager
	audit     model.AuditSink
	metrics   *metrics.Metrics
	site      Site
	ask       string
	logger    *logger.Logger
	now       func() time.Time
}

// NewBackchannel creates a Backchannel. audit and m may be nil.
func NewBackchannel(
	factory model.PersistenceFactory,
	parser *backchannel.Parser,
	encoder *backchannel.Encoder,
	issuer *NutIssuer,
	validator *nut.Validator,
	tokens model.TokenManager,
	audit model.AuditSink,
	m *metrics.Metrics,
	site Site,
	logger *logger.Logger,
) *Backchannel {
	return &Backchannel{
		factory:   factory,
		parser:    parser,
		encoder:   encoder,
		issuer:    issuer,
		validator: validator,
		tokens:    tokens,
		audit:     audit,
		metrics:   m,
		site:      site,
		logger:    logger,
		now:       time.Now,
	}
}

// WithAsk sets the prompt sent with successful query replies. An empty prompt
// sends none.
func (s *Backchannel) WithAsk(prompt string) *Backchannel {
	s.ask = prompt
	return s
}

// WithClock replaces the clock used for correlator expiry.
func (s *Backchannel) WithClock(now func() time.Time) *Backchannel {
	s.now = now
	return s
}

// transaction carries the state of one Handle call.
type transaction struct {
	in         model.BackchannelRequest
	req        *backchannel.Request
	tif        *backchannel.TifBuilder
	correlator string
	suk        string
	cpsURL     string
	// validated is set once the presented nut passed validation.
	validated bool
}

// Handle processes a back-channel request. The returned error is non-nil
// only for server-side failures (persistence or internal); the response is
// still a complete reply in that case.
func (s *Backchannel) Handle(ctx context.Context, in model.BackchannelRequest) (model.BackchannelResponse, error) {
	start := time.Now()
	tx := &transaction{in: in, tif: backchannel.NewTifBuilder()}

	err := s.run(ctx, tx)
	if err != nil {
		tx.tif.Add(backchannel.FailureTif(err))
	}

	nextNut := ""
	if tx.req != nil {
		nextNut = tx.req.Nut
	}
	if tx.validated {
		issued, issueErr := s.issueReplyNut(ctx, tx.correlator, in.RemoteIP)
		if issueErr != nil {
			s.logger.Error("Backchannel service: failed to issue reply nut",
				"correlator", tx.correlator,
				"error", issueErr.Error())
			tx.tif.Add(backchannel.FailureTif(issueErr))
			if err == nil {
				err = issueErr
			}
		} else {
			nextNut = issued
		}
	}

	reply := backchannel.Reply{
		Nut:          nextNut,
		Tif:          tx.tif.CreateTif(),
		Qry:          s.site.Qry(nextNut),
		FriendlyName: s.site.FriendlyName,
		Suk:          tx.suk,
		URL:          tx.cpsURL,
	}
	if err == nil && tx.req.Client.Command == backchannel.CommandQuery {
		reply.Ask = s.ask
	}
	resp := model.BackchannelResponse{Body: s.encoder.Encode(reply), Tif: int(reply.Tif)}

	s.finish(ctx, tx, reply.Tif, err, time.Since(start))

	if isServerFailure(err) {
		return resp, err
	}
	return resp, nil
}

func (s *Backchannel) run(ctx context.Context, tx *transaction) error {
	req, err := s.parser.Parse(tx.in.Form)
	if err != nil {
		return err
	}
	tx.req = req

	if tx.in.QueryNut != "" && tx.in.QueryNut != req.Nut {
		return model.NewInvalidRequest("nut", "query nut does not match server nut")
	}

	if err := backchannel.VerifyIdentitySignatures(req); err != nil {
		return err
	}

	token, err := s.issuer.Parse(req.Nut)
	if err != nil {
		return err
	}

	p, err := s.factory.StartTransaction(ctx)
	if err != nil {
		return &model.PersistenceError{Err: fmt.Errorf("failed to start transaction: %w", err)}
	}

	if err := s.process(ctx, p, tx, token); err != nil {
		if rbErr := p.Rollback(ctx); rbErr != nil {
			s.logger.Error("Backchannel service: failed to rollback",
				"correlator", tx.correlator,
				"error", rbErr.Error())
		}
		return err
	}

	if err := p.Commit(ctx); err != nil {
		return &model.PersistenceError{Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// process runs inside the persistence transaction. A panic is converted into
// an InternalError so the caller rolls back.
func (s *Backchannel) process(ctx context.Context, p model.Persistence, tx *transaction, token nut.Token) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Backchannel service: panic while processing command",
				"correlator", tx.correlator,
				"panic", fmt.Sprint(r))
			err = &model.InternalError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	validation, err := s.validator.Validate(ctx, p, token, s.site.BaseURL, tx.in.RemoteIP)
	if err != nil {
		return err
	}
	tx.correlator = validation.Record.Correlator

	correlator, err := p.FetchCorrelator(ctx, tx.correlator)
	if err != nil {
		return &model.PersistenceError{Err: fmt.Errorf("failed to fetch correlator: %w", err)}
	}
	if correlator.Expired(s.now()) {
		return model.ErrNutExpired
	}
	tx.validated = true

	if validation.IPMatch {
		tx.tif.Add(backchannel.TifIPMatch)
	}

	processor := backchannel.NewProcessor(tx.req, p, tx.tif, tx.correlator, s.logger)
	if _, err := processor.ProcessClientCommand(ctx); err != nil {
		tx.suk = processor.Suk()
		return err
	}
	tx.suk = processor.Suk()

	if processor.Authenticated() && tx.req.HasOption(backchannel.OptionCPS) {
		cpsToken, err := s.tokens.GenerateCPSToken(tx.correlator, tx.req.Client.Idk)
		if err != nil {
			return &model.InternalError{Err: fmt.Errorf("failed to generate cps token: %w", err)}
		}
		tx.cpsURL = s.site.CPSURL(cpsToken)
	}
	return nil
}

// issueReplyNut stores the next nut of the correlator in its own transaction,
// after the command transaction closed.
func (s *Backchannel) issueReplyNut(ctx context.Context, correlator string, ip netip.Addr) (string, error) {
	p, err := s.factory.StartTransaction(ctx)
	if err != nil {
		return "", &model.PersistenceError{Err: fmt.Errorf("failed to start transaction: %w", err)}
	}

	issued, err := s.issuer.Issue(ctx, p, correlator, ip)
	if err != nil {
		_ = p.Rollback(ctx)
		return "", err
	}
	if err := p.Commit(ctx); err != nil {
		return "", &model.PersistenceError{Err: fmt.Errorf("failed to commit nut: %w", err)}
	}
	return issued, nil
}

func (s *Backchannel) finish(ctx context.Context, tx *transaction, tif backchannel.Tif, err error, elapsed time.Duration) {
	var cmd, idk string
	if tx.req != nil {
		cmd = string(tx.req.Client.Command)
		idk = tx.req.Client.Idk
	}

	outcome := metrics.OutcomeOK
	switch {
	case isServerFailure(err):
		outcome = metrics.OutcomeFailed
		s.logger.Error("Backchannel service: command failed",
			"correlator", tx.correlator,
			"cmd", cmd,
			"idk", idk,
			"tif", tif.String(),
			"error", err.Error())
	case err != nil:
		outcome = metrics.OutcomeRejected
		s.logger.Warn("Backchannel service: command rejected",
			"correlator", tx.correlator,
			"cmd", cmd,
			"idk", idk,
			"tif", tif.String(),
			"error", err.Error())
		s.logger.Debug("Backchannel service: rejected client block",
			"correlator", tx.correlator,
			"client", base64url.DecodeForLog(tx.in.Form.Get(backchannel.FieldClient)))
	default:
		s.logger.Info("Backchannel service: command processed",
			"correlator", tx.correlator,
			"cmd", cmd,
			"idk", idk,
			"tif", tif.String())
	}
	s.metrics.ObserveRequest(cmd, outcome, elapsed)

	if s.audit == nil {
		return
	}
	event := model.AuditEvent{
		Correlator: tx.correlator,
		Command:    cmd,
		Idk:        idk,
		Tif:        int(tif),
		Outcome:    outcome,
		RemoteIP:   tx.in.RemoteIP.String(),
		Time:       s.now().UTC(),
	}
	if tx.req != nil && tx.req.Client.Button >= 0 {
		btn := tx.req.Client.Button
		event.Button = &btn
	}
	if auditErr := s.audit.Record(context.WithoutCancel(ctx), event); auditErr != nil {
		s.logger.Warn("Backchannel service: failed to record audit event",
			"correlator", tx.correlator,
			"error", auditErr.Error())
	}
}

func isServerFailure(err error) bool {
	var (
		persistenceErr *model.PersistenceError
		internalErr    *model.InternalError
	)
	return errors.As(err, &persistenceErr) || errors.As(err, &internalErr)
}
