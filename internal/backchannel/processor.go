package backchannel

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/model"
)

// Processor executes one verified client command inside a persistence
// transaction. It is confined to a single request.
type Processor struct {
	req         *Request
	persistence model.Persistence
	tif         *TifBuilder
	correlator  string
	logger      *logger.Logger

	idMatch       bool
	suk           string
	authenticated bool
}

// NewProcessor creates a Processor for req. correlator is the front-channel
// session the presented nut belongs to.
func NewProcessor(
	req *Request,
	persistence model.Persistence,
	tif *TifBuilder,
	correlator string,
	logger *logger.Logger,
) *Processor {
	return &Processor{
		req:         req,
		persistence: persistence,
		tif:         tif,
		correlator:  correlator,
		logger:      logger,
	}
}

// Suk returns the server unlock key to send back, if any.
func (p *Processor) Suk() string {
	return p.suk
}

// Authenticated reports whether the command logged the correlator in.
func (p *Processor) Authenticated() bool {
	return p.authenticated
}

// ProcessClientCommand runs the command and reports whether the identity is
// known to the server. ID_MATCH follows the same rule: it is set for an
// identity that existed on entry or that the command created.
func (p *Processor) ProcessClientCommand(ctx context.Context) (bool, error) {
	idk := p.req.Client.Idk

	idkExists, err := p.persistence.DoesSqrlIdentityExistByIdk(ctx, idk)
	if err != nil {
		return false, p.persistenceError("failed to check identity", err)
	}
	if idkExists {
		p.markIDMatch()
	}

	var previousOwner string
	if pidk := p.req.Client.Pidk; pidk != "" {
		if previousOwner, err = p.resolvePrevious(ctx, pidk); err != nil {
			return false, err
		}
		if previousOwner != "" {
			p.tif.Add(TifPreviousIDMatch)
		}
	}

	if idkExists && previousOwner != "" && previousOwner != idk {
		p.logger.Warn("Backchannel processor: idk and pidk belong to different identities",
			"idk", idk,
			"pidk", p.req.Client.Pidk)
		return p.idMatch, model.ErrBadIDAssociation
	}

	switch p.req.Client.Command {
	case CommandQuery:
		err = p.query(ctx, idkExists, previousOwner)
	case CommandIdent:
		err = p.ident(ctx, idkExists, previousOwner)
	case CommandEnable:
		err = p.enable(ctx, idkExists)
	case CommandDisable:
		err = p.disable(ctx, idkExists)
	case CommandRemove:
		err = p.remove(ctx, idkExists)
	default:
		err = &model.UnsupportedCommandError{Command: string(p.req.Client.Command)}
	}
	if err != nil {
		return p.idMatch, err
	}

	if p.req.HasOption(OptionSuk) && p.suk == "" && p.idMatch && p.req.Client.Command != CommandRemove {
		if err := p.loadSuk(ctx, idk); err != nil {
			return p.idMatch, err
		}
	}

	return p.idMatch, nil
}

func (p *Processor) markIDMatch() {
	p.idMatch = true
	p.tif.Add(TifIDMatch)
}

// resolvePrevious returns the current idk of the identity pidk refers to, or
// "" when pidk is unknown.
func (p *Processor) resolvePrevious(ctx context.Context, pidk string) (string, error) {
	exists, err := p.persistence.DoesSqrlIdentityExistByIdk(ctx, pidk)
	if err != nil {
		return "", p.persistenceError("failed to check previous identity", err)
	}
	if exists {
		return pidk, nil
	}

	current, err := p.persistence.FetchIdkByPreviousIdk(ctx, pidk)
	if errors.Is(err, model.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", p.persistenceError("failed to resolve previous identity", err)
	}
	return current, nil
}

func (p *Processor) query(ctx context.Context, idkExists bool, previousOwner string) error {
	switch {
	case idkExists:
		identity, err := p.fetchIdentity(ctx, p.req.Client.Idk)
		if err != nil {
			return err
		}
		if !identity.Enabled() {
			p.tif.Add(TifSqrlDisabled)
			p.suk = identity.Suk()
		}
	case previousOwner != "":
		// the client needs the old suk to sign the re-key with the old unlock key
		identity, err := p.fetchIdentity(ctx, previousOwner)
		if err != nil {
			return err
		}
		p.suk = identity.Suk()
	}
	return nil
}

func (p *Processor) ident(ctx context.Context, idkExists bool, previousOwner string) error {
	idk := p.req.Client.Idk

	switch {
	case idkExists:
		identity, err := p.fetchIdentity(ctx, idk)
		if err != nil {
			return err
		}
		if !identity.Enabled() {
			if !VerifyUnlockRequestSignature(p.req, identity.Vuk()) {
				p.tif.Add(TifSqrlDisabled)
				p.suk = identity.Suk()
				return &model.CommandFailedError{Reason: "identity is disabled"}
			}
			if err := p.setFlag(ctx, idk, model.FlagSqrlAuthEnabled, true); err != nil {
				return err
			}
		}

	case previousOwner != "":
		if err := p.rekey(ctx, previousOwner); err != nil {
			return err
		}
		p.markIDMatch()

	default:
		if p.req.Client.Suk == "" || p.req.Client.Vuk == "" {
			return model.NewInvalidRequest("suk", "suk and vuk required to create identity")
		}
		data := map[string]string{
			model.DataKeySuk: p.req.Client.Suk,
			model.DataKeyVuk: p.req.Client.Vuk,
		}
		if err := p.persistence.CreateAndEnableSqrlIdentity(ctx, idk, data); err != nil {
			return p.persistenceError("failed to create identity", err)
		}
		p.logger.Info("Backchannel processor: identity created", "idk", idk)
		p.markIDMatch()
	}

	for flag, opt := range map[model.Flag]Option{
		model.FlagSqrlOnlyLogin: OptionSqrlOnly,
		model.FlagHardlock:      OptionHardlock,
		model.FlagCPSRequested:  OptionCPS,
	} {
		if err := p.setFlag(ctx, idk, flag, p.req.HasOption(opt)); err != nil {
			return err
		}
	}

	if err := p.persistence.MarkCorrelatorAuthenticated(ctx, p.correlator, idk); err != nil {
		return p.persistenceError("failed to authenticate correlator", err)
	}
	if err := p.persistence.UpdateLastAuthenticated(ctx, idk); err != nil {
		return p.persistenceError("failed to update last authenticated", err)
	}
	p.authenticated = true
	return nil
}

// rekey moves the identity known as previousOwner to the request's idk.
func (p *Processor) rekey(ctx context.Context, previousOwner string) error {
	if p.req.Client.Suk == "" || p.req.Client.Vuk == "" {
		return model.NewInvalidRequest("suk", "suk and vuk required to re-key identity")
	}

	previous, err := p.fetchIdentity(ctx, previousOwner)
	if err != nil {
		return err
	}
	if len(p.req.Urs) == 0 {
		return model.NewInvalidRequest(FieldUrs, "urs required to re-key identity")
	}
	if !VerifyUnlockRequestSignature(p.req, previous.Vuk()) {
		return &model.SignatureError{Which: FieldUrs}
	}

	idk := p.req.Client.Idk
	if err := p.persistence.UpdateIdkForSqrlIdentity(ctx, previousOwner, idk); err != nil {
		return p.persistenceError("failed to re-key identity", err)
	}
	data := map[string]string{
		model.DataKeySuk: p.req.Client.Suk,
		model.DataKeyVuk: p.req.Client.Vuk,
	}
	if err := p.persistence.StoreSqrlDataForSqrlIdentity(ctx, idk, data); err != nil {
		return p.persistenceError("failed to store re-keyed identity data", err)
	}
	if !previous.Enabled() {
		if err := p.setFlag(ctx, idk, model.FlagSqrlAuthEnabled, true); err != nil {
			return err
		}
	}

	p.logger.Info("Backchannel processor: identity re-keyed",
		"idk", idk,
		"previous_idk", previousOwner)
	return nil
}

func (p *Processor) enable(ctx context.Context, idkExists bool) error {
	if !idkExists {
		return &model.CommandFailedError{Reason: "unknown identity"}
	}
	identity, err := p.fetchIdentity(ctx, p.req.Client.Idk)
	if err != nil {
		return err
	}
	if !VerifyUnlockRequestSignature(p.req, identity.Vuk()) {
		return model.NewInvalidRequest(FieldUrs, "urs required for enable")
	}
	if identity.Enabled() {
		return nil
	}
	return p.setFlag(ctx, identity.Idk, model.FlagSqrlAuthEnabled, true)
}

func (p *Processor) disable(ctx context.Context, idkExists bool) error {
	if !idkExists {
		return &model.CommandFailedError{Reason: "unknown identity"}
	}
	identity, err := p.fetchIdentity(ctx, p.req.Client.Idk)
	if err != nil {
		return err
	}
	if !identity.Enabled() {
		return nil
	}
	return p.setFlag(ctx, identity.Idk, model.FlagSqrlAuthEnabled, false)
}

func (p *Processor) remove(ctx context.Context, idkExists bool) error {
	if !idkExists {
		return &model.CommandFailedError{Reason: "unknown identity"}
	}
	identity, err := p.fetchIdentity(ctx, p.req.Client.Idk)
	if err != nil {
		return err
	}
	if !VerifyUnlockRequestSignature(p.req, identity.Vuk()) {
		return model.NewInvalidRequest(FieldUrs, "urs required for remove")
	}
	if err := p.persistence.DeleteSqrlIdentity(ctx, identity.Idk); err != nil {
		return p.persistenceError("failed to delete identity", err)
	}
	p.logger.Info("Backchannel processor: identity removed", "idk", identity.Idk)
	return nil
}

func (p *Processor) loadSuk(ctx context.Context, idk string) error {
	suk, ok, err := p.persistence.FetchIdentityDataItem(ctx, idk, model.DataKeySuk)
	if err != nil {
		return p.persistenceError("failed to fetch suk", err)
	}
	if ok {
		p.suk = suk
	}
	return nil
}

func (p *Processor) fetchIdentity(ctx context.Context, idk string) (model.Identity, error) {
	identity, err := p.persistence.FetchSqrlIdentity(ctx, idk)
	if err != nil {
		return model.Identity{}, p.persistenceError("failed to fetch identity", err)
	}
	return identity, nil
}

func (p *Processor) setFlag(ctx context.Context, idk string, flag model.Flag, value bool) error {
	if err := p.persistence.SetSqrlFlagForIdentity(ctx, idk, flag, value); err != nil {
		return p.persistenceError(fmt.Sprintf("failed to set %s", flag), err)
	}
	return nil
}

func (p *Processor) persistenceError(msg string, err error) error {
	p.logger.Error("Backchannel processor: "+msg,
		"idk", p.req.Client.Idk,
		"error", err.Error())
	return &model.PersistenceError{Err: fmt.Errorf("%s: %w", msg, err)}
}
