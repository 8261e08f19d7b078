package middleware

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/sqrl-server/internal/base64url"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/model"
)

// CorrelatorHeader is the metadata key a browser session presents its correlator under.
const CorrelatorHeader = "sqrl-correlator"

// Authenticate checks the correlator metadata and injects it into context.
type Authenticate struct {
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{contextManager: contextManager, logger: logger}
}

// AuthFunc rejects calls without a well-formed correlator.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var correlator string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(CorrelatorHeader); len(values) > 0 {
			correlator = values[0]
		}
	}

	if correlator == "" {
		return nil, status.Error(codes.Unauthenticated, "missing correlator")
	}
	if !validCorrelator(correlator) {
		m.logger.Debug("Authenticate middleware: malformed correlator",
			"length", len(correlator))
		return nil, status.Error(codes.Unauthenticated, "invalid correlator")
	}

	return m.contextManager.SetCorrelatorToContext(ctx, correlator), nil
}

func validCorrelator(s string) bool {
	if len(s) != model.CorrelatorLength {
		return false
	}
	b, err := base64url.Decode(s)
	return err == nil && len(b) == 32
}
