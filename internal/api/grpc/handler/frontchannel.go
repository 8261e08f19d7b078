package handler

import (
	"context"
	"net/netip"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/model"
)

var _ FrontChannelServer = (*Frontchannel)(nil)

// FrontchannelService opens logins and reports their progress.
type FrontchannelService interface {
	BeginLogin(ctx context.Context, browserIP netip.Addr) (model.LoginSession, error)
	GetStatus(ctx context.Context, correlator string) (model.LoginStatus, error)
}

// Frontchannel handles the browser facing gRPC endpoints.
type Frontchannel struct {
	service        FrontchannelService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewFrontchannel creates a new Frontchannel handler.
func NewFrontchannel(service FrontchannelService, contextManager model.ContextManager, logger *logger.Logger) *Frontchannel {
	return &Frontchannel{
		service:        service,
		contextManager: contextManager,
		logger:         logger,
	}
}

// BeginLogin opens a correlator bound to the browser IP.
func (h *Frontchannel) BeginLogin(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	ip, err := browserIP(ctx, req.GetValue())
	if err != nil {
		h.logger.Debug("Frontchannel handler: invalid browser ip",
			"value", req.GetValue())
		return nil, status.Error(codes.InvalidArgument, "invalid browser ip")
	}

	session, err := h.service.BeginLogin(ctx, ip)
	if err != nil {
		h.logger.Error("Frontchannel handler: begin login failed",
			"ip", ip.String(),
			"error", err.Error())
		return nil, handleError(err)
	}

	return structpb.NewStruct(map[string]any{
		"correlator": session.Correlator,
		"nut":        session.Nut,
		"sqrl_url":   session.SqrlURL,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// GetStatus reports the state of the correlator presented in metadata.
func (h *Frontchannel) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	correlator, ok := h.contextManager.GetCorrelatorFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing correlator")
	}

	st, err := h.service.GetStatus(ctx, correlator)
	if err != nil {
		return nil, handleError(err)
	}

	fields := map[string]any{
		"status": string(st.Status),
	}
	if st.Status == model.CorrelatorStatusAuthenticated {
		fields["idk"] = st.Idk
		fields["login_token"] = st.LoginToken
	}
	return structpb.NewStruct(fields)
}

// browserIP prefers the address the web tier saw; the gRPC peer is the fallback.
func browserIP(ctx context.Context, value string) (netip.Addr, error) {
	if value != "" {
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return netip.Addr{}, err
		}
		return addr.Unmap(), nil
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return netip.Addr{}, status.Error(codes.InvalidArgument, "no peer address")
	}
	ap, err := netip.ParseAddrPort(p.Addr.String())
	if err != nil {
		return netip.Addr{}, err
	}
	return ap.Addr().Unmap(), nil
}
