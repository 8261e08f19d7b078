package router

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"

	"github.com/dtroode/sqrl-server/internal/api/grpc/handler"
	"github.com/dtroode/sqrl-server/internal/api/grpc/middleware"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/model"
)

// Router represents a gRPC router for the SQRL front-channel.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	frontchannel   handler.FrontchannelService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	frontchannel handler.FrontchannelService,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		frontchannel:   frontchannel,
		contextManager: contextManager,
		logger:         logger,
	}
}

// correlatorRequired selects the calls that must present a correlator.
func correlatorRequired(_ context.Context, c interceptors.CallMeta) bool {
	return c.FullMethod() != handler.FrontChannel_BeginLogin_FullMethodName
}

// Register registers all gRPC services and middleware.
// It sets up the gRPC server with panic recovery, request logging and
// correlator interceptors.
//
// Returns the configured gRPC server instance.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.contextManager, r.logger)
	rec := middleware.NewRecovery(r.logger)

	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(rec.HandlePanic)),
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(correlatorRequired),
			),
		),
	)

	s := grpc.NewServer(opts...)
	r.registerFrontchannelRoutes(s)

	return s
}

func (r *Router) registerFrontchannelRoutes(server *grpc.Server) {
	frontchannelHandler := handler.NewFrontchannel(r.frontchannel, r.contextManager, r.logger)
	handler.RegisterFrontChannelServer(server, frontchannelHandler)
}
