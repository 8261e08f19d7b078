package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/sqrl-server/database"
	grpcctx "github.com/dtroode/sqrl-server/internal/api/grpc/context"
	grpcRouter "github.com/dtroode/sqrl-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/sqrl-server/internal/api/grpc/server"
	httpRouter "github.com/dtroode/sqrl-server/internal/api/http/router"
	httpServer "github.com/dtroode/sqrl-server/internal/api/http/server"
	"github.com/dtroode/sqrl-server/internal/backchannel"
	"github.com/dtroode/sqrl-server/internal/config"
	"github.com/dtroode/sqrl-server/internal/logger"
	"github.com/dtroode/sqrl-server/internal/metrics"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/nut"
	"github.com/dtroode/sqrl-server/internal/ratelimiter"
	"github.com/dtroode/sqrl-server/internal/repository/postgres"
	"github.com/dtroode/sqrl-server/internal/server"
	"github.com/dtroode/sqrl-server/internal/service"
	"github.com/dtroode/sqrl-server/internal/signature"
	storage "github.com/dtroode/sqrl-server/internal/storage/minio"
	"github.com/dtroode/sqrl-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const limiterIdleTTL = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	sqlDB, err := database.Open(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to open reaper connection", "error", err)
	}
	defer sqlDB.Close()

	store := postgres.NewStore(db)

	codec, err := nut.NewCodec(cfg.SQRL.AESKey, nil)
	if err != nil {
		logger.Fatal("failed to create nut codec", "error", err)
	}
	validator, err := nut.NewValidator(cfg.SQRL.AESKey, cfg.SQRL.NutValiditySeconds)
	if err != nil {
		logger.Fatal("failed to create nut validator", "error", err)
	}
	signer, err := signature.NewSigner(cfg.SQRL.AESKey)
	if err != nil {
		logger.Fatal("failed to derive server signing key", "error", err)
	}
	site, err := service.NewSite(cfg.SQRL.BaseURL, cfg.SQRL.BackchannelPath, cfg.SQRL.CPSPath, cfg.SQRL.ServerFriendlyName)
	if err != nil {
		logger.Fatal("failed to configure site", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		logger.Fatal("failed to register metrics", "error", err)
	}

	audit, err := newAuditSink(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize audit log", "error", err)
	}

	tokenManager := token.NewJWT(cfg.JWT.Secret)
	issuer := service.NewNutIssuer(codec, validator, site, m)

	backchannelService := service.NewBackchannel(
		store,
		backchannel.NewParser(signer),
		backchannel.NewEncoder(signer),
		issuer,
		validator,
		tokenManager,
		audit,
		m,
		site,
		logger,
	).WithAsk(cfg.SQRL.AskPrompt)
	frontchannelService := service.NewFrontchannel(store, issuer, tokenManager, site, cfg.SQRL.CorrelatorTTL, logger)

	limiter := ratelimiter.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, limiterIdleTTL)
	httpHandler := httpRouter.New(
		backchannelService,
		frontchannelService,
		httpRouter.Paths{
			Backchannel:     site.BackchannelPath,
			CPS:             site.CPSPath,
			LoginSuccessURL: cfg.SQRL.LoginSuccessURL,
		},
		limiter,
		m,
		registry,
		logger,
	).Register()

	servers := []struct {
		server model.Server
		sl     model.SecurityLayer
	}{
		{
			server: httpServer.NewHTTPServer(httpHandler, fmt.Sprintf(":%s", cfg.HTTP.Port)),
			sl:     securityLayer(cfg.HTTP),
		},
		{
			server: registerGRPCServer(logger, frontchannelService, grpcctx.NewManager(), fmt.Sprintf(":%s", cfg.GRPC.Port)),
			sl:     securityLayer(cfg.GRPC),
		},
	}

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server, sl model.SecurityLayer) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			err := s.Start(sl)
			if err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
			}
		}(s.server, s.sl)
	}

	reaper := database.NewReaper(sqlDB, cfg.Database.ReapInterval, logger.With("component", "reaper"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.server.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.server.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func securityLayer(l config.Listener) model.SecurityLayer {
	if l.EnableHTTPS {
		return server.NewTLSListener(l.CertFileName, l.PrivateKeyFileName)
	}
	return server.NewPlainListener()
}

// newAuditSink returns nil when the audit trail is disabled.
func newAuditSink(ctx context.Context, cfg config.Storage) (model.AuditSink, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return storage.NewAuditLog(ctx, minioClient, cfg.Bucket)
}

func registerGRPCServer(
	logger *logger.Logger,
	frontchannel *service.Frontchannel,
	ctxMgr model.ContextManager,
	addr string,
) *grpcServer.GRPCServer {
	r := grpcRouter.New(frontchannel, ctxMgr, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}
