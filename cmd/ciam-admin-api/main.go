// Package main is the entry point for the CIAM admin API
// The admin API exposes user and application provisioning for automation
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openidx/ciam-console/internal/api"
	"github.com/openidx/ciam-console/internal/common/config"
	"github.com/openidx/ciam-console/internal/common/health"
	"github.com/openidx/ciam-console/internal/common/logger"
	"github.com/openidx/ciam-console/internal/common/resilience"
	"github.com/openidx/ciam-console/internal/common/shutdown"
	"github.com/openidx/ciam-console/internal/common/tracing"
	"github.com/openidx/ciam-console/internal/directory"
)

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

const serviceName = "ciam-admin-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.WithService(logger.New(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	}), serviceName)
	defer log.Sync()

	log.Info("Starting CIAM admin API",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash),
		zap.String("config_file", cfg.ConfigFile),
	)

	if err := cfg.ValidateTenant(); err != nil {
		log.Fatal("Azure AD configuration is missing", zap.Error(err))
	}
	cfg.LogSecurityWarnings(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx, cfg.TracingFor(serviceName), log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	breakers := resilience.NewRegistry()
	connectOpts := cfg.ConnectOptions()
	connectOpts.Breakers = breakers

	conn, err := directory.Connect(cfg.AzureAD, log, connectOpts)
	if err != nil {
		log.Fatal("Failed to configure directory connection", zap.Error(err))
	}

	healthService := health.NewHealthService(log)
	healthService.SetVersion(Version)
	healthService.RegisterCheck(health.NewTokenChecker(conn.Credentials))
	healthService.RegisterCheck(health.NewBreakerChecker(breakers))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(conn.Service, api.RouterConfig{
		ServiceName: serviceName,
		Production:  cfg.IsProduction(),
		Logger:      log,
		Health:      healthService,
	})

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.Directory.RequestTimeout+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		log.Fatal("Failed to listen", zap.Int("port", cfg.Port), zap.Error(err))
	}

	sm := shutdown.NewShutdownManager(log, 30*time.Second)
	sm.RegisterHook("logger", func(context.Context) error {
		_ = log.Sync()
		return nil
	})
	sm.RegisterHook("tracer", shutdownTracer)

	if err := sm.GracefulServe("http", server, ln); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}

	sm.WaitForShutdown(ctx)
	log.Info("Server exited")
}
