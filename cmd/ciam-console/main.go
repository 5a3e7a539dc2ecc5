// Package main is the entry point for the interactive CIAM admin console
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/openidx/ciam-console/internal/common/config"
	apperrors "github.com/openidx/ciam-console/internal/common/errors"
	"github.com/openidx/ciam-console/internal/common/logger"
	"github.com/openidx/ciam-console/internal/common/tracing"
	"github.com/openidx/ciam-console/internal/console"
	"github.com/openidx/ciam-console/internal/directory"
)

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

const serviceName = "ciam-console"

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "", "path to appsettings.json")
	logFile := flag.String("log-file", "ciam-console.log", "file that receives the structured log")
	flag.Parse()

	var loadOpts []config.LoadOption
	if *configFile != "" {
		loadOpts = append(loadOpts, config.WithFile(*configFile))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	log := logger.WithService(logger.New(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		OutputPaths: []string{*logFile},
	}), serviceName)
	defer log.Sync()

	log.Info("Starting CIAM console",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash),
		zap.String("config_file", cfg.ConfigFile),
	)

	if err := cfg.ValidateTenant(); err != nil {
		log.Error("Tenant configuration is incomplete", zap.Error(err))
		reportMissingSettings(err)
		return 1
	}
	cfg.LogSecurityWarnings(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx, cfg.TracingFor(serviceName), log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer shutdownTracer(context.Background())
	}

	conn, err := directory.Connect(cfg.AzureAD, log, cfg.ConnectOptions())
	if err != nil {
		log.Error("Failed to configure directory connection", zap.Error(err))
		color.New(color.FgRed).Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	shell := console.NewShell(conn.Service, os.Stdin, os.Stdout,
		console.WithPasswordReader(console.NewTerminalPasswordReader(os.Stdin)),
		console.WithTenant(cfg.AzureAD.TenantID),
		console.WithLogger(log),
	)

	if err := shell.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Console session ended with error", zap.Error(err))
		color.New(color.FgRed).Fprintf(os.Stderr, "\nERROR: %v\n", err)
		return 1
	}

	log.Info("Console session ended")
	return 0
}

func reportMissingSettings(err error) {
	red := color.New(color.FgRed)
	red.Fprintln(os.Stderr, "ERROR: Azure AD configuration is missing!")

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Details != "" {
		red.Fprintf(os.Stderr, "Please configure the AzureAd section in appsettings.json (%s)\n", appErr.Details)
		return
	}
	red.Fprintf(os.Stderr, "%v\n", err)
}
