// Command astra-gateway runs the optional HTTP surface over the editor
// service and repair driver, the ambient counterpart to the stdio LSP
// transport that stays out of scope (see internal/editor).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/divyang-garg/astra-guardrails/internal/auditlog"
	"github.com/divyang-garg/astra-guardrails/internal/config"
	"github.com/divyang-garg/astra-guardrails/internal/editor"
	"github.com/divyang-garg/astra-guardrails/internal/gateway"
	"github.com/divyang-garg/astra-guardrails/internal/logging"
	"github.com/divyang-garg/astra-guardrails/internal/repairdriver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	svc, err := editor.NewService()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start editor service")
	}

	provider, err := repairdriver.MakeProvider(cfg.RepairProviderKind, cfg.RepairProviderCmd, cfg.PatchProviderTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build repair patch provider")
	}
	driver, err := repairdriver.NewDriver(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start repair driver")
	}
	driver.Provider = provider
	driver.MaxIters = cfg.RepairMaxIters

	if cfg.AuditDSN != "" {
		db, err := auditlog.Open(cfg.AuditDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open audit log database")
		}
		if _, err := db.Exec(auditlog.Schema); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply audit log schema")
		}
		defer db.Close()
	}

	var metrics *gateway.Metrics
	if cfg.MetricsEnabled {
		metrics = gateway.NewMetrics("astra_gateway")
	}

	router := gateway.NewRouter(cfg, svc, driver, logger, metrics)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("astra gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
