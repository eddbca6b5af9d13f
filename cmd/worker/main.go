// Package main provides the entrypoint for the bookmark refresh worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/config"
	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/telemetry"
	"github.com/etapaper/etapaper/internal/transit/hkdata"
	"github.com/etapaper/etapaper/internal/transit/operators"
	"github.com/etapaper/etapaper/internal/upstream"
	"github.com/etapaper/etapaper/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "etapaper-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting refresh worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	defer st.Close()

	registry := upstream.NewRegistry()
	apiClient := hkdata.New(hkdata.Config{
		HTTPClient: upstream.NewClient(upstream.DefaultClientConfig("hkdata")),
		Registry:   registry,
		Logger:     log.With().Str("component", "hkdata").Logger(),
	})
	factory := operators.NewFactory(apiClient, cfg.DataDir, cfg.CatalogThresholdDays, log)

	job := worker.NewRefreshJob(
		worker.RefreshConfig{Concurrency: cfg.RefreshConcurrency},
		factory,
		st,
		worker.LogSink{Logger: log.With().Str("component", "sink").Logger()},
		log,
	)
	runner := &worker.Runner{
		Job:      job,
		Interval: cfg.RefreshInterval,
		Logger:   log,
	}
	go runner.Run(ctx)

	// Health endpoint so orchestrators can probe the worker.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	log.Info().Msg("worker stopped")
}
