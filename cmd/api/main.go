package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/api"
	"stealthcompany.com/symptomcheck/internal/bootstrap"
	"stealthcompany.com/symptomcheck/internal/config"
	"stealthcompany.com/symptomcheck/internal/diagnosis"
	"stealthcompany.com/symptomcheck/internal/metrics"
	"stealthcompany.com/symptomcheck/internal/orchestrator"
	"stealthcompany.com/symptomcheck/pkg/zerolog_config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	zerolog_config.SetAppPrefix("symptomcheck-api")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("store", cfg.StoreDriver).Msg("Starting symptomcheck-api service")

	ctx, cancel := orchestrator.NewSignalHandler().Context(context.Background())
	defer cancel()

	metrics.Configure(cfg.EnableBusinessMetrics, cfg.EnableSystemMetrics)
	metrics.StartSystemMetrics(15*time.Second, ctx.Done())

	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}

	provider, err := bootstrap.NewProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create provider client")
	}

	persister := diagnosis.NewPersister(st, diagnosis.PersisterConfig{
		Workers:    cfg.PersistWorkers,
		QueueSize:  cfg.PersistQueueSize,
		JobTimeout: cfg.PersistJobTimeout,
	})
	persister.Start()

	svc := diagnosis.NewService(st, provider, persister)
	router := api.SetupRoutes(api.NewHandlers(svc), []byte(cfg.JWTSecret))

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Failed to start server")
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Draining persistence queue...")
	if err := persister.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Persister shutdown incomplete")
	}

	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
	}

	log.Info().Msg("API service shutdown complete")
	os.Exit(exitCode)
}
