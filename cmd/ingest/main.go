package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/bootstrap"
	"stealthcompany.com/symptomcheck/internal/config"
	"stealthcompany.com/symptomcheck/internal/orchestrator"
	"stealthcompany.com/symptomcheck/pkg/zerolog_config"
)

const ingestTimeout = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	zerolog_config.SetAppPrefix("symptomcheck-ingest")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Error().Err(err).Msg("Failed to initialize logging")
		return 1
	}

	log.Info().Msg("Starting symptomcheck-ingest service")

	ctx, cancel := orchestrator.NewSignalHandler().Context(context.Background())
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, ingestTimeout)
	defer timeoutCancel()

	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open store")
		return 1
	}
	defer st.Close()

	provider, err := bootstrap.NewProvider(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create provider client")
		return 1
	}

	owner, _ := os.Hostname()
	symptoms, err := ingestSymptoms(ctx, st, provider, owner)
	if err != nil {
		log.Error().Err(err).Msg("Failed to ingest symptoms")
		return 1
	}
	if len(symptoms) == 0 {
		return 0
	}

	log.Info().Int("count", len(symptoms)).Msg("Symptom ingestion completed successfully")
	return 0
}
