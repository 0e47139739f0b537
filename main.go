package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/orchestrator"
	"stealthcompany.com/symptomcheck/pkg/zerolog_config"
)

func main() {
	zerolog_config.SetAppPrefix("symptomcheck-orch")
	if err := zerolog_config.StartupWithEnv(os.Getenv("ELASTICSEARCH_URL"), "logs", os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	log.Info().Msg("Starting symptomcheck-orch service")

	binExt := ""
	if runtime.GOOS == "windows" {
		binExt = ".exe"
	}
	binDir := filepath.Dir(os.Args[0])

	ctx, cancel := orchestrator.NewSignalHandler().Context(context.Background())
	defer cancel()

	sm := orchestrator.NewServiceManager(10 * time.Second)

	ingest := orchestrator.Service{Name: "ingest", Path: filepath.Join(binDir, "ingest"+binExt)}
	if err := sm.RunToCompletion(ctx, ingest); err != nil {
		// the API can still populate symptoms lazily on first GET /symptoms
		log.Error().Err(err).Msg("Symptom ingestion failed, starting API anyway")
	}
	if ctx.Err() != nil {
		return
	}

	api := orchestrator.Service{Name: "api", Path: filepath.Join(binDir, "api"+binExt)}
	if err := sm.RunUntilDone(ctx, api); err != nil {
		log.Error().Err(err).Msg("API service failed")
		os.Exit(1)
	}
	log.Info().Msg("Orchestrator shutdown complete")
}
