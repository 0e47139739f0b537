package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/diagnosis"
	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/store"
)

var lockRetryInterval = 2 * time.Second

// ingestSymptoms seeds the symptom catalog once. When the backend can lock, the
// populated check runs under the lock, so a run that waited on another one finds its
// work done. An already populated catalog yields no symptoms and no error.
func ingestSymptoms(ctx context.Context, st store.Store, provider diagnosis.Provider, owner string) ([]models.Symptom, error) {
	if locker, ok := st.(store.Locker); ok {
		if err := acquire(ctx, locker, owner); err != nil {
			return nil, err
		}
		defer func() {
			log.Info().Msg("Unlocking database after ingestion")
			if err := locker.Unlock(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to unlock database")
			}
		}()
	}

	existing, err := st.Symptoms().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("read symptom catalog: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Int("count", len(existing)).Msg("Symptom catalog already populated, nothing to do")
		return nil, nil
	}

	return diagnosis.NewService(st, provider, nil).PopulateSymptoms(ctx)
}

// acquire waits for the ingestion lock while another run holds it.
func acquire(ctx context.Context, locker store.Locker, owner string) error {
	for {
		log.Info().Str("owner", owner).Msg("Locking database for ingestion")
		err := locker.Lock(ctx, owner)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrLocked) {
			return fmt.Errorf("lock database: %w", err)
		}

		log.Info().Dur("retryIn", lockRetryInterval).Msg("Ingestion lock held by another run, waiting")
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for ingestion lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}
