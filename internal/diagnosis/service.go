// Package diagnosis resolves (demographics, symptoms) queries against the local cache and
// falls back to the external provider on a miss.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"stealthcompany.com/symptomcheck/internal/metrics"
	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/priaid"
	"stealthcompany.com/symptomcheck/internal/store"
)

// Provider is the external inference service
type Provider interface {
	Diagnose(ctx context.Context, symptoms []int, gender models.Gender, yearOfBirth int) ([]priaid.DiagnosisResult, error)
	Symptoms(ctx context.Context) ([]priaid.Symptom, error)
}

// Service is the resolution engine
type Service struct {
	store    store.Store
	provider Provider
	sink     BatchSink

	misses   singleflight.Group
	populate singleflight.Group
}

// NewService wires the engine. sink receives batches after each fresh resolution; a
// nil sink discards them.
func NewService(st store.Store, provider Provider, sink BatchSink) *Service {
	return &Service{
		store:    st,
		provider: provider,
		sink:     sink,
	}
}

// Resolve answers one diagnosis request, from the cache when possible.
func (s *Service) Resolve(ctx context.Context, req Request) ([]Result, error) {
	results, result, err := s.resolve(ctx, req)
	metrics.RecordResolution(result)
	return results, err
}

func (s *Service) resolve(ctx context.Context, req Request) ([]Result, string, error) {
	if err := req.Validate(); err != nil {
		return nil, metrics.ResultInvalid, err
	}
	if err := ValidateSymptoms(ctx, s.store.Symptoms(), req.Symptoms); err != nil {
		if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnknownSymptom) {
			return nil, metrics.ResultInvalid, err
		}
		return nil, metrics.ResultError, err
	}

	q := Query{
		YearOfBirth: req.YearOfBirth,
		Gender:      req.Gender,
		Key:         CanonicalKey(req.Symptoms),
		Initiator:   req.Initiator,
	}

	entries, err := s.store.Cache().Lookup(ctx, q.YearOfBirth, q.Gender, q.Key)
	if err != nil {
		return nil, metrics.ResultError, fmt.Errorf("cache lookup: %w", err)
	}
	if len(entries) > 0 {
		results, err := s.hydrate(ctx, q, entries)
		if err != nil {
			return nil, metrics.ResultError, err
		}
		log.Debug().Str("symptoms", q.Key).Int("issues", len(results)).Msg("Diagnosis cache hit")
		return results, metrics.ResultCacheHit, nil
	}

	results, err := s.resolveMiss(ctx, q, sortedCopy(req.Symptoms))
	if err != nil {
		return nil, metrics.ResultError, err
	}
	return results, metrics.ResultCacheMiss, nil
}

// resolveMiss collapses concurrent misses on the same key into one provider round trip
// and one persisted batch.
func (s *Service) resolveMiss(ctx context.Context, q Query, symptoms []int) ([]Result, error) {
	flightKey := strconv.Itoa(q.YearOfBirth) + "|" + string(q.Gender) + "|" + q.Key

	v, err, shared := s.misses.Do(flightKey, func() (interface{}, error) {
		provided, err := s.provider.Diagnose(ctx, symptoms, q.Gender, q.YearOfBirth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
		}

		batch, results, err := Merge(ctx, s.store.Diagnoses(), q, provided)
		if err != nil {
			return nil, err
		}
		if s.sink != nil {
			s.sink.Submit(batch)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Debug().Str("symptoms", q.Key).Msg("Joined in-flight resolution")
	}
	return v.([]Result), nil
}

// hydrate resolves cache entries against the catalog. Entries whose diagnosis is gone
// are dropped.
func (s *Service) hydrate(ctx context.Context, q Query, entries []models.CacheEntry) ([]Result, error) {
	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		d, err := s.store.Diagnoses().FindByID(ctx, e.DiagnosisID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load diagnosis %d: %w", e.DiagnosisID, err)
		}

		specs, err := s.store.Specializations().ListByDiagnosis(ctx, e.DiagnosisID)
		if err != nil {
			return nil, fmt.Errorf("load specializations for %d: %w", e.DiagnosisID, err)
		}
		results = append(results, resultFromCatalog(d, specs, q.Gender, q.YearOfBirth))
	}
	return results, nil
}

// SetReviewed sets the review flag of a diagnosis. Unknown ids are not an error.
func (s *Service) SetReviewed(ctx context.Context, id int, reviewed bool) error {
	if err := s.store.Diagnoses().SetReviewed(ctx, id, reviewed); err != nil {
		return err
	}
	log.Info().Int("diagnosisID", id).Bool("valid", reviewed).Msg("Diagnosis review flag updated")
	return nil
}

// Symptoms lists the symptom catalog, populating it from the provider the first time.
func (s *Service) Symptoms(ctx context.Context) ([]models.Symptom, error) {
	symptoms, err := s.store.Symptoms().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	if len(symptoms) > 0 {
		return symptoms, nil
	}

	v, err, _ := s.populate.Do("symptoms", func() (interface{}, error) {
		return s.PopulateSymptoms(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Symptom), nil
}

// PopulateSymptoms fetches the provider's symptom list and stores any ids not yet known.
// The fetched list is returned even if storing it fails.
func (s *Service) PopulateSymptoms(ctx context.Context) ([]models.Symptom, error) {
	provided, err := s.provider.Symptoms(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	symptoms := make([]models.Symptom, 0, len(provided))
	for _, p := range provided {
		symptoms = append(symptoms, models.Symptom{ID: p.ID, Name: p.Name})
	}

	if err := s.store.Symptoms().InsertIfAbsent(ctx, symptoms); err != nil {
		log.Error().Err(err).Int("count", len(symptoms)).Msg("Failed to store symptoms")
	} else {
		log.Info().Int("count", len(symptoms)).Msg("Symptom catalog populated")
	}
	return symptoms, nil
}
