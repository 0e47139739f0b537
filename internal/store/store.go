// Package store declares the repositories the diagnosis engine persists through.
// Backends live in sqlstore (bun) and internal/couchbase (gocb).
package store

import (
	"context"
	"errors"

	"stealthcompany.com/symptomcheck/internal/models"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("not found")

// ErrLocked is returned by Locker.Lock when another process holds the ingestion lock.
var ErrLocked = errors.New("database is already locked")

// SymptomRepository reads and seeds the symptom reference data.
type SymptomRepository interface {
	Exists(ctx context.Context, id int) (bool, error)
	List(ctx context.Context) ([]models.Symptom, error)
	// InsertIfAbsent skips ids that already exist.
	InsertIfAbsent(ctx context.Context, symptoms []models.Symptom) error
}

// DiagnosisRepository is the deduplicated diagnosis catalog.
type DiagnosisRepository interface {
	FindByID(ctx context.Context, id int) (*models.Diagnosis, error)
	Exists(ctx context.Context, id int) (bool, error)
	// InsertIfAbsent never overwrites an existing id.
	InsertIfAbsent(ctx context.Context, diagnoses []models.Diagnosis) error
	// SetReviewed updates the valid flag. A missing id is not an error.
	SetReviewed(ctx context.Context, id int, reviewed bool) error
}

// SpecializationRepository holds diagnosis → specialty mappings.
type SpecializationRepository interface {
	ListByDiagnosis(ctx context.Context, diagnosisID int) ([]models.Specialization, error)
	// InsertIfAbsent skips rows whose (diagnosis, specialization) pair exists.
	InsertIfAbsent(ctx context.Context, specs []models.Specialization) error
}

// CacheRepository is the append-only index of resolved queries.
type CacheRepository interface {
	Lookup(ctx context.Context, yearOfBirth int, gender models.Gender, symptoms string) ([]models.CacheEntry, error)
	// Append skips entries whose composite key already exists.
	Append(ctx context.Context, entries []models.CacheEntry) error
}

// Repositories groups the per-entity repositories bound to one connection or transaction.
type Repositories interface {
	Symptoms() SymptomRepository
	Diagnoses() DiagnosisRepository
	Specializations() SpecializationRepository
	Cache() CacheRepository
}

// Store is a backend. WithinTx runs fn against transaction-bound repositories and
// commits only if fn returns nil.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Close() error
}

// Locker is implemented by backends that can fence a one-shot ingestion run.
type Locker interface {
	Lock(ctx context.Context, owner string) error
	Unlock(ctx context.Context) error
}
